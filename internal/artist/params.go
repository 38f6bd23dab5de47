package artist

// ListParams configures paginated, sortable artist queries.
type ListParams struct {
	Page     int
	PageSize int
	Sort     string
	Order    string
	// Search filters by a case-insensitive substring of the name.
	Search string
	// Platform limits results to artists connected on that platform.
	Platform string
}

// Validate normalizes list parameters to safe values.
func (p *ListParams) Validate() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 || p.PageSize > 200 {
		p.PageSize = 50
	}
	switch p.Sort {
	case "name", "created_at", "updated_at", "combined_popularity":
	default:
		p.Sort = "name"
	}
	if p.Order != "desc" {
		p.Order = "asc"
	}
}
