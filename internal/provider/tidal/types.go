package tidal

// Responses follow JSON:API: primary data plus an "included" array of
// side-loaded resources.

// resourceID is a JSON:API resource identifier.
type resourceID struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// searchArtistsResponse is the response from
// /searchResults/{query}/relationships/artists?include=artists.
type searchArtistsResponse struct {
	Data     []resourceID     `json:"data"`
	Included []artistResource `json:"included"`
}

// artistResponse is the response from /artists/{id}.
type artistResponse struct {
	Data artistResource `json:"data"`
}

type artistResource struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Attributes struct {
		Name          string         `json:"name"`
		Popularity    *float64       `json:"popularity"`
		Handle        string         `json:"handle"`
		ExternalLinks []externalLink `json:"externalLinks"`
	} `json:"attributes"`
}

type externalLink struct {
	Href string `json:"href"`
	Meta struct {
		Type string `json:"type"`
	} `json:"meta"`
}
