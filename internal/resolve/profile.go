package resolve

import (
	"maps"
	"strings"
	"time"

	"github.com/tinygems/tinygems/internal/match"
	"github.com/tinygems/tinygems/internal/provider"
)

// Overrides are user edits applied on top of the merged platform data.
// Empty fields keep the merged value.
type Overrides struct {
	Name     string   `json:"name,omitempty"`
	Location string   `json:"location,omitempty"`
	Gender   string   `json:"gender,omitempty"`
	Genres   []string `json:"genres,omitempty"`
}

// Profile is the unified artist record produced by Finalize.
type Profile struct {
	ID          string   `json:"id,omitempty"`
	Name        string   `json:"name"`
	Location    string   `json:"location,omitempty"`
	Gender      string   `json:"gender,omitempty"`
	Genres      []string `json:"genres"`
	Description string   `json:"description,omitempty"`
	AvatarURL   string   `json:"avatar_url,omitempty"`

	// Links holds the profile URL of every connected platform.
	Links map[provider.Platform]string `json:"links"`
	// ExternalLinks are outbound links the connected profiles reported for
	// platforms that were not themselves connected.
	ExternalLinks map[provider.Platform]string `json:"external_links,omitempty"`
	// PlatformIDs maps each connected platform to the artist's ID there.
	PlatformIDs map[provider.Platform]string                 `json:"platform_ids"`
	Audience    map[provider.Platform]provider.AudienceStats `json:"audience"`

	// PlatformPopularity is each connected platform's normalized 0-100
	// audience figure; CombinedPopularity is their weighted mean.
	PlatformPopularity map[provider.Platform]float64 `json:"platform_popularity"`
	CombinedPopularity float64                       `json:"combined_popularity"`

	CreatedAt time.Time `json:"created_at"`
}

// Connected returns the connected platforms in canonical order.
func (p *Profile) Connected() []provider.Platform {
	var out []provider.Platform
	for _, pl := range provider.AllPlatforms() {
		if _, ok := p.Links[pl]; ok {
			out = append(out, pl)
		}
	}
	return out
}

// BuildProfile merges connected platform records, given in canonical
// platform order, into a Profile. Scalar fields come from the first record
// that has them; genres are the de-duplicated union.
func BuildProfile(connected []provider.ArtistData, o Overrides, now time.Time) *Profile {
	p := &Profile{
		Links:       make(map[provider.Platform]string, len(connected)),
		PlatformIDs: make(map[provider.Platform]string, len(connected)),
		Audience:    make(map[provider.Platform]provider.AudienceStats),
		CreatedAt:   now,
	}

	external := make(map[provider.Platform]string)
	var genres []string
	for _, d := range connected {
		p.Links[d.Platform] = d.URL
		p.PlatformIDs[d.Platform] = d.PlatformID
		maps.Copy(p.Audience, d.Audience)
		for pl, u := range d.Links {
			if _, ok := external[pl]; !ok && u != "" {
				external[pl] = u
			}
		}

		if p.Name == "" {
			p.Name = d.Name
		}
		if p.Location == "" {
			p.Location = d.Metadata.Location
		}
		if p.Description == "" {
			p.Description = d.Metadata.Description
		}
		if p.AvatarURL == "" {
			p.AvatarURL = d.AvatarURL
		}
		genres = append(genres, d.Metadata.Genres...)
	}
	// A connected platform's own record is authoritative for its audience.
	for _, d := range connected {
		if s, ok := d.Audience[d.Platform]; ok {
			p.Audience[d.Platform] = s
		}
	}
	for pl := range p.Links {
		delete(external, pl)
	}
	if len(external) > 0 {
		p.ExternalLinks = external
	}
	p.Genres = dedupeGenres(genres)
	p.CombinedPopularity, p.PlatformPopularity = CombinedPopularity(connected)

	if v := strings.TrimSpace(o.Name); v != "" {
		p.Name = v
	}
	if v := strings.TrimSpace(o.Location); v != "" {
		p.Location = v
	}
	if v := strings.TrimSpace(o.Gender); v != "" {
		p.Gender = v
	}
	if o.Genres != nil {
		p.Genres = dedupeGenres(o.Genres)
	}
	return p
}

// dedupeGenres keeps the first spelling of each genre, comparing on the
// normalized form.
func dedupeGenres(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, g := range in {
		g = strings.TrimSpace(g)
		key := match.Normalize(g)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, g)
	}
	return out
}
