package spotify

// searchResponse is the JSON response from the Spotify search endpoint with
// type=artist.
type searchResponse struct {
	Artists struct {
		Items []artistObject `json:"items"`
		Total int            `json:"total"`
	} `json:"artists"`
}

// artistObject is a full artist object from search or /v1/artists/{id}.
type artistObject struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	ExternalURLs struct {
		Spotify string `json:"spotify"`
	} `json:"external_urls"`
	Followers struct {
		Total int64 `json:"total"`
	} `json:"followers"`
	Genres     []string `json:"genres"`
	Images     []image  `json:"images"`
	Popularity *float64 `json:"popularity"`
	Type       string   `json:"type"`
}

type image struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}
