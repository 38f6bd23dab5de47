package soundcloud

// searchResponse is the JSON response from /search/users.
type searchResponse struct {
	Collection   []user `json:"collection"`
	TotalResults int    `json:"total_results"`
}

// user is a SoundCloud user resource. /resolve returns the same shape with
// Kind set to "user" when the URL points at a profile.
type user struct {
	ID             int64  `json:"id"`
	Kind           string `json:"kind"`
	Username       string `json:"username"`
	FullName       string `json:"full_name"`
	Permalink      string `json:"permalink"`
	PermalinkURL   string `json:"permalink_url"`
	AvatarURL      string `json:"avatar_url"`
	City           string `json:"city"`
	CountryCode    string `json:"country_code"`
	Description    string `json:"description"`
	FollowersCount int64  `json:"followers_count"`
	TrackCount     int64  `json:"track_count"`
}
