package provider

import (
	"context"
	"fmt"
	"time"
)

// Platform identifies an external music platform.
type Platform string

// Known platforms.
const (
	Spotify    Platform = "spotify"
	SoundCloud Platform = "soundcloud"
	YouTube    Platform = "youtube"
	Bandcamp   Platform = "bandcamp"
	Tidal      Platform = "tidal"
	AppleMusic Platform = "appleMusic"
	Other      Platform = "other"
)

// AllPlatforms returns every platform in canonical priority order. Results
// are always presented in this order regardless of which adapter answered first.
func AllPlatforms() []Platform {
	return []Platform{
		Spotify,
		SoundCloud,
		YouTube,
		Bandcamp,
		Tidal,
		AppleMusic,
		Other,
	}
}

// Priority returns the platform's position in the canonical order. Lower
// values sort first; unknown platforms sort last.
func (p Platform) Priority() int {
	for i, q := range AllPlatforms() {
		if q == p {
			return i
		}
	}
	return len(AllPlatforms())
}

// Valid reports whether p is one of the known platforms.
func (p Platform) Valid() bool {
	return p.Priority() < len(AllPlatforms())
}

// ParsePlatform converts a string to a Platform, reporting whether it is known.
func ParsePlatform(s string) (Platform, bool) {
	p := Platform(s)
	return p, p.Valid()
}

// DisplayName returns a human-readable name for the platform.
func (p Platform) DisplayName() string {
	switch p {
	case Spotify:
		return "Spotify"
	case SoundCloud:
		return "SoundCloud"
	case YouTube:
		return "YouTube"
	case Bandcamp:
		return "Bandcamp"
	case Tidal:
		return "Tidal"
	case AppleMusic:
		return "Apple Music"
	case Other:
		return "Other"
	default:
		return string(p)
	}
}

// AudienceStats holds the audience figures a platform reports. Each platform
// fills a different subset; there is no common unit across platforms.
type AudienceStats struct {
	Followers   int64    `json:"followers,omitempty"`
	Subscribers int64    `json:"subscribers,omitempty"`
	Views       int64    `json:"views,omitempty"`
	Plays       int64    `json:"plays,omitempty"`
	Tracks      int64    `json:"tracks,omitempty"`
	Popularity  *float64 `json:"popularity,omitempty"`
}

// ArtistMetadata is descriptive data attached to an artist record.
type ArtistMetadata struct {
	Genres      []string `json:"genres,omitempty"`
	Description string   `json:"description,omitempty"`
	Location    string   `json:"location,omitempty"`
}

// ArtistData is an artist record as seen on one platform. Adapters create a
// fresh value per call and never mutate it after returning it.
type ArtistData struct {
	Platform   Platform                   `json:"platform"`
	PlatformID string                     `json:"platform_id"`
	Name       string                     `json:"name"`
	URL        string                     `json:"url"`
	AvatarURL  string                     `json:"avatar_url,omitempty"`
	Links      map[Platform]string        `json:"links,omitempty"`
	Audience   map[Platform]AudienceStats `json:"audience,omitempty"`
	Metadata   ArtistMetadata             `json:"metadata"`
}

// Adapter is the capability every platform integration implements.
// Searches that match nothing return an empty slice and a nil error.
type Adapter interface {
	// Platform returns the platform this adapter serves.
	Platform() Platform

	// Search looks up artists by free-text name.
	Search(ctx context.Context, query string) ([]ArtistData, error)

	// ResolveFromURL fetches the artist a platform URL points at. Returns
	// *ErrNotFound when the platform has no such artist.
	ResolveFromURL(ctx context.Context, rawURL string) (*ArtistData, error)
}

// ErrPlatformUnavailable indicates a transient or auth failure reaching a
// platform (rate-limited, timeout, server error, rejected credentials).
type ErrPlatformUnavailable struct {
	Platform   Platform
	Cause      error
	RetryAfter time.Duration
}

func (e *ErrPlatformUnavailable) Error() string {
	return fmt.Sprintf("platform %s unavailable: %v", e.Platform, e.Cause)
}

func (e *ErrPlatformUnavailable) Unwrap() error { return e.Cause }

// ErrNotFound indicates the platform was reachable but has no matching artist.
type ErrNotFound struct {
	Platform Platform
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("platform %s: artist %s not found", e.Platform, e.ID)
}

// ErrAuthRequired indicates the platform needs credentials that are not configured.
type ErrAuthRequired struct {
	Platform Platform
}

func (e *ErrAuthRequired) Error() string {
	return fmt.Sprintf("platform %s: credentials not configured", e.Platform)
}
