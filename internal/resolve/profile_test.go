package resolve

import (
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/tinygems/tinygems/internal/provider"
)

func TestNormalizedAudience(t *testing.T) {
	tests := []struct {
		name     string
		platform provider.Platform
		stats    provider.AudienceStats
		want     float64
		ok       bool
	}{
		{"spotify popularity only", provider.Spotify, provider.AudienceStats{Popularity: popularity(42)}, 42, true},
		{"spotify followers at reference", provider.Spotify, provider.AudienceStats{Followers: 10_000_000}, 100, true},
		{"soundcloud followers above reference", provider.SoundCloud, provider.AudienceStats{Followers: 5_000_000}, 100, true},
		{"youtube no subscribers", provider.YouTube, provider.AudienceStats{Views: 1000}, 0, false},
		{"tidal popularity fraction", provider.Tidal, provider.AudienceStats{Popularity: popularity(0.25)}, 25, true},
		{"bandcamp has no figure", provider.Bandcamp, provider.AudienceStats{Followers: 10}, 0, false},
		{"apple music has no figure", provider.AppleMusic, provider.AudienceStats{}, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NormalizedAudience(tt.platform, tt.stats)
			if ok != tt.ok || math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("NormalizedAudience = (%f, %v), want (%f, %v)", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestCombinedPopularityIsScaleIndependent(t *testing.T) {
	// A huge raw YouTube count cannot swamp a modest Spotify figure beyond
	// the 0-100 normalized range.
	connected := []provider.ArtistData{
		{Platform: provider.Spotify, Audience: map[provider.Platform]provider.AudienceStats{
			provider.Spotify: {Popularity: popularity(20)},
		}},
		{Platform: provider.YouTube, Audience: map[provider.Platform]provider.AudienceStats{
			provider.YouTube: {Subscribers: 1_000_000_000},
		}},
	}
	got, per := CombinedPopularity(connected)
	want := (1.0*20 + 0.9*100) / 1.9
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("combined = %f, want %f", got, want)
	}
	if per[provider.YouTube] != 100 {
		t.Errorf("youtube figure = %f, want 100", per[provider.YouTube])
	}
}

func TestCombinedPopularityWithoutFigures(t *testing.T) {
	got, per := CombinedPopularity([]provider.ArtistData{{Platform: provider.Bandcamp}})
	if got != 0 || len(per) != 0 {
		t.Errorf("combined = %f, per = %v, want 0 and empty", got, per)
	}
}

func TestBuildProfileMerges(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	connected := []provider.ArtistData{
		{
			Platform:   provider.Spotify,
			PlatformID: "sp1",
			Name:       "Test Artist",
			URL:        "https://open.spotify.com/artist/sp1",
			Metadata:   provider.ArtistMetadata{Genres: []string{"Post-Rock", "ambient"}},
		},
		{
			Platform:   provider.Bandcamp,
			PlatformID: "testartist",
			Name:       "TEST ARTIST",
			URL:        "https://testartist.bandcamp.com",
			AvatarURL:  "https://f4.bcbits.com/img/1.jpg",
			Links:      map[provider.Platform]string{provider.Spotify: "https://open.spotify.com/artist/sp1", provider.Other: "https://testartist.com"},
			Metadata:   provider.ArtistMetadata{Genres: []string{"post rock", "drone"}, Location: "Glasgow, UK"},
		},
	}

	p := BuildProfile(connected, Overrides{}, now)
	if p.Name != "Test Artist" {
		t.Errorf("name = %q, want first connected name", p.Name)
	}
	if p.Location != "Glasgow, UK" || p.AvatarURL == "" {
		t.Errorf("location/avatar not filled from later records: %+v", p)
	}
	if diff := cmp.Diff([]string{"Post-Rock", "ambient", "drone"}, p.Genres); diff != "" {
		t.Errorf("genres mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]provider.Platform{provider.Spotify, provider.Bandcamp}, p.Connected()); diff != "" {
		t.Errorf("connected mismatch (-want +got):\n%s", diff)
	}
	wantExternal := map[provider.Platform]string{provider.Other: "https://testartist.com"}
	if diff := cmp.Diff(wantExternal, p.ExternalLinks); diff != "" {
		t.Errorf("external links mismatch (-want +got):\n%s", diff)
	}
	if p.PlatformIDs[provider.Bandcamp] != "testartist" {
		t.Errorf("platform ids = %v", p.PlatformIDs)
	}
	if !p.CreatedAt.Equal(now) {
		t.Errorf("created at = %v, want %v", p.CreatedAt, now)
	}

	o := BuildProfile(connected, Overrides{Name: " Renamed ", Gender: "female", Genres: []string{"Drone", "drone"}}, now)
	if o.Name != "Renamed" || o.Gender != "female" || o.Location != "Glasgow, UK" {
		t.Errorf("overrides not applied: %+v", o)
	}
	if diff := cmp.Diff([]string{"Drone"}, o.Genres); diff != "" {
		t.Errorf("override genres mismatch (-want +got):\n%s", diff)
	}
}
