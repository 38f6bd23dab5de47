package resolve

import (
	"math"

	"github.com/tinygems/tinygems/internal/provider"
)

// Reference audience sizes that map to a normalized figure of 100.
const (
	spotifyFollowerRef    = 10_000_000
	soundcloudFollowerRef = 1_000_000
	youtubeSubscriberRef  = 10_000_000
)

// platformWeights scale each platform's normalized figure in the combined
// popularity. Figures are already normalized to 0-100, so the weights only
// express how much each platform's audience signal is trusted.
var platformWeights = map[provider.Platform]float64{
	provider.Spotify:    1.0,
	provider.YouTube:    0.9,
	provider.SoundCloud: 0.8,
	provider.Tidal:      0.6,
}

const defaultPlatformWeight = 0.5

// PlatformWeight returns the combined-popularity weight for a platform.
func PlatformWeight(p provider.Platform) float64 {
	if w, ok := platformWeights[p]; ok {
		return w
	}
	return defaultPlatformWeight
}

// NormalizedAudience maps a platform's raw audience stats onto 0-100.
// It reports false when the platform exposes no usable audience figure.
func NormalizedAudience(p provider.Platform, s provider.AudienceStats) (float64, bool) {
	switch p {
	case provider.Spotify:
		switch {
		case s.Popularity != nil && s.Followers > 0:
			return 0.5*clampPercent(*s.Popularity) + 0.5*logScale(s.Followers, spotifyFollowerRef), true
		case s.Popularity != nil:
			return clampPercent(*s.Popularity), true
		case s.Followers > 0:
			return logScale(s.Followers, spotifyFollowerRef), true
		}
	case provider.SoundCloud:
		if s.Followers > 0 {
			return logScale(s.Followers, soundcloudFollowerRef), true
		}
	case provider.YouTube:
		if s.Subscribers > 0 {
			return logScale(s.Subscribers, youtubeSubscriberRef), true
		}
	case provider.Tidal:
		if s.Popularity != nil {
			return clampPercent(*s.Popularity * 100), true
		}
	}
	return 0, false
}

// CombinedPopularity is the weighted mean of the normalized audience figures
// of the given connected records. Records without a figure are skipped; the
// result is 0 when none has one. The per-platform figures are returned too.
func CombinedPopularity(connected []provider.ArtistData) (float64, map[provider.Platform]float64) {
	per := make(map[provider.Platform]float64)
	var sum, weights float64
	for _, d := range connected {
		stats, ok := d.Audience[d.Platform]
		if !ok {
			continue
		}
		figure, ok := NormalizedAudience(d.Platform, stats)
		if !ok {
			continue
		}
		w := PlatformWeight(d.Platform)
		per[d.Platform] = figure
		sum += w * figure
		weights += w
	}
	if weights == 0 {
		return 0, per
	}
	return sum / weights, per
}

// logScale maps a count onto 0-100 logarithmically, reaching 100 at ref.
func logScale(n int64, ref float64) float64 {
	if n <= 0 {
		return 0
	}
	return clampPercent(100 * math.Log10(1+float64(n)) / math.Log10(1+ref))
}

func clampPercent(v float64) float64 {
	return math.Min(math.Max(v, 0), 100)
}
