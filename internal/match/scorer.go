// Package match scores how likely a platform artist is the same real-world
// artist as a seed, and ranks candidates by that confidence.
package match

import (
	"cmp"
	"slices"
	"strings"

	"github.com/tinygems/tinygems/internal/provider"
)

// Seed is the reference artist candidates are scored against.
type Seed struct {
	Name     string
	Genres   []string
	Location string
	// ConnectedURLs are the profile URLs already confirmed in the session.
	// A candidate linking to one of them earns the reciprocal-link bonus.
	ConnectedURLs []string
}

// Weights are the additive bonuses for secondary signals. Each is the most
// that signal can contribute.
type Weights struct {
	Genre           float64 `yaml:"genre" json:"genre"`
	LocationExact   float64 `yaml:"location_exact" json:"location_exact"`
	LocationPartial float64 `yaml:"location_partial" json:"location_partial"`
	ReciprocalLink  float64 `yaml:"reciprocal_link" json:"reciprocal_link"`
}

// DefaultWeights returns the tuned default bonus weights.
func DefaultWeights() Weights {
	return Weights{
		Genre:           0.10,
		LocationExact:   0.05,
		LocationPartial: 0.03,
		ReciprocalLink:  0.15,
	}
}

// Scorer computes candidate confidence. It does no I/O.
type Scorer struct {
	weights Weights
}

// NewScorer creates a Scorer with the given weights.
func NewScorer(w Weights) *Scorer {
	return &Scorer{weights: w}
}

// Score returns the confidence in [0,1] that candidate is the seed artist.
// Name similarity is the base; secondary signals add capped bonuses.
func (s *Scorer) Score(seed Seed, candidate provider.ArtistData) float64 {
	score := NameSimilarity(seed.Name, candidate.Name)
	score += s.weights.Genre * genreOverlap(seed.Genres, candidate.Metadata.Genres)
	score += s.locationBonus(seed.Location, candidate.Metadata.Location)
	if hasReciprocalLink(seed.ConnectedURLs, candidate.Links) {
		score += s.weights.ReciprocalLink
	}
	return clamp(score)
}

// Rank scores every artist, sorts the resulting candidates, and keeps at
// most limit of them (limit <= 0 keeps all).
func (s *Scorer) Rank(seed Seed, artists []provider.ArtistData, limit int) []Candidate {
	out := make([]Candidate, 0, len(artists))
	for _, a := range artists {
		out = append(out, NewCandidate(a, s.Score(seed, a)))
	}
	SortCandidates(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (s *Scorer) locationBonus(a, b string) float64 {
	a, b = Normalize(a), Normalize(b)
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return s.weights.LocationExact
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return s.weights.LocationPartial
	}
	return 0
}

// NameSimilarity is the normalized Levenshtein similarity of two names after
// Normalize. Identical normalized names score 1; empty names score 0. Names
// that are all symbols ("!!!", "∆") are compared by their symbol form.
func NameSimilarity(a, b string) float64 {
	na, nb := Normalize(a), Normalize(b)
	if na == "" || nb == "" {
		na, nb = SymbolForm(a), SymbolForm(b)
	}
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}
	ra, rb := []rune(na), []rune(nb)
	d := levenshtein(ra, rb)
	return 1 - float64(d)/float64(max(len(ra), len(rb)))
}

func levenshtein(a, b []rune) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

// genreOverlap is the Jaccard index of the normalized genre sets, or 0 when
// either side reports no genres.
func genreOverlap(a, b []string) float64 {
	sa, sb := genreSet(a), genreSet(b)
	if len(sa) == 0 || len(sb) == 0 {
		return 0
	}
	var inter int
	for g := range sa {
		if sb[g] {
			inter++
		}
	}
	union := len(sa) + len(sb) - inter
	return float64(inter) / float64(union)
}

func genreSet(genres []string) map[string]bool {
	set := make(map[string]bool, len(genres))
	for _, g := range genres {
		if n := Normalize(g); n != "" {
			set[n] = true
		}
	}
	return set
}

func hasReciprocalLink(connected []string, links map[provider.Platform]string) bool {
	if len(connected) == 0 || len(links) == 0 {
		return false
	}
	for _, c := range connected {
		nc := NormalizeURL(c)
		if nc == "" {
			continue
		}
		for _, l := range links {
			if NormalizeURL(l) == nc {
				return true
			}
		}
	}
	return false
}

func clamp(v float64) float64 {
	return min(max(v, 0), 1)
}

// Candidate is one platform's suggestion for the seed artist.
type Candidate struct {
	Platform          provider.Platform   `json:"platform"`
	ArtistID          string              `json:"artist_id"`
	ArtistName        string              `json:"artist_name"`
	ArtistURL         string              `json:"artist_url"`
	ThumbnailImageURL string              `json:"thumbnail_image_url,omitempty"`
	Confidence        float64             `json:"confidence"`
	Data              provider.ArtistData `json:"data"`
}

// NewCandidate wraps an artist record with its confidence.
func NewCandidate(a provider.ArtistData, confidence float64) Candidate {
	return Candidate{
		Platform:          a.Platform,
		ArtistID:          a.PlatformID,
		ArtistName:        a.Name,
		ArtistURL:         a.URL,
		ThumbnailImageURL: a.AvatarURL,
		Confidence:        confidence,
		Data:              a,
	}
}

// SortCandidates orders candidates by descending confidence. Ties go to the
// candidate with an avatar, then to the higher-priority platform. Name and ID
// make the order total.
func SortCandidates(cs []Candidate) {
	slices.SortStableFunc(cs, compareCandidates)
}

func compareCandidates(a, b Candidate) int {
	if c := cmp.Compare(b.Confidence, a.Confidence); c != 0 {
		return c
	}
	if hasA, hasB := a.ThumbnailImageURL != "", b.ThumbnailImageURL != ""; hasA != hasB {
		if hasA {
			return -1
		}
		return 1
	}
	if c := cmp.Compare(a.Platform.Priority(), b.Platform.Priority()); c != 0 {
		return c
	}
	if c := cmp.Compare(a.ArtistName, b.ArtistName); c != 0 {
		return c
	}
	return cmp.Compare(a.ArtistID, b.ArtistID)
}

