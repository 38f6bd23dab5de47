// Package version holds build metadata injected with -ldflags.
package version

// Set at build time:
//
//	go build -ldflags "-X github.com/tinygems/tinygems/internal/version.Version=v1.2.0 -X github.com/tinygems/tinygems/internal/version.Commit=$(git rev-parse --short HEAD)"
var (
	Version = "dev"
	Commit  = "unknown"
)

// UserAgent identifies tinyGems to platforms that ask for a contact string.
func UserAgent() string {
	return "tinyGems/" + Version + " (+https://github.com/tinygems/tinygems)"
}
