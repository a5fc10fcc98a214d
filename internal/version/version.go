// Package version holds build metadata set with
// -ldflags "-X github.com/kailas-cloud/quizrag/internal/version.Version=...".
package version

import "fmt"

//nolint:revive // Set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// String renders "version (commit, date)" for startup logs and CLI banners.
func String() string {
	return fmt.Sprintf("%s (%s, %s)", Version, Commit, Date)
}
