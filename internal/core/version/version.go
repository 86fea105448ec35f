// Package version reports the build stamped in with -ldflags, e.g.
// -X 'vocabot/internal/core/version.version=v0.3.0'
package version

// BuildInfo describes the running binary
type BuildInfo struct {
	Service string `json:"service"`
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Info returns the build of service
func Info(service string) BuildInfo {
	return BuildInfo{Service: service, Version: version, Commit: commit, Date: date}
}
