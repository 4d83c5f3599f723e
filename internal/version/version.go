// Package version holds the build identity of archscan.
package version

// These variables can be overridden at build time using ldflags:
// go build -ldflags "-X archscan/internal/version.Version=1.0.0 -X archscan/internal/version.Commit=abc123"
var (
	// Version is the semantic version of archscan
	Version = "0.4.0"

	// Commit is the git commit hash (set at build time)
	Commit = "unknown"

	// BuildDate is the build timestamp (set at build time)
	BuildDate = "unknown"
)

// Info returns a formatted version string
func Info() string {
	if Commit != "unknown" && len(Commit) > 7 {
		return Version + " (" + Commit[:7] + ")"
	}
	return Version
}

// Full returns complete version information
func Full() string {
	return "archscan version " + Version + "\n" +
		"Commit: " + Commit + "\n" +
		"Built: " + BuildDate
}

// Map returns the version fields for structured output.
func Map() map[string]string {
	return map[string]string{
		"version":   Version,
		"commit":    Commit,
		"buildDate": BuildDate,
	}
}
