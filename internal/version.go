package internal

import "fmt"

var (
	commitVersion string = "v0.1.0" // Updated when building using -ldflags
	commitDate    string            // commitDate in Epoch seconds (inserted using -ldflags)
)

// GetVersion - get version and also commitHash and commitDate if inserted via Makefile
func GetVersion() string {
	if commitDate == "" {
		return commitVersion
	}
	return fmt.Sprintf("%s, date: %s", commitVersion, commitDate)
}
