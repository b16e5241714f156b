// Package version reports the crewline release.
package version

import (
	_ "embed"
	"strings"
)

//go:embed VERSION
var versionContent string

// override is set at link time with
// -ldflags "-X github.com/ShayCichocki/crewline/internal/version.override=v1.2.3".
var override string

// Get returns the release version. A link-time override wins over the
// embedded VERSION file.
func Get() string {
	if v := strings.TrimSpace(override); v != "" {
		return strings.TrimPrefix(v, "v")
	}
	return strings.TrimSpace(versionContent)
}
