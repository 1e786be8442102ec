package config

import "fmt"

// ModuleName is the canonical name of this module, used by the CLI and
// the metrics namespace.
const ModuleName = "autousd"

// Set via -ldflags during build.
var (
	Commit    = "unknown"
	BuildDate = "unknown"
)

// GetFormattedBuildArgs returns "<module> @ <commit> (<build date>)".
func GetFormattedBuildArgs() string {
	return fmt.Sprintf("%v @ %v (%v)", ModuleName, Commit, BuildDate)
}
