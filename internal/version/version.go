// Package version carries build metadata injected with -ldflags.
package version

import "runtime"

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// String describes the mindwell client build.
func String() string {
	return For("mindwell")
}

// For describes the named program's build.
func For(program string) string {
	return program + " " + Version + " (commit=" + Commit + ", date=" + Date + ", go=" + runtime.Version() + ")"
}
