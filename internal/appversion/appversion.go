// Package appversion reports which build of mojocode is running.
package appversion

import "runtime/debug"

// Set at build time via -ldflags "-X .../appversion.version=v1.2.3 -X .../appversion.commit=abc".
var (
	version = "dev"
	commit  = ""
)

// String returns the version, followed by the short commit in parentheses
// when one is known. Without an ldflags commit the VCS stamp embedded by the
// go tool is used.
func String() string {
	c := commit
	if c == "" {
		c = vcsRevision(debug.ReadBuildInfo)
	}
	if c == "" {
		return version
	}
	if len(c) > 12 {
		c = c[:12]
	}
	return version + " (" + c + ")"
}

func vcsRevision(read func() (*debug.BuildInfo, bool)) string {
	info, ok := read()
	if !ok {
		return ""
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" {
			return s.Value
		}
	}
	return ""
}
