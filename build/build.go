package build

import (
	"fmt"
	"runtime/debug"
)

// Set with -ldflags "-X github.com/breez/lnunify/build.tag=..."
var (
	tag      string
	revision string
)

func setting(key string) (string, bool) {
	buildInfo, ok := debug.ReadBuildInfo()
	if !ok {
		return "", false
	}

	for _, s := range buildInfo.Settings {
		if s.Key == key {
			return s.Value, true
		}
	}

	return "", false
}

func GetRevision() string {
	if revision != "" {
		return revision
	}

	if v, ok := setting("vcs.revision"); ok {
		revision = v
		return revision
	}

	return "unknown"
}

func GetTag() string {
	if tag != "" {
		return tag
	}

	return "none"
}

// Version is the version string shown by the cli, e.g.
// `v0.1.0 commit=1a2b3c (modified)`.
func Version() string {
	v := fmt.Sprintf("%s commit=%s", GetTag(), GetRevision())
	if modified, ok := setting("vcs.modified"); ok && modified == "true" {
		v += " (modified)"
	}
	return v
}
