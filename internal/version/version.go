// Package version reports the delaydeck release and build metadata.
//
// Commit and BuildDate are set with -ldflags at build time, for example:
//
//	-ldflags "-X github.com/bhandras/delaydeck/internal/version.Commit=$(git rev-parse --short HEAD)"
package version

import (
	"fmt"
	"strings"
)

var (
	// Commit is the git revision of this build.
	Commit string
	// BuildDate is when this build was made.
	BuildDate string
)

// preReleaseAlphabet lists the characters semver allows in a pre-release tag.
const preReleaseAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz-."

const (
	major uint = 0
	minor uint = 3
	patch uint = 0

	preRelease = ""
)

// Version returns the semantic version, e.g. "0.3.0" or "0.3.0-rc.1".
func Version() string {
	v := fmt.Sprintf("%d.%d.%d", major, minor, patch)
	if tag := sanitize(preRelease); tag != "" {
		v += "-" + tag
	}
	return v
}

// Full returns the version followed by whatever build metadata is known.
func Full() string {
	var meta []string
	if c := strings.TrimSpace(Commit); c != "" {
		meta = append(meta, "commit="+c)
	}
	if d := strings.TrimSpace(BuildDate); d != "" {
		meta = append(meta, "built="+d)
	}
	if len(meta) == 0 {
		return Version()
	}
	return Version() + " (" + strings.Join(meta, ", ") + ")"
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(preReleaseAlphabet, r) {
			return r
		}
		return -1
	}, s)
}
