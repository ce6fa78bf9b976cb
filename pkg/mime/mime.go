// Package mime guesses a MIME type from a file extension when the platform's
// own content-type lookup comes back empty.
package mime

import (
	"path/filepath"
	"strings"
)

// MIME types produced by the fallback table.
const (
	PackageArchive = "application/vnd.android.package-archive"
	Image          = "image/*"
	Video          = "video/*"
	Audio          = "audio/*"
	Wildcard       = "*/*"
)

// Rule names reported by Match.
const (
	RuleAPK      = "apk"
	RuleImage    = "image"
	RuleVideo    = "video"
	RuleAudio    = "audio"
	RuleWildcard = "wildcard"
)

type rule struct {
	name       string
	mimeType   string
	extensions map[string]struct{}
}

func newRule(name, mimeType string, exts ...string) rule {
	set := make(map[string]struct{}, len(exts))
	for _, ext := range exts {
		set[ext] = struct{}{}
	}
	return rule{name: name, mimeType: mimeType, extensions: set}
}

// rules are evaluated in order; the first match wins.
// Supported media formats follow the Android media-formats table.
var rules = []rule{
	newRule(RuleAPK, PackageArchive, "apk"),
	newRule(RuleImage, Image, "jpg", "jpeg", "png", "bmp", "webp", "heif"),
	newRule(RuleVideo, Video, "mp4", "avi", "webm", "mkv", "3gp"),
	newRule(RuleAudio, Audio, "flac", "mp3", "wav", "ogg"),
}

// Resolve returns the MIME type for a file extension such as "png".
// Matching is exact and case-sensitive. Unknown extensions, including the
// empty string, resolve to Wildcard.
func Resolve(extension string) string {
	mimeType, _ := Match(extension)
	return mimeType
}

// Match is Resolve that also reports the name of the rule that matched.
func Match(extension string) (mimeType, ruleName string) {
	for _, r := range rules {
		if _, ok := r.extensions[extension]; ok {
			return r.mimeType, r.name
		}
	}
	return Wildcard, RuleWildcard
}

// Extension returns the part of the file name after its last '.', or "" if
// the name has no '.'. Directories in name are ignored.
func Extension(name string) string {
	base := filepath.Base(name)
	idx := strings.LastIndex(base, ".")
	if idx < 0 {
		return ""
	}
	return base[idx+1:]
}
