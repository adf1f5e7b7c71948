package certificate

import (
	"regexp"
	"strings"
)

const (
	MaxFilenameLength = 50
	DefaultFilename   = "certificate"
)

// \w and \s are ASCII-only in RE2, so non-ASCII letters are dropped and
// the token is always plain ASCII.
var (
	unsafeFilenameChars = regexp.MustCompile(`[^\w\s-]`)
	filenameSeparators  = regexp.MustCompile(`[\s-]+`)
)

func filenameToken(name string) string {
	s := unsafeFilenameChars.ReplaceAllString(name, "")
	s = filenameSeparators.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	// Only ASCII survives the first pass, so byte length equals rune length.
	if len(s) > MaxFilenameLength {
		s = strings.TrimRight(s[:MaxFilenameLength], "_")
	}
	return s
}

// SanitizeFilename reduces a name to a filesystem-safe token of at most
// MaxFilenameLength characters, or DefaultFilename when nothing survives.
func SanitizeFilename(name string) string {
	if s := filenameToken(name); s != "" {
		return s
	}
	return DefaultFilename
}

// DownloadName is the suggested file name for a rendered certificate.
func DownloadName(name string) string {
	if s := filenameToken(name); s != "" {
		return s + "_certificate.png"
	}
	return DefaultFilename + ".png"
}
