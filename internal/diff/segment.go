package diff

import (
	"strings"
	"unicode/utf8"
)

// DefaultMaxFileDiffChars bounds the per-file diff text handed to a reviewer.
const DefaultMaxFileDiffChars = 10000

// FileSegment returns the portion of fullDiff that belongs to path: the
// section between two "diff --git" markers whose destination line is exactly
// "+++ b/<path>". The marker is kept at the start of the returned text.
func FileSegment(fullDiff, path string) (string, bool) {
	want := newPathPrefix + path
	for i, seg := range strings.Split(fullDiff, fileHeaderPrefix) {
		if !hasLine(seg, want) {
			continue
		}
		if i == 0 {
			return seg, true
		}
		return fileHeaderPrefix + seg, true
	}
	return "", false
}

func hasLine(text, want string) bool {
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSuffix(line, "\r") == want {
			return true
		}
	}
	return false
}

// Truncate cuts s to at most max characters without splitting a UTF-8
// sequence. A non-positive max leaves s untouched.
func Truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}
