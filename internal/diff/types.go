package diff

import "strings"

// LineKind tags a hunk line by its leading marker.
type LineKind int

const (
	LineContext LineKind = iota
	LineAddition
	LineDeletion
)

func (k LineKind) String() string {
	switch k {
	case LineAddition:
		return "addition"
	case LineDeletion:
		return "deletion"
	default:
		return "context"
	}
}

// HunkLine is one raw diff line inside a hunk, marker included.
type HunkLine struct {
	Kind LineKind
	Text string
}

// NewHunkLine classifies raw by its first byte.
func NewHunkLine(raw string) HunkLine {
	kind := LineContext
	switch {
	case strings.HasPrefix(raw, "+"):
		kind = LineAddition
	case strings.HasPrefix(raw, "-"):
		kind = LineDeletion
	}
	return HunkLine{Kind: kind, Text: raw}
}

// Hunk is one contiguous change region. StartLine is the first line of the
// hunk in the new version of the file.
type Hunk struct {
	StartLine int
	Lines     []HunkLine
}

// FileDiff holds the hunks of a single file, keyed by its destination path.
type FileDiff struct {
	Path  string
	Hunks []Hunk
}

// Covers reports whether line is a new-file line that appears in one of the
// file's hunks.
func (f FileDiff) Covers(line int) bool {
	for _, h := range f.Hunks {
		for i, l := range h.Lines {
			if l.Kind == LineDeletion {
				continue
			}
			if AbsoluteLine(h, i) == line {
				return true
			}
		}
	}
	return false
}

// Document is a parsed multi-file unified diff, files in input order.
type Document struct {
	Files []FileDiff
}

// Reviewable returns the files that have at least one hunk.
func (d *Document) Reviewable() []FileDiff {
	out := make([]FileDiff, 0, len(d.Files))
	for _, f := range d.Files {
		if len(f.Hunks) > 0 {
			out = append(out, f)
		}
	}
	return out
}
