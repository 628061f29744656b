package diff

import (
	"regexp"
	"strconv"
	"strings"
)

const (
	fileHeaderPrefix = "diff --git"
	newPathPrefix    = "+++ b/"
)

// Example: @@ -12,7 +14,9 @@ func main() {
var hunkHeaderRe = regexp.MustCompile(`^@@ (?:-\d+(?:,\d+)? )?\+(\d+)(?:,\d+)?`)

// Parser parses git diff output into structured data
type Parser struct{}

// NewParser creates a new diff parser
func NewParser() *Parser {
	return &Parser{}
}

// Parse splits a unified diff into per-file hunks. It never fails: input it
// cannot make sense of is skipped, so a malformed diff yields a smaller
// document rather than an error. Deletion lines are not stored.
func (p *Parser) Parse(diffText string) *Document {
	st := parseState{file: -1, hunk: -1}
	if diffText == "" {
		return &st.doc
	}
	for _, line := range strings.Split(diffText, "\n") {
		st = st.step(strings.TrimSuffix(line, "\r"))
	}
	return &st.doc
}

// parseState is the fold accumulator: the document built so far plus the
// index of the current file and of its most recent hunk (-1 when absent).
type parseState struct {
	doc  Document
	file int
	hunk int
}

func (s parseState) step(line string) parseState {
	switch {
	case strings.HasPrefix(line, fileHeaderPrefix):
		s.file, s.hunk = -1, -1
		return s
	case strings.HasPrefix(line, newPathPrefix):
		s.doc.Files = append(s.doc.Files, FileDiff{Path: line[len(newPathPrefix):]})
		s.file, s.hunk = len(s.doc.Files)-1, -1
		return s
	}

	if m := hunkHeaderRe.FindStringSubmatch(line); m != nil {
		if s.file < 0 {
			return s
		}
		start, err := strconv.Atoi(m[1])
		if err != nil {
			return s
		}
		if start < 1 {
			start = 1
		}
		f := &s.doc.Files[s.file]
		f.Hunks = append(f.Hunks, Hunk{StartLine: start})
		s.hunk = len(f.Hunks) - 1
		return s
	}

	if s.file < 0 || s.hunk < 0 || strings.HasPrefix(line, "-") {
		return s
	}
	h := &s.doc.Files[s.file].Hunks[s.hunk]
	h.Lines = append(h.Lines, NewHunkLine(line))
	return s
}
