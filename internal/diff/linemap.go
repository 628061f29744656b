package diff

import "fmt"

// AbsoluteLine returns the new-file line number occupied by the line at index
// within h. Deletion lines do not advance the count, so hunks that keep their
// deletions for context still map correctly. An index outside h.Lines is a
// programming error and panics.
func AbsoluteLine(h Hunk, index int) int {
	if index < 0 || index >= len(h.Lines) {
		panic(fmt.Sprintf("diff: hunk line index %d out of range [0,%d)", index, len(h.Lines)))
	}
	line := h.StartLine
	for _, l := range h.Lines[:index] {
		if l.Kind != LineDeletion {
			line++
		}
	}
	return line
}
