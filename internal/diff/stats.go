package diff

import (
	"fmt"
	"strings"

	"github.com/bluekeyes/go-gitdiff/gitdiff"
)

// Stats summarises a whole pull request diff.
type Stats struct {
	Files   int
	Binary  int
	Added   int
	Deleted int
}

// ComputeStats counts files and changed lines using go-gitdiff. It is used
// for reporting only; review dispatch relies on Parser.
func ComputeStats(fullDiff string) (Stats, error) {
	files, _, err := gitdiff.Parse(strings.NewReader(fullDiff))
	if err != nil {
		return Stats{}, fmt.Errorf("failed to parse diff for stats: %w", err)
	}

	var s Stats
	for _, f := range files {
		s.Files++
		if f.IsBinary {
			s.Binary++
		}
		for _, frag := range f.TextFragments {
			s.Added += int(frag.LinesAdded)
			s.Deleted += int(frag.LinesDeleted)
		}
	}
	return s, nil
}

func (s Stats) String() string {
	out := fmt.Sprintf("%d file(s) changed, +%d/-%d", s.Files, s.Added, s.Deleted)
	if s.Binary > 0 {
		out += fmt.Sprintf(" (%d binary)", s.Binary)
	}
	return out
}
