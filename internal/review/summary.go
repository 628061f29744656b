package review

import (
	"fmt"
	"strings"
)

// CleanSummary is the review body when there is nothing to report.
const CleanSummary = "🤖 **AI Code Review**: ✅ No issues found. The code looks clean!"

const (
	maxCriticalEntries = 3
	criticalLineRunes  = 80
)

// Category is a finding class recognised by its marker.
type Category struct {
	Marker   string
	Label    string
	Critical bool
}

// Categories in match priority order. A comment belongs to the first
// category whose marker appears in its body.
var Categories = []Category{
	{Marker: "🐛", Label: "Bug", Critical: true},
	{Marker: "🔒", Label: "Security", Critical: true},
	{Marker: "⚡", Label: "Performance"},
	{Marker: "🧹", Label: "Style"},
	{Marker: "💡", Label: "Suggestion"},
}

// Classify returns the index into Categories for body, or -1.
func Classify(body string) int {
	for i, c := range Categories {
		if strings.Contains(body, c.Marker) {
			return i
		}
	}
	return -1
}

// BuildSummary renders the review body for comments.
func BuildSummary(comments []Comment) string {
	if len(comments) == 0 {
		return CleanSummary
	}

	counts := make([]int, len(Categories))
	var critical []string
	for _, c := range comments {
		idx := Classify(c.Body)
		if idx < 0 {
			continue
		}
		counts[idx]++
		if Categories[idx].Critical && len(critical) < maxCriticalEntries {
			critical = append(critical, fmt.Sprintf("- %s: %s", c.Path, firstLine(c.Body, criticalLineRunes)))
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🤖 **AI Code Review**: %d comment(s)\n", len(comments))

	var rows []string
	for i, cat := range Categories {
		if counts[i] > 0 {
			rows = append(rows, fmt.Sprintf("| %s %s | %d |", cat.Marker, cat.Label, counts[i]))
		}
	}
	if len(rows) > 0 {
		b.WriteString("\n| Category | Count |\n|---|---|\n")
		b.WriteString(strings.Join(rows, "\n"))
		b.WriteString("\n")
	}

	if len(critical) > 0 {
		b.WriteString("\n**Major issues**\n")
		b.WriteString(strings.Join(critical, "\n"))
		b.WriteString("\n")
	}

	return strings.TrimRight(b.String(), "\n")
}

func firstLine(body string, limit int) string {
	line, _, _ := strings.Cut(body, "\n")
	line = strings.TrimSpace(line)
	r := []rune(line)
	if len(r) > limit {
		return string(r[:limit])
	}
	return line
}
