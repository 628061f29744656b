package reviewer

import (
	"bytes"
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"github.com/prreviewer/internal/review"
)

// arrayRe takes the widest bracketed span, so prose before or after the
// array is ignored.
var arrayRe = regexp.MustCompile(`(?s)\[.*\]`)

// ParseResult describes how a reviewer reply was decoded.
type ParseResult struct {
	Findings []review.Finding
	Repaired bool
	Found    bool
}

// ParseFindings decodes a reviewer reply into findings. The reply should hold
// a JSON array of {"line", "body"} objects, possibly surrounded by text.
// Malformed JSON is passed through jsonrepair once. A reply that still cannot
// be decoded yields no findings; it is never an error. Entries are converted
// as-is and validated by the caller.
func ParseFindings(text string) ParseResult {
	match := arrayRe.FindString(text)
	if match == "" {
		return ParseResult{}
	}

	var items []json.RawMessage
	if err := json.Unmarshal([]byte(match), &items); err == nil {
		return ParseResult{Findings: convert(items), Found: true}
	}

	repaired, err := jsonrepair.JSONRepair(match)
	if err != nil {
		return ParseResult{}
	}
	if err := json.Unmarshal([]byte(repaired), &items); err != nil {
		return ParseResult{}
	}
	return ParseResult{Findings: convert(items), Repaired: true, Found: true}
}

type rawFinding struct {
	Line json.RawMessage `json:"line"`
	Body json.RawMessage `json:"body"`
}

func convert(items []json.RawMessage) []review.Finding {
	out := make([]review.Finding, 0, len(items))
	for _, item := range items {
		var raw rawFinding
		if err := json.Unmarshal(item, &raw); err != nil {
			continue
		}
		out = append(out, review.Finding{
			Line: coerceLine(raw.Line),
			Body: coerceBody(raw.Body),
		})
	}
	return out
}

// coerceLine accepts a JSON number or a numeric string. Anything else is 0.
func coerceLine(raw json.RawMessage) int {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0
	}

	var s string
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0
		}
	} else {
		s = string(raw)
	}

	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || f != math.Trunc(f) || f > math.MaxInt32 || f < math.MinInt32 {
		return 0
	}
	return int(f)
}

func coerceBody(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}
