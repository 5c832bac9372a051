package classifier

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// Parse extracts matches from a model answer. It accepts raw JSON, JSON in a
// fenced code block with an optional language tag, and JSON surrounded by
// prose. Items with a missing or non-integer id are dropped.
func Parse(text string) Result {
	raw := text
	text = stripFence(strings.TrimSpace(text))
	if text == "" {
		return Unparseable{Raw: raw}
	}

	items, ok := decodeMatches(text)
	if !ok {
		start := strings.IndexByte(text, '{')
		end := strings.LastIndexByte(text, '}')
		if start < 0 || end <= start {
			return Unparseable{Raw: raw}
		}
		if items, ok = decodeMatches(text[start : end+1]); !ok {
			return Unparseable{Raw: raw}
		}
	}

	matches := make([]Match, 0, len(items))
	for _, item := range items {
		if m, ok := decodeMatch(item); ok {
			matches = append(matches, m)
		}
	}
	return Matches{Items: matches}
}

// stripFence removes ``` markers and a language tag such as "json".
func stripFence(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.Trim(text, "`")
	tag := strings.IndexFunc(text, func(r rune) bool { return !unicode.IsLetter(r) })
	if tag > 0 {
		text = text[tag:]
	} else if tag < 0 {
		text = ""
	}
	return strings.TrimSpace(text)
}

// decodeMatches reports false unless text is a JSON object. A missing
// "matches" key decodes to no items.
func decodeMatches(text string) ([]json.RawMessage, bool) {
	if !strings.HasPrefix(text, "{") {
		return nil, false
	}
	var envelope struct {
		Matches json.RawMessage `json:"matches"`
	}
	if err := json.Unmarshal([]byte(text), &envelope); err != nil {
		return nil, false
	}
	m := bytes.TrimSpace(envelope.Matches)
	if len(m) == 0 || bytes.Equal(m, []byte("null")) {
		return nil, true
	}
	var items []json.RawMessage
	if err := json.Unmarshal(m, &items); err != nil {
		return nil, false
	}
	return items, true
}

func decodeMatch(item json.RawMessage) (Match, bool) {
	var fields struct {
		ID      json.RawMessage `json:"id"`
		Summary json.RawMessage `json:"summary"`
	}
	if err := json.Unmarshal(item, &fields); err != nil {
		return Match{}, false
	}
	id, ok := parseID(fields.ID)
	if !ok {
		return Match{}, false
	}
	var summary string
	if err := json.Unmarshal(fields.Summary, &summary); err != nil {
		summary = ""
	}
	return Match{ID: id, Summary: strings.TrimSpace(summary)}, true
}

// parseID accepts integral JSON numbers and numeric strings.
func parseID(raw json.RawMessage) (int64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		return id, err == nil && id != 0
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, false
	}
	if f != math.Trunc(f) || f == 0 || math.Abs(f) > 1<<53 {
		return 0, false
	}
	return int64(f), true
}
