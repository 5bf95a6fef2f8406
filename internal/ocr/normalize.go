package ocr

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
)

// wrapperKeys are checked in order; the first whose value is a list wins.
var wrapperKeys = []string{"data", "results", "result", "rows", "entries", "rankings"}

// Normalize parses a vision response body into rows. A top-level array is
// the row set; an object is unwrapped through wrapperKeys or, failing that,
// becomes a single row.
func Normalize(body string) ([]map[string]any, error) {
	doc, err := decodeJSON(body)
	if err != nil {
		return nil, err
	}

	switch v := doc.(type) {
	case []any:
		return rowsOf(v), nil
	case map[string]any:
		for _, key := range wrapperKeys {
			if list, ok := v[key].([]any); ok {
				return rowsOf(list), nil
			}
		}
		return []map[string]any{v}, nil
	default:
		return nil, eris.Errorf("ocr: unexpected top-level JSON %T", doc)
	}
}

func rowsOf(list []any) []map[string]any {
	rows := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if row, ok := item.(map[string]any); ok {
			rows = append(rows, row)
		}
	}
	return rows
}

// decodeJSON strips markdown fences and any prose before the first JSON
// value, then decodes that value.
func decodeJSON(body string) (any, error) {
	s := stripFences(body)
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return nil, eris.New("ocr: no JSON in response")
	}

	var doc any
	if err := json.NewDecoder(strings.NewReader(s[start:])).Decode(&doc); err != nil {
		return nil, eris.Wrap(err, "ocr: parse response")
	}
	return doc, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// Drop the info string (e.g. "json") on the opening fence line.
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	if end := strings.LastIndex(s, "```"); end >= 0 {
		s = s[:end]
	}
	return strings.TrimSpace(s)
}
