package message

import (
	"encoding/json"
	"strings"
)

// EncodeLikes renders interests the way the user_info.likes column stores
// them: a JSON array. Empty interests encode as ok=false, meaning NULL.
func EncodeLikes(interests []string) (s string, ok bool) {
	if len(interests) == 0 {
		return "", false
	}
	b, err := json.Marshal(interests)
	if err != nil {
		return "", false
	}
	return string(b), true
}

// DecodeLikes parses a likes column value. Rows written before likes became
// a JSON array hold a bare string, which decodes as a single interest.
func DecodeLikes(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err == nil {
		if len(out) == 0 {
			return nil
		}
		return out
	}
	var single string
	if err := json.Unmarshal([]byte(raw), &single); err == nil {
		return []string{single}
	}
	return []string{raw}
}
