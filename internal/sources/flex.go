package sources

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// The flex types decode whatever an integration backend sends for a field and
// never fail; unreadable values become the zero value.

// flexName accepts "High" as well as {"name": "High"} or {"displayName": "Kim"}.
type flexName string

func (n *flexName) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*n = flexName(strings.TrimSpace(s))
		return nil
	}
	var obj struct {
		Name        string `json:"name"`
		DisplayName string `json:"displayName"`
		Value       string `json:"value"`
	}
	if err := json.Unmarshal(b, &obj); err == nil {
		for _, v := range []string{obj.Name, obj.DisplayName, obj.Value} {
			if v != "" {
				*n = flexName(strings.TrimSpace(v))
				return nil
			}
		}
	}
	*n = ""
	return nil
}

var flexTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000-0700",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// flexTime accepts RFC 3339, tracker-style offsets and bare dates.
type flexTime struct {
	time.Time
}

func (t *flexTime) UnmarshalJSON(b []byte) error {
	t.Time = time.Time{}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return nil
	}
	s = strings.TrimSpace(s)
	for _, layout := range flexTimeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return nil
}

// Ptr returns nil for the zero time.
func (t flexTime) Ptr() *time.Time {
	if t.IsZero() {
		return nil
	}
	v := t.Time
	return &v
}

// flexFloat accepts 3, 3.5 and "3.5".
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	*f = 0
	var n float64
	if err := json.Unmarshal(b, &n); err == nil {
		*f = flexFloat(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		if n, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil && !math.IsNaN(n) && !math.IsInf(n, 0) {
			*f = flexFloat(n)
		}
	}
	return nil
}

// flexText accepts a plain string or a rich-text document tree and keeps the
// text content only.
type flexText string

func (t *flexText) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*t = flexText(s)
		return nil
	}
	var doc any
	if err := json.Unmarshal(b, &doc); err != nil {
		*t = ""
		return nil
	}
	var buf bytes.Buffer
	collectText(doc, &buf)
	*t = flexText(strings.TrimSpace(buf.String()))
	return nil
}

func collectText(node any, buf *bytes.Buffer) {
	switch v := node.(type) {
	case map[string]any:
		if text, ok := v["text"].(string); ok {
			buf.WriteString(text)
		}
		if content, ok := v["content"]; ok {
			collectText(content, buf)
		}
		if v["type"] == "paragraph" {
			buf.WriteString("\n")
		}
	case []any:
		for _, child := range v {
			collectText(child, buf)
		}
	}
}

// truncateRunes cuts s to at most n runes.
func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
