// Package extract recovers structured results from completion text that is not
// guaranteed to be well-formed JSON.
package extract

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// Result is a decoded JSON object returned by the model.
type Result map[string]any

// String returns the string value at key, or "" when missing or not a string.
func (r Result) String(key string) string {
	if r == nil {
		return ""
	}
	s, _ := r[key].(string)
	return s
}

// Text is like String but also formats numbers and booleans, which models
// emit for fields such as a stage number.
func (r Result) Text(key string) string {
	switch v := r[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

var (
	fenceOpen  = regexp.MustCompile("(?i)^```[a-z0-9_+-]*\\s*")
	fenceClose = regexp.MustCompile("\\s*```$")

	repairer = strings.NewReplacer(`\n`, " ", `\"`, `"`, "\n", " ")
)

var bracketPairs = [][2]string{
	{"「", "」"},
	{"『", "』"},
}

// Extract unwraps code fences and decorative brackets, then parses the span
// between the first '{' and the last '}'. It returns false for anything that
// does not decode to a JSON object.
func Extract(raw string) (Result, bool) {
	text := unwrap(raw)

	first := strings.Index(text, "{")
	last := strings.LastIndex(text, "}")
	if first == -1 || last == -1 || last <= first {
		return nil, false
	}
	candidate := text[first : last+1]

	if r, ok := decodeObject(candidate); ok {
		return r, true
	}
	return decodeObject(repairer.Replace(candidate))
}

func decodeObject(s string) (Result, bool) {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, false
	}
	obj, ok := v.(map[string]any)
	if !ok || obj == nil {
		return nil, false
	}
	return Result(obj), true
}

// unwrap strips fences and one bracket pair per pass until nothing changes.
func unwrap(s string) string {
	s = strings.TrimSpace(s)
	for {
		prev := s
		s = stripFences(s)
		s = stripBrackets(s)
		if s == prev {
			return s
		}
	}
}

func stripFences(s string) string {
	s = fenceOpen.ReplaceAllString(s, "")
	s = fenceClose.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

func stripBrackets(s string) string {
	for _, p := range bracketPairs {
		if len(s) >= len(p[0])+len(p[1]) && strings.HasPrefix(s, p[0]) && strings.HasSuffix(s, p[1]) {
			return strings.TrimSpace(s[len(p[0]) : len(s)-len(p[1])])
		}
	}
	return s
}
