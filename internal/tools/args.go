package tools

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/ashita-ai/wyrmgate/internal/filter"
)

// Args are the decoded arguments of one tool call. Values arrive from JSON,
// so numbers are usually float64; every accessor tolerates other shapes and
// falls back to a default instead of failing.
type Args map[string]any

// String returns the trimmed string at key with active markup stripped,
// truncated to maxRunes (0 means unlimited). Non-string values yield "".
// Every string a tool result carries comes through here, so results, events
// and saved state never hold model-written markup.
func (a Args) String(key string, maxRunes int) string {
	s, _ := a[key].(string)
	return truncate(strings.TrimSpace(filter.Filter(s)), maxRunes)
}

// Int returns the integer at key clamped to [lo, hi], or def when the key is
// missing or not numeric.
func (a Args) Int(key string, def, lo, hi int) int {
	n, ok := toInt(a[key])
	if !ok {
		n = def
	}
	return max(lo, min(n, hi))
}

// Enum returns the lowercased string at key when it is one of allowed,
// otherwise fallback.
func (a Args) Enum(key string, allowed []string, fallback string) string {
	s := strings.ToLower(a.String(key, 0))
	for _, v := range allowed {
		if s == v {
			return v
		}
	}
	return fallback
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int(math.Max(math.MinInt32, math.Min(math.MaxInt32, math.Round(n)))), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			f, ferr := n.Float64()
			if ferr != nil {
				return 0, false
			}
			return toInt(f)
		}
		return int(i), true
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		return i, err == nil
	}
	return 0, false
}

func truncate(s string, maxRunes int) string {
	if maxRunes <= 0 || utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	return string([]rune(s)[:maxRunes])
}
