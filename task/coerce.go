package task

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// alias maps a canonical key onto the alternative names models use for it.
type alias struct {
	target string
	alts   []string
}

// applyAliases copies the first present alternative into every target that
// is missing or empty.
func applyAliases(obj map[string]any, aliases []alias) {
	for _, a := range aliases {
		if !isEmpty(obj[a.target]) {
			continue
		}
		for _, alt := range a.alts {
			if v, ok := obj[alt]; ok {
				obj[a.target] = v
				break
			}
		}
	}
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	}
	return false
}

// asString renders scalars as text. Objects prefer their "value" or
// "amount" entry.
func asString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		if t == math.Trunc(t) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	case map[string]any:
		for _, key := range []string{"value", "amount"} {
			if inner, ok := t[key]; ok {
				return asString(inner)
			}
		}
		raw, _ := json.Marshal(t)
		return string(raw)
	case []any:
		return strings.Join(asStrings(t), ", ")
	}
	return fmt.Sprint(v)
}

// asStrings accepts a list or a comma separated string.
func asStrings(v any) []string {
	var out []string
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		for _, part := range strings.Split(t, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	case []any:
		for _, item := range t {
			if s := asString(item); s != "" {
				out = append(out, s)
			}
		}
	case []string:
		for _, s := range t {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	default:
		if s := asString(t); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// asStringMap accepts an object, a list (keyed "<prefix> N") or a bare
// string (keyed "Info").
func asStringMap(v any, prefix string) map[string]string {
	out := make(map[string]string)
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			out[k] = asString(val)
		}
	case []any:
		for i, item := range t {
			out[fmt.Sprintf("%s %d", prefix, i+1)] = asString(item)
		}
	case string:
		if s := strings.TrimSpace(t); s != "" {
			out["Info"] = s
		}
	}
	return out
}

func asBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "yes", "y", "required":
			return true
		}
	case float64:
		return t != 0
	}
	return false
}

var (
	countPattern  = regexp.MustCompile(`\d+`)
	amountPattern = regexp.MustCompile(`(\d+(?:\.\d+)?)(?:\s*(k|thousand|lakhs?)\b)?`)
)

var numberWords = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
}

// asCount reads a small whole number such as a group size or a number of
// days: 3, "3 days", "three".
func asCount(v any) (int, bool) {
	switch t := v.(type) {
	case float64:
		if t < 0 {
			return 0, false
		}
		return int(t), true
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return 0, false
		}
		return asCount(f)
	case string:
		if m := countPattern.FindString(t); m != "" {
			n, err := strconv.Atoi(m)
			return n, err == nil
		}
		lower := strings.ToLower(t)
		words := make([]string, 0, len(numberWords))
		for w := range numberWords {
			words = append(words, w)
		}
		sort.Strings(words)
		for _, w := range words {
			if strings.Contains(lower, w) {
				return numberWords[w], true
			}
		}
	}
	return 0, false
}

// ParseAmount reads a rupee amount: 3000, "3k", "1.5k", "₹3,000",
// "2 lakh". A range yields its upper limit.
func ParseAmount(v any) (int, bool) {
	switch t := v.(type) {
	case float64:
		if t < 0 {
			return 0, false
		}
		return int(math.Round(t)), true
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return 0, false
		}
		return ParseAmount(f)
	case string:
		s := strings.ToLower(strings.ReplaceAll(t, ",", ""))
		best, found := 0.0, false
		for _, m := range amountPattern.FindAllStringSubmatch(s, -1) {
			n, err := strconv.ParseFloat(m[1], 64)
			if err != nil {
				continue
			}
			switch {
			case m[2] == "k" || m[2] == "thousand":
				n *= 1000
			case strings.HasPrefix(m[2], "lakh"):
				n *= 100000
			}
			if !found || n > best {
				best, found = n, true
			}
		}
		if found {
			return int(math.Round(best)), true
		}
	}
	return 0, false
}

// decodeInto converts a generic JSON value into T.
func decodeInto[T any](v any) (T, error) {
	var out T
	raw, err := json.Marshal(v)
	if err != nil {
		return out, err
	}
	err = json.Unmarshal(raw, &out)
	return out, err
}
