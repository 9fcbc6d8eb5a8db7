package llm

import (
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// IntField reads an optional integer field from an opaque JSON blob.
// Missing, null, or wrongly-typed fields yield nil rather than an error.
// Numeric-looking strings such as "16,384 tokens" are cleaned to digits
// before parsing; strings with no digits yield nil.
func IntField(configJSON, field string) *int {
	if strings.TrimSpace(configJSON) == "" {
		return nil
	}
	return intFromResult(gjson.Get(configJSON, field))
}

// usageInt reads one usage counter from a vendor response body, with the
// same tolerance as IntField. Nil means "unknown", which stays distinct
// from a reported zero.
func usageInt(body []byte, path string) *int {
	if len(body) == 0 {
		return nil
	}
	return intFromResult(gjson.GetBytes(body, path))
}

func intFromResult(v gjson.Result) *int {
	switch v.Type {
	case gjson.Number:
		n := int(v.Int())
		return &n
	case gjson.String:
		digits := digitsOnly(v.String())
		if digits == "" {
			return nil
		}
		n, err := strconv.Atoi(digits)
		if err != nil {
			return nil
		}
		return &n
	default:
		return nil
	}
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
