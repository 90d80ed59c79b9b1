// Package connectors holds helpers shared by the built-in connectors.
package connectors

import (
	"fmt"
	"strconv"

	"github.com/dukex/actionhub/pkg/models"
)

func String(cfg models.Configuration, key string) string {
	switch v := cfg[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Int reads a number that may have been decoded from JSON or given as a string.
func Int(cfg models.Configuration, key string, fallback int) int {
	switch v := cfg[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}

	return fallback
}

func Bool(cfg models.Configuration, key string) bool {
	switch v := cfg[key].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	}

	return false
}

// StringMap reads an object of string values. Non-string values are formatted.
func StringMap(cfg models.Configuration, key string) map[string]string {
	raw, ok := cfg[key].(map[string]any)
	if !ok {
		return map[string]string{}
	}

	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if s, ok := v.(string); ok {
			out[k] = s
		} else {
			out[k] = fmt.Sprintf("%v", v)
		}
	}

	return out
}

// List reads an array value.
func List(cfg models.Configuration, key string) []any {
	switch v := cfg[key].(type) {
	case []any:
		return v
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}

		return out
	}

	return nil
}
