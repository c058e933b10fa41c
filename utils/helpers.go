package utils

import (
	"fmt"
	"strings"
)

// GetStringValue safely extracts a string value from a map
func GetStringValue(data map[string]interface{}, key string) string {
	if val, ok := data[key]; ok {
		switch v := val.(type) {
		case string:
			return v
		case int, int64, float64, float32, bool:
			return fmt.Sprintf("%v", v)
		}
	}
	return ""
}

// FirstStringValue returns the first non-empty string among keys
func FirstStringValue(data map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		if v := strings.TrimSpace(GetStringValue(data, key)); v != "" {
			return v
		}
	}
	return ""
}

// Truncate shortens s to at most n runes
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
