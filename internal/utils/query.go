package utils

import (
	"net/url"
	"strconv"
	"strings"
	"time"
)

// QueryInt safely parses an integer from query parameters.
// If missing or invalid, returns the provided default.
func QueryInt(q url.Values, key string, def int) int {
	v := q.Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// QueryBool returns nil when the key is absent or unparsable.
func QueryBool(q url.Values, key string) *bool {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil
	}
	return &b
}

// QueryDate parses YYYY-MM-DD or RFC3339; zero time when absent or invalid.
func QueryDate(q url.Values, key string) time.Time {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t
	}
	if t, err := time.Parse(time.DateOnly, v); err == nil {
		return t
	}
	return time.Time{}
}
