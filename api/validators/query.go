package validators

import (
	"net/http"
	"strconv"
	"strings"
)

// QueryIntOrDefault parses key as a positive integer, returning defaultVal
// when it is missing, non-numeric or not positive.
func QueryIntOrDefault(r *http.Request, key string, defaultVal int) int {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return defaultVal
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return defaultVal
	}
	return value
}
