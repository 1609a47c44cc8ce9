package validators

import (
	"net/http"
	"strconv"
	"strings"

	pkgerrors "github.com/angelmondragon/projectmarket-backend/pkg/errors"
)

func queryValue(r *http.Request, key string) (string, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	return raw, raw != ""
}

func queryError(key, message string, extra map[string]any) error {
	details := map[string]any{"field": key}
	for k, v := range extra {
		details[k] = v
	}
	return pkgerrors.New(pkgerrors.CodeValidation, message).WithDetails(details)
}

// ParseQueryInt reads an optional integer bounded by [min, max].
func ParseQueryInt(r *http.Request, key string, defaultVal, min, max int) (int, error) {
	raw, ok := queryValue(r, key)
	if !ok {
		return defaultVal, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, queryError(key, "query parameter must be numeric", nil)
	}
	if value < min || value > max {
		return 0, queryError(key, "query parameter out of range", map[string]any{"min": min, "max": max})
	}
	return value, nil
}

// ParseQueryBool reads an optional boolean such as received=true.
func ParseQueryBool(r *http.Request, key string, defaultVal bool) (bool, error) {
	raw, ok := queryValue(r, key)
	if !ok {
		return defaultVal, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, queryError(key, "query parameter must be a boolean", nil)
	}
	return value, nil
}
