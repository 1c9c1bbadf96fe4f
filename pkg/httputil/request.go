package httputil

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// QueryError is an invalid or missing query parameter. Handlers answer it with 400.
type QueryError struct {
	Param  string
	Value  string
	Reason string
}

func (e *QueryError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("query param %s: %s", e.Param, e.Reason)
	}
	return fmt.Sprintf("query param %s=%q: %s", e.Param, e.Value, e.Reason)
}

// ParseQueryInt extracts and parses an integer query parameter
func ParseQueryInt(r *http.Request, key string, defaultVal int) (int, error) {
	str := r.URL.Query().Get(key)
	if str == "" {
		return defaultVal, nil
	}
	val, err := strconv.Atoi(str)
	if err != nil {
		return 0, &QueryError{Param: key, Value: str, Reason: "not an integer"}
	}
	return val, nil
}

// ParseQueryBool extracts and parses a boolean query parameter
func ParseQueryBool(r *http.Request, key string, defaultVal bool) (bool, error) {
	str := r.URL.Query().Get(key)
	if str == "" {
		return defaultVal, nil
	}
	val, err := strconv.ParseBool(str)
	if err != nil {
		return false, &QueryError{Param: key, Value: str, Reason: "not a boolean"}
	}
	return val, nil
}

// ParseLimit reads the "limit" parameter. It must be positive; values above
// max are capped.
func ParseLimit(r *http.Request, defaultVal, max int) (int, error) {
	limit, err := ParseQueryInt(r, "limit", defaultVal)
	if err != nil {
		return 0, err
	}
	if limit <= 0 {
		return 0, &QueryError{Param: "limit", Value: r.URL.Query().Get("limit"), Reason: "must be positive"}
	}
	if max > 0 && limit > max {
		limit = max
	}
	return limit, nil
}

// RequireQuery returns a mandatory query parameter.
func RequireQuery(r *http.Request, key string) (string, error) {
	val := r.URL.Query().Get(key)
	if val == "" {
		return "", &QueryError{Param: key, Reason: "is required"}
	}
	return val, nil
}

// ParseQueryEnum returns the parameter when it is one of allowed, defaultVal when absent.
func ParseQueryEnum(r *http.Request, key, defaultVal string, allowed ...string) (string, error) {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal, nil
	}
	for _, a := range allowed {
		if val == a {
			return val, nil
		}
	}
	return "", &QueryError{Param: key, Value: val, Reason: "must be one of " + strings.Join(allowed, ", ")}
}
