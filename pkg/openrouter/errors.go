package openrouter

import (
	"errors"
	"net/http"
	"regexp"
	"strings"

	openaisdk "github.com/openai/openai-go"
)

// rateLimitMarkers are substrings providers put in throttling errors when the status code is
// not reachable through the error chain.
var rateLimitMarkers = []string{
	"rate limit",
	"rate_limit",
	"ratelimit",
	"too many requests",
	"quota",
	"resource_exhausted",
	"resource exhausted",
}

// statusTooManyRequests matches 429 as a standalone token, not inside ids or dated model names.
var statusTooManyRequests = regexp.MustCompile(`\b429\b`)

type statusCoder interface {
	StatusCode() int
}

// IsRateLimited reports whether err signals upstream throttling or quota exhaustion.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *openaisdk.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests
	}

	var coded statusCoder
	if errors.As(err, &coded) {
		return coded.StatusCode() == http.StatusTooManyRequests
	}

	msg := strings.ToLower(err.Error())
	if statusTooManyRequests.MatchString(msg) {
		return true
	}
	for _, marker := range rateLimitMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
