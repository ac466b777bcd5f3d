package canvas

import (
	"errors"
	"fmt"
	"strings"
)

// Canvas-specific errors.
var (
	// ErrInvalidToken indicates the access token is invalid or expired (401).
	ErrInvalidToken = errors.New("canvas: invalid or expired access token")

	// ErrForbidden indicates the token lacks permission for the resource (403).
	ErrForbidden = errors.New("canvas: insufficient permission")

	// ErrResourceDisabled indicates the feature is disabled for this course (404
	// with a disablement message in the body).
	ErrResourceDisabled = errors.New("canvas: resource disabled for this course")

	// ErrNotFound indicates the resource does not exist or is inaccessible (404).
	ErrNotFound = errors.New("canvas: resource not found or inaccessible")

	// ErrTooManyPages indicates the pagination chain exceeded the page ceiling.
	ErrTooManyPages = errors.New("canvas: pagination exceeded page limit")
)

// APIError represents a Canvas API error response not covered by a sentinel.
type APIError struct {
	StatusCode int
	Body       string
	URL        string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("canvas: API error %d: %s (URL: %s)", e.StatusCode, e.Body, e.URL)
}

// disabledPhrases are substrings Canvas puts in 404 bodies when a feature tab
// is turned off for a course rather than missing. Includes localized variants
// seen from institutions running non-English locales.
var disabledPhrases = []string{
	"that page has been disabled",
	"tab has been disabled",
	"has been disabled for this course",
	"esa página ha sido deshabilitada",
	"ha sido deshabilitada",
	"deshabilitado para este curso",
}

// classifyStatus maps an HTTP status and response body to a typed error.
// Bodies are only inspected for 404s, to distinguish "feature disabled" from
// a genuinely missing resource.
func classifyStatus(status int, body, url string) error {
	switch status {
	case 401:
		return ErrInvalidToken
	case 403:
		return ErrForbidden
	case 404:
		lower := strings.ToLower(body)
		for _, phrase := range disabledPhrases {
			if strings.Contains(lower, phrase) {
				return ErrResourceDisabled
			}
		}
		return ErrNotFound
	default:
		return &APIError{StatusCode: status, Body: body, URL: url}
	}
}

// IsNotFound checks if the error indicates a missing or disabled resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrResourceDisabled)
}

// IsUnauthorized checks if the error indicates an authentication failure.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrInvalidToken)
}

// IsForbidden checks if the error indicates a permission failure.
func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}
