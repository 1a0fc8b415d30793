package analysis

import (
	"errors"
	"fmt"
)

var (
	// ErrNoImage is returned when the request carries no image.
	ErrNoImage = errors.New("no image provided")
	// ErrNotConfigured means the AI service credential is missing.
	ErrNotConfigured = errors.New("AI service not configured")
	// ErrRateLimited maps upstream HTTP 429.
	ErrRateLimited = errors.New("upstream rate limited")
	// ErrPaymentRequired maps upstream HTTP 402.
	ErrPaymentRequired = errors.New("upstream payment required")
	// ErrUpstreamFailed covers every other upstream failure.
	ErrUpstreamFailed = errors.New("upstream request failed")
	// ErrInvalidResponse means the upstream reply had no message content.
	ErrInvalidResponse = errors.New("invalid AI response")
	// ErrUnsupportedImage means the image reference is not a base64 data URI
	// and the provider cannot fetch it.
	ErrUnsupportedImage = errors.New("unsupported image reference")
)

// UpstreamError carries the HTTP status of a failed upstream call.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream returned status %d", e.StatusCode)
}

// Unwrap classifies the status into one of the sentinel errors.
func (e *UpstreamError) Unwrap() error {
	return CategoryForStatus(e.StatusCode)
}

// CategoryForStatus maps an upstream HTTP status to its error category.
func CategoryForStatus(status int) error {
	switch status {
	case 429:
		return ErrRateLimited
	case 402:
		return ErrPaymentRequired
	default:
		return ErrUpstreamFailed
	}
}
