package network

import (
	"errors"
	"fmt"
)

var (
	// ErrConnectionFailed indicates the client could not reach the API.
	ErrConnectionFailed = errors.New("network: connection failed")

	// ErrServerError indicates the API answered with a 5xx status.
	ErrServerError = errors.New("network: server error")

	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("network: not found")

	// ErrRequestRejected indicates the API refused the request with a 4xx status.
	ErrRequestRejected = errors.New("network: request rejected")

	// ErrBroadcastRejected indicates the node rejected the broadcast transaction.
	ErrBroadcastRejected = errors.New("network: broadcast rejected")

	// ErrInvalidResponse indicates the API returned a malformed or unexpected response.
	ErrInvalidResponse = errors.New("network: invalid response")
)

// HTTPError is a non-2xx API response.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// Unwrap classifies the status code.
func (e *HTTPError) Unwrap() error {
	switch {
	case e.StatusCode == 404:
		return ErrNotFound
	case e.StatusCode >= 500:
		return ErrServerError
	default:
		return ErrRequestRejected
	}
}
