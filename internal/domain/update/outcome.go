package update

import (
	"fmt"
	"net/http"
	"time"
)

// Outcome is what one download attempt produced.
type Outcome struct {
	// StatusCode is the HTTP status code of the response.
	StatusCode int
	// BytesWritten is the number of bytes that reached the destination.
	BytesWritten int64
	// Elapsed is the wall time of the transfer.
	Elapsed time.Duration
}

// Succeeded reports whether the outcome can be committed:
// status 200 with a non-empty body.
func (o *Outcome) Succeeded() bool {
	return o != nil && o.StatusCode == http.StatusOK && o.BytesWritten > 0
}

// ZeroLength reports a 200 response that wrote nothing.
func (o *Outcome) ZeroLength() bool {
	return o != nil && o.StatusCode == http.StatusOK && o.BytesWritten == 0
}

// StatusLabel returns a human label for the status codes worth distinguishing.
func StatusLabel(code int) string {
	switch code {
	case http.StatusOK:
		return "OK"
	case http.StatusBadRequest:
		return "Bad Request"
	case http.StatusUnauthorized:
		return "Unauthorized"
	case http.StatusForbidden:
		return "Forbidden"
	case http.StatusNotFound:
		return "Not Found"
	default:
		return "Unexpected"
	}
}

// IsKnownError reports whether the code is one of the explicitly labelled client errors.
func IsKnownError(code int) bool {
	switch code {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return true
	default:
		return false
	}
}

// StatusError is the cause attached to a download error for a non-200 status.
type StatusError struct {
	// Code is the HTTP status code received.
	Code int
}

// Error implements error.
func (e *StatusError) Error() string {
	if IsKnownError(e.Code) {
		return fmt.Sprintf("received error response code %d (%s)", e.Code, StatusLabel(e.Code))
	}

	return fmt.Sprintf("received unexpected response code %d", e.Code)
}

// Cause returns the error explaining why outcome cannot be committed, or nil.
func Cause(outcome *Outcome) error {
	switch {
	case outcome == nil:
		return nil
	case outcome.Succeeded():
		return nil
	case outcome.ZeroLength():
		return ErrZeroLength
	default:
		return &StatusError{Code: outcome.StatusCode}
	}
}
