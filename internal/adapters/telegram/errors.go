package telegram

import (
	stderrs "errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// APIError is a Bot API response with ok=false
type APIError struct {
	Method      string
	Code        int
	Description string
	RetryAfter  time.Duration
}

// Error implements error
func (e *APIError) Error() string {
	return fmt.Sprintf("telegram %s: %d %s", e.Method, e.Code, e.Description)
}

// Failure is the delivery outcome class of an error
type Failure uint8

const (
	// FailureNone means no error
	FailureNone Failure = iota
	// FailureBlocked means the user blocked the bot
	FailureBlocked
	// FailureDeactivated means the account was deleted
	FailureDeactivated
	// FailureNotFound means the chat does not exist
	FailureNotFound
	// FailureRateExceeded means flood control kicked in; see RetryAfter
	FailureRateExceeded
	// FailureOther is anything else
	FailureOther
)

var failureNames = [...]string{
	FailureNone:         "ok",
	FailureBlocked:      "blocked",
	FailureDeactivated:  "deactivated",
	FailureNotFound:     "not_found",
	FailureRateExceeded: "rate_exceeded",
	FailureOther:        "other",
}

// String returns the metric label for f
func (f Failure) String() string {
	if int(f) < len(failureNames) {
		return failureNames[f]
	}
	return "other"
}

// Classify maps err onto a Failure
func Classify(err error) Failure {
	if err == nil {
		return FailureNone
	}
	var api *APIError
	if !stderrs.As(err, &api) {
		return FailureOther
	}
	desc := strings.ToLower(api.Description)
	switch {
	case api.Code == http.StatusTooManyRequests:
		return FailureRateExceeded
	case api.Code == http.StatusForbidden && strings.Contains(desc, "deactivated"):
		return FailureDeactivated
	case api.Code == http.StatusForbidden:
		return FailureBlocked
	case api.Code == http.StatusBadRequest && strings.Contains(desc, "chat not found"):
		return FailureNotFound
	}
	return FailureOther
}

// RetryAfter returns the flood wait carried by err, or 0
func RetryAfter(err error) time.Duration {
	var api *APIError
	if stderrs.As(err, &api) {
		return api.RetryAfter
	}
	return 0
}

// IsNotModified reports the harmless error returned when an edit changes nothing
func IsNotModified(err error) bool {
	var api *APIError
	return stderrs.As(err, &api) && strings.Contains(api.Description, "message is not modified")
}

// MarshalText lets Failure key JSON maps by name
func (f Failure) MarshalText() ([]byte, error) { return []byte(f.String()), nil }
