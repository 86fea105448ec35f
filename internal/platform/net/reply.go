package net

import (
	"net/http"

	perr "vocabot/internal/platform/errors"
)

// Wire is the envelope every HTTP response body uses
type Wire struct {
	StatusCode int    `json:"status_code"`
	Status     string `json:"status"`
	Code       string `json:"code,omitempty"`
	Error      string `json:"error,omitempty"`
	Field      string `json:"field,omitempty"`
	RequestID  string `json:"request_id,omitempty"`
	Data       any    `json:"data,omitempty"`
}

// OK builds a success envelope with the given status
func OK(status int, data any, reqID string) (int, Wire) {
	if status == 0 {
		status = http.StatusOK
	}
	return status, Wire{
		StatusCode: status,
		Status:     http.StatusText(status),
		RequestID:  reqID,
		Data:       data,
	}
}

// Error builds an error envelope, nil err gives a 200
func Error(err error, reqID string) (int, Wire) {
	if err == nil {
		return OK(http.StatusOK, nil, reqID)
	}
	status, w := perr.HTTP(err)
	return status, Wire{
		StatusCode: status,
		Status:     http.StatusText(status),
		Code:       w.Code.String(),
		Error:      w.Message,
		Field:      w.Field,
		RequestID:  reqID,
	}
}
