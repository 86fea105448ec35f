package net_test

import (
	"errors"
	"net/http"
	"testing"

	perr "vocabot/internal/platform/errors"
	pnet "vocabot/internal/platform/net"
)

func TestOK(t *testing.T) {
	status, w := pnet.OK(0, map[string]int{"n": 1}, "r1")
	if status != http.StatusOK || w.StatusCode != http.StatusOK || w.Status != "OK" {
		t.Fatalf("unexpected envelope %d %+v", status, w)
	}
	if w.RequestID != "r1" || w.Data == nil {
		t.Fatalf("request id or data missing: %+v", w)
	}

	status, _ = pnet.OK(http.StatusAccepted, nil, "")
	if status != http.StatusAccepted {
		t.Fatalf("status = %d", status)
	}
}

func TestError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		want     int
		wantCode string
	}{
		{"nil", nil, http.StatusOK, ""},
		{"foreign", errors.New("boom"), http.StatusInternalServerError, "unknown"},
		{"unauthorized", perr.Unauthorizedf("bad token"), http.StatusUnauthorized, "unauthorized"},
		{"validation", perr.Validationf("text", "text is required"), http.StatusBadRequest, "validation"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, w := pnet.Error(tt.err, "rid")
			if status != tt.want || w.StatusCode != tt.want {
				t.Fatalf("status = %d/%d want %d", status, w.StatusCode, tt.want)
			}
			if w.Code != tt.wantCode {
				t.Fatalf("code = %q want %q", w.Code, tt.wantCode)
			}
		})
	}

	_, w := pnet.Error(perr.Validationf("text", "text is required"), "")
	if w.Field != "text" {
		t.Fatalf("field = %q", w.Field)
	}
}
