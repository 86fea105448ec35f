package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCountersAndHandler(t *testing.T) {
	ThrottledTotal.WithLabelValues("start").Inc()
	if got := testutil.ToFloat64(ThrottledTotal.WithLabelValues("start")); got < 1 {
		t.Fatalf("throttled counter = %v", got)
	}

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "vocabot_ratelimit_throttled_total") {
		t.Fatalf("metrics output missing throttled counter")
	}
}
