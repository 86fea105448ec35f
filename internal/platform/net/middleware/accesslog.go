package middleware

import (
	"net/http"
	"strings"
	"time"

	"vocabot/internal/platform/logger"
	pnet "vocabot/internal/platform/net"
)

// AccessLogOptions configures the zerolog access log
type AccessLogOptions struct {
	// Slow marks requests taking >= Slow as warn level, 0 disables slow marking
	Slow time.Duration
	// Quiet paths (probes, scrapes) log at debug unless they fail
	Quiet []string
	// Redact prefixes have the rest of the path masked, for routes that
	// embed a secret
	Redact []string
}

func redact(path string, prefixes []string) string {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) && len(path) > len(p) {
			return p + "***"
		}
	}
	return path
}

// captureWriter records status and bytes written
type captureWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (cw *captureWriter) WriteHeader(code int) {
	cw.status = code
	cw.ResponseWriter.WriteHeader(code)
}

func (cw *captureWriter) Write(b []byte) (int, error) {
	n, err := cw.ResponseWriter.Write(b)
	cw.bytes += n
	return n, err
}

// AccessLog copies the chi request id into the request logger and logs one line
// per request. It must run after RequestID.
func AccessLog(opt AccessLogOptions) func(http.Handler) http.Handler {
	quiet := make(map[string]struct{}, len(opt.Quiet))
	for _, p := range opt.Quiet {
		quiet[p] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := logger.WithRequest(r.Context(), pnet.RequestID(r.Context()))
			r = r.WithContext(ctx)
			cw := &captureWriter{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()

			next.ServeHTTP(cw, r)

			elapsed := time.Since(start)
			log := logger.C(ctx)
			evt := log.Info()
			switch _, q := quiet[r.URL.Path]; {
			case opt.Slow > 0 && elapsed >= opt.Slow:
				evt = log.Warn()
			case q && cw.status < http.StatusInternalServerError:
				evt = log.Debug()
			}
			evt.Int("status", cw.status).
				Dur("elapsed", elapsed).
				Str("method", r.Method).
				Str("path", redact(r.URL.Path, opt.Redact)).
				Int("bytes", cw.bytes).
				Msg("request done")
		})
	}
}
