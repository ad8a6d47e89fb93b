package client

import (
	"context"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/dmitrijs2005/wgdaemon/internal/logging"
)

// Exchange is one request/response pair as seen by a Sink. Err is set when
// no response arrived or its body could not be read.
type Exchange struct {
	RequestID      string
	Method         string
	URL            string
	RequestHeader  http.Header
	RequestBody    []byte
	StatusCode     int
	ResponseHeader http.Header
	ResponseBody   []byte
	Duration       time.Duration
	Err            error
}

// Sink observes every exchange the gateway performs. Implementations must
// not retain the header maps or body slices.
type Sink interface {
	Observe(ctx context.Context, ex Exchange)
}

const redacted = "[REDACTED]"

var (
	sensitiveHeaders = map[string]bool{
		"Authorization": true,
		"Cookie":        true,
		"Set-Cookie":    true,
	}

	redactions = []struct {
		re   *regexp.Regexp
		repl string
	}{
		{regexp.MustCompile(`("(?:accessToken|refreshToken|idToken|token)"\s*:\s*)("(?:[^"\\]|\\.)*"|-?\d+)`), `${1}"` + redacted + `"`},
		{regexp.MustCompile(`(?i)(bearer\s+)[A-Za-z0-9\-._~+/]+=*`), `${1}` + redacted},
		{regexp.MustCompile(`((?:Authentication|Refresh)=)[^;,\s"]+`), `${1}` + redacted},
	}
)

// Redact masks credential material in free text: token JSON fields, bearer
// values and the auth cookies.
func Redact(s string) string {
	for _, r := range redactions {
		s = r.re.ReplaceAllString(s, r.repl)
	}
	return s
}

// RedactHeaders flattens h for logging, masking credential-bearing headers.
func RedactHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if sensitiveHeaders[http.CanonicalHeaderKey(k)] {
			out[k] = redacted
			continue
		}
		out[k] = Redact(strings.Join(h[k], ", "))
	}
	return out
}

// LogSink writes redacted exchanges to a Logger at debug level.
type LogSink struct {
	log logging.Logger
}

func NewLogSink(l logging.Logger) *LogSink {
	return &LogSink{log: l.With("component", "http")}
}

func (s *LogSink) Observe(ctx context.Context, ex Exchange) {
	args := []any{
		"request_id", ex.RequestID,
		"method", ex.Method,
		"url", ex.URL,
		"request_headers", RedactHeaders(ex.RequestHeader),
		"request_body", Redact(string(ex.RequestBody)),
		"duration", ex.Duration,
	}
	if ex.Err != nil {
		args = append(args, "error", Redact(ex.Err.Error()))
		s.log.Debug(ctx, "http exchange failed", args...)
		return
	}
	args = append(args,
		"status", ex.StatusCode,
		"response_headers", RedactHeaders(ex.ResponseHeader),
		"response_body", Redact(string(ex.ResponseBody)),
	)
	s.log.Debug(ctx, "http exchange", args...)
}
