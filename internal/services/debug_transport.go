package services

import (
	"net/http"
	"strings"
	"time"

	"bytedge/internal/logger"
)

const maskedValue = "***[MASKED]***"

// DebugTransport logs every provider request at debug level with credential headers masked.
type DebugTransport struct {
	base http.RoundTripper
}

// NewDebugTransport wraps base. A nil base uses http.DefaultTransport.
func NewDebugTransport(base http.RoundTripper) *DebugTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &DebugTransport{base: base}
}

// RoundTrip implements http.RoundTripper.
func (d *DebugTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := d.base.RoundTrip(req)
	elapsed := time.Since(start)

	keyvals := []interface{}{
		"method", req.Method,
		"url", req.URL.Redacted(),
		"duration", elapsed,
		"headers", maskHeaders(req.Header),
	}
	if err != nil {
		logger.Debug("provider request failed", append(keyvals, "error", err)...)
		return resp, err
	}
	logger.Debug("provider request", append(keyvals, "status", resp.StatusCode)...)
	return resp, nil
}

// maskHeaders copies headers, hiding everything after the first 10 characters of credentials.
func maskHeaders(headers http.Header) map[string][]string {
	out := make(map[string][]string, len(headers))
	for name, values := range headers {
		lower := strings.ToLower(name)
		if !strings.Contains(lower, "authorization") && !strings.Contains(lower, "api-key") && !strings.Contains(lower, "token") {
			out[name] = append([]string(nil), values...)
			continue
		}
		if len(values) > 0 && len(values[0]) > 10 {
			out[name] = []string{values[0][:10] + maskedValue}
		} else {
			out[name] = []string{maskedValue}
		}
	}
	return out
}
