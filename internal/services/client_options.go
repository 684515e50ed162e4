package services

import (
	"net/http"
	"strings"
)

// ClientOption customises how a provider client reaches its API.
type ClientOption func(*clientSettings)

type clientSettings struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
}

// WithBaseURL points the client at a different API endpoint, such as a proxy or a test server.
func WithBaseURL(url string) ClientOption {
	return func(s *clientSettings) {
		s.baseURL = strings.TrimRight(url, "/")
	}
}

// WithHTTPClient sets the HTTP client used for provider requests.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(s *clientSettings) {
		s.httpClient = client
	}
}

// WithMaxRetries overrides the SDK retry count. Negative values keep the SDK default.
func WithMaxRetries(n int) ClientOption {
	return func(s *clientSettings) {
		s.maxRetries = n
	}
}

func newClientSettings(opts []ClientOption) clientSettings {
	s := clientSettings{maxRetries: -1}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}
