package tokens

import (
	"crypto/tls"
	"net"
	"net/http"
	"time"
)

// DefaultHTTPTimeout bounds every call to a provider token or resource endpoint.
const DefaultHTTPTimeout = 10 * time.Second

// NewHTTPClient returns a client for provider calls. A timeout surfaces as an
// ordinary request error and is classified by the calling operation.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   timeout,
		ExpectContinueTimeout: 1 * time.Second,
		TLSClientConfig:       &tls.Config{MinVersion: tls.VersionTLS12},
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
		// Provider redirects on API calls are never expected; surface them.
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}
