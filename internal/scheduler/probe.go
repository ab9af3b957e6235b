package scheduler

import (
	"context"
	"net/http"
	"time"
)

// HTTPProbe checks reachability with a HEAD request against a well-known URL.
type HTTPProbe struct {
	client  *http.Client
	url     string
	timeout time.Duration
}

// NewHTTPProbe creates a probe against the given URL.
func NewHTTPProbe(url string) *HTTPProbe {
	return &HTTPProbe{
		client:  http.DefaultClient,
		url:     url,
		timeout: 10 * time.Second,
	}
}

// IsOnline reports whether the probe URL answered at all; any HTTP status
// counts as reachable.
func (p *HTTPProbe) IsOnline(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.url, nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return true
}
