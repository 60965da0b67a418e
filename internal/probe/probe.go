// Package probe implements the bounded-timeout liveness check a client
// runs against a candidate relay endpoint before committing to it.
package probe

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"
)

const DefaultTimeout = 800 * time.Millisecond

// Prober issues health checks. The zero value is not usable; call New.
type Prober struct {
	client  *http.Client
	timeout time.Duration
}

func New(timeout time.Duration) *Prober {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Prober{
		client:  &http.Client{},
		timeout: timeout,
	}
}

// Probe checks whether baseURL hosts a live relay. It requires a
// successful response to GET <baseURL>/health whose body carries an
// explicit truthy ok flag. Every failure mode (timeout, refused
// connection, bad status, unparsable body, missing flag) collapses to
// false; Probe never returns an error and never outlives its timeout.
func (p *Prober) Probe(ctx context.Context, baseURL string) bool {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	url := strings.TrimSuffix(baseURL, "/") + "/health"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false
	}

	var body struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false
	}

	return body.OK
}
