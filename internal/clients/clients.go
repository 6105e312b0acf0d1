// Package clients implements the outbound HTTP clients for the Farcaster hub
// and the tip allowance ledger.
package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"tip-gate-backend/internal/metrics"

	"golang.org/x/time/rate"
)

// APIError is returned when an upstream service responds with a non-2xx status
type APIError struct {
	Service    string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: HTTP %d: %s", e.Service, e.StatusCode, e.Message)
}

// HTTPDoer allows injecting custom HTTP clients
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// maxErrorBody caps how much of an error response is kept in APIError.Message
const maxErrorBody = 512

type jsonGetter struct {
	service string
	http    HTTPDoer
	limiter *rate.Limiter
	headers map[string]string
}

func newJSONGetter(service string, doer HTTPDoer, timeout time.Duration, rps float64, burst int) *jsonGetter {
	if doer == nil {
		doer = &http.Client{Timeout: timeout}
	}
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	if burst <= 0 {
		burst = 1
	}
	return &jsonGetter{
		service: service,
		http:    doer,
		limiter: rate.NewLimiter(limit, burst),
		headers: map[string]string{},
	}
}

// get performs a GET and decodes the JSON body into out. No retries.
func (g *jsonGetter) get(ctx context.Context, url string, out any) error {
	if err := g.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s: rate limiter: %w", g.service, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%s: creating request: %w", g.service, err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range g.headers {
		req.Header.Set(k, v)
	}

	resp, err := g.http.Do(req)
	if err != nil {
		metrics.ObserveUpstream(g.service, 0)
		return fmt.Errorf("%s: performing request: %w", g.service, err)
	}
	defer resp.Body.Close()
	metrics.ObserveUpstream(g.service, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: reading response: %w", g.service, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := string(body)
		if len(msg) > maxErrorBody {
			msg = msg[:maxErrorBody]
		}
		return &APIError{Service: g.service, StatusCode: resp.StatusCode, Message: msg}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s: decoding response: %w", g.service, err)
	}
	return nil
}
