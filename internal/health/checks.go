package health

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sony/gobreaker"
)

// Pinger is satisfied by route stores that can verify their backing
// connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StoreCheck probes the route store. This is the critical probe: a
// router that cannot load routes cannot serve anything.
func StoreCheck(p Pinger) CheckFunc {
	return p.Ping
}

// BreakerCheck reports a failure while the invoker circuit breaker is
// open. Register it as non-critical: an open breaker means the
// function runtime is refusing work, not that the router is broken.
func BreakerCheck(state func() gobreaker.State) CheckFunc {
	return func(_ context.Context) error {
		if s := state(); s == gobreaker.StateOpen {
			return fmt.Errorf("circuit breaker %s", s)
		}
		return nil
	}
}

// RuntimeCheck probes the function runtime with a GET to the given
// URL. Any response below 500 counts as reachable, so a runtime that
// answers 404 on its root still passes.
func RuntimeCheck(url string, client *http.Client) CheckFunc {
	if client == nil {
		client = http.DefaultClient
	}
	return func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("build runtime probe: %w", err)
		}

		resp, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("runtime unreachable: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("runtime returned status %d", resp.StatusCode)
		}
		return nil
	}
}
