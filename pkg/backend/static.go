package backend

import (
	"context"
	"fmt"
	"time"
)

// StaticClient is a local, deterministic Client. It serves dry runs and
// tests: no network, token counts derived from payload size.
type StaticClient struct {
	// ID is the backend identifier.
	ID string

	// Latency is simulated per-call latency.
	Latency time.Duration
}

// Name returns the backend identifier.
func (c *StaticClient) Name() string {
	return c.ID
}

// Invoke returns a canned response. Input tokens approximate the usual
// four-characters-per-token heuristic; output is a short fixed block.
func (c *StaticClient) Invoke(ctx context.Context, req Request) (*Response, error) {
	if c.Latency > 0 {
		select {
		case <-time.After(c.Latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	tokensIn := len(req.Prompt) / 4
	if tokensIn < 1 {
		tokensIn = 1
	}
	text := fmt.Sprintf("[%s/%s] simulated output for a %d-token prompt\n", c.ID, req.Model, tokensIn)

	return &Response{
		Text:      text,
		TokensIn:  tokensIn,
		TokensOut: len(text) / 4,
		Model:     req.Model,
	}, nil
}
