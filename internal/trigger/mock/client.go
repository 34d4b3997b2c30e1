package mock

import (
	"context"
	"sync"

	"github.com/acme/campaign-console/internal/trigger"
)

// Client records trigger invocations. Tests point Err at the error the
// next call should return.
type Client struct {
	mu       sync.Mutex
	Err      error
	Payloads []trigger.Payload
}

// NewClient constructs an empty recording client.
func NewClient() *Client {
	return &Client{}
}

// Trigger records the payload and returns the configured error.
func (c *Client) Trigger(_ context.Context, payload trigger.Payload) (trigger.Result, error) {
	c.mu.Lock()
	c.Payloads = append(c.Payloads, payload)
	err := c.Err
	c.mu.Unlock()
	return trigger.Result{}, err
}

// Calls returns the number of recorded invocations.
func (c *Client) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Payloads)
}
