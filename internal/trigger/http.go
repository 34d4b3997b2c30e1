package trigger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/acme/campaign-console/internal/config"
)

// HTTPClient delivers trigger payloads over HTTP. The configured direct
// endpoint gets the full payload; when it is missing or unreachable the
// client falls back to the secondary trigger path, which is keyed by the
// campaign identifier alone.
type HTTPClient struct {
	endpoint    string
	fallbackURL string
	timeout     time.Duration
	client      *fasthttp.Client
}

// NewHTTPClient constructs the client from config.
func NewHTTPClient(cfg config.TriggerConfig) *HTTPClient {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPClient{
		endpoint:    cfg.Endpoint,
		fallbackURL: cfg.FallbackURL,
		timeout:     timeout,
		client: &fasthttp.Client{
			ReadTimeout:  timeout,
			WriteTimeout: timeout,
		},
	}
}

// Trigger posts the payload to the direct endpoint, falling back to the
// secondary path on transport failure.
func (c *HTTPClient) Trigger(ctx context.Context, payload Payload) (Result, error) {
	if c.endpoint != "" {
		if err := c.post(ctx, c.endpoint, payload); err == nil {
			return Result{}, nil
		}
	}

	if c.fallbackURL == "" {
		return Result{}, fmt.Errorf("trigger: no reachable endpoint for campaign %s", payload.CampaignID)
	}

	fallback := struct {
		CampaignID string `json:"campaign_id"`
	}{CampaignID: payload.CampaignID.String()}

	if err := c.post(ctx, c.fallbackURL, fallback); err != nil {
		return Result{UsedFallback: true}, fmt.Errorf("trigger: fallback path: %w", err)
	}
	return Result{UsedFallback: true}, nil
}

func (c *HTTPClient) post(ctx context.Context, url string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("trigger: marshal payload: %w", err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetBody(payload)

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	if err := c.client.DoDeadline(req, resp, deadline); err != nil {
		return fmt.Errorf("trigger: post %s: %w", url, err)
	}

	status := resp.StatusCode()
	if status < 200 || status >= 300 {
		return fmt.Errorf("trigger: post %s: unexpected status %d", url, status)
	}
	return nil
}
