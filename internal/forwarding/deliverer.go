package forwarding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"export-consortium/internal/domain"
)

type Deliverer interface {
	Deliver(ctx context.Context, h Handoff) error
}

type DelivererFunc func(ctx context.Context, h Handoff) error

func (f DelivererFunc) Deliver(ctx context.Context, h Handoff) error { return f(ctx, h) }

// HTTPDeliverer POSTs the handoff as JSON to the target organization's intake URL.
type HTTPDeliverer struct {
	client  *http.Client
	targets map[domain.Role]string
}

func NewHTTPDeliverer(targets map[domain.Role]string, timeout time.Duration) *HTTPDeliverer {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPDeliverer{client: &http.Client{Timeout: timeout}, targets: targets}
}

func (d *HTTPDeliverer) Deliver(ctx context.Context, h Handoff) error {
	url, ok := d.targets[h.Target]
	if !ok || strings.TrimSpace(url) == "" {
		return fmt.Errorf("no intake url configured for %s", h.Target)
	}
	body, err := json.Marshal(h)
	if err != nil {
		return fmt.Errorf("encode handoff: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Handoff-ID", h.ID)
	req.Header.Set("X-Source-Org", string(h.Source))

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("post %s: status %d: %s", url, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	return nil
}
