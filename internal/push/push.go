// Package push uploads drained sample batches to a configured HTTP
// endpoint, the way the vendor cloud used to ingest them.
package push

import (
	"context"
	"fmt"
	"time"

	"resty.dev/v3"

	"github.com/devhack/hacklet/internal/config"
	"github.com/devhack/hacklet/internal/ctxlog"
	"github.com/devhack/hacklet/internal/journal"
)

// DefaultTimeout bounds a single upload attempt when the push block does
// not set one.
const DefaultTimeout = 10 * time.Second

// Client posts sample records as JSON.
type Client struct {
	rc  *resty.Client
	url string
}

// New builds a Client from the push block of the config file.
func New(cfg *config.Push) *Client {
	timeout := DefaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}

	rc := resty.New().
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	if cfg.Token != "" {
		rc.SetAuthToken(cfg.Token)
	}
	return &Client{rc: rc, url: cfg.URL}
}

// PushSamples uploads one sample record. Any non-2xx answer is an error.
func (c *Client) PushSamples(ctx context.Context, rec *journal.SampleRecord) error {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Pushing samples.", "url", c.url, "record_id", rec.ID)

	res, err := c.rc.R().
		SetContext(ctx).
		SetBody(rec).
		Post(c.url)
	if err != nil {
		return fmt.Errorf("push: post %s: %w", c.url, err)
	}
	if !res.IsSuccess() {
		return fmt.Errorf("push: %s answered %s", c.url, res.Status())
	}

	logger.Info("Samples pushed.", "record_id", rec.ID, "status", res.StatusCode())
	return nil
}

// Close releases the client's idle connections.
func (c *Client) Close() error {
	return c.rc.Close()
}
