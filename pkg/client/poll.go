package client

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/mmynk/splittat/pkg/api"
)

// DefaultPollInterval is used when PollReceipt is given a non-positive interval.
const DefaultPollInterval = 2 * time.Second

// Terminal reports whether a receipt status ends processing.
func Terminal(status string) bool {
	switch status {
	case "Ready", "ParseFailed", "Failed":
		return true
	}
	return false
}

// PollReceipt fetches the receipt once per interval until its status is
// terminal and returns the final receipt. Failed fetches are logged and
// retried on the next tick; an unauthorized session, a missing receipt or
// ctx ending stops polling with an error.
func (c *Client) PollReceipt(ctx context.Context, id string, interval time.Duration) (*api.Receipt, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		receipt, err := c.GetReceipt(ctx, id)
		switch {
		case err == nil:
			if Terminal(receipt.Status) {
				return receipt, nil
			}
		case errors.Is(err, ErrUnauthorized), isStatus(err, http.StatusNotFound):
			return nil, err
		case ctx.Err() != nil:
			return nil, ctx.Err()
		default:
			c.logger.Warn("Receipt poll failed", "receipt_id", id, "error", err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func isStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}
