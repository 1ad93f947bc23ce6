package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mmynk/splittat/internal/errs"
	"github.com/mmynk/splittat/pkg/api"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

// receiptServer serves GET /api/receipts/{id} from statuses, repeating the
// last one. A status of "" answers 500.
func receiptServer(t *testing.T, statuses ...string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var fetches atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer token" {
			errs.Write(w, errs.NewUnauthorizedError("Missing authentication token"))
			return
		}
		n := int(fetches.Add(1))
		status := statuses[min(n, len(statuses))-1]
		if status == "" {
			errs.Write(w, errs.NewInternalServerError())
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(&api.Receipt{ID: r.PathValue("id"), Status: status})
	}))
	t.Cleanup(srv.Close)
	return srv, &fetches
}

func newTestClient(url string) *Client {
	return New(url, WithSession(&Session{Token: "token"}), WithLogger(quiet))
}

func TestPollReceipt_StopsOnTerminalStatus(t *testing.T) {
	srv, fetches := receiptServer(t, "Uploaded", "OcrInProgress", "Ready")
	c := newTestClient(srv.URL)

	receipt, err := c.PollReceipt(context.Background(), "r1", 10*time.Millisecond)
	if err != nil {
		t.Fatalf("PollReceipt failed: %v", err)
	}
	if receipt.Status != "Ready" {
		t.Errorf("expected Ready, got %s", receipt.Status)
	}
	if got := fetches.Load(); got != 3 {
		t.Errorf("expected 3 fetches, got %d", got)
	}

	time.Sleep(50 * time.Millisecond)
	if got := fetches.Load(); got != 3 {
		t.Errorf("polling continued after Ready: %d fetches", got)
	}
}

func TestPollReceipt_FailedStatusesAreTerminal(t *testing.T) {
	for _, status := range []string{"ParseFailed", "Failed"} {
		t.Run(status, func(t *testing.T) {
			srv, fetches := receiptServer(t, "Uploaded", status)
			receipt, err := newTestClient(srv.URL).PollReceipt(context.Background(), "r1", 5*time.Millisecond)
			if err != nil {
				t.Fatalf("PollReceipt failed: %v", err)
			}
			if receipt.Status != status || fetches.Load() != 2 {
				t.Errorf("expected %s after 2 fetches, got %s after %d", status, receipt.Status, fetches.Load())
			}
		})
	}
}

func TestPollReceipt_TransientErrorKeepsPolling(t *testing.T) {
	srv, fetches := receiptServer(t, "", "OcrCompleted", "Ready")

	receipt, err := newTestClient(srv.URL).PollReceipt(context.Background(), "r1", 5*time.Millisecond)
	if err != nil {
		t.Fatalf("PollReceipt failed: %v", err)
	}
	if receipt.Status != "Ready" || fetches.Load() != 3 {
		t.Errorf("expected Ready after 3 fetches, got %s after %d", receipt.Status, fetches.Load())
	}
}

func TestPollReceipt_ContextCancelled(t *testing.T) {
	srv, _ := receiptServer(t, "Uploaded")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := newTestClient(srv.URL).PollReceipt(ctx, "r1", 5*time.Millisecond)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestUnauthorizedClearsSession(t *testing.T) {
	srv, fetches := receiptServer(t, "Uploaded")
	c := New(srv.URL, WithSession(&Session{Token: "expired"}), WithLogger(quiet))

	_, err := c.PollReceipt(context.Background(), "r1", 5*time.Millisecond)
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Message != "Missing authentication token" {
		t.Errorf("expected the server message, got %v", err)
	}
	if c.Session() != nil {
		t.Error("session should be cleared after 401")
	}
	if fetches.Load() != 0 {
		t.Errorf("expected no successful fetches, got %d", fetches.Load())
	}
}

func TestTerminal(t *testing.T) {
	tests := map[string]bool{
		"Uploaded":      false,
		"OcrInProgress": false,
		"OcrCompleted":  false,
		"Ready":         true,
		"ParseFailed":   true,
		"Failed":        true,
	}
	for status, want := range tests {
		if got := Terminal(status); got != want {
			t.Errorf("Terminal(%q) = %v, want %v", status, got, want)
		}
	}
}
