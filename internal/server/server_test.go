package server

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"connectrpc.com/connect"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmynk/splittat/internal/auth"
	"github.com/mmynk/splittat/internal/blob"
	"github.com/mmynk/splittat/internal/jobs"
	"github.com/mmynk/splittat/internal/metrics"
	"github.com/mmynk/splittat/internal/ocr"
	"github.com/mmynk/splittat/internal/storage/sqlite"
	"github.com/mmynk/splittat/pkg/api"
	"github.com/mmynk/splittat/pkg/client"
)

func setup(t *testing.T) *httptest.Server {
	t.Helper()
	dir := t.TempDir()

	store, err := sqlite.New(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	blobs, err := blob.NewLocal(filepath.Join(dir, "uploads"))
	if err != nil {
		t.Fatalf("failed to create blob store: %v", err)
	}

	m := metrics.New()
	queue := jobs.NewQueue(10, 1, 1, jobs.WithBackoff(time.Millisecond), jobs.WithObserver(func(status jobs.JobStatus, took time.Duration) {
		m.ObserveJob(string(status), took)
	}))
	srv := New(Options{
		Store:          store,
		Blobs:          blobs,
		Extractor:      ocr.Manual{},
		Publisher:      queue,
		JWT:            auth.NewJWTManager("test-secret-key-0123456789", "splittat", "splittat-api", time.Hour),
		Metrics:        m,
		MaxUploadBytes: 1 << 20,
		AllowedOrigins: []string{"http://localhost:5173"},
		BcryptCost:     bcrypt.MinCost,
	})

	ctx, cancel := context.WithCancel(context.Background())
	if err := queue.Start(ctx, srv.Receipts.Process); err != nil {
		t.Fatalf("failed to start queue: %v", err)
	}

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		cancel()
		queue.Stop(context.Background())
		store.Close()
	})
	return ts
}

func signUp(t *testing.T, url, email, first string) *client.Client {
	t.Helper()
	c := client.New(url)
	if _, err := c.Register(context.Background(), &api.RegisterRequest{Email: email, Password: "secret1", FirstName: first}); err != nil {
		t.Fatalf("Register %s failed: %v", email, err)
	}
	return c
}

func TestEndToEnd(t *testing.T) {
	ts := setup(t)
	ctx := context.Background()

	alice := signUp(t, ts.URL, "alice@example.com", "Alice")
	bob := signUp(t, ts.URL, "bob@example.com", "Bob")

	created, err := alice.Groups.CreateGroup(ctx, connect.NewRequest(&api.CreateGroupRequest{
		Name:         "Dinner",
		MemberEmails: []string{"bob@example.com"},
	}))
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}
	group := created.Msg.Group
	if len(group.Members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(group.Members))
	}

	receipt, err := alice.UploadReceipt(ctx, "dinner.jpg", "image/jpeg", bytes.NewReader([]byte("\xff\xd8\xff fake jpeg")))
	if err != nil {
		t.Fatalf("UploadReceipt failed: %v", err)
	}

	// Without an OCR provider the worker leaves the receipt for manual entry.
	polled, err := alice.PollReceipt(ctx, receipt.ID, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("PollReceipt failed: %v", err)
	}
	if polled.Status != "ParseFailed" || polled.ErrorMessage == "" {
		t.Fatalf("expected ParseFailed with a message, got %s %q", polled.Status, polled.ErrorMessage)
	}

	tip := 3.0
	ready, err := alice.UpdateItems(ctx, receipt.ID, &api.UpdateItemsRequest{
		Tip: &tip,
		Items: []*api.ItemInput{
			{Name: "Pizza", Price: 18.5},
			{Name: "Soda", Price: 2.25, Quantity: 2},
		},
	})
	if err != nil {
		t.Fatalf("UpdateItems failed: %v", err)
	}
	if ready.Status != "Ready" || ready.Total != 26 {
		t.Fatalf("expected Ready with total 26, got %s %v", ready.Status, ready.Total)
	}

	split, err := alice.Splits.CreateSplit(ctx, connect.NewRequest(&api.CreateSplitRequest{SplitInput: api.SplitInput{
		ReceiptID: receipt.ID,
		GroupID:   group.ID,
		SplitType: "Equal",
	}}))
	if err != nil {
		t.Fatalf("CreateSplit failed: %v", err)
	}
	summary := split.Msg.Split.Summary
	if summary.Total != 26 || len(summary.People) != 2 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	for _, p := range summary.People {
		if p.Total != 13 {
			t.Errorf("expected 13 for %s, got %v", p.DisplayName, p.Total)
		}
	}

	// Bob is not the receipt owner but can read it through the group.
	got, err := bob.Splits.GetSplit(ctx, connect.NewRequest(&api.GetSplitRequest{SplitID: split.Msg.Split.ID}))
	if err != nil {
		t.Fatalf("GetSplit as member failed: %v", err)
	}
	if got.Msg.Split.GroupID != group.ID {
		t.Errorf("expected group %s, got %s", group.ID, got.Msg.Split.GroupID)
	}

	balances, err := bob.Groups.GetGroupBalances(ctx, connect.NewRequest(&api.GetGroupBalancesRequest{GroupID: group.ID}))
	if err != nil {
		t.Fatalf("GetGroupBalances failed: %v", err)
	}
	if len(balances.Msg.Debts) != 1 {
		t.Fatalf("expected 1 debt, got %+v", balances.Msg.Debts)
	}
	debt := balances.Msg.Debts[0]
	bobID := bob.Session().User.ID
	aliceID := alice.Session().User.ID
	if debt.FromUserID != bobID || debt.ToUserID != aliceID || debt.Amount != 13 {
		t.Errorf("expected bob to owe alice 13, got %+v", debt)
	}

	_, err = bob.GetReceipt(ctx, receipt.ID)
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusNotFound {
		t.Errorf("expected 404 for another user's receipt, got %v", err)
	}
}

func TestConnectRequiresSession(t *testing.T) {
	ts := setup(t)

	c := client.New(ts.URL, client.WithSession(&client.Session{Token: "not-a-jwt"}))
	_, err := c.Groups.ListGroups(context.Background(), connect.NewRequest(&api.ListGroupsRequest{}))
	if !errors.Is(err, client.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if connect.CodeOf(err) != connect.CodeUnauthenticated {
		t.Errorf("expected Unauthenticated, got %v", connect.CodeOf(err))
	}
	if c.Session() != nil {
		t.Error("session should be cleared")
	}
}

func TestMetricsAndCORS(t *testing.T) {
	ts := setup(t)

	if _, err := client.New(ts.URL).Me(context.Background()); !errors.Is(err, client.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/api/receipts", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("preflight failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent || resp.Header.Get("Access-Control-Allow-Origin") != "http://localhost:5173" {
		t.Errorf("unexpected preflight response: %d %v", resp.StatusCode, resp.Header)
	}

	alice := signUp(t, ts.URL, "alice@example.com", "Alice")
	if _, err := alice.Groups.CreateGroup(context.Background(), connect.NewRequest(&api.CreateGroupRequest{Name: "Trip"})); err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}

	resp, err = http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics failed: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /metrics returned %d", resp.StatusCode)
	}
	for _, want := range []string{"splittat_http_requests_total", `splittat_group_events_total{event="created"} 1`} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics missing %q:\n%s", want, body)
		}
	}
}
