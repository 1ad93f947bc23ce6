package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"connectrpc.com/connect"
	"github.com/shopspring/decimal"

	"github.com/mmynk/splittat/internal/middleware"
	"github.com/mmynk/splittat/internal/models"
	"github.com/mmynk/splittat/internal/storage/sqlite"
	"github.com/mmynk/splittat/pkg/api/apiconnect"
)

const testUserHeader = "X-Test-User"

// testAuthInterceptor sets the caller from the X-Test-User header.
func testAuthInterceptor() connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			if id := req.Header().Get(testUserHeader); id != "" {
				ctx = middleware.WithUser(ctx, id, "")
			}
			return next(ctx, req)
		}
	}
}

// as builds a request made by userID.
func as[T any](userID string, msg *T) *connect.Request[T] {
	req := connect.NewRequest(msg)
	req.Header().Set(testUserHeader, userID)
	return req
}

type testEnv struct {
	store  *sqlite.SQLiteStore
	splits apiconnect.SplitServiceClient
	groups apiconnect.GroupServiceClient
}

// setupTestServer creates a test server with both Split and Group services
// over a temp-file SQLite database.
func setupTestServer(t *testing.T) *testEnv {
	t.Helper()

	// Create temp database
	tmpFile, err := os.CreateTemp("", "test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpFile.Close()

	store, err := sqlite.New(tmpFile.Name())
	if err != nil {
		os.Remove(tmpFile.Name())
		t.Fatalf("failed to create store: %v", err)
	}

	// Create services and handlers with test auth interceptor
	authInterceptor := connect.WithInterceptors(testAuthInterceptor())
	splitPath, splitHandler := apiconnect.NewSplitServiceHandler(NewSplitService(store, nil), authInterceptor)
	groupPath, groupHandler := apiconnect.NewGroupServiceHandler(NewGroupService(store, nil), authInterceptor)

	mux := http.NewServeMux()
	mux.Handle(splitPath, splitHandler)
	mux.Handle(groupPath, groupHandler)

	server := httptest.NewServer(mux)

	t.Cleanup(func() {
		server.Close()
		store.Close()
		os.Remove(tmpFile.Name())
	})

	return &testEnv{
		store:  store,
		splits: apiconnect.NewSplitServiceClient(http.DefaultClient, server.URL),
		groups: apiconnect.NewGroupServiceClient(http.DefaultClient, server.URL),
	}
}

func (e *testEnv) user(t *testing.T, email, firstName string) *models.User {
	t.Helper()
	user := models.NewUser(email, firstName, "Test", "hash")
	if err := e.store.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	return user
}

// receipt stores a receipt owned by ownerID with one item per price.
func (e *testEnv) receipt(t *testing.T, ownerID string, status models.ReceiptStatus, prices ...string) *models.Receipt {
	t.Helper()
	r := &models.Receipt{
		UserID:   ownerID,
		ImageURL: "receipts/test.jpg",
		Status:   status,
	}
	total := decimal.Zero
	for i, p := range prices {
		price := decimal.RequireFromString(p)
		total = total.Add(price)
		r.Items = append(r.Items, models.ReceiptItem{
			Name:     "item " + string(rune('A'+i)),
			Price:    price,
			Quantity: 1,
		})
	}
	r.Total = total
	if err := e.store.CreateReceipt(context.Background(), r); err != nil {
		t.Fatalf("CreateReceipt failed: %v", err)
	}
	stored, err := e.store.GetReceipt(context.Background(), r.ID)
	if err != nil {
		t.Fatalf("GetReceipt failed: %v", err)
	}
	return stored
}

func expectCode(t *testing.T, err error, want connect.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %v error, got nil", want)
	}
	if got := connect.CodeOf(err); got != want {
		t.Fatalf("expected code %v, got %v (%v)", want, got, err)
	}
}
