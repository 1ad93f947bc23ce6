// Package client is a Go client for the splittat API.
//
// A Client carries an explicit Session. Every REST and Connect call made
// while a session is set sends its token as a bearer token; a 401 from
// the server clears the session and returns ErrUnauthorized.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"sync"
	"time"

	"connectrpc.com/connect"

	"github.com/mmynk/splittat/pkg/api"
	"github.com/mmynk/splittat/pkg/api/apiconnect"
)

// ErrUnauthorized is returned when the server rejects the session.
var ErrUnauthorized = errors.New("unauthorized")

// Session is a signed-in user.
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      *api.User
}

// FieldError is a validation failure for one request field.
type FieldError struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

// APIError is a non-2xx REST response.
type APIError struct {
	Status  int          `json:"status"`
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Errors  []FieldError `json:"errors,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
}

// Client talks to one server.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger

	mu      sync.RWMutex
	session *Session

	Splits apiconnect.SplitServiceClient
	Groups apiconnect.GroupServiceClient
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the logger used for polling errors.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithSession starts the client signed in.
func WithSession(s *Session) Option {
	return func(c *Client) {
		c.session = s
	}
}

// New returns a client for the server at baseURL, e.g. http://localhost:8080.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: http.DefaultClient,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	interceptors := connect.WithInterceptors(c.authInterceptor())
	c.Splits = apiconnect.NewSplitServiceClient(c.httpClient, c.baseURL, interceptors)
	c.Groups = apiconnect.NewGroupServiceClient(c.httpClient, c.baseURL, interceptors)
	return c
}

// Session returns the current session or nil.
func (c *Client) Session() *Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

// SetSession replaces the session. Nil signs out.
func (c *Client) SetSession(s *Session) {
	c.mu.Lock()
	c.session = s
	c.mu.Unlock()
}

func (c *Client) token() string {
	if s := c.Session(); s != nil {
		return s.Token
	}
	return ""
}

func (c *Client) authInterceptor() connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			if token := c.token(); token != "" {
				req.Header().Set("Authorization", "Bearer "+token)
			}
			res, err := next(ctx, req)
			if connect.CodeOf(err) == connect.CodeUnauthenticated {
				c.SetSession(nil)
				return nil, fmt.Errorf("%w: %w", ErrUnauthorized, err)
			}
			return res, err
		}
	}
}

// do sends a request and decodes a JSON response into out, if non-nil.
func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if token := c.token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		c.SetSession(nil)
		return fmt.Errorf("%w: %w", ErrUnauthorized, decodeError(resp))
	}
	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	return c.do(ctx, method, path, "application/json", body, out)
}

func decodeError(resp *http.Response) error {
	e := &APIError{Status: resp.StatusCode}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(e); err != nil || e.Message == "" {
		e.Message = http.StatusText(resp.StatusCode)
	}
	e.Status = resp.StatusCode
	return e
}

func (c *Client) signIn(res *api.AuthResponse) *Session {
	s := &Session{Token: res.Token, ExpiresAt: res.ExpiresAt, User: res.User}
	c.SetSession(s)
	return s
}

// Register creates an account and signs in as it.
func (c *Client) Register(ctx context.Context, req *api.RegisterRequest) (*Session, error) {
	var res api.AuthResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/register", req, &res); err != nil {
		return nil, err
	}
	return c.signIn(&res), nil
}

// Login signs in with email and password.
func (c *Client) Login(ctx context.Context, email, password string) (*Session, error) {
	var res api.AuthResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/login", &api.LoginRequest{Email: email, Password: password}, &res); err != nil {
		return nil, err
	}
	return c.signIn(&res), nil
}

// Logout drops the session. Tokens are stateless so the server is not called.
func (c *Client) Logout() {
	c.SetSession(nil)
}

func (c *Client) Me(ctx context.Context) (*api.User, error) {
	var user api.User
	if err := c.doJSON(ctx, http.MethodGet, "/api/auth/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// UploadReceipt sends an image as multipart field "file".
func (c *Client) UploadReceipt(ctx context.Context, filename, contentType string, image io.Reader) (*api.Receipt, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, image); err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	var receipt api.Receipt
	if err := c.do(ctx, http.MethodPost, "/api/receipts", mw.FormDataContentType(), &buf, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

func (c *Client) ListReceipts(ctx context.Context) ([]*api.Receipt, error) {
	var res api.ListReceiptsResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/receipts", nil, &res); err != nil {
		return nil, err
	}
	return res.Receipts, nil
}

func (c *Client) GetReceipt(ctx context.Context, id string) (*api.Receipt, error) {
	var receipt api.Receipt
	if err := c.doJSON(ctx, http.MethodGet, "/api/receipts/"+id, nil, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

// UpdateItems replaces a receipt's items and marks it Ready.
func (c *Client) UpdateItems(ctx context.Context, id string, req *api.UpdateItemsRequest) (*api.Receipt, error) {
	var receipt api.Receipt
	if err := c.doJSON(ctx, http.MethodPut, "/api/receipts/"+id+"/items", req, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

func (c *Client) DeleteReceipt(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/receipts/"+id, nil, nil)
}
