// Package client is a typed HTTP client for the lost and found API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/lostfound-board/apiserver/types"
)

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%d %s)", e.Message, e.Status, e.Code)
	}
	return fmt.Sprintf("%s (%d)", e.Message, e.Status)
}

// Retryable reports whether the request may be repeated as is.
func (e *APIError) Retryable() bool {
	return e.Status == http.StatusServiceUnavailable
}

// Client talks to the API at baseURL, authenticating with token when set.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func New(baseURL, token string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// WithToken returns a copy of c that authenticates with token.
func (c *Client) WithToken(token string) *Client {
	clone := *c
	clone.token = token
	return &clone
}

// Session is returned by Register and Login.
type Session struct {
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expires_at"`
	User      types.User `json:"user"`
}

// ItemPage is one page of a listing. The server sends the items as the body
// and the counts in X-Total-Count, X-Page and X-Page-Limit.
type ItemPage struct {
	Items []types.Item
	Page  int
	Limit int
	Total int
}

// ListOptions filters ListItems. Zero values are omitted.
type ListOptions struct {
	Kind   string
	Status string
	Query  string
	Mine   bool
	Order  string
	Page   int
	Limit  int
}

func (o ListOptions) values() url.Values {
	v := url.Values{}
	set := func(key, value string) {
		if value != "" {
			v.Set(key, value)
		}
	}
	set("kind", o.Kind)
	set("status", o.Status)
	set("q", o.Query)
	set("order", o.Order)
	if o.Mine {
		v.Set("mine", "true")
	}
	if o.Page > 0 {
		v.Set("page", strconv.Itoa(o.Page))
	}
	if o.Limit > 0 {
		v.Set("limit", strconv.Itoa(o.Limit))
	}
	return v
}

// NewItem is the body of CreateItem.
type NewItem struct {
	Kind        string `json:"kind"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Location    string `json:"location"`
}

func (c *Client) Register(ctx context.Context, username, email, displayName, password string) (Session, error) {
	body := map[string]string{
		"username":     username,
		"email":        email,
		"display_name": displayName,
		"password":     password,
	}
	var session Session
	err := c.do(ctx, http.MethodPost, "/api/auth/register", body, &session)
	return session, err
}

// Login accepts a username or an email.
func (c *Client) Login(ctx context.Context, login, password string) (Session, error) {
	body := map[string]string{"username": login, "password": password}
	var session Session
	err := c.do(ctx, http.MethodPost, "/api/auth/login", body, &session)
	return session, err
}

func (c *Client) Me(ctx context.Context) (types.User, error) {
	var user types.User
	err := c.do(ctx, http.MethodGet, "/api/auth/me", nil, &user)
	return user, err
}

func (c *Client) ListItems(ctx context.Context, opts ListOptions) (ItemPage, error) {
	path := "/api/items"
	if q := opts.values().Encode(); q != "" {
		path += "?" + q
	}
	var page ItemPage
	header, err := c.send(ctx, http.MethodGet, path, nil, &page.Items)
	if err != nil {
		return ItemPage{}, err
	}
	if page.Items == nil {
		page.Items = []types.Item{}
	}
	page.Total = headerInt(header, "X-Total-Count", len(page.Items))
	page.Page = headerInt(header, "X-Page", 1)
	page.Limit = headerInt(header, "X-Page-Limit", len(page.Items))
	return page, nil
}

func headerInt(header http.Header, key string, fallback int) int {
	n, err := strconv.Atoi(header.Get(key))
	if err != nil {
		return fallback
	}
	return n
}

func (c *Client) CreateItem(ctx context.Context, item NewItem) (types.Item, error) {
	var created types.Item
	err := c.do(ctx, http.MethodPost, "/api/items", item, &created)
	return created, err
}

func (c *Client) GetItem(ctx context.Context, id string) (types.Item, error) {
	var item types.Item
	err := c.do(ctx, http.MethodGet, "/api/items/"+url.PathEscape(id), nil, &item)
	return item, err
}

// ClaimItem claims the item for the authenticated user. A 409 means someone
// else got there first and must not be retried.
func (c *Client) ClaimItem(ctx context.Context, id string) (types.Item, error) {
	var item types.Item
	err := c.do(ctx, http.MethodPost, "/api/items/"+url.PathEscape(id)+"/claim", nil, &item)
	return item, err
}

func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	_, err := c.send(ctx, method, path, body, result)
	return err
}

// send performs the request, decodes a 2xx body into result and returns the
// response headers.
func (c *Client) send(ctx context.Context, method, path string, body, result any) (http.Header, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var errResp struct {
			Error string `json:"error"`
			Code  string `json:"code"`
		}
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			apiErr.Message = errResp.Error
			apiErr.Code = errResp.Code
		}
		return nil, apiErr
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return nil, fmt.Errorf("decoding response: %w", err)
		}
	}
	return resp.Header, nil
}
