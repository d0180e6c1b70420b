// Package directory is a typed client for the external organizational
// directory (departments and members).
//
// The client never retries. Callers decide what to do with AuthError,
// UpstreamError and TransportError.
package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/orgsync/directory-sync/internal/config"
)

// tokenRefreshMargin renews the token this long before it actually expires.
const tokenRefreshMargin = 5 * time.Minute

// Client talks to the directory HTTP API.
type Client struct {
	baseURL    string
	corpID     string
	corpSecret string
	httpClient *http.Client
	pacer      *rate.Limiter
	logger     *zap.Logger
	now        func() time.Time

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithClock overrides the time source used for token expiry.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// NewClient builds a directory client from configuration.
func NewClient(cfg config.DirectoryConfig, logger *zap.Logger, opts ...Option) *Client {
	limit := rate.Inf
	if interval := cfg.RequestInterval(); interval > 0 {
		limit = rate.Every(interval)
	}
	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		corpID:     cfg.CorpID,
		corpSecret: cfg.CorpSecret,
		httpClient: &http.Client{Timeout: cfg.Timeout()},
		pacer:      rate.NewLimiter(limit, 1),
		logger:     logger,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetAccessToken returns a cached token, fetching a new one when the cache is
// empty or close to expiry.
func (c *Client) GetAccessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	query := url.Values{}
	query.Set("corpid", c.corpID)
	query.Set("corpsecret", c.corpSecret)

	var resp tokenResponse
	if err := c.get(ctx, "token", query, &resp); err != nil {
		return "", err
	}
	if resp.ErrCode != 0 {
		return "", &AuthError{Code: resp.ErrCode, Message: resp.ErrMsg}
	}
	if resp.AccessToken == "" {
		return "", &AuthError{Message: "empty access token"}
	}

	ttl := time.Duration(resp.ExpiresIn) * time.Second
	if ttl > tokenRefreshMargin {
		ttl -= tokenRefreshMargin
	}
	c.token = resp.AccessToken
	c.tokenExpiry = c.now().Add(ttl)
	c.logger.Debug("directory token refreshed", zap.Duration("ttl", ttl))
	return c.token, nil
}

// ListDepartments returns every department visible to the credentials.
func (c *Client) ListDepartments(ctx context.Context) ([]Department, error) {
	var resp departmentListResponse
	if err := c.call(ctx, "department/list", url.Values{}, &resp, &resp.apiStatus); err != nil {
		return nil, err
	}
	return resp.Department, nil
}

// ListDepartmentUsers returns members of a department, optionally including
// members of all descendant departments.
func (c *Client) ListDepartmentUsers(ctx context.Context, departmentID int, includeDescendants bool) ([]UserDetail, error) {
	query := url.Values{}
	query.Set("department_id", strconv.Itoa(departmentID))
	if includeDescendants {
		query.Set("fetch_child", "1")
	} else {
		query.Set("fetch_child", "0")
	}

	var resp userListResponse
	if err := c.call(ctx, "user/simplelist", query, &resp, &resp.apiStatus); err != nil {
		return nil, err
	}
	return resp.UserList, nil
}

// GetUser fetches the full profile of a single member.
func (c *Client) GetUser(ctx context.Context, userID string) (*UserDetail, error) {
	query := url.Values{}
	query.Set("userid", userID)

	var resp userGetResponse
	if err := c.call(ctx, "user/get", query, &resp, &resp.apiStatus); err != nil {
		return nil, err
	}
	detail := resp.UserDetail
	return &detail, nil
}

// GetAllUsers walks every department and returns each member once, in the
// order first seen. Calls are paced to stay under upstream rate limits.
func (c *Client) GetAllUsers(ctx context.Context) ([]UserDetail, error) {
	departments, err := c.ListDepartments(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var users []UserDetail
	for _, dept := range departments {
		if err := c.pacer.Wait(ctx); err != nil {
			return nil, err
		}
		members, err := c.ListDepartmentUsers(ctx, dept.ID, false)
		if err != nil {
			return nil, fmt.Errorf("list users of department %d: %w", dept.ID, err)
		}
		for _, member := range members {
			if _, ok := seen[member.UserID]; ok {
				continue
			}
			seen[member.UserID] = struct{}{}
			users = append(users, member)
		}
	}

	c.logger.Debug("directory users fetched",
		zap.Int("departments", len(departments)),
		zap.Int("users", len(users)))
	return users, nil
}

// invalidateToken drops the cached token so the next call refreshes it.
func (c *Client) invalidateToken() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = ""
	c.tokenExpiry = time.Time{}
}

// call performs an authenticated GET and maps errcode failures.
func (c *Client) call(ctx context.Context, endpoint string, query url.Values, out any, status *apiStatus) error {
	token, err := c.GetAccessToken(ctx)
	if err != nil {
		return err
	}
	query.Set("access_token", token)

	if err := c.get(ctx, endpoint, query, out); err != nil {
		return err
	}
	if status.ErrCode == 0 {
		return nil
	}
	if isTokenErrCode(status.ErrCode) {
		c.invalidateToken()
		return &AuthError{Code: status.ErrCode, Message: status.ErrMsg}
	}
	return &UpstreamError{Endpoint: endpoint, StatusCode: http.StatusOK, Code: status.ErrCode, Message: status.ErrMsg}
}

func (c *Client) get(ctx context.Context, endpoint string, query url.Values, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	reqURL := c.baseURL + "/" + endpoint + "?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return &TransportError{Endpoint: endpoint, Err: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Endpoint: endpoint, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &UpstreamError{Endpoint: endpoint, StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &TransportError{Endpoint: endpoint, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
