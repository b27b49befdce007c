// Package arc is a client and decision engine for the ArcTracker.io API:
// it fetches the item catalog and a player's stash, decides what to sell,
// recycle, or hold, and renders the results as monospace tables.
package arc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is the production ArcTracker host.
const DefaultBaseURL = "https://arctracker.io"

// API paths.
const (
	PathItems    = "/api/items"
	PathQuests   = "/api/quests"
	PathHideout  = "/api/hideout"
	PathProjects = "/api/projects"
	PathStash    = "/api/v2/user/stash"
	PathProfile  = "/api/v2/user/profile"
	PathLoadout  = "/api/v2/user/loadout"
)

// maxPageFetchers bounds concurrent stash page requests.
const maxPageFetchers = 4

// APIError is an error envelope returned by the API.
type APIError struct {
	Code    string
	Message string
	Status  int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("[%d] %s: %s", e.Status, e.Code, e.Message)
}

// AsAPIError unwraps err to an *APIError.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// Client talks to one ArcTracker account. Public catalog responses are
// cached in memory after the first fetch; the stash is always fetched fresh.
type Client struct {
	baseURL string
	appKey  string
	userKey string
	http    *http.Client
	limiter *rate.Limiter

	mu     sync.Mutex
	items  map[string]*Item
	quests map[string]*Quest
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBaseURL points the client at another host, e.g. an httptest server.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.http = h }
}

// WithLimiter shares a rate limiter between clients. A nil limiter disables
// rate limiting.
func WithLimiter(l *rate.Limiter) ClientOption {
	return func(c *Client) { c.limiter = l }
}

// NewLimiter allows perMinute requests per minute with a small burst.
func NewLimiter(perMinute int) *rate.Limiter {
	if perMinute <= 0 {
		perMinute = 60
	}
	burst := perMinute / 10
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), burst)
}

// NewClient creates a client for the given app and user keys.
func NewClient(appKey, userKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		appKey:  appKey,
		userKey: userKey,
		http:    &http.Client{Timeout: 30 * time.Second},
		limiter: NewLimiter(60),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// HasUserKey reports whether authenticated endpoints can be called.
func (c *Client) HasUserKey() bool {
	return c.userKey != ""
}

// InvalidateCache drops the cached item and quest catalogs.
func (c *Client) InvalidateCache() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = nil
	c.quests = nil
}

// rawResponse is an HTTP response read to completion.
type rawResponse struct {
	Status int
	Header http.Header
	Body   []byte
}

// do performs a GET and reads the body. It does not interpret the status.
func (c *Client) do(ctx context.Context, path string, authenticated bool, params url.Values) (*rawResponse, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if authenticated {
		req.Header.Set("X-App-Key", c.appKey)
		req.Header.Set("Authorization", "Bearer "+c.userKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return &rawResponse{Status: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

// get performs a GET and decodes a 200 body into out. Other statuses are
// returned as *APIError.
func (c *Client) get(ctx context.Context, path string, authenticated bool, params url.Values, out any) error {
	resp, err := c.do(ctx, path, authenticated, params)
	if err != nil {
		return err
	}
	if resp.Status != http.StatusOK {
		return parseAPIError(resp)
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func parseAPIError(resp *rawResponse) *APIError {
	apiErr := &APIError{Code: "UNKNOWN", Message: "Unknown error", Status: resp.Status}
	var env struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(resp.Body, &env) == nil {
		if env.Error.Code != "" {
			apiErr.Code = env.Error.Code
		}
		if env.Error.Message != "" {
			apiErr.Message = env.Error.Message
		}
	}
	return apiErr
}

// FetchItems returns the item catalog keyed by item ID.
func (c *Client) FetchItems(ctx context.Context) (map[string]*Item, error) {
	c.mu.Lock()
	cached := c.items
	c.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	var resp struct {
		Items []*Item `json:"items"`
	}
	if err := c.get(ctx, PathItems, false, nil, &resp); err != nil {
		return nil, err
	}

	items := make(map[string]*Item, len(resp.Items))
	for _, it := range resp.Items {
		items[it.ID] = it
	}

	c.mu.Lock()
	c.items = items
	c.mu.Unlock()
	return items, nil
}

// FetchQuests returns the quest catalog keyed by quest ID.
func (c *Client) FetchQuests(ctx context.Context) (map[string]*Quest, error) {
	c.mu.Lock()
	cached := c.quests
	c.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	var resp struct {
		Quests map[string]*Quest `json:"quests"`
	}
	if err := c.get(ctx, PathQuests, false, nil, &resp); err != nil {
		return nil, err
	}

	quests := make(map[string]*Quest, len(resp.Quests))
	for _, q := range resp.Quests {
		quests[q.ID] = q
	}

	c.mu.Lock()
	c.quests = quests
	c.mu.Unlock()
	return quests, nil
}

// FetchHideout returns the hideout modules keyed by module ID.
func (c *Client) FetchHideout(ctx context.Context) (map[string]*HideoutModule, error) {
	var resp struct {
		HideoutModules map[string]*HideoutModule `json:"hideoutModules"`
	}
	if err := c.get(ctx, PathHideout, false, nil, &resp); err != nil {
		return nil, err
	}
	return resp.HideoutModules, nil
}

// FetchProjects returns the projects keyed by project ID.
func (c *Client) FetchProjects(ctx context.Context) (map[string]*Project, error) {
	var resp struct {
		Projects map[string]*Project `json:"projects"`
	}
	if err := c.get(ctx, PathProjects, false, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Projects, nil
}

// StashOptions selects the stash page layout.
type StashOptions struct {
	Locale  string
	PerPage int
	Sort    string
}

// DefaultStashOptions returns locale en, 50 per page, sorted by slot.
func DefaultStashOptions() StashOptions {
	return StashOptions{Locale: "en", PerPage: 50, Sort: "slot"}
}

func (o StashOptions) params(page int) url.Values {
	return url.Values{
		"locale":   {o.Locale},
		"page":     {strconv.Itoa(page)},
		"per_page": {strconv.Itoa(o.PerPage)},
		"sort":     {o.Sort},
	}
}

// FetchStash returns every stash item across all pages. The first page
// reports the page count; the remaining pages are fetched concurrently and
// concatenated in page order.
func (c *Client) FetchStash(ctx context.Context, opts StashOptions) ([]StashItem, error) {
	first, err := c.fetchStashPage(ctx, opts, 1)
	if err != nil {
		return nil, err
	}

	total := first.Pagination.TotalPages
	if total <= 1 {
		return first.Items, nil
	}

	pages := make([][]StashItem, total+1)
	pages[1] = first.Items

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxPageFetchers)
	for page := 2; page <= total; page++ {
		g.Go(func() error {
			data, err := c.fetchStashPage(gctx, opts, page)
			if err != nil {
				return err
			}
			pages[page] = data.Items
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []StashItem
	for _, p := range pages {
		all = append(all, p...)
	}
	return all, nil
}

func (c *Client) fetchStashPage(ctx context.Context, opts StashOptions, page int) (*StashData, error) {
	var resp struct {
		Data StashData `json:"data"`
		Meta Meta      `json:"meta"`
	}
	if err := c.get(ctx, PathStash, true, opts.params(page), &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// FetchProfile returns the authenticated user's profile.
func (c *Client) FetchProfile(ctx context.Context) (*UserProfile, error) {
	var resp struct {
		Data UserProfile `json:"data"`
		Meta Meta        `json:"meta"`
	}
	if err := c.get(ctx, PathProfile, true, nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}
