package arc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// ProbeEndpoint is one request the probe makes.
type ProbeEndpoint struct {
	Label  string
	Path   string
	Params url.Values
	Auth   bool
}

// ProbeEndpoints lists every known public and authenticated endpoint.
var ProbeEndpoints = []ProbeEndpoint{
	{Path: PathItems},
	{Path: PathQuests},
	{Path: PathHideout},
	{Path: PathProjects},
	{Label: PathProjects + "?season=1", Path: PathProjects, Params: url.Values{"season": {"1"}}},
	{Path: PathProfile, Auth: true},
	{Path: PathStash, Auth: true, Params: url.Values{"locale": {"en"}, "page": {"1"}, "per_page": {"10"}, "sort": {"slot"}}},
	{Path: PathLoadout, Auth: true, Params: url.Values{"locale": {"en"}}},
	{Path: "/api/v2/user/quests", Auth: true, Params: url.Values{"locale": {"en"}}},
	{Label: "/api/v2/user/quests?filter=completed", Path: "/api/v2/user/quests", Auth: true, Params: url.Values{"locale": {"en"}, "filter": {"completed"}}},
	{Path: "/api/v2/user/hideout", Auth: true, Params: url.Values{"locale": {"en"}}},
	{Path: "/api/v2/user/projects", Auth: true, Params: url.Values{"locale": {"en"}}},
}

// rateLimitHeaders are copied into each probe result when present.
var rateLimitHeaders = []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"}

// ProbeResult is the outcome of one probed endpoint.
type ProbeResult struct {
	Endpoint    string            `json:"endpoint"`
	Status      int               `json:"status,omitempty"`
	ContentType string            `json:"content_type,omitempty"`
	RateLimits  map[string]string `json:"rate_limits,omitempty"`
	Shape       any               `json:"response_shape,omitempty"`
	RawPreview  string            `json:"raw_preview,omitempty"`
	Skipped     string            `json:"skipped,omitempty"`
	Error       string            `json:"error,omitempty"`
}

// ProbeReport is everything Probe prints.
type ProbeReport struct {
	ProbedAt      time.Time     `json:"probed_at"`
	Public        []ProbeResult `json:"public"`
	Authenticated []ProbeResult `json:"authenticated"`
}

// Probe requests every endpoint in ProbeEndpoints and writes an indented
// JSON report of status codes, rate-limit headers, and response shapes.
// Authenticated endpoints are skipped when c has no user key.
func Probe(ctx context.Context, c *Client, w io.Writer) error {
	results := make([]ProbeResult, len(ProbeEndpoints))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxPageFetchers)
	for i, ep := range ProbeEndpoints {
		g.Go(func() error {
			results[i] = c.probe(gctx, ep)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	report := ProbeReport{ProbedAt: time.Now().UTC()}
	for i, ep := range ProbeEndpoints {
		if ep.Auth {
			report.Authenticated = append(report.Authenticated, results[i])
		} else {
			report.Public = append(report.Public, results[i])
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("write probe report: %w", err)
	}
	return nil
}

func (c *Client) probe(ctx context.Context, ep ProbeEndpoint) ProbeResult {
	res := ProbeResult{Endpoint: ep.Label}
	if res.Endpoint == "" {
		res.Endpoint = ep.Path
	}
	if ep.Auth && (c.appKey == "" || c.userKey == "") {
		res.Skipped = "missing app key or user key"
		return res
	}

	resp, err := c.do(ctx, ep.Path, ep.Auth, ep.Params)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Status = resp.Status
	res.ContentType = resp.Header.Get("Content-Type")
	for _, h := range rateLimitHeaders {
		if v := resp.Header.Get(h); v != "" {
			if res.RateLimits == nil {
				res.RateLimits = make(map[string]string)
			}
			res.RateLimits[h] = v
		}
	}

	var body any
	if strings.Contains(res.ContentType, "application/json") && json.Unmarshal(resp.Body, &body) == nil {
		res.Shape = Shape(body)
	} else {
		res.RawPreview = preview(string(resp.Body), 500)
	}
	return res
}

// Shape describes the structure of a decoded JSON value: objects keep their
// keys, arrays are sampled, and scalars become "<type> value".
func Shape(v any) any {
	const sample = 2
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, child := range t {
			out[k] = Shape(child)
		}
		return out
	case []any:
		if len(t) == 0 {
			return []any{"<empty list>"}
		}
		n := min(sample, len(t))
		out := []any{fmt.Sprintf("<list of %d items, showing %d>", len(t), n)}
		for _, child := range t[:n] {
			out = append(out, Shape(child))
		}
		return out
	case string:
		return fmt.Sprintf("<str> %q", preview(t, 80))
	case bool:
		return fmt.Sprintf("<bool> %t", t)
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("<int> %d", int64(t))
		}
		return fmt.Sprintf("<float> %g", t)
	case nil:
		return "<null>"
	default:
		return fmt.Sprintf("<%T>", t)
	}
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
