package arc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProbe(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == PathItems {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("X-RateLimit-Limit", "100")
			w.Header().Set("X-RateLimit-Remaining", "99")
			fmt.Fprint(w, `{"items": [{"id": "a", "value": 3}, {"id": "b"}, {"id": "c"}]}`)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprint(w, "hello")
	}), "")

	var buf bytes.Buffer
	require.NoError(t, Probe(context.Background(), c, &buf))

	var report struct {
		Public []struct {
			Endpoint   string            `json:"endpoint"`
			Status     int               `json:"status"`
			RateLimits map[string]string `json:"rate_limits"`
			Shape      map[string]any    `json:"response_shape"`
			RawPreview string            `json:"raw_preview"`
		} `json:"public"`
		Authenticated []struct {
			Endpoint string `json:"endpoint"`
			Skipped  string `json:"skipped"`
		} `json:"authenticated"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &report))

	require.Len(t, report.Public, 5)
	items := report.Public[0]
	assert.Equal(t, PathItems, items.Endpoint)
	assert.Equal(t, http.StatusOK, items.Status)
	assert.Equal(t, map[string]string{"X-RateLimit-Limit": "100", "X-RateLimit-Remaining": "99"}, items.RateLimits)
	assert.Equal(t, []any{
		"<list of 3 items, showing 2>",
		map[string]any{"id": `<str> "a"`, "value": "<int> 3"},
		map[string]any{"id": `<str> "b"`},
	}, items.Shape["items"])

	assert.Equal(t, "hello", report.Public[1].RawPreview)
	assert.Equal(t, PathProjects+"?season=1", report.Public[4].Endpoint)

	require.NotEmpty(t, report.Authenticated)
	for _, a := range report.Authenticated {
		assert.NotEmpty(t, a.Skipped, a.Endpoint)
	}
}

func TestShape(t *testing.T) {
	assert.Equal(t, "<null>", Shape(nil))
	assert.Equal(t, "<bool> true", Shape(true))
	assert.Equal(t, "<float> 1.5", Shape(1.5))
	assert.Equal(t, []any{"<empty list>"}, Shape([]any{}))
}
