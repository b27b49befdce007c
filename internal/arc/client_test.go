package arc

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const itemsJSON = `{"items": [
	{
		"id": "wire",
		"name": {"en": "Copper Wire", "de": "Kupferdraht"},
		"value": 30,
		"recyclesInto": {"metal": 2},
		"effects": {
			"Damage": {"value": 12, "en": "Damage", "de": "Schaden"},
			"Note": "plain text"
		}
	},
	{"id": "metal", "name": {"en": "Metal Parts"}, "value": 10, "stackSize": 50}
]}`

func newTestClient(t *testing.T, h http.Handler, userKey string) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient("app-key", userKey, WithBaseURL(srv.URL), WithLimiter(nil))
}

func TestFetchItems(t *testing.T) {
	var hits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc(PathItems, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Empty(t, r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, itemsJSON)
	})
	c := newTestClient(t, mux, "")

	items, err := c.FetchItems(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)

	wire := items["wire"]
	assert.Equal(t, "Copper Wire", wire.Name.En(""))
	assert.Equal(t, 1, wire.StackSize)
	assert.Equal(t, map[string]int{"metal": 2}, wire.RecyclesInto)
	require.Len(t, wire.Effects, 1)
	assert.Equal(t, ItemEffect{Value: "12", Labels: LocalizedString{"en": "Damage", "de": "Schaden"}}, wire.Effects["Damage"])

	metal := items["metal"]
	assert.Equal(t, 50, metal.StackSize)
	assert.NotNil(t, metal.RecyclesInto)
	assert.NotNil(t, metal.Description)

	_, err = c.FetchItems(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load(), "second fetch should be cached")

	c.InvalidateCache()
	_, err = c.FetchItems(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
}

func TestFetchQuestsHideoutProjects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(PathQuests, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"quests": {"q1": {"id": "q1", "name": {"en": "First"}, "objectives": [{"en": "Find wire"}]}}}`)
	})
	mux.HandleFunc(PathHideout, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"hideoutModules": {"bench": {"id": "bench", "maxLevel": 2, "levels": [{"level": 1, "requirementItemIds": [{"itemId": "metal", "quantity": 5}]}]}}}`)
	})
	mux.HandleFunc(PathProjects, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"projects": {"p1": {"id": "p1", "disabled": true, "phases": []}}}`)
	})
	c := newTestClient(t, mux, "")
	ctx := context.Background()

	quests, err := c.FetchQuests(ctx)
	require.NoError(t, err)
	require.Contains(t, quests, "q1")
	assert.Equal(t, "Find wire", quests["q1"].Objectives[0].En(""))

	hideout, err := c.FetchHideout(ctx)
	require.NoError(t, err)
	require.Contains(t, hideout, "bench")
	assert.Equal(t, []ItemQuantity{{ItemID: "metal", Quantity: 5}}, hideout["bench"].Levels[0].RequirementItemIDs)

	projects, err := c.FetchProjects(ctx)
	require.NoError(t, err)
	assert.True(t, projects["p1"].Disabled)
}

func TestAPIErrorEnvelope(t *testing.T) {
	tests := []struct {
		name string
		body string
		want APIError
	}{
		{
			name: "envelope",
			body: `{"error": {"code": "INVALID_KEY", "message": "bad key"}}`,
			want: APIError{Code: "INVALID_KEY", Message: "bad key", Status: http.StatusUnauthorized},
		},
		{
			name: "not json",
			body: `<html>oops</html>`,
			want: APIError{Code: "UNKNOWN", Message: "Unknown error", Status: http.StatusUnauthorized},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
				fmt.Fprint(w, tt.body)
			}), "user-key")

			_, err := c.FetchProfile(context.Background())
			require.Error(t, err)
			apiErr, ok := AsAPIError(err)
			require.True(t, ok)
			assert.Equal(t, tt.want, *apiErr)
		})
	}
	assert.Equal(t, "[401] INVALID_KEY: bad key", (&APIError{Code: "INVALID_KEY", Message: "bad key", Status: 401}).Error())
}

func TestFetchStashPaginates(t *testing.T) {
	const totalPages = 3
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, PathStash, r.URL.Path)
		assert.Equal(t, "app-key", r.Header.Get("X-App-Key"))
		assert.Equal(t, "Bearer user-key", r.Header.Get("Authorization"))
		q := r.URL.Query()
		assert.Equal(t, "en", q.Get("locale"))
		assert.Equal(t, "50", q.Get("per_page"))
		assert.Equal(t, "slot", q.Get("sort"))

		page, _ := strconv.Atoi(q.Get("page"))
		fmt.Fprintf(w, `{"data": {"items": [{"itemId": "p%d-a", "quantity": 1}, {"itemId": "p%d-b", "quantity": 2}],
			"pagination": {"page": %d, "perPage": 50, "total": 6, "totalPages": %d}}, "meta": {"requestId": "r"}}`,
			page, page, page, totalPages)
	}), "user-key")

	items, err := c.FetchStash(context.Background(), DefaultStashOptions())
	require.NoError(t, err)

	var ids []string
	for _, it := range items {
		ids = append(ids, it.ItemID)
	}
	assert.Equal(t, []string{"p1-a", "p1-b", "p2-a", "p2-b", "p3-a", "p3-b"}, ids)
}

func TestFetchStashPageError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "2" {
			w.WriteHeader(http.StatusTooManyRequests)
			fmt.Fprint(w, `{"error": {"code": "RATE_LIMITED", "message": "slow down"}}`)
			return
		}
		fmt.Fprint(w, `{"data": {"items": [], "pagination": {"page": 1, "totalPages": 2}}}`)
	}), "user-key")

	_, err := c.FetchStash(context.Background(), DefaultStashOptions())
	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, "RATE_LIMITED", apiErr.Code)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.Status)
}

func TestFetchProfile(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, PathProfile, r.URL.Path)
		fmt.Fprint(w, `{"data": {"userId": "u1", "username": "shonas", "playerLevel": 42, "memberSince": "2025-11-01"}}`)
	}), "user-key")

	p, err := c.FetchProfile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, UserProfile{UserID: "u1", Username: "shonas", PlayerLevel: 42, MemberSince: "2025-11-01"}, *p)
	assert.True(t, c.HasUserKey())
}

func TestNewLimiter(t *testing.T) {
	assert.Equal(t, 6, NewLimiter(60).Burst())
	assert.Equal(t, 1, NewLimiter(5).Burst())
	assert.Equal(t, 6, NewLimiter(0).Burst())
}
