package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-storefront/internal/logger"
	"ms-storefront/internal/models"
)

const eventsJSON = `[{
	"id": 1, "name": "Event1", "description": "", "venue": "KICC", "poster": "",
	"status": "active", "category_id": 2,
	"start_date": "2025-07-01T18:00:00Z", "end_date": "2025-07-01T23:00:00Z",
	"created_at": "2025-06-01T00:00:00Z", "updated_at": "2025-06-01T00:00:00Z",
	"tickets": [
		{"id": 10, "name": "VIP", "price": 1000, "tickets_available": 5},
		{"id": 11, "name": "Regular", "price": 500, "tickets_available": 20}
	],
	"category": {"id": 2, "name": "Music", "event_count": 1}
}]`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", srv.Client(), logger.Discard())
}

func TestClient_GetEventsByIDs(t *testing.T) {
	var gotQuery string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/events", r.URL.Path)
		gotQuery = r.URL.Query().Get("ids")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(eventsJSON))
	})

	events, err := c.GetEventsByIDs(context.Background(), []int{1, 2, 3})
	require.NoError(t, err)

	assert.Equal(t, "1,2,3", gotQuery)
	require.Len(t, events, 1)
	assert.Equal(t, "Event1", events[0].Name)
	assert.Equal(t, models.EventStatusActive, events[0].Status)
	require.Len(t, events[0].Tickets, 2)
	assert.Equal(t, 1000.0, events[0].Tickets[0].Price)
	assert.Equal(t, 20, events[0].Tickets[1].TicketsAvailable)
	require.NotNil(t, events[0].Category)
	assert.Equal(t, "Music", events[0].Category.Name)
}

func TestClient_GetEventsByIDsEmptySkipsRequest(t *testing.T) {
	called := false
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	events, err := c.GetEventsByIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.False(t, called)
}

func TestClient_NonSuccessStatusIsAPIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message":"Event not found"}`))
	})

	_, err := c.GetEvent(context.Background(), 99)
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "Event not found", apiErr.Message)
	assert.True(t, IsTransport(err))
}

func TestClient_UnreachableIsTransport(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	c := NewClient(srv.URL, nil, logger.Discard())

	_, err := c.ListEvents(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnreachable)
	assert.True(t, IsTransport(err))
}

func TestClient_DecodeFailureIsNotTransport(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"not":"an array"}`))
	})

	_, err := c.ListCategories(context.Background())
	require.Error(t, err)
	assert.False(t, IsTransport(err))
}

func TestClient_LoginPostsJSONAndSendsToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/login", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer abc", r.Header.Get("Authorization"))

		var req models.LoginRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "jane@example.com", req.Email)

		w.Write([]byte(`{"message":"ok","access_token":"tok","user":{"id":3,"name":"Jane","role":"admin"}}`))
	})

	resp, err := c.WithToken("abc").Login(context.Background(), models.LoginRequest{Email: "jane@example.com", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "tok", resp.AccessToken)
	require.NotNil(t, resp.User)
	assert.True(t, resp.User.IsAdmin())
}

func TestClient_WithTokenDoesNotMutateOriginal(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		w.Write([]byte(`[]`))
	})
	_ = c.WithToken("secret")

	_, err := c.ListUsers(context.Background())
	require.NoError(t, err)
}

func TestFilterByCategory(t *testing.T) {
	events := []models.Event{{ID: 1, CategoryID: 2}, {ID: 2, CategoryID: 3}, {ID: 3, CategoryID: 2}}

	assert.Len(t, FilterByCategory(events, 0), 3)

	got := FilterByCategory(events, 2)
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].ID)
	assert.Equal(t, 3, got[1].ID)

	assert.Empty(t, FilterByCategory(events, 9))
}

func TestClient_AcceptsDatesWithoutOffset(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{
			"id": 1, "name": "Event1", "status": "active",
			"start_date": "2025-07-01T18:00:00", "end_date": "2025-07-01 23:00:00",
			"created_at": "2025-06-01", "updated_at": "next tuesday",
			"tickets": [{"id": 10, "name": "VIP", "price": 1000, "tickets_available": 5}]
		}]`))
	})

	events, err := c.GetEventsByIDs(context.Background(), []int{1})
	require.NoError(t, err)
	require.Len(t, events, 1)

	ev := events[0]
	assert.Equal(t, time.Date(2025, 7, 1, 18, 0, 0, 0, time.UTC), ev.StartDate.Time)
	assert.Equal(t, time.Date(2025, 7, 1, 23, 0, 0, 0, time.UTC), ev.EndDate.Time)
	assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), ev.CreatedAt.Time)
	assert.True(t, ev.UpdatedAt.IsZero())
	require.Len(t, ev.Tickets, 1)

	// the original text goes back out unchanged
	raw, err := json.Marshal(ev)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"start_date":"2025-07-01T18:00:00"`)
	assert.Contains(t, string(raw), `"updated_at":"next tuesday"`)
}
