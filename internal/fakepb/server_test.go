package fakepb

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuanzhaoK/admin-platform-sub000/pkg/connection"
)

func newConnection(t *testing.T, s *Server) *connection.HTTPConnection {
	t.Helper()

	con, err := connection.NewHTTPConnection(connection.NewConnectionParams{BaseURL: s.URL()})
	require.NoError(t, err)
	return con
}

func TestLogin(t *testing.T) {
	s := NewServer()
	defer s.Close()
	con := newConnection(t, s)
	ctx := context.Background()

	token, err := con.AuthWithPassword(ctx, DefaultIdentity, DefaultPassword)
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	_, err = con.AuthWithPassword(ctx, DefaultIdentity, "wrong")
	var apiErr *connection.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "Failed to authenticate.", apiErr.Message)

	assert.Equal(t, 2, s.LoginCount())
}

func TestFailNextLogins(t *testing.T) {
	s := NewServer()
	defer s.Close()
	con := newConnection(t, s)
	ctx := context.Background()

	s.FailNextLogins(2)
	for i := 0; i < 2; i++ {
		_, err := con.AuthWithPassword(ctx, DefaultIdentity, DefaultPassword)
		require.Error(t, err)
	}
	_, err := con.AuthWithPassword(ctx, DefaultIdentity, DefaultPassword)
	require.NoError(t, err)
}

func TestLoginDelayHonoursContext(t *testing.T) {
	s := NewServer()
	defer s.Close()
	con := newConnection(t, s)

	s.SetLoginDelay(time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := con.AuthWithPassword(ctx, DefaultIdentity, DefaultPassword)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestHealthToggle(t *testing.T) {
	s := NewServer()
	defer s.Close()
	con := newConnection(t, s)
	ctx := context.Background()

	require.NoError(t, con.Health(ctx))

	s.SetHealthy(false)
	err := con.Health(ctx)
	var apiErr *connection.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.Status)

	assert.Equal(t, 2, s.HealthCount())
}

func TestRecordsRequireToken(t *testing.T) {
	s := NewServer()
	defer s.Close()
	con := newConnection(t, s)
	ctx := context.Background()

	_, err := con.Do(ctx, "", connection.Request{Path: "/api/collections/orders/records"})
	var apiErr *connection.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.Unauthorized())

	token, err := con.AuthWithPassword(ctx, DefaultIdentity, DefaultPassword)
	require.NoError(t, err)

	_, err = con.Do(ctx, token, connection.Request{Path: "/api/collections/orders/records"})
	require.NoError(t, err)

	s.RevokeTokens()
	_, err = con.Do(ctx, token, connection.Request{Path: "/api/collections/orders/records"})
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.Unauthorized())

	assert.Equal(t, 3, s.RecordRequests())
}

func TestRecordsCRUD(t *testing.T) {
	s := NewServer()
	defer s.Close()
	con := newConnection(t, s)
	ctx := context.Background()

	token, err := con.AuthWithPassword(ctx, DefaultIdentity, DefaultPassword)
	require.NoError(t, err)

	res, err := con.Do(ctx, token, connection.Request{
		Method: http.MethodPost,
		Path:   "/api/collections/products/records",
		Body:   map[string]any{"sku": "A-1", "price": 10},
	})
	require.NoError(t, err)
	var created map[string]any
	require.NoError(t, res.Decode(&created))
	id, _ := created["id"].(string)
	require.NotEmpty(t, id)
	assert.Equal(t, "products", created["collectionName"])

	res, err = con.Do(ctx, token, connection.Request{
		Method: http.MethodPatch,
		Path:   "/api/collections/products/records/" + id,
		Body:   map[string]any{"price": 12},
	})
	require.NoError(t, err)
	var updated map[string]any
	require.NoError(t, res.Decode(&updated))
	assert.EqualValues(t, 12, updated["price"])
	assert.Equal(t, "A-1", updated["sku"])

	_, err = con.Do(ctx, token, connection.Request{Method: http.MethodDelete, Path: "/api/collections/products/records/" + id})
	require.NoError(t, err)

	_, err = con.Do(ctx, token, connection.Request{Path: "/api/collections/products/records/" + id})
	var apiErr *connection.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
}

func TestListFilterAndPaging(t *testing.T) {
	s := NewServer()
	defer s.Close()
	con := newConnection(t, s)
	ctx := context.Background()

	s.Seed("orders", map[string]any{"id": "o1", "status": "paid"})
	s.Seed("orders", map[string]any{"id": "o2", "status": "pending"})
	s.Seed("orders", map[string]any{"id": "o3", "status": "paid"})

	token, err := con.AuthWithPassword(ctx, DefaultIdentity, DefaultPassword)
	require.NoError(t, err)

	res, err := con.Do(ctx, token, connection.Request{
		Path:  "/api/collections/orders/records",
		Query: map[string][]string{"filter": {"status='paid'"}, "perPage": {"1"}, "page": {"2"}},
	})
	require.NoError(t, err)

	var list struct {
		Page       int              `json:"page"`
		TotalItems int              `json:"totalItems"`
		TotalPages int              `json:"totalPages"`
		Items      []map[string]any `json:"items"`
	}
	require.NoError(t, res.Decode(&list))
	assert.Equal(t, 2, list.Page)
	assert.Equal(t, 2, list.TotalItems)
	assert.Equal(t, 2, list.TotalPages)
	require.Len(t, list.Items, 1)
	assert.Equal(t, "o3", list.Items[0]["id"])
}

func TestParseFilter(t *testing.T) {
	field, value, ok := parseFilter(`email = "a@b.c"`)
	assert.True(t, ok)
	assert.Equal(t, "email", field)
	assert.Equal(t, "a@b.c", value)

	_, _, ok = parseFilter("")
	assert.False(t, ok)
}
