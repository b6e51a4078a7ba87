package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/gridhq/tablecache/internal/cache"
	"github.com/gridhq/tablecache/internal/database/testutil"
	"github.com/gridhq/tablecache/internal/dates"
	"github.com/gridhq/tablecache/internal/schema"
	"github.com/gridhq/tablecache/internal/services"
)

type stubSource struct {
	rows []cache.Record
}

func (s *stubSource) FetchRows(ctx context.Context, tableID string) ([]cache.Record, error) {
	return s.rows, nil
}

type stubSchemas struct {
	snap schema.Snapshot
}

func (s *stubSchemas) Schema(ctx context.Context, tableID string) (schema.Snapshot, error) {
	return s.snap, nil
}

type envelope struct {
	Success bool             `json:"success"`
	Data    json.RawMessage  `json:"data"`
	Error   *json.RawMessage `json:"error"`
	Meta    *struct {
		Page     int   `json:"page"`
		PerPage  int   `json:"per_page"`
		Total    int64 `json:"total"`
		CacheHit *bool `json:"cache_hit"`
	} `json:"meta"`
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	store, err := cache.NewStore(db)
	require.NoError(t, err)

	source := &stubSource{rows: []cache.Record{
		{ID: "rec1", Fields: map[string]any{"status": "Active", "priority": 5.0}},
		{ID: "rec2", Fields: map[string]any{"status": "Done", "priority": 1.0}},
	}}
	schemas := &stubSchemas{snap: schema.NewSnapshot([]schema.Field{
		{Slug: "status", Type: schema.TypeText},
		{Slug: "priority", Type: schema.TypeNumber},
	})}

	svc, err := services.NewQueryService(store, schemas, source, dates.NewResolver("utc"), services.QueryServiceConfig{
		DefaultTTL: time.Hour,
	})
	require.NoError(t, err)

	r, err := NewRouter(svc, false)
	require.NoError(t, err)
	return r
}

func doRequest(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("{}")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	r := newTestRouter(t)

	w := doRequest(r, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
}

func TestQueryEndpointMissThenHit(t *testing.T) {
	r := newTestRouter(t)

	w := doRequest(r, http.MethodPost, "/api/tables/tbl1/query", "{}")
	require.Equal(t, http.StatusOK, w.Code)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	require.True(t, env.Success)
	require.NotNil(t, env.Meta)
	require.EqualValues(t, 2, env.Meta.Total)
	require.NotNil(t, env.Meta.CacheHit)
	require.False(t, *env.Meta.CacheHit)

	w = doRequest(r, http.MethodPost, "/api/tables/tbl1/query", "{}")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	require.NotNil(t, env.Meta.CacheHit)
	require.True(t, *env.Meta.CacheHit)
}

func TestQueryEndpointFiltered(t *testing.T) {
	r := newTestRouter(t)

	body := `{"filter": {"operator": "and", "fields": [
		{"field": "status", "comparison": "is", "value": "Active"}
	]}}`
	w := doRequest(r, http.MethodPost, "/api/tables/tbl1/query", body)
	require.Equal(t, http.StatusOK, w.Code)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	require.EqualValues(t, 1, env.Meta.Total)

	var records []map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &records))
	require.Len(t, records, 1)
	require.Equal(t, "rec1", records[0]["id"])
}

func TestQueryEndpointRejectsMalformedBody(t *testing.T) {
	r := newTestRouter(t)

	w := doRequest(r, http.MethodPost, "/api/tables/tbl1/query", "{not json")
	require.Equal(t, http.StatusBadRequest, w.Code)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	require.False(t, env.Success)
	require.NotNil(t, env.Error)
}

func TestQueryEndpointRejectsOversizedPage(t *testing.T) {
	r := newTestRouter(t)

	w := doRequest(r, http.MethodPost, "/api/tables/tbl1/query", `{"per_page": 9999}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCacheInfoEndpoint(t *testing.T) {
	r := newTestRouter(t)

	w := doRequest(r, http.MethodGet, "/api/tables/tbl1/cache", "")
	require.Equal(t, http.StatusOK, w.Code)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	var info map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &info))
	require.Equal(t, false, info["cached"])

	doRequest(r, http.MethodPost, "/api/tables/tbl1/query", "{}")

	w = doRequest(r, http.MethodGet, "/api/tables/tbl1/cache", "")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	require.NoError(t, json.Unmarshal(env.Data, &info))
	require.Equal(t, true, info["cached"])
}
