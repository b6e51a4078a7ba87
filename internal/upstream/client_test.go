package upstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	apperrors "github.com/gridhq/tablecache/pkg/errors"
	"github.com/gridhq/tablecache/internal/schema"
)

func TestFetchRows(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.Equal(t, "/tables/tbl1/records", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"records": [
			{"id": "rec1", "fields": {"status": "Active", "priority": 5}},
			{"id": "rec2", "fields": {"status": "Done"}}
		]}`))
	}))
	defer srv.Close()

	c, err := NewClient(Config{BaseURL: srv.URL, Token: "secret"})
	require.NoError(t, err)

	rows, err := c.FetchRows(context.Background(), "tbl1")
	require.NoError(t, err)
	require.Equal(t, "Bearer secret", gotAuth)
	require.Len(t, rows, 2)
	require.Equal(t, "rec1", rows[0].ID)
	require.Equal(t, "Active", rows[0].Fields["status"])
}

func TestSchema(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/tables/tbl1/schema", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"fields": [
			{"slug": "status", "type": "text"},
			{"slug": "priority", "type": "number"}
		]}`))
	}))
	defer srv.Close()

	c, err := NewClient(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	snap, err := c.Schema(context.Background(), "tbl1")
	require.NoError(t, err)
	require.Equal(t, 2, snap.Len())
	ft, ok := snap.TypeOf("priority")
	require.True(t, ok)
	require.Equal(t, schema.TypeNumber, ft)
}

func TestNotFoundMapsToTableNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c, err := NewClient(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = c.FetchRows(context.Background(), "missing")
	require.ErrorIs(t, err, apperrors.ErrTableNotFound)
}

func TestServerErrorMapsToUpstreamUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c, err := NewClient(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = c.FetchRows(context.Background(), "tbl1")
	appErr := apperrors.FromError(err)
	require.Equal(t, apperrors.ErrUpstreamUnavailable.Code, appErr.Code)
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	_, err := NewClient(Config{})
	require.Error(t, err)
}
