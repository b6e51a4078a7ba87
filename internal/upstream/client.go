package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/gridhq/tablecache/internal/cache"
	"github.com/gridhq/tablecache/internal/schema"
	apperrors "github.com/gridhq/tablecache/pkg/errors"
	"github.com/gridhq/tablecache/pkg/logger"
)

const defaultTimeout = 30 * time.Second

// Config holds connection parameters for the remote tabular-data API.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// Client fetches schemas and full row sets from the remote platform.
// It performs one fetch per call; retry and backoff belong to the
// caller's policy, not here.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	log     *zap.Logger
}

// NewClient builds a Client from configuration.
func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("upstream: base URL must be provided")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: base,
		token:   cfg.Token,
		http:    &http.Client{Timeout: timeout},
		log:     logger.WithModule("upstream"),
	}, nil
}

type schemaResponse struct {
	Fields []schema.Field `json:"fields"`
}

// Schema fetches the field list for a table.
func (c *Client) Schema(ctx context.Context, tableID string) (schema.Snapshot, error) {
	var payload schemaResponse
	if err := c.getJSON(ctx, fmt.Sprintf("/tables/%s/schema", url.PathEscape(tableID)), &payload); err != nil {
		return schema.Snapshot{}, err
	}
	return schema.NewSnapshot(payload.Fields), nil
}

type recordsResponse struct {
	Records []cache.Record `json:"records"`
}

// FetchRows fetches the full row set for a table.
func (c *Client) FetchRows(ctx context.Context, tableID string) ([]cache.Record, error) {
	var payload recordsResponse
	if err := c.getJSON(ctx, fmt.Sprintf("/tables/%s/records", url.PathEscape(tableID)), &payload); err != nil {
		return nil, err
	}
	return payload.Records, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return apperrors.ErrUpstreamUnavailable.WithInternal(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return apperrors.ErrTableNotFound
	case resp.StatusCode >= 400:
		c.log.Warn("upstream request failed",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
		)
		return apperrors.ErrUpstreamUnavailable.WithInternal(
			fmt.Errorf("upstream: unexpected status %d", resp.StatusCode))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.ErrUpstreamUnavailable.WithInternal(
			fmt.Errorf("upstream: decode response: %w", err))
	}
	return nil
}
