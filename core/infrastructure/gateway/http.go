package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/dataask/dataask/core/domain"
	"github.com/dataask/dataask/core/logger"
	"github.com/dataask/dataask/core/observability"
	apperrors "github.com/dataask/dataask/core/shared/errors"
)

const (
	// testManifest is the placeholder MDL sent with plain SQL queries.
	testManifest = `{"catalog": "test", "schema": "test", "models": []}`

	DefaultTestTimeout     = 30 * time.Second
	DefaultMetadataTimeout = 60 * time.Second
	DefaultQueryTimeout    = 60 * time.Second
)

// HTTPStatusError is the cause of a GATEWAY_HTTP_ERROR.
type HTTPStatusError struct {
	StatusCode int
	Detail     string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("gateway returned %d: %s", e.StatusCode, e.Detail)
}

// HTTPGateway talks to an ibis-server compatible query gateway.
type HTTPGateway struct {
	baseURL         string
	client          *http.Client
	testTimeout     time.Duration
	metadataTimeout time.Duration
	queryTimeout    time.Duration
	log             logger.Logger
}

// HTTPOption configures an HTTPGateway.
type HTTPOption func(*HTTPGateway)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(g *HTTPGateway) { g.client = c }
}

// WithTimeouts overrides the per-operation timeouts; zero keeps the default.
func WithTimeouts(test, metadata, query time.Duration) HTTPOption {
	return func(g *HTTPGateway) {
		if test > 0 {
			g.testTimeout = test
		}
		if metadata > 0 {
			g.metadataTimeout = metadata
		}
		if query > 0 {
			g.queryTimeout = query
		}
	}
}

// NewHTTPGateway creates a gateway client for baseURL.
func NewHTTPGateway(baseURL string, opts ...HTTPOption) *HTTPGateway {
	g := &HTTPGateway{
		baseURL:         strings.TrimRight(baseURL, "/"),
		client:          &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		testTimeout:     DefaultTestTimeout,
		metadataTimeout: DefaultMetadataTimeout,
		queryTimeout:    DefaultQueryTimeout,
		log:             logger.New("gateway:http"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

type queryRequest struct {
	SQL            string             `json:"sql"`
	ManifestStr    string             `json:"manifestStr"`
	ConnectionInfo domain.Credentials `json:"connectionInfo"`
}

type metadataRequest struct {
	ConnectionInfo domain.Credentials `json:"connectionInfo"`
}

// TestConnection runs `SELECT 1 as test` in dry-run mode. Failures are
// reported in the result, not as an error.
func (g *HTTPGateway) TestConnection(ctx context.Context, dialect Dialect, creds domain.Credentials) (*domain.ConnectionTest, error) {
	body := queryRequest{SQL: "SELECT 1 as test", ManifestStr: testManifest, ConnectionInfo: creds}
	params := url.Values{"dryRun": []string{"true"}}

	err := g.post(ctx, dialect, "test", "/query", params, body, g.testTimeout, nil)
	if err == nil {
		return &domain.ConnectionTest{Status: "success", Message: "Connection successful"}, nil
	}

	var statusErr *HTTPStatusError
	switch {
	case errors.As(err, &statusErr):
		return &domain.ConnectionTest{
			Status:  "error",
			Message: "Connection failed: " + statusErr.Detail,
			Error:   statusErr.Error(),
		}, nil
	case apperrors.HasCode(err, apperrors.ErrCodeGatewayTimeout):
		return &domain.ConnectionTest{Status: "error", Message: "Connection test timed out", Error: "timeout"}, nil
	default:
		return &domain.ConnectionTest{
			Status:  "error",
			Message: "Connection test failed: " + err.Error(),
			Error:   err.Error(),
		}, nil
	}
}

// ListTables returns the gateway's table metadata.
func (g *HTTPGateway) ListTables(ctx context.Context, dialect Dialect, creds domain.Credentials) ([]domain.Table, error) {
	var tables []domain.Table
	err := g.post(ctx, dialect, "list_tables", "/metadata/tables", nil, metadataRequest{ConnectionInfo: creds}, g.metadataTimeout, &tables)
	return tables, err
}

// ListConstraints returns the gateway's constraint metadata.
func (g *HTTPGateway) ListConstraints(ctx context.Context, dialect Dialect, creds domain.Credentials) ([]domain.Constraint, error) {
	var constraints []domain.Constraint
	err := g.post(ctx, dialect, "list_constraints", "/metadata/constraints", nil, metadataRequest{ConnectionInfo: creds}, g.metadataTimeout, &constraints)
	return constraints, err
}

// PreviewTable selects up to limit rows of table.
func (g *HTTPGateway) PreviewTable(ctx context.Context, dialect Dialect, creds domain.Credentials, table string, limit int) (any, error) {
	body := queryRequest{SQL: "SELECT * FROM " + table, ManifestStr: testManifest, ConnectionInfo: creds}
	params := url.Values{"limit": []string{strconv.Itoa(limit)}}

	var out any
	err := g.post(ctx, dialect, "preview", "/query", params, body, g.metadataTimeout, &out)
	return out, err
}

// RunQuery executes sql; limit <= 0 sends no limit parameter.
func (g *HTTPGateway) RunQuery(ctx context.Context, dialect Dialect, creds domain.Credentials, sql string, limit int) (any, error) {
	body := queryRequest{SQL: sql, ManifestStr: testManifest, ConnectionInfo: creds}
	var params url.Values
	if limit > 0 {
		params = url.Values{"limit": []string{strconv.Itoa(limit)}}
	}

	var out any
	err := g.post(ctx, dialect, "query", "/query", params, body, g.queryTimeout, &out)
	return out, err
}

func (g *HTTPGateway) post(ctx context.Context, dialect Dialect, op, path string, params url.Values, body any, timeout time.Duration, out any) error {
	start := time.Now()
	err := g.do(ctx, dialect, path, params, body, timeout, out)
	observability.RecordGatewayOperation(ctx, "http", string(dialect), op, err == nil, float64(time.Since(start).Milliseconds()))
	if err != nil {
		g.log.Debugf("%s %s failed after %s: %v", op, dialect, time.Since(start), err)
	}
	return err
}

func (g *HTTPGateway) do(ctx context.Context, dialect Dialect, path string, params url.Values, body any, timeout time.Duration, out any) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/v2/connector/%s%s", g.baseURL, dialect, path)
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return apperrors.WrapError(apperrors.ErrCodeInternalError, "encode gateway request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return apperrors.WrapError(apperrors.ErrCodeInternalError, "build gateway request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return classifyTransportError(ctx, err, timeout)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return classifyTransportError(ctx, err, timeout)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := &HTTPStatusError{StatusCode: resp.StatusCode, Detail: errorDetail(raw, resp.Status)}
		return apperrors.WrapError(apperrors.ErrCodeGatewayHTTPError, statusErr.Error(), statusErr)
	}

	if out == nil {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return apperrors.WrapError(apperrors.ErrCodeGatewayBadResponse, "decode gateway response", err)
	}
	return nil
}

func classifyTransportError(ctx context.Context, err error, timeout time.Duration) error {
	var netErr net.Error
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return apperrors.WrapError(apperrors.ErrCodeGatewayTimeout,
			fmt.Sprintf("gateway did not respond within %s", timeout), err)
	}
	return apperrors.WrapError(apperrors.ErrCodeGatewayUnavailable, "gateway request failed", err)
}

// errorDetail extracts `detail` from a JSON error body, falling back to the
// raw body and then the status line.
func errorDetail(raw []byte, status string) string {
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err == nil {
		if detail, ok := payload["detail"]; ok {
			if s, ok := detail.(string); ok {
				return s
			}
			b, _ := json.Marshal(detail)
			return string(b)
		}
		return strings.TrimSpace(string(raw))
	}
	if text := strings.TrimSpace(string(raw)); text != "" {
		return text
	}
	return status
}
