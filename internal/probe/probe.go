package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/itchyny/gojq"
	apperrors "github.com/turtacn/nodesync/pkg/errors"
	"github.com/turtacn/nodesync/pkg/logger"
)

const maxBodyBytes = 1 << 20

// Client queries a status endpoint and extracts the progress counter from its
// JSON body. It never retries; callers own retry policy.
type Client struct {
	http *http.Client
	code *gojq.Code
	expr string
}

// New creates a Client whose requests are bounded by timeout. progressQuery is
// a jq expression selecting the progress field, e.g. ".ledger_version".
func New(timeout time.Duration, progressQuery string) (*Client, error) {
	if timeout <= 0 {
		return nil, fmt.Errorf("probe timeout must be positive, got %s", timeout)
	}
	return NewWithHTTPClient(&http.Client{Timeout: timeout}, progressQuery)
}

// NewWithHTTPClient wraps an existing http.Client.
func NewWithHTTPClient(hc *http.Client, progressQuery string) (*Client, error) {
	progressQuery = strings.TrimSpace(progressQuery)
	if progressQuery == "" {
		return nil, fmt.Errorf("progress query is required")
	}
	parsed, err := gojq.Parse(progressQuery)
	if err != nil {
		return nil, fmt.Errorf("invalid progress query %q: %w", progressQuery, err)
	}
	code, err := gojq.Compile(parsed)
	if err != nil {
		return nil, fmt.Errorf("failed to compile progress query %q: %w", progressQuery, err)
	}
	return &Client{http: hc, code: code, expr: progressQuery}, nil
}

// FetchProgress issues a single GET to endpoint.
//
// Transport failures and empty bodies return ErrCodeProbeUnreachable. A response
// that arrived but cannot yield a progress value (non-2xx status, invalid JSON,
// missing or non-integer field) returns ErrCodeMalformedResponse.
func (c *Client) FetchProgress(ctx context.Context, endpoint string) (uint64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, apperrors.New(apperrors.ErrCodeProbeUnreachable, "Probe", "invalid endpoint "+endpoint, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, apperrors.New(apperrors.ErrCodeProbeUnreachable, "Probe", "GET "+endpoint+" failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return 0, apperrors.New(apperrors.ErrCodeProbeUnreachable, "Probe", "reading body from "+endpoint+" failed", err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return 0, apperrors.New(apperrors.ErrCodeProbeUnreachable, "Probe", "empty response from "+endpoint, nil)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, apperrors.New(apperrors.ErrCodeMalformedResponse, "Probe",
			fmt.Sprintf("unexpected status %d from %s", resp.StatusCode, endpoint), nil)
	}

	v, err := c.extract(body)
	if err != nil {
		return 0, apperrors.New(apperrors.ErrCodeMalformedResponse, "Probe", "no progress value in response from "+endpoint, err)
	}
	logger.Log.Debug("Probe: progress fetched", "endpoint", endpoint, "progress", v)
	return v, nil
}

func (c *Client) extract(body []byte) (uint64, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var payload any
	if err := dec.Decode(&payload); err != nil {
		return 0, fmt.Errorf("body is not valid JSON: %w", err)
	}

	iter := c.code.Run(normalize(payload))
	value, ok := iter.Next()
	if !ok {
		return 0, fmt.Errorf("query %s produced no value", c.expr)
	}
	if err, isErr := value.(error); isErr {
		return 0, fmt.Errorf("query %s failed: %w", c.expr, err)
	}
	return toProgress(value)
}

// normalize converts json.Number into the numeric types gojq understands.
func normalize(v any) any {
	switch typed := v.(type) {
	case map[string]any:
		for k, inner := range typed {
			typed[k] = normalize(inner)
		}
		return typed
	case []any:
		for i := range typed {
			typed[i] = normalize(typed[i])
		}
		return typed
	case json.Number:
		if i, err := typed.Int64(); err == nil {
			return int(i)
		}
		if b, ok := new(big.Int).SetString(typed.String(), 10); ok {
			return b
		}
		if f, err := typed.Float64(); err == nil {
			return f
		}
		return typed.String()
	default:
		return typed
	}
}

func toProgress(v any) (uint64, error) {
	switch typed := v.(type) {
	case nil:
		return 0, fmt.Errorf("progress field is missing")
	case string:
		n, err := strconv.ParseUint(strings.TrimSpace(typed), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("progress %q is not a non-negative integer: %w", typed, err)
		}
		return n, nil
	case int:
		if typed < 0 {
			return 0, fmt.Errorf("progress %d is negative", typed)
		}
		return uint64(typed), nil
	case *big.Int:
		if !typed.IsUint64() {
			return 0, fmt.Errorf("progress %s is out of range", typed)
		}
		return typed.Uint64(), nil
	case float64:
		if typed < 0 || typed != math.Trunc(typed) || typed > 1<<53 {
			return 0, fmt.Errorf("progress %v is not a non-negative integer", typed)
		}
		return uint64(typed), nil
	default:
		return 0, fmt.Errorf("progress has unsupported type %T", v)
	}
}

// Personal.AI order the ending
