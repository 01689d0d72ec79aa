package cloud

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/orderstack/pos-ledger/pkg/logger"
	"github.com/valyala/fasthttp"
)

var ErrEndpointUnavailable = errors.New("cloud endpoint unavailable")

// Config configures the sync client. There is deliberately no retry here: the
// outbox engine's fixed polling interval is the retry mechanism, so the client
// makes exactly one attempt per call with a hard deadline.
type Config struct {
	BaseURL         string
	Timeout         time.Duration
	MaxConns        int
	ReadBufferSize  int
	WriteBufferSize int
}

// Client pushes transaction batches to the cloud ingest endpoint.
type Client struct {
	config *Config
	http   *fasthttp.Client

	// running counters surfaced by the sync status query
	pushes   atomic.Int64
	failures atomic.Int64
}

func NewClient(config *Config) (*Client, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}
	if config.BaseURL == "" {
		return nil, errors.New("base URL is required")
	}
	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}

	httpClient := &fasthttp.Client{
		MaxConnsPerHost:     config.MaxConns,
		ReadTimeout:         config.Timeout,
		WriteTimeout:        config.Timeout,
		MaxIdleConnDuration: 60 * time.Second,
		ReadBufferSize:      config.ReadBufferSize,
		WriteBufferSize:     config.WriteBufferSize,
	}

	return &Client{config: config, http: httpClient}, nil
}

// Push submits one batch for the tenant and returns the endpoint's verdict.
// A transport failure (timeout included) is returned as an error; an HTTP
// error status is treated the same way since the batch outcome is unknown.
func (c *Client) Push(ctx context.Context, tenantID string, batch []TransactionPayload) (*SyncResponse, error) {
	body, err := json.Marshal(SyncRequest{Transactions: batch})
	if err != nil {
		return nil, fmt.Errorf("marshal sync request: %w", err)
	}

	path := fmt.Sprintf("/api/sales/%s/sync", tenantID)
	respBody, err := c.doRequest(ctx, "POST", path, body)
	if err != nil {
		c.failures.Add(1)
		return nil, err
	}

	var resp SyncResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		c.failures.Add(1)
		return nil, fmt.Errorf("unmarshal sync response: %w", err)
	}

	c.pushes.Add(1)
	logger.Info("batch pushed to cloud",
		"tenant", tenantID, "submitted", len(batch), "synced", resp.Synced, "errors", len(resp.Errors))
	return &resp, nil
}

// Stats returns the number of successful and failed pushes since start.
func (c *Client) Stats() (pushes, failures int64) {
	return c.pushes.Load(), c.failures.Load()
}

func (c *Client) doRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.config.BaseURL + path)
	req.Header.SetMethod(method)
	req.Header.SetContentType("application/json")
	if body != nil {
		req.SetBody(body)
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.config.Timeout)
	}

	if err := c.http.DoDeadline(req, resp, deadline); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEndpointUnavailable, err)
	}

	statusCode := resp.StatusCode()
	if statusCode != fasthttp.StatusOK && statusCode != fasthttp.StatusAccepted {
		return nil, fmt.Errorf("%w: unexpected status code %d, body: %s", ErrEndpointUnavailable, statusCode, resp.Body())
	}

	result := make([]byte, len(resp.Body()))
	copy(result, resp.Body())
	return result, nil
}
