package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// maxResponseSize caps how much of a response body is read
const maxResponseSize = 16 << 20

// HTTPClient sends JSON-RPC requests as HTTP POSTs
type HTTPClient struct {
	endpoint string
	client   *http.Client
	headers  http.Header
}

// HTTPOption configures an HTTPClient
type HTTPOption func(*HTTPClient)

// WithHTTPClient sets the underlying *http.Client
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(h *HTTPClient) {
		h.client = c
	}
}

// WithHeader adds a header to every request
func WithHeader(key, value string) HTTPOption {
	return func(h *HTTPClient) {
		h.headers.Add(key, value)
	}
}

// NewHTTPClient creates a client posting to endpoint
func NewHTTPClient(endpoint string, opts ...HTTPOption) *HTTPClient {
	h := &HTTPClient{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 30 * time.Second},
		headers:  make(http.Header),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Call sends method with named params and returns the raw JSON result
func (h *HTTPClient) Call(ctx context.Context, method string, params map[string]any) (any, error) {
	req, err := NewRequest(method, params, uuid.NewString())
	if err != nil {
		return nil, &TransportError{Method: method, Op: "encode", Err: err}
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, &TransportError{Method: method, Op: "encode", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{Method: method, Op: "send", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for key, values := range h.headers {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}

	httpResp, err := h.client.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Method: method, Op: "send", Err: err}
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseSize))
	if err != nil {
		return nil, &TransportError{Method: method, Op: "read", Err: err}
	}

	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		if httpResp.StatusCode != http.StatusOK {
			return nil, &TransportError{Method: method, Op: "send", Err: fmt.Errorf("unexpected status %s", httpResp.Status)}
		}
		return nil, &TransportError{Method: method, Op: "decode", Err: err}
	}
	if resp.JSONRPC != Version {
		return nil, &TransportError{Method: method, Op: "decode", Err: ErrInvalidVersion}
	}
	if !bytes.Equal(resp.ID, req.ID) {
		return nil, &TransportError{Method: method, Op: "decode", Err: fmt.Errorf("response id %s does not match request id %s", resp.ID, req.ID)}
	}

	return resp.result()
}
