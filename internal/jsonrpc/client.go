package jsonrpc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/vultisig/txengine/internal/libhttp"
)

type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type response struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *Error          `json:"error"`
}

// Error is the JSON-RPC error object returned by the node.
type Error struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Client is a JSON-RPC 2.0 client over HTTP. Each call carries a fresh id.
type Client struct {
	url  string
	http *http.Client
}

func NewClient(url string, httpClient *http.Client) *Client {
	return &Client{
		url:  url,
		http: httpClient,
	}
}

// Call sends one request. A JSON error field is returned as *Error, a non-2xx
// status as *libhttp.StatusError.
func (c *Client) Call(ctx context.Context, method string, params any, result any) error {
	req := request{
		JSONRPC: "2.0",
		ID:      uuid.NewString(),
		Method:  method,
		Params:  params,
	}

	resp, err := libhttp.Call[response](ctx, c.http, http.MethodPost, c.url, nil, req, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	if resp.Error != nil {
		return resp.Error
	}
	if resp.ID != "" && resp.ID != req.ID {
		return fmt.Errorf("%s: response id %s does not match request id %s", method, resp.ID, req.ID)
	}
	if result == nil || len(resp.Result) == 0 {
		return nil
	}

	err = json.Unmarshal(resp.Result, result)
	if err != nil {
		return fmt.Errorf("%s: failed to decode result: %w", method, err)
	}
	return nil
}
