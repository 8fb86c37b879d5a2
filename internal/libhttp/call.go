package libhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

const maxErrorBody = 4096

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code %d: %s", e.Code, e.Body)
}

// Call performs one JSON request and decodes the JSON response into T.
// body is JSON encoded when non-nil; query values are appended to the url.
func Call[T any](
	ctx context.Context,
	client *http.Client,
	method string,
	rawURL string,
	headers map[string]string,
	body any,
	query map[string]string,
) (T, error) {
	var zero T

	if len(query) > 0 {
		u, err := url.Parse(rawURL)
		if err != nil {
			return zero, fmt.Errorf("failed to parse url: %w", err)
		}
		q := u.Query()
		for k, v := range query {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
		rawURL = u.String()
	}

	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return zero, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reqBody)
	if err != nil {
		return zero, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return zero, fmt.Errorf("failed to make request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return zero, &StatusError{Code: resp.StatusCode, Body: string(b)}
	}

	var res T
	err = json.NewDecoder(resp.Body).Decode(&res)
	if err != nil {
		return zero, fmt.Errorf("failed to decode response: %w", err)
	}
	return res, nil
}
