package auth

import (
	"context"
	"net/http"
)

// Credentials authenticate a single request against a node provider.
type Credentials struct {
	APIKey       string
	APIKeyHeader string
	BearerToken  string
	Headers      map[string]string
	// QueryParams are for providers that only take keys in the url.
	QueryParams map[string]string
}

type credentialsKey struct{}

func WithCredentials(ctx context.Context, c Credentials) context.Context {
	return context.WithValue(ctx, credentialsKey{}, c)
}

func FromContext(ctx context.Context) (Credentials, bool) {
	c, ok := ctx.Value(credentialsKey{}).(Credentials)
	return c, ok
}

// Header renders the credentials as HTTP headers.
func (c Credentials) Header() http.Header {
	h := make(http.Header)
	for k, v := range c.Headers {
		h.Set(k, v)
	}
	if c.APIKey != "" {
		name := c.APIKeyHeader
		if name == "" {
			name = "X-API-Key"
		}
		h.Set(name, c.APIKey)
	}
	if c.BearerToken != "" {
		h.Set("Authorization", "Bearer "+c.BearerToken)
	}
	return h
}

// Transport copies the credentials found on each request's context onto the
// outgoing request. The pooled client itself never holds credentials.
type Transport struct {
	Base http.RoundTripper
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	c, ok := FromContext(req.Context())
	if !ok {
		return t.base().RoundTrip(req)
	}

	out := req.Clone(req.Context())
	for k, v := range c.Header() {
		out.Header[k] = v
	}
	if len(c.QueryParams) > 0 {
		q := out.URL.Query()
		for k, v := range c.QueryParams {
			q.Set(k, v)
		}
		out.URL.RawQuery = q.Encode()
	}
	return t.base().RoundTrip(out)
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

// NewHTTPClient returns a client whose requests pick up per-request
// credentials. Deadlines come from the caller's context.
func NewHTTPClient() *http.Client {
	return &http.Client{
		Transport: &Transport{},
	}
}
