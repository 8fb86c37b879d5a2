package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransport_RequestScopedCredentials(t *testing.T) {
	var seen []http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Header.Clone())
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewHTTPClient()

	do := func(ctx context.Context) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
		require.NoError(t, err)
		resp, err := client.Do(req)
		require.NoError(t, err)
		_ = resp.Body.Close()
	}

	do(WithCredentials(context.Background(), Credentials{
		APIKey:      "key-a",
		BearerToken: "token-a",
		Headers:     map[string]string{"X-Tenant": "a"},
	}))
	do(context.Background())
	do(WithCredentials(context.Background(), Credentials{APIKey: "key-b", APIKeyHeader: "X-Custom-Key"}))

	require.Len(t, seen, 3)
	require.Equal(t, "key-a", seen[0].Get("X-API-Key"))
	require.Equal(t, "Bearer token-a", seen[0].Get("Authorization"))
	require.Equal(t, "a", seen[0].Get("X-Tenant"))

	require.Empty(t, seen[1].Get("X-API-Key"))
	require.Empty(t, seen[1].Get("Authorization"))

	require.Equal(t, "key-b", seen[2].Get("X-Custom-Key"))
	require.Empty(t, seen[2].Get("X-API-Key"))
}
