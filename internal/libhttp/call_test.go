package libhttp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoResponse struct {
	Method string            `json:"method"`
	Query  string            `json:"query"`
	Body   map[string]string `json:"body"`
	Header string            `json:"header"`
}

func TestCall(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/echo":
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			_ = json.NewEncoder(w).Encode(echoResponse{
				Method: r.Method,
				Query:  r.URL.Query().Get("offset"),
				Body:   body,
				Header: r.Header.Get("X-Test"),
			})
		case "/fail":
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte("upstream down"))
		case "/slow":
			time.Sleep(200 * time.Millisecond)
			_, _ = w.Write([]byte("{}"))
		case "/garbage":
			_, _ = w.Write([]byte("not json"))
		}
	}))
	defer srv.Close()

	ctx := context.Background()

	t.Run("round trip", func(t *testing.T) {
		res, err := Call[echoResponse](ctx, srv.Client(), http.MethodPost, srv.URL+"/echo",
			map[string]string{"X-Test": "yes"},
			map[string]string{"data": "abcd"},
			map[string]string{"offset": "50"},
		)
		require.NoError(t, err)
		assert.Equal(t, http.MethodPost, res.Method)
		assert.Equal(t, "50", res.Query)
		assert.Equal(t, "abcd", res.Body["data"])
		assert.Equal(t, "yes", res.Header)
	})

	t.Run("non 2xx", func(t *testing.T) {
		_, err := Call[echoResponse](ctx, srv.Client(), http.MethodGet, srv.URL+"/fail", nil, nil, nil)
		var statusErr *StatusError
		require.True(t, errors.As(err, &statusErr))
		assert.Equal(t, http.StatusBadGateway, statusErr.Code)
		assert.Equal(t, "upstream down", statusErr.Body)
	})

	t.Run("deadline", func(t *testing.T) {
		tctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()
		_, err := Call[echoResponse](tctx, srv.Client(), http.MethodGet, srv.URL+"/slow", nil, nil, nil)
		require.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("undecodable body", func(t *testing.T) {
		_, err := Call[echoResponse](ctx, srv.Client(), http.MethodGet, srv.URL+"/garbage", nil, nil, nil)
		require.ErrorContains(t, err, "failed to decode response")
	})
}
