package completion

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRequest() *Request {
	return &Request{
		Model:    "gpt-4o",
		Metadata: Metadata{Token: "deploy-token"},
		Messages: []Message{
			{Role: RoleSystem, Content: "system text"},
			{Role: RoleUser, Content: "user text"},
		},
		Temperature: 0.2,
	}
}

func TestHTTPClient_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-4o", body["model"])
		assert.Equal(t, 0.2, body["temperature"])
		assert.Equal(t, map[string]any{"token": "deploy-token"}, body["metadata"])
		assert.NotContains(t, body, "response_format")

		messages := body["messages"].([]any)
		require.Len(t, messages, 2)
		assert.Equal(t, map[string]any{"role": "system", "content": "system text"}, messages[0])
		assert.Equal(t, map[string]any{"role": "user", "content": "user text"}, messages[1])

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"chatcmpl-1","model":"gpt-4o","choices":[{"index":0,"message":{"role":"assistant","content":"hello"},"finish_reason":"stop"}],"usage":{"prompt_tokens":10,"completion_tokens":2,"total_tokens":12}}`))
	}))
	defer srv.Close()

	client := NewHTTPClient(Options{BaseURL: srv.URL + "/v1", APIKey: "sk-test"}, nil)
	reply, err := client.Complete(context.Background(), sampleRequest())
	require.NoError(t, err)

	content, ok := reply.FirstContent()
	assert.True(t, ok)
	assert.Equal(t, "hello", content)
	assert.Equal(t, "chatcmpl-1", reply.ID)
	require.NotNil(t, reply.Usage)
	assert.Equal(t, 12, reply.Usage.TotalTokens)
}

func TestHTTPClient_JSONMode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]any{"type": "json_object"}, body["response_format"])
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	req := sampleRequest()
	req.ResponseFormat = &ResponseFormat{Type: "json_object"}

	client := NewHTTPClient(Options{BaseURL: srv.URL, APIKey: "sk-test"}, nil)
	reply, err := client.Complete(context.Background(), req)
	require.NoError(t, err)

	_, ok := reply.FirstContent()
	assert.False(t, ok)
}

func TestHTTPClient_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	}))
	defer srv.Close()

	client := NewHTTPClient(Options{BaseURL: srv.URL, APIKey: "sk-test"}, nil)
	_, err := client.Complete(context.Background(), sampleRequest())

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusTooManyRequests, statusErr.StatusCode)
	assert.Contains(t, statusErr.Body, "rate limited")
}

func TestHTTPClient_UndecodableBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>gateway</html>`))
	}))
	defer srv.Close()

	client := NewHTTPClient(Options{BaseURL: srv.URL, APIKey: "sk-test"}, nil)
	_, err := client.Complete(context.Background(), sampleRequest())
	assert.ErrorContains(t, err, "decode")
}

func TestHTTPClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	client := NewHTTPClient(Options{BaseURL: srv.URL, APIKey: "sk-test", Timeout: 50 * time.Millisecond}, nil)
	_, err := client.Complete(context.Background(), sampleRequest())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestHTTPClient_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewHTTPClient(Options{
		BaseURL: srv.URL,
		APIKey:  "sk-test",
		Breaker: BreakerOptions{Enabled: true, MaxFailures: 2, OpenTimeout: time.Minute},
	}, nil)

	for i := 0; i < 2; i++ {
		_, err := client.Complete(context.Background(), sampleRequest())
		var statusErr *StatusError
		assert.True(t, errors.As(err, &statusErr))
	}

	_, err := client.Complete(context.Background(), sampleRequest())
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(2), hits.Load())
}

func TestHTTPClient_BreakerIgnoresCallerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"code":"context_length_exceeded"}}`))
	}))
	defer srv.Close()

	client := NewHTTPClient(Options{
		BaseURL: srv.URL,
		APIKey:  "sk-test",
		Breaker: BreakerOptions{Enabled: true, MaxFailures: 2, OpenTimeout: time.Minute},
	}, nil)

	for i := 0; i < 6; i++ {
		_, err := client.Complete(context.Background(), sampleRequest())
		var statusErr *StatusError
		require.True(t, errors.As(err, &statusErr), "call %d: %v", i, err)
		assert.Equal(t, http.StatusBadRequest, statusErr.StatusCode)
	}
	assert.Equal(t, int32(6), hits.Load())
}

func TestBreakerSuccess(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, true},
		{"canceled", context.Canceled, true},
		{"bad request", &StatusError{StatusCode: http.StatusBadRequest}, true},
		{"payload too large", &StatusError{StatusCode: http.StatusRequestEntityTooLarge}, true},
		{"unauthorized", &StatusError{StatusCode: http.StatusUnauthorized}, true},
		{"request timeout", &StatusError{StatusCode: http.StatusRequestTimeout}, false},
		{"rate limited", &StatusError{StatusCode: http.StatusTooManyRequests}, false},
		{"bad gateway", &StatusError{StatusCode: http.StatusBadGateway}, false},
		{"deadline", context.DeadlineExceeded, false},
		{"network", errors.New("connection refused"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, breakerSuccess(tt.err))
		})
	}
}
