package util

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/runestake/settlement/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoHTTPRequestGET(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"message": "success"}`))
	}))
	defer server.Close()

	response, err := DoHTTPRequest(context.Background(), server.URL)

	require.NoError(t, err)
	assert.Equal(t, `{"message": "success"}`, string(response))
}

func TestDoHTTPRequestPOST(t *testing.T) {
	requestBody := []byte(`{"data": "test"}`)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.Equal(t, requestBody, body)

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"created": true}`))
	}))
	defer server.Close()

	response, err := DoHTTPRequest(context.Background(), server.URL, requestBody)

	require.NoError(t, err)
	assert.Equal(t, `{"created": true}`, string(response))
}

func TestDoHTTPRequestTextBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "text/plain", r.Header.Get("Content-Type"))
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	response, err := DoHTTPRequestWithContentType(context.Background(), server.URL, "text/plain", []byte("0200"))
	require.NoError(t, err)
	assert.Equal(t, "ok", string(response))
}

func TestDoHTTPRequestWithTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := DoHTTPRequest(ctx, server.URL)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrContextCanceled))
}

func TestDoHTTPRequestStatusCodes(t *testing.T) {
	tests := []struct {
		name   string
		status int
		target error
	}{
		{"not found", http.StatusNotFound, errors.ErrNotFound},
		{"bad request", http.StatusBadRequest, errors.ErrServiceError},
		{"server error", http.StatusInternalServerError, errors.ErrServiceError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte("sendrawtransaction RPC error: bad-txns-inputs-missingorspent"))
			}))
			defer server.Close()

			_, err := DoHTTPRequest(context.Background(), server.URL)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.target))
			assert.Contains(t, err.Error(), "bad-txns-inputs-missingorspent")
		})
	}
}

func TestDoHTTPRequestHTML(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("content-type", "text/html")
		_, _ = w.Write([]byte("<html></html>"))
	}))
	defer server.Close()

	_, err := DoHTTPRequest(context.Background(), server.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "returned HTML")
}
