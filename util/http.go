package util

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/ordishs/gocore"
	"github.com/runestake/settlement/errors"
)

var (
	// httpRequestTimeout is used when the context carries no deadline.
	httpRequestTimeout, _ = gocore.Config().GetInt("http_timeout", 60)
)

// DoHTTPRequest performs a GET, or a JSON POST when a request body is given, and returns the body.
func DoHTTPRequest(ctx context.Context, url string, requestBody ...[]byte) ([]byte, error) {
	return DoHTTPRequestWithContentType(ctx, url, "application/json", requestBody...)
}

// DoHTTPRequestWithContentType is DoHTTPRequest with an explicit content type for POST bodies.
func DoHTTPRequestWithContentType(ctx context.Context, url string, contentType string, requestBody ...[]byte) ([]byte, error) {
	cancelFn := func() {}

	if _, ok := ctx.Deadline(); !ok {
		ctx, cancelFn = context.WithTimeout(ctx, time.Duration(httpRequestTimeout)*time.Second)
	}
	defer cancelFn()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.NewServiceError("failed to create http request", err)
	}

	if len(requestBody) > 0 && requestBody[0] != nil {
		req.Body = io.NopCloser(bytes.NewReader(requestBody[0]))
		req.ContentLength = int64(len(requestBody[0]))
		req.Method = http.MethodPost
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.NewContextCanceledError("http request [%s] canceled", url, err)
		}

		return nil, errors.NewNetworkError("failed to do http request [%s]", url, err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	b, readErr := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		errFn := errors.NewServiceError
		if resp.StatusCode == http.StatusNotFound {
			errFn = errors.NewNotFoundError
		}

		if readErr != nil {
			return nil, errFn("http request [%s] returned status code [%d]", url, resp.StatusCode, readErr)
		}

		return nil, errFn("http request [%s] returned status code [%d] with body [%s]", url, resp.StatusCode, string(b))
	}

	if readErr != nil {
		return nil, errors.NewNetworkError("http request [%s] failed to read body", url, readErr)
	}

	if resp.Header.Get("content-type") == "text/html" {
		return nil, errors.NewServiceError("http request [%s] returned HTML - assume bad URL", url)
	}

	return b, nil
}
