package health

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/runestake/settlement/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckAll(t *testing.T) {
	ok := Check{Name: "ledger", Check: func(ctx context.Context, _ bool) (int, string, error) {
		return http.StatusOK, "ledger OK", nil
	}}
	nested := Check{Name: "indexer", Check: func(ctx context.Context, _ bool) (int, string, error) {
		return http.StatusOK, `{"tip": "100"}`, nil
	}}
	failing := Check{Name: "lockstore", Check: func(ctx context.Context, _ bool) (int, string, error) {
		return http.StatusServiceUnavailable, "redis down", errors.NewStorageError("ping failed")
	}}

	status, body, err := CheckAll(context.Background(), false, []Check{ok, nested})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, json.Valid([]byte(body)), body)

	status, body, err = CheckAll(context.Background(), false, []Check{ok, failing})
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Contains(t, body, "lockstore")
}
