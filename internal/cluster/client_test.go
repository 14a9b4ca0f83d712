package cluster

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/glacier/internal/ledger"
	"github.com/dreamware/glacier/internal/router"
)

func TestMintKey(t *testing.T) {
	seen := make(map[ledger.Key]bool)
	for i := 0; i < 100; i++ {
		key := MintKey()
		require.False(t, key.IsZero())
		require.False(t, seen[key], "minted keys must not collide")
		seen[key] = true
	}
}

func TestDeriveRoute(t *testing.T) {
	key := MintKey()

	idx, err := DeriveRoute(key, 3)
	require.NoError(t, err)
	assert.Equal(t, router.Index(key, 3), idx)

	_, err = DeriveRoute(key, 0)
	require.ErrorIs(t, err, router.ErrNoShardsConfigured)
}

func TestClientSendsCallerHeader(t *testing.T) {
	var gotCaller string
	var gotReq OperationRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCaller = r.Header.Get(CallerHeader)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "fran")
	key := MintKey()
	require.NoError(t, c.SetFrozen(context.Background(), "alice", "100", key))

	assert.Equal(t, "fran", gotCaller)
	assert.Equal(t, "alice", gotReq.Account)
	assert.Equal(t, "100", gotReq.Amount)
	assert.Equal(t, key.String(), gotReq.Key)
}

func TestClientDecodesResponses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		_ = json.NewEncoder(w).Encode(OperationResponse{
			Key:     "00",
			Status:  "transfer-executed",
			Account: "alice",
			Amount:  7,
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "auditor")
	op, err := c.Operation(context.Background(), ledger.Key{})
	require.NoError(t, err)
	assert.Equal(t, "transfer-executed", op.Status)
	assert.Equal(t, uint64(7), op.Amount)
}

func TestClientSurfacesAPIErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(ErrorResponse{
			Error: "operation already executed",
			Code:  "already_executed",
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "fran")
	err := c.SetFrozen(context.Background(), "alice", "1", MintKey())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already executed")
	assert.Contains(t, err.Error(), "already_executed")
}
