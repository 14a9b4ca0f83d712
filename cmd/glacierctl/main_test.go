package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/glacier/internal/cluster"
	"github.com/dreamware/glacier/internal/ledger"
)

func runCtl(t *testing.T, serverURL string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(append([]string{"--server", serverURL}, args...))
	err := cmd.Execute()
	return buf.String(), err
}

func TestNewKey(t *testing.T) {
	out, err := runCtl(t, "http://unused", "newkey")
	require.NoError(t, err)

	key, err := ledger.ParseKey(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.False(t, key.IsZero())
}

func TestRouteLocalMatchesDerivation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/shards", r.URL.Path)
		_ = json.NewEncoder(w).Encode(cluster.ShardsResponse{Count: 5, Max: 100})
	}))
	defer srv.Close()

	key := cluster.MintKey()
	out, err := runCtl(t, srv.URL, "route", "--local", key.String())
	require.NoError(t, err)

	want, err := cluster.DeriveRoute(key, 5)
	require.NoError(t, err)
	assert.Contains(t, out, fmt.Sprintf("shard %d of 5", want))
}

func TestShardsListing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(cluster.ShardsResponse{
			Count: 2,
			Max:   100,
			Shards: []cluster.ShardInfo{
				{Index: 0, ID: 0, Version: "v1", Records: 3},
				{Index: 1, ID: 1, Version: "v2", Records: 0},
			},
		})
	}))
	defer srv.Close()

	out, err := runCtl(t, srv.URL, "shards")
	require.NoError(t, err)
	assert.Contains(t, out, "2 shards (max 100)")
	assert.Contains(t, out, "[1] id=1 version=v2 records=0")
}

func TestGrantRejectsUnknownCapability(t *testing.T) {
	_, err := runCtl(t, "http://unused", "grant", "alice", "superuser")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown capability")
}
