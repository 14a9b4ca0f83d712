// Package cluster holds the JSON types of the glacierd HTTP surface and
// a client for them, shared by the server, glacierctl and tests. It also
// re-derives operation placement client-side: routing is hash mod n over
// the published digest, so audit tooling never has to trust the server
// for placement.
package cluster

import (
	"github.com/dreamware/glacier/internal/ledger"
	"github.com/dreamware/glacier/internal/router"
)

// CallerHeader names the HTTP header carrying the caller account.
// Authenticating that account is a deployment concern, not glacier's.
const CallerHeader = "X-Glacier-Account"

// OperationRequest submits one frozen-balance operation. Amount is a
// decimal string so out-of-range values survive transport and are
// rejected by the facade with their exact value.
type OperationRequest struct {
	Account string `json:"account"`
	To      string `json:"to,omitempty"` // transfers only
	Amount  string `json:"amount"`
	Key     string `json:"key"` // 64-char hex
}

// OperationResponse is one registry record.
type OperationResponse struct {
	Key     string `json:"key"`
	Status  string `json:"status"`
	Account string `json:"account"`
	Amount  uint64 `json:"amount"`
}

// BalanceResponse reports an account's frozen balance.
type BalanceResponse struct {
	Account string `json:"account"`
	Frozen  uint64 `json:"frozen"`
}

// ShardInfo describes one shard slot.
type ShardInfo struct {
	Version string `json:"version"`
	ID      int    `json:"id"`
	Index   int    `json:"index"`
	Records int    `json:"records"`
}

// ShardsResponse reports the shard set.
type ShardsResponse struct {
	Shards []ShardInfo `json:"shards"`
	Count  int         `json:"count"`
	Max    int         `json:"max"`
}

// AddShardsRequest grows the shard set by Count fresh shards.
type AddShardsRequest struct {
	Count int `json:"count"`
}

// ReplaceShardsRequest swaps Count slots starting at From for fresh shards.
type ReplaceShardsRequest struct {
	From  int `json:"from"`
	Count int `json:"count"`
}

// CapabilityRequest fans an admin grant or revoke out to every shard.
type CapabilityRequest struct {
	Account string `json:"account"`
	Granted bool   `json:"granted"`
}

// GrantRequest changes a facade-layer capability grant.
type GrantRequest struct {
	Account    string `json:"account"`
	Capability string `json:"capability"`
	Granted    bool   `json:"granted"`
}

// UpgradeRequest swaps the root implementation and/or the shard version.
type UpgradeRequest struct {
	Root   string `json:"root,omitempty"`
	Shards string `json:"shards,omitempty"`
}

// RouteResponse reports where a key lives.
type RouteResponse struct {
	Key   string `json:"key"`
	Shard int    `json:"shard"`
	Of    int    `json:"of"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// DeriveRoute computes the shard index for a key locally, from the same
// digest the server uses.
func DeriveRoute(key ledger.Key, shardCount int) (int, error) {
	if shardCount <= 0 {
		return 0, router.ErrNoShardsConfigured
	}
	return router.Index(key, shardCount), nil
}
