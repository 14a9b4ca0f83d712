// Package coordinator implements the root of the glacier shard tree.
//
// The root exclusively owns the ordered shard set: it creates shard
// stores, appends and replaces them through the router, fans capability
// changes out to every shard, and swaps code versions. Shard-local state
// (registry records, admin sets) is never touched directly, only through
// the shard handle interface.
//
// Fan-out semantics: cross-shard operations run shard by shard under the
// root mutex. A failure partway through stops the fan-out and is
// reported as a *PropagationError carrying how many shards were already
// mutated; nothing is rolled back automatically. A half-applied
// capability change means some shards accept an account that others
// reject, so the operator must reconcile explicitly: retry to
// completion, or replace the divergent shards.
//
// Upgrades: the root "version pointer" is a key into a registry of
// implementations populated at deployment. A candidate is committed only
// after it answers the contract probe (ContractID), so a misconfigured
// target can never become the active implementation.
package coordinator
