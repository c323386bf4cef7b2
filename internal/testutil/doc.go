// Package testutil provides deterministic gateway doubles for tests and the
// conformance harness.
//
// MemoryGateway stores users in a slice and mirrors the semantics of the
// SQLite-backed gateway. FaultyGateway wraps any gateway to inject failures
// and to hold calls on a Gate, so tests can observe optimistic state before
// a call settles and can release responses out of dispatch order.
package testutil
