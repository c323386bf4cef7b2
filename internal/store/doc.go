// Package store provides SQLite-backed document storage for crudsync.
//
// The store is a minimal stand-in for a managed document database: named
// collections hold JSON documents keyed by an opaque id. It knows nothing
// about users or synchronization; internal/gateway layers the typed CRUD
// contract and the failure taxonomy on top.
//
// # Ordering
//
// Documents are listed in insertion order (ORDER BY seq ASC). Updates do not
// move a document.
//
// # Not Found
//
// Reads and merges against a missing document return an error wrapping
// sql.ErrNoRows. Callers translate that; the store never invents its own
// sentinel.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//
// Document bodies are written with entity.MarshalCanonical so that the same
// fields always produce the same bytes.
package store
