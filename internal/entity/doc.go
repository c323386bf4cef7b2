// Package entity defines the record types synchronized by crudsync.
//
// A User is the only entity kind. It is created from a Draft (a user without
// an id) and changed through a Patch (a partial set of fields). The store
// assigns the id on creation; an empty ID means the record was never
// persisted.
//
// # Normalization
//
// All text fields are trimmed and NFC normalized before they are checked or
// stored, so composed and decomposed accents compare equal after a round trip.
//
// # Canonical JSON
//
// MarshalCanonical produces RFC 8785 style JSON (sorted keys, no HTML
// escaping, NFC strings). The store uses it for document bodies and the
// harness uses it for golden traces, so identical views always serialize to
// identical bytes.
package entity
