// Package gateway defines the record store boundary for crudsync.
//
// A Gateway exposes four operations (list, create, update, delete) against
// one collection of users. It owns no state and translates every backend
// failure into a *Error carrying one of three kinds:
//
//   - KindStoreUnavailable: transport, auth or backend fault
//   - KindNotFound: the target id does not exist
//   - KindValidationFailed: reserved for callers that reject input before
//     calling the gateway
//
// DocumentGateway is the reference implementation over the SQLite document
// store in internal/store. Any backend that honors the same contract can be
// substituted.
//
// Ids are assigned by an IDGenerator: UUIDv7Generator in production,
// FixedGenerator or SequenceGenerator for deterministic tests.
package gateway
