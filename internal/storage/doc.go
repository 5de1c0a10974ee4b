// Package storage is the persisted key-value store behind application state.
//
// Values are opaque bytes (the state layer stores JSON). Besides the KV
// surface every driver keeps an append-only audit log of user actions
// (imports, clears, permission changes).
package storage
