// Package state stores small device-level values (identity, key material,
// sync cursors) in the local database, keyed by name.
package state
