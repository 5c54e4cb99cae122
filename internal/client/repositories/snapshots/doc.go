// Package snapshots keeps encrypted blobs (the calendar, the pending change
// log) in the local database by name. The repository never sees plaintext:
// callers hand it the output of the storage codec.
package snapshots
