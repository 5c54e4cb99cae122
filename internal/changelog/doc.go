// Package changelog records the lifecycle of synchronisable objects as an
// ordered list of Create, Update and Delete entries that a transport can
// replay on another device.
//
// Entries for the same object are coalesced: while an object's Create has not
// been flushed with Drain, logging it again replaces the whole lineage with a
// single Create holding the latest snapshot. Objects that already exist
// remotely produce Update entries, which accumulate.
package changelog
