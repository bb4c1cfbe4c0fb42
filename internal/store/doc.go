// Package store persists pipeline task state in SQLite.
//
// It is the single source of truth read by every coordinator replica.
// Mutable rows carry a revision counter and every update is a compare-and-swap
// on that counter, so two replicas racing on the same event cannot
// double-apply a transition: the loser sees ErrConflict, re-reads, and finds
// the transition already applied. Transient SQLITE_BUSY errors are retried
// with backoff. Schema changes bump schemaVersion; the database holds
// in-flight task state, not a long-term archive.
package store
