// Package cache provides a process-wide, concurrency-safe TTL cache with
// per-key single-flight computation.
//
// Entries expire lazily on access; StartSweeper optionally removes expired
// entries in the background. The cache holds at most MaxEntries values and
// evicts the oldest inserted entry when the cap is exceeded. Failed or
// cancelled computations are never stored.
package cache
