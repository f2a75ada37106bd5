// Package metadata caches market metadata from the Gamma API. The
// cache holds an immutable snapshot behind an atomic pointer so
// lookups never contend with refreshes; a background loop swaps in a
// fresh snapshot on an interval and keeps serving the stale one when
// a refresh fails.
package metadata
