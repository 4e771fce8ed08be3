// Package registry holds the process-wide set of domains.
//
// Each domain is published as an immutable snapshot behind an atomic
// pointer. Searches read snapshots without locking. Membership and centroid
// changes are serialized per domain: the writer copies the current
// snapshot, applies the change, persists it and swaps it in. Every domain
// has one search.Agent that always sees the latest snapshot.
package registry
