// Package reembed recomputes the stored embeddings of statute nodes and
// containment edges after the embedding model changes.
//
// Nodes and edges are read in batches, embedded with retry and exponential
// backoff, normalized to unit length, and written back. Domain centroids
// depend on node vectors, so a node run finishes by recentering every
// domain.
package reembed
