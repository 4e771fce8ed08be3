// Package ingestion adds statute units and containment edges to the graph.
//
// The Pipeline type manages the ingestion workflow, including:
//   - Validating and storing nodes and edges
//   - Generating node and relationship embeddings asynchronously
//   - Routing newly embedded leaf nodes into their nearest domain
//
// Processing is performed concurrently using worker pools. Errors during
// async processing are logged and returned by Wait.
package ingestion
