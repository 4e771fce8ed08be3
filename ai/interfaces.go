package ai

import "context"

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// Returns an error if the embedding generation fails.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// The returned slice contains embeddings in the same order as the input texts.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions reports the length of the vectors this embedder produces.
	Dimensions() int
}

// DomainLabeler names a domain from a sample of its member texts.
// Implementations must be thread-safe for concurrent use.
type DomainLabeler interface {
	// LabelDomain returns a short human-readable name for the domain
	// the samples were drawn from.
	LabelDomain(ctx context.Context, samples []string) (string, error)
}

// AIProvider aggregates AI services for convenient initialization and lifecycle management.
//
// Node and relationship embeddings come from different models and are never
// compared with each other.
type AIProvider interface {
	// NodeEmbedder embeds statute unit text and queries for the node index.
	NodeEmbedder() Embedder

	// RelationshipEmbedder embeds edge context text and queries for the
	// relationship index.
	RelationshipEmbedder() Embedder

	// DomainLabeler returns the domain naming service.
	DomainLabeler() DomainLabeler

	// Close releases resources held by the provider and its services.
	// After Close is called, the provider and its services should not be used.
	Close() error
}
