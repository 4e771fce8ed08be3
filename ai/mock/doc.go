// Package mock provides test double implementations of AI service interfaces.
//
// This package contains mock implementations of ai.Embedder, ai.DomainLabeler,
// and ai.AIProvider for use in unit tests. The mocks allow tests to run without
// external AI service dependencies and enable controlled, deterministic behavior.
//
// # Usage in Tests
//
//	// Basic usage with default behavior
//	mockProvider := mock.NewMockProvider()
//	vec, err := mockProvider.NodeEmbedder().EmbedText(ctx, "test")
//
//	// Fixed vectors for known texts
//	nodes := mock.NewFixedEmbedder(3, map[string][]float32{
//	    "도로 점용": {1, 0, 0},
//	})
//	provider := mock.NewMockProviderWithServices(nodes, nil, nil)
//
//	// Check call counts
//	count := nodes.CallCount()
//
// # Default Behavior
//
//   - MockEmbedder: Returns deterministic unit vectors based on text hash
//   - MockDomainLabeler: Names a domain after the first words of its first sample
//   - MockProvider: Aggregates the two embedders and the labeler
package mock
