// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package mock

import "github.com/poiesic/lexis/ai"

// Default vector lengths of the mock embedders. Small enough to write
// fixtures by hand.
const (
	NodeDimensions         = 8
	RelationshipDimensions = 12
)

// MockProvider is a test double for ai.AIProvider.
type MockProvider struct {
	nodes        *MockEmbedder
	relationship *MockEmbedder
	labeler      *MockDomainLabeler
}

// NewMockProvider creates a new mock provider with default mock services.
//
// Returns ai.AIProvider interface for consistency with production constructors.
// Use GetMockNodeEmbedder() and friends to access concrete types for test assertions.
func NewMockProvider() ai.AIProvider {
	return &MockProvider{
		nodes:        NewMockEmbedder(NodeDimensions),
		relationship: NewMockEmbedder(RelationshipDimensions),
		labeler:      NewMockDomainLabeler(),
	}
}

// NewMockProviderWithServices creates a mock provider with custom mock services.
// Nil arguments are replaced by default mocks.
func NewMockProviderWithServices(nodes, relationship *MockEmbedder, labeler *MockDomainLabeler) *MockProvider {
	if nodes == nil {
		nodes = NewMockEmbedder(NodeDimensions)
	}
	if relationship == nil {
		relationship = NewMockEmbedder(RelationshipDimensions)
	}
	if labeler == nil {
		labeler = NewMockDomainLabeler()
	}
	return &MockProvider{
		nodes:        nodes,
		relationship: relationship,
		labeler:      labeler,
	}
}

// NodeEmbedder returns the mock node embedder.
func (p *MockProvider) NodeEmbedder() ai.Embedder {
	return p.nodes
}

// RelationshipEmbedder returns the mock relationship embedder.
func (p *MockProvider) RelationshipEmbedder() ai.Embedder {
	return p.relationship
}

// DomainLabeler returns the mock labeler.
func (p *MockProvider) DomainLabeler() ai.DomainLabeler {
	return p.labeler
}

// Close is a no-op for mock provider.
func (p *MockProvider) Close() error {
	return nil
}

// GetMockNodeEmbedder returns the underlying node embedder for test assertions.
func (p *MockProvider) GetMockNodeEmbedder() *MockEmbedder {
	return p.nodes
}

// GetMockRelationshipEmbedder returns the underlying relationship embedder for test assertions.
func (p *MockProvider) GetMockRelationshipEmbedder() *MockEmbedder {
	return p.relationship
}

// GetMockLabeler returns the underlying labeler for test assertions.
func (p *MockProvider) GetMockLabeler() *MockDomainLabeler {
	return p.labeler
}
