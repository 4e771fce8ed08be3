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

// Package ai provides abstractions for the AI services used by lexis.
//
// Two embedding models are in play. The node model (768 dimensions by
// default) embeds the text of statute units and feeds the node index. The
// relationship model (3072 dimensions by default) embeds the context text of
// containment edges and feeds the relationship index. A query is embedded by
// both so it can be compared against each index in its own space.
//
// The package defines three interfaces:
//
//   - Embedder: Generates vector embeddings from text
//   - DomainLabeler: Names a domain from sample member texts
//   - AIProvider: Aggregates the two embedders and the labeler
//
// # Implementation Packages
//
//   - ai/openai: Production implementation using OpenAI-compatible APIs
//   - ai/mock: Test doubles for unit testing without external dependencies
//
// Public constructors in ai/openai return interface types. Mock constructors
// return concrete types so tests can inject behavior and inspect call counts.
//
// # Usage Example
//
//	config := ai.DefaultConfig()
//	provider, err := openai.NewProvider(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	nodeVec, err := provider.NodeEmbedder().EmbedText(ctx, "도로의 점용허가")
//	relVec, err := provider.RelationshipEmbedder().EmbedText(ctx, "도로의 점용허가")
package ai
