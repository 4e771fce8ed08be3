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

package ingestion

import (
	"context"

	"github.com/poiesic/lexis/core"
)

// processor is an internal interface for enriching stored graph elements.
// Implementations handle a specific task like node or edge embeddings.
type processor[K comparable] interface {
	// process enriches the elements identified by the given keys.
	process(ctx context.Context, keys ...K) error
}

// edgeKey identifies a containment edge by its endpoints.
type edgeKey struct {
	source core.NodeID
	target core.NodeID
}

// Assigner places embedded leaf nodes into domains.
type Assigner interface {
	// Len returns the number of domains. Nothing is assigned while it is zero.
	Len() int

	// AssignNode moves node into the domain nearest to its vector.
	AssignNode(ctx context.Context, node *core.Node) (core.DomainID, error)
}
