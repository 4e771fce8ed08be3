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

package core

import (
	"fmt"
	"slices"
)

// ValidateNode validates a Node according to domain rules.
//
// Validation rules:
//   - ID must not be empty
//   - Content must not be empty
//
// NOT validated (populated by processors):
//   - Vector (can be empty until the embedding processor runs)
//   - DomainID (assigned by routing)
func ValidateNode(node *Node) error {
	if node == nil {
		return fmt.Errorf("%w: node is nil", ErrInvalidNode)
	}
	if node.ID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidNode, ErrEmptyID)
	}
	if node.Content == "" {
		return fmt.Errorf("%w: %s: %w", ErrInvalidNode, node.ID, ErrEmptyContent)
	}
	return nil
}

// ValidateEdge validates a ContainmentEdge.
func ValidateEdge(edge *ContainmentEdge) error {
	if edge == nil {
		return fmt.Errorf("%w: edge is nil", ErrInvalidEdge)
	}
	if edge.Source == "" || edge.Target == "" {
		return fmt.Errorf("%w: %w", ErrInvalidEdge, ErrEmptyID)
	}
	if edge.Source == edge.Target {
		return fmt.Errorf("%w: %s: %w", ErrInvalidEdge, edge.Source, ErrSelfLoop)
	}
	return nil
}

// ValidateDomain validates a Domain.
//
// Validation rules:
//   - ID must not be empty
//   - Members must be non-empty and sorted without duplicates
//   - Centroid must match dim when dim > 0
func ValidateDomain(domain *Domain, dim int) error {
	if domain == nil {
		return fmt.Errorf("%w: domain is nil", ErrInvalidDomain)
	}
	if domain.ID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidDomain, ErrEmptyID)
	}
	if len(domain.Members) == 0 {
		return fmt.Errorf("%w: %s: %w", ErrInvalidDomain, domain.ID, ErrEmptyDomain)
	}
	if !slices.IsSorted(domain.Members) || len(slices.Compact(slices.Clone(domain.Members))) != len(domain.Members) {
		return fmt.Errorf("%w: %s: members must be sorted and unique", ErrInvalidDomain, domain.ID)
	}
	if dim > 0 && len(domain.Centroid) != dim {
		return fmt.Errorf("%w: %s: %w: centroid has %d, want %d",
			ErrInvalidDomain, domain.ID, ErrDimensionMismatch, len(domain.Centroid), dim)
	}
	return nil
}
