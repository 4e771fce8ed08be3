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

import "errors"

// Search and lifecycle errors
var (
	// ErrNoDomainsAvailable indicates a search was attempted before any domain exists.
	ErrNoDomainsAvailable = errors.New("no domains available")

	// ErrStorageUnavailable indicates the graph store could not be reached.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrEmbeddingUnavailable indicates the embedding provider failed.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")

	// ErrInsufficientData indicates there are too few distinct vectors to cluster.
	ErrInsufficientData = errors.New("insufficient data for clustering")

	// ErrDomainNotFound indicates a domain id is not registered.
	ErrDomainNotFound = errors.New("domain not found")
)

// Domain validation errors
var (
	// ErrInvalidNode indicates a Node failed validation.
	ErrInvalidNode = errors.New("invalid node")

	// ErrInvalidEdge indicates a ContainmentEdge failed validation.
	ErrInvalidEdge = errors.New("invalid edge")

	// ErrInvalidDomain indicates a Domain failed validation.
	ErrInvalidDomain = errors.New("invalid domain")

	// ErrEmptyID indicates an identifier is empty.
	ErrEmptyID = errors.New("id cannot be empty")

	// ErrEmptyContent indicates the Content field is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrSelfLoop indicates an edge whose source and target are the same node.
	ErrSelfLoop = errors.New("edge cannot point to itself")

	// ErrEmptyDomain indicates a domain without members.
	ErrEmptyDomain = errors.New("domain must have at least one member")

	// ErrDimensionMismatch indicates vectors of differing length.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)
