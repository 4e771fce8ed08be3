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
	"encoding/binary"
	"encoding/hex"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a content-derived identifier for edges.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// NodeID identifies a legal unit (law, chapter, article, paragraph, ...).
type NodeID string

// DomainID identifies a domain.
type DomainID string

// DomainIDFromMembers derives a stable domain identifier from its member set.
// Member order does not matter.
func DomainIDFromMembers(members []NodeID) DomainID {
	sorted := make([]string, len(members))
	for i, m := range members {
		sorted[i] = string(m)
	}
	sort.Strings(sorted)
	h, _ := blake2b.New(8, nil)
	h.Write([]byte(strings.Join(sorted, "\x00")))
	return DomainID("dom_" + hex.EncodeToString(h.Sum(nil)))
}

// EdgeID returns the identifier of the containment edge source -> target.
func EdgeID(source, target NodeID) ID {
	return IDFromContent(string(source) + "->" + string(target))
}

// Node is a unit of a statute. Leaf nodes are the smallest addressable
// units (paragraphs) and are the only nodes owned by a domain; structural
// units (articles, chapters, laws) are reachable through containment edges.
type Node struct {
	ID         NodeID
	Path       string    // Hierarchical path, e.g. "도로법::제17조::①"
	Title      string    // Heading of the unit, e.g. "제17조 목적"
	Content    string    // Full text
	Vector     []float32 // Node embedding (populated by processors)
	DomainID   DomainID  // Owning domain, leaf nodes only
	Leaf       bool
	InsertedAt time.Time
	UpdatedAt  time.Time
}

// ContentType is an advisory classification of a containment edge.
// It is never used to filter relationship search.
type ContentType string

const (
	ContentTypeStructural ContentType = "structural"
	ContentTypeException  ContentType = "exception"
	ContentTypeReference  ContentType = "reference"
	ContentTypeDetail     ContentType = "detail"
	ContentTypeAddition   ContentType = "addition"
	ContentTypeGeneral    ContentType = "general"
)

// ContainmentEdge is a directed structural link from a parent unit to a child unit.
type ContainmentEdge struct {
	ID          ID
	Source      NodeID // Parent
	Target      NodeID // Child
	Context     string // Text the relationship embedding is computed from
	Vector      []float32
	ContentType ContentType
	InsertedAt  time.Time
}

// Domain is a cluster of semantically related leaf nodes.
type Domain struct {
	ID        DomainID
	Name      string
	Centroid  []float32
	Members   []NodeID // Sorted ascending
	Neighbors []DomainID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Size returns the number of member nodes.
func (d *Domain) Size() int {
	return len(d.Members)
}

// HasMember reports whether id belongs to the domain.
func (d *Domain) HasMember(id NodeID) bool {
	_, found := slices.BinarySearch(d.Members, id)
	return found
}

// MemberSet returns the members as a set.
func (d *Domain) MemberSet() map[NodeID]struct{} {
	set := make(map[NodeID]struct{}, len(d.Members))
	for _, m := range d.Members {
		set[m] = struct{}{}
	}
	return set
}

// Clone returns a deep copy of the domain.
func (d *Domain) Clone() *Domain {
	if d == nil {
		return nil
	}
	c := *d
	c.Centroid = slices.Clone(d.Centroid)
	c.Members = slices.Clone(d.Members)
	c.Neighbors = slices.Clone(d.Neighbors)
	return &c
}

// Stage names a layer of the domain search pipeline that contributed a result.
type Stage string

const (
	StageExact          Stage = "exact"
	StageVector         Stage = "vector"
	StageRelationship   Stage = "relationship"
	StageGraphExpansion Stage = "graph_expansion"
)

// stageOrder fixes the order stage tags are reported in.
var stageOrder = map[Stage]int{
	StageExact:          0,
	StageVector:         1,
	StageRelationship:   2,
	StageGraphExpansion: 3,
}

// SortStages orders stage tags by pipeline position.
func SortStages(stages []Stage) {
	slices.SortFunc(stages, func(a, b Stage) int {
		return stageOrder[a] - stageOrder[b]
	})
}

// OriginMyDomain marks results produced by the primary domain's agent.
const OriginMyDomain = "my_domain"

// NeighborOrigin returns the origin tag for results contributed by a neighbor domain.
func NeighborOrigin(id DomainID) string {
	return "neighbor:" + string(id)
}

// SearchResult is a single ranked hit.
type SearchResult struct {
	NodeID  NodeID
	Snippet string
	Path    string
	Score   float32
	Stages  []Stage
	Origin  string
}

// HasStage reports whether the result carries the given stage tag.
func (r *SearchResult) HasStage(stage Stage) bool {
	return slices.Contains(r.Stages, stage)
}

// Query carries the query text together with its precomputed embeddings so
// that collaborating agents do not embed the same text twice.
type Query struct {
	Text               string
	NodeVector         []float32
	RelationshipVector []float32
}

// ScoredNode is a node id with a similarity score, as returned by vector indexes.
type ScoredNode struct {
	NodeID NodeID
	Score  float32
}

// ScoredEdge is an edge match from the relationship index.
type ScoredEdge struct {
	Source      NodeID
	Target      NodeID
	ContentType ContentType
	Score       float32
}
