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

package storage

import (
	"fmt"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/lexis/core"
)

// Records are encoded field by field with MUS primitives. Timestamps are
// stored as Unix microseconds, float vectors as a varint length followed by
// fixed-width little-endian float32 values.

// codec accumulates a read position and the first error encountered.
type codec struct {
	bs  []byte
	n   int
	err error
}

func (c *codec) string() string {
	if c.err != nil {
		return ""
	}
	v, n, err := ord.String.Unmarshal(c.bs[c.n:])
	c.n += n
	c.err = err
	return v
}

func (c *codec) bool() bool {
	if c.err != nil {
		return false
	}
	v, n, err := ord.Bool.Unmarshal(c.bs[c.n:])
	c.n += n
	c.err = err
	return v
}

func (c *codec) uint64() uint64 {
	if c.err != nil {
		return 0
	}
	v, n, err := varint.Uint64.Unmarshal(c.bs[c.n:])
	c.n += n
	c.err = err
	return v
}

func (c *codec) time() time.Time {
	if c.err != nil {
		return time.Time{}
	}
	v, n, err := varint.Int64.Unmarshal(c.bs[c.n:])
	c.n += n
	c.err = err
	if v == 0 {
		return time.Time{}
	}
	return time.UnixMicro(v).UTC()
}

func (c *codec) vector() []float32 {
	length := c.uint64()
	if c.err != nil || length == 0 {
		return nil
	}
	if length > uint64(len(c.bs)-c.n)/4 {
		c.err = ErrTruncatedData
		return nil
	}
	v := make([]float32, length)
	for i := range v {
		f, n, err := raw.Float32.Unmarshal(c.bs[c.n:])
		if err != nil {
			c.err = err
			return nil
		}
		c.n += n
		v[i] = f
	}
	return v
}

func (c *codec) strings() []string {
	length := c.uint64()
	if c.err != nil || length == 0 {
		return nil
	}
	if length > uint64(len(c.bs)-c.n) {
		c.err = ErrTruncatedData
		return nil
	}
	v := make([]string, length)
	for i := range v {
		v[i] = c.string()
	}
	return v
}

func (c *codec) result() error {
	if c.err != nil {
		return fmt.Errorf("%w: %w", ErrSerializationFailed, c.err)
	}
	return nil
}

func unixMicro(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMicro()
}

func sizeVector(v []float32) int {
	size := varint.Uint64.Size(uint64(len(v)))
	for _, f := range v {
		size += raw.Float32.Size(f)
	}
	return size
}

func marshalVector(v []float32, bs []byte) int {
	n := varint.Uint64.Marshal(uint64(len(v)), bs)
	for _, f := range v {
		n += raw.Float32.Marshal(f, bs[n:])
	}
	return n
}

func sizeStrings(v []string) int {
	size := varint.Uint64.Size(uint64(len(v)))
	for _, s := range v {
		size += ord.String.Size(s)
	}
	return size
}

func marshalStrings(v []string, bs []byte) int {
	n := varint.Uint64.Marshal(uint64(len(v)), bs)
	for _, s := range v {
		n += ord.String.Marshal(s, bs[n:])
	}
	return n
}

// MarshalID serializes an ID to bytes.
func MarshalID(id core.ID) []byte {
	buf := make([]byte, varint.Uint64.Size(uint64(id)))
	varint.Uint64.Marshal(uint64(id), buf)
	return buf
}

// UnmarshalID deserializes an ID from bytes.
func UnmarshalID(data []byte) (core.ID, error) {
	id, _, err := varint.Uint64.Unmarshal(data)
	return core.ID(id), err
}

// MarshalNode serializes a Node to bytes.
func MarshalNode(node *core.Node) []byte {
	size := ord.String.Size(string(node.ID)) +
		ord.String.Size(node.Path) +
		ord.String.Size(node.Title) +
		ord.String.Size(node.Content) +
		sizeVector(node.Vector) +
		ord.String.Size(string(node.DomainID)) +
		ord.Bool.Size(node.Leaf) +
		varint.Int64.Size(unixMicro(node.InsertedAt)) +
		varint.Int64.Size(unixMicro(node.UpdatedAt))

	buf := make([]byte, size)
	n := ord.String.Marshal(string(node.ID), buf)
	n += ord.String.Marshal(node.Path, buf[n:])
	n += ord.String.Marshal(node.Title, buf[n:])
	n += ord.String.Marshal(node.Content, buf[n:])
	n += marshalVector(node.Vector, buf[n:])
	n += ord.String.Marshal(string(node.DomainID), buf[n:])
	n += ord.Bool.Marshal(node.Leaf, buf[n:])
	n += varint.Int64.Marshal(unixMicro(node.InsertedAt), buf[n:])
	varint.Int64.Marshal(unixMicro(node.UpdatedAt), buf[n:])
	return buf
}

// UnmarshalNode deserializes a Node from bytes.
func UnmarshalNode(data []byte) (*core.Node, error) {
	c := &codec{bs: data}
	node := &core.Node{
		ID:      core.NodeID(c.string()),
		Path:    c.string(),
		Title:   c.string(),
		Content: c.string(),
		Vector:  c.vector(),
	}
	node.DomainID = core.DomainID(c.string())
	node.Leaf = c.bool()
	node.InsertedAt = c.time()
	node.UpdatedAt = c.time()
	if err := c.result(); err != nil {
		return nil, err
	}
	return node, nil
}

// MarshalEdge serializes a ContainmentEdge to bytes.
func MarshalEdge(edge *core.ContainmentEdge) []byte {
	size := varint.Uint64.Size(uint64(edge.ID)) +
		ord.String.Size(string(edge.Source)) +
		ord.String.Size(string(edge.Target)) +
		ord.String.Size(edge.Context) +
		sizeVector(edge.Vector) +
		ord.String.Size(string(edge.ContentType)) +
		varint.Int64.Size(unixMicro(edge.InsertedAt))

	buf := make([]byte, size)
	n := varint.Uint64.Marshal(uint64(edge.ID), buf)
	n += ord.String.Marshal(string(edge.Source), buf[n:])
	n += ord.String.Marshal(string(edge.Target), buf[n:])
	n += ord.String.Marshal(edge.Context, buf[n:])
	n += marshalVector(edge.Vector, buf[n:])
	n += ord.String.Marshal(string(edge.ContentType), buf[n:])
	varint.Int64.Marshal(unixMicro(edge.InsertedAt), buf[n:])
	return buf
}

// UnmarshalEdge deserializes a ContainmentEdge from bytes.
func UnmarshalEdge(data []byte) (*core.ContainmentEdge, error) {
	c := &codec{bs: data}
	edge := &core.ContainmentEdge{
		ID:     core.ID(c.uint64()),
		Source: core.NodeID(c.string()),
		Target: core.NodeID(c.string()),
	}
	edge.Context = c.string()
	edge.Vector = c.vector()
	edge.ContentType = core.ContentType(c.string())
	edge.InsertedAt = c.time()
	if err := c.result(); err != nil {
		return nil, err
	}
	return edge, nil
}

// MarshalDomain serializes a Domain to bytes.
func MarshalDomain(domain *core.Domain) []byte {
	members := make([]string, len(domain.Members))
	for i, m := range domain.Members {
		members[i] = string(m)
	}
	neighbors := make([]string, len(domain.Neighbors))
	for i, d := range domain.Neighbors {
		neighbors[i] = string(d)
	}

	size := ord.String.Size(string(domain.ID)) +
		ord.String.Size(domain.Name) +
		sizeVector(domain.Centroid) +
		sizeStrings(members) +
		sizeStrings(neighbors) +
		varint.Int64.Size(unixMicro(domain.CreatedAt)) +
		varint.Int64.Size(unixMicro(domain.UpdatedAt))

	buf := make([]byte, size)
	n := ord.String.Marshal(string(domain.ID), buf)
	n += ord.String.Marshal(domain.Name, buf[n:])
	n += marshalVector(domain.Centroid, buf[n:])
	n += marshalStrings(members, buf[n:])
	n += marshalStrings(neighbors, buf[n:])
	n += varint.Int64.Marshal(unixMicro(domain.CreatedAt), buf[n:])
	varint.Int64.Marshal(unixMicro(domain.UpdatedAt), buf[n:])
	return buf
}

// UnmarshalDomain deserializes a Domain from bytes.
func UnmarshalDomain(data []byte) (*core.Domain, error) {
	c := &codec{bs: data}
	domain := &core.Domain{
		ID:       core.DomainID(c.string()),
		Name:     c.string(),
		Centroid: c.vector(),
	}
	for _, m := range c.strings() {
		domain.Members = append(domain.Members, core.NodeID(m))
	}
	for _, d := range c.strings() {
		domain.Neighbors = append(domain.Neighbors, core.DomainID(d))
	}
	domain.CreatedAt = c.time()
	domain.UpdatedAt = c.time()
	if err := c.result(); err != nil {
		return nil, err
	}
	return domain, nil
}
