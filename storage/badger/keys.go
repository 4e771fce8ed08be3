package badger

import (
	"fmt"

	"github.com/poiesic/lexis/core"
)

// Key prefixes for different data types
const (
	nodePrefix   = "node:"
	edgePrefix   = "edge:"
	childPrefix  = "eout:" // eout:<source>\x00<target> -> edge id
	parentPrefix = "ein:"  // ein:<target>\x00<source> -> edge id
	domainPrefix = "dom:"

	// keySep separates the two node ids of an adjacency key. Node ids are
	// hierarchical paths and may contain ':' but never NUL.
	keySep = "\x00"
)

// makeNodeKey generates a key for a node by ID.
func makeNodeKey(id core.NodeID) []byte {
	return []byte(nodePrefix + string(id))
}

// makeEdgeKey generates a key for an edge by ID.
func makeEdgeKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s%d", edgePrefix, id))
}

// makeChildKey generates the adjacency key source -> target.
func makeChildKey(source, target core.NodeID) []byte {
	return []byte(childPrefix + string(source) + keySep + string(target))
}

// makeParentKey generates the reverse adjacency key target <- source.
func makeParentKey(target, source core.NodeID) []byte {
	return []byte(parentPrefix + string(target) + keySep + string(source))
}

// makeAdjacencyPrefix generates the prefix under which the neighbors of id
// are listed in the child or parent index.
func makeAdjacencyPrefix(indexPrefix string, id core.NodeID) []byte {
	return []byte(indexPrefix + string(id) + keySep)
}

// makeDomainKey generates a key for a domain by ID.
func makeDomainKey(id core.DomainID) []byte {
	return []byte(domainPrefix + string(id))
}
