package filter

import (
	"encoding/json"
	"strings"

	apperrors "github.com/gridhq/tablecache/pkg/errors"
)

// Group operators joining sibling nodes.
const (
	OpAnd = "and"
	OpOr  = "or"
)

// Node is one element of a filter tree: a group (operator plus child
// nodes) or a leaf (field comparison). Leaves carry a non-empty Field.
type Node struct {
	Operator string `json:"operator,omitempty"`
	Fields   []Node `json:"fields,omitempty"`

	Field      string `json:"field,omitempty"`
	Comparison string `json:"comparison,omitempty"`
	Value      Value  `json:"value,omitempty"`
}

// IsLeaf reports whether the node is a field comparison.
func (n *Node) IsLeaf() bool {
	return n != nil && n.Field != ""
}

// Op returns the normalised group operator, defaulting to AND.
func (n *Node) Op() string {
	if n == nil {
		return OpAnd
	}
	if strings.EqualFold(strings.TrimSpace(n.Operator), OpOr) {
		return OpOr
	}
	return OpAnd
}

// LeafCount reports the number of leaves in the subtree.
func (n *Node) LeafCount() int {
	if n == nil {
		return 0
	}
	if n.IsLeaf() {
		return 1
	}
	count := 0
	for i := range n.Fields {
		count += n.Fields[i].LeafCount()
	}
	return count
}

// HasGroupChild reports whether any immediate child is itself a group.
func (n *Node) HasGroupChild() bool {
	if n == nil {
		return false
	}
	for i := range n.Fields {
		if !n.Fields[i].IsLeaf() {
			return true
		}
	}
	return false
}

// ParseTree decodes the wire filter payload into a tree. Empty input
// yields a nil tree, which compiles to "match all".
func ParseTree(raw json.RawMessage) (*Node, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" || trimmed == "{}" {
		return nil, nil
	}

	var root Node
	if err := json.Unmarshal(raw, &root); err != nil {
		return nil, apperrors.NewBadRequest("malformed filter payload").WithInternal(err)
	}
	return &root, nil
}
