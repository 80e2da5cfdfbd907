package types

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// NodeKind discriminates the three JSON shapes we traverse.
type NodeKind int

const (
	ScalarNode NodeKind = iota
	ObjectNode
	ArrayNode
)

// Node is one value of a decoded JSON document. Unlike map[string]any,
// object fields keep their document order, which the recursive key
// search depends on.
type Node struct {
	Kind   NodeKind
	Fields []Field // ObjectNode
	Items  []*Node // ArrayNode
	Value  any     // ScalarNode: string, json.Number, bool, or nil
}

// Field is a single ordered object member.
type Field struct {
	Key   string
	Value *Node
}

// ParseNode decodes a JSON document into an ordered node tree.
func ParseNode(data []byte) (*Node, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	n, err := parseValue(dec)
	if err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}
	return n, nil
}

func parseValue(dec *json.Decoder) (*Node, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	delim, ok := tok.(json.Delim)
	if !ok {
		return &Node{Kind: ScalarNode, Value: tok}, nil
	}

	switch delim {
	case '{':
		return parseObject(dec)
	case '[':
		return parseArray(dec)
	default:
		return nil, fmt.Errorf("unexpected delimiter %v", delim)
	}
}

func parseObject(dec *json.Decoder) (*Node, error) {
	n := &Node{Kind: ObjectNode}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("object key is %T, want string", keyTok)
		}
		val, err := parseValue(dec)
		if err != nil {
			return nil, err
		}
		n.Fields = append(n.Fields, Field{Key: key, Value: val})
	}
	// consume closing brace
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return n, nil
}

func parseArray(dec *json.Decoder) (*Node, error) {
	n := &Node{Kind: ArrayNode}
	for dec.More() {
		item, err := parseValue(dec)
		if err != nil {
			return nil, err
		}
		n.Items = append(n.Items, item)
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return n, nil
}

// FindFirst searches the tree for the first value stored under key.
// Traversal is pre-order: at each object, every field key is compared
// before recursing into that field's value, left to right. A direct
// match wins even when the stored value is JSON null; the bool result
// is the only not-found sentinel.
func FindFirst(n *Node, key string) (*Node, bool) {
	if n == nil {
		return nil, false
	}

	switch n.Kind {
	case ObjectNode:
		for _, f := range n.Fields {
			if f.Key == key {
				return f.Value, true
			}
			if found, ok := FindFirst(f.Value, key); ok {
				return found, true
			}
		}
	case ArrayNode:
		for _, item := range n.Items {
			if found, ok := FindFirst(item, key); ok {
				return found, true
			}
		}
	}
	return nil, false
}

// Get returns the direct object field for key, nil when absent or when
// the node is not an object.
func (n *Node) Get(key string) *Node {
	if n == nil || n.Kind != ObjectNode {
		return nil
	}
	for _, f := range n.Fields {
		if f.Key == key {
			return f.Value
		}
	}
	return nil
}

// Str returns the direct field value for key rendered as a string,
// empty when the field is missing or not a scalar.
func (n *Node) Str(key string) string {
	return n.Get(key).String()
}

// String renders a scalar node as a string. Objects, arrays, null, and
// missing nodes all render empty — the boundary defaulting policy.
func (n *Node) String() string {
	if n == nil || n.Kind != ScalarNode {
		return ""
	}
	switch v := n.Value.(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case bool:
		if v {
			return "true"
		}
		return "false"
	default:
		return ""
	}
}

// Elems coerces a node to a sequence: arrays yield their items, objects
// yield their field values in order (keyed collections of records), and
// anything else yields nothing.
func (n *Node) Elems() []*Node {
	if n == nil {
		return nil
	}
	switch n.Kind {
	case ArrayNode:
		return n.Items
	case ObjectNode:
		elems := make([]*Node, 0, len(n.Fields))
		for _, f := range n.Fields {
			elems = append(elems, f.Value)
		}
		return elems
	default:
		return nil
	}
}
