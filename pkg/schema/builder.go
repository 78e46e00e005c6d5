// Package schema infers a JSON Schema from sample macro documents and
// validates documents against it.
package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
)

const (
	Draft       = "http://json-schema.org/draft-07/schema#"
	Title       = "Macro Schema"
	Description = "JSON Schema for validating macro files"
)

// Builder accumulates the structural shape of every value added to it.
// Adding a value only ever widens what the schema accepts.
type Builder struct {
	root node
}

type node struct {
	scalars map[string]bool

	object     bool
	properties map[string]*node
	// required is nil until the first object has been seen.
	required map[string]bool

	array bool
	items *node
}

// Add merges v into the schema. v is a decoded JSON value, numbers either as
// json.Number or as Go numeric types.
func (b *Builder) Add(v any) {
	b.root.add(v)
}

// Schema returns the inferred schema without any metadata.
func (b *Builder) Schema() map[string]any {
	return b.root.schema()
}

// Document returns the schema with $schema, title and description attached.
func (b *Builder) Document() map[string]any {
	s := b.root.schema()
	s["$schema"] = Draft
	s["title"] = Title
	s["description"] = Description
	return s
}

func (n *node) add(v any) {
	switch v := v.(type) {
	case map[string]any:
		n.addObject(v)
	case []any:
		n.array = true
		for _, item := range v {
			if n.items == nil {
				n.items = &node{}
			}
			n.items.add(item)
		}
	default:
		if n.scalars == nil {
			n.scalars = make(map[string]bool)
		}
		n.scalars[scalarType(v)] = true
	}
}

func (n *node) addObject(object map[string]any) {
	n.object = true
	if n.properties == nil {
		n.properties = make(map[string]*node)
	}

	if n.required == nil {
		n.required = make(map[string]bool, len(object))
		for key := range object {
			n.required[key] = true
		}
	} else {
		for key := range n.required {
			if _, ok := object[key]; !ok {
				delete(n.required, key)
			}
		}
	}

	for key, value := range object {
		child, ok := n.properties[key]
		if !ok {
			child = &node{}
			n.properties[key] = child
		}
		child.add(value)
	}
}

func scalarType(v any) string {
	switch v := v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case string:
		return "string"
	case json.Number:
		if _, err := v.Int64(); err == nil {
			return "integer"
		}
		if !strings.ContainsAny(v.String(), ".eE") {
			// larger than int64 but still integral
			return "integer"
		}
		return "number"
	case float64:
		if v == math.Trunc(v) && !math.IsInf(v, 0) {
			return "integer"
		}
		return "number"
	case float32:
		return scalarType(float64(v))
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return "integer"
	default:
		panic(fmt.Sprintf("schema: unsupported value of type %T", v))
	}
}

func (n *node) schema() map[string]any {
	var alternatives []map[string]any

	if types := n.scalarTypes(); len(types) == 1 {
		alternatives = append(alternatives, map[string]any{"type": types[0]})
	} else if len(types) > 1 {
		alternatives = append(alternatives, map[string]any{"type": types})
	}

	if n.object {
		properties := make(map[string]any, len(n.properties))
		for key, child := range n.properties {
			properties[key] = child.schema()
		}
		object := map[string]any{"type": "object", "properties": properties}
		if len(n.required) > 0 {
			required := make([]string, 0, len(n.required))
			for key := range n.required {
				required = append(required, key)
			}
			sort.Strings(required)
			object["required"] = required
		}
		alternatives = append(alternatives, object)
	}

	if n.array {
		array := map[string]any{"type": "array"}
		if n.items != nil {
			array["items"] = n.items.schema()
		}
		alternatives = append(alternatives, array)
	}

	switch len(alternatives) {
	case 0:
		return map[string]any{}
	case 1:
		return alternatives[0]
	default:
		anyOf := make([]any, len(alternatives))
		for i, alt := range alternatives {
			anyOf[i] = alt
		}
		return map[string]any{"anyOf": anyOf}
	}
}

func (n *node) scalarTypes() []string {
	types := make([]string, 0, len(n.scalars))
	for t := range n.scalars {
		if t == "integer" && n.scalars["number"] {
			continue
		}
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
