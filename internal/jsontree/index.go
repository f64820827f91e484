package jsontree

import (
	"encoding/json"
	"strconv"

	"github.com/alfredjeanlab/feeder/internal/jsonval"
	"github.com/alfredjeanlab/feeder/internal/model"
)

// RootPath is the expression for the document itself.
const RootPath = "@"

// Segment is one addressable node of a document.
type Segment struct {
	Key        string
	Value      jsonval.Value
	ValueType  jsonval.Kind
	Path       string
	Expandable bool
	Expanded   bool
	// Length is the number of children of an array or object.
	Length int
}

// Index returns the top-level segments of doc: its members when doc is an
// object, its elements when it is an array. A scalar document yields a
// single segment addressed by RootPath.
func Index(doc jsonval.Value) []Segment {
	switch doc.Kind() {
	case jsonval.Object, jsonval.Array:
		return children(doc, "")
	}
	return []Segment{newSegment("", doc, RootPath)}
}

// Children returns the child segments of s, empty for scalars.
func (s Segment) Children() []Segment {
	if !s.Expandable {
		return nil
	}
	return children(s.Value, s.Path)
}

// SelectableFor reports whether the node may be chosen as the source of a
// field of type t.
func (s Segment) SelectableFor(t model.FieldType) bool {
	return model.Accepts(t, s.ValueType)
}

// Walk visits every segment depth-first in document order. Returning false
// from fn skips the segment's children.
func Walk(doc jsonval.Value, fn func(Segment) bool) {
	for _, s := range Index(doc) {
		walk(s, fn)
	}
}

func walk(s Segment, fn func(Segment) bool) {
	if !fn(s) {
		return
	}
	for _, c := range s.Children() {
		walk(c, fn)
	}
}

// Find returns the segment addressed by path, if Index produced one.
func Find(doc jsonval.Value, path string) (Segment, bool) {
	var found Segment
	ok := false
	Walk(doc, func(s Segment) bool {
		if ok {
			return false
		}
		if s.Path == path {
			found, ok = s, true
			return false
		}
		return true
	})
	return found, ok
}

func children(v jsonval.Value, parent string) []Segment {
	switch v.Kind() {
	case jsonval.Object:
		out := make([]Segment, 0, v.Len())
		for _, m := range v.Members() {
			out = append(out, newSegment(m.Key, m.Value, MemberPath(parent, m.Key)))
		}
		return out
	case jsonval.Array:
		out := make([]Segment, 0, v.Len())
		for i, e := range v.Elems() {
			out = append(out, newSegment(strconv.Itoa(i), e, ElementPath(parent, i)))
		}
		return out
	}
	return nil
}

func newSegment(key string, v jsonval.Value, path string) Segment {
	kind := v.Kind()
	expandable := kind == jsonval.Object || kind == jsonval.Array
	s := Segment{
		Key:        key,
		Value:      v,
		ValueType:  kind,
		Path:       path,
		Expandable: expandable,
	}
	if expandable {
		s.Length = v.Len()
	}
	return s
}

// MemberPath appends an object member to parent: "key" at the root,
// "parent.key" below it. Keys that are not bare identifiers are quoted.
func MemberPath(parent, key string) string {
	ident := quoteIdentifier(key)
	if parent == "" {
		return ident
	}
	return parent + "." + ident
}

// ElementPath appends an array index to parent: "parent[i]".
func ElementPath(parent string, i int) string {
	return parent + "[" + strconv.Itoa(i) + "]"
}

// quoteIdentifier returns key unchanged when it is a bare JMESPath
// identifier and as a quoted identifier otherwise.
func quoteIdentifier(key string) string {
	if isBareIdentifier(key) {
		return key
	}
	data, _ := json.Marshal(key)
	return string(data)
}

func isBareIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}
