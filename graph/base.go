package graph

import (
	"encoding/json"
	"reflect"
)

// Edge names and attribute keys shared by every property.
const (
	EdgeExtensions = "extensions"
	AttrKey        = "key"
)

// Base carries the identity, common fields and reference helpers of a property.
type Base struct {
	graph    *Graph
	self     Property
	id       int
	disposed bool

	Name   string
	Extras map[string]interface{}
	// Extensions present in the source document that no codec understood.
	RawExtensions map[string]json.RawMessage
}

func (b *Base) base() *Base { return b }

func (b *Base) Graph() *Graph { return b.graph }

func (b *Base) ID() int { return b.id }

func (b *Base) IsDisposed() bool { return b.disposed || b.graph == nil }

func (b *Base) GetName() string { return b.Name }

func (b *Base) Dispose() {
	if b.graph != nil {
		b.graph.Dispose(b.self)
	}
}

// ListParents returns every property referencing this one.
func (b *Base) ListParents() []Property {
	if b.graph == nil {
		return nil
	}
	return b.graph.ListParents(b.self)
}

func (b *Base) childEdges(name string) []*Edge {
	if b.graph == nil {
		return nil
	}
	result := make([]*Edge, 0)
	for _, e := range b.graph.children[b.self] {
		if e.Name == name {
			result = append(result, e)
		}
	}
	return result
}

// RefEdge returns the first edge called name.
func (b *Base) RefEdge(name string) *Edge {
	if b.graph == nil {
		return nil
	}
	for _, e := range b.graph.children[b.self] {
		if e.Name == name {
			return e
		}
	}
	return nil
}

// Ref returns the single child referenced through name, or nil.
func (b *Base) Ref(name string) Property {
	if e := b.RefEdge(name); e != nil {
		return e.Child
	}
	return nil
}

// SetRef replaces the reference called name. A nil child clears it.
func (b *Base) SetRef(name string, child Property, attrs map[string]interface{}) *Edge {
	for _, e := range b.childEdges(name) {
		b.graph.Unlink(e)
	}
	if isNil(child) {
		return nil
	}
	return b.graph.Link(name, b.self, child, attrs)
}

// Refs lists children of an ordered reference list.
func (b *Base) Refs(name string) []Property {
	edges := b.childEdges(name)
	result := make([]Property, len(edges))
	for i, e := range edges {
		result[i] = e.Child
	}
	return result
}

func (b *Base) AddRef(name string, child Property, attrs map[string]interface{}) *Edge {
	return b.graph.Link(name, b.self, child, attrs)
}

// RemoveRef removes every edge called name that points to child.
func (b *Base) RemoveRef(name string, child Property) {
	for _, e := range b.childEdges(name) {
		if e.Child == child {
			b.graph.Unlink(e)
		}
	}
}

func (b *Base) RefMapKeys(name string) []string {
	edges := b.childEdges(name)
	keys := make([]string, 0, len(edges))
	for _, e := range edges {
		keys = append(keys, e.StringAttr(AttrKey))
	}
	return keys
}

func (b *Base) RefMapGet(name, key string) Property {
	for _, e := range b.childEdges(name) {
		if e.StringAttr(AttrKey) == key {
			return e.Child
		}
	}
	return nil
}

// RefMapSet binds key to child, keeping the position of an existing key. A nil child removes the key.
func (b *Base) RefMapSet(name, key string, child Property) {
	for _, e := range b.childEdges(name) {
		if e.StringAttr(AttrKey) != key {
			continue
		}
		if isNil(child) {
			b.graph.Unlink(e)
			return
		}
		if e.Child == child {
			return
		}
		// swap in place to keep the key order stable
		g := b.graph
		g.parents[e.Child] = removeEdge(g.parents[e.Child], e)
		if len(g.parents[e.Child]) == 0 {
			delete(g.parents, e.Child)
		}
		g.Add(child)
		e.Child = child
		g.parents[child] = append(g.parents[child], e)
		return
	}
	if isNil(child) {
		return
	}
	b.graph.Link(name, b.self, child, map[string]interface{}{AttrKey: key})
}

func (b *Base) Extension(name string) Property {
	return b.RefMapGet(EdgeExtensions, name)
}

func (b *Base) SetExtension(name string, ext Property) {
	b.RefMapSet(EdgeExtensions, name, ext)
}

func (b *Base) ListExtensions() []Property {
	return b.Refs(EdgeExtensions)
}

func isNil(p Property) bool {
	if p == nil {
		return true
	}
	v := reflect.ValueOf(p)
	return v.Kind() == reflect.Ptr && v.IsNil()
}
