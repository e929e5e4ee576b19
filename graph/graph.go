// Package graph stores document properties in an arena and keeps every
// reference between them as an explicit edge.
//
// Reference counts are never stored: asking "who uses this property" is a
// query over the parent edges of that property.
package graph

import (
	"sort"
)

// Kind tags a property with its concrete type.
type Kind string

// Property is anything that lives in a Graph. Implementations embed Base.
type Property interface {
	Kind() Kind
	Graph() *Graph
	GetName() string
	ListParents() []Property
	IsDisposed() bool
	Dispose()
	base() *Base
}

// BaseOf exposes the embedded Base of p.
func BaseOf(p Property) *Base {
	return p.base()
}

// Edge is a named reference from Parent to Child.
// Attributes carry per-edge data such as map keys or texture slot hints.
type Edge struct {
	Name       string
	Parent     Property
	Child      Property
	Attributes map[string]interface{}

	seq      int
	disposed bool
}

func (e *Edge) Attr(key string) interface{} {
	if e.Attributes == nil {
		return nil
	}
	return e.Attributes[key]
}

func (e *Edge) BoolAttr(key string) bool {
	v, _ := e.Attr(key).(bool)
	return v
}

func (e *Edge) StringAttr(key string) string {
	v, _ := e.Attr(key).(string)
	return v
}

func (e *Edge) IsDisposed() bool { return e.disposed }

type Graph struct {
	nextID   int
	nextEdge int
	props    map[Property]int
	order    []Property
	children map[Property][]*Edge
	parents  map[Property][]*Edge
}

func New() *Graph {
	return &Graph{
		props:    make(map[Property]int),
		children: make(map[Property][]*Edge),
		parents:  make(map[Property][]*Edge),
	}
}

// Add registers p in the arena. Adding an already registered property is a no-op.
func (g *Graph) Add(p Property) Property {
	if _, ok := g.props[p]; ok {
		return p
	}
	b := p.base()
	if b.disposed {
		g.compact()
	}
	b.graph = g
	b.self = p
	b.id = g.nextID
	b.disposed = false
	g.nextID++
	g.props[p] = b.id
	g.order = append(g.order, p)
	return p
}

func (g *Graph) Has(p Property) bool {
	_, ok := g.props[p]
	return ok
}

// Len returns the count of live properties.
func (g *Graph) Len() int {
	return len(g.props)
}

// Properties lists live properties in creation order.
func (g *Graph) Properties() []Property {
	g.compact()
	result := make([]Property, len(g.order))
	copy(result, g.order)
	return result
}

// ListByKind lists live properties of kind k in creation order.
func (g *Graph) ListByKind(k Kind) []Property {
	result := make([]Property, 0)
	for _, p := range g.order {
		if !p.base().disposed && p.Kind() == k {
			result = append(result, p)
		}
	}
	return result
}

func (g *Graph) compact() {
	if len(g.order) == len(g.props) {
		return
	}
	live := g.order[:0]
	for _, p := range g.order {
		if !p.base().disposed {
			live = append(live, p)
		}
	}
	for i := len(live); i < len(g.order); i++ {
		g.order[i] = nil
	}
	g.order = live
}

// Link creates an edge. Both ends are registered in the graph if they are not yet.
func (g *Graph) Link(name string, parent, child Property, attrs map[string]interface{}) *Edge {
	g.Add(parent)
	g.Add(child)
	e := &Edge{
		Name:       name,
		Parent:     parent,
		Child:      child,
		Attributes: attrs,
		seq:        g.nextEdge,
	}
	g.nextEdge++
	g.children[parent] = append(g.children[parent], e)
	g.parents[child] = append(g.parents[child], e)
	return e
}

func (g *Graph) Unlink(e *Edge) {
	if e == nil || e.disposed {
		return
	}
	e.disposed = true
	g.children[e.Parent] = removeEdge(g.children[e.Parent], e)
	g.parents[e.Child] = removeEdge(g.parents[e.Child], e)
	if len(g.children[e.Parent]) == 0 {
		delete(g.children, e.Parent)
	}
	if len(g.parents[e.Child]) == 0 {
		delete(g.parents, e.Child)
	}
}

func removeEdge(list []*Edge, e *Edge) []*Edge {
	for i, item := range list {
		if item == e {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

// ListChildEdges returns the outgoing edges of p in link order.
func (g *Graph) ListChildEdges(p Property) []*Edge {
	src := g.children[p]
	result := make([]*Edge, len(src))
	copy(result, src)
	return result
}

// ListParentEdges returns the incoming edges of p in link order.
func (g *Graph) ListParentEdges(p Property) []*Edge {
	src := g.parents[p]
	result := make([]*Edge, len(src))
	copy(result, src)
	return result
}

// ListParents returns the distinct parents of p, ordered by first reference.
func (g *Graph) ListParents(p Property) []Property {
	seen := make(map[Property]bool)
	result := make([]Property, 0)
	for _, e := range g.parents[p] {
		if !seen[e.Parent] {
			seen[e.Parent] = true
			result = append(result, e.Parent)
		}
	}
	return result
}

// Dispose removes p from the arena together with every edge where p is parent or child.
func (g *Graph) Dispose(p Property) {
	if _, ok := g.props[p]; !ok {
		return
	}
	for _, e := range g.ListChildEdges(p) {
		g.Unlink(e)
	}
	for _, e := range g.ListParentEdges(p) {
		g.Unlink(e)
	}
	p.base().disposed = true
	delete(g.props, p)
}

// Edges returns every live edge in creation order. Used by debug dumps.
func (g *Graph) Edges() []*Edge {
	result := make([]*Edge, 0)
	for _, list := range g.children {
		result = append(result, list...)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].seq < result[j].seq })
	return result
}
