package scene

import (
	"sort"
	"strings"

	"github.com/mogaika/vrm_transform/graph"
)

const (
	edgePrimitives = "primitives"
	edgeAttributes = "attributes"
	edgeIndices    = "indices"
	edgeMaterial   = "material"
	edgeTargets    = "targets"
)

// PrimitiveMode uses the glTF topology codes.
type PrimitiveMode int

const (
	ModePoints PrimitiveMode = iota
	ModeLines
	ModeLineLoop
	ModeLineStrip
	ModeTriangles
	ModeTriangleStrip
	ModeTriangleFan
)

type Mesh struct {
	graph.Base
	// Default morph target weights.
	Weights []float32
}

func (m *Mesh) Kind() graph.Kind { return KindMesh }

func (m *Mesh) Primitives() []*Primitive { return graph.As[*Primitive](m.Refs(edgePrimitives)) }

func (m *Mesh) AddPrimitive(p *Primitive) *Mesh {
	m.AddRef(edgePrimitives, p, nil)
	return m
}

func (m *Mesh) RemovePrimitive(p *Primitive) {
	m.RemoveRef(edgePrimitives, p)
}

// TargetNames returns extras.targetNames when present.
func (m *Mesh) TargetNames() []string {
	raw, ok := m.Extras["targetNames"].([]interface{})
	if !ok {
		if names, ok := m.Extras["targetNames"].([]string); ok {
			return names
		}
		return nil
	}
	names := make([]string, 0, len(raw))
	for _, v := range raw {
		s, _ := v.(string)
		names = append(names, s)
	}
	return names
}

func (m *Mesh) SetTargetNames(names []string) {
	if m.Extras == nil {
		m.Extras = make(map[string]interface{})
	}
	list := make([]interface{}, len(names))
	for i, n := range names {
		list[i] = n
	}
	m.Extras["targetNames"] = list
}

// attributeSet is shared by primitives and morph targets.
type attributeSet struct {
	graph.Base
}

func (a *attributeSet) Attribute(semantic string) *Accessor {
	acc, _ := a.RefMapGet(edgeAttributes, semantic).(*Accessor)
	return acc
}

// SetAttribute binds semantic to acc. A nil accessor removes the semantic.
func (a *attributeSet) SetAttribute(semantic string, acc *Accessor) {
	a.RefMapSet(edgeAttributes, semantic, acc)
}

// Semantics lists attribute names in insertion order.
func (a *attributeSet) Semantics() []string {
	return a.RefMapKeys(edgeAttributes)
}

func (a *attributeSet) Attributes() []*Accessor {
	return graph.As[*Accessor](a.Refs(edgeAttributes))
}

type Primitive struct {
	attributeSet
	Mode PrimitiveMode
}

func (p *Primitive) Kind() graph.Kind { return KindPrimitive }

func (p *Primitive) Indices() *Accessor { return graph.RefAs[*Accessor](&p.Base, edgeIndices) }

func (p *Primitive) SetIndices(a *Accessor) { p.SetRef(edgeIndices, a, nil) }

func (p *Primitive) Material() *Material { return graph.RefAs[*Material](&p.Base, edgeMaterial) }

func (p *Primitive) SetMaterial(m *Material) { p.SetRef(edgeMaterial, m, nil) }

func (p *Primitive) Targets() []*PrimitiveTarget {
	return graph.As[*PrimitiveTarget](p.Refs(edgeTargets))
}

func (p *Primitive) AddTarget(t *PrimitiveTarget) *Primitive {
	p.AddRef(edgeTargets, t, nil)
	return p
}

func (p *Primitive) RemoveTarget(t *PrimitiveTarget) {
	p.RemoveRef(edgeTargets, t)
}

// SkinSets pairs every JOINTS_n attribute with its WEIGHTS_n, ordered by n.
// Sets with a missing half are skipped.
func (p *Primitive) SkinSets() [][2]*Accessor {
	sets := make([][2]*Accessor, 0)
	semantics := p.Semantics()
	sort.Strings(semantics)
	for _, semantic := range semantics {
		if !strings.HasPrefix(semantic, "JOINTS_") {
			continue
		}
		joints := p.Attribute(semantic)
		weights := p.Attribute("WEIGHTS_" + strings.TrimPrefix(semantic, "JOINTS_"))
		if joints == nil || weights == nil {
			continue
		}
		sets = append(sets, [2]*Accessor{joints, weights})
	}
	return sets
}

type PrimitiveTarget struct {
	attributeSet
}

func (t *PrimitiveTarget) Kind() graph.Kind { return KindPrimitiveTarget }
