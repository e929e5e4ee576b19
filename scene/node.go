package scene

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/mogaika/vrm_transform/graph"
)

const (
	edgeChildren = "children"
	edgeMesh     = "mesh"
	edgeSkin     = "skin"
	edgeCamera   = "camera"
)

type Node struct {
	graph.Base
	Translation mgl32.Vec3
	Rotation    mgl32.Quat
	Scale       mgl32.Vec3
	// Morph target weights override for the mesh.
	Weights []float32
}

func (n *Node) Kind() graph.Kind { return KindNode }

func (n *Node) Mesh() *Mesh { return graph.RefAs[*Mesh](&n.Base, edgeMesh) }

func (n *Node) SetMesh(m *Mesh) { n.SetRef(edgeMesh, m, nil) }

func (n *Node) Skin() *Skin { return graph.RefAs[*Skin](&n.Base, edgeSkin) }

func (n *Node) SetSkin(s *Skin) { n.SetRef(edgeSkin, s, nil) }

func (n *Node) Camera() *Camera { return graph.RefAs[*Camera](&n.Base, edgeCamera) }

func (n *Node) SetCamera(c *Camera) { n.SetRef(edgeCamera, c, nil) }

func (n *Node) Children() []*Node { return graph.As[*Node](n.Refs(edgeChildren)) }

// AddChild moves child under n, detaching it from any previous parent node or scene.
func (n *Node) AddChild(child *Node) *Node {
	detachFromParents(child)
	n.AddRef(edgeChildren, child, nil)
	return n
}

func (n *Node) RemoveChild(child *Node) {
	n.RemoveRef(edgeChildren, child)
}

// Parent returns the parent node, or nil for scene roots and orphans.
func (n *Node) Parent() *Node {
	g := n.Graph()
	if g == nil {
		return nil
	}
	for _, e := range g.ListParentEdges(n) {
		if e.Name != edgeChildren {
			continue
		}
		if p, ok := e.Parent.(*Node); ok {
			return p
		}
	}
	return nil
}

func (n *Node) LocalMatrix() mgl32.Mat4 {
	t := mgl32.Translate3D(n.Translation[0], n.Translation[1], n.Translation[2])
	r := n.Rotation.Normalize().Mat4()
	s := mgl32.Scale3D(n.Scale[0], n.Scale[1], n.Scale[2])
	return t.Mul4(r).Mul4(s)
}

func (n *Node) WorldMatrix() mgl32.Mat4 {
	m := n.LocalMatrix()
	for p := n.Parent(); p != nil; p = p.Parent() {
		m = p.LocalMatrix().Mul4(m)
	}
	return m
}

// Traverse calls fn for n and every descendant, depth first.
func (n *Node) Traverse(fn func(*Node)) {
	fn(n)
	for _, c := range n.Children() {
		c.Traverse(fn)
	}
}

func detachFromParents(child *Node) {
	g := child.Graph()
	if g == nil {
		return
	}
	for _, e := range g.ListParentEdges(child) {
		if e.Name == edgeChildren {
			g.Unlink(e)
		}
	}
}

func identityQuat() mgl32.Quat {
	return mgl32.QuatIdent()
}

type Scene struct {
	graph.Base
}

func (s *Scene) Kind() graph.Kind { return KindScene }

func (s *Scene) Children() []*Node { return graph.As[*Node](s.Refs(edgeChildren)) }

func (s *Scene) AddChild(child *Node) *Scene {
	detachFromParents(child)
	s.AddRef(edgeChildren, child, nil)
	return s
}

func (s *Scene) RemoveChild(child *Node) {
	s.RemoveRef(edgeChildren, child)
}

func (s *Scene) Traverse(fn func(*Node)) {
	for _, c := range s.Children() {
		c.Traverse(fn)
	}
}
