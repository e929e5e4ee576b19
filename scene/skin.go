package scene

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/mogaika/vrm_transform/graph"
)

const (
	edgeJoints              = "joints"
	edgeSkeleton            = "skeleton"
	edgeInverseBindMatrices = "inverseBindMatrices"
)

// Skin keeps joints[i] in lock step with element i of the inverse bind matrices.
type Skin struct {
	graph.Base
}

func (s *Skin) Kind() graph.Kind { return KindSkin }

func (s *Skin) Joints() []*Node { return graph.As[*Node](s.Refs(edgeJoints)) }

func (s *Skin) AddJoint(n *Node) *Skin {
	s.AddRef(edgeJoints, n, nil)
	return s
}

func (s *Skin) RemoveJoint(n *Node) {
	s.RemoveRef(edgeJoints, n)
}

// JointIndex returns the position of n in the joint list, or -1.
func (s *Skin) JointIndex(n *Node) int {
	for i, j := range s.Joints() {
		if j == n {
			return i
		}
	}
	return -1
}

func (s *Skin) Skeleton() *Node { return graph.RefAs[*Node](&s.Base, edgeSkeleton) }

func (s *Skin) SetSkeleton(n *Node) { s.SetRef(edgeSkeleton, n, nil) }

func (s *Skin) InverseBindMatrices() *Accessor {
	return graph.RefAs[*Accessor](&s.Base, edgeInverseBindMatrices)
}

func (s *Skin) SetInverseBindMatrices(a *Accessor) { s.SetRef(edgeInverseBindMatrices, a, nil) }

// InverseBindMatrix returns the matrix of joint i, identity when the skin has none.
func (s *Skin) InverseBindMatrix(i int) mgl32.Mat4 {
	ibm := s.InverseBindMatrices()
	if ibm == nil || i < 0 || i >= ibm.Count() {
		return mgl32.Ident4()
	}
	var m mgl32.Mat4
	for k, v := range ibm.Element(i, nil) {
		m[k] = float32(v)
	}
	return m
}

// ListNodes returns the nodes bound to this skin.
func (s *Skin) ListNodes() []*Node {
	result := make([]*Node, 0)
	for _, p := range s.ListParents() {
		if n, ok := p.(*Node); ok && n.Skin() == s {
			result = append(result, n)
		}
	}
	return result
}

// MatrixToArray flattens m in column-major order, matching glTF storage.
func MatrixToArray(m mgl32.Mat4) []float64 {
	out := make([]float64, 16)
	for i, v := range m {
		out[i] = float64(v)
	}
	return out
}
