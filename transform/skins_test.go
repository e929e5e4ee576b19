package transform

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mogaika/vrm_transform/scene"
)

func skinnedMesh(doc *scene.Document, name string, skin *scene.Skin, joints, weights []float64) (*scene.Node, *scene.Accessor) {
	j := doc.CreateAccessor(name+"_joints", scene.TypeVec4, scene.ComponentUnsignedShort)
	j.Array = joints
	w := doc.CreateAccessor(name+"_weights", scene.TypeVec4, scene.ComponentFloat)
	w.Array = weights
	prim := doc.CreatePrimitive()
	prim.SetAttribute("JOINTS_0", j)
	prim.SetAttribute("WEIGHTS_0", w)
	mesh := doc.CreateMesh(name)
	mesh.AddPrimitive(prim)
	node := doc.CreateNode(name)
	node.SetMesh(mesh)
	node.SetSkin(skin)
	return node, j
}

func newSkin(doc *scene.Document, name string, skeleton *scene.Node, joints []*scene.Node, offset float32) *scene.Skin {
	skin := doc.CreateSkin(name)
	skin.SetSkeleton(skeleton)
	ibm := doc.CreateAccessor(name+"_ibm", scene.TypeMat4, scene.ComponentFloat)
	for i, j := range joints {
		skin.AddJoint(j)
		ibm.AppendElement(scene.MatrixToArray(mgl32.Translate3D(offset+float32(i), 0, 0)))
	}
	skin.SetInverseBindMatrices(ibm)
	return skin
}

func TestCombineSkins(t *testing.T) {
	doc := scene.NewDocument()
	hips := doc.CreateNode("hips")
	arm := doc.CreateNode("arm")
	head := doc.CreateNode("head")
	hips.AddChild(arm)
	hips.AddChild(head)

	skinA := newSkin(doc, "a", hips, []*scene.Node{hips, arm}, 10)
	skinB := newSkin(doc, "b", hips, []*scene.Node{head, arm}, 20)

	nodeA, jointsA := skinnedMesh(doc, "A", skinA,
		[]float64{1, 0, 0, 0},
		[]float64{1, 0, 0, 0})
	nodeB, jointsB := skinnedMesh(doc, "B", skinB,
		[]float64{0, 1, 0, 0, 1, 1, 1, 1},
		[]float64{0.5, 0.5, 0, 0, 1, 0, 0, 0})

	ibmA := skinA.InverseBindMatrices()
	assert.Equal(t, 1, CombineSkins(doc))

	merged := nodeA.Skin()
	require.NotNil(t, merged)
	assert.Same(t, merged, nodeB.Skin())
	assert.NotSame(t, skinA, merged)
	assert.Equal(t, hips, merged.Skeleton())
	assert.Equal(t, []*scene.Node{arm, head}, merged.Joints())

	assert.Equal(t, skinA.InverseBindMatrix(1), merged.InverseBindMatrix(0))
	assert.Equal(t, skinB.InverseBindMatrix(0), merged.InverseBindMatrix(1))
	assert.Equal(t, 2, merged.InverseBindMatrices().Count())

	remappedA := nodeA.Mesh().Primitives()[0].Attribute("JOINTS_0")
	remappedB := nodeB.Mesh().Primitives()[0].Attribute("JOINTS_0")
	assert.Equal(t, []float64{0, 0, 0, 0}, remappedA.Array)
	assert.Equal(t, []float64{1, 0, 0, 0, 0, 0, 0, 0}, remappedB.Array)

	// source accessors are copied, not edited
	assert.Equal(t, []float64{1, 0, 0, 0}, jointsA.Array)
	assert.Equal(t, []float64{0, 1, 0, 0, 1, 1, 1, 1}, jointsB.Array)

	// replaced skins go right away, the joint accessors wait for Prune
	assert.Equal(t, []*scene.Skin{merged}, doc.Root().ListSkins())
	assert.True(t, skinA.IsDisposed())
	assert.True(t, skinB.IsDisposed())
	assert.True(t, ibmA.IsDisposed())
	assert.False(t, jointsA.IsDisposed())

	stats := Prune(doc)
	assert.Equal(t, 0, stats.Skins)
	assert.True(t, jointsA.IsDisposed())
}

func TestCombineSkinsSharedMesh(t *testing.T) {
	doc := scene.NewDocument()
	hips := doc.CreateNode("hips")
	skin := newSkin(doc, "a", hips, []*scene.Node{hips}, 0)
	node, _ := skinnedMesh(doc, "A", skin, []float64{0, 0, 0, 0}, []float64{1, 0, 0, 0})
	twin := doc.CreateNode("twin")
	twin.SetMesh(node.Mesh())
	twin.SetSkin(skin)

	CombineSkins(doc)

	assert.Same(t, node.Skin(), twin.Skin())
	assert.NotSame(t, skin, twin.Skin())
	assert.Len(t, node.Skin().Joints(), 1)
	assert.True(t, skin.IsDisposed())
}

func TestCombineSkinsKeepsSkinUsedByMeshlessNode(t *testing.T) {
	doc := scene.NewDocument()
	hips := doc.CreateNode("hips")
	skin := newSkin(doc, "a", hips, []*scene.Node{hips}, 0)
	skinnedMesh(doc, "A", skin, []float64{0, 0, 0, 0}, []float64{1, 0, 0, 0})
	empty := doc.CreateNode("empty")
	empty.SetSkin(skin)

	CombineSkins(doc)

	assert.False(t, skin.IsDisposed())
	assert.Same(t, skin, empty.Skin())
	assert.Len(t, doc.Root().ListSkins(), 2)
}

func TestCombineSkinsWithoutSkeleton(t *testing.T) {
	doc := scene.NewDocument()
	logs := observe(doc)
	hips := doc.CreateNode("hips")
	skin := newSkin(doc, "a", nil, []*scene.Node{hips}, 0)
	node, _ := skinnedMesh(doc, "A", skin, []float64{0, 0, 0, 0}, []float64{1, 0, 0, 0})

	assert.Equal(t, 0, CombineSkins(doc))
	assert.Same(t, skin, node.Skin())
	assert.Equal(t, 1, logs.FilterMessage("Skipping skin without skeleton").Len())
}
