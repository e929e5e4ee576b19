package scene

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNodeHierarchy(t *testing.T) {
	doc := NewDocument()
	sc := doc.CreateScene("main")
	a := doc.CreateNode("a")
	b := doc.CreateNode("b")
	c := doc.CreateNode("c")
	sc.AddChild(a)
	a.AddChild(b)
	a.AddChild(c)

	assert.Equal(t, []*Node{b, c}, a.Children())
	assert.Equal(t, a, b.Parent())
	assert.Nil(t, a.Parent())

	// moving a node detaches it from the previous parent
	b.AddChild(c)
	assert.Equal(t, []*Node{b}, a.Children())
	assert.Equal(t, b, c.Parent())

	sc.AddChild(c)
	assert.Empty(t, b.Children())
	assert.Equal(t, []*Node{a, c}, sc.Children())

	visited := make([]string, 0)
	sc.Traverse(func(n *Node) { visited = append(visited, n.Name) })
	assert.Equal(t, []string{"a", "b", "c"}, visited)
}

func TestNodeWorldMatrix(t *testing.T) {
	doc := NewDocument()
	a := doc.CreateNode("a")
	b := doc.CreateNode("b")
	a.AddChild(b)
	a.Translation = mgl32.Vec3{1, 0, 0}
	b.Translation = mgl32.Vec3{0, 2, 0}

	w := b.WorldMatrix()
	assert.InDelta(t, 1, w[12], 1e-6)
	assert.InDelta(t, 2, w[13], 1e-6)
	assert.Equal(t, mgl32.QuatIdent(), b.Rotation)
	assert.Equal(t, mgl32.Vec3{1, 1, 1}, b.Scale)
}

func TestAccessorElements(t *testing.T) {
	doc := NewDocument()
	acc := doc.CreateAccessor("pos", TypeVec3, ComponentFloat)
	acc.Array = []float64{0, 1, 2, -3, 4, 5}

	assert.Equal(t, 2, acc.Count())
	assert.Equal(t, []float64{-3, 4, 5}, acc.Element(1, nil))

	acc.SetElement(0, []float64{7, 8, 9})
	acc.AppendElement([]float64{1, 1, 1})
	assert.Equal(t, 3, acc.Count())

	min, max := acc.MinMax()
	assert.Equal(t, []float64{-3, 1, 1}, min)
	assert.Equal(t, []float64{7, 8, 9}, max)

	clone := doc.CloneAccessor(acc)
	clone.Array[0] = 100
	assert.Equal(t, float64(7), acc.Array[0])
	assert.Len(t, doc.Root().ListAccessors(), 2)
}

func TestSkinInverseBindMatrix(t *testing.T) {
	doc := NewDocument()
	skin := doc.CreateSkin("skin")
	j0 := doc.CreateNode("j0")
	j1 := doc.CreateNode("j1")
	skin.AddJoint(j0).AddJoint(j1)

	assert.Equal(t, mgl32.Ident4(), skin.InverseBindMatrix(1))

	ibm := doc.CreateAccessor("ibm", TypeMat4, ComponentFloat)
	ibm.Array = append(MatrixToArray(mgl32.Ident4()), MatrixToArray(mgl32.Translate3D(1, 2, 3))...)
	skin.SetInverseBindMatrices(ibm)

	assert.Equal(t, mgl32.Translate3D(1, 2, 3), skin.InverseBindMatrix(1))
	assert.Equal(t, 1, skin.JointIndex(j1))

	mesh := doc.CreateMesh("m")
	holder := doc.CreateNode("holder")
	holder.SetMesh(mesh)
	holder.SetSkin(skin)
	assert.Equal(t, []*Node{holder}, skin.ListNodes())

	j1.Dispose()
	assert.Equal(t, []*Node{j0}, skin.Joints())
}

func TestPrimitiveAttributes(t *testing.T) {
	doc := NewDocument()
	prim := doc.CreatePrimitive()
	j0 := doc.CreateAccessor("j0", TypeVec4, ComponentUnsignedByte)
	w0 := doc.CreateAccessor("w0", TypeVec4, ComponentFloat)
	j1 := doc.CreateAccessor("j1", TypeVec4, ComponentUnsignedByte)
	prim.SetAttribute("WEIGHTS_0", w0)
	prim.SetAttribute("JOINTS_0", j0)
	prim.SetAttribute("JOINTS_1", j1)

	sets := prim.SkinSets()
	require.Len(t, sets, 1)
	assert.Equal(t, j0, sets[0][0])
	assert.Equal(t, w0, sets[0][1])

	prim.SetAttribute("JOINTS_1", nil)
	assert.Equal(t, []string{"WEIGHTS_0", "JOINTS_0"}, prim.Semantics())
}

func TestTreeShakeIgnoresRootAndChannels(t *testing.T) {
	doc := NewDocument()
	acc := doc.CreateAccessor("unused", TypeScalar, ComponentFloat)
	used := doc.CreateAccessor("used", TypeScalar, ComponentFloat)
	prim := doc.CreatePrimitive()
	prim.SetIndices(used)

	kept := doc.CreateAccessor("extras", TypeScalar, ComponentFloat)
	kept.Extras = map[string]interface{}{"note": "keep"}

	assert.True(t, TreeShake(acc))
	assert.False(t, TreeShake(used))
	assert.False(t, TreeShake(kept))
	assert.True(t, acc.IsDisposed())
	assert.Equal(t, []*Accessor{used, kept}, doc.Root().ListAccessors())
}

func TestTextureSlots(t *testing.T) {
	doc := NewDocument()
	mat := doc.CreateMaterial("mat")
	tex := doc.CreateTexture("tex")

	info := mat.SetTexture(SlotNormal, tex)
	require.NotNil(t, info)
	assert.Equal(t, "linear", TextureColorSpace(tex))

	mat.SetTexture(SlotBaseColor, tex)
	assert.Equal(t, "srgb", TextureColorSpace(tex))
	assert.Equal(t, []string{"baseColorTexture", "normalTexture"}, ListTextureSlots(tex))
	assert.Len(t, ListTextureInfos(mat), 2)

	mat.SetTexture(SlotNormal, nil)
	assert.Nil(t, mat.Texture(SlotNormal))
	assert.NotNil(t, mat.TextureInfo(SlotNormal))
	assert.Len(t, ListTextureInfos(mat), 1)
}

func TestMeshTargetNames(t *testing.T) {
	doc := NewDocument()
	mesh := doc.CreateMesh("face")
	assert.Nil(t, mesh.TargetNames())

	mesh.Extras = map[string]interface{}{"targetNames": []interface{}{"a", "b"}}
	assert.Equal(t, []string{"a", "b"}, mesh.TargetNames())

	mesh.SetTargetNames([]string{"b"})
	assert.Equal(t, []string{"b"}, mesh.TargetNames())
}
