package transform

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mogaika/vrm_transform/scene"
	"github.com/mogaika/vrm_transform/vrm"
)

func vec(doc *scene.Document, name string, t scene.AccessorType) *scene.Accessor {
	a := doc.CreateAccessor(name, t, scene.ComponentFloat)
	a.Array = make([]float64, 3*t.ElementSize())
	return a
}

func TestPruneVrmVertexAttributes(t *testing.T) {
	doc := scene.NewDocument()

	tex := pngTexture(t, doc, "base", fillImage(2, 2, color.NRGBA{R: 1, G: 2, B: 3, A: 255}))
	mat := doc.CreateMaterial("m")
	info := mat.SetTexture(scene.SlotBaseColor, tex)
	info.TexCoord = 1
	// an info left behind by a cleared slot must not keep its set alive
	mat.SetTexture(scene.SlotNormal, tex).TexCoord = 0
	mat.SetTexture(scene.SlotNormal, nil)

	pos := vec(doc, "pos", scene.TypeVec3)
	normal := vec(doc, "normal", scene.TypeVec3)
	tangent := vec(doc, "tangent", scene.TypeVec4)
	uv0 := vec(doc, "uv0", scene.TypeVec2)
	uv1 := vec(doc, "uv1", scene.TypeVec2)
	color0 := vec(doc, "color0", scene.TypeVec4)
	color1 := vec(doc, "color1", scene.TypeVec4)
	targetPos := vec(doc, "targetPos", scene.TypeVec3)
	targetNormal := vec(doc, "targetNormal", scene.TypeVec3)
	targetTangent := vec(doc, "targetTangent", scene.TypeVec3)

	prim := doc.CreatePrimitive()
	prim.SetMaterial(mat)
	for semantic, acc := range map[string]*scene.Accessor{
		"POSITION": pos, "NORMAL": normal, "TANGENT": tangent,
		"TEXCOORD_0": uv0, "TEXCOORD_1": uv1, "COLOR_0": color0, "COLOR_1": color1,
	} {
		prim.SetAttribute(semantic, acc)
	}
	target := doc.CreatePrimitiveTarget()
	target.SetAttribute("POSITION", targetPos)
	target.SetAttribute("NORMAL", targetNormal)
	target.SetAttribute("TANGENT", targetTangent)
	prim.AddTarget(target)
	mesh := doc.CreateMesh("body")
	mesh.AddPrimitive(prim)

	assert.Equal(t, 3, PruneVrmVertexAttributes(doc))

	assert.ElementsMatch(t, []string{"POSITION", "NORMAL", "TEXCOORD_0", "COLOR_0"}, prim.Semantics())
	assert.Same(t, uv1, prim.Attribute("TEXCOORD_0"))
	assert.Equal(t, 0, mat.TextureInfo(scene.SlotBaseColor).TexCoord)
	assert.ElementsMatch(t, []string{"POSITION", "NORMAL"}, target.Semantics())

	for _, acc := range []*scene.Accessor{tangent, uv0, color1, targetTangent} {
		assert.True(t, acc.IsDisposed(), acc.Name)
	}
	for _, acc := range []*scene.Accessor{pos, normal, uv1, color0, targetPos, targetNormal} {
		assert.False(t, acc.IsDisposed(), acc.Name)
	}
}

func TestPruneVertexAttributesPoints(t *testing.T) {
	doc := scene.NewDocument()
	prim := doc.CreatePrimitive()
	prim.Mode = scene.ModePoints
	prim.SetMaterial(doc.CreateMaterial("dots"))
	prim.SetAttribute("POSITION", vec(doc, "pos", scene.TypeVec3))
	prim.SetAttribute("NORMAL", vec(doc, "normal", scene.TypeVec3))
	prim.SetAttribute("TEXCOORD_0", vec(doc, "uv", scene.TypeVec2))
	doc.CreateMesh("points").AddPrimitive(prim)

	assert.Equal(t, 2, PruneVrmVertexAttributes(doc))
	assert.Equal(t, []string{"POSITION"}, prim.Semantics())
}

func TestPruneVertexAttributesSkipsPrimitiveWithoutMaterial(t *testing.T) {
	doc := scene.NewDocument()
	prim := doc.CreatePrimitive()
	uv := vec(doc, "uv", scene.TypeVec2)
	prim.SetAttribute("POSITION", vec(doc, "pos", scene.TypeVec3))
	prim.SetAttribute("TANGENT", vec(doc, "tangent", scene.TypeVec4))
	prim.SetAttribute("TEXCOORD_0", uv)
	prim.SetAttribute("COLOR_1", vec(doc, "color1", scene.TypeVec4))
	doc.CreateMesh("bare").AddPrimitive(prim)

	assert.Equal(t, 0, PruneVrmVertexAttributes(doc))
	assert.ElementsMatch(t, []string{"POSITION", "TANGENT", "TEXCOORD_0", "COLOR_1"}, prim.Semantics())
	assert.False(t, uv.IsDisposed())
}

func TestShiftTexCoordsThroughExtensions(t *testing.T) {
	doc := scene.NewDocument()
	base := pngTexture(t, doc, "base", fillImage(2, 2, color.NRGBA{A: 255}))
	shade := pngTexture(t, doc, "shade", fillImage(2, 2, color.NRGBA{R: 9, A: 255}))

	mat := doc.CreateMaterial("toon")
	mat.SetTexture(scene.SlotBaseColor, base).TexCoord = 2
	mt := vrm.NewMToon(doc)
	mt.SetTexture(vrm.SlotShadeMultiply, shade).TexCoord = 4
	vrm.SetMToon(mat, mt)

	uv2 := vec(doc, "uv2", scene.TypeVec2)
	uv4 := vec(doc, "uv4", scene.TypeVec2)
	prim := doc.CreatePrimitive()
	prim.SetMaterial(mat)
	prim.SetAttribute("NORMAL", vec(doc, "normal", scene.TypeVec3))
	prim.SetAttribute("TEXCOORD_2", uv2)
	prim.SetAttribute("TEXCOORD_4", uv4)
	doc.CreateMesh("m").AddPrimitive(prim)

	require.Equal(t, 0, PruneVrmVertexAttributes(doc))

	assert.Equal(t, 0, mat.TextureInfo(scene.SlotBaseColor).TexCoord)
	assert.Equal(t, 1, mt.TextureInfo(vrm.SlotShadeMultiply).TexCoord)
	assert.Same(t, uv2, prim.Attribute("TEXCOORD_0"))
	assert.Same(t, uv4, prim.Attribute("TEXCOORD_1"))
	assert.Nil(t, prim.Attribute("TEXCOORD_2"))
	assert.Nil(t, prim.Attribute("TEXCOORD_4"))
}
