package vrm

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mogaika/vrm_transform/scene"
	"github.com/mogaika/vrm_transform/utils/gltfutils"
)

func solidPNG(t *testing.T, c color.NRGBA) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func buildAvatar(t *testing.T) *scene.Document {
	doc := scene.NewDocument()
	sc := doc.CreateScene("Scene")
	doc.Root().SetDefaultScene(sc)

	hips := doc.CreateNode("J_Bip_C_Hips")
	arm := doc.CreateNode("J_Bip_L_UpperArm")
	roll := doc.CreateNode("J_Roll_L_UpperArm")
	hair := doc.CreateNode("J_Sec_Hair1")
	hairTip := doc.CreateNode("J_Sec_Hair2")
	face := doc.CreateNode("Face")
	hips.AddChild(arm)
	arm.AddChild(roll)
	hips.AddChild(hair)
	hair.AddChild(hairTip)
	sc.AddChild(hips).AddChild(face)

	SetNodeConstraint(roll, NewNodeConstraint(doc).SetSource(arm).SetRollAxis(RollX).SetWeight(0.5))

	pos := doc.CreateAccessor("pos", scene.TypeVec3, scene.ComponentFloat)
	pos.Array = []float64{0, 0, 0, 1, 0, 0, 0, 1, 0}
	target := doc.CreateAccessor("target", scene.TypeVec3, scene.ComponentFloat)
	target.Array = []float64{0, 0.1, 0, 0, 0, 0, 0, 0, 0}

	mat := doc.CreateMaterial("toon")
	shade := doc.CreateTexture("shade")
	shade.Image = solidPNG(t, color.NRGBA{R: 128, G: 128, B: 128, A: 255})
	shade.MimeType = gltfutils.MimePNG
	mt := NewMToon(doc)
	mt.ShadeColorFactor = mgl32.Vec3{0.5, 0.25, 1}
	mt.SetTexture(SlotShadeMultiply, shade)
	mt.OutlineWidthMode = OutlineWorldCoordinates
	SetMToon(mat, mt)

	prim := doc.CreatePrimitive()
	prim.SetAttribute("POSITION", pos)
	prim.SetMaterial(mat)
	pt := doc.CreatePrimitiveTarget()
	pt.SetAttribute("POSITION", target)
	prim.AddTarget(pt)
	mesh := doc.CreateMesh("Face")
	mesh.AddPrimitive(prim)
	mesh.SetTargetNames([]string{"Fcl_MTH_A"})
	mesh.Weights = []float32{0}
	face.SetMesh(mesh)

	sb := NewSpringBones(doc)
	collider := NewCollider(doc)
	collider.SetNode(hips)
	collider.Radius = 0.1
	sb.AddCollider(collider)
	group := NewColliderGroup(doc, "body")
	group.AddCollider(collider)
	sb.AddColliderGroup(group)
	spring := NewSpring(doc, "hair")
	for _, n := range []*scene.Node{hair, hairTip} {
		j := NewSpringJoint(doc)
		j.SetNode(n)
		j.HitRadius = 0.02
		spring.AddJoint(j)
	}
	spring.AddColliderGroup(group)
	sb.AddSpring(spring)
	SetSpringBones(doc, sb)

	thumb := doc.CreateTexture("thumbnail")
	thumb.Image = solidPNG(t, color.NRGBA{R: 255, A: 255})
	thumb.MimeType = gltfutils.MimePNG

	v := NewVrm(doc)
	meta := NewMeta(doc)
	meta.Info.Name = "avatar"
	meta.Info.Authors = []string{"someone"}
	meta.SetThumbnail(thumb)
	v.SetMeta(meta)
	v.SetHumanBone("hips", hips)
	v.SetHumanBone("leftUpperArm", arm)

	aa := NewExpression(doc, "aa")
	bind := NewMorphTargetBind(doc)
	bind.SetNode(face)
	bind.Index = 0
	bind.Weight = 1
	aa.AddMorphTargetBind(bind)
	v.SetExpression("aa", aa)
	custom := NewExpression(doc, "wink")
	custom.IsBinary = true
	v.SetExpression("wink", custom)
	SetVrm(doc, v)
	return doc
}

func roundTrip(t *testing.T, doc *scene.Document) *scene.Document {
	var buf bytes.Buffer
	require.NoError(t, gltfutils.WriteBinary(&buf, doc, gltfutils.WriteOptions{}))
	out, err := gltfutils.ReadBytes(buf.Bytes(), nil)
	require.NoError(t, err)
	return out
}

func TestNodeConstraintRoundTrip(t *testing.T) {
	out := roundTrip(t, buildAvatar(t))
	roll := out.Root().FindNode("J_Roll_L_UpperArm")
	require.NotNil(t, roll)
	c := GetNodeConstraint(roll)
	require.NotNil(t, c)
	assert.Equal(t, RollX, c.RollAxis())
	assert.Equal(t, AimAxis(""), c.AimAxis())
	assert.Equal(t, float32(0.5), c.Weight)
	assert.Equal(t, out.Root().FindNode("J_Bip_L_UpperArm"), c.Source())
	assert.Nil(t, GetNodeConstraint(out.Root().FindNode("J_Bip_C_Hips")))
}

func TestConstraintAxisExclusive(t *testing.T) {
	doc := scene.NewDocument()
	c := NewNodeConstraint(doc).SetRollAxis(RollY)
	c.SetAimAxis(AimNegativeZ)
	assert.Equal(t, RollAxis(""), c.RollAxis())
	assert.Equal(t, AimNegativeZ, c.AimAxis())
	c.SetRollAxis(RollZ)
	assert.Equal(t, AimAxis(""), c.AimAxis())
}

func TestSpringBoneRoundTrip(t *testing.T) {
	out := roundTrip(t, buildAvatar(t))
	sb := GetSpringBones(out)
	require.NotNil(t, sb)
	require.Len(t, sb.Springs(), 1)
	spring := sb.Springs()[0]
	assert.Equal(t, "hair", spring.Name)
	joints := spring.Joints()
	require.Len(t, joints, 2)
	assert.Equal(t, "J_Sec_Hair1", joints[0].Node().Name)
	assert.InDelta(t, 0.02, joints[0].HitRadius, 1e-6)
	assert.Equal(t, float32(0.5), joints[0].DragForce)
	assert.Equal(t, mgl32.Vec3{0, -1, 0}, joints[1].GravityDir)

	require.Len(t, spring.ColliderGroups(), 1)
	group := spring.ColliderGroups()[0]
	require.Len(t, group.Colliders(), 1)
	collider := group.Colliders()[0]
	assert.Equal(t, "J_Bip_C_Hips", collider.Node().Name)
	assert.Nil(t, collider.Tail)
	assert.InDelta(t, 0.1, collider.Radius, 1e-6)
}

func TestSpringBoneWriteSkipsEmpty(t *testing.T) {
	doc := buildAvatar(t)
	sb := GetSpringBones(doc)
	for _, s := range sb.Springs() {
		sb.RemoveSpring(s)
	}
	out, err := gltfutils.Write(doc, gltfutils.WriteOptions{})
	require.NoError(t, err)
	assert.NotContains(t, out.Extensions, ExtSpringBone)
	assert.NotContains(t, out.ExtensionsUsed, ExtSpringBone)
}

func TestMToonRoundTrip(t *testing.T) {
	out := roundTrip(t, buildAvatar(t))
	mat := out.Root().ListMaterials()[0]
	mt := GetMToon(mat)
	require.NotNil(t, mt)
	assert.Equal(t, mgl32.Vec3{0.5, 0.25, 1}, mt.ShadeColorFactor)
	assert.Equal(t, OutlineWorldCoordinates, mt.OutlineWidthMode)
	assert.InDelta(t, 0.9, mt.ShadingToonyFactor, 1e-6)

	shade := mt.Texture(SlotShadeMultiply)
	require.NotNil(t, shade)
	assert.Equal(t, "srgb", scene.TextureColorSpace(shade))
	assert.Nil(t, mt.Texture(SlotMatcap))
	assert.Contains(t, scene.ListTextureInfos(mat), mt.TextureInfo(SlotShadeMultiply))
}

func TestMToonMatcapFactorWrittenWithTexture(t *testing.T) {
	doc := buildAvatar(t)
	out, err := gltfutils.Write(doc, gltfutils.WriteOptions{})
	require.NoError(t, err)
	def, err := decode[mtoonDef](out.Materials[0].Extensions, ExtMaterialsMToon)
	require.NoError(t, err)
	require.NotNil(t, def)
	assert.Nil(t, def.MatcapFactor)

	mt := GetMToon(doc.Root().ListMaterials()[0])
	mt.SetTexture(SlotMatcap, mt.Texture(SlotShadeMultiply))
	out, err = gltfutils.Write(doc, gltfutils.WriteOptions{})
	require.NoError(t, err)
	def, err = decode[mtoonDef](out.Materials[0].Extensions, ExtMaterialsMToon)
	require.NoError(t, err)
	require.NotNil(t, def.MatcapFactor)
	assert.Equal(t, [3]float32{1, 1, 1}, *def.MatcapFactor)
}

func TestVrmRoundTrip(t *testing.T) {
	out := roundTrip(t, buildAvatar(t))
	v := GetVrm(out)
	require.NotNil(t, v)
	assert.Equal(t, SpecVersion, v.SpecVersion)

	meta := v.Meta()
	require.NotNil(t, meta)
	assert.Equal(t, "avatar", meta.Info.Name)
	assert.Equal(t, []string{"someone"}, meta.Info.Authors)
	assert.Equal(t, "onlyAuthor", meta.Info.AvatarPermission)
	require.NotNil(t, meta.Thumbnail())
	assert.Equal(t, "srgb", scene.TextureColorSpace(meta.Thumbnail()))

	assert.ElementsMatch(t, []string{"hips", "leftUpperArm"}, v.HumanBoneNames())
	assert.Equal(t, out.Root().FindNode("J_Bip_C_Hips"), v.HumanBone("hips"))

	aa := v.Expression("aa")
	require.NotNil(t, aa)
	binds := aa.MorphTargetBinds()
	require.Len(t, binds, 1)
	assert.Equal(t, out.Root().FindNode("Face"), binds[0].Node())
	assert.Equal(t, float32(1), binds[0].Weight)
	assert.Equal(t, "none", aa.OverrideBlink)

	wink := v.Expression("wink")
	require.NotNil(t, wink)
	assert.True(t, wink.IsBinary)
	assert.Len(t, FindExpressionsBinding(v, out.Root().FindNode("Face")), 1)
}

func TestVrmWritesPresetAndCustom(t *testing.T) {
	out, err := gltfutils.Write(buildAvatar(t), gltfutils.WriteOptions{})
	require.NoError(t, err)
	def, err := decode[vrmDef](out.Extensions, ExtVrm)
	require.NoError(t, err)
	require.NotNil(t, def.Expressions)
	assert.Contains(t, def.Expressions.Preset, "aa")
	assert.NotContains(t, def.Expressions.Preset, "wink")
	assert.Contains(t, def.Expressions.Custom, "wink")
	require.NotNil(t, def.Meta.ThumbnailImage)
	assert.Contains(t, out.ExtensionsUsed, ExtVrm)
}

func TestIsPresetExpression(t *testing.T) {
	tests := []struct {
		name   string
		preset bool
	}{
		{"aa", true},
		{"blinkLeft", true},
		{"neutral", true},
		{"Blink", false},
		{"wink", false},
	}
	for _, test := range tests {
		assert.Equal(t, test.preset, IsPresetExpression(test.name), test.name)
	}
}
