package transform

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/mogaika/vrm_transform/scene"
	"github.com/mogaika/vrm_transform/utils/gltfutils"
)

type testRig struct {
	doc     *scene.Document
	skin    *scene.Skin
	body    *scene.Node
	joints  *scene.Accessor
	weights *scene.Accessor
}

func (r *testRig) node(name string) *scene.Node {
	return r.doc.Root().FindNode(name)
}

func (r *testRig) jointIndex(name string) int {
	return r.skin.JointIndex(r.node(name))
}

// buildRig makes a VRoid style skeleton with both arms and a four vertex
// body mesh skinned to the hips.
func buildRig(t *testing.T, shoulders bool) *testRig {
	doc := scene.NewDocument()
	sc := doc.CreateScene("Scene")
	doc.Root().SetDefaultScene(sc)

	hips := doc.CreateNode("J_Bip_C_Hips")
	hips.Translation = mgl32.Vec3{0, 1, 0}
	sc.AddChild(hips)
	bones := []*scene.Node{hips}

	bone := func(parent *scene.Node, name string, t mgl32.Vec3) *scene.Node {
		n := doc.CreateNode(name)
		n.Translation = t
		parent.AddChild(n)
		bones = append(bones, n)
		return n
	}
	for _, side := range []string{"L", "R"} {
		sign := float32(1)
		if side == "R" {
			sign = -1
		}
		parent := hips
		if shoulders {
			parent = bone(parent, bipName(side, "Shoulder"), mgl32.Vec3{sign * 0.02, 0.3, 0})
		}
		ua := bone(parent, bipName(side, "UpperArm"), mgl32.Vec3{sign * 0.1, 0.01, 0})
		la := bone(ua, bipName(side, "LowerArm"), mgl32.Vec3{sign * 0.25, 0, 0})
		bone(la, bipName(side, "Hand"), mgl32.Vec3{sign * 0.22, 0, 0})
	}

	ibm := doc.CreateAccessor("ibm", scene.TypeMat4, scene.ComponentFloat)
	skin := doc.CreateSkin("skin")
	skin.SetSkeleton(hips)
	skin.SetInverseBindMatrices(ibm)
	for i, b := range bones {
		skin.AddJoint(b)
		ibm.AppendElement(scene.MatrixToArray(mgl32.Translate3D(float32(i), 0, 0)))
	}

	pos := doc.CreateAccessor("pos", scene.TypeVec3, scene.ComponentFloat)
	pos.Array = []float64{0, 0, 0, 1, 0, 0, 0, 1, 0, 1, 1, 0}
	joints := doc.CreateAccessor("joints", scene.TypeVec4, scene.ComponentUnsignedShort)
	joints.Array = make([]float64, 16)
	weights := doc.CreateAccessor("weights", scene.TypeVec4, scene.ComponentFloat)
	weights.Array = []float64{1, 0, 0, 0, 1, 0, 0, 0, 1, 0, 0, 0, 1, 0, 0, 0}

	prim := doc.CreatePrimitive()
	prim.SetAttribute("POSITION", pos)
	prim.SetAttribute("JOINTS_0", joints)
	prim.SetAttribute("WEIGHTS_0", weights)
	mesh := doc.CreateMesh("Body")
	mesh.AddPrimitive(prim)
	body := doc.CreateNode("Body")
	body.SetMesh(mesh)
	body.SetSkin(skin)
	sc.AddChild(body)

	return &testRig{doc: doc, skin: skin, body: body, joints: joints, weights: weights}
}

func observe(doc *scene.Document) *observer.ObservedLogs {
	core, logs := observer.New(zap.DebugLevel)
	doc.SetLogger(zap.New(core))
	return logs
}

func fillImage(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func pngTexture(t *testing.T, doc *scene.Document, name string, img image.Image) *scene.Texture {
	tex := doc.CreateTexture(name)
	tex.Image = encodePNG(t, img)
	tex.MimeType = gltfutils.MimePNG
	return tex
}
