package gltfutils

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
	"go.uber.org/zap"

	"github.com/mogaika/vrm_transform/graph"
	"github.com/mogaika/vrm_transform/scene"
)

// ReadFile loads a .vrm/.glb/.gltf file. External buffers and images are resolved relative to the file.
func ReadFile(path string, logger *zap.Logger) (*scene.Document, error) {
	src, err := gltf.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to open %q", path)
	}
	return Read(src, filepath.Dir(path), logger)
}

// ReadBytes decodes a self-contained binary or embedded glTF document.
func ReadBytes(data []byte, logger *zap.Logger) (*scene.Document, error) {
	src := &gltf.Document{}
	if err := gltf.NewDecoder(bytes.NewReader(data)).Decode(src); err != nil {
		return nil, errors.Wrapf(err, "Failed to decode gltf")
	}
	return Read(src, "", logger)
}

// Read converts a decoded glTF document into a scene document.
// dir resolves external image URIs; empty dir disables external lookups.
func Read(src *gltf.Document, dir string, logger *zap.Logger) (*scene.Document, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	doc := scene.NewDocument()
	doc.SetLogger(logger)
	r := &reader{
		src: src,
		dir: dir,
		rc: &ReadContext{
			Doc:    doc,
			Source: src,
			Logger: logger.Named("gltf"),
		},
	}
	if err := r.read(); err != nil {
		return nil, err
	}
	return doc, nil
}

type reader struct {
	src *gltf.Document
	dir string
	rc  *ReadContext

	cameras []*scene.Camera
	skins   []*scene.Skin
}

func (r *reader) read() error {
	root := r.rc.Doc.Root()
	root.Asset = scene.Asset{
		Version:    r.src.Asset.Version,
		Generator:  r.src.Asset.Generator,
		Copyright:  r.src.Asset.Copyright,
		MinVersion: r.src.Asset.MinVersion,
	}
	readCommon(&root.Base, "", r.src.Extensions, r.src.Extras)

	steps := []struct {
		name string
		fn   func() error
	}{
		{"accessors", r.readAccessors},
		{"images", r.readImages},
		{"materials", r.readMaterials},
		{"meshes", r.readMeshes},
		{"cameras", r.readCameras},
		{"nodes", r.readNodes},
		{"skins", r.readSkins},
		{"scenes", r.readScenes},
		{"animations", r.readAnimations},
	}
	for _, step := range steps {
		if err := step.fn(); err != nil {
			return errors.Wrapf(err, "Failed to read %s", step.name)
		}
	}

	for _, codec := range Codecs() {
		if err := codec.Read(r.rc); err != nil {
			return errors.Wrapf(err, "Failed to read extension %q", codec.Name())
		}
	}
	return nil
}

// readCommon copies name, extras and the extensions no codec handles.
func readCommon(b *graph.Base, name string, ext gltf.Extensions, extras interface{}) {
	b.Name = name
	b.Extras = extrasMap(extras)
	for key, value := range ext {
		if key == extTextureBasisu || key == extTextureWebP || isCodecExtension(key) {
			continue
		}
		raw, err := rawJSON(value)
		if err != nil {
			continue
		}
		if b.RawExtensions == nil {
			b.RawExtensions = make(map[string]json.RawMessage)
		}
		b.RawExtensions[key] = raw
	}
}

func rawJSON(v interface{}) (json.RawMessage, error) {
	switch value := v.(type) {
	case json.RawMessage:
		return value, nil
	case []byte:
		return json.RawMessage(value), nil
	default:
		return json.Marshal(value)
	}
}

func extrasMap(extras interface{}) map[string]interface{} {
	switch v := extras.(type) {
	case map[string]interface{}:
		if len(v) == 0 {
			return nil
		}
		return v
	case json.RawMessage:
		var m map[string]interface{}
		if err := json.Unmarshal(v, &m); err == nil && len(m) != 0 {
			return m
		}
	}
	return nil
}

func (r *reader) bufferViewData(index uint32) ([]byte, error) {
	if int(index) >= len(r.src.BufferViews) {
		return nil, errors.Errorf("Buffer view %d out of range", index)
	}
	bv := r.src.BufferViews[index]
	if int(bv.Buffer) >= len(r.src.Buffers) {
		return nil, errors.Errorf("Buffer %d out of range", bv.Buffer)
	}
	data := r.src.Buffers[bv.Buffer].Data
	end := int(bv.ByteOffset) + int(bv.ByteLength)
	if end > len(data) {
		return nil, errors.Errorf("Buffer view %d exceeds buffer (%d > %d)", index, end, len(data))
	}
	return data[bv.ByteOffset:end], nil
}

func (r *reader) readAccessors() error {
	for i, src := range r.src.Accessors {
		acc := r.rc.Doc.CreateAccessor(src.Name, accessorTypeFromGLTF(src.Type), componentTypeFromGLTF(src.ComponentType))
		acc.Normalized = src.Normalized
		readCommon(&acc.Base, src.Name, src.Extensions, src.Extras)

		layout := newElementLayout(acc.Type, acc.ComponentType)
		acc.Array = make([]float64, int(src.Count)*layout.components)

		if src.BufferView != nil {
			data, err := r.bufferViewData(*src.BufferView)
			if err != nil {
				return errors.Wrapf(err, "Accessor %d", i)
			}
			stride := int(r.src.BufferViews[*src.BufferView].ByteStride)
			if err := decodeElements(data, int(src.ByteOffset), stride, int(src.Count), layout, acc.ComponentType, acc.Normalized, acc.Array); err != nil {
				return errors.Wrapf(err, "Accessor %d", i)
			}
		}
		if src.Sparse != nil {
			if err := r.readSparse(src, acc, layout); err != nil {
				return errors.Wrapf(err, "Accessor %d sparse", i)
			}
		}
		r.rc.Accessors = append(r.rc.Accessors, acc)
	}
	return nil
}

func (r *reader) readSparse(src *gltf.Accessor, acc *scene.Accessor, layout elementLayout) error {
	sparse := src.Sparse
	count := int(sparse.Count)

	indexData, err := r.bufferViewData(sparse.Indices.BufferView)
	if err != nil {
		return err
	}
	indexType := componentTypeFromGLTF(sparse.Indices.ComponentType)
	indices := make([]float64, count)
	if err := decodeElements(indexData, int(sparse.Indices.ByteOffset), 0, count,
		newElementLayout(scene.TypeScalar, indexType), indexType, false, indices); err != nil {
		return err
	}

	valueData, err := r.bufferViewData(sparse.Values.BufferView)
	if err != nil {
		return err
	}
	values := make([]float64, count*layout.components)
	if err := decodeElements(valueData, int(sparse.Values.ByteOffset), 0, count, layout, acc.ComponentType, acc.Normalized, values); err != nil {
		return err
	}

	for i, index := range indices {
		if int(index) >= acc.Count() {
			return errors.Errorf("Sparse index %d out of range", int(index))
		}
		acc.SetElement(int(index), values[i*layout.components:])
	}
	return nil
}

func (r *reader) readImages() error {
	images := make([]*scene.Texture, len(r.src.Images))
	for i, img := range r.src.Images {
		tex := r.rc.Doc.CreateTexture(img.Name)
		readCommon(&tex.Base, img.Name, img.Extensions, img.Extras)
		tex.MimeType = img.MimeType
		switch {
		case img.BufferView != nil:
			data, err := r.bufferViewData(*img.BufferView)
			if err != nil {
				return errors.Wrapf(err, "Image %d", i)
			}
			tex.Image = append([]byte(nil), data...)
		case img.IsEmbeddedResource():
			data, err := img.MarshalData()
			if err != nil {
				return errors.Wrapf(err, "Image %d", i)
			}
			tex.Image = data
		case img.URI != "":
			tex.URI = img.URI
			if r.dir != "" {
				data, err := os.ReadFile(filepath.Join(r.dir, filepath.FromSlash(img.URI)))
				if err != nil {
					r.rc.Logger.Warn("Failed to read external image", zap.String("uri", img.URI), zap.Error(err))
				} else {
					tex.Image = data
				}
			}
		}
		if tex.MimeType == "" {
			tex.MimeType = SniffMime(tex.Image)
		}
		if tex.MimeType == "" {
			tex.MimeType = mimeFromURI(img.URI)
		}
		images[i] = tex
	}
	r.rc.Images = images

	r.rc.Textures = make([]*scene.Texture, len(r.src.Textures))
	for i, t := range r.src.Textures {
		source := t.Source
		if source == nil {
			source = extensionSource(t.Extensions)
		}
		if source == nil || int(*source) >= len(images) {
			r.rc.Logger.Warn("Texture without usable source", zap.Int("texture", i))
			continue
		}
		r.rc.Textures[i] = images[*source]
	}
	return nil
}

func extensionSource(ext gltf.Extensions) *uint32 {
	for _, name := range []string{extTextureBasisu, extTextureWebP} {
		var v struct {
			Source *uint32 `json:"source"`
		}
		if ok, err := DecodeExtension(ext, name, &v); ok && err == nil && v.Source != nil {
			return v.Source
		}
	}
	return nil
}

func mimeFromURI(uri string) string {
	switch strings.ToLower(filepath.Ext(uri)) {
	case ".png":
		return MimePNG
	case ".jpg", ".jpeg":
		return MimeJPEG
	case ".webp":
		return MimeWebP
	case ".ktx2":
		return MimeKTX2
	}
	return ""
}

func (r *reader) textureInfo(owner *graph.Base, slot scene.TextureSlot, index, texCoord uint32, ext gltf.Extensions, extras interface{}) *scene.TextureInfo {
	if int(index) >= len(r.rc.Textures) || r.rc.Textures[index] == nil {
		return nil
	}
	ti := scene.SetSlotTexture(owner, slot, r.rc.Textures[index])
	ti.TexCoord = int(texCoord)
	readCommon(&ti.Base, "", ext, extras)
	applySampler(r.src, r.src.Textures[index], ti)
	return ti
}

func (r *reader) readMaterials() error {
	for _, src := range r.src.Materials {
		mat := r.rc.Doc.CreateMaterial(src.Name)
		readCommon(&mat.Base, src.Name, src.Extensions, src.Extras)
		mat.EmissiveFactor = mgl32.Vec3(src.EmissiveFactor)
		mat.DoubleSided = src.DoubleSided
		switch src.AlphaMode {
		case gltf.AlphaMask:
			mat.AlphaMode = scene.AlphaMask
		case gltf.AlphaBlend:
			mat.AlphaMode = scene.AlphaBlend
		default:
			mat.AlphaMode = scene.AlphaOpaque
		}
		if src.AlphaCutoff != nil {
			mat.AlphaCutoff = *src.AlphaCutoff
		}
		if pbr := src.PBRMetallicRoughness; pbr != nil {
			if pbr.BaseColorFactor != nil {
				mat.BaseColorFactor = mgl32.Vec4(*pbr.BaseColorFactor)
			}
			if pbr.MetallicFactor != nil {
				mat.MetallicFactor = *pbr.MetallicFactor
			}
			if pbr.RoughnessFactor != nil {
				mat.RoughnessFactor = *pbr.RoughnessFactor
			}
			if ti := pbr.BaseColorTexture; ti != nil {
				r.textureInfo(&mat.Base, scene.SlotBaseColor, ti.Index, ti.TexCoord, ti.Extensions, ti.Extras)
			}
			if ti := pbr.MetallicRoughnessTexture; ti != nil {
				r.textureInfo(&mat.Base, scene.SlotMetallicRoughness, ti.Index, ti.TexCoord, ti.Extensions, ti.Extras)
			}
		}
		if ti := src.NormalTexture; ti != nil && ti.Index != nil {
			r.textureInfo(&mat.Base, scene.SlotNormal, *ti.Index, ti.TexCoord, ti.Extensions, ti.Extras)
			if ti.Scale != nil {
				mat.NormalScale = *ti.Scale
			}
		}
		if ti := src.OcclusionTexture; ti != nil && ti.Index != nil {
			r.textureInfo(&mat.Base, scene.SlotOcclusion, *ti.Index, ti.TexCoord, ti.Extensions, ti.Extras)
			if ti.Strength != nil {
				mat.OcclusionStrength = *ti.Strength
			}
		}
		if ti := src.EmissiveTexture; ti != nil {
			r.textureInfo(&mat.Base, scene.SlotEmissive, ti.Index, ti.TexCoord, ti.Extensions, ti.Extras)
		}
		r.rc.Materials = append(r.rc.Materials, mat)
	}
	return nil
}

func (r *reader) accessor(index uint32) (*scene.Accessor, error) {
	if int(index) >= len(r.rc.Accessors) {
		return nil, errors.Errorf("Accessor %d out of range", index)
	}
	return r.rc.Accessors[index], nil
}

func (r *reader) readMeshes() error {
	for i, src := range r.src.Meshes {
		mesh := r.rc.Doc.CreateMesh(src.Name)
		readCommon(&mesh.Base, src.Name, src.Extensions, src.Extras)
		mesh.Weights = append([]float32(nil), src.Weights...)
		for _, sp := range src.Primitives {
			prim := r.rc.Doc.CreatePrimitive()
			readCommon(&prim.Base, "", sp.Extensions, sp.Extras)
			prim.Mode = primitiveModeFromGLTF(sp.Mode)
			if err := r.readAttributes(prim.SetAttribute, sp.Attributes); err != nil {
				return errors.Wrapf(err, "Mesh %d", i)
			}
			if sp.Indices != nil {
				acc, err := r.accessor(*sp.Indices)
				if err != nil {
					return errors.Wrapf(err, "Mesh %d indices", i)
				}
				prim.SetIndices(acc)
			}
			if sp.Material != nil && int(*sp.Material) < len(r.rc.Materials) {
				prim.SetMaterial(r.rc.Materials[*sp.Material])
			}
			for _, st := range sp.Targets {
				target := r.rc.Doc.CreatePrimitiveTarget()
				if err := r.readAttributes(target.SetAttribute, st); err != nil {
					return errors.Wrapf(err, "Mesh %d target", i)
				}
				prim.AddTarget(target)
			}
			mesh.AddPrimitive(prim)
		}
		r.rc.Meshes = append(r.rc.Meshes, mesh)
	}
	return nil
}

func (r *reader) readAttributes(set func(string, *scene.Accessor), attrs gltf.Attribute) error {
	semantics := make([]string, 0, len(attrs))
	for semantic := range attrs {
		semantics = append(semantics, semantic)
	}
	sortSemantics(semantics)
	for _, semantic := range semantics {
		acc, err := r.accessor(attrs[semantic])
		if err != nil {
			return errors.Wrapf(err, "Attribute %q", semantic)
		}
		set(semantic, acc)
	}
	return nil
}

func (r *reader) readCameras() error {
	for _, src := range r.src.Cameras {
		cam := r.rc.Doc.CreateCamera(src.Name)
		readCommon(&cam.Base, src.Name, src.Extensions, src.Extras)
		data, err := json.Marshal(src)
		if err != nil {
			return errors.Wrapf(err, "Failed to marshal camera %q", src.Name)
		}
		cam.Data = data
		r.cameras = append(r.cameras, cam)
	}
	return nil
}

func (r *reader) readNodes() error {
	nodes := make([]*scene.Node, len(r.src.Nodes))
	for i, src := range r.src.Nodes {
		node := r.rc.Doc.CreateNode(src.Name)
		readCommon(&node.Base, src.Name, src.Extensions, src.Extras)
		if src.Matrix != gltf.DefaultMatrix && src.Matrix != [16]float32{} {
			node.Translation, node.Rotation, node.Scale = decomposeMatrix(mgl32.Mat4(src.Matrix))
		} else {
			node.Translation = mgl32.Vec3(src.Translation)
			node.Rotation = mgl32.Quat{W: src.Rotation[3], V: mgl32.Vec3{src.Rotation[0], src.Rotation[1], src.Rotation[2]}}
			node.Scale = mgl32.Vec3(src.Scale)
		}
		node.Weights = append([]float32(nil), src.Weights...)
		if src.Mesh != nil && int(*src.Mesh) < len(r.rc.Meshes) {
			node.SetMesh(r.rc.Meshes[*src.Mesh])
		}
		if src.Camera != nil && int(*src.Camera) < len(r.cameras) {
			node.SetCamera(r.cameras[*src.Camera])
		}
		nodes[i] = node
	}
	for i, src := range r.src.Nodes {
		for _, c := range src.Children {
			if int(c) >= len(nodes) {
				return errors.Errorf("Node %d child %d out of range", i, c)
			}
			nodes[i].AddChild(nodes[c])
		}
	}
	r.rc.Nodes = nodes
	return nil
}

func decomposeMatrix(m mgl32.Mat4) (t mgl32.Vec3, q mgl32.Quat, s mgl32.Vec3) {
	t = m.Col(3).Vec3()
	s = mgl32.Vec3{m.Col(0).Vec3().Len(), m.Col(1).Vec3().Len(), m.Col(2).Vec3().Len()}
	if m.Mat3().Det() < 0 {
		s[0] = -s[0]
	}
	rot := mgl32.Ident4()
	for c := 0; c < 3; c++ {
		if s[c] == 0 {
			continue
		}
		col := m.Col(c).Vec3().Mul(1 / s[c])
		rot.SetCol(c, col.Vec4(0))
	}
	q = mgl32.Mat4ToQuat(rot).Normalize()
	return t, q, s
}

func (r *reader) readSkins() error {
	for i, src := range r.src.Skins {
		skin := r.rc.Doc.CreateSkin(src.Name)
		readCommon(&skin.Base, src.Name, src.Extensions, src.Extras)
		for _, j := range src.Joints {
			if int(j) >= len(r.rc.Nodes) {
				return errors.Errorf("Skin %d joint %d out of range", i, j)
			}
			skin.AddJoint(r.rc.Nodes[j])
		}
		if src.Skeleton != nil && int(*src.Skeleton) < len(r.rc.Nodes) {
			skin.SetSkeleton(r.rc.Nodes[*src.Skeleton])
		}
		if src.InverseBindMatrices != nil {
			acc, err := r.accessor(*src.InverseBindMatrices)
			if err != nil {
				return errors.Wrapf(err, "Skin %d", i)
			}
			skin.SetInverseBindMatrices(acc)
		}
		r.skins = append(r.skins, skin)
	}
	for i, src := range r.src.Nodes {
		if src.Skin != nil && int(*src.Skin) < len(r.skins) {
			r.rc.Nodes[i].SetSkin(r.skins[*src.Skin])
		}
	}
	return nil
}

func (r *reader) readScenes() error {
	scenes := make([]*scene.Scene, len(r.src.Scenes))
	for i, src := range r.src.Scenes {
		sc := r.rc.Doc.CreateScene(src.Name)
		readCommon(&sc.Base, src.Name, src.Extensions, src.Extras)
		for _, n := range src.Nodes {
			if int(n) < len(r.rc.Nodes) {
				sc.AddChild(r.rc.Nodes[n])
			}
		}
		scenes[i] = sc
	}
	if r.src.Scene != nil && int(*r.src.Scene) < len(scenes) {
		r.rc.Doc.Root().SetDefaultScene(scenes[*r.src.Scene])
	}
	return nil
}

func (r *reader) readAnimations() error {
	for i, src := range r.src.Animations {
		anim := r.rc.Doc.CreateAnimation(src.Name)
		readCommon(&anim.Base, src.Name, src.Extensions, src.Extras)
		samplers := make([]*scene.AnimationSampler, len(src.Samplers))
		for k, ss := range src.Samplers {
			sampler := r.rc.Doc.CreateAnimationSampler()
			sampler.Interpolation = interpolationFromGLTF(ss.Interpolation)
			if ss.Input != nil {
				acc, err := r.accessor(*ss.Input)
				if err != nil {
					return errors.Wrapf(err, "Animation %d", i)
				}
				sampler.SetInput(acc)
			}
			if ss.Output != nil {
				acc, err := r.accessor(*ss.Output)
				if err != nil {
					return errors.Wrapf(err, "Animation %d", i)
				}
				sampler.SetOutput(acc)
			}
			anim.AddSampler(sampler)
			samplers[k] = sampler
		}
		for _, sc := range src.Channels {
			channel := r.rc.Doc.CreateAnimationChannel()
			channel.TargetPath = pathFromGLTF(sc.Target.Path)
			if sc.Target.Node != nil && int(*sc.Target.Node) < len(r.rc.Nodes) {
				channel.SetTargetNode(r.rc.Nodes[*sc.Target.Node])
			}
			if sc.Sampler != nil && int(*sc.Sampler) < len(samplers) {
				channel.SetSampler(samplers[*sc.Sampler])
			}
			anim.AddChannel(channel)
		}
	}
	return nil
}
