package gltfutils

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"go.uber.org/zap"

	"github.com/mogaika/vrm_transform/graph"
	"github.com/mogaika/vrm_transform/scene"
)

type VertexLayout string

const (
	// LayoutSeparate writes one buffer view per accessor.
	LayoutSeparate VertexLayout = "separate"
	// LayoutInterleaved packs the vertex attributes of each primitive into one strided view.
	LayoutInterleaved VertexLayout = "interleaved"
)

func ParseVertexLayout(s string) (VertexLayout, error) {
	switch VertexLayout(strings.ToLower(s)) {
	case LayoutSeparate, "":
		return LayoutSeparate, nil
	case LayoutInterleaved:
		return LayoutInterleaved, nil
	}
	return "", errors.Errorf("Unknown vertex layout %q", s)
}

type WriteOptions struct {
	Layout    VertexLayout
	Generator string
	Logger    *zap.Logger
}

// WriteFile saves doc to path. .gltf files get the buffer embedded as data URI, everything else is GLB.
func WriteFile(path string, doc *scene.Document, opts WriteOptions) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "Failed to create %q", path)
	}
	defer f.Close()

	target, err := Write(doc, opts)
	if err != nil {
		return err
	}
	enc := gltf.NewEncoder(f)
	enc.AsBinary = !strings.EqualFold(filepath.Ext(path), ".gltf")
	if err := enc.Encode(target); err != nil {
		return errors.Wrapf(err, "Failed to encode %q", path)
	}
	return f.Close()
}

func WriteBinary(w io.Writer, doc *scene.Document, opts WriteOptions) error {
	target, err := Write(doc, opts)
	if err != nil {
		return err
	}
	enc := gltf.NewEncoder(w)
	enc.AsBinary = true
	return errors.Wrapf(enc.Encode(target), "Failed to encode glb")
}

// Write converts doc into a glTF document with a single binary buffer.
func Write(doc *scene.Document, opts WriteOptions) (*gltf.Document, error) {
	if opts.Layout == "" {
		opts.Layout = LayoutSeparate
	}
	logger := opts.Logger
	if logger == nil {
		logger = doc.Logger()
	}
	root := doc.Root()
	target := &gltf.Document{
		Asset: gltf.Asset{
			Version:    "2.0",
			Generator:  root.Asset.Generator,
			Copyright:  root.Asset.Copyright,
			MinVersion: root.Asset.MinVersion,
		},
	}
	if opts.Generator != "" {
		target.Asset.Generator = opts.Generator
	}
	w := &writer{
		opts: opts,
		root: root,
		wc: &WriteContext{
			Doc:           doc,
			Target:        target,
			Logger:        logger.Named("gltf"),
			NodeIndex:     make(map[*scene.Node]uint32),
			MeshIndex:     make(map[*scene.Mesh]uint32),
			MaterialIndex: make(map[*scene.Material]uint32),
			ImageIndex:    make(map[*scene.Texture]uint32),
			textureIndex:  make(map[textureKey]uint32),
			samplerIndex:  make(map[samplerKey]uint32),
		},
		accessorIndex: make(map[*scene.Accessor]uint32),
		skinIndex:     make(map[*scene.Skin]uint32),
		cameraIndex:   make(map[*scene.Camera]uint32),
	}
	if err := w.write(); err != nil {
		return nil, err
	}
	return target, nil
}

type accessorUsage struct {
	vertex   bool
	index    bool
	position bool
	joints   bool
}

// interleaveGroup is the set of accessors sharing one strided buffer view.
type interleaveGroup struct {
	members []*scene.Accessor
	offsets []int
	stride  int
	view    *uint32
}

type writer struct {
	opts WriteOptions
	root *scene.Root
	wc   *WriteContext

	usage         map[*scene.Accessor]*accessorUsage
	groups        map[*scene.Accessor]*interleaveGroup
	accessorIndex map[*scene.Accessor]uint32
	skinIndex     map[*scene.Skin]uint32
	cameraIndex   map[*scene.Camera]uint32
}

func (w *writer) write() error {
	target := w.wc.Target
	target.Extensions = w.extensions(&w.root.Base)
	target.Extras = extras(w.root.Extras)

	w.indexProperties()

	steps := []struct {
		name string
		fn   func() error
	}{
		{"images", w.writeImages},
		{"accessors", w.writeAccessors},
		{"materials", w.writeMaterials},
		{"meshes", w.writeMeshes},
		{"cameras", w.writeCameras},
		{"nodes", w.writeNodes},
		{"skins", w.writeSkins},
		{"scenes", w.writeScenes},
		{"animations", w.writeAnimations},
	}
	for _, step := range steps {
		if err := step.fn(); err != nil {
			return errors.Wrapf(err, "Failed to write %s", step.name)
		}
	}

	for _, codec := range Codecs() {
		if err := codec.Write(w.wc); err != nil {
			return errors.Wrapf(err, "Failed to write extension %q", codec.Name())
		}
	}

	if len(target.Buffers) != 0 {
		buf := target.Buffers[0]
		buf.Data = pad4(buf.Data)
		buf.ByteLength = uint32(len(buf.Data))
	}
	return nil
}

// indexProperties assigns output indices up front so references can be written in any order.
func (w *writer) indexProperties() {
	for i, n := range w.root.ListNodes() {
		w.wc.NodeIndex[n] = uint32(i)
	}
	for i, m := range w.root.ListMeshes() {
		w.wc.MeshIndex[m] = uint32(i)
	}
	for i, m := range w.root.ListMaterials() {
		w.wc.MaterialIndex[m] = uint32(i)
	}
	for i, s := range w.root.ListSkins() {
		w.skinIndex[s] = uint32(i)
	}
	for i, c := range w.root.ListCameras() {
		w.cameraIndex[c] = uint32(i)
	}
}

// extensions converts the passthrough extensions of b and declares them as used.
func (w *writer) extensions(b *graph.Base) gltf.Extensions {
	if len(b.RawExtensions) == 0 {
		return nil
	}
	ext := make(gltf.Extensions, len(b.RawExtensions))
	for name, raw := range b.RawExtensions {
		ext[name] = raw
		w.wc.Use(name, false)
	}
	return ext
}

func extras(m map[string]interface{}) interface{} {
	if len(m) == 0 {
		return nil
	}
	return m
}

func pad4(data []byte) []byte {
	for len(data)%4 != 0 {
		data = append(data, 0)
	}
	return data
}

func (w *writer) buffer() *gltf.Buffer {
	if len(w.wc.Target.Buffers) == 0 {
		w.wc.Target.Buffers = append(w.wc.Target.Buffers, &gltf.Buffer{})
	}
	return w.wc.Target.Buffers[0]
}

// appendView appends data to the buffer as a new 4-byte aligned view.
func (w *writer) appendView(data []byte, stride int, target gltf.Target) uint32 {
	buf := w.buffer()
	buf.Data = pad4(buf.Data)
	view := &gltf.BufferView{
		Buffer:     0,
		ByteOffset: uint32(len(buf.Data)),
		ByteLength: uint32(len(data)),
		ByteStride: uint32(stride),
		Target:     target,
	}
	buf.Data = append(buf.Data, data...)
	buf.ByteLength = uint32(len(buf.Data))
	w.wc.Target.BufferViews = append(w.wc.Target.BufferViews, view)
	return uint32(len(w.wc.Target.BufferViews) - 1)
}

func (w *writer) writeImages() error {
	target := w.wc.Target
	for _, tex := range w.root.ListTextures() {
		var index uint32
		switch {
		case len(tex.Image) != 0:
			w.buffer().Data = pad4(w.buffer().Data)
			var err error
			index, err = modeler.WriteImage(target, tex.Name, tex.MimeType, bytes.NewReader(tex.Image))
			if err != nil {
				return errors.Wrapf(err, "Failed to write image %q", tex.Label())
			}
		case tex.URI != "":
			target.Images = append(target.Images, &gltf.Image{Name: tex.Name, URI: tex.URI, MimeType: tex.MimeType})
			index = uint32(len(target.Images) - 1)
		default:
			w.wc.Logger.Warn("Skipping texture without image data", zap.String("texture", tex.Label()))
			continue
		}
		img := target.Images[index]
		img.Extensions = w.extensions(&tex.Base)
		img.Extras = extras(tex.Extras)
		w.wc.ImageIndex[tex] = index
	}
	return nil
}

func (w *writer) collectUsage() {
	w.usage = make(map[*scene.Accessor]*accessorUsage)
	use := func(a *scene.Accessor) *accessorUsage {
		u, ok := w.usage[a]
		if !ok {
			u = &accessorUsage{}
			w.usage[a] = u
		}
		return u
	}
	for _, mesh := range w.root.ListMeshes() {
		for _, prim := range mesh.Primitives() {
			if idx := prim.Indices(); idx != nil {
				use(idx).index = true
			}
			for _, semantic := range prim.Semantics() {
				u := use(prim.Attribute(semantic))
				u.vertex = true
				u.position = u.position || semantic == "POSITION"
				u.joints = u.joints || strings.HasPrefix(semantic, "JOINTS_")
			}
			for _, t := range prim.Targets() {
				for _, semantic := range t.Semantics() {
					u := use(t.Attribute(semantic))
					u.vertex = true
					u.position = u.position || semantic == "POSITION"
				}
			}
		}
	}
}

// outputComponent widens non-normalized integer accessors whose values no longer fit.
func outputComponent(a *scene.Accessor) scene.ComponentType {
	ct := a.ComponentType
	if ct == scene.ComponentFloat || a.Normalized {
		return ct
	}
	max := 0.0
	for _, v := range a.Array {
		if v > max {
			max = v
		}
	}
	for max > ct.MaxValue() {
		switch ct {
		case scene.ComponentByte, scene.ComponentUnsignedByte:
			ct = scene.ComponentUnsignedShort
		case scene.ComponentShort, scene.ComponentUnsignedShort:
			ct = scene.ComponentUnsignedInt
		default:
			return ct
		}
	}
	return ct
}

func (w *writer) planInterleave() {
	w.groups = make(map[*scene.Accessor]*interleaveGroup)
	if w.opts.Layout != LayoutInterleaved {
		return
	}
	g := w.wc.Doc.Graph()
	for _, mesh := range w.root.ListMeshes() {
		for _, prim := range mesh.Primitives() {
			group := &interleaveGroup{}
			count := -1
			for _, semantic := range prim.Semantics() {
				acc := prim.Attribute(semantic)
				if _, taken := w.groups[acc]; taken || containsAccessor(group.members, acc) {
					continue
				}
				// only accessors owned exclusively by this primitive's attribute set
				exclusive := true
				for _, e := range g.ListParentEdges(acc) {
					if e.Parent.Kind() == scene.KindRoot {
						continue
					}
					if e.Parent != graph.Property(prim) {
						exclusive = false
						break
					}
				}
				if !exclusive || (count >= 0 && acc.Count() != count) {
					continue
				}
				count = acc.Count()
				group.members = append(group.members, acc)
			}
			if len(group.members) < 2 {
				continue
			}
			offset := 0
			for _, acc := range group.members {
				group.offsets = append(group.offsets, offset)
				offset += align4(newElementLayout(acc.Type, outputComponent(acc)).byteSize())
			}
			group.stride = offset
			for _, acc := range group.members {
				w.groups[acc] = group
			}
		}
	}
}

func containsAccessor(list []*scene.Accessor, a *scene.Accessor) bool {
	for _, v := range list {
		if v == a {
			return true
		}
	}
	return false
}

func (w *writer) writeGroup(group *interleaveGroup) uint32 {
	count := group.members[0].Count()
	data := make([]byte, count*group.stride)
	element := make([]float64, 16)
	for k, acc := range group.members {
		ct := outputComponent(acc)
		layout := newElementLayout(acc.Type, ct)
		for i := 0; i < count; i++ {
			element = acc.Element(i, element)
			encodeElement(data[i*group.stride+group.offsets[k]:], element, layout, ct, acc.Normalized)
		}
	}
	view := w.appendView(data, group.stride, gltf.TargetArrayBuffer)
	group.view = &view
	return view
}

func (w *writer) writeAccessors() error {
	w.collectUsage()
	w.planInterleave()

	target := w.wc.Target
	element := make([]float64, 16)
	for i, acc := range w.root.ListAccessors() {
		if acc.ElementSize() == 0 || len(acc.Array)%acc.ElementSize() != 0 {
			return errors.Errorf("Accessor %d %q has %d values for type %s", i, acc.Name, len(acc.Array), acc.Type)
		}
		ct := outputComponent(acc)
		layout := newElementLayout(acc.Type, ct)
		out := &gltf.Accessor{
			Name:          acc.Name,
			ComponentType: componentTypeToGLTF(ct),
			Normalized:    acc.Normalized,
			Count:         uint32(acc.Count()),
			Type:          accessorTypeToGLTF(acc.Type),
			Extensions:    w.extensions(&acc.Base),
			Extras:        extras(acc.Extras),
		}
		u := w.usage[acc]
		if u == nil {
			u = &accessorUsage{}
		}

		if group, ok := w.groups[acc]; ok {
			view := group.view
			if view == nil {
				v := w.writeGroup(group)
				view = &v
			}
			out.BufferView = gltf.Index(*view)
			for k, member := range group.members {
				if member == acc {
					out.ByteOffset = uint32(group.offsets[k])
				}
			}
		} else if acc.Count() != 0 {
			stride := layout.byteSize()
			viewStride := 0
			bufTarget := gltf.TargetNone
			if u.vertex {
				bufTarget = gltf.TargetArrayBuffer
				if aligned := align4(stride); aligned != stride {
					stride, viewStride = aligned, aligned
				}
			} else if u.index {
				bufTarget = gltf.TargetElementArrayBuffer
			}
			data := make([]byte, acc.Count()*stride)
			for e := 0; e < acc.Count(); e++ {
				element = acc.Element(e, element)
				encodeElement(data[e*stride:], element, layout, ct, acc.Normalized)
			}
			out.BufferView = gltf.Index(w.appendView(data, viewStride, bufTarget))
		}

		if u.position && acc.Count() != 0 {
			min, max := acc.MinMax()
			out.Min = toFloat32(min)
			out.Max = toFloat32(max)
		}
		target.Accessors = append(target.Accessors, out)
		w.accessorIndex[acc] = uint32(i)
	}
	return nil
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i := range v {
		out[i] = float32(v[i])
	}
	return out
}

func (w *writer) accessorRef(a *scene.Accessor) *uint32 {
	if a == nil {
		return nil
	}
	if i, ok := w.accessorIndex[a]; ok {
		return gltf.Index(i)
	}
	return nil
}

func (w *writer) textureInfo(owner *graph.Base, slot scene.TextureSlot) *gltf.TextureInfo {
	ti := w.wc.WriteTextureInfo(owner, slot.Name)
	if ti == nil {
		return nil
	}
	return &gltf.TextureInfo{
		Index:      ti.Index,
		TexCoord:   ti.TexCoord,
		Extensions: rawToExtensions(ti.Extensions),
		Extras:     extras(ti.Extras),
	}
}

func rawToExtensions(raw map[string]json.RawMessage) gltf.Extensions {
	if len(raw) == 0 {
		return nil
	}
	ext := make(gltf.Extensions, len(raw))
	for k, v := range raw {
		ext[k] = v
	}
	return ext
}

func (w *writer) writeMaterials() error {
	for _, mat := range w.root.ListMaterials() {
		out := &gltf.Material{
			Name:           mat.Name,
			Extensions:     w.extensions(&mat.Base),
			Extras:         extras(mat.Extras),
			EmissiveFactor: [3]float32(mat.EmissiveFactor),
			DoubleSided:    mat.DoubleSided,
		}
		switch mat.AlphaMode {
		case scene.AlphaMask:
			out.AlphaMode = gltf.AlphaMask
			cutoff := mat.AlphaCutoff
			out.AlphaCutoff = &cutoff
		case scene.AlphaBlend:
			out.AlphaMode = gltf.AlphaBlend
		default:
			out.AlphaMode = gltf.AlphaOpaque
		}

		baseColor := [4]float32(mat.BaseColorFactor)
		metallic, roughness := mat.MetallicFactor, mat.RoughnessFactor
		out.PBRMetallicRoughness = &gltf.PBRMetallicRoughness{
			BaseColorFactor:          &baseColor,
			MetallicFactor:           &metallic,
			RoughnessFactor:          &roughness,
			BaseColorTexture:         w.textureInfo(&mat.Base, scene.SlotBaseColor),
			MetallicRoughnessTexture: w.textureInfo(&mat.Base, scene.SlotMetallicRoughness),
		}
		out.EmissiveTexture = w.textureInfo(&mat.Base, scene.SlotEmissive)
		if ti := w.textureInfo(&mat.Base, scene.SlotNormal); ti != nil {
			scale := mat.NormalScale
			out.NormalTexture = &gltf.NormalTexture{
				Index:      gltf.Index(ti.Index),
				TexCoord:   ti.TexCoord,
				Scale:      &scale,
				Extensions: ti.Extensions,
				Extras:     ti.Extras,
			}
		}
		if ti := w.textureInfo(&mat.Base, scene.SlotOcclusion); ti != nil {
			strength := mat.OcclusionStrength
			out.OcclusionTexture = &gltf.OcclusionTexture{
				Index:      gltf.Index(ti.Index),
				TexCoord:   ti.TexCoord,
				Strength:   &strength,
				Extensions: ti.Extensions,
				Extras:     ti.Extras,
			}
		}
		w.wc.Target.Materials = append(w.wc.Target.Materials, out)
	}
	return nil
}

func (w *writer) attributes(set interface {
	Semantics() []string
	Attribute(string) *scene.Accessor
}) gltf.Attribute {
	attrs := make(gltf.Attribute)
	for _, semantic := range set.Semantics() {
		if ref := w.accessorRef(set.Attribute(semantic)); ref != nil {
			attrs[semantic] = *ref
		}
	}
	return attrs
}

func (w *writer) writeMeshes() error {
	for _, mesh := range w.root.ListMeshes() {
		out := &gltf.Mesh{
			Name:       mesh.Name,
			Extensions: w.extensions(&mesh.Base),
			Extras:     extras(mesh.Extras),
			Weights:    mesh.Weights,
		}
		for _, prim := range mesh.Primitives() {
			p := &gltf.Primitive{
				Attributes: w.attributes(prim),
				Indices:    w.accessorRef(prim.Indices()),
				Mode:       primitiveModeToGLTF(prim.Mode),
				Extensions: w.extensions(&prim.Base),
				Extras:     extras(prim.Extras),
			}
			if i, ok := w.wc.Material(prim.Material()); ok {
				p.Material = gltf.Index(i)
			}
			for _, t := range prim.Targets() {
				p.Targets = append(p.Targets, w.attributes(t))
			}
			out.Primitives = append(out.Primitives, p)
		}
		w.wc.Target.Meshes = append(w.wc.Target.Meshes, out)
	}
	return nil
}

func (w *writer) writeCameras() error {
	for _, cam := range w.root.ListCameras() {
		out := &gltf.Camera{}
		if len(cam.Data) != 0 {
			if err := json.Unmarshal(cam.Data, out); err != nil {
				return errors.Wrapf(err, "Failed to unmarshal camera %q", cam.Name)
			}
		}
		out.Name = cam.Name
		out.Extensions = w.extensions(&cam.Base)
		out.Extras = extras(cam.Extras)
		w.wc.Target.Cameras = append(w.wc.Target.Cameras, out)
	}
	return nil
}

func (w *writer) writeNodes() error {
	for _, n := range w.root.ListNodes() {
		out := &gltf.Node{
			Name:        n.Name,
			Extensions:  w.extensions(&n.Base),
			Extras:      extras(n.Extras),
			Matrix:      gltf.DefaultMatrix,
			Translation: [3]float32(n.Translation),
			Rotation:    [4]float32{n.Rotation.V[0], n.Rotation.V[1], n.Rotation.V[2], n.Rotation.W},
			Scale:       [3]float32(n.Scale),
			Weights:     n.Weights,
		}
		if i, ok := w.wc.MeshIndex[n.Mesh()]; ok {
			out.Mesh = gltf.Index(i)
		}
		if s := n.Skin(); s != nil {
			if i, ok := w.skinIndex[s]; ok {
				out.Skin = gltf.Index(i)
			}
		}
		if c := n.Camera(); c != nil {
			if i, ok := w.cameraIndex[c]; ok {
				out.Camera = gltf.Index(i)
			}
		}
		for _, child := range n.Children() {
			if i, ok := w.wc.Node(child); ok {
				out.Children = append(out.Children, i)
			}
		}
		w.wc.Target.Nodes = append(w.wc.Target.Nodes, out)
	}
	return nil
}

func (w *writer) writeSkins() error {
	for _, skin := range w.root.ListSkins() {
		out := &gltf.Skin{
			Name:                skin.Name,
			Extensions:          w.extensions(&skin.Base),
			Extras:              extras(skin.Extras),
			InverseBindMatrices: w.accessorRef(skin.InverseBindMatrices()),
		}
		if i, ok := w.wc.Node(skin.Skeleton()); ok {
			out.Skeleton = gltf.Index(i)
		}
		for _, j := range skin.Joints() {
			i, ok := w.wc.Node(j)
			if !ok {
				return errors.Errorf("Skin %q joint %q is not a document node", skin.Name, j.Name)
			}
			out.Joints = append(out.Joints, i)
		}
		w.wc.Target.Skins = append(w.wc.Target.Skins, out)
	}
	return nil
}

func (w *writer) writeScenes() error {
	target := w.wc.Target
	def := w.root.DefaultScene()
	for i, sc := range w.root.ListScenes() {
		out := &gltf.Scene{
			Name:       sc.Name,
			Extensions: w.extensions(&sc.Base),
			Extras:     extras(sc.Extras),
		}
		for _, n := range sc.Children() {
			if idx, ok := w.wc.Node(n); ok {
				out.Nodes = append(out.Nodes, idx)
			}
		}
		if sc == def {
			target.Scene = gltf.Index(uint32(i))
		}
		target.Scenes = append(target.Scenes, out)
	}
	return nil
}

func (w *writer) writeAnimations() error {
	for _, anim := range w.root.ListAnimations() {
		out := &gltf.Animation{
			Name:       anim.Name,
			Extensions: w.extensions(&anim.Base),
			Extras:     extras(anim.Extras),
		}
		samplerIndex := make(map[*scene.AnimationSampler]uint32)
		for i, s := range anim.Samplers() {
			out.Samplers = append(out.Samplers, &gltf.AnimationSampler{
				Input:         w.accessorRef(s.Input()),
				Output:        w.accessorRef(s.Output()),
				Interpolation: interpolationToGLTF(s.Interpolation),
			})
			samplerIndex[s] = uint32(i)
		}
		for _, c := range anim.Channels() {
			node, ok := w.wc.Node(c.TargetNode())
			if !ok {
				continue
			}
			channel := &gltf.Channel{
				Target: gltf.ChannelTarget{Node: gltf.Index(node), Path: pathToGLTF(c.TargetPath)},
			}
			if i, ok := samplerIndex[c.Sampler()]; ok {
				channel.Sampler = gltf.Index(i)
			}
			out.Channels = append(out.Channels, channel)
		}
		w.wc.Target.Animations = append(w.wc.Target.Animations, out)
	}
	return nil
}
