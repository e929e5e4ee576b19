package gltfutils

import (
	"encoding/json"
	"sync"

	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
	"go.uber.org/zap"

	"github.com/mogaika/vrm_transform/graph"
	"github.com/mogaika/vrm_transform/scene"
)

// ExtensionCodec moves one glTF extension between JSON and typed graph properties.
type ExtensionCodec interface {
	Name() string
	Read(rc *ReadContext) error
	Write(wc *WriteContext) error
}

var (
	codecs     []ExtensionCodec
	codecsLock sync.Mutex
)

func RegisterCodec(c ExtensionCodec) {
	codecsLock.Lock()
	defer codecsLock.Unlock()
	for i, existing := range codecs {
		if existing.Name() == c.Name() {
			codecs[i] = c
			return
		}
	}
	codecs = append(codecs, c)
}

func Codecs() []ExtensionCodec {
	codecsLock.Lock()
	defer codecsLock.Unlock()
	result := make([]ExtensionCodec, len(codecs))
	copy(result, codecs)
	return result
}

func isCodecExtension(name string) bool {
	for _, c := range Codecs() {
		if c.Name() == name {
			return true
		}
	}
	return false
}

// TextureInfo is the JSON form of a texture reference inside extensions.
type TextureInfo struct {
	Index      uint32                     `json:"index"`
	TexCoord   uint32                     `json:"texCoord,omitempty"`
	Scale      *float32                   `json:"scale,omitempty"`
	Extensions map[string]json.RawMessage `json:"extensions,omitempty"`
	Extras     map[string]interface{}     `json:"extras,omitempty"`
}

// DecodeExtension unmarshals ext[name] into v whatever form the decoder left it in.
func DecodeExtension(ext gltf.Extensions, name string, v interface{}) (bool, error) {
	raw, ok := ext[name]
	if !ok || raw == nil {
		return false, nil
	}
	var data []byte
	switch value := raw.(type) {
	case json.RawMessage:
		data = value
	case []byte:
		data = value
	default:
		var err error
		if data, err = json.Marshal(value); err != nil {
			return false, errors.Wrapf(err, "Failed to marshal extension %q", name)
		}
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, errors.Wrapf(err, "Failed to unmarshal extension %q", name)
	}
	return true, nil
}

type ReadContext struct {
	Doc    *scene.Document
	Source *gltf.Document
	Logger *zap.Logger

	Nodes     []*scene.Node
	Meshes    []*scene.Mesh
	Materials []*scene.Material
	Accessors []*scene.Accessor
	// Textures is indexed by glTF texture, Images by glTF image.
	Textures []*scene.Texture
	Images   []*scene.Texture
}

func (rc *ReadContext) Node(i uint32) *scene.Node {
	if int(i) < len(rc.Nodes) {
		return rc.Nodes[i]
	}
	rc.Logger.Warn("Extension references missing node", zap.Uint32("node", i))
	return nil
}

func (rc *ReadContext) Material(i uint32) *scene.Material {
	if int(i) < len(rc.Materials) {
		return rc.Materials[i]
	}
	rc.Logger.Warn("Extension references missing material", zap.Uint32("material", i))
	return nil
}

func (rc *ReadContext) Image(i uint32) *scene.Texture {
	if int(i) < len(rc.Images) {
		return rc.Images[i]
	}
	rc.Logger.Warn("Extension references missing image", zap.Uint32("image", i))
	return nil
}

// ReadTextureInfo attaches the texture referenced by info to slot on owner.
func (rc *ReadContext) ReadTextureInfo(owner *graph.Base, slot scene.TextureSlot, info *TextureInfo) *scene.TextureInfo {
	if info == nil || int(info.Index) >= len(rc.Textures) || rc.Textures[info.Index] == nil {
		return nil
	}
	ti := scene.SetSlotTexture(owner, slot, rc.Textures[info.Index])
	ti.TexCoord = int(info.TexCoord)
	ti.Extras = info.Extras
	ti.RawExtensions = info.Extensions
	applySampler(rc.Source, rc.Source.Textures[info.Index], ti)
	return ti
}

type WriteContext struct {
	Doc    *scene.Document
	Target *gltf.Document
	Logger *zap.Logger

	NodeIndex     map[*scene.Node]uint32
	MeshIndex     map[*scene.Mesh]uint32
	MaterialIndex map[*scene.Material]uint32
	ImageIndex    map[*scene.Texture]uint32

	textureIndex map[textureKey]uint32
	samplerIndex map[samplerKey]uint32
}

type samplerKey struct {
	mag, min, wrapS, wrapT int
}

type textureKey struct {
	texture *scene.Texture
	sampler samplerKey
}

func (wc *WriteContext) Node(n *scene.Node) (uint32, bool) {
	if n == nil {
		return 0, false
	}
	i, ok := wc.NodeIndex[n]
	return i, ok
}

func (wc *WriteContext) Material(m *scene.Material) (uint32, bool) {
	if m == nil {
		return 0, false
	}
	i, ok := wc.MaterialIndex[m]
	return i, ok
}

func (wc *WriteContext) Image(t *scene.Texture) (uint32, bool) {
	if t == nil {
		return 0, false
	}
	i, ok := wc.ImageIndex[t]
	return i, ok
}

// Use declares an extension in extensionsUsed and, when required, extensionsRequired.
func (wc *WriteContext) Use(name string, required bool) {
	if !contains(wc.Target.ExtensionsUsed, name) {
		wc.Target.ExtensionsUsed = append(wc.Target.ExtensionsUsed, name)
	}
	if required && !contains(wc.Target.ExtensionsRequired, name) {
		wc.Target.ExtensionsRequired = append(wc.Target.ExtensionsRequired, name)
	}
}

// WriteTextureInfo returns the JSON reference for slot on owner, nil when nothing is attached.
func (wc *WriteContext) WriteTextureInfo(owner *graph.Base, slot string) *TextureInfo {
	tex := scene.SlotTexture(owner, slot)
	if tex == nil {
		return nil
	}
	info := scene.SlotInfo(owner, slot)
	index, ok := wc.TextureIndex(tex, info)
	if !ok {
		return nil
	}
	out := &TextureInfo{Index: index}
	if info != nil {
		out.TexCoord = uint32(info.TexCoord)
		out.Extensions = info.RawExtensions
		out.Extras = info.Extras
		for name := range info.RawExtensions {
			wc.Use(name, false)
		}
	}
	return out
}

// TextureIndex returns the glTF texture for tex sampled as described by info.
func (wc *WriteContext) TextureIndex(tex *scene.Texture, info *scene.TextureInfo) (uint32, bool) {
	image, ok := wc.ImageIndex[tex]
	if !ok {
		return 0, false
	}
	key := textureKey{texture: tex}
	if info != nil {
		key.sampler = samplerKey{info.MagFilter, info.MinFilter, info.WrapS, info.WrapT}
	}
	if index, ok := wc.textureIndex[key]; ok {
		return index, true
	}

	gt := &gltf.Texture{}
	if tex.MimeType == MimeKTX2 {
		gt.Extensions = gltf.Extensions{extTextureBasisu: map[string]uint32{"source": image}}
		wc.Use(extTextureBasisu, true)
	} else {
		gt.Source = gltf.Index(image)
	}
	if sampler, ok := wc.sampler(key.sampler); ok {
		gt.Sampler = gltf.Index(sampler)
	}
	index := uint32(len(wc.Target.Textures))
	wc.Target.Textures = append(wc.Target.Textures, gt)
	wc.textureIndex[key] = index
	return index, true
}

func (wc *WriteContext) sampler(key samplerKey) (uint32, bool) {
	if key == (samplerKey{}) || key == (samplerKey{wrapS: wrapRepeat, wrapT: wrapRepeat}) {
		return 0, false
	}
	if index, ok := wc.samplerIndex[key]; ok {
		return index, true
	}
	s := &gltf.Sampler{
		MagFilter: magFilterToGLTF(key.mag),
		MinFilter: minFilterToGLTF(key.min),
		WrapS:     wrapToGLTF(key.wrapS),
		WrapT:     wrapToGLTF(key.wrapT),
	}
	index := uint32(len(wc.Target.Samplers))
	wc.Target.Samplers = append(wc.Target.Samplers, s)
	wc.samplerIndex[key] = index
	return index, true
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
