package scene

import (
	"bytes"
	"image"
	"sort"
	"strings"

	"github.com/mogaika/vrm_transform/graph"
)

// Channel is a bit mask of the texture channels a slot reads.
type Channel uint8

const (
	ChannelR Channel = 1 << iota
	ChannelG
	ChannelB
	ChannelA
)

const (
	AttrIsColor  = "isColor"
	AttrChannels = "channels"

	infoSuffix = "Info"
)

// TextureSlot describes a texture reference of a material or extension.
type TextureSlot struct {
	Name     string
	IsColor  bool
	Channels Channel
}

type Texture struct {
	graph.Base
	Image    []byte
	MimeType string
	URI      string
}

func (t *Texture) Kind() graph.Kind { return KindTexture }

// Size decodes only the image header. Formats without a registered decoder report ok=false.
func (t *Texture) Size() (width, height int, ok bool) {
	if len(t.Image) == 0 {
		return 0, 0, false
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(t.Image))
	if err != nil {
		return 0, 0, false
	}
	return cfg.Width, cfg.Height, true
}

// Label names the texture in logs.
func (t *Texture) Label() string {
	if t.Name != "" {
		return t.Name
	}
	return t.URI
}

// TextureInfo holds the per-reference sampling state of a texture slot.
type TextureInfo struct {
	graph.Base
	TexCoord  int
	MagFilter int
	MinFilter int
	WrapS     int
	WrapT     int
}

func (ti *TextureInfo) Kind() graph.Kind { return KindTextureInfo }

func SlotTexture(owner *graph.Base, slot string) *Texture {
	return graph.RefAs[*Texture](owner, slot)
}

func SlotInfo(owner *graph.Base, slot string) *TextureInfo {
	return graph.RefAs[*TextureInfo](owner, slot+infoSuffix)
}

// SetSlotTexture points slot at t, creating the slot's TextureInfo on first use.
func SetSlotTexture(owner *graph.Base, slot TextureSlot, t *Texture) *TextureInfo {
	owner.SetRef(slot.Name, t, map[string]interface{}{
		AttrIsColor:  slot.IsColor,
		AttrChannels: slot.Channels,
	})
	info := SlotInfo(owner, slot.Name)
	if info == nil && t != nil {
		info = &TextureInfo{}
		owner.SetRef(slot.Name+infoSuffix, info, nil)
	}
	return info
}

// TextureColorSpace reports "srgb" when any reference reads t as colour data.
func TextureColorSpace(t *Texture) string {
	for _, e := range t.Graph().ListParentEdges(t) {
		if e.BoolAttr(AttrIsColor) {
			return "srgb"
		}
	}
	return "linear"
}

// ListTextureSlots returns the distinct slot names t is used in.
func ListTextureSlots(t *Texture) []string {
	seen := make(map[string]bool)
	for _, e := range t.Graph().ListParentEdges(t) {
		if e.Parent.Kind() == KindRoot {
			continue
		}
		seen[e.Name] = true
	}
	slots := make([]string, 0, len(seen))
	for s := range seen {
		slots = append(slots, s)
	}
	sort.Strings(slots)
	return slots
}

// ListTextureInfos returns texture infos of p and of its extensions whose
// slot currently has a texture attached.
func ListTextureInfos(p graph.Property) []*TextureInfo {
	result := make([]*TextureInfo, 0)
	collectTextureInfos(p, &result, make(map[graph.Property]bool))
	return result
}

func collectTextureInfos(p graph.Property, out *[]*TextureInfo, visited map[graph.Property]bool) {
	if visited[p] {
		return
	}
	visited[p] = true
	edges := p.Graph().ListChildEdges(p)
	textures := make(map[string]bool)
	for _, e := range edges {
		if e.Child.Kind() == KindTexture {
			textures[e.Name] = true
		}
	}
	for _, e := range edges {
		switch child := e.Child.(type) {
		case *TextureInfo:
			if textures[strings.TrimSuffix(e.Name, infoSuffix)] {
				*out = append(*out, child)
			}
		default:
			if e.Name == graph.EdgeExtensions {
				collectTextureInfos(child, out, visited)
			}
		}
	}
}
