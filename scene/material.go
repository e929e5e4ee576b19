package scene

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/mogaika/vrm_transform/graph"
)

type AlphaMode string

const (
	AlphaOpaque AlphaMode = "OPAQUE"
	AlphaMask   AlphaMode = "MASK"
	AlphaBlend  AlphaMode = "BLEND"
)

// Core material texture slots.
var (
	SlotBaseColor         = TextureSlot{Name: "baseColorTexture", IsColor: true, Channels: ChannelR | ChannelG | ChannelB | ChannelA}
	SlotEmissive          = TextureSlot{Name: "emissiveTexture", IsColor: true, Channels: ChannelR | ChannelG | ChannelB}
	SlotNormal            = TextureSlot{Name: "normalTexture", Channels: ChannelR | ChannelG | ChannelB}
	SlotOcclusion         = TextureSlot{Name: "occlusionTexture", Channels: ChannelR}
	SlotMetallicRoughness = TextureSlot{Name: "metallicRoughnessTexture", Channels: ChannelG | ChannelB}

	MaterialSlots = []TextureSlot{SlotBaseColor, SlotEmissive, SlotNormal, SlotOcclusion, SlotMetallicRoughness}
)

type Material struct {
	graph.Base
	BaseColorFactor   mgl32.Vec4
	EmissiveFactor    mgl32.Vec3
	MetallicFactor    float32
	RoughnessFactor   float32
	NormalScale       float32
	OcclusionStrength float32
	AlphaMode         AlphaMode
	AlphaCutoff       float32
	DoubleSided       bool
}

func newMaterial() *Material {
	return &Material{
		BaseColorFactor:   mgl32.Vec4{1, 1, 1, 1},
		MetallicFactor:    1,
		RoughnessFactor:   1,
		NormalScale:       1,
		OcclusionStrength: 1,
		AlphaMode:         AlphaOpaque,
		AlphaCutoff:       0.5,
	}
}

func (m *Material) Kind() graph.Kind { return KindMaterial }

func (m *Material) Texture(slot TextureSlot) *Texture {
	return SlotTexture(&m.Base, slot.Name)
}

func (m *Material) TextureInfo(slot TextureSlot) *TextureInfo {
	return SlotInfo(&m.Base, slot.Name)
}

func (m *Material) SetTexture(slot TextureSlot, t *Texture) *TextureInfo {
	return SetSlotTexture(&m.Base, slot, t)
}
