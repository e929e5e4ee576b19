package vrm

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/mogaika/vrm_transform/graph"
	"github.com/mogaika/vrm_transform/scene"
	"github.com/mogaika/vrm_transform/utils/gltfutils"
)

const KindMToon graph.Kind = ExtMaterialsMToon

// MToon texture slots.
var (
	SlotShadeMultiply        = scene.TextureSlot{Name: "shadeMultiplyTexture", IsColor: true, Channels: scene.ChannelR | scene.ChannelG | scene.ChannelB}
	SlotShadingShift         = scene.TextureSlot{Name: "shadingShiftTexture", Channels: scene.ChannelR}
	SlotMatcap               = scene.TextureSlot{Name: "matcapTexture", IsColor: true, Channels: scene.ChannelR | scene.ChannelG | scene.ChannelB}
	SlotRimMultiply          = scene.TextureSlot{Name: "rimMultiplyTexture", IsColor: true, Channels: scene.ChannelR | scene.ChannelG | scene.ChannelB}
	SlotOutlineWidthMultiply = scene.TextureSlot{Name: "outlineWidthMultiplyTexture", Channels: scene.ChannelG}
	SlotUvAnimationMask      = scene.TextureSlot{Name: "uvAnimationMaskTexture", Channels: scene.ChannelB}

	MToonSlots = []scene.TextureSlot{
		SlotShadeMultiply,
		SlotShadingShift,
		SlotMatcap,
		SlotRimMultiply,
		SlotOutlineWidthMultiply,
		SlotUvAnimationMask,
	}
)

type OutlineWidthMode string

const (
	OutlineNone              OutlineWidthMode = "none"
	OutlineWorldCoordinates  OutlineWidthMode = "worldCoordinates"
	OutlineScreenCoordinates OutlineWidthMode = "screenCoordinates"
)

type MToon struct {
	graph.Base
	SpecVersion                     string
	TransparentWithZWrite           bool
	RenderQueueOffsetNumber         int
	ShadeColorFactor                mgl32.Vec3
	ShadingShiftFactor              float32
	ShadingShiftTextureScale        float32
	ShadingToonyFactor              float32
	GiEqualizationFactor            float32
	MatcapFactor                    mgl32.Vec3
	ParametricRimColorFactor        mgl32.Vec3
	RimLightingMixFactor            float32
	ParametricRimFresnelPowerFactor float32
	ParametricRimLiftFactor         float32
	OutlineWidthMode                OutlineWidthMode
	OutlineWidthFactor              float32
	OutlineColorFactor              mgl32.Vec3
	OutlineLightingMixFactor        float32
	UvAnimationScrollXSpeedFactor   float32
	UvAnimationScrollYSpeedFactor   float32
	UvAnimationRotationSpeedFactor  float32
}

func (m *MToon) Kind() graph.Kind { return KindMToon }

func NewMToon(doc *scene.Document) *MToon {
	m := &MToon{
		SpecVersion:                     SpecVersion,
		ShadeColorFactor:                mgl32.Vec3{1, 1, 1},
		ShadingShiftTextureScale:        1,
		ShadingToonyFactor:              0.9,
		GiEqualizationFactor:            0.9,
		MatcapFactor:                    mgl32.Vec3{1, 1, 1},
		RimLightingMixFactor:            1,
		ParametricRimFresnelPowerFactor: 5,
		OutlineWidthMode:                OutlineNone,
		OutlineLightingMixFactor:        1,
	}
	doc.Add(m)
	return m
}

func GetMToon(m *scene.Material) *MToon {
	return graph.ExtensionAs[*MToon](&m.Base, ExtMaterialsMToon)
}

func SetMToon(m *scene.Material, mt *MToon) {
	m.SetExtension(ExtMaterialsMToon, mt)
}

func (m *MToon) Texture(slot scene.TextureSlot) *scene.Texture {
	return scene.SlotTexture(&m.Base, slot.Name)
}

func (m *MToon) TextureInfo(slot scene.TextureSlot) *scene.TextureInfo {
	return scene.SlotInfo(&m.Base, slot.Name)
}

func (m *MToon) SetTexture(slot scene.TextureSlot, t *scene.Texture) *scene.TextureInfo {
	return scene.SetSlotTexture(&m.Base, slot, t)
}

type mtoonDef struct {
	SpecVersion                     string                 `json:"specVersion"`
	TransparentWithZWrite           *bool                  `json:"transparentWithZWrite,omitempty"`
	RenderQueueOffsetNumber         *int                   `json:"renderQueueOffsetNumber,omitempty"`
	ShadeColorFactor                *[3]float32            `json:"shadeColorFactor,omitempty"`
	ShadeMultiplyTexture            *gltfutils.TextureInfo `json:"shadeMultiplyTexture,omitempty"`
	ShadingShiftFactor              *float32               `json:"shadingShiftFactor,omitempty"`
	ShadingShiftTexture             *gltfutils.TextureInfo `json:"shadingShiftTexture,omitempty"`
	ShadingToonyFactor              *float32               `json:"shadingToonyFactor,omitempty"`
	GiEqualizationFactor            *float32               `json:"giEqualizationFactor,omitempty"`
	MatcapFactor                    *[3]float32            `json:"matcapFactor,omitempty"`
	MatcapTexture                   *gltfutils.TextureInfo `json:"matcapTexture,omitempty"`
	ParametricRimColorFactor        *[3]float32            `json:"parametricRimColorFactor,omitempty"`
	RimMultiplyTexture              *gltfutils.TextureInfo `json:"rimMultiplyTexture,omitempty"`
	RimLightingMixFactor            *float32               `json:"rimLightingMixFactor,omitempty"`
	ParametricRimFresnelPowerFactor *float32               `json:"parametricRimFresnelPowerFactor,omitempty"`
	ParametricRimLiftFactor         *float32               `json:"parametricRimLiftFactor,omitempty"`
	OutlineWidthMode                OutlineWidthMode       `json:"outlineWidthMode,omitempty"`
	OutlineWidthFactor              *float32               `json:"outlineWidthFactor,omitempty"`
	OutlineWidthMultiplyTexture     *gltfutils.TextureInfo `json:"outlineWidthMultiplyTexture,omitempty"`
	OutlineColorFactor              *[3]float32            `json:"outlineColorFactor,omitempty"`
	OutlineLightingMixFactor        *float32               `json:"outlineLightingMixFactor,omitempty"`
	UvAnimationMaskTexture          *gltfutils.TextureInfo `json:"uvAnimationMaskTexture,omitempty"`
	UvAnimationScrollXSpeedFactor   *float32               `json:"uvAnimationScrollXSpeedFactor,omitempty"`
	UvAnimationScrollYSpeedFactor   *float32               `json:"uvAnimationScrollYSpeedFactor,omitempty"`
	UvAnimationRotationSpeedFactor  *float32               `json:"uvAnimationRotationSpeedFactor,omitempty"`
}

func (d *mtoonDef) slot(name string) **gltfutils.TextureInfo {
	switch name {
	case SlotShadeMultiply.Name:
		return &d.ShadeMultiplyTexture
	case SlotShadingShift.Name:
		return &d.ShadingShiftTexture
	case SlotMatcap.Name:
		return &d.MatcapTexture
	case SlotRimMultiply.Name:
		return &d.RimMultiplyTexture
	case SlotOutlineWidthMultiply.Name:
		return &d.OutlineWidthMultiplyTexture
	case SlotUvAnimationMask.Name:
		return &d.UvAnimationMaskTexture
	}
	return nil
}

func setFloat(dst *float32, src *float32) {
	if src != nil {
		*dst = *src
	}
}

func setVec3(dst *mgl32.Vec3, src *[3]float32) {
	if src != nil {
		*dst = mgl32.Vec3(*src)
	}
}

func f32(v float32) *float32 { return &v }

func vec3(v mgl32.Vec3) *[3]float32 {
	a := [3]float32(v)
	return &a
}

type mtoonCodec struct{}

func (mtoonCodec) Name() string { return ExtMaterialsMToon }

func (mtoonCodec) Read(rc *gltfutils.ReadContext) error {
	for i, src := range rc.Source.Materials {
		def, err := decode[mtoonDef](src.Extensions, ExtMaterialsMToon)
		if err != nil {
			return errors.Wrapf(err, "Material %d", i)
		}
		if def == nil {
			continue
		}
		m := NewMToon(rc.Doc)
		m.SpecVersion = def.SpecVersion
		if def.TransparentWithZWrite != nil {
			m.TransparentWithZWrite = *def.TransparentWithZWrite
		}
		if def.RenderQueueOffsetNumber != nil {
			m.RenderQueueOffsetNumber = *def.RenderQueueOffsetNumber
		}
		setVec3(&m.ShadeColorFactor, def.ShadeColorFactor)
		setFloat(&m.ShadingShiftFactor, def.ShadingShiftFactor)
		setFloat(&m.ShadingToonyFactor, def.ShadingToonyFactor)
		setFloat(&m.GiEqualizationFactor, def.GiEqualizationFactor)
		setVec3(&m.MatcapFactor, def.MatcapFactor)
		setVec3(&m.ParametricRimColorFactor, def.ParametricRimColorFactor)
		setFloat(&m.RimLightingMixFactor, def.RimLightingMixFactor)
		setFloat(&m.ParametricRimFresnelPowerFactor, def.ParametricRimFresnelPowerFactor)
		setFloat(&m.ParametricRimLiftFactor, def.ParametricRimLiftFactor)
		if def.OutlineWidthMode != "" {
			m.OutlineWidthMode = def.OutlineWidthMode
		}
		setFloat(&m.OutlineWidthFactor, def.OutlineWidthFactor)
		setVec3(&m.OutlineColorFactor, def.OutlineColorFactor)
		setFloat(&m.OutlineLightingMixFactor, def.OutlineLightingMixFactor)
		setFloat(&m.UvAnimationScrollXSpeedFactor, def.UvAnimationScrollXSpeedFactor)
		setFloat(&m.UvAnimationScrollYSpeedFactor, def.UvAnimationScrollYSpeedFactor)
		setFloat(&m.UvAnimationRotationSpeedFactor, def.UvAnimationRotationSpeedFactor)

		for _, slot := range MToonSlots {
			info := *def.slot(slot.Name)
			rc.ReadTextureInfo(&m.Base, slot, info)
		}
		if def.ShadingShiftTexture != nil {
			setFloat(&m.ShadingShiftTextureScale, def.ShadingShiftTexture.Scale)
		}
		SetMToon(rc.Materials[i], m)
	}
	return nil
}

func (mtoonCodec) Write(wc *gltfutils.WriteContext) error {
	for _, mat := range wc.Doc.Root().ListMaterials() {
		m := GetMToon(mat)
		if m == nil {
			continue
		}
		def := &mtoonDef{
			SpecVersion:                     m.SpecVersion,
			TransparentWithZWrite:           &m.TransparentWithZWrite,
			RenderQueueOffsetNumber:         &m.RenderQueueOffsetNumber,
			ShadeColorFactor:                vec3(m.ShadeColorFactor),
			ShadingShiftFactor:              f32(m.ShadingShiftFactor),
			ShadingToonyFactor:              f32(m.ShadingToonyFactor),
			GiEqualizationFactor:            f32(m.GiEqualizationFactor),
			ParametricRimColorFactor:        vec3(m.ParametricRimColorFactor),
			RimLightingMixFactor:            f32(m.RimLightingMixFactor),
			ParametricRimFresnelPowerFactor: f32(m.ParametricRimFresnelPowerFactor),
			ParametricRimLiftFactor:         f32(m.ParametricRimLiftFactor),
			OutlineWidthMode:                m.OutlineWidthMode,
			OutlineWidthFactor:              f32(m.OutlineWidthFactor),
			OutlineColorFactor:              vec3(m.OutlineColorFactor),
			OutlineLightingMixFactor:        f32(m.OutlineLightingMixFactor),
			UvAnimationScrollXSpeedFactor:   f32(m.UvAnimationScrollXSpeedFactor),
			UvAnimationScrollYSpeedFactor:   f32(m.UvAnimationScrollYSpeedFactor),
			UvAnimationRotationSpeedFactor:  f32(m.UvAnimationRotationSpeedFactor),
		}
		for _, slot := range MToonSlots {
			*def.slot(slot.Name) = wc.WriteTextureInfo(&m.Base, slot.Name)
		}
		if def.ShadingShiftTexture != nil {
			def.ShadingShiftTexture.Scale = f32(m.ShadingShiftTextureScale)
		}
		// UniVRM reads a missing matcapFactor as black
		if def.MatcapTexture != nil {
			def.MatcapFactor = vec3(m.MatcapFactor)
		}

		index, ok := wc.Material(mat)
		if !ok {
			continue
		}
		target := wc.Target.Materials[index]
		setExtension(&target.Extensions, ExtMaterialsMToon, def)
		wc.Use(ExtMaterialsMToon, false)
	}
	return nil
}
