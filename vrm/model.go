package vrm

import (
	"encoding/json"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/mogaika/vrm_transform/graph"
	"github.com/mogaika/vrm_transform/scene"
	"github.com/mogaika/vrm_transform/utils/gltfutils"
)

const (
	KindVrm                  graph.Kind = ExtVrm
	KindMeta                 graph.Kind = "VrmMeta"
	KindExpression           graph.Kind = "VrmExpression"
	KindMorphTargetBind      graph.Kind = "VrmExpressionMorphTargetBind"
	KindMaterialColorBind    graph.Kind = "VrmExpressionMaterialColorBind"
	KindTextureTransformBind graph.Kind = "VrmExpressionTextureTransformBind"
	KindMeshAnnotation       graph.Kind = "VrmMeshAnnotation"
)

const (
	edgeMeta                  = "meta"
	edgeHumanBones            = "humanBones"
	edgeExpressions           = "expressions"
	edgeMeshAnnotations       = "meshAnnotations"
	edgeThumbnail             = "thumbnailImage"
	edgeMorphTargetBinds      = "morphTargetBinds"
	edgeMaterialColorBinds    = "materialColorBinds"
	edgeTextureTransformBinds = "textureTransformBinds"
	edgeMaterial              = "material"
)

// Vrm is the VRMC_vrm root extension. Humanoid bones and expressions are keyed references.
type Vrm struct {
	graph.Base
	SpecVersion string
	// LookAt is kept as written; nothing edits it.
	LookAt         json.RawMessage
	HasFirstPerson bool
}

func (v *Vrm) Kind() graph.Kind { return KindVrm }

func NewVrm(doc *scene.Document) *Vrm {
	v := &Vrm{SpecVersion: SpecVersion}
	doc.Add(v)
	return v
}

func GetVrm(doc *scene.Document) *Vrm {
	return graph.ExtensionAs[*Vrm](&doc.Root().Base, ExtVrm)
}

func SetVrm(doc *scene.Document, v *Vrm) {
	doc.Root().SetExtension(ExtVrm, v)
}

func (v *Vrm) Meta() *Meta { return graph.RefAs[*Meta](&v.Base, edgeMeta) }

func (v *Vrm) SetMeta(m *Meta) { v.SetRef(edgeMeta, m, nil) }

func (v *Vrm) HumanBoneNames() []string { return v.RefMapKeys(edgeHumanBones) }

func (v *Vrm) HumanBone(name string) *scene.Node {
	n, _ := v.RefMapGet(edgeHumanBones, name).(*scene.Node)
	return n
}

func (v *Vrm) SetHumanBone(name string, n *scene.Node) { v.RefMapSet(edgeHumanBones, name, n) }

func (v *Vrm) ExpressionNames() []string { return v.RefMapKeys(edgeExpressions) }

func (v *Vrm) Expression(name string) *Expression {
	e, _ := v.RefMapGet(edgeExpressions, name).(*Expression)
	return e
}

func (v *Vrm) SetExpression(name string, e *Expression) { v.RefMapSet(edgeExpressions, name, e) }

func (v *Vrm) Expressions() []*Expression { return graph.As[*Expression](v.Refs(edgeExpressions)) }

func (v *Vrm) MeshAnnotations() []*MeshAnnotation {
	return graph.As[*MeshAnnotation](v.Refs(edgeMeshAnnotations))
}

func (v *Vrm) AddMeshAnnotation(a *MeshAnnotation) {
	v.HasFirstPerson = true
	v.AddRef(edgeMeshAnnotations, a, nil)
}

// MetaInfo is the license and authorship part of VRM meta.
type MetaInfo struct {
	Name                           string   `json:"name"`
	Version                        string   `json:"version,omitempty"`
	Authors                        []string `json:"authors"`
	CopyrightInformation           string   `json:"copyrightInformation,omitempty"`
	ContactInformation             string   `json:"contactInformation,omitempty"`
	References                     []string `json:"references,omitempty"`
	ThirdPartyLicenses             string   `json:"thirdPartyLicenses,omitempty"`
	LicenseURL                     string   `json:"licenseUrl"`
	AvatarPermission               string   `json:"avatarPermission,omitempty"`
	AllowExcessivelyViolentUsage   bool     `json:"allowExcessivelyViolentUsage"`
	AllowExcessivelySexualUsage    bool     `json:"allowExcessivelySexualUsage"`
	CommercialUsage                string   `json:"commercialUsage,omitempty"`
	AllowPoliticalOrReligiousUsage bool     `json:"allowPoliticalOrReligiousUsage"`
	AllowAntisocialOrHateUsage     bool     `json:"allowAntisocialOrHateUsage"`
	CreditNotation                 string   `json:"creditNotation,omitempty"`
	AllowRedistribution            bool     `json:"allowRedistribution"`
	Modification                   string   `json:"modification,omitempty"`
	OtherLicenseURL                string   `json:"otherLicenseUrl,omitempty"`
}

type Meta struct {
	graph.Base
	Info MetaInfo
}

func (m *Meta) Kind() graph.Kind { return KindMeta }

func NewMeta(doc *scene.Document) *Meta {
	m := &Meta{Info: MetaInfo{
		LicenseURL:       "https://vrm.dev/licenses/1.0/",
		AvatarPermission: "onlyAuthor",
		CommercialUsage:  "personalNonProfit",
		CreditNotation:   "required",
		Modification:     "prohibited",
	}}
	doc.Add(m)
	return m
}

func (m *Meta) Thumbnail() *scene.Texture { return graph.RefAs[*scene.Texture](&m.Base, edgeThumbnail) }

func (m *Meta) SetThumbnail(t *scene.Texture) {
	m.SetRef(edgeThumbnail, t, map[string]interface{}{
		scene.AttrIsColor:  true,
		scene.AttrChannels: scene.ChannelR | scene.ChannelG | scene.ChannelB | scene.ChannelA,
	})
}

type Expression struct {
	graph.Base
	IsBinary       bool
	OverrideBlink  string
	OverrideLookAt string
	OverrideMouth  string
}

func (e *Expression) Kind() graph.Kind { return KindExpression }

func NewExpression(doc *scene.Document, name string) *Expression {
	e := &Expression{OverrideBlink: "none", OverrideLookAt: "none", OverrideMouth: "none"}
	e.Name = name
	doc.Add(e)
	return e
}

func (e *Expression) MorphTargetBinds() []*MorphTargetBind {
	return graph.As[*MorphTargetBind](e.Refs(edgeMorphTargetBinds))
}

func (e *Expression) AddMorphTargetBind(b *MorphTargetBind) { e.AddRef(edgeMorphTargetBinds, b, nil) }

func (e *Expression) RemoveMorphTargetBind(b *MorphTargetBind) {
	e.RemoveRef(edgeMorphTargetBinds, b)
}

func (e *Expression) MaterialColorBinds() []*MaterialColorBind {
	return graph.As[*MaterialColorBind](e.Refs(edgeMaterialColorBinds))
}

func (e *Expression) AddMaterialColorBind(b *MaterialColorBind) {
	e.AddRef(edgeMaterialColorBinds, b, nil)
}

func (e *Expression) TextureTransformBinds() []*TextureTransformBind {
	return graph.As[*TextureTransformBind](e.Refs(edgeTextureTransformBinds))
}

func (e *Expression) AddTextureTransformBind(b *TextureTransformBind) {
	e.AddRef(edgeTextureTransformBinds, b, nil)
}

// MorphTargetBind drives morph target Index of the mesh on its node.
type MorphTargetBind struct {
	graph.Base
	Index  int
	Weight float32
}

func (b *MorphTargetBind) Kind() graph.Kind { return KindMorphTargetBind }

func NewMorphTargetBind(doc *scene.Document) *MorphTargetBind {
	b := &MorphTargetBind{}
	doc.Add(b)
	return b
}

func (b *MorphTargetBind) Node() *scene.Node { return graph.RefAs[*scene.Node](&b.Base, edgeNode) }

func (b *MorphTargetBind) SetNode(n *scene.Node) { b.SetRef(edgeNode, n, nil) }

type MaterialColorBind struct {
	graph.Base
	Type        string
	TargetValue mgl32.Vec4
}

func (b *MaterialColorBind) Kind() graph.Kind { return KindMaterialColorBind }

func (b *MaterialColorBind) Material() *scene.Material {
	return graph.RefAs[*scene.Material](&b.Base, edgeMaterial)
}

func (b *MaterialColorBind) SetMaterial(m *scene.Material) { b.SetRef(edgeMaterial, m, nil) }

type TextureTransformBind struct {
	graph.Base
	Scale  mgl32.Vec2
	Offset mgl32.Vec2
}

func (b *TextureTransformBind) Kind() graph.Kind { return KindTextureTransformBind }

func (b *TextureTransformBind) Material() *scene.Material {
	return graph.RefAs[*scene.Material](&b.Base, edgeMaterial)
}

func (b *TextureTransformBind) SetMaterial(m *scene.Material) { b.SetRef(edgeMaterial, m, nil) }

type MeshAnnotation struct {
	graph.Base
	Type string
}

func (a *MeshAnnotation) Kind() graph.Kind { return KindMeshAnnotation }

func (a *MeshAnnotation) Node() *scene.Node { return graph.RefAs[*scene.Node](&a.Base, edgeNode) }

func (a *MeshAnnotation) SetNode(n *scene.Node) { a.SetRef(edgeNode, n, nil) }

type metaDef struct {
	MetaInfo
	ThumbnailImage *uint32 `json:"thumbnailImage,omitempty"`
}

type humanBoneDef struct {
	Node uint32 `json:"node"`
}

type morphTargetBindDef struct {
	Node   uint32  `json:"node"`
	Index  int     `json:"index"`
	Weight float32 `json:"weight"`
}

type materialColorBindDef struct {
	Material    uint32     `json:"material"`
	Type        string     `json:"type"`
	TargetValue [4]float32 `json:"targetValue"`
}

type textureTransformBindDef struct {
	Material uint32      `json:"material"`
	Scale    *[2]float32 `json:"scale,omitempty"`
	Offset   *[2]float32 `json:"offset,omitempty"`
}

type expressionDef struct {
	MorphTargetBinds      []morphTargetBindDef      `json:"morphTargetBinds,omitempty"`
	MaterialColorBinds    []materialColorBindDef    `json:"materialColorBinds,omitempty"`
	TextureTransformBinds []textureTransformBindDef `json:"textureTransformBinds,omitempty"`
	IsBinary              bool                      `json:"isBinary"`
	OverrideBlink         string                    `json:"overrideBlink,omitempty"`
	OverrideLookAt        string                    `json:"overrideLookAt,omitempty"`
	OverrideMouth         string                    `json:"overrideMouth,omitempty"`
}

type meshAnnotationDef struct {
	Node uint32 `json:"node"`
	Type string `json:"type"`
}

type vrmDef struct {
	SpecVersion string  `json:"specVersion"`
	Meta        metaDef `json:"meta"`
	Humanoid    struct {
		HumanBones map[string]humanBoneDef `json:"humanBones"`
	} `json:"humanoid"`
	Expressions *struct {
		Preset map[string]*expressionDef `json:"preset,omitempty"`
		Custom map[string]*expressionDef `json:"custom,omitempty"`
	} `json:"expressions,omitempty"`
	LookAt      json.RawMessage `json:"lookAt,omitempty"`
	FirstPerson *struct {
		MeshAnnotations []meshAnnotationDef `json:"meshAnnotations,omitempty"`
	} `json:"firstPerson,omitempty"`
}

type vrmCodec struct{}

func (vrmCodec) Name() string { return ExtVrm }

func (vrmCodec) Read(rc *gltfutils.ReadContext) error {
	def, err := decode[vrmDef](rc.Source.Extensions, ExtVrm)
	if err != nil || def == nil {
		return err
	}
	doc := rc.Doc
	v := NewVrm(doc)
	v.SpecVersion = def.SpecVersion
	v.LookAt = def.LookAt

	meta := NewMeta(doc)
	meta.Info = def.Meta.MetaInfo
	if def.Meta.ThumbnailImage != nil {
		meta.SetThumbnail(rc.Image(*def.Meta.ThumbnailImage))
	}
	v.SetMeta(meta)

	for _, name := range sortedKeys(def.Humanoid.HumanBones) {
		if n := rc.Node(def.Humanoid.HumanBones[name].Node); n != nil {
			v.SetHumanBone(name, n)
		}
	}

	if def.Expressions != nil {
		for _, group := range []map[string]*expressionDef{def.Expressions.Preset, def.Expressions.Custom} {
			for _, name := range sortedKeys(group) {
				if group[name] == nil {
					continue
				}
				v.SetExpression(name, readExpression(rc, name, group[name]))
			}
		}
	}

	if def.FirstPerson != nil {
		v.HasFirstPerson = true
		for _, ad := range def.FirstPerson.MeshAnnotations {
			a := &MeshAnnotation{Type: ad.Type}
			if a.Type == "" {
				a.Type = "auto"
			}
			doc.Add(a)
			a.SetNode(rc.Node(ad.Node))
			v.AddMeshAnnotation(a)
		}
	}

	SetVrm(doc, v)
	return nil
}

func readExpression(rc *gltfutils.ReadContext, name string, def *expressionDef) *Expression {
	e := NewExpression(rc.Doc, name)
	e.IsBinary = def.IsBinary
	if def.OverrideBlink != "" {
		e.OverrideBlink = def.OverrideBlink
	}
	if def.OverrideLookAt != "" {
		e.OverrideLookAt = def.OverrideLookAt
	}
	if def.OverrideMouth != "" {
		e.OverrideMouth = def.OverrideMouth
	}
	for _, bd := range def.MorphTargetBinds {
		b := NewMorphTargetBind(rc.Doc)
		b.Index = bd.Index
		b.Weight = bd.Weight
		b.SetNode(rc.Node(bd.Node))
		e.AddMorphTargetBind(b)
	}
	for _, bd := range def.MaterialColorBinds {
		b := &MaterialColorBind{Type: bd.Type, TargetValue: mgl32.Vec4(bd.TargetValue)}
		rc.Doc.Add(b)
		b.SetMaterial(rc.Material(bd.Material))
		e.AddMaterialColorBind(b)
	}
	for _, bd := range def.TextureTransformBinds {
		b := &TextureTransformBind{Scale: mgl32.Vec2{1, 1}}
		if bd.Scale != nil {
			b.Scale = mgl32.Vec2(*bd.Scale)
		}
		if bd.Offset != nil {
			b.Offset = mgl32.Vec2(*bd.Offset)
		}
		rc.Doc.Add(b)
		b.SetMaterial(rc.Material(bd.Material))
		e.AddTextureTransformBind(b)
	}
	return e
}

func (vrmCodec) Write(wc *gltfutils.WriteContext) error {
	v := GetVrm(wc.Doc)
	if v == nil {
		return nil
	}
	def := &vrmDef{SpecVersion: v.SpecVersion, LookAt: v.LookAt}

	if meta := v.Meta(); meta != nil {
		def.Meta.MetaInfo = meta.Info
		if i, ok := wc.Image(meta.Thumbnail()); ok {
			def.Meta.ThumbnailImage = &i
		}
	}
	if def.Meta.Authors == nil {
		def.Meta.Authors = []string{}
	}

	def.Humanoid.HumanBones = make(map[string]humanBoneDef)
	for _, name := range v.HumanBoneNames() {
		if i, ok := wc.Node(v.HumanBone(name)); ok {
			def.Humanoid.HumanBones[name] = humanBoneDef{Node: i}
		}
	}

	names := v.ExpressionNames()
	if len(names) != 0 {
		def.Expressions = &struct {
			Preset map[string]*expressionDef `json:"preset,omitempty"`
			Custom map[string]*expressionDef `json:"custom,omitempty"`
		}{
			Preset: make(map[string]*expressionDef),
			Custom: make(map[string]*expressionDef),
		}
		for _, name := range names {
			ed := writeExpression(wc, v.Expression(name))
			if IsPresetExpression(name) {
				def.Expressions.Preset[name] = ed
			} else {
				def.Expressions.Custom[name] = ed
			}
		}
	}

	if v.HasFirstPerson {
		def.FirstPerson = &struct {
			MeshAnnotations []meshAnnotationDef `json:"meshAnnotations,omitempty"`
		}{}
		for _, a := range v.MeshAnnotations() {
			if i, ok := wc.Node(a.Node()); ok {
				def.FirstPerson.MeshAnnotations = append(def.FirstPerson.MeshAnnotations, meshAnnotationDef{Node: i, Type: a.Type})
			}
		}
	}

	setExtension(&wc.Target.Extensions, ExtVrm, def)
	wc.Use(ExtVrm, false)
	return nil
}

func writeExpression(wc *gltfutils.WriteContext, e *Expression) *expressionDef {
	def := &expressionDef{
		IsBinary:       e.IsBinary,
		OverrideBlink:  e.OverrideBlink,
		OverrideLookAt: e.OverrideLookAt,
		OverrideMouth:  e.OverrideMouth,
	}
	for _, b := range e.MorphTargetBinds() {
		node, ok := wc.Node(b.Node())
		if !ok {
			wc.Logger.Debug("Dropping morph target bind without node", zap.String("expression", e.Name))
			continue
		}
		def.MorphTargetBinds = append(def.MorphTargetBinds, morphTargetBindDef{Node: node, Index: b.Index, Weight: b.Weight})
	}
	for _, b := range e.MaterialColorBinds() {
		if i, ok := wc.Material(b.Material()); ok {
			def.MaterialColorBinds = append(def.MaterialColorBinds, materialColorBindDef{
				Material: i, Type: b.Type, TargetValue: [4]float32(b.TargetValue),
			})
		}
	}
	for _, b := range e.TextureTransformBinds() {
		if i, ok := wc.Material(b.Material()); ok {
			scale, offset := [2]float32(b.Scale), [2]float32(b.Offset)
			def.TextureTransformBinds = append(def.TextureTransformBinds, textureTransformBindDef{
				Material: i, Scale: &scale, Offset: &offset,
			})
		}
	}
	return def
}

// FindExpressionsBinding lists the morph target binds that point at node n.
func FindExpressionsBinding(v *Vrm, n *scene.Node) []*MorphTargetBind {
	var result []*MorphTargetBind
	for _, e := range v.Expressions() {
		for _, b := range e.MorphTargetBinds() {
			if b.Node() == n {
				result = append(result, b)
			}
		}
	}
	return result
}
