package vrm

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/mogaika/vrm_transform/graph"
	"github.com/mogaika/vrm_transform/scene"
	"github.com/mogaika/vrm_transform/utils/gltfutils"
)

const (
	KindSpringBones   graph.Kind = ExtSpringBone
	KindCollider      graph.Kind = "SpringBoneCollider"
	KindColliderGroup graph.Kind = "SpringBoneColliderGroup"
	KindSpring        graph.Kind = "SpringBoneSpring"
	KindSpringJoint   graph.Kind = "SpringBoneJoint"
)

const (
	edgeColliders      = "colliders"
	edgeColliderGroups = "colliderGroups"
	edgeSprings        = "springs"
	edgeJoints         = "joints"
	edgeNode           = "node"
	edgeCenter         = "center"
)

// SpringBones is the document level VRMC_springBone data, attached to the root.
type SpringBones struct {
	graph.Base
	SpecVersion string
}

func (s *SpringBones) Kind() graph.Kind { return KindSpringBones }

func NewSpringBones(doc *scene.Document) *SpringBones {
	s := &SpringBones{SpecVersion: SpecVersion}
	doc.Add(s)
	return s
}

func GetSpringBones(doc *scene.Document) *SpringBones {
	return graph.ExtensionAs[*SpringBones](&doc.Root().Base, ExtSpringBone)
}

func SetSpringBones(doc *scene.Document, s *SpringBones) {
	doc.Root().SetExtension(ExtSpringBone, s)
}

func (s *SpringBones) Colliders() []*Collider { return graph.As[*Collider](s.Refs(edgeColliders)) }

func (s *SpringBones) AddCollider(c *Collider) { s.AddRef(edgeColliders, c, nil) }

func (s *SpringBones) RemoveCollider(c *Collider) { s.RemoveRef(edgeColliders, c) }

func (s *SpringBones) ColliderGroups() []*ColliderGroup {
	return graph.As[*ColliderGroup](s.Refs(edgeColliderGroups))
}

func (s *SpringBones) AddColliderGroup(g *ColliderGroup) { s.AddRef(edgeColliderGroups, g, nil) }

func (s *SpringBones) RemoveColliderGroup(g *ColliderGroup) { s.RemoveRef(edgeColliderGroups, g) }

func (s *SpringBones) Springs() []*Spring { return graph.As[*Spring](s.Refs(edgeSprings)) }

func (s *SpringBones) AddSpring(sp *Spring) { s.AddRef(edgeSprings, sp, nil) }

func (s *SpringBones) RemoveSpring(sp *Spring) { s.RemoveRef(edgeSprings, sp) }

// Collider is a sphere, or a capsule when Tail is set.
type Collider struct {
	graph.Base
	Offset mgl32.Vec3
	Radius float32
	Tail   *mgl32.Vec3
}

func (c *Collider) Kind() graph.Kind { return KindCollider }

func NewCollider(doc *scene.Document) *Collider {
	c := &Collider{}
	doc.Add(c)
	return c
}

func (c *Collider) Node() *scene.Node { return graph.RefAs[*scene.Node](&c.Base, edgeNode) }

func (c *Collider) SetNode(n *scene.Node) { c.SetRef(edgeNode, n, nil) }

type ColliderGroup struct {
	graph.Base
}

func (g *ColliderGroup) Kind() graph.Kind { return KindColliderGroup }

func NewColliderGroup(doc *scene.Document, name string) *ColliderGroup {
	g := &ColliderGroup{}
	g.Name = name
	doc.Add(g)
	return g
}

func (g *ColliderGroup) Colliders() []*Collider { return graph.As[*Collider](g.Refs(edgeColliders)) }

func (g *ColliderGroup) AddCollider(c *Collider) { g.AddRef(edgeColliders, c, nil) }

func (g *ColliderGroup) RemoveCollider(c *Collider) { g.RemoveRef(edgeColliders, c) }

type Spring struct {
	graph.Base
}

func (s *Spring) Kind() graph.Kind { return KindSpring }

func NewSpring(doc *scene.Document, name string) *Spring {
	s := &Spring{}
	s.Name = name
	doc.Add(s)
	return s
}

// Joints are ordered from the root of the chain to its tail.
func (s *Spring) Joints() []*SpringJoint { return graph.As[*SpringJoint](s.Refs(edgeJoints)) }

func (s *Spring) AddJoint(j *SpringJoint) { s.AddRef(edgeJoints, j, nil) }

func (s *Spring) RemoveJoint(j *SpringJoint) { s.RemoveRef(edgeJoints, j) }

func (s *Spring) ColliderGroups() []*ColliderGroup {
	return graph.As[*ColliderGroup](s.Refs(edgeColliderGroups))
}

func (s *Spring) AddColliderGroup(g *ColliderGroup) { s.AddRef(edgeColliderGroups, g, nil) }

func (s *Spring) RemoveColliderGroup(g *ColliderGroup) { s.RemoveRef(edgeColliderGroups, g) }

func (s *Spring) Center() *scene.Node { return graph.RefAs[*scene.Node](&s.Base, edgeCenter) }

func (s *Spring) SetCenter(n *scene.Node) { s.SetRef(edgeCenter, n, nil) }

type SpringJoint struct {
	graph.Base
	HitRadius    float32
	Stiffness    float32
	GravityPower float32
	GravityDir   mgl32.Vec3
	DragForce    float32
}

func (j *SpringJoint) Kind() graph.Kind { return KindSpringJoint }

func NewSpringJoint(doc *scene.Document) *SpringJoint {
	j := &SpringJoint{
		Stiffness:  1,
		GravityDir: mgl32.Vec3{0, -1, 0},
		DragForce:  0.5,
	}
	doc.Add(j)
	return j
}

func (j *SpringJoint) Node() *scene.Node { return graph.RefAs[*scene.Node](&j.Base, edgeNode) }

func (j *SpringJoint) SetNode(n *scene.Node) { j.SetRef(edgeNode, n, nil) }

type colliderShapeDef struct {
	Offset *[3]float32 `json:"offset,omitempty"`
	Radius *float32    `json:"radius,omitempty"`
	Tail   *[3]float32 `json:"tail,omitempty"`
}

type colliderDef struct {
	Node  uint32 `json:"node"`
	Shape struct {
		Sphere  *colliderShapeDef `json:"sphere,omitempty"`
		Capsule *colliderShapeDef `json:"capsule,omitempty"`
	} `json:"shape"`
}

type colliderGroupDef struct {
	Name      string   `json:"name,omitempty"`
	Colliders []uint32 `json:"colliders"`
}

type springJointDef struct {
	Node         uint32      `json:"node"`
	HitRadius    *float32    `json:"hitRadius,omitempty"`
	Stiffness    *float32    `json:"stiffness,omitempty"`
	GravityPower *float32    `json:"gravityPower,omitempty"`
	GravityDir   *[3]float32 `json:"gravityDir,omitempty"`
	DragForce    *float32    `json:"dragForce,omitempty"`
}

type springDef struct {
	Name           string           `json:"name,omitempty"`
	Joints         []springJointDef `json:"joints"`
	ColliderGroups []uint32         `json:"colliderGroups,omitempty"`
	Center         *uint32          `json:"center,omitempty"`
}

type springBoneDef struct {
	SpecVersion    string             `json:"specVersion"`
	Colliders      []colliderDef      `json:"colliders,omitempty"`
	ColliderGroups []colliderGroupDef `json:"colliderGroups,omitempty"`
	Springs        []springDef        `json:"springs,omitempty"`
}

type springBoneCodec struct{}

func (springBoneCodec) Name() string { return ExtSpringBone }

func (springBoneCodec) Read(rc *gltfutils.ReadContext) error {
	def, err := decode[springBoneDef](rc.Source.Extensions, ExtSpringBone)
	if err != nil || def == nil {
		return err
	}
	doc := rc.Doc
	sb := NewSpringBones(doc)
	sb.SpecVersion = def.SpecVersion

	colliders := make([]*Collider, len(def.Colliders))
	for i, cd := range def.Colliders {
		c := NewCollider(doc)
		c.SetNode(rc.Node(cd.Node))
		shape := cd.Shape.Capsule
		if shape == nil {
			shape = cd.Shape.Sphere
		}
		if shape != nil {
			if shape.Offset != nil {
				c.Offset = mgl32.Vec3(*shape.Offset)
			}
			if shape.Radius != nil {
				c.Radius = *shape.Radius
			}
			if shape.Tail != nil {
				tail := mgl32.Vec3(*shape.Tail)
				c.Tail = &tail
			}
		}
		sb.AddCollider(c)
		colliders[i] = c
	}

	groups := make([]*ColliderGroup, len(def.ColliderGroups))
	for i, gd := range def.ColliderGroups {
		g := NewColliderGroup(doc, gd.Name)
		for _, ci := range gd.Colliders {
			if int(ci) >= len(colliders) {
				return errors.Errorf("Collider group %d references missing collider %d", i, ci)
			}
			g.AddCollider(colliders[ci])
		}
		sb.AddColliderGroup(g)
		groups[i] = g
	}

	for i, sd := range def.Springs {
		s := NewSpring(doc, sd.Name)
		for _, jd := range sd.Joints {
			j := NewSpringJoint(doc)
			j.SetNode(rc.Node(jd.Node))
			if jd.HitRadius != nil {
				j.HitRadius = *jd.HitRadius
			}
			if jd.Stiffness != nil {
				j.Stiffness = *jd.Stiffness
			}
			if jd.GravityPower != nil {
				j.GravityPower = *jd.GravityPower
			}
			if jd.GravityDir != nil {
				j.GravityDir = mgl32.Vec3(*jd.GravityDir)
			}
			if jd.DragForce != nil {
				j.DragForce = *jd.DragForce
			}
			s.AddJoint(j)
		}
		for _, gi := range sd.ColliderGroups {
			if int(gi) >= len(groups) {
				return errors.Errorf("Spring %d references missing collider group %d", i, gi)
			}
			s.AddColliderGroup(groups[gi])
		}
		if sd.Center != nil {
			s.SetCenter(rc.Node(*sd.Center))
		}
		sb.AddSpring(s)
	}

	SetSpringBones(doc, sb)
	return nil
}

func (springBoneCodec) Write(wc *gltfutils.WriteContext) error {
	sb := GetSpringBones(wc.Doc)
	if sb == nil {
		return nil
	}
	def := &springBoneDef{SpecVersion: sb.SpecVersion}

	colliderIndex := make(map[*Collider]uint32)
	for _, c := range sb.Colliders() {
		node, ok := wc.Node(c.Node())
		if !ok {
			wc.Logger.Warn("Dropping collider without node")
			continue
		}
		offset := [3]float32(c.Offset)
		radius := c.Radius
		cd := colliderDef{Node: node}
		shape := &colliderShapeDef{Offset: &offset, Radius: &radius}
		if c.Tail != nil {
			tail := [3]float32(*c.Tail)
			shape.Tail = &tail
			cd.Shape.Capsule = shape
		} else {
			cd.Shape.Sphere = shape
		}
		colliderIndex[c] = uint32(len(def.Colliders))
		def.Colliders = append(def.Colliders, cd)
	}

	groupIndex := make(map[*ColliderGroup]uint32)
	for _, g := range sb.ColliderGroups() {
		gd := colliderGroupDef{Name: g.Name}
		for _, c := range g.Colliders() {
			if i, ok := colliderIndex[c]; ok {
				gd.Colliders = append(gd.Colliders, i)
			}
		}
		if len(gd.Colliders) == 0 {
			continue
		}
		groupIndex[g] = uint32(len(def.ColliderGroups))
		def.ColliderGroups = append(def.ColliderGroups, gd)
	}

	for _, s := range sb.Springs() {
		sd := springDef{Name: s.Name}
		for _, j := range s.Joints() {
			node, ok := wc.Node(j.Node())
			if !ok {
				continue
			}
			hitRadius, stiffness, gravityPower, dragForce := j.HitRadius, j.Stiffness, j.GravityPower, j.DragForce
			gravityDir := [3]float32(j.GravityDir)
			sd.Joints = append(sd.Joints, springJointDef{
				Node:         node,
				HitRadius:    &hitRadius,
				Stiffness:    &stiffness,
				GravityPower: &gravityPower,
				GravityDir:   &gravityDir,
				DragForce:    &dragForce,
			})
		}
		if len(sd.Joints) == 0 {
			continue
		}
		for _, g := range s.ColliderGroups() {
			if i, ok := groupIndex[g]; ok {
				sd.ColliderGroups = append(sd.ColliderGroups, i)
			}
		}
		if center, ok := wc.Node(s.Center()); ok {
			sd.Center = &center
		}
		def.Springs = append(def.Springs, sd)
	}

	if len(def.Springs) == 0 {
		wc.Logger.Debug("No springs left, skipping extension", zap.String("extension", ExtSpringBone))
		return nil
	}
	setExtension(&wc.Target.Extensions, ExtSpringBone, def)
	wc.Use(ExtSpringBone, false)
	return nil
}
