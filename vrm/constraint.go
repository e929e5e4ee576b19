package vrm

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/mogaika/vrm_transform/graph"
	"github.com/mogaika/vrm_transform/scene"
	"github.com/mogaika/vrm_transform/utils/gltfutils"
)

const KindNodeConstraint graph.Kind = ExtNodeConstraint

type RollAxis string

const (
	RollX RollAxis = "X"
	RollY RollAxis = "Y"
	RollZ RollAxis = "Z"
)

type AimAxis string

const (
	AimPositiveX AimAxis = "PositiveX"
	AimNegativeX AimAxis = "NegativeX"
	AimPositiveY AimAxis = "PositiveY"
	AimNegativeY AimAxis = "NegativeY"
	AimPositiveZ AimAxis = "PositiveZ"
	AimNegativeZ AimAxis = "NegativeZ"
)

// NodeConstraint drives the rotation of its node from a source node.
// It is a roll, an aim or, with neither axis set, a rotation constraint.
type NodeConstraint struct {
	graph.Base
	SpecVersion string
	Weight      float32

	rollAxis RollAxis
	aimAxis  AimAxis
}

func (c *NodeConstraint) Kind() graph.Kind { return KindNodeConstraint }

func NewNodeConstraint(doc *scene.Document) *NodeConstraint {
	c := &NodeConstraint{SpecVersion: SpecVersion, Weight: 1}
	doc.Add(c)
	return c
}

func (c *NodeConstraint) Source() *scene.Node { return graph.RefAs[*scene.Node](&c.Base, "source") }

func (c *NodeConstraint) SetSource(n *scene.Node) *NodeConstraint {
	c.SetRef("source", n, nil)
	return c
}

func (c *NodeConstraint) RollAxis() RollAxis { return c.rollAxis }

func (c *NodeConstraint) AimAxis() AimAxis { return c.aimAxis }

// SetRollAxis turns the constraint into a roll constraint.
func (c *NodeConstraint) SetRollAxis(a RollAxis) *NodeConstraint {
	c.rollAxis = a
	if a != "" {
		c.aimAxis = ""
	}
	return c
}

// SetAimAxis turns the constraint into an aim constraint.
func (c *NodeConstraint) SetAimAxis(a AimAxis) *NodeConstraint {
	c.aimAxis = a
	if a != "" {
		c.rollAxis = ""
	}
	return c
}

func (c *NodeConstraint) SetWeight(w float32) *NodeConstraint {
	c.Weight = w
	return c
}

func GetNodeConstraint(n *scene.Node) *NodeConstraint {
	return graph.ExtensionAs[*NodeConstraint](&n.Base, ExtNodeConstraint)
}

func SetNodeConstraint(n *scene.Node, c *NodeConstraint) {
	n.SetExtension(ExtNodeConstraint, c)
}

type constraintBodyDef struct {
	Source   uint32   `json:"source"`
	Weight   *float32 `json:"weight,omitempty"`
	RollAxis RollAxis `json:"rollAxis,omitempty"`
	AimAxis  AimAxis  `json:"aimAxis,omitempty"`
}

type nodeConstraintDef struct {
	SpecVersion string `json:"specVersion"`
	Constraint  struct {
		Roll     *constraintBodyDef `json:"roll,omitempty"`
		Aim      *constraintBodyDef `json:"aim,omitempty"`
		Rotation *constraintBodyDef `json:"rotation,omitempty"`
	} `json:"constraint"`
}

type nodeConstraintCodec struct{}

func (nodeConstraintCodec) Name() string { return ExtNodeConstraint }

func (nodeConstraintCodec) Read(rc *gltfutils.ReadContext) error {
	for i, src := range rc.Source.Nodes {
		def, err := decode[nodeConstraintDef](src.Extensions, ExtNodeConstraint)
		if err != nil {
			return errors.Wrapf(err, "Node %d", i)
		}
		if def == nil {
			continue
		}
		body := def.Constraint.Aim
		if body == nil {
			body = def.Constraint.Roll
		}
		if body == nil {
			body = def.Constraint.Rotation
		}
		if body == nil {
			rc.Logger.Warn("Node constraint without body", zap.Int("node", i))
			continue
		}
		c := NewNodeConstraint(rc.Doc)
		c.SpecVersion = def.SpecVersion
		if body.Weight != nil {
			c.Weight = *body.Weight
		}
		c.SetSource(rc.Node(body.Source))
		c.aimAxis = body.AimAxis
		c.rollAxis = body.RollAxis
		SetNodeConstraint(rc.Nodes[i], c)
	}
	return nil
}

func (nodeConstraintCodec) Write(wc *gltfutils.WriteContext) error {
	for _, n := range wc.Doc.Root().ListNodes() {
		c := GetNodeConstraint(n)
		if c == nil {
			continue
		}
		source, ok := wc.Node(c.Source())
		if !ok {
			wc.Logger.Warn("Dropping node constraint without source", zap.String("node", n.Name))
			continue
		}
		weight := c.Weight
		body := &constraintBodyDef{Source: source, Weight: &weight}
		def := &nodeConstraintDef{SpecVersion: c.SpecVersion}
		switch {
		case c.rollAxis != "":
			body.RollAxis = c.rollAxis
			def.Constraint.Roll = body
		case c.aimAxis != "":
			body.AimAxis = c.aimAxis
			def.Constraint.Aim = body
		default:
			def.Constraint.Rotation = body
		}
		index, _ := wc.Node(n)
		target := wc.Target.Nodes[index]
		setExtension(&target.Extensions, ExtNodeConstraint, def)
		wc.Use(ExtNodeConstraint, false)
	}
	return nil
}
