package transform

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/mogaika/vrm_transform/scene"
	"github.com/mogaika/vrm_transform/vrm"
)

type InverseBindMode string

const (
	// InverseBindSource copies the inverse bind matrix of the bone a constraint bone follows.
	InverseBindSource   InverseBindMode = "source"
	InverseBindIdentity InverseBindMode = "identity"
)

func ParseInverseBindMode(s string) (InverseBindMode, error) {
	switch InverseBindMode(strings.ToLower(s)) {
	case InverseBindSource, "":
		return InverseBindSource, nil
	case InverseBindIdentity:
		return InverseBindIdentity, nil
	}
	return "", errors.Errorf("Unknown inverse bind mode %q", s)
}

type ConstraintOptions struct {
	SleeveBones  bool
	InverseBind  InverseBindMode
	SkipExisting bool
}

func DefaultConstraintOptions() ConstraintOptions {
	return ConstraintOptions{SleeveBones: true, InverseBind: InverseBindSource}
}

var sides = []string{"L", "R"}

func bipName(side, bone string) string { return fmt.Sprintf("J_Bip_%s_%s", side, bone) }

// skinBoneSources maps the constraint bones that deform meshes to the rig bone
// whose inverse bind matrix they borrow.
var skinBoneSources = func() map[string]string {
	m := make(map[string]string)
	for _, side := range sides {
		m["J_Roll_"+side+"_UpperArm"] = bipName(side, "UpperArm")
		m["J_Roll_"+side+"_Elbow"] = bipName(side, "LowerArm")
		m["J_Roll_"+side+"_Hand"] = bipName(side, "Hand")
		m["J_Roll_"+side+"_LowerArm"] = bipName(side, "LowerArm")
		m["J_Aim_"+side+"_Shoulder"] = bipName(side, "Shoulder")
	}
	return m
}()

// skinBoneOrder is the order constraint bones are appended to skins in.
var skinBoneOrder = []string{
	"J_Roll_L_UpperArm", "J_Roll_R_UpperArm",
	"J_Roll_L_Elbow", "J_Roll_R_Elbow",
	"J_Roll_L_Hand", "J_Roll_R_Hand",
	"J_Roll_L_LowerArm", "J_Roll_R_LowerArm",
	"J_Aim_L_Shoulder", "J_Aim_R_Shoulder",
}

type armBones struct {
	side                                string
	shoulder, upperArm, lowerArm, hand *scene.Node
}

func findArm(root *scene.Root, side string) armBones {
	return armBones{
		side:     side,
		shoulder: root.FindNode(bipName(side, "Shoulder")),
		upperArm: root.FindNode(bipName(side, "UpperArm")),
		lowerArm: root.FindNode(bipName(side, "LowerArm")),
		hand:     root.FindNode(bipName(side, "Hand")),
	}
}

// HasExistingConstraints reports whether the rig already looks processed.
func HasExistingConstraints(doc *scene.Document) bool {
	for _, n := range doc.Root().ListNodes() {
		if vrm.GetNodeConstraint(n) != nil {
			return true
		}
		if strings.Contains(n.Name, "Roll_") || strings.Contains(n.Name, "Aim_") || strings.Contains(n.Name, "Twist_") {
			return true
		}
	}
	return false
}

// AddConstraints adds roll and aim bones to the arms of a VRoid Studio rig and
// binds the deforming ones to every skin that moves the arms.
// Running it twice duplicates the bones, see HasExistingConstraints.
func AddConstraints(doc *scene.Document, opts ConstraintOptions) {
	log := doc.Logger().Named("constraints")
	root := doc.Root()

	arms := make([]armBones, 0, len(sides))
	for _, side := range sides {
		arm := findArm(root, side)
		if arm.upperArm == nil || arm.lowerArm == nil || arm.hand == nil {
			log.Warn("Could not find required arm bones. Make sure this is a VRM model from VRoid Studio",
				zap.String("side", side))
			return
		}
		if arm.shoulder == nil {
			log.Info("No shoulder bone found, using upper arm as constraint parent", zap.String("side", side))
			arm.shoulder = arm.upperArm
		}
		arms = append(arms, arm)
	}

	for _, arm := range arms {
		addArmConstraints(doc, arm, opts.SleeveBones)
	}
	addConstraintBonesToSkins(doc, opts.InverseBind)
	log.Info("Added roll constraints")
}

func newBone(doc *scene.Document, parent *scene.Node, name string, t mgl32.Vec3) *scene.Node {
	n := doc.CreateNode(name)
	n.Translation = t
	n.Rotation = mgl32.QuatIdent()
	parent.AddChild(n)
	return n
}

func constrain(doc *scene.Document, n, source *scene.Node, weight float32) *vrm.NodeConstraint {
	c := vrm.NewNodeConstraint(doc).SetSource(source).SetWeight(weight)
	c.SpecVersion = vrm.SpecVersion
	vrm.SetNodeConstraint(n, c)
	return c
}

func addArmConstraints(doc *scene.Document, arm armBones, sleeves bool) {
	s := arm.side
	ua := arm.upperArm.Translation
	la := arm.lowerArm.Translation
	hand := arm.hand.Translation

	aimParent := arm.shoulder
	if arm.shoulder != arm.upperArm {
		aim := newBone(doc, arm.shoulder, "J_Aim_"+s+"_Shoulder", mgl32.Vec3{})
		constrain(doc, aim, arm.upperArm, 1).SetAimAxis(vrm.AimPositiveX)
		aimParent = aim
	}

	rollUpper := newBone(doc, aimParent, "J_Roll_"+s+"_UpperArm", mgl32.Vec3{ua[0] * 1.4, ua[1], ua[2]})
	constrain(doc, rollUpper, arm.upperArm, 0.5).SetRollAxis(vrm.RollX)

	// nudged off the lower arm origin to avoid coincident joints
	rollElbow := newBone(doc, arm.upperArm, "J_Roll_"+s+"_Elbow", mgl32.Vec3{la[0] + 0.00001, la[1], la[2]})
	constrain(doc, rollElbow, arm.lowerArm, 0.5).SetRollAxis(vrm.RollY)

	rollHand := newBone(doc, arm.lowerArm, "J_Roll_"+s+"_Hand", mgl32.Vec3{hand[0] - 0.005, hand[1], hand[2]})
	constrain(doc, rollHand, arm.hand, 1).SetRollAxis(vrm.RollX)

	rollLower := newBone(doc, arm.lowerArm, "J_Roll_"+s+"_LowerArm", mgl32.Vec3{hand[0] * 0.5, hand[1], hand[2]})
	constrain(doc, rollLower, arm.hand, 0.5).SetRollAxis(vrm.RollX)

	if sleeves {
		addSleeveBones(doc, arm)
	}
}

func addSleeveBones(doc *scene.Document, arm armBones) {
	s := arm.side
	ua := arm.upperArm.Translation

	aim := newBone(doc, arm.upperArm, "J_Aim_"+s+"_TopsUpperArm", mgl32.Vec3{ua[0] * 0.3, ua[1], ua[2]})
	constrain(doc, aim, arm.lowerArm, 1).SetAimAxis(vrm.AimPositiveX)

	inside := newBone(doc, aim, "J_Sec_"+s+"_TopsUpperArmInside", mgl32.Vec3{0.02, 0, 0.01})
	newBone(doc, inside, "J_Sec_"+s+"_TopsUpperArmInside_end", mgl32.Vec3{0.05, 0, 0})
	outside := newBone(doc, aim, "J_Sec_"+s+"_TopsUpperArmOutside", mgl32.Vec3{0.02, 0, -0.01})
	newBone(doc, outside, "J_Sec_"+s+"_TopsUpperArmOutside_end", mgl32.Vec3{0.05, 0, 0})
}

func isArmSkin(skin *scene.Skin) bool {
	for _, j := range skin.Joints() {
		if strings.Contains(j.Name, "UpperArm") || strings.Contains(j.Name, "LowerArm") || strings.Contains(j.Name, "Hand") {
			return true
		}
	}
	return false
}

func addConstraintBonesToSkins(doc *scene.Document, mode InverseBindMode) {
	log := doc.Logger().Named("constraints")
	root := doc.Root()

	skins := root.ListSkins()
	if len(skins) == 0 {
		log.Warn("No skins found in the model")
		return
	}

	bones := make([]*scene.Node, 0, len(skinBoneOrder))
	for _, name := range skinBoneOrder {
		if n := root.FindNode(name); n != nil {
			bones = append(bones, n)
		}
	}
	if len(bones) == 0 {
		log.Warn("No constraint bones found to add to skins")
		return
	}

	for _, skin := range skins {
		if !isArmSkin(skin) {
			continue
		}
		ibm := skin.InverseBindMatrices()
		if ibm == nil {
			log.Warn("Skin has no inverse bind matrices", zap.String("skin", skin.Name))
			continue
		}
		ibm = ownInverseBindMatrices(doc, skin)

		added := 0
		for _, bone := range bones {
			if skin.JointIndex(bone) >= 0 {
				continue
			}
			m := mgl32.Ident4()
			if mode == InverseBindSource {
				if src := findJoint(skin, skinBoneSources[bone.Name]); src >= 0 {
					m = skin.InverseBindMatrix(src)
				}
			}
			skin.AddJoint(bone)
			ibm.AppendElement(scene.MatrixToArray(m))
			added++
			log.Debug("Added bone to skin", zap.String("bone", bone.Name), zap.String("skin", skin.Name))
		}
		if added == 0 {
			log.Info("All constraint bones already in skin", zap.String("skin", skin.Name))
		}
	}
}

func findJoint(skin *scene.Skin, name string) int {
	for i, j := range skin.Joints() {
		if j.Name == name {
			return i
		}
	}
	return -1
}

// ownInverseBindMatrices gives skin a private copy of its matrices when other skins share them.
func ownInverseBindMatrices(doc *scene.Document, skin *scene.Skin) *scene.Accessor {
	ibm := skin.InverseBindMatrices()
	for _, p := range ibm.ListParents() {
		if other, ok := p.(*scene.Skin); ok && other != skin {
			ibm = doc.CloneAccessor(ibm)
			skin.SetInverseBindMatrices(ibm)
			break
		}
	}
	return ibm
}

func init() {
	RegisterStep("constraints", func(opts Options) StepFunc {
		return func(ctx context.Context, doc *scene.Document) error {
			if HasExistingConstraints(doc) {
				if opts.Constraints.SkipExisting {
					doc.Logger().Warn("Model already appears to have constraints, skipping")
					return nil
				}
				doc.Logger().Warn("Model already appears to have constraints, proceeding anyway")
			}
			AddConstraints(doc, opts.Constraints)
			return nil
		}
	})
}
