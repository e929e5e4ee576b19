package transform

import (
	"context"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"

	"github.com/mogaika/vrm_transform/scene"
)

// Weight moves onto the roll bones. These values are matched against reference output, keep them as is.
const (
	lowerArmStrongWeight   = 0.7
	lowerArmStrongFraction = 0.15
	handLightMinWeight     = 0.05
	handLightMaxWeight     = 0.25
	handLightFraction      = 0.25
)

type weightRule struct {
	source   int
	rollLow  int
	rollHand int
}

type WeightStats struct {
	Vertices int
	Moves    int
	Skipped  int
}

// RedistributeWeights shifts part of the lower arm influence onto the lower arm
// and hand roll bones. Skins lacking those bones are left alone.
func RedistributeWeights(doc *scene.Document) WeightStats {
	log := doc.Logger().Named("weights")
	var stats WeightStats
	visited := make(map[*scene.Accessor]bool)

	for _, skin := range doc.Root().ListSkins() {
		rules := make([]weightRule, 0, len(sides))
		for _, side := range sides {
			rule := weightRule{
				source:   findJoint(skin, bipName(side, "LowerArm")),
				rollLow:  findJoint(skin, "J_Roll_"+side+"_LowerArm"),
				rollHand: findJoint(skin, "J_Roll_"+side+"_Hand"),
			}
			if rule.source < 0 || rule.rollLow < 0 || rule.rollHand < 0 {
				continue
			}
			rules = append(rules, rule)
		}
		if len(rules) == 0 {
			log.Debug("Skin has no roll bones", zap.String("skin", skin.Name))
			continue
		}

		for _, node := range skin.ListNodes() {
			mesh := node.Mesh()
			if mesh == nil {
				continue
			}
			for _, prim := range mesh.Primitives() {
				for _, set := range prim.SkinSets() {
					joints, weights := set[0], set[1]
					if visited[joints] || joints.ElementSize() != 4 || weights.ElementSize() != 4 {
						continue
					}
					visited[joints] = true
					redistribute(joints, weights, rules, &stats)
				}
			}
		}
	}

	log.Info("Redistributed weights",
		zap.Int("vertices", stats.Vertices),
		zap.Int("moves", stats.Moves),
		zap.Int("skippedNoFreeSlot", stats.Skipped))
	return stats
}

func redistribute(joints, weights *scene.Accessor, rules []weightRule, stats *WeightStats) {
	j := make([]float64, 4)
	w := make([]float64, 4)
	for v := 0; v < joints.Count() && v < weights.Count(); v++ {
		joints.Element(v, j)
		weights.Element(v, w)
		moved := false
		for k := 0; k < 4; k++ {
			for _, rule := range rules {
				if int(j[k]) != rule.source || w[k] <= 0 {
					continue
				}
				var target int
				var amount float64
				switch {
				case w[k] > lowerArmStrongWeight:
					target, amount = rule.rollLow, w[k]*lowerArmStrongFraction
				case w[k] > handLightMinWeight && w[k] <= handLightMaxWeight:
					target, amount = rule.rollHand, w[k]*handLightFraction
				default:
					continue
				}
				free := freeSlot(w)
				if free < 0 {
					stats.Skipped++
					continue
				}
				w[k] -= amount
				j[free] = float64(target)
				w[free] = amount
				moved = true
				stats.Moves++
			}
		}
		if !moved {
			continue
		}
		if sum := floats.Sum(w); sum > 0 {
			floats.Scale(1/sum, w)
		}
		joints.SetElement(v, j)
		weights.SetElement(v, w)
		stats.Vertices++
	}
}

func freeSlot(w []float64) int {
	for i, v := range w {
		if v <= 0 {
			return i
		}
	}
	return -1
}

func init() {
	RegisterStep("weights", func(opts Options) StepFunc {
		return func(ctx context.Context, doc *scene.Document) error {
			RedistributeWeights(doc)
			return nil
		}
	})
}
