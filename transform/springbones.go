package transform

import (
	"context"

	"go.uber.org/zap"

	"github.com/mogaika/vrm_transform/scene"
	"github.com/mogaika/vrm_transform/vrm"
)

// colliderEpsilon is the float64 machine epsilon.
const colliderEpsilon = 2.220446049250313e-16

type SpringBoneStats struct {
	Joints         int
	Springs        int
	Colliders      int
	ColliderGroups int
}

// nodeRelevance caches whether a node or anything below it is visible or deforms a mesh.
type nodeRelevance struct {
	bones map[*scene.Node]bool
	cache map[*scene.Node]bool
}

func newNodeRelevance(doc *scene.Document) *nodeRelevance {
	r := &nodeRelevance{
		bones: make(map[*scene.Node]bool),
		cache: make(map[*scene.Node]bool),
	}
	for _, skin := range doc.Root().ListSkins() {
		for _, j := range skin.Joints() {
			r.bones[j] = true
		}
	}
	return r
}

func (r *nodeRelevance) relevant(n *scene.Node) bool {
	if v, ok := r.cache[n]; ok {
		return v
	}
	result := n.Mesh() != nil || r.bones[n]
	if !result {
		for _, child := range n.Children() {
			if r.relevant(child) {
				result = true
				break
			}
		}
	}
	r.cache[n] = result
	return result
}

// PruneSpringbones trims spring chain tails that move nothing visible,
// drops springs left with a single joint and removes the colliders and
// collider groups nobody references afterwards.
func PruneSpringbones(doc *scene.Document) SpringBoneStats {
	log := doc.Logger().Named("pruneSpringbones")
	var stats SpringBoneStats

	sb := vrm.GetSpringBones(doc)
	if sb == nil {
		log.Warn("No spring bones to prune")
		return stats
	}

	for _, c := range sb.Colliders() {
		if float64(c.Radius) <= colliderEpsilon {
			c.Dispose()
			stats.Colliders++
		}
	}

	relevance := newNodeRelevance(doc)
	usedGroups := make(map[*vrm.ColliderGroup]bool)
	for _, spring := range sb.Springs() {
		joints := spring.Joints()
		for i := len(joints) - 1; i > 0; i-- {
			node := joints[i].Node()
			// a joint rotates towards its child, so the parent decides
			parent := joints[i-1].Node()
			if node != nil && parent != nil && relevance.relevant(parent) {
				break
			}
			joints[i].Dispose()
			joints = joints[:i]
			stats.Joints++
		}

		if len(joints) == 1 {
			joints[0].Dispose()
			stats.Joints++
			spring.Dispose()
			stats.Springs++
			continue
		}
		for _, g := range spring.ColliderGroups() {
			usedGroups[g] = true
		}
	}

	usedColliders := make(map[*vrm.Collider]bool)
	for _, g := range sb.ColliderGroups() {
		if !usedGroups[g] {
			g.Dispose()
			stats.ColliderGroups++
			continue
		}
		for _, c := range g.Colliders() {
			usedColliders[c] = true
		}
	}
	for _, c := range sb.Colliders() {
		if !usedColliders[c] {
			c.Dispose()
			stats.Colliders++
		}
	}

	log.Info("Pruned spring bones",
		zap.Int("joints", stats.Joints),
		zap.Int("springs", stats.Springs),
		zap.Int("colliders", stats.Colliders),
		zap.Int("colliderGroups", stats.ColliderGroups))
	return stats
}

func init() {
	RegisterStep("prune-springbones", func(opts Options) StepFunc {
		return func(ctx context.Context, doc *scene.Document) error {
			PruneSpringbones(doc)
			return nil
		}
	})
}
