package transform

import (
	"context"

	"go.uber.org/zap"

	"github.com/mogaika/vrm_transform/scene"
	"github.com/mogaika/vrm_transform/vrm"
)

// compactWeights keeps the entries of w whose index is in keep.
func compactWeights(w []float32, keep []bool) []float32 {
	if len(w) == 0 {
		return w
	}
	result := make([]float32, 0, len(w))
	for i, v := range w {
		if i < len(keep) && keep[i] {
			result = append(result, v)
		}
	}
	return result
}

// PruneMorphTargets removes morph targets no expression drives and renumbers
// the remaining binds. Returns the number of target slots removed over all meshes.
func PruneMorphTargets(doc *scene.Document) int {
	log := doc.Logger().Named("pruneMorphTargets")

	v := vrm.GetVrm(doc)
	if v == nil {
		log.Warn("VRMC_vrm extension is required to determine which morph targets are in use")
		return 0
	}

	binds := make(map[*scene.Mesh]map[int][]*vrm.MorphTargetBind)
	for _, e := range v.Expressions() {
		for _, b := range e.MorphTargetBinds() {
			node := b.Node()
			if node == nil || node.Mesh() == nil {
				continue
			}
			mesh := node.Mesh()
			if binds[mesh] == nil {
				binds[mesh] = make(map[int][]*vrm.MorphTargetBind)
			}
			binds[mesh][b.Index] = append(binds[mesh][b.Index], b)
		}
	}

	removed := 0
	for _, mesh := range doc.Root().ListMeshes() {
		prims := mesh.Primitives()
		if len(prims) == 0 {
			continue
		}
		count := len(prims[0].Targets())
		if count == 0 {
			continue
		}
		used := binds[mesh]

		keep := make([]bool, count)
		for i := range keep {
			_, keep[i] = used[i]
		}

		for _, prim := range prims {
			for i, target := range prim.Targets() {
				if i < count && keep[i] {
					continue
				}
				attrs := target.Attributes()
				prim.RemoveTarget(target)
				target.Dispose()
				for _, acc := range attrs {
					scene.TreeShake(acc)
				}
			}
		}

		if names := mesh.TargetNames(); names != nil {
			compacted := make([]string, 0, len(names))
			for i, name := range names {
				if i < count && keep[i] {
					compacted = append(compacted, name)
				}
			}
			mesh.SetTargetNames(compacted)
		}
		mesh.Weights = compactWeights(mesh.Weights, keep)
		for _, p := range mesh.ListParents() {
			if n, ok := p.(*scene.Node); ok && n.Mesh() == mesh {
				n.Weights = compactWeights(n.Weights, keep)
			}
		}

		newIndex := 0
		for i := 0; i < count; i++ {
			if !keep[i] {
				removed++
				continue
			}
			for _, b := range used[i] {
				b.Index = newIndex
			}
			newIndex++
		}
		log.Debug("Pruned morph targets", zap.String("mesh", mesh.Name),
			zap.Int("kept", newIndex), zap.Int("removed", count-newIndex))
	}

	log.Info("Pruned morph targets", zap.Int("removed", removed))
	return removed
}

func init() {
	RegisterStep("prune-morphs", func(opts Options) StepFunc {
		return func(ctx context.Context, doc *scene.Document) error {
			PruneMorphTargets(doc)
			return nil
		}
	})
}
