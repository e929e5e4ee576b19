package transform

import (
	"context"

	"go.uber.org/zap"

	"github.com/mogaika/vrm_transform/graph"
	"github.com/mogaika/vrm_transform/scene"
)

type PruneStats struct {
	Orphans   int
	Skins     int
	Meshes    int
	Materials int
	Textures  int
	Accessors int
}

func (s PruneStats) total() int {
	return s.Orphans + s.Skins + s.Meshes + s.Materials + s.Textures + s.Accessors
}

func shakeAll[T graph.Property](list []T) int {
	n := 0
	for _, p := range list {
		if scene.TreeShake(p) {
			n++
		}
	}
	return n
}

// disposeOrphans removes properties nothing references any more, like
// primitives of a disposed mesh or joints of a removed spring.
func disposeOrphans(doc *scene.Document) int {
	g := doc.Graph()
	n := 0
	for _, p := range g.Properties() {
		if p.Kind() == scene.KindRoot || p.IsDisposed() {
			continue
		}
		if len(g.ListParentEdges(p)) == 0 {
			p.Dispose()
			n++
		}
	}
	return n
}

// Prune repeatedly drops unused skins, meshes, materials, textures and
// accessors until nothing else becomes unused.
func Prune(doc *scene.Document) PruneStats {
	log := doc.Logger().Named("prune")
	root := doc.Root()
	var stats PruneStats

	for {
		var pass PruneStats
		pass.Skins = shakeAll(root.ListSkins())
		pass.Meshes = shakeAll(root.ListMeshes())
		pass.Orphans = disposeOrphans(doc)
		pass.Materials = shakeAll(root.ListMaterials())
		pass.Orphans += disposeOrphans(doc)
		pass.Textures = shakeAll(root.ListTextures())
		pass.Accessors = shakeAll(root.ListAccessors())

		if pass.total() == 0 {
			break
		}
		stats.Orphans += pass.Orphans
		stats.Skins += pass.Skins
		stats.Meshes += pass.Meshes
		stats.Materials += pass.Materials
		stats.Textures += pass.Textures
		stats.Accessors += pass.Accessors
	}

	log.Info("Pruned unused properties",
		zap.Int("skins", stats.Skins),
		zap.Int("meshes", stats.Meshes),
		zap.Int("materials", stats.Materials),
		zap.Int("textures", stats.Textures),
		zap.Int("accessors", stats.Accessors),
		zap.Int("orphans", stats.Orphans))
	return stats
}

func init() {
	RegisterStep("prune", func(opts Options) StepFunc {
		return func(ctx context.Context, doc *scene.Document) error {
			Prune(doc)
			return nil
		}
	})
}
