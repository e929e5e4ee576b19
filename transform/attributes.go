package transform

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/mogaika/vrm_transform/scene"
)

const texCoordPrefix = "TEXCOORD_"

func texCoordIndex(semantic string) (int, bool) {
	if !strings.HasPrefix(semantic, texCoordPrefix) {
		return 0, false
	}
	i, err := strconv.Atoi(strings.TrimPrefix(semantic, texCoordPrefix))
	return i, err == nil
}

// requiredAttributes lists what the primitive's material and topology actually read.
func requiredAttributes(prim *scene.Primitive) map[string]bool {
	required := make(map[string]bool)
	if m := prim.Material(); m != nil {
		for _, info := range scene.ListTextureInfos(m) {
			required[texCoordPrefix+strconv.Itoa(info.TexCoord)] = true
		}
	}
	if prim.Mode != scene.ModePoints {
		required["NORMAL"] = true
	}
	return required
}

func isPrunableAttribute(semantic string, required map[string]bool) bool {
	if required[semantic] {
		return false
	}
	switch {
	case semantic == "NORMAL", semantic == "TANGENT":
		return true
	case strings.HasPrefix(semantic, texCoordPrefix):
		return true
	case strings.HasPrefix(semantic, "COLOR_"):
		return semantic != "COLOR_0"
	}
	return false
}

// PruneVrmVertexAttributes drops vertex attributes no material or renderer
// reads, then packs the remaining texture coordinate sets down from zero.
// Returns the number of attributes removed.
func PruneVrmVertexAttributes(doc *scene.Document) int {
	log := doc.Logger().Named("pruneVertexAttributes")
	root := doc.Root()
	removed := 0

	for _, mesh := range root.ListMeshes() {
		for _, prim := range mesh.Primitives() {
			if prim.Material() == nil {
				continue
			}
			required := requiredAttributes(prim)
			for _, semantic := range prim.Semantics() {
				if !isPrunableAttribute(semantic, required) {
					continue
				}
				prim.SetAttribute(semantic, nil)
				removed++
				log.Debug("Removed attribute", zap.String("mesh", mesh.Name), zap.String("attribute", semantic))
			}
			for _, target := range prim.Targets() {
				for _, semantic := range target.Semantics() {
					if isPrunableAttribute(semantic, required) {
						target.SetAttribute(semantic, nil)
					}
				}
			}
		}
	}

	shifted := shiftTexCoords(doc)

	for _, acc := range root.ListAccessors() {
		scene.TreeShake(acc)
	}
	log.Info("Pruned vertex attributes", zap.Int("removed", removed), zap.Int("texCoordsShifted", shifted))
	return removed
}

// shiftTexCoords renumbers the texture coordinate sets of every material so
// the used ones become 0..n-1, and moves primitive attributes to match.
func shiftTexCoords(doc *scene.Document) int {
	shifted := 0
	done := make(map[*scene.Primitive]bool)

	for _, mat := range doc.Root().ListMaterials() {
		infos := scene.ListTextureInfos(mat)
		used := make([]int, 0)
		seen := make(map[int]bool)
		for _, info := range infos {
			if !seen[info.TexCoord] {
				seen[info.TexCoord] = true
				used = append(used, info.TexCoord)
			}
		}
		sort.Ints(used)

		remap := make(map[int]int, len(used))
		identity := true
		for i, tc := range used {
			remap[tc] = i
			if tc != i {
				identity = false
			}
		}
		if identity {
			continue
		}

		for _, info := range infos {
			info.TexCoord = remap[info.TexCoord]
		}
		for _, p := range mat.ListParents() {
			prim, ok := p.(*scene.Primitive)
			if !ok || done[prim] {
				continue
			}
			done[prim] = true
			shifted += remapTexCoords(prim, remap)
			for _, target := range prim.Targets() {
				remapTexCoords(target, remap)
			}
		}
	}
	return shifted
}

// attributeHolder is a primitive or one of its morph targets.
type attributeHolder interface {
	Semantics() []string
	Attribute(semantic string) *scene.Accessor
	SetAttribute(semantic string, acc *scene.Accessor)
}

func remapTexCoords(h attributeHolder, remap map[int]int) int {
	moved := make(map[string]*scene.Accessor)
	for _, semantic := range h.Semantics() {
		old, ok := texCoordIndex(semantic)
		if !ok {
			continue
		}
		to, ok := remap[old]
		if !ok || to == old {
			continue
		}
		moved[texCoordPrefix+strconv.Itoa(to)] = h.Attribute(semantic)
		h.SetAttribute(semantic, nil)
	}
	for semantic, acc := range moved {
		h.SetAttribute(semantic, acc)
	}
	return len(moved)
}

func init() {
	RegisterStep("prune-attributes", func(opts Options) StepFunc {
		return func(ctx context.Context, doc *scene.Document) error {
			PruneVrmVertexAttributes(doc)
			return nil
		}
	})
}
