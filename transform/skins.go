package transform

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/mogaika/vrm_transform/scene"
)

type mergedSkin struct {
	skin      *scene.Skin
	boneIndex map[*scene.Node]int
	matrices  []float64
	meshes    map[*scene.Mesh]bool
}

// CombineSkins merges the skins sharing a skeleton root into one skin per
// skeleton. Joints are renumbered in first use order and unweighted slots point
// at joint 0. Replaced skins that no node uses any more are disposed with their
// inverse bind matrices, the old joint accessors are left for Prune.
func CombineSkins(doc *scene.Document) int {
	log := doc.Logger().Named("combineSkins")

	merged := make(map[*scene.Node]*mergedSkin)
	order := make([]*mergedSkin, 0)
	replaced := make([]*scene.Skin, 0)

	for _, skin := range doc.Root().ListSkins() {
		skeleton := skin.Skeleton()
		if skeleton == nil {
			log.Warn("Skipping skin without skeleton", zap.String("skin", skin.Name))
			continue
		}
		ctx, ok := merged[skeleton]
		if !ok {
			newSkin := doc.CreateSkin(skin.Name)
			newSkin.SetSkeleton(skeleton)
			newSkin.SetInverseBindMatrices(doc.CreateAccessor(skin.Name+"_inverseBindMatrices", scene.TypeMat4, scene.ComponentFloat))
			ctx = &mergedSkin{
				skin:      newSkin,
				boneIndex: make(map[*scene.Node]int),
				meshes:    make(map[*scene.Mesh]bool),
			}
			merged[skeleton] = ctx
			order = append(order, ctx)
		}
		replaced = append(replaced, skin)

		for _, node := range skin.ListNodes() {
			mesh := node.Mesh()
			if mesh == nil {
				log.Warn("Skin attached to node without mesh", zap.String("node", node.Name))
				continue
			}
			if !ctx.meshes[mesh] {
				ctx.meshes[mesh] = true
				remapMesh(doc, mesh, skin, ctx)
			} else {
				log.Debug("Mesh already processed for skin", zap.String("mesh", mesh.Name))
			}
			node.SetSkin(ctx.skin)
		}
	}

	for _, ctx := range order {
		ctx.skin.InverseBindMatrices().Array = ctx.matrices
		log.Info("Combined skin", zap.String("skin", ctx.skin.Name), zap.Int("joints", len(ctx.boneIndex)))
	}
	for _, skin := range replaced {
		ibm := skin.InverseBindMatrices()
		if !scene.TreeShake(skin) {
			log.Debug("Replaced skin still in use", zap.String("skin", skin.Name))
			continue
		}
		if ibm != nil {
			scene.TreeShake(ibm)
		}
	}
	return len(order)
}

func remapMesh(doc *scene.Document, mesh *scene.Mesh, src *scene.Skin, ctx *mergedSkin) {
	log := doc.Logger().Named("combineSkins")
	srcJoints := src.Joints()
	for _, prim := range mesh.Primitives() {
		for _, semantic := range prim.Semantics() {
			if !strings.HasPrefix(semantic, "JOINTS_") {
				continue
			}
			weights := prim.Attribute("WEIGHTS_" + strings.TrimPrefix(semantic, "JOINTS_"))
			if weights == nil {
				log.Warn("Joints without weights", zap.String("mesh", mesh.Name), zap.String("attribute", semantic))
				continue
			}
			srcAttr := prim.Attribute(semantic)
			dst := doc.CloneAccessor(srcAttr)
			for i, old := range srcAttr.Array {
				if i >= len(weights.Array) || weights.Array[i] == 0 {
					dst.Array[i] = 0
					continue
				}
				oldIndex := int(old)
				if oldIndex < 0 || oldIndex >= len(srcJoints) {
					log.Warn("Joint index out of range", zap.String("mesh", mesh.Name), zap.Int("index", oldIndex))
					dst.Array[i] = 0
					continue
				}
				bone := srcJoints[oldIndex]
				newIndex, ok := ctx.boneIndex[bone]
				if !ok {
					newIndex = len(ctx.boneIndex)
					ctx.boneIndex[bone] = newIndex
					ctx.skin.AddJoint(bone)
					ctx.matrices = append(ctx.matrices, scene.MatrixToArray(src.InverseBindMatrix(oldIndex))...)
				}
				dst.Array[i] = float64(newIndex)
			}
			prim.SetAttribute(semantic, dst)
		}
	}
}

func init() {
	RegisterStep("combine-skins", func(opts Options) StepFunc {
		return func(ctx context.Context, doc *scene.Document) error {
			CombineSkins(doc)
			return nil
		}
	})
}
