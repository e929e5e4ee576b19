package transform

import (
	"bytes"
	"context"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"

	"github.com/mogaika/vrm_transform/graph"
	"github.com/mogaika/vrm_transform/scene"
	"github.com/mogaika/vrm_transform/utils"
	"github.com/mogaika/vrm_transform/vrm"
)

// SolidTolerance is the largest spread, as a 0..1 RGBA distance, a texture may have to count as solid.
const SolidTolerance = 3.0 / 255.0

// SolidColor reports the representative colour of img, in 0..1, when every
// pixel lies within SolidTolerance of every other.
func SolidColor(img image.Image) (mgl32.Vec4, bool) {
	b := img.Bounds()
	if b.Empty() {
		return mgl32.Vec4{}, false
	}
	lo := mgl32.Vec4{255, 255, 255, 255}
	hi := mgl32.Vec4{}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := utils.NRGBAToVec4(img.At(x, y))
			for k := 0; k < 4; k++ {
				if c[k] < lo[k] {
					lo[k] = c[k]
				}
				if c[k] > hi[k] {
					hi[k] = c[k]
				}
			}
		}
		if hi.Sub(lo).Len()/255 > SolidTolerance {
			return mgl32.Vec4{}, false
		}
	}
	return hi.Add(lo).Mul(0.5 / 255), true
}

func decodeTexture(tex *scene.Texture) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(tex.Image))
	return img, err
}

// PruneSolidMToonTextures folds textures of a single colour into the MToon
// factors they modulate and removes the ones left without users.
func PruneSolidMToonTextures(ctx context.Context, doc *scene.Document, concurrency int) (int, error) {
	log := doc.Logger().Named("pruneSolidMToonTextures")

	for _, tex := range doc.Root().ListTextures() {
		scene.TreeShake(tex)
	}
	textures := doc.Root().ListTextures()

	factors := make([]*mgl32.Vec4, len(textures))
	g, gctx := errgroup.WithContext(ctx)
	if concurrency > 0 {
		g.SetLimit(concurrency)
	}
	for i, tex := range textures {
		i, tex := i, tex
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			img, err := decodeTexture(tex)
			if err != nil {
				log.Debug("Cannot decode texture", zap.String("texture", tex.Label()), zap.Error(err))
				return nil
			}
			if f, ok := SolidColor(img); ok {
				factors[i] = &f
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	removed := 0
	for i, tex := range textures {
		if factors[i] == nil {
			continue
		}
		factor := *factors[i]
		if scene.TextureColorSpace(tex) == "srgb" {
			factor = utils.SRGBToLinearColor(factor)
		}
		name := tex.Label()
		slots := scene.ListTextureSlots(tex)
		w, h, _ := tex.Size()

		for _, e := range tex.Graph().ListParentEdges(tex) {
			if e.Parent.Kind() == scene.KindRoot {
				continue
			}
			if applyMaterialFactor(e.Parent, factor, e.Name) {
				tex.Graph().Unlink(e)
			}
		}

		if parents := tex.ListParents(); len(parents) == 1 && parents[0].Kind() == scene.KindRoot {
			tex.Dispose()
			removed++
			log.Info("Removed solid-color texture",
				zap.String("texture", name),
				zap.Int("width", w), zap.Int("height", h),
				zap.String("slots", strings.Join(slots, ", ")))
		}
	}
	return removed, nil
}

func applyMaterialFactor(p graph.Property, factor mgl32.Vec4, slot string) bool {
	if p.Kind() != vrm.KindMToon {
		return false
	}
	m := p.(*vrm.MToon)
	switch slot {
	case vrm.SlotShadeMultiply.Name:
		m.ShadeColorFactor = mgl32.Vec3{
			m.ShadeColorFactor[0] * factor[0],
			m.ShadeColorFactor[1] * factor[1],
			m.ShadeColorFactor[2] * factor[2],
		}
		return true
	case vrm.SlotMatcap.Name:
		// a missing matcap reads as black, so only black can go
		return factor.Sub(mgl32.Vec4{0, 0, 0, 1}).Len() <= SolidTolerance
	case vrm.SlotShadingShift.Name:
		m.ShadingShiftFactor += factor[0] * m.ShadingShiftTextureScale
		return true
	case vrm.SlotOutlineWidthMultiply.Name:
		m.OutlineWidthFactor *= factor[1]
		return true
	case vrm.SlotUvAnimationMask.Name:
		m.UvAnimationRotationSpeedFactor *= factor[2]
		m.UvAnimationScrollXSpeedFactor *= factor[2]
		m.UvAnimationScrollYSpeedFactor *= factor[2]
		return true
	}
	return false
}

func init() {
	RegisterStep("prune-solid-textures", func(opts Options) StepFunc {
		return func(ctx context.Context, doc *scene.Document) error {
			_, err := PruneSolidMToonTextures(ctx, doc, opts.TextureConcurrency)
			return err
		}
	})
}
