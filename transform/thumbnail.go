package transform

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"path"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/image/draw"

	"github.com/mogaika/vrm_transform/scene"
	"github.com/mogaika/vrm_transform/utils/gltfutils"
	"github.com/mogaika/vrm_transform/vrm"
)

const (
	DefaultThumbnailSize = 1024
	thumbnailQuality     = 90
)

// fitInside scales w x h down, keeping the aspect ratio, until both sides are at most limit.
func fitInside(w, h, limit int) (int, int) {
	if limit <= 0 || (w <= limit && h <= limit) {
		return w, h
	}
	if w >= h {
		nh := h * limit / w
		if nh < 1 {
			nh = 1
		}
		return limit, nh
	}
	nw := w * limit / h
	if nw < 1 {
		nw = 1
	}
	return nw, limit
}

func resize(src image.Image, w, h int) image.Image {
	b := src.Bounds()
	if b.Dx() == w && b.Dy() == h {
		return src
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst
}

// OptimizeThumbnail stores the VRM thumbnail as a JPEG no larger than size on either side.
// Reports whether the thumbnail was rewritten.
func OptimizeThumbnail(doc *scene.Document, size int) (bool, error) {
	log := doc.Logger().Named("optimizeThumbnail")

	v := vrm.GetVrm(doc)
	if v == nil || v.Meta() == nil || v.Meta().Thumbnail() == nil {
		log.Debug("No thumbnail")
		return false, nil
	}
	tex := v.Meta().Thumbnail()

	img, err := decodeTexture(tex)
	if err != nil {
		log.Warn("Cannot decode thumbnail", zap.String("texture", tex.Label()), zap.Error(err))
		return false, nil
	}
	b := img.Bounds()
	w, h := fitInside(b.Dx(), b.Dy(), size)
	if tex.MimeType == gltfutils.MimeJPEG && w == b.Dx() && h == b.Dy() {
		return false, nil
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resize(img, w, h), &jpeg.Options{Quality: thumbnailQuality}); err != nil {
		return false, errors.Wrapf(err, "Failed to encode thumbnail")
	}

	tex.Image = buf.Bytes()
	tex.MimeType = gltfutils.MimeJPEG
	if tex.URI != "" {
		tex.URI = strings.TrimSuffix(tex.URI, path.Ext(tex.URI)) + ".jpg"
	}
	log.Info("Optimized thumbnail",
		zap.Int("fromWidth", b.Dx()), zap.Int("fromHeight", b.Dy()),
		zap.Int("width", w), zap.Int("height", h),
		zap.Int("bytes", buf.Len()))
	return true, nil
}

func init() {
	RegisterStep("thumbnail", func(opts Options) StepFunc {
		return func(ctx context.Context, doc *scene.Document) error {
			_, err := OptimizeThumbnail(doc, opts.ThumbnailSize)
			return err
		}
	})
}
