package transform

import (
	"bytes"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mogaika/vrm_transform/scene"
	"github.com/mogaika/vrm_transform/utils/gltfutils"
	"github.com/mogaika/vrm_transform/vrm"
)

func TestFitInside(t *testing.T) {
	for _, test := range []struct {
		w, h, limit int
		ew, eh      int
	}{
		{2048, 1024, 1024, 1024, 512},
		{1000, 3000, 1024, 341, 1024},
		{512, 512, 1024, 512, 512},
		{5000, 1, 1024, 1024, 1},
		{300, 200, 0, 300, 200},
	} {
		w, h := fitInside(test.w, test.h, test.limit)
		assert.Equal(t, test.ew, w)
		assert.Equal(t, test.eh, h)
	}
}

func withThumbnail(t *testing.T, img image.Image) (*scene.Document, *scene.Texture) {
	doc := scene.NewDocument()
	tex := pngTexture(t, doc, "thumbnail", img)
	tex.URI = "thumbnail.png"
	v := vrm.NewVrm(doc)
	meta := vrm.NewMeta(doc)
	meta.SetThumbnail(tex)
	v.SetMeta(meta)
	vrm.SetVrm(doc, v)
	return doc, tex
}

func TestOptimizeThumbnail(t *testing.T) {
	doc, tex := withThumbnail(t, fillImage(64, 32, color.NRGBA{R: 200, G: 100, B: 50, A: 255}))

	changed, err := OptimizeThumbnail(doc, 16)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, gltfutils.MimeJPEG, tex.MimeType)
	assert.Equal(t, "thumbnail.jpg", tex.URI)

	cfg, format, err := image.DecodeConfig(bytes.NewReader(tex.Image))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 16, cfg.Width)
	assert.Equal(t, 8, cfg.Height)

	// a small jpeg is left alone
	data := tex.Image
	changed, err = OptimizeThumbnail(doc, 16)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, data, tex.Image)
}

func TestOptimizeThumbnailKeepsSizeWhenSmall(t *testing.T) {
	doc, tex := withThumbnail(t, fillImage(8, 8, color.NRGBA{G: 255, A: 255}))

	changed, err := OptimizeThumbnail(doc, DefaultThumbnailSize)
	require.NoError(t, err)
	assert.True(t, changed)
	w, h, ok := tex.Size()
	require.True(t, ok)
	assert.Equal(t, 8, w)
	assert.Equal(t, 8, h)
	assert.Equal(t, gltfutils.MimeJPEG, tex.MimeType)
}

func TestOptimizeThumbnailWithoutVrm(t *testing.T) {
	doc := scene.NewDocument()
	changed, err := OptimizeThumbnail(doc, DefaultThumbnailSize)
	require.NoError(t, err)
	assert.False(t, changed)
}
