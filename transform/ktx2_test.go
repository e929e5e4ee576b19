package transform

import (
	"context"
	"errors"
	"image/color"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mogaika/vrm_transform/scene"
	"github.com/mogaika/vrm_transform/utils/gltfutils"
)

type fakeEncoder struct {
	mu     sync.Mutex
	fail   map[string]bool
	spaces map[string]string
}

func (e *fakeEncoder) Encode(ctx context.Context, data []byte, mime, colorSpace string) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.fail[string(data)] {
		return nil, errors.New("encoder exploded")
	}
	e.spaces[string(data)] = colorSpace
	return []byte("\xabKTX 20\xbb\r\n\x1a\n" + mime), nil
}

func TestCompressTexturesKTX2(t *testing.T) {
	doc := scene.NewDocument()
	logs := observe(doc)

	base := pngTexture(t, doc, "base", fillImage(2, 2, color.NRGBA{R: 1, A: 255}))
	base.URI = "textures/base.png"
	normal := pngTexture(t, doc, "normal", fillImage(2, 2, color.NRGBA{R: 2, A: 255}))
	broken := pngTexture(t, doc, "broken", fillImage(2, 2, color.NRGBA{R: 3, A: 255}))
	already := doc.CreateTexture("already")
	already.Image = []byte("\xabKTX 20\xbb\r\n\x1a\nold")
	already.MimeType = gltfutils.MimeKTX2
	webp := doc.CreateTexture("webp")
	webp.Image = []byte("RIFF\x00\x00\x00\x00WEBPVP8 ")
	webp.MimeType = gltfutils.MimeWebP
	garbage := doc.CreateTexture("garbage")
	garbage.Image = []byte("not an image")
	garbage.MimeType = gltfutils.MimePNG

	mat := doc.CreateMaterial("m")
	mat.SetTexture(scene.SlotBaseColor, base)
	mat.SetTexture(scene.SlotNormal, normal)
	mat.SetTexture(scene.SlotEmissive, broken)

	brokenData := append([]byte(nil), broken.Image...)
	enc := &fakeEncoder{
		fail:   map[string]bool{string(brokenData): true},
		spaces: make(map[string]string),
	}
	baseData := string(base.Image)
	normalData := string(normal.Image)

	converted, err := CompressTexturesKTX2(context.Background(), doc, enc, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, converted)

	assert.Equal(t, gltfutils.MimeKTX2, base.MimeType)
	assert.Equal(t, "base.ktx2", base.URI)
	assert.Equal(t, gltfutils.MimeKTX2, gltfutils.SniffMime(base.Image))
	assert.Equal(t, gltfutils.MimeKTX2, normal.MimeType)
	assert.Equal(t, "", normal.URI)
	assert.Equal(t, "srgb", enc.spaces[baseData])
	assert.Equal(t, "linear", enc.spaces[normalData])

	assert.Equal(t, gltfutils.MimePNG, broken.MimeType)
	assert.Equal(t, brokenData, broken.Image)
	assert.Equal(t, []byte("\xabKTX 20\xbb\r\n\x1a\nold"), already.Image)
	assert.Equal(t, gltfutils.MimeWebP, webp.MimeType)
	assert.Equal(t, gltfutils.MimePNG, garbage.MimeType)

	assert.Equal(t, 1, logs.FilterMessage("Failed to convert texture to KTX2").Len())
	assert.Equal(t, 1, logs.FilterMessage("Skipping, unsupported texture type").Len())
	assert.Equal(t, 1, logs.FilterMessage("Skipping, unreadable texture").Len())
	assert.Equal(t, 2, logs.FilterMessage("Converted texture to KTX2").Len())
}

func TestKTX2StepUsesConfiguredEncoder(t *testing.T) {
	doc := scene.NewDocument()
	tex := pngTexture(t, doc, "base", fillImage(1, 1, color.NRGBA{A: 255}))
	enc := &fakeEncoder{spaces: make(map[string]string)}

	opts := DefaultOptions()
	opts.Encoder = enc
	steps, err := NewSteps([]string{"ktx2"}, opts)
	require.NoError(t, err)
	require.NoError(t, steps[0].Run(context.Background(), doc))
	assert.Equal(t, gltfutils.MimeKTX2, tex.MimeType)
}

func TestKTX2URI(t *testing.T) {
	assert.Equal(t, "", ktx2URI(""))
	assert.Equal(t, "face.ktx2", ktx2URI("face.png"))
	assert.Equal(t, "face.ktx2", ktx2URI("dir/face.jpeg"))
	assert.Equal(t, "noext.ktx2", ktx2URI("noext"))
}
