package transform

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mogaika/vrm_transform/scene"
	"github.com/mogaika/vrm_transform/utils/gltfutils"
)

// Encoder turns a png or jpeg image into a KTX2 container.
// colorSpace is "srgb" or "linear".
type Encoder interface {
	Encode(ctx context.Context, data []byte, mime, colorSpace string) ([]byte, error)
}

// BasisuEncoder runs the basisu command line tool.
type BasisuEncoder struct {
	Path string
}

func (e BasisuEncoder) Encode(ctx context.Context, data []byte, mime, colorSpace string) ([]byte, error) {
	dir, err := os.MkdirTemp("", "vrm_ktx2")
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to create temp dir")
	}
	defer os.RemoveAll(dir)

	ext := ".png"
	if mime == gltfutils.MimeJPEG {
		ext = ".jpg"
	}
	in := filepath.Join(dir, "source"+ext)
	out := filepath.Join(dir, "result.ktx2")
	if err := os.WriteFile(in, data, 0644); err != nil {
		return nil, errors.Wrapf(err, "Failed to write %q", in)
	}

	args := []string{"-ktx2", "-uastc", "-mipmap"}
	if colorSpace != "srgb" {
		args = append(args, "-linear")
	}
	args = append(args, "-output_file", out, in)

	bin := e.Path
	if bin == "" {
		bin = "basisu"
	}
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, errors.Wrapf(err, "Failed to run %s: %s", bin, strings.TrimSpace(stderr.String()))
	}

	result, err := os.ReadFile(out)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to read encoder output")
	}
	return result, nil
}

func ktx2URI(uri string) string {
	if uri == "" {
		return ""
	}
	base := path.Base(uri)
	return strings.TrimSuffix(base, path.Ext(base)) + ".ktx2"
}

type ktx2Job struct {
	tex        *scene.Texture
	label      string
	colorSpace string
	result     []byte
	took       time.Duration
	err        error
}

// CompressTexturesKTX2 re-encodes every png and jpeg texture as KTX2.
// Textures the encoder fails on are logged and left as they were.
// Returns the number of converted textures.
func CompressTexturesKTX2(ctx context.Context, doc *scene.Document, enc Encoder, concurrency int) (int, error) {
	log := doc.Logger().Named("compressTexturesKTX2")
	textures := doc.Root().ListTextures()

	jobs := make([]*ktx2Job, 0, len(textures))
	for i, tex := range textures {
		label := tex.URI
		if label == "" {
			label = tex.Name
		}
		if label == "" {
			label = fmt.Sprintf("%d/%d", i+1, len(textures))
		}
		tlog := log.With(zap.String("texture", label))
		tlog.Debug("Texture slots", zap.Strings("slots", scene.ListTextureSlots(tex)))

		switch tex.MimeType {
		case gltfutils.MimeKTX2:
			tlog.Debug("Skipping, already KTX2")
			continue
		case gltfutils.MimePNG, gltfutils.MimeJPEG:
		default:
			tlog.Warn("Skipping, unsupported texture type", zap.String("mime", tex.MimeType))
			continue
		}
		if _, _, ok := tex.Size(); !ok {
			tlog.Warn("Skipping, unreadable texture")
			continue
		}
		jobs = append(jobs, &ktx2Job{tex: tex, label: label, colorSpace: scene.TextureColorSpace(tex)})
	}

	g, gctx := errgroup.WithContext(ctx)
	if concurrency > 0 {
		g.SetLimit(concurrency)
	}
	for _, job := range jobs {
		job := job
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			start := time.Now()
			job.result, job.err = enc.Encode(gctx, job.tex.Image, job.tex.MimeType, job.colorSpace)
			job.took = time.Since(start)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	converted := 0
	for _, job := range jobs {
		if job.err != nil || len(job.result) == 0 {
			log.Error("Failed to convert texture to KTX2", zap.String("texture", job.label), zap.Error(job.err))
			continue
		}
		job.tex.Image = job.result
		job.tex.MimeType = gltfutils.MimeKTX2
		job.tex.URI = ktx2URI(job.tex.URI)
		converted++
		log.Info("Converted texture to KTX2", zap.String("texture", job.label), zap.Duration("took", job.took))
	}
	return converted, nil
}

func init() {
	RegisterStep("ktx2", func(opts Options) StepFunc {
		return func(ctx context.Context, doc *scene.Document) error {
			enc := opts.Encoder
			if enc == nil {
				enc = BasisuEncoder{Path: "basisu"}
			}
			_, err := CompressTexturesKTX2(ctx, doc, enc, opts.TextureConcurrency)
			return err
		}
	})
}
