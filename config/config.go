// Package config holds the settings of the cli and the web service.
package config

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/mogaika/vrm_transform/logger"
	"github.com/mogaika/vrm_transform/transform"
	"github.com/mogaika/vrm_transform/utils/gltfutils"
)

const FileName = "vrm_transform.yaml"

type Config struct {
	Pipeline    PipelineConfig    `yaml:"pipeline"`
	Constraints ConstraintsConfig `yaml:"constraints"`
	Output      OutputConfig      `yaml:"output"`
	Textures    TexturesConfig    `yaml:"textures"`
	Web         WebConfig         `yaml:"web"`
	Logging     LoggingConfig     `yaml:"logging"`
}

type PipelineConfig struct {
	Steps []string `yaml:"steps"`
}

type ConstraintsConfig struct {
	SleeveBones  bool   `yaml:"sleeve_bones"`
	InverseBind  string `yaml:"inverse_bind"` // source or identity
	SkipExisting bool   `yaml:"skip_existing"`
}

type OutputConfig struct {
	Suffix       string `yaml:"suffix"`
	VertexLayout string `yaml:"vertex_layout"` // separate or interleaved
	// Dir is empty to write next to the input.
	Dir string `yaml:"dir"`
}

type TexturesConfig struct {
	KTX2Encoder   string `yaml:"ktx2_encoder"`
	Concurrency   int    `yaml:"concurrency"`
	ThumbnailSize int    `yaml:"thumbnail_size"`
}

type WebConfig struct {
	Addr string `yaml:"addr"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

func Default() *Config {
	return &Config{
		Pipeline: PipelineConfig{
			Steps: append([]string(nil), transform.DefaultSteps...),
		},
		Constraints: ConstraintsConfig{
			SleeveBones: true,
			InverseBind: string(transform.InverseBindSource),
		},
		Output: OutputConfig{
			Suffix:       "_with_constraints.vrm",
			VertexLayout: string(gltfutils.LayoutSeparate),
		},
		Textures: TexturesConfig{
			KTX2Encoder:   "basisu",
			Concurrency:   4,
			ThumbnailSize: transform.DefaultThumbnailSize,
		},
		Web: WebConfig{
			Addr: ":8000",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Validate reports the first setting that cannot be turned into options.
func (c *Config) Validate() error {
	if len(c.Pipeline.Steps) == 0 {
		return errors.New("pipeline.steps is empty")
	}
	for _, name := range c.Pipeline.Steps {
		if !transform.IsStep(strings.TrimSpace(name)) {
			return errors.Errorf("pipeline.steps: unknown step %q, known: %s",
				name, strings.Join(transform.StepNames(), ", "))
		}
	}
	if _, err := transform.ParseInverseBindMode(c.Constraints.InverseBind); err != nil {
		return errors.Wrap(err, "constraints.inverse_bind")
	}
	if _, err := gltfutils.ParseVertexLayout(c.Output.VertexLayout); err != nil {
		return errors.Wrap(err, "output.vertex_layout")
	}
	if c.Output.Suffix == "" {
		return errors.New("output.suffix is empty")
	}
	if c.Textures.Concurrency < 1 {
		return errors.Errorf("textures.concurrency must be positive, got %d", c.Textures.Concurrency)
	}
	if c.Textures.ThumbnailSize < 1 {
		return errors.Errorf("textures.thumbnail_size must be positive, got %d", c.Textures.ThumbnailSize)
	}
	if !logger.IsLevel(c.Logging.Level) {
		return errors.Errorf("logging.level: unknown level %q", c.Logging.Level)
	}
	return nil
}

// Options converts a validated config into transform options.
func (c *Config) Options() transform.Options {
	opts := transform.DefaultOptions()
	opts.Constraints.SleeveBones = c.Constraints.SleeveBones
	opts.Constraints.SkipExisting = c.Constraints.SkipExisting
	if mode, err := transform.ParseInverseBindMode(c.Constraints.InverseBind); err == nil {
		opts.Constraints.InverseBind = mode
	}
	opts.TextureConcurrency = c.Textures.Concurrency
	opts.ThumbnailSize = c.Textures.ThumbnailSize
	opts.Encoder = transform.BasisuEncoder{Path: c.Textures.KTX2Encoder}
	return opts
}

func (c *Config) WriteOptions() gltfutils.WriteOptions {
	layout, err := gltfutils.ParseVertexLayout(c.Output.VertexLayout)
	if err != nil {
		layout = gltfutils.LayoutSeparate
	}
	return gltfutils.WriteOptions{Layout: layout, Generator: "vrm_transform"}
}

func (c *Config) LoggerConfig() logger.Config {
	cfg := logger.Config{Level: c.Logging.Level}
	if c.Logging.File != "" {
		cfg.File = logger.DefaultFileConfig(c.Logging.File)
	}
	return cfg
}
