package web

import (
	"bytes"
	"context"
	"net/http"
	"path/filepath"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/mogaika/vrm_transform/config"
	"github.com/mogaika/vrm_transform/status"
	"github.com/mogaika/vrm_transform/transform"
	"github.com/mogaika/vrm_transform/utils/gltfutils"
	"github.com/mogaika/vrm_transform/webutils"
)

type stepsResponse struct {
	Available []string `json:"available"`
	Default   []string `json:"default"`
}

func (s *Server) HandlerSteps(w http.ResponseWriter, r *http.Request) {
	webutils.WriteJson(w, &stepsResponse{
		Available: transform.StepNames(),
		Default:   s.cfg.Pipeline.Steps,
	})
}

func (s *Server) HandlerProcess(w http.ResponseWriter, r *http.Request) {
	data, name, err := webutils.ReadFormFile(r, "data", MaxUploadSize)
	if err != nil {
		webutils.WriteError(w, http.StatusBadRequest, err)
		return
	}
	name = filepath.Base(name)

	cfg := *s.cfg
	cfg.Pipeline.Steps = append([]string(nil), s.cfg.Pipeline.Steps...)
	cfg.Apply(config.Overrides{Steps: r.FormValue("steps")})
	if err := cfg.Validate(); err != nil {
		webutils.WriteError(w, http.StatusBadRequest, err)
		return
	}

	out, err := Process(r.Context(), data, &cfg, s.log.With(zap.String("file", name)), status.StepProgress(name))
	if err != nil {
		status.Error("%s: %v", name, err)
		webutils.WriteError(w, http.StatusUnprocessableEntity, err)
		return
	}
	status.Info("%s: done", name)
	webutils.WriteFile(w, bytes.NewReader(out), config.OutputName(name, cfg.Output.Suffix))
}

// Process runs the configured pipeline over an in-memory avatar and returns it as glb.
func Process(ctx context.Context, data []byte, cfg *config.Config, log *zap.Logger,
	onStep func(index, total int, name string)) ([]byte, error) {
	doc, err := gltfutils.ReadBytes(data, log)
	if err != nil {
		return nil, err
	}

	steps, err := transform.NewSteps(cfg.Pipeline.Steps, cfg.Options())
	if err != nil {
		return nil, err
	}
	transform.LogModelInfo(log, doc)
	p := &transform.Pipeline{Steps: steps, OnStep: onStep}
	if err := p.Run(ctx, doc); err != nil {
		return nil, err
	}
	transform.LogModelInfo(log, doc)

	var buf bytes.Buffer
	wopts := cfg.WriteOptions()
	wopts.Logger = log
	if err := gltfutils.WriteBinary(&buf, doc, wopts); err != nil {
		return nil, errors.Wrapf(err, "Failed to write result")
	}
	return buf.Bytes(), nil
}
