// Package transform holds the document transforms applied to VRM avatars and
// the pipeline that runs them in order.
package transform

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/mogaika/vrm_transform/scene"
	"github.com/mogaika/vrm_transform/vrm"
)

// StepFunc mutates doc in place. Soft failures are logged, only fatal ones are returned.
type StepFunc func(ctx context.Context, doc *scene.Document) error

type StepFactory func(opts Options) StepFunc

type Step struct {
	Name string
	Run  StepFunc
}

// Options configures the steps built by NewSteps.
type Options struct {
	Constraints        ConstraintOptions
	TextureConcurrency int
	ThumbnailSize      int
	Encoder            Encoder
}

func DefaultOptions() Options {
	return Options{
		Constraints:        DefaultConstraintOptions(),
		TextureConcurrency: 4,
		ThumbnailSize:      DefaultThumbnailSize,
	}
}

var gSteps = make(map[string]StepFactory)

func RegisterStep(name string, factory StepFactory) {
	gSteps[name] = factory
}

// StepNames lists registered steps alphabetically.
func StepNames() []string {
	names := make([]string, 0, len(gSteps))
	for name := range gSteps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func IsStep(name string) bool {
	_, ok := gSteps[name]
	return ok
}

// DefaultSteps is the order used when nothing else is configured.
var DefaultSteps = []string{
	"combine-skins",
	"constraints",
	"weights",
	"prune-springbones",
	"prune-morphs",
	"prune-attributes",
	"prune-solid-textures",
	"prune",
	"thumbnail",
}

func NewSteps(names []string, opts Options) ([]Step, error) {
	steps := make([]Step, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		factory, ok := gSteps[name]
		if !ok {
			return nil, errors.Errorf("Unknown step %q", name)
		}
		steps = append(steps, Step{Name: name, Run: factory(opts)})
	}
	return steps, nil
}

type Pipeline struct {
	Steps []Step
	// OnStep is called before every step with its zero based position.
	OnStep func(index, total int, name string)
}

func (p *Pipeline) Run(ctx context.Context, doc *scene.Document) error {
	log := doc.Logger()
	for i, step := range p.Steps {
		if err := ctx.Err(); err != nil {
			return errors.Wrapf(err, "Pipeline interrupted before %q", step.Name)
		}
		if p.OnStep != nil {
			p.OnStep(i, len(p.Steps), step.Name)
		}
		start := time.Now()
		if err := step.Run(ctx, doc); err != nil {
			return errors.Wrapf(err, "Failed step %q", step.Name)
		}
		log.Debug("Step done", zap.String("step", step.Name), zap.Duration("took", time.Since(start)))
	}
	return nil
}

// ModelInfo is a short census of the rig, logged before and after processing.
type ModelInfo struct {
	Nodes           int
	ConstraintNodes int
	ArmNodes        int
}

// IsArmRelated matches the bone names counted by ModelInfo.ArmNodes.
func IsArmRelated(name string) bool {
	for _, part := range []string{"Arm", "Roll", "Aim", "Sec_"} {
		if strings.Contains(name, part) {
			return true
		}
	}
	return false
}

func GetModelInfo(doc *scene.Document) ModelInfo {
	var info ModelInfo
	for _, n := range doc.Root().ListNodes() {
		info.Nodes++
		if vrm.GetNodeConstraint(n) != nil {
			info.ConstraintNodes++
		}
		if IsArmRelated(n.Name) {
			info.ArmNodes++
		}
	}
	return info
}

func LogModelInfo(log *zap.Logger, doc *scene.Document) {
	info := GetModelInfo(doc)
	log.Info("Model info",
		zap.Int("nodes", info.Nodes),
		zap.Int("constraintNodes", info.ConstraintNodes),
		zap.Int("armNodes", info.ArmNodes))

	if !log.Core().Enabled(zap.DebugLevel) {
		return
	}
	for _, n := range doc.Root().ListNodes() {
		if !IsArmRelated(n.Name) {
			continue
		}
		fields := []zap.Field{zap.String("node", n.Name), zap.Int("children", len(n.Children()))}
		if c := vrm.GetNodeConstraint(n); c != nil {
			if src := c.Source(); src != nil {
				fields = append(fields, zap.String("source", src.Name))
			}
			fields = append(fields,
				zap.String("roll", string(c.RollAxis())),
				zap.String("aim", string(c.AimAxis())),
				zap.Float32("weight", c.Weight))
		}
		log.Debug("Arm bone", fields...)
	}
}
