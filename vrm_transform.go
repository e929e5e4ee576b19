package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/mogaika/vrm_transform/config"
	"github.com/mogaika/vrm_transform/logger"
	"github.com/mogaika/vrm_transform/scene"
	"github.com/mogaika/vrm_transform/transform"
	"github.com/mogaika/vrm_transform/utils"
	"github.com/mogaika/vrm_transform/utils/gltfutils"
	"github.com/mogaika/vrm_transform/web"
)

type documentSummary struct {
	Info      transform.ModelInfo
	Scenes    int
	Meshes    int
	Skins     []string
	Materials int
	Textures  int
	Accessors int
	Vertices  int
	ArmBones  []armBone
}

type armBone struct {
	Name     string
	Position mgl32.Vec3
	Rotation mgl32.Vec3 // local euler, degrees
}

func summarize(doc *scene.Document) documentSummary {
	root := doc.Root()
	s := documentSummary{
		Info:      transform.GetModelInfo(doc),
		Scenes:    len(root.ListScenes()),
		Meshes:    len(root.ListMeshes()),
		Skins:     make([]string, 0),
		Materials: len(root.ListMaterials()),
		Textures:  len(root.ListTextures()),
		Accessors: len(root.ListAccessors()),
	}
	for _, skin := range root.ListSkins() {
		s.Skins = append(s.Skins, fmt.Sprintf("%s (%d joints)", skin.Name, len(skin.Joints())))
	}
	for _, n := range root.ListNodes() {
		if !transform.IsArmRelated(n.Name) {
			continue
		}
		s.ArmBones = append(s.ArmBones, armBone{
			Name:     n.Name,
			Position: utils.TransformPoint(n.WorldMatrix(), mgl32.Vec3{}),
			Rotation: utils.RadiansToDegreesV3(utils.QuatToEuler(n.Rotation)),
		})
	}
	for _, mesh := range root.ListMeshes() {
		for _, prim := range mesh.Primitives() {
			if pos := prim.Attribute("POSITION"); pos != nil {
				s.Vertices += pos.Count()
			}
		}
	}
	return s
}

func run(ctx context.Context, input, output string, cfg *config.Config, log *zap.Logger, dump bool) error {
	start := time.Now()
	log.Info("Reading VRM file", zap.String("path", input))
	doc, err := gltfutils.ReadFile(input, log)
	if err != nil {
		return err
	}

	transform.LogModelInfo(log, doc)
	if dump {
		fmt.Print(utils.SDump(summarize(doc)))
	}

	steps, err := transform.NewSteps(cfg.Pipeline.Steps, cfg.Options())
	if err != nil {
		return err
	}
	p := &transform.Pipeline{
		Steps: steps,
		OnStep: func(index, total int, name string) {
			log.Info("Running step", zap.String("step", name), zap.Int("index", index+1), zap.Int("total", total))
		},
	}
	if err := p.Run(ctx, doc); err != nil {
		return err
	}

	transform.LogModelInfo(log, doc)
	if dump {
		fmt.Print(utils.SDump(summarize(doc)))
	}

	if dir := filepath.Dir(output); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	log.Info("Writing VRM file", zap.String("path", output))
	wopts := cfg.WriteOptions()
	wopts.Logger = log
	if err := gltfutils.WriteFile(output, doc, wopts); err != nil {
		return err
	}
	log.Info("Done", zap.String("output", output), zap.Duration("took", time.Since(start)))
	return nil
}

func main() {
	var configPath, out, saveConfig string
	var overrides config.Overrides
	var dump bool
	flag.StringVar(&configPath, "config", "", "Path to yaml config, default probes ./"+config.FileName+" and the user config dir")
	flag.StringVar(&out, "out", "", "Output path, default is the input with the configured suffix")
	flag.StringVar(&overrides.Steps, "steps", "", "Comma separated steps to run, available: "+fmt.Sprint(transform.StepNames()))
	flag.StringVar(&overrides.Layout, "layout", "", "Vertex layout: separate or interleaved")
	flag.StringVar(&overrides.LogLevel, "log-level", "", "debug, info, warn or error")
	flag.StringVar(&overrides.LogFile, "log-file", "", "Also log to this file, rotated")
	flag.StringVar(&overrides.Addr, "serve", "", "Start http server on this address instead of processing a file")
	flag.StringVar(&saveConfig, "save-config", "", "Write the effective config to this path and exit")
	flag.BoolVar(&dump, "dump", false, "Print a summary of the document before and after processing")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] <input.vrm>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg.Apply(overrides)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}

	if saveConfig != "" {
		if err := cfg.SaveTo(saveConfig); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	log := logger.New(cfg.LoggerConfig())
	defer log.Sync()

	if overrides.Addr != "" {
		if err := web.StartServer(cfg, log); err != nil {
			log.Error("Server stopped", zap.Error(err))
			os.Exit(1)
		}
		return
	}

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}
	input := flag.Arg(0)
	if out == "" {
		out = cfg.OutputPath(input)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, input, out, cfg, log, dump); err != nil {
		log.Error("Failed to process VRM file", zap.String("path", input), zap.Error(err))
		log.Sync()
		os.Exit(1)
	}
}
