// Command immersive-scaler measures and rescales avatar documents.
//
// Usage:
//
//	immersive-scaler [-config file] <command> [flags] <avatar>
//
// Commands:
//
//	list     list the avatars in the avatar directory
//	measure  print the proportions of an avatar
//	scale    rescale an avatar with a configured profile
//	scale-all rescale many avatars concurrently
//	build    run the build-time scale configured by the avatar's marker
//	reset    set every local scale of an avatar back to one
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/okian/immersivescaler/internal/adapters/mq/queue"
	"github.com/okian/immersivescaler/internal/adapters/mq/worker"
	"github.com/okian/immersivescaler/internal/adapters/repository"
	"github.com/okian/immersivescaler/internal/app"
	"github.com/okian/immersivescaler/internal/config"
	"github.com/okian/immersivescaler/internal/domain/bonemap"
	"github.com/okian/immersivescaler/internal/domain/measure"
	"github.com/okian/immersivescaler/internal/domain/scaling"
	"github.com/okian/immersivescaler/pkg/logger"
	"github.com/okian/immersivescaler/pkg/metrics"
)

// Exit codes.
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

var (
	errUsage       = errors.New("usage")
	errBatchFailed = errors.New("batch had failures")
)

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// env is what every command needs.
type env struct {
	cfg    *config.Config
	store  *repository.FileStore
	log    logger.Logger
	stdout io.Writer
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	global := flag.NewFlagSet("immersive-scaler", flag.ContinueOnError)
	global.SetOutput(stderr)
	configPath := global.String("config", os.Getenv(config.EnvConfig), "YAML config file")
	global.Usage = func() { usage(stderr, global) }
	if err := global.Parse(args); err != nil {
		return exitUsage
	}
	if global.NArg() == 0 {
		usage(stderr, global)
		return exitUsage
	}

	cfg, err := config.LoadFile(ctx, *configPath)
	if err != nil {
		fmt.Fprintf(stderr, "failed to load config: %v\n", err)
		return exitFailure
	}
	if err := logger.InitWithOptions(logger.Options{Format: cfg.LogFormat, Level: cfg.LogLevel, Writer: stderr}); err != nil {
		fmt.Fprintf(stderr, "failed to initialize logging: %v\n", err)
		return exitFailure
	}
	log := logger.Named("cli")

	resolver, err := newResolver(cfg.BoneTable)
	if err != nil {
		log.Error(ctx, "failed to load bone table", logger.String("path", cfg.BoneTable), logger.Error(err))
		return exitFailure
	}

	cmd, rest := global.Arg(0), global.Args()[1:]
	e := &env{cfg: cfg, log: log, stdout: stdout}
	newStore := func(dir string) {
		e.store = repository.NewFileStore(dir, repository.WithResolver(resolver), repository.WithLogger(logger.Named("store")))
	}

	var cmdErr error
	switch cmd {
	case "list":
		cmdErr = e.list(ctx, rest, newStore)
	case "measure":
		cmdErr = e.measure(ctx, rest, newStore)
	case "scale":
		cmdErr = e.scale(ctx, rest, newStore)
	case "scale-all":
		cmdErr = e.scaleAll(ctx, rest, newStore)
	case "build":
		cmdErr = e.build(ctx, rest, newStore)
	case "reset":
		cmdErr = e.reset(ctx, rest, newStore)
	default:
		fmt.Fprintf(stderr, "unknown command %q\n", cmd)
		usage(stderr, global)
		return exitUsage
	}

	if cfg.MetricsFile != "" {
		if err := metrics.WriteTextfile(cfg.MetricsFile); err != nil {
			log.Warn(ctx, "failed to write metrics", logger.String("path", cfg.MetricsFile), logger.Error(err))
		}
	}

	switch {
	case cmdErr == nil:
		return exitOK
	case errors.Is(cmdErr, errUsage), errors.Is(cmdErr, flag.ErrHelp):
		return exitUsage
	default:
		log.Error(ctx, "command failed", logger.String("command", cmd), logger.Error(cmdErr))
		return exitFailure
	}
}

func usage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintf(w, "usage: %s [-config file] <list|measure|scale|scale-all|build|reset> [flags] [avatar]\n", fs.Name())
	fs.PrintDefaults()
}

func newResolver(tablePath string) (*bonemap.Resolver, error) {
	if tablePath == "" {
		return bonemap.NewResolver(), nil
	}
	f, err := os.Open(tablePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	t, err := bonemap.ReadTable(f)
	if err != nil {
		return nil, err
	}
	return bonemap.NewResolver(bonemap.WithTable(t)), nil
}

// flags starts a subcommand flag set carrying -dir.
func (e *env) flags(name string) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	dir := fs.String("dir", e.cfg.AvatarDir, "avatar directory")
	return fs, dir
}

// parse parses args and returns the single avatar name.
func parse(fs *flag.FlagSet, args []string) (string, error) {
	if err := fs.Parse(args); err != nil {
		return "", fmt.Errorf("%w: %w", errUsage, err)
	}
	if fs.NArg() != 1 {
		return "", fmt.Errorf("%w: %s needs exactly one avatar name", errUsage, fs.Name())
	}
	return fs.Arg(0), nil
}

func (e *env) print(v any) error {
	enc := yaml.NewEncoder(e.stdout)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

func (e *env) list(ctx context.Context, args []string, open func(string)) error {
	fs, dir := e.flags("list")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}
	open(*dir)
	names, err := e.store.List(ctx)
	if err != nil {
		return err
	}
	for _, n := range names {
		fmt.Fprintln(e.stdout, n)
	}
	return nil
}

func (e *env) measure(ctx context.Context, args []string, open func(string)) error {
	fs, dir := e.flags("measure")
	arm := e.cfg.Scaling.ArmToHeightRatioMethod
	height := e.cfg.Scaling.ArmToHeightHeightMethod
	fs.TextVar(&arm, "arm", arm, "arm measurement for ratios")
	fs.TextVar(&height, "height", height, "height measurement for ratios")
	boneFloor := fs.Bool("bone-floor", e.cfg.Scaling.UseBoneBasedFloor, "derive the floor from foot bones instead of meshes")
	name, err := parse(fs, args)
	if err != nil {
		return err
	}
	open(*dir)

	s, err := e.session(ctx, name)
	if err != nil {
		return err
	}
	report := s.Measure(ctx, measure.ReportOptions{
		Arm:       arm,
		Height:    height,
		UpperBody: e.cfg.Scaling.UpperBodyMethod(),
	}, measure.WithBoneBasedFloor(*boneFloor))
	return e.print(report)
}

// scaleFlags holds the parameter flags shared by scale and scale-all.
type scaleFlags struct {
	profile  *string
	target   *float64
	populate *bool
}

func (e *env) addScaleFlags(fs *flag.FlagSet) scaleFlags {
	return scaleFlags{
		profile:  fs.String("profile", "", "named scaling profile from the config"),
		target:   fs.Float64("target", 0, "target height in metres, overrides the profile"),
		populate: fs.Bool("autopopulate", false, "derive ratios from the avatar before scaling"),
	}
}

// scaleOne loads name, scales it with p and saves it under out.
func (e *env) scaleOne(ctx context.Context, f scaleFlags, p scaling.Parameters, name, out string) (scaling.Result, error) {
	s, err := e.session(ctx, name)
	if err != nil {
		return scaling.Result{}, err
	}
	if *f.populate {
		p = s.AutoPopulate(p)
	}
	if *f.target > 0 {
		p.TargetHeight = *f.target
	}

	res, err := s.Run(ctx, app.NewTransientProvider(p, e.cfg.PostProcess))
	if err != nil {
		return res, err
	}
	return res, e.store.Save(ctx, outName(name, out), s.Avatar())
}

func (e *env) scale(ctx context.Context, args []string, open func(string)) error {
	fs, dir := e.flags("scale")
	f := e.addScaleFlags(fs)
	out := fs.String("out", "", "save under this name instead of overwriting")
	name, err := parse(fs, args)
	if err != nil {
		return err
	}
	open(*dir)

	p, err := e.cfg.Profile(*f.profile)
	if err != nil {
		return err
	}
	res, err := e.scaleOne(ctx, f, p, name, *out)
	if err != nil {
		return err
	}
	return e.print(res)
}

// batchLine is one row of the scale-all report.
type batchLine struct {
	Name       string  `yaml:"name"`
	Saved      string  `yaml:"saved,omitempty"`
	Error      string  `yaml:"error,omitempty"`
	DurationMs float64 `yaml:"duration_ms"`
}

func (e *env) scaleAll(ctx context.Context, args []string, open func(string)) error {
	fs, dir := e.flags("scale-all")
	f := e.addScaleFlags(fs)
	suffix := fs.String("suffix", "", "save each avatar under its name plus this suffix")
	workers := fs.Int("workers", e.cfg.Workers, "concurrent jobs, zero for one per CPU")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}
	open(*dir)

	p, err := e.cfg.Profile(*f.profile)
	if err != nil {
		return err
	}
	names := fs.Args()
	if len(names) == 0 {
		if names, err = e.store.List(ctx); err != nil {
			return err
		}
	}

	q := queue.NewInMemoryQueue(queue.WithCapacity(max(len(names), 1)))
	for i, n := range names {
		j := queue.Job{Seq: i, Name: n}
		if *suffix != "" {
			j.Out = n + *suffix
		}
		if err := q.Enqueue(ctx, j); err != nil {
			return err
		}
	}

	pool := worker.NewPool(*workers, q, worker.ProcessorFunc(func(ctx context.Context, j worker.Job) error {
		_, err := e.scaleOne(ctx, f, p, j.Name, j.Out)
		return err
	}))
	e.log.Info(ctx, "batch started", logger.Int("jobs", len(names)), logger.Int("workers", pool.Size()))
	pool.Start(ctx)
	outcomes, err := pool.Wait(ctx)
	if err != nil {
		return err
	}

	lines := make([]batchLine, 0, len(outcomes))
	failed := 0
	for _, o := range outcomes {
		l := batchLine{Name: o.Job.Name, DurationMs: float64(o.Duration) / float64(time.Millisecond)}
		if o.Err != nil {
			failed++
			l.Error = o.Err.Error()
		} else {
			l.Saved = o.Job.Target()
		}
		lines = append(lines, l)
	}
	if err := e.print(lines); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d", errBatchFailed, failed, len(outcomes))
	}
	return nil
}

func (e *env) build(ctx context.Context, args []string, open func(string)) error {
	fs, dir := e.flags("build")
	out := fs.String("out", "", "save under this name instead of overwriting")
	name, err := parse(fs, args)
	if err != nil {
		return err
	}
	open(*dir)

	s, err := e.session(ctx, name)
	if err != nil {
		return err
	}
	res, err := s.Build(ctx)
	if err != nil {
		return err
	}
	if err := e.store.Save(ctx, outName(name, *out), s.Avatar()); err != nil {
		return err
	}
	return e.print(res)
}

func (e *env) reset(ctx context.Context, args []string, open func(string)) error {
	fs, dir := e.flags("reset")
	out := fs.String("out", "", "save under this name instead of overwriting")
	name, err := parse(fs, args)
	if err != nil {
		return err
	}
	open(*dir)

	s, err := e.session(ctx, name)
	if err != nil {
		return err
	}
	n := s.ResetScales(ctx)
	if err := e.store.Save(ctx, outName(name, *out), s.Avatar()); err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "reset %d nodes\n", n)
	return nil
}

func (e *env) session(ctx context.Context, name string) (*app.Session, error) {
	a, err := e.store.Load(ctx, name)
	if err != nil {
		return nil, err
	}
	return app.NewSession(a, app.WithLogger(logger.Named("session")))
}

func outName(name, out string) string {
	if out != "" {
		return out
	}
	return name
}
