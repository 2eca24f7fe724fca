package snaptest

import (
	"flag"
	"log/slog"
	"os"
	"strconv"

	"github.com/theory/jsonpath"

	"github.com/roach88/golden/internal/config"
	"github.com/roach88/golden/internal/logging"
	"github.com/roach88/golden/snapshot"
	"github.com/roach88/golden/store"
	"github.com/roach88/golden/transform"
)

// Option adjusts the settings read from the environment.
type Option func(*settings)

type settings struct {
	cfg      config.Config
	pipeline *transform.Pipeline
	ignore   []*jsonpath.Path
	logger   *slog.Logger
}

// WithPipeline adds the transformers of p.
func WithPipeline(p *transform.Pipeline) Option {
	return func(s *settings) { s.pipeline = s.pipeline.Concat(p) }
}

// WithIgnorePaths excludes paths from every comparison.
func WithIgnorePaths(paths ...*jsonpath.Path) Option {
	return func(s *settings) { s.ignore = append(s.ignore, paths...) }
}

// WithDir overrides GOLDEN_DIR.
func WithDir(dir string) Option {
	return func(s *settings) { s.cfg.Dir = dir }
}

// WithUpdate overrides GOLDEN_UPDATE.
func WithUpdate(update bool) Option {
	return func(s *settings) { s.cfg.Update = update }
}

// WithRaw overrides GOLDEN_RAW.
func WithRaw(raw bool) Option {
	return func(s *settings) { s.cfg.Raw = raw }
}

// WithLegacyReport overrides GOLDEN_LEGACY_REPORT.
func WithLegacyReport(legacy bool) Option {
	return func(s *settings) { s.cfg.LegacyReport = legacy }
}

// WithLocking overrides GOLDEN_LOCK.
func WithLocking(lock bool) Option {
	return func(s *settings) { s.cfg.Lock = lock }
}

// WithLogger replaces the stderr logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) { s.logger = logger }
}

// resolve reads the environment, loads GOLDEN_PIPELINE and applies opts.
func resolve(opts []Option) (*settings, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, err
	}
	s := &settings{cfg: cfg}
	if cfg.PipelineFile != "" {
		p, err := config.LoadPipeline(cfg.PipelineFile)
		if err != nil {
			return nil, err
		}
		s.pipeline = p.Pipeline
		s.ignore = p.IgnorePaths
	}
	for _, opt := range opts {
		opt(s)
	}
	if updateFlag() {
		s.cfg.Update = true
	}
	if s.logger == nil {
		s.logger = logging.New(os.Stderr, logging.Level(s.cfg.Debug))
	}
	return s, nil
}

func (s *settings) sessionOptions() snapshot.Options {
	mode := snapshot.ModeCompare
	if s.cfg.Update {
		mode = snapshot.ModeUpdate
	}
	return snapshot.Options{
		Mode:         mode,
		Raw:          s.cfg.Raw,
		LegacyReport: s.cfg.LegacyReport,
		Pipeline:     s.pipeline,
		IgnorePaths:  s.ignore,
		Store:        store.New(store.WithLocking(s.cfg.Lock), store.WithLogger(s.logger)),
		Logger:       s.logger,
	}
}

// updateFlag reports whether a boolean -update flag, as registered by
// goldie, was set on the command line.
func updateFlag() bool {
	return boolFlag("update")
}

func boolFlag(name string) bool {
	f := flag.Lookup(name)
	if f == nil {
		return false
	}
	v, err := strconv.ParseBool(f.Value.String())
	return err == nil && v
}

func stringFlag(name string) string {
	if f := flag.Lookup(name); f != nil {
		return f.Value.String()
	}
	return ""
}
