package snapshot

import (
	"log/slog"
	"time"

	"github.com/theory/jsonpath"

	"github.com/roach88/golden/store"
	"github.com/roach88/golden/transform"
)

// Mode selects what Capture does with a normalized value.
type Mode int

const (
	// ModeCompare checks captures against the stored snapshot.
	ModeCompare Mode = iota
	// ModeUpdate records captures as the new snapshot.
	ModeUpdate
)

func (m Mode) String() string {
	if m == ModeUpdate {
		return "update"
	}
	return "compare"
}

// Options configure a Session.
type Options struct {
	Mode Mode

	// Raw keeps the untransformed values and writes them to the raw
	// sibling file on Flush.
	Raw bool

	// LegacyReport renders mismatch messages in the flat legacy format.
	LegacyReport bool

	// Pipeline normalizes every capture. Nil means no transformers.
	Pipeline *transform.Pipeline

	// IgnorePaths are excluded from every comparison.
	IgnorePaths []*jsonpath.Path

	// Store persists the snapshot file. Nil means store.New().
	Store *store.Store

	Logger *slog.Logger

	// Now stamps recorded dates. Nil means time.Now.
	Now func() time.Time
}

// CaptureOption adjusts a single Capture call.
type CaptureOption func(*captureOptions)

type prioritized struct {
	priority     int
	transformers []transform.Transformer
}

type captureOptions struct {
	ignore   []*jsonpath.Path
	extra    []prioritized
	pipeline *transform.Pipeline
}

// IgnorePaths excludes paths from this comparison only.
func IgnorePaths(paths ...*jsonpath.Path) CaptureOption {
	return func(o *captureOptions) { o.ignore = append(o.ignore, paths...) }
}

// WithTransformers runs additional transformers, after the session
// pipeline's transformers of the same priority, for this capture only.
func WithTransformers(ts ...transform.Transformer) CaptureOption {
	return WithTransformersAt(0, ts...)
}

// WithPipeline runs the transformers of p, with their priorities, in
// addition to the session pipeline for this capture only.
func WithPipeline(p *transform.Pipeline) CaptureOption {
	return func(o *captureOptions) { o.pipeline = o.pipeline.Concat(p) }
}

// WithTransformersAt is WithTransformers at an explicit priority.
func WithTransformersAt(priority int, ts ...transform.Transformer) CaptureOption {
	return func(o *captureOptions) {
		o.extra = append(o.extra, prioritized{priority: priority, transformers: ts})
	}
}
