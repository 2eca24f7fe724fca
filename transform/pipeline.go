package transform

import (
	"errors"
	"log/slog"
	"slices"

	"github.com/roach88/golden/canon"
)

// Transformer is one normalization step. The set of implementations is
// closed; Func covers custom logic.
//
// Apply receives a value owned by the pipeline and may modify it in place.
// Shapes a transformer does not claim must be returned unchanged.
type Transformer interface {
	Name() string
	Apply(ctx *Context, v any) (any, error)
	sealed()
}

type entry struct {
	priority int
	seq      int
	t        Transformer
}

// Pipeline is an ordered collection of transformers. A Pipeline must not be
// modified while Apply runs; derive per-test pipelines with With.
type Pipeline struct {
	entries []entry
	seq     int
	logger  *slog.Logger
}

// NewPipeline returns a pipeline running ts at priority 0.
func NewPipeline(ts ...Transformer) *Pipeline {
	p := &Pipeline{}
	return p.Add(ts...)
}

// Add registers transformers at priority 0.
func (p *Pipeline) Add(ts ...Transformer) *Pipeline {
	return p.AddWithPriority(0, ts...)
}

// AddWithPriority registers transformers at the given priority. Lower
// priorities run first.
func (p *Pipeline) AddWithPriority(priority int, ts ...Transformer) *Pipeline {
	for _, t := range ts {
		if t == nil {
			continue
		}
		p.entries = append(p.entries, entry{priority: priority, seq: p.seq, t: t})
		p.seq++
	}
	return p
}

// With returns a copy of p extended with ts. p is left unchanged.
func (p *Pipeline) With(ts ...Transformer) *Pipeline {
	return p.Clone().Add(ts...)
}

// Concat returns a copy of p followed by the transformers of other, which
// keep their priorities. Neither pipeline is changed.
func (p *Pipeline) Concat(other *Pipeline) *Pipeline {
	out := p.Clone()
	for _, e := range other.ordered() {
		out.AddWithPriority(e.priority, e.t)
	}
	return out
}

// Clone returns an independent copy of p.
func (p *Pipeline) Clone() *Pipeline {
	if p == nil {
		return &Pipeline{}
	}
	return &Pipeline{
		entries: slices.Clone(p.entries),
		seq:     p.seq,
		logger:  p.logger,
	}
}

// WithLogger sets the logger transformers report through.
func (p *Pipeline) WithLogger(logger *slog.Logger) *Pipeline {
	p.logger = logger
	return p
}

// Len returns the number of registered transformers.
func (p *Pipeline) Len() int {
	if p == nil {
		return 0
	}
	return len(p.entries)
}

// Names lists transformer names in execution order.
func (p *Pipeline) Names() []string {
	var names []string
	for _, e := range p.ordered() {
		names = append(names, e.t.Name())
	}
	return names
}

func (p *Pipeline) ordered() []entry {
	if p == nil {
		return nil
	}
	ordered := slices.Clone(p.entries)
	slices.SortStableFunc(ordered, func(a, b entry) int {
		if a.priority != b.priority {
			return a.priority - b.priority
		}
		return a.seq - b.seq
	})
	return ordered
}

// Apply normalizes a canonical value. The input is not modified.
func (p *Pipeline) Apply(v any) (any, error) {
	var logger *slog.Logger
	if p != nil {
		logger = p.logger
	}
	return p.ApplyContext(NewContext(logger), v)
}

// ApplyContext is Apply with a caller-supplied context, so references
// registered by earlier calls carry over.
func (p *Pipeline) ApplyContext(ctx *Context, v any) (any, error) {
	out := canon.Clone(v)
	for _, e := range p.ordered() {
		ctx.current = e.t.Name()
		res, err := e.t.Apply(ctx, out)
		if err != nil {
			var te *TransformError
			if errors.As(err, &te) {
				return nil, err
			}
			return nil, &TransformError{Transformer: e.t.Name(), Err: err}
		}
		out = res
	}
	ctx.current = ""
	return ctx.applyRewrites(out, nil)
}
