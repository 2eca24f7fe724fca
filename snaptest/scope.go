package snaptest

import (
	"runtime"
	"testing"

	"github.com/theory/jsonpath"

	"github.com/roach88/golden/snapshot"
	"github.com/roach88/golden/store"
	"github.com/roach88/golden/transform"
)

// Scope matches values for one test. Its entries are stored under the
// test's name.
type Scope struct {
	t        testing.TB
	session  *snapshot.Session
	name     string
	pipeline *transform.Pipeline
	ignore   []*jsonpath.Path
}

// New returns the Scope of t. The snapshot file is derived from the source
// file calling New.
//
// Under Run the run's settings own the snapshot file and only WithPipeline
// and WithIgnorePaths from opts apply. Without Run, New opens a session of
// its own and flushes it when the test ends, never pruning.
func New(t testing.TB, opts ...Option) *Scope {
	t.Helper()

	_, file, _, ok := runtime.Caller(1)
	if !ok {
		t.Fatalf("snaptest: cannot determine the calling test file")
	}
	return newScope(t, file, opts)
}

func newScope(t testing.TB, file string, opts []Option) *Scope {
	t.Helper()

	sc := &Scope{t: t, name: t.Name(), pipeline: transform.NewPipeline()}

	if r := currentRunner(); r != nil {
		s, err := r.resolve()
		if err != nil {
			t.Fatalf("snaptest: %v", err)
		}
		id := store.FileID(s.cfg.Dir, file)
		sess, err := r.session(id)
		if err != nil {
			t.Fatalf("snaptest: %v", err)
		}
		local := &settings{}
		for _, opt := range opts {
			opt(local)
		}
		sc.session = sess
		sc.pipeline = sc.pipeline.Concat(local.pipeline)
		sc.ignore = local.ignore
		t.Cleanup(func() {
			if t.Skipped() {
				r.markIncomplete(id)
			}
		})
		return sc
	}

	s, err := resolve(opts)
	if err != nil {
		t.Fatalf("snaptest: %v", err)
	}
	sess, err := snapshot.New(store.FileID(s.cfg.Dir, file), s.sessionOptions())
	if err != nil {
		t.Fatalf("snaptest: %v", err)
	}
	sc.session = sess
	t.Cleanup(func() {
		if _, err := sess.Flush(false); err != nil {
			t.Errorf("snaptest: %v", err)
		}
	})
	return sc
}

// Add registers transformers for this test's captures.
func (s *Scope) Add(ts ...transform.Transformer) *Scope {
	s.pipeline.Add(ts...)
	return s
}

// AddWithPriority registers transformers at priority for this test's
// captures.
func (s *Scope) AddWithPriority(priority int, ts ...transform.Transformer) *Scope {
	s.pipeline.AddWithPriority(priority, ts...)
	return s
}

// Skip excludes JSONPath expressions from this test's comparisons. An
// invalid expression fails the test.
func (s *Scope) Skip(exprs ...string) *Scope {
	s.t.Helper()
	for _, expr := range exprs {
		p, err := jsonpath.Parse(expr)
		if err != nil {
			s.t.Fatalf("snaptest: skip path %q: %v", expr, err)
		}
		s.ignore = append(s.ignore, p)
	}
	return s
}

// Match captures v under name and reports a test error when it does not
// match the snapshot. It returns whether it matched.
func (s *Scope) Match(name string, v any) bool {
	s.t.Helper()

	out, err := s.session.Capture(store.Key{Scope: s.name, Name: name}, v,
		snapshot.WithPipeline(s.pipeline),
		snapshot.IgnorePaths(s.ignore...))
	if err != nil {
		s.t.Errorf("snapshot %q: %v", name, err)
		return false
	}
	if !out.Passed {
		s.t.Errorf("snapshot %q does not match:\n%s", name, out.Message)
	}
	return out.Passed
}

// Session returns the session the scope captures into.
func (s *Scope) Session() *snapshot.Session {
	return s.session
}
