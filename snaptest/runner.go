package snaptest

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"sync"
	"testing"

	"github.com/roach88/golden/snapshot"
	"github.com/roach88/golden/store"
)

var (
	activeMu sync.Mutex
	active   *runner
)

func currentRunner() *runner {
	activeMu.Lock()
	defer activeMu.Unlock()
	return active
}

func setRunner(r *runner) {
	activeMu.Lock()
	defer activeMu.Unlock()
	active = r
}

// Run runs the tests of m and flushes every snapshot session they used.
// It returns the exit code for os.Exit; a failed flush turns success into
// failure.
func Run(m *testing.M, opts ...Option) int {
	r := newRunner(opts)
	setRunner(r)
	defer setRunner(nil)

	code := m.Run()
	complete := code == 0 && stringFlag("test.run") == "" && stringFlag("test.skip") == ""
	if err := r.flush(complete, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "snaptest: %v\n", err)
		if code == 0 {
			code = 1
		}
	}
	return code
}

// runner owns one session per snapshot file for the whole test binary.
type runner struct {
	opts []Option

	once     sync.Once
	settings *settings
	err      error

	mu         sync.Mutex
	sessions   map[store.ID]*snapshot.Session
	incomplete map[store.ID]bool
}

func newRunner(opts []Option) *runner {
	return &runner{
		opts:       opts,
		sessions:   make(map[store.ID]*snapshot.Session),
		incomplete: make(map[store.ID]bool),
	}
}

// resolve reads the settings once, after the test flags were parsed.
func (r *runner) resolve() (*settings, error) {
	r.once.Do(func() {
		r.settings, r.err = resolve(r.opts)
	})
	return r.settings, r.err
}

func (r *runner) session(id store.ID) (*snapshot.Session, error) {
	s, err := r.resolve()
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if sess, ok := r.sessions[id]; ok {
		return sess, nil
	}
	sess, err := snapshot.New(id, s.sessionOptions())
	if err != nil {
		return nil, err
	}
	r.sessions[id] = sess
	return sess, nil
}

// markIncomplete stops the file's stale entries from being pruned.
func (r *runner) markIncomplete(id store.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.incomplete[id] = true
}

// flush flushes every session in file order and reports what changed to
// w. All sessions are flushed even when one fails.
func (r *runner) flush(complete bool, w io.Writer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]store.ID, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	var errs []error
	for _, id := range ids {
		sess := r.sessions[id]
		report, err := sess.Flush(complete && !r.incomplete[id])
		if err != nil {
			errs = append(errs, fmt.Errorf("flush %s: %w", id.Path(), err))
			continue
		}
		switch {
		case sess.Mode() == snapshot.ModeUpdate && report.Written:
			fmt.Fprintf(w, "snaptest: %s: updated scopes: %d, pruned entries: %d\n",
				id.Path(), len(report.Updated), len(report.Pruned))
		case len(report.Stale) > 0:
			fmt.Fprintf(w, "snaptest: %s: stale entries not referenced by any test: %d\n",
				id.Path(), len(report.Stale))
		}
	}
	return errors.Join(errs...)
}
