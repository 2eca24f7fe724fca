package snapshot

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/roach88/golden/canon"
	"github.com/roach88/golden/compare"
	"github.com/roach88/golden/store"
	"github.com/roach88/golden/transform"
)

var (
	// ErrDuplicateKey is returned when a key is captured twice in one session.
	ErrDuplicateKey = errors.New("key captured more than once")

	// ErrFlushed is returned by Capture and Flush after Flush ran.
	ErrFlushed = errors.New("session already flushed")
)

// State is the lifecycle position of a Session.
type State int

const (
	StateCapturing State = iota
	StateComparing
	StateUpdating
	StateFlushed
)

func (s State) String() string {
	switch s {
	case StateComparing:
		return "comparing"
	case StateUpdating:
		return "updating"
	case StateFlushed:
		return "flushed"
	default:
		return "capturing"
	}
}

// Outcome is what a Capture call reports back to the test.
type Outcome struct {
	Key    store.Key
	Status compare.Status

	// Passed is false for MISMATCH and NEW in compare mode. Update mode
	// always passes.
	Passed bool

	// Message is the rendered report for a failed comparison.
	Message string

	Result *compare.Result

	// Value is the normalized value.
	Value any
}

// Session owns the working set of one snapshot file for one run. It is
// safe for concurrent use.
type Session struct {
	mu sync.Mutex

	id       store.ID
	opts     Options
	store    *store.Store
	logger   *slog.Logger
	baseline *store.File
	state    State

	entries map[store.Key]any
	raw     map[store.Key]any
	touched map[store.Key]bool
	results []*compare.Result
}

// New opens a session on snapshot file id and loads its baseline. A
// missing file is an empty baseline; a malformed one is an error.
func New(id store.ID, opts Options) (*Session, error) {
	if opts.Store == nil {
		opts.Store = store.New()
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	baseline, err := opts.Store.Read(id)
	if store.IsNotFound(err) {
		baseline, err = store.NewFile(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot baseline: %w", err)
	}

	return &Session{
		id:       id,
		opts:     opts,
		store:    opts.Store,
		logger:   opts.Logger.With("snapshot", id.Path()),
		baseline: baseline,
		entries:  make(map[store.Key]any),
		raw:      make(map[store.Key]any),
		touched:  make(map[store.Key]bool),
	}, nil
}

// ID returns the snapshot file the session works on.
func (s *Session) ID() store.ID { return s.id }

// Mode returns the session mode.
func (s *Session) Mode() Mode { return s.opts.Mode }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Results returns the comparison results of all successful captures in
// call order.
func (s *Session) Results() []*compare.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.results)
}

// Capture normalizes raw and compares it against, or records it as, the
// snapshot entry key. Errors (serialization, transformers, duplicate keys)
// abort this capture only; the key still counts as touched, so its stored
// value survives Flush.
func (s *Session) Capture(key store.Key, raw any, opts ...CaptureOption) (*Outcome, error) {
	var co captureOptions
	for _, opt := range opts {
		opt(&co)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateFlushed {
		return nil, ErrFlushed
	}
	if s.touched[key] {
		return nil, fmt.Errorf("capture %s: %w", key, ErrDuplicateKey)
	}
	s.touched[key] = true
	if s.state == StateCapturing {
		s.state = StateComparing
		if s.opts.Mode == ModeUpdate {
			s.state = StateUpdating
		}
	}

	value, err := canon.FromGo(raw)
	if err != nil {
		return nil, fmt.Errorf("capture %s: %w", key, err)
	}
	value = transform.ExpandJSONObjects(value)
	if s.opts.Raw {
		s.raw[key] = canon.Clone(value)
	}

	pipeline := s.opts.Pipeline
	if co.pipeline.Len() > 0 || len(co.extra) > 0 {
		pipeline = pipeline.Concat(co.pipeline)
		for _, e := range co.extra {
			pipeline.AddWithPriority(e.priority, e.transformers...)
		}
	}
	normalized, err := pipeline.ApplyContext(transform.NewContext(s.logger), value)
	if err != nil {
		delete(s.raw, key)
		return nil, fmt.Errorf("capture %s: %w", key, err)
	}
	s.entries[key] = normalized

	var result *compare.Result
	if expected, ok := s.baseline.Lookup(key); ok {
		ignore := append(slices.Clone(s.opts.IgnorePaths), co.ignore...)
		result = compare.Compare(key.String(), expected, normalized, compare.IgnorePaths(ignore...))
	} else {
		result = compare.NewEntry(key.String(), normalized)
	}
	s.results = append(s.results, result)

	out := &Outcome{
		Key:    key,
		Status: result.Status,
		Passed: true,
		Result: result,
		Value:  normalized,
	}

	if s.opts.Mode == ModeUpdate {
		if !result.Passed() {
			s.logger.Info("recording snapshot entry", "key", key.String(), "status", result.Status)
		}
		return out, nil
	}

	if !result.Passed() {
		out.Passed = false
		if s.opts.LegacyReport {
			out.Message = result.LegacyReport()
		} else {
			out.Message = result.Report()
		}
		s.logger.Warn("snapshot mismatch",
			"key", key.String(),
			"status", result.Status,
			"discrepancies", len(result.Discrepancies))
	}
	return out, nil
}
