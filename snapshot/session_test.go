package snapshot

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/golden/canon"
	"github.com/roach88/golden/compare"
	"github.com/roach88/golden/internal/testutil"
	"github.com/roach88/golden/store"
	"github.com/roach88/golden/transform"
)

type harness struct {
	t     *testing.T
	id    store.ID
	clock *testutil.DeterministicClock
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return &harness{
		t:     t,
		id:    store.ID(filepath.Join(t.TempDir(), "snapshots", "users_test")),
		clock: testutil.NewDeterministicClock(time.Time{}, time.Hour),
	}
}

func (h *harness) session(mode Mode, opts ...func(*Options)) *Session {
	h.t.Helper()
	o := Options{
		Mode:     mode,
		Pipeline: transform.NewPipeline(transform.KeyValue("id", "req-id"), transform.Datetime("timestamp")),
		Now:      h.clock.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	s, err := New(h.id, o)
	require.NoError(h.t, err)
	return s
}

func (h *harness) record(scope string, values map[string]any) {
	h.t.Helper()
	s := h.session(ModeUpdate)
	for name, v := range values {
		_, err := s.Capture(store.Key{Scope: scope, Name: name}, v)
		require.NoError(h.t, err)
	}
	_, err := s.Flush(false)
	require.NoError(h.t, err)
}

func (h *harness) read() *store.File {
	h.t.Helper()
	f, err := store.New().Read(h.id)
	require.NoError(h.t, err)
	return f
}

func key(scope, name string) store.Key {
	return store.Key{Scope: scope, Name: name}
}

func TestCapture_RequestIDExample(t *testing.T) {
	h := newHarness(t)
	s := h.session(ModeUpdate)

	out, err := s.Capture(key("TestReq", "response"), map[string]any{
		"id":  "req-abc123",
		"ts":  "2024-01-01T00:00:00Z",
		"id2": "req-abc123",
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"id":  "<req-id:1>",
		"ts":  "<timestamp>",
		"id2": "<req-id:1>",
	}, out.Value)
	assert.True(t, out.Passed)
	assert.Equal(t, compare.StatusNew, out.Status)
}

func TestUpdateThenCompare_Match(t *testing.T) {
	h := newHarness(t)
	h.record("TestUsers", map[string]any{"user": map[string]any{"id": "u-1", "name": "alice"}})

	s := h.session(ModeCompare)
	out, err := s.Capture(key("TestUsers", "user"), map[string]any{"id": "u-2", "name": "alice"})
	require.NoError(t, err)

	assert.Equal(t, compare.StatusMatch, out.Status)
	assert.True(t, out.Passed)
	assert.Empty(t, out.Message)
	assert.Empty(t, out.Result.Discrepancies)
}

func TestCompare_NestedMismatch(t *testing.T) {
	h := newHarness(t)
	h.record("TestUsers", map[string]any{"user": map[string]any{"profile": map[string]any{"age": 30, "city": "Oslo"}}})

	s := h.session(ModeCompare)
	out, err := s.Capture(key("TestUsers", "user"), map[string]any{"profile": map[string]any{"age": 31, "city": "Oslo"}})
	require.NoError(t, err)

	assert.Equal(t, compare.StatusMismatch, out.Status)
	assert.False(t, out.Passed)
	require.Len(t, out.Result.Discrepancies, 1)
	assert.Equal(t, "$.profile.age", out.Result.Discrepancies[0].Path.String())
	assert.Contains(t, out.Message, ">> match key: TestUsers::user")
	assert.Contains(t, out.Message, "(~) $.profile.age 30 → 31")
}

func TestCompare_LegacyReport(t *testing.T) {
	h := newHarness(t)
	h.record("TestUsers", map[string]any{"user": map[string]any{"name": "John"}})

	s := h.session(ModeCompare, func(o *Options) { o.LegacyReport = true })
	out, err := s.Capture(key("TestUsers", "user"), map[string]any{"name": "Jane"})
	require.NoError(t, err)

	assert.Equal(t, "Value of root['name'] changed from \"John\" to \"Jane\".\n", out.Message)
}

func TestCompare_NewEntryFails(t *testing.T) {
	h := newHarness(t)
	s := h.session(ModeCompare)

	out, err := s.Capture(key("TestUsers", "fresh"), map[string]any{"a": 1})
	require.NoError(t, err)

	assert.Equal(t, compare.StatusNew, out.Status)
	assert.False(t, out.Passed)
	assert.Contains(t, out.Message, "no snapshot recorded")
}

func TestUpdate_AlwaysPassesAndPersists(t *testing.T) {
	h := newHarness(t)
	h.record("TestUsers", map[string]any{"user": map[string]any{"name": "alice"}})

	s := h.session(ModeUpdate)
	out, err := s.Capture(key("TestUsers", "user"), map[string]any{"name": "bob", "id": "x-9"})
	require.NoError(t, err)
	assert.True(t, out.Passed)
	assert.Equal(t, compare.StatusMismatch, out.Status)

	report, err := s.Flush(false)
	require.NoError(t, err)
	assert.True(t, report.Written)
	assert.Equal(t, []string{"TestUsers"}, report.Updated)

	v, ok := h.read().Lookup(key("TestUsers", "user"))
	require.True(t, ok)
	assert.Equal(t, map[string]any{"name": "bob", "id": "<req-id:1>"}, v)
}

func TestCompare_DoesNotWrite(t *testing.T) {
	h := newHarness(t)
	h.record("TestUsers", map[string]any{"user": "alice"})
	before, err := os.ReadFile(h.id.Path())
	require.NoError(t, err)

	s := h.session(ModeCompare)
	_, err = s.Capture(key("TestUsers", "user"), "bob")
	require.NoError(t, err)
	report, err := s.Flush(true)
	require.NoError(t, err)
	assert.False(t, report.Written)

	after, err := os.ReadFile(h.id.Path())
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
}

func TestFlush_PruneOnlyWhenComplete(t *testing.T) {
	h := newHarness(t)
	h.record("TestKept", map[string]any{"v": 1})
	h.record("TestRemoved", map[string]any{"v": 2})

	partial := h.session(ModeUpdate)
	_, err := partial.Capture(key("TestKept", "v"), 1)
	require.NoError(t, err)
	report, err := partial.Flush(false)
	require.NoError(t, err)
	assert.Empty(t, report.Pruned)
	assert.Equal(t, []store.Key{key("TestKept", "v"), key("TestRemoved", "v")}, h.read().Keys())

	full := h.session(ModeUpdate)
	_, err = full.Capture(key("TestKept", "v"), 1)
	require.NoError(t, err)
	report, err = full.Flush(true)
	require.NoError(t, err)
	assert.Equal(t, []store.Key{key("TestRemoved", "v")}, report.Pruned)
	assert.True(t, report.Written)
	assert.Equal(t, []store.Key{key("TestKept", "v")}, h.read().Keys())
}

func TestFlush_TouchedScopeIsReplaced(t *testing.T) {
	h := newHarness(t)
	h.record("TestUsers", map[string]any{"a": 1, "b": 2})

	s := h.session(ModeUpdate)
	_, err := s.Capture(key("TestUsers", "a"), 1)
	require.NoError(t, err)
	report, err := s.Flush(false)
	require.NoError(t, err)

	assert.Equal(t, []store.Key{key("TestUsers", "b")}, report.Pruned)
	assert.Equal(t, []store.Key{key("TestUsers", "a")}, h.read().Keys())
}

func TestCompare_ReportsStaleEntries(t *testing.T) {
	h := newHarness(t)
	h.record("TestUsers", map[string]any{"a": 1, "b": 2})
	h.record("TestOther", map[string]any{"c": 3})

	s := h.session(ModeCompare)
	_, err := s.Capture(key("TestUsers", "a"), 1)
	require.NoError(t, err)

	report, err := s.Flush(false)
	require.NoError(t, err)
	assert.Equal(t, []store.Key{key("TestUsers", "b")}, report.Stale)
	assert.Empty(t, report.Pruned)
}

func TestFlush_RecordedDateOnlyChangesWithContent(t *testing.T) {
	h := newHarness(t)
	h.record("TestUsers", map[string]any{"user": "alice"})
	first := h.read().Scopes["TestUsers"].RecordedDate
	assert.Equal(t, "13-07-2022, 13:48:01", first)

	h.record("TestUsers", map[string]any{"user": "alice"})
	assert.Equal(t, first, h.read().Scopes["TestUsers"].RecordedDate)

	h.record("TestUsers", map[string]any{"user": "bob"})
	assert.Equal(t, "13-07-2022, 15:48:01", h.read().Scopes["TestUsers"].RecordedDate)
}

func TestFlush_RawSibling(t *testing.T) {
	h := newHarness(t)
	s := h.session(ModeUpdate, func(o *Options) { o.Raw = true })

	_, err := s.Capture(key("TestUsers", "user"), map[string]any{"id": "req-1", "body": `{"nested": true}`})
	require.NoError(t, err)
	_, err = s.Flush(false)
	require.NoError(t, err)

	f := h.read()
	v, ok := f.Lookup(key("TestUsers", "user"))
	require.True(t, ok)
	assert.Equal(t, map[string]any{"id": "<req-id:1>", "body": map[string]any{"nested": true}}, v)

	raw, ok := f.LookupRaw(key("TestUsers", "user"))
	require.True(t, ok)
	assert.Equal(t, map[string]any{"id": "req-1", "body": map[string]any{"nested": true}}, raw)
}

func TestCompare_RawLeavesSnapshotFileAlone(t *testing.T) {
	h := newHarness(t)
	compact := `{"TestUsers":{"recorded-content":{"user":"alice"},"recorded-date":"13-07-2022, 13:48:01"}}`
	require.NoError(t, os.MkdirAll(filepath.Dir(h.id.Path()), 0o755))
	require.NoError(t, os.WriteFile(h.id.Path(), []byte(compact), 0o644))

	s := h.session(ModeCompare, func(o *Options) { o.Raw = true })
	out, err := s.Capture(key("TestUsers", "user"), "alice")
	require.NoError(t, err)
	assert.Equal(t, compare.StatusMatch, out.Status)

	report, err := s.Flush(false)
	require.NoError(t, err)
	assert.False(t, report.Written)

	after, err := os.ReadFile(h.id.Path())
	require.NoError(t, err)
	assert.Equal(t, compact, string(after))

	raw, ok := h.read().LookupRaw(key("TestUsers", "user"))
	require.True(t, ok)
	assert.Equal(t, "alice", raw)
}

func TestFlush_PruneDropsRawValues(t *testing.T) {
	h := newHarness(t)
	raw := func(o *Options) { o.Raw = true }

	first := h.session(ModeUpdate, raw)
	for _, name := range []string{"a", "b"} {
		_, err := first.Capture(key("TestUsers", name), name)
		require.NoError(t, err)
	}
	_, err := first.Flush(false)
	require.NoError(t, err)

	second := h.session(ModeUpdate, raw)
	_, err = second.Capture(key("TestUsers", "a"), "a2")
	require.NoError(t, err)
	report, err := second.Flush(false)
	require.NoError(t, err)
	assert.Equal(t, []store.Key{key("TestUsers", "b")}, report.Pruned)
	assert.Equal(t, []string{"TestUsers"}, report.Updated)

	f := h.read()
	assert.Equal(t, []store.Key{key("TestUsers", "a")}, f.Keys())
	_, ok := f.LookupRaw(key("TestUsers", "b"))
	assert.False(t, ok)
	v, ok := f.LookupRaw(key("TestUsers", "a"))
	require.True(t, ok)
	assert.Equal(t, "a2", v)
}

func TestFlush_RawWithoutFlagLeavesNoSibling(t *testing.T) {
	h := newHarness(t)
	h.record("TestUsers", map[string]any{"user": "alice"})

	_, err := os.Stat(h.id.RawPath())
	assert.True(t, os.IsNotExist(err))
}

func TestCapture_DuplicateKey(t *testing.T) {
	s := newHarness(t).session(ModeUpdate)

	_, err := s.Capture(key("TestUsers", "user"), 1)
	require.NoError(t, err)
	_, err = s.Capture(key("TestUsers", "user"), 2)
	require.ErrorIs(t, err, ErrDuplicateKey)

	_, err = s.Capture(key("TestOther", "user"), 2)
	require.NoError(t, err)
}

func TestSession_Flushed(t *testing.T) {
	s := newHarness(t).session(ModeCompare)
	assert.Equal(t, StateCapturing, s.State())

	_, err := s.Capture(key("T", "a"), 1)
	require.NoError(t, err)
	assert.Equal(t, StateComparing, s.State())

	_, err = s.Flush(false)
	require.NoError(t, err)
	assert.Equal(t, StateFlushed, s.State())

	_, err = s.Capture(key("T", "b"), 1)
	require.ErrorIs(t, err, ErrFlushed)
	_, err = s.Flush(false)
	require.ErrorIs(t, err, ErrFlushed)
}

func TestSession_UpdatingState(t *testing.T) {
	s := newHarness(t).session(ModeUpdate)
	_, err := s.Capture(key("T", "a"), 1)
	require.NoError(t, err)
	assert.Equal(t, StateUpdating, s.State())
	assert.Equal(t, ModeUpdate, s.Mode())
}

func TestFlush_WithoutCapturesWritesNothing(t *testing.T) {
	h := newHarness(t)
	h.record("TestUsers", map[string]any{"user": "alice"})

	s := h.session(ModeUpdate)
	report, err := s.Flush(true)
	require.NoError(t, err)
	assert.False(t, report.Written)
	assert.Equal(t, []store.Key{key("TestUsers", "user")}, h.read().Keys())
}

func TestSession_AbortWritesNothing(t *testing.T) {
	h := newHarness(t)
	s := h.session(ModeUpdate)
	_, err := s.Capture(key("T", "a"), 1)
	require.NoError(t, err)

	// No Flush: the run was aborted.
	_, err = os.Stat(h.id.Path())
	assert.True(t, os.IsNotExist(err))
}

func TestCapture_TransformErrorKeepsStoredValue(t *testing.T) {
	h := newHarness(t)
	h.record("TestUsers", map[string]any{"good": "a", "bad": "stored"})

	boom := errors.New("boom")
	s := h.session(ModeUpdate)

	_, err := s.Capture(key("TestUsers", "bad"), "new", WithTransformers(transform.Func("explode", func(*transform.Context, any) (any, error) {
		return nil, boom
	})))
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.True(t, transform.IsTransformError(err))

	_, err = s.Capture(key("TestUsers", "good"), "b")
	require.NoError(t, err)

	_, err = s.Flush(true)
	require.NoError(t, err)

	f := h.read()
	bad, _ := f.Lookup(key("TestUsers", "bad"))
	good, _ := f.Lookup(key("TestUsers", "good"))
	assert.Equal(t, "stored", bad)
	assert.Equal(t, "b", good)
}

func TestCapture_SerializationError(t *testing.T) {
	s := newHarness(t).session(ModeUpdate)

	_, err := s.Capture(key("T", "bad"), map[string]any{"ch": make(chan int)})

	var se *canon.SerializationError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "$.ch", se.Path.String())

	_, err = s.Capture(key("T", "good"), 1)
	require.NoError(t, err)
}

func TestCapture_IgnorePaths(t *testing.T) {
	h := newHarness(t)
	h.record("TestUsers", map[string]any{"user": map[string]any{"name": "alice", "etag": "1"}})

	paths, err := compare.ParseIgnorePaths("$..etag")
	require.NoError(t, err)

	s := h.session(ModeCompare)
	out, err := s.Capture(key("TestUsers", "user"), map[string]any{"name": "alice", "etag": "2"}, IgnorePaths(paths...))
	require.NoError(t, err)
	assert.True(t, out.Passed)
	assert.Equal(t, "2", out.Value.(map[string]any)["etag"])

	s2 := h.session(ModeCompare, func(o *Options) { o.IgnorePaths = paths })
	out, err = s2.Capture(key("TestUsers", "user"), map[string]any{"name": "alice", "etag": "3"})
	require.NoError(t, err)
	assert.True(t, out.Passed)
}

func TestCapture_WithTransformersDoesNotLeak(t *testing.T) {
	s := newHarness(t).session(ModeUpdate)

	out, err := s.Capture(key("T", "a"), map[string]any{"host": "localhost:4566"},
		WithTransformers(transform.Text("localhost:4566", "<endpoint>")))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"host": "<endpoint>"}, out.Value)

	out, err = s.Capture(key("T", "b"), map[string]any{"host": "localhost:4566"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"host": "localhost:4566"}, out.Value)
}

func TestCapture_NormalizedIsIdempotent(t *testing.T) {
	ids := testutil.NewIDGenerator("idempotence")
	s := newHarness(t).session(ModeUpdate, func(o *Options) {
		o.Pipeline = o.Pipeline.With(transform.UUID())
	})

	out, err := s.Capture(key("T", "first"), map[string]any{
		"id":     ids.Prefixed("req-"),
		"owner":  ids.UUID(),
		"ts":     "2024-01-01T00:00:00Z",
		"nested": []any{map[string]any{"id": ids.Prefixed("req-")}},
	})
	require.NoError(t, err)

	again, err := s.Capture(key("T", "second"), out.Value)
	require.NoError(t, err)
	assert.Equal(t, out.Value, again.Value)
}

func TestCapture_Concurrent(t *testing.T) {
	h := newHarness(t)
	s := h.session(ModeUpdate)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.Capture(key(fmt.Sprintf("Test%02d", i), "v"), map[string]any{"id": fmt.Sprintf("req-%d", i)})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Len(t, s.Results(), 20)
	_, err := s.Flush(true)
	require.NoError(t, err)
	assert.Len(t, h.read().Keys(), 20)
}

func TestNew_MalformedBaseline(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(h.id.Path()), 0o755))
	require.NoError(t, os.WriteFile(h.id.Path(), []byte("[1]"), 0o644))

	_, err := New(h.id, Options{})

	var fe *store.FormatError
	require.True(t, errors.As(err, &fe))
}
