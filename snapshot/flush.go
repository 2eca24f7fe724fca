package snapshot

import (
	"slices"

	"github.com/roach88/golden/canon"
	"github.com/roach88/golden/store"
)

// FlushReport summarizes what Flush did.
type FlushReport struct {
	// Written is true when the snapshot file was updated.
	Written bool

	// Updated lists the scopes whose recorded content changed.
	Updated []string

	// Pruned lists entries removed from the snapshot file.
	Pruned []store.Key

	// Stale lists stored entries no capture referenced. In update mode
	// they are pruned; in compare mode they are only reported.
	Stale []store.Key
}

// Flush ends the session. In update mode the captured entries are merged
// into the snapshot file: every touched scope is replaced by what this run
// captured, and its recorded date is refreshed only when its content
// changed. Scopes nobody touched are pruned only when complete is true,
// meaning the run exercised every test of the file. In compare mode the
// snapshot file is left alone and stale entries are only reported. Raw
// values go to the raw sibling in both modes.
//
// A session without captures writes nothing.
func (s *Session) Flush(complete bool) (*FlushReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateFlushed {
		return nil, ErrFlushed
	}
	mode := s.state
	s.state = StateFlushed

	report := &FlushReport{Stale: s.stale(complete)}
	if mode == StateCapturing {
		return report, nil
	}

	update := mode == StateUpdating
	if !update && !s.opts.Raw {
		if len(report.Stale) > 0 {
			s.logger.Info("stale snapshot entries", "count", len(report.Stale))
		}
		return report, nil
	}

	now := s.opts.Now().UTC().Format(store.DateLayout)
	var err error
	if update {
		err = s.store.Update(s.id, func(f *store.File) error {
			prev := f.Clone()
			report.Pruned = f.Prune(func(k store.Key) bool {
				return s.touched[k] || !(complete || s.touchedScope(k.Scope))
			})
			report.Updated = s.mergeScopes(f.Scopes, prev.Scopes, s.entries, now)
			if s.opts.Raw && len(s.raw) > 0 {
				if f.Raw == nil {
					f.Raw = make(map[string]*store.Scope)
				}
				s.mergeScopes(f.Raw, prev.Raw, s.raw, now)
			}
			return nil
		})
	} else if len(s.raw) > 0 {
		err = s.store.UpdateRaw(s.id, func(raw map[string]*store.Scope) error {
			s.mergeScopes(raw, raw, s.raw, now)
			return nil
		})
	}
	if err != nil {
		return nil, err
	}

	if update {
		report.Stale = report.Pruned
		report.Written = len(report.Updated) > 0 || len(report.Pruned) > 0
	}
	s.logger.Info("flushed snapshot",
		"mode", s.opts.Mode,
		"updated", len(report.Updated),
		"pruned", len(report.Pruned),
		"stale", len(report.Stale))
	return report, nil
}

// mergeScopes replaces every touched scope of dst with the captured
// values. A touched key without a captured value (its capture failed)
// keeps its value from old, the content dst held before this flush. It
// returns the scopes whose content changed.
func (s *Session) mergeScopes(dst, old map[string]*store.Scope, captured map[store.Key]any, now string) []string {
	content := make(map[string]map[string]any)
	for k := range s.touched {
		if _, ok := content[k.Scope]; !ok {
			content[k.Scope] = make(map[string]any)
		}
		if v, ok := captured[k]; ok {
			content[k.Scope][k.Name] = v
			continue
		}
		if v, ok := lookupScope(old, k); ok {
			content[k.Scope][k.Name] = v
		}
	}

	var changed []string
	for scope, c := range content {
		prev, ok := old[scope]
		if len(c) == 0 {
			delete(dst, scope)
			if ok {
				changed = append(changed, scope)
			}
			continue
		}
		if ok && canon.Equal(prev.Content, c) {
			continue
		}
		dst[scope] = &store.Scope{RecordedDate: now, Content: c}
		changed = append(changed, scope)
	}
	slices.SortFunc(changed, canon.CompareKeys)
	return changed
}

func lookupScope(scopes map[string]*store.Scope, k store.Key) (any, bool) {
	sc, ok := scopes[k.Scope]
	if !ok {
		return nil, false
	}
	v, ok := sc.Content[k.Name]
	return v, ok
}

// stale returns the baseline keys this run did not touch: untouched keys
// of touched scopes, plus every key of untouched scopes when complete.
func (s *Session) stale(complete bool) []store.Key {
	var stale []store.Key
	for _, k := range s.baseline.Keys() {
		if s.touched[k] {
			continue
		}
		if complete || s.touchedScope(k.Scope) {
			stale = append(stale, k)
		}
	}
	return stale
}

func (s *Session) touchedScope(scope string) bool {
	for k := range s.touched {
		if k.Scope == scope {
			return true
		}
	}
	return false
}
