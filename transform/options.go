package transform

// Option configures KeyValue and JSONPath transformers.
type Option func(*options)

type options struct {
	direct    bool
	matchFn   func(key string, v any) (string, bool)
	replaceFn func(key string, v any) string
}

// Direct replaces only the matched value instead of registering it as a
// reference for the whole document.
func Direct() Option {
	return func(o *options) { o.direct = true }
}

// WithMatchFunc overrides key matching. fn returns the text to replace and
// whether the pair matched.
func WithMatchFunc(fn func(key string, v any) (string, bool)) Option {
	return func(o *options) { o.matchFn = fn }
}

// WithReplaceFunc computes the replacement name from the matched pair.
// In reference mode each distinct name gets its own counter.
func WithReplaceFunc(fn func(key string, v any) string) Option {
	return func(o *options) { o.replaceFn = fn }
}

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
