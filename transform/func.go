package transform

type funcTransformer struct {
	name string
	fn   func(ctx *Context, v any) (any, error)
}

// Func wraps custom normalization logic. fn receives a value it may modify
// in place and must return the result; it can register references and
// rewrites through ctx.
func Func(name string, fn func(ctx *Context, v any) (any, error)) Transformer {
	return &funcTransformer{name: name, fn: fn}
}

func (t *funcTransformer) sealed() {}

func (t *funcTransformer) Name() string { return t.name }

func (t *funcTransformer) Apply(ctx *Context, v any) (any, error) {
	return t.fn(ctx, v)
}
