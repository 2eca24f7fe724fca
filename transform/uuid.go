package transform

import (
	"regexp"

	"github.com/google/uuid"
)

var uuidPattern = regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)

type uuidRef struct {
	name string
}

// UUID registers every UUID found in string values or keys as a reference,
// so each distinct UUID becomes <uuid:N> wherever it appears. Spellings
// differing only in letter case share one placeholder.
func UUID() Transformer {
	return &uuidRef{name: "uuid"}
}

func (t *uuidRef) sealed() {}

func (t *uuidRef) Name() string { return "uuid" }

func (t *uuidRef) Apply(ctx *Context, v any) (any, error) {
	t.collect(ctx, v)
	return v, nil
}

func (t *uuidRef) collect(ctx *Context, v any) {
	switch val := v.(type) {
	case string:
		t.register(ctx, val)
	case []any:
		for _, elem := range val {
			t.collect(ctx, elem)
		}
	case map[string]any:
		for _, k := range sortedKeys(val) {
			t.register(ctx, k)
			t.collect(ctx, val[k])
		}
	}
}

func (t *uuidRef) register(ctx *Context, s string) {
	for _, m := range uuidPattern.FindAllString(s, -1) {
		id, err := uuid.Parse(m)
		if err != nil {
			continue
		}
		p := ctx.Reference(id.String(), t.name)
		ctx.alias(m, p)
	}
}
