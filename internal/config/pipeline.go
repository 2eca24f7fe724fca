package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"github.com/theory/jsonpath"
	"gopkg.in/yaml.v3"

	"github.com/roach88/golden/transform"
)

//go:embed schema.cue
var schemaSrc string

// Transformer kinds accepted in pipeline files.
const (
	KindKeyValue   = "key_value"
	KindJSONPath   = "jsonpath"
	KindRegex      = "regex"
	KindText       = "text"
	KindTimestamp  = "timestamp"
	KindDatetime   = "datetime"
	KindUUID       = "uuid"
	KindSorting    = "sorting"
	KindJSONString = "json_string"
)

// TransformerSpec declares one transformer. Which fields apply depends on
// Kind.
type TransformerSpec struct {
	Kind        string `yaml:"kind" json:"kind"`
	Key         string `yaml:"key,omitempty" json:"key,omitempty"`
	Path        string `yaml:"path,omitempty" json:"path,omitempty"`
	Pattern     string `yaml:"pattern,omitempty" json:"pattern,omitempty"`
	Text        string `yaml:"text,omitempty" json:"text,omitempty"`
	Replacement string `yaml:"replacement,omitempty" json:"replacement,omitempty"`
	Direct      bool   `yaml:"direct,omitempty" json:"direct,omitempty"`
	By          string `yaml:"by,omitempty" json:"by,omitempty"`
	Priority    int    `yaml:"priority,omitempty" json:"priority,omitempty"`
}

// PipelineSpec is the content of a pipeline file.
type PipelineSpec struct {
	Transformers []TransformerSpec `yaml:"transformers" json:"transformers"`
	IgnorePaths  []string          `yaml:"ignore_paths,omitempty" json:"ignore_paths,omitempty"`
}

// Pipeline is a loaded pipeline file, ready to hand to a session.
type Pipeline struct {
	Pipeline    *transform.Pipeline
	IgnorePaths []*jsonpath.Path
}

// Error reports an invalid pipeline file. Pos is set for CUE errors.
type Error struct {
	File    string
	Field   string
	Message string
	Pos     token.Pos
}

func (e *Error) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Message)
	}
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %s", e.File, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.File, e.Message)
}

// LoadPipeline reads a pipeline file. Files ending in .cue are unified with
// the #Pipeline schema; everything else is parsed as strict YAML.
func LoadPipeline(path string) (*Pipeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pipeline file: %w", err)
	}

	var spec *PipelineSpec
	if strings.EqualFold(filepath.Ext(path), ".cue") {
		spec, err = DecodeCUE(path, data)
	} else {
		spec, err = DecodeYAML(path, data)
	}
	if err != nil {
		return nil, err
	}
	return spec.Build(path)
}

// DecodeYAML parses a YAML pipeline. Unknown fields are rejected.
func DecodeYAML(name string, data []byte) (*PipelineSpec, error) {
	var spec PipelineSpec
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&spec); err != nil {
		return nil, &Error{File: name, Message: fmt.Sprintf("parse YAML: %v", err)}
	}
	return &spec, nil
}

// DecodeCUE evaluates a CUE pipeline against the #Pipeline schema. The
// result must be concrete.
func DecodeCUE(name string, data []byte) (*PipelineSpec, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSrc, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile pipeline schema: %w", err)
	}

	value := ctx.CompileBytes(data, cue.Filename(name))
	if err := value.Err(); err != nil {
		return nil, cueError(name, err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Pipeline")).Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, cueError(name, err)
	}

	var spec PipelineSpec
	if err := unified.Decode(&spec); err != nil {
		return nil, cueError(name, err)
	}
	return &spec, nil
}

// cueError keeps the first CUE error and its position.
func cueError(name string, err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &Error{File: name, Message: err.Error()}
	}
	first := errs[0]
	e := &Error{File: name, Message: first.Error()}
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		e.Pos = positions[0]
	}
	return e
}

// Build turns the declarations into a transform.Pipeline and parsed
// ignore paths. name is used in error messages.
func (s *PipelineSpec) Build(name string) (*Pipeline, error) {
	p := transform.NewPipeline()
	for i, ts := range s.Transformers {
		t, err := ts.build()
		if err != nil {
			return nil, &Error{File: name, Field: fmt.Sprintf("transformers[%d] (%s)", i, ts.Kind), Message: err.Error()}
		}
		p.AddWithPriority(ts.Priority, t)
	}

	ignore := make([]*jsonpath.Path, 0, len(s.IgnorePaths))
	for i, expr := range s.IgnorePaths {
		path, err := jsonpath.Parse(expr)
		if err != nil {
			return nil, &Error{File: name, Field: fmt.Sprintf("ignore_paths[%d]", i), Message: err.Error()}
		}
		ignore = append(ignore, path)
	}
	return &Pipeline{Pipeline: p, IgnorePaths: ignore}, nil
}

func (s TransformerSpec) build() (transform.Transformer, error) {
	var opts []transform.Option
	if s.Direct {
		opts = append(opts, transform.Direct())
	}

	switch s.Kind {
	case KindKeyValue:
		if err := requireField("key", s.Key); err != nil {
			return nil, err
		}
		return transform.KeyValue(s.Key, s.Replacement, opts...), nil
	case KindJSONPath:
		if err := requireField("path", s.Path); err != nil {
			return nil, err
		}
		return transform.ParseJSONPath(s.Path, s.Replacement, opts...)
	case KindRegex:
		if err := requireField("pattern", s.Pattern); err != nil {
			return nil, err
		}
		return transform.ParseRegex(s.Pattern, s.Replacement)
	case KindText:
		if err := requireField("text", s.Text); err != nil {
			return nil, err
		}
		return transform.Text(s.Text, s.Replacement), nil
	case KindTimestamp:
		return transform.Timestamp(), nil
	case KindDatetime:
		return transform.Datetime(s.Replacement), nil
	case KindUUID:
		return transform.UUID(), nil
	case KindSorting:
		if err := requireField("key", s.Key); err != nil {
			return nil, err
		}
		if s.By != "" {
			return transform.SortingBy(s.Key, s.By), nil
		}
		return transform.Sorting(s.Key, transform.CompareValues), nil
	case KindJSONString:
		if err := requireField("key", s.Key); err != nil {
			return nil, err
		}
		return transform.JSONString(s.Key), nil
	case "":
		return nil, fmt.Errorf("kind is required")
	default:
		return nil, fmt.Errorf("unknown kind %q", s.Kind)
	}
}

func requireField(field, value string) error {
	if value == "" {
		return fmt.Errorf("%s is required", field)
	}
	return nil
}
