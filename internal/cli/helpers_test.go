package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/golden/store"
)

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeSnapshot(t *testing.T, path string, scopes map[string]*store.Scope) {
	t.Helper()
	data, err := store.EncodeScopes(scopes)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func oldScopes() map[string]*store.Scope {
	return map[string]*store.Scope{
		"TestUsers": {
			RecordedDate: "13-07-2022, 13:48:01",
			Content: map[string]any{
				"create": map[string]any{"id": "<uuid:1>", "name": "alice"},
				"delete": int64(204),
			},
		},
		"TestHealth": {
			RecordedDate: "12-07-2022, 09:00:00",
			Content:      map[string]any{"status": "ok"},
		},
	}
}

func newScopes() map[string]*store.Scope {
	return map[string]*store.Scope{
		"TestUsers": {
			RecordedDate: "14-07-2022, 10:00:00",
			Content: map[string]any{
				"create": map[string]any{"id": "<uuid:1>", "name": "bob"},
				"list":   []any{},
			},
		},
		"TestHealth": {
			RecordedDate: "14-07-2022, 10:00:00",
			Content:      map[string]any{"status": "ok"},
		},
	}
}
