package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/cobra"

	"github.com/roach88/golden/store"
)

// FmtResult holds the outcome of the fmt command.
type FmtResult struct {
	Check   bool      `json:"check"`
	Changed int       `json:"changed"`
	Files   []FmtFile `json:"files"`
}

// FmtFile is the outcome for one snapshot file.
type FmtFile struct {
	Path    string `json:"path"`
	Changed bool   `json:"changed"`
	Error   string `json:"error,omitempty"`

	err error
}

// NewFmtCommand creates the fmt command.
func NewFmtCommand(rootOpts *RootOptions) *cobra.Command {
	var check bool

	cmd := &cobra.Command{
		Use:   "fmt <glob>...",
		Short: "Rewrite snapshot files in canonical form",
		Long: `Rewrite snapshot files with sorted keys, two-space indentation and
a trailing newline, the form tests write them in.

Arguments are files, directories (searched recursively) or doublestar
globs such as testdata/**/*.snapshot.json. With --check no file is
changed and the command fails when any file is not canonical.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFmt(rootOpts, args, check, cmd)
		},
	}

	cmd.Flags().BoolVar(&check, "check", false, "report files that are not canonical without rewriting them")

	return cmd
}

func runFmt(opts *RootOptions, patterns []string, check bool, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	paths, err := expandPatterns(patterns)
	if err != nil {
		return fail(formatter, ExitCommandError, ErrCodeNotFound, err.Error(), nil)
	}
	formatter.VerboseLog("Found %d snapshot file(s)", len(paths))

	st := store.New(store.WithLogger(opts.Logger()))
	files := make([]FmtFile, len(paths))
	p := pool.New().WithMaxGoroutines(runtime.GOMAXPROCS(0))
	for i, path := range paths {
		p.Go(func() {
			changed, err := st.Canonicalize(path, check)
			files[i] = FmtFile{Path: path, Changed: changed, err: err}
			if err != nil {
				files[i].Error = err.Error()
			}
		})
	}
	p.Wait()

	result := FmtResult{Check: check, Files: files}
	var firstErr error
	for _, f := range files {
		if f.Changed {
			result.Changed++
		}
		if f.err != nil && firstErr == nil {
			firstErr = f.err
		}
	}

	if formatter.Format != "json" {
		printFmtText(formatter, result)
	}

	switch {
	case firstErr != nil:
		code := errorCode(firstErr)
		if err := formatter.Failure(code, firstErr.Error(), result); err != nil {
			return err
		}
		return WrapExitError(ExitCommandError, code, firstErr)
	case check && result.Changed > 0:
		msg := fmt.Sprintf("%d snapshot file(s) not canonical", result.Changed)
		if err := formatter.Failure(ErrCodeNotCanon, msg, result); err != nil {
			return err
		}
		return NewExitError(ExitFailure, msg)
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	return nil
}

func printFmtText(formatter *OutputFormatter, result FmtResult) {
	w := formatter.Writer
	for _, f := range result.Files {
		switch {
		case f.err != nil:
			fmt.Fprintf(w, "✗ %s: %v\n", f.Path, f.err)
		case f.Changed && result.Check:
			fmt.Fprintf(w, "✗ %s: not canonical\n", f.Path)
		case f.Changed:
			fmt.Fprintf(w, "✓ %s: formatted\n", f.Path)
		default:
			formatter.VerboseLog("%s: already canonical", f.Path)
		}
	}

	verb := "reformatted"
	if result.Check {
		verb = "not canonical"
	}
	fmt.Fprintf(w, "%d file(s), %d %s\n", len(result.Files), result.Changed, verb)
}

// expandPatterns resolves files, directories and globs to snapshot file
// paths. Paths keep the order of the patterns; duplicates are dropped.
func expandPatterns(patterns []string) ([]string, error) {
	var paths []string
	seen := make(map[string]bool)
	add := func(path string) {
		if !seen[path] {
			seen[path] = true
			paths = append(paths, path)
		}
	}

	for _, pattern := range patterns {
		if info, err := os.Stat(pattern); err == nil && info.IsDir() {
			pattern = filepath.Join(pattern, "**", "*"+store.Ext)
		}
		if !doublestar.ValidatePathPattern(pattern) {
			return nil, fmt.Errorf("invalid pattern %q", pattern)
		}
		matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", pattern, err)
		}

		n := 0
		for _, m := range matches {
			if strings.HasSuffix(m, store.Ext) {
				add(m)
				n++
			}
		}
		if n == 0 {
			return nil, fmt.Errorf("no snapshot files match %q", pattern)
		}
	}
	return paths, nil
}
