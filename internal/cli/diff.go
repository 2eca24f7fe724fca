package cli

import (
	"bytes"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/golden/compare"
	"github.com/roach88/golden/store"
)

// DiffResult holds the outcome of the diff command.
type DiffResult struct {
	Old       string      `json:"old"`
	New       string      `json:"new"`
	Compared  int         `json:"compared"`
	Different []DiffEntry `json:"different,omitempty"`
	Stale     []string    `json:"stale,omitempty"`
}

// DiffEntry describes one entry that differs between the two files.
type DiffEntry struct {
	Key    string   `json:"key"`
	Status string   `json:"status"`
	Report string   `json:"report"`
	Ignore []string `json:"ignore,omitempty"`
}

// Passed reports whether the files hold the same entries.
func (r DiffResult) Passed() bool {
	return len(r.Different) == 0 && len(r.Stale) == 0
}

// NewDiffCommand creates the diff command.
func NewDiffCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		legacy bool
		ignore []string
	)

	cmd := &cobra.Command{
		Use:   "diff <old> <new>",
		Short: "Compare two snapshot files entry by entry",
		Long: `Compare the entries of two snapshot files the way a test run compares
captured values against recorded ones: <old> is the recorded side and
<new> the actual side.

Entries only in <new> are reported as new, entries only in <old> as
stale. The command fails when any entry differs.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiff(rootOpts, args[0], args[1], legacy, ignore, cmd)
		},
	}

	cmd.Flags().BoolVar(&legacy, "legacy", false, "use the flat legacy report format")
	cmd.Flags().StringArrayVar(&ignore, "ignore", nil, "JSONPath of nodes to leave out of the comparison (repeatable)")

	return cmd
}

func runDiff(opts *RootOptions, oldPath, newPath string, legacy bool, ignore []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	ignorePaths, err := compare.ParseIgnorePaths(ignore...)
	if err != nil {
		return fail(formatter, ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}

	st := store.New(store.WithLogger(opts.Logger()))
	oldFile, err := readSnapshotFile(st, oldPath)
	if err != nil {
		return fail(formatter, ExitCommandError, errorCode(err), err.Error(), nil)
	}
	newFile, err := readSnapshotFile(st, newPath)
	if err != nil {
		return fail(formatter, ExitCommandError, errorCode(err), err.Error(), nil)
	}

	results, stale := diffFiles(oldFile, newFile, compare.IgnorePaths(ignorePaths...))
	result := DiffResult{Old: oldPath, New: newPath, Compared: len(results)}
	for _, k := range stale {
		result.Stale = append(result.Stale, k.String())
	}
	for _, r := range results {
		if r.Passed() {
			continue
		}
		report := r.Report()
		if legacy {
			report = r.LegacyReport()
		}
		result.Different = append(result.Different, DiffEntry{
			Key:    r.Key,
			Status: string(r.Status),
			Report: report,
			Ignore: r.IgnoreList(),
		})
	}
	formatter.VerboseLog("Compared %d entries, %d stale", result.Compared, len(result.Stale))

	if formatter.Format == "json" {
		if result.Passed() {
			return formatter.Success(result)
		}
		msg := diffSummary(result)
		if err := formatter.Failure(ErrCodeDifferent, msg, result); err != nil {
			return err
		}
		return NewExitError(ExitFailure, msg)
	}

	if result.Passed() {
		fmt.Fprintf(formatter.Writer, "✓ %d entries match\n", result.Compared)
		return nil
	}

	var buf bytes.Buffer
	if _, err := compare.RenderAll(&buf, results, legacy); err != nil {
		return err
	}
	w := formatter.Writer
	if buf.Len() > 0 {
		fmt.Fprint(w, buf.String())
		fmt.Fprintln(w)
	}
	for _, k := range result.Stale {
		fmt.Fprintf(w, "stale: %s\n", k)
	}
	fmt.Fprintf(w, "✗ %s\n", diffSummary(result))
	return NewExitError(ExitFailure, diffSummary(result))
}

func diffSummary(r DiffResult) string {
	return fmt.Sprintf("%d of %d entries differ, %d stale", len(r.Different), r.Compared, len(r.Stale))
}

// diffFiles compares every entry of actual against expected in canonical key
// order and returns the keys only expected holds.
func diffFiles(expected, actual *store.File, opts ...compare.Option) ([]*compare.Result, []store.Key) {
	var results []*compare.Result
	for _, k := range actual.Keys() {
		v, _ := actual.Lookup(k)
		recorded, ok := expected.Lookup(k)
		if !ok {
			results = append(results, compare.NewEntry(k.String(), v))
			continue
		}
		results = append(results, compare.Compare(k.String(), recorded, v, opts...))
	}

	var stale []store.Key
	for _, k := range expected.Keys() {
		if _, ok := actual.Lookup(k); !ok {
			stale = append(stale, k)
		}
	}
	return results, stale
}

func readSnapshotFile(st *store.Store, path string) (*store.File, error) {
	id, err := store.ParseID(path)
	if err != nil {
		return nil, err
	}
	if path != id.Path() {
		return nil, fmt.Errorf("%s: raw snapshot files cannot be read directly, use %s", path, id.Path())
	}
	return st.Read(id)
}
