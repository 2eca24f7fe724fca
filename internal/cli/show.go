package cli

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/golden/canon"
	"github.com/roach88/golden/store"
)

// ShowResult lists the scopes of a snapshot file.
type ShowResult struct {
	Path   string      `json:"path"`
	Scopes []ShowScope `json:"scopes"`
}

// ShowScope describes one scope. Content is only filled when a single
// scope was requested.
type ShowScope struct {
	Name         string         `json:"name"`
	RecordedDate string         `json:"recorded_date"`
	Entries      []string       `json:"entries"`
	Content      map[string]any `json:"content,omitempty"`
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	var scope string

	cmd := &cobra.Command{
		Use:   "show <file>",
		Short: "List the scopes and entries of a snapshot file",
		Long: `List the scopes of a snapshot file with their recorded dates and
entry names. With --scope only that scope is shown, including the
recorded values.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(rootOpts, args[0], scope, cmd)
		},
	}

	cmd.Flags().StringVar(&scope, "scope", "", "show only this scope, with its recorded values")

	return cmd
}

func runShow(opts *RootOptions, path, scope string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	f, err := readSnapshotFile(store.New(store.WithLogger(opts.Logger())), path)
	if err != nil {
		return fail(formatter, ExitCommandError, errorCode(err), err.Error(), nil)
	}

	names := f.ScopeNames()
	if scope != "" {
		if _, ok := f.Scopes[scope]; !ok {
			return fail(formatter, ExitCommandError, ErrCodeNotFound,
				fmt.Sprintf("scope %q not found in %s", scope, path), names)
		}
		names = []string{scope}
	}

	result := ShowResult{Path: path, Scopes: make([]ShowScope, 0, len(names))}
	for _, name := range names {
		s := f.Scopes[name]
		entry := ShowScope{
			Name:         name,
			RecordedDate: s.RecordedDate,
			Entries:      entryNames(s),
		}
		if scope != "" {
			entry.Content = s.Content
		}
		result.Scopes = append(result.Scopes, entry)
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	return printShowText(formatter, result)
}

func entryNames(s *store.Scope) []string {
	names := make([]string, 0, len(s.Content))
	for name := range s.Content {
		names = append(names, name)
	}
	slices.SortFunc(names, canon.CompareKeys)
	return names
}

func printShowText(formatter *OutputFormatter, result ShowResult) error {
	w := formatter.Writer
	for i, s := range result.Scopes {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%s (recorded %s)\n", s.Name, s.RecordedDate)
		for _, name := range s.Entries {
			if s.Content == nil {
				fmt.Fprintf(w, "  %s\n", name)
				continue
			}
			data, err := canon.Marshal(s.Content[name])
			if err != nil {
				return err
			}
			value := strings.ReplaceAll(strings.TrimSuffix(string(data), "\n"), "\n", "\n    ")
			fmt.Fprintf(w, "  %s:\n    %s\n", name, value)
		}
	}
	return nil
}
