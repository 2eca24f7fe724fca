package compare

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/roach88/golden/canon"
)

// Report renders the standard report:
//
//	>> match key: create-user
//		(~) $.User.Name "alice" → "bob"
//		(-) $.User.Tags ["a"]
//		(+) $.User.Email "bob@example.com"
//		(#) $.Items length 3 → 2
//		Ignore list (array indices dropped): ["$..User.Name", ...]
//
// A matching result renders as the header line only.
func (r *Result) Report() string {
	var b strings.Builder
	fmt.Fprintf(&b, ">> match key: %s\n", r.Key)

	switch r.Status {
	case StatusNew:
		b.WriteString("\t(!) no snapshot recorded for this key; run in update mode to record it\n")
		return b.String()
	case StatusMatch:
		return b.String()
	}

	for _, d := range r.Discrepancies {
		b.WriteByte('\t')
		b.WriteString(standardLine(d))
		b.WriteByte('\n')
	}
	if ignore := r.IgnoreList(); len(ignore) > 0 {
		quoted := make([]string, len(ignore))
		for i, p := range ignore {
			quoted[i] = canon.Compact(p)
		}
		fmt.Fprintf(&b, "\tIgnore list (array indices dropped): [%s]\n", strings.Join(quoted, ", "))
	}
	return b.String()
}

func standardLine(d Discrepancy) string {
	path := d.Path.String()
	switch d.Kind {
	case DiffRemoved:
		return fmt.Sprintf("(-) %s %s", path, canon.Compact(d.Expected))
	case DiffAdded:
		return fmt.Sprintf("(+) %s %s", path, canon.Compact(d.Actual))
	case DiffLengthChanged:
		return fmt.Sprintf("(#) %s length %d → %d", path, lenOf(d.Expected), lenOf(d.Actual))
	case DiffTypeChanged:
		return fmt.Sprintf("(~) %s %s → %s (%s → %s)", path,
			canon.Compact(d.Expected), canon.Compact(d.Actual),
			canon.KindOf(d.Expected), canon.KindOf(d.Actual))
	default:
		return fmt.Sprintf("(~) %s %s → %s", path, canon.Compact(d.Expected), canon.Compact(d.Actual))
	}
}

// IgnoreList returns the distinct descendant paths ($..a..b) of all
// discrepancies below the root, ready to paste into an ignore list.
func (r *Result) IgnoreList() []string {
	var paths []string
	for _, d := range r.Discrepancies {
		if len(d.Path) == 0 {
			continue
		}
		p := d.Path.IgnorePath()
		if !slices.Contains(paths, p) {
			paths = append(paths, p)
		}
	}
	return paths
}

// LegacyReport renders the discrepancies as flat lines in the form older
// tooling parses:
//
//	Value of root['name'] changed from "John" to "Jane".
//	Item root['id'] removed from dictionary.
//	Item root['list'][2] added to iterable.
//
// A matching result renders as the empty string.
func (r *Result) LegacyReport() string {
	if r.Status == StatusNew {
		return fmt.Sprintf("No snapshot recorded for key %s.\n", r.Key)
	}

	var b strings.Builder
	for _, d := range r.Discrepancies {
		for _, line := range legacyLines(d) {
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func legacyLines(d Discrepancy) []string {
	path := d.Path.DeepDiff()
	switch d.Kind {
	case DiffRemoved:
		return []string{fmt.Sprintf("Item %s removed from dictionary.", path)}
	case DiffAdded:
		return []string{fmt.Sprintf("Item %s added to dictionary.", path)}
	case DiffTypeChanged:
		return []string{fmt.Sprintf("Type of %s changed from %s to %s and value changed from %s to %s.",
			path, canon.KindOf(d.Expected), canon.KindOf(d.Actual),
			canon.Compact(d.Expected), canon.Compact(d.Actual))}
	case DiffLengthChanged:
		expected, _ := d.Expected.([]any)
		actual, _ := d.Actual.([]any)
		var lines []string
		for i := len(actual); i < len(expected); i++ {
			lines = append(lines, fmt.Sprintf("Item %s removed from iterable.", d.Path.Index(i).DeepDiff()))
		}
		for i := len(expected); i < len(actual); i++ {
			lines = append(lines, fmt.Sprintf("Item %s added to iterable.", d.Path.Index(i).DeepDiff()))
		}
		return lines
	default:
		return []string{fmt.Sprintf("Value of %s changed from %s to %s.",
			path, canon.Compact(d.Expected), canon.Compact(d.Actual))}
	}
}

func lenOf(v any) int {
	if arr, ok := v.([]any); ok {
		return len(arr)
	}
	return 0
}

// RenderAll writes the reports of all failed results, separated by blank
// lines, in the standard or legacy format. It returns the number of failed
// results.
func RenderAll(w io.Writer, results []*Result, legacy bool) (int, error) {
	failed := 0
	for _, r := range results {
		if r.Passed() {
			continue
		}
		if failed > 0 {
			if _, err := io.WriteString(w, "\n"); err != nil {
				return failed, err
			}
		}
		failed++

		text := r.Report()
		if legacy {
			text = r.LegacyReport()
		}
		if _, err := io.WriteString(w, text); err != nil {
			return failed, err
		}
	}
	return failed, nil
}
