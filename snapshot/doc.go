// Package snapshot ties normalization, comparison and storage together for
// one snapshot file during one test run.
//
// A Session moves through these states:
//
//	Capturing -> Comparing | Updating -> Flushed
//
// It starts in Capturing, switches to Comparing or Updating on the first
// Capture depending on its Mode, and ends in Flushed once Flush ran. In
// compare mode every Capture diffs the normalized value against the stored
// baseline; in update mode it records the value and always passes. Nothing
// reaches disk before Flush, so an aborted run leaves the snapshot file
// untouched.
package snapshot
