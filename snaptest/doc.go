// Package snaptest connects snapshot sessions to go test.
//
// A test asks for a Scope and matches values against the snapshot file of
// its source file, testdata/snapshots/<file>_test.snapshot.json:
//
//	func TestCreateUser(t *testing.T) {
//		snap := snaptest.New(t).Add(transform.KeyValue("UserId", "user-id"))
//		resp := createUser(t)
//		snap.Match("response", resp)
//	}
//
// Snapshots are recorded with GOLDEN_UPDATE=1 (or goldie's -update flag
// when the test binary registers it) and compared otherwise. Packages that
// want stale entries pruned route their tests through Run:
//
//	func TestMain(m *testing.M) {
//		os.Exit(snaptest.Run(m))
//	}
//
// Run keeps one session per snapshot file and flushes them all after the
// tests finished. Entries of tests that no longer exist are dropped only
// when the whole package ran (no -run or -skip filter) and passed. A test
// that skips before calling New counts as gone; call New first.
package snaptest
