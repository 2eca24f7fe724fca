// Package store persists snapshot files.
//
// A snapshot file groups the entries of one test file by scope (the test
// name) and records when each scope last changed:
//
//	{
//	  "TestUsers/create": {
//	    "recorded-date": "13-07-2022, 13:48:01",
//	    "recorded-content": {
//	      "response": {"id": "<uuid:1>"}
//	    }
//	  }
//	}
//
// Raw, untransformed values live in a sibling file of the same shape
// (<base>.raw.snapshot.json) and only exist when raw capture is enabled.
//
// Writes are atomic: content goes to a temporary file in the target
// directory which is synced and renamed over the snapshot file. Callers
// merge through Update, which serializes read-modify-write cycles on the
// same file within a process and, when the store was opened WithLocking,
// across processes through an advisory lock on <file>.lock.
package store
