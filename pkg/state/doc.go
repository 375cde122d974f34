// Package state persists single snapshots behind a small Store contract.
//
// A Store[T] only loads and saves one snapshot per Ref. Binding[T] pins a
// store to a Ref and adds the save protocol callers rely on:
//
//	Load -> check ETag -> mutate -> Validate() -> Save (fresh SnapshotID/ETag)
//
// Backends:
//
//	MemoryStore[T]  in process, clones snapshots implementing Clone() T
//	FileStore[T]    one YAML document per Ref under a root directory
//	sqlite.Store[T] one row per Ref in a SQLite database (subpackage)
//
// Ref.Identifier() is the canonical key ("<domain>/<key>") shared by every
// backend, so snapshots can be migrated by copying keys verbatim.
package state
