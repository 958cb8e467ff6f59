package signature

import "sync/atomic"

// Store holds the active signature set of one signature directory.
// Lookups run against an immutable snapshot which Reload replaces as a whole.
type Store struct {
	dir    string
	active atomic.Pointer[Set]
}

// NewStore creates an empty store. Nothing is loaded until the first Reload.
func NewStore(dir string) *Store {
	store := &Store{dir: dir}
	empty := make(Set)
	store.active.Store(&empty)
	return store
}

func (s *Store) Dir() string {
	return s.dir
}

// Reload loads the signature directory from scratch and swaps the result in.
// A failed or partial load still replaces the previous set, problems are reported.
func (s *Store) Reload() LoadReport {
	set, report := LoadDir(s.dir)
	s.active.Store(&set)
	return report
}

func (s *Store) Contains(sig Signature) bool {
	return (*s.active.Load()).Contains(sig)
}

func (s *Store) Count() int {
	return len(*s.active.Load())
}

// Snapshot returns the set currently in use. It must not be modified.
func (s *Store) Snapshot() Set {
	return *s.active.Load()
}
