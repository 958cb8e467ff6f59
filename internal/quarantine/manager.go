package quarantine

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/n2code/virusbegone/internal"
	"github.com/n2code/virusbegone/internal/failure"
	"github.com/n2code/virusbegone/internal/signature"
)

type ConflictPolicy int

const (
	RefuseOnConflict    ConflictPolicy = iota //restore fails if the original location is occupied
	OverwriteOnConflict                       //restore replaces whatever occupies the original location
)

// Manager exclusively owns the quarantine directory and its log.
// All operations are serialized, each one reads and rewrites the log as a whole.
type Manager struct {
	dir      string
	log      Log
	lockdown Lockdown
	mutex    sync.Mutex
}

func NewManager(dir string, lockdown Lockdown) *Manager {
	return &Manager{dir: dir, log: Log{path: filepath.Join(dir, LogFileName)}, lockdown: lockdown}
}

func (m *Manager) Dir() string {
	return m.dir
}

// pathOf locates the file of an entry inside the quarantine directory, whatever the log claims.
func (m *Manager) pathOf(entry Entry) string {
	return filepath.Join(m.dir, entry.Name())
}

// Isolate moves the file into quarantine, denies all access to it and records it.
// The entry is written ahead of the move and committed afterwards.
// If the access restriction fails the file stays tracked and a Permission error is returned.
func (m *Manager) Isolate(path string, sig signature.Signature) (Entry, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	const op = "isolate"

	path, err := filepath.Abs(path)
	if err != nil {
		return Entry{}, failure.New(failure.IO, op, path, err)
	}
	if filepath.Dir(path) == filepath.Clean(m.dir) {
		return Entry{}, failure.New(failure.Conflict, op, path, errors.New("file is inside the quarantine directory already"))
	}
	info, err := os.Lstat(path)
	if err != nil {
		return Entry{}, failure.New(failure.IO, op, path, err)
	}
	if !info.Mode().IsRegular() {
		return Entry{}, failure.New(failure.IO, op, path, errors.New("not a regular file"))
	}
	if err := os.MkdirAll(m.dir, 0700); err != nil {
		return Entry{}, failure.New(failure.IO, op, m.dir, err)
	}
	entries, _, err := m.log.Load()
	if err != nil {
		return Entry{}, err
	}

	name := uniqueName(m.dir, filepath.Base(path), sig, entries)
	mode := info.Mode().Perm()
	entry := Entry{
		Id:            uuid.NewString(),
		OriginalPath:  path,
		QuarantinedAs: filepath.Join(m.dir, name),
		Hash:          sig,
		Timestamp:     internal.Now().Format(TimestampFormat),
		Mode:          &mode,
		State:         Isolating,
	}
	pending := len(entries)
	entries = append(entries, entry)
	if err := m.log.Save(entries); err != nil {
		return Entry{}, err
	}

	if err := move(path, entry.QuarantinedAs); err != nil {
		moveErr := failure.New(failure.IO, op, path, err)
		if saveErr := m.log.Save(entries[:pending]); saveErr != nil {
			return Entry{}, failure.New(failure.Invariant, op, path, fmt.Errorf("%w (withdrawing pending log entry failed: %s)", moveErr, saveErr))
		}
		return Entry{}, moveErr
	}

	var lockErr error
	if err := m.lockdown.DenyAll(entry.QuarantinedAs, Everyone); err != nil {
		lockErr = failure.New(failure.Permission, op, entry.QuarantinedAs, fmt.Errorf("file moved but unprotected: %w", err))
	}

	entry.State = Committed
	entries[pending] = entry
	if err := m.log.Save(entries); err != nil {
		return entry, failure.New(failure.Invariant, op, entry.QuarantinedAs, fmt.Errorf("file moved but log entry left pending: %w", err))
	}
	return entry, lockErr
}

// List yields all log entries in order. A missing log is reported via logExists.
func (m *Manager) List() (entries []Entry, logExists bool, err error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.log.Load()
}

// Restore moves the quarantined file back to its original location and removes its entry.
func (m *Manager) Restore(name string, policy ConflictPolicy) (Entry, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	const op = "restore"

	entries, _, err := m.log.Load()
	if err != nil {
		return Entry{}, err
	}
	index := findByName(entries, name)
	if index < 0 {
		return Entry{}, failure.New(failure.NotFound, op, name, errors.New("no such entry in quarantine log"))
	}
	entry := entries[index]
	quarantined := m.pathOf(entry)
	if entry.Pending() {
		return Entry{}, failure.New(failure.Invariant, op, name, fmt.Errorf("entry is still %s, recovery required", entry.State))
	}
	if _, err := os.Lstat(quarantined); errors.Is(err, fs.ErrNotExist) {
		return Entry{}, failure.New(failure.Invariant, op, quarantined, errors.New("logged file is missing from quarantine"))
	} else if err != nil {
		return Entry{}, failure.New(failure.IO, op, quarantined, err)
	}
	if _, err := os.Lstat(entry.OriginalPath); err == nil {
		if policy == RefuseOnConflict {
			return Entry{}, failure.New(failure.Conflict, op, entry.OriginalPath, errors.New("original location is occupied"))
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return Entry{}, failure.New(failure.IO, op, entry.OriginalPath, err)
	}

	entries[index].State = Restoring
	if err := m.log.Save(entries); err != nil {
		return Entry{}, err
	}

	var rollback rollbackLog
	abort := func(kind failure.Kind, cause error) (Entry, error) {
		opErr := failure.New(kind, op, quarantined, cause)
		problems := rollback.execute()
		entries[index].State = Committed
		if saveErr := m.log.Save(entries); saveErr != nil {
			problems = append(problems, saveErr)
		}
		if len(problems) > 0 {
			return Entry{}, failure.New(failure.Invariant, op, quarantined, fmt.Errorf("%w (rollback incomplete: %s)", opErr, failure.Problems(problems)))
		}
		return Entry{}, opErr
	}

	if err := m.lockdown.AllowAll(quarantined, Everyone); err != nil {
		return abort(failure.Permission, err)
	}
	rollback.add(func() error { return m.lockdown.DenyAll(quarantined, Everyone) })
	if entry.Mode != nil {
		if err := os.Chmod(quarantined, *entry.Mode); err != nil {
			return abort(failure.IO, err)
		}
	}
	if err := os.MkdirAll(filepath.Dir(entry.OriginalPath), 0755); err != nil {
		return abort(failure.IO, err)
	}
	if err := move(quarantined, entry.OriginalPath); err != nil {
		return abort(failure.IO, err)
	}

	entries = append(entries[:index], entries[index+1:]...)
	if err := m.log.Save(entries); err != nil {
		return entry, failure.New(failure.Invariant, op, entry.OriginalPath, fmt.Errorf("file restored but log entry left pending: %w", err))
	}
	return entry, nil
}

// Delete removes a quarantined file and its entry.
// A file without entry is still removed, an entry without file is still dropped.
// Both inconsistencies are reported as Invariant error.
func (m *Manager) Delete(name string) (Entry, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	const op = "delete"

	if err := checkName(name); err != nil {
		return Entry{}, failure.New(failure.NotFound, op, name, err)
	}
	entries, _, err := m.log.Load()
	if err != nil {
		return Entry{}, err
	}
	index := findByName(entries, name)
	path := filepath.Join(m.dir, name)
	if _, err := os.Lstat(path); errors.Is(err, fs.ErrNotExist) {
		if index < 0 {
			return Entry{}, failure.New(failure.NotFound, op, name, errors.New("no such file in quarantine"))
		}
		entry := entries[index]
		entries = append(entries[:index], entries[index+1:]...)
		if err := m.log.Save(entries); err != nil {
			return entry, err
		}
		return entry, failure.New(failure.Invariant, op, path, errors.New("logged file was already missing from quarantine, entry dropped"))
	} else if err != nil {
		return Entry{}, failure.New(failure.IO, op, path, err)
	}

	if err := m.remove(path); err != nil {
		return Entry{}, failure.New(failure.IO, op, path, err)
	}
	if index < 0 {
		return Entry{}, failure.New(failure.Invariant, op, path, errors.New("file deleted but it had no quarantine log entry"))
	}
	entry := entries[index]
	entries = append(entries[:index], entries[index+1:]...)
	if err := m.log.Save(entries); err != nil {
		return entry, failure.New(failure.Invariant, op, path, fmt.Errorf("file deleted but log entry remains: %w", err))
	}
	return entry, nil
}

// DeleteAll removes every file referenced by the log and empties it.
// Files without entry are not touched, entries whose file could not be removed are kept.
func (m *Manager) DeleteAll() (deleted []Entry, err error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	const op = "delete all"

	entries, exists, err := m.log.Load()
	if err != nil {
		return nil, err
	}
	if !exists {
		if _, statErr := os.Stat(m.dir); errors.Is(statErr, fs.ErrNotExist) {
			return nil, nil //nothing was ever quarantined
		}
	}

	var remaining []Entry
	var problems failure.Problems
	for _, entry := range entries {
		path := m.pathOf(entry)
		if err := m.remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			problems = append(problems, failure.New(failure.IO, op, path, err))
			remaining = append(remaining, entry)
			continue
		}
		deleted = append(deleted, entry)
	}
	if err := m.log.Save(remaining); err != nil {
		problems = append(problems, failure.New(failure.Invariant, op, m.log.Path(), fmt.Errorf("files deleted but log not cleared: %w", err)))
	}
	return deleted, problems.OrNil()
}

// remove lifts the restrictions of a quarantined file and deletes it.
// If the deletion fails the restrictions are put back in place.
func (m *Manager) remove(path string) error {
	m.lockdown.AllowAll(path, Everyone) //deny ACLs block deletion on some platforms, os.Remove reports what still fails
	err := os.Remove(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if lockErr := m.lockdown.DenyAll(path, Everyone); lockErr != nil {
		return fmt.Errorf("%w (file left unprotected: %s)", err, lockErr)
	}
	return err
}
