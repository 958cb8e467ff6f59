package quarantine

import (
	"errors"
	"io/fs"
	"os"

	"github.com/n2code/virusbegone/internal/failure"
)

// Report describes how the quarantine directory and its log relate.
type Report struct {
	Entries  int
	Orphans  []string //files in the quarantine directory without entry
	Dangling []Entry  //committed entries whose file is missing
	Pending  []Entry  //entries of interrupted operations
	Resolved []Entry  //pending entries settled by Recover
}

func (r Report) Consistent() bool {
	return len(r.Orphans) == 0 && len(r.Dangling) == 0 && len(r.Pending) == 0
}

// Verify compares the log with the directory content without changing anything.
func (m *Manager) Verify() (report Report, err error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	entries, _, err := m.log.Load()
	if err != nil {
		return
	}
	dirEntries, err := os.ReadDir(m.dir)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return report, failure.New(failure.IO, "verify", m.dir, err)
	}

	present := make(map[string]bool)
	for _, dirEntry := range dirEntries {
		if !reservedName(dirEntry.Name()) {
			present[dirEntry.Name()] = true
		}
	}
	report.Entries = len(entries)
	for _, entry := range entries {
		switch {
		case entry.Pending():
			report.Pending = append(report.Pending, entry)
		case !present[entry.Name()]:
			report.Dangling = append(report.Dangling, entry)
		}
		delete(present, entry.Name())
	}
	for _, dirEntry := range dirEntries {
		if present[dirEntry.Name()] {
			report.Orphans = append(report.Orphans, dirEntry.Name())
		}
	}
	return report, nil
}

// Recover settles entries of interrupted operations where the filesystem state is unambiguous:
// A file found only in quarantine is locked and its entry committed. A file found only at its
// original location means the operation did not happen (isolate) or did complete (restore), the entry is dropped.
// Everything else stays pending and is reported.
func (m *Manager) Recover() (report Report, err error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	const op = "recover"

	entries, _, err := m.log.Load()
	if err != nil {
		return
	}

	exists := func(path string) bool {
		_, err := os.Lstat(path)
		return err == nil
	}
	var kept []Entry
	var problems failure.Problems
	for _, entry := range entries {
		if !entry.Pending() {
			kept = append(kept, entry)
			continue
		}
		inQuarantine := exists(m.pathOf(entry))
		atOrigin := exists(entry.OriginalPath)
		switch {
		case inQuarantine && !atOrigin:
			if err := m.lockdown.DenyAll(m.pathOf(entry), Everyone); err != nil {
				problems = append(problems, failure.New(failure.Permission, op, m.pathOf(entry), err))
			}
			entry.State = Committed
			kept = append(kept, entry)
			report.Resolved = append(report.Resolved, entry)
		case atOrigin && !inQuarantine:
			report.Resolved = append(report.Resolved, entry)
		default:
			kept = append(kept, entry)
			report.Pending = append(report.Pending, entry)
			problems = append(problems, failure.New(failure.Invariant, op, entry.OriginalPath,
				errors.New("cannot tell whether the "+string(entry.State)+" operation completed")))
		}
	}
	report.Entries = len(kept)

	if len(report.Resolved) > 0 {
		if err := m.log.Save(kept); err != nil {
			return report, err
		}
	}
	return report, problems.OrNil()
}
