package quarantine

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/n2code/virusbegone/internal"
	"github.com/n2code/virusbegone/internal/failure"
)

const LogFileName = "quarantine_log.json"
const workInProgressFileSuffix = ".wip"

// Log is the durable record of all quarantined files, rewritten in full on every change.
type Log struct {
	path string
}

func (l Log) Path() string {
	return l.path
}

// Load reads all entries. A missing log file is not an error but reported via exists.
func (l Log) Load() (entries []Entry, exists bool, err error) {
	content, err := os.ReadFile(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, failure.New(failure.IO, "read quarantine log", l.path, err)
	}
	if len(bytes.TrimSpace(content)) == 0 {
		return []Entry{}, true, nil
	}
	if err := json.Unmarshal(content, &entries); err != nil {
		return nil, true, failure.New(failure.Parse, "read quarantine log", l.path, err)
	}
	for i, entry := range entries {
		if err := entry.validate(); err != nil {
			return nil, true, failure.New(failure.Parse, "read quarantine log", l.path, fmt.Errorf("entry #%d: %w", i+1, err))
		}
	}
	if entries == nil {
		entries = []Entry{}
	}
	return entries, true, nil
}

// Save replaces the log with the given entries. The new content is written to a
// work-in-progress file first which then takes the place of the log, so readers
// see either the old or the new version.
func (l Log) Save(entries []Entry) (err error) {
	defer func() {
		if err != nil {
			err = failure.New(failure.IO, "write quarantine log", l.path, err)
		}
	}()

	if entries == nil {
		entries = []Entry{}
	}
	content, marshalErr := json.MarshalIndent(entries, "", "  ")
	internal.AssertNoError(marshalErr, "entries consist of plain values only")
	content = append(content, '\n')

	tempPath := l.path + workInProgressFileSuffix
	file, err := os.OpenFile(tempPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return
	}
	if _, err = file.Write(content); err != nil {
		file.Close()
		return
	}
	if err = file.Sync(); err != nil {
		file.Close()
		return
	}
	if err = file.Close(); err != nil {
		return
	}

	if err = os.Rename(tempPath, l.path); err != nil {
		return fmt.Errorf("replacing log with temporary working copy (%s) failed: %w", tempPath, err)
	}
	return nil
}
