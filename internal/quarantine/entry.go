package quarantine

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/n2code/virusbegone/internal/signature"
)

// TimestampFormat is the human-readable, second-precision layout of Entry.Timestamp.
const TimestampFormat = "2006-01-02 15:04:05"

// State marks entries of operations that were started but not finished.
type State string

const (
	Committed State = ""
	Isolating State = "isolating"
	Restoring State = "restoring"
)

// Entry is the log record of one quarantined file.
type Entry struct {
	Id            string              `json:"id,omitempty"`
	OriginalPath  string              `json:"original_path"`
	QuarantinedAs string              `json:"quarantined_as"` //full path inside the quarantine directory
	Hash          signature.Signature `json:"hash"`
	Timestamp     string              `json:"timestamp"`
	Mode          *os.FileMode        `json:"mode,omitempty"` //permission bits before isolation, nil if unknown
	State         State               `json:"state,omitempty"`
}

// Name is the identity of the entry: the base name of the quarantined file.
func (e Entry) Name() string {
	return filepath.Base(e.QuarantinedAs)
}

func (e Entry) Pending() bool {
	return e.State != Committed
}

func (e Entry) validate() error {
	switch {
	case e.Hash == "":
		return errors.New("hash missing")
	case e.OriginalPath == "":
		return errors.New("original_path missing")
	case e.QuarantinedAs == "":
		return errors.New("quarantined_as missing")
	}
	if err := checkName(e.Name()); err != nil {
		return err
	}
	switch e.State {
	case Committed, Isolating, Restoring:
	default:
		return fmt.Errorf("unknown state %q", e.State)
	}
	return nil
}

// checkName rejects everything that is not a plain file name inside the quarantine directory.
func checkName(name string) error {
	if name == "" || name == "." || name == ".." || filepath.Base(name) != name {
		return fmt.Errorf("%q is not a plain file name", name)
	}
	if reservedName(name) {
		return fmt.Errorf("%q is reserved for the quarantine log", name)
	}
	return nil
}

func reservedName(name string) bool {
	return name == LogFileName || name == LogFileName+workInProgressFileSuffix
}

func findByName(entries []Entry, name string) int {
	for i, entry := range entries {
		if entry.Name() == name {
			return i
		}
	}
	return -1
}
