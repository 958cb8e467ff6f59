package signature

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/errwrap"
	"github.com/n2code/virusbegone/internal/failure"
)

// Signature is the lowercase hexadecimal SHA-256 digest of a known-malicious file.
type Signature string

// Normalize trims and lowercases a digest as found in signature documents so that comparisons are case-insensitive.
func Normalize(raw string) Signature {
	return Signature(strings.ToLower(strings.TrimSpace(raw)))
}

func (s Signature) String() string {
	return string(s)
}

// Short yields the leading 8 hex digits, enough to tell signatures apart in names and listings.
func (s Signature) Short() string {
	if len(s) < 8 {
		return string(s)
	}
	return string(s[:8])
}

type Set map[Signature]struct{}

func (s Set) Contains(sig Signature) bool {
	_, found := s[sig]
	return found
}

const definitionFileExtension = ".json"

type LoadReport struct {
	Files      int //signature documents that were read successfully
	Signatures int //distinct signatures in the resulting set
	DirMissing bool
	Problems   failure.Problems
}

type record struct {
	Hash *string `json:"hash"`
}

// LoadDir reads every *.json document in dir. Each document holds a list of records with at least a "hash" field.
// Malformed documents and records are skipped and reported, a missing directory yields an empty set.
func LoadDir(dir string) (Set, LoadReport) {
	set := make(Set)
	var report LoadReport

	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			report.DirMissing = true
		}
		report.Problems = append(report.Problems, failure.New(failure.IO, "read signature directory", dir, err))
		return set, report
	}

	var names []string
	for _, entry := range dirEntries {
		if entry.Type().IsRegular() && strings.EqualFold(filepath.Ext(entry.Name()), definitionFileExtension) {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		path := filepath.Join(dir, name)
		accepted, problems := loadFile(path, set)
		if accepted {
			report.Files++
		}
		report.Problems = append(report.Problems, problems...)
	}
	report.Signatures = len(set)
	return set, report
}

// loadFile adds all valid records of a document to the set. Accepted is false if the document as a whole was skipped.
func loadFile(path string, into Set) (accepted bool, problems failure.Problems) {
	content, err := os.ReadFile(path)
	if err != nil {
		return false, failure.Problems{failure.New(failure.IO, "read signature file", path, err)}
	}
	var records []json.RawMessage
	if err := json.Unmarshal(content, &records); err != nil {
		cause := errwrap.Wrapf("document is not a list of records: {{err}}", err)
		return false, failure.Problems{failure.New(failure.Parse, "load signature file", path, cause)}
	}
	accepted = true
	for i, raw := range records {
		var rec record
		if err := json.Unmarshal(raw, &rec); err != nil {
			cause := errwrap.Wrapf(fmt.Sprintf("record #%d skipped: {{err}}", i+1), err)
			problems = append(problems, failure.New(failure.Parse, "load signature file", path, cause))
			continue
		}
		if rec.Hash == nil {
			problems = append(problems, failure.New(failure.Parse, "load signature file", path, fmt.Errorf("record #%d skipped: hash missing", i+1)))
			continue
		}
		sig := Normalize(*rec.Hash)
		if sig == "" {
			problems = append(problems, failure.New(failure.Parse, "load signature file", path, fmt.Errorf("record #%d skipped: hash empty", i+1)))
			continue
		}
		into[sig] = struct{}{}
	}
	return
}
