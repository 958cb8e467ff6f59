package virusbegone

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/n2code/virusbegone/internal/hashing"
	"github.com/n2code/virusbegone/internal/output"
	"github.com/n2code/virusbegone/internal/quarantine"
	"github.com/n2code/virusbegone/internal/signature"
)

func recordOf(entry quarantine.Entry) QuarantineRecord {
	return QuarantineRecord{
		Name:          entry.Name(),
		OriginalPath:  entry.OriginalPath,
		QuarantinedAs: entry.QuarantinedAs,
		Hash:          entry.Hash.String(),
		Timestamp:     entry.Timestamp,
		Pending:       entry.Pending(),
	}
}

func recordsOf(entries []quarantine.Entry) (records []QuarantineRecord) {
	for _, entry := range entries {
		records = append(records, recordOf(entry))
	}
	return
}

func (s *scanner) Quarantine(path string) (QuarantineRecord, error) {
	path = mustAbsFilepath(path)
	sig, err := hashing.Digest(path)
	if err != nil {
		return QuarantineRecord{}, newCommandError("quarantine failed", err)
	}
	entry, err := s.quarantine.Isolate(path, sig)
	if err != nil {
		if entry.QuarantinedAs != "" {
			s.out.Out(output.Error, "%s was moved to quarantine as %s but is not fully locked\n", s.displayablePath(path), entry.Name())
		}
		return recordOf(entry), newCommandError("quarantine failed", err)
	}
	s.out.Out(output.Normal, "Quarantined %s as %s\n", s.displayablePath(path), entry.Name())
	if !s.signatures.Contains(sig) {
		s.out.Out(output.Verbose, "(hash %s is not a known signature)\n", sig)
	}
	return recordOf(entry), nil
}

func (s *scanner) ListQuarantine() ([]QuarantineRecord, bool, error) {
	entries, exists, err := s.quarantine.List()
	if err != nil {
		return nil, false, newCommandError("reading quarantine log failed", err)
	}
	return recordsOf(entries), exists, nil
}

func (s *scanner) PrintQuarantine(asTree bool) error {
	records, exists, err := s.ListQuarantine()
	if err != nil {
		return err
	}
	if !exists {
		s.out.Out(output.Required, "Nothing was ever quarantined.\n")
		return nil
	}
	if len(records) == 0 {
		s.out.Out(output.Required, "Quarantine is empty.\n")
		return nil
	}
	if asTree {
		s.printQuarantineTree(records)
	} else {
		for _, record := range records {
			s.out.Out(output.Required, "%s\n", s.describeRecord(record))
		}
	}
	s.out.Out(output.Normal, "%s in %s\n", output.Count(len(records), "quarantined file", "quarantined files"), s.quarantine.Dir())
	return nil
}

func (s *scanner) describeRecord(record QuarantineRecord) string {
	marker := ""
	if record.Pending {
		marker = s.out.Sprintf(" %s[INCOMPLETE]%s", output.Yellow, output.Reset)
	}
	return s.out.Sprintf("%s%s%s%s\n  from %s\n  hash %s, quarantined %s",
		output.BoldIntensity, record.Name, output.Reset, marker, record.OriginalPath, signature.Signature(record.Hash).Short(), record.Timestamp)
}

func (s *scanner) printQuarantineTree(records []QuarantineRecord) {
	origins := make([]string, 0, len(records))
	for _, record := range records {
		origins = append(origins, record.OriginalPath)
	}
	common := output.CommonDir(origins)
	tree := output.NewVisualFileTree(common)
	for _, record := range records {
		rel, err := filepath.Rel(common, record.OriginalPath)
		if err != nil {
			rel = record.OriginalPath
		}
		label := s.out.Sprintf("%s %s[%s]%s", filepath.Base(rel), output.FaintIntensity, record.Name, output.Reset)
		if record.Pending {
			label += s.out.Sprintf(" %s[INCOMPLETE]%s", output.Yellow, output.Reset)
		}
		tree.InsertPath(rel, label)
	}
	s.out.Out(output.Required, "%s\n", tree.Render())
}

func (s *scanner) Restore(name string, overwrite bool) (QuarantineRecord, error) {
	policy := quarantine.RefuseOnConflict
	if overwrite {
		policy = quarantine.OverwriteOnConflict
	}
	entry, err := s.quarantine.Restore(name, policy)
	if err != nil {
		if errors.Is(err, ErrConflict) && !overwrite {
			s.out.Out(output.Normal, "Original location is occupied, restoring requires permission to overwrite.\n")
		}
		return recordOf(entry), newCommandError(fmt.Sprintf("restoring %s failed", name), err)
	}
	s.out.Out(output.Normal, "Restored %s to %s\n", name, s.displayablePath(entry.OriginalPath))
	return recordOf(entry), nil
}

func (s *scanner) Delete(name string) error {
	entry, err := s.quarantine.Delete(name)
	if err != nil {
		if errors.Is(err, ErrInvariant) {
			s.out.Out(output.Error, "%s deleted, but the quarantine log is inconsistent\n", name)
		}
		return newCommandError(fmt.Sprintf("deleting %s failed", name), err)
	}
	s.out.Out(output.Normal, "Deleted %s (was %s)\n", name, s.displayablePath(entry.OriginalPath))
	return nil
}

func (s *scanner) DeleteAll(confirm RequestChoice) (deleted int, cancelled bool, err error) {
	records, exists, err := s.ListQuarantine()
	if err != nil {
		return 0, false, err
	}
	if exists && len(records) > 0 && confirm != nil {
		const proceed, abort = "Delete", "Cancel"
		question := fmt.Sprintf("Permanently delete %s?", output.Count(len(records), "quarantined file", "quarantined files"))
		if choice := confirm(question, []string{proceed, abort}, true); choice != proceed {
			s.out.Out(output.Normal, "Nothing deleted.\n")
			return 0, true, nil
		}
	}

	entries, err := s.quarantine.DeleteAll()
	for _, entry := range entries {
		s.out.Out(output.Verbose, "Deleted %s\n", entry.Name())
	}
	s.out.Out(output.Normal, "%s deleted.\n", output.Count(len(entries), "quarantined file", "quarantined files"))
	if err != nil {
		return len(entries), false, newCommandError("deleting quarantine incomplete", err)
	}
	return len(entries), false, nil
}

func healthOf(report quarantine.Report) QuarantineHealth {
	return QuarantineHealth{
		Records:  report.Entries,
		Orphans:  report.Orphans,
		Dangling: recordsOf(report.Dangling),
		Pending:  recordsOf(report.Pending),
		Resolved: recordsOf(report.Resolved),
	}
}

func (s *scanner) VerifyQuarantine() (QuarantineHealth, error) {
	report, err := s.quarantine.Verify()
	if err != nil {
		return QuarantineHealth{}, newCommandError("verifying quarantine failed", err)
	}
	health := healthOf(report)
	s.printHealth(health)
	return health, nil
}

func (s *scanner) RecoverQuarantine() (QuarantineHealth, error) {
	report, err := s.quarantine.Recover()
	health := healthOf(report)
	for _, record := range health.Resolved {
		s.out.Out(output.Normal, "Settled interrupted operation on %s\n", record.Name)
	}
	s.printHealth(health)
	if err != nil {
		return health, newCommandError("recovering quarantine incomplete", err)
	}
	return health, nil
}

func (s *scanner) printHealth(health QuarantineHealth) {
	for _, orphan := range health.Orphans {
		s.out.Out(output.Required, "%sOrphan:%s %s has no log record\n", output.Yellow, output.Reset, orphan)
	}
	for _, record := range health.Dangling {
		s.out.Out(output.Required, "%sMissing:%s %s (from %s) is gone from the quarantine directory\n", output.Red, output.Reset, record.Name, record.OriginalPath)
	}
	for _, record := range health.Pending {
		s.out.Out(output.Required, "%sIncomplete:%s %s (from %s)\n", output.Yellow, output.Reset, record.Name, record.OriginalPath)
	}
	if health.Consistent() {
		s.out.Out(output.Required, "%sQuarantine is consistent%s (%s)\n", output.Green, output.Reset, output.Count(health.Records, "record", "records"))
	}
}
