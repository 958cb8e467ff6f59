package virusbegone

import (
	"context"
	"time"
)

// VirusBeGone lets you interface with a scanner instance whose handle was retrieved using New.
// All quarantine operations are serialized, so a handle may be used concurrently, e.g. while Monitor is running.
type VirusBeGone interface {

	// Scan traverses the file tree selected by the request, hashes every regular file, and quarantines all files
	// whose hash is a known signature. Unreadable files are skipped and counted.
	// The scan only fails as a whole if its root cannot be read or ctx is cancelled; the partial report is returned nonetheless.
	Scan(ctx context.Context, request ScanRequest) (ScanReport, error)

	// Quarantine isolates the file at the given path regardless of whether its hash is a known signature.
	Quarantine(path string) (QuarantineRecord, error)

	// ListQuarantine yields all records of the quarantine log in order.
	// A missing log is not an error but reported via logExists, as opposed to an existing empty log.
	ListQuarantine() (records []QuarantineRecord, logExists bool, err error)

	// PrintQuarantine outputs the quarantine log, either as list or as tree of the original locations.
	PrintQuarantine(asTree bool) error

	// Restore lifts the access restriction of the quarantined file with the given name and moves it back to its original location.
	// If the original location is occupied the restore fails with ErrConflict unless overwrite is set.
	Restore(name string, overwrite bool) (QuarantineRecord, error)

	// Delete permanently removes the quarantined file with the given name along with its record.
	// Removing a file without record succeeds but yields ErrInvariant.
	Delete(name string) error

	// DeleteAll permanently removes all files referenced by the quarantine log and empties the log.
	// Files in the quarantine directory without record are left alone. The confirmation callback may be nil.
	DeleteAll(confirm RequestChoice) (deleted int, cancelled bool, err error)

	// ReloadSignatures loads the signature directory again and replaces the active signature set.
	// Malformed documents and records are skipped and listed in the returned statistics.
	ReloadSignatures() SignatureStats

	// ScheduleSignatureReload calls ReloadSignatures periodically. The schedule is a cron spec with seconds
	// ("0 */30 * * * *") or a descriptor ("@hourly", "@every 10m"). Calling stop ends the schedule.
	ScheduleSignatureReload(schedule string) (stop func(), err error)

	// Monitor watches the given directory tree (the default root if empty) and inspects every file that is created or written.
	// Monitoring runs in the background until ctx is cancelled or the returned session is stopped.
	Monitor(ctx context.Context, root string) (*MonitorSession, error)

	// VerifyQuarantine compares the quarantine log with the quarantine directory, nothing is changed.
	VerifyQuarantine() (QuarantineHealth, error)

	// RecoverQuarantine settles records of operations that were interrupted, e.g. by a crash.
	// Records whose state cannot be determined unambiguously are left as they are and reported with ErrInvariant.
	RecoverQuarantine() (QuarantineHealth, error)
}

type ScanMode int

const (
	FullScan   ScanMode = iota //unbounded, below the given root or the default root
	QuickScan                  //default root, default file limit
	CustomScan                 //given root, given or default file limit
)

type ScanRequest struct {
	Mode     ScanMode
	Root     string
	MaxFiles int //zero means mode default
}

type ScanReport struct {
	Mode       ScanMode
	Root       string
	Limit      int //zero if unbounded
	Examined   int
	Unreadable int
	Infected   []string //original paths of all files that are now quarantined
	Failures   []error  //matched files that could not be quarantined properly
	Duration   time.Duration
}

// QuarantineRecord represents a single entry of the quarantine log.
type QuarantineRecord struct {
	Name          string //identifies the record in Restore and Delete
	OriginalPath  string
	QuarantinedAs string
	Hash          string
	Timestamp     string
	Pending       bool //an operation on the record was interrupted
}

type SignatureStats struct {
	Files      int
	Signatures int
	DirMissing bool
	Problems   []error
}

type QuarantineHealth struct {
	Records  int
	Orphans  []string //files without record
	Dangling []QuarantineRecord
	Pending  []QuarantineRecord
	Resolved []QuarantineRecord
}

func (h QuarantineHealth) Consistent() bool {
	return len(h.Orphans) == 0 && len(h.Dangling) == 0 && len(h.Pending) == 0
}

// RequestChoice represents a single-choice decision callback, the first option is considered the default "yes"-like choice.
// If the choice is aborted an empty string must be returned.
// If cleanup is set the implementation is recommended to remove the choice presentation after selection.
type RequestChoice func(request string, options []string, cleanup bool) (choice string)

// AccessControl applies and lifts blanket access restrictions for a named principal on quarantined files.
type AccessControl interface {
	DenyAll(path string, principal string) error
	AllowAll(path string, principal string) error
}
