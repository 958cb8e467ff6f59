package virusbegone

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/n2code/virusbegone/internal/watch"
)

type lockRecorder struct {
	mutex  sync.Mutex
	locked map[string]bool
}

func (l *lockRecorder) DenyAll(path string, principal string) error {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.locked[path] = true
	return nil
}

func (l *lockRecorder) AllowAll(path string, principal string) error {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	delete(l.locked, path)
	return nil
}

func (l *lockRecorder) isLocked(path string) bool {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return l.locked[path]
}

type testbed struct {
	t          *testing.T
	base       string
	area       string //scanned files live here
	signatures string
	quarantine string
	lockdown   *lockRecorder
	stdout     bytes.Buffer
	stderr     bytes.Buffer
	handle     VirusBeGone
}

func hashOf(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

func newTestbed(t *testing.T) *testbed {
	t.Helper()
	tmpDir, err := os.MkdirTemp("", "virusbegone-test-*")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(tmpDir) })
	base, _ := filepath.EvalSymlinks(tmpDir)
	bed := &testbed{
		t:          t,
		base:       base,
		area:       filepath.Join(base, "area"),
		signatures: filepath.Join(base, "signatures"),
		quarantine: filepath.Join(base, "quarantine"),
		lockdown:   &lockRecorder{locked: make(map[string]bool)},
	}
	for _, dir := range []string{bed.area, bed.signatures} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatal(err)
		}
	}
	return bed
}

func (b *testbed) open() {
	b.t.Helper()
	handle, err := New(CreateConfig{
		Verbosity:     VerboseMode,
		PlainOutput:   true,
		SignaturesDir: b.signatures,
		QuarantineDir: b.quarantine,
		DefaultRoot:   b.area,
		Workers:       2,
		Lockdown:      b.lockdown,
		Stdout:        &b.stdout,
		Stderr:        &b.stderr,
	})
	if err != nil {
		b.t.Fatal(err)
	}
	b.handle = handle
}

func (b *testbed) writeSignatures(file string, contents ...string) {
	b.t.Helper()
	var records []string
	for _, content := range contents {
		records = append(records, fmt.Sprintf(`{"hash": %q, "name": "Test.Malware"}`, hashOf(content)))
	}
	document := "[" + strings.Join(records, ",") + "]"
	if err := os.WriteFile(filepath.Join(b.signatures, file), []byte(document), 0644); err != nil {
		b.t.Fatal(err)
	}
}

func (b *testbed) writeFile(relPath string, content string) string {
	b.t.Helper()
	path := filepath.Join(b.area, relPath)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		b.t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		b.t.Fatal(err)
	}
	return path
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

func TestScanQuarantinesKnownMalware(t *testing.T) {
	bed := newTestbed(t)
	bed.writeSignatures("main.json", "evil payload")
	infected := bed.writeFile("downloads/named_file", "evil payload")
	clean := bed.writeFile("downloads/photo.jpg", "just pixels")
	bed.open()

	report, err := bed.handle.Scan(context.Background(), ScanRequest{Mode: CustomScan, Root: bed.area})
	if err != nil {
		t.Fatal(err)
	}
	if report.Examined != 2 || len(report.Infected) != 1 || report.Infected[0] != infected {
		t.Fatalf("unexpected report %+v", report)
	}
	if report.Limit != 1000 {
		t.Errorf("custom scan should default to 1000 files, got %d", report.Limit)
	}
	if exists(infected) || !exists(clean) {
		t.Error("only the infected file must be moved")
	}

	moved := filepath.Join(bed.quarantine, "named_file")
	if !exists(moved) {
		t.Fatal("infected file missing in quarantine under its base name")
	}
	if !bed.lockdown.isLocked(moved) {
		t.Error("quarantined file must be locked")
	}
	records, logExists, err := bed.handle.ListQuarantine()
	if err != nil || !logExists {
		t.Fatalf("log expected, got %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	record := records[0]
	if record.OriginalPath != infected || record.QuarantinedAs != moved || record.Hash != hashOf("evil payload") || record.Pending {
		t.Errorf("unexpected record %+v", record)
	}
	if _, err := time.Parse("2006-01-02 15:04:05", record.Timestamp); err != nil {
		t.Errorf("timestamp has unexpected format: %s", record.Timestamp)
	}
	if !strings.Contains(bed.stdout.String(), "INFECTED") {
		t.Error("detection should be reported")
	}
}

func TestScanModes(t *testing.T) {
	bed := newTestbed(t)
	for i := 0; i < 12; i++ {
		bed.writeFile(fmt.Sprintf("f%02d", i), "clean")
	}
	bed.open()
	instance := bed.handle.(*scanner)
	instance.settings.QuickLimit = 5

	quick, err := bed.handle.Scan(context.Background(), ScanRequest{Mode: QuickScan})
	if err != nil {
		t.Fatal(err)
	}
	if quick.Examined != 5 || quick.Root != bed.area {
		t.Errorf("quick scan should examine 5 files of the default root, got %+v", quick)
	}

	full, err := bed.handle.Scan(context.Background(), ScanRequest{Mode: FullScan})
	if err != nil {
		t.Fatal(err)
	}
	if full.Examined != 12 || full.Limit != 0 {
		t.Errorf("full scan must be unbounded, got %+v", full)
	}

	custom, err := bed.handle.Scan(context.Background(), ScanRequest{Mode: CustomScan, Root: bed.area, MaxFiles: 3})
	if err != nil {
		t.Fatal(err)
	}
	if custom.Examined != 3 {
		t.Errorf("custom scan should respect the given limit, got %d", custom.Examined)
	}

	if _, err := bed.handle.Scan(context.Background(), ScanRequest{Mode: CustomScan}); err == nil {
		t.Error("custom scan without path must be rejected")
	}
	if _, err := bed.handle.Scan(context.Background(), ScanRequest{Mode: CustomScan, Root: filepath.Join(bed.base, "nope")}); !errors.Is(err, ErrIO) {
		t.Errorf("missing scan root should be an I/O error, got %v", err)
	}
}

func TestScanReportIndentsFailures(t *testing.T) {
	bed := newTestbed(t)
	bed.open()
	instance := bed.handle.(*scanner)
	bed.stderr.Reset()

	instance.printScanReport(ScanReport{Examined: 2, Failures: []error{errors.Join(errors.New("isolate failed"), errors.New("rollback incomplete"))}}, false)
	if !strings.Contains(bed.stderr.String(), "\n  isolate failed\n  rollback incomplete\n") {
		t.Errorf("every line of a failure must be indented:\n%s", bed.stderr.String())
	}
}

func TestScanSkipsOwnDirectories(t *testing.T) {
	bed := newTestbed(t)
	bed.quarantine = filepath.Join(bed.area, ".quarantine")
	bed.signatures = filepath.Join(bed.area, ".signatures")
	if err := os.MkdirAll(bed.signatures, 0755); err != nil {
		t.Fatal(err)
	}
	bed.writeSignatures("s.json", "bad")
	bed.writeFile("a/bad.bin", "bad")
	bed.open()

	first, err := bed.handle.Scan(context.Background(), ScanRequest{Mode: FullScan})
	if err != nil {
		t.Fatal(err)
	}
	second, err := bed.handle.Scan(context.Background(), ScanRequest{Mode: FullScan})
	if err != nil {
		t.Fatal(err)
	}
	if len(first.Infected) != 1 || len(second.Infected) != 0 {
		t.Errorf("quarantined file must not be found again: %v then %v", first.Infected, second.Infected)
	}
	if second.Examined != 0 {
		t.Errorf("signature and quarantine files must not be scanned, examined %d", second.Examined)
	}
}

func TestRestoreRoundTrip(t *testing.T) {
	bed := newTestbed(t)
	bed.writeSignatures("main.json", "evil")
	original := bed.writeFile("x/tool.exe", "evil")
	bed.open()

	if _, err := bed.handle.Scan(context.Background(), ScanRequest{Mode: FullScan}); err != nil {
		t.Fatal(err)
	}
	bed.writeFile("x/tool.exe", "replacement")
	if _, err := bed.handle.Restore("tool.exe", false); !errors.Is(err, ErrConflict) {
		t.Fatalf("occupied original location must be a conflict, got %v", err)
	}
	if !exists(filepath.Join(bed.quarantine, "tool.exe")) {
		t.Fatal("refused restore must leave the file in quarantine")
	}

	record, err := bed.handle.Restore("tool.exe", true)
	if err != nil {
		t.Fatal(err)
	}
	if record.OriginalPath != original {
		t.Errorf("restored to unexpected location %s", record.OriginalPath)
	}
	content, err := os.ReadFile(original)
	if err != nil || string(content) != "evil" {
		t.Errorf("original content expected after restore, got %q (%v)", content, err)
	}
	if bed.lockdown.isLocked(filepath.Join(bed.quarantine, "tool.exe")) {
		t.Error("lock must be lifted")
	}
	records, _, _ := bed.handle.ListQuarantine()
	if len(records) != 0 {
		t.Errorf("record must be removed, got %v", records)
	}

	if _, err := bed.handle.Restore("tool.exe", false); !errors.Is(err, ErrNotFound) {
		t.Errorf("second restore should fail with not found, got %v", err)
	}
}

func TestReloadChangesDetection(t *testing.T) {
	bed := newTestbed(t)
	bed.writeFile("new.bin", "fresh threat")
	bed.open()

	report, err := bed.handle.Scan(context.Background(), ScanRequest{Mode: FullScan})
	if err != nil || len(report.Infected) != 0 {
		t.Fatalf("nothing known yet, got %v (%v)", report.Infected, err)
	}

	bed.writeSignatures("update.json", "fresh threat")
	if err := os.WriteFile(filepath.Join(bed.signatures, "broken.json"), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	stats := bed.handle.ReloadSignatures()
	if stats.Signatures != 1 || stats.Files != 1 || len(stats.Problems) != 1 {
		t.Errorf("unexpected reload stats %+v", stats)
	}
	if !errors.Is(stats.Problems[0], ErrParse) {
		t.Errorf("broken document should be a parse problem, got %v", stats.Problems[0])
	}

	report, err = bed.handle.Scan(context.Background(), ScanRequest{Mode: FullScan})
	if err != nil || len(report.Infected) != 1 {
		t.Errorf("reloaded signature should match, got %v (%v)", report.Infected, err)
	}
}

func TestMissingSignatureDirectory(t *testing.T) {
	bed := newTestbed(t)
	bed.signatures = filepath.Join(bed.base, "absent")
	bed.open()
	stats := bed.handle.ReloadSignatures()
	if !stats.DirMissing || stats.Signatures != 0 {
		t.Errorf("unexpected stats %+v", stats)
	}
	if !strings.Contains(bed.stderr.String(), "does not exist") {
		t.Error("missing directory should be warned about")
	}
}

func TestDeleteAll(t *testing.T) {
	bed := newTestbed(t)
	bed.open()

	deleted, cancelled, err := bed.handle.DeleteAll(nil)
	if err != nil || deleted != 0 || cancelled {
		t.Fatalf("empty quarantine must delete nothing, got %d %v %v", deleted, cancelled, err)
	}

	bed.writeFile("one", "1")
	bed.writeFile("two", "2")
	for _, name := range []string{"one", "two"} {
		if _, err := bed.handle.Quarantine(filepath.Join(bed.area, name)); err != nil {
			t.Fatal(err)
		}
	}
	orphan := filepath.Join(bed.quarantine, "stray")
	if err := os.WriteFile(orphan, nil, 0644); err != nil {
		t.Fatal(err)
	}

	refuse := func(string, []string, bool) string { return "" }
	if _, cancelled, _ := bed.handle.DeleteAll(refuse); !cancelled {
		t.Error("refused confirmation must cancel")
	}
	records, _, _ := bed.handle.ListQuarantine()
	if len(records) != 2 {
		t.Fatalf("cancelled deletion must keep records, got %d", len(records))
	}

	accept := func(request string, options []string, cleanup bool) string { return options[0] }
	deleted, _, err = bed.handle.DeleteAll(accept)
	if err != nil || deleted != 2 {
		t.Fatalf("expected 2 deletions, got %d (%v)", deleted, err)
	}
	records, logExists, _ := bed.handle.ListQuarantine()
	if !logExists || len(records) != 0 {
		t.Errorf("log must remain as empty list, got %v", records)
	}
	if !exists(orphan) {
		t.Error("files without record must be left alone")
	}
	health, err := bed.handle.VerifyQuarantine()
	if err != nil || len(health.Orphans) != 1 || health.Consistent() {
		t.Errorf("orphan should be reported, got %+v (%v)", health, err)
	}
}

func TestDelete(t *testing.T) {
	bed := newTestbed(t)
	path := bed.writeFile("victim", "v")
	bed.open()
	if _, err := bed.handle.Quarantine(path); err != nil {
		t.Fatal(err)
	}
	if err := bed.handle.Delete("victim"); err != nil {
		t.Fatal(err)
	}
	if exists(filepath.Join(bed.quarantine, "victim")) {
		t.Error("file must be gone")
	}
	if err := bed.handle.Delete("victim"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestPrintQuarantine(t *testing.T) {
	bed := newTestbed(t)
	bed.open()
	if err := bed.handle.PrintQuarantine(false); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(bed.stdout.String(), "Nothing was ever quarantined") {
		t.Error("missing log should be distinguishable")
	}

	bed.writeFile("a/b/first", "1")
	bed.writeFile("a/c/second", "2")
	for _, rel := range []string{"a/b/first", "a/c/second"} {
		if _, err := bed.handle.Quarantine(filepath.Join(bed.area, rel)); err != nil {
			t.Fatal(err)
		}
	}
	bed.stdout.Reset()
	if err := bed.handle.PrintQuarantine(true); err != nil {
		t.Fatal(err)
	}
	printed := bed.stdout.String()
	for _, expected := range []string{filepath.Join(bed.area, "a"), "b/", "c/", "first [first]", "second [second]"} {
		if !strings.Contains(printed, expected) {
			t.Errorf("tree lacks %q:\n%s", expected, printed)
		}
	}
}

type fakeSource struct {
	events chan watch.Event
	closed chan struct{}
	once   sync.Once
}

func (s *fakeSource) Events() <-chan watch.Event {
	return s.events
}

func (s *fakeSource) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

func TestMonitorSession(t *testing.T) {
	bed := newTestbed(t)
	bed.writeSignatures("main.json", "dropper")
	bed.open()
	source := &fakeSource{events: make(chan watch.Event, 8), closed: make(chan struct{})}
	var watchedRoot string
	bed.handle.(*scanner).watchTree = func(root string, options watch.Options) (watch.Source, error) {
		watchedRoot = root
		if !options.Skip(filepath.Join(bed.quarantine, "x")) {
			t.Error("quarantine must be excluded from monitoring")
		}
		return source, nil
	}

	session, err := bed.handle.Monitor(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	if watchedRoot != bed.area {
		t.Errorf("default root expected, got %s", watchedRoot)
	}
	dropped := bed.writeFile("incoming/payload", "dropper")
	source.events <- watch.Event{Path: dropped, Op: watch.Create}
	source.events <- watch.Event{Path: bed.writeFile("harmless", "ok"), Op: watch.Modify}

	deadline := time.Now().Add(5 * time.Second)
	for exists(dropped) {
		if time.Now().After(deadline) {
			t.Fatal("dropped file was not quarantined")
		}
		time.Sleep(10 * time.Millisecond)
	}
	summary, err := session.Stop()
	if err != nil {
		t.Fatal(err)
	}
	if len(summary.Infected) != 1 || summary.Infected[0] != dropped {
		t.Errorf("unexpected summary %+v", summary)
	}
	select {
	case <-source.closed:
	default:
		t.Error("source must be closed after monitoring")
	}
	select {
	case <-session.Done():
	default:
		t.Error("session must be done after stop")
	}
}

func TestScheduleSignatureReload(t *testing.T) {
	bed := newTestbed(t)
	bed.open()
	if _, err := bed.handle.ScheduleSignatureReload("not a schedule"); err == nil {
		t.Error("invalid schedule must be rejected")
	}
	stop, err := bed.handle.ScheduleSignatureReload("@every 1s")
	if err != nil {
		t.Fatal(err)
	}
	defer stop()
	bed.writeSignatures("late.json", "late")

	instance := bed.handle.(*scanner)
	deadline := time.Now().Add(10 * time.Second)
	for instance.signatures.Count() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("scheduled reload did not happen")
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func TestParseScanMode(t *testing.T) {
	for _, mode := range []ScanMode{FullScan, QuickScan, CustomScan} {
		parsed, err := ParseScanMode(strings.ToUpper(mode.String()))
		if err != nil || parsed != mode {
			t.Errorf("round trip of %s failed", mode)
		}
	}
	if _, err := ParseScanMode("deep"); err == nil {
		t.Error("unknown mode must be rejected")
	}
}
