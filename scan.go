package virusbegone

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/n2code/virusbegone/internal"
	"github.com/n2code/virusbegone/internal/output"
)

func (m ScanMode) String() string {
	switch m {
	case FullScan:
		return "full"
	case QuickScan:
		return "quick"
	case CustomScan:
		return "custom"
	}
	return fmt.Sprintf("ScanMode(%d)", int(m))
}

func ParseScanMode(name string) (ScanMode, error) {
	for _, mode := range []ScanMode{FullScan, QuickScan, CustomScan} {
		if strings.EqualFold(name, mode.String()) {
			return mode, nil
		}
	}
	return 0, fmt.Errorf("unknown scan mode %q (full, quick or custom)", name)
}

// scope resolves root and file limit of a request according to its mode.
func (s *scanner) scope(request ScanRequest) (root string, limit int, err error) {
	if request.MaxFiles < 0 {
		return "", 0, errors.New("file limit must not be negative")
	}
	switch request.Mode {
	case FullScan:
		root = request.Root
		limit = request.MaxFiles
	case QuickScan:
		root = request.Root
		limit = s.settings.QuickLimit
		if request.MaxFiles > 0 {
			limit = request.MaxFiles
		}
	case CustomScan:
		if request.Root == "" {
			return "", 0, errors.New("custom scan requires a path")
		}
		root = request.Root
		limit = s.settings.CustomLimit
		if request.MaxFiles > 0 {
			limit = request.MaxFiles
		}
	default:
		return "", 0, fmt.Errorf("unsupported scan mode %s", request.Mode)
	}
	if root == "" {
		root = s.settings.DefaultRoot
	}
	return mustAbsFilepath(root), limit, nil
}

func (s *scanner) Scan(ctx context.Context, request ScanRequest) (report ScanReport, err error) {
	root, limit, err := s.scope(request)
	if err != nil {
		return report, newCommandError("scan rejected", err)
	}
	report = ScanReport{Mode: request.Mode, Root: root, Limit: limit}
	if s.signatures.Count() == 0 {
		s.out.Out(output.Error, "%sWarning:%s no signatures loaded, nothing can be detected\n", output.Yellow, output.Reset)
	}

	limitInfo := "all files"
	if limit > 0 {
		limitInfo = "up to " + output.Count(limit, "file", "files")
	}
	s.out.Out(output.Normal, "Starting %s scan of %s (%s)\n", request.Mode, s.displayablePath(root), limitInfo)
	started := internal.Now()
	result, walkErr := s.engine.Walk(ctx, root, limit)
	report.Duration = internal.Now().Sub(started).Round(time.Millisecond)
	report.Examined = result.Examined
	report.Unreadable = result.Unreadable
	report.Infected = result.Infected
	report.Failures = result.Failures

	s.printScanReport(report, walkErr != nil)
	if walkErr != nil {
		return report, newCommandError(fmt.Sprintf("%s scan aborted", request.Mode), walkErr)
	}
	return report, nil
}

func (s *scanner) printScanReport(report ScanReport, aborted bool) {
	headline := "Scan complete"
	if aborted {
		headline = "Scan aborted"
	}
	var summary strings.Builder
	summary.WriteString(s.out.Sprintf("%s%s%s: %s examined", output.BoldIntensity, headline, output.Reset, output.Count(report.Examined, "file", "files")))
	if report.Unreadable > 0 {
		fmt.Fprintf(&summary, " (%d unreadable)", report.Unreadable)
	}
	fmt.Fprintf(&summary, " in %s", report.Duration)
	s.out.Out(output.Normal, "%s\n", summary.String())

	switch len(report.Infected) {
	case 0:
		if len(report.Failures) == 0 {
			s.out.Out(output.Normal, "%sNo threats found.%s\n", output.Green, output.Reset)
		}
	default:
		s.out.Out(output.Normal, "%s%s quarantined:%s\n", output.Red, output.Count(len(report.Infected), "infected file", "infected files"), output.Reset)
		for _, path := range report.Infected {
			s.out.Out(output.Normal, "  %s\n", s.displayablePath(path))
		}
	}
	if len(report.Failures) > 0 {
		s.out.Out(output.Error, "%s%s could not be quarantined properly:%s\n", output.Red, output.Count(len(report.Failures), "infected file", "infected files"), output.Reset)
		for _, failure := range report.Failures {
			s.out.Out(output.Error, "%s\n", output.Indent(2, failure.Error()))
		}
	}
}
