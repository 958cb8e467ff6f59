package virusbegone

import (
	"github.com/n2code/virusbegone/internal/output"
	"github.com/n2code/virusbegone/internal/signature"
	"github.com/robfig/cron"
)

func (s *scanner) ReloadSignatures() SignatureStats {
	previous := s.signatures.Count()
	report := s.signatures.Reload()
	s.reportSignatureLoad(report)
	if delta := report.Signatures - previous; delta != 0 {
		s.out.Out(output.Verbose, "Signature count changed by %+d\n", delta)
	}
	return SignatureStats{
		Files:      report.Files,
		Signatures: report.Signatures,
		DirMissing: report.DirMissing,
		Problems:   report.Problems,
	}
}

func (s *scanner) reportSignatureLoad(report signature.LoadReport) {
	if report.DirMissing {
		s.out.Out(output.Error, "%sWarning:%s signature directory %s does not exist\n", output.Yellow, output.Reset, s.signatures.Dir())
		return
	}
	for _, problem := range report.Problems {
		s.out.Out(output.Error, "Skipped: %s\n", problem)
	}
	s.out.Out(output.Verbose, "Loaded %s from %s\n",
		output.Count(report.Signatures, "signature", "signatures"), output.Count(report.Files, "document", "documents"))
}

func (s *scanner) ScheduleSignatureReload(schedule string) (stop func(), err error) {
	s.scheduleLock.Lock()
	defer s.scheduleLock.Unlock()
	if s.schedule != nil {
		s.schedule.Stop()
		s.schedule = nil
	}

	runner := cron.New()
	if err := runner.AddFunc(schedule, func() { s.ReloadSignatures() }); err != nil {
		return nil, newCommandError("invalid reload schedule", err)
	}
	runner.Start()
	s.schedule = runner
	s.out.Out(output.Verbose, "Signatures are reloaded on schedule %q\n", schedule)

	return func() {
		s.scheduleLock.Lock()
		defer s.scheduleLock.Unlock()
		runner.Stop()
		if s.schedule == runner {
			s.schedule = nil
		}
	}, nil
}
