package scan

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/n2code/virusbegone/internal/failure"
	"github.com/n2code/virusbegone/internal/output"
	"github.com/n2code/virusbegone/internal/quarantine"
	"github.com/n2code/virusbegone/internal/signature"
	"golang.org/x/sync/errgroup"
)

type Matcher interface {
	Contains(sig signature.Signature) bool
}

type Isolator interface {
	Isolate(path string, sig signature.Signature) (quarantine.Entry, error)
}

type DigestFunc func(path string) (signature.Signature, error)

// PathSkipEvaluator excludes paths from scanning and monitoring. For directories the whole subtree is skipped.
type PathSkipEvaluator func(absolutePath string, isDir bool) bool

// Engine runs the hash, match and isolate pipeline for walks and for file events alike.
type Engine struct {
	Signatures Matcher
	Quarantine Isolator
	Digest     DigestFunc
	Skip       PathSkipEvaluator
	Workers    int
	Printer    output.Printer
}

type Verdict int

const (
	Clean Verdict = iota
	Unreadable
	Infected          //matched and isolated
	InfectedUnhandled //matched but isolation failed
)

// Result summarizes one scan. Examined counts every dispatched file including unreadable ones.
type Result struct {
	Examined   int
	Unreadable int
	Infected   []string
	Failures   failure.Problems //matched files that could not be quarantined properly
}

// Inspect hashes a single file, looks it up and isolates it on a match.
func (e *Engine) Inspect(path string) (Verdict, error) {
	sig, err := e.Digest(path)
	if err != nil {
		e.Printer.Out(output.Verbose, "Skipped unreadable file: %s\n", err)
		return Unreadable, err
	}
	if !e.Signatures.Contains(sig) {
		e.Printer.Out(output.Verbose, "Clean: %s\n", path)
		return Clean, nil
	}
	e.Printer.Out(output.Normal, "%sINFECTED%s %s (signature %s)\n", output.Red, output.Reset, path, sig.Short())
	entry, err := e.Quarantine.Isolate(path, sig)
	if err != nil {
		e.Printer.Out(output.Error, "Quarantine failed: %s\n", err)
		if entry.QuarantinedAs != "" { //tracked in quarantine, only incompletely protected
			return Infected, err
		}
		return InfectedUnhandled, err
	}
	e.Printer.Out(output.Normal, "  -> quarantined as %s\n", entry.Name())
	return Infected, nil
}

// Walk scans the tree below root. With maxFiles > 0 the traversal ends once that many files were dispatched.
// Cancellation stops dispatching, files already being processed are finished.
func (e *Engine) Walk(ctx context.Context, root string, maxFiles int) (result Result, err error) {
	info, err := os.Stat(root)
	if err != nil {
		return result, failure.New(failure.IO, "scan", root, err)
	}
	if !info.IsDir() {
		return e.walkSingle(root)
	}

	group, groupCtx := errgroup.WithContext(ctx)
	workers := e.Workers
	if workers <= 0 {
		workers = 1
	}
	group.SetLimit(workers)
	var collect sync.Mutex

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := groupCtx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if path == root {
				return failure.New(failure.IO, "scan", root, err)
			}
			e.Printer.Out(output.Error, "Skipped unreadable location %s: %s\n", path, err)
			return nil
		}
		if e.Skip != nil && e.Skip(path, d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if maxFiles > 0 && result.Examined >= maxFiles {
			return filepath.SkipAll
		}
		result.Examined++ //only touched by the walking goroutine

		group.Go(func() error {
			verdict, inspectErr := e.Inspect(path)
			collect.Lock()
			defer collect.Unlock()
			result.record(path, verdict, inspectErr)
			return nil
		})
		return nil
	})
	group.Wait()
	if walkErr != nil {
		if errors.Is(walkErr, context.Canceled) || errors.Is(walkErr, context.DeadlineExceeded) {
			return result, ctx.Err()
		}
		return result, walkErr
	}
	return result, nil
}

func (e *Engine) walkSingle(path string) (result Result, err error) {
	result.Examined = 1
	verdict, inspectErr := e.Inspect(path)
	result.record(path, verdict, inspectErr)
	return
}

func (r *Result) record(path string, verdict Verdict, err error) {
	switch verdict {
	case Unreadable:
		r.Unreadable++
	case Infected:
		r.Infected = append(r.Infected, path)
	}
	if verdict >= Infected && err != nil {
		r.Failures = append(r.Failures, err)
	}
}
