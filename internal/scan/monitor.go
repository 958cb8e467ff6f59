package scan

import (
	"context"

	"github.com/n2code/virusbegone/internal/output"
	"github.com/n2code/virusbegone/internal/watch"
)

// MonitorStats counts what a monitoring session has processed so far.
type MonitorStats struct {
	Events   int
	Infected []string
	Failures int
}

// Monitor inspects every created or modified file reported by the source until ctx is done
// or the source is exhausted. An inspection in progress is always finished before returning.
func (e *Engine) Monitor(ctx context.Context, source watch.Source) (stats MonitorStats, err error) {
	events := source.Events()
	for {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		case event, open := <-events:
			if !open {
				return stats, nil
			}
			if event.IsDir {
				continue
			}
			if e.Skip != nil && e.Skip(event.Path, false) {
				continue
			}
			stats.Events++
			e.Printer.Out(output.Verbose, "File %s: %s\n", event.Op, event.Path)
			verdict, inspectErr := e.Inspect(event.Path)
			if verdict == Infected {
				stats.Infected = append(stats.Infected, event.Path)
			}
			if verdict >= Infected && inspectErr != nil {
				stats.Failures++
			}
		}
	}
}
