package virusbegone

import (
	"context"
	"errors"
	"sync"

	"github.com/n2code/virusbegone/internal/output"
	"github.com/n2code/virusbegone/internal/scan"
	"github.com/n2code/virusbegone/internal/watch"
)

// MonitorSession represents real-time monitoring running in the background.
type MonitorSession struct {
	Root string

	cancel context.CancelFunc
	done   chan struct{}

	mutex   sync.Mutex
	stats   scan.MonitorStats
	dropped int
	err     error
}

// MonitorSummary describes what a monitoring session processed.
type MonitorSummary struct {
	Events   int      //inspected file events
	Dropped  int      //events lost because inspection fell behind
	Infected []string //original paths of files quarantined while monitoring
	Failures int      //matched files that could not be quarantined properly
}

func (s *scanner) Monitor(ctx context.Context, root string) (*MonitorSession, error) {
	if root == "" {
		root = s.settings.DefaultRoot
	}
	root = mustAbsFilepath(root)

	session := &MonitorSession{Root: root, done: make(chan struct{})}
	source, err := s.watchTree(root, watch.Options{
		Buffer: s.settings.EventBuffer,
		Skip: func(path string) bool {
			return s.isExcluded(path, true)
		},
		OnDrop: func(event watch.Event) {
			session.mutex.Lock()
			session.dropped++
			session.mutex.Unlock()
			s.out.Out(output.Error, "Monitor falling behind, event dropped: %s\n", event.Path)
		},
		OnError: func(err error) {
			s.out.Out(output.Error, "Monitor: %s\n", err)
		},
	})
	if err != nil {
		return nil, newCommandError("starting monitor failed", err)
	}

	sessionCtx, cancel := context.WithCancel(ctx)
	session.cancel = cancel
	s.out.Out(output.Normal, "Monitoring %s\n", s.displayablePath(root))
	go func() {
		defer close(session.done)
		stats, err := s.engine.Monitor(sessionCtx, source)
		source.Close()
		if errors.Is(err, context.Canceled) {
			err = nil
		}
		session.mutex.Lock()
		session.stats = stats
		session.err = err
		session.mutex.Unlock()
		s.out.Out(output.Normal, "Monitoring of %s ended (%s, %s quarantined)\n",
			s.displayablePath(root), output.Count(stats.Events, "event", "events"), output.Count(len(stats.Infected), "file", "files"))
	}()
	return session, nil
}

// Stop ends monitoring and waits until the inspection in progress is finished.
func (m *MonitorSession) Stop() (MonitorSummary, error) {
	m.cancel()
	return m.Wait()
}

// Wait blocks until monitoring ended, either stopped or because its context is done.
func (m *MonitorSession) Wait() (MonitorSummary, error) {
	<-m.done
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.summary(), m.err
}

// Done is closed once monitoring ended.
func (m *MonitorSession) Done() <-chan struct{} {
	return m.done
}

func (m *MonitorSession) summary() MonitorSummary {
	return MonitorSummary{
		Events:   m.stats.Events,
		Dropped:  m.dropped,
		Infected: m.stats.Infected,
		Failures: m.stats.Failures,
	}
}
