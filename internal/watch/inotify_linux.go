package watch

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

const watchMask = unix.IN_CREATE | unix.IN_CLOSE_WRITE | unix.IN_MOVED_TO
const pollTimeoutMillis = 250

type inotifySource struct {
	fd      int
	options Options
	watches map[int32]string //watch descriptor -> directory, owned by the reader loop once started
	events  chan Event
	done    chan struct{}
	stopped chan struct{}
	close   sync.Once
}

// NewRecursive watches root and every directory below it, including directories created later on.
// Files found in new directories are announced as created.
func NewRecursive(root string, options Options) (Source, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}
	if options.Buffer <= 0 {
		options.Buffer = DefaultBuffer
	}
	fd, err := unix.InotifyInit1(unix.IN_NONBLOCK | unix.IN_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("inotify init failed: %w", err)
	}
	s := &inotifySource{
		fd:      fd,
		options: options,
		watches: make(map[int32]string),
		events:  make(chan Event, options.Buffer),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	if err := s.watchTree(root, false); err != nil {
		unix.Close(fd)
		return nil, err
	}
	go s.loop()
	return s, nil
}

func (s *inotifySource) Events() <-chan Event {
	return s.events
}

func (s *inotifySource) Close() error {
	s.close.Do(func() { close(s.done) })
	<-s.stopped
	return nil
}

func (s *inotifySource) watchTree(top string, announce bool) error {
	return filepath.WalkDir(top, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == top {
				return err
			}
			s.options.reportError(err)
			return nil
		}
		if path != top && s.options.skip(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			wd, err := unix.InotifyAddWatch(s.fd, path, watchMask)
			if err != nil {
				if path == top {
					return fmt.Errorf("watching %s failed: %w", path, err)
				}
				s.options.reportError(fmt.Errorf("watching %s failed: %w", path, err))
				return filepath.SkipDir
			}
			s.watches[int32(wd)] = path
			return nil
		}
		if announce && d.Type().IsRegular() {
			s.emit(Event{Path: path, Op: Create})
		}
		return nil
	})
}

func (s *inotifySource) loop() {
	defer close(s.stopped)
	defer close(s.events)
	defer unix.Close(s.fd)

	buffer := make([]byte, 64*(unix.SizeofInotifyEvent+unix.NAME_MAX+1))
	fds := []unix.PollFd{{Fd: int32(s.fd), Events: unix.POLLIN}}
	for {
		select {
		case <-s.done:
			return
		default:
		}
		ready, err := unix.Poll(fds, pollTimeoutMillis)
		if errors.Is(err, unix.EINTR) || ready == 0 {
			continue
		}
		if err != nil {
			s.options.reportError(fmt.Errorf("waiting for file events failed: %w", err))
			return
		}
		n, err := unix.Read(s.fd, buffer)
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			s.options.reportError(fmt.Errorf("reading file events failed: %w", err))
			return
		}
		s.parse(buffer[:n])
	}
}

func (s *inotifySource) parse(buffer []byte) {
	for offset := 0; offset+unix.SizeofInotifyEvent <= len(buffer); {
		raw := (*unix.InotifyEvent)(unsafe.Pointer(&buffer[offset]))
		nameStart := offset + unix.SizeofInotifyEvent
		nameEnd := nameStart + int(raw.Len)
		if nameEnd > len(buffer) {
			return
		}
		name := strings.TrimRight(string(buffer[nameStart:nameEnd]), "\x00")
		s.handle(raw.Wd, raw.Mask, name)
		offset = nameEnd
	}
}

func (s *inotifySource) handle(wd int32, mask uint32, name string) {
	if mask&unix.IN_Q_OVERFLOW != 0 {
		s.options.reportError(ErrOverflow)
		return
	}
	if mask&unix.IN_IGNORED != 0 {
		delete(s.watches, wd)
		return
	}
	dir, known := s.watches[wd]
	if !known || name == "" {
		return
	}
	path := filepath.Join(dir, name)
	if s.options.skip(path) {
		return
	}

	created := mask&(unix.IN_CREATE|unix.IN_MOVED_TO) != 0
	switch {
	case created && mask&unix.IN_ISDIR != 0:
		s.emit(Event{Path: path, Op: Create, IsDir: true})
		if err := s.watchTree(path, true); err != nil {
			s.options.reportError(err)
		}
	case created:
		s.emit(Event{Path: path, Op: Create})
	case mask&unix.IN_CLOSE_WRITE != 0:
		s.emit(Event{Path: path, Op: Modify})
	}
}

// emit never blocks the reader, an event that does not fit is dropped and reported.
func (s *inotifySource) emit(event Event) {
	select {
	case s.events <- event:
	default:
		if s.options.OnDrop != nil {
			s.options.OnDrop(event)
		}
	}
}
