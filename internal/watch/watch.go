package watch

import "errors"

type Op int

const (
	Create Op = iota + 1
	Modify
)

func (op Op) String() string {
	switch op {
	case Create:
		return "create"
	case Modify:
		return "modify"
	}
	return "unknown"
}

type Event struct {
	Path  string
	Op    Op
	IsDir bool
}

// Source delivers file change events until it is closed. Closing also closes the events channel.
type Source interface {
	Events() <-chan Event
	Close() error
}

const DefaultBuffer = 1024

type Options struct {
	Buffer  int                    //capacity of the events channel
	Skip    func(path string) bool //excludes files and whole directories
	OnDrop  func(Event)            //called for every event that did not fit into the buffer
	OnError func(error)
}

// ErrOverflow is reported when the operating system itself discarded events.
var ErrOverflow = errors.New("event queue overflow, changes were missed")

func (o Options) skip(path string) bool {
	return o.Skip != nil && o.Skip(path)
}

func (o Options) reportError(err error) {
	if o.OnError != nil {
		o.OnError(err)
	}
}
