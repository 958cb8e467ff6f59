package output

import (
	"fmt"
	"io"
	"sync"
)

type Class int

const (
	Required Class = iota //explicitly requested information
	Error
	Normal
	Verbose
)

type Printer struct {
	classes    map[Class]bool
	terminal   io.Writer
	diagnosis  io.Writer
	useEscapes bool
	lock       *sync.Mutex //shared by copies, output arrives from scan workers and the monitor concurrently
}

// NewPrinterTo creates a printer with custom targets, the diagnosis writer receives the Error class.
func NewPrinterTo(terminal io.Writer, diagnosis io.Writer, include []Class, allowEscapes bool) (p Printer) {
	p = Printer{
		classes:    map[Class]bool{},
		terminal:   terminal,
		diagnosis:  diagnosis,
		useEscapes: allowEscapes,
		lock:       &sync.Mutex{},
	}
	for _, class := range include {
		p.classes[class] = true
	}
	return
}

func (p Printer) Out(class Class, format string, values ...interface{}) {
	if !p.classes[class] {
		return
	}
	target := p.terminal
	if class == Error {
		target = p.diagnosis
	}
	text := p.Sprintf(format, values...)
	p.lock.Lock()
	defer p.lock.Unlock()
	io.WriteString(target, text)
}

// Sprintf formats like fmt.Sprintf but drops Escape values if escapes are not allowed.
func (p Printer) Sprintf(format string, values ...interface{}) string {
	if !p.useEscapes {
		for i, value := range values {
			if _, isEscape := value.(Escape); isEscape {
				values[i] = ""
			}
		}
	}
	return fmt.Sprintf(format, values...)
}
