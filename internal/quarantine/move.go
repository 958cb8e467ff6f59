package quarantine

import (
	"io"
	"os"
)

// move is the relocation used by the manager.
var move = moveFile

// moveFile renames from to to. Across file systems the content is copied and the source removed afterwards.
// An existing file at to is replaced.
func moveFile(from string, to string) error {
	err := os.Rename(from, to)
	if err == nil || !isCrossDevice(err) {
		return err
	}
	if err := copyFile(from, to); err != nil {
		os.Remove(to)
		return err
	}
	if err := os.Remove(from); err != nil {
		os.Remove(to)
		return err
	}
	return nil
}

func copyFile(from string, to string) error {
	source, err := os.Open(from)
	if err != nil {
		return err
	}
	defer source.Close()

	target, err := os.OpenFile(to, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(target, source); err != nil {
		target.Close()
		return err
	}
	if err := target.Sync(); err != nil {
		target.Close()
		return err
	}
	return target.Close()
}

type rollbackStep func() error

// rollbackLog is a series of steps to be executed in reverse order.
type rollbackLog []rollbackStep

func (r *rollbackLog) add(step rollbackStep) {
	*r = append(*r, step)
}

// execute runs all steps. Errors are collected but do not stop the rollback.
func (r rollbackLog) execute() (problems []error) {
	for i := len(r) - 1; i >= 0; i-- {
		if err := r[i](); err != nil {
			problems = append(problems, err)
		}
	}
	return
}
