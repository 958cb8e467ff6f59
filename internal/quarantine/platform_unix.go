//go:build unix

package quarantine

import (
	"errors"

	"golang.org/x/sys/unix"
)

// On Unix "Everyone" covers owner, group and others alike.
type platformLockdown struct{}

func (platformLockdown) DenyAll(path string, principal string) error {
	if err := checkPrincipal(principal); err != nil {
		return err
	}
	return unix.Chmod(path, 0)
}

func (platformLockdown) AllowAll(path string, principal string) error {
	if err := checkPrincipal(principal); err != nil {
		return err
	}
	return unix.Chmod(path, 0666)
}

func isCrossDevice(err error) bool {
	return errors.Is(err, unix.EXDEV)
}
