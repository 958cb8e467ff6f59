//go:build !unix && !windows

package quarantine

import "errors"

type platformLockdown struct{}

var errLockdownUnsupported = errors.New("access restrictions are not supported on this platform")

func (platformLockdown) DenyAll(path string, principal string) error {
	return errLockdownUnsupported
}

func (platformLockdown) AllowAll(path string, principal string) error {
	return errLockdownUnsupported
}

func isCrossDevice(err error) bool {
	return false
}
