//go:build windows

package quarantine

import (
	"errors"

	"golang.org/x/sys/windows"
)

// The file's DACL is replaced by a single protected ACE for the World SID.
type platformLockdown struct{}

func (platformLockdown) DenyAll(path string, principal string) error {
	return setAccessOfEveryone(path, principal, windows.DENY_ACCESS)
}

func (platformLockdown) AllowAll(path string, principal string) error {
	return setAccessOfEveryone(path, principal, windows.GRANT_ACCESS)
}

func setAccessOfEveryone(path string, principal string, mode windows.ACCESS_MODE) error {
	if err := checkPrincipal(principal); err != nil {
		return err
	}
	everyone, err := windows.CreateWellKnownSid(windows.WinWorldSid)
	if err != nil {
		return err
	}
	acl, err := windows.ACLFromEntries([]windows.EXPLICIT_ACCESS{{
		AccessPermissions: windows.ACCESS_MASK(windows.GENERIC_ALL),
		AccessMode:        mode,
		Inheritance:       windows.NO_INHERITANCE,
		Trustee: windows.TRUSTEE{
			TrusteeForm:  windows.TRUSTEE_IS_SID,
			TrusteeType:  windows.TRUSTEE_IS_WELL_KNOWN_GROUP,
			TrusteeValue: windows.TrusteeValueFromSID(everyone),
		},
	}}, nil)
	if err != nil {
		return err
	}
	return windows.SetNamedSecurityInfo(path, windows.SE_FILE_OBJECT,
		windows.DACL_SECURITY_INFORMATION|windows.PROTECTED_DACL_SECURITY_INFORMATION, nil, nil, acl, nil)
}

func isCrossDevice(err error) bool {
	return errors.Is(err, windows.ERROR_NOT_SAME_DEVICE)
}
