package quarantine

import "fmt"

// Everyone is the only principal access restrictions are applied for.
const Everyone = "Everyone"

// Lockdown applies or lifts a blanket access restriction for a principal on a single file.
type Lockdown interface {
	DenyAll(path string, principal string) error
	AllowAll(path string, principal string) error
}

// PlatformLockdown returns the restriction mechanism of the running operating system.
func PlatformLockdown() Lockdown {
	return platformLockdown{}
}

func checkPrincipal(principal string) error {
	if principal != Everyone {
		return fmt.Errorf("unsupported principal %q (only %q)", principal, Everyone)
	}
	return nil
}
