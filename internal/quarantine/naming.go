package quarantine

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/n2code/ndocid"
	"github.com/n2code/virusbegone/internal/signature"
)

// uniqueName keeps the base name if it is free. Otherwise the short signature is prepended
// ("<hash8>_<base>") and, if that is taken as well, a counter starting at 2 is appended as
// checksummed ID ("<hash8>_<base>_942228") so that mistyped names are never mistaken for one another.
// A name is taken if a file of that name exists in the directory or any entry uses it.
func uniqueName(dir string, base string, sig signature.Signature, entries []Entry) string {
	taken := func(name string) bool {
		if reservedName(name) || findByName(entries, name) >= 0 {
			return true
		}
		_, err := os.Lstat(filepath.Join(dir, name))
		return !errors.Is(err, fs.ErrNotExist)
	}
	if !taken(base) {
		return base
	}
	candidate := sig.Short() + "_" + base
	for n := uint64(2); taken(candidate); n++ {
		candidate = sig.Short() + "_" + base + "_" + ndocid.EncodeUint64(n)
	}
	return candidate
}
