//go:build !linux

package watch

import (
	"fmt"
	"runtime"
)

func NewRecursive(root string, options Options) (Source, error) {
	return nil, fmt.Errorf("real-time monitoring is not supported on %s", runtime.GOOS)
}
