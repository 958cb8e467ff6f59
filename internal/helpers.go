package internal

import (
	"fmt"
	"time"

	"github.com/go-errors/errors"
)

// AssertNoError panics if err is set. The panic value carries a stack trace (see main).
func AssertNoError(err error, because string) {
	if err != nil {
		panic(errors.Wrap(fmt.Errorf("error unexpected because %s: %w", because, err), 1))
	}
}

// Now is replaced by tests that need deterministic timestamps.
var Now = func() time.Time {
	return time.Now()
}
