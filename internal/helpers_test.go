package internal

import (
	"io"
	"strings"
	"testing"

	"github.com/go-errors/errors"
)

func TestAssertNoError(t *testing.T) {
	AssertNoError(nil, "nothing happened")

	defer func() {
		recovered := recover()
		stackErr, ok := recovered.(*errors.Error)
		if !ok {
			t.Fatalf("expected stack-carrying panic, got %#v", recovered)
		}
		if !strings.Contains(stackErr.Error(), "because the test says so") {
			t.Errorf("unexpected message: %s", stackErr)
		}
		if !errors.Is(stackErr, io.ErrUnexpectedEOF) {
			t.Error("cause must stay reachable")
		}
		if !strings.Contains(stackErr.ErrorStack(), "TestAssertNoError") {
			t.Error("stack should point at the caller")
		}
	}()
	AssertNoError(io.ErrUnexpectedEOF, "the test says so")
}
