package apperr

import (
	"errors"
	"os"
	"testing"
)

func TestItemError_MatchesKindAndCause(t *testing.T) {
	err := Item("read", "note_a", ErrIO, os.ErrPermission)
	if !errors.Is(err, ErrIO) {
		t.Error("expected kind sentinel to match")
	}
	if !errors.Is(err, os.ErrPermission) {
		t.Error("expected cause to match")
	}
	if errors.Is(err, ErrNotFound) {
		t.Error("unexpected match on ErrNotFound")
	}
}

func TestItemError_Message(t *testing.T) {
	err := Item("link", "Foo#note", ErrDanglingReference, nil)
	if got, want := err.Error(), "link Foo#note: dangling reference"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
