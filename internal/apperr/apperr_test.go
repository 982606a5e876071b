package apperr

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"testing"
)

func TestKindOfWrapped(t *testing.T) {
	base := New(KindFetchFailed, "cloning repo", errors.New("exit 128"))
	wrapped := fmt.Errorf("resolving @t/a: %w", base)

	if got := KindOf(wrapped); got != KindFetchFailed {
		t.Errorf("KindOf = %q, want %q", got, KindFetchFailed)
	}
	if !Is(wrapped, KindFetchFailed) {
		t.Error("Is should match wrapped kind")
	}
	if KindOf(errors.New("plain")) != "" {
		t.Error("plain error should have no kind")
	}
}

func TestCycleMessage(t *testing.T) {
	err := Cycle([]string{"dir:a", "dir:b", "dir:a"})
	if !strings.Contains(err.Error(), "dir:a -> dir:b -> dir:a") {
		t.Errorf("unexpected message: %v", err)
	}
	var ae *Error
	if !errors.As(err, &ae) || len(ae.Chain) != 3 {
		t.Fatalf("chain not preserved: %#v", err)
	}
}

func TestFSClassifiesPermission(t *testing.T) {
	err := FS("writing file", "/x/y", &os.PathError{Op: "open", Path: "/x/y", Err: fs.ErrPermission})
	if KindOf(err) != KindPermissionDenied {
		t.Errorf("kind = %q, want %q", KindOf(err), KindPermissionDenied)
	}
	if !strings.Contains(err.Error(), "/x/y") {
		t.Errorf("error should name the path: %v", err)
	}

	err = FS("writing file", "/x/y", errors.New("disk full"))
	if KindOf(err) != KindIO {
		t.Errorf("kind = %q, want %q", KindOf(err), KindIO)
	}
}
