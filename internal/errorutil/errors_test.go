package errorutil_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/sipware/uact/internal/errorutil"
)

const errSentinel errorutil.Error = "sentinel"

func TestNewWrapperError(t *testing.T) {
	t.Parallel()

	t.Run("no args", func(t *testing.T) {
		t.Parallel()

		if err := errorutil.NewWrapperError(errSentinel); !errors.Is(err, errSentinel) {
			t.Fatalf("NewWrapperError() = %v, want %v", err, errSentinel)
		}
	})

	t.Run("wraps error", func(t *testing.T) {
		t.Parallel()

		cause := errors.New("cause")
		err := errorutil.NewWrapperError(errSentinel, cause)
		if !errors.Is(err, errSentinel) || !errors.Is(err, cause) {
			t.Fatalf("NewWrapperError() = %v, want wrapping %v and %v", err, errSentinel, cause)
		}
	})

	t.Run("does not double-wrap", func(t *testing.T) {
		t.Parallel()

		inner := errorutil.NewWrapperError(errSentinel, "inner")
		if err := errorutil.NewWrapperError(errSentinel, inner); err != inner {
			t.Fatalf("NewWrapperError() = %v, want %v", err, inner)
		}
	})

	t.Run("formats message", func(t *testing.T) {
		t.Parallel()

		err := errorutil.NewWrapperError(errSentinel, "key %q", "abc")
		if got, want := err.Error(), `sentinel: key "abc"`; got != want {
			t.Fatalf("err.Error() = %q, want %q", got, want)
		}
	})
}

func TestErrorf(t *testing.T) {
	t.Parallel()

	err := errorutil.Errorf("code %d", 42)
	if got, want := err.Error(), "code 42"; got != want {
		t.Fatalf("err.Error() = %q, want %q", got, want)
	}
}

func TestJoin(t *testing.T) {
	t.Parallel()

	if err := errorutil.Join(); err != nil {
		t.Fatalf("Join() = %v, want nil", err)
	}

	single := errors.New("single")
	if err := errorutil.Join(single); err != single {
		t.Fatalf("Join(single) = %v, want %v", err, single)
	}

	a, b := errors.New("a"), errors.New("b")
	err := errorutil.Join(a, b)
	if !errors.Is(err, a) || !errors.Is(err, b) {
		t.Fatalf("Join(a, b) = %v, want wrapping both", err)
	}
}

func TestJoinPrefix(t *testing.T) {
	t.Parallel()

	a, b := errors.New("a"), errors.New("b")

	err := errorutil.JoinPrefix("close failed:", a)
	if got, want := err.Error(), "close failed: a"; got != want {
		t.Fatalf("err.Error() = %q, want %q", got, want)
	}

	err = errorutil.JoinPrefix("close failed:", a, b)
	if !errors.Is(err, a) || !errors.Is(err, b) {
		t.Fatalf("JoinPrefix(a, b) = %v, want wrapping both", err)
	}
	for _, part := range []string{"close failed:", "- a", "- b"} {
		if !strings.Contains(err.Error(), part) {
			t.Fatalf("err.Error() = %q, want containing %q", err.Error(), part)
		}
	}
}
