package errs

import (
	"errors"
	"fmt"
	"testing"

	"pgregory.net/rapid"
)

func allCodes() []Code {
	return []Code{Setup, Assertion, Timeout, IO, Cycle, Config, Internal}
}

func testCodeOf_RoundtripForTypedErrors(t *rapid.T) {
	code := rapid.SampledFrom(allCodes()).Draw(t, "code")
	message := rapid.StringMatching(`[a-zA-Z0-9 _:\-]{1,80}`).Draw(t, "message")

	err := New(code, message)
	if got := CodeOf(err); got != code {
		t.Fatalf("CodeOf(New) mismatch: got=%q want=%q", got, code)
	}
	if !Is(err, code) {
		t.Fatalf("Is(err, %q) = false, want true", code)
	}
}

func TestCodeOf_RoundtripForTypedErrors(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testCodeOf_RoundtripForTypedErrors)
}

func testCodeOf_SurvivesWrapping(t *rapid.T) {
	code := rapid.SampledFrom(allCodes()).Draw(t, "code")
	message := rapid.StringMatching(`[a-zA-Z0-9 _:\-]{1,80}`).Draw(t, "message")
	cause := errors.New(rapid.StringMatching(`[a-zA-Z0-9 _:\-]{1,80}`).Draw(t, "cause"))

	err := Wrap(code, message, cause)
	wrapped := fmt.Errorf("outer: %w", err)

	if got := CodeOf(wrapped); got != code {
		t.Fatalf("CodeOf(wrapped) mismatch: got=%q want=%q", got, code)
	}
	if !errors.Is(wrapped, cause) {
		t.Fatal("wrapped error lost its cause")
	}
}

func TestCodeOf_SurvivesWrapping(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testCodeOf_SurvivesWrapping)
}

func TestCodeOf_UntypedErrorIsInternal(t *testing.T) {
	t.Parallel()
	if got := CodeOf(errors.New("plain")); got != Internal {
		t.Fatalf("CodeOf(plain) = %q, want %q", got, Internal)
	}
	if got := CodeOf(nil); got != Internal {
		t.Fatalf("CodeOf(nil) = %q, want %q", got, Internal)
	}
}

func TestError_MessageIncludesCause(t *testing.T) {
	t.Parallel()
	err := Wrap(IO, "write outcome file", errors.New("disk full"))
	want := "write outcome file: disk full"
	if err.Error() != want {
		t.Fatalf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestExitCode_NonZeroForAllCodes(t *testing.T) {
	t.Parallel()
	for _, code := range allCodes() {
		if ExitCode(code) == 0 {
			t.Fatalf("ExitCode(%q) = 0, want non-zero", code)
		}
	}
}
