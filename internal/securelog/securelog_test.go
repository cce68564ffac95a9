package securelog

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"strings"
	"testing"
)

type testErr struct{ msg string }

func (e testErr) Error() string { return e.msg }

type otherErr struct{}

func (otherErr) Error() string { return "other" }

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prevOutput := log.Default().Writer()
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(prevOutput) })
	return &buf
}

func TestError_LogsContextAndTypes(t *testing.T) {
	buf := captureLog(t)

	wrapped := fmt.Errorf("outer: %w", testErr{msg: "ana@acme.com"})
	Error("signup", wrapped)

	out := buf.String()
	if !strings.Contains(out, "context=signup") {
		t.Fatalf("expected context in log output, got %q", out)
	}
	if !strings.Contains(out, "securelog.testErr") {
		t.Fatalf("expected inner type in log output, got %q", out)
	}
	if strings.Contains(out, "ana@acme.com") {
		t.Fatalf("error message leaked into log output: %q", out)
	}
}

func TestError_IgnoresNil(t *testing.T) {
	buf := captureLog(t)

	Error("context", nil)
	if buf.Len() != 0 {
		t.Fatalf("expected no output for nil error, got %q", buf.String())
	}
}

func TestError_EmptyContext(t *testing.T) {
	buf := captureLog(t)

	Error("", testErr{msg: "test"})
	out := buf.String()
	if !strings.Contains(out, "error at") {
		t.Fatalf("expected 'error at' in log output, got %q", out)
	}
	if strings.Contains(out, "context=") {
		t.Fatalf("expected no context field, got %q", out)
	}
}

func TestDenied(t *testing.T) {
	buf := captureLog(t)

	Denied("callback", "DomainDenied")
	out := buf.String()
	if !strings.Contains(out, "context=callback reason=DomainDenied") {
		t.Fatalf("unexpected output %q", out)
	}

	buf.Reset()
	Denied("callback", "")
	if buf.Len() != 0 {
		t.Fatalf("expected no output for empty reason, got %q", buf.String())
	}
}

func TestErrorTypes_MultiWrap(t *testing.T) {
	err := fmt.Errorf("%w: %w", testErr{msg: "a"}, otherErr{})
	types := errorTypes(err)
	joined := strings.Join(types, ",")
	if !strings.Contains(joined, "securelog.testErr") || !strings.Contains(joined, "securelog.otherErr") {
		t.Fatalf("expected both wrapped types, got %v", types)
	}

	joinedErr := errors.Join(testErr{msg: "x"}, otherErr{})
	if got := errorTypes(joinedErr); len(got) != 3 {
		t.Fatalf("expected join type plus two members, got %v", got)
	}
}

func TestErrorTypes_UniqueChain(t *testing.T) {
	inner := testErr{msg: "inner"}
	wrapped := fmt.Errorf("wrap: %w", fmt.Errorf("again: %w", inner))
	types := errorTypes(wrapped)
	if len(types) != 2 {
		t.Fatalf("expected wrapError and testErr once each, got %v", types)
	}
}

func TestErrorTypes_NilError(t *testing.T) {
	if types := errorTypes(nil); len(types) != 0 {
		t.Fatalf("expected empty types for nil error, got %v", types)
	}
}

func TestCallerLocation(t *testing.T) {
	loc := callerLocation(1)
	if !strings.Contains(loc, "securelog_test.go") {
		t.Fatalf("expected test file in location, got %q", loc)
	}
	if callerLocation(999) != "unknown" {
		t.Fatal("expected 'unknown' for deep skip")
	}
}
