package settings

import (
	"errors"
	"testing"
)

func TestTargetFromArgs(t *testing.T) {
	target, err := targetFromArgs([]string{"sh", "-c", "echo hi"})
	if err != nil {
		t.Fatalf("targetFromArgs failed: %v", err)
	}
	if target.Executable != "sh" {
		t.Fatalf("unexpected executable: %q", target.Executable)
	}
	if len(target.Args) != 2 || target.Args[0] != "-c" || target.Args[1] != "echo hi" {
		t.Fatalf("unexpected args: %v", target.Args)
	}
}

func TestTargetFromArgsNotDefined(t *testing.T) {
	_, err := targetFromArgs(nil)
	if !errors.Is(err, errTargetNotDefined) {
		t.Fatalf("expected errTargetNotDefined, got %v", err)
	}
}

func TestTargetFromArgsEmptyExecutable(t *testing.T) {
	if _, err := targetFromArgs([]string{""}); err == nil {
		t.Fatalf("expected error for empty executable")
	}
}

func TestTargetFromString(t *testing.T) {
	target, err := targetFromString(`sh -c 'echo "a b"'`)
	if err != nil {
		t.Fatalf("targetFromString failed: %v", err)
	}
	if target.Executable != "sh" {
		t.Fatalf("unexpected executable: %q", target.Executable)
	}
	if len(target.Args) != 2 || target.Args[0] != "-c" || target.Args[1] != `echo "a b"` {
		t.Fatalf("unexpected args: %#v", target.Args)
	}
}

func TestTargetFromStringEmpty(t *testing.T) {
	if _, err := targetFromString(""); err == nil {
		t.Fatalf("expected error for empty target")
	}
}

func TestTargetFromStringUnbalancedQuote(t *testing.T) {
	if _, err := targetFromString(`sh -c 'oops`); err == nil {
		t.Fatalf("expected error for unbalanced quote")
	}
}
