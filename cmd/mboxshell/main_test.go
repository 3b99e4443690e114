package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const testArchive = "From a@x Thu Jan  1 00:00:00 2024\n" +
	"From: a@x\n" +
	"Subject: hi\n" +
	"\n" +
	"body\n"

func TestRunListsRecords(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mail.mbox")
	if err := os.WriteFile(path, []byte(testArchive), 0o644); err != nil {
		t.Fatal(err)
	}

	code := run([]string{path}, false, "id", false, false, 0)
	if code != exitOK {
		t.Fatalf("run returned %d, want %d", code, exitOK)
	}
}

func TestRunMissingArchiveArgument(t *testing.T) {
	code := run(nil, false, "id", false, false, 0)
	if code != exitBadArgs {
		t.Errorf("run with no args returned %d, want %d", code, exitBadArgs)
	}
}

func TestRunArchiveNotFound(t *testing.T) {
	code := run([]string{"/nonexistent/path/mail.mbox"}, false, "id", false, false, 0)
	if code != exitNotFound {
		t.Errorf("run on a missing archive returned %d, want %d", code, exitNotFound)
	}
}

func TestRunBadQuery(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mail.mbox")
	if err := os.WriteFile(path, []byte(testArchive), 0o644); err != nil {
		t.Fatal(err)
	}

	code := run([]string{path, `from:`}, false, "id", false, false, 0)
	if code != exitBadArgs {
		t.Errorf("run with a malformed query returned %d, want %d", code, exitBadArgs)
	}
}

func TestRunQueryCancelledByTimeout(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mail.mbox")
	if err := os.WriteFile(path, []byte(testArchive), 0o644); err != nil {
		t.Fatal(err)
	}

	code := run([]string{path, "from:a"}, false, "id", false, false, time.Nanosecond)
	if code != exitUnreadable && code != exitCancelled {
		t.Errorf("run with an already-expired timeout returned %d, want %d or %d", code, exitUnreadable, exitCancelled)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("hello", 10); got != "hello" {
		t.Errorf("truncate short string = %q", got)
	}
	if got := truncate("hello world", 5); got != "hello" {
		t.Errorf("truncate long string = %q, want %q", got, "hello")
	}
}

func TestDirection(t *testing.T) {
	if direction(true) != "desc" {
		t.Error(`direction(true) should be "desc"`)
	}
	if direction(false) != "asc" {
		t.Error(`direction(false) should be "asc"`)
	}
}
