package index

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/dcarrero/mboxshell/mlog"
)

func TestBuildEndToEnd(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "archive.mbox")
	archive := "From a@x Thu Jan  1 00:00:00 2024\n" +
		"From: Alice <a@x>\n" +
		"To: b@y\n" +
		"Subject: Hi\n" +
		"Date: Mon, 2 Jan 2006 15:04:05 +0000\n" +
		"\n" +
		"Body1\n" +
		"\n" +
		"From b@y Thu Jan  1 00:00:01 2024\n" +
		"From: b@y\n" +
		"Subject: Bye\n" +
		"Content-Type: multipart/mixed; boundary=X\n" +
		"\n" +
		"--X\n" +
		"Content-Type: text/plain\n" +
		"\n" +
		"Body2\n" +
		"--X\n" +
		"Content-Type: application/octet-stream\n" +
		"Content-Disposition: attachment; filename=\"a.bin\"\n" +
		"\n" +
		"data\n" +
		"--X--\n"
	if err := os.WriteFile(archivePath, []byte(archive), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := Build(context.Background(), archivePath, mlog.Discard(), BuildOptions{}); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	idxPath := archivePath + Suffix
	if _, err := os.Stat(idxPath); err != nil {
		t.Fatalf("index file not written: %v", err)
	}

	loaded, err := Load(idxPath, archivePath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(loaded.Records) != 2 {
		t.Fatalf("got %d records, want 2", len(loaded.Records))
	}

	r0 := loaded.Records[0]
	if r0.FromAddr != "a@x" || r0.FromName != "Alice" {
		t.Errorf("records[0] From = %q/%q", r0.FromAddr, r0.FromName)
	}
	if len(r0.ToAddrs) != 1 || r0.ToAddrs[0] != "b@y" {
		t.Errorf("records[0].ToAddrs = %v", r0.ToAddrs)
	}
	if !r0.HasDate {
		t.Error("records[0] should have parsed a Date header")
	}
	if r0.HasAttachment {
		t.Error("records[0] has no attachment")
	}

	r1 := loaded.Records[1]
	if !r1.Flags.Has(FlagMultipart) {
		t.Error("records[1] should carry FlagMultipart")
	}
	if !r1.HasAttachment {
		t.Error("records[1] should have an attachment")
	}
}

func TestBuildCancellationLeavesNoIndex(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "archive.mbox")
	archive := "From a@x Thu Jan  1 00:00:00 2024\n\nbody\n"
	if err := os.WriteFile(archivePath, []byte(archive), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Build(ctx, archivePath, mlog.Discard(), BuildOptions{})
	if err == nil {
		t.Fatal("expected Build to fail with a cancelled context")
	}
	if _, statErr := os.Stat(archivePath + Suffix); !os.IsNotExist(statErr) {
		t.Error("Build must not leave a partial index file behind on cancellation")
	}
}

func TestBuildRecordFromBytes(t *testing.T) {
	msg := []byte("From: a@x\r\nSubject: hi\r\n\r\nhello\r\n")
	rec := BuildRecordFromBytes(7, 100, int64(len(msg)), msg)
	if rec.ID != 7 || rec.Offset != 100 {
		t.Errorf("rec = %+v", rec)
	}
	if rec.Subject != "hi" {
		t.Errorf("Subject = %q, want hi", rec.Subject)
	}
	if rec.FromAddr != "a@x" {
		t.Errorf("FromAddr = %q, want a@x", rec.FromAddr)
	}
}
