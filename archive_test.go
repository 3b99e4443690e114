package mboxshell

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/dcarrero/mboxshell/index"
)

func writeArchive(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const twoMessageArchive = "From a@x Thu Jan  1 00:00:00 2024\n" +
	"From: Alice <a@x>\n" +
	"Subject: Zebra\n" +
	"Date: Mon, 2 Jan 2006 15:04:05 +0000\n" +
	"\n" +
	"first body\n" +
	"\n" +
	"From b@y Thu Jan  1 00:00:01 2024\n" +
	"From: Bob <b@y>\n" +
	"Subject: Apple\n" +
	"Date: Tue, 3 Jan 2006 15:04:05 +0000\n" +
	"\n" +
	"second body\n"

func TestOpenArchiveBuildsIndexOnFirstOpen(t *testing.T) {
	dir := t.TempDir()
	path := writeArchive(t, dir, "mail.mbox", twoMessageArchive)

	h, err := OpenArchive(context.Background(), path, OpenOptions{})
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()

	if _, err := os.Stat(path + index.Suffix); err != nil {
		t.Errorf("expected an index file to be built on first open: %v", err)
	}
	recs := h.ListRecords("id", "asc")
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}
}

func TestOpenArchiveReusesExistingIndex(t *testing.T) {
	dir := t.TempDir()
	path := writeArchive(t, dir, "mail.mbox", twoMessageArchive)

	h1, err := OpenArchive(context.Background(), path, OpenOptions{})
	if err != nil {
		t.Fatal(err)
	}
	h1.Close()

	idxInfo, err := os.Stat(path + index.Suffix)
	if err != nil {
		t.Fatal(err)
	}

	h2, err := OpenArchive(context.Background(), path, OpenOptions{})
	if err != nil {
		t.Fatal(err)
	}
	defer h2.Close()

	idxInfo2, err := os.Stat(path + index.Suffix)
	if err != nil {
		t.Fatal(err)
	}
	if !idxInfo2.ModTime().Equal(idxInfo.ModTime()) {
		t.Error("second open should not have rewritten a still-valid index")
	}
}

func TestOpenArchiveRebuildsStaleIndex(t *testing.T) {
	dir := t.TempDir()
	path := writeArchive(t, dir, "mail.mbox", twoMessageArchive)

	h1, err := OpenArchive(context.Background(), path, OpenOptions{})
	if err != nil {
		t.Fatal(err)
	}
	h1.Close()

	// Mutate the archive after the index was built, without going through
	// the handle, so the on-disk index is now stale.
	writeArchive(t, dir, "mail.mbox", twoMessageArchive+
		"From c@z Thu Jan  1 00:00:02 2024\nFrom: c@z\nSubject: third\n\nthird body\n")

	h2, err := OpenArchive(context.Background(), path, OpenOptions{})
	if err != nil {
		t.Fatal(err)
	}
	defer h2.Close()

	recs := h2.ListRecords("id", "asc")
	if len(recs) != 3 {
		t.Fatalf("got %d records after rebuild, want 3", len(recs))
	}
}

func TestListRecordsSortOrders(t *testing.T) {
	dir := t.TempDir()
	path := writeArchive(t, dir, "mail.mbox", twoMessageArchive)

	h, err := OpenArchive(context.Background(), path, OpenOptions{})
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()

	bySubjectAsc := h.ListRecords("subject", "asc")
	if bySubjectAsc[0].Subject != "Apple" || bySubjectAsc[1].Subject != "Zebra" {
		t.Errorf("subject asc order = %q, %q", bySubjectAsc[0].Subject, bySubjectAsc[1].Subject)
	}

	byDateDesc := h.ListRecords("date", "desc")
	if byDateDesc[0].FromAddr != "b@y" {
		t.Errorf("date desc should put the later message first, got %q", byDateDesc[0].FromAddr)
	}
}

func TestArchiveGetMessageAndRawFrame(t *testing.T) {
	dir := t.TempDir()
	path := writeArchive(t, dir, "mail.mbox", twoMessageArchive)

	h, err := OpenArchive(context.Background(), path, OpenOptions{})
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()

	recs := h.ListRecords("id", "asc")
	d, err := h.GetMessage(recs[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	if d.PlainText != "first body\n" {
		t.Errorf("PlainText = %q", d.PlainText)
	}

	raw, err := h.GetRawFrame(recs[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(raw) == 0 {
		t.Error("GetRawFrame returned no bytes")
	}
}

func TestArchiveQuery(t *testing.T) {
	dir := t.TempDir()
	path := writeArchive(t, dir, "mail.mbox", twoMessageArchive)

	h, err := OpenArchive(context.Background(), path, OpenOptions{})
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()

	out, err := h.Query(context.Background(), `from:alice`)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 || out[0].FromAddr != "a@x" {
		t.Fatalf("got %v", out)
	}

	out2, err := h.Query(context.Background(), `body:"second body"`)
	if err != nil {
		t.Fatal(err)
	}
	if len(out2) != 1 || out2[0].FromAddr != "b@y" {
		t.Fatalf("got %v", out2)
	}
}

func TestArchiveFingerprintAndRebuild(t *testing.T) {
	dir := t.TempDir()
	path := writeArchive(t, dir, "mail.mbox", twoMessageArchive)

	h, err := OpenArchive(context.Background(), path, OpenOptions{})
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()

	fp1, err := h.Fingerprint()
	if err != nil {
		t.Fatal(err)
	}

	writeArchive(t, dir, "mail.mbox", twoMessageArchive+
		"From c@z Thu Jan  1 00:00:02 2024\nFrom: c@z\nSubject: third\n\nthird body\n")

	if err := h.Rebuild(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	fp2, err := h.Fingerprint()
	if err != nil {
		t.Fatal(err)
	}
	if fp1.Digest == fp2.Digest && fp1.Size == fp2.Size {
		t.Error("Rebuild should have picked up the appended message")
	}
	if len(h.ListRecords("id", "asc")) != 3 {
		t.Error("Rebuild should refresh in-memory records to include the new message")
	}
}
