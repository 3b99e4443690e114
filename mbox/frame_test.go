package mbox

import (
	"context"
	"io"
	"strings"
	"testing"
)

func TestFramerBasic(t *testing.T) {
	archive := "From a@x Thu Jan  1 00:00:00 2024\n" +
		"From: a@x\n" +
		"Subject: Hi\n" +
		"\n" +
		"Body1\n" +
		"\n" +
		"From b@y Thu Jan  1 00:00:01 2024\n" +
		"From: b@y\n" +
		"Subject: Bye\n" +
		"\n" +
		"Body2\n"

	fr := NewFramer("test", strings.NewReader(archive))
	ctx := context.Background()

	var frames []*Frame
	for {
		f, err := fr.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		frames = append(frames, f)
	}

	if len(frames) != 2 {
		t.Fatalf("got %d frames, want 2", len(frames))
	}

	secondStart := strings.Index(archive, "From b@y")
	if int(frames[0].Length) != secondStart {
		t.Errorf("frame 0 length = %d, want %d", frames[0].Length, secondStart)
	}
	if frames[0].Offset != 0 {
		t.Errorf("frame 0 offset = %d, want 0", frames[0].Offset)
	}
	if frames[1].Offset != int64(secondStart) {
		t.Errorf("frame 1 offset = %d, want %d", frames[1].Offset, secondStart)
	}
	if got, want := frames[0].Offset+frames[0].Length, frames[1].Offset; got != want {
		t.Errorf("frame 0 ends at %d, frame 1 starts at %d: gap or overlap", got, want)
	}
	if frames[0].ID != 0 || frames[1].ID != 1 {
		t.Errorf("ids = %d, %d; want 0, 1", frames[0].ID, frames[1].ID)
	}

	for i, f := range frames {
		raw := archive[f.Offset : f.Offset+f.Length]
		h, _, _ := parseHeaders(raw[:f.HeadersEnd])
		wantFrom := []string{"a@x", "b@y"}[i]
		if got := h.Get("From"); got != wantFrom {
			t.Errorf("frame %d From = %q, want %q", i, got, wantFrom)
		}
	}
}

func TestFramerEscapedFromNotSeparator(t *testing.T) {
	archive := "From a@x Thu Jan  1 00:00:00 2024\n" +
		"From: a@x\n" +
		"\n" +
		">From the body, not a separator\n" +
		"more text\n"

	fr := NewFramer("test", strings.NewReader(archive))
	f, err := fr.Next(context.Background())
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if int(f.Length) != len(archive) {
		t.Errorf("frame length = %d, want %d (escaped From line must not split the frame)", f.Length, len(archive))
	}

	if _, err := fr.Next(context.Background()); err != io.EOF {
		t.Errorf("second Next = %v, want io.EOF", err)
	}
}

func TestFramerCancellation(t *testing.T) {
	archive := "From a@x Thu Jan  1 00:00:00 2024\n\nbody\n"
	fr := NewFramer("test", strings.NewReader(archive))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := fr.Next(ctx); err == nil {
		t.Error("Next with a cancelled context returned nil error")
	}
}

func TestFramerEmptyArchive(t *testing.T) {
	fr := NewFramer("test", strings.NewReader(""))
	if _, err := fr.Next(context.Background()); err != io.EOF {
		t.Errorf("Next on empty archive = %v, want io.EOF", err)
	}
}
