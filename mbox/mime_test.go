package mbox

import (
	"strings"
	"testing"
)

func TestDecodePlainText(t *testing.T) {
	msg := "From: a@x\r\n" +
		"Subject: hi\r\n" +
		"Content-Type: text/plain; charset=us-ascii\r\n" +
		"\r\n" +
		"hello world\r\n"
	d := Decode([]byte(msg), headerEnd([]byte(msg)))
	if d.ParseError {
		t.Error("unexpected ParseError on well-formed plain text message")
	}
	if d.IsMultipart {
		t.Error("single-part message reported as multipart")
	}
	if got := d.PlainText; got != "hello world\r\n" {
		t.Errorf("PlainText = %q, want %q", got, "hello world\r\n")
	}
}

func TestDecodeMultipartWithAttachment(t *testing.T) {
	boundary := "BOUNDARY"
	msg := "From: a@x\r\n" +
		"Content-Type: multipart/mixed; boundary=" + boundary + "\r\n" +
		"\r\n" +
		"--" + boundary + "\r\n" +
		"Content-Type: text/plain\r\n" +
		"\r\n" +
		"body text\r\n" +
		"--" + boundary + "\r\n" +
		"Content-Type: application/octet-stream\r\n" +
		"Content-Disposition: attachment; filename=\"a.bin\"\r\n" +
		"Content-Transfer-Encoding: base64\r\n" +
		"\r\n" +
		"aGVsbG8=\r\n" +
		"--" + boundary + "--\r\n"

	d := Decode([]byte(msg), headerEnd([]byte(msg)))
	if !d.IsMultipart {
		t.Error("expected IsMultipart")
	}
	if got := d.PlainText; got != "body text\r\n" {
		t.Errorf("PlainText = %q, want %q", got, "body text\r\n")
	}
	if len(d.Attachments) != 1 {
		t.Fatalf("got %d attachments, want 1", len(d.Attachments))
	}
	att := d.Attachments[0]
	if att.Filename != "a.bin" || att.MediaType != "application/octet-stream" {
		t.Errorf("attachment = %+v", att)
	}
	if !att.Matches("application/*") {
		t.Error("Matches(application/*) should be true")
	}
	if att.Matches("image/*") {
		t.Error("Matches(image/*) should be false")
	}
}

func TestDecodeHTMLOnlyFallback(t *testing.T) {
	msg := "From: a@x\r\n" +
		"Content-Type: text/html; charset=utf-8\r\n" +
		"\r\n" +
		"<html><body><b>bold</b> text<script>evil()</script></body></html>\r\n"
	d := Decode([]byte(msg), headerEnd([]byte(msg)))
	if !d.IsHTMLOnly {
		t.Error("expected IsHTMLOnly")
	}
	if want := "bold"; !strings.Contains(d.PlainText, want) {
		t.Errorf("PlainText = %q, want it to contain %q", d.PlainText, want)
	}
	if strings.Contains(d.PlainText, "evil()") {
		t.Errorf("PlainText = %q, script contents should be stripped", d.PlainText)
	}
}

func TestDecodeTransferEncodingQuotedPrintable(t *testing.T) {
	out, errFlag := decodeTransferEncoding("quoted-printable", []byte("caf=C3=A9"))
	if errFlag {
		t.Fatal("unexpected error decoding quoted-printable")
	}
	if string(out) != "caf\xc3\xa9" {
		t.Errorf("got %q", out)
	}
}
