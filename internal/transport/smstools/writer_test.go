package smstools

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/text/encoding/unicode"
)

func spooledFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestSendSpoolsLatin1(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, "17805550000", nopLogger())

	if err := w.Send(context.Background(), "17805550001", "SMIRC: hello"); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	names := spooledFiles(t, dir)
	if len(names) != 1 {
		t.Fatalf("expected one spool file, got %v", names)
	}
	if !strings.HasPrefix(names[0], "17805550001-") {
		t.Fatalf("spool file name %q not prefixed with recipient", names[0])
	}
	if strings.HasSuffix(names[0], ".tmp") {
		t.Fatalf("spool file %q was not renamed into place", names[0])
	}

	data, err := os.ReadFile(filepath.Join(dir, names[0]))
	if err != nil {
		t.Fatal(err)
	}
	want := "Alphabet: Ansi\nFrom: 17805550000\nTo: 17805550001\n\nSMIRC: hello\n"
	if string(data) != want {
		t.Fatalf("spool file content = %q, want %q", data, want)
	}
}

func TestSendFallsBackToUnicode(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, "17805550000", nopLogger())

	// ☺ has no latin-1 representation.
	text := "smile ☺"
	if err := w.Send(context.Background(), "17805550001", text); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	names := spooledFiles(t, dir)
	if len(names) != 1 {
		t.Fatalf("expected one spool file, got %v", names)
	}
	data, err := os.ReadFile(filepath.Join(dir, names[0]))
	if err != nil {
		t.Fatal(err)
	}
	header, body, found := strings.Cut(string(data), "\n\n")
	if !found {
		t.Fatal("spool file has no header separator")
	}
	if !strings.Contains(header, "Alphabet: Unicode") {
		t.Fatalf("header = %q, want Unicode alphabet", header)
	}
	decoded, err := unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).
		NewDecoder().Bytes([]byte(body))
	if err != nil {
		t.Fatal(err)
	}
	if string(decoded) != text+"\n" {
		t.Fatalf("decoded body = %q, want %q", decoded, text+"\n")
	}
}

func TestSendCancelledContext(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, "17805550000", nopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := w.Send(ctx, "17805550001", "hello"); err == nil {
		t.Fatal("expected error from cancelled context")
	}
	if names := spooledFiles(t, dir); len(names) != 0 {
		t.Fatalf("cancelled send still spooled %v", names)
	}
}
