package session

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/0w0mewo/localsend-engine/internal/localsend/constants"
	"github.com/0w0mewo/localsend-engine/internal/models"
)

func writeAll(t *testing.T, sink Sink, file models.FileMeta, content string) FileWriter {
	t.Helper()

	w, err := sink.Open("sess", file)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, err := io.WriteString(w, content); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	return w
}

func TestDirSinkCommit(t *testing.T) {
	dir := t.TempDir()
	sink := NewDirSink(dir)

	w := writeAll(t, sink, models.FileMeta{Id: "1", Filename: "abc.txt"}, "Hello world!")
	if err := w.Commit(); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(dir, "abc.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "Hello world!" {
		t.Errorf("content = %q", got)
	}

	// a second file with the same name does not overwrite the first
	w = writeAll(t, sink, models.FileMeta{Id: "2", Filename: "abc.txt"}, "again")
	if err := w.Commit(); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "abc (1).txt")); err != nil {
		t.Errorf("renamed duplicate missing: %v", err)
	}
}

func TestDirSinkAbortLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	sink := NewDirSink(dir)

	w := writeAll(t, sink, models.FileMeta{Id: "1", Filename: "partial.bin"}, "half")
	if err := w.Abort(); err != nil {
		t.Fatalf("Abort failed: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("directory holds %d entries after abort", len(entries))
	}
}

func TestSafeName(t *testing.T) {
	tests := map[string]string{
		"abc.txt":             "abc.txt",
		"../../etc/passwd":    "passwd",
		"/abs/path/file.png":  "file.png",
		`..\..\windows\x.dll`: "x.dll",
		"..":                  "id",
		"":                    "id",
	}

	for in, want := range tests {
		if got := safeName(models.FileMeta{Id: "id", Filename: in}); got != want {
			t.Errorf("safeName(%q) = %q; want %q", in, got, want)
		}
	}
}

func TestMemorySink(t *testing.T) {
	sink := NewMemorySink()

	w := writeAll(t, sink, models.FileMeta{Id: "kept"}, "data")
	w.Commit()

	w = writeAll(t, sink, models.FileMeta{Id: "dropped"}, "data")
	w.Abort()

	if got, ok := sink.Get("sess", "kept"); !ok || string(got) != "data" {
		t.Errorf("Get(kept) = %q, %v", got, ok)
	}
	if _, ok := sink.Get("sess", "dropped"); ok {
		t.Error("aborted file was stored")
	}
	if sink.Len() != 1 {
		t.Errorf("Len = %d; want 1", sink.Len())
	}
}

func TestNoSinkRefusesUploads(t *testing.T) {
	if _, err := (NoSink{}).Open("sess", models.FileMeta{Id: "f"}); !errors.Is(err, ErrNoSink) {
		t.Fatalf("Open error = %v; want ErrNoSink", err)
	}

	// even an approver that lets everything through cannot land a file
	m := NewManager(AcceptAll, NoSink{}, Options{})
	content := []byte("Hello world!")
	file := models.GenBytesMeta("abc.txt", "text/plain", content)

	resp, err := m.BeginNegotiation(context.Background(), bob, metas(file))
	if err != nil {
		t.Fatalf("BeginNegotiation failed: %v", err)
	}

	err = m.AcceptUpload(context.Background(), resp.SessionId, file.Id, resp.Tokens[file.Id], bytes.NewReader(content))
	if !errors.Is(err, constants.ErrFileIO) {
		t.Fatalf("AcceptUpload error = %v; want ErrFileIO", err)
	}
	if got := mustStatus(t, m, resp.SessionId).Files[file.Id].State; got != Failed {
		t.Errorf("file state = %s; want failed", got)
	}
}
