package store

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/0w0mewo/localsend-engine/internal/localsend/session"
	"github.com/0w0mewo/localsend-engine/internal/models"
)

func openTestHistory(t *testing.T) *History {
	t.Helper()

	h, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { h.Close() })
	return h
}

func TestHistoryRecordsFinishedFiles(t *testing.T) {
	h := openTestHistory(t)

	m := session.NewManager(session.AcceptAll, session.NewMemorySink(), session.Options{})
	m.OnFinished(h.Hook())

	good := models.GenBytesMeta("abc.txt", "text/plain", []byte("Hello world!"))
	bad := models.GenBytesMeta("bad.txt", "text/plain", []byte("hello"))
	initiator := session.Peer{Alias: "alice", Fingerprint: "AAAA", Addr: "192.168.1.10"}

	resp, err := m.BeginNegotiation(context.Background(), initiator, models.FileMetas{good.Id: good, bad.Id: bad})
	if err != nil {
		t.Fatalf("BeginNegotiation failed: %v", err)
	}

	ctx := context.Background()
	if err := m.AcceptUpload(ctx, resp.SessionId, good.Id, resp.Tokens[good.Id], bytes.NewReader([]byte("Hello world!"))); err != nil {
		t.Fatalf("upload abc.txt: %v", err)
	}
	if err := m.AcceptUpload(ctx, resp.SessionId, bad.Id, resp.Tokens[bad.Id], bytes.NewReader([]byte("HELLO"))); err == nil {
		t.Fatal("corrupted upload was accepted")
	}

	transfers, err := h.List(0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(transfers) != 2 {
		t.Fatalf("got %d transfers, want 2", len(transfers))
	}

	states := make(map[string]string)
	for _, tr := range transfers {
		if tr.SessionID != resp.SessionId || tr.Direction != "upload" {
			t.Errorf("unexpected transfer: %+v", tr)
		}
		if tr.PeerAlias != "alice" || tr.PeerFingerprint != "AAAA" || tr.PeerAddr != "192.168.1.10" {
			t.Errorf("unexpected peer in %+v", tr)
		}
		states[tr.FileName] = tr.State
	}
	if states["abc.txt"] != "verified" || states["bad.txt"] != "failed" {
		t.Errorf("unexpected states: %v", states)
	}
}

func TestHistoryListOrderAndLimit(t *testing.T) {
	h := openTestHistory(t)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	h.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	sess := session.Snapshot{ID: "s1", Direction: session.Download}
	for _, name := range []string{"a.txt", "b.txt", "c.txt"} {
		file := session.FileSnapshot{Meta: models.FileMeta{Id: name, Filename: name, Size: 1}, State: session.Verified}
		if err := h.Record(sess, file); err != nil {
			t.Fatalf("Record %s: %v", name, err)
		}
	}

	transfers, err := h.List(2)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(transfers) != 2 || transfers[0].FileName != "c.txt" || transfers[1].FileName != "b.txt" {
		t.Fatalf("unexpected order: %+v", transfers)
	}
	if transfers[0].Direction != "download" {
		t.Errorf("direction = %s, want download", transfers[0].Direction)
	}
	if !transfers[0].FinishedAt.Equal(base.Add(3 * time.Minute)) {
		t.Errorf("finished at %v", transfers[0].FinishedAt)
	}
}

func TestHistoryRecordTwiceKeepsLatest(t *testing.T) {
	h := openTestHistory(t)

	sess := session.Snapshot{ID: "s1"}
	file := session.FileSnapshot{Meta: models.FileMeta{Id: "f1", Filename: "a.txt"}, State: session.Failed}
	if err := h.Record(sess, file); err != nil {
		t.Fatal(err)
	}
	file.State = session.Verified
	if err := h.Record(sess, file); err != nil {
		t.Fatal(err)
	}

	transfers, err := h.List(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(transfers) != 1 || transfers[0].State != "verified" {
		t.Fatalf("unexpected transfers: %+v", transfers)
	}
}

func TestHistoryPersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.db")

	h, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	file := session.FileSnapshot{Meta: models.FileMeta{Id: "f1", Filename: "a.txt"}, State: session.Verified}
	if err := h.Record(session.Snapshot{ID: "s1"}, file); err != nil {
		t.Fatal(err)
	}
	if err := h.Close(); err != nil {
		t.Fatal(err)
	}

	h, err = Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer h.Close()

	transfers, err := h.List(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(transfers) != 1 {
		t.Fatalf("got %d transfers after reopen, want 1", len(transfers))
	}
}

func TestHistoryClosed(t *testing.T) {
	h, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	if err := h.Close(); err != nil {
		t.Fatal(err)
	}
	if err := h.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}

	if _, err := h.List(0); !errors.Is(err, ErrClosed) {
		t.Errorf("List after Close: %v", err)
	}
	if err := h.Record(session.Snapshot{}, session.FileSnapshot{}); !errors.Is(err, ErrClosed) {
		t.Errorf("Record after Close: %v", err)
	}
}
