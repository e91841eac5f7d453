package recv

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/0w0mewo/localsend-engine/internal/localsend/constants"
	"github.com/0w0mewo/localsend-engine/internal/localsend/session"
	"github.com/0w0mewo/localsend-engine/internal/models"
)

// serve runs tr on a loopback port and returns its address.
func (tr *testReceiver) serve(t *testing.T, stall time.Duration) string {
	t.Helper()

	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	tr.SetStallTimeout(stall)
	go tr.Serve(context.Background(), ln)
	t.Cleanup(func() { tr.Stop() })

	return ln.Addr().String()
}

// rawUpload writes the upload request head and returns the open connection
// so the body can be fed at any pace.
func rawUpload(t *testing.T, addr string, q url.Values, size int) net.Conn {
	t.Helper()

	conn, err := net.Dial("tcp4", addr)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })

	head := fmt.Sprintf("POST %s?%s HTTP/1.1\r\nHost: %s\r\nContent-Type: application/octet-stream\r\nContent-Length: %d\r\n\r\n",
		constants.UploadPath, q.Encode(), addr, size)
	if _, err := conn.Write([]byte(head)); err != nil {
		t.Fatal(err)
	}
	return conn
}

func (tr *testReceiver) authorize(t *testing.T, data []byte) (string, url.Values) {
	t.Helper()

	file := models.GenBytesMeta("big.bin", "application/octet-stream", data)
	pre := decode[models.PreUploadResp](t, tr.doJSON(t, constants.PreuploadPath, nil, offer(file)))
	return file.Id, url.Values{"sessionId": {pre.SessionId}, "fileId": {file.Id}, "token": {pre.Tokens[file.Id]}}
}

func TestSlowUploadIsNotCutOff(t *testing.T) {
	tr := newTestReceiver(t, session.AcceptAll)
	addr := tr.serve(t, time.Second)

	data := bytes.Repeat([]byte("0123456789abcdef"), 1024)
	fileId, q := tr.authorize(t, data)

	// four pieces, each well within the stall bound, together well past it
	conn := rawUpload(t, addr, q, len(data))
	chunk := len(data) / 4
	for i := 0; i < 4; i++ {
		if i > 0 {
			time.Sleep(400 * time.Millisecond)
		}
		if _, err := conn.Write(data[i*chunk : (i+1)*chunk]); err != nil {
			t.Fatalf("write piece %d: %v", i, err)
		}
	}

	resp, err := http.ReadResponse(bufio.NewReader(conn), nil)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("upload status = %d; want 200", resp.StatusCode)
	}

	snap, err := tr.sessman.Status(q.Get("sessionId"))
	if err != nil {
		t.Fatal(err)
	}
	if got := snap.Files[fileId].State; got != session.Verified {
		t.Errorf("file state = %s; want verified", got)
	}
	if got, _ := tr.sink.Get(q.Get("sessionId"), fileId); !bytes.Equal(got, data) {
		t.Errorf("stored %d bytes; want %d", len(got), len(data))
	}
}

func TestStalledUploadFails(t *testing.T) {
	tr := newTestReceiver(t, session.AcceptAll)
	addr := tr.serve(t, 300*time.Millisecond)

	// past the part read ahead of the handler, so the stall hits the stream
	data := bytes.Repeat([]byte("x"), 16<<10)
	fileId, q := tr.authorize(t, data)

	conn := rawUpload(t, addr, q, len(data))
	if _, err := conn.Write(data[:12<<10]); err != nil {
		t.Fatal(err)
	}

	sid := q.Get("sessionId")
	deadline := time.Now().Add(5 * time.Second)
	for {
		snap, err := tr.sessman.Status(sid)
		if err != nil {
			t.Fatal(err)
		}
		if snap.Files[fileId].State == session.Failed {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("stalled upload still %s", snap.Files[fileId].State)
		}
		time.Sleep(20 * time.Millisecond)
	}

	if _, ok := tr.sink.Get(sid, fileId); ok {
		t.Error("partial upload was committed")
	}
}
