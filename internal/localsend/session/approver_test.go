package session

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/0w0mewo/localsend-engine/internal/models"
)

func TestPolicy(t *testing.T) {
	txt := models.FileMeta{Id: "1", Filename: "notes.TXT", Size: 10}
	exe := models.FileMeta{Id: "2", Filename: "setup.exe", Size: 10}
	bare := models.FileMeta{Id: "3", Filename: "README", Size: 10}
	big := models.FileMeta{Id: "4", Filename: "movie.txt", Size: 1 << 30}

	tests := []struct {
		name   string
		policy Policy
		peer   Peer
		file   models.FileMeta
		want   bool
	}{
		{"no rules", Policy{}, bob, exe, true},
		{"allowed ext", Policy{AllowedExt: []string{"txt"}}, bob, txt, true},
		{"other ext", Policy{AllowedExt: []string{"txt"}}, bob, exe, false},
		{"no ext", Policy{AllowedExt: []string{"txt"}}, bob, bare, false},
		{"too big", Policy{MaxSize: 1024}, bob, big, false},
		{"small enough", Policy{MaxSize: 1024}, bob, txt, true},
		{"trusted", Policy{TrustedPeers: []string{"b0b"}}, bob, txt, true},
		{"untrusted", Policy{TrustedPeers: []string{"B0B"}}, alice, txt, false},
	}

	for _, tt := range tests {
		if got := tt.policy.Approve(context.Background(), tt.peer, tt.file); got != tt.want {
			t.Errorf("%s: Approve = %v; want %v", tt.name, got, tt.want)
		}
	}
}

func TestPromptAnswers(t *testing.T) {
	in := strings.NewReader("\ny\nno\nYES\nwhatever\n")
	var out bytes.Buffer
	p := NewPrompt(in, &out)

	file := models.FileMeta{Id: "1", Filename: "abc.txt", Size: 12}
	want := []bool{true, true, false, true, false}

	for i, w := range want {
		if got := p.Approve(context.Background(), bob, file); got != w {
			t.Errorf("answer %d: Approve = %v; want %v", i, got, w)
		}
	}

	// input exhausted
	if p.Approve(context.Background(), bob, file) {
		t.Error("Approve after EOF = true; want false")
	}

	if !strings.Contains(out.String(), "Cool Mango wants to send abc.txt") {
		t.Errorf("prompt output = %q", out.String())
	}
}

func TestPromptHonoursContext(t *testing.T) {
	in, w := io.Pipe()
	defer w.Close()

	p := NewPrompt(in, io.Discard)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if p.Approve(ctx, bob, models.FileMeta{Filename: "a.txt"}) {
		t.Error("Approve without an answer = true; want false")
	}
}
