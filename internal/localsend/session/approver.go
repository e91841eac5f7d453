package session

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"

	"github.com/0w0mewo/localsend-engine/internal/models"
)

// TransferApprover decides, once per offered file, whether to accept it.
// It is called without any session lock held and may block, e.g. on a user.
type TransferApprover interface {
	Approve(ctx context.Context, peer Peer, file models.FileMeta) bool
}

type ApproverFunc func(ctx context.Context, peer Peer, file models.FileMeta) bool

func (f ApproverFunc) Approve(ctx context.Context, peer Peer, file models.FileMeta) bool {
	return f(ctx, peer, file)
}

var (
	AcceptAll TransferApprover = ApproverFunc(func(context.Context, Peer, models.FileMeta) bool { return true })
	RejectAll TransferApprover = ApproverFunc(func(context.Context, Peer, models.FileMeta) bool { return false })
)

// Policy accepts files by rule. Empty fields do not restrict.
type Policy struct {
	AllowedExt   []string // lower case, without the leading dot
	MaxSize      int64
	TrustedPeers []string // fingerprints
}

func (p Policy) Approve(_ context.Context, peer Peer, file models.FileMeta) bool {
	if p.MaxSize > 0 && file.Size > p.MaxSize {
		return false
	}

	if len(p.TrustedPeers) > 0 && !containsFold(p.TrustedPeers, peer.Fingerprint) {
		return false
	}

	if len(p.AllowedExt) > 0 {
		ext := filepath.Ext(file.Filename)
		if ext == "" {
			return false
		}
		return containsFold(p.AllowedExt, ext[1:])
	}

	return true
}

func containsFold(list []string, v string) bool {
	for _, item := range list {
		if strings.EqualFold(strings.TrimSpace(item), v) {
			return true
		}
	}
	return false
}

// Prompt asks on out and reads the answer from in. Prompts are serialized;
// an empty answer or y/yes accepts.
type Prompt struct {
	mu    sync.Mutex
	out   io.Writer
	lines chan string
}

func NewPrompt(in io.Reader, out io.Writer) *Prompt {
	p := &Prompt{
		out:   out,
		lines: make(chan string),
	}

	go func() {
		defer close(p.lines)

		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			p.lines <- scanner.Text()
		}
	}()

	return p
}

func (p *Prompt) Approve(ctx context.Context, peer Peer, file models.FileMeta) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.out, "%s wants to send %s (%d bytes). Accept? [Y/n] ", peer.Alias, file.Filename, file.Size)

	select {
	case <-ctx.Done():
		fmt.Fprintln(p.out)
		return false
	case line, ok := <-p.lines:
		if !ok {
			return false
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "", "y", "yes":
			return true
		}
		return false
	}
}
