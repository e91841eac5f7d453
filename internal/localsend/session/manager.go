package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/0w0mewo/localsend-engine/internal/crypto"
	"github.com/0w0mewo/localsend-engine/internal/localsend/constants"
	"github.com/0w0mewo/localsend-engine/internal/models"
	"github.com/google/uuid"
)

const (
	DefaultTimeout       = 2 * time.Minute
	DefaultRetention     = 30 * time.Second
	DefaultSweepInterval = 5 * time.Second
)

type Options struct {
	// Timeout cancels sessions without progress for this long.
	Timeout time.Duration
	// Retention keeps finished sessions queryable for this long.
	Retention     time.Duration
	SweepInterval time.Duration
	Now           func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.Retention <= 0 {
		o.Retention = DefaultRetention
	}
	if o.SweepInterval <= 0 {
		o.SweepInterval = DefaultSweepInterval
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// FinishedFunc observes every file that reaches Verified or Failed.
type FinishedFunc func(sess Snapshot, file FileSnapshot)

// Manager is the single owner of all transfer sessions. The session map is
// guarded by mu; each session has its own lock, so work on one session
// never waits for another.
type Manager struct {
	approver TransferApprover
	sink     Sink
	opts     Options

	mu       sync.RWMutex
	sessions map[string]*session

	hookMu     sync.RWMutex
	onFinished []FinishedFunc
}

func NewManager(approver TransferApprover, sink Sink, opts Options) *Manager {
	if approver == nil {
		approver = AcceptAll
	}

	return &Manager{
		approver: approver,
		sink:     sink,
		opts:     opts.withDefaults(),
		sessions: make(map[string]*session),
	}
}

func (m *Manager) OnFinished(fn FinishedFunc) {
	m.hookMu.Lock()
	defer m.hookMu.Unlock()

	m.onFinished = append(m.onFinished, fn)
}

func (m *Manager) now() time.Time {
	return m.opts.Now()
}

func (m *Manager) lookup(sessionId string) (*session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[sessionId]
	return s, ok
}

func (m *Manager) store(s *session) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[s.id] = s
}

// BeginNegotiation asks the approver about every offered file and issues a
// token for each accepted one. If nothing is accepted no session is created
// and ErrAllRejected is returned.
func (m *Manager) BeginNegotiation(ctx context.Context, initiator Peer, files models.FileMetas) (*models.PreUploadResp, error) {
	if len(files) == 0 {
		return nil, constants.ErrInvalidBody
	}

	ids := make([]string, 0, len(files))
	for fileId, meta := range files {
		if fileId == "" || meta.Id != fileId || meta.Size < 0 {
			return nil, constants.ErrInvalidBody
		}
		ids = append(ids, fileId)
	}
	sort.Strings(ids)

	s := newSession(uuid.NewString(), Upload, initiator, m.now())
	resp := models.NewPreUploadResp(s.id)

	for _, fileId := range ids {
		meta := files[fileId]
		meta.Token = ""
		meta.FullPath = ""

		o := &offer{meta: meta, state: Offered}
		s.offers[fileId] = o

		if !m.approver.Approve(ctx, initiator, meta) {
			o.state = Rejected
			slog.Info("Rejecting file", "file", meta.Filename, "remote", initiator.Alias)
			continue
		}

		token, err := crypto.GenerateToken()
		if err != nil {
			s.cancel()
			return nil, err
		}
		o.token = token
		o.state = Authorized
		resp.AddFile(fileId, token)
	}

	if len(resp.Tokens) == 0 {
		s.cancel()
		return nil, constants.ErrAllRejected
	}

	s.state = Active
	m.store(s)

	slog.Debug("Session started", "session", s.id, "accepted", len(resp.Tokens), "offered", len(files))
	return resp, nil
}

// AcceptUpload streams body into the sink for a file authorized by token.
// A token is good for exactly one call; any check failure returns
// ErrUnauthorized without touching the session. The received content is
// checked against the declared size and sha256.
func (m *Manager) AcceptUpload(ctx context.Context, sessionId, fileId, token string, body io.Reader) error {
	s, ok := m.lookup(sessionId)
	if !ok {
		return constants.ErrUnauthorized
	}

	o, err := s.claim(Upload, fileId, token, m.now())
	if err != nil {
		return err
	}
	meta := o.meta

	w, err := m.sink.Open(sessionId, meta)
	if err != nil {
		m.finish(s, fileId, Failed, nil)
		return fmt.Errorf("%w: %v", constants.ErrFileIO, err)
	}

	ctx, stop := streamContext(ctx, s)
	defer stop()

	hasher := sha256.New()
	n, err := copyContext(ctx, io.MultiWriter(w, hasher), io.LimitReader(body, meta.Size+1))
	if err != nil {
		w.Abort()
		if m.finish(s, fileId, Failed, nil) == FileCancelled {
			return constants.ErrCancelled
		}
		return fmt.Errorf("%w: %v", constants.ErrFileIO, err)
	}

	if err := verify(meta, n, hasher.Sum(nil)); err != nil {
		w.Abort()
		if m.finish(s, fileId, Failed, nil) == FileCancelled {
			return constants.ErrCancelled
		}
		return err
	}

	var commitErr error
	switch m.finish(s, fileId, Verified, func() error { commitErr = w.Commit(); return commitErr }) {
	case Verified:
		slog.Info("Recv file", "file", meta.Filename, "session", sessionId)
		return nil
	case FileCancelled:
		w.Abort()
		return constants.ErrCancelled
	default:
		return fmt.Errorf("%w: %v", constants.ErrFileIO, commitErr)
	}
}

// BeginShare creates a download session over files. The files are already
// chosen by the local user, so every one is authorized with its own token.
func (m *Manager) BeginShare(initiator Peer, files []SharedFile) (*models.PreDownloadResp, error) {
	if len(files) == 0 {
		return nil, constants.ErrAllRejected
	}

	s := newSession(uuid.NewString(), Download, initiator, m.now())
	resp := models.NewPreDownloadResp(s.id)

	for _, f := range files {
		token, err := crypto.GenerateToken()
		if err != nil {
			s.cancel()
			return nil, err
		}

		meta := f.Meta
		meta.Token = ""
		if meta.Id == "" {
			meta.Id = uuid.NewString()
		}
		s.offers[meta.Id] = &offer{meta: meta, token: token, state: Authorized, source: f.Source}

		meta.Token = token
		meta.FullPath = ""
		resp.Files[meta.Id] = meta
	}

	s.state = Active
	m.store(s)

	return resp, nil
}

// ClaimedFile is a shared file claimed with its token. Stream must be called
// exactly once.
type ClaimedFile struct {
	Meta models.FileMeta

	m *Manager
	s *session
	o *offer
}

// ClaimDownload checks a download token. Token rules are the same as for
// AcceptUpload; download tokens only exist in download sessions.
func (m *Manager) ClaimDownload(sessionId, fileId, token string) (*ClaimedFile, error) {
	s, ok := m.lookup(sessionId)
	if !ok {
		return nil, constants.ErrUnauthorized
	}

	o, err := s.claim(Download, fileId, token, m.now())
	if err != nil {
		return nil, err
	}

	return &ClaimedFile{Meta: o.meta, m: m, s: s, o: o}, nil
}

// Stream copies the file into w. It stops early when the session ends.
func (d *ClaimedFile) Stream(ctx context.Context, w io.Writer) error {
	m, s, meta := d.m, d.s, d.Meta

	src, err := d.o.source.Open()
	if err != nil {
		m.finish(s, meta.Id, Failed, nil)
		return fmt.Errorf("%w: %v", constants.ErrFileIO, err)
	}
	defer src.Close()

	ctx, stop := streamContext(ctx, s)
	defer stop()

	n, err := copyContext(ctx, w, src)
	if err != nil {
		if m.finish(s, meta.Id, Failed, nil) == FileCancelled {
			return constants.ErrCancelled
		}
		return fmt.Errorf("%w: %v", constants.ErrFileIO, err)
	}

	if n != meta.Size {
		m.finish(s, meta.Id, Failed, nil)
		return fmt.Errorf("%w: shared file changed size", constants.ErrIntegrity)
	}

	if m.finish(s, meta.Id, Verified, nil) == FileCancelled {
		return constants.ErrCancelled
	}

	slog.Info("File sent", "file", meta.Filename, "session", s.id)
	return nil
}

// AcceptDownload claims a shared file and copies it into w.
func (m *Manager) AcceptDownload(ctx context.Context, sessionId, fileId, token string, w io.Writer) error {
	d, err := m.ClaimDownload(sessionId, fileId, token)
	if err != nil {
		return err
	}
	return d.Stream(ctx, w)
}

// Cancel ends a session on behalf of its initiator. Cancelling a session
// that already ended is a no-op.
func (m *Manager) Cancel(sessionId string, requester Peer) error {
	s, ok := m.lookup(sessionId)
	if !ok {
		return constants.ErrUnauthorized
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initiator.claimedBy(requester) {
		return constants.ErrUnauthorized
	}

	if s.state.Terminal() {
		return nil
	}

	s.cancelLocked(m.now())
	slog.Info("Session cancelled", "session", sessionId)
	return nil
}

// Status returns a snapshot of a live or recently finished session.
func (m *Manager) Status(sessionId string) (Snapshot, error) {
	s, ok := m.lookup(sessionId)
	if !ok {
		return Snapshot{}, constants.ErrNotFound
	}
	return s.snapshot(), nil
}

func (m *Manager) Sessions() []Snapshot {
	m.mu.RLock()
	all := make([]*session, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	m.mu.RUnlock()

	snaps := make([]Snapshot, 0, len(all))
	for _, s := range all {
		snaps = append(snaps, s.snapshot())
	}
	return snaps
}

// Sweep cancels sessions idle longer than the timeout and evicts finished
// sessions older than the retention period. A file being streamed counts
// as activity.
func (m *Manager) Sweep(now time.Time) {
	m.mu.RLock()
	all := make([]*session, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	m.mu.RUnlock()

	var evict []string
	for _, s := range all {
		s.mu.Lock()
		switch {
		case !s.state.Terminal() && !s.receiving() && now.Sub(s.lastActivity) > m.opts.Timeout:
			s.cancelLocked(now)
			slog.Info("Session timed out", "session", s.id)
		case s.state.Terminal() && now.Sub(s.finishedAt) > m.opts.Retention:
			evict = append(evict, s.id)
		}
		s.mu.Unlock()
	}

	if len(evict) == 0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range evict {
		delete(m.sessions, id)
		slog.Debug("Remove finished session", "session", id)
	}
}

// Start runs Sweep periodically until ctx is done.
func (m *Manager) Start(ctx context.Context) {
	go m.vacuumTask(ctx)
}

func (m *Manager) vacuumTask(ctx context.Context) {
	ticker := time.NewTicker(m.opts.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep(m.now())
		}
	}
}

func (m *Manager) finish(s *session, fileId string, result FileState, commit func() error) FileState {
	state := s.settle(fileId, result, commit, m.now())
	if state == FileCancelled {
		return state
	}

	m.hookMu.RLock()
	hooks := m.onFinished
	m.hookMu.RUnlock()

	if len(hooks) > 0 {
		snap := s.snapshot()
		for _, fn := range hooks {
			fn(snap, snap.Files[fileId])
		}
	}

	return state
}

// streamContext is ctx, additionally cancelled when the session ends.
func streamContext(ctx context.Context, s *session) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)
	unregister := context.AfterFunc(s.ctx, cancel)

	return ctx, func() {
		unregister()
		cancel()
	}
}

func copyContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, 32<<10)
	var written int64

	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		nr, rerr := src.Read(buf)
		if nr > 0 {
			nw, werr := dst.Write(buf[:nr])
			written += int64(nw)
			if werr != nil {
				return written, werr
			}
			if nw != nr {
				return written, io.ErrShortWrite
			}
		}

		if rerr == io.EOF {
			return written, nil
		}
		if rerr != nil {
			return written, rerr
		}
	}
}

func verify(meta models.FileMeta, n int64, sum []byte) error {
	if n != meta.Size {
		return fmt.Errorf("%w: got %d bytes, declared %d", constants.ErrIntegrity, n, meta.Size)
	}

	if meta.Checksum != "" && !strings.EqualFold(hex.EncodeToString(sum), meta.Checksum) {
		return fmt.Errorf("%w: sha256 mismatch", constants.ErrIntegrity)
	}

	return nil
}
