package session

import (
	"context"
	"crypto/subtle"
	"sync"
	"time"

	"github.com/0w0mewo/localsend-engine/internal/localsend/constants"
	"github.com/0w0mewo/localsend-engine/internal/models"
)

// Peer identifies the remote side of a session.
type Peer struct {
	Fingerprint string
	Alias       string
	Addr        string
}

// PeerFromSender builds a Peer from the info a remote sent along with its
// request and the address the request came from.
func PeerFromSender(info *models.SenderInfo, addr string) Peer {
	p := Peer{Addr: addr}
	if info != nil {
		p.Fingerprint = info.Fingerprint
		p.Alias = info.Alias
	}
	return p
}

// claimedBy reports whether requester may act as p. A claimed fingerprint
// must match; without one the remote address has to.
func (p Peer) claimedBy(requester Peer) bool {
	if requester.Fingerprint != "" {
		return p.Fingerprint != "" && equal(p.Fingerprint, requester.Fingerprint)
	}
	return requester.Addr != "" && p.Addr == requester.Addr
}

func equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

type offer struct {
	meta   models.FileMeta
	token  string
	state  FileState
	source Source
}

// session is only ever touched with mu held, and never leaves the Manager.
type session struct {
	mu sync.Mutex

	id        string
	direction Direction
	initiator Peer
	state     SessionState
	offers    map[string]*offer

	created      time.Time
	lastActivity time.Time
	finishedAt   time.Time

	// ctx is cancelled once the session ends, aborting in-flight streams
	ctx    context.Context
	cancel context.CancelFunc
}

func newSession(id string, dir Direction, initiator Peer, now time.Time) *session {
	ctx, cancel := context.WithCancel(context.Background())

	return &session{
		id:           id,
		direction:    dir,
		initiator:    initiator,
		state:        Negotiating,
		offers:       make(map[string]*offer),
		created:      now,
		lastActivity: now,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// claim performs the single-use Authorized->Receiving transition. Any
// mismatch returns ErrUnauthorized and leaves the session untouched.
func (s *session) claim(dir Direction, fileID, token string, now time.Time) (*offer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.direction != dir || s.state != Active {
		return nil, constants.ErrUnauthorized
	}

	o, ok := s.offers[fileID]
	if !ok || o.state != Authorized || !equal(o.token, token) {
		return nil, constants.ErrUnauthorized
	}

	o.state = Receiving
	s.lastActivity = now
	return o, nil
}

// settle moves a Receiving file to its final state. commit runs under the
// session lock and only if the file is still Receiving, i.e. the session
// was not cancelled meanwhile. It reports the state the file ended in.
func (s *session) settle(fileID string, result FileState, commit func() error, now time.Time) FileState {
	s.mu.Lock()
	defer s.mu.Unlock()

	o := s.offers[fileID]
	if o.state != Receiving {
		return o.state
	}

	if result == Verified && commit != nil {
		if err := commit(); err != nil {
			result = Failed
		}
	}

	o.state = result
	s.lastActivity = now
	s.completeIfDone(now)
	return result
}

// completeIfDone must be called with mu held.
func (s *session) completeIfDone(now time.Time) {
	if s.state != Active {
		return
	}

	for _, o := range s.offers {
		if o.state == Authorized || o.state == Receiving {
			return
		}
	}

	s.state = Completed
	s.finishedAt = now
	s.cancel()
}

// cancelLocked must be called with mu held.
func (s *session) cancelLocked(now time.Time) {
	for _, o := range s.offers {
		if !o.state.Terminal() {
			o.state = FileCancelled
		}
	}

	s.state = Cancelled
	s.finishedAt = now
	s.cancel()
}

func (s *session) receiving() bool {
	for _, o := range s.offers {
		if o.state == Receiving {
			return true
		}
	}
	return false
}

// Snapshot is a point-in-time copy of a session. Tokens are not included.
type Snapshot struct {
	ID           string
	Direction    Direction
	Initiator    Peer
	State        SessionState
	Created      time.Time
	LastActivity time.Time
	Files        map[string]FileSnapshot
}

type FileSnapshot struct {
	Meta  models.FileMeta
	State FileState
}

func (s *session) snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.snapshotLocked()
}

func (s *session) snapshotLocked() Snapshot {
	snap := Snapshot{
		ID:           s.id,
		Direction:    s.direction,
		Initiator:    s.initiator,
		State:        s.state,
		Created:      s.created,
		LastActivity: s.lastActivity,
		Files:        make(map[string]FileSnapshot, len(s.offers)),
	}

	for id, o := range s.offers {
		meta := o.meta
		meta.Token = ""
		snap.Files[id] = FileSnapshot{Meta: meta, State: o.state}
	}

	return snap
}
