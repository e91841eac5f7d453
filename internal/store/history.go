package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/0w0mewo/localsend-engine/internal/localsend/session"
	_ "github.com/mattn/go-sqlite3"
)

var migrations = []string{
	`
CREATE TABLE IF NOT EXISTS transfers (
  id               INTEGER PRIMARY KEY AUTOINCREMENT,
  session_id       TEXT NOT NULL,
  direction        TEXT NOT NULL CHECK(direction IN ('upload','download')),
  peer_alias       TEXT NOT NULL DEFAULT '',
  peer_fingerprint TEXT NOT NULL DEFAULT '',
  peer_addr        TEXT NOT NULL DEFAULT '',
  file_id          TEXT NOT NULL,
  file_name        TEXT NOT NULL,
  file_size        INTEGER NOT NULL,
  sha256           TEXT NOT NULL DEFAULT '',
  state            TEXT NOT NULL CHECK(state IN ('verified','failed')),
  finished_at      INTEGER NOT NULL,
  UNIQUE (session_id, file_id)
);
`,
	`
CREATE INDEX IF NOT EXISTS idx_transfers_finished_at
ON transfers (finished_at DESC, id DESC);
`,
}

var ErrClosed = errors.New("history is closed")

// Transfer is one finished file, as kept in the history.
type Transfer struct {
	ID              int64
	SessionID       string
	Direction       string
	PeerAlias       string
	PeerFingerprint string
	PeerAddr        string
	FileID          string
	FileName        string
	Size            int64
	SHA256          string
	State           string
	FinishedAt      time.Time
}

// History records every file that finished verifying or failing, in SQLite.
type History struct {
	mu        sync.RWMutex
	db        *sql.DB
	closeOnce sync.Once
	now       func() time.Time
}

// Open opens (or creates) the history database at path and migrates it.
func Open(path string) (*History, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000", filepath.ToSlash(path))
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite database: %w", err)
	}

	h := &History{db: db, now: time.Now}
	if err := h.applyMigrations(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return h, nil
}

func (h *History) applyMigrations() error {
	var version int
	if err := h.db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	if version >= len(migrations) {
		return nil
	}

	tx, err := h.db.Begin()
	if err != nil {
		return fmt.Errorf("begin migration transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for i := version; i < len(migrations); i++ {
		if _, err := tx.Exec(migrations[i]); err != nil {
			return fmt.Errorf("apply migration %d: %w", i+1, err)
		}
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d;", i+1)); err != nil {
			return fmt.Errorf("set schema version %d: %w", i+1, err)
		}
	}

	return tx.Commit()
}

// Record stores the outcome of file. Recording the same file of the same
// session twice keeps the latest outcome.
func (h *History) Record(sess session.Snapshot, file session.FileSnapshot) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.db == nil {
		return ErrClosed
	}

	_, err := h.db.Exec(
		`INSERT INTO transfers (
			session_id,
			direction,
			peer_alias,
			peer_fingerprint,
			peer_addr,
			file_id,
			file_name,
			file_size,
			sha256,
			state,
			finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (session_id, file_id) DO UPDATE SET
			state = excluded.state,
			finished_at = excluded.finished_at`,
		sess.ID,
		sess.Direction.String(),
		sess.Initiator.Alias,
		sess.Initiator.Fingerprint,
		sess.Initiator.Addr,
		file.Meta.Id,
		file.Meta.Filename,
		file.Meta.Size,
		file.Meta.Checksum,
		file.State.String(),
		h.now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert transfer %q/%q: %w", sess.ID, file.Meta.Id, err)
	}

	return nil
}

// Hook adapts Record to the session manager's observer. Failures are only
// logged: history must never affect a transfer.
func (h *History) Hook() session.FinishedFunc {
	return func(sess session.Snapshot, file session.FileSnapshot) {
		if err := h.Record(sess, file); err != nil {
			slog.Warn("Fail to record transfer", "session", sess.ID, "file", file.Meta.Filename, "error", err)
		}
	}
}

// List returns the latest transfers first. limit <= 0 returns everything.
func (h *History) List(limit int) ([]Transfer, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.db == nil {
		return nil, ErrClosed
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := h.db.Query(
		`SELECT
			id,
			session_id,
			direction,
			peer_alias,
			peer_fingerprint,
			peer_addr,
			file_id,
			file_name,
			file_size,
			sha256,
			state,
			finished_at
		FROM transfers
		ORDER BY finished_at DESC, id DESC
		LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list transfers: %w", err)
	}
	defer rows.Close()

	var res []Transfer
	for rows.Next() {
		var (
			t          Transfer
			finishedAt int64
		)
		if err := rows.Scan(
			&t.ID,
			&t.SessionID,
			&t.Direction,
			&t.PeerAlias,
			&t.PeerFingerprint,
			&t.PeerAddr,
			&t.FileID,
			&t.FileName,
			&t.Size,
			&t.SHA256,
			&t.State,
			&finishedAt,
		); err != nil {
			return nil, fmt.Errorf("scan transfer: %w", err)
		}
		t.FinishedAt = time.UnixMilli(finishedAt)
		res = append(res, t)
	}

	return res, rows.Err()
}

func (h *History) Close() error {
	var closeErr error
	h.closeOnce.Do(func() {
		h.mu.Lock()
		defer h.mu.Unlock()

		closeErr = h.db.Close()
		h.db = nil
	})
	return closeErr
}
