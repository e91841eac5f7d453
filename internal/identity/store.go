package identity

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const (
	identityFileName = "identity.json"
	certFileName     = "cert.pem"
	keyFileName      = "key.pem"
)

// Persisted is the identity material that survives restarts.
type Persisted struct {
	Alias   string
	CertPEM []byte
	KeyPEM  []byte
}

// Store loads and saves identity material.
type Store interface {
	Load() (*Persisted, error)
	Save(p *Persisted) error
}

// FileStore keeps the identity as three files in Dir.
type FileStore struct {
	Dir string
}

type savedIdentity struct {
	Alias string `json:"alias"`
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{Dir: dir}
}

func (fs *FileStore) Load() (*Persisted, error) {
	raw, err := os.ReadFile(filepath.Join(fs.Dir, identityFileName))
	if err != nil {
		return nil, err
	}

	var saved savedIdentity
	if err := json.Unmarshal(raw, &saved); err != nil {
		return nil, fmt.Errorf("parse identity: %w", err)
	}

	certPEM, err := os.ReadFile(filepath.Join(fs.Dir, certFileName))
	if err != nil {
		return nil, err
	}

	keyPEM, err := os.ReadFile(filepath.Join(fs.Dir, keyFileName))
	if err != nil {
		return nil, err
	}

	return &Persisted{
		Alias:   saved.Alias,
		CertPEM: certPEM,
		KeyPEM:  keyPEM,
	}, nil
}

func (fs *FileStore) Save(p *Persisted) error {
	if fs.Dir == "" {
		return errors.New("no identity directory")
	}
	if err := os.MkdirAll(fs.Dir, 0o700); err != nil {
		return err
	}

	raw, err := json.MarshalIndent(savedIdentity{Alias: p.Alias}, "", "  ")
	if err != nil {
		return err
	}

	// key first: a cert without its key is treated as corrupt on load anyway
	files := []struct {
		name string
		data []byte
	}{
		{keyFileName, p.KeyPEM},
		{certFileName, p.CertPEM},
		{identityFileName, append(raw, '\n')},
	}
	for _, f := range files {
		if err := os.WriteFile(filepath.Join(fs.Dir, f.name), f.data, 0o600); err != nil {
			return err
		}
	}

	return nil
}

// MemoryStore is a Store without persistence.
type MemoryStore struct {
	mu      sync.Mutex
	saved   *Persisted
	SaveErr error
}

func (ms *MemoryStore) Load() (*Persisted, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if ms.saved == nil {
		return nil, os.ErrNotExist
	}
	p := *ms.saved
	return &p, nil
}

func (ms *MemoryStore) Save(p *Persisted) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if ms.SaveErr != nil {
		return ms.SaveErr
	}
	cp := *p
	ms.saved = &cp
	return nil
}
