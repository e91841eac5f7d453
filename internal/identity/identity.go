// Package identity owns the device identity: a persistent alias plus an
// Ed25519 key and self-signed certificate whose public key fingerprint
// identifies the device to its peers.
package identity

import (
	"bytes"
	"crypto/ed25519"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"log/slog"
	"runtime"

	"github.com/0w0mewo/localsend-engine/internal/crypto"
	lsutils "github.com/0w0mewo/localsend-engine/internal/localsend/utils"
	"github.com/0w0mewo/localsend-engine/internal/models"
)

// ConfigurationError means no identity could be established. It is fatal:
// without an identity the device cannot take part in the protocol.
type ConfigurationError struct {
	Op  string
	Err error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("identity %s: %v", e.Op, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// Options are the declared capabilities announced alongside the identity.
type Options struct {
	Port     int
	Protocol string
	Download bool
}

// Identity is immutable for the life of the process.
type Identity struct {
	Alias       string
	Fingerprint string
	DeviceModel string
	DeviceType  string
	Port        int
	Protocol    string
	Download    bool
	Certificate tls.Certificate
}

// LoadOrCreate loads the persisted identity from store. Anything that keeps
// it from loading (missing, unreadable, corrupt) results in a fresh key,
// certificate and alias being generated and persisted instead.
func LoadOrCreate(store Store, opts Options) (*Identity, error) {
	if store == nil {
		return nil, &ConfigurationError{Op: "load", Err: errors.New("no identity store")}
	}

	p, err := store.Load()
	if err == nil {
		id, perr := fromPersisted(p, opts)
		if perr == nil {
			if p.Alias != "" {
				return id, nil
			}

			// keep the key, only the alias is missing
			p.Alias = lsutils.GenAlias()
			if err := store.Save(p); err != nil {
				return nil, &ConfigurationError{Op: "save", Err: err}
			}
			id.Alias = p.Alias
			return id, nil
		}
		slog.Warn("Discarding unusable identity", "error", perr)
	}

	return Reset(store, opts)
}

// Reset generates and persists a brand new identity, replacing whatever
// store held before.
func Reset(store Store, opts Options) (*Identity, error) {
	p, err := generate()
	if err != nil {
		return nil, &ConfigurationError{Op: "generate", Err: err}
	}

	if err := store.Save(p); err != nil {
		return nil, &ConfigurationError{Op: "save", Err: err}
	}

	id, err := fromPersisted(p, opts)
	if err != nil {
		return nil, &ConfigurationError{Op: "generate", Err: err}
	}

	slog.Info("Generated new identity", "alias", id.Alias, "fingerprint", id.Fingerprint)
	return id, nil
}

func generate() (*Persisted, error) {
	key, err := crypto.GenerateKeyPair()
	if err != nil {
		return nil, err
	}

	certPEM, keyPEM, err := crypto.GenerateSelfSignedCert(key)
	if err != nil {
		return nil, err
	}

	return &Persisted{
		Alias:   lsutils.GenAlias(),
		CertPEM: []byte(certPEM),
		KeyPEM:  []byte(keyPEM),
	}, nil
}

func fromPersisted(p *Persisted, opts Options) (*Identity, error) {
	key, err := crypto.ParseSigningKeyPEM(p.KeyPEM)
	if err != nil {
		return nil, err
	}

	block, _ := pem.Decode(p.CertPEM)
	if block == nil {
		return nil, errors.New("no certificate PEM block")
	}

	leaf, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, err
	}

	certKey, ok := leaf.PublicKey.(ed25519.PublicKey)
	if !ok || !bytes.Equal(certKey, key.PublicKey()) {
		return nil, errors.New("certificate does not belong to key")
	}

	cert, err := tls.X509KeyPair(p.CertPEM, p.KeyPEM)
	if err != nil {
		return nil, err
	}
	cert.Leaf = leaf

	fingerprint, err := Fingerprint(key.PublicKey())
	if err != nil {
		return nil, err
	}

	protocol := opts.Protocol
	if protocol == "" {
		protocol = models.ProtocolHTTPS
	}

	return &Identity{
		Alias:       p.Alias,
		Fingerprint: fingerprint,
		DeviceModel: runtime.GOOS,
		DeviceType:  "headless",
		Port:        opts.Port,
		Protocol:    protocol,
		Download:    opts.Download,
		Certificate: cert,
	}, nil
}

// Fingerprint is a pure function of the public key.
func Fingerprint(pub ed25519.PublicKey) (string, error) {
	return crypto.Fingerprint(pub)
}

func (id *Identity) Info() models.DeviceInfo {
	return models.DeviceInfo{
		Alias:       id.Alias,
		Version:     models.ProtocolVersion,
		DeviceModel: id.DeviceModel,
		DeviceType:  id.DeviceType,
		Fingerprint: id.Fingerprint,
		Download:    id.Download,
	}
}

func (id *Identity) Sender() models.SenderInfo {
	return models.SenderInfo{
		DeviceInfo: id.Info(),
		Port:       id.Port,
		Protocol:   id.Protocol,
	}
}

func (id *Identity) Announcement(announce bool) models.Announcement {
	return models.Announcement{
		DeviceInfo: id.Info(),
		Port:       id.Port,
		Protocol:   id.Protocol,
		Announce:   announce,
	}
}
