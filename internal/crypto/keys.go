package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
)

// SigningKey wraps the Ed25519 key pair that backs the device certificate.
type SigningKey struct {
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey
}

// GenerateKeyPair creates a new Ed25519 key pair.
func GenerateKeyPair() (*SigningKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key pair: %w", err)
	}
	return &SigningKey{
		privateKey: priv,
		publicKey:  pub,
	}, nil
}

// PublicKey returns the public key component.
func (k *SigningKey) PublicKey() ed25519.PublicKey {
	return k.publicKey
}

// PrivateKey returns the private key component.
func (k *SigningKey) PrivateKey() ed25519.PrivateKey {
	return k.privateKey
}

// MarshalPEM encodes the private key as a PKCS#8 PEM block.
func (k *SigningKey) MarshalPEM() (string, error) {
	der, err := x509.MarshalPKCS8PrivateKey(k.privateKey)
	if err != nil {
		return "", fmt.Errorf("failed to marshal private key: %w", err)
	}

	return string(pem.EncodeToMemory(&pem.Block{
		Type:  "PRIVATE KEY",
		Bytes: der,
	})), nil
}

// ParseSigningKeyPEM decodes a PKCS#8 PEM encoded Ed25519 private key.
func ParseSigningKeyPEM(keyPEM []byte) (*SigningKey, error) {
	block, _ := pem.Decode(keyPEM)
	if block == nil {
		return nil, errors.New("no PEM block found")
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	priv, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("unsupported private key type %T", parsed)
	}

	return &SigningKey{
		privateKey: priv,
		publicKey:  priv.Public().(ed25519.PublicKey),
	}, nil
}
