package crypto

import (
	"crypto"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"math/big"
	"strings"
	"time"
)

// GenerateSelfSignedCert generates a self-signed certificate for TLS.
// Returns certificate PEM, private key PEM, and error.
func GenerateSelfSignedCert(key *SigningKey) (certPEM, keyPEM string, err error) {
	serialNumber, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return "", "", fmt.Errorf("failed to generate serial number: %w", err)
	}

	template := x509.Certificate{
		SerialNumber: serialNumber,
		Subject: pkix.Name{
			CommonName:   "LocalSend User",
			Organization: []string{""},
		},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().Add(10 * 365 * 24 * time.Hour), // 10 years
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		BasicConstraintsValid: true,
	}

	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, key.publicKey, key.privateKey)
	if err != nil {
		return "", "", fmt.Errorf("failed to create certificate: %w", err)
	}

	certPEMBlock := pem.EncodeToMemory(&pem.Block{
		Type:  "CERTIFICATE",
		Bytes: certDER,
	})

	keyPEM, err = key.MarshalPEM()
	if err != nil {
		return "", "", err
	}

	return string(certPEMBlock), keyPEM, nil
}

// Fingerprint is the uppercase hex SHA-256 of the PKIX encoding of pub.
// It only depends on the key, so re-issuing the certificate keeps it.
func Fingerprint(pub crypto.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", fmt.Errorf("failed to marshal public key: %w", err)
	}

	sum := sha256.Sum256(der)
	return strings.ToUpper(hex.EncodeToString(sum[:])), nil
}

// FingerprintFromCert computes the device fingerprint of a parsed certificate.
func FingerprintFromCert(cert *x509.Certificate) string {
	fp, err := Fingerprint(cert.PublicKey)
	if err != nil {
		return ""
	}
	return fp
}

// FingerprintFromCertDER computes the device fingerprint of a DER certificate.
// An unparsable certificate yields an empty fingerprint.
func FingerprintFromCertDER(der []byte) string {
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return ""
	}

	return FingerprintFromCert(cert)
}
