package constants

import (
	"errors"
)

var (
	ErrAllRejected     = errors.New("All files rejected")
	ErrInvalidBody     = errors.New("Invalid body")
	ErrRejected        = errors.New("Rejected")
	ErrUnauthorized    = errors.New("Unauthorized transfer")
	ErrInvalidPIN      = errors.New("Invalid PIN")
	ErrBlockedByOthers = errors.New("Block by another session")
	ErrNotFound        = errors.New("Not found")
	ErrUnknown         = errors.New("Unknown error")
	ErrTooManyReq      = errors.New("Too many request")
	ErrFileIO          = errors.New("File IO")
	ErrIntegrity       = errors.New("Integrity check failed")
	ErrCancelled       = errors.New("Session cancelled")
	ErrFingerprint     = errors.New("Fingerprint mismatch")
	ErrPeerUnreachable = errors.New("Peer unreachable")
)

// ParseError maps a response status to the error the peer reported.
// 204 means every offered file was declined.
func ParseError(status int) error {
	switch status {
	case 200:
		return nil
	case 204:
		return ErrAllRejected
	case 400:
		return ErrInvalidBody
	case 401:
		return ErrInvalidPIN
	case 403:
		return ErrRejected
	case 404:
		return ErrNotFound
	case 409:
		return ErrBlockedByOthers
	case 429:
		return ErrTooManyReq
	default:
		return ErrUnknown
	}
}

// Status maps an error to the response status sent to the peer.
// Everything that amounts to a failed authorization check collapses into 403.
func Status(err error) int {
	switch {
	case err == nil:
		return 200
	case errors.Is(err, ErrAllRejected):
		return 204
	case errors.Is(err, ErrInvalidBody):
		return 400
	case errors.Is(err, ErrInvalidPIN):
		return 401
	case errors.Is(err, ErrRejected), errors.Is(err, ErrUnauthorized), errors.Is(err, ErrCancelled):
		return 403
	case errors.Is(err, ErrNotFound):
		return 404
	case errors.Is(err, ErrBlockedByOthers):
		return 409
	case errors.Is(err, ErrTooManyReq):
		return 429
	default:
		return 500
	}
}
