package constants

import (
	"errors"
	"fmt"
	"testing"
)

func TestV2Paths(t *testing.T) {
	paths := []struct {
		path     string
		expected string
	}{
		{RegisterPath, "/api/localsend/v2/register"},
		{PreuploadPath, "/api/localsend/v2/prepare-upload"},
		{UploadPath, "/api/localsend/v2/upload"},
		{CancelPath, "/api/localsend/v2/cancel"},
		{InfoPath, "/api/localsend/v2/info"},
		{DownloadPath, "/api/localsend/v2/download"},
		{PreDownloadPath, "/api/localsend/v2/prepare-download"},
	}

	for _, tt := range paths {
		if tt.path != tt.expected {
			t.Errorf("Path constant = %q; want %q", tt.path, tt.expected)
		}
	}
}

func TestStatus(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{nil, 200},
		{ErrAllRejected, 204},
		{ErrInvalidBody, 400},
		{ErrInvalidPIN, 401},
		{ErrRejected, 403},
		{ErrUnauthorized, 403},
		{ErrCancelled, 403},
		{fmt.Errorf("upload: %w", ErrUnauthorized), 403},
		{ErrNotFound, 404},
		{ErrBlockedByOthers, 409},
		{ErrTooManyReq, 429},
		{ErrIntegrity, 500},
		{ErrFileIO, 500},
		{errors.New("boom"), 500},
	}

	for _, tt := range tests {
		if got := Status(tt.err); got != tt.status {
			t.Errorf("Status(%v) = %d; want %d", tt.err, got, tt.status)
		}
	}
}

func TestParseError(t *testing.T) {
	tests := []struct {
		status int
		err    error
	}{
		{200, nil},
		{204, ErrAllRejected},
		{400, ErrInvalidBody},
		{401, ErrInvalidPIN},
		{403, ErrRejected},
		{404, ErrNotFound},
		{409, ErrBlockedByOthers},
		{429, ErrTooManyReq},
		{500, ErrUnknown},
		{502, ErrUnknown},
	}

	for _, tt := range tests {
		if got := ParseError(tt.status); got != tt.err {
			t.Errorf("ParseError(%d) = %v; want %v", tt.status, got, tt.err)
		}
	}
}
