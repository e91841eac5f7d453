package models

import (
	"crypto/sha256"
	"encoding/hex"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/0w0mewo/localsend-engine/internal/utils"
	"github.com/google/uuid"
)

// FileMetadata contains optional file timestamp information
type FileMetadata struct {
	Modified string `json:"modified,omitempty"`
	Accessed string `json:"accessed,omitempty"`
}

type FileMeta struct {
	Id       string        `json:"id"`
	Filename string        `json:"fileName"`
	Size     int64         `json:"size"`
	FileMIME string        `json:"fileType"`
	Checksum string        `json:"sha256,omitempty"`
	Preview  string        `json:"preview,omitempty"`
	Metadata *FileMetadata `json:"metadata,omitempty"`
	Token    string        `json:"token,omitempty"` // only set in prepare-download responses
	FullPath string        `json:"-"`
}

func GenFileMeta(fpath string) (FileMeta, error) {
	fd, err := os.Stat(fpath)
	if err != nil {
		return FileMeta{}, err
	}

	checksum, err := utils.SHA256ofFile(fpath)
	if err != nil {
		return FileMeta{}, err
	}

	return FileMeta{
		Id:       uuid.NewString(),
		Filename: fd.Name(),
		Size:     fd.Size(),
		FileMIME: mimeOf(fpath),
		Checksum: checksum,
		Metadata: &FileMetadata{
			Modified: fd.ModTime().Format(time.RFC3339),
		},
		FullPath: fpath,
	}, nil
}

// GenBytesMeta describes in-memory content that has no backing file.
func GenBytesMeta(name string, fileType string, data []byte) FileMeta {
	if fileType == "" {
		fileType = mimeOf(name)
	}

	sum := sha256.Sum256(data)
	return FileMeta{
		Id:       uuid.NewString(),
		Filename: name,
		Size:     int64(len(data)),
		FileMIME: fileType,
		Checksum: hex.EncodeToString(sum[:]),
	}
}

func mimeOf(name string) string {
	fileType := mime.TypeByExtension(filepath.Ext(name))
	if fileType == "" {
		fileType = "text/plain"
	}
	return fileType
}
