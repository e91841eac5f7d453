package session

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/0w0mewo/localsend-engine/internal/models"
)

// FileWriter receives the content of one file. Exactly one of Commit or
// Abort is called once writing ends.
type FileWriter interface {
	io.Writer
	Commit() error
	Abort() error
}

// Sink persists received files.
type Sink interface {
	Open(sessionID string, file models.FileMeta) (FileWriter, error)
}

// Source provides the content of a shared file.
type Source interface {
	Open() (io.ReadCloser, error)
}

// SharedFile is a file offered through the download API.
type SharedFile struct {
	Meta   models.FileMeta
	Source Source
}

// DirSink writes into a temporary file next to its destination and renames
// it into Dir on commit, so partial uploads never show up under their name.
type DirSink struct {
	Dir string

	mu sync.Mutex // serializes destination name selection
}

func NewDirSink(dir string) *DirSink {
	return &DirSink{Dir: dir}
}

func (ds *DirSink) Open(sessionID string, file models.FileMeta) (FileWriter, error) {
	if err := os.MkdirAll(ds.Dir, fs.ModePerm); err != nil {
		return nil, err
	}

	tmp, err := os.CreateTemp(ds.Dir, ".localsend-*.part")
	if err != nil {
		return nil, err
	}

	return &dirFile{sink: ds, tmp: tmp, name: safeName(file)}, nil
}

type dirFile struct {
	sink *DirSink
	tmp  *os.File
	name string
}

func (df *dirFile) Write(p []byte) (int, error) {
	return df.tmp.Write(p)
}

func (df *dirFile) Commit() error {
	if err := df.tmp.Close(); err != nil {
		os.Remove(df.tmp.Name())
		return err
	}

	df.sink.mu.Lock()
	defer df.sink.mu.Unlock()

	dst := uniquePath(filepath.Join(df.sink.Dir, df.name))
	if err := os.Rename(df.tmp.Name(), dst); err != nil {
		os.Remove(df.tmp.Name())
		return err
	}
	return os.Chmod(dst, 0o640)
}

func (df *dirFile) Abort() error {
	df.tmp.Close()
	return os.Remove(df.tmp.Name())
}

// safeName strips any directory part a peer put into the file name.
func safeName(file models.FileMeta) string {
	name := filepath.Base(filepath.Clean("/" + strings.ReplaceAll(file.Filename, "\\", "/")))
	if name == "/" || name == "." || name == "" {
		return file.Id
	}
	return name
}

func uniquePath(path string) string {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return path
	}

	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s (%d)%s", base, i, ext)
		if _, err := os.Stat(candidate); errors.Is(err, fs.ErrNotExist) {
			return candidate
		}
	}
}

// ErrNoSink is returned by NoSink for every file.
var ErrNoSink = errors.New("this node does not receive files")

// NoSink refuses every file. It backs nodes that only share.
type NoSink struct{}

func (NoSink) Open(sessionID string, file models.FileMeta) (FileWriter, error) {
	return nil, ErrNoSink
}

// MemorySink keeps committed files in memory.
type MemorySink struct {
	mu    sync.Mutex
	files map[string][]byte
}

func NewMemorySink() *MemorySink {
	return &MemorySink{files: make(map[string][]byte)}
}

func (ms *MemorySink) Open(sessionID string, file models.FileMeta) (FileWriter, error) {
	return &memFile{sink: ms, key: sessionID + "/" + file.Id}, nil
}

// Get returns the committed content of a file.
func (ms *MemorySink) Get(sessionID, fileID string) ([]byte, bool) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	b, ok := ms.files[sessionID+"/"+fileID]
	return b, ok
}

func (ms *MemorySink) Len() int {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	return len(ms.files)
}

type memFile struct {
	sink *MemorySink
	key  string
	buf  bytes.Buffer
}

func (mf *memFile) Write(p []byte) (int, error) {
	return mf.buf.Write(p)
}

func (mf *memFile) Commit() error {
	mf.sink.mu.Lock()
	defer mf.sink.mu.Unlock()

	mf.sink.files[mf.key] = mf.buf.Bytes()
	return nil
}

func (mf *memFile) Abort() error {
	mf.buf.Reset()
	return nil
}

// FileSource serves a file from disk.
type FileSource string

func (fs FileSource) Open() (io.ReadCloser, error) {
	return os.Open(string(fs))
}

// BytesSource serves in-memory content.
type BytesSource []byte

func (bs BytesSource) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(bs)), nil
}
