package send

import (
	"context"
	"io/fs"
	"path/filepath"
	"sort"
	"sync"

	"github.com/0w0mewo/localsend-engine/internal/localsend/session"
	"github.com/0w0mewo/localsend-engine/internal/models"
)

type FileSender interface {
	SetPIN(pin string)
	AddFile(filePath string) error
	AddDir(dirPath string) error
	AddBytes(name string, data []byte)
	Start(ctx context.Context) error
	Cancel() error
}

// baseSender holds the files queued for sending and where their content
// comes from.
type baseSender struct {
	mu      sync.Mutex
	files   models.FileMetas
	sources map[string]session.Source
	pin     string
}

func newBaseSender() baseSender {
	return baseSender{
		files:   make(models.FileMetas),
		sources: make(map[string]session.Source),
	}
}

func (bs *baseSender) SetPIN(pin string) {
	bs.pin = pin
}

func (bs *baseSender) AddFile(filePath string) error {
	fileMeta, err := models.GenFileMeta(filePath)
	if err != nil {
		return err
	}

	bs.add(fileMeta, session.FileSource(filePath))
	return nil
}

func (bs *baseSender) AddDir(dirPath string) error {
	return filepath.WalkDir(dirPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			return nil
		}

		return bs.AddFile(path)
	})
}

// AddBytes queues in-memory content under name.
func (bs *baseSender) AddBytes(name string, data []byte) {
	bs.add(models.GenBytesMeta(name, "", data), session.BytesSource(data))
}

func (bs *baseSender) add(meta models.FileMeta, src session.Source) {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	bs.files[meta.Id] = meta
	bs.sources[meta.Id] = src
}

func (bs *baseSender) reset() {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	clear(bs.files)
	clear(bs.sources)
}

// snapshot returns the queued files, without local paths.
func (bs *baseSender) snapshot() (models.FileMetas, map[string]session.Source) {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	files := make(models.FileMetas, len(bs.files))
	sources := make(map[string]session.Source, len(bs.sources))
	for id, meta := range bs.files {
		meta.FullPath = ""
		files[id] = meta
		sources[id] = bs.sources[id]
	}
	return files, sources
}

func (bs *baseSender) shared() []session.SharedFile {
	files, sources := bs.snapshot()

	res := make([]session.SharedFile, 0, len(files))
	for id, meta := range files {
		res = append(res, session.SharedFile{Meta: meta, Source: sources[id]})
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Meta.Filename < res[j].Meta.Filename })
	return res
}
