package store

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
)

const backendFile = "file"

// FileStore keeps the document in a single JSON file. Writes overwrite the
// file in place unless atomic is set, in which case a sibling temp file is
// renamed over the target.
type FileStore struct {
	fs     afero.Fs
	path   string
	atomic bool
}

func NewFileStore(fs afero.Fs, path string, atomic bool) *FileStore {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &FileStore{fs: fs, path: path, atomic: atomic}
}

func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Read(ctx context.Context) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, readError(backendFile, err)
	}

	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		return nil, readError(backendFile, err)
	}

	doc, err := Decode(data)
	if err != nil {
		return nil, readError(backendFile, fmt.Errorf("parse %s: %w", s.path, err))
	}
	return doc, nil
}

func (s *FileStore) Write(ctx context.Context, doc *Document) error {
	if err := ctx.Err(); err != nil {
		return writeError(backendFile, err)
	}

	data, err := Encode(doc)
	if err != nil {
		return writeError(backendFile, err)
	}

	if !s.atomic {
		if err := afero.WriteFile(s.fs, s.path, data, 0644); err != nil {
			return writeError(backendFile, err)
		}
		return nil
	}

	if err := s.writeAtomic(data); err != nil {
		return writeError(backendFile, err)
	}
	return nil
}

func (s *FileStore) writeAtomic(data []byte) error {
	tmp, err := afero.TempFile(s.fs, filepath.Dir(s.path), "."+filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		s.fs.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		s.fs.Remove(tmpName)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		s.fs.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := s.fs.Rename(tmpName, s.path); err != nil {
		s.fs.Remove(tmpName)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

func (s *FileStore) Close() error {
	return nil
}
