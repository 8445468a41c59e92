package artifact

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pavelanni/traderpath/internal/model"
)

// LocalStore keeps artifacts under a directory on disk.
type LocalStore struct {
	root string
}

// NewLocalStore creates root if needed.
func NewLocalStore(root string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create upload dir %s: %w", root, err)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	return &LocalStore{root: abs}, nil
}

func (l *LocalStore) Put(_ context.Context, owner int64, name, contentType string, size int64, r io.Reader) (model.ArtifactRef, error) {
	key := NewKey(owner, name)
	dst := filepath.Join(l.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return model.ArtifactRef{}, fmt.Errorf("create artifact dir: %w", err)
	}
	f, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return model.ArtifactRef{}, fmt.Errorf("create artifact: %w", err)
	}
	// Read at most one byte past size so a lying client is caught.
	n, err := io.Copy(f, io.LimitReader(r, size+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && n != size {
		err = fmt.Errorf("artifact is %d bytes, declared %d", n, size)
	}
	if err != nil {
		_ = os.Remove(dst)
		return model.ArtifactRef{}, fmt.Errorf("write artifact %s: %w", key, err)
	}
	return model.ArtifactRef{
		Key:         key,
		Name:        cleanName(name),
		Size:        size,
		ContentType: contentType,
		Location:    "file://" + filepath.ToSlash(dst),
	}, nil
}

func (l *LocalStore) Delete(_ context.Context, key string) error {
	err := os.Remove(filepath.Join(l.root, filepath.FromSlash(key)))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
