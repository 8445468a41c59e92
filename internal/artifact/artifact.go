// Package artifact stores files attached to assignment submissions. The
// database only keeps the returned model.ArtifactRef.
package artifact

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/pavelanni/traderpath/internal/model"
)

// Store puts and removes artifact bytes.
type Store interface {
	Put(ctx context.Context, owner int64, name, contentType string, size int64, r io.Reader) (model.ArtifactRef, error)
	Delete(ctx context.Context, key string) error
}

// NewKey returns a fresh object key under the owner's prefix. Only the
// extension of the client-supplied name is kept.
func NewKey(owner int64, name string) string {
	ext := strings.ToLower(path.Ext(path.Base(strings.ReplaceAll(name, "\\", "/"))))
	if len(ext) > 10 || strings.ContainsAny(ext, " /") {
		ext = ""
	}
	return fmt.Sprintf("assignments/%d/%s%s", owner, uuid.NewString(), ext)
}

// cleanName strips any directory part from a client-supplied file name.
func cleanName(name string) string {
	return path.Base(strings.ReplaceAll(name, "\\", "/"))
}
