package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/arhipvp/hw05-final/internal/core/domain"
	"github.com/arhipvp/hw05-final/internal/core/ports"
)

// LocalStorage écrit les images sous MEDIA_ROOT, servies ensuite sous /media/.
type LocalStorage struct {
	root string
}

func NewLocalStorage(root string) (*LocalStorage, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create media root: %w", err)
	}
	return &LocalStorage{root: root}, nil
}

var _ ports.MediaStorage = (*LocalStorage)(nil)

var extensions = map[string]string{
	"gif":  ".gif",
	"jpeg": ".jpg",
	"png":  ".png",
}

// Save nomme le fichier par UUID : le nom envoyé par le client n'est jamais utilisé sur disque.
func (s *LocalStorage) Save(_ context.Context, dir string, upload *domain.Upload) (string, error) {
	ext, ok := extensions[upload.Format]
	if !ok {
		return "", fmt.Errorf("unsupported image format %q", upload.Format)
	}

	rel := path.Join(dir, uuid.NewString()+ext)
	full := filepath.Join(s.root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(full, upload.Data, 0o644); err != nil {
		return "", fmt.Errorf("write image: %w", err)
	}
	return rel, nil
}

// Delete est idempotent. Clean depuis "/" empêche de sortir de root.
func (s *LocalStorage) Delete(_ context.Context, rel string) error {
	if rel == "" {
		return nil
	}
	clean := strings.TrimPrefix(path.Clean("/"+rel), "/")
	if clean == "" {
		return fmt.Errorf("invalid media path %q", rel)
	}

	err := os.Remove(filepath.Join(s.root, filepath.FromSlash(clean)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
