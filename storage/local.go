package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	apperrors "github.com/deepzoom/iiifd/apperrors"
)

// Local serves images from a filesystem directory tree. Identifiers are
// joined onto the root after path-cleaning to prevent traversal outside
// it (adapted from the teacher's adapters/storage.Local.absPath, which
// trusted the caller; here the identifier arrives from an untrusted URL).
type Local struct {
	rootDir string
}

// NewLocal creates a Local adapter rooted at dir. dir must already exist.
func NewLocal(dir string) (*Local, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("local storage: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("local storage: %s is not a directory", dir)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("local storage: %w", err)
	}
	return &Local{rootDir: abs}, nil
}

func (l *Local) resolve(identifier string) (string, error) {
	cleaned := filepath.Clean("/" + identifier) // leading slash forces Clean to collapse ".."
	path := filepath.Join(l.rootDir, cleaned)
	if !strings.HasPrefix(path, l.rootDir+string(filepath.Separator)) && path != l.rootDir {
		return "", apperrors.New(apperrors.CategoryAccessDenied, "local.resolve", apperrors.ErrAccessDenied)
	}
	return path, nil
}

func (l *Local) Open(ctx context.Context, identifier string) (*Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryStorage, "local.open", err)
	}
	path, err := l.resolve(identifier)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, notFound("local.open")
		}
		return nil, apperrors.Wrap(apperrors.CategoryStorage, "local.open", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, apperrors.Wrap(apperrors.CategoryStorage, "local.open.stat", err)
	}
	return &Object{
		Name:         identifier,
		Size:         info.Size(),
		LastModified: info.ModTime(),
		Content:      f,
	}, nil
}

func (l *Local) Stat(ctx context.Context, identifier string) (*Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryStorage, "local.stat", err)
	}
	path, err := l.resolve(identifier)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, notFound("local.stat")
		}
		return nil, apperrors.Wrap(apperrors.CategoryStorage, "local.stat", err)
	}
	return &Object{
		Name:         identifier,
		Size:         info.Size(),
		LastModified: info.ModTime(),
	}, nil
}
