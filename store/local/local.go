// Package local implements store.Store on top of a directory. Object keys map to relative
// slash-separated paths below the root.
package local

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/robertof/go-thermo-sync/store"
)

type Store struct {
	root string
}

func New(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, classify(err, "create store root %q", root)
	}

	return &Store{root: root}, nil
}

func classify(err error, format string, args ...any) error {
	class := store.ErrTransient

	switch {
	case errors.Is(err, fs.ErrNotExist):
		class = store.ErrNotFound
	case errors.Is(err, fs.ErrPermission):
		class = store.ErrPermission
	}

	return errors.Wrapf(fmt.Errorf("%w: %v", class, err), format, args...)
}

func (s *Store) path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))

	if key == "" || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("local: invalid key %q: %w", key, store.ErrPermission)
	}

	return filepath.Join(s.root, clean), nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrTransient, err)
	}

	p, err := s.path(key)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(p)
	if err != nil {
		return nil, classify(err, "local: get %q", key)
	}

	return data, nil
}

// Put writes to a temporary file next to the target and renames it over the target, so readers
// observe either the old or the new content.
func (s *Store) Put(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrTransient, err)
	}

	p, err := s.path(key)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return classify(err, "local: put %q", key)
	}

	tmp, err := os.CreateTemp(filepath.Dir(p), ".put-*")
	if err != nil {
		return classify(err, "local: put %q", key)
	}

	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return classify(err, "local: put %q", key)
	}

	if err := tmp.Close(); err != nil {
		return classify(err, "local: put %q", key)
	}

	if err := os.Rename(tmp.Name(), p); err != nil {
		return classify(err, "local: put %q", key)
	}

	return nil
}

func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrTransient, err)
	}

	var keys []string

	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() || strings.HasPrefix(d.Name(), ".put-") {
			return nil
		}

		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}

		if key := filepath.ToSlash(rel); strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}

		return nil
	})

	if err != nil {
		return nil, classify(err, "local: list %q", prefix)
	}

	sort.Strings(keys)

	return keys, nil
}
