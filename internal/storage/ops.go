package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cesargomez89/artshelf/internal/constants"
)

func Sanitize(s string) string {
	mapped := strings.Map(func(r rune) rune {
		if strings.ContainsRune("<>:\"/\\|?*", r) {
			return -1
		}
		return r
	}, s)

	return strings.TrimRight(mapped, ". ")
}

func EnsureDir(path string) error {
	return os.MkdirAll(path, constants.DirPermissions)
}

// MoveFile renames src to dst, falling back to copy and delete when the two
// live on different filesystems.
func MoveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	if err := copyFile(src, dst); err != nil {
		return fmt.Errorf("failed to move %s to %s: %w", src, dst, err)
	}
	return os.Remove(src)
}

func copyFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp := dst + ".tmp"
	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, constants.FilePermissions)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp)
		}
	}()

	if _, err = io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	if err = out.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, dst)
}

func RemoveFile(path string) error {
	return os.Remove(path)
}

func Exists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

func IsNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}

// Thumbnails manages the content-addressed thumbnail directory. Files live at
// <root>/<hash[:2]>/<hash>.png.
type Thumbnails struct {
	root string
}

func NewThumbnails(root string) *Thumbnails {
	return &Thumbnails{root: root}
}

func (t *Thumbnails) Root() string {
	return t.root
}

// Path returns where the thumbnail for hash belongs.
func (t *Thumbnails) Path(hash string) (string, error) {
	clean := Sanitize(strings.TrimSpace(hash))
	if len(clean) < 2 || strings.HasPrefix(clean, ".") || clean != strings.TrimSpace(hash) {
		return "", fmt.Errorf("invalid content hash %q", hash)
	}
	return filepath.Join(t.root, clean[:2], clean+constants.ExtPNG), nil
}

// Relocate moves an extracted thumbnail into managed storage and returns its
// new path. When a thumbnail for the same content already exists, src is
// discarded and the existing file is kept.
func (t *Thumbnails) Relocate(src, hash string) (string, error) {
	dst, err := t.Path(hash)
	if err != nil {
		return "", err
	}
	if filepath.Clean(src) == dst {
		return dst, nil
	}

	if Exists(dst) {
		if err := RemoveFile(src); err != nil && !IsNotExist(err) {
			return "", fmt.Errorf("discard duplicate thumbnail: %w", err)
		}
		return dst, nil
	}

	if err := EnsureDir(filepath.Dir(dst)); err != nil {
		return "", fmt.Errorf("create thumbnail dir: %w", err)
	}
	if err := MoveFile(src, dst); err != nil {
		return "", err
	}
	return dst, nil
}
