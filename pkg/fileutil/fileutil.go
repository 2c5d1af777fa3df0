// Package fileutil implements file utilities.
package fileutil

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ErrDirNotExist is returned when a destination directory is missing.
// Helpers in this package never create destination directories.
var ErrDirNotExist = errors.New("directory does not exist")

// Exist returns true if a file or directory exists.
func Exist(name string) bool {
	if name == "" {
		return false
	}
	_, err := os.Stat(name)
	return err == nil
}

// IsDir returns true if name exists and is a directory.
func IsDir(name string) bool {
	if name == "" {
		return false
	}
	fi, err := os.Stat(name)
	return err == nil && fi.IsDir()
}

// Copy copies a file and writes/overwrites to the destination file.
// The parent directory of dst must already exist.
func Copy(src, dst string) error {
	if !IsDir(filepath.Dir(dst)) {
		return fmt.Errorf("copy %q: %w: %q", src, ErrDirNotExist, filepath.Dir(dst))
	}

	r, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open(%q): %w", src, err)
	}
	defer r.Close()

	fi, err := r.Stat()
	if err != nil {
		return fmt.Errorf("stat(%q): %w", src, err)
	}

	f, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, fi.Mode().Perm())
	if err != nil {
		return fmt.Errorf("create(%q): %w", dst, err)
	}
	defer f.Close()

	if _, err = io.Copy(f, r); err != nil {
		return err
	}
	return f.Sync()
}

// CopyInto copies src into dir keeping its base name, and returns the destination path.
func CopyInto(src, dir string) (string, error) {
	dst := filepath.Join(dir, filepath.Base(src))
	if err := Copy(src, dst); err != nil {
		return "", err
	}
	return dst, nil
}

// WriteInto writes data to dir/name, and returns the destination path.
// dir must already exist.
func WriteInto(dir, name string, data []byte) (string, error) {
	if !IsDir(dir) {
		return "", fmt.Errorf("write %q: %w: %q", name, ErrDirNotExist, dir)
	}
	dst := filepath.Join(dir, name)
	if err := os.WriteFile(dst, data, 0644); err != nil {
		return "", fmt.Errorf("write(%q): %w", dst, err)
	}
	return dst, nil
}

// IsDirWriteable checks if dir is writable by writing and removing a file.
// It returns error if dir is NOT writable.
// If the director does not exist, it returns nil.
func IsDirWriteable(dir string) error {
	if !Exist(dir) {
		return nil
	}
	f := filepath.Join(dir, ".touch")
	// grants owner to make/remove files inside the directory
	if err := os.WriteFile(f, []byte(""), 0700); err != nil {
		return err
	}
	return os.Remove(f)
}
