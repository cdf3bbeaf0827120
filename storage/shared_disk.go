package storage

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// SharedDisk stores artifacts as plain files under one base directory that
// every pipeline stage (and the external trainer jobs) can see. Paths given
// to the interface are always relative to that base.
type SharedDisk struct {
	base string
}

func NewSharedDisk(base string) Storage {
	slog.Info("using shared disk storage", "base", base)
	return &SharedDisk{base: base}
}

func (s *SharedDisk) resolve(path string) string {
	return filepath.Join(s.base, path)
}

func (s *SharedDisk) Read(path string) (io.ReadCloser, error) {
	file, err := os.Open(s.resolve(path))
	if err != nil {
		return nil, fmt.Errorf("error opening %v for read: %w", path, err)
	}
	return file, nil
}

func (s *SharedDisk) Write(path string, data io.Reader) error {
	return s.writeFile(path, data, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
}

func (s *SharedDisk) Append(path string, data io.Reader) error {
	return s.writeFile(path, data, os.O_WRONLY|os.O_CREATE|os.O_APPEND)
}

func (s *SharedDisk) writeFile(path string, data io.Reader, flags int) error {
	full := s.resolve(path)

	if err := os.MkdirAll(filepath.Dir(full), 0777); err != nil {
		return fmt.Errorf("error creating parent directory for %v: %w", path, err)
	}

	file, err := os.OpenFile(full, flags, 0666)
	if err != nil {
		return fmt.Errorf("error opening %v for write: %w", path, err)
	}

	if _, err := io.Copy(file, data); err != nil {
		file.Close()
		return fmt.Errorf("error writing %v: %w", path, err)
	}

	// A close error on write means data may not have hit the disk, which
	// matters for artifacts other stages will read.
	if err := file.Close(); err != nil {
		return fmt.Errorf("error closing %v after write: %w", path, err)
	}
	return nil
}

func (s *SharedDisk) Delete(path string) error {
	if err := os.RemoveAll(s.resolve(path)); err != nil {
		return fmt.Errorf("error deleting %v: %w", path, err)
	}
	return nil
}

// List returns the entry names directly under path, in lexical order.
func (s *SharedDisk) List(path string) ([]string, error) {
	entries, err := os.ReadDir(s.resolve(path))
	if err != nil {
		return nil, fmt.Errorf("error listing %v: %w", path, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	return names, nil
}

func (s *SharedDisk) Exists(path string) (bool, error) {
	_, err := os.Stat(s.resolve(path))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("error checking %v: %w", path, err)
}

func (s *SharedDisk) Size(path string) (int64, error) {
	info, err := os.Stat(s.resolve(path))
	if err != nil {
		return 0, fmt.Errorf("error getting size of %v: %w", path, err)
	}
	return info.Size(), nil
}

func (s *SharedDisk) Usage() (UsageStats, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(s.base, &stat); err != nil {
		slog.Error("error reading disk usage", "base", s.base, "error", err)
		return UsageStats{}, fmt.Errorf("error reading disk usage for %v: %w", s.base, err)
	}

	return UsageStats{
		TotalBytes: stat.Blocks * uint64(stat.Bsize),
		FreeBytes:  stat.Bfree * uint64(stat.Bsize),
	}, nil
}

func (s *SharedDisk) Location() string {
	return s.base
}
