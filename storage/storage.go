package storage

import "io"

type UsageStats struct {
	TotalBytes uint64
	FreeBytes  uint64
}

// Storage is the artifact store shared by all pipeline stages. Datasets,
// checkpoints, adapters, generations, and reports are all written through
// this interface so that stages only communicate through files.
type Storage interface {
	Read(path string) (io.ReadCloser, error)

	Write(path string, data io.Reader) error

	Append(path string, data io.Reader) error

	Delete(path string) error

	List(path string) ([]string, error)

	Exists(path string) (bool, error)

	Size(path string) (int64, error)

	Usage() (UsageStats, error)

	Location() string
}
