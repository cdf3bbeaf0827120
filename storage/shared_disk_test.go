package storage_test

import (
	"errors"
	"io"
	"os"
	"strings"
	"testing"

	"apidocbench/storage"
)

func TestReadWriteAppend(t *testing.T) {
	store := storage.NewSharedDisk(t.TempDir())

	if err := store.Write("runs/abc/notes.txt", strings.NewReader("hello")); err != nil {
		t.Fatal(err)
	}
	if err := store.Append("runs/abc/notes.txt", strings.NewReader(" world")); err != nil {
		t.Fatal(err)
	}

	file, err := store.Read("runs/abc/notes.txt")
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "hello world" {
		t.Fatalf("unexpected contents: %q", string(data))
	}

	size, err := store.Size("runs/abc/notes.txt")
	if err != nil {
		t.Fatal(err)
	}
	if size != int64(len("hello world")) {
		t.Fatalf("unexpected size: %d", size)
	}
}

func TestExistsListDelete(t *testing.T) {
	store := storage.NewSharedDisk(t.TempDir())

	exists, err := store.Exists("datasets/test.jsonl")
	if err != nil {
		t.Fatal(err)
	}
	if exists {
		t.Fatal("file should not exist yet")
	}

	if err := store.Write("datasets/test.jsonl", strings.NewReader("{}")); err != nil {
		t.Fatal(err)
	}
	if err := store.Write("datasets/train.jsonl", strings.NewReader("{}")); err != nil {
		t.Fatal(err)
	}

	entries, err := store.List("datasets")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %v", entries)
	}

	if err := store.Delete("datasets/test.jsonl"); err != nil {
		t.Fatal(err)
	}

	exists, err = store.Exists("datasets/test.jsonl")
	if err != nil {
		t.Fatal(err)
	}
	if exists {
		t.Fatal("file should be deleted")
	}
}

func TestWriteTruncates(t *testing.T) {
	store := storage.NewSharedDisk(t.TempDir())

	if err := store.Write("runs/abc/config.json", strings.NewReader("first version")); err != nil {
		t.Fatal(err)
	}
	if err := store.Write("runs/abc/config.json", strings.NewReader("second")); err != nil {
		t.Fatal(err)
	}

	file, err := store.Read("runs/abc/config.json")
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "second" {
		t.Fatalf("unexpected contents: %q", string(data))
	}
}

func TestListSorted(t *testing.T) {
	store := storage.NewSharedDisk(t.TempDir())

	for _, name := range []string{"val.jsonl", "test.jsonl", "train.jsonl"} {
		if err := store.Write("datasets/"+name, strings.NewReader("{}")); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := store.List("datasets")
	if err != nil {
		t.Fatal(err)
	}
	expected := []string{"test.jsonl", "train.jsonl", "val.jsonl"}
	if len(entries) != len(expected) {
		t.Fatalf("expected %v, got %v", expected, entries)
	}
	for i := range expected {
		if entries[i] != expected[i] {
			t.Fatalf("expected %v, got %v", expected, entries)
		}
	}
}

func TestErrorsWrapCause(t *testing.T) {
	store := storage.NewSharedDisk(t.TempDir())

	_, err := store.Read("runs/missing/generations.jsonl")
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected wrapped not-exist error, got %v", err)
	}

	_, err = store.Size("runs/missing/generations.jsonl")
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected wrapped not-exist error, got %v", err)
	}
}

func TestUsage(t *testing.T) {
	store := storage.NewSharedDisk(t.TempDir())

	usage, err := store.Usage()
	if err != nil {
		t.Fatal(err)
	}
	if usage.TotalBytes == 0 {
		t.Fatal("expected nonzero total bytes")
	}
	if usage.FreeBytes > usage.TotalBytes {
		t.Fatalf("free bytes %d exceeds total %d", usage.FreeBytes, usage.TotalBytes)
	}
}
