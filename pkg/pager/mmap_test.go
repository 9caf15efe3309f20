// pkg/pager/mmap_test.go
package pager

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRecordMappingCreate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "records.db")

	mm, err := OpenRecordMapping(path, 4096)
	if err != nil {
		t.Fatalf("failed to create record mapping: %v", err)
	}
	defer mm.Close()

	if mm.Size() != 4096 {
		t.Errorf("expected size 4096, got %d", mm.Size())
	}
}

func TestRecordMappingReadWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "records.db")

	mm, err := OpenRecordMapping(path, 4096)
	if err != nil {
		t.Fatalf("failed to create record mapping: %v", err)
	}

	data := mm.Slice(100, 11)
	copy(data, []byte("hello world"))

	if err := mm.Sync(); err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	mm.Close()

	mm2, err := OpenRecordMapping(path, 0) // 0 = use existing size
	if err != nil {
		t.Fatalf("failed to reopen: %v", err)
	}
	defer mm2.Close()

	got := mm2.Slice(100, 11)
	if string(got) != "hello world" {
		t.Errorf("expected 'hello world', got '%s'", string(got))
	}
}

func TestRecordMappingGrow(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "records.db")

	mm, err := OpenRecordMapping(path, 4096)
	if err != nil {
		t.Fatalf("failed to create record mapping: %v", err)
	}
	defer mm.Close()

	copy(mm.Slice(0, 5), []byte("rec01"))

	if err := mm.Grow(8192); err != nil {
		t.Fatalf("grow failed: %v", err)
	}

	if mm.Size() != 8192 {
		t.Errorf("expected size 8192 after grow, got %d", mm.Size())
	}

	if string(mm.Slice(0, 5)) != "rec01" {
		t.Error("data lost after grow")
	}
}

func TestRecordMappingOutOfRangeSliceReturnsNil(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "records.db")

	mm, err := OpenRecordMapping(path, 4096)
	if err != nil {
		t.Fatalf("failed to create record mapping: %v", err)
	}
	defer mm.Close()

	if got := mm.Slice(4000, 200); got != nil {
		t.Errorf("expected nil for an out-of-range slice, got %v", got)
	}
}

func TestRecordMappingExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "records.db")

	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	f.Write([]byte("existing data"))
	f.Close()

	mm, err := OpenRecordMapping(path, 0)
	if err != nil {
		t.Fatalf("failed to open existing file: %v", err)
	}
	defer mm.Close()

	if string(mm.Slice(0, 13)) != "existing data" {
		t.Error("existing data not preserved")
	}
}
