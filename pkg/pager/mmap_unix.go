//go:build unix || darwin || linux || freebsd || openbsd || netbsd

// pkg/pager/mmap_unix.go
package pager

import (
	"errors"
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

// OpenRecordMapping opens (creating if necessary) path and maps it into
// memory for filestore's record slab. If initialSize is larger than the
// file's current size, the file is truncated up to it before mapping —
// filestore uses this to reserve room for the header plus a handful of
// record slots on first create.
func OpenRecordMapping(path string, initialSize int64) (*RecordMapping, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, err
	}

	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	size := stat.Size()
	if initialSize > size {
		if err := f.Truncate(initialSize); err != nil {
			f.Close()
			return nil, err
		}
		size = initialSize
	}

	if size == 0 {
		f.Close()
		return nil, errors.New("pager: cannot map an empty record file")
	}

	data, err := syscall.Mmap(int(f.Fd()), 0, int(size),
		syscall.PROT_READ|syscall.PROT_WRITE, syscall.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, err
	}

	return &RecordMapping{
		file: f,
		data: data,
		size: size,
	}, nil
}

// Sync flushes the record slab's dirty pages to disk.
func (m *RecordMapping) Sync() error {
	return unix.Msync(m.data, unix.MS_SYNC)
}

// Grow extends the mapping to newSize, used when filestore's free list is
// empty and it must append beyond the currently reserved record capacity.
func (m *RecordMapping) Grow(newSize int64) error {
	if newSize <= m.size {
		return nil
	}

	// MAP_SHARED writes land in the kernel page cache, not necessarily on
	// disk yet; sync before unmapping so a grow never loses pending writes.
	if err := unix.Msync(m.data, unix.MS_SYNC); err != nil {
		return err
	}

	if err := syscall.Munmap(m.data); err != nil {
		return err
	}

	f := m.file.(*os.File)

	if err := f.Truncate(newSize); err != nil {
		return err
	}

	data, err := syscall.Mmap(int(f.Fd()), 0, int(newSize),
		syscall.PROT_READ|syscall.PROT_WRITE, syscall.MAP_SHARED)
	if err != nil {
		return err
	}

	m.data = data
	m.size = newSize
	return nil
}

// Close unmaps the record slab and closes the underlying file.
func (m *RecordMapping) Close() error {
	var firstErr error

	if m.data != nil {
		if err := syscall.Munmap(m.data); err != nil && firstErr == nil {
			firstErr = err
		}
		m.data = nil
	}

	if m.file != nil {
		f := m.file.(*os.File)
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		m.file = nil
	}

	return firstErr
}
