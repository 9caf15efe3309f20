// Package filestore is the on-disk recordstore.Store, a fixed-size-record
// slab file accessed through golang.org/x/sys-backed mmap (pkg/pager's
// OpenRecordMapping/RecordMapping, adapted here from page-oriented storage
// to flat fixed-size records addressed by record number instead of page
// number). A tiny header at offset 0 tracks the record size, the next
// unused record number, and a singly-linked free list threaded through
// freed records' first 4 bytes — the same trunk-style free list idea the
// teacher's page-oriented freelist used, shrunk to fit inline since records
// here are much smaller than a page and don't warrant a separate trunk-page
// format.
package filestore

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/libbtreego/libbtree/pkg/pager"
	"github.com/libbtreego/libbtree/pkg/recordstore"
)

const (
	headerSize    = 32
	headerMagic   = uint32(0xf17e5704)
	growIncrement = 256 // records to grow by when the file is full
)

// Store is an mmap-backed recordstore.Store. Record 0 is reserved (used as
// the free-list's nil terminator); real record numbers start at 1.
type Store struct {
	mm         *pager.RecordMapping
	recordSize int
	slotSize   int64 // recordSize + nothing; records are stored back-to-back after the header
	capacity   int64 // number of record slots currently backed by the file
	nextRecno  uint32
	freeHead   uint32
}

// Open creates (if needed) and memory-maps path as a fixed-size-record
// store. recordSize is only consulted when creating a new file; an
// existing file's header recordSize must match.
func Open(path string, recordSize int) (*Store, error) {
	info, statErr := os.Stat(path)
	fresh := statErr != nil || info.Size() == 0

	initial := int64(headerSize + recordSize*16)
	mm, err := pager.OpenRecordMapping(path, initial)
	if err != nil {
		return nil, fmt.Errorf("filestore: open %s: %w", path, err)
	}

	s := &Store{mm: mm, recordSize: recordSize, slotSize: int64(recordSize)}
	if fresh {
		s.nextRecno = 1
		s.freeHead = 0
		s.capacity = (mm.Size() - headerSize) / s.slotSize
		s.writeHeader()
	} else {
		if err := s.readHeader(); err != nil {
			mm.Close()
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) writeHeader() {
	b := s.mm.Slice(0, headerSize)
	binary.BigEndian.PutUint32(b[0:4], headerMagic)
	binary.BigEndian.PutUint32(b[4:8], uint32(s.recordSize))
	binary.BigEndian.PutUint32(b[8:12], s.nextRecno)
	binary.BigEndian.PutUint32(b[12:16], s.freeHead)
}

func (s *Store) readHeader() error {
	b := s.mm.Slice(0, headerSize)
	if b == nil || binary.BigEndian.Uint32(b[0:4]) != headerMagic {
		return fmt.Errorf("filestore: not a valid record file")
	}
	recordSize := int(binary.BigEndian.Uint32(b[4:8]))
	if recordSize != s.recordSize {
		return fmt.Errorf("filestore: record size mismatch: file has %d, opened with %d", recordSize, s.recordSize)
	}
	s.nextRecno = binary.BigEndian.Uint32(b[8:12])
	s.freeHead = binary.BigEndian.Uint32(b[12:16])
	s.capacity = (s.mm.Size() - headerSize) / s.slotSize
	return nil
}

func (s *Store) offset(recno uint32) int64 {
	return headerSize + int64(recno-1)*s.slotSize
}

func (s *Store) RecordSize() int { return s.recordSize }

func (s *Store) ensureCapacity(recno uint32) error {
	if int64(recno) <= s.capacity {
		return nil
	}
	newCap := s.capacity + growIncrement
	if int64(recno) > newCap {
		newCap = int64(recno)
	}
	newSize := headerSize + newCap*s.slotSize
	if err := s.mm.Grow(newSize); err != nil {
		return fmt.Errorf("filestore: grow: %w", err)
	}
	s.capacity = newCap
	return nil
}

// Get, Put and Del check only that recno lies within the file's current
// record capacity: a slot that was never appended or has been deleted is
// read or overwritten as is, without ErrNoSuchRecord.
func (s *Store) Get(recno uint32) ([]byte, error) {
	if recno == 0 || int64(recno) > s.capacity {
		return nil, fmt.Errorf("%w: %d", recordstore.ErrNoSuchRecord, recno)
	}
	b := s.mm.Slice(s.offset(recno), int64(s.recordSize))
	if b == nil {
		return nil, fmt.Errorf("%w: %d", recordstore.ErrNoSuchRecord, recno)
	}
	out := make([]byte, s.recordSize)
	copy(out, b)
	return out, nil
}

func (s *Store) Put(recno uint32, data []byte) error {
	if len(data) != s.recordSize {
		return fmt.Errorf("filestore: record size mismatch: got %d want %d", len(data), s.recordSize)
	}
	if recno == 0 || int64(recno) > s.capacity {
		return fmt.Errorf("%w: %d", recordstore.ErrNoSuchRecord, recno)
	}
	b := s.mm.Slice(s.offset(recno), int64(s.recordSize))
	if b == nil {
		return fmt.Errorf("%w: %d", recordstore.ErrNoSuchRecord, recno)
	}
	copy(b, data)
	return nil
}

func (s *Store) Append(data []byte) (uint32, error) {
	if len(data) != s.recordSize {
		return 0, fmt.Errorf("filestore: record size mismatch: got %d want %d", len(data), s.recordSize)
	}
	var recno uint32
	if s.freeHead != 0 {
		recno = s.freeHead
		link := s.mm.Slice(s.offset(recno), 4)
		s.freeHead = binary.BigEndian.Uint32(link)
	} else {
		recno = s.nextRecno
		s.nextRecno++
		if err := s.ensureCapacity(recno); err != nil {
			return 0, err
		}
	}
	b := s.mm.Slice(s.offset(recno), int64(s.recordSize))
	copy(b, data)
	s.writeHeader()
	return recno, nil
}

func (s *Store) Del(recno uint32) error {
	if recno == 0 || int64(recno) > s.capacity {
		return fmt.Errorf("%w: %d", recordstore.ErrNoSuchRecord, recno)
	}
	b := s.mm.Slice(s.offset(recno), int64(s.recordSize))
	if s.recordSize < 4 {
		return fmt.Errorf("filestore: record size %d too small to thread into free list", s.recordSize)
	}
	binary.BigEndian.PutUint32(b[0:4], s.freeHead)
	s.freeHead = recno
	s.writeHeader()
	return nil
}

func (s *Store) Sync() error {
	return s.mm.Sync()
}

// Close unmaps and closes the underlying file.
func (s *Store) Close() error {
	return s.mm.Close()
}
