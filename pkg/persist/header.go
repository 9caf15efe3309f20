package persist

import "encoding/binary"

// headerMagic is the persistent on-disk tree header's magic number, as
// specified for the record-number backing format.
const headerMagic = uint32(0x9a91bcd0)

// headerFormatVersion is the only on-disk header version this package
// writes or accepts.
const headerFormatVersion = uint32(1)

// headerRecno is the reserved record number of the header record. It can
// never be a valid node's parent, which is what lets free records reuse the
// parent field as a "this record is free" marker.
const headerRecno = uint32(1)

// headerSize is the header record's fixed encoded length: eight u32 fields.
const headerSize = 8 * 4

// header is the persistent tree's control block: magic, version, order,
// element size, option flags, and the three pieces of mutable bookkeeping
// (root, free-list head, highest-allocated record number) that must survive
// a Reload.
type header struct {
	Magic        uint32
	Version      uint32
	Order        uint32
	ElementSize  uint32
	Options      uint32
	Root         uint32
	FreeListHead uint32
	MaxRecno     uint32
}

func (h *header) encode() []byte {
	b := make([]byte, headerSize)
	binary.LittleEndian.PutUint32(b[0:4], h.Magic)
	binary.LittleEndian.PutUint32(b[4:8], h.Version)
	binary.LittleEndian.PutUint32(b[8:12], h.Order)
	binary.LittleEndian.PutUint32(b[12:16], h.ElementSize)
	binary.LittleEndian.PutUint32(b[16:20], h.Options)
	binary.LittleEndian.PutUint32(b[20:24], h.Root)
	binary.LittleEndian.PutUint32(b[24:28], h.FreeListHead)
	binary.LittleEndian.PutUint32(b[28:32], h.MaxRecno)
	return b
}

func decodeHeader(b []byte) header {
	return header{
		Magic:        binary.LittleEndian.Uint32(b[0:4]),
		Version:      binary.LittleEndian.Uint32(b[4:8]),
		Order:        binary.LittleEndian.Uint32(b[8:12]),
		ElementSize:  binary.LittleEndian.Uint32(b[12:16]),
		Options:      binary.LittleEndian.Uint32(b[16:20]),
		Root:         binary.LittleEndian.Uint32(b[20:24]),
		FreeListHead: binary.LittleEndian.Uint32(b[24:28]),
		MaxRecno:     binary.LittleEndian.Uint32(b[28:32]),
	}
}
