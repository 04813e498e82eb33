// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zipshape

import (
	"io"
)

// Compression methods. Anything other than these two is decoded and
// re-encoded opaquely; actually compressing or decompressing payloads beyond
// locating the end of a Deflate stream is out of scope (see inflateskip.go).
const (
	MethodStore   uint16 = 0
	MethodDeflate uint16 = 8
)

// Wire signatures and fixed-width record lengths, carried over from the
// teacher's struct.go constants and extended with the Zip64 lengths the
// teacher only used internally in writer.go.
const (
	sigLocalHeader      = 0x04034b50
	sigCentralEntry     = 0x02014b50
	sigEndRecord        = 0x06054b50
	sigZip64EndLocator  = 0x07064b50
	sigZip64EndRecord   = 0x06064b50
	sigDataDescriptor   = 0x08074b50

	localHeaderLen      = 30 // + name + extras
	centralEntryLen     = 46 // + name + extras + comment
	endRecordLen        = 22 // + comment
	zip64EndLocatorLen  = 20
	zip64EndRecordLen   = 56 // + extras
	dataDescriptorLen   = 16 // signed, 32-bit sizes: sig + crc32 + csize + size
	dataDescriptor64Len = 24 // signed, 64-bit sizes

	versionDefault = 20 // 2.0
	versionZip64   = 45 // 4.5: reads and writes Zip64 extensions

	sentinel16 = uint16(0xFFFF)
	sentinel32 = uint32(0xFFFFFFFF)
)

// Record is the closed set of typed structural elements a decoded archive is
// made of. isRecord seals the set: every switch over a Record the encoder
// performs should be exhaustive over exactly these eight types.
type Record interface {
	// WireSize is the exact number of bytes this record occupies on the
	// wire once encoded.
	WireSize() int64
	isRecord()
}

// LocalHeader is the per-entry record that precedes an entry's FileData.
type LocalHeader struct {
	ExtractVersion   uint16
	Flags            uint16
	Method           uint16
	ModTime          uint16
	ModDate          uint16
	CRC32            uint32
	CompressedSize   uint32 // sentinel32 if the real value lives in a Zip64Ext
	UncompressedSize uint32
	Name             string
	Extras           []ExtraField
}

func (LocalHeader) isRecord() {}

func (h LocalHeader) WireSize() int64 {
	return int64(localHeaderLen + len(h.Name) + extrasEncodedLen(h.Extras))
}

// isZip64 reports whether this header defers its sizes to a Zip64Ext.
func (h LocalHeader) isZip64() bool {
	return h.CompressedSize == sentinel32 || h.UncompressedSize == sentinel32
}

// RealCompressedSize resolves the logical compressed size, following the
// sentinel into the Zip64Ext extra when present, per §9 "Sentinels and
// Zip64 presence": readers must check the sentinel and fall back to the
// extras rather than trust the legacy field blindly.
func (h LocalHeader) RealCompressedSize() uint64 {
	if h.CompressedSize == sentinel32 {
		if z, ok := h.Zip64Extra(); ok && z.CompressedSize != nil {
			return *z.CompressedSize
		}
	}
	return uint64(h.CompressedSize)
}

func (h LocalHeader) RealUncompressedSize() uint64 {
	if h.UncompressedSize == sentinel32 {
		if z, ok := h.Zip64Extra(); ok && z.UncompressedSize != nil {
			return *z.UncompressedSize
		}
	}
	return uint64(h.UncompressedSize)
}

// Zip64Extra looks up the Zip64Ext among this header's extras, the typed
// lookup-by-variant the external interface requires alongside plain field
// access.
func (h LocalHeader) Zip64Extra() (Zip64Ext, bool) {
	return findZip64Ext(h.Extras)
}

// WithExtra returns a copy of h with e appended to (or, if an extra with the
// same ID is already present, replacing it within) Extras. This is the
// "extras updater" the external interface names; per-field updates are done
// by copying the value and assigning the exported field directly, which is
// the pattern every header struct in the reference corpus (FileHeader,
// zipCentralDir, FileHeader in apk-editor) already uses instead of bespoke
// wither methods.
func (h LocalHeader) WithExtra(e ExtraField) LocalHeader {
	h.Extras = withExtra(h.Extras, e)
	return h
}

// ToZip64 upgrades h to defer its sizes to a Zip64Ext, per §4.1: bump the
// extract version, sentinel both size fields, and replace any pre-existing
// Zip64Ext with one carrying the real values.
func (h LocalHeader) ToZip64() LocalHeader {
	usize, csize := h.RealUncompressedSize(), h.RealCompressedSize()
	h.ExtractVersion = versionZip64
	h.CompressedSize = sentinel32
	h.UncompressedSize = sentinel32
	h.Extras = withExtra(dropZip64Ext(h.Extras), Zip64Ext{
		UncompressedSize: &usize,
		CompressedSize:   &csize,
	})
	return h
}

// FileData is a lazy handle to one entry's (possibly compressed) payload
// bytes. It never owns more than one of: a borrowed range into a Source, an
// in-memory buffer, or a writer closure — exactly the three representations
// §9 "Lazy borrowed payloads" calls out for languages without borrow-checked
// lifetimes.
type FileData struct {
	source   Source
	offset   int64
	length   int64
	buffer   []byte
	writerFn func(w io.Writer) error
}

func (FileData) isRecord() {}

func (f FileData) WireSize() int64 { return f.length }

// Length is the compressed length of the payload, i.e. the number of bytes
// this record occupies on the wire.
func (f FileData) Length() int64 { return f.length }

// NewFileDataFromSource builds a FileData that borrows [offset, offset+length)
// from src without copying it. src must outlive any Encoder this FileData is
// passed to.
func NewFileDataFromSource(src Source, offset, length int64) FileData {
	return FileData{source: src, offset: offset, length: length}
}

// NewFileDataFromBytes builds a FileData that owns an in-memory buffer.
func NewFileDataFromBytes(data []byte) FileData {
	return FileData{buffer: data, length: int64(len(data))}
}

// NewFileDataFromWriter builds a FileData whose contents are produced by fn
// when the encoder reaches this record. length must equal the number of
// bytes fn writes.
func NewFileDataFromWriter(length int64, fn func(w io.Writer) error) FileData {
	return FileData{length: length, writerFn: fn}
}

// DataDescriptor optionally follows FileData when LocalHeader.Flags bit 3 is
// set, carrying the crc32 and sizes that were not known when the local
// header was written.
type DataDescriptor struct {
	Signed           bool
	Zip64            bool
	CRC32            uint32
	CompressedSize   uint64
	UncompressedSize uint64
}

func (DataDescriptor) isRecord() {}

func (d DataDescriptor) WireSize() int64 {
	n := 4 // crc32
	if d.Signed {
		n += 4
	}
	if d.Zip64 {
		n += 16 // two 8-byte sizes
	} else {
		n += 8 // two 4-byte sizes
	}
	return int64(n)
}

// ToZip64 marks the descriptor to serialize its csize/size fields as 8 bytes
// each, per §4.1.
func (d DataDescriptor) ToZip64() DataDescriptor {
	d.Zip64 = true
	return d
}

// CentralEntry is the per-entry record in the central directory.
type CentralEntry struct {
	MadeByVersion     uint16
	ExtractVersion    uint16
	Flags             uint16
	Method            uint16
	ModTime           uint16
	ModDate           uint16
	CRC32             uint32
	CompressedSize    uint32 // sentinel32 if real value lives in a Zip64Ext
	UncompressedSize  uint32 // sentinel32 if real value lives in a Zip64Ext
	DiskStart         uint16 // sentinel16 if real value lives in a Zip64Ext
	InternalAttrs     uint16
	ExternalAttrs     uint32
	LocalHeaderOffset uint32 // sentinel32 if real value lives in a Zip64Ext
	Name              string
	Extras            []ExtraField
	Comment           string
}

func (CentralEntry) isRecord() {}

func (c CentralEntry) WireSize() int64 {
	return int64(centralEntryLen + len(c.Name) + extrasEncodedLen(c.Extras) + len(c.Comment))
}

func (c CentralEntry) isZip64() bool {
	return c.CompressedSize == sentinel32 || c.UncompressedSize == sentinel32 ||
		c.LocalHeaderOffset == sentinel32 || c.DiskStart == sentinel16
}

func (c CentralEntry) Zip64Extra() (Zip64Ext, bool) {
	return findZip64Ext(c.Extras)
}

func (c CentralEntry) WithExtra(e ExtraField) CentralEntry {
	c.Extras = withExtra(c.Extras, e)
	return c
}

// ToZip64 upgrades c the way LocalHeader.ToZip64 does, additionally
// deferring the local-header offset and disk-start fields, per §4.1.
func (c CentralEntry) ToZip64() CentralEntry {
	usize := c.realUncompressedSize()
	csize := c.realCompressedSize()
	offset := c.realLocalHeaderOffset()
	disk := uint32(c.realDiskStart())
	c.ExtractVersion = versionZip64
	c.CompressedSize = sentinel32
	c.UncompressedSize = sentinel32
	c.LocalHeaderOffset = sentinel32
	c.DiskStart = sentinel16
	c.Extras = withExtra(dropZip64Ext(c.Extras), Zip64Ext{
		UncompressedSize:  &usize,
		CompressedSize:    &csize,
		LocalHeaderOffset: &offset,
		DiskStart:         &disk,
	})
	return c
}

func (c CentralEntry) realUncompressedSize() uint64 {
	if c.UncompressedSize == sentinel32 {
		if z, ok := c.Zip64Extra(); ok && z.UncompressedSize != nil {
			return *z.UncompressedSize
		}
	}
	return uint64(c.UncompressedSize)
}

func (c CentralEntry) realCompressedSize() uint64 {
	if c.CompressedSize == sentinel32 {
		if z, ok := c.Zip64Extra(); ok && z.CompressedSize != nil {
			return *z.CompressedSize
		}
	}
	return uint64(c.CompressedSize)
}

func (c CentralEntry) realLocalHeaderOffset() uint64 {
	if c.LocalHeaderOffset == sentinel32 {
		if z, ok := c.Zip64Extra(); ok && z.LocalHeaderOffset != nil {
			return *z.LocalHeaderOffset
		}
	}
	return uint64(c.LocalHeaderOffset)
}

func (c CentralEntry) realDiskStart() uint64 {
	if c.DiskStart == sentinel16 {
		if z, ok := c.Zip64Extra(); ok && z.DiskStart != nil {
			return uint64(*z.DiskStart)
		}
	}
	return uint64(c.DiskStart)
}

// Zip64EndRecord is the Zip64 end-of-central-directory record.
type Zip64EndRecord struct {
	VersionMadeBy   uint16
	VersionNeeded   uint16
	ThisDisk        uint32
	StartDisk       uint32
	EntriesThisDisk uint64
	EntriesTotal    uint64
	CDSize          uint64
	CDOffset        uint64
	Extras          []ExtraField
}

func (Zip64EndRecord) isRecord() {}

func (z Zip64EndRecord) WireSize() int64 {
	return int64(zip64EndRecordLen + extrasEncodedLen(z.Extras))
}

// Zip64EndLocator points at the Zip64EndRecord from the legacy EndRecord.
type Zip64EndLocator struct {
	EndRecordDisk   uint32
	EndRecordOffset uint64
	TotalDisks      uint32
}

func (Zip64EndLocator) isRecord() {}

func (Zip64EndLocator) WireSize() int64 { return zip64EndLocatorLen }

// EndRecord is the trailing record summarizing the central directory.
type EndRecord struct {
	ThisDisk        uint16
	StartDisk       uint16
	EntriesThisDisk uint16
	EntriesTotal    uint16
	CDSize          uint32
	CDOffset        uint32
	Comment         string
}

func (EndRecord) isRecord() {}

func (e EndRecord) WireSize() int64 { return int64(endRecordLen + len(e.Comment)) }

// isZip64Marked reports whether the four cross-reference fields already
// carry their sentinels, as ToZip64 leaves them — the cue the re-derivation
// pass uses to know a real Zip64EndRecord/Locator pair precedes this record
// and its own sentinels should be left alone (§4.4 rule 7).
func (e EndRecord) isZip64Marked() bool {
	return e.EntriesThisDisk == sentinel16 && e.EntriesTotal == sentinel16 &&
		e.CDSize == sentinel32 && e.CDOffset == sentinel32
}

// ToZip64 sentinels the four cross-reference fields; the caller is
// responsible for also emitting a Zip64EndRecord/Zip64EndLocator pair ahead
// of this record (see ToZip64 in transform.go, which does both).
func (e EndRecord) ToZip64() EndRecord {
	e.EntriesThisDisk = sentinel16
	e.EntriesTotal = sentinel16
	e.CDSize = sentinel32
	e.CDOffset = sentinel32
	return e
}

// Hole is a synthetic record with no structural meaning: it emits ByteCount
// zero bytes. The decoder never produces one; it exists for callers building
// sparse archives to probe size-boundary behavior (§8 scenario vi).
type Hole struct {
	ByteCount uint64
}

func (Hole) isRecord() {}

func (h Hole) WireSize() int64 { return int64(h.ByteCount) }
