package zipshape

import (
	"bytes"
	"fmt"
	"io"
)

// EncodeOptions configures an Encoder. The zero value is the common case:
// offsets are fixed up automatically and no trace is produced. Modeled on
// the teacher's Template/Archive pair of small, exported option structs
// rather than functional options, since nothing here needs the
// extensibility functional options buy.
type EncodeOptions struct {
	// DisableOffsetFixing skips the Rederive pass, encoding records exactly
	// as given. Tests that want to construct an archive with deliberately
	// wrong offsets (§8 scenario v) set this.
	DisableOffsetFixing bool

	// TraceSink, if set, receives a human-readable account of every record
	// as it is written (see trace.go). Not a compatibility contract — its
	// format may change.
	TraceSink io.Writer

	// AssertOffsets makes Encode fail with ErrSinkPosition if the
	// underlying writer's position (tracked by the Encoder itself, since
	// w need not be an io.Seeker) ever disagrees with the running offset
	// computed while writing. Exists for tests that want to catch a bug in
	// Rederive rather than silently emit a malformed archive.
	AssertOffsets bool
}

// Encoder writes a Record sequence to an io.Writer in order, tracking the
// running byte offset the way the teacher's countWriter does in writer.go.
type Encoder struct {
	w      io.Writer
	opts   EncodeOptions
	offset int64
}

// NewEncoder returns an Encoder that writes to w.
func NewEncoder(w io.Writer, opts EncodeOptions) *Encoder {
	return &Encoder{w: w, opts: opts}
}

// Offset is the number of bytes written so far.
func (e *Encoder) Offset() int64 { return e.offset }

func (e *Encoder) write(p []byte) error {
	n, err := e.w.Write(p)
	e.offset += int64(n)
	return err
}

// Encode writes every record in records, in order, to the Encoder's writer.
// Unless opts.DisableOffsetFixing was set, records are first run through
// Rederive so every offset/size/count field is consistent with the bytes
// about to be written.
func (e *Encoder) Encode(records []Record) error {
	if !e.opts.DisableOffsetFixing {
		records = Rederive(records)
	}
	for i, rec := range records {
		before := e.offset
		if e.opts.TraceSink != nil {
			if err := traceRecord(e.opts.TraceSink, rec, before); err != nil {
				return fmt.Errorf("zipshape: tracing record %d: %w", i, err)
			}
		}
		if err := e.encodeOne(rec); err != nil {
			return fmt.Errorf("zipshape: encoding record %d: %w", i, err)
		}
		if e.opts.AssertOffsets && e.offset != before+rec.WireSize() {
			return fmt.Errorf("zipshape: record %d: %w", i, ErrSinkPosition)
		}
	}
	return nil
}

func (e *Encoder) encodeOne(rec Record) error {
	switch r := rec.(type) {
	case LocalHeader:
		return e.writeLocalHeader(r)
	case FileData:
		return e.writeFileData(r)
	case DataDescriptor:
		return e.writeDataDescriptor(r)
	case CentralEntry:
		return e.writeCentralEntry(r)
	case Zip64EndRecord:
		return e.writeZip64EndRecord(r)
	case Zip64EndLocator:
		return e.writeZip64EndLocator(r)
	case EndRecord:
		return e.writeEndRecord(r)
	case Hole:
		return e.writeHole(r)
	default:
		return ErrUnknownRecord
	}
}

func (e *Encoder) writeLocalHeader(h LocalHeader) error {
	extras := encodeExtras(h.Extras)
	buf := make([]byte, localHeaderLen)
	wb := writeBuf(buf)
	b := &wb
	b.uint32(sigLocalHeader)
	b.uint16(h.ExtractVersion)
	b.uint16(h.Flags)
	b.uint16(h.Method)
	b.uint16(h.ModTime)
	b.uint16(h.ModDate)
	b.uint32(h.CRC32)
	b.uint32(h.CompressedSize)
	b.uint32(h.UncompressedSize)
	b.uint16(uint16(len(h.Name)))
	b.uint16(uint16(len(extras)))
	if err := e.write(buf); err != nil {
		return err
	}
	if err := e.write([]byte(h.Name)); err != nil {
		return err
	}
	return e.write(extras)
}

func (e *Encoder) writeFileData(f FileData) error {
	if f.length == 0 {
		return nil
	}
	switch {
	case f.writerFn != nil:
		cw := &countingWriter{w: e.w}
		if err := f.writerFn(cw); err != nil {
			return err
		}
		e.offset += cw.n
		if cw.n != f.length {
			return fmt.Errorf("zipshape: FileData writer wrote %d bytes, want %d", cw.n, f.length)
		}
		return nil
	case f.buffer != nil:
		return e.write(f.buffer)
	default:
		buf := make([]byte, f.length)
		if _, err := f.source.ReadAt(buf, f.offset); err != nil && err != io.EOF {
			return err
		}
		return e.write(buf)
	}
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

func (e *Encoder) writeDataDescriptor(d DataDescriptor) error {
	n := 4 // crc32
	if d.Signed {
		n += 4
	}
	if d.Zip64 {
		n += 16
	} else {
		n += 8
	}
	buf := make([]byte, n)
	wb := writeBuf(buf)
	b := &wb
	if d.Signed {
		b.uint32(sigDataDescriptor)
	}
	b.uint32(d.CRC32)
	if d.Zip64 {
		b.uint64(d.CompressedSize)
		b.uint64(d.UncompressedSize)
	} else {
		b.uint32(uint32(d.CompressedSize))
		b.uint32(uint32(d.UncompressedSize))
	}
	return e.write(buf)
}

func (e *Encoder) writeCentralEntry(c CentralEntry) error {
	extras := encodeExtras(c.Extras)
	buf := make([]byte, centralEntryLen)
	wb := writeBuf(buf)
	b := &wb
	b.uint32(sigCentralEntry)
	b.uint16(c.MadeByVersion)
	b.uint16(c.ExtractVersion)
	b.uint16(c.Flags)
	b.uint16(c.Method)
	b.uint16(c.ModTime)
	b.uint16(c.ModDate)
	b.uint32(c.CRC32)
	b.uint32(c.CompressedSize)
	b.uint32(c.UncompressedSize)
	b.uint16(uint16(len(c.Name)))
	b.uint16(uint16(len(extras)))
	b.uint16(uint16(len(c.Comment)))
	b.uint16(c.DiskStart)
	b.uint16(c.InternalAttrs)
	b.uint32(c.ExternalAttrs)
	b.uint32(c.LocalHeaderOffset)
	if err := e.write(buf); err != nil {
		return err
	}
	if err := e.write([]byte(c.Name)); err != nil {
		return err
	}
	if err := e.write(extras); err != nil {
		return err
	}
	return e.write([]byte(c.Comment))
}

func (e *Encoder) writeZip64EndRecord(z Zip64EndRecord) error {
	extras := encodeExtras(z.Extras)
	recordSize := uint64(zip64EndRecordLen-12) + uint64(len(extras))
	buf := make([]byte, zip64EndRecordLen)
	wb := writeBuf(buf)
	b := &wb
	b.uint32(sigZip64EndRecord)
	b.uint64(recordSize)
	b.uint16(z.VersionMadeBy)
	b.uint16(z.VersionNeeded)
	b.uint32(z.ThisDisk)
	b.uint32(z.StartDisk)
	b.uint64(z.EntriesThisDisk)
	b.uint64(z.EntriesTotal)
	b.uint64(z.CDSize)
	b.uint64(z.CDOffset)
	if err := e.write(buf); err != nil {
		return err
	}
	return e.write(extras)
}

func (e *Encoder) writeZip64EndLocator(l Zip64EndLocator) error {
	buf := make([]byte, zip64EndLocatorLen)
	wb := writeBuf(buf)
	b := &wb
	b.uint32(sigZip64EndLocator)
	b.uint32(l.EndRecordDisk)
	b.uint64(l.EndRecordOffset)
	b.uint32(l.TotalDisks)
	return e.write(buf)
}

func (e *Encoder) writeEndRecord(r EndRecord) error {
	buf := make([]byte, endRecordLen)
	wb := writeBuf(buf)
	b := &wb
	b.uint32(sigEndRecord)
	b.uint16(r.ThisDisk)
	b.uint16(r.StartDisk)
	b.uint16(r.EntriesThisDisk)
	b.uint16(r.EntriesTotal)
	b.uint32(r.CDSize)
	b.uint32(r.CDOffset)
	b.uint16(uint16(len(r.Comment)))
	if err := e.write(buf); err != nil {
		return err
	}
	return e.write([]byte(r.Comment))
}

func (e *Encoder) writeHole(h Hole) error {
	const chunk = 32 * 1024
	remaining := h.ByteCount
	zeros := make([]byte, chunk)
	for remaining > 0 {
		n := uint64(chunk)
		if remaining < n {
			n = remaining
		}
		if err := e.write(zeros[:n]); err != nil {
			return err
		}
		remaining -= n
	}
	return nil
}

// EncodeToBytes encodes records with default options (offset fixing on, no
// trace) and returns the resulting archive bytes.
func EncodeToBytes(records []Record) ([]byte, error) {
	var buf bytes.Buffer
	if err := NewEncoder(&buf, EncodeOptions{}).Encode(records); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
