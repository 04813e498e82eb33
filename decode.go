package zipshape

import (
	"encoding/binary"
	"fmt"
	"io"
)

// decoderState is the Decoder's 3-state machine, per §4.2: after a
// LocalHeader the next record is always that entry's FileData, and after
// FileData the next record is a DataDescriptor only if the local header's
// flag bit 3 was set; otherwise control returns to expecting a signature.
type decoderState int

const (
	stateExpectSignature decoderState = iota
	stateExpectPayload
	stateExpectDescriptor
)

// Decoder reads a Source as an ordered forward cursor and yields one Record
// at a time. It never materializes FileData payload bytes; Next returns a
// FileData record that borrows its range from the underlying Source.
type Decoder struct {
	src    Source
	pos    int64
	state  decoderState
	pend   LocalHeader // the header whose FileData/DataDescriptor are pending
	pendOK bool
}

// NewDecoder returns a Decoder positioned at the start of src.
func NewDecoder(src Source) *Decoder {
	return &Decoder{src: src}
}

// Next returns the next Record in the archive, or io.EOF once the input is
// exhausted. It follows the classic iterator shape used throughout the Go
// standard library (bufio.Scanner, tar.Reader) rather than a range-over-func
// iterator, matching every decoder in the reference corpus.
func (d *Decoder) Next() (Record, error) {
	switch d.state {
	case stateExpectPayload:
		return d.readFileData()
	case stateExpectDescriptor:
		return d.readDataDescriptor()
	}
	return d.readBySignature()
}

func (d *Decoder) remaining() int64 { return d.src.Size() - d.pos }

func (d *Decoder) readExact(n int64) ([]byte, error) {
	if n < 0 || d.remaining() < n {
		return nil, ErrTruncated
	}
	buf := make([]byte, n)
	if _, err := d.src.ReadAt(buf, d.pos); err != nil && err != io.EOF {
		return nil, err
	}
	d.pos += n
	return buf, nil
}

func (d *Decoder) readBySignature() (Record, error) {
	if d.remaining() <= 0 {
		return nil, io.EOF
	}
	if d.remaining() < 4 {
		return nil, &DecodeError{Offset: d.pos, Err: ErrTruncated}
	}
	sigBytes := make([]byte, 4)
	if _, err := d.src.ReadAt(sigBytes, d.pos); err != nil && err != io.EOF {
		return nil, &DecodeError{Offset: d.pos, Err: err}
	}
	sig := binary.LittleEndian.Uint32(sigBytes)
	start := d.pos
	switch sig {
	case sigLocalHeader:
		return d.readLocalHeader(start)
	case sigCentralEntry:
		return d.readCentralEntry(start)
	case sigZip64EndRecord:
		return d.readZip64EndRecord(start)
	case sigZip64EndLocator:
		return d.readZip64EndLocator(start)
	case sigEndRecord:
		return d.readEndRecord(start)
	default:
		return nil, &DecodeError{Offset: start, Signature: sig, Err: ErrUnknownSignature}
	}
}

func (d *Decoder) readLocalHeader(start int64) (Record, error) {
	raw, err := d.readExact(localHeaderLen)
	if err != nil {
		return nil, &DecodeError{Offset: start, Signature: sigLocalHeader, Err: err}
	}
	r := readBuf(raw[4:]) // skip signature
	h := LocalHeader{
		ExtractVersion:   r.uint16(),
		Flags:            r.uint16(),
		Method:           r.uint16(),
		ModTime:          r.uint16(),
		ModDate:          r.uint16(),
		CRC32:            r.uint32(),
		CompressedSize:   r.uint32(),
		UncompressedSize: r.uint32(),
	}
	nameLen := int(r.uint16())
	extraLen := int(r.uint16())
	nameBytes, err := d.readExact(int64(nameLen))
	if err != nil {
		return nil, &DecodeError{Offset: start, Signature: sigLocalHeader, Err: err}
	}
	h.Name = string(nameBytes)
	extraBytes, err := d.readExact(int64(extraLen))
	if err != nil {
		return nil, &DecodeError{Offset: start, Signature: sigLocalHeader, Err: err}
	}
	extras, err := decodeLocalExtras(extraBytes, h.CompressedSize == sentinel32, h.UncompressedSize == sentinel32)
	if err != nil {
		return nil, &DecodeError{Offset: start, Signature: sigLocalHeader, Err: err}
	}
	h.Extras = extras

	d.pend = h
	d.pendOK = true
	d.state = stateExpectPayload
	return h, nil
}

func (d *Decoder) readFileData() (Record, error) {
	h := d.pend
	hasDescriptor := h.Flags&0x8 != 0
	length := int64(h.RealCompressedSize())

	if hasDescriptor && h.CompressedSize == 0 && length == 0 {
		// Size genuinely deferred to the data descriptor: no field anywhere
		// before it records how long this entry's data is.
		var n int64
		var err error
		if h.Method == MethodDeflate {
			n, err = discoverCompressedLength(d.src, d.pos)
		} else {
			n, err = discoverStoredLength(d.src, d.pos)
		}
		if err != nil {
			return nil, &DecodeError{Offset: d.pos, Err: err}
		}
		length = n
	}

	if d.remaining() < length {
		return nil, &DecodeError{Offset: d.pos, Err: ErrTruncated}
	}
	fd := NewFileDataFromSource(d.src, d.pos, length)
	d.pos += length

	if hasDescriptor {
		d.state = stateExpectDescriptor
	} else {
		d.state = stateExpectSignature
	}
	return fd, nil
}

func (d *Decoder) readDataDescriptor() (Record, error) {
	start := d.pos
	d.state = stateExpectSignature

	peek := make([]byte, 4)
	if d.remaining() >= 4 {
		if _, err := d.src.ReadAt(peek, d.pos); err != nil && err != io.EOF {
			return nil, &DecodeError{Offset: start, Err: err}
		}
	}
	signed := binary.LittleEndian.Uint32(peek) == sigDataDescriptor
	zip64 := d.pend.isZip64()

	hdrLen := int64(4)
	if !signed {
		hdrLen = 0
	}
	bodyLen := int64(4 + 8) // crc32 + two 4-byte sizes
	if zip64 {
		bodyLen = 4 + 16 // crc32 + two 8-byte sizes
	}
	raw, err := d.readExact(hdrLen + bodyLen)
	if err != nil {
		return nil, &DecodeError{Offset: start, Signature: sigDataDescriptor, Err: err}
	}
	r := readBuf(raw)
	if signed {
		r.uint32() // consume signature
	}
	desc := DataDescriptor{Signed: signed, Zip64: zip64, CRC32: r.uint32()}
	if zip64 {
		desc.CompressedSize = r.uint64()
		desc.UncompressedSize = r.uint64()
	} else {
		desc.CompressedSize = uint64(r.uint32())
		desc.UncompressedSize = uint64(r.uint32())
	}
	return desc, nil
}

func (d *Decoder) readCentralEntry(start int64) (Record, error) {
	raw, err := d.readExact(centralEntryLen)
	if err != nil {
		return nil, &DecodeError{Offset: start, Signature: sigCentralEntry, Err: err}
	}
	r := readBuf(raw[4:])
	c := CentralEntry{
		MadeByVersion:    r.uint16(),
		ExtractVersion:   r.uint16(),
		Flags:            r.uint16(),
		Method:           r.uint16(),
		ModTime:          r.uint16(),
		ModDate:          r.uint16(),
		CRC32:            r.uint32(),
		CompressedSize:   r.uint32(),
		UncompressedSize: r.uint32(),
	}
	nameLen := int(r.uint16())
	extraLen := int(r.uint16())
	commentLen := int(r.uint16())
	c.DiskStart = r.uint16()
	c.InternalAttrs = r.uint16()
	c.ExternalAttrs = r.uint32()
	c.LocalHeaderOffset = r.uint32()

	nameBytes, err := d.readExact(int64(nameLen))
	if err != nil {
		return nil, &DecodeError{Offset: start, Signature: sigCentralEntry, Err: err}
	}
	c.Name = string(nameBytes)
	extraBytes, err := d.readExact(int64(extraLen))
	if err != nil {
		return nil, &DecodeError{Offset: start, Signature: sigCentralEntry, Err: err}
	}
	extras, err := decodeCentralExtras(extraBytes,
		c.CompressedSize == sentinel32, c.UncompressedSize == sentinel32,
		c.LocalHeaderOffset == sentinel32, c.DiskStart == sentinel16)
	if err != nil {
		return nil, &DecodeError{Offset: start, Signature: sigCentralEntry, Err: err}
	}
	c.Extras = extras
	commentBytes, err := d.readExact(int64(commentLen))
	if err != nil {
		return nil, &DecodeError{Offset: start, Signature: sigCentralEntry, Err: err}
	}
	c.Comment = string(commentBytes)
	d.state = stateExpectSignature
	return c, nil
}

func (d *Decoder) readZip64EndRecord(start int64) (Record, error) {
	raw, err := d.readExact(zip64EndRecordLen)
	if err != nil {
		return nil, &DecodeError{Offset: start, Signature: sigZip64EndRecord, Err: err}
	}
	r := readBuf(raw[4:])
	recordSize := r.uint64()
	z := Zip64EndRecord{
		VersionMadeBy:   r.uint16(),
		VersionNeeded:   r.uint16(),
		ThisDisk:        r.uint32(),
		StartDisk:       r.uint32(),
		EntriesThisDisk: r.uint64(),
		EntriesTotal:    r.uint64(),
		CDSize:          r.uint64(),
		CDOffset:        r.uint64(),
	}
	// recordSize counts everything after itself, i.e. from VersionMadeBy
	// through the trailing extras; the fixed part already consumed is
	// zip64EndRecordLen-12 (sig+recordSize fields) bytes of it.
	extraLen := int64(recordSize) - int64(zip64EndRecordLen-12)
	if extraLen < 0 {
		return nil, &DecodeError{Offset: start, Signature: sigZip64EndRecord, Err: ErrTruncated}
	}
	extraBytes, err := d.readExact(extraLen)
	if err != nil {
		return nil, &DecodeError{Offset: start, Signature: sigZip64EndRecord, Err: err}
	}
	extras, err := decodeZip64EndExtras(extraBytes)
	if err != nil {
		return nil, &DecodeError{Offset: start, Signature: sigZip64EndRecord, Err: err}
	}
	z.Extras = extras
	d.state = stateExpectSignature
	return z, nil
}

func (d *Decoder) readZip64EndLocator(start int64) (Record, error) {
	raw, err := d.readExact(zip64EndLocatorLen)
	if err != nil {
		return nil, &DecodeError{Offset: start, Signature: sigZip64EndLocator, Err: err}
	}
	r := readBuf(raw[4:])
	loc := Zip64EndLocator{
		EndRecordDisk:   r.uint32(),
		EndRecordOffset: r.uint64(),
		TotalDisks:      r.uint32(),
	}
	d.state = stateExpectSignature
	return loc, nil
}

func (d *Decoder) readEndRecord(start int64) (Record, error) {
	raw, err := d.readExact(endRecordLen)
	if err != nil {
		return nil, &DecodeError{Offset: start, Signature: sigEndRecord, Err: err}
	}
	r := readBuf(raw[4:])
	e := EndRecord{
		ThisDisk:        r.uint16(),
		StartDisk:       r.uint16(),
		EntriesThisDisk: r.uint16(),
		EntriesTotal:    r.uint16(),
		CDSize:          r.uint32(),
		CDOffset:        r.uint32(),
	}
	commentLen := int(r.uint16())
	commentBytes, err := d.readExact(int64(commentLen))
	if err != nil {
		return nil, &DecodeError{Offset: start, Signature: sigEndRecord, Err: err}
	}
	e.Comment = string(commentBytes)
	d.state = stateExpectSignature
	return e, nil
}

// DecodeAll drains a Decoder into a slice, the common case for test code
// that wants to inspect or rewrite the whole record sequence at once.
func DecodeAll(src Source) ([]Record, error) {
	d := NewDecoder(src)
	var out []Record
	for {
		rec, err := d.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, fmt.Errorf("zipshape: %w", err)
		}
		out = append(out, rec)
	}
}
