package zipshape

// ExtraField is one (id, size, body) entry inside a record's extensible
// extra-fields blob. The set is not sealed the way Record is: unrecognized
// IDs round-trip as GenericExt so the decoder never has to reject a
// well-formed archive just because it carries an extra field this package
// doesn't model.
type ExtraField interface {
	extraID() uint16
	encodeBody() []byte
}

const (
	extraIDZip64     = 0x0001
	extraIDTimestamp = 0x5455
	extraIDNtfsTime  = 0x000a
)

// Zip64Ext carries the 64-bit fields a legacy 32-bit field sentinels away to.
// Per the wire format, only the fields whose legacy counterpart is actually
// sentineled are present in the body, in this fixed order: uncompressed
// size, compressed size, local header offset, disk start. A nil pointer
// means "not present in this particular record's extra," mirroring how
// zipslicer's zip64Extra and the teacher's zip64ExtraID handling treat the
// field as conditionally present rather than fixed-width.
type Zip64Ext struct {
	UncompressedSize  *uint64
	CompressedSize    *uint64
	LocalHeaderOffset *uint64
	DiskStart         *uint32
}

func (Zip64Ext) extraID() uint16 { return extraIDZip64 }

func (z Zip64Ext) encodeBody() []byte {
	n := 0
	if z.UncompressedSize != nil {
		n += 8
	}
	if z.CompressedSize != nil {
		n += 8
	}
	if z.LocalHeaderOffset != nil {
		n += 8
	}
	if z.DiskStart != nil {
		// Followed literally per spec.md's wire layout (all four Zip64
		// extra fields are 8 bytes), which diverges from APPNOTE's 4-byte
		// disk-start field. Safe here because multi-disk archives are a
		// declared non-goal, so nothing round-trips this field against a
		// reader that assumes the narrower APPNOTE width.
		n += 8
	}
	buf := make([]byte, n)
	wb := writeBuf(buf)
	b := &wb
	if z.UncompressedSize != nil {
		b.uint64(*z.UncompressedSize)
	}
	if z.CompressedSize != nil {
		b.uint64(*z.CompressedSize)
	}
	if z.LocalHeaderOffset != nil {
		b.uint64(*z.LocalHeaderOffset)
	}
	if z.DiskStart != nil {
		b.uint64(uint64(*z.DiskStart))
	}
	return buf
}

// decodeZip64Body fills in a Zip64Ext from body, given which of the four
// fields the owning record's legacy fields marked as sentineled and
// therefore present, in wire order. This mirrors how a real reader must
// decode this extra: its shape depends on context elsewhere in the record,
// not on a self-describing inner structure.
func decodeZip64Body(body []byte, wantUncompressed, wantCompressed, wantOffset, wantDisk bool) Zip64Ext {
	var z Zip64Ext
	r := readBuf(body)
	if wantUncompressed && len(r) >= 8 {
		v := r.uint64()
		z.UncompressedSize = &v
	}
	if wantCompressed && len(r) >= 8 {
		v := r.uint64()
		z.CompressedSize = &v
	}
	if wantOffset && len(r) >= 8 {
		v := r.uint64()
		z.LocalHeaderOffset = &v
	}
	if wantDisk && len(r) >= 8 {
		v := uint32(r.uint64())
		z.DiskStart = &v
	}
	return z
}

// TimestampExt is the Info-ZIP extended timestamp extra (id 0x5455),
// carried over from the teacher's extTimeExtraID handling in struct.go,
// generalized to round-trip the flag byte and whichever of the three
// timestamps it marks present instead of only ever writing mtime.
type TimestampExt struct {
	Flags   uint8
	ModTime *int32
	AccTime *int32
	CrTime  *int32
}

func (TimestampExt) extraID() uint16 { return extraIDTimestamp }

func (t TimestampExt) encodeBody() []byte {
	n := 1
	if t.ModTime != nil {
		n += 4
	}
	if t.AccTime != nil {
		n += 4
	}
	if t.CrTime != nil {
		n += 4
	}
	buf := make([]byte, n)
	wb := writeBuf(buf)
	b := &wb
	b.uint8(t.Flags)
	if t.ModTime != nil {
		b.uint32(uint32(*t.ModTime))
	}
	if t.AccTime != nil {
		b.uint32(uint32(*t.AccTime))
	}
	if t.CrTime != nil {
		b.uint32(uint32(*t.CrTime))
	}
	return buf
}

func decodeTimestampBody(body []byte, isLocal bool) TimestampExt {
	if len(body) < 1 {
		return TimestampExt{}
	}
	r := readBuf(body)
	t := TimestampExt{Flags: r.uint8()}
	// In a local header all three timestamps present in Flags are written;
	// in a central directory entry only mtime ever is, regardless of Flags.
	if t.Flags&0x1 != 0 && len(r) >= 4 {
		v := int32(r.uint32())
		t.ModTime = &v
	}
	if !isLocal {
		return t
	}
	if t.Flags&0x2 != 0 && len(r) >= 4 {
		v := int32(r.uint32())
		t.AccTime = &v
	}
	if t.Flags&0x4 != 0 && len(r) >= 4 {
		v := int32(r.uint32())
		t.CrTime = &v
	}
	return t
}

// NtfsTimeExt is the Windows NTFS extra (id 0x000a): a 4-byte reserved
// field followed by one or more (tag, size, attrs) sub-blocks. Only tag 1
// (the three FILETIME values) is modeled; anything else round-trips inside
// Rest.
type NtfsTimeExt struct {
	ModTime uint64 // Windows FILETIME, 100ns ticks since 1601-01-01
	AccTime uint64
	CrTime  uint64
	Rest    []byte
}

func (NtfsTimeExt) extraID() uint16 { return extraIDNtfsTime }

func (n NtfsTimeExt) encodeBody() []byte {
	buf := make([]byte, 4+2+2+24+len(n.Rest))
	wb := writeBuf(buf)
	b := &wb
	b.uint32(0) // reserved
	b.uint16(1) // tag 1
	b.uint16(24)
	b.uint64(n.ModTime)
	b.uint64(n.AccTime)
	b.uint64(n.CrTime)
	copy(*b, n.Rest)
	return buf
}

func decodeNtfsTimeBody(body []byte) NtfsTimeExt {
	var out NtfsTimeExt
	if len(body) < 4 {
		return out
	}
	r := readBuf(body[4:])
	for len(r) >= 4 {
		raw := r
		tag := r.uint16()
		size := int(r.uint16())
		if size > len(r) {
			out.Rest = append(out.Rest, raw...)
			r = nil
			break
		}
		sub := r[:size]
		r = r[size:]
		if tag == 1 && size >= 24 {
			sr := readBuf(sub)
			out.ModTime = sr.uint64()
			out.AccTime = sr.uint64()
			out.CrTime = sr.uint64()
		} else {
			out.Rest = append(out.Rest, raw[:4+size]...)
		}
	}
	out.Rest = append(out.Rest, r...)
	return out
}

// GenericExt is the catch-all for any extra-field ID this package doesn't
// interpret. It round-trips the raw body unchanged.
type GenericExt struct {
	ID   uint16
	Body []byte
}

func (g GenericExt) extraID() uint16    { return g.ID }
func (g GenericExt) encodeBody() []byte { return g.Body }

// extrasEncodedLen returns the total encoded length of an extras blob,
// including each entry's 4-byte (id, size) header.
func extrasEncodedLen(extras []ExtraField) int {
	n := 0
	for _, e := range extras {
		n += 4 + len(e.encodeBody())
	}
	return n
}

// encodeExtras serializes extras in order.
func encodeExtras(extras []ExtraField) []byte {
	out := make([]byte, 0, extrasEncodedLen(extras))
	for _, e := range extras {
		body := e.encodeBody()
		hdr := make([]byte, 4)
		wb := writeBuf(hdr)
		b := &wb
		b.uint16(e.extraID())
		b.uint16(uint16(len(body)))
		out = append(out, hdr...)
		out = append(out, body...)
	}
	return out
}

// decodeLocalExtras parses a local header's extras blob. Zip64 presence is
// derived from which legacy fields the caller marked as sentineled, per
// §9's rule that the Zip64Ext shape is determined by its owning record, not
// self-described.
func decodeLocalExtras(data []byte, wantU, wantC bool) ([]ExtraField, error) {
	return decodeExtras(data, func(id uint16, body []byte) ExtraField {
		switch id {
		case extraIDZip64:
			return decodeZip64Body(body, wantU, wantC, false, false)
		case extraIDTimestamp:
			return decodeTimestampBody(body, true)
		case extraIDNtfsTime:
			return decodeNtfsTimeBody(body)
		default:
			return GenericExt{ID: id, Body: append([]byte(nil), body...)}
		}
	})
}

// decodeCentralExtras parses a central directory entry's extras blob.
func decodeCentralExtras(data []byte, wantU, wantC, wantOffset, wantDisk bool) ([]ExtraField, error) {
	return decodeExtras(data, func(id uint16, body []byte) ExtraField {
		switch id {
		case extraIDZip64:
			return decodeZip64Body(body, wantU, wantC, wantOffset, wantDisk)
		case extraIDTimestamp:
			return decodeTimestampBody(body, false)
		case extraIDNtfsTime:
			return decodeNtfsTimeBody(body)
		default:
			return GenericExt{ID: id, Body: append([]byte(nil), body...)}
		}
	})
}

// decodeZip64EndExtras parses a Zip64EndRecord's trailing extras, which are
// always GenericExt since no known variant nests inside this record.
func decodeZip64EndExtras(data []byte) ([]ExtraField, error) {
	return decodeExtras(data, func(id uint16, body []byte) ExtraField {
		return GenericExt{ID: id, Body: append([]byte(nil), body...)}
	})
}

func decodeExtras(data []byte, decodeOne func(id uint16, body []byte) ExtraField) ([]ExtraField, error) {
	var out []ExtraField
	r := readBuf(data)
	for len(r) > 0 {
		if len(r) < 4 {
			return nil, ErrExtraOverflow
		}
		id := r.uint16()
		size := int(r.uint16())
		if size > len(r) {
			return nil, ErrExtraOverflow
		}
		body := []byte(r[:size])
		r = r[size:]
		out = append(out, decodeOne(id, body))
	}
	return out, nil
}

// findZip64Ext returns the first Zip64Ext among extras, if any.
func findZip64Ext(extras []ExtraField) (Zip64Ext, bool) {
	for _, e := range extras {
		if z, ok := e.(Zip64Ext); ok {
			return z, true
		}
	}
	return Zip64Ext{}, false
}

// dropZip64Ext returns extras with any existing Zip64Ext removed.
func dropZip64Ext(extras []ExtraField) []ExtraField {
	out := make([]ExtraField, 0, len(extras))
	for _, e := range extras {
		if _, ok := e.(Zip64Ext); ok {
			continue
		}
		out = append(out, e)
	}
	return out
}

// withExtra returns extras with e appended, replacing any existing entry of
// the same extra ID.
func withExtra(extras []ExtraField, e ExtraField) []ExtraField {
	out := make([]ExtraField, 0, len(extras)+1)
	replaced := false
	for _, existing := range extras {
		if existing.extraID() == e.extraID() {
			out = append(out, e)
			replaced = true
			continue
		}
		out = append(out, existing)
	}
	if !replaced {
		out = append(out, e)
	}
	return out
}
