package zipshape

// Rederive recomputes every cross-record offset, size, and count field in
// records from scratch in a single forward pass, per the invariant in §3
// that every CentralEntry appears after all LocalHeader/FileData/
// DataDescriptor triples: by the time the pass reaches the first
// CentralEntry, every local header's real offset is already known, so one
// linear scan is always enough — no second pass or backpatch is needed.
//
// It never changes which records are present or their order. It rewrites
// the fields that describe where things are and, for a CentralEntry whose
// flag bit 3 is set (sizes deferred to a data descriptor), also copies the
// CRC32 and sizes seen in that entry's FileData/DataDescriptor into it,
// moving the sizes into a Zip64Ext when the entry is already Zip64 or they
// overflow the 32-bit fields. The offset/size/count rewrite is modeled on how
// zipslicer's Directory.WriteDirectory and the teacher's
// writeCentralDirectory recompute offset/size/count just before emitting
// the trailing records rather than trusting whatever the caller already put
// there.
func Rederive(records []Record) []Record {
	out := make([]Record, len(records))

	// Indexed by ordinal (0-based), per §4.4: the i-th CentralEntry pairs
	// with the i-th LocalHeader in stream order, not by name equality —
	// §3 explicitly allows duplicate names across entries ("tie-breaking
	// by order"), so a name-keyed map would mispair those.
	var localOffsets []int64
	var entrySizes []struct{ csize, usize uint64 }
	var entryCRCs []uint32

	var offset int64
	var pendingOrdinal = -1
	var cdStart, cdEnd int64
	var cdCount int
	var zip64EndOffset int64
	var sawZip64End bool

	for i, rec := range records {
		var result Record = rec

		switch r := rec.(type) {
		case LocalHeader:
			localOffsets = append(localOffsets, offset)
			entrySizes = append(entrySizes, struct{ csize, usize uint64 }{})
			entryCRCs = append(entryCRCs, 0)
			pendingOrdinal = len(localOffsets) - 1

		case FileData:
			if pendingOrdinal >= 0 {
				entrySizes[pendingOrdinal].csize = uint64(r.Length())
			}

		case DataDescriptor:
			if pendingOrdinal >= 0 {
				s := entrySizes[pendingOrdinal]
				s.usize = r.UncompressedSize
				if s.csize == 0 {
					s.csize = r.CompressedSize
				}
				entrySizes[pendingOrdinal] = s
				entryCRCs[pendingOrdinal] = r.CRC32
			}
			pendingOrdinal = -1

		case CentralEntry:
			if cdCount == 0 {
				cdStart = offset
			}
			ord := cdCount
			if ord < len(localOffsets) {
				r = setLocalOffset(r, uint64(localOffsets[ord]))
			}
			if ord < len(entrySizes) && r.Flags&0x8 != 0 {
				s := entrySizes[ord]
				if r.CompressedSize != sentinel32 && r.UncompressedSize != sentinel32 &&
					s.csize <= uint64(sentinel32) && s.usize <= uint64(sentinel32) {
					r.CompressedSize = shrink32(s.csize)
					r.UncompressedSize = shrink32(s.usize)
				} else {
					r = r.ToZip64()
					z, _ := r.Zip64Extra()
					z.CompressedSize, z.UncompressedSize = &s.csize, &s.usize
					r.Extras = withExtra(r.Extras, z)
				}
				r.CRC32 = entryCRCs[ord]
			}
			cdCount++
			result = r

		case Zip64EndRecord:
			r.CDOffset = uint64(cdStart)
			r.CDSize = uint64(cdEnd - cdStart)
			r.EntriesThisDisk = uint64(cdCount)
			r.EntriesTotal = uint64(cdCount)
			result = r
			zip64EndOffset = offset
			sawZip64End = true

		case Zip64EndLocator:
			if sawZip64End {
				r.EndRecordOffset = uint64(zip64EndOffset)
			}
			result = r

		case EndRecord:
			if !r.isZip64Marked() {
				r.CDOffset = uint32(cdStart)
				r.CDSize = uint32(cdEnd - cdStart)
				r.EntriesThisDisk = uint16(cdCount)
				r.EntriesTotal = uint16(cdCount)
			}
			result = r
		}

		out[i] = result
		offset += result.WireSize()
		if _, ok := result.(CentralEntry); ok {
			cdEnd = offset
		}
	}
	return out
}

// setLocalOffset rewrites c's local-header offset to off, per §4.4 rule 4:
// the dispatch is solely on whether the incoming field already carries the
// u32 sentinel — not on whether off itself would overflow a u32. Whether an
// offset that overflows should be silently truncated or force a Zip64
// upgrade is exactly the open question §9 names ("the source neither
// prevents nor warns"); see DESIGN.md for the decision this follows.
func setLocalOffset(c CentralEntry, off uint64) CentralEntry {
	if c.LocalHeaderOffset != sentinel32 {
		c.LocalHeaderOffset = uint32(off)
		return c
	}
	z := Zip64Ext{LocalHeaderOffset: &off}
	if c.UncompressedSize == sentinel32 {
		usize := c.realUncompressedSize()
		z.UncompressedSize = &usize
	}
	if c.CompressedSize == sentinel32 {
		csize := c.realCompressedSize()
		z.CompressedSize = &csize
	}
	if c.DiskStart == sentinel16 {
		disk := uint32(c.realDiskStart())
		z.DiskStart = &disk
	}
	c.Extras = withExtra(dropZip64Ext(c.Extras), z)
	return c
}

func shrink32(v uint64) uint32 {
	if v > uint64(sentinel32) {
		return sentinel32
	}
	return uint32(v)
}
