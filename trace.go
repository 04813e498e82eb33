package zipshape

import (
	"fmt"
	"io"
)

// Trace writes the human-readable trace format for records to w, offsets
// computed as if records were encoded from position 0 without re-deriving
// them first. Equivalent to passing w as EncodeOptions.TraceSink to an
// Encoder writing to io.Discard with DisableOffsetFixing set, exposed
// directly for callers that only want the trace and not the bytes.
func Trace(w io.Writer, records []Record) error {
	var offset int64
	for i, rec := range records {
		if err := traceRecord(w, rec, offset); err != nil {
			return fmt.Errorf("zipshape: tracing record %d: %w", i, err)
		}
		offset += rec.WireSize()
	}
	return nil
}

// traceRecord writes one section of the human-readable trace format to w,
// headed by "------ <record-name> ------" and followed by one line per
// fixed field: a 6-digit absolute offset, the field name, its raw value,
// and — where the raw value benefits from decoding — a bracketed
// interpretation. This format is for a human reading test output, not a
// compatibility contract, so it favors readability over completeness.
func traceRecord(w io.Writer, rec Record, base int64) error {
	switch r := rec.(type) {
	case LocalHeader:
		return traceLocalHeader(w, r, base)
	case FileData:
		return traceSection(w, "file-data", func() error {
			return traceLine(w, base, "file_data", fmt.Sprintf("%d bytes", r.Length()), "")
		})
	case DataDescriptor:
		return traceDataDescriptor(w, r, base)
	case CentralEntry:
		return traceCentralEntry(w, r, base)
	case Zip64EndRecord:
		return traceZip64EndRecord(w, r, base)
	case Zip64EndLocator:
		return traceZip64EndLocator(w, r, base)
	case EndRecord:
		return traceEndRecord(w, r, base)
	case Hole:
		return traceSection(w, "hole", func() error {
			return traceLine(w, base, "byte_count", fmt.Sprint(r.ByteCount), "")
		})
	default:
		return ErrUnknownRecord
	}
}

func traceSection(w io.Writer, name string, body func() error) error {
	if _, err := fmt.Fprintf(w, "------ %s ------\n", name); err != nil {
		return err
	}
	return body()
}

func traceLine(w io.Writer, offset int64, field, value, interpretation string) error {
	if interpretation != "" {
		_, err := fmt.Fprintf(w, "%06d %-20s %s [%s]\n", offset, field, value, interpretation)
		return err
	}
	_, err := fmt.Fprintf(w, "%06d %-20s %s\n", offset, field, value)
	return err
}

func traceLocalHeader(w io.Writer, h LocalHeader, base int64) error {
	return traceSection(w, "local-header", func() error {
		off := base
		step := func(field, value, interp string, size int64) error {
			err := traceLine(w, off, field, value, interp)
			off += size
			return err
		}
		if err := step("signature", "0x04034b50", "", 4); err != nil {
			return err
		}
		if err := step("extract_version", fmt.Sprint(h.ExtractVersion), "", 2); err != nil {
			return err
		}
		if err := step("flags", fmt.Sprintf("0x%04x", h.Flags), flagsInterp(h.Flags), 2); err != nil {
			return err
		}
		if err := step("method", fmt.Sprint(h.Method), methodInterp(h.Method), 2); err != nil {
			return err
		}
		if err := step("mod_time", fmt.Sprint(h.ModTime), "", 2); err != nil {
			return err
		}
		if err := step("mod_date", fmt.Sprint(h.ModDate), "", 2); err != nil {
			return err
		}
		if err := step("crc32", fmt.Sprintf("0x%08x", h.CRC32), "", 4); err != nil {
			return err
		}
		if err := step("compressed_size", fmt.Sprint(h.CompressedSize), sentinelInterp(uint64(h.CompressedSize), uint64(sentinel32)), 4); err != nil {
			return err
		}
		if err := step("uncompressed_size", fmt.Sprint(h.UncompressedSize), sentinelInterp(uint64(h.UncompressedSize), uint64(sentinel32)), 4); err != nil {
			return err
		}
		if err := step("name_len", fmt.Sprint(len(h.Name)), "", 2); err != nil {
			return err
		}
		if err := step("extra_len", fmt.Sprint(extrasEncodedLen(h.Extras)), "", 2); err != nil {
			return err
		}
		return step("name", h.Name, "", int64(len(h.Name)))
	})
}

func traceCentralEntry(w io.Writer, c CentralEntry, base int64) error {
	return traceSection(w, "central-entry", func() error {
		off := base
		step := func(field, value, interp string, size int64) error {
			err := traceLine(w, off, field, value, interp)
			off += size
			return err
		}
		if err := step("signature", "0x02014b50", "", 4); err != nil {
			return err
		}
		if err := step("made_by_version", fmt.Sprint(c.MadeByVersion), "", 2); err != nil {
			return err
		}
		if err := step("extract_version", fmt.Sprint(c.ExtractVersion), "", 2); err != nil {
			return err
		}
		if err := step("flags", fmt.Sprintf("0x%04x", c.Flags), flagsInterp(c.Flags), 2); err != nil {
			return err
		}
		if err := step("method", fmt.Sprint(c.Method), methodInterp(c.Method), 2); err != nil {
			return err
		}
		if err := step("mod_time", fmt.Sprint(c.ModTime), "", 2); err != nil {
			return err
		}
		if err := step("mod_date", fmt.Sprint(c.ModDate), "", 2); err != nil {
			return err
		}
		if err := step("crc32", fmt.Sprintf("0x%08x", c.CRC32), "", 4); err != nil {
			return err
		}
		if err := step("compressed_size", fmt.Sprint(c.CompressedSize), sentinelInterp(uint64(c.CompressedSize), uint64(sentinel32)), 4); err != nil {
			return err
		}
		if err := step("uncompressed_size", fmt.Sprint(c.UncompressedSize), sentinelInterp(uint64(c.UncompressedSize), uint64(sentinel32)), 4); err != nil {
			return err
		}
		if err := step("name_len", fmt.Sprint(len(c.Name)), "", 2); err != nil {
			return err
		}
		if err := step("extra_len", fmt.Sprint(extrasEncodedLen(c.Extras)), "", 2); err != nil {
			return err
		}
		if err := step("comment_len", fmt.Sprint(len(c.Comment)), "", 2); err != nil {
			return err
		}
		if err := step("disk_start", fmt.Sprint(c.DiskStart), sentinelInterp(uint64(c.DiskStart), uint64(sentinel16)), 2); err != nil {
			return err
		}
		if err := step("internal_attrs", fmt.Sprint(c.InternalAttrs), "", 2); err != nil {
			return err
		}
		if err := step("external_attrs", fmt.Sprintf("0x%08x", c.ExternalAttrs), "", 4); err != nil {
			return err
		}
		if err := step("local_header_offset", fmt.Sprint(c.LocalHeaderOffset), sentinelInterp(uint64(c.LocalHeaderOffset), uint64(sentinel32)), 4); err != nil {
			return err
		}
		return step("name", c.Name, "", int64(len(c.Name)))
	})
}

func traceDataDescriptor(w io.Writer, d DataDescriptor, base int64) error {
	return traceSection(w, "data-descriptor", func() error {
		off := base
		if d.Signed {
			if err := traceLine(w, off, "signature", "0x08074b50", ""); err != nil {
				return err
			}
			off += 4
		}
		if err := traceLine(w, off, "crc32", fmt.Sprintf("0x%08x", d.CRC32), ""); err != nil {
			return err
		}
		off += 4
		sizeWidth := "32-bit"
		sizeLen := int64(4)
		if d.Zip64 {
			sizeWidth = "64-bit"
			sizeLen = 8
		}
		if err := traceLine(w, off, "compressed_size", fmt.Sprint(d.CompressedSize), sizeWidth); err != nil {
			return err
		}
		return traceLine(w, off+sizeLen, "uncompressed_size", fmt.Sprint(d.UncompressedSize), sizeWidth)
	})
}

func traceZip64EndRecord(w io.Writer, z Zip64EndRecord, base int64) error {
	return traceSection(w, "zip64-end-record", func() error {
		return traceLine(w, base, "cd_offset/cd_size/entries", fmt.Sprintf("%d/%d/%d", z.CDOffset, z.CDSize, z.EntriesTotal), "")
	})
}

func traceZip64EndLocator(w io.Writer, l Zip64EndLocator, base int64) error {
	return traceSection(w, "zip64-end-locator", func() error {
		return traceLine(w, base, "end_record_offset", fmt.Sprint(l.EndRecordOffset), "")
	})
}

func traceEndRecord(w io.Writer, e EndRecord, base int64) error {
	return traceSection(w, "end-record", func() error {
		off := base
		step := func(field, value, interp string, size int64) error {
			err := traceLine(w, off, field, value, interp)
			off += size
			return err
		}
		if err := step("signature", "0x06054b50", "", 4); err != nil {
			return err
		}
		if err := step("this_disk", fmt.Sprint(e.ThisDisk), "", 2); err != nil {
			return err
		}
		if err := step("start_disk", fmt.Sprint(e.StartDisk), "", 2); err != nil {
			return err
		}
		if err := step("entries_this_disk", fmt.Sprint(e.EntriesThisDisk), sentinelInterp(uint64(e.EntriesThisDisk), uint64(sentinel16)), 2); err != nil {
			return err
		}
		if err := step("entries_total", fmt.Sprint(e.EntriesTotal), sentinelInterp(uint64(e.EntriesTotal), uint64(sentinel16)), 2); err != nil {
			return err
		}
		if err := step("cd_size", fmt.Sprint(e.CDSize), sentinelInterp(uint64(e.CDSize), uint64(sentinel32)), 4); err != nil {
			return err
		}
		if err := step("cd_offset", fmt.Sprint(e.CDOffset), sentinelInterp(uint64(e.CDOffset), uint64(sentinel32)), 4); err != nil {
			return err
		}
		return step("comment_len", fmt.Sprint(len(e.Comment)), "", 2)
	})
}

func sentinelInterp(v, sentinel uint64) string {
	if v == sentinel {
		return "zip64 sentinel"
	}
	return ""
}

func flagsInterp(flags uint16) string {
	if flags&0x8 != 0 {
		return "data descriptor follows"
	}
	return ""
}

func methodInterp(method uint16) string {
	switch method {
	case MethodStore:
		return "store"
	case MethodDeflate:
		return "deflate"
	default:
		return ""
	}
}
