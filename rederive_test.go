package zipshape

import (
	"archive/zip"
	"bytes"
	"testing"
)

func TestRederiveFixesOffsetsAfterInsertingEntry(t *testing.T) {
	original := buildReferenceZip(t)
	records, err := DecodeAll(NewMemSource(original))
	if err != nil {
		t.Fatalf("DecodeAll: %v", err)
	}

	const newCRC32 = 0x6be34445
	inserted := FlatMap(records, func(r Record) []Record {
		switch v := r.(type) {
		case LocalHeader:
			if v.Name == "deflated.txt" {
				// Splice a new, small entry's header and data in just before
				// deflated.txt's (and its CentralEntry just before
				// deflated.txt's, below, so the ordinal pairing holds) to
				// verify Rederive re-threads every offset downstream of the
				// insertion, not just the inserted one.
				extra := NewLocalHeader("new.txt", v.Modified())
				extra.CompressedSize = 3
				extra.UncompressedSize = 3
				extra.CRC32 = newCRC32
				return []Record{extra, NewFileDataFromBytes([]byte("new")), r}
			}
		case CentralEntry:
			if v.Name == "deflated.txt" {
				return []Record{
					CentralEntry{
						Name:             "new.txt",
						ExtractVersion:   versionDefault,
						CompressedSize:   3,
						UncompressedSize: 3,
						CRC32:            newCRC32,
					},
					r,
				}
			}
		}
		return []Record{r}
	})

	got, err := EncodeToBytes(inserted)
	if err != nil {
		t.Fatalf("EncodeToBytes: %v", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(got), int64(len(got)))
	if err != nil {
		t.Fatalf("re-reading spliced archive: %v", err)
	}
	names := map[string]bool{}
	for _, f := range zr.File {
		names[f.Name] = true
		off, err := f.DataOffset()
		if err != nil {
			t.Fatalf("DataOffset for %s: %v", f.Name, err)
		}
		// A correct re-derivation is exactly what makes archive/zip able to
		// locate and open every entry's data at all.
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("Open %s at claimed offset %d: %v", f.Name, off, err)
		}
		rc.Close()
	}
	for _, want := range []string{"stored.txt", "deflated.txt", "new.txt", "empty-dir/"} {
		if !names[want] {
			t.Errorf("missing entry %q after splice", want)
		}
	}
}

func TestRederiveCentralDirectoryOffsetAndSize(t *testing.T) {
	original := buildReferenceZip(t)
	records, err := DecodeAll(NewMemSource(original))
	if err != nil {
		t.Fatalf("DecodeAll: %v", err)
	}
	rederived := Rederive(records)

	var firstCentralOffset, lastCentralEnd int64
	var offset int64
	var cdCount int
	var end EndRecord
	for _, r := range rederived {
		if _, ok := r.(CentralEntry); ok {
			if cdCount == 0 {
				firstCentralOffset = offset
			}
			cdCount++
		}
		offset += r.WireSize()
		if _, ok := r.(CentralEntry); ok {
			lastCentralEnd = offset
		}
		if e, ok := r.(EndRecord); ok {
			end = e
		}
	}

	if int64(end.CDOffset) != firstCentralOffset {
		t.Errorf("EndRecord.CDOffset = %d, want %d", end.CDOffset, firstCentralOffset)
	}
	if int64(end.CDSize) != lastCentralEnd-firstCentralOffset {
		t.Errorf("EndRecord.CDSize = %d, want %d", end.CDSize, lastCentralEnd-firstCentralOffset)
	}
	if int(end.EntriesTotal) != cdCount || int(end.EntriesThisDisk) != cdCount {
		t.Errorf("EndRecord entry counts = %d/%d, want %d", end.EntriesThisDisk, end.EntriesTotal, cdCount)
	}
}

// TestRederiveTruncatesOverflowingOffsetWhenNotSentineled covers §4.4 rule
// 4's literal dispatch (sentineled-or-not, not overflow-or-not) and the §9
// Open Question (a) policy decision recorded in DESIGN.md: rederiving a
// local-header offset that doesn't fit a uint32, for a CentralEntry that
// never asked for Zip64, truncates silently rather than auto-upgrading.
func TestRederiveTruncatesOverflowingOffsetWhenNotSentineled(t *testing.T) {
	bigOffset := uint64(sentinel32) + 1
	records := []Record{
		Hole{ByteCount: bigOffset},
		LocalHeader{Name: "entry", CompressedSize: 3, UncompressedSize: 3, CRC32: 0x12345678},
		NewFileDataFromBytes([]byte("abc")),
		CentralEntry{Name: "entry", CompressedSize: 3, UncompressedSize: 3, CRC32: 0x12345678},
		EndRecord{},
	}

	rederived := Rederive(records)

	var got CentralEntry
	var found bool
	for _, r := range rederived {
		if c, ok := r.(CentralEntry); ok {
			got, found = c, true
		}
	}
	if !found {
		t.Fatal("no CentralEntry in rederived output")
	}
	if want := uint32(bigOffset); got.LocalHeaderOffset != want {
		t.Errorf("LocalHeaderOffset = %d, want %d (truncated)", got.LocalHeaderOffset, want)
	}
	if _, ok := got.Zip64Extra(); ok {
		t.Error("Zip64Ext present: rule 4 only defers to it when the incoming field was already sentineled")
	}
}

func TestToZip64RoundTrip(t *testing.T) {
	original := buildReferenceZip(t)
	records, err := DecodeAll(NewMemSource(original))
	if err != nil {
		t.Fatalf("DecodeAll: %v", err)
	}

	upgraded := ToZip64(records)
	got, err := EncodeToBytes(upgraded)
	if err != nil {
		t.Fatalf("EncodeToBytes: %v", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(got), int64(len(got)))
	if err != nil {
		t.Fatalf("archive/zip failed to read zip64-upgraded archive: %v", err)
	}
	if len(zr.File) != 3 {
		t.Fatalf("len(zr.File) = %d, want 3", len(zr.File))
	}

	var sawZip64Locator, sawZip64End bool
	for _, r := range upgraded {
		switch r.(type) {
		case Zip64EndLocator:
			sawZip64Locator = true
		case Zip64EndRecord:
			sawZip64End = true
		}
	}
	if !sawZip64Locator || !sawZip64End {
		t.Error("ToZip64 did not insert a Zip64EndRecord/Zip64EndLocator pair")
	}
}
