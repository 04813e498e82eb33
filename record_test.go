package zipshape

import "testing"

func TestLocalHeaderToZip64(t *testing.T) {
	h := LocalHeader{
		Name:             "big.bin",
		CompressedSize:   123,
		UncompressedSize: 456,
	}
	z := h.ToZip64()

	if z.ExtractVersion != versionZip64 {
		t.Errorf("ExtractVersion = %d, want %d", z.ExtractVersion, versionZip64)
	}
	if z.CompressedSize != sentinel32 || z.UncompressedSize != sentinel32 {
		t.Errorf("sizes not sentineled: %+v", z)
	}
	ext, ok := z.Zip64Extra()
	if !ok {
		t.Fatal("no Zip64Ext present after ToZip64")
	}
	if ext.CompressedSize == nil || *ext.CompressedSize != 123 {
		t.Errorf("CompressedSize = %v, want 123", ext.CompressedSize)
	}
	if ext.UncompressedSize == nil || *ext.UncompressedSize != 456 {
		t.Errorf("UncompressedSize = %v, want 456", ext.UncompressedSize)
	}
	if z.RealCompressedSize() != 123 || z.RealUncompressedSize() != 456 {
		t.Errorf("real sizes after round trip: csize=%d usize=%d", z.RealCompressedSize(), z.RealUncompressedSize())
	}
}

func TestCentralEntryToZip64(t *testing.T) {
	c := CentralEntry{
		Name:              "entry",
		CompressedSize:    10,
		UncompressedSize:  20,
		LocalHeaderOffset: 30,
	}
	z := c.ToZip64()
	if !z.isZip64() {
		t.Fatal("isZip64() = false after ToZip64")
	}
	ext, ok := z.Zip64Extra()
	if !ok {
		t.Fatal("no Zip64Ext present")
	}
	if *ext.LocalHeaderOffset != 30 {
		t.Errorf("LocalHeaderOffset = %d, want 30", *ext.LocalHeaderOffset)
	}
	if z.realLocalHeaderOffset() != 30 {
		t.Errorf("realLocalHeaderOffset() = %d, want 30", z.realLocalHeaderOffset())
	}
}

func TestWireSizeMatchesEncodedLength(t *testing.T) {
	h := LocalHeader{Name: "hello.txt", Extras: []ExtraField{
		TimestampExt{Flags: 1, ModTime: int32Ptr(1000)},
	}}
	enc := &Encoder{w: discardWriter{}}
	if err := enc.writeLocalHeader(h); err != nil {
		t.Fatal(err)
	}
	if enc.offset != h.WireSize() {
		t.Errorf("wrote %d bytes, WireSize() = %d", enc.offset, h.WireSize())
	}
}

func int32Ptr(v int32) *int32 { return &v }

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }
