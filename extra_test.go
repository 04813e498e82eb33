package zipshape

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestEncodeDecodeExtrasRoundTrip(t *testing.T) {
	usize := uint64(5000000000)
	extras := []ExtraField{
		Zip64Ext{UncompressedSize: &usize},
		TimestampExt{Flags: 0x1, ModTime: int32Ptr(1700000000)},
		GenericExt{ID: 0x9999, Body: []byte{1, 2, 3}},
	}
	blob := encodeExtras(extras)

	got, err := decodeLocalExtras(blob, true, false)
	if err != nil {
		t.Fatalf("decodeLocalExtras: %v", err)
	}
	if diff := cmp.Diff(extras, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeExtrasOverflow(t *testing.T) {
	// Claims a 10-byte body but only 2 bytes remain.
	blob := []byte{0x01, 0x00, 0x0a, 0x00, 0xaa, 0xbb}
	if _, err := decodeLocalExtras(blob, false, false); err != ErrExtraOverflow {
		t.Errorf("err = %v, want ErrExtraOverflow", err)
	}
}

func TestWithExtraReplaces(t *testing.T) {
	one := uint64(1)
	two := uint64(2)
	extras := []ExtraField{Zip64Ext{UncompressedSize: &one}}
	extras = withExtra(extras, Zip64Ext{UncompressedSize: &two})
	if len(extras) != 1 {
		t.Fatalf("len = %d, want 1", len(extras))
	}
	z := extras[0].(Zip64Ext)
	if *z.UncompressedSize != 2 {
		t.Errorf("UncompressedSize = %d, want 2", *z.UncompressedSize)
	}
}
