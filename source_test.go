package zipshape

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"go4.org/readerutil"
)

// zerosReaderAt is an io.ReaderAt returning size zero bytes at any offset
// without ever allocating them, playing the same role the teacher's
// sameBytes plays in zip_test.go's sizeWithEnd helper for building huge
// synthetic archives cheaply.
type zerosReaderAt struct{ size int64 }

func (z zerosReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off >= z.size {
		return 0, io.EOF
	}
	n := len(p)
	if int64(n) > z.size-off {
		n = int(z.size - off)
	}
	for i := range p[:n] {
		p[i] = 0
	}
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// TestSourceOverReaderUtilJoin builds a Source spanning past the 32-bit
// size boundary without allocating gigabytes, the same trick
// readerutil.NewMultiReaderAt buys the teacher's TestOver65kFiles: a
// readerutil.SizeReaderAt already has the exact (io.ReaderAt, Size() int64)
// shape this package's Source interface names, so it plugs in directly.
func TestSourceOverReaderUtilJoin(t *testing.T) {
	const giant = int64(1) << 32
	trailer := []byte("END\n")

	joined := readerutil.NewMultiReaderAt(
		io.NewSectionReader(zerosReaderAt{size: giant}, 0, giant),
		sizedBytes(trailer),
	)

	var src Source = joined
	if src.Size() != giant+int64(len(trailer)) {
		t.Fatalf("Size() = %d, want %d", src.Size(), giant+int64(len(trailer)))
	}

	got := make([]byte, len(trailer))
	if _, err := src.ReadAt(got, giant); err != nil {
		t.Fatalf("ReadAt trailer: %v", err)
	}
	if string(got) != "END\n" {
		t.Errorf("trailer = %q, want %q", got, "END\n")
	}

	zero := make([]byte, 4)
	if _, err := src.ReadAt(zero, giant/2); err != nil {
		t.Fatalf("ReadAt midpoint: %v", err)
	}
	for _, b := range zero {
		if b != 0 {
			t.Errorf("midpoint byte = %d, want 0", b)
		}
	}
}

type sizedBytes []byte

func (s sizedBytes) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(s)) {
		return 0, io.EOF
	}
	n := copy(p, s[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (s sizedBytes) Size() int64 { return int64(len(s)) }

func TestFileSourceReadsThroughEncodeDecode(t *testing.T) {
	original := buildReferenceZip(t)
	path := filepath.Join(t.TempDir(), "fixture.zip")
	if err := os.WriteFile(path, original, 0o644); err != nil {
		t.Fatal(err)
	}

	src, err := NewFileSource(path)
	if err != nil {
		t.Fatalf("NewFileSource: %v", err)
	}
	defer src.Close()

	if src.Size() != int64(len(original)) {
		t.Fatalf("Size() = %d, want %d", src.Size(), len(original))
	}

	records, err := DecodeAll(src)
	if err != nil {
		t.Fatalf("DecodeAll: %v", err)
	}
	got, err := EncodeToBytes(records)
	if err != nil {
		t.Fatalf("EncodeToBytes: %v", err)
	}
	if string(got) != string(original) {
		t.Errorf("round trip through FileSource not bit-exact: got %d bytes, want %d bytes", len(got), len(original))
	}
}

func TestSourceBuilderJoinsContiguously(t *testing.T) {
	var b SourceBuilder
	b.AddBytes([]byte("hello"))
	b.AddBytes([]byte(", "))
	b.AddBytes([]byte("world"))
	src := b.Build()

	if src.Size() != 12 {
		t.Fatalf("Size() = %d, want 12", src.Size())
	}
	got := make([]byte, 12)
	if _, err := src.ReadAt(got, 0); err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if string(got) != "hello, world" {
		t.Errorf("got %q, want %q", got, "hello, world")
	}

	partial := make([]byte, 5)
	if _, err := src.ReadAt(partial, 5); err != nil {
		t.Fatalf("ReadAt spanning parts: %v", err)
	}
	if string(partial) != ", wor" {
		t.Errorf("got %q, want %q", partial, ", wor")
	}
}
