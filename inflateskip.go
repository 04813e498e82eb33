package zipshape

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/klauspost/compress/flate"
)

// oneByteReaderAt turns a (Source, offset) pair into an io.Reader that
// never returns more than one byte per Read call. flate's decompressor (and
// the bufio.Reader it falls back to when its input isn't an io.ByteReader)
// only ever issues one underlying Read per buffer fill, so capping every
// Read at a single byte is what keeps it from pulling bytes past the end of
// the deflate stream and into whatever record follows — the only way to
// recover an exact compressed length when the caller never records one.
type oneByteReaderAt struct {
	src     Source
	pos     int64
	read    int64
}

func (r *oneByteReaderAt) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if r.pos >= r.src.Size() {
		return 0, io.EOF
	}
	n, err := r.src.ReadAt(p[:1], r.pos)
	if n > 0 {
		r.pos += int64(n)
		r.read += int64(n)
	}
	if err == io.EOF && n > 0 {
		err = nil
	}
	return n, err
}

// discoverCompressedLength inflates the Deflate stream starting at offset
// in src just far enough to find where it ends, discarding every
// decompressed byte. It is the only place this package runs an actual
// decompressor; it exists purely to recover the compressed length of a
// Deflate entry whose local header deferred crc32 and sizes to a trailing
// DataDescriptor with csize reported as 0 before that descriptor is read.
func discoverCompressedLength(src Source, offset int64) (int64, error) {
	counter := &oneByteReaderAt{src: src, pos: offset}
	fr := flate.NewReader(counter)
	defer fr.Close()
	if _, err := io.Copy(io.Discard, fr); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInflateFailed, err)
	}
	return counter.read, nil
}

// discoverStoredLength locates the end of a Store-method entry's data when
// its local header also deferred the size to a data descriptor, which
// leaves no decompression boundary to exploit. It scans forward one byte at
// a time, maintaining a running CRC32 of everything read so far, and stops
// at the first position whose next four bytes are the data-descriptor
// signature and whose following four bytes equal the CRC32 accumulated up
// to that position — the signature alone is not reliable evidence, since
// stored file content can legitimately contain it, but a position where the
// signature is followed by the correct checksum of everything preceding it
// is overwhelmingly unlikely to occur by chance in real data.
func discoverStoredLength(src Source, offset int64) (int64, error) {
	sum := crc32.NewIEEE()
	var b [1]byte
	pos := offset
	for {
		if pos+8 > src.Size() {
			return 0, ErrTruncated
		}
		var window [8]byte
		if _, err := src.ReadAt(window[:], pos); err != nil && err != io.EOF {
			return 0, err
		}
		if binary.LittleEndian.Uint32(window[:4]) == sigDataDescriptor &&
			binary.LittleEndian.Uint32(window[4:]) == sum.Sum32() {
			return pos - offset, nil
		}
		if _, err := src.ReadAt(b[:], pos); err != nil && err != io.EOF {
			return 0, err
		}
		sum.Write(b[:])
		pos++
	}
}
