package zipshape

import (
	"fmt"
	"io"
	"os"
	"sort"
)

// Source is a random-access byte range a FileData can borrow from without
// copying. It is the simplified, context-free counterpart of the teacher's
// ReaderAt: this package never serves a request and has no cancellation
// boundary to plumb a context.Context through, so ReadAt drops the context
// parameter the teacher's ReadAtContext carried.
type Source interface {
	io.ReaderAt
	Size() int64
}

// memSource is a Source backed by an in-memory byte slice.
type memSource struct {
	data []byte
}

// NewMemSource wraps data as a Source. data is not copied; callers must not
// mutate it while any FileData still borrows from it.
func NewMemSource(data []byte) Source {
	return &memSource{data: data}
}

func (m *memSource) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("zipshape: negative ReadAt offset %d", off)
	}
	if off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (m *memSource) Size() int64 { return int64(len(m.data)) }

// FileSource is a Source backed by an open *os.File.
type FileSource struct {
	f    *os.File
	size int64
}

// NewFileSource opens path and wraps it as a Source. The caller must Close
// it when done; an Encoder or Decoder never closes a Source on the caller's
// behalf, since the caller may be streaming several archives from the same
// handle.
func NewFileSource(path string) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	return &FileSource{f: f, size: info.Size()}, nil
}

func (s *FileSource) ReadAt(p []byte, off int64) (int, error) { return s.f.ReadAt(p, off) }
func (s *FileSource) Size() int64                             { return s.size }
func (s *FileSource) Close() error                             { return s.f.Close() }

// joinedSource sequentially concatenates several sources into one, adapted
// from the teacher's multiReaderAt in io.go (sort.Search over part start
// offsets to locate the first part overlapping a read, then fan the read
// across as many subsequent parts as needed).
type joinedSource struct {
	parts []joinedPart
	size  int64
}

type joinedPart struct {
	offset int64
	src    Source
}

// SourceBuilder accumulates parts for a joinedSource in order.
type SourceBuilder struct {
	parts []joinedPart
	size  int64
}

// Add appends src to the join. Parts are read back in the order they were
// added, contiguously, with no gaps.
func (b *SourceBuilder) Add(src Source) {
	size := src.Size()
	if size == 0 {
		return
	}
	b.parts = append(b.parts, joinedPart{offset: b.size, src: src})
	b.size += size
}

// AddBytes is a convenience wrapper around Add(NewMemSource(data)).
func (b *SourceBuilder) AddBytes(data []byte) {
	b.Add(NewMemSource(data))
}

// Build finalizes the join into a single Source.
func (b *SourceBuilder) Build() Source {
	return &joinedSource{parts: b.parts, size: b.size}
}

func (j *joinedSource) endOffset(partIndex int) int64 {
	if partIndex == len(j.parts)-1 {
		return j.size
	}
	return j.parts[partIndex+1].offset
}

func (j *joinedSource) ReadAt(p []byte, off int64) (n int, err error) {
	if len(p) == 0 {
		return 0, nil
	}
	if off < 0 {
		return 0, fmt.Errorf("zipshape: negative ReadAt offset %d", off)
	}
	if off >= j.size {
		return 0, io.EOF
	}
	firstPart := sort.Search(len(j.parts), func(i int) bool {
		return j.endOffset(i) > off
	})
	for partIndex := firstPart; partIndex < len(j.parts) && len(p) > 0; partIndex++ {
		if partIndex > firstPart {
			off = j.parts[partIndex].offset
		}
		partRemaining := j.endOffset(partIndex) - off
		toRead := int64(len(p))
		if toRead > partRemaining {
			toRead = partRemaining
		}
		n2, err2 := j.parts[partIndex].src.ReadAt(p[:toRead], off-j.parts[partIndex].offset)
		n += n2
		if err2 != nil && err2 != io.EOF {
			return n, err2
		}
		p = p[n2:]
	}
	if len(p) > 0 {
		return n, io.EOF
	}
	return n, nil
}

func (j *joinedSource) Size() int64 { return j.size }
