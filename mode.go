package zipshape

import (
	"os"
	"strings"
	"time"
	"unicode/utf8"
)

// Constants for the first byte of MadeByVersion / CreatorVersion, carried
// over from the teacher's struct.go.
const (
	creatorFAT    = 0
	creatorUnix   = 3
	creatorNTFS   = 11
	creatorVFAT   = 14
	creatorMacOSX = 19
)

const (
	sIFMT   = 0xf000
	sIFSOCK = 0xc000
	sIFLNK  = 0xa000
	sIFREG  = 0x8000
	sIFBLK  = 0x6000
	sIFDIR  = 0x4000
	sIFCHR  = 0x2000
	sIFIFO  = 0x1000
	sISUID  = 0x800
	sISGID  = 0x400
	sISVTX  = 0x200

	msdosDir      = 0x10
	msdosReadOnly = 0x01
)

// Mode returns the permission and mode bits encoded in a CentralEntry's
// MadeByVersion/ExternalAttrs, following the same creator-id dispatch the
// teacher's FileHeader.Mode used.
func (c CentralEntry) Mode() (mode os.FileMode) {
	switch c.MadeByVersion >> 8 {
	case creatorUnix, creatorMacOSX:
		mode = unixModeToFileMode(c.ExternalAttrs >> 16)
	case creatorNTFS, creatorVFAT, creatorFAT:
		mode = msdosModeToFileMode(c.ExternalAttrs)
	}
	if len(c.Name) > 0 && c.Name[len(c.Name)-1] == '/' {
		mode |= os.ModeDir
	}
	return mode
}

// SetMode returns a copy of c with MadeByVersion/ExternalAttrs rewritten to
// encode mode, always as a Unix creator (mirrors both the Unix and MS-DOS
// attribute bits, the way the teacher's SetMode does, for readers that only
// understand one of the two).
func (c CentralEntry) SetMode(mode os.FileMode) CentralEntry {
	c.MadeByVersion = c.MadeByVersion&0xff | creatorUnix<<8
	c.ExternalAttrs = fileModeToUnixMode(mode) << 16
	if mode&os.ModeDir != 0 {
		c.ExternalAttrs |= msdosDir
	}
	if mode&0200 == 0 {
		c.ExternalAttrs |= msdosReadOnly
	}
	return c
}

func msdosModeToFileMode(m uint32) (mode os.FileMode) {
	if m&msdosDir != 0 {
		mode = os.ModeDir | 0777
	} else {
		mode = 0666
	}
	if m&msdosReadOnly != 0 {
		mode &^= 0222
	}
	return mode
}

func fileModeToUnixMode(mode os.FileMode) uint32 {
	var m uint32
	switch mode & os.ModeType {
	default:
		m = sIFREG
	case os.ModeDir:
		m = sIFDIR
	case os.ModeSymlink:
		m = sIFLNK
	case os.ModeNamedPipe:
		m = sIFIFO
	case os.ModeSocket:
		m = sIFSOCK
	case os.ModeDevice:
		if mode&os.ModeCharDevice != 0 {
			m = sIFCHR
		} else {
			m = sIFBLK
		}
	}
	if mode&os.ModeSetuid != 0 {
		m |= sISUID
	}
	if mode&os.ModeSetgid != 0 {
		m |= sISGID
	}
	if mode&os.ModeSticky != 0 {
		m |= sISVTX
	}
	return m | uint32(mode&0777)
}

func unixModeToFileMode(m uint32) os.FileMode {
	mode := os.FileMode(m & 0777)
	switch m & sIFMT {
	case sIFBLK:
		mode |= os.ModeDevice
	case sIFCHR:
		mode |= os.ModeDevice | os.ModeCharDevice
	case sIFDIR:
		mode |= os.ModeDir
	case sIFIFO:
		mode |= os.ModeNamedPipe
	case sIFLNK:
		mode |= os.ModeSymlink
	case sIFREG:
	case sIFSOCK:
		mode |= os.ModeSocket
	}
	if m&sISGID != 0 {
		mode |= os.ModeSetgid
	}
	if m&sISUID != 0 {
		mode |= os.ModeSetuid
	}
	if m&sISVTX != 0 {
		mode |= os.ModeSticky
	}
	return mode
}

// timeToMsDosTime converts t to the legacy MS-DOS date/time fields, 2-second
// resolution, unchanged from the teacher's struct.go.
func timeToMsDosTime(t time.Time) (fDate, fTime uint16) {
	fDate = uint16(t.Day() + int(t.Month())<<5 + (t.Year()-1980)<<9)
	fTime = uint16(t.Second()/2 + t.Minute()<<5 + t.Hour()<<11)
	return
}

// msDosTimeToTime converts the legacy MS-DOS date/time fields back to a
// time.Time in UTC, the decode-side mirror the teacher never needed because
// it only ever wrote archives.
func msDosTimeToTime(fDate, fTime uint16) time.Time {
	return time.Date(
		int(fDate>>9)+1980,
		time.Month(fDate>>5&0xf),
		int(fDate&0x1f),
		int(fTime>>11),
		int(fTime>>5&0x3f),
		int(fTime&0x1f)*2,
		0,
		time.UTC,
	)
}

// detectUTF8 reports whether s is a valid UTF-8 string, and whether it must
// be considered UTF-8 (i.e. not compatible with CP-437 or the other common
// legacy encodings), unchanged from the teacher's writer.go.
func detectUTF8(s string) (valid, require bool) {
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		i += size
		if r < 0x20 || r > 0x7d || r == 0x5c {
			if !utf8.ValidRune(r) || (r == utf8.RuneError && size == 1) {
				return false, false
			}
			require = true
		}
	}
	return true, require
}

// flagUTF8 is the bit in LocalHeader/CentralEntry Flags marking Name and
// Comment as UTF-8, set automatically by NewLocalHeader when needed.
const flagUTF8 = 0x800

// NewLocalHeader builds a LocalHeader for name with sensible defaults:
// extract version 2.0, the UTF-8 flag set if name requires it, and mod
// time/date derived from modified. Mirrors the teacher's FileInfoHeader in
// spirit, adapted from an os.FileInfo constructor to one driven directly by
// the fields a test constructing a synthetic entry actually has on hand.
func NewLocalHeader(name string, modified time.Time) LocalHeader {
	h := LocalHeader{ExtractVersion: versionDefault, Name: name}
	h.ModDate, h.ModTime = timeToMsDosTime(modified)
	if valid, require := detectUTF8(name); require && valid {
		h.Flags |= flagUTF8
	}
	return h
}

// LocalHeaderFromFileInfo builds a LocalHeader from an os.FileInfo, the
// direct counterpart of the teacher's FileInfoHeader. The caller may need to
// rewrite Name to a full relative path, since fi.Name only ever returns the
// base name.
func LocalHeaderFromFileInfo(fi os.FileInfo) LocalHeader {
	name := fi.Name()
	if fi.IsDir() && !strings.HasSuffix(name, "/") {
		name += "/"
	}
	h := NewLocalHeader(name, fi.ModTime())
	if !fi.IsDir() {
		h.UncompressedSize = uint32(fi.Size())
	}
	return h
}

// Modified resolves h's ModDate/ModTime fields to a time.Time.
func (h LocalHeader) Modified() time.Time { return msDosTimeToTime(h.ModDate, h.ModTime) }

// Modified resolves c's ModDate/ModTime fields to a time.Time.
func (c CentralEntry) Modified() time.Time { return msDosTimeToTime(c.ModDate, c.ModTime) }
