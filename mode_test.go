package zipshape

import (
	"os"
	"testing"
	"time"
)

// timeZero returns a fixed instant with even seconds (MS-DOS time has only
// 2-second resolution) in UTC, matching what msDosTimeToTime always
// produces.
func timeZero() time.Time {
	return time.Date(2024, time.March, 14, 9, 26, 30, 0, time.UTC)
}

func TestModeRoundTrip(t *testing.T) {
	cases := []os.FileMode{
		0644,
		0755 | os.ModeDir,
		0777 | os.ModeSymlink,
	}
	for _, mode := range cases {
		var c CentralEntry
		c = c.SetMode(mode)
		got := c.Mode()
		if got.Perm() != mode.Perm() {
			t.Errorf("SetMode(%v).Mode() perm = %v, want %v", mode, got.Perm(), mode.Perm())
		}
		if got&os.ModeType != mode&os.ModeType {
			t.Errorf("SetMode(%v).Mode() type = %v, want %v", mode, got&os.ModeType, mode&os.ModeType)
		}
	}
}

func TestNewLocalHeaderSetsUTF8Flag(t *testing.T) {
	h := NewLocalHeader("日本.txt", timeZero())
	if h.Flags&flagUTF8 == 0 {
		t.Error("Flags missing UTF-8 bit for a name requiring it")
	}

	ascii := NewLocalHeader("plain.txt", timeZero())
	if ascii.Flags&flagUTF8 != 0 {
		t.Error("Flags set UTF-8 bit for a plain ASCII name")
	}
}

func TestMsDosTimeRoundTrip(t *testing.T) {
	want := timeZero()
	date, tm := timeToMsDosTime(want)
	got := msDosTimeToTime(date, tm)
	if !got.Equal(want) {
		t.Errorf("round trip = %v, want %v", got, want)
	}
}
