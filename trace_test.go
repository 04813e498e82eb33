package zipshape

import (
	"bytes"
	"strings"
	"testing"
)

func TestTraceFormatsSections(t *testing.T) {
	records := []Record{
		LocalHeader{ExtractVersion: versionDefault, Name: "a.txt", CRC32: 0xdeadbeef},
		NewFileDataFromBytes([]byte("x")),
		CentralEntry{Name: "a.txt"},
		EndRecord{},
	}

	var buf bytes.Buffer
	if err := Trace(&buf, records); err != nil {
		t.Fatalf("Trace: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"------ local-header ------",
		"------ central-entry ------",
		"------ end-record ------",
		"crc32",
		"0xdeadbeef",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("trace output missing %q:\n%s", want, out)
		}
	}
}

func TestTraceViaEncodeOptions(t *testing.T) {
	records := []Record{
		LocalHeader{ExtractVersion: versionDefault, Name: "a.txt"},
		NewFileDataFromBytes([]byte("x")),
		CentralEntry{Name: "a.txt", CompressedSize: 1, UncompressedSize: 1},
		EndRecord{},
	}
	var out, trace bytes.Buffer
	err := NewEncoder(&out, EncodeOptions{TraceSink: &trace}).Encode(records)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if trace.Len() == 0 {
		t.Error("TraceSink received nothing")
	}
}
