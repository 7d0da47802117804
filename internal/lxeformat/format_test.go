package lxeformat

import (
	"bytes"
	"testing"
)

func TestWriteParseFooterRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if _, err := WriteFooter(&buf, 12345); err != nil {
		t.Fatalf("WriteFooter: %v", err)
	}
	offset, ok := ParseFooter(buf.Bytes())
	if !ok {
		t.Fatalf("ParseFooter: expected ok")
	}
	if offset != 12345 {
		t.Errorf("offset = %d, want 12345", offset)
	}
}

func TestParseFooterRejectsBadMagic(t *testing.T) {
	b := make([]byte, FooterLen)
	if _, ok := ParseFooter(b); ok {
		t.Errorf("expected ok=false for all-zero footer")
	}
}

func TestParseFooterShortInput(t *testing.T) {
	if _, ok := ParseFooter([]byte("short")); ok {
		t.Errorf("expected ok=false for short input")
	}
}

func TestWriteHeaderRejectsOversizeMetadata(t *testing.T) {
	var buf bytes.Buffer
	big := make([]byte, MaxMetadataLen+1)
	if _, err := WriteHeader(&buf, big); err == nil {
		t.Errorf("expected error for oversize metadata")
	}
}

func TestWriteHeaderParseHeaderLenRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	meta := []byte(`{"format_version":1}`)
	if _, err := WriteHeader(&buf, meta); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}
	b := buf.Bytes()
	if !bytes.Equal(b[:8], Magic[:]) {
		t.Fatalf("header magic mismatch")
	}
	n, err := ParseHeaderLen(b[8:12])
	if err != nil {
		t.Fatalf("ParseHeaderLen: %v", err)
	}
	if int(n) != len(meta) {
		t.Errorf("len = %d, want %d", n, len(meta))
	}
	if !bytes.Equal(b[12:12+n], meta) {
		t.Errorf("metadata bytes mismatch")
	}
}

func TestFindLastMagic(t *testing.T) {
	buf := append([]byte("leading junk"), Magic[:]...)
	buf = append(buf, []byte("more stuff")...)
	buf = append(buf, Magic[:]...)
	buf = append(buf, []byte("trailing")...)

	idx := FindLastMagic(buf)
	want := len(buf) - len("trailing") - len(Magic)
	if idx != want {
		t.Errorf("FindLastMagic = %d, want %d", idx, want)
	}
}

func TestFindLastMagicNotFound(t *testing.T) {
	if idx := FindLastMagic([]byte("no magic here at all")); idx != -1 {
		t.Errorf("FindLastMagic = %d, want -1", idx)
	}
}
