package debuglog

import (
	"bytes"
	"strings"
	"testing"
)

func TestLoggerDisabledByDefault(t *testing.T) {
	var buf bytes.Buffer
	l := New()
	l.SetOutput(&buf)
	l.Log("test", "hello %d", 1)
	if buf.Len() != 0 {
		t.Fatalf("expected no output while disabled, got %q", buf.String())
	}
}

func TestLoggerEnabled(t *testing.T) {
	var buf bytes.Buffer
	l := New()
	l.SetOutput(&buf)
	l.SetEnabled(true)
	l.Log("test", "hello %d", 1)
	if !strings.Contains(buf.String(), "hello 1") {
		t.Fatalf("got %q", buf.String())
	}
}

func TestLoggerTXRX(t *testing.T) {
	var buf bytes.Buffer
	l := New()
	l.SetOutput(&buf)
	l.SetEnabled(true)
	l.TX("chan", []byte{0xC0, 0x01})
	l.RX("chan", []byte{0xC1, 0x02})
	out := buf.String()
	if !strings.Contains(out, "TX") || !strings.Contains(out, "RX") {
		t.Fatalf("got %q", out)
	}
}
