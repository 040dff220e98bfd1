package omron

import (
	"testing"
	"time"
)

func newTestEngine(t *testing.T, model string, words map[uint16]uint16) (*engine, *fakeTransport) {
	t.Helper()
	tr := &fakeTransport{}
	tr.onExchange = func(frame []byte) []byte {
		sid := frame[9]
		cmd := uint16(frame[10])<<8 | uint16(frame[11])
		switch cmd {
		case cmdCPUUnitData:
			return controllerInfoResponse(sid, model)
		case cmdMemoryAreaRead:
			addr := uint16(frame[13])<<8 | uint16(frame[14])
			count := uint16(frame[16])<<8 | uint16(frame[17])
			h := newHeader(0x02, 0x01, sid)
			resp := []byte{0xC1, h.RSV, h.GCT, h.DNA, h.DA1, h.DA2, h.SNA, h.SA1, h.SA2, h.SID}
			resp = append(resp, byte(cmdMemoryAreaRead>>8), byte(cmdMemoryAreaRead&0xFF), 0x00, 0x00)
			for i := uint16(0); i < count; i++ {
				w := words[addr+i]
				resp = append(resp, byte(w>>8), byte(w))
			}
			return resp
		case cmdMemoryAreaWrite:
			h := newHeader(0x02, 0x01, sid)
			return []byte{0xC1, h.RSV, h.GCT, h.DNA, h.DA1, h.DA2, h.SNA, h.SA1, h.SA2, h.SID,
				byte(cmdMemoryAreaWrite >> 8), byte(cmdMemoryAreaWrite & 0xFF), 0x00, 0x00}
		default:
			h := newHeader(0x02, 0x01, sid)
			return []byte{0xC1, h.RSV, h.GCT, h.DNA, h.DA1, h.DA2, h.SNA, h.SA1, h.SA2, h.SID,
				frame[10], frame[11], 0x00, 0x00}
		}
	}
	ch := newChannel(tr, func() transport { return tr }, time.Second, 1, newTestLogger())
	sess := newSession(ch)
	e := newEngine(sess, 20*time.Millisecond)
	return e, tr
}

func TestEngineRegisterTagAndPollPublishesChange(t *testing.T) {
	words := map[uint16]uint16{100: 7}
	e, _ := newTestEngine(t, "NJ501-1500", words)

	if err := e.registerTag("Speed", "D100", KindUint16); err != nil {
		t.Fatalf("registerTag: %v", err)
	}

	entry, ok := e.lookupTag("speed")
	if !ok {
		t.Fatal("expected case-insensitive lookup to find tag")
	}
	stream, unsubscribe := entry.stream.subscribe()
	defer unsubscribe()

	e.pollOnce()

	select {
	case v := <-stream:
		if v.(uint16) != 7 {
			t.Fatalf("got %v, want 7", v)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for published value")
	}
}

func TestEngineRegisterTagRejectsBitAddressForNonBool(t *testing.T) {
	e, _ := newTestEngine(t, "NJ501-1500", nil)
	if err := e.registerTag("Flag", "D10.3", KindUint16); err == nil {
		t.Fatal("expected error for bit address on non-bool kind")
	}
}

func TestEngineScheduleWriteReportsErrorForUnknownTag(t *testing.T) {
	e, _ := newTestEngine(t, "NJ501-1500", nil)
	errs, unsubscribe := e.errs.subscribe()
	defer unsubscribe()

	e.scheduleWrite("nonexistent", 1)

	select {
	case err := <-errs:
		if err == nil {
			t.Fatal("expected non-nil error")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for error")
	}
}

func TestEngineStartStop(t *testing.T) {
	words := map[uint16]uint16{100: 1}
	e, _ := newTestEngine(t, "NJ501-1500", words)
	if err := e.registerTag("Speed", "D100", KindUint16); err != nil {
		t.Fatalf("registerTag: %v", err)
	}

	e.start()
	time.Sleep(60 * time.Millisecond)
	e.stop()

	entry, _ := e.lookupTag("speed")
	entry.mu.Lock()
	hasVal := entry.hasVal
	entry.mu.Unlock()
	if !hasVal {
		t.Fatal("expected at least one poll cycle to have run")
	}
}

func TestEngineNormalizeTagNameCaseInsensitive(t *testing.T) {
	if normalizeTagName("Speed") != normalizeTagName("SPEED") {
		t.Fatal("expected case-insensitive normalization")
	}
}
