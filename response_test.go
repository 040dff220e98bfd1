package omron

import (
	"errors"
	"testing"
)

func fakeRequestHeader(sid byte) request {
	return request{Header: newHeader(0x01, 0x02, sid), Command: cmdMemoryAreaRead}
}

func TestParseResponse(t *testing.T) {
	t.Run("scenario 1: read one word from DM100", func(t *testing.T) {
		req := request{Header: newHeader(0x00, 0x00, 0x05), Command: cmdMemoryAreaRead}
		data := append(append([]byte{0xC0, 0x00, 0x02, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x05}, 0x01, 0x01), 0x00, 0x00, 0x01, 0x2C)
		resp, mismatch, err := parseResponse(data, req)
		if err != nil {
			t.Fatalf("parseResponse: %v", err)
		}
		if mismatch {
			t.Fatal("unexpected service-id mismatch")
		}
		if err := checkResponseCode(resp); err != nil {
			t.Fatalf("checkResponseCode: %v", err)
		}
		words, err := decodeWords(resp.Payload, 1)
		if err != nil {
			t.Fatalf("decodeWords: %v", err)
		}
		if words[0] != 300 {
			t.Errorf("got %d, want 300", words[0])
		}
	})

	t.Run("scenario 2: read bit D10.3", func(t *testing.T) {
		req := request{Header: newHeader(0x00, 0x00, 0x07), Command: cmdMemoryAreaRead}
		data := append(append([]byte{0xC0, 0x00, 0x02, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x07}, 0x01, 0x01), 0x00, 0x00, 0x01)
		resp, _, err := parseResponse(data, req)
		if err != nil {
			t.Fatalf("parseResponse: %v", err)
		}
		bits, err := decodeBits(resp.Payload, 1)
		if err != nil {
			t.Fatalf("decodeBits: %v", err)
		}
		if !bits[0] {
			t.Error("want true")
		}
	})

	t.Run("scenario 5: read clock", func(t *testing.T) {
		clock, err := parseClock([]byte{0x24, 0x01, 0x02, 0x03, 0x04, 0x05, 0x03})
		if err != nil {
			t.Fatalf("parseClock: %v", err)
		}
		want := ClockResult{Year: 2024, Month: 1, Day: 2, Hour: 3, Minute: 4, Second: 5, DayOfWeek: 3}
		if clock != want {
			t.Errorf("got %+v, want %+v", clock, want)
		}
	})

	t.Run("scenario 7: service-id mismatch", func(t *testing.T) {
		req := fakeRequestHeader(0x09)
		data := append(append([]byte{0xC0, 0x00, 0x02, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x0A}, 0x01, 0x01), 0x00, 0x00)
		_, mismatch, err := parseResponse(data, req)
		if !errors.Is(err, ErrProtocolEcho) {
			t.Fatalf("got %v, want ErrProtocolEcho", err)
		}
		if !mismatch {
			t.Fatal("want service-id mismatch flagged for purge")
		}
	})

	t.Run("command echo mismatch", func(t *testing.T) {
		req := request{Header: newHeader(0x00, 0x00, 0x01), Command: cmdMemoryAreaRead}
		data := append(append([]byte{0xC0, 0x00, 0x02, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x01}, 0x01, 0x02), 0x00, 0x00)
		_, _, err := parseResponse(data, req)
		if !errors.Is(err, ErrProtocolEcho) {
			t.Fatalf("got %v, want ErrProtocolEcho", err)
		}
	})

	t.Run("too short", func(t *testing.T) {
		_, _, err := parseResponse([]byte{0xC0, 0x00}, fakeRequestHeader(0))
		if !errors.Is(err, ErrProtocolFraming) {
			t.Fatalf("got %v, want ErrProtocolFraming", err)
		}
	})

	t.Run("bad header start byte", func(t *testing.T) {
		data := make([]byte, 14)
		data[0] = 0xFF
		_, _, err := parseResponse(data, fakeRequestHeader(0))
		if !errors.Is(err, ErrProtocolFraming) {
			t.Fatalf("got %v, want ErrProtocolFraming", err)
		}
	})

	t.Run("network relay bit set", func(t *testing.T) {
		resp := response{Relay: true, MainCode: 0x01, SubCode: 0x01}
		if err := checkResponseCode(resp); !errors.Is(err, ErrNetworkRelay) {
			t.Fatalf("got %v, want ErrNetworkRelay", err)
		}
	})

	t.Run("fins error code table has fallback for unlisted sub-codes", func(t *testing.T) {
		err := &FinsError{Main: 0x10, Sub: 0x7F}
		if err.message() == "" {
			t.Fatal("expected non-empty fallback message")
		}
		if !errors.Is(err, ErrFins) {
			t.Fatal("FinsError must unwrap to ErrFins")
		}
	})
}

func TestParseCycleTime(t *testing.T) {
	// Three round values in tenths of a ms, BCD-encoded: 500 (avg), 900 (max),
	// 100 (min), i.e. 50.0ms/90.0ms/10.0ms.
	avg, _ := Uint32ToBCD(500)
	max, _ := Uint32ToBCD(900)
	min, _ := Uint32ToBCD(100)
	data := append(append(avg, max...), min...)

	ct, err := parseCycleTime(data)
	if err != nil {
		t.Fatalf("parseCycleTime: %v", err)
	}
	if ct.Average != 50 || ct.Maximum != 90 || ct.Minimum != 10 {
		t.Errorf("got %+v", ct)
	}
}

func TestParseControllerInfo(t *testing.T) {
	data := make([]byte, controllerInfoReservedLen+controllerInfoAreaLen+2*controllerInfoFieldLen)
	offset := controllerInfoReservedLen + controllerInfoAreaLen
	copy(data[offset:], "NJ501-1300\x00")
	copy(data[offset+controllerInfoFieldLen:], "V1.08\x00")

	info, err := parseControllerInfo(data)
	if err != nil {
		t.Fatalf("parseControllerInfo: %v", err)
	}
	if info.Model != "NJ501-1300" || info.Version != "V1.08" {
		t.Errorf("got %+v", info)
	}
}
