package omron

import "testing"

func TestLayoutRoundTrip(t *testing.T) {
	cases := []struct {
		kind  Kind
		value any
	}{
		{KindBool, true},
		{KindBool, false},
		{KindByte, byte(0xAB)},
		{KindInt16, int16(-1234)},
		{KindUint16, uint16(54321)},
		{KindInt32, int32(-123456789)},
		{KindUint32, uint32(3000000000)},
		{KindFloat32, float32(3.14)},
		{KindFloat64, float64(2.718281828)},
		{KindBCD16, int16(1234)},
		{KindUBCD16, uint16(9876)},
		{KindBCD32, int32(12345678)},
		{KindUBCD32, uint32(87654321)},
	}

	for _, c := range cases {
		words, err := encodeValue(c.kind, c.value, 0)
		if err != nil {
			t.Fatalf("%v: encodeValue: %v", c.kind, err)
		}
		got, err := decodeValue(c.kind, words)
		if err != nil {
			t.Fatalf("%v: decodeValue: %v", c.kind, err)
		}
		if got != c.value {
			t.Errorf("%v round trip: got %v, want %v", c.kind, got, c.value)
		}
	}
}

func TestLayoutString(t *testing.T) {
	words, err := encodeValue(KindString, "AB", 4)
	if err != nil {
		t.Fatalf("encodeValue: %v", err)
	}
	// "AB" in a 4-char field: word0 = 'A','B', word1 = 0,0
	if len(words) != 2 {
		t.Fatalf("got %d words, want 2", len(words))
	}
	if words[0] != 0x4142 || words[1] != 0x0000 {
		t.Errorf("got %04X %04X, want 4142 0000", words[0], words[1])
	}

	got, err := decodeValue(KindString, words)
	if err != nil {
		t.Fatalf("decodeValue: %v", err)
	}
	if got != "AB" {
		t.Errorf("got %q, want %q", got, "AB")
	}
}

func TestLayoutInt32HighWordFirst(t *testing.T) {
	// Scenario 3: write int32 0x11223344 to D200 -> payload words 0x1122, 0x3344.
	words, err := encodeValue(KindInt32, int32(0x11223344), 0)
	if err != nil {
		t.Fatalf("encodeValue: %v", err)
	}
	if words[0] != 0x1122 || words[1] != 0x3344 {
		t.Errorf("got %04X %04X, want 1122 3344", words[0], words[1])
	}
}

func TestLayoutTypeMismatch(t *testing.T) {
	if _, err := encodeValue(KindInt16, "not an int16", 0); err == nil {
		t.Fatal("expected type mismatch error")
	}
}
