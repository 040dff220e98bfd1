package omron

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Address is a parsed PLC memory address: an area, a word index, and
// optionally a bit index (single-bit access) or a bracketed length
// (string tags). Bit and Length are mutually exclusive (§3, §4.8).
type Address struct {
	Area    Area
	Word    uint16
	HasBit  bool
	Bit     byte // 0-15, valid only when HasBit
	HasLen  bool
	Len     uint16 // 1-999, valid only when HasLen
	Raw     string
}

// wordAddrPattern matches "<area><digits>[<len>]", e.g. "D100", "D300[4]".
var wordAddrPattern = regexp.MustCompile(`^([A-Za-z]+)(\d+)(?:\[(\d+)\])?$`)

// bitAddrPattern matches "<area><digits>.<bit>", e.g. "D10.3".
var bitAddrPattern = regexp.MustCompile(`^([A-Za-z]+)(\d+)\.(\d+)$`)

// ParseAddress parses a raw address string of the form
// "<area><digits>[.bit][ [len] ]" into an Address. Area prefixes are
// case-insensitive and drawn from {D, DM, C, CIO, W, H, A}.
func ParseAddress(raw string) (Address, error) {
	s := strings.TrimSpace(raw)

	if m := bitAddrPattern.FindStringSubmatch(s); m != nil {
		area, ok := areaFromPrefix(strings.ToUpper(m[1]))
		if !ok {
			return Address{}, fmt.Errorf("%w: unknown area prefix %q in %q", ErrAddressInvalid, m[1], raw)
		}
		word, err := strconv.ParseUint(m[2], 10, 16)
		if err != nil {
			return Address{}, fmt.Errorf("%w: word index %q in %q", ErrAddressInvalid, m[2], raw)
		}
		bit, err := strconv.ParseUint(m[3], 10, 8)
		if err != nil || bit > 15 {
			return Address{}, fmt.Errorf("%w: bit index %q out of range 0-15 in %q", ErrAddressInvalid, m[3], raw)
		}
		return Address{Area: area, Word: uint16(word), HasBit: true, Bit: byte(bit), Raw: raw}, nil
	}

	if m := wordAddrPattern.FindStringSubmatch(s); m != nil {
		area, ok := areaFromPrefix(strings.ToUpper(m[1]))
		if !ok {
			return Address{}, fmt.Errorf("%w: unknown area prefix %q in %q", ErrAddressInvalid, m[1], raw)
		}
		word, err := strconv.ParseUint(m[2], 10, 16)
		if err != nil {
			return Address{}, fmt.Errorf("%w: word index %q in %q", ErrAddressInvalid, m[2], raw)
		}
		addr := Address{Area: area, Word: uint16(word), Raw: raw}
		if m[3] != "" {
			length, err := strconv.ParseUint(m[3], 10, 16)
			if err != nil || length < 1 || length > 999 {
				return Address{}, fmt.Errorf("%w: length %q out of range 1-999 in %q", ErrAddressInvalid, m[3], raw)
			}
			addr.HasLen = true
			addr.Len = uint16(length)
		}
		return addr, nil
	}

	return Address{}, fmt.Errorf("%w: cannot parse %q", ErrAddressInvalid, raw)
}

// lengthFor returns the effective string length for this address (the
// bracketed length if present, otherwise the package default), valid only
// when the address is being interpreted as a KindString tag.
func (a Address) lengthFor() int {
	if a.HasLen {
		return int(a.Len)
	}
	return defaultStringLength
}
