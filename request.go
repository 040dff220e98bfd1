package omron

import "encoding/binary"

// FINS command codes (function, sub-function), as sent in the two bytes
// immediately following the header (§4.2).
const (
	cmdMemoryAreaRead  uint16 = 0x0101
	cmdMemoryAreaWrite uint16 = 0x0102
	cmdCPUUnitData     uint16 = 0x0501
	cmdReadClock       uint16 = 0x0701
	cmdWriteClock       uint16 = 0x0702
	cmdCycleTime       uint16 = 0x0620
)

// header is the fixed 10-byte FINS header prepended to every request.
type header struct {
	ICF byte
	RSV byte
	GCT byte
	DNA byte
	DA1 byte // destination node
	DA2 byte
	SNA byte
	SA1 byte // source node
	SA2 byte
	SID byte // service id
}

func (h header) bytes() []byte {
	return []byte{h.ICF, h.RSV, h.GCT, h.DNA, h.DA1, h.DA2, h.SNA, h.SA1, h.SA2, h.SID}
}

// newHeader builds the standard request header (§4.2): ICF 0x80 (command,
// response required), RSV 0x00, GCT 0x02 (max two gateways), networks 0x00,
// units 0x00, destination/source node as given.
func newHeader(destNode, srcNode, sid byte) header {
	return header{
		ICF: 0x80,
		RSV: 0x00,
		GCT: 0x02,
		DNA: 0x00,
		DA1: destNode,
		DA2: 0x00,
		SNA: 0x00,
		SA1: srcNode,
		SA2: 0x00,
		SID: sid,
	}
}

// request is a fully-assembled FINS message ready to be framed by a
// channel (§4.4, §4.5).
type request struct {
	Header  header
	Command uint16
	Payload []byte
}

func (r request) bytes() []byte {
	out := make([]byte, 0, 10+2+len(r.Payload))
	out = append(out, r.Header.bytes()...)
	out = append(out, byte(r.Command>>8), byte(r.Command))
	out = append(out, r.Payload...)
	return out
}

// buildMemoryReadPayload assembles the payload for Memory Area Read, word
// or bit form depending on area (word-code vs bit-code area byte is chosen
// by the caller, not here — see buildReadWordsRequest/buildReadBitsRequest
// below).
func buildMemoryReadPayload(areaCode byte, addr uint16, bitOffset byte, count uint16) []byte {
	p := make([]byte, 6)
	p[0] = areaCode
	binary.BigEndian.PutUint16(p[1:3], addr)
	p[3] = bitOffset
	binary.BigEndian.PutUint16(p[4:6], count)
	return p
}

// buildMemoryWritePayload assembles the payload for Memory Area Write: the
// same 6-byte prefix as read, followed by the value bytes (one big-endian
// word pair per value for words, one byte per value for bits).
func buildMemoryWritePayload(areaCode byte, addr uint16, bitOffset byte, count uint16, values []byte) []byte {
	p := make([]byte, 0, 6+len(values))
	p = append(p, buildMemoryReadPayload(areaCode, addr, bitOffset, count)...)
	p = append(p, values...)
	return p
}

// buildReadWordsRequest builds a Memory Area Read (Word) request.
func buildReadWordsRequest(destNode, srcNode, sid byte, area Area, addr, count uint16) request {
	return request{
		Header:  newHeader(destNode, srcNode, sid),
		Command: cmdMemoryAreaRead,
		Payload: buildMemoryReadPayload(area.wordCode(), addr, 0x00, count),
	}
}

// buildReadBitsRequest builds a Memory Area Read (Bit) request.
func buildReadBitsRequest(destNode, srcNode, sid byte, area Area, addr uint16, bitOffset byte, count uint16) request {
	return request{
		Header:  newHeader(destNode, srcNode, sid),
		Command: cmdMemoryAreaRead,
		Payload: buildMemoryReadPayload(area.bitCode(), addr, bitOffset, count),
	}
}

// buildWriteWordsRequest builds a Memory Area Write (Word) request. Each
// value is written big-endian.
func buildWriteWordsRequest(destNode, srcNode, sid byte, area Area, addr uint16, words []uint16) request {
	values := make([]byte, len(words)*2)
	for i, w := range words {
		binary.BigEndian.PutUint16(values[i*2:], w)
	}
	return request{
		Header:  newHeader(destNode, srcNode, sid),
		Command: cmdMemoryAreaWrite,
		Payload: buildMemoryWritePayload(area.wordCode(), addr, 0x00, uint16(len(words)), values),
	}
}

// buildWriteBitsRequest builds a Memory Area Write (Bit) request, one byte
// per bit (0x00 or 0x01).
func buildWriteBitsRequest(destNode, srcNode, sid byte, area Area, addr uint16, bitOffset byte, bits []bool) request {
	values := make([]byte, len(bits))
	for i, b := range bits {
		if b {
			values[i] = 0x01
		}
	}
	return request{
		Header:  newHeader(destNode, srcNode, sid),
		Command: cmdMemoryAreaWrite,
		Payload: buildMemoryWritePayload(area.bitCode(), addr, bitOffset, uint16(len(bits)), values),
	}
}

// buildReadCPUUnitDataRequest builds a Read CPU Unit Data request (single
// zero byte payload).
func buildReadCPUUnitDataRequest(destNode, srcNode, sid byte) request {
	return request{
		Header:  newHeader(destNode, srcNode, sid),
		Command: cmdCPUUnitData,
		Payload: []byte{0x00},
	}
}

// buildReadClockRequest builds a Read Clock request (empty payload).
func buildReadClockRequest(destNode, srcNode, sid byte) request {
	return request{
		Header:  newHeader(destNode, srcNode, sid),
		Command: cmdReadClock,
		Payload: nil,
	}
}

// buildWriteClockRequest builds a Write Clock request: seven BCD bytes
// year%100, month, day, hour, minute, second, day-of-week.
func buildWriteClockRequest(destNode, srcNode, sid byte, year, month, day, hour, minute, second, dow byte) (request, error) {
	payload := make([]byte, 0, 7)
	for _, v := range []byte{year, month, day, hour, minute, second, dow} {
		b, err := ByteToBCD(v)
		if err != nil {
			return request{}, err
		}
		payload = append(payload, b[0])
	}
	return request{
		Header:  newHeader(destNode, srcNode, sid),
		Command: cmdWriteClock,
		Payload: payload,
	}, nil
}

// buildReadCycleTimeRequest builds a Read Cycle Time request (single byte
// 0x01, meaning "reset statistics after read" is not requested).
func buildReadCycleTimeRequest(destNode, srcNode, sid byte) request {
	return request{
		Header:  newHeader(destNode, srcNode, sid),
		Command: cmdCycleTime,
		Payload: []byte{0x01},
	}
}
