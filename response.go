package omron

import (
	"encoding/binary"
	"fmt"
)

// response is a parsed FINS response: header, echoed command, response
// code, and payload bytes (§3, §4.3).
type response struct {
	Header   header
	Command  uint16
	MainCode byte
	SubCode  byte
	Relay    bool
	Payload  []byte
}

// minResponseLength is the minimum valid FINS response length: 10-byte
// header + 2-byte command + 2-byte response code (§4.3).
const minResponseLength = 14

// parseResponse validates and decodes a raw FINS response against the
// request that solicited it. A service-id or function/sub-function echo
// mismatch yields ErrProtocolEcho; svcMismatch additionally reports whether
// the mismatch was specifically in the service id, which callers use to
// decide whether a channel purge is warranted (§4.3, §4.6).
func parseResponse(data []byte, req request) (resp response, svcMismatch bool, err error) {
	if len(data) < minResponseLength {
		return response{}, false, fmt.Errorf("%w: response length %d below minimum %d", ErrProtocolFraming, len(data), minResponseLength)
	}
	if data[0] != 0xC0 && data[0] != 0xC1 {
		return response{}, false, fmt.Errorf("%w: invalid FINS header start byte 0x%02X", ErrProtocolFraming, data[0])
	}

	h := header{
		ICF: data[0], RSV: data[1], GCT: data[2],
		DNA: data[3], DA1: data[4], DA2: data[5],
		SNA: data[6], SA1: data[7], SA2: data[8],
		SID: data[9],
	}
	cmd := binary.BigEndian.Uint16(data[10:12])
	codeByte0 := data[12]
	codeByte1 := data[13]

	if cmd != req.Command {
		return response{}, false, fmt.Errorf("%w: command echo 0x%04X != request 0x%04X", ErrProtocolEcho, cmd, req.Command)
	}
	if h.SID != req.Header.SID {
		return response{}, true, fmt.Errorf("%w: service-id echo 0x%02X != request 0x%02X", ErrProtocolEcho, h.SID, req.Header.SID)
	}

	resp = response{
		Header:   h,
		Command:  cmd,
		Relay:    codeByte0&0x80 != 0,
		MainCode: codeByte0 & 0x7F,
		SubCode:  codeByte1 & 0x3F,
		Payload:  data[14:],
	}
	return resp, false, nil
}

// checkResponseCode raises the appropriate structured error for a non-OK
// response code: ErrNetworkRelay if the relay bit is set, otherwise a
// FinsError wrapping ErrFins if (main, sub) != (0, 0).
func checkResponseCode(resp response) error {
	if resp.Relay {
		return fmt.Errorf("%w: main=0x%02X sub=0x%02X", ErrNetworkRelay, resp.MainCode, resp.SubCode)
	}
	if resp.MainCode == 0 && resp.SubCode == 0 {
		return nil
	}
	return &FinsError{Main: resp.MainCode, Sub: resp.SubCode}
}

// FinsError carries a non-zero FINS main/sub response code and its
// canonical message (§4.3, §7). Use errors.As to recover it and errors.Is
// against ErrFins to match it generically.
type FinsError struct {
	Main byte
	Sub  byte
}

func (e *FinsError) Error() string {
	return fmt.Sprintf("omron: FINS error main=0x%02X sub=0x%02X: %s", e.Main, e.Sub, e.message())
}

func (e *FinsError) Unwrap() error { return ErrFins }

// message returns the canonical FINS error text for (main, sub), preserving
// the full case table from the published end-code reference (§4.3): a
// specific message for documented sub-codes and a generic fallback for
// everything else under a known main code.
func (e *FinsError) message() string {
	switch e.Main {
	case 0x01: // Local node error
		switch e.Sub {
		case 0x01:
			return "local node not in network"
		case 0x02:
			return "token timeout"
		case 0x03:
			return "retries failed"
		case 0x04:
			return "too many send frames"
		case 0x05:
			return "node address range error"
		case 0x06:
			return "node address duplication"
		default:
			return "local node error"
		}
	case 0x02: // Destination node error
		switch e.Sub {
		case 0x01:
			return "destination node not in network"
		case 0x02:
			return "unit missing"
		case 0x03:
			return "third node missing"
		case 0x04:
			return "destination node busy"
		case 0x05:
			return "response timeout"
		default:
			return "destination node error"
		}
	case 0x03: // Controller error
		switch e.Sub {
		case 0x01:
			return "communications controller error"
		case 0x02:
			return "CPU unit error"
		case 0x03:
			return "board error"
		default:
			return "controller error"
		}
	case 0x04: // Service unsupported
		switch e.Sub {
		case 0x01:
			return "undefined command"
		case 0x02:
			return "not supported by model/version"
		default:
			return "service unsupported"
		}
	case 0x05: // Routing error
		switch e.Sub {
		case 0x01:
			return "destination node not in routing table"
		case 0x02:
			return "routing table not registered"
		case 0x03:
			return "routing table error"
		case 0x04:
			return "too many relays"
		default:
			return "routing error"
		}
	case 0x10: // Command format error
		switch e.Sub {
		case 0x01:
			return "command too long"
		case 0x02:
			return "command too short"
		case 0x03:
			return "elements/data mismatch"
		case 0x04:
			return "command format error"
		case 0x05:
			return "header error"
		default:
			return "command format error"
		}
	case 0x11: // Parameter error
		switch e.Sub {
		case 0x01:
			return "area classification missing"
		case 0x02:
			return "access size error"
		case 0x03:
			return "address range error"
		case 0x04:
			return "address range exceeded"
		case 0x06:
			return "program missing"
		case 0x09:
			return "relational error"
		case 0x0A:
			return "duplicate data access"
		case 0x0B:
			return "response too long"
		case 0x0C:
			return "parameter error"
		default:
			return "parameter error"
		}
	case 0x20: // Read not possible
		switch e.Sub {
		case 0x02:
			return "protected"
		case 0x03:
			return "table missing"
		case 0x04:
			return "data missing"
		case 0x05:
			return "program missing"
		case 0x06:
			return "file missing"
		case 0x07:
			return "data mismatch"
		default:
			return "read not possible"
		}
	case 0x21: // Write not possible
		switch e.Sub {
		case 0x01:
			return "read-only"
		case 0x02:
			return "protected"
		case 0x03:
			return "cannot register"
		case 0x05:
			return "program missing"
		case 0x06:
			return "file missing"
		case 0x07:
			return "file name already exists"
		case 0x08:
			return "cannot change"
		default:
			return "write not possible"
		}
	case 0x22: // Mode conflict
		switch e.Sub {
		case 0x01:
			return "not in RUN/MONITOR mode"
		case 0x02:
			return "not in STOP mode"
		case 0x03:
			return "not in PROGRAM mode"
		case 0x04:
			return "not in DEBUG mode"
		case 0x05:
			return "not in MONITOR mode"
		case 0x06:
			return "not in RUN mode"
		case 0x07:
			return "PLC is simulating"
		default:
			return "mode conflict"
		}
	case 0x23:
		return "no device at specified address"
	case 0x24: // Cannot start/stop
		switch e.Sub {
		case 0x01:
			return "no such device"
		default:
			return "cannot start/stop"
		}
	default:
		return "unknown FINS error"
	}
}

// CPUStatus is the decoded payload of a Read CPU Status response.
type CPUStatus struct {
	Running bool
	Mode    byte
	Fatal   bool
	NonFatal bool
}

// parseCPUStatus decodes a Read CPU Status response payload.
func parseCPUStatus(data []byte) (CPUStatus, error) {
	if len(data) < 3 {
		return CPUStatus{}, fmt.Errorf("%w: CPU status payload too short (%d bytes)", ErrProtocolFraming, len(data))
	}
	status := data[0]
	return CPUStatus{
		Running:  status&0x01 != 0,
		Mode:     data[1],
		Fatal:    status&0x40 != 0,
		NonFatal: status&0x80 != 0,
	}, nil
}

// ControllerInfo is the decoded payload of Read CPU Unit Data: 40 reserved
// bytes, 12 area bytes, then 20-byte NUL-terminated model and version
// strings (§4.3).
type ControllerInfo struct {
	Model   string
	Version string
}

const (
	controllerInfoReservedLen = 40
	controllerInfoAreaLen     = 12
	controllerInfoFieldLen    = 20
)

func parseControllerInfo(data []byte) (ControllerInfo, error) {
	need := controllerInfoReservedLen + controllerInfoAreaLen + 2*controllerInfoFieldLen
	if len(data) < need {
		return ControllerInfo{}, fmt.Errorf("%w: controller data payload too short (%d bytes, need %d)", ErrProtocolFraming, len(data), need)
	}
	offset := controllerInfoReservedLen + controllerInfoAreaLen
	model := nulTerminated(data[offset : offset+controllerInfoFieldLen])
	version := nulTerminated(data[offset+controllerInfoFieldLen : offset+2*controllerInfoFieldLen])
	return ControllerInfo{Model: model, Version: version}, nil
}

func nulTerminated(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// ClockResult is the decoded payload of a Read Clock response.
type ClockResult struct {
	Year, Month, Day       int
	Hour, Minute, Second   int
	DayOfWeek              int
}

// parseClock decodes seven packed-BCD clock bytes, disambiguating the
// two-digit year per §4.3: <70 => 2000+yy, else <100 => 1900+yy.
func parseClock(data []byte) (ClockResult, error) {
	if len(data) < 7 {
		return ClockResult{}, fmt.Errorf("%w: clock payload too short (%d bytes)", ErrProtocolFraming, len(data))
	}
	yy, err := BCDToByte(data[0:1])
	if err != nil {
		return ClockResult{}, err
	}
	month, err := BCDToByte(data[1:2])
	if err != nil {
		return ClockResult{}, err
	}
	day, err := BCDToByte(data[2:3])
	if err != nil {
		return ClockResult{}, err
	}
	hour, err := BCDToByte(data[3:4])
	if err != nil {
		return ClockResult{}, err
	}
	minute, err := BCDToByte(data[4:5])
	if err != nil {
		return ClockResult{}, err
	}
	second, err := BCDToByte(data[5:6])
	if err != nil {
		return ClockResult{}, err
	}
	dow, err := BCDToByte(data[6:7])
	if err != nil {
		return ClockResult{}, err
	}

	year := 1900 + int(yy)
	if yy < 70 {
		year = 2000 + int(yy)
	}

	return ClockResult{
		Year: year, Month: int(month), Day: int(day),
		Hour: int(hour), Minute: int(minute), Second: int(second),
		DayOfWeek: int(dow),
	}, nil
}

// CycleTime is the decoded payload of a Read Cycle Time response, in
// milliseconds (§4.3: three 4-byte BCD groups in tenths of a millisecond).
type CycleTime struct {
	Average, Maximum, Minimum float64
}

func parseCycleTime(data []byte) (CycleTime, error) {
	if len(data) < 12 {
		return CycleTime{}, fmt.Errorf("%w: cycle time payload too short (%d bytes)", ErrProtocolFraming, len(data))
	}
	avg, err := BCDToUint32(data[0:4])
	if err != nil {
		return CycleTime{}, err
	}
	max, err := BCDToUint32(data[4:8])
	if err != nil {
		return CycleTime{}, err
	}
	min, err := BCDToUint32(data[8:12])
	if err != nil {
		return CycleTime{}, err
	}
	return CycleTime{
		Average: float64(avg) / 10,
		Maximum: float64(max) / 10,
		Minimum: float64(min) / 10,
	}, nil
}

// decodeWords deserializes payload bytes into big-endian uint16 words.
func decodeWords(payload []byte, count int) ([]uint16, error) {
	if len(payload) < count*2 {
		return nil, fmt.Errorf("%w: payload has %d bytes, need %d for %d words", ErrProtocolFraming, len(payload), count*2, count)
	}
	words := make([]uint16, count)
	for i := range words {
		words[i] = binary.BigEndian.Uint16(payload[i*2:])
	}
	return words, nil
}

// decodeBits deserializes payload bytes into booleans, one byte per bit.
func decodeBits(payload []byte, count int) ([]bool, error) {
	if len(payload) < count {
		return nil, fmt.Errorf("%w: payload has %d bytes, need %d for %d bits", ErrProtocolFraming, len(payload), count, count)
	}
	bits := make([]bool, count)
	for i := range bits {
		bits[i] = payload[i] != 0
	}
	return bits, nil
}
