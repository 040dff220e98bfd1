package omron

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// capability is the per-model invariant table, derived once from the
// classified PLCType and treated as read-only afterward (§3, §4.7).
type capability struct {
	maxReadWords  int
	maxWriteWords int
	bitAddressable bool
	auxSupported  bool
	auxCeiling    int
	dmCeiling     int
	cioCeiling    int
	workCeiling   int
	holdingCeiling int
	cycleTimeSupported bool
}

// capabilityTable maps each closed PLCType to its invariants, a data-driven
// stand-in for the teacher's chain-of-ifs model dispatch (§4.7).
var capabilityTable = map[PLCType]capability{
	PLCNJ101: {maxReadWords: 999, maxWriteWords: 996, bitAddressable: true, dmCeiling: 32768, cioCeiling: 6144, workCeiling: 512, holdingCeiling: 1536, cycleTimeSupported: true},
	PLCNJ301: {maxReadWords: 999, maxWriteWords: 996, bitAddressable: true, dmCeiling: 32768, cioCeiling: 6144, workCeiling: 512, holdingCeiling: 1536, cycleTimeSupported: true},
	PLCNJ501: {maxReadWords: 999, maxWriteWords: 996, bitAddressable: true, dmCeiling: 32768, cioCeiling: 6144, workCeiling: 512, holdingCeiling: 1536, cycleTimeSupported: true},
	PLCNJGeneric: {maxReadWords: 999, maxWriteWords: 996, bitAddressable: true, dmCeiling: 32768, cioCeiling: 6144, workCeiling: 512, holdingCeiling: 1536, cycleTimeSupported: true},

	PLCNX1P2: {maxReadWords: 999, maxWriteWords: 996, bitAddressable: true, dmCeiling: 16000, cioCeiling: 6144, workCeiling: 512, holdingCeiling: 1536},
	PLCNX102: {maxReadWords: 999, maxWriteWords: 996, bitAddressable: true, dmCeiling: 32768, cioCeiling: 6144, workCeiling: 512, holdingCeiling: 1536},
	PLCNX701: {maxReadWords: 999, maxWriteWords: 996, bitAddressable: true, dmCeiling: 32768, cioCeiling: 6144, workCeiling: 512, holdingCeiling: 1536},
	PLCNXGeneric: {maxReadWords: 999, maxWriteWords: 996, bitAddressable: true, dmCeiling: 32768, cioCeiling: 6144, workCeiling: 512, holdingCeiling: 1536},

	PLCNY512: {maxReadWords: 999, maxWriteWords: 996, bitAddressable: true, dmCeiling: 32768, cioCeiling: 6144, workCeiling: 512, holdingCeiling: 1536},
	PLCNY532: {maxReadWords: 999, maxWriteWords: 996, bitAddressable: true, dmCeiling: 32768, cioCeiling: 6144, workCeiling: 512, holdingCeiling: 1536},
	PLCNYGeneric: {maxReadWords: 999, maxWriteWords: 996, bitAddressable: true, dmCeiling: 32768, cioCeiling: 6144, workCeiling: 512, holdingCeiling: 1536},

	PLCCJ2: {maxReadWords: 999, maxWriteWords: 996, bitAddressable: true, auxSupported: true, auxCeiling: 11536, dmCeiling: 32768, cioCeiling: 6144, workCeiling: 512, holdingCeiling: 1536, cycleTimeSupported: true},

	PLCCP1: {maxReadWords: 499, maxWriteWords: 496, bitAddressable: false, auxSupported: true, auxCeiling: 960, dmCeiling: 32768, cioCeiling: 6144, workCeiling: 512, holdingCeiling: 1536, cycleTimeSupported: true},

	PLCCSeriesGeneric: {maxReadWords: 999, maxWriteWords: 996, bitAddressable: true, auxSupported: true, auxCeiling: 960, dmCeiling: 32768, cioCeiling: 6144, workCeiling: 512, holdingCeiling: 1536, cycleTimeSupported: true},
}

var (
	clockRangeMin = time.Date(1998, 1, 1, 0, 0, 0, 0, time.UTC)
	clockRangeMax = time.Date(2069, 12, 31, 23, 59, 59, 0, time.UTC)
)

func capabilityFor(t PLCType) capability {
	if c, ok := capabilityTable[t]; ok {
		return c
	}
	// Unknown models get the most permissive table entry so identification
	// failures don't hard-block every subsequent call; range checks against
	// ceilings still apply.
	return capability{maxReadWords: 999, maxWriteWords: 996, bitAddressable: true, dmCeiling: 32768, cioCeiling: 6144, workCeiling: 512, holdingCeiling: 1536}
}

func (c capability) areaCeiling(a Area) (int, bool) {
	switch a {
	case AreaDataMemory:
		return c.dmCeiling, true
	case AreaCommonIO:
		return c.cioCeiling, true
	case AreaWork:
		return c.workCeiling, true
	case AreaHolding:
		return c.holdingCeiling, true
	case AreaAuxiliary:
		return c.auxCeiling, c.auxSupported
	default:
		return 0, false
	}
}

// session is the PLC session layer: lifecycle, model identification, and
// validated typed read/write operations (§4.7).
type session struct {
	channel *channel

	mu          sync.Mutex
	initialized bool
	plcType     PLCType
	model       string
	version     string
}

func newSession(ch *channel) *session {
	return &session{channel: ch}
}

// Initialize opens the channel and performs a Read CPU Unit Data exchange
// to classify the controller model; it runs at most once (§4.7).
func (s *session) Initialize(ctx context.Context) error {
	s.mu.Lock()
	if s.initialized {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	if !s.channel.isReady() {
		if err := s.channel.open(ctx); err != nil {
			return err
		}
	}

	result, err := s.channel.exchange(ctx, func(dest, src, sid byte) request {
		return buildReadCPUUnitDataRequest(dest, src, sid)
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotInitialized, err)
	}

	info, err := parseControllerInfo(result.Response.Payload)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotInitialized, err)
	}

	s.mu.Lock()
	s.model = info.Model
	s.version = info.Version
	s.plcType = classifyPLCType(info.Model)
	s.initialized = true
	s.mu.Unlock()
	return nil
}

func (s *session) requireInitialized() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return ErrNotInitialized
	}
	return nil
}

func (s *session) snapshot() (plcType PLCType, model, version string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.plcType, s.model, s.version
}

// ReadWords reads len words starting at addr in the given area.
func (s *session) ReadWords(ctx context.Context, area Area, addr uint16, length int) ([]uint16, error) {
	if err := s.requireInitialized(); err != nil {
		return nil, err
	}
	caps := capabilityFor(s.currentPLCType())
	if length < 1 || length > caps.maxReadWords {
		return nil, fmt.Errorf("%w: read length %d out of range [1,%d]", ErrRangeInvalid, length, caps.maxReadWords)
	}
	if err := checkAreaRange(caps, area, addr, length); err != nil {
		return nil, err
	}

	result, err := s.channel.exchange(ctx, func(dest, src, sid byte) request {
		return buildReadWordsRequest(dest, src, sid, area, addr, uint16(length))
	})
	if err != nil {
		return nil, err
	}
	return decodeWords(result.Response.Payload, length)
}

// WriteWords writes values starting at addr in the given area.
func (s *session) WriteWords(ctx context.Context, area Area, addr uint16, values []uint16) error {
	if err := s.requireInitialized(); err != nil {
		return err
	}
	caps := capabilityFor(s.currentPLCType())
	if len(values) < 1 || len(values) > caps.maxWriteWords {
		return fmt.Errorf("%w: write length %d out of range [1,%d]", ErrRangeInvalid, len(values), caps.maxWriteWords)
	}
	if err := checkAreaRange(caps, area, addr, len(values)); err != nil {
		return err
	}

	_, err := s.channel.exchange(ctx, func(dest, src, sid byte) request {
		return buildWriteWordsRequest(dest, src, sid, area, addr, values)
	})
	return err
}

// ReadBits reads startBit..startBit+length-1 from the word at addr.
func (s *session) ReadBits(ctx context.Context, area Area, addr uint16, startBit byte, length int) ([]bool, error) {
	if err := s.requireInitialized(); err != nil {
		return nil, err
	}
	caps := capabilityFor(s.currentPLCType())
	if !caps.bitAddressable {
		return nil, fmt.Errorf("%w: model does not support bit-addressable access", ErrUnsupported)
	}
	if err := checkBitRange(startBit, length); err != nil {
		return nil, err
	}
	if err := checkAreaRange(caps, area, addr, 1); err != nil {
		return nil, err
	}

	result, err := s.channel.exchange(ctx, func(dest, src, sid byte) request {
		return buildReadBitsRequest(dest, src, sid, area, addr, startBit, uint16(length))
	})
	if err != nil {
		return nil, err
	}
	return decodeBits(result.Response.Payload, length)
}

// WriteBits writes values starting at startBit in the word at addr.
func (s *session) WriteBits(ctx context.Context, area Area, addr uint16, startBit byte, values []bool) error {
	if err := s.requireInitialized(); err != nil {
		return err
	}
	caps := capabilityFor(s.currentPLCType())
	if !caps.bitAddressable {
		return fmt.Errorf("%w: model does not support bit-addressable access", ErrUnsupported)
	}
	if err := checkBitRange(startBit, len(values)); err != nil {
		return err
	}
	if err := checkAreaRange(caps, area, addr, 1); err != nil {
		return err
	}

	_, err := s.channel.exchange(ctx, func(dest, src, sid byte) request {
		return buildWriteBitsRequest(dest, src, sid, area, addr, startBit, values)
	})
	return err
}

// ReadClock reads the controller's real-time clock.
func (s *session) ReadClock(ctx context.Context) (ClockResult, error) {
	if err := s.requireInitialized(); err != nil {
		return ClockResult{}, err
	}
	result, err := s.channel.exchange(ctx, func(dest, src, sid byte) request {
		return buildReadClockRequest(dest, src, sid)
	})
	if err != nil {
		return ClockResult{}, err
	}
	return parseClock(result.Response.Payload)
}

// WriteClock sets the controller's real-time clock. If dow is negative the
// day-of-week is derived from t (§4.7).
func (s *session) WriteClock(ctx context.Context, t time.Time, dow int) error {
	if err := s.requireInitialized(); err != nil {
		return err
	}
	if t.Before(clockRangeMin) || t.After(clockRangeMax) {
		return fmt.Errorf("%w: clock date %s out of range [%s,%s]", ErrRangeInvalid, t.Format("2006-01-02"), clockRangeMin.Format("2006-01-02"), clockRangeMax.Format("2006-01-02"))
	}
	if dow < 0 {
		dow = int(t.Weekday())
	}
	if dow < 0 || dow > 6 {
		return fmt.Errorf("%w: day-of-week %d out of range [0,6]", ErrRangeInvalid, dow)
	}

	year := byte(t.Year() % 100)
	month := byte(t.Month())
	day := byte(t.Day())
	hour := byte(t.Hour())
	minute := byte(t.Minute())
	second := byte(t.Second())

	// Validate the BCD encoding once, outside the exchange closure, so a bad
	// value surfaces before anything is sent.
	template, err := buildWriteClockRequest(0, 0, 0, year, month, day, hour, minute, second, byte(dow))
	if err != nil {
		return err
	}

	_, err = s.channel.exchange(ctx, func(dest, src, sid byte) request {
		template.Header = newHeader(dest, src, sid)
		return template
	})
	return err
}

// ReadCycleTime reads the scan-cycle statistics. Rejected on NX/NY models
// per the capability table (§4.7).
func (s *session) ReadCycleTime(ctx context.Context) (CycleTime, error) {
	if err := s.requireInitialized(); err != nil {
		return CycleTime{}, err
	}
	caps := capabilityFor(s.currentPLCType())
	if !caps.cycleTimeSupported {
		return CycleTime{}, fmt.Errorf("%w: cycle-time read not supported on this model", ErrUnsupported)
	}

	result, err := s.channel.exchange(ctx, func(dest, src, sid byte) request {
		return buildReadCycleTimeRequest(dest, src, sid)
	})
	if err != nil {
		return CycleTime{}, err
	}
	return parseCycleTime(result.Response.Payload)
}

func (s *session) currentPLCType() PLCType {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.plcType
}

func checkBitRange(startBit byte, length int) error {
	if length < 1 {
		return fmt.Errorf("%w: bit length %d must be >= 1", ErrRangeInvalid, length)
	}
	if startBit > 15 {
		return fmt.Errorf("%w: start bit %d out of range [0,15]", ErrRangeInvalid, startBit)
	}
	if int(startBit)+length > 16 {
		return fmt.Errorf("%w: bit range [%d,%d) exceeds a single word", ErrRangeInvalid, startBit, int(startBit)+length)
	}
	return nil
}

func checkAreaRange(caps capability, area Area, addr uint16, length int) error {
	ceiling, supported := caps.areaCeiling(area)
	if !supported {
		return fmt.Errorf("%w: area %s not supported on this model", ErrRangeInvalid, area)
	}
	if int(addr)+length-1 >= ceiling {
		return fmt.Errorf("%w: address range [%d,%d) exceeds area ceiling %d", ErrRangeInvalid, addr, int(addr)+length, ceiling)
	}
	return nil
}
