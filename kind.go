package omron

// Transport selects the wire transport a Client uses to reach the PLC.
type Transport int

const (
	TransportTCP Transport = iota
	TransportUDP
)

func (t Transport) String() string {
	switch t {
	case TransportTCP:
		return "TCP"
	case TransportUDP:
		return "UDP"
	default:
		return "Unknown"
	}
}

// PLCType is the closed set of controller families the session classifies
// after reading controller-unit data.
type PLCType int

const (
	PLCUnknown PLCType = iota
	PLCNJ101
	PLCNJ301
	PLCNJ501
	PLCNX1P2
	PLCNX102
	PLCNX701
	PLCNY512
	PLCNY532
	PLCNJGeneric
	PLCNXGeneric
	PLCNYGeneric
	PLCCJ2
	PLCCP1
	PLCCSeriesGeneric
)

func (p PLCType) String() string {
	switch p {
	case PLCNJ101:
		return "NJ101"
	case PLCNJ301:
		return "NJ301"
	case PLCNJ501:
		return "NJ501"
	case PLCNX1P2:
		return "NX1P2"
	case PLCNX102:
		return "NX102"
	case PLCNX701:
		return "NX701"
	case PLCNY512:
		return "NY512"
	case PLCNY532:
		return "NY532"
	case PLCNJGeneric:
		return "NJ"
	case PLCNXGeneric:
		return "NX"
	case PLCNYGeneric:
		return "NY"
	case PLCCJ2:
		return "CJ2"
	case PLCCP1:
		return "CP1"
	case PLCCSeriesGeneric:
		return "C"
	default:
		return "Unknown"
	}
}

// classifyPLCType maps a 20-byte, NUL-terminated controller model string (as
// returned by Read CPU Unit Data) onto the closed PLCType set, longest and
// most specific prefixes first.
func classifyPLCType(model string) PLCType {
	switch {
	case hasPrefix(model, "NJ101"):
		return PLCNJ101
	case hasPrefix(model, "NJ301"):
		return PLCNJ301
	case hasPrefix(model, "NJ501"):
		return PLCNJ501
	case hasPrefix(model, "NX1P2"):
		return PLCNX1P2
	case hasPrefix(model, "NX102"):
		return PLCNX102
	case hasPrefix(model, "NX701"):
		return PLCNX701
	case hasPrefix(model, "NY512"):
		return PLCNY512
	case hasPrefix(model, "NY532"):
		return PLCNY532
	case hasPrefix(model, "NJ"):
		return PLCNJGeneric
	case hasPrefix(model, "NX"):
		return PLCNXGeneric
	case hasPrefix(model, "NY"):
		return PLCNYGeneric
	case hasPrefix(model, "CJ2"):
		return PLCCJ2
	case hasPrefix(model, "CP1"):
		return PLCCP1
	case hasPrefix(model, "C"):
		return PLCCSeriesGeneric
	default:
		return PLCUnknown
	}
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

// Area identifies a PLC memory area. Each area carries distinct byte codes
// for bit-wise and word-wise Memory Area Read/Write requests (§3, §4.8).
type Area int

const (
	AreaDataMemory Area = iota
	AreaCommonIO
	AreaWork
	AreaHolding
	AreaAuxiliary
)

func (a Area) String() string {
	switch a {
	case AreaDataMemory:
		return "DataMemory"
	case AreaCommonIO:
		return "CommonIO"
	case AreaWork:
		return "Work"
	case AreaHolding:
		return "Holding"
	case AreaAuxiliary:
		return "Auxiliary"
	default:
		return "Unknown"
	}
}

// bitCode and wordCode return the FINS memory-area byte code for bit and
// word access respectively.
func (a Area) bitCode() byte {
	switch a {
	case AreaDataMemory:
		return 0x02
	case AreaCommonIO:
		return 0x30
	case AreaWork:
		return 0x31
	case AreaHolding:
		return 0x32
	case AreaAuxiliary:
		return 0x33
	default:
		return 0
	}
}

func (a Area) wordCode() byte {
	switch a {
	case AreaDataMemory:
		return 0x82
	case AreaCommonIO:
		return 0xB0
	case AreaWork:
		return 0xB1
	case AreaHolding:
		return 0xB2
	case AreaAuxiliary:
		return 0xB3
	default:
		return 0
	}
}

func areaFromPrefix(prefix string) (Area, bool) {
	switch prefix {
	case "D", "DM":
		return AreaDataMemory, true
	case "C", "CIO":
		return AreaCommonIO, true
	case "W":
		return AreaWork, true
	case "H":
		return AreaHolding, true
	case "A":
		return AreaAuxiliary, true
	default:
		return 0, false
	}
}

// Kind is the closed set of tag value types the polling engine and address
// layout understand. There is no open-ended, reflective type dispatch: every
// exported generic entry point (RegisterTag, Observe, Value, Write) switches
// on Kind internally.
type Kind int

const (
	KindBool Kind = iota
	KindByte
	KindInt16
	KindUint16
	KindInt32
	KindUint32
	KindFloat32
	KindFloat64
	KindString
	KindBCD16
	KindUBCD16
	KindBCD32
	KindUBCD32
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindByte:
		return "byte"
	case KindInt16:
		return "int16"
	case KindUint16:
		return "uint16"
	case KindInt32:
		return "int32"
	case KindUint32:
		return "uint32"
	case KindFloat32:
		return "float32"
	case KindFloat64:
		return "float64"
	case KindString:
		return "string"
	case KindBCD16:
		return "bcd16"
	case KindUBCD16:
		return "ubcd16"
	case KindBCD32:
		return "bcd32"
	case KindUBCD32:
		return "ubcd32"
	default:
		return "unknown"
	}
}

// wordCount returns how many 16-bit words a value of this kind occupies on
// the wire, given the string length for KindString (ignored otherwise).
func (k Kind) wordCount(stringLen int) int {
	switch k {
	case KindBool, KindByte, KindInt16, KindUint16, KindBCD16, KindUBCD16:
		return 1
	case KindInt32, KindUint32, KindFloat32, KindBCD32, KindUBCD32:
		return 2
	case KindFloat64:
		return 4
	case KindString:
		if stringLen <= 0 {
			stringLen = defaultStringLength
		}
		return (stringLen + 1) / 2
	default:
		return 1
	}
}

// defaultStringLength is used when an address omits the bracketed length for
// a string tag (§4.8).
const defaultStringLength = 16
