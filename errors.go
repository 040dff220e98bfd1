package omron

import "errors"

// Error kinds surfaced to callers either as return values from synchronous
// calls or published as values on the Errors() stream. Callers should match against these with errors.Is, since every
// raise site wraps one of them with call-specific context via fmt.Errorf's
// %w verb.
var (
	// ErrConfigInvalid reports a node-id or connection parameter out of
	// range at construction time.
	ErrConfigInvalid = errors.New("omron: invalid configuration")

	// ErrNotInitialized reports a read or write invoked before the
	// session has completed Initialize.
	ErrNotInitialized = errors.New("omron: session not initialized")

	// ErrAddressInvalid reports an address string that failed to parse or
	// is semantically impossible (bit and length both present, bit index
	// out of range, unknown area prefix).
	ErrAddressInvalid = errors.New("omron: invalid address")

	// ErrRangeInvalid reports an address plus length that exceeds the
	// capability table for the detected PLC model, or an area unsupported
	// by that model.
	ErrRangeInvalid = errors.New("omron: address or length out of range")

	// ErrTransport wraps a socket-level failure.
	ErrTransport = errors.New("omron: transport error")

	// ErrTimeout reports an operation that did not complete within the
	// configured deadline.
	ErrTimeout = errors.New("omron: timeout")

	// ErrChannelClosed reports that the underlying socket was closed,
	// typically racing a concurrent Close.
	ErrChannelClosed = errors.New("omron: channel closed")

	// ErrProtocolFraming reports a malformed TCP frame: bad magic,
	// invalid length, a truncated header, or a FINS body that does not
	// start with a valid header byte.
	ErrProtocolFraming = errors.New("omron: protocol framing error")

	// ErrProtocolEcho reports that the response's function, sub-function,
	// or service-id did not match the request that solicited it.
	ErrProtocolEcho = errors.New("omron: response does not match request")

	// ErrNetworkRelay reports that the top bit of the FINS response code
	// was set, indicating a network relay error upstream of the PLC.
	ErrNetworkRelay = errors.New("omron: network relay error")

	// ErrFins wraps a non-zero FINS main/sub response code. Use errors.As
	// against *FinsError to recover the structured main/sub codes.
	ErrFins = errors.New("omron: FINS error response")

	// ErrTypeMismatch reports that a cached tag value was requested with
	// an incompatible type parameter.
	ErrTypeMismatch = errors.New("omron: type mismatch")

	// ErrUnsupported reports an operation rejected by the capability
	// table for the detected PLC model (e.g. cycle time on NX/NY).
	ErrUnsupported = errors.New("omron: unsupported on this PLC model")

	// ErrBadBcdWidth reports a BCD byte slice whose length is outside
	// 1..4 or does not match the requested width.
	ErrBadBcdWidth = errors.New("omron: invalid BCD width")

	// ErrClosed reports that an operation was attempted on a Client after
	// Close was called.
	ErrClosed = errors.New("omron: client closed")
)
