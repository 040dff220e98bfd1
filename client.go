package omron

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ChrisPulman/OmronPlcRx/internal/debuglog"
)

// BCD16, UBCD16, BCD32, and UBCD32 give the four packed-BCD tag kinds their
// own Go types so the generic API (RegisterTag, Value, Write, Observe) can
// infer a Kind from a type parameter alone, even though BCD16 and int16
// share the same wire layout (§4.8).
type (
	BCD16  int16
	UBCD16 uint16
	BCD32  int32
	UBCD32 uint32
)

const (
	defaultPort         = 9600
	defaultTimeout      = 2 * time.Second
	defaultRetries      = 1
	defaultPollInterval = 100 * time.Millisecond
)

// Option configures a Client at construction, following the teacher's
// functional-options family (WithTransport, WithPort, WithNode, ...).
type Option func(*clientConfig)

type clientConfig struct {
	localNode    byte
	remoteNode   byte
	transport    Transport
	port         int
	timeout      time.Duration
	retries      int
	pollInterval time.Duration
	debug        bool
}

// WithTransport selects TCP or UDP as the wire transport.
func WithTransport(t Transport) Option {
	return func(c *clientConfig) { c.transport = t }
}

// WithPort overrides the default destination port (9600).
func WithPort(port int) Option {
	return func(c *clientConfig) { c.port = port }
}

// WithNode sets the local and remote FINS node ids.
func WithNode(local, remote byte) Option {
	return func(c *clientConfig) { c.localNode = local; c.remoteNode = remote }
}

// WithTimeout overrides the per-request deadline (default 2s).
func WithTimeout(d time.Duration) Option {
	return func(c *clientConfig) { c.timeout = d }
}

// WithRetries overrides the retry count beyond the first attempt (default 1).
func WithRetries(n int) Option {
	return func(c *clientConfig) { c.retries = n }
}

// WithPollInterval overrides the sleep between poll cycles (default 100ms).
func WithPollInterval(d time.Duration) Option {
	return func(c *clientConfig) { c.pollInterval = d }
}

// WithDebug enables structured frame and lifecycle debug logging.
func WithDebug(enabled bool) Option {
	return func(c *clientConfig) { c.debug = enabled }
}

// Client is the public entry point: a FINS connection plus the polling and
// broadcast engine layered on top of it (§4.10).
type Client struct {
	channel *channel
	session *session
	engine  *engine
	logger  *debuglog.Logger

	mu     sync.Mutex
	closed bool
}

// New constructs a Client against host using the given options, validates
// the connection parameters, and starts the polling loop. The caller must
// call Close when done.
func New(host string, opts ...Option) (*Client, error) {
	cfg := clientConfig{
		transport:    TransportTCP,
		port:         defaultPort,
		timeout:      defaultTimeout,
		retries:      defaultRetries,
		pollInterval: defaultPollInterval,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	logger := debuglog.New()
	logger.SetEnabled(cfg.debug)

	addr := fmt.Sprintf("%s:%d", host, cfg.port)
	makeTransport := func() transport {
		if cfg.transport == TransportUDP {
			return newUDPChannel(addr, cfg.remoteNode, cfg.localNode, logger)
		}
		return newTCPChannel(addr, cfg.remoteNode, cfg.localNode, logger)
	}

	ch := newChannel(makeTransport(), makeTransport, cfg.timeout, cfg.retries, logger)
	sess := newSession(ch)
	eng := newEngine(sess, cfg.pollInterval)
	eng.start()

	return &Client{channel: ch, session: sess, engine: eng, logger: logger}, nil
}

func validateConfig(cfg clientConfig) error {
	if cfg.localNode == 0 || cfg.localNode == 255 {
		return fmt.Errorf("%w: local node id %d out of range [1,254]", ErrConfigInvalid, cfg.localNode)
	}
	if cfg.remoteNode == 0 || cfg.remoteNode == 255 {
		return fmt.Errorf("%w: remote node id %d out of range [1,254]", ErrConfigInvalid, cfg.remoteNode)
	}
	if cfg.localNode == cfg.remoteNode {
		return fmt.Errorf("%w: local and remote node ids must differ", ErrConfigInvalid)
	}
	if cfg.port <= 0 || cfg.port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrConfigInvalid, cfg.port)
	}
	return nil
}

// RegisterTag upserts a tag by name, inferring its Kind from T.
func RegisterTag[T any](c *Client, name, address string) error {
	kind, err := kindFor[T]()
	if err != nil {
		return err
	}
	return c.engine.registerTag(name, address, kind)
}

// Observe returns a stream of T that immediately re-emits the latest cached
// value to a new subscriber, followed by every subsequent change. The
// returned func unsubscribes.
func Observe[T any](c *Client, name string) (<-chan T, func(), error) {
	entry, ok := c.engine.lookupTag(name)
	if !ok {
		return nil, nil, fmt.Errorf("%w: tag %q not registered", ErrAddressInvalid, name)
	}
	raw, unsubscribeRaw := entry.stream.subscribe()

	out := make(chan T, cap(raw))
	done := make(chan struct{})
	go func() {
		defer close(out)
		for {
			select {
			case v, ok := <-raw:
				if !ok {
					return
				}
				if typed, ok := fromPublic[T](entry.kind, v); ok {
					select {
					case out <- typed:
					case <-done:
						return
					}
				}
			case <-done:
				return
			}
		}
	}()

	unsubscribe := func() {
		unsubscribeRaw()
		close(done)
	}
	return out, unsubscribe, nil
}

// ObserveAll returns the aggregate change stream across every tag.
func (c *Client) ObserveAll() (<-chan TagChange, func()) {
	ch, unsubscribe := c.engine.aggregate.subscribe()
	return ch, unsubscribe
}

// Errors returns the client's error stream.
func (c *Client) Errors() (<-chan error, func()) {
	ch, unsubscribe := c.engine.errs.subscribe()
	return ch, unsubscribe
}

// Value synchronously returns the cached value for name, or false if the
// tag is unregistered, has never been polled, or its Kind does not match T.
func Value[T any](c *Client, name string) (T, bool) {
	var zero T
	entry, ok := c.engine.lookupTag(name)
	if !ok {
		return zero, false
	}
	entry.mu.Lock()
	cached, hasVal := entry.cached, entry.hasVal
	kind := entry.kind
	entry.mu.Unlock()
	if !hasVal {
		return zero, false
	}
	typed, ok := fromPublic[T](kind, cached)
	if !ok {
		return zero, false
	}
	return typed, true
}

// Write schedules a fire-and-forget write of value to the named tag; any
// error surfaces through Errors().
func Write[T any](c *Client, name string, value T) {
	entry, ok := c.engine.lookupTag(name)
	if !ok {
		c.engine.errs.publish(fmt.Errorf("write %s: %w", name, ErrAddressInvalid))
		return
	}
	c.engine.scheduleWrite(name, toWire(entry.kind, value))
}

// ReadClock reads the controller's real-time clock.
func (c *Client) ReadClock(ctx context.Context) (ClockResult, error) {
	if c.isClosed() {
		return ClockResult{}, ErrClosed
	}
	return c.session.ReadClock(ctx)
}

// WriteClock sets the controller's real-time clock; dow < 0 derives the
// day-of-week from t.
func (c *Client) WriteClock(ctx context.Context, t time.Time, dow int) error {
	if c.isClosed() {
		return ErrClosed
	}
	return c.session.WriteClock(ctx, t, dow)
}

// ReadCycleTime reads scan-cycle statistics.
func (c *Client) ReadCycleTime(ctx context.Context) (CycleTime, error) {
	if c.isClosed() {
		return CycleTime{}, ErrClosed
	}
	return c.session.ReadCycleTime(ctx)
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// PLCType returns the classified controller family, Unknown before
// initialization completes.
func (c *Client) PLCType() PLCType {
	t, _, _ := c.session.snapshot()
	return t
}

// ControllerModel returns the raw model string read at initialization.
func (c *Client) ControllerModel() string {
	_, model, _ := c.session.snapshot()
	return model
}

// ControllerVersion returns the raw version string read at initialization.
func (c *Client) ControllerVersion() string {
	_, _, version := c.session.snapshot()
	return version
}

// Close stops the polling loop, closes every event stream, and tears down
// the channel.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.engine.stop()
	return c.channel.close()
}

// kindFor infers a Kind from a generic type parameter.
func kindFor[T any]() (Kind, error) {
	var zero T
	switch any(zero).(type) {
	case bool:
		return KindBool, nil
	case byte:
		return KindByte, nil
	case int16:
		return KindInt16, nil
	case uint16:
		return KindUint16, nil
	case int32:
		return KindInt32, nil
	case uint32:
		return KindUint32, nil
	case float32:
		return KindFloat32, nil
	case float64:
		return KindFloat64, nil
	case string:
		return KindString, nil
	case BCD16:
		return KindBCD16, nil
	case UBCD16:
		return KindUBCD16, nil
	case BCD32:
		return KindBCD32, nil
	case UBCD32:
		return KindUBCD32, nil
	default:
		return 0, fmt.Errorf("%w: unsupported tag type %T", ErrTypeMismatch, zero)
	}
}

// toWire converts a public-facing value (possibly a BCD wrapper type) into
// the native Go type encodeValue expects for kind.
func toWire(kind Kind, value any) any {
	switch kind {
	case KindBCD16:
		if v, ok := value.(BCD16); ok {
			return int16(v)
		}
	case KindUBCD16:
		if v, ok := value.(UBCD16); ok {
			return uint16(v)
		}
	case KindBCD32:
		if v, ok := value.(BCD32); ok {
			return int32(v)
		}
	case KindUBCD32:
		if v, ok := value.(UBCD32); ok {
			return uint32(v)
		}
	}
	return value
}

// fromPublic converts a raw decoded value (native Go type) into T, wrapping
// BCD kinds into their distinct public types along the way.
func fromPublic[T any](kind Kind, raw any) (T, bool) {
	var zero T
	switch kind {
	case KindBCD16:
		if v, ok := raw.(int16); ok {
			if typed, ok := any(BCD16(v)).(T); ok {
				return typed, true
			}
		}
		return zero, false
	case KindUBCD16:
		if v, ok := raw.(uint16); ok {
			if typed, ok := any(UBCD16(v)).(T); ok {
				return typed, true
			}
		}
		return zero, false
	case KindBCD32:
		if v, ok := raw.(int32); ok {
			if typed, ok := any(BCD32(v)).(T); ok {
				return typed, true
			}
		}
		return zero, false
	case KindUBCD32:
		if v, ok := raw.(uint32); ok {
			if typed, ok := any(UBCD32(v)).(T); ok {
				return typed, true
			}
		}
		return zero, false
	default:
		typed, ok := raw.(T)
		return typed, ok
	}
}
