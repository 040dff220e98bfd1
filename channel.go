package omron

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/ChrisPulman/OmronPlcRx/internal/debuglog"
)

// channelState tracks the lifecycle of a transport's underlying socket, so
// the receive path never has to guess whether a concurrently-running Close
// already tore it down (§4.5, §9 open question on the TCP null-check race).
type channelState int32

const (
	stateUninitialized channelState = iota
	stateConnecting
	stateReady
	stateClosed
)

// transport is implemented by udpChannel and tcpChannel. It owns framing
// and raw I/O; channel (below) owns the single-in-flight pipeline discipline
// that sits on top of it.
type transport interface {
	connect(ctx context.Context, timeout time.Duration) error
	sendFrame(frame []byte) (int, error)
	receiveFrame(timeout time.Duration) ([]byte, error)
	purge(timeout time.Duration)
	close() error
	// nodes returns the destination/source node ids to stamp into the FINS
	// header. For TCP these are the negotiated ids once connected; for UDP
	// they are simply the configured ids.
	nodes() (destNode, srcNode byte)
}

// exchangeResult carries the byte/packet accounting and timing the request
// pipeline reports alongside the parsed response (§4.6).
type exchangeResult struct {
	BytesSent     int
	BytesReceived int
	Duration      time.Duration
	Response      response
}

// channel is the request pipeline: a single semaphore guarantees at most
// one FINS exchange in flight, a wrapping byte counter rotates the
// service-id, and transport-class failures are retried with a full
// teardown/reopen of the underlying transport (§4.6).
type channel struct {
	transport transport
	sem       *semaphore.Weighted
	sid       uint32
	timeout   time.Duration
	retries   int
	logger    *debuglog.Logger

	mu         sync.Mutex
	state      channelState
	userClosed bool

	// reopen constructs a fresh transport of the same kind (UDP or TCP),
	// used to rebuild the channel after a transport-class failure.
	reopen func() transport
}

func newChannel(t transport, reopen func() transport, timeout time.Duration, retries int, logger *debuglog.Logger) *channel {
	return &channel{
		transport: t,
		reopen:    reopen,
		sem:       semaphore.NewWeighted(1),
		timeout:   timeout,
		retries:   retries,
		logger:    logger,
		state:     stateUninitialized,
	}
}

// open establishes the underlying transport connection.
func (c *channel) open(ctx context.Context) error {
	c.mu.Lock()
	if c.userClosed {
		c.mu.Unlock()
		return ErrChannelClosed
	}
	c.state = stateConnecting
	tr := c.transport
	c.mu.Unlock()

	if err := tr.connect(ctx, c.timeout); err != nil {
		c.mu.Lock()
		if !c.userClosed {
			c.state = stateUninitialized
		}
		c.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.userClosed {
		return ErrChannelClosed
	}
	c.state = stateReady
	return nil
}

// close tears down the underlying transport. Once closed, the channel never
// reconnects again: open and rebuild both check userClosed first, so a
// Close() racing an in-flight exchange can never resurrect the transport
// (§4.6, §9 channel-close race).
func (c *channel) close() error {
	c.mu.Lock()
	if c.state == stateClosed {
		c.mu.Unlock()
		return nil
	}
	c.state = stateClosed
	c.userClosed = true
	t := c.transport
	c.mu.Unlock()
	return t.close()
}

func (c *channel) isReady() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == stateReady
}

func (c *channel) isUserClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userClosed
}

func (c *channel) nextSID() byte {
	return byte(atomic.AddUint32(&c.sid, 1) & 0xFF)
}

// currentTransport snapshots the transport pointer under lock, since rebuild
// swaps it out from under a concurrent exchange on transport-class failure.
func (c *channel) currentTransport() transport {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transport
}

// buildFunc constructs the request to send given the negotiated/configured
// node ids and the next service id.
type buildFunc func(destNode, srcNode, sid byte) request

// exchange runs one request/response cycle through the pipeline: acquire
// the semaphore, build, send, receive, parse; on a transport-class failure
// with attempts remaining, tear the channel down, reopen it, and retry; a
// protocol-class error (once a response is successfully parsed) never
// retries, though a service-id mismatch triggers one purge first (§4.6).
func (c *channel) exchange(ctx context.Context, build buildFunc) (exchangeResult, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return exchangeResult{}, fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	defer c.sem.Release(1)

	var lastErr error
	attempts := c.retries + 1
	for attempt := 0; attempt < attempts; attempt++ {
		if !c.isReady() {
			return exchangeResult{}, ErrChannelClosed
		}
		tr := c.currentTransport()

		destNode, srcNode := tr.nodes()
		sid := c.nextSID()
		req := build(destNode, srcNode, sid)
		frame := req.bytes()

		start := time.Now()
		c.logger.TX("channel", frame)

		sent, err := tr.sendFrame(frame)
		if err != nil {
			if c.isUserClosed() {
				return exchangeResult{}, ErrChannelClosed
			}
			lastErr = fmt.Errorf("%w: %v", ErrTransport, err)
			if attempt < attempts-1 && c.rebuild(ctx) {
				continue
			}
			if c.isUserClosed() {
				return exchangeResult{}, ErrChannelClosed
			}
			return exchangeResult{}, lastErr
		}

		raw, err := tr.receiveFrame(c.timeout)
		if err != nil {
			if c.isUserClosed() {
				return exchangeResult{}, ErrChannelClosed
			}
			lastErr = classifyIOError(err)
			if attempt < attempts-1 && c.rebuild(ctx) {
				continue
			}
			if c.isUserClosed() {
				return exchangeResult{}, ErrChannelClosed
			}
			return exchangeResult{}, lastErr
		}
		c.logger.RX("channel", raw)

		resp, svcMismatch, err := parseResponse(raw, req)
		if err != nil {
			if svcMismatch {
				tr.purge(c.timeout)
			}
			// Protocol-class errors never retry: the PLC answered, just not
			// to this request.
			return exchangeResult{}, err
		}

		if err := checkResponseCode(resp); err != nil {
			return exchangeResult{
				BytesSent: sent, BytesReceived: len(raw),
				Duration: time.Since(start), Response: resp,
			}, err
		}

		return exchangeResult{
			BytesSent: sent, BytesReceived: len(raw),
			Duration: time.Since(start), Response: resp,
		}, nil
	}

	return exchangeResult{}, lastErr
}

// rebuild tears down and reopens the transport after a transport-class
// failure, as required before a retry (§4.6, §5). It reports false without
// touching anything further if the channel was explicitly Close()d out from
// under the failed exchange, so a racing Close() can never be undone by a
// concurrent retry (§9 channel-close race).
func (c *channel) rebuild(ctx context.Context) bool {
	c.mu.Lock()
	if c.userClosed {
		c.mu.Unlock()
		return false
	}
	_ = c.transport.close()
	next := c.reopen()
	c.transport = next
	c.state = stateConnecting
	c.mu.Unlock()

	err := next.connect(ctx, c.timeout)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.userClosed {
		// Close() raced the reconnect; tear the freshly-opened transport
		// back down instead of leaving it live.
		if err == nil {
			_ = next.close()
		}
		return false
	}
	if err != nil {
		c.state = stateUninitialized
		return false
	}
	c.state = stateReady
	return true
}

// classifyIOError maps a low-level receive failure onto the channel-level
// error taxonomy (§4.4 purge/timeout/transport translation table).
func classifyIOError(err error) error {
	if err == nil {
		return nil
	}
	if ne, ok := err.(interface{ Timeout() bool }); ok && ne.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrTransport, err)
}
