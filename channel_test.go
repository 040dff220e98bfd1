package omron

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// trackingTransport is a fake transport that holds a request "in flight"
// across the send/receive gap long enough for a would-be concurrent caller
// to collide with it, recording whether that ever happened.
type trackingTransport struct {
	mu         sync.Mutex
	inFlight   bool
	overlapped int32
	lastFrame  []byte
}

func (t *trackingTransport) connect(ctx context.Context, timeout time.Duration) error {
	return nil
}

func (t *trackingTransport) sendFrame(frame []byte) (int, error) {
	t.mu.Lock()
	if t.inFlight {
		atomic.AddInt32(&t.overlapped, 1)
	}
	t.inFlight = true
	t.lastFrame = frame
	t.mu.Unlock()

	time.Sleep(2 * time.Millisecond)
	return len(frame), nil
}

func (t *trackingTransport) receiveFrame(timeout time.Duration) ([]byte, error) {
	time.Sleep(2 * time.Millisecond)

	t.mu.Lock()
	if !t.inFlight {
		atomic.AddInt32(&t.overlapped, 1)
	}
	sid := t.lastFrame[9]
	t.inFlight = false
	t.mu.Unlock()

	h := newHeader(0x02, 0x01, sid)
	resp := []byte{0xC1, h.RSV, h.GCT, h.DNA, h.DA1, h.DA2, h.SNA, h.SA1, h.SA2, h.SID,
		byte(cmdMemoryAreaRead >> 8), byte(cmdMemoryAreaRead & 0xFF), 0x00, 0x00}
	return resp, nil
}

func (t *trackingTransport) purge(timeout time.Duration) {}
func (t *trackingTransport) close() error               { return nil }
func (t *trackingTransport) nodes() (byte, byte)        { return 0x02, 0x01 }

// TestChannelExchangeSerializesConcurrentCallers drives many goroutines at
// exchange() concurrently and asserts, via a fake transport instrumented
// with its own lock, that no second sendFrame/receiveFrame cycle ever
// begins before the prior one's receiveFrame returns (spec.md:186,
// SPEC_FULL.md:230).
func TestChannelExchangeSerializesConcurrentCallers(t *testing.T) {
	tr := &trackingTransport{}
	ch := newChannel(tr, func() transport { return tr }, time.Second, 0, newTestLogger())
	if err := ch.open(context.Background()); err != nil {
		t.Fatalf("open: %v", err)
	}

	const callers = 25
	var wg sync.WaitGroup
	wg.Add(callers)
	for i := 0; i < callers; i++ {
		go func() {
			defer wg.Done()
			_, err := ch.exchange(context.Background(), func(dest, src, sid byte) request {
				return request{Header: newHeader(dest, src, sid), Command: cmdMemoryAreaRead}
			})
			if err != nil {
				t.Errorf("exchange: %v", err)
			}
		}()
	}
	wg.Wait()

	if n := atomic.LoadInt32(&tr.overlapped); n != 0 {
		t.Fatalf("detected %d overlapping send/receive cycles, want 0", n)
	}
}

// closeRaceTransport simulates a transport whose sendFrame blocks until the
// test signals it, so a concurrent close() can race the exchange that is
// already past the isReady() check.
type closeRaceTransport struct {
	release    chan struct{}
	closed     int32
	reconnects int32
}

func (t *closeRaceTransport) connect(ctx context.Context, timeout time.Duration) error {
	atomic.AddInt32(&t.reconnects, 1)
	return nil
}

func (t *closeRaceTransport) sendFrame(frame []byte) (int, error) {
	<-t.release
	return 0, ErrChannelClosed
}

func (t *closeRaceTransport) receiveFrame(timeout time.Duration) ([]byte, error) {
	return nil, ErrChannelClosed
}

func (t *closeRaceTransport) purge(timeout time.Duration) {}
func (t *closeRaceTransport) close() error {
	atomic.AddInt32(&t.closed, 1)
	return nil
}
func (t *closeRaceTransport) nodes() (byte, byte) { return 0x02, 0x01 }

// TestChannelCloseDuringExchangeDoesNotReconnect exercises the close/rebuild
// race: a Close() that lands while an exchange's sendFrame is blocked must
// leave the channel closed, not have the failing exchange's retry path
// reopen a fresh transport underneath it.
func TestChannelCloseDuringExchangeDoesNotReconnect(t *testing.T) {
	tr := &closeRaceTransport{release: make(chan struct{})}
	ch := newChannel(tr, func() transport { return tr }, time.Second, 3, newTestLogger())
	if err := ch.open(context.Background()); err != nil {
		t.Fatalf("open: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := ch.exchange(context.Background(), func(dest, src, sid byte) request {
			return request{Header: newHeader(dest, src, sid), Command: cmdMemoryAreaRead}
		})
		done <- err
	}()

	// Let the exchange pass its isReady() check and block inside sendFrame.
	time.Sleep(5 * time.Millisecond)
	if err := ch.close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	close(tr.release)

	select {
	case err := <-done:
		if !errors.Is(err, ErrChannelClosed) {
			t.Fatalf("exchange returned %v, want ErrChannelClosed", err)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for exchange to return")
	}

	if !ch.isUserClosed() {
		t.Fatal("expected channel to remain user-closed")
	}
	if ch.isReady() {
		t.Fatal("expected channel to remain not-ready after the race")
	}
	if n := atomic.LoadInt32(&tr.reconnects); n != 1 {
		t.Fatalf("connect called %d times, want 1 (the initial open only): Close() must not be undone by a racing retry", n)
	}
	if n := atomic.LoadInt32(&tr.closed); n != 1 {
		t.Fatalf("transport closed %d times, want exactly 1", n)
	}
}
