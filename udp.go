package omron

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/ChrisPulman/OmronPlcRx/internal/debuglog"
)

// udpChannel implements transport over a UDP socket bound to an ephemeral
// local port, raw FINS frames with no envelope (§4.4). Each frame is sent to
// the configured remote address; the socket is not connected, so
// receiveFrame and purge read datagrams from any sender.
type udpChannel struct {
	addr      string
	destNode  byte
	srcNode   byte
	remoteUDP *net.UDPAddr
	logger    *debuglog.Logger

	// connMu guards conn against the data race between a concurrent close()
	// (which nils it) and an in-flight sendFrame/receiveFrame/purge reading
	// it; the I/O itself still runs unlocked so Close() is never blocked
	// behind a pending read (§4.6, §9 channel-close race).
	connMu sync.Mutex
	conn   *net.UDPConn
}

func newUDPChannel(addr string, destNode, srcNode byte, logger *debuglog.Logger) *udpChannel {
	return &udpChannel{addr: addr, destNode: destNode, srcNode: srcNode, logger: logger}
}

func (u *udpChannel) connect(ctx context.Context, timeout time.Duration) error {
	u.logger.Connect("FINS/UDP", u.addr)

	remote, err := net.ResolveUDPAddr("udp", u.addr)
	if err != nil {
		u.logger.ConnectError("FINS/UDP", u.addr, err)
		return err
	}
	conn, err := net.ListenUDP("udp", &net.UDPAddr{})
	if err != nil {
		u.logger.ConnectError("FINS/UDP", u.addr, err)
		return err
	}
	u.connMu.Lock()
	u.conn = conn
	u.connMu.Unlock()
	u.remoteUDP = remote
	u.logger.ConnectSuccess("FINS/UDP", u.addr, fmt.Sprintf("localNode=%d remoteNode=%d", u.srcNode, u.destNode))
	return nil
}

func (u *udpChannel) getConn() *net.UDPConn {
	u.connMu.Lock()
	defer u.connMu.Unlock()
	return u.conn
}

func (u *udpChannel) sendFrame(frame []byte) (int, error) {
	conn := u.getConn()
	if conn == nil {
		return 0, ErrChannelClosed
	}
	n, err := conn.WriteToUDP(frame, u.remoteUDP)
	if err != nil {
		return 0, err
	}
	return n, nil
}

// receiveFrame loops on the socket, reading up to timeout, accepting the
// message once at least 14 bytes are buffered and the first byte is a
// valid FINS response header start byte (§4.4).
func (u *udpChannel) receiveFrame(timeout time.Duration) ([]byte, error) {
	conn := u.getConn()
	if conn == nil {
		return nil, ErrChannelClosed
	}
	deadline := time.Now().Add(timeout)
	buf := make([]byte, 2048)

	var acc []byte
	for {
		if err := conn.SetReadDeadline(deadline); err != nil {
			return nil, err
		}
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			return nil, err
		}
		acc = append(acc, buf[:n]...)
		if len(acc) >= minResponseLength && (acc[0] == 0xC0 || acc[0] == 0xC1) {
			return acc, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: incomplete datagram", ErrTimeout)
		}
	}
}

// purge drains readable datagrams for up to timeout, silently absorbing
// read errors, per §9's resolution of the open question on the source's
// Available()-based purge loop.
func (u *udpChannel) purge(timeout time.Duration) {
	conn := u.getConn()
	if conn == nil {
		return
	}
	deadline := time.Now().Add(timeout)
	buf := make([]byte, 2048)
	for time.Now().Before(deadline) {
		_ = conn.SetReadDeadline(time.Now().Add(50 * time.Millisecond))
		if _, _, err := conn.ReadFromUDP(buf); err != nil {
			return
		}
	}
}

func (u *udpChannel) close() error {
	u.connMu.Lock()
	conn := u.conn
	u.conn = nil
	u.connMu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}

func (u *udpChannel) nodes() (destNode, srcNode byte) {
	return u.destNode, u.srcNode
}
