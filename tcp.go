package omron

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/ChrisPulman/OmronPlcRx/internal/debuglog"
)

// TCP envelope command codes (§4.5).
const (
	tcpCmdNodeAddressRequest uint32 = 0
	tcpCmdNodeAddressReply   uint32 = 1
	tcpCmdFINSFrame          uint32 = 2
)

var finsMagic = [4]byte{'F', 'I', 'N', 'S'}

// tcpErrorMessages is the TCP-envelope error-code table (§4.5).
var tcpErrorMessages = map[uint32]string{
	1:  "bad magic",
	2:  "length overflow",
	3:  "unsupported command",
	20: "all connections in use",
	21: "node already connected",
	22: "protected-node access",
	23: "client-node out of range",
	24: "duplicate node address",
	25: "no node addresses left",
}

// tcpChannel implements transport over a TCP connection using the 16-byte
// FINS envelope and node-address negotiation handshake (§4.5).
type tcpChannel struct {
	addr       string
	configDest byte
	configSrc  byte
	negLocal   byte
	negRemote  byte
	negotiated bool
	logger     *debuglog.Logger

	// connMu guards conn against the data race between a concurrent close()
	// (which nils it) and an in-flight sendFrame/receiveFrame reading it;
	// the I/O itself still runs unlocked so Close() is never blocked behind
	// a pending read (§4.6, §9 channel-close race).
	connMu sync.Mutex
	conn   net.Conn
}

func newTCPChannel(addr string, destNode, srcNode byte, logger *debuglog.Logger) *tcpChannel {
	return &tcpChannel{addr: addr, configDest: destNode, configSrc: srcNode, logger: logger}
}

func (t *tcpChannel) connect(ctx context.Context, timeout time.Duration) error {
	t.logger.Connect("FINS/TCP", t.addr)

	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", t.addr)
	if err != nil {
		t.logger.ConnectError("FINS/TCP", t.addr, err)
		return err
	}
	t.setConn(conn)

	if err := t.negotiate(timeout); err != nil {
		conn.Close()
		t.setConn(nil)
		t.logger.ConnectError("FINS/TCP", t.addr, err)
		return err
	}

	t.logger.ConnectSuccess("FINS/TCP", t.addr, fmt.Sprintf("localNode=%d remoteNode=%d", t.negLocal, t.negRemote))
	return nil
}

// negotiate performs the node-address handshake: send a node-address
// request with a 4-byte zero payload, read the reply, and record the
// PLC-assigned local/remote node ids (§4.5, §8 scenario 6).
func (t *tcpChannel) negotiate(timeout time.Duration) error {
	conn := t.getConn()
	if conn == nil {
		return ErrChannelClosed
	}
	reqFrame := encodeTCPEnvelope(tcpCmdNodeAddressRequest, 0, []byte{0, 0, 0, 0})
	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	if _, err := conn.Write(reqFrame); err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}

	cmd, _, payload, err := readTCPEnvelope(conn)
	if err != nil {
		return err
	}
	if cmd != tcpCmdNodeAddressReply {
		return fmt.Errorf("%w: expected node-address reply, got command %d", ErrProtocolFraming, cmd)
	}
	if len(payload) < 8 {
		return fmt.Errorf("%w: node-address reply payload too short (%d bytes)", ErrProtocolFraming, len(payload))
	}

	local := payload[3]
	remote := payload[7]
	if local == 0 || local == 255 || remote == 0 || remote == 255 {
		return fmt.Errorf("%w: negotiated node ids must be non-zero and != 255 (local=%d remote=%d)", ErrProtocolFraming, local, remote)
	}

	t.negLocal = local
	t.negRemote = remote
	t.negotiated = true
	return nil
}

func (t *tcpChannel) getConn() net.Conn {
	t.connMu.Lock()
	defer t.connMu.Unlock()
	return t.conn
}

func (t *tcpChannel) setConn(conn net.Conn) {
	t.connMu.Lock()
	t.conn = conn
	t.connMu.Unlock()
}

func (t *tcpChannel) sendFrame(frame []byte) (int, error) {
	conn := t.getConn()
	if conn == nil {
		return 0, ErrChannelClosed
	}
	envelope := encodeTCPEnvelope(tcpCmdFINSFrame, 0, frame)
	n, err := conn.Write(envelope)
	return n, err
}

func (t *tcpChannel) receiveFrame(timeout time.Duration) ([]byte, error) {
	conn := t.getConn()
	if conn == nil {
		return nil, ErrChannelClosed
	}
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, err
	}
	cmd, errCode, payload, err := readTCPEnvelope(conn)
	if err != nil {
		return nil, err
	}
	if errCode != 0 {
		msg, ok := tcpErrorMessages[errCode]
		if !ok {
			msg = "unknown TCP envelope error"
		}
		return nil, fmt.Errorf("%w: TCP envelope error %d: %s", ErrProtocolFraming, errCode, msg)
	}
	if cmd != tcpCmdFINSFrame {
		return nil, fmt.Errorf("%w: expected FINS frame envelope, got command %d", ErrProtocolFraming, cmd)
	}
	if len(payload) == 0 || (payload[0] != 0xC0 && payload[0] != 0xC1) {
		return nil, fmt.Errorf("%w: body does not start with a FINS header byte", ErrProtocolFraming)
	}
	return payload, nil
}

// purge has no datagram queue to drain on TCP; a service-id mismatch over
// TCP is resolved by simply discarding the stream position, which the
// caller already does by returning the error without consuming more bytes.
func (t *tcpChannel) purge(timeout time.Duration) {}

func (t *tcpChannel) close() error {
	t.connMu.Lock()
	conn := t.conn
	t.conn = nil
	t.connMu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}

func (t *tcpChannel) nodes() (destNode, srcNode byte) {
	if t.negotiated {
		return t.negRemote, t.negLocal
	}
	return t.configDest, t.configSrc
}

// encodeTCPEnvelope builds the 16-byte TCP header (magic, length, command,
// error) followed by payload (§4.5).
func encodeTCPEnvelope(cmd uint32, errCode uint32, payload []byte) []byte {
	length := 4 + 4 + len(payload)
	out := make([]byte, 0, 8+length)
	out = append(out, finsMagic[:]...)
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(length))
	out = append(out, lenBuf[:]...)
	var cmdBuf [4]byte
	binary.BigEndian.PutUint32(cmdBuf[:], cmd)
	out = append(out, cmdBuf[:]...)
	var errBuf [4]byte
	binary.BigEndian.PutUint32(errBuf[:], errCode)
	out = append(out, errBuf[:]...)
	out = append(out, payload...)
	return out
}

// readTCPEnvelope reads a full TCP-framed envelope from r: the fixed
// 8-byte magic+length prefix, then length bytes of command+error+payload,
// validating the magic and decoding the error code (§4.5).
func readTCPEnvelope(r io.Reader) (cmd uint32, errCode uint32, payload []byte, err error) {
	prefix := make([]byte, 8)
	if _, err := io.ReadFull(r, prefix); err != nil {
		return 0, 0, nil, fmt.Errorf("%w: %v", ErrProtocolFraming, err)
	}
	if prefix[0] != finsMagic[0] || prefix[1] != finsMagic[1] || prefix[2] != finsMagic[2] || prefix[3] != finsMagic[3] {
		return 0, 0, nil, fmt.Errorf("%w: bad magic", ErrProtocolFraming)
	}
	length := binary.BigEndian.Uint32(prefix[4:8])
	if length < 8 {
		return 0, 0, nil, fmt.Errorf("%w: length %d below minimum 8", ErrProtocolFraming, length)
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return 0, 0, nil, fmt.Errorf("%w: %v", ErrProtocolFraming, err)
	}

	cmd = binary.BigEndian.Uint32(body[0:4])
	errCode = binary.BigEndian.Uint32(body[4:8])
	payload = body[8:]
	return cmd, errCode, payload, nil
}
