package c3

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Default connection settings.
const (
	// DefaultPort is the panel's TCP port.
	DefaultPort = 4370

	// DefaultTimeout bounds dialing and each request/reply exchange.
	DefaultTimeout = 10 * time.Second

	// disconnectTimeout bounds the best-effort disconnect on Close.
	disconnectTimeout = 2 * time.Second
)

// Device parameter names.
const (
	ParamSerialNumber = "~SerialNumber"
	ParamLockCount    = "LockCount"
	ParamReaderCount  = "ReaderCount"
	ParamAuxInCount   = "AuxInCount"
	ParamAuxOutCount  = "AuxOutCount"
	ParamFirmware     = "FirmVer"
	ParamIPAddress    = "IPAddress"
)

// Config holds panel connection settings.
type Config struct {
	// Host is the panel address.
	Host string

	// Port is the panel TCP port. Default: 4370.
	Port int

	// Password is the communication password. Empty for none.
	Password string

	// Timeout bounds dialing and each request/reply exchange.
	// Default: 10 seconds.
	Timeout time.Duration
}

// Address returns "host:port".
func (c Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Stats holds panel connection statistics.
type Stats struct {
	RequestsTotal uint64
	RecordsRx     uint64
	ErrorsTotal   uint64
	LastActivity  time.Time
	Connected     bool
	Address       string
}

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Poller is the panel surface used by the bridge.
// This allows mocking the panel in tests.
type Poller interface {
	GetDeviceParams(ctx context.Context, names ...string) (map[string]string, error)
	GetRTLog(ctx context.Context) ([]EventRecord, error)
	IsConnected() bool
	Stats() Stats
	Close() error
}

// Ensure Client implements Poller.
var _ Poller = (*Client)(nil)

// Client is a session-based connection to a C3 panel.
//
// Requests are strictly request/reply and serialized by an internal mutex.
// An I/O failure marks the client disconnected. It never reconnects on its
// own; callers dial a new Client instead.
type Client struct {
	cfg  Config
	conn net.Conn

	// mu serializes exchanges and guards the session.
	mu   sync.Mutex
	sess session
	open bool

	connected atomic.Bool
	closeOnce sync.Once

	requestsTotal atomic.Uint64
	recordsRx     atomic.Uint64
	errorsTotal   atomic.Uint64
	lastActivity  atomic.Int64

	logger   Logger
	loggerMu sync.RWMutex
}

// Connect dials the panel and opens a session.
//
// Parameters:
//   - ctx: Context for cancellation of the dial and handshake
//   - cfg: Connection settings; zero values take defaults
//
// Returns:
//   - *Client: Connected client (call Close when done)
//   - error: ErrConnectionFailed (wrapped) if dialing or the handshake fails
func Connect(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	dialCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	var dialer net.Dialer
	conn, err := dialer.DialContext(dialCtx, "tcp", cfg.Address())
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %w", ErrConnectionFailed, cfg.Address(), err)
	}

	c := newClient(conn, cfg)
	if err := c.handshake(dialCtx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: handshake failed: %w", ErrConnectionFailed, err)
	}
	return c, nil
}

// newClient wraps an established connection. The session is not open yet.
func newClient(conn net.Conn, cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	c := &Client{
		cfg:  cfg,
		conn: conn,
		sess: session{id: initialSessionID},
	}
	c.sess.requestNr = uint16(initialRequestNr & 0xFFFF)
	c.connected.Store(true)
	c.lastActivity.Store(time.Now().Unix())
	return c
}

// handshake opens a session. The reply payload starts with the session id
// assigned by the panel.
func (c *Client) handshake(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	reply, err := c.roundTrip(ctx, CmdConnect, []byte(c.cfg.Password))
	if err != nil {
		return err
	}
	if len(reply) < 2 {
		return fmt.Errorf("%w: connect reply of %d bytes", ErrInvalidFrame, len(reply))
	}

	c.sess.id = binary.LittleEndian.Uint16(reply[0:2])
	c.open = true
	c.logInfo("panel session opened", "address", c.cfg.Address(), "session_id", c.sess.id)
	return nil
}

// request performs one exchange on the open session and returns the reply
// data with the session prefix removed.
func (c *Client) request(ctx context.Context, cmd Command, data []byte) ([]byte, error) {
	if !c.IsConnected() {
		return nil, ErrNotConnected
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.open {
		return nil, ErrNotConnected
	}
	reply, err := c.roundTrip(ctx, cmd, data)
	if err != nil {
		return nil, err
	}
	if len(reply) < sessionHeaderSize {
		return nil, fmt.Errorf("%w: reply of %d bytes has no session header", ErrInvalidFrame, len(reply))
	}
	return reply[sessionHeaderSize:], nil
}

// roundTrip writes one frame and reads the reply. Must be called with mu held.
func (c *Client) roundTrip(ctx context.Context, cmd Command, data []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled: %w", err)
	}

	deadline := time.Now().Add(c.cfg.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		return nil, c.fail(fmt.Errorf("set deadline: %w", err))
	}

	// Unblock pending I/O when ctx is cancelled mid-exchange.
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	c.sess.requestNr++
	sess := c.sess
	frame := encodeFrame(cmd, &sess, data)

	c.requestsTotal.Add(1)
	if _, err := c.conn.Write(frame); err != nil {
		return nil, c.fail(fmt.Errorf("write 0x%02X: %w", byte(cmd), err))
	}

	reply, payload, err := readFrame(c.conn)
	if err != nil {
		return nil, c.fail(fmt.Errorf("read reply to 0x%02X: %w", byte(cmd), err))
	}
	c.lastActivity.Store(time.Now().Unix())

	switch reply {
	case ReplyOK:
		return payload, nil
	case ReplyError:
		c.errorsTotal.Add(1)
		return nil, fmt.Errorf("%w: command 0x%02X: %s", ErrDeviceError, byte(cmd), errorCode(payload))
	default:
		c.errorsTotal.Add(1)
		return nil, fmt.Errorf("%w: unexpected reply 0x%02X to 0x%02X", ErrInvalidFrame, byte(reply), byte(cmd))
	}
}

// fail records a transport error and marks the client disconnected.
func (c *Client) fail(err error) error {
	c.errorsTotal.Add(1)
	c.connected.Store(false)
	c.logError("panel exchange failed", err)
	return err
}

// errorCode renders the signed error code the panel puts after the session
// header of an error reply.
func errorCode(payload []byte) string {
	if len(payload) >= sessionHeaderSize+4 {
		code := int32(binary.LittleEndian.Uint32(payload[sessionHeaderSize:]))
		return fmt.Sprintf("error code %d", code)
	}
	return fmt.Sprintf("payload % X", payload)
}

// GetDeviceParams reads device parameters by name.
//
// The panel answers with "key=value" pairs separated by commas. Names the
// panel does not know are absent from the result.
func (c *Client) GetDeviceParams(ctx context.Context, names ...string) (map[string]string, error) {
	reply, err := c.request(ctx, CmdGetParam, []byte(strings.Join(names, ",")))
	if err != nil {
		return nil, fmt.Errorf("get device params: %w", err)
	}
	return parseParams(reply), nil
}

// parseParams decodes a "k=v,k=v" parameter reply.
func parseParams(data []byte) map[string]string {
	data = bytes.TrimRight(data, "\x00")
	params := make(map[string]string)
	for pair := range strings.SplitSeq(string(data), ",") {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			continue
		}
		params[key] = strings.TrimSpace(value)
	}
	return params
}

// GetRTLog fetches the records logged since the previous call. The reply
// normally ends with a door/alarm status record; see EventRecord.IsStatus.
func (c *Client) GetRTLog(ctx context.Context) ([]EventRecord, error) {
	reply, err := c.request(ctx, CmdRTLog, nil)
	if err != nil {
		return nil, fmt.Errorf("get rt log: %w", err)
	}
	records, err := parseRTLog(reply)
	if err != nil {
		c.errorsTotal.Add(1)
		return nil, fmt.Errorf("get rt log: %w", err)
	}
	c.recordsRx.Add(uint64(len(records)))
	return records, nil
}

// IsConnected returns true while the session is usable.
func (c *Client) IsConnected() bool {
	return c.connected.Load()
}

// Close ends the session and closes the connection.
// It sends a best-effort disconnect first. Safe to call multiple times.
//
// Returns:
//   - error: nil (closing is best-effort)
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		if c.IsConnected() {
			ctx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
			if _, err := c.request(ctx, CmdDisconnect, nil); err != nil {
				c.logWarn("panel disconnect failed", "error", err)
			}
			cancel()
		}
		c.connected.Store(false)
		c.conn.Close()
		c.logInfo("panel connection closed", "address", c.cfg.Address())
	})
	return nil
}

// Stats returns current operational statistics.
func (c *Client) Stats() Stats {
	return Stats{
		RequestsTotal: c.requestsTotal.Load(),
		RecordsRx:     c.recordsRx.Load(),
		ErrorsTotal:   c.errorsTotal.Load(),
		LastActivity:  time.Unix(c.lastActivity.Load(), 0),
		Connected:     c.IsConnected(),
		Address:       c.cfg.Address(),
	}
}

// SetLogger sets the logger for this client.
func (c *Client) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

func (c *Client) getLogger() Logger {
	c.loggerMu.RLock()
	defer c.loggerMu.RUnlock()
	return c.logger
}

func (c *Client) logInfo(msg string, keysAndValues ...any) {
	if logger := c.getLogger(); logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

func (c *Client) logWarn(msg string, keysAndValues ...any) {
	if logger := c.getLogger(); logger != nil {
		logger.Warn(msg, keysAndValues...)
	}
}

func (c *Client) logError(msg string, err error) {
	if logger := c.getLogger(); logger != nil {
		logger.Error(msg, "error", err)
	}
}
