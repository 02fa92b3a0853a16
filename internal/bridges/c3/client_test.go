package c3

import (
	"context"
	"encoding/binary"
	"errors"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"
)

// fakePanel answers C3 requests on one connection.
type fakePanel struct {
	sessionID uint16
	password  string
	params    string
	errorOn   Command

	mu       sync.Mutex
	rtlog    [][]byte
	received []receivedFrame
}

type receivedFrame struct {
	cmd  Command
	sess session
	data []byte
}

func newFakePanel() *fakePanel {
	return &fakePanel{
		sessionID: 0x2A2B,
		params:    "~SerialNumber=DGD9190019050335134,LockCount=2,ReaderCount=2,AuxInCount=2,AuxOutCount=2,FirmVer=AC Ver 4.3.4\x00",
	}
}

func (p *fakePanel) queueRTLog(records ...EventRecord) {
	var data []byte
	for _, r := range records {
		data = append(data, recordBytes(r)...)
	}
	p.mu.Lock()
	p.rtlog = append(p.rtlog, data)
	p.mu.Unlock()
}

func (p *fakePanel) frames() []receivedFrame {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]receivedFrame(nil), p.received...)
}

func (p *fakePanel) serve(conn net.Conn) {
	defer conn.Close()
	for {
		cmd, payload, err := readFrame(conn)
		if err != nil || len(payload) < sessionHeaderSize {
			return
		}
		req := receivedFrame{
			cmd: cmd,
			sess: session{
				id:        binary.LittleEndian.Uint16(payload[0:2]),
				requestNr: binary.LittleEndian.Uint16(payload[2:4]),
			},
			data: payload[sessionHeaderSize:],
		}

		p.mu.Lock()
		p.received = append(p.received, req)
		reply, body := ReplyOK, []byte(nil)
		switch cmd {
		case CmdConnect:
			if p.password != "" && string(req.data) != p.password {
				reply = ReplyError
				body = binary.LittleEndian.AppendUint32(nil, uint32(0xFFFFFFFF))
			} else {
				body = binary.LittleEndian.AppendUint16(nil, p.sessionID)
				body = append(body, 0x00, 0x00)
			}
		case CmdGetParam:
			body = []byte(p.params)
		case CmdRTLog:
			if len(p.rtlog) > 0 {
				body, p.rtlog = p.rtlog[0], p.rtlog[1:]
			}
		}
		if cmd == p.errorOn {
			reply = ReplyError
			body = binary.LittleEndian.AppendUint32(nil, uint32(0xFFFFFFF3))
		}
		p.mu.Unlock()

		var rs *session
		if cmd != CmdConnect {
			rs = &session{id: p.sessionID, requestNr: req.sess.requestNr}
		}
		if _, err := conn.Write(encodeFrame(reply, rs, body)); err != nil {
			return
		}
	}
}

// newPipeClient returns a client wired to panel through net.Pipe, with
// the session already open.
func newPipeClient(t *testing.T, panel *fakePanel) (*Client, net.Conn) {
	t.Helper()

	clientConn, panelConn := net.Pipe()
	go panel.serve(panelConn)

	c := newClient(clientConn, Config{Host: "panel", Port: DefaultPort, Password: panel.password, Timeout: 2 * time.Second})
	t.Cleanup(func() {
		c.Close()
		panelConn.Close()
	})

	if err := c.handshake(context.Background()); err != nil {
		t.Fatalf("handshake() error = %v", err)
	}
	return c, panelConn
}

func TestClient_Handshake(t *testing.T) {
	panel := newFakePanel()
	panel.password = "secret"
	c, _ := newPipeClient(t, panel)

	if c.sess.id != 0x2A2B {
		t.Errorf("session id = 0x%04X, want 0x2A2B", c.sess.id)
	}

	frames := panel.frames()
	if len(frames) != 1 {
		t.Fatalf("panel received %d frames, want 1", len(frames))
	}
	first := frames[0]
	if first.cmd != CmdConnect {
		t.Errorf("cmd = 0x%02X, want 0x76", byte(first.cmd))
	}
	if first.sess.id != initialSessionID || first.sess.requestNr != 0xFEFF {
		t.Errorf("session header = %04X/%04X, want FEFE/FEFF", first.sess.id, first.sess.requestNr)
	}
	if string(first.data) != "secret" {
		t.Errorf("password = %q, want secret", first.data)
	}
}

func TestClient_HandshakeRejected(t *testing.T) {
	panel := newFakePanel()
	panel.password = "secret"

	clientConn, panelConn := net.Pipe()
	go panel.serve(panelConn)
	defer panelConn.Close()

	c := newClient(clientConn, Config{Host: "panel", Password: "wrong", Timeout: time.Second})
	defer c.Close()

	err := c.handshake(context.Background())
	if !errors.Is(err, ErrDeviceError) {
		t.Errorf("handshake() error = %v, want ErrDeviceError", err)
	}
}

func TestClient_GetDeviceParams(t *testing.T) {
	panel := newFakePanel()
	c, _ := newPipeClient(t, panel)

	params, err := c.GetDeviceParams(context.Background(), ParamSerialNumber, ParamLockCount, ParamFirmware)
	if err != nil {
		t.Fatalf("GetDeviceParams() error = %v", err)
	}
	if params[ParamSerialNumber] != "DGD9190019050335134" {
		t.Errorf("serial = %q", params[ParamSerialNumber])
	}
	if params[ParamLockCount] != "2" {
		t.Errorf("LockCount = %q", params[ParamLockCount])
	}
	if params[ParamFirmware] != "AC Ver 4.3.4" {
		t.Errorf("FirmVer = %q", params[ParamFirmware])
	}

	frames := panel.frames()
	req := frames[len(frames)-1]
	if req.cmd != CmdGetParam {
		t.Errorf("cmd = 0x%02X, want 0x04", byte(req.cmd))
	}
	if string(req.data) != "~SerialNumber,LockCount,FirmVer" {
		t.Errorf("request data = %q", req.data)
	}
	if req.sess.id != 0x2A2B || req.sess.requestNr != 0xFF00 {
		t.Errorf("session header = %04X/%04X, want 2A2B/FF00", req.sess.id, req.sess.requestNr)
	}
}

func TestClient_GetRTLog(t *testing.T) {
	panel := newFakePanel()
	ts := time.Date(2024, time.May, 6, 7, 8, 9, 0, time.UTC)
	panel.queueRTLog(
		EventRecord{CardNo: 42, Verified: 4, PortNr: 1, Event: 0, Timestamp: ts},
		EventRecord{Event: 255, InOut: 2, Timestamp: ts},
	)
	c, _ := newPipeClient(t, panel)

	records, err := c.GetRTLog(context.Background())
	if err != nil {
		t.Fatalf("GetRTLog() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].CardNo != 42 || records[0].PortNr != 1 || !records[0].Timestamp.Equal(ts) {
		t.Errorf("records[0] = %+v", records[0])
	}
	if !records[1].IsStatus() {
		t.Error("records[1] should be a status record")
	}

	// Nothing queued: empty reply.
	records, err = c.GetRTLog(context.Background())
	if err != nil || len(records) != 0 {
		t.Errorf("second GetRTLog() = %v, %v", records, err)
	}

	stats := c.Stats()
	if stats.RecordsRx != 2 {
		t.Errorf("RecordsRx = %d, want 2", stats.RecordsRx)
	}
	if stats.RequestsTotal != 3 {
		t.Errorf("RequestsTotal = %d, want 3", stats.RequestsTotal)
	}
	if !stats.Connected || stats.Address != "panel:4370" {
		t.Errorf("stats = %+v", stats)
	}
}

func TestClient_DeviceErrorKeepsConnection(t *testing.T) {
	panel := newFakePanel()
	panel.errorOn = CmdRTLog
	c, _ := newPipeClient(t, panel)

	_, err := c.GetRTLog(context.Background())
	if !errors.Is(err, ErrDeviceError) {
		t.Fatalf("GetRTLog() error = %v, want ErrDeviceError", err)
	}
	if !c.IsConnected() {
		t.Error("an error reply should not drop the connection")
	}
	if c.Stats().ErrorsTotal != 1 {
		t.Errorf("ErrorsTotal = %d, want 1", c.Stats().ErrorsTotal)
	}
}

func TestClient_TransportFailure(t *testing.T) {
	panel := newFakePanel()
	c, panelConn := newPipeClient(t, panel)

	panelConn.Close()

	if _, err := c.GetRTLog(context.Background()); err == nil {
		t.Fatal("GetRTLog() should fail on a closed connection")
	}
	if c.IsConnected() {
		t.Error("client should be disconnected after a transport failure")
	}
	if _, err := c.GetRTLog(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("GetRTLog() after failure error = %v, want ErrNotConnected", err)
	}
}

func TestClient_CancelledContext(t *testing.T) {
	c, _ := newPipeClient(t, newFakePanel())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := c.GetRTLog(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("GetRTLog() error = %v, want context.Canceled", err)
	}
	if !c.IsConnected() {
		t.Error("a cancelled request should not drop the connection")
	}
}

func TestClient_CloseSendsDisconnect(t *testing.T) {
	panel := newFakePanel()
	c, _ := newPipeClient(t, panel)

	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}

	frames := panel.frames()
	if last := frames[len(frames)-1]; last.cmd != CmdDisconnect {
		t.Errorf("last command = 0x%02X, want 0x02", byte(last.cmd))
	}
	if c.IsConnected() {
		t.Error("IsConnected() = true after Close")
	}
}

func TestConnect_TCP(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	panel := newFakePanel()
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		panel.serve(conn)
	}()

	addr := ln.Addr().(*net.TCPAddr)
	c, err := Connect(context.Background(), Config{Host: "127.0.0.1", Port: addr.Port, Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer c.Close()

	if c.Stats().Address != net.JoinHostPort("127.0.0.1", strconv.Itoa(addr.Port)) {
		t.Errorf("Address = %q", c.Stats().Address)
	}
	params, err := c.GetDeviceParams(context.Background(), ParamSerialNumber)
	if err != nil {
		t.Fatalf("GetDeviceParams() error = %v", err)
	}
	if params[ParamSerialNumber] == "" {
		t.Error("serial number is empty")
	}
}

func TestConnect_DialFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	_, err = Connect(context.Background(), Config{Host: "127.0.0.1", Port: port, Timeout: time.Second})
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestParseParams(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want map[string]string
	}{
		{"empty", "", map[string]string{}},
		{"pairs", "A=1,B=two", map[string]string{"A": "1", "B": "two"}},
		{"trailing nul", "A=1\x00\x00", map[string]string{"A": "1"}},
		{"trailing comma", "A=1,", map[string]string{"A": "1"}},
		{"value with equals", "A=x=y", map[string]string{"A": "x=y"}},
		{"no value", "A,B=2", map[string]string{"B": "2"}},
		{"spaces", " A = 1 ", map[string]string{"A": "1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseParams([]byte(tt.in))
			if len(got) != len(tt.want) {
				t.Fatalf("parseParams(%q) = %v, want %v", tt.in, got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("parseParams(%q)[%q] = %q, want %q", tt.in, k, got[k], v)
				}
			}
		})
	}
}
