package c3

import (
	"bytes"
	"errors"
	"testing"
)

func TestCRC16(t *testing.T) {
	// CRC-16/ARC check value.
	if got := crc16([]byte("123456789")); got != 0xBB3D {
		t.Errorf("crc16() = 0x%04X, want 0xBB3D", got)
	}
	if got := crc16(nil); got != 0 {
		t.Errorf("crc16(nil) = 0x%04X, want 0", got)
	}
}

func TestEncodeFrame_Session(t *testing.T) {
	frame := encodeFrame(CmdConnect, &session{id: 0xFEFE, requestNr: 0xFEFF}, []byte("pw"))

	wantPrefix := []byte{0xAA, 0x01, 0x76, 0x06, 0x00, 0xFE, 0xFE, 0xFF, 0xFE, 'p', 'w'}
	if !bytes.HasPrefix(frame, wantPrefix) {
		t.Fatalf("frame = % X, want prefix % X", frame, wantPrefix)
	}
	if len(frame) != len(wantPrefix)+3 {
		t.Fatalf("frame length = %d, want %d", len(frame), len(wantPrefix)+3)
	}
	if frame[len(frame)-1] != frameEnd {
		t.Errorf("last byte = 0x%02X, want 0x55", frame[len(frame)-1])
	}

	crc := crc16(wantPrefix[1:])
	if frame[len(frame)-3] != byte(crc) || frame[len(frame)-2] != byte(crc>>8) {
		t.Errorf("crc bytes = % X, want 0x%04X little-endian", frame[len(frame)-3:len(frame)-1], crc)
	}
}

func TestEncodeFrame_Sessionless(t *testing.T) {
	frame := encodeFrame(CmdGetParam, nil, nil)
	if len(frame) != frameHeaderSize+frameTrailerSize {
		t.Fatalf("frame = % X", frame)
	}
	if frame[3] != 0 || frame[4] != 0 {
		t.Errorf("length = % X, want 00 00", frame[3:5])
	}
}

func TestReadFrame_RoundTrip(t *testing.T) {
	frame := encodeFrame(ReplyOK, &session{id: 0x1234, requestNr: 7}, []byte{0xDE, 0xAD})

	cmd, payload, err := readFrame(bytes.NewReader(frame))
	if err != nil {
		t.Fatalf("readFrame() error = %v", err)
	}
	if cmd != ReplyOK {
		t.Errorf("cmd = 0x%02X, want 0xC8", byte(cmd))
	}
	want := []byte{0x34, 0x12, 0x07, 0x00, 0xDE, 0xAD}
	if !bytes.Equal(payload, want) {
		t.Errorf("payload = % X, want % X", payload, want)
	}
}

func TestReadFrame_Errors(t *testing.T) {
	valid := encodeFrame(ReplyOK, nil, []byte{0x01, 0x02})

	corrupt := func(i int, b byte) []byte {
		f := bytes.Clone(valid)
		f[i] = b
		return f
	}

	tests := []struct {
		name    string
		frame   []byte
		wantErr error
	}{
		{"bad start", corrupt(0, 0x00), ErrInvalidFrame},
		{"bad version", corrupt(1, 0x02), ErrInvalidFrame},
		{"bad end", corrupt(len(valid)-1, 0x00), ErrInvalidFrame},
		{"bad crc", corrupt(len(valid)-3, valid[len(valid)-3]^0xFF), ErrChecksum},
		{"payload changed", corrupt(5, 0x09), ErrChecksum},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := readFrame(bytes.NewReader(tt.frame))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("readFrame() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestReadFrame_Truncated(t *testing.T) {
	valid := encodeFrame(ReplyOK, nil, []byte{0x01, 0x02})
	for _, n := range []int{0, 3, len(valid) - 1} {
		if _, _, err := readFrame(bytes.NewReader(valid[:n])); err == nil {
			t.Errorf("readFrame(%d bytes) should fail", n)
		}
	}
}
