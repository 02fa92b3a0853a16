package c3

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Frame delimiters and protocol version.
const (
	frameStart      byte = 0xAA
	frameEnd        byte = 0x55
	protocolVersion byte = 0x01

	// frameHeaderSize is start + version + command + 2-byte length.
	frameHeaderSize = 5

	// frameTrailerSize is the 2-byte CRC plus the end marker.
	frameTrailerSize = 3

	// sessionHeaderSize is the session id and request number prefixed to
	// the payload once a session is open.
	sessionHeaderSize = 4
)

// Command is a C3 request or reply code.
type Command byte

// Request commands.
const (
	CmdConnect    Command = 0x76
	CmdDisconnect Command = 0x02
	CmdGetParam   Command = 0x04
	CmdRTLog      Command = 0x0B
)

// Reply codes.
const (
	ReplyOK    Command = 0xC8
	ReplyError Command = 0xC9
)

// Session defaults used before the panel assigns a session id.
const (
	initialSessionID = 0xFEFE
	initialRequestNr = -258
)

// session is the 4-byte prefix carried by session-based frames.
type session struct {
	id        uint16
	requestNr uint16
}

// crc16 computes CRC-16/ARC (reflected polynomial 0xA001, initial value 0).
func crc16(data []byte) uint16 {
	var crc uint16
	for _, b := range data {
		crc ^= uint16(b)
		for range 8 {
			if crc&1 != 0 {
				crc = crc>>1 ^ 0xA001
			} else {
				crc >>= 1
			}
		}
	}
	return crc
}

// encodeFrame builds a request frame. A nil sess produces a session-less frame.
//
// Layout:
//
//	0xAA 0x01 cmd lenLo lenHi [sessLo sessHi reqLo reqHi] data... crcLo crcHi 0x55
//
// The CRC covers everything from the version byte through the data.
func encodeFrame(cmd Command, sess *session, data []byte) []byte {
	size := len(data)
	if sess != nil {
		size += sessionHeaderSize
	}

	buf := make([]byte, 0, frameHeaderSize+size+frameTrailerSize)
	buf = append(buf, frameStart, protocolVersion, byte(cmd))
	buf = binary.LittleEndian.AppendUint16(buf, uint16(size))
	if sess != nil {
		buf = binary.LittleEndian.AppendUint16(buf, sess.id)
		buf = binary.LittleEndian.AppendUint16(buf, sess.requestNr)
	}
	buf = append(buf, data...)
	buf = binary.LittleEndian.AppendUint16(buf, crc16(buf[1:]))
	return append(buf, frameEnd)
}

// readFrame reads one frame from r and returns its command and payload.
// The payload is everything between the length field and the CRC,
// including the session prefix when present.
func readFrame(r io.Reader) (Command, []byte, error) {
	header := make([]byte, frameHeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return 0, nil, fmt.Errorf("read header: %w", err)
	}
	if header[0] != frameStart {
		return 0, nil, fmt.Errorf("%w: start byte 0x%02X", ErrInvalidFrame, header[0])
	}
	if header[1] != protocolVersion {
		return 0, nil, fmt.Errorf("%w: protocol version 0x%02X", ErrInvalidFrame, header[1])
	}

	size := int(binary.LittleEndian.Uint16(header[3:5]))
	rest := make([]byte, size+frameTrailerSize)
	if _, err := io.ReadFull(r, rest); err != nil {
		return 0, nil, fmt.Errorf("read body: %w", err)
	}
	if rest[len(rest)-1] != frameEnd {
		return 0, nil, fmt.Errorf("%w: end byte 0x%02X", ErrInvalidFrame, rest[len(rest)-1])
	}

	payload := rest[:size]
	got := binary.LittleEndian.Uint16(rest[size : size+2])
	covered := make([]byte, 0, frameHeaderSize-1+size)
	covered = append(covered, header[1:]...)
	covered = append(covered, payload...)
	if want := crc16(covered); got != want {
		return 0, nil, fmt.Errorf("%w: got 0x%04X, want 0x%04X", ErrChecksum, got, want)
	}

	return Command(header[2]), payload, nil
}
