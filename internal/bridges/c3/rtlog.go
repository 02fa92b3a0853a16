package c3

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"time"

	"github.com/vbartusevicius/zktaccess-mqtt/internal/access"
)

// recordSize is the length of one real-time log record in bytes.
const recordSize = 16

// panelTimeLayout is how record times are handed to the normalizer.
// The panel clock has no zone information.
const panelTimeLayout = "2006-01-02 15:04:05"

// EventRecord is one real-time log record read from the panel.
//
// Wire layout (little-endian):
//
//	card(4) pin(4) verified(1) port(1) event(1) in_out(1) time(4)
type EventRecord struct {
	CardNo    uint32
	PinNo     uint32
	Verified  uint8
	PortNr    uint8
	Event     uint8
	InOut     uint8
	Timestamp time.Time
}

// Ensure EventRecord can be normalized.
var _ access.RawEvent = EventRecord{}

// IsStatus reports whether the record is the door/alarm status record the
// panel appends to every real-time log reply.
func (r EventRecord) IsStatus() bool {
	return access.EventCode(r.Event) == access.EventDoorAlarmStatus
}

// Port returns the door number the record refers to.
func (r EventRecord) Port() (string, bool) { return strconv.Itoa(int(r.PortNr)), true }

// CardNumber returns the card number in decimal.
func (r EventRecord) CardNumber() (string, bool) {
	return strconv.FormatUint(uint64(r.CardNo), 10), true
}

// PIN returns the user PIN in decimal.
func (r EventRecord) PIN() (string, bool) { return strconv.FormatUint(uint64(r.PinNo), 10), true }

// EventCode returns the panel event type.
func (r EventRecord) EventCode() (access.EventCode, bool) { return access.EventCode(r.Event), true }

// VerifyMode returns how the credential was verified.
func (r EventRecord) VerifyMode() (access.VerifyMode, bool) {
	return access.VerifyMode(r.Verified), true
}

// Direction returns the entry/exit direction.
func (r EventRecord) Direction() (access.InOutDirection, bool) {
	return access.InOutDirection(r.InOut), true
}

// Time returns the panel timestamp, absent when it is unset.
func (r EventRecord) Time() (string, bool) {
	if r.Timestamp.IsZero() {
		return "", false
	}
	return r.Timestamp.Format(panelTimeLayout), true
}

// String renders the record for debug logs.
func (r EventRecord) String() string {
	return fmt.Sprintf("port=%d event=%d (%s) verified=%d in_out=%d card=%d pin=%d time=%s",
		r.PortNr, r.Event, access.EventCode(r.Event), r.Verified, r.InOut, r.CardNo, r.PinNo,
		r.Timestamp.Format(panelTimeLayout))
}

// parseRTLog splits a real-time log reply into records.
func parseRTLog(data []byte) ([]EventRecord, error) {
	if len(data)%recordSize != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a multiple of %d", ErrInvalidRecord, len(data), recordSize)
	}

	records := make([]EventRecord, 0, len(data)/recordSize)
	for off := 0; off < len(data); off += recordSize {
		b := data[off : off+recordSize]
		records = append(records, EventRecord{
			CardNo:    binary.LittleEndian.Uint32(b[0:4]),
			PinNo:     binary.LittleEndian.Uint32(b[4:8]),
			Verified:  b[8],
			PortNr:    b[9],
			Event:     b[10],
			InOut:     b[11],
			Timestamp: decodeTime(binary.LittleEndian.Uint32(b[12:16])),
		})
	}
	return records, nil
}

// decodeTime unpacks the panel's compact timestamp. Fields are stored as
// mixed-radix digits: seconds, minutes, hours, day-1, month-1, year-2000.
func decodeTime(t uint32) time.Time {
	sec := int(t % 60)
	t /= 60
	minute := int(t % 60)
	t /= 60
	hour := int(t % 24)
	t /= 24
	day := int(t%31) + 1
	t /= 31
	month := time.Month(t%12 + 1)
	t /= 12
	year := int(t) + 2000

	return time.Date(year, month, day, hour, minute, sec, 0, time.UTC)
}
