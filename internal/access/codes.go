package access

import "fmt"

// EventCode is the vendor event code reported by a C3 panel in its real-time log.
type EventCode int

// C3 event codes.
const (
	EventNA                         EventCode = -1
	EventNormalPunchOpen            EventCode = 0
	EventPunchNormalOpenTZ          EventCode = 1
	EventFirstCardNormalOpen        EventCode = 2
	EventMultiCardOpen              EventCode = 3
	EventEmergencyPassOpen          EventCode = 4
	EventOpenNormalOpenTZ           EventCode = 5
	EventLinkageTriggered           EventCode = 6
	EventCancelAlarm                EventCode = 7
	EventRemoteOpening              EventCode = 8
	EventRemoteClosing              EventCode = 9
	EventDisableIntradayNormalOpen  EventCode = 10
	EventEnableIntradayNormalOpen   EventCode = 11
	EventOpenAuxOutput              EventCode = 12
	EventCloseAuxOutput             EventCode = 13
	EventPressFingerOpen            EventCode = 14
	EventMultiCardOpenFP            EventCode = 15
	EventFPNormalOpenTZ             EventCode = 16
	EventCardFPOpen                 EventCode = 17
	EventFirstCardNormalOpenFP      EventCode = 18
	EventFirstCardNormalOpenCardFP  EventCode = 19
	EventTooShortPunchInterval      EventCode = 20
	EventDoorInactiveTZ             EventCode = 21
	EventIllegalTZ                  EventCode = 22
	EventAccessDenied               EventCode = 23
	EventAntiPassback               EventCode = 24
	EventInterlock                  EventCode = 25
	EventMultiCardAuth              EventCode = 26
	EventUnregisteredCard           EventCode = 27
	EventOpeningTimeout             EventCode = 28
	EventCardExpired                EventCode = 29
	EventPasswordError              EventCode = 30
	EventTooShortFPInterval         EventCode = 31
	EventMultiCardAuthFP            EventCode = 32
	EventFPExpired                  EventCode = 33
	EventUnregisteredFP             EventCode = 34
	EventDoorInactiveTZFP           EventCode = 35
	EventDoorInactiveTZExit         EventCode = 36
	EventFailedCloseNormalOpenTZ    EventCode = 37
	EventDuressPasswordOpen         EventCode = 101
	EventOpenedAccidentally         EventCode = 102
	EventDuressFPOpen               EventCode = 103
	EventDoorOpenedCorrect          EventCode = 200
	EventDoorClosedCorrect          EventCode = 201
	EventExitButtonOpen             EventCode = 202
	EventMultiCardOpenCardFP        EventCode = 203
	EventNormalOpenTZOver           EventCode = 204
	EventRemoteNormalOpen           EventCode = 205
	EventDeviceStart                EventCode = 206
	EventAuxInputDisconnect         EventCode = 220
	EventAuxInputShort              EventCode = 221
	EventDoorAlarmStatus            EventCode = 255
)

var eventDescriptions = map[EventCode]string{
	EventNA:                        "N/A",
	EventNormalPunchOpen:           "Normal Punch Open",
	EventPunchNormalOpenTZ:         "Punch during Normal Open Time Zone",
	EventFirstCardNormalOpen:       "First Card Normal Open (Punch Card)",
	EventMultiCardOpen:             "Multi-Card Open (Punching Card)",
	EventEmergencyPassOpen:         "Emergency Password Open",
	EventOpenNormalOpenTZ:          "Open during Normal Open Time Zone",
	EventLinkageTriggered:          "Linkage Event Triggered",
	EventCancelAlarm:               "Cancel Alarm",
	EventRemoteOpening:             "Remote Opening",
	EventRemoteClosing:             "Remote Closing",
	EventDisableIntradayNormalOpen: "Disable Intraday Normal Open Time Zone",
	EventEnableIntradayNormalOpen:  "Enable Intraday Normal Open Time Zone",
	EventOpenAuxOutput:             "Open Auxiliary Output",
	EventCloseAuxOutput:            "Close Auxiliary Output",
	EventPressFingerOpen:           "Press Fingerprint Open",
	EventMultiCardOpenFP:           "Multi-Card Open (Press Fingerprint)",
	EventFPNormalOpenTZ:            "Press Fingerprint during Normal Open Time Zone",
	EventCardFPOpen:                "Card plus Fingerprint Open",
	EventFirstCardNormalOpenFP:     "First Card Normal Open (Press Fingerprint)",
	EventFirstCardNormalOpenCardFP: "First Card Normal Open (Card plus Fingerprint)",
	EventTooShortPunchInterval:     "Too Short Punch Interval",
	EventDoorInactiveTZ:            "Door Inactive Time Zone (Punch Card)",
	EventIllegalTZ:                 "Illegal Time Zone",
	EventAccessDenied:              "Access Denied",
	EventAntiPassback:              "Anti-Passback",
	EventInterlock:                 "Interlock",
	EventMultiCardAuth:             "Multi-Card Authentication (Punching Card)",
	EventUnregisteredCard:          "Unregistered Card",
	EventOpeningTimeout:            "Opening Timeout",
	EventCardExpired:               "Card Expired",
	EventPasswordError:             "Password Error",
	EventTooShortFPInterval:        "Too Short Fingerprint Pressing Interval",
	EventMultiCardAuthFP:           "Multi-Card Authentication (Press Fingerprint)",
	EventFPExpired:                 "Fingerprint Expired",
	EventUnregisteredFP:            "Unregistered Fingerprint",
	EventDoorInactiveTZFP:          "Door Inactive Time Zone (Press Fingerprint)",
	EventDoorInactiveTZExit:        "Door Inactive Time Zone (Exit Button)",
	EventFailedCloseNormalOpenTZ:   "Failed to Close during Normal Open Time Zone",
	EventDuressPasswordOpen:        "Duress Password Open",
	EventOpenedAccidentally:        "Opened Accidentally",
	EventDuressFPOpen:              "Duress Fingerprint Open",
	EventDoorOpenedCorrect:         "Door Opened Correctly",
	EventDoorClosedCorrect:         "Door Closed Correctly",
	EventExitButtonOpen:            "Exit button Open",
	EventMultiCardOpenCardFP:       "Multi-Card Open (Card plus Fingerprint)",
	EventNormalOpenTZOver:          "Normal Open Time Zone Over",
	EventRemoteNormalOpen:          "Remote Normal Opening",
	EventDeviceStart:               "Device Start",
	EventAuxInputDisconnect:        "Auxiliary Input Disconnected",
	EventAuxInputShort:             "Auxiliary Input Shorted",
	EventDoorAlarmStatus:           "Door and Alarm Status",
}

// String returns the vendor description of the code.
func (c EventCode) String() string {
	if d, ok := eventDescriptions[c]; ok {
		return d
	}
	return fmt.Sprintf("Unknown (%d)", int(c))
}

// Known reports whether the code is part of the vendor table.
func (c EventCode) Known() bool {
	_, ok := eventDescriptions[c]
	return ok
}

// VerifyMode is the verification method a reader used for an event.
type VerifyMode int

// Verification modes.
const (
	VerifyNone             VerifyMode = 0
	VerifyFinger           VerifyMode = 1
	VerifyPassword         VerifyMode = 3
	VerifyCard             VerifyMode = 4
	VerifyCardOrFinger     VerifyMode = 6
	VerifyCardWithFinger   VerifyMode = 10
	VerifyCardWithPassword VerifyMode = 11
	VerifyOthers           VerifyMode = 200
)

var verifyModeNames = map[VerifyMode][2]string{
	VerifyNone:             {"NONE", "None"},
	VerifyFinger:           {"FINGER", "Only finger"},
	VerifyPassword:         {"PASSWORD", "Only password"},
	VerifyCard:             {"CARD", "Only card"},
	VerifyCardOrFinger:     {"CARD_OR_FINGER", "Card or finger"},
	VerifyCardWithFinger:   {"CARD_WITH_FINGER", "Card and finger"},
	VerifyCardWithPassword: {"CARD_WITH_PASSWORD", "Card and password"},
	VerifyOthers:           {"OTHERS", "Others"},
}

// Name returns the mode label used in published payloads, e.g. "CARD".
func (m VerifyMode) Name() string {
	if n, ok := verifyModeNames[m]; ok {
		return n[0]
	}
	return fmt.Sprintf("UNKNOWN_%d", int(m))
}

// String returns the human-readable description, e.g. "Only card".
func (m VerifyMode) String() string {
	if n, ok := verifyModeNames[m]; ok {
		return n[1]
	}
	return fmt.Sprintf("Unknown (%d)", int(m))
}

// InOutDirection tells whether the reader that produced an event is an entry or exit reader.
type InOutDirection int

// Reader directions.
const (
	DirectionEntry InOutDirection = 0
	DirectionNone  InOutDirection = 2
	DirectionExit  InOutDirection = 3
)

var directionNames = map[InOutDirection][2]string{
	DirectionEntry: {"ENTRY", "Entry"},
	DirectionNone:  {"NONE", "None"},
	DirectionExit:  {"EXIT", "Exit"},
}

// Name returns the direction label used in published payloads, e.g. "ENTRY".
func (d InOutDirection) Name() string {
	if n, ok := directionNames[d]; ok {
		return n[0]
	}
	return fmt.Sprintf("UNKNOWN_%d", int(d))
}

// String returns the human-readable description.
func (d InOutDirection) String() string {
	if n, ok := directionNames[d]; ok {
		return n[1]
	}
	return fmt.Sprintf("Unknown (%d)", int(d))
}
