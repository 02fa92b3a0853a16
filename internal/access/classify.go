package access

// Code tables shared by the classifier and the state deriver.
var (
	doorOpenCodes = codeSet(
		EventNormalPunchOpen,
		EventOpenNormalOpenTZ,
		EventOpeningTimeout,
		EventDoorOpenedCorrect,
		EventExitButtonOpen,
		EventRemoteNormalOpen,
		EventMultiCardAuth,
		EventFailedCloseNormalOpenTZ,
	)

	cardSuccessCodes = codeSet(
		EventNormalPunchOpen,
		EventPunchNormalOpenTZ,
	)

	cardDeniedCodes = codeSet(
		EventTooShortPunchInterval,
		EventDoorInactiveTZ,
		EventIllegalTZ,
		EventAccessDenied,
		EventAntiPassback,
		EventInterlock,
		EventCardExpired,
	)

	pinDeniedCodes = codeSet(
		EventPasswordError,
		EventDuressPasswordOpen,
	)

	fingerprintDeniedCodes = codeSet(
		EventFPExpired,
		EventDuressFPOpen,
	)
)

func codeSet(codes ...EventCode) map[EventCode]struct{} {
	m := make(map[EventCode]struct{}, len(codes))
	for _, c := range codes {
		m[c] = struct{}{}
	}
	return m
}

func in(set map[EventCode]struct{}, c EventCode) bool {
	_, ok := set[c]
	return ok
}

// Classify maps a raw event to its normalized type.
//
// Rules are evaluated in priority order and the first match wins:
//  1. missing or negative code: other
//  2. door-open codes: door_open
//  3. door closed correctly: door_close
//  4. exit button: door_button (shadowed by rule 2, kept for completeness)
//  5. aux input disconnected / shorted
//  6. card success (with card verification), card denied, unregistered card
//  7. PIN denied
//  8. fingerprint denied, unregistered fingerprint
//  9. fallback on the verification mode alone
//  10. other
//
// Classify never fails and has no side effects.
func Classify(raw RawEvent) EventType {
	code, ok := raw.EventCode()
	if !ok || code < 0 {
		return EventTypeOther
	}
	verify, hasVerify := raw.VerifyMode()

	switch {
	case in(doorOpenCodes, code):
		return EventTypeDoorOpen
	case code == EventDoorClosedCorrect:
		return EventTypeDoorClose
	case code == EventExitButtonOpen:
		return EventTypeDoorButton
	case code == EventAuxInputDisconnect:
		return EventTypeAuxInputDisconnected
	case code == EventAuxInputShort:
		return EventTypeAuxInputConnected
	case in(cardSuccessCodes, code) && hasVerify && verify == VerifyCard:
		return EventTypeCardScanSuccess
	case in(cardDeniedCodes, code):
		return EventTypeCardScanDenied
	case code == EventUnregisteredCard:
		return EventTypeCardScanInvalid
	case in(pinDeniedCodes, code):
		return EventTypePINDenied
	case in(fingerprintDeniedCodes, code):
		return EventTypeFingerprintDenied
	case code == EventUnregisteredFP:
		return EventTypeFingerprintInvalid
	}

	if !hasVerify {
		return EventTypeOther
	}
	switch verify {
	case VerifyCard:
		return EventTypeCardScanSuccess
	case VerifyPassword:
		return EventTypePINSuccess
	case VerifyFinger:
		return EventTypeFingerprintSuccess
	case VerifyCardOrFinger, VerifyCardWithFinger, VerifyCardWithPassword:
		return EventTypeOtherSuccess
	}
	return EventTypeOther
}
