package bus

import "time"

// Event kinds published by gnd components. Subscribers filter by namespace
// prefix, e.g. "survey." matches every survey event.
const (
	KindStatusChanged  = "session.status_changed"
	KindSignedOut      = "session.signed_out"
	KindStreamError    = "remote.stream_error"
	KindListUpdated    = "survey.list_updated"
	KindLoadStatus     = "survey.load_status"
	KindActivated      = "survey.activated"
	KindOfflineRemoved = "survey.offline_removed"
	KindQueued         = "submission.queued"
	KindSent           = "submission.sent"
	KindSendFailed     = "submission.send_failed"
	KindFlash          = "flash.message"
)

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// Now builds an event of the given kind stamped with the current time.
func Now(kind string, payload any) Event {
	return Event{Kind: kind, Timestamp: time.Now(), Payload: payload}
}
