package checkout

// Status is the checkout session lifecycle. Terminal states are final; no
// further mutation is permitted.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusExpired   Status = "expired"
)

var validNext = map[Status]map[Status]bool{
	StatusActive:    {StatusCompleted: true, StatusFailed: true, StatusExpired: true},
	StatusCompleted: {},
	StatusFailed:    {},
	StatusExpired:   {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusExpired
}

// ReservationStatus is the per-line hold lifecycle: active -> confirmed
// (permanent decrement) or active -> released (stock returned).
type ReservationStatus string

const (
	ReservationActive    ReservationStatus = "active"
	ReservationConfirmed ReservationStatus = "confirmed"
	ReservationReleased  ReservationStatus = "released"
)

const ReleaseReasonExpired = "expired"
