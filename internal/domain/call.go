package domain

type (
	CallID  string
	OfferID string
)

type CallState int

const (
	CallProposed CallState = iota
	CallActive
	CallEnded
	CallFailed
)

func (s CallState) String() string {
	switch s {
	case CallProposed:
		return "proposed"
	case CallActive:
		return "active"
	case CallEnded:
		return "ended"
	case CallFailed:
		return "failed"
	default:
		return "unknown"
	}
}

type OfferState int

const (
	OfferPending OfferState = iota
	OfferAccepted
	OfferDeclined
	OfferSuperseded
	OfferExpired
)

func (s OfferState) String() string {
	switch s {
	case OfferPending:
		return "pending"
	case OfferAccepted:
		return "accepted"
	case OfferDeclined:
		return "declined"
	case OfferSuperseded:
		return "superseded"
	case OfferExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Resolved reports whether the offer reached its single terminal outcome.
func (s OfferState) Resolved() bool { return s != OfferPending }
