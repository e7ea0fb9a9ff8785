package event

import "time"

type Type string

const (
	TypeSessionLoading  Type = "session.loading"
	TypeSessionResolved Type = "session.resolved"
	TypeSessionCleared  Type = "session.cleared"
)

// Event is one committed session transition. Seq is assigned by the bus and
// increases with every publish, so a listener can ignore anything older than
// what it has already applied.
type Event struct {
	ID      string    `json:"id"`
	Seq     uint64    `json:"seq"`
	Type    Type      `json:"type"`
	Payload any       `json:"payload"`
	At      time.Time `json:"at"`
}

type Bus interface {
	Publish(e Event)
	Subscribe() *Subscription
}
