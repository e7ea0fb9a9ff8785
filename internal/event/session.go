package event

import (
	"time"

	"github.com/google/uuid"

	"support-portal/internal/session"
)

// FromSnapshot classifies a committed session snapshot.
func FromSnapshot(snap session.Snapshot) Event {
	kind := TypeSessionCleared
	switch {
	case snap.Loading:
		kind = TypeSessionLoading
	case snap.Identity != nil:
		kind = TypeSessionResolved
	}

	return Event{
		ID:      uuid.NewString(),
		Type:    kind,
		Payload: snap,
		At:      time.Now().UTC(),
	}
}

// SessionObserver publishes every snapshot the session commits on bus.
func SessionObserver(bus Bus) func(session.Snapshot) {
	return func(snap session.Snapshot) {
		bus.Publish(FromSnapshot(snap))
	}
}
