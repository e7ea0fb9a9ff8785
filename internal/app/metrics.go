package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"support-portal/internal/session"
)

var sessionState = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "portal_session_state",
		Help: "1 for the state the portal session is currently in",
	},
	[]string{"state"},
)

var sessionStates = []session.State{
	session.StateInit,
	session.StateResolving,
	session.StateResolved,
	session.StateUnauthenticated,
}

func recordSessionState(snap session.Snapshot) {
	for _, state := range sessionStates {
		value := 0.0
		if state == snap.State {
			value = 1
		}
		sessionState.WithLabelValues(state.String()).Set(value)
	}
}
