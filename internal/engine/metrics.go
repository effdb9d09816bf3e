package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	advancesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "governor_phase_advances_total",
		Help: "Phase advancement attempts by outcome.",
	}, []string{"status"})

	handoffsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "governor_handoffs_total",
		Help: "Handoff validations by outcome.",
	}, []string{"status"})

	gateRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "governor_gate_runs_total",
		Help: "Gate runs by verdict.",
	}, []string{"verdict"})
)
