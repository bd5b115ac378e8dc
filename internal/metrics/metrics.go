package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Counters exported on /metrics.
var (
	MatchesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arena_matches_created_total",
		Help: "Waiting matches created by searching players.",
	})

	MatchesPaired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arena_matches_paired_total",
		Help: "Waiting matches paired into playing matches.",
	})

	MatchesSettled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arena_matches_settled_total",
		Help: "Matches settled exactly once.",
	})

	MatchesSwept = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arena_matches_swept_total",
		Help: "Stale matches aborted by the cleanup sweep.",
	})

	SoloTestsGraded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arena_solo_tests_graded_total",
		Help: "Solo timed tests graded and applied to ratings.",
	})
)
