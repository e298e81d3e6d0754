package rates

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	fetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fxledger_rate_fetch_total",
		Help: "Rate provider requests by provider and outcome.",
	}, []string{"provider", "outcome"})

	staleDiscards = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fxledger_rate_stale_discards_total",
		Help: "Fetch results dropped because a newer currency selection superseded them.",
	})

	selections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fxledger_rate_selections_total",
		Help: "Display currency selections, i.e. fetch generations started.",
	})

	fallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fxledger_rate_fallbacks_total",
		Help: "Fetches answered with the built-in table because every provider failed.",
	})
)
