package services

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// quotaDenied counts requests rejected by a daily limit, by action.
	quotaDenied = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tavern_quota_denied_total",
			Help: "Requests rejected because a daily quota was reached.",
		},
		[]string{"action"},
	)

	// whiskeyTransfers counts committed whiskey transfers.
	whiskeyTransfers = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tavern_whiskey_transfers_total",
			Help: "Committed whiskey point transfers.",
		},
	)

	// storiesDistributed counts stories handed out by daily or random fetch.
	storiesDistributed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tavern_stories_distributed_total",
			Help: "Stories delivered to readers.",
		},
	)
)

func init() {
	prometheus.MustRegister(quotaDenied, whiskeyTransfers, storiesDistributed)
}

// observeQuota counts err when it is a quota rejection and returns it as is.
func observeQuota(err error) error {
	var qe *QuotaExceededError
	if errors.As(err, &qe) {
		quotaDenied.WithLabelValues(string(qe.Action)).Inc()
	}
	return err
}
