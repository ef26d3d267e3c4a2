package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// WalletConnectsTotal counts connect attempts by result
	// (connected, rejected, unavailable, error).
	WalletConnectsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wallet_connects_total",
			Help: "Number of wallet connect attempts by result.",
		},
		[]string{"result"},
	)

	// BalanceRefreshesTotal counts balance refreshes by field (native, token)
	// and result (ok, stale, error). Stale refreshes completed after a newer
	// one had already started and were discarded.
	BalanceRefreshesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "balance_refreshes_total",
			Help: "Number of balance refreshes by field and result.",
		},
		[]string{"field", "result"},
	)

	// TransferSubmissionsTotal counts transfer submissions by asset kind
	// (native, token, or unknown when the symbol lookup failed) and terminal
	// state (confirmed, failed, rejected_validation).
	TransferSubmissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transfer_submissions_total",
			Help: "Number of transfer submissions by asset kind and terminal state.",
		},
		[]string{"kind", "state"},
	)

	// HistoryFetchesTotal counts history fetches by result (ok, empty, degraded, cached).
	HistoryFetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "history_fetches_total",
			Help: "Number of transaction history fetches by result.",
		},
		[]string{"result"},
	)
)

// MustRegisterMetrics registers all collectors with the default registry.
// Call once at startup.
func MustRegisterMetrics() {
	prometheus.MustRegister(
		WalletConnectsTotal,
		BalanceRefreshesTotal,
		TransferSubmissionsTotal,
		HistoryFetchesTotal,
	)
}
