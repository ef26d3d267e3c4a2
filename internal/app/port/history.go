package port

import (
	"context"

	"wallet_gateway/internal/domain/entity"
)

// HistoryClient queries the external transaction-history service for the past
// transactions of an address, newest first. Implementations return an error
// for transport or service failures; the caller decides how to degrade.
type HistoryClient interface {
	RecentTransactions(ctx context.Context, address string, limit int) ([]entity.HistoryEntry, error)
}
