package service

import (
	"context"
	"strings"
	"time"

	"wallet_gateway/internal/app/port"
	"wallet_gateway/internal/config"
	"wallet_gateway/internal/domain/entity"
	"wallet_gateway/pkg/metrics"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

// HistoryService fetches the most recent transactions of an address on demand.
// History is best-effort: any transport, parse or service failure degrades to
// an empty list and never blocks other functionality.
type HistoryService struct {
	client     port.HistoryClient
	cache      *gocache.Cache
	logger     *zap.Logger
	maxEntries int
}

// NewHistoryService creates the history fetcher with a short-TTL cache so
// repeated opens of the history view do not hammer the explorer API.
func NewHistoryService(client port.HistoryClient, cfg *config.Config, logger *zap.Logger) *HistoryService {
	return &HistoryService{
		client: client,
		cache: gocache.New(
			time.Duration(cfg.History.CacheTTLSeconds)*time.Second,
			time.Duration(cfg.History.CacheCleanupMins)*time.Minute,
		),
		logger:     logger.Named("HistoryService"),
		maxEntries: cfg.History.MaxEntries,
	}
}

// Recent returns up to the configured number of most recent transactions for
// the address, newest first. The list is replaced wholesale on each fetch.
func (s *HistoryService) Recent(ctx context.Context, address string) []entity.HistoryEntry {
	if address == "" {
		return []entity.HistoryEntry{}
	}
	key := strings.ToLower(address)

	if cached, found := s.cache.Get(key); found {
		if entries, ok := cached.([]entity.HistoryEntry); ok {
			metrics.HistoryFetchesTotal.WithLabelValues("cached").Inc()
			return entries
		}
	}

	entries, err := s.client.RecentTransactions(ctx, address, s.maxEntries)
	if err != nil {
		// Degrade silently; history must never surface a blocking error.
		metrics.HistoryFetchesTotal.WithLabelValues("degraded").Inc()
		s.logger.Warn("History fetch degraded to empty list",
			zap.String("address", entity.TruncateAddress(address)), zap.Error(err))
		return []entity.HistoryEntry{}
	}
	if len(entries) > s.maxEntries {
		entries = entries[:s.maxEntries]
	}
	if entries == nil {
		entries = []entity.HistoryEntry{}
	}

	if len(entries) == 0 {
		metrics.HistoryFetchesTotal.WithLabelValues("empty").Inc()
	} else {
		metrics.HistoryFetchesTotal.WithLabelValues("ok").Inc()
	}
	s.cache.Set(key, entries, gocache.DefaultExpiration)
	return entries
}
