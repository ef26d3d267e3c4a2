package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"wallet_gateway/internal/app/port"
	"wallet_gateway/internal/config"
	"wallet_gateway/internal/domain/entity"
	"wallet_gateway/internal/infrastructure/assetloader"
	"wallet_gateway/internal/pkg/utils"
	"wallet_gateway/pkg/metrics"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// SessionService owns the wallet session state machine: connection status,
// active account and network, and the derived balances. It is the sole writer
// of the session; consumers read point-in-time snapshots.
type SessionService struct {
	provider port.WalletProvider
	registry *assetloader.Registry
	logger   *zap.Logger

	refreshTimeout time.Duration

	mu      sync.Mutex
	session entity.WalletSession
	// refreshSeq holds, per balance field, the sequence number of the most
	// recently started refresh. A refresh that completes after a newer one
	// has started must not overwrite the newer result, so results are
	// committed only when their sequence number is still the latest.
	refreshSeq map[string]uint64
	unsubs     []port.Unsubscribe
}

// NewSessionService creates the session state machine and subscribes to the
// provider's account and network change events.
func NewSessionService(
	provider port.WalletProvider,
	registry *assetloader.Registry,
	cfg *config.Config,
	logger *zap.Logger,
) *SessionService {
	s := &SessionService{
		provider:       provider,
		registry:       registry,
		logger:         logger.Named("SessionService"),
		refreshTimeout: time.Duration(cfg.Provider.RPCCallTimeoutMs) * time.Millisecond,
		session: entity.WalletSession{
			Status:        entity.Disconnected,
			TokenBalances: make(map[string]string),
			SelectedAsset: registry.Native().Symbol,
		},
		refreshSeq: make(map[string]uint64),
	}

	s.unsubs = append(s.unsubs,
		provider.SubscribeAccountChange(s.handleAccountChange),
		provider.SubscribeNetworkChange(s.handleNetworkChange),
	)
	return s
}

// Connect drives DISCONNECTED -> CONNECTING -> CONNECTED. On provider failure
// the session returns to DISCONNECTED and the error is reported; there is no
// automatic retry.
func (s *SessionService) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.session.Status == entity.Connected {
		s.mu.Unlock()
		return nil
	}
	if s.session.Status == entity.Connecting {
		s.mu.Unlock()
		return fmt.Errorf("connect already in progress")
	}
	s.session.Status = entity.Connecting
	s.mu.Unlock()

	account, err := s.provider.Connect(ctx)
	if err != nil {
		s.mu.Lock()
		s.session.Status = entity.Disconnected
		s.mu.Unlock()
		metrics.WalletConnectsTotal.WithLabelValues(connectResult(err)).Inc()
		s.logger.Warn("Wallet connect failed", zap.Error(err))
		return err
	}

	network, err := s.provider.CurrentNetwork(ctx)
	if err != nil {
		s.mu.Lock()
		s.session.Status = entity.Disconnected
		s.mu.Unlock()
		metrics.WalletConnectsTotal.WithLabelValues("error").Inc()
		s.logger.Warn("Failed to read network after connect", zap.Error(err))
		return err
	}

	s.mu.Lock()
	s.session.Status = entity.Connected
	s.session.Account = account
	s.session.Network = network
	s.mu.Unlock()

	metrics.WalletConnectsTotal.WithLabelValues("connected").Inc()
	s.logger.Info("Session connected",
		zap.String("account", entity.TruncateAddress(account)),
		zap.String("network", network))

	go s.RefreshBalances(context.Background())
	return nil
}

// Disconnect is a local-only transition back to DISCONNECTED. The provider has
// no programmatic disconnect, so no provider call is made. Account, network
// and every balance field are cleared regardless of prior state.
func (s *SessionService) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearSessionLocked()
	s.logger.Info("Session disconnected")
}

func (s *SessionService) clearSessionLocked() {
	s.session.Status = entity.Disconnected
	s.session.Account = ""
	s.session.Network = ""
	s.session.NativeBalance = ""
	s.session.TokenBalances = make(map[string]string)
}

// Close tears the session component down, detaching the provider callbacks.
func (s *SessionService) Close() {
	for _, unsub := range s.unsubs {
		unsub()
	}
	s.unsubs = nil
}

// SelectAsset switches the balance-relevant asset selection. Selecting a
// fungible token while connected triggers exactly one balance query for that
// token; selecting the native asset triggers none, since the native balance
// is tracked continuously.
func (s *SessionService) SelectAsset(ctx context.Context, symbol string) error {
	asset, ok := s.registry.BySymbol(symbol)
	if !ok {
		return entity.NewValidationError("asset", fmt.Sprintf("unknown asset %q", symbol))
	}

	s.mu.Lock()
	s.session.SelectedAsset = asset.Symbol
	connected := s.session.Status == entity.Connected && s.session.Account != ""
	account := s.session.Account
	s.mu.Unlock()

	if connected && !asset.IsNative() {
		s.refreshToken(ctx, account, asset)
	}
	return nil
}

// Snapshot returns a copy of the current session state.
func (s *SessionService) Snapshot() entity.WalletSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.session
	snap.TokenBalances = make(map[string]string, len(s.session.TokenBalances))
	for k, v := range s.session.TokenBalances {
		snap.TokenBalances[k] = v
	}
	return snap
}

// Assets returns the registry catalog for the consumer.
func (s *SessionService) Assets() []entity.Asset {
	return s.registry.All()
}

// RefreshBalances recomputes the native balance and, when a fungible token is
// selected, that token's balance. Refreshes are idempotent and the most
// recently started one wins over any stale in-flight result.
func (s *SessionService) RefreshBalances(ctx context.Context) {
	s.mu.Lock()
	connected := s.session.Status == entity.Connected && s.session.Account != ""
	account := s.session.Account
	selected := s.session.SelectedAsset
	s.mu.Unlock()
	if !connected {
		return
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		s.refreshNative(egCtx, account)
		return nil
	})
	if asset, ok := s.registry.BySymbol(selected); ok && !asset.IsNative() {
		eg.Go(func() error {
			s.refreshToken(egCtx, account, asset)
			return nil
		})
	}
	_ = eg.Wait()
}

// RefreshAssetBalance recomputes the balance of a single asset, used after a
// confirmed transfer of that asset.
func (s *SessionService) RefreshAssetBalance(ctx context.Context, asset entity.Asset) {
	s.mu.Lock()
	connected := s.session.Status == entity.Connected && s.session.Account != ""
	account := s.session.Account
	s.mu.Unlock()
	if !connected {
		return
	}
	if asset.IsNative() {
		s.refreshNative(ctx, account)
		return
	}
	s.refreshToken(ctx, account, asset)
}

func (s *SessionService) refreshNative(ctx context.Context, account string) {
	seq := s.beginRefresh("native")

	callCtx, cancel := context.WithTimeout(ctx, s.refreshTimeout)
	defer cancel()

	balance, err := s.provider.NativeBalanceOf(callCtx, account)
	if err != nil {
		metrics.BalanceRefreshesTotal.WithLabelValues("native", "error").Inc()
		s.logger.Warn("Native balance refresh failed", zap.Error(err))
		return
	}

	native := s.registry.Native()
	formatted, err := utils.FormatBigInt(balance, native.Decimals)
	if err != nil {
		metrics.BalanceRefreshesTotal.WithLabelValues("native", "error").Inc()
		s.logger.Warn("Failed to format native balance", zap.Error(err))
		return
	}

	if s.commitRefresh("native", seq, func() {
		s.session.NativeBalance = formatted
	}) {
		metrics.BalanceRefreshesTotal.WithLabelValues("native", "ok").Inc()
	} else {
		metrics.BalanceRefreshesTotal.WithLabelValues("native", "stale").Inc()
	}
}

func (s *SessionService) refreshToken(ctx context.Context, account string, asset entity.Asset) {
	field := "token:" + asset.Symbol
	seq := s.beginRefresh(field)

	callCtx, cancel := context.WithTimeout(ctx, s.refreshTimeout)
	defer cancel()

	raw, err := s.provider.TokenBalanceOf(callCtx, asset.ContractAddress, account)
	if err != nil {
		metrics.BalanceRefreshesTotal.WithLabelValues("token", "error").Inc()
		s.logger.Warn("Token balance refresh failed",
			zap.String("symbol", asset.Symbol), zap.Error(err))
		return
	}

	formatted, err := utils.FormatBigInt(raw, asset.Decimals)
	if err != nil {
		metrics.BalanceRefreshesTotal.WithLabelValues("token", "error").Inc()
		s.logger.Warn("Failed to format token balance",
			zap.String("symbol", asset.Symbol), zap.Error(err))
		return
	}

	if s.commitRefresh(field, seq, func() {
		s.session.TokenBalances[asset.Symbol] = formatted
	}) {
		metrics.BalanceRefreshesTotal.WithLabelValues("token", "ok").Inc()
	} else {
		metrics.BalanceRefreshesTotal.WithLabelValues("token", "stale").Inc()
	}
}

// beginRefresh allocates the next sequence number for the field, marking this
// refresh as the most recently started one.
func (s *SessionService) beginRefresh(field string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshSeq[field]++
	return s.refreshSeq[field]
}

// commitRefresh applies the result only when the refresh is still the latest
// started for its field and the session is still connected. Returns whether
// the result was applied.
func (s *SessionService) commitRefresh(field string, seq uint64, apply func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq < s.refreshSeq[field] {
		return false
	}
	if s.session.Status != entity.Connected || s.session.Account == "" {
		return false
	}
	apply()
	return true
}

// handleAccountChange reacts to the provider's account-change event. An empty
// account is equivalent to a local disconnect; otherwise the account is
// updated in place and every balance is recomputed.
func (s *SessionService) handleAccountChange(account string) {
	if account == "" {
		s.mu.Lock()
		s.clearSessionLocked()
		s.mu.Unlock()
		s.logger.Info("Account access revoked, session disconnected")
		return
	}

	s.mu.Lock()
	if s.session.Status != entity.Connected {
		s.mu.Unlock()
		return
	}
	s.session.Account = account
	s.session.NativeBalance = ""
	s.session.TokenBalances = make(map[string]string)
	s.mu.Unlock()

	s.logger.Info("Active account changed", zap.String("account", entity.TruncateAddress(account)))
	go s.RefreshBalances(context.Background())
}

// handleNetworkChange reacts to the provider's network-change event while
// remaining connected.
func (s *SessionService) handleNetworkChange(network string) {
	s.mu.Lock()
	if s.session.Status != entity.Connected {
		s.mu.Unlock()
		return
	}
	s.session.Network = network
	s.session.NativeBalance = ""
	s.session.TokenBalances = make(map[string]string)
	s.mu.Unlock()

	s.logger.Info("Network changed", zap.String("network", network))
	go s.RefreshBalances(context.Background())
}

func connectResult(err error) string {
	switch {
	case err == nil:
		return "connected"
	case errors.Is(err, entity.ErrUserRejected):
		return "rejected"
	case errors.Is(err, entity.ErrProviderUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}
