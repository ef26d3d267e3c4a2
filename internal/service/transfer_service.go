package service

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"wallet_gateway/internal/app/port"
	"wallet_gateway/internal/domain/entity"
	"wallet_gateway/internal/infrastructure/assetloader"
	"wallet_gateway/internal/pkg/utils"
	"wallet_gateway/pkg/metrics"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

const (
	statusSent      = "Transaction sent! Waiting for confirmation..."
	statusConfirmed = "Transaction confirmed! Hash: "
)

// TransferService validates and builds transfer requests and tracks each
// submission through IDLE -> SUBMITTING -> PENDING -> (CONFIRMED | FAILED).
// Submissions are strictly sequential: a new one is only accepted once the
// prior one reached a terminal state.
type TransferService struct {
	provider port.WalletProvider
	sessions *SessionService
	registry *assetloader.Registry
	logger   *zap.Logger

	mu      sync.Mutex
	outcome entity.TransactionOutcome
	// form keeps the fields of the last submission so the consumer can
	// re-render them: cleared on success, left intact on failure.
	form entity.TransferRequest
}

// NewTransferService creates the transfer validator/builder and tracker.
func NewTransferService(
	provider port.WalletProvider,
	sessions *SessionService,
	registry *assetloader.Registry,
	logger *zap.Logger,
) *TransferService {
	return &TransferService{
		provider: provider,
		sessions: sessions,
		registry: registry,
		logger:   logger.Named("TransferService"),
		outcome:  entity.TransactionOutcome{State: entity.TrackerIdle},
	}
}

// Reset returns the tracker to IDLE, clearing the prior status and error.
// Called when the user opens a new submission.
func (s *TransferService) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.outcome.State == entity.TrackerSubmitting || s.outcome.State == entity.TrackerPending {
		return
	}
	s.outcome = entity.TransactionOutcome{State: entity.TrackerIdle}
}

// Outcome returns a snapshot of the current submission outcome.
func (s *TransferService) Outcome() entity.TransactionOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outcome
}

// Form returns the input fields of the last submission. Empty after a
// confirmed transfer; intact after a failed one so the user can correct and
// resubmit.
func (s *TransferService) Form() entity.TransferRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.form
}

// Submit validates the request, builds the asset-specific payload, sends it
// and starts the confirmation wait. Validation failures are returned without
// any provider call and leave the tracker IDLE. Provider failures surface
// through the outcome's FAILED state with the provider's message verbatim.
// The returned outcome reflects the state at broadcast time (PENDING); the
// terminal transition is observed through Outcome.
func (s *TransferService) Submit(ctx context.Context, req entity.TransferRequest) (entity.TransactionOutcome, error) {
	s.mu.Lock()
	if s.outcome.State == entity.TrackerSubmitting || s.outcome.State == entity.TrackerPending {
		s.mu.Unlock()
		return entity.TransactionOutcome{}, fmt.Errorf("a submission is already in flight")
	}
	// Claim the tracker in the same critical section as the in-flight check;
	// otherwise two concurrent submissions could both observe IDLE and both
	// broadcast. Validation failures release the claim below.
	s.outcome = entity.TransactionOutcome{State: entity.TrackerSubmitting, Message: "Submitting transaction..."}
	s.form = req
	s.mu.Unlock()

	session := s.sessions.Snapshot()

	asset, payload, err := s.validateAndBuild(req, session)
	if err != nil {
		s.setOutcome(entity.TransactionOutcome{State: entity.TrackerIdle})
		if entity.IsValidationError(err) {
			metrics.TransferSubmissionsTotal.WithLabelValues(kindLabel(asset), "rejected_validation").Inc()
		}
		return entity.TransactionOutcome{State: entity.TrackerIdle}, err
	}

	var pending port.PendingTx
	var sendErr error
	if asset.IsNative() {
		pending, sendErr = s.provider.SendNative(ctx, session.Account, payload)
	} else {
		pending, sendErr = s.provider.SendToken(ctx, session.Account, payload)
	}
	if sendErr != nil {
		outcome := entity.TransactionOutcome{State: entity.TrackerFailed, Message: sendErr.Error()}
		s.setOutcome(outcome)
		metrics.TransferSubmissionsTotal.WithLabelValues(kindLabel(asset), "failed").Inc()
		s.logger.Warn("Transfer send failed", zap.String("asset", asset.Symbol), zap.Error(sendErr))
		return outcome, nil
	}

	outcome := entity.TransactionOutcome{
		State:   entity.TrackerPending,
		Hash:    pending.Hash,
		Message: statusSent,
	}
	s.setOutcome(outcome)
	s.logger.Info("Transfer pending",
		zap.String("asset", asset.Symbol),
		zap.String("hash", entity.TruncateAddress(pending.Hash)))

	go s.awaitConfirmation(asset, pending)
	return outcome, nil
}

func (s *TransferService) awaitConfirmation(asset entity.Asset, pending port.PendingTx) {
	receipt, err := s.provider.AwaitConfirmation(context.Background(), pending)
	switch {
	case err != nil:
		s.setOutcome(entity.TransactionOutcome{
			State:   entity.TrackerFailed,
			Hash:    pending.Hash,
			Message: err.Error(),
		})
		metrics.TransferSubmissionsTotal.WithLabelValues(kindLabel(asset), "failed").Inc()
		s.logger.Warn("Confirmation wait failed", zap.String("hash", pending.Hash), zap.Error(err))

	case !receipt.Succeeded:
		s.setOutcome(entity.TransactionOutcome{
			State:   entity.TrackerFailed,
			Hash:    receipt.Hash,
			Message: fmt.Sprintf("transaction reverted on-chain (hash %s)", receipt.Hash),
		})
		metrics.TransferSubmissionsTotal.WithLabelValues(kindLabel(asset), "failed").Inc()
		s.logger.Warn("Transfer reverted", zap.String("hash", receipt.Hash))

	default:
		s.mu.Lock()
		s.outcome = entity.TransactionOutcome{
			State:   entity.TrackerConfirmed,
			Hash:    receipt.Hash,
			Message: statusConfirmed + receipt.Hash,
		}
		// Input fields are cleared on success only.
		s.form = entity.TransferRequest{}
		s.mu.Unlock()

		metrics.TransferSubmissionsTotal.WithLabelValues(kindLabel(asset), "confirmed").Inc()
		s.logger.Info("Transfer confirmed",
			zap.String("asset", asset.Symbol),
			zap.String("hash", entity.TruncateAddress(receipt.Hash)))

		s.sessions.RefreshAssetBalance(context.Background(), asset)
	}
}

func (s *TransferService) setOutcome(outcome entity.TransactionOutcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcome = outcome
}

// validateAndBuild turns the raw request into a validated submission payload.
// Checks fail fast in order: recipient format, amount, gas overrides, session
// connected. No side effect is issued for an invalid request.
func (s *TransferService) validateAndBuild(req entity.TransferRequest, session entity.WalletSession) (entity.Asset, entity.TransferPayload, error) {
	asset, ok := s.registry.BySymbol(req.AssetSymbol)
	if !ok {
		return entity.Asset{}, entity.TransferPayload{}, entity.NewValidationError("asset", fmt.Sprintf("unknown asset %q", req.AssetSymbol))
	}

	if !common.IsHexAddress(req.Recipient) {
		return asset, entity.TransferPayload{}, entity.NewValidationError("recipient", "Invalid recipient address")
	}

	if !utils.IsPositiveDecimal(req.Amount) {
		return asset, entity.TransferPayload{}, entity.NewValidationError("amount", "Invalid amount")
	}
	scaled, err := utils.ParseUnits(req.Amount, asset.Decimals)
	if err != nil {
		return asset, entity.TransferPayload{}, entity.NewValidationError("amount", "Invalid amount")
	}

	payload := entity.TransferPayload{
		Asset:     asset,
		Recipient: req.Recipient,
	}
	if asset.IsNative() {
		payload.Value = scaled
	} else {
		payload.TokenAmount = scaled
	}

	if req.GasPriceGwei != "" {
		// The UI quotes gas price in gwei; the provider wants wei.
		gasPriceWei, err := utils.ParseUnits(req.GasPriceGwei, 9)
		if err != nil {
			return asset, entity.TransferPayload{}, entity.NewValidationError("gasPrice", "Invalid gas price")
		}
		payload.GasPriceWei = gasPriceWei
	}
	if req.GasLimit != "" {
		gasLimit, err := strconv.ParseUint(req.GasLimit, 10, 64)
		if err != nil || gasLimit == 0 {
			return asset, entity.TransferPayload{}, entity.NewValidationError("gasLimit", "Invalid gas limit")
		}
		payload.GasLimit = gasLimit
	}

	if session.Status != entity.Connected || session.Account == "" {
		return asset, entity.TransferPayload{}, entity.ErrNotConnected
	}
	return asset, payload, nil
}

func kindLabel(asset entity.Asset) string {
	// The zero Asset from a failed symbol lookup must not pass as native.
	if asset.Symbol == "" {
		return "unknown"
	}
	if asset.IsNative() {
		return "native"
	}
	return "token"
}
