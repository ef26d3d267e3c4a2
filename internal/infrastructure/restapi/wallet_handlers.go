package restapi

import (
	"errors"
	"net/http"

	"wallet_gateway/internal/config"
	"wallet_gateway/internal/domain/entity"
	"wallet_gateway/internal/pkg/utils"
	"wallet_gateway/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// WalletHandler forwards presentation-layer intents (connect, disconnect,
// selectAsset, submitTransfer, openHistory) into the core and renders state
// snapshots back out. It holds no state of its own.
type WalletHandler struct {
	sessions  *service.SessionService
	transfers *service.TransferService
	history   *service.HistoryService
	cfg       *config.Config
	logger    *zap.Logger
}

// NewWalletHandler creates the intent-forwarding handler.
func NewWalletHandler(
	sessions *service.SessionService,
	transfers *service.TransferService,
	history *service.HistoryService,
	cfg *config.Config,
	logger *zap.Logger,
) *WalletHandler {
	return &WalletHandler{
		sessions:  sessions,
		transfers: transfers,
		history:   history,
		cfg:       cfg,
		logger:    logger.Named("WalletHandler"),
	}
}

type sessionResponse struct {
	Status           string            `json:"status"`
	Account          string            `json:"account"`
	AccountShort     string            `json:"accountShort,omitempty"`
	Network          string            `json:"network"`
	NativeBalance    string            `json:"nativeBalance"`
	NativeBalance4dp string            `json:"nativeBalanceDisplay,omitempty"`
	TokenBalances    map[string]string `json:"tokenBalances"`
	SelectedAsset    string            `json:"selectedAsset"`
	BlockExplorerURL string            `json:"blockExplorerUrl,omitempty"`
}

func (h *WalletHandler) sessionToResponse(s entity.WalletSession) sessionResponse {
	resp := sessionResponse{
		Status:           s.Status.String(),
		Account:          s.Account,
		AccountShort:     entity.TruncateAddress(s.Account),
		Network:          s.Network,
		NativeBalance:    s.NativeBalance,
		TokenBalances:    s.TokenBalances,
		SelectedAsset:    s.SelectedAsset,
		BlockExplorerURL: h.cfg.Network.BlockExplorerURL,
	}
	if s.NativeBalance != "" {
		resp.NativeBalance4dp = utils.FormatFixed(s.NativeBalance, 4)
	}
	return resp
}

// ConnectHandler handles the connect intent.
func (h *WalletHandler) ConnectHandler(c *gin.Context) {
	if err := h.sessions.Connect(c.Request.Context()); err != nil {
		status := http.StatusBadGateway
		hint := ""
		switch {
		case errors.Is(err, entity.ErrProviderUnavailable):
			status = http.StatusServiceUnavailable
			hint = "no wallet provider is reachable; install or configure one"
		case errors.Is(err, entity.ErrUserRejected):
			status = http.StatusForbidden
		}
		c.JSON(status, gin.H{"error": err.Error(), "hint": hint})
		return
	}
	c.JSON(http.StatusOK, h.sessionToResponse(h.sessions.Snapshot()))
}

// DisconnectHandler handles the local-only disconnect intent.
func (h *WalletHandler) DisconnectHandler(c *gin.Context) {
	h.sessions.Disconnect()
	c.JSON(http.StatusOK, h.sessionToResponse(h.sessions.Snapshot()))
}

// GetSessionHandler returns the current session snapshot.
func (h *WalletHandler) GetSessionHandler(c *gin.Context) {
	c.JSON(http.StatusOK, h.sessionToResponse(h.sessions.Snapshot()))
}

// GetAssetsHandler returns the asset catalog.
func (h *WalletHandler) GetAssetsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"assets": h.sessions.Assets()})
}

type selectAssetRequest struct {
	Symbol string `json:"symbol" binding:"required"`
}

// SelectAssetHandler handles the selectAsset intent.
func (h *WalletHandler) SelectAssetHandler(c *gin.Context) {
	var req selectAssetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.sessions.SelectAsset(c.Request.Context(), req.Symbol); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.sessionToResponse(h.sessions.Snapshot()))
}

type outcomeResponse struct {
	State   string                 `json:"state"`
	Hash    string                 `json:"hash,omitempty"`
	Message string                 `json:"message"`
	Form    entity.TransferRequest `json:"form"`
}

func (h *WalletHandler) outcomeToResponse(o entity.TransactionOutcome) outcomeResponse {
	return outcomeResponse{
		State:   o.State.String(),
		Hash:    o.Hash,
		Message: o.Message,
		Form:    h.transfers.Form(),
	}
}

// SubmitTransferHandler handles the submitTransfer intent.
func (h *WalletHandler) SubmitTransferHandler(c *gin.Context) {
	var req entity.TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	outcome, err := h.transfers.Submit(c.Request.Context(), req)
	if err != nil {
		switch {
		case entity.IsValidationError(err):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, entity.ErrNotConnected):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		}
		return
	}
	c.JSON(http.StatusAccepted, h.outcomeToResponse(outcome))
}

// ResetTransferHandler returns the tracker to IDLE for a new submission.
func (h *WalletHandler) ResetTransferHandler(c *gin.Context) {
	h.transfers.Reset()
	c.JSON(http.StatusOK, h.outcomeToResponse(h.transfers.Outcome()))
}

// GetTransferHandler returns the current submission outcome.
func (h *WalletHandler) GetTransferHandler(c *gin.Context) {
	c.JSON(http.StatusOK, h.outcomeToResponse(h.transfers.Outcome()))
}

// GetHistoryHandler handles the openHistory intent. History is best-effort:
// it always answers 200, with an empty list when the service is degraded or
// the session is not connected.
func (h *WalletHandler) GetHistoryHandler(c *gin.Context) {
	session := h.sessions.Snapshot()
	if session.Status != entity.Connected || session.Account == "" {
		c.JSON(http.StatusOK, gin.H{"transactions": []entity.HistoryEntry{}})
		return
	}
	entries := h.history.Recent(c.Request.Context(), session.Account)
	c.JSON(http.StatusOK, gin.H{"transactions": entries})
}
