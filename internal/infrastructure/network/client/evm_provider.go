package client

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"wallet_gateway/internal/app/port"
	"wallet_gateway/internal/config"
	"wallet_gateway/internal/domain/entity"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ERC20 ABI, minimal: balance query and transfer only.
const erc20ABI = `[
	{"constant":true,"inputs":[{"name":"_owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"balance","type":"uint256"}],"payable":false,"stateMutability":"view","type":"function"},
	{"constant":false,"inputs":[{"name":"_to","type":"address"},{"name":"_value","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"payable":false,"stateMutability":"nonpayable","type":"function"}
]`

var (
	parsedERC20ABI  abi.ABI
	parsedERC20Once sync.Once
)

func initParsedERC20ABI() {
	parsedERC20Once.Do(func() {
		var err error
		parsedERC20ABI, err = abi.JSON(strings.NewReader(erc20ABI))
		if err != nil {
			panic(fmt.Sprintf("failed to parse ERC20 ABI: %v", err))
		}
	})
}

// EVMProvider implements port.WalletProvider against an EVM JSON-RPC endpoint
// with provider-side signing (eth_requestAccounts / eth_sendTransaction).
// It is the only component of the system that talks to the outside world.
type EVMProvider struct {
	cfg     config.ProviderConfig
	network config.NetworkConfig
	logger  *zap.Logger
	limiter *rate.Limiter

	mu        sync.Mutex
	rpcClient *rpc.Client
	ethClient *ethclient.Client

	subMu       sync.Mutex
	nextSubID   int
	accountSubs map[int]func(string)
	networkSubs map[int]func(string)
	pollStop    chan struct{}
	lastAccount string
	lastChainID string
}

// NewEVMProvider creates the provider adapter. The RPC endpoint is dialed
// lazily on the first call so that a missing wallet capability surfaces as
// entity.ErrProviderUnavailable from Connect instead of a startup failure.
func NewEVMProvider(cfg *config.Config, logger *zap.Logger) *EVMProvider {
	initParsedERC20ABI()
	return &EVMProvider{
		cfg:         cfg.Provider,
		network:     cfg.Network,
		logger:      logger.Named("EVMProvider"),
		limiter:     rate.NewLimiter(rate.Limit(cfg.Provider.RateLimit), cfg.Provider.BurstLimit),
		accountSubs: make(map[int]func(string)),
		networkSubs: make(map[int]func(string)),
	}
}

func (p *EVMProvider) ensureClient(ctx context.Context) (*rpc.Client, *ethclient.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.rpcClient != nil {
		return p.rpcClient, p.ethClient, nil
	}

	dialCtx, cancel := context.WithTimeout(ctx, time.Duration(p.cfg.ConnectTimeoutMs)*time.Millisecond)
	defer cancel()

	rpcClient, err := rpc.DialContext(dialCtx, p.network.RPCURL)
	if err != nil {
		p.logger.Warn("Failed to dial wallet provider", zap.String("rpc", p.network.RPCURL), zap.Error(err))
		return nil, nil, fmt.Errorf("%w: %s", entity.ErrProviderUnavailable, err.Error())
	}
	p.rpcClient = rpcClient
	p.ethClient = ethclient.NewClient(rpcClient)
	p.logger.Info("Connected to wallet provider endpoint", zap.String("rpc", p.network.RPCURL))
	return p.rpcClient, p.ethClient, nil
}

// Connect requests account access from the wallet.
func (p *EVMProvider) Connect(ctx context.Context) (string, error) {
	rpcClient, _, err := p.ensureClient(ctx)
	if err != nil {
		return "", err
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("%w: %s", entity.ErrNetwork, err.Error())
	}

	callCtx, cancel := p.callContext(ctx)
	defer cancel()

	var accounts []string
	if err := rpcClient.CallContext(callCtx, &accounts, "eth_requestAccounts"); err != nil {
		// Providers without the wallet extension do not know the method at all.
		if isMethodNotFound(err) {
			if fallbackErr := rpcClient.CallContext(callCtx, &accounts, "eth_accounts"); fallbackErr != nil {
				return "", p.classifyErr(fallbackErr)
			}
		} else {
			return "", p.classifyErr(err)
		}
	}
	if len(accounts) == 0 || accounts[0] == "" {
		return "", entity.ErrUserRejected
	}

	account := accounts[0]
	p.startChangePolling(account)
	p.logger.Info("Wallet connected", zap.String("account", entity.TruncateAddress(account)))
	return account, nil
}

// CurrentNetwork returns the configured network name when the provider's chain
// ID matches the configuration, and the raw chain ID otherwise.
func (p *EVMProvider) CurrentNetwork(ctx context.Context) (string, error) {
	_, ethClient, err := p.ensureClient(ctx)
	if err != nil {
		return "", err
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("%w: %s", entity.ErrNetwork, err.Error())
	}

	callCtx, cancel := p.callContext(ctx)
	defer cancel()

	chainID, err := ethClient.ChainID(callCtx)
	if err != nil {
		return "", p.classifyErr(err)
	}
	return p.networkName(chainID), nil
}

func (p *EVMProvider) networkName(chainID *big.Int) string {
	if chainID == nil {
		return ""
	}
	if p.network.ChainID != 0 && chainID.Int64() == p.network.ChainID {
		return p.network.Name
	}
	return "chain-" + chainID.String()
}

// NativeBalanceOf returns the native balance of the address in wei.
func (p *EVMProvider) NativeBalanceOf(ctx context.Context, address string) (*big.Int, error) {
	_, ethClient, err := p.ensureClient(ctx)
	if err != nil {
		return nil, err
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %s", entity.ErrNetwork, err.Error())
	}

	callCtx, cancel := p.callContext(ctx)
	defer cancel()

	balance, err := ethClient.BalanceAt(callCtx, common.HexToAddress(address), nil)
	if err != nil {
		return nil, p.classifyErr(err)
	}
	return balance, nil
}

// TokenBalanceOf returns the raw integer token balance of the address.
func (p *EVMProvider) TokenBalanceOf(ctx context.Context, contractAddress, address string) (*big.Int, error) {
	rpcClient, _, err := p.ensureClient(ctx)
	if err != nil {
		return nil, err
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %s", entity.ErrNetwork, err.Error())
	}

	callData, err := parsedERC20ABI.Pack("balanceOf", common.HexToAddress(address))
	if err != nil {
		return nil, fmt.Errorf("failed to pack balanceOf call: %w", err)
	}

	callCtx, cancel := p.callContext(ctx)
	defer cancel()

	var result hexutil.Bytes
	callArgs := map[string]interface{}{
		"to":   common.HexToAddress(contractAddress),
		"data": hexutil.Bytes(callData),
	}
	if err := rpcClient.CallContext(callCtx, &result, "eth_call", callArgs, "latest"); err != nil {
		return nil, p.classifyErr(err)
	}
	if len(result) == 0 {
		return big.NewInt(0), nil
	}

	unpacked, err := parsedERC20ABI.Unpack("balanceOf", result)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack balanceOf result: %w. Raw: %s", err, hexutil.Encode(result))
	}
	if len(unpacked) == 0 {
		return nil, fmt.Errorf("balanceOf unpack returned no data")
	}
	balance, ok := unpacked[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("failed to assert unpacked balanceOf result to *big.Int, got %T", unpacked[0])
	}
	return balance, nil
}

// SendNative broadcasts a native transfer; the provider signs with the
// unlocked account.
func (p *EVMProvider) SendNative(ctx context.Context, from string, payload entity.TransferPayload) (port.PendingTx, error) {
	args := map[string]interface{}{
		"from":  from,
		"to":    payload.Recipient,
		"value": hexutil.EncodeBig(payload.Value),
	}
	p.applyGasOverrides(args, payload)
	return p.sendTransaction(ctx, args)
}

// SendToken broadcasts an ERC-20 transfer through the token contract.
func (p *EVMProvider) SendToken(ctx context.Context, from string, payload entity.TransferPayload) (port.PendingTx, error) {
	callData, err := parsedERC20ABI.Pack("transfer", common.HexToAddress(payload.Recipient), payload.TokenAmount)
	if err != nil {
		return port.PendingTx{}, fmt.Errorf("failed to pack transfer call: %w", err)
	}
	args := map[string]interface{}{
		"from": from,
		"to":   payload.Asset.ContractAddress,
		"data": hexutil.Bytes(callData),
	}
	p.applyGasOverrides(args, payload)
	return p.sendTransaction(ctx, args)
}

func (p *EVMProvider) applyGasOverrides(args map[string]interface{}, payload entity.TransferPayload) {
	// Absent overrides are omitted so the provider applies its own defaults.
	if payload.GasPriceWei != nil {
		args["gasPrice"] = hexutil.EncodeBig(payload.GasPriceWei)
	}
	if payload.GasLimit > 0 {
		args["gas"] = hexutil.EncodeUint64(payload.GasLimit)
	}
}

func (p *EVMProvider) sendTransaction(ctx context.Context, args map[string]interface{}) (port.PendingTx, error) {
	rpcClient, _, err := p.ensureClient(ctx)
	if err != nil {
		return port.PendingTx{}, err
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return port.PendingTx{}, fmt.Errorf("%w: %s", entity.ErrNetwork, err.Error())
	}

	callCtx, cancel := p.callContext(ctx)
	defer cancel()

	var hash string
	if err := rpcClient.CallContext(callCtx, &hash, "eth_sendTransaction", args); err != nil {
		return port.PendingTx{}, p.classifyErr(err)
	}
	p.logger.Info("Transaction broadcast", zap.String("hash", hash))
	return port.PendingTx{Hash: hash}, nil
}

// AwaitConfirmation polls for the transaction receipt until the transaction
// settles, the confirmation timeout elapses, or ctx ends. Abandoning the wait
// does not affect the broadcast transfer.
func (p *EVMProvider) AwaitConfirmation(ctx context.Context, tx port.PendingTx) (port.TxReceipt, error) {
	_, ethClient, err := p.ensureClient(ctx)
	if err != nil {
		return port.TxReceipt{}, err
	}

	waitCtx, cancel := context.WithTimeout(ctx, time.Duration(p.cfg.ConfirmationTimeoutSec)*time.Second)
	defer cancel()

	ticker := time.NewTicker(time.Duration(p.cfg.ConfirmationPollMs) * time.Millisecond)
	defer ticker.Stop()

	hash := common.HexToHash(tx.Hash)
	for {
		receipt, err := ethClient.TransactionReceipt(waitCtx, hash)
		if err == nil && receipt != nil {
			return port.TxReceipt{Hash: tx.Hash, Succeeded: receipt.Status == 1}, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) && !isNotFound(err) {
			return port.TxReceipt{}, p.classifyErr(err)
		}

		select {
		case <-waitCtx.Done():
			return port.TxReceipt{}, fmt.Errorf("%w: confirmation wait ended: %s", entity.ErrNetwork, waitCtx.Err())
		case <-ticker.C:
		}
	}
}

// SubscribeAccountChange registers a callback for account changes.
func (p *EVMProvider) SubscribeAccountChange(cb func(account string)) port.Unsubscribe {
	p.subMu.Lock()
	defer p.subMu.Unlock()
	id := p.nextSubID
	p.nextSubID++
	p.accountSubs[id] = cb
	return func() {
		p.subMu.Lock()
		defer p.subMu.Unlock()
		delete(p.accountSubs, id)
	}
}

// SubscribeNetworkChange registers a callback for network changes.
func (p *EVMProvider) SubscribeNetworkChange(cb func(network string)) port.Unsubscribe {
	p.subMu.Lock()
	defer p.subMu.Unlock()
	id := p.nextSubID
	p.nextSubID++
	p.networkSubs[id] = cb
	return func() {
		p.subMu.Lock()
		defer p.subMu.Unlock()
		delete(p.networkSubs, id)
	}
}

// startChangePolling begins watching eth_accounts and eth_chainId for changes.
// JSON-RPC endpoints have no push notifications for either, so the adapter
// polls and synthesizes the change events the session expects.
func (p *EVMProvider) startChangePolling(account string) {
	p.subMu.Lock()
	defer p.subMu.Unlock()
	p.lastAccount = strings.ToLower(account)
	if p.pollStop != nil {
		return
	}
	p.pollStop = make(chan struct{})
	go p.pollChanges(p.pollStop)
}

func (p *EVMProvider) pollChanges(stop chan struct{}) {
	ticker := time.NewTicker(time.Duration(p.cfg.ChangePollMs) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(p.cfg.RPCCallTimeoutMs)*time.Millisecond)
		p.checkChanges(ctx)
		cancel()
	}
}

func (p *EVMProvider) checkChanges(ctx context.Context) {
	p.mu.Lock()
	rpcClient := p.rpcClient
	ethClient := p.ethClient
	p.mu.Unlock()
	if rpcClient == nil {
		return
	}

	var accounts []string
	if err := rpcClient.CallContext(ctx, &accounts, "eth_accounts"); err == nil {
		current := ""
		if len(accounts) > 0 {
			current = strings.ToLower(accounts[0])
		}
		p.subMu.Lock()
		changed := current != p.lastAccount
		if changed {
			p.lastAccount = current
		}
		subs := snapshotSubs(p.accountSubs)
		p.subMu.Unlock()
		if changed {
			p.logger.Info("Account change detected", zap.String("account", entity.TruncateAddress(current)))
			for _, cb := range subs {
				cb(current)
			}
		}
	}

	if chainID, err := ethClient.ChainID(ctx); err == nil && chainID != nil {
		current := chainID.String()
		p.subMu.Lock()
		changed := p.lastChainID != "" && current != p.lastChainID
		first := p.lastChainID == ""
		p.lastChainID = current
		subs := snapshotSubs(p.networkSubs)
		p.subMu.Unlock()
		if changed && !first {
			name := p.networkName(chainID)
			p.logger.Info("Network change detected", zap.String("network", name))
			for _, cb := range subs {
				cb(name)
			}
		}
	}
}

func snapshotSubs(m map[int]func(string)) []func(string) {
	out := make([]func(string), 0, len(m))
	for _, cb := range m {
		out = append(out, cb)
	}
	return out
}

// Close stops change polling and closes the RPC connection.
func (p *EVMProvider) Close() {
	p.subMu.Lock()
	if p.pollStop != nil {
		close(p.pollStop)
		p.pollStop = nil
	}
	p.subMu.Unlock()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.rpcClient != nil {
		p.rpcClient.Close()
		p.rpcClient = nil
		p.ethClient = nil
	}
}

func (p *EVMProvider) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, time.Duration(p.cfg.RPCCallTimeoutMs)*time.Millisecond)
}

// classifyErr maps raw RPC failures onto the domain error taxonomy. JSON-RPC
// errors carry a provider message that must survive verbatim; everything else
// is a transient transport failure.
func (p *EVMProvider) classifyErr(err error) error {
	if err == nil {
		return nil
	}
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		if rpcErr.ErrorCode() == 4001 || containsAny(err.Error(), "denied", "rejected") {
			return fmt.Errorf("%w: %s", entity.ErrUserRejected, err.Error())
		}
		return entity.WrapRpcRejected(err)
	}
	return fmt.Errorf("%w: %s", entity.ErrNetwork, err.Error())
}

func isMethodNotFound(err error) bool {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) && rpcErr.ErrorCode() == -32601 {
		return true
	}
	return containsAny(err.Error(), "method not found", "does not exist")
}

func isNotFound(err error) bool {
	return err != nil && containsAny(err.Error(), "not found")
}

func containsAny(s string, subs ...string) bool {
	lower := strings.ToLower(s)
	for _, sub := range subs {
		if strings.Contains(lower, sub) {
			return true
		}
	}
	return false
}
