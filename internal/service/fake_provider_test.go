package service

import (
	"context"
	"math/big"
	"sync"

	"wallet_gateway/internal/app/port"
	"wallet_gateway/internal/config"
	"wallet_gateway/internal/domain/entity"
)

// fakeProvider is an in-memory port.WalletProvider for service tests.
// Hooks, when set, take precedence over the canned fields.
type fakeProvider struct {
	mu sync.Mutex

	account    string
	network    string
	connectErr error

	nativeBalance *big.Int
	tokenBalance  *big.Int
	nativeErr     error
	tokenErr      error
	nativeHook    func() (*big.Int, error)

	pendingHash string
	sendErr     error
	lastPayload entity.TransferPayload

	receipt   port.TxReceipt
	awaitErr  error
	awaitHook func() (port.TxReceipt, error)

	connectCalls    int
	nativeCalls     int
	tokenCalls      int
	sendNativeCalls int
	sendTokenCalls  int
	awaitCalls      int

	accountCb func(string)
	networkCb func(string)
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		account:       "0xd8dA6BF26964aF9D7eEd9e03E53415D37aA96045",
		network:       "goerli",
		nativeBalance: big.NewInt(1500000000000000000),
		tokenBalance:  big.NewInt(25000000),
		pendingHash:   "0xabc123abc123abc123abc123abc123abc123abc1",
	}
}

func (f *fakeProvider) Connect(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connectCalls++
	if f.connectErr != nil {
		return "", f.connectErr
	}
	return f.account, nil
}

func (f *fakeProvider) CurrentNetwork(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.network, nil
}

func (f *fakeProvider) NativeBalanceOf(ctx context.Context, address string) (*big.Int, error) {
	f.mu.Lock()
	f.nativeCalls++
	hook := f.nativeHook
	balance, err := f.nativeBalance, f.nativeErr
	f.mu.Unlock()
	if hook != nil {
		return hook()
	}
	return balance, err
}

func (f *fakeProvider) TokenBalanceOf(ctx context.Context, contractAddress, address string) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokenCalls++
	return f.tokenBalance, f.tokenErr
}

func (f *fakeProvider) SendNative(ctx context.Context, from string, payload entity.TransferPayload) (port.PendingTx, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sendNativeCalls++
	f.lastPayload = payload
	if f.sendErr != nil {
		return port.PendingTx{}, f.sendErr
	}
	return port.PendingTx{Hash: f.pendingHash}, nil
}

func (f *fakeProvider) SendToken(ctx context.Context, from string, payload entity.TransferPayload) (port.PendingTx, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sendTokenCalls++
	f.lastPayload = payload
	if f.sendErr != nil {
		return port.PendingTx{}, f.sendErr
	}
	return port.PendingTx{Hash: f.pendingHash}, nil
}

func (f *fakeProvider) AwaitConfirmation(ctx context.Context, tx port.PendingTx) (port.TxReceipt, error) {
	f.mu.Lock()
	f.awaitCalls++
	hook := f.awaitHook
	receipt, err := f.receipt, f.awaitErr
	f.mu.Unlock()
	if hook != nil {
		return hook()
	}
	if err != nil {
		return port.TxReceipt{}, err
	}
	if receipt.Hash == "" {
		receipt = port.TxReceipt{Hash: tx.Hash, Succeeded: true}
	}
	return receipt, nil
}

func (f *fakeProvider) SubscribeAccountChange(cb func(string)) port.Unsubscribe {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accountCb = cb
	return func() {}
}

func (f *fakeProvider) SubscribeNetworkChange(cb func(string)) port.Unsubscribe {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.networkCb = cb
	return func() {}
}

func (f *fakeProvider) fireAccountChange(account string) {
	f.mu.Lock()
	cb := f.accountCb
	f.mu.Unlock()
	if cb != nil {
		cb(account)
	}
}

func (f *fakeProvider) fireNetworkChange(network string) {
	f.mu.Lock()
	cb := f.networkCb
	f.mu.Unlock()
	if cb != nil {
		cb(network)
	}
}

func (f *fakeProvider) counts() (native, token, sendNative, sendToken int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nativeCalls, f.tokenCalls, f.sendNativeCalls, f.sendTokenCalls
}

func testConfig() *config.Config {
	return &config.Config{
		Provider: config.ProviderConfig{
			RPCCallTimeoutMs: 2000,
		},
		History: config.HistoryConfig{
			MaxEntries:       5,
			CacheTTLSeconds:  60,
			CacheCleanupMins: 5,
		},
	}
}
