package port

import (
	"context"
	"math/big"

	"wallet_gateway/internal/domain/entity"
)

// PendingTx is an opaque handle for a broadcast transaction that has not yet
// been confirmed.
type PendingTx struct {
	Hash string
}

// TxReceipt is the result of waiting for a transaction to settle.
type TxReceipt struct {
	Hash      string
	Succeeded bool
}

// Unsubscribe detaches a previously registered change callback.
type Unsubscribe func()

// WalletProvider is the seam around the external wallet/RPC capability.
// It is the only component of the system that touches the outside world.
// All methods may fail with entity.ErrNetwork (transient transport failure)
// or entity.ErrRpcRejected (the call was rejected or reverted).
type WalletProvider interface {
	// Connect requests account access from the wallet. Fails with
	// entity.ErrProviderUnavailable when no wallet capability is present and
	// entity.ErrUserRejected when the user declines the prompt.
	Connect(ctx context.Context) (account string, err error)

	// CurrentNetwork returns the identifier of the network the provider is
	// currently attached to.
	CurrentNetwork(ctx context.Context) (string, error)

	// NativeBalanceOf returns the native balance of the address in wei.
	NativeBalanceOf(ctx context.Context, address string) (*big.Int, error)

	// TokenBalanceOf returns the raw integer token balance of the address.
	TokenBalanceOf(ctx context.Context, contractAddress, address string) (*big.Int, error)

	// SendNative broadcasts a native transfer built by the transfer builder.
	SendNative(ctx context.Context, from string, payload entity.TransferPayload) (PendingTx, error)

	// SendToken broadcasts a token transfer through the token's contract.
	SendToken(ctx context.Context, from string, payload entity.TransferPayload) (PendingTx, error)

	// AwaitConfirmation blocks until the transaction settles or ctx ends.
	AwaitConfirmation(ctx context.Context, tx PendingTx) (TxReceipt, error)

	// SubscribeAccountChange registers a callback invoked with the new account
	// (empty when access was revoked). The returned handle must be called when
	// the subscriber is torn down.
	SubscribeAccountChange(cb func(account string)) Unsubscribe

	// SubscribeNetworkChange registers a callback invoked with the new network
	// identifier.
	SubscribeNetworkChange(cb func(network string)) Unsubscribe
}
