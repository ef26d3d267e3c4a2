package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"wallet_gateway/internal/app/port"
	"wallet_gateway/internal/domain/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testRecipient = "0x2222222222222222222222222222222222222222"

func newTestTransfer(t *testing.T, fp *fakeProvider) (*TransferService, *SessionService) {
	t.Helper()
	sessions := newTestSession(t, fp)
	transfers := NewTransferService(fp, sessions, newTestRegistry(t), zap.NewNop())
	return transfers, sessions
}

func connectSession(t *testing.T, sessions *SessionService) {
	t.Helper()
	require.NoError(t, sessions.Connect(context.Background()))
	assert.Eventually(t, func() bool {
		return sessions.Snapshot().NativeBalance != ""
	}, time.Second, 10*time.Millisecond)
}

func TestSubmitValidationFailures(t *testing.T) {
	tests := []struct {
		name  string
		req   entity.TransferRequest
		field string
	}{
		{
			"unknown asset",
			entity.TransferRequest{AssetSymbol: "DOGE", Recipient: testRecipient, Amount: "1"},
			"asset",
		},
		{
			"malformed recipient",
			entity.TransferRequest{AssetSymbol: "ETH", Recipient: "not-an-address", Amount: "1"},
			"recipient",
		},
		{
			"empty amount",
			entity.TransferRequest{AssetSymbol: "ETH", Recipient: testRecipient, Amount: ""},
			"amount",
		},
		{
			"zero amount",
			entity.TransferRequest{AssetSymbol: "ETH", Recipient: testRecipient, Amount: "0"},
			"amount",
		},
		{
			"negative amount",
			entity.TransferRequest{AssetSymbol: "ETH", Recipient: testRecipient, Amount: "-1"},
			"amount",
		},
		{
			"too many token decimals",
			entity.TransferRequest{AssetSymbol: "USDT", Recipient: testRecipient, Amount: "1.2345678"},
			"amount",
		},
		{
			"bad gas price",
			entity.TransferRequest{AssetSymbol: "ETH", Recipient: testRecipient, Amount: "1", GasPriceGwei: "fast"},
			"gasPrice",
		},
		{
			"bad gas limit",
			entity.TransferRequest{AssetSymbol: "ETH", Recipient: testRecipient, Amount: "1", GasLimit: "-21000"},
			"gasLimit",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fp := newFakeProvider()
			transfers, sessions := newTestTransfer(t, fp)
			connectSession(t, sessions)

			_, err := transfers.Submit(context.Background(), tt.req)
			require.Error(t, err)
			assert.True(t, entity.IsValidationError(err))
			var ve *entity.ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.field, ve.Field)

			// An invalid request must cause no provider call and leave the
			// tracker idle.
			_, _, sendNative, sendToken := fp.counts()
			assert.Zero(t, sendNative)
			assert.Zero(t, sendToken)
			assert.Equal(t, entity.TrackerIdle, transfers.Outcome().State)
		})
	}
}

func TestSubmitRequiresConnectedSession(t *testing.T) {
	fp := newFakeProvider()
	transfers, _ := newTestTransfer(t, fp)

	_, err := transfers.Submit(context.Background(), entity.TransferRequest{
		AssetSymbol: "ETH", Recipient: testRecipient, Amount: "1",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, entity.ErrNotConnected))

	_, _, sendNative, sendToken := fp.counts()
	assert.Zero(t, sendNative)
	assert.Zero(t, sendToken)
}

func TestSubmitNativeConfirmed(t *testing.T) {
	fp := newFakeProvider()
	transfers, sessions := newTestTransfer(t, fp)
	connectSession(t, sessions)
	nativeBefore, _, _, _ := fp.counts()

	outcome, err := transfers.Submit(context.Background(), entity.TransferRequest{
		AssetSymbol: "ETH", Recipient: testRecipient, Amount: "1.5",
	})
	require.NoError(t, err)
	assert.Equal(t, entity.TrackerPending, outcome.State)
	assert.Equal(t, fp.pendingHash, outcome.Hash)
	assert.Equal(t, "Transaction sent! Waiting for confirmation...", outcome.Message)

	assert.Eventually(t, func() bool {
		return transfers.Outcome().State == entity.TrackerConfirmed
	}, time.Second, 10*time.Millisecond)

	final := transfers.Outcome()
	assert.Equal(t, "Transaction confirmed! Hash: "+fp.pendingHash, final.Message)

	// Input fields are cleared on success and the sent asset's balance is
	// queried again.
	assert.Equal(t, entity.TransferRequest{}, transfers.Form())
	assert.Eventually(t, func() bool {
		nativeAfter, _, _, _ := fp.counts()
		return nativeAfter > nativeBefore
	}, time.Second, 10*time.Millisecond)

	fp.mu.Lock()
	payload := fp.lastPayload
	fp.mu.Unlock()
	assert.Equal(t, "1500000000000000000", payload.Value.String())
	assert.Nil(t, payload.TokenAmount)
	assert.Equal(t, testRecipient, payload.Recipient)
}

func TestSubmitTokenScalesByDecimals(t *testing.T) {
	fp := newFakeProvider()
	transfers, sessions := newTestTransfer(t, fp)
	connectSession(t, sessions)

	_, err := transfers.Submit(context.Background(), entity.TransferRequest{
		AssetSymbol: "USDT", Recipient: testRecipient, Amount: "10",
	})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return transfers.Outcome().State == entity.TrackerConfirmed
	}, time.Second, 10*time.Millisecond)

	fp.mu.Lock()
	payload := fp.lastPayload
	fp.mu.Unlock()
	assert.Equal(t, "10000000", payload.TokenAmount.String())
	assert.Nil(t, payload.Value)

	_, _, sendNative, sendToken := fp.counts()
	assert.Zero(t, sendNative)
	assert.Equal(t, 1, sendToken)
}

func TestSubmitGasOverrides(t *testing.T) {
	fp := newFakeProvider()
	transfers, sessions := newTestTransfer(t, fp)
	connectSession(t, sessions)

	_, err := transfers.Submit(context.Background(), entity.TransferRequest{
		AssetSymbol:  "ETH",
		Recipient:    testRecipient,
		Amount:       "1",
		GasPriceGwei: "2",
		GasLimit:     "21000",
	})
	require.NoError(t, err)

	fp.mu.Lock()
	payload := fp.lastPayload
	fp.mu.Unlock()
	assert.Equal(t, "2000000000", payload.GasPriceWei.String())
	assert.Equal(t, uint64(21000), payload.GasLimit)
}

func TestSubmitOmittedGasOverrides(t *testing.T) {
	fp := newFakeProvider()
	transfers, sessions := newTestTransfer(t, fp)
	connectSession(t, sessions)

	_, err := transfers.Submit(context.Background(), entity.TransferRequest{
		AssetSymbol: "ETH", Recipient: testRecipient, Amount: "1",
	})
	require.NoError(t, err)

	fp.mu.Lock()
	payload := fp.lastPayload
	fp.mu.Unlock()
	assert.Nil(t, payload.GasPriceWei)
	assert.Zero(t, payload.GasLimit)
}

func TestSubmitSendFailureKeepsForm(t *testing.T) {
	fp := newFakeProvider()
	fp.sendErr = entity.WrapRpcRejected(errors.New("insufficient funds for gas"))
	transfers, sessions := newTestTransfer(t, fp)
	connectSession(t, sessions)

	req := entity.TransferRequest{AssetSymbol: "ETH", Recipient: testRecipient, Amount: "1"}
	outcome, err := transfers.Submit(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, entity.TrackerFailed, outcome.State)
	assert.Contains(t, outcome.Message, "insufficient funds for gas")

	// Fields stay intact after a failure so the user can correct and resubmit.
	assert.Equal(t, req, transfers.Form())
}

func TestSubmitRevertedOnChain(t *testing.T) {
	fp := newFakeProvider()
	fp.receipt = port.TxReceipt{Hash: fp.pendingHash, Succeeded: false}
	transfers, sessions := newTestTransfer(t, fp)
	connectSession(t, sessions)

	req := entity.TransferRequest{AssetSymbol: "ETH", Recipient: testRecipient, Amount: "1"}
	_, err := transfers.Submit(context.Background(), req)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return transfers.Outcome().State == entity.TrackerFailed
	}, time.Second, 10*time.Millisecond)
	assert.Contains(t, transfers.Outcome().Message, "reverted")
	assert.Equal(t, req, transfers.Form())
}

func TestSubmitRejectedWhilePending(t *testing.T) {
	fp := newFakeProvider()
	release := make(chan struct{})
	fp.awaitHook = func() (port.TxReceipt, error) {
		<-release
		return port.TxReceipt{Hash: fp.pendingHash, Succeeded: true}, nil
	}
	transfers, sessions := newTestTransfer(t, fp)
	connectSession(t, sessions)

	_, err := transfers.Submit(context.Background(), entity.TransferRequest{
		AssetSymbol: "ETH", Recipient: testRecipient, Amount: "1",
	})
	require.NoError(t, err)
	require.Equal(t, entity.TrackerPending, transfers.Outcome().State)

	// A second submission while one is pending is refused, as is Reset.
	_, err = transfers.Submit(context.Background(), entity.TransferRequest{
		AssetSymbol: "ETH", Recipient: testRecipient, Amount: "2",
	})
	assert.Error(t, err)
	transfers.Reset()
	assert.Equal(t, entity.TrackerPending, transfers.Outcome().State)

	close(release)
	assert.Eventually(t, func() bool {
		return transfers.Outcome().State == entity.TrackerConfirmed
	}, time.Second, 10*time.Millisecond)
}

// Submissions are strictly sequential: when many arrive at once, exactly one
// may reach the provider.
func TestSubmitConcurrentOnlyOneBroadcasts(t *testing.T) {
	fp := newFakeProvider()
	release := make(chan struct{})
	fp.awaitHook = func() (port.TxReceipt, error) {
		<-release
		return port.TxReceipt{Hash: fp.pendingHash, Succeeded: true}, nil
	}
	transfers, sessions := newTestTransfer(t, fp)
	connectSession(t, sessions)
	defer close(release)

	const attempts = 50
	errs := make(chan error, attempts)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := transfers.Submit(context.Background(), entity.TransferRequest{
				AssetSymbol: "ETH", Recipient: testRecipient, Amount: "1",
			})
			errs <- err
		}()
	}
	close(start)
	wg.Wait()
	close(errs)

	accepted := 0
	for err := range errs {
		if err == nil {
			accepted++
		}
	}
	assert.Equal(t, 1, accepted)

	_, _, sendNative, sendToken := fp.counts()
	assert.Equal(t, 1, sendNative)
	assert.Zero(t, sendToken)
	assert.Equal(t, entity.TrackerPending, transfers.Outcome().State)
}

// A validation failure releases the tracker so the next submission may start.
func TestSubmitValidationFailureReleasesTracker(t *testing.T) {
	fp := newFakeProvider()
	transfers, sessions := newTestTransfer(t, fp)
	connectSession(t, sessions)

	_, err := transfers.Submit(context.Background(), entity.TransferRequest{
		AssetSymbol: "ETH", Recipient: "nope", Amount: "1",
	})
	require.Error(t, err)
	require.Equal(t, entity.TrackerIdle, transfers.Outcome().State)

	_, err = transfers.Submit(context.Background(), entity.TransferRequest{
		AssetSymbol: "ETH", Recipient: testRecipient, Amount: "1",
	})
	require.NoError(t, err)
	assert.Eventually(t, func() bool {
		return transfers.Outcome().State == entity.TrackerConfirmed
	}, time.Second, 10*time.Millisecond)
}

// The zero Asset from a failed symbol lookup is labelled distinctly, not as
// the native kind.
func TestKindLabel(t *testing.T) {
	assert.Equal(t, "unknown", kindLabel(entity.Asset{}))
	assert.Equal(t, "native", kindLabel(entity.Asset{Symbol: "ETH", Kind: entity.NativeAsset}))
	assert.Equal(t, "token", kindLabel(entity.Asset{Symbol: "USDT", Kind: entity.FungibleToken}))
}

func TestResetOnlyFromTerminalState(t *testing.T) {
	fp := newFakeProvider()
	fp.sendErr = errors.New("boom")
	transfers, sessions := newTestTransfer(t, fp)
	connectSession(t, sessions)

	_, err := transfers.Submit(context.Background(), entity.TransferRequest{
		AssetSymbol: "ETH", Recipient: testRecipient, Amount: "1",
	})
	require.NoError(t, err)
	require.Equal(t, entity.TrackerFailed, transfers.Outcome().State)

	transfers.Reset()
	assert.Equal(t, entity.TrackerIdle, transfers.Outcome().State)
	assert.Empty(t, transfers.Outcome().Message)
}
