package vaultd

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"github.com/ogazboiz/sonic-rush/client"
	"github.com/ogazboiz/sonic-rush/vault"
)

type fakeSubmitter struct {
	mu     sync.Mutex
	calls  []Kind
	next   common.Hash
	err    error
	serial byte
}

func (f *fakeSubmitter) record(kind Kind) (common.Hash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return common.Hash{}, f.err
	}
	f.calls = append(f.calls, kind)
	if f.next == (common.Hash{}) {
		f.serial++
		return common.Hash{f.serial}, nil
	}
	return f.next, nil
}

func (f *fakeSubmitter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeSubmitter) CreateStream(_ context.Context, _ common.Address, _ uint64, _ *big.Int) (common.Hash, error) {
	return f.record(KindCreateStream)
}
func (f *fakeSubmitter) WithdrawFromStream(_ context.Context, _ *big.Int) (common.Hash, error) {
	return f.record(KindWithdraw)
}
func (f *fakeSubmitter) CancelStream(_ context.Context, _ *big.Int) (common.Hash, error) {
	return f.record(KindCancel)
}
func (f *fakeSubmitter) Stake(_ context.Context, _ *big.Int) (common.Hash, error) {
	return f.record(KindStake)
}
func (f *fakeSubmitter) Unstake(_ context.Context, _ *big.Int) (common.Hash, error) {
	return f.record(KindUnstake)
}
func (f *fakeSubmitter) ClaimRewards(context.Context) (common.Hash, error) {
	return f.record(KindClaim)
}
func (f *fakeSubmitter) UpdateRewardRate(_ context.Context, _ *big.Int) (common.Hash, error) {
	return f.record(KindUpdateRate)
}
func (f *fakeSubmitter) SetVaultPaused(_ context.Context, _ bool) (common.Hash, error) {
	return f.record(KindSetPaused)
}
func (f *fakeSubmitter) EmergencyPause(context.Context) (common.Hash, error) {
	return f.record(KindEmergencyPause)
}
func (f *fakeSubmitter) DistributeExcessFunds(context.Context) (common.Hash, error) {
	return f.record(KindDistribute)
}
func (f *fakeSubmitter) WithdrawOwnerRevenue(context.Context) (common.Hash, error) {
	return f.record(KindOwnerRevenue)
}
func (f *fakeSubmitter) WithdrawCharityFunds(context.Context) (common.Hash, error) {
	return f.record(KindCharityWithdraw)
}

type recordedNotice struct {
	level string
	msg   string
}

type fakeNotifier struct {
	mu      sync.Mutex
	notices []recordedNotice
}

func (f *fakeNotifier) add(level, msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notices = append(f.notices, recordedNotice{level: level, msg: msg})
}

func (f *fakeNotifier) Info(msg string, _ ...any)    { f.add("info", msg) }
func (f *fakeNotifier) Success(msg string, _ ...any) { f.add("success", msg) }
func (f *fakeNotifier) Error(msg string, _ ...any)   { f.add("error", msg) }

func (f *fakeNotifier) byLevel(level string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, notice := range f.notices {
		if notice.level == level {
			n++
		}
	}
	return n
}

type fakeBalances struct {
	stake  vault.Stake
	wallet *big.Int
}

func (f *fakeBalances) LastStake() (vault.Stake, bool) {
	return f.stake, f.stake.Amount != nil
}

func (f *fakeBalances) LastWalletBalance() (*big.Int, bool) {
	return f.wallet, f.wallet != nil
}

func newTestController(t *testing.T, submitter *fakeSubmitter, source *fakeFinality, opts ...ControllerOption) (*Controller, *Coordinator, *fakeNotifier) {
	t.Helper()
	coordinator := NewCoordinator(time.Millisecond, nil)
	tracker := NewTracker(source, time.Millisecond, 0)
	notifier := &fakeNotifier{}
	controller := NewController(submitter, tracker, coordinator, notifier, nil, opts...)
	return controller, coordinator, notifier
}

func TestControllerRejectsInvalidPayloads(t *testing.T) {
	submitter := &fakeSubmitter{}
	controller, _, _ := newTestController(t, submitter, newFakeFinality())
	recipient := common.HexToAddress("0x00000000000000000000000000000000000000aa")

	cases := []struct {
		name    string
		payload Payload
	}{
		{"create without recipient", Payload{Kind: KindCreateStream, Amount: big.NewInt(1), Duration: 60}},
		{"create without duration", Payload{Kind: KindCreateStream, Recipient: recipient, Amount: big.NewInt(1)}},
		{"create with zero amount", Payload{Kind: KindCreateStream, Recipient: recipient, Amount: big.NewInt(0), Duration: 60}},
		{"withdraw without stream id", Payload{Kind: KindWithdraw}},
		{"cancel without stream id", Payload{Kind: KindCancel}},
		{"stake with nil amount", Payload{Kind: KindStake}},
		{"stake with negative amount", Payload{Kind: KindStake, Amount: big.NewInt(-5)}},
		{"unstake with zero amount", Payload{Kind: KindUnstake, Amount: big.NewInt(0)}},
		{"update rate without rate", Payload{Kind: KindUpdateRate}},
		{"unknown kind", Payload{Kind: Kind("transmogrify")}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := controller.Submit(context.Background(), tc.payload)
			require.ErrorIs(t, err, client.ErrSubmissionRejected)
		})
	}
	require.Zero(t, submitter.count(), "rejected payloads must never dispatch")
}

func TestControllerRejectsOverdraw(t *testing.T) {
	submitter := &fakeSubmitter{}
	balances := &fakeBalances{
		wallet: big.NewInt(100),
		stake:  vault.Stake{Amount: big.NewInt(50), IsActive: true},
	}
	controller, _, _ := newTestController(t, submitter, newFakeFinality(), WithBalanceSource(balances))

	_, err := controller.Submit(context.Background(), Payload{Kind: KindStake, Amount: big.NewInt(101)})
	require.ErrorIs(t, err, client.ErrSubmissionRejected)

	_, err = controller.Submit(context.Background(), Payload{Kind: KindUnstake, Amount: big.NewInt(51)})
	require.ErrorIs(t, err, client.ErrSubmissionRejected)

	require.Zero(t, submitter.count())
}

func TestControllerDuplicateSuppressed(t *testing.T) {
	submitter := &fakeSubmitter{}
	controller, _, _ := newTestController(t, submitter, newFakeFinality())

	first, err := controller.Submit(context.Background(), Payload{Kind: KindWithdraw, StreamID: big.NewInt(7)})
	require.NoError(t, err)
	require.Equal(t, StatusAwaiting, first.Status)

	_, err = controller.Submit(context.Background(), Payload{Kind: KindWithdraw, StreamID: big.NewInt(7)})
	require.ErrorIs(t, err, client.ErrSubmissionRejected)

	// A different stream is a different target and goes through.
	_, err = controller.Submit(context.Background(), Payload{Kind: KindWithdraw, StreamID: big.NewInt(8)})
	require.NoError(t, err)
	require.Equal(t, 2, submitter.count())
}

func TestControllerConfirmedFlow(t *testing.T) {
	submitter := &fakeSubmitter{}
	source := newFakeFinality()
	controller, coordinator, notifier := newTestController(t, submitter, source)

	req, err := controller.Submit(context.Background(), Payload{Kind: KindClaim})
	require.NoError(t, err)
	source.mine(req.TxHash, gethtypes.ReceiptStatusSuccessful, 3)

	waitUntil(t, func() bool { return coordinator.Generation() == 1 })
	require.Equal(t, 1, notifier.byLevel("success"))
	require.Equal(t, 0, notifier.byLevel("error"))
	require.Empty(t, controller.Pending())
}

func TestControllerFailedFlow(t *testing.T) {
	submitter := &fakeSubmitter{}
	source := newFakeFinality()
	controller, coordinator, notifier := newTestController(t, submitter, source)

	req, err := controller.Submit(context.Background(), Payload{Kind: KindStake, Amount: big.NewInt(10)})
	require.NoError(t, err)
	source.mine(req.TxHash, gethtypes.ReceiptStatusFailed, 3)

	waitUntil(t, func() bool { return notifier.byLevel("error") == 1 })
	time.Sleep(20 * time.Millisecond)
	require.Zero(t, coordinator.Generation(), "failed submissions must not trigger a refresh")
	require.Equal(t, 0, notifier.byLevel("success"))
	require.Empty(t, controller.Pending())
}

func TestControllerTeardownSuppressesNotification(t *testing.T) {
	submitter := &fakeSubmitter{}
	controller, coordinator, notifier := newTestController(t, submitter, newFakeFinality())

	ctx, cancel := context.WithCancel(context.Background())
	_, err := controller.Submit(ctx, Payload{Kind: KindClaim})
	require.NoError(t, err)
	cancel()

	waitUntil(t, func() bool { return len(controller.Pending()) == 0 })
	require.Zero(t, coordinator.Generation())
	require.Equal(t, 0, notifier.byLevel("success"))
	require.Equal(t, 0, notifier.byLevel("error"))
}

func TestControllerDispatchFailureClearsSlot(t *testing.T) {
	submitter := &fakeSubmitter{err: errors.New("nonce fetch failed")}
	controller, _, _ := newTestController(t, submitter, newFakeFinality())

	_, err := controller.Submit(context.Background(), Payload{Kind: KindClaim})
	require.Error(t, err)
	require.Empty(t, controller.Pending())

	// The slot is free again for a retry once the first dispatch failed.
	submitter.mu.Lock()
	submitter.err = nil
	submitter.mu.Unlock()
	_, err = controller.Submit(context.Background(), Payload{Kind: KindClaim})
	require.NoError(t, err)
}
