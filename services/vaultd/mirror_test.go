package vaultd

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/ogazboiz/sonic-rush/client"
	"github.com/ogazboiz/sonic-rush/vault"
)

// unreachableBackend fails every RPC, standing in for a ledger endpoint that
// is down.
type unreachableBackend struct{}

var errBackendDown = errors.New("connection refused")

func (unreachableBackend) CallContract(context.Context, ethereum.CallMsg, *big.Int) ([]byte, error) {
	return nil, errBackendDown
}
func (unreachableBackend) HeaderByNumber(context.Context, *big.Int) (*gethtypes.Header, error) {
	return nil, errBackendDown
}
func (unreachableBackend) TransactionReceipt(context.Context, common.Hash) (*gethtypes.Receipt, error) {
	return nil, errBackendDown
}
func (unreachableBackend) SendTransaction(context.Context, *gethtypes.Transaction) error {
	return errBackendDown
}
func (unreachableBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return 0, errBackendDown
}
func (unreachableBackend) SuggestGasPrice(context.Context) (*big.Int, error) {
	return nil, errBackendDown
}
func (unreachableBackend) BalanceAt(context.Context, common.Address, *big.Int) (*big.Int, error) {
	return nil, errBackendDown
}

func newTestMirror(t *testing.T, identity *Identity) *Mirror {
	t.Helper()
	ledger, err := client.New(unreachableBackend{}, common.HexToAddress("0x01"), big.NewInt(146))
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	coordinator := NewCoordinator(time.Millisecond, nil)
	return NewMirror(ledger, coordinator, identity, nil, slog.Default())
}

// seed installs a snapshot directly, standing in for a past successful fetch.
func seed[T any](sub *Subscription[T], value T) {
	sub.mu.Lock()
	sub.last = value
	sub.has = true
	sub.issued++
	sub.installed = sub.issued
	sub.mu.Unlock()
}

func TestMirrorStakeGatedOnIdentity(t *testing.T) {
	mirror := newTestMirror(t, NewIdentity(common.Address{}))

	if _, err := mirror.Stake.Refetch(context.Background()); !errors.Is(err, errNoIdentity) {
		t.Fatalf("expected identity gate, got %v", err)
	}
	if _, ok := mirror.LastStake(); ok {
		t.Fatal("expected no cached stake without identity")
	}
}

func TestMirrorIdentityChangeInvalidatesStake(t *testing.T) {
	identity := NewIdentity(common.HexToAddress("0x00000000000000000000000000000000000000a1"))
	mirror := newTestMirror(t, identity)

	seed(mirror.Stake, vault.Stake{Amount: big.NewInt(5), IsActive: true})
	if _, ok := mirror.LastStake(); !ok {
		t.Fatal("expected seeded stake")
	}

	identity.Set(common.HexToAddress("0x00000000000000000000000000000000000000b2"))
	if _, ok := mirror.LastStake(); ok {
		t.Fatal("expected stake invalidated on identity change")
	}

	// The re-derivation signal is queued for the run loop.
	select {
	case <-mirror.identityCh:
	default:
		t.Fatal("expected identity change signal")
	}
}

func TestMirrorRefreshKeepsSnapshotsWhenRemoteDown(t *testing.T) {
	mirror := newTestMirror(t, NewIdentity(common.Address{}))

	seed(mirror.Stats, vault.VaultStats{
		TotalStaked:  big.NewInt(1000),
		RewardPool:   big.NewInt(100),
		TotalStreams: big.NewInt(3),
	})
	mirror.RefreshAll(context.Background())

	stats, ok := mirror.Stats.Last()
	if !ok {
		t.Fatal("expected stats snapshot to survive failed refresh")
	}
	if stats.TotalStaked.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("unexpected stats after failed refresh: %+v", stats)
	}
}

func TestMirrorProjectedRewardShare(t *testing.T) {
	identity := NewIdentity(common.HexToAddress("0x00000000000000000000000000000000000000a1"))
	mirror := newTestMirror(t, identity)

	if got := mirror.ProjectedRewardShare(); got.Sign() != 0 {
		t.Fatalf("expected zero share without snapshots, got %s", got)
	}

	seed(mirror.Stake, vault.Stake{Amount: big.NewInt(100), IsActive: true})
	seed(mirror.Stats, vault.VaultStats{
		TotalStaked:  big.NewInt(1000),
		RewardPool:   big.NewInt(50),
		TotalStreams: big.NewInt(0),
	})

	if got := mirror.ProjectedRewardShare(); got.Cmp(big.NewInt(5)) != 0 {
		t.Fatalf("expected projected share 5, got %s", got)
	}
}
