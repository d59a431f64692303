package vaultd

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"sync"

	"github.com/ogazboiz/sonic-rush/client"
	"github.com/ogazboiz/sonic-rush/vault"
)

// Mirror maintains the local reflection of the vault contract: one
// subscription per ledger quantity, refreshed together whenever the refresh
// coordinator signals that post-confirmation state should have settled. The
// remote contract stays authoritative; every refresh overwrites local
// projections wholesale.
type Mirror struct {
	client      *client.Client
	coordinator *Coordinator
	identity    *Identity
	metrics     *Metrics
	log         *slog.Logger

	Stats        *Subscription[vault.VaultStats]
	Balance      *Subscription[vault.BalanceInfo]
	Activity     *Subscription[vault.ActivityInfo]
	Fees         *Subscription[vault.FeeInfo]
	Split        *Subscription[vault.RevenueSplit]
	APY          *Subscription[*big.Int]
	TotalStreams *Subscription[*big.Int]
	Excess       *Subscription[*big.Int]
	Stake        *Subscription[vault.Stake]
	Wallet       *Subscription[*big.Int]

	identityCh chan struct{}

	mu    sync.Mutex
	views map[uint64]*StreamView
}

// NewMirror wires subscriptions for every vault-wide query plus the keyed
// participant queries.
func NewMirror(c *client.Client, coordinator *Coordinator, identity *Identity, metrics *Metrics, log *slog.Logger) *Mirror {
	if log == nil {
		log = slog.Default()
	}
	m := &Mirror{
		client:      c,
		coordinator: coordinator,
		identity:    identity,
		metrics:     metrics,
		log:         log,
		identityCh:  make(chan struct{}, 1),
		views:       make(map[uint64]*StreamView),
	}
	m.Stats = NewSubscription("vault_stats", c.VaultStats, metrics)
	m.Balance = NewSubscription("balance_info", c.BalanceInfo, metrics)
	m.Activity = NewSubscription("activity_info", c.ActivityInfo, metrics)
	m.Fees = NewSubscription("fee_info", c.FeeInfo, metrics)
	m.Split = NewSubscription("revenue_split", c.RevenueSplit, metrics)
	m.APY = NewSubscription("current_apy", c.CurrentAPY, metrics)
	m.TotalStreams = NewSubscription("total_streams", c.TotalStreams, metrics)
	m.Excess = NewSubscription("excess_funds", c.ExcessFunds, metrics)
	m.Stake = NewSubscription("user_stake", m.fetchStake, metrics)
	m.Wallet = NewSubscription("wallet_balance", func(ctx context.Context) (*big.Int, error) {
		return c.WalletBalance(ctx)
	}, metrics)

	identity.OnChange(func() {
		// The stake query is keyed by the participant address; a change
		// invalidates the cached position immediately.
		m.Stake.Invalidate()
		select {
		case m.identityCh <- struct{}{}:
		default:
		}
	})
	return m
}

// errNoIdentity gates the keyed stake query: without a participant address
// the query must not be dispatched at all.
var errNoIdentity = errors.New("vaultd: no participant identity")

func (m *Mirror) fetchStake(ctx context.Context) (vault.Stake, error) {
	addr, ok := m.identity.Current()
	if !ok {
		return vault.Stake{}, errNoIdentity
	}
	return m.client.UserStake(ctx, addr)
}

// Run keeps the mirror in sync until the context is cancelled: an initial
// fetch, then a full resync per refresh generation, plus keyed re-derivation
// when the participant identity changes.
func (m *Mirror) Run(ctx context.Context) {
	refresh := m.coordinator.Subscribe()
	m.RefreshAll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case gen := <-refresh:
			m.log.Debug("vaultd: coordinated refresh", "generation", gen)
			m.RefreshAll(ctx)
		case <-m.identityCh:
			m.refreshKeyed(ctx)
		}
	}
}

// RefreshAll refetches every active subscription. Individual failures are
// logged and the affected subscription keeps its last-known snapshot.
func (m *Mirror) RefreshAll(ctx context.Context) {
	refetch(ctx, m.log, m.Stats)
	refetch(ctx, m.log, m.Balance)
	refetch(ctx, m.log, m.Activity)
	refetch(ctx, m.log, m.Fees)
	refetch(ctx, m.log, m.Split)
	refetch(ctx, m.log, m.APY)
	refetch(ctx, m.log, m.TotalStreams)
	refetch(ctx, m.log, m.Excess)
	m.refreshKeyed(ctx)

	m.mu.Lock()
	views := make([]*StreamView, 0, len(m.views))
	for _, view := range m.views {
		views = append(views, view)
	}
	m.mu.Unlock()
	for _, view := range views {
		view.Refresh(ctx)
	}
}

func (m *Mirror) refreshKeyed(ctx context.Context) {
	if _, ok := m.identity.Current(); ok {
		refetch(ctx, m.log, m.Stake)
	}
	if _, ok := m.client.Sender(); ok {
		refetch(ctx, m.log, m.Wallet)
	}
}

func refetch[T any](ctx context.Context, log *slog.Logger, sub *Subscription[T]) {
	if _, err := sub.Refetch(ctx); err != nil {
		log.Warn("vaultd: refetch failed, keeping last snapshot", "query", sub.Name(), "error", err)
	}
}

// LastStake exposes the cached staking position for local validation.
func (m *Mirror) LastStake() (vault.Stake, bool) {
	return m.Stake.Last()
}

// LastWalletBalance exposes the cached signer balance for local validation.
func (m *Mirror) LastWalletBalance() (*big.Int, bool) {
	return m.Wallet.Last()
}

// ProjectedRewardShare computes the participant's claimable reward share
// from the last-known stake and aggregate snapshots. Truncating integer
// division mirrors the contract; the remote figure remains authoritative.
func (m *Mirror) ProjectedRewardShare() *big.Int {
	stake, ok := m.Stake.Last()
	if !ok {
		return new(big.Int)
	}
	stats, ok := m.Stats.Last()
	if !ok {
		return new(big.Int)
	}
	return vault.RewardShare(stake, stats)
}
