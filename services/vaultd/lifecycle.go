package vaultd

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/ogazboiz/sonic-rush/client"
	"github.com/ogazboiz/sonic-rush/vault"
)

// Kind enumerates the state-changing requests the vault accepts.
type Kind string

const (
	KindCreateStream    Kind = "create-stream"
	KindWithdraw        Kind = "withdraw"
	KindCancel          Kind = "cancel"
	KindStake           Kind = "stake"
	KindUnstake         Kind = "unstake"
	KindClaim           Kind = "claim"
	KindUpdateRate      Kind = "update-reward-rate"
	KindSetPaused       Kind = "set-vault-paused"
	KindEmergencyPause  Kind = "emergency-pause"
	KindDistribute      Kind = "distribute-excess"
	KindOwnerRevenue    Kind = "withdraw-owner-revenue"
	KindCharityWithdraw Kind = "withdraw-charity-funds"
)

// Payload carries the kind-specific data of one request. It is captured at
// submission time and echoed verbatim in the terminal notification, never
// re-derived from possibly-stale state.
type Payload struct {
	Kind      Kind
	Recipient common.Address
	Amount    *big.Int
	Duration  uint64
	StreamID  *big.Int
	NewRate   *big.Int
	Paused    bool
}

// target identifies what a request mutates, for duplicate suppression.
func (p Payload) target() string {
	if p.StreamID != nil {
		return p.StreamID.String()
	}
	return "vault"
}

// Describe renders the payload for notifications.
func (p Payload) Describe() string {
	switch p.Kind {
	case KindCreateStream:
		return fmt.Sprintf("stream of %s to %s over %ds", p.Amount, p.Recipient.Hex(), p.Duration)
	case KindWithdraw, KindCancel:
		return fmt.Sprintf("stream %s", p.StreamID)
	case KindStake, KindUnstake:
		return fmt.Sprintf("%s", p.Amount)
	case KindUpdateRate:
		return fmt.Sprintf("rate %s", p.NewRate)
	case KindSetPaused:
		return fmt.Sprintf("paused=%t", p.Paused)
	default:
		return string(p.Kind)
	}
}

// RequestStatus tracks a pending request through its lifecycle.
type RequestStatus string

const (
	StatusSubmitted RequestStatus = "submitted"
	StatusAwaiting  RequestStatus = "awaiting-confirmation"
	StatusConfirmed RequestStatus = "confirmed"
	StatusFailed    RequestStatus = "failed"
)

// PendingRequest is the local record of one in-flight submission. It is
// owned exclusively by the controller that created it and cleared on
// reaching a terminal status.
type PendingRequest struct {
	ID          string
	Kind        Kind
	Payload     Payload
	TxHash      common.Hash
	Status      RequestStatus
	SubmittedAt time.Time
}

// Submitter is the write surface of the ledger client.
type Submitter interface {
	CreateStream(ctx context.Context, recipient common.Address, duration uint64, value *big.Int) (common.Hash, error)
	WithdrawFromStream(ctx context.Context, id *big.Int) (common.Hash, error)
	CancelStream(ctx context.Context, id *big.Int) (common.Hash, error)
	Stake(ctx context.Context, value *big.Int) (common.Hash, error)
	Unstake(ctx context.Context, amount *big.Int) (common.Hash, error)
	ClaimRewards(ctx context.Context) (common.Hash, error)
	UpdateRewardRate(ctx context.Context, newRate *big.Int) (common.Hash, error)
	SetVaultPaused(ctx context.Context, paused bool) (common.Hash, error)
	EmergencyPause(ctx context.Context) (common.Hash, error)
	DistributeExcessFunds(ctx context.Context) (common.Hash, error)
	WithdrawOwnerRevenue(ctx context.Context) (common.Hash, error)
	WithdrawCharityFunds(ctx context.Context) (common.Hash, error)
}

// BalanceSource exposes last-known balances for pre-dispatch validation.
// Validation uses only snapshots already fetched; it never reaches the
// network, so a rejection is always synchronous.
type BalanceSource interface {
	LastStake() (vault.Stake, bool)
	LastWalletBalance() (*big.Int, bool)
}

// Controller composes the submitter, the confirmation tracker, and the
// refresh coordinator into one user-facing action: submit, await finality,
// notify exactly once, and trigger a coordinated refresh on success.
type Controller struct {
	submitter   Submitter
	tracker     *Tracker
	coordinator *Coordinator
	notifier    Notifier
	balances    BalanceSource
	metrics     *Metrics
	now         func() time.Time

	mu      sync.Mutex
	pending map[string]*PendingRequest
}

// ControllerOption customises the controller.
type ControllerOption func(*Controller)

// WithBalanceSource enables amount validation against last-known snapshots.
func WithBalanceSource(src BalanceSource) ControllerOption {
	return func(c *Controller) { c.balances = src }
}

// WithClock sets the function used to derive timestamps.
func WithClock(clock func() time.Time) ControllerOption {
	return func(c *Controller) { c.now = clock }
}

// NewController constructs a lifecycle controller.
func NewController(submitter Submitter, tracker *Tracker, coordinator *Coordinator, notifier Notifier, metrics *Metrics, opts ...ControllerOption) *Controller {
	c := &Controller{
		submitter:   submitter,
		tracker:     tracker,
		coordinator: coordinator,
		notifier:    notifier,
		metrics:     metrics,
		now:         time.Now,
		pending:     make(map[string]*PendingRequest),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

func rejected(kind Kind, reason string) error {
	return fmt.Errorf("%w: %s: %s", client.ErrSubmissionRejected, kind, reason)
}

// validate applies every local check before anything is dispatched.
func (c *Controller) validate(p Payload) error {
	switch p.Kind {
	case KindCreateStream:
		if (p.Recipient == common.Address{}) {
			return rejected(p.Kind, "recipient required")
		}
		if p.Duration == 0 {
			return rejected(p.Kind, "duration must be positive")
		}
		if p.Amount == nil || p.Amount.Sign() <= 0 {
			return rejected(p.Kind, "amount must be positive")
		}
		if err := c.checkWallet(p.Kind, p.Amount); err != nil {
			return err
		}
	case KindWithdraw, KindCancel:
		if p.StreamID == nil || p.StreamID.Sign() < 0 {
			return rejected(p.Kind, "stream id required")
		}
	case KindStake:
		if p.Amount == nil || p.Amount.Sign() <= 0 {
			return rejected(p.Kind, "amount must be positive")
		}
		if err := c.checkWallet(p.Kind, p.Amount); err != nil {
			return err
		}
	case KindUnstake:
		if p.Amount == nil || p.Amount.Sign() <= 0 {
			return rejected(p.Kind, "amount must be positive")
		}
		if c.balances != nil {
			if stake, ok := c.balances.LastStake(); ok && stake.Amount != nil && p.Amount.Cmp(stake.Amount) > 0 {
				return rejected(p.Kind, "amount exceeds staked balance")
			}
		}
	case KindClaim, KindEmergencyPause, KindDistribute, KindOwnerRevenue, KindCharityWithdraw, KindSetPaused:
		// No parameters beyond the kind itself.
	case KindUpdateRate:
		if p.NewRate == nil || p.NewRate.Sign() < 0 {
			return rejected(p.Kind, "rate required")
		}
	default:
		return rejected(p.Kind, "unknown kind")
	}
	return nil
}

func (c *Controller) checkWallet(kind Kind, amount *big.Int) error {
	if c.balances == nil {
		return nil
	}
	if balance, ok := c.balances.LastWalletBalance(); ok && amount.Cmp(balance) > 0 {
		return rejected(kind, "amount exceeds wallet balance")
	}
	return nil
}

func (c *Controller) dispatch(ctx context.Context, p Payload) (common.Hash, error) {
	switch p.Kind {
	case KindCreateStream:
		return c.submitter.CreateStream(ctx, p.Recipient, p.Duration, p.Amount)
	case KindWithdraw:
		return c.submitter.WithdrawFromStream(ctx, p.StreamID)
	case KindCancel:
		return c.submitter.CancelStream(ctx, p.StreamID)
	case KindStake:
		return c.submitter.Stake(ctx, p.Amount)
	case KindUnstake:
		return c.submitter.Unstake(ctx, p.Amount)
	case KindClaim:
		return c.submitter.ClaimRewards(ctx)
	case KindUpdateRate:
		return c.submitter.UpdateRewardRate(ctx, p.NewRate)
	case KindSetPaused:
		return c.submitter.SetVaultPaused(ctx, p.Paused)
	case KindEmergencyPause:
		return c.submitter.EmergencyPause(ctx)
	case KindDistribute:
		return c.submitter.DistributeExcessFunds(ctx)
	case KindOwnerRevenue:
		return c.submitter.WithdrawOwnerRevenue(ctx)
	case KindCharityWithdraw:
		return c.submitter.WithdrawCharityFunds(ctx)
	default:
		return common.Hash{}, rejected(p.Kind, "unknown kind")
	}
}

// Submit validates and dispatches a request, then follows it to a terminal
// outcome in the background. The supplied context bounds both dispatch and
// the confirmation await: cancelling it (view teardown) suppresses any late
// notification.
func (c *Controller) Submit(ctx context.Context, p Payload) (PendingRequest, error) {
	if err := c.validate(p); err != nil {
		c.metrics.RecordSubmission(string(p.Kind), "rejected")
		return PendingRequest{}, err
	}

	key := string(p.Kind) + "|" + p.target()
	c.mu.Lock()
	if _, exists := c.pending[key]; exists {
		c.mu.Unlock()
		c.metrics.RecordSubmission(string(p.Kind), "rejected")
		return PendingRequest{}, rejected(p.Kind, "already pending")
	}
	// Reserve the slot before dispatch so a concurrent duplicate of the
	// same kind and target is rejected instead of double-submitted.
	placeholder := &PendingRequest{ID: uuid.NewString(), Kind: p.Kind, Payload: p, Status: StatusSubmitted, SubmittedAt: c.now()}
	c.pending[key] = placeholder
	c.metrics.SetPending(len(c.pending))
	c.mu.Unlock()

	txHash, err := c.dispatch(ctx, p)
	if err != nil {
		c.clear(key)
		c.metrics.RecordSubmission(string(p.Kind), "rejected")
		return PendingRequest{}, err
	}

	c.mu.Lock()
	placeholder.TxHash = txHash
	placeholder.Status = StatusAwaiting
	snapshot := *placeholder
	c.mu.Unlock()

	c.metrics.RecordSubmission(string(p.Kind), "dispatched")
	c.notifier.Info("request submitted", "kind", string(p.Kind), "detail", p.Describe(), "tx", txHash.Hex())

	go c.follow(ctx, key, snapshot)
	return snapshot, nil
}

func (c *Controller) follow(ctx context.Context, key string, req PendingRequest) {
	outcome, fresh, err := c.tracker.Await(ctx, req.TxHash)
	if err != nil {
		// Teardown: drop the pending record without notifying.
		c.clear(key)
		return
	}
	c.clear(key)
	if !fresh {
		return
	}
	elapsed := c.now().Sub(req.SubmittedAt)
	c.metrics.ObserveConfirmation(string(req.Kind), elapsed)
	switch outcome {
	case OutcomeConfirmed:
		c.metrics.RecordSubmission(string(req.Kind), "confirmed")
		c.notifier.Success("transaction confirmed", "kind", string(req.Kind), "detail", req.Payload.Describe(), "tx", req.TxHash.Hex())
		c.coordinator.TriggerRefresh()
	case OutcomeFailed:
		c.metrics.RecordSubmission(string(req.Kind), "failed")
		c.notifier.Error("transaction failed", "kind", string(req.Kind), "detail", req.Payload.Describe(), "tx", req.TxHash.Hex())
	}
}

func (c *Controller) clear(key string) {
	c.mu.Lock()
	delete(c.pending, key)
	c.metrics.SetPending(len(c.pending))
	c.mu.Unlock()
}

// Pending returns a snapshot of every in-flight request.
func (c *Controller) Pending() []PendingRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]PendingRequest, 0, len(c.pending))
	for _, req := range c.pending {
		out = append(out, *req)
	}
	return out
}
