package vaultd

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
)

// Outcome classifies a submitted request's confirmation state.
type Outcome int

const (
	// OutcomePending means the remote ledger has not yet resolved the
	// request. There is no client-side timeout: only the ledger can
	// authoritatively resolve a submission.
	OutcomePending Outcome = iota
	OutcomeConfirmed
	OutcomeFailed
)

// String implements fmt.Stringer for log and API output.
func (o Outcome) String() string {
	switch o {
	case OutcomeConfirmed:
		return "confirmed"
	case OutcomeFailed:
		return "failed"
	default:
		return "pending"
	}
}

// FinalitySource is the subset of the ledger client the tracker polls. A nil
// receipt with nil error means the transaction is not yet mined.
type FinalitySource interface {
	Receipt(ctx context.Context, txHash common.Hash) (*gethtypes.Receipt, error)
	Head(ctx context.Context) (*gethtypes.Header, error)
}

// Tracker polls the remote ledger's finality signal for submitted requests
// and classifies the outcome. Terminal observations are recorded so that a
// repeated observation of the same transaction never fires twice.
type Tracker struct {
	source   FinalitySource
	interval time.Duration
	depth    uint64

	mu       sync.Mutex
	terminal map[common.Hash]Outcome
}

// NewTracker constructs a tracker polling at the given interval. depth > 0
// additionally requires that many confirmations beyond the inclusion block.
func NewTracker(source FinalitySource, interval time.Duration, depth uint64) *Tracker {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &Tracker{
		source:   source,
		interval: interval,
		depth:    depth,
		terminal: make(map[common.Hash]Outcome),
	}
}

// Status performs a single finality check for the transaction.
func (t *Tracker) Status(ctx context.Context, txHash common.Hash) (Outcome, error) {
	receipt, err := t.source.Receipt(ctx, txHash)
	if err != nil {
		return OutcomePending, err
	}
	if receipt == nil {
		return OutcomePending, nil
	}
	if t.depth > 0 {
		confirmed, err := t.confirmations(ctx, receipt)
		if err != nil {
			return OutcomePending, err
		}
		if confirmed < t.depth {
			return OutcomePending, nil
		}
	}
	if receipt.Status == gethtypes.ReceiptStatusSuccessful {
		return OutcomeConfirmed, nil
	}
	return OutcomeFailed, nil
}

func (t *Tracker) confirmations(ctx context.Context, receipt *gethtypes.Receipt) (uint64, error) {
	header, err := t.source.Head(ctx)
	if err != nil {
		return 0, err
	}
	if header == nil || header.Number == nil || receipt.BlockNumber == nil {
		return 0, fmt.Errorf("vaultd: block metadata unavailable")
	}
	if header.Number.Cmp(receipt.BlockNumber) < 0 {
		return 0, nil
	}
	confirmed := new(big.Int).Sub(header.Number, receipt.BlockNumber)
	confirmed.Add(confirmed, big.NewInt(1))
	if !confirmed.IsUint64() {
		return 0, nil
	}
	return confirmed.Uint64(), nil
}

// Await polls until the transaction reaches a terminal outcome or the
// context is cancelled. The returned flag is true on the first terminal
// observation of the hash and false for any repeat, so callers can keep
// exactly-once notification semantics across re-subscription.
//
// Transient poll failures keep the request pending; the remote ledger is the
// only authority that can resolve it, so Await never times out on its own.
func (t *Tracker) Await(ctx context.Context, txHash common.Hash) (Outcome, bool, error) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		outcome, err := t.Status(ctx, txHash)
		if err == nil && outcome != OutcomePending {
			return outcome, t.record(txHash, outcome), nil
		}
		select {
		case <-ctx.Done():
			return OutcomePending, false, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (t *Tracker) record(txHash common.Hash, outcome Outcome) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, seen := t.terminal[txHash]; seen {
		return false
	}
	t.terminal[txHash] = outcome
	return true
}
