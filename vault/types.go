package vault

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Stream mirrors a single payment stream record held by the vault contract.
// Amounts are denominated in the chain's smallest unit and timestamps are
// unix seconds. The contract is the source of truth; instances of this type
// are point-in-time snapshots and are never mutated locally.
type Stream struct {
	Sender          common.Address
	Recipient       common.Address
	TotalAmount     *big.Int
	FlowRate        *big.Int
	StartTime       uint64
	StopTime        uint64
	AmountWithdrawn *big.Int
	IsActive        bool
}

// Validate rejects snapshots the contract should never produce. Malformed
// records are dropped by the reader rather than propagated to projections.
func (s Stream) Validate() error {
	if s.TotalAmount == nil || s.FlowRate == nil || s.AmountWithdrawn == nil {
		return fmt.Errorf("vault: stream amounts missing")
	}
	if s.TotalAmount.Sign() < 0 || s.FlowRate.Sign() < 0 || s.AmountWithdrawn.Sign() < 0 {
		return fmt.Errorf("vault: stream amounts negative")
	}
	if s.StopTime < s.StartTime {
		return fmt.Errorf("vault: stream stop time %d before start time %d", s.StopTime, s.StartTime)
	}
	if s.AmountWithdrawn.Cmp(s.TotalAmount) > 0 {
		return fmt.Errorf("vault: withdrawn amount exceeds stream total")
	}
	return nil
}

// Stake mirrors a participant's staking position.
type Stake struct {
	Amount             *big.Int
	StartTime          uint64
	LastClaimTime      uint64
	AccumulatedRewards *big.Int
	IsActive           bool
}

// Validate rejects malformed stake snapshots.
func (s Stake) Validate() error {
	if s.Amount == nil || s.AccumulatedRewards == nil {
		return fmt.Errorf("vault: stake amounts missing")
	}
	if s.Amount.Sign() < 0 || s.AccumulatedRewards.Sign() < 0 {
		return fmt.Errorf("vault: stake amounts negative")
	}
	return nil
}

// VaultStats is the ledger-wide aggregate tuple returned by getVaultStats.
type VaultStats struct {
	TotalStaked  *big.Int
	RewardPool   *big.Int
	TotalStreams *big.Int
}

// Validate rejects malformed aggregate snapshots.
func (v VaultStats) Validate() error {
	if v.TotalStaked == nil || v.RewardPool == nil || v.TotalStreams == nil {
		return fmt.Errorf("vault: stats fields missing")
	}
	if v.TotalStaked.Sign() < 0 || v.RewardPool.Sign() < 0 {
		return fmt.Errorf("vault: stats fields negative")
	}
	return nil
}

// BalanceInfo is the accounting tuple returned by getBalanceInfo.
type BalanceInfo struct {
	Balance             *big.Int
	TotalStaked         *big.Int
	AvailableForRewards *big.Int
	OwnerRevenue        *big.Int
	CharityFunds        *big.Int
}

// ActivityInfo is the activity tuple returned by getActivityInfo.
type ActivityInfo struct {
	ActiveStreams *big.Int
	ActiveStakers *big.Int
	LastActivity  *big.Int
}

// FeeInfo is the fee accounting tuple returned by getFeeInfo.
type FeeInfo struct {
	StreamingFeeBps *big.Int
	Collected       *big.Int
	OwnerShare      *big.Int
	CharityShare    *big.Int
}

// RevenueSplit is the owner/charity split returned by getRevenueSplit.
type RevenueSplit struct {
	OwnerBps   *big.Int
	CharityBps *big.Int
}
