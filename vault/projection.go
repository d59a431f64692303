package vault

import (
	"log/slog"
	"math/big"
	"time"
)

// ClaimableAt interpolates the amount a stream recipient could withdraw at
// the supplied instant, clamped to the stream's validity window:
//
//	elapsed   = clamp(instant - start, 0, stop - start)
//	claimable = max(0, elapsed * flowRate - amountWithdrawn)
//
// The function is pure and never touches the network, so callers may run it
// on a tight interval between ledger observations. Inactive streams project
// to zero: once a stream is cancelled or drained the contract figure is the
// only meaningful one. Malformed records (missing amounts, stop before
// start) also project to zero and are logged for diagnosis.
func ClaimableAt(s Stream, instant time.Time) *big.Int {
	if !s.IsActive {
		return new(big.Int)
	}
	if err := s.Validate(); err != nil {
		slog.Warn("vault: projection input rejected", "error", err)
		return new(big.Int)
	}
	now := instant.Unix()
	if now < 0 {
		return new(big.Int)
	}
	elapsed := uint64(0)
	if ts := uint64(now); ts > s.StartTime {
		elapsed = ts - s.StartTime
	}
	if window := s.StopTime - s.StartTime; elapsed > window {
		elapsed = window
	}
	streamed := new(big.Int).Mul(new(big.Int).SetUint64(elapsed), s.FlowRate)
	if s.TotalAmount != nil && streamed.Cmp(s.TotalAmount) > 0 {
		streamed.Set(s.TotalAmount)
	}
	claimable := streamed.Sub(streamed, s.AmountWithdrawn)
	if claimable.Sign() < 0 {
		claimable.SetInt64(0)
	}
	return claimable
}

// RewardShare computes a staker's proportional share of the reward pool:
// amount * rewardPool / totalStaked, with integer division truncating toward
// zero. Truncation matches the contract's own arithmetic so the projected
// figure never exceeds what the contract will actually pay. An empty pool or
// an inactive position yields zero.
func RewardShare(stake Stake, stats VaultStats) *big.Int {
	if !stake.IsActive {
		return new(big.Int)
	}
	if err := stake.Validate(); err != nil {
		slog.Warn("vault: reward share input rejected", "error", err)
		return new(big.Int)
	}
	if err := stats.Validate(); err != nil {
		slog.Warn("vault: reward share stats rejected", "error", err)
		return new(big.Int)
	}
	if stake.Amount.Sign() == 0 || stats.TotalStaked.Sign() == 0 || stats.RewardPool.Sign() == 0 {
		return new(big.Int)
	}
	share := new(big.Int).Mul(stake.Amount, stats.RewardPool)
	return share.Quo(share, stats.TotalStaked)
}
