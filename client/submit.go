package client

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
)

func rejectf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrSubmissionRejected, fmt.Sprintf(format, args...))
}

// submit packs, signs, and sends exactly one transaction invoking the given
// contract method. Validation happens in the exported wrappers before this
// point; failures here are transport errors, never silent retries.
func (c *Client) submit(ctx context.Context, method string, value *big.Int, args ...interface{}) (common.Hash, error) {
	if c.key == nil {
		return common.Hash{}, rejectf("no signer configured")
	}
	data, err := vaultABI.Pack(method, args...)
	if err != nil {
		return common.Hash{}, fmt.Errorf("client: pack %s: %w", method, err)
	}
	nonce, err := c.backend.PendingNonceAt(ctx, c.sender)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: nonce: %v", ErrRemoteUnavailable, err)
	}
	gasPrice, err := c.backend.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: gas price: %v", ErrRemoteUnavailable, err)
	}
	txValue := new(big.Int)
	if value != nil {
		txValue.Set(value)
	}
	tx := gethtypes.NewTx(&gethtypes.LegacyTx{
		Nonce:    nonce,
		To:       &c.contract,
		Value:    txValue,
		Gas:      c.gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})
	signed, err := gethtypes.SignTx(tx, gethtypes.LatestSignerForChainID(c.chainID), c.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("client: sign %s: %w", method, err)
	}
	if err := c.backend.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("%w: send %s: %v", ErrRemoteUnavailable, method, err)
	}
	return signed.Hash(), nil
}

// CreateStream opens a payment stream to the recipient lasting the given
// number of seconds, funded with the attached value.
func (c *Client) CreateStream(ctx context.Context, recipient common.Address, duration uint64, value *big.Int) (common.Hash, error) {
	if (recipient == common.Address{}) {
		return common.Hash{}, rejectf("recipient required")
	}
	if duration == 0 {
		return common.Hash{}, rejectf("duration must be positive")
	}
	if value == nil || value.Sign() <= 0 {
		return common.Hash{}, rejectf("stream amount must be positive")
	}
	return c.submit(ctx, "createStream", value, recipient, new(big.Int).SetUint64(duration))
}

// WithdrawFromStream withdraws the accrued balance of a stream.
func (c *Client) WithdrawFromStream(ctx context.Context, id *big.Int) (common.Hash, error) {
	if id == nil || id.Sign() < 0 {
		return common.Hash{}, rejectf("stream id required")
	}
	return c.submit(ctx, "withdrawFromStream", nil, id)
}

// CancelStream terminates a stream, settling both parties.
func (c *Client) CancelStream(ctx context.Context, id *big.Int) (common.Hash, error) {
	if id == nil || id.Sign() < 0 {
		return common.Hash{}, rejectf("stream id required")
	}
	return c.submit(ctx, "cancelStream", nil, id)
}

// Stake deposits the attached value into the staking pool.
func (c *Client) Stake(ctx context.Context, value *big.Int) (common.Hash, error) {
	if value == nil || value.Sign() <= 0 {
		return common.Hash{}, rejectf("stake amount must be positive")
	}
	return c.submit(ctx, "stake", value)
}

// Unstake withdraws the given amount from the staking pool.
func (c *Client) Unstake(ctx context.Context, amount *big.Int) (common.Hash, error) {
	if amount == nil || amount.Sign() <= 0 {
		return common.Hash{}, rejectf("unstake amount must be positive")
	}
	return c.submit(ctx, "unstake", nil, amount)
}

// ClaimRewards claims the caller's accrued staking rewards.
func (c *Client) ClaimRewards(ctx context.Context) (common.Hash, error) {
	return c.submit(ctx, "claimRewards", nil)
}

// UpdateRewardRate sets a new base reward rate (owner only).
func (c *Client) UpdateRewardRate(ctx context.Context, newRate *big.Int) (common.Hash, error) {
	if newRate == nil || newRate.Sign() < 0 {
		return common.Hash{}, rejectf("reward rate required")
	}
	return c.submit(ctx, "updateRewardRate", nil, newRate)
}

// SetVaultPaused toggles the vault's paused flag (owner only).
func (c *Client) SetVaultPaused(ctx context.Context, paused bool) (common.Hash, error) {
	return c.submit(ctx, "setVaultPaused", nil, paused)
}

// EmergencyPause halts all vault activity (owner only).
func (c *Client) EmergencyPause(ctx context.Context) (common.Hash, error) {
	return c.submit(ctx, "emergencyPause", nil)
}

// DistributeExcessFunds splits surplus funds between owner, charity, and
// stakers (owner only).
func (c *Client) DistributeExcessFunds(ctx context.Context) (common.Hash, error) {
	return c.submit(ctx, "distributeExcessFunds", nil)
}

// WithdrawOwnerRevenue pays out accumulated owner revenue (owner only).
func (c *Client) WithdrawOwnerRevenue(ctx context.Context) (common.Hash, error) {
	return c.submit(ctx, "withdrawOwnerRevenue", nil)
}

// WithdrawCharityFunds pays out accumulated charity funds (owner only).
func (c *Client) WithdrawCharityFunds(ctx context.Context) (common.Hash, error) {
	return c.submit(ctx, "withdrawCharityFunds", nil)
}
