// Package client binds the SonicRush vault contract over an Ethereum RPC
// endpoint. It is a thin, stateless boundary: reads decode contract views
// into vault types with defensive parsing, writes pack, sign, and send one
// transaction per call, and receipt lookups expose the chain's finality
// signal. Polling, caching, and lifecycle tracking live above it in
// services/vaultd.
package client

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/ogazboiz/sonic-rush/vault"
)

// ErrRemoteUnavailable wraps transport failures reaching the RPC endpoint.
// Callers keep their last-known snapshot when a read fails with it.
var ErrRemoteUnavailable = errors.New("client: remote unavailable")

// ErrSubmissionRejected marks a request that failed local validation before
// dispatch. No transaction is sent when it is returned.
var ErrSubmissionRejected = errors.New("client: submission rejected")

// Backend is the subset of the Ethereum RPC the client uses. ethclient.Client
// satisfies it; tests substitute a fake.
type Backend interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*gethtypes.Header, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*gethtypes.Receipt, error)
	SendTransaction(ctx context.Context, tx *gethtypes.Transaction) error
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

var _ Backend = (*ethclient.Client)(nil)

// ContractAddress resolves the deployed vault contract for a chain ID.
func ContractAddress(chainID uint64) (common.Address, error) {
	switch chainID {
	case 146: // Sonic mainnet
		return common.HexToAddress("0x60bEc5652AeC0b367bf83f84054DC99bB0Bcf15e"), nil
	case 14601: // Sonic testnet
		return common.HexToAddress("0x29BA007f6e604BF884968Ce11cB2D8e3b81A6284"), nil
	default:
		return common.Address{}, fmt.Errorf("client: no vault deployment for chain %d", chainID)
	}
}

const defaultGasLimit = uint64(400_000)

// Client exposes the vault contract's reads and writes.
type Client struct {
	backend  Backend
	contract common.Address
	chainID  *big.Int
	key      *ecdsa.PrivateKey
	sender   common.Address
	gasLimit uint64
}

// Option customises client construction.
type Option func(*Client)

// WithSigner supplies the key used to sign submitted transactions. Without
// it the client is read-only and every submission is rejected locally.
func WithSigner(key *ecdsa.PrivateKey, sender common.Address) Option {
	return func(c *Client) {
		c.key = key
		c.sender = sender
	}
}

// WithGasLimit overrides the default gas limit attached to submissions.
func WithGasLimit(limit uint64) Option {
	return func(c *Client) {
		if limit > 0 {
			c.gasLimit = limit
		}
	}
}

// New constructs a client bound to the vault contract at the given address.
func New(backend Backend, contract common.Address, chainID *big.Int, opts ...Option) (*Client, error) {
	if backend == nil {
		return nil, fmt.Errorf("client: backend required")
	}
	if (contract == common.Address{}) {
		return nil, fmt.Errorf("client: contract address required")
	}
	if chainID == nil || chainID.Sign() <= 0 {
		return nil, fmt.Errorf("client: chain id required")
	}
	c := &Client{
		backend:  backend,
		contract: contract,
		chainID:  new(big.Int).Set(chainID),
		gasLimit: defaultGasLimit,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// Dial connects to an Ethereum RPC endpoint and wraps it in a client.
func Dial(ctx context.Context, endpoint string, contract common.Address, chainID *big.Int, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(endpoint)
	if trimmed == "" {
		return nil, fmt.Errorf("client: rpc endpoint required")
	}
	backend, err := ethclient.DialContext(ctx, trimmed)
	if err != nil {
		return nil, fmt.Errorf("client: dial %s: %w", trimmed, err)
	}
	return New(backend, contract, chainID, opts...)
}

// Sender reports the address transactions are signed with, if configured.
func (c *Client) Sender() (common.Address, bool) {
	if c == nil || c.key == nil {
		return common.Address{}, false
	}
	return c.sender, true
}

func (c *Client) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	data, err := vaultABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("client: pack %s: %w", method, err)
	}
	raw, err := c.backend.CallContract(ctx, ethereum.CallMsg{To: &c.contract, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrRemoteUnavailable, method, err)
	}
	out, err := vaultABI.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("client: decode %s: %w", method, err)
	}
	return out, nil
}

func asBig(method string, out []interface{}, idx int) (*big.Int, error) {
	if idx >= len(out) {
		return nil, fmt.Errorf("client: %s returned %d values, want index %d", method, len(out), idx)
	}
	value, ok := out[idx].(*big.Int)
	if !ok || value == nil {
		return nil, fmt.Errorf("client: %s output %d is not uint256", method, idx)
	}
	return value, nil
}

func asUnix(method, field string, value *big.Int) (uint64, error) {
	if value == nil {
		return 0, fmt.Errorf("client: %s field %s missing", method, field)
	}
	if !value.IsUint64() {
		return 0, fmt.Errorf("client: %s field %s out of range", method, field)
	}
	return value.Uint64(), nil
}

func (c *Client) callBig(ctx context.Context, method string, args ...interface{}) (*big.Int, error) {
	out, err := c.call(ctx, method, args...)
	if err != nil {
		return nil, err
	}
	return asBig(method, out, 0)
}

func (c *Client) callBool(ctx context.Context, method string) (bool, error) {
	out, err := c.call(ctx, method)
	if err != nil {
		return false, err
	}
	if len(out) == 0 {
		return false, fmt.Errorf("client: %s returned no values", method)
	}
	value, ok := out[0].(bool)
	if !ok {
		return false, fmt.Errorf("client: %s output is not bool", method)
	}
	return value, nil
}

func (c *Client) callAddress(ctx context.Context, method string) (common.Address, error) {
	out, err := c.call(ctx, method)
	if err != nil {
		return common.Address{}, err
	}
	if len(out) == 0 {
		return common.Address{}, fmt.Errorf("client: %s returned no values", method)
	}
	value, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("client: %s output is not address", method)
	}
	return value, nil
}

// VaultStats fetches the ledger-wide aggregate counters.
func (c *Client) VaultStats(ctx context.Context) (vault.VaultStats, error) {
	out, err := c.call(ctx, "getVaultStats")
	if err != nil {
		return vault.VaultStats{}, err
	}
	var stats vault.VaultStats
	if stats.TotalStaked, err = asBig("getVaultStats", out, 0); err != nil {
		return vault.VaultStats{}, err
	}
	if stats.RewardPool, err = asBig("getVaultStats", out, 1); err != nil {
		return vault.VaultStats{}, err
	}
	if stats.TotalStreams, err = asBig("getVaultStats", out, 2); err != nil {
		return vault.VaultStats{}, err
	}
	if err := stats.Validate(); err != nil {
		return vault.VaultStats{}, err
	}
	return stats, nil
}

type rawStake struct {
	Amount             *big.Int
	StartTime          *big.Int
	LastClaimTime      *big.Int
	AccumulatedRewards *big.Int
	IsActive           bool
}

// UserStake fetches the staking position owned by the given address.
func (c *Client) UserStake(ctx context.Context, user common.Address) (vault.Stake, error) {
	out, err := c.call(ctx, "getUserStake", user)
	if err != nil {
		return vault.Stake{}, err
	}
	if len(out) == 0 {
		return vault.Stake{}, fmt.Errorf("client: getUserStake returned no values")
	}
	raw := *abi.ConvertType(out[0], new(rawStake)).(*rawStake)
	stake := vault.Stake{
		Amount:             raw.Amount,
		AccumulatedRewards: raw.AccumulatedRewards,
		IsActive:           raw.IsActive,
	}
	if stake.StartTime, err = asUnix("getUserStake", "startTime", raw.StartTime); err != nil {
		return vault.Stake{}, err
	}
	if stake.LastClaimTime, err = asUnix("getUserStake", "lastClaimTime", raw.LastClaimTime); err != nil {
		return vault.Stake{}, err
	}
	if err := stake.Validate(); err != nil {
		return vault.Stake{}, err
	}
	return stake, nil
}

type rawStream struct {
	Sender          common.Address
	Recipient       common.Address
	TotalAmount     *big.Int
	FlowRate        *big.Int
	StartTime       *big.Int
	StopTime        *big.Int
	AmountWithdrawn *big.Int
	IsActive        bool
}

// Stream fetches the stream record with the given identifier.
func (c *Client) Stream(ctx context.Context, id *big.Int) (vault.Stream, error) {
	if id == nil || id.Sign() < 0 {
		return vault.Stream{}, fmt.Errorf("client: stream id required")
	}
	out, err := c.call(ctx, "getStream", id)
	if err != nil {
		return vault.Stream{}, err
	}
	if len(out) == 0 {
		return vault.Stream{}, fmt.Errorf("client: getStream returned no values")
	}
	raw := *abi.ConvertType(out[0], new(rawStream)).(*rawStream)
	stream := vault.Stream{
		Sender:          raw.Sender,
		Recipient:       raw.Recipient,
		TotalAmount:     raw.TotalAmount,
		FlowRate:        raw.FlowRate,
		AmountWithdrawn: raw.AmountWithdrawn,
		IsActive:        raw.IsActive,
	}
	if stream.StartTime, err = asUnix("getStream", "startTime", raw.StartTime); err != nil {
		return vault.Stream{}, err
	}
	if stream.StopTime, err = asUnix("getStream", "stopTime", raw.StopTime); err != nil {
		return vault.Stream{}, err
	}
	if err := stream.Validate(); err != nil {
		return vault.Stream{}, err
	}
	return stream, nil
}

// ClaimableBalance fetches the contract's own claimable figure for a stream.
func (c *Client) ClaimableBalance(ctx context.Context, id *big.Int) (*big.Int, error) {
	if id == nil || id.Sign() < 0 {
		return nil, fmt.Errorf("client: stream id required")
	}
	return c.callBig(ctx, "getClaimableBalance", id)
}

// BalanceInfo fetches the contract's internal accounting tuple.
func (c *Client) BalanceInfo(ctx context.Context) (vault.BalanceInfo, error) {
	out, err := c.call(ctx, "getBalanceInfo")
	if err != nil {
		return vault.BalanceInfo{}, err
	}
	var info vault.BalanceInfo
	if info.Balance, err = asBig("getBalanceInfo", out, 0); err != nil {
		return vault.BalanceInfo{}, err
	}
	if info.TotalStaked, err = asBig("getBalanceInfo", out, 1); err != nil {
		return vault.BalanceInfo{}, err
	}
	if info.AvailableForRewards, err = asBig("getBalanceInfo", out, 2); err != nil {
		return vault.BalanceInfo{}, err
	}
	if info.OwnerRevenue, err = asBig("getBalanceInfo", out, 3); err != nil {
		return vault.BalanceInfo{}, err
	}
	if info.CharityFunds, err = asBig("getBalanceInfo", out, 4); err != nil {
		return vault.BalanceInfo{}, err
	}
	return info, nil
}

// ActivityInfo fetches the vault activity tuple.
func (c *Client) ActivityInfo(ctx context.Context) (vault.ActivityInfo, error) {
	out, err := c.call(ctx, "getActivityInfo")
	if err != nil {
		return vault.ActivityInfo{}, err
	}
	var info vault.ActivityInfo
	if info.ActiveStreams, err = asBig("getActivityInfo", out, 0); err != nil {
		return vault.ActivityInfo{}, err
	}
	if info.ActiveStakers, err = asBig("getActivityInfo", out, 1); err != nil {
		return vault.ActivityInfo{}, err
	}
	if info.LastActivity, err = asBig("getActivityInfo", out, 2); err != nil {
		return vault.ActivityInfo{}, err
	}
	return info, nil
}

// FeeInfo fetches the fee accounting tuple.
func (c *Client) FeeInfo(ctx context.Context) (vault.FeeInfo, error) {
	out, err := c.call(ctx, "getFeeInfo")
	if err != nil {
		return vault.FeeInfo{}, err
	}
	var info vault.FeeInfo
	if info.StreamingFeeBps, err = asBig("getFeeInfo", out, 0); err != nil {
		return vault.FeeInfo{}, err
	}
	if info.Collected, err = asBig("getFeeInfo", out, 1); err != nil {
		return vault.FeeInfo{}, err
	}
	if info.OwnerShare, err = asBig("getFeeInfo", out, 2); err != nil {
		return vault.FeeInfo{}, err
	}
	if info.CharityShare, err = asBig("getFeeInfo", out, 3); err != nil {
		return vault.FeeInfo{}, err
	}
	return info, nil
}

// RevenueSplit fetches the owner/charity revenue split.
func (c *Client) RevenueSplit(ctx context.Context) (vault.RevenueSplit, error) {
	out, err := c.call(ctx, "getRevenueSplit")
	if err != nil {
		return vault.RevenueSplit{}, err
	}
	var split vault.RevenueSplit
	if split.OwnerBps, err = asBig("getRevenueSplit", out, 0); err != nil {
		return vault.RevenueSplit{}, err
	}
	if split.CharityBps, err = asBig("getRevenueSplit", out, 1); err != nil {
		return vault.RevenueSplit{}, err
	}
	return split, nil
}

// TotalStreams fetches the number of streams ever created.
func (c *Client) TotalStreams(ctx context.Context) (*big.Int, error) {
	return c.callBig(ctx, "getTotalStreams")
}

// CurrentAPY fetches the current staking APY in basis points.
func (c *Client) CurrentAPY(ctx context.Context) (*big.Int, error) {
	return c.callBig(ctx, "getCurrentAPY")
}

// ExcessFunds fetches the distributable surplus held by the vault.
func (c *Client) ExcessFunds(ctx context.Context) (*big.Int, error) {
	return c.callBig(ctx, "calculateExcessFunds")
}

// StreamingFeeBps fetches the streaming fee in basis points.
func (c *Client) StreamingFeeBps(ctx context.Context) (*big.Int, error) {
	return c.callBig(ctx, "STREAMING_FEE_BPS")
}

// APYCapBps fetches the APY cap in basis points.
func (c *Client) APYCapBps(ctx context.Context) (*big.Int, error) {
	return c.callBig(ctx, "apyCapBPS")
}

// BaseRewardRate fetches the configured base reward rate.
func (c *Client) BaseRewardRate(ctx context.Context) (*big.Int, error) {
	return c.callBig(ctx, "baseRewardRate")
}

// Owner fetches the contract owner address.
func (c *Client) Owner(ctx context.Context) (common.Address, error) {
	return c.callAddress(ctx, "owner")
}

// CharityAddress fetches the configured charity address.
func (c *Client) CharityAddress(ctx context.Context) (common.Address, error) {
	return c.callAddress(ctx, "charityAddress")
}

// VaultActive reports whether the vault accepts new activity.
func (c *Client) VaultActive(ctx context.Context) (bool, error) {
	return c.callBool(ctx, "vaultActive")
}

// IsSolvent reports the contract's own solvency check.
func (c *Client) IsSolvent(ctx context.Context) (bool, error) {
	return c.callBool(ctx, "isSolvent")
}

// Paused reports whether the vault is paused.
func (c *Client) Paused(ctx context.Context) (bool, error) {
	return c.callBool(ctx, "paused")
}

// WalletBalance fetches the native balance of the signing account.
func (c *Client) WalletBalance(ctx context.Context) (*big.Int, error) {
	sender, ok := c.Sender()
	if !ok {
		return nil, fmt.Errorf("client: no signer configured")
	}
	balance, err := c.backend.BalanceAt(ctx, sender, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: balance: %v", ErrRemoteUnavailable, err)
	}
	return balance, nil
}

// Receipt fetches the receipt for a submitted transaction. A nil receipt
// with nil error means the transaction is not yet mined.
func (c *Client) Receipt(ctx context.Context, txHash common.Hash) (*gethtypes.Receipt, error) {
	receipt, err := c.backend.TransactionReceipt(ctx, txHash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: receipt: %v", ErrRemoteUnavailable, err)
	}
	return receipt, nil
}

// Head fetches the current chain head, used for confirmation depth checks.
func (c *Client) Head(ctx context.Context) (*gethtypes.Header, error) {
	header, err := c.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: head: %v", ErrRemoteUnavailable, err)
	}
	return header, nil
}
