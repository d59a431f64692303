package client

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// vaultABIJSON is the SonicRush vault contract interface surface used by the
// client. It covers every view the sync layer mirrors and every mutation the
// submitter dispatches; events and constructor are omitted because the client
// neither deploys the contract nor decodes its logs.
const vaultABIJSON = `[
  {"type":"function","stateMutability":"view","name":"getVaultStats","inputs":[],"outputs":[{"name":"","type":"uint256"},{"name":"","type":"uint256"},{"name":"","type":"uint256"}]},
  {"type":"function","stateMutability":"view","name":"getTotalStreams","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","stateMutability":"view","name":"STREAMING_FEE_BPS","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","stateMutability":"view","name":"apyCapBPS","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","stateMutability":"view","name":"baseRewardRate","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","stateMutability":"view","name":"getCurrentAPY","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","stateMutability":"view","name":"calculateExcessFunds","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","stateMutability":"view","name":"getActivityInfo","inputs":[],"outputs":[{"name":"","type":"uint256"},{"name":"","type":"uint256"},{"name":"","type":"uint256"}]},
  {"type":"function","stateMutability":"view","name":"getBalanceInfo","inputs":[],"outputs":[{"name":"balance","type":"uint256"},{"name":"totalStakedAmount","type":"uint256"},{"name":"availableForRewards","type":"uint256"},{"name":"ownerRevenueAvailable","type":"uint256"},{"name":"charityFundsAvailable","type":"uint256"}]},
  {"type":"function","stateMutability":"view","name":"getFeeInfo","inputs":[],"outputs":[{"name":"","type":"uint256"},{"name":"","type":"uint256"},{"name":"","type":"uint256"},{"name":"","type":"uint256"}]},
  {"type":"function","stateMutability":"view","name":"getRevenueSplit","inputs":[],"outputs":[{"name":"","type":"uint256"},{"name":"","type":"uint256"}]},
  {"type":"function","stateMutability":"view","name":"getUserStake","inputs":[{"name":"user","type":"address"}],"outputs":[{"name":"","type":"tuple","components":[{"name":"amount","type":"uint256"},{"name":"startTime","type":"uint256"},{"name":"lastClaimTime","type":"uint256"},{"name":"accumulatedRewards","type":"uint256"},{"name":"isActive","type":"bool"}]}]},
  {"type":"function","stateMutability":"view","name":"getStream","inputs":[{"name":"streamId","type":"uint256"}],"outputs":[{"name":"","type":"tuple","components":[{"name":"sender","type":"address"},{"name":"recipient","type":"address"},{"name":"totalAmount","type":"uint256"},{"name":"flowRate","type":"uint256"},{"name":"startTime","type":"uint256"},{"name":"stopTime","type":"uint256"},{"name":"amountWithdrawn","type":"uint256"},{"name":"isActive","type":"bool"}]}]},
  {"type":"function","stateMutability":"view","name":"getClaimableBalance","inputs":[{"name":"streamId","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","stateMutability":"view","name":"owner","inputs":[],"outputs":[{"name":"","type":"address"}]},
  {"type":"function","stateMutability":"view","name":"charityAddress","inputs":[],"outputs":[{"name":"","type":"address"}]},
  {"type":"function","stateMutability":"view","name":"vaultActive","inputs":[],"outputs":[{"name":"","type":"bool"}]},
  {"type":"function","stateMutability":"view","name":"isSolvent","inputs":[],"outputs":[{"name":"","type":"bool"}]},
  {"type":"function","stateMutability":"view","name":"paused","inputs":[],"outputs":[{"name":"","type":"bool"}]},
  {"type":"function","stateMutability":"payable","name":"createStream","inputs":[{"name":"recipient","type":"address"},{"name":"duration","type":"uint256"}],"outputs":[]},
  {"type":"function","stateMutability":"nonpayable","name":"withdrawFromStream","inputs":[{"name":"streamId","type":"uint256"}],"outputs":[]},
  {"type":"function","stateMutability":"nonpayable","name":"cancelStream","inputs":[{"name":"streamId","type":"uint256"}],"outputs":[]},
  {"type":"function","stateMutability":"payable","name":"stake","inputs":[],"outputs":[]},
  {"type":"function","stateMutability":"nonpayable","name":"unstake","inputs":[{"name":"amount","type":"uint256"}],"outputs":[]},
  {"type":"function","stateMutability":"nonpayable","name":"claimRewards","inputs":[],"outputs":[]},
  {"type":"function","stateMutability":"nonpayable","name":"updateRewardRate","inputs":[{"name":"newRate","type":"uint256"}],"outputs":[]},
  {"type":"function","stateMutability":"nonpayable","name":"setVaultPaused","inputs":[{"name":"paused","type":"bool"}],"outputs":[]},
  {"type":"function","stateMutability":"nonpayable","name":"emergencyPause","inputs":[],"outputs":[]},
  {"type":"function","stateMutability":"nonpayable","name":"distributeExcessFunds","inputs":[],"outputs":[]},
  {"type":"function","stateMutability":"nonpayable","name":"withdrawOwnerRevenue","inputs":[],"outputs":[]},
  {"type":"function","stateMutability":"nonpayable","name":"withdrawCharityFunds","inputs":[],"outputs":[]}
]`

var vaultABI = func() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(vaultABIJSON))
	if err != nil {
		panic("client: parse vault abi: " + err.Error())
	}
	return parsed
}()
