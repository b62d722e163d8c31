package types

import (
	sdk "github.com/cosmos/cosmos-sdk/types"
	authtypes "github.com/cosmos/cosmos-sdk/x/auth/types"
)

const (
	// ModuleName defines the module name
	ModuleName = "merit"

	// StoreKey defines the primary module store key
	StoreKey = ModuleName

	// RouterKey is the message route for merit
	RouterKey = ModuleName

	// RewardPoolName is the module account paying contribution and staking rewards
	RewardPoolName = "merit_rewards"

	// InsurancePoolName is the module account that receives slashed stake
	InsurancePoolName = "merit_insurance"

	// DefaultBondDenom is the denom used for stakes, rewards and voting power
	DefaultBondDenom = "umerit"
)

// EscrowAddress returns the account holding all locked stake.
func EscrowAddress() sdk.AccAddress {
	return authtypes.NewModuleAddress(ModuleName)
}

// RewardPoolAddress returns the treasury account rewards are paid from.
func RewardPoolAddress() sdk.AccAddress {
	return authtypes.NewModuleAddress(RewardPoolName)
}

// InsurancePoolAddress returns the shared insurance pool account.
func InsurancePoolAddress() sdk.AccAddress {
	return authtypes.NewModuleAddress(InsurancePoolName)
}

// TestAddr returns a test address for testing purposes
func TestAddr() sdk.AccAddress {
	return sdk.AccAddress([]byte("test_address________"))
}
