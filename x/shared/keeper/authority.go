// Package keeper provides authority checks shared by the merit keepers and
// the host application.
package keeper

import (
	sdk "github.com/cosmos/cosmos-sdk/types"
	govtypes "github.com/cosmos/cosmos-sdk/x/gov/types"
)

// ValidateAuthority checks that actual is the configured module authority.
// An unconfigured authority never matches.
//
//	if err := keeper.ValidateAuthority(k.authority, authority); err != nil {
//	    return err
//	}
func ValidateAuthority(expected, actual string) error {
	if expected == "" {
		return govtypes.ErrInvalidSigner.Wrap("module authority is not configured")
	}
	if expected != actual {
		return govtypes.ErrInvalidSigner.Wrapf(
			"invalid authority; expected %s, got %s",
			expected,
			actual,
		)
	}
	return nil
}

// ParseAuthority validates a bech32 authority address and returns it in
// canonical form.
func ParseAuthority(authority string) (string, error) {
	addr, err := sdk.AccAddressFromBech32(authority)
	if err != nil {
		return "", govtypes.ErrInvalidSigner.Wrapf("invalid authority address %q: %v", authority, err)
	}
	return addr.String(), nil
}
