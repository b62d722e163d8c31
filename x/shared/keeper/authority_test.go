package keeper_test

import (
	"testing"

	sdk "github.com/cosmos/cosmos-sdk/types"
	govtypes "github.com/cosmos/cosmos-sdk/x/gov/types"
	"github.com/stretchr/testify/require"

	"github.com/paw-chain/merit/x/shared/keeper"
)

func TestValidateAuthority(t *testing.T) {
	authority := sdk.AccAddress([]byte("merit_authority_____")).String()
	other := sdk.AccAddress([]byte("someone_else________")).String()

	tests := []struct {
		name     string
		expected string
		actual   string
		wantErr  bool
	}{
		{name: "matching authority", expected: authority, actual: authority},
		{name: "authority mismatch", expected: authority, actual: other, wantErr: true},
		{name: "empty caller", expected: authority, actual: "", wantErr: true},
		{name: "unconfigured authority", expected: "", actual: other, wantErr: true},
		{name: "both empty", expected: "", actual: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := keeper.ValidateAuthority(tt.expected, tt.actual)
			if !tt.wantErr {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, govtypes.ErrInvalidSigner)
		})
	}
}

func TestParseAuthority(t *testing.T) {
	addr := sdk.AccAddress([]byte("merit_authority_____"))

	got, err := keeper.ParseAuthority(addr.String())
	require.NoError(t, err)
	require.Equal(t, addr.String(), got)

	_, err = keeper.ParseAuthority("not-an-address")
	require.ErrorIs(t, err, govtypes.ErrInvalidSigner)
}
