package app

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/paw-chain/merit/x/merit/types"
)

// Balance is a genesis account balance in the bond denom.
type Balance struct {
	Address string   `json:"address"`
	Amount  math.Int `json:"amount"`
}

// GenesisState is the initial state of a MeritApp ledger.
type GenesisState struct {
	ChainID     string             `json:"chain_id"`
	GenesisTime time.Time          `json:"genesis_time"`
	Balances    []Balance          `json:"balances"`
	Merit       types.GenesisState `json:"merit"`
}

// NewDefaultGenesisState returns a genesis with default merit parameters and no balances.
func NewDefaultGenesisState(chainID string, genesisTime time.Time) GenesisState {
	return GenesisState{
		ChainID:     chainID,
		GenesisTime: genesisTime.UTC(),
		Merit:       *types.DefaultGenesis(),
	}
}

// Validate checks the balances and the merit genesis.
func (gs GenesisState) Validate() error {
	if gs.ChainID == "" {
		return fmt.Errorf("chain id cannot be empty")
	}
	seen := make(map[string]bool, len(gs.Balances))
	for i, b := range gs.Balances {
		if _, err := sdk.AccAddressFromBech32(b.Address); err != nil {
			return fmt.Errorf("balance %d: invalid address: %w", i, err)
		}
		if seen[b.Address] {
			return fmt.Errorf("balance %d: duplicate address %s", i, b.Address)
		}
		seen[b.Address] = true
		if b.Amount.IsNil() || !b.Amount.IsPositive() {
			return fmt.Errorf("balance %d: amount must be positive", i)
		}
	}
	return gs.Merit.Validate()
}

// ReadGenesisFile loads a genesis document from path.
func ReadGenesisFile(path string) (GenesisState, error) {
	bz, err := os.ReadFile(path)
	if err != nil {
		return GenesisState{}, fmt.Errorf("failed to read genesis file: %w", err)
	}
	var gs GenesisState
	if err := json.Unmarshal(bz, &gs); err != nil {
		return GenesisState{}, fmt.Errorf("failed to decode genesis file: %w", err)
	}
	return gs, nil
}

// WriteGenesisFile writes gs to path as indented JSON.
func WriteGenesisFile(path string, gs GenesisState) error {
	bz, err := json.MarshalIndent(gs, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, bz, 0o600)
}
