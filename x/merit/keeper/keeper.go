package keeper

import (
	"context"
	"fmt"

	"cosmossdk.io/log"
	storetypes "cosmossdk.io/store/types"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/paw-chain/merit/x/merit/types"
)

// Keeper of the merit store
type Keeper struct {
	storeKey     storetypes.StoreKey
	bankKeeper   types.BankKeeper
	verifier     types.ProofVerifier
	capabilities types.Capabilities
	authority    string

	metrics *MeritMetrics
}

type kvStoreProvider interface {
	KVStore(key storetypes.StoreKey) storetypes.KVStore
}

// NewKeeper creates a new merit Keeper instance. Capability checks default to
// StakeCapabilities; SetCapabilities replaces them.
func NewKeeper(
	key storetypes.StoreKey,
	bankKeeper types.BankKeeper,
	verifier types.ProofVerifier,
	authority string,
) *Keeper {
	k := &Keeper{
		storeKey:   key,
		bankKeeper: bankKeeper,
		verifier:   verifier,
		authority:  authority,
		metrics:    NewMeritMetrics(),
	}
	k.capabilities = NewStakeCapabilities(k)
	return k
}

// SetCapabilities injects the access-control policy used by privileged operations.
func (k *Keeper) SetCapabilities(c types.Capabilities) {
	k.capabilities = c
}

// SetProofVerifier replaces the proof oracle.
func (k *Keeper) SetProofVerifier(v types.ProofVerifier) {
	k.verifier = v
}

// GetAuthority returns the module authority address
func (k Keeper) GetAuthority() string {
	return k.authority
}

// Logger returns a module-specific logger
func (k Keeper) Logger(ctx context.Context) log.Logger {
	return sdk.UnwrapSDKContext(ctx).Logger().With("module", fmt.Sprintf("x/%s", types.ModuleName))
}

// getStore returns the KVStore for the merit module
func (k Keeper) getStore(ctx context.Context) storetypes.KVStore {
	if provider, ok := ctx.(kvStoreProvider); ok {
		return provider.KVStore(k.storeKey)
	}

	unwrapped := sdk.UnwrapSDKContext(ctx)
	return unwrapped.KVStore(k.storeKey)
}

// invariantViolation logs a broken ledger invariant for audit and returns the
// error that aborts the enclosing transaction.
func (k Keeper) invariantViolation(ctx context.Context, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	k.Logger(ctx).Error("ledger invariant violated", "detail", msg)
	k.metrics.InvariantViolations.Inc()
	return types.ErrInvariantViolation.Wrap(msg)
}
