package keeper

import (
	"testing"
	"time"

	"cosmossdk.io/log"
	"cosmossdk.io/math"
	"cosmossdk.io/store"
	"cosmossdk.io/store/metrics"
	storetypes "cosmossdk.io/store/types"
	cmtproto "github.com/cometbft/cometbft/proto/tendermint/types"
	dbm "github.com/cosmos/cosmos-db"
	"github.com/cosmos/cosmos-sdk/codec"
	"github.com/cosmos/cosmos-sdk/codec/address"
	codectypes "github.com/cosmos/cosmos-sdk/codec/types"
	"github.com/cosmos/cosmos-sdk/runtime"
	"github.com/cosmos/cosmos-sdk/std"
	sdk "github.com/cosmos/cosmos-sdk/types"
	authkeeper "github.com/cosmos/cosmos-sdk/x/auth/keeper"
	authtypes "github.com/cosmos/cosmos-sdk/x/auth/types"
	bankkeeper "github.com/cosmos/cosmos-sdk/x/bank/keeper"
	banktypes "github.com/cosmos/cosmos-sdk/x/bank/types"
	govtypes "github.com/cosmos/cosmos-sdk/x/gov/types"
	"github.com/stretchr/testify/require"

	"github.com/paw-chain/merit/x/merit/keeper"
	"github.com/paw-chain/merit/x/merit/oracle"
	"github.com/paw-chain/merit/x/merit/types"
)

// FaucetName is the module account tests mint funds through.
const FaucetName = "faucet"

// GenesisTime is the block time every fixture starts at.
var GenesisTime = time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)

// MeritFixture bundles a merit keeper with the real auth and bank keepers it
// moves funds through.
type MeritFixture struct {
	Keeper        *keeper.Keeper
	Ctx           sdk.Context
	StoreKey      storetypes.StoreKey
	BankKeeper    bankkeeper.BaseKeeper
	AccountKeeper authkeeper.AccountKeeper
	Authority     sdk.AccAddress
}

// MeritKeeper creates a test keeper for the merit module that accepts every proof.
func MeritKeeper(t testing.TB) (*keeper.Keeper, sdk.Context) {
	f := NewMeritFixture(t)
	return f.Keeper, f.Ctx
}

// NewMeritFixture mounts the merit, auth and bank stores on an in-memory
// multistore and wires the keepers together.
func NewMeritFixture(t testing.TB) *MeritFixture {
	storeKey := storetypes.NewKVStoreKey(types.StoreKey)
	authStoreKey := storetypes.NewKVStoreKey(authtypes.StoreKey)
	bankStoreKey := storetypes.NewKVStoreKey(banktypes.StoreKey)

	db := dbm.NewMemDB()
	stateStore := store.NewCommitMultiStore(db, log.NewNopLogger(), metrics.NewNoOpMetrics())
	stateStore.MountStoreWithDB(storeKey, storetypes.StoreTypeIAVL, db)
	stateStore.MountStoreWithDB(authStoreKey, storetypes.StoreTypeIAVL, db)
	stateStore.MountStoreWithDB(bankStoreKey, storetypes.StoreTypeIAVL, db)
	require.NoError(t, stateStore.LoadLatestVersion())

	registry := codectypes.NewInterfaceRegistry()
	std.RegisterInterfaces(registry)
	authtypes.RegisterInterfaces(registry)
	banktypes.RegisterInterfaces(registry)
	cdc := codec.NewProtoCodec(registry)
	authority := authtypes.NewModuleAddress(govtypes.ModuleName)

	maccPerms := map[string][]string{
		FaucetName:              {authtypes.Minter},
		types.ModuleName:        nil,
		types.RewardPoolName:    nil,
		types.InsurancePoolName: nil,
	}

	bech32Prefix := sdk.GetConfig().GetBech32AccountAddrPrefix()
	accountKeeper := authkeeper.NewAccountKeeper(
		cdc,
		runtime.NewKVStoreService(authStoreKey),
		authtypes.ProtoBaseAccount,
		maccPerms,
		address.NewBech32Codec(bech32Prefix),
		bech32Prefix,
		authority.String(),
	)

	bankKeeper := bankkeeper.NewBaseKeeper(
		cdc,
		runtime.NewKVStoreService(bankStoreKey),
		accountKeeper,
		map[string]bool{},
		authority.String(),
		log.NewNopLogger(),
	)

	k := keeper.NewKeeper(storeKey, bankKeeper, oracle.StaticVerifier{Accept: true}, authority.String())

	ctx := sdk.NewContext(stateStore, cmtproto.Header{Height: 1, Time: GenesisTime}, false, log.NewNopLogger())

	for name := range maccPerms {
		accountKeeper.GetModuleAccount(ctx, name)
	}

	return &MeritFixture{
		Keeper:        k,
		Ctx:           ctx,
		StoreKey:      storeKey,
		BankKeeper:    bankKeeper,
		AccountKeeper: accountKeeper,
		Authority:     authority,
	}
}

// Fund mints amount of the bond denom into addr.
func (f *MeritFixture) Fund(t testing.TB, addr sdk.AccAddress, amount int64) {
	t.Helper()
	coins := sdk.NewCoins(sdk.NewInt64Coin(types.DefaultBondDenom, amount))
	require.NoError(t, f.BankKeeper.MintCoins(f.Ctx, FaucetName, coins))
	require.NoError(t, f.BankKeeper.SendCoinsFromModuleToAccount(f.Ctx, FaucetName, addr, coins))
}

// FundRewardPool mints amount into the reward pool.
func (f *MeritFixture) FundRewardPool(t testing.TB, amount int64) {
	t.Helper()
	f.Fund(t, types.RewardPoolAddress(), amount)
}

// Balance returns the bond denom balance of addr.
func (f *MeritFixture) Balance(addr sdk.AccAddress) math.Int {
	return f.BankKeeper.GetBalance(f.Ctx, addr, types.DefaultBondDenom).Amount
}

// AdvanceTime moves the block time and height forward.
func (f *MeritFixture) AdvanceTime(d time.Duration) {
	f.Ctx = f.Ctx.
		WithBlockTime(f.Ctx.BlockTime().Add(d)).
		WithBlockHeight(f.Ctx.BlockHeight() + 1)
}

// ResetEvents gives the context a fresh event manager.
func (f *MeritFixture) ResetEvents() {
	f.Ctx = f.Ctx.WithEventManager(sdk.NewEventManager())
}

// HasEvent reports whether an event of eventType was emitted.
func (f *MeritFixture) HasEvent(eventType string) bool {
	for _, ev := range f.Ctx.EventManager().Events() {
		if ev.Type == eventType {
			return true
		}
	}
	return false
}

// Stake funds addr and opens a position of amount for role with the
// role's minimum lock.
func (f *MeritFixture) Stake(t testing.TB, addr sdk.AccAddress, role types.Role, amount int64) {
	t.Helper()
	f.Fund(t, addr, amount)
	params, err := f.Keeper.GetParams(f.Ctx)
	require.NoError(t, err)
	terms, err := params.RoleTerms(role)
	require.NoError(t, err)

	metadata := ""
	if role == types.RoleValidator {
		metadata = "node-" + addr.String()[len(addr.String())-6:]
	}
	_, err = f.Keeper.OpenPosition(f.Ctx, addr, role, math.NewInt(amount), terms.MinLock, metadata)
	require.NoError(t, err)
}

// Addr returns a deterministic test address for index i.
func Addr(i int) sdk.AccAddress {
	bz := make([]byte, 20)
	copy(bz, "merit_test_addr_")
	bz[18] = byte(i >> 8)
	bz[19] = byte(i)
	return sdk.AccAddress(bz)
}
