// Package app hosts the merit ledger.
//
// MeritApp mounts the auth, bank and merit stores on a single IAVL commit
// multistore backed by cosmos-db. Every state transition runs through Execute:
// the transition sees a cached branch of the latest committed state at a
// caller-supplied block time and is committed as one new version only when it
// succeeds. A failed transition leaves no trace. Committed transitions are
// traced through OpenTelemetry and handed to an optional EventSink.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"cosmossdk.io/log"
	"cosmossdk.io/math"
	"cosmossdk.io/store"
	"cosmossdk.io/store/metrics"
	storetypes "cosmossdk.io/store/types"
	cmtproto "github.com/cometbft/cometbft/proto/tendermint/types"
	dbm "github.com/cosmos/cosmos-db"
	"github.com/cosmos/cosmos-sdk/codec/address"
	"github.com/cosmos/cosmos-sdk/runtime"
	sdk "github.com/cosmos/cosmos-sdk/types"
	authkeeper "github.com/cosmos/cosmos-sdk/x/auth/keeper"
	authtypes "github.com/cosmos/cosmos-sdk/x/auth/types"
	bankkeeper "github.com/cosmos/cosmos-sdk/x/bank/keeper"
	banktypes "github.com/cosmos/cosmos-sdk/x/bank/types"
	govtypes "github.com/cosmos/cosmos-sdk/x/gov/types"
	"go.opentelemetry.io/otel/trace"

	"github.com/paw-chain/merit/app/telemetry"
	meritkeeper "github.com/paw-chain/merit/x/merit/keeper"
	"github.com/paw-chain/merit/x/merit/oracle"
	"github.com/paw-chain/merit/x/merit/types"
)

const metaStoreName = "app"

var (
	lastBlockTimeKey = []byte("last_block_time")
	chainIDKey       = []byte("chain_id")
)

var (
	// ErrTimeRegression is returned when a transition is dated before the last committed block.
	ErrTimeRegression = errors.New("block time precedes last committed block")
	// ErrNotInitialized is returned when a transition runs before InitChain.
	ErrNotInitialized = errors.New("ledger has not been initialized")
	// ErrAlreadyInitialized is returned when InitChain runs on a ledger with history.
	ErrAlreadyInitialized = errors.New("ledger is already initialized")
)

// module account permissions
var maccPerms = map[string][]string{
	types.ModuleName:        nil,
	types.RewardPoolName:    nil,
	types.InsurancePoolName: nil,
}

// Event is a flattened ledger event.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

// Result describes a committed transition.
type Result struct {
	Height    int64     `json:"height"`
	Time      time.Time `json:"time"`
	Operation string    `json:"operation"`
	AppHash   []byte    `json:"app_hash"`
	Events    []Event   `json:"events"`
}

// EventSink receives every committed Result.
type EventSink interface {
	Index(ctx context.Context, res Result) error
}

// Options configures a MeritApp.
type Options struct {
	// ChainID pins the chain id the ledger must be initialized with. Empty accepts any.
	ChainID string
	// Verifier is the proof oracle. Defaults to rejecting every proof.
	Verifier types.ProofVerifier
	// Authority administers params and role grants. Defaults to the gov module address.
	Authority string
	Telemetry *telemetry.Provider
	Sink      EventSink
}

// MeritApp is the single-writer host of the merit ledger.
type MeritApp struct {
	logger log.Logger
	db     dbm.DB
	cms    storetypes.CommitMultiStore

	keys    map[string]*storetypes.KVStoreKey
	metaKey *storetypes.KVStoreKey

	AccountKeeper authkeeper.AccountKeeper
	BankKeeper    bankkeeper.BaseKeeper
	MeritKeeper   *meritkeeper.Keeper

	telemetry *telemetry.Provider
	tracer    trace.Tracer
	sink      EventSink

	mu       sync.RWMutex
	chainID  string
	lastTime time.Time
}

// NewMeritApp opens the ledger stored in db.
func NewMeritApp(logger log.Logger, db dbm.DB, opts Options) (*MeritApp, error) {
	SetConfig()
	encoding := MakeEncodingConfig()

	keys := storetypes.NewKVStoreKeys(authtypes.StoreKey, banktypes.StoreKey, types.StoreKey, metaStoreName)

	cms := store.NewCommitMultiStore(db, logger, metrics.NewNoOpMetrics())
	for _, key := range keys {
		cms.MountStoreWithDB(key, storetypes.StoreTypeIAVL, nil)
	}
	if err := cms.LoadLatestVersion(); err != nil {
		return nil, fmt.Errorf("failed to load ledger: %w", err)
	}

	authority := opts.Authority
	if authority == "" {
		authority = authtypes.NewModuleAddress(govtypes.ModuleName).String()
	}

	accountKeeper := authkeeper.NewAccountKeeper(
		encoding.Codec,
		runtime.NewKVStoreService(keys[authtypes.StoreKey]),
		authtypes.ProtoBaseAccount,
		maccPerms,
		address.NewBech32Codec(Bech32PrefixAccAddr),
		Bech32PrefixAccAddr,
		authority,
	)

	bankKeeper := bankkeeper.NewBaseKeeper(
		encoding.Codec,
		runtime.NewKVStoreService(keys[banktypes.StoreKey]),
		accountKeeper,
		map[string]bool{},
		authority,
		logger,
	)

	verifier := opts.Verifier
	if verifier == nil {
		verifier = oracle.StaticVerifier{Accept: false}
	}

	app := &MeritApp{
		logger:        logger.With("module", "app"),
		db:            db,
		cms:           cms,
		keys:          keys,
		metaKey:       keys[metaStoreName],
		AccountKeeper: accountKeeper,
		BankKeeper:    bankKeeper,
		MeritKeeper:   meritkeeper.NewKeeper(keys[types.StoreKey], bankKeeper, verifier, authority),
		telemetry:     opts.Telemetry,
		tracer:        opts.Telemetry.Tracer(),
		sink:          opts.Sink,
	}

	meta := cms.GetKVStore(app.metaKey)
	app.chainID = string(meta.Get(chainIDKey))
	if bz := meta.Get(lastBlockTimeKey); bz != nil {
		if err := app.lastTime.UnmarshalText(bz); err != nil {
			return nil, fmt.Errorf("corrupt last block time: %w", err)
		}
	}
	if opts.ChainID != "" && app.chainID != "" && opts.ChainID != app.chainID {
		return nil, fmt.Errorf("ledger belongs to chain %s, not %s", app.chainID, opts.ChainID)
	}
	if app.chainID == "" {
		app.chainID = opts.ChainID
	}

	return app, nil
}

// InitChain commits the genesis state as height 1.
func (app *MeritApp) InitChain(ctx context.Context, gs GenesisState) (Result, error) {
	if app.LastHeight() != 0 {
		return Result{}, ErrAlreadyInitialized
	}
	if app.chainID != "" && gs.ChainID != app.chainID {
		return Result{}, fmt.Errorf("genesis chain id %s does not match %s", gs.ChainID, app.chainID)
	}
	if err := gs.Validate(); err != nil {
		return Result{}, fmt.Errorf("invalid genesis: %w", err)
	}

	app.mu.Lock()
	app.chainID = gs.ChainID
	app.mu.Unlock()

	return app.execute(ctx, gs.GenesisTime, "init_chain", true, func(sdkCtx sdk.Context) error {
		for name := range maccPerms {
			app.AccountKeeper.GetModuleAccount(sdkCtx, name)
		}

		balances := make([]banktypes.Balance, 0, len(gs.Balances))
		for _, b := range gs.Balances {
			balances = append(balances, banktypes.Balance{
				Address: b.Address,
				Coins:   sdk.NewCoins(sdk.NewCoin(BondDenom, b.Amount)),
			})
		}
		app.BankKeeper.InitGenesis(sdkCtx, &banktypes.GenesisState{
			Params:   banktypes.DefaultParams(),
			Balances: balances,
		})

		if err := app.MeritKeeper.InitGenesis(sdkCtx, gs.Merit); err != nil {
			return err
		}
		if msg, broken := meritkeeper.AllInvariants(*app.MeritKeeper)(sdkCtx); broken {
			return fmt.Errorf("genesis breaks ledger invariants: %s", msg)
		}
		return nil
	})
}

// Execute runs fn against the latest state at blockTime and commits the
// result as a new version. blockTime must not precede the last committed block.
func (app *MeritApp) Execute(ctx context.Context, blockTime time.Time, op string, fn func(sdk.Context) error) (Result, error) {
	if app.LastHeight() == 0 {
		return Result{}, ErrNotInitialized
	}
	return app.execute(ctx, blockTime, op, false, fn)
}

func (app *MeritApp) execute(ctx context.Context, blockTime time.Time, op string, genesis bool, fn func(sdk.Context) error) (res Result, err error) {
	app.mu.Lock()
	defer app.mu.Unlock()

	blockTime = blockTime.UTC()
	if !genesis && blockTime.Before(app.lastTime) {
		return Result{}, fmt.Errorf("%w: %s < %s", ErrTimeRegression, blockTime.Format(time.RFC3339), app.lastTime.Format(time.RFC3339))
	}

	height := app.cms.LastCommitID().Version + 1
	spanCtx, span := telemetry.StartOperationSpan(ctx, app.tracer, op, height)
	defer func() {
		app.telemetry.CountOperation(spanCtx, op, err)
		telemetry.EndOperationSpan(span, err)
	}()

	cache := app.cms.CacheMultiStore()
	header := cmtproto.Header{ChainID: app.chainID, Height: height, Time: blockTime}
	sdkCtx := sdk.NewContext(cache, header, false, app.logger).WithContext(spanCtx)

	if err := runRecovered(sdkCtx, fn); err != nil {
		return Result{}, err
	}

	meta := cache.GetKVStore(app.metaKey)
	timeBz, err := blockTime.MarshalText()
	if err != nil {
		return Result{}, err
	}
	meta.Set(lastBlockTimeKey, timeBz)
	meta.Set(chainIDKey, []byte(app.chainID))

	cache.Write()
	commitID := app.cms.Commit()
	app.lastTime = blockTime

	res = Result{
		Height:    commitID.Version,
		Time:      blockTime,
		Operation: op,
		AppHash:   commitID.Hash,
		Events:    flattenEvents(sdkCtx.EventManager().Events()),
	}

	if app.sink != nil {
		if sinkErr := app.sink.Index(spanCtx, res); sinkErr != nil {
			app.logger.Error("failed to index committed transition", "height", res.Height, "operation", op, "error", sinkErr)
		}
	}

	return res, nil
}

// runRecovered converts a panic raised by store or bank code into an error.
func runRecovered(ctx sdk.Context, fn func(sdk.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("transition panicked: %v", r)
		}
	}()
	return fn(ctx)
}

// Query runs fn against a read-only branch of the latest committed state.
// A zero at evaluates time-dependent views at the last block time.
func (app *MeritApp) Query(ctx context.Context, at time.Time, fn func(sdk.Context) error) error {
	app.mu.RLock()
	defer app.mu.RUnlock()

	if at.IsZero() {
		at = app.lastTime
	}
	header := cmtproto.Header{ChainID: app.chainID, Height: app.cms.LastCommitID().Version, Time: at.UTC()}
	sdkCtx := sdk.NewContext(app.cms.CacheMultiStore(), header, false, app.logger).WithContext(ctx)
	return runRecovered(sdkCtx, fn)
}

// EndBlock runs the merit end-of-block hooks at blockTime.
func (app *MeritApp) EndBlock(ctx context.Context, blockTime time.Time) (Result, error) {
	return app.Execute(ctx, blockTime, "end_block", func(sdkCtx sdk.Context) error {
		return app.MeritKeeper.EndBlocker(sdkCtx)
	})
}

// FundRewardPool transfers amount from funder into the reward pool.
func (app *MeritApp) FundRewardPool(ctx context.Context, blockTime time.Time, funder sdk.AccAddress, amount math.Int) (Result, error) {
	return app.Execute(ctx, blockTime, "fund_reward_pool", func(sdkCtx sdk.Context) error {
		if !amount.IsPositive() {
			return fmt.Errorf("funding amount must be positive")
		}
		coins := sdk.NewCoins(sdk.NewCoin(BondDenom, amount))
		return app.BankKeeper.SendCoins(sdkCtx, funder, types.RewardPoolAddress(), coins)
	})
}

// Balance returns the bond denom balance of addr.
func (app *MeritApp) Balance(ctx context.Context, addr sdk.AccAddress) (math.Int, error) {
	balance := math.ZeroInt()
	err := app.Query(ctx, time.Time{}, func(sdkCtx sdk.Context) error {
		balance = app.BankKeeper.GetBalance(sdkCtx, addr, BondDenom).Amount
		return nil
	})
	return balance, err
}

// Export returns the committed state as a genesis document.
func (app *MeritApp) Export(ctx context.Context) (GenesisState, error) {
	var gs GenesisState
	err := app.Query(ctx, time.Time{}, func(sdkCtx sdk.Context) error {
		merit, err := app.MeritKeeper.ExportGenesis(sdkCtx)
		if err != nil {
			return err
		}

		bank := app.BankKeeper.ExportGenesis(sdkCtx)
		balances := make([]Balance, 0, len(bank.Balances))
		for _, b := range bank.Balances {
			amount := b.Coins.AmountOf(BondDenom)
			if !amount.IsPositive() {
				continue
			}
			balances = append(balances, Balance{Address: b.Address, Amount: amount})
		}

		gs = GenesisState{
			ChainID:     app.chainID,
			GenesisTime: app.lastTime,
			Balances:    balances,
			Merit:       *merit,
		}
		return nil
	})
	return gs, err
}

// ChainID returns the chain id the ledger was initialized with.
func (app *MeritApp) ChainID() string {
	app.mu.RLock()
	defer app.mu.RUnlock()
	return app.chainID
}

// LastHeight returns the last committed version.
func (app *MeritApp) LastHeight() int64 {
	app.mu.RLock()
	defer app.mu.RUnlock()
	return app.cms.LastCommitID().Version
}

// LastBlockTime returns the block time of the last committed transition.
func (app *MeritApp) LastBlockTime() time.Time {
	app.mu.RLock()
	defer app.mu.RUnlock()
	return app.lastTime
}

// Close releases the underlying database.
func (app *MeritApp) Close() error {
	app.mu.Lock()
	defer app.mu.Unlock()
	return app.db.Close()
}

func flattenEvents(events sdk.Events) []Event {
	out := make([]Event, 0, len(events))
	for _, ev := range events {
		attrs := make(map[string]string, len(ev.Attributes))
		for _, attr := range ev.Attributes {
			attrs[attr.Key] = attr.Value
		}
		out = append(out, Event{Type: ev.Type, Attributes: attrs})
	}
	return out
}
