package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"cosmossdk.io/log"
	"cosmossdk.io/math"
	dbm "github.com/cosmos/cosmos-db"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/stretchr/testify/require"

	"github.com/paw-chain/merit/app"
	keepertest "github.com/paw-chain/merit/testutil/keeper"
	"github.com/paw-chain/merit/x/merit/oracle"
	"github.com/paw-chain/merit/x/merit/types"
)

const chainID = "merit-test-1"

type recordingSink struct {
	mu      sync.Mutex
	results []app.Result
	err     error
}

func (s *recordingSink) Index(_ context.Context, res app.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, res)
	return s.err
}

func newApp(t *testing.T, db dbm.DB, sink app.EventSink) *app.MeritApp {
	t.Helper()
	a, err := app.NewMeritApp(log.NewNopLogger(), db, app.Options{
		ChainID:  chainID,
		Verifier: oracle.StaticVerifier{Accept: true},
		Sink:     sink,
	})
	require.NoError(t, err)
	return a
}

func genesis(balances map[int]int64) app.GenesisState {
	gs := app.NewDefaultGenesisState(chainID, keepertest.GenesisTime)
	for i := 0; i < 100; i++ {
		if amount, ok := balances[i]; ok {
			gs.Balances = append(gs.Balances, app.Balance{
				Address: keepertest.Addr(i).String(),
				Amount:  math.NewInt(amount),
			})
		}
	}
	return gs
}

func initApp(t *testing.T, sink app.EventSink) *app.MeritApp {
	t.Helper()
	a := newApp(t, dbm.NewMemDB(), sink)
	res, err := a.InitChain(context.Background(), genesis(map[int]int64{1: 5000, 2: 20000, 3: 1000}))
	require.NoError(t, err)
	require.Equal(t, int64(1), res.Height)
	return a
}

func openPosition(a *app.MeritApp, owner sdk.AccAddress, role types.Role, amount int64) func(sdk.Context) error {
	return func(ctx sdk.Context) error {
		params, err := a.MeritKeeper.GetParams(ctx)
		if err != nil {
			return err
		}
		terms, err := params.RoleTerms(role)
		if err != nil {
			return err
		}
		metadata := ""
		if role == types.RoleValidator {
			metadata = "node-" + owner.String()[len(owner.String())-6:]
		}
		_, err = a.MeritKeeper.OpenPosition(ctx, owner, role, math.NewInt(amount), terms.MinLock, metadata)
		return err
	}
}

func TestInitChain(t *testing.T) {
	sink := &recordingSink{}
	a := initApp(t, sink)

	require.Equal(t, chainID, a.ChainID())
	require.Equal(t, keepertest.GenesisTime, a.LastBlockTime())

	balance, err := a.Balance(context.Background(), keepertest.Addr(1))
	require.NoError(t, err)
	require.Equal(t, int64(5000), balance.Int64())

	require.Len(t, sink.results, 1)
	require.Equal(t, "init_chain", sink.results[0].Operation)

	_, err = a.InitChain(context.Background(), genesis(nil))
	require.ErrorIs(t, err, app.ErrAlreadyInitialized)
}

func TestInitChainRejects(t *testing.T) {
	a := newApp(t, dbm.NewMemDB(), nil)

	_, err := a.Execute(context.Background(), keepertest.GenesisTime, "stake_open", func(sdk.Context) error { return nil })
	require.ErrorIs(t, err, app.ErrNotInitialized)

	other := genesis(nil)
	other.ChainID = "other-chain"
	_, err = a.InitChain(context.Background(), other)
	require.ErrorContains(t, err, "does not match")

	staked := genesis(nil)
	staked.Merit.Positions = []types.StakePosition{{
		Owner:              keepertest.Addr(1).String(),
		Role:               types.RoleData,
		Amount:             math.NewInt(500),
		StartTime:          keepertest.GenesisTime,
		LockDuration:       7 * types.Day,
		Active:             true,
		AccumulatedRewards: math.ZeroInt(),
		LastRewardTime:     keepertest.GenesisTime,
	}}
	_, err = a.InitChain(context.Background(), staked)
	require.Error(t, err)
	require.Zero(t, a.LastHeight())
}

func TestExecuteCommits(t *testing.T) {
	sink := &recordingSink{}
	a := initApp(t, sink)
	owner := keepertest.Addr(1)

	res, err := a.Execute(context.Background(), keepertest.GenesisTime.Add(time.Hour), "stake_open", openPosition(a, owner, types.RoleData, 1000))
	require.NoError(t, err)
	require.Equal(t, int64(2), res.Height)
	require.NotEmpty(t, res.AppHash)

	var found bool
	for _, ev := range res.Events {
		if ev.Type == types.EventTypeStaked {
			found = true
		}
	}
	require.True(t, found)
	require.Len(t, sink.results, 2)

	balance, err := a.Balance(context.Background(), owner)
	require.NoError(t, err)
	require.Equal(t, int64(4000), balance.Int64())

	escrow, err := a.Balance(context.Background(), types.EscrowAddress())
	require.NoError(t, err)
	require.Equal(t, int64(1000), escrow.Int64())
}

func TestExecuteDiscardsFailedTransition(t *testing.T) {
	a := initApp(t, nil)
	owner := keepertest.Addr(1)
	boom := errors.New("boom")

	_, err := a.Execute(context.Background(), keepertest.GenesisTime.Add(time.Hour), "stake_open", func(ctx sdk.Context) error {
		if err := openPosition(a, owner, types.RoleData, 1000)(ctx); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.Equal(t, int64(1), a.LastHeight())
	require.Equal(t, keepertest.GenesisTime, a.LastBlockTime())

	balance, err := a.Balance(context.Background(), owner)
	require.NoError(t, err)
	require.Equal(t, int64(5000), balance.Int64())

	_, err = a.Execute(context.Background(), keepertest.GenesisTime.Add(time.Hour), "panic", func(sdk.Context) error {
		panic("store corrupted")
	})
	require.ErrorContains(t, err, "store corrupted")
	require.Equal(t, int64(1), a.LastHeight())
}

func TestExecuteRejectsTimeRegression(t *testing.T) {
	a := initApp(t, nil)

	_, err := a.Execute(context.Background(), keepertest.GenesisTime.Add(2*time.Hour), "noop", func(sdk.Context) error { return nil })
	require.NoError(t, err)

	_, err = a.Execute(context.Background(), keepertest.GenesisTime.Add(time.Hour), "noop", func(sdk.Context) error { return nil })
	require.ErrorIs(t, err, app.ErrTimeRegression)

	_, err = a.Execute(context.Background(), keepertest.GenesisTime.Add(2*time.Hour), "noop", func(sdk.Context) error { return nil })
	require.NoError(t, err)
}

func TestQueryEvaluatesAtTime(t *testing.T) {
	a := initApp(t, nil)
	owner := keepertest.Addr(2)

	_, err := a.FundRewardPool(context.Background(), keepertest.GenesisTime, keepertest.Addr(3), math.NewInt(1000))
	require.NoError(t, err)
	_, err = a.Execute(context.Background(), keepertest.GenesisTime, "stake_open", openPosition(a, owner, types.RoleValidator, 10000))
	require.NoError(t, err)

	pendingAt := func(at time.Time) math.Int {
		var pending math.Int
		require.NoError(t, a.Query(context.Background(), at, func(ctx sdk.Context) error {
			var err error
			pending, err = a.MeritKeeper.PendingRewards(ctx, owner)
			return err
		}))
		return pending
	}

	require.True(t, pendingAt(time.Time{}).IsZero())
	// 10000 at 12% for a year, doubled by a perfect performance score
	require.Equal(t, int64(2400), pendingAt(keepertest.GenesisTime.Add(types.Year)).Int64())
	require.Equal(t, keepertest.GenesisTime, a.LastBlockTime())
}

func TestFundRewardPool(t *testing.T) {
	a := initApp(t, nil)

	_, err := a.FundRewardPool(context.Background(), keepertest.GenesisTime, keepertest.Addr(3), math.NewInt(400))
	require.NoError(t, err)

	pool, err := a.Balance(context.Background(), types.RewardPoolAddress())
	require.NoError(t, err)
	require.Equal(t, int64(400), pool.Int64())

	_, err = a.FundRewardPool(context.Background(), keepertest.GenesisTime, keepertest.Addr(3), math.NewInt(5000))
	require.Error(t, err)

	_, err = a.FundRewardPool(context.Background(), keepertest.GenesisTime, keepertest.Addr(3), math.ZeroInt())
	require.Error(t, err)
}

func TestEndBlockFinalizesProposals(t *testing.T) {
	a := initApp(t, nil)
	voter := keepertest.Addr(1)

	_, err := a.Execute(context.Background(), keepertest.GenesisTime, "stake_open", openPosition(a, voter, types.RoleData, 400))
	require.NoError(t, err)

	var proposalID uint64
	_, err = a.Execute(context.Background(), keepertest.GenesisTime.Add(time.Minute), "proposal_create", func(ctx sdk.Context) error {
		var err error
		proposalID, err = a.MeritKeeper.CreateProposal(ctx, voter, types.ProposalStandard, "raise data rate", 0)
		return err
	})
	require.NoError(t, err)

	_, err = a.Execute(context.Background(), keepertest.GenesisTime.Add(time.Hour), "vote", func(ctx sdk.Context) error {
		_, err := a.MeritKeeper.CastQuadraticVote(ctx, proposalID, voter, types.VoteFor, 20)
		return err
	})
	require.NoError(t, err)

	res, err := a.EndBlock(context.Background(), keepertest.GenesisTime.Add(4*types.Day))
	require.NoError(t, err)
	require.Equal(t, "end_block", res.Operation)

	require.NoError(t, a.Query(context.Background(), time.Time{}, func(ctx sdk.Context) error {
		p, err := a.MeritKeeper.GetProposal(ctx, proposalID)
		require.NoError(t, err)
		require.Equal(t, types.ProposalStatusPassed, p.Status)
		return nil
	}))
}

func TestSinkErrorDoesNotFailCommit(t *testing.T) {
	sink := &recordingSink{err: errors.New("indexer down")}
	a := initApp(t, sink)

	res, err := a.Execute(context.Background(), keepertest.GenesisTime, "noop", func(sdk.Context) error { return nil })
	require.NoError(t, err)
	require.Equal(t, int64(2), res.Height)
}

func TestReopenLoadsCommittedState(t *testing.T) {
	db := dbm.NewMemDB()
	a := newApp(t, db, nil)
	_, err := a.InitChain(context.Background(), genesis(map[int]int64{1: 5000}))
	require.NoError(t, err)
	_, err = a.Execute(context.Background(), keepertest.GenesisTime.Add(time.Hour), "stake_open", openPosition(a, keepertest.Addr(1), types.RoleData, 1000))
	require.NoError(t, err)

	reopened := newApp(t, db, nil)
	require.Equal(t, int64(2), reopened.LastHeight())
	require.Equal(t, keepertest.GenesisTime.Add(time.Hour), reopened.LastBlockTime())
	require.Equal(t, chainID, reopened.ChainID())

	_, err = app.NewMeritApp(log.NewNopLogger(), db, app.Options{ChainID: "other-chain"})
	require.ErrorContains(t, err, "belongs to chain")
}

func TestExportRoundTrip(t *testing.T) {
	a := initApp(t, nil)
	at := keepertest.GenesisTime

	_, err := a.FundRewardPool(context.Background(), at, keepertest.Addr(3), math.NewInt(1000))
	require.NoError(t, err)
	_, err = a.Execute(context.Background(), at, "stake_open", openPosition(a, keepertest.Addr(2), types.RoleValidator, 10000))
	require.NoError(t, err)
	_, err = a.Execute(context.Background(), at.Add(time.Hour), "stake_open", openPosition(a, keepertest.Addr(1), types.RoleData, 1000))
	require.NoError(t, err)

	exported, err := a.Export(context.Background())
	require.NoError(t, err)
	require.NoError(t, exported.Validate())
	require.Equal(t, at.Add(time.Hour), exported.GenesisTime)

	restored := newApp(t, dbm.NewMemDB(), nil)
	_, err = restored.InitChain(context.Background(), exported)
	require.NoError(t, err)

	reexported, err := restored.Export(context.Background())
	require.NoError(t, err)

	want, err := json.Marshal(exported)
	require.NoError(t, err)
	got, err := json.Marshal(reexported)
	require.NoError(t, err)
	require.JSONEq(t, string(want), string(got))
}
