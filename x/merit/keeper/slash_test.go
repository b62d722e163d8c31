package keeper_test

import (
	"testing"

	"cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	keepertest "github.com/paw-chain/merit/testutil/keeper"
	"github.com/paw-chain/merit/x/merit/keeper"
	"github.com/paw-chain/merit/x/merit/types"
)

func TestSlash(t *testing.T) {
	f := keepertest.NewMeritFixture(t)
	k := f.Keeper
	validator := keepertest.Addr(1)
	f.Stake(t, validator, types.RoleValidator, 10_000)

	actual, err := k.Slash(f.Ctx, f.Authority, validator, math.NewInt(1_000), "double sign")
	require.NoError(t, err)
	require.Equal(t, math.NewInt(500), actual)

	position, err := k.GetPosition(f.Ctx, validator)
	require.NoError(t, err)
	require.Equal(t, math.NewInt(9_500), position.Amount)
	require.Equal(t, uint32(90), position.PerformanceScore)

	pool, err := k.InsurancePool(f.Ctx)
	require.NoError(t, err)
	require.Equal(t, math.NewInt(500), pool)
	require.Equal(t, math.NewInt(500), f.Balance(types.InsurancePoolAddress()))
	require.Equal(t, math.NewInt(9_500), f.Balance(types.EscrowAddress()))

	total, err := k.TotalStaked(f.Ctx)
	require.NoError(t, err)
	require.Equal(t, math.NewInt(9_500), total)

	history, err := k.SlashHistory(f.Ctx, validator)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, "double sign", history[0].Reason)
	require.Equal(t, uint32(90), history[0].PerformanceAfter)
	require.True(t, f.HasEvent(types.EventTypeValidatorSlashed))

	// smaller proposals are taken as is
	actual, err = k.Slash(f.Ctx, f.Authority, validator, math.NewInt(100), "late")
	require.NoError(t, err)
	require.Equal(t, math.NewInt(100), actual)
}

func TestSlashAuthorization(t *testing.T) {
	f := keepertest.NewMeritFixture(t)
	k := f.Keeper
	validator := keepertest.Addr(1)
	contributor := keepertest.Addr(2)
	operator := keepertest.Addr(3)
	f.Stake(t, validator, types.RoleValidator, 10_000)
	f.Stake(t, contributor, types.RoleData, 100)

	_, err := k.Slash(f.Ctx, operator, validator, math.NewInt(10), "spam")
	require.ErrorIs(t, err, types.ErrUnauthorized)

	require.NoError(t, k.SetOperator(f.Ctx, f.Authority.String(), operator, true))
	_, err = k.Slash(f.Ctx, operator, validator, math.NewInt(10), "spam")
	require.NoError(t, err)

	_, err = k.Slash(f.Ctx, operator, contributor, math.NewInt(10), "spam")
	require.ErrorIs(t, err, types.ErrNotValidator)

	_, err = k.Slash(f.Ctx, operator, validator, math.ZeroInt(), "spam")
	require.ErrorIs(t, err, types.ErrInvalidAmount)

	require.NoError(t, k.SetOperator(f.Ctx, f.Authority.String(), operator, false))
	_, err = k.Slash(f.Ctx, operator, validator, math.NewInt(10), "spam")
	require.ErrorIs(t, err, types.ErrUnauthorized)
}

func TestRepeatedSlashingSaturatesAtZero(t *testing.T) {
	f := keepertest.NewMeritFixture(t)
	k := f.Keeper
	validator := keepertest.Addr(1)
	f.Stake(t, validator, types.RoleValidator, 10_000)

	for i := 0; i < 200; i++ {
		_, err := k.Slash(f.Ctx, f.Authority, validator, math.NewInt(1_000_000), "repeat")
		require.NoError(t, err)

		position, err := k.GetPosition(f.Ctx, validator)
		require.NoError(t, err)
		require.False(t, position.Amount.IsNegative())
		require.LessOrEqual(t, position.PerformanceScore, uint32(100))
	}

	position, err := k.GetPosition(f.Ctx, validator)
	require.NoError(t, err)
	require.Zero(t, position.PerformanceScore)

	pool, err := k.InsurancePool(f.Ctx)
	require.NoError(t, err)
	require.Equal(t, math.NewInt(10_000), pool.Add(position.Amount))
}

func TestUpdatePerformance(t *testing.T) {
	f := keepertest.NewMeritFixture(t)
	k := f.Keeper
	validator := keepertest.Addr(1)
	f.Stake(t, validator, types.RoleValidator, 10_000)

	performance, err := k.UpdatePerformance(f.Ctx, f.Authority, validator, 98, 200, 50)
	require.NoError(t, err)
	require.Equal(t, uint32(75), performance)

	position, err := k.GetPosition(f.Ctx, validator)
	require.NoError(t, err)
	require.Equal(t, uint32(75), position.PerformanceScore)

	record, err := k.GetValidatorRecord(f.Ctx, validator)
	require.NoError(t, err)
	require.Equal(t, uint64(200), record.TotalBlocks)
	require.Equal(t, uint64(50), record.MissedBlocks)
	require.Equal(t, uint32(98), record.Uptime)

	performance, err = k.UpdatePerformance(f.Ctx, f.Authority, validator, 0, 0, 0)
	require.NoError(t, err)
	require.Zero(t, performance)

	performance, err = k.UpdatePerformance(f.Ctx, f.Authority, validator, 100, 3, 0)
	require.NoError(t, err)
	require.Equal(t, uint32(100), performance)

	_, err = k.UpdatePerformance(f.Ctx, f.Authority, validator, 100, 10, 11)
	require.ErrorIs(t, err, types.ErrInvalidPerformance)

	_, err = k.UpdatePerformance(f.Ctx, keepertest.Addr(9), validator, 100, 10, 1)
	require.ErrorIs(t, err, types.ErrUnauthorized)

	_, err = k.UpdatePerformance(f.Ctx, f.Authority, keepertest.Addr(9), 100, 10, 1)
	require.ErrorIs(t, err, types.ErrValidatorNotFound)
}

func TestSlashDowntime(t *testing.T) {
	f := keepertest.NewMeritFixture(t)
	k := f.Keeper
	healthy := keepertest.Addr(1)
	offline := keepertest.Addr(2)
	f.Stake(t, healthy, types.RoleValidator, 10_000)
	f.Stake(t, offline, types.RoleValidator, 10_000)

	_, err := k.UpdatePerformance(f.Ctx, f.Authority, offline, 40, 100, 60)
	require.NoError(t, err)

	require.NoError(t, k.EndBlocker(f.Ctx))
	position, err := k.GetPosition(f.Ctx, offline)
	require.NoError(t, err)
	require.Equal(t, math.NewInt(9_500), position.Amount)
	require.Equal(t, uint32(30), position.PerformanceScore)

	position, err = k.GetPosition(f.Ctx, healthy)
	require.NoError(t, err)
	require.Equal(t, math.NewInt(10_000), position.Amount)

	// at most one downtime slash per day
	f.AdvanceTime(types.Day / 2)
	require.NoError(t, k.SlashDowntime(f.Ctx))
	history, err := k.SlashHistory(f.Ctx, offline)
	require.NoError(t, err)
	require.Len(t, history, 1)

	f.AdvanceTime(types.Day / 2)
	require.NoError(t, k.SlashDowntime(f.Ctx))
	history, err = k.SlashHistory(f.Ctx, offline)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, keeper.DowntimeReason, history[1].Reason)
}

func TestRevokeValidator(t *testing.T) {
	f := keepertest.NewMeritFixture(t)
	k := f.Keeper
	validator := keepertest.Addr(1)
	contributor := keepertest.Addr(2)
	f.Stake(t, validator, types.RoleValidator, 10_000)
	f.Stake(t, contributor, types.RoleData, 100)

	id, err := k.SubmitContribution(f.Ctx, contributor, types.CategoryData,
		keepertest.SampleProof(types.CategoryData), math.NewInt(100))
	require.NoError(t, err)

	require.ErrorIs(t, k.RevokeValidator(f.Ctx, keepertest.Addr(9), validator, "fraud"), types.ErrUnauthorized)
	require.NoError(t, k.RevokeValidator(f.Ctx, f.Authority, validator, "fraud"))
	require.ErrorIs(t, k.RevokeValidator(f.Ctx, f.Authority, validator, "fraud"), types.ErrNotActive)

	record, err := k.GetValidatorRecord(f.Ctx, validator)
	require.NoError(t, err)
	require.False(t, record.Active)
	require.NotNil(t, record.RevokedAt)

	_, err = k.SubmitReview(f.Ctx, id, validator, uniform(90))
	require.ErrorIs(t, err, types.ErrNotValidator)

	position, err := k.GetPosition(f.Ctx, validator)
	require.NoError(t, err)
	require.True(t, position.Active)
}
