package keeper_test

import (
	"testing"
	"time"

	"cosmossdk.io/math"
	"github.com/stretchr/testify/suite"

	keepertest "github.com/paw-chain/merit/testutil/keeper"
	"github.com/paw-chain/merit/x/merit/keeper"
	"github.com/paw-chain/merit/x/merit/types"
	"github.com/paw-chain/merit/x/shared/abci"
)

type EndBlockerTestSuite struct {
	suite.Suite
	f *keepertest.MeritFixture
}

func TestEndBlockerTestSuite(t *testing.T) {
	suite.Run(t, new(EndBlockerTestSuite))
}

func (s *EndBlockerTestSuite) SetupTest() {
	s.f = keepertest.NewMeritFixture(s.T())
}

func (s *EndBlockerTestSuite) hookErrors() map[string]string {
	found := map[string]string{}
	for _, event := range s.f.Ctx.EventManager().Events() {
		if event.Type != abci.EventTypeHookError {
			continue
		}
		attrs := map[string]string{}
		for _, attr := range event.Attributes {
			attrs[attr.Key] = attr.Value
		}
		found[attrs["hook"]] = attrs["severity"]
	}
	return found
}

func (s *EndBlockerTestSuite) TestQuietBlockEmitsNothing() {
	s.f.ResetEvents()
	s.Require().NoError(s.f.Keeper.EndBlocker(s.f.Ctx))
	s.Require().Empty(s.f.Ctx.EventManager().Events())
}

func (s *EndBlockerTestSuite) TestSlashesDowntimeAndFinalizesProposals() {
	k := s.f.Keeper
	validator := keepertest.Addr(1)
	s.f.Stake(s.T(), validator, types.RoleValidator, 10_000)

	_, err := k.UpdatePerformance(s.f.Ctx, s.f.Authority, validator, 20, 100, 80)
	s.Require().NoError(err)

	id, err := k.CreateProposal(s.f.Ctx, validator, types.ProposalStandard, "raise data rate", 0)
	s.Require().NoError(err)
	_, err = k.CastQuadraticVote(s.f.Ctx, id, validator, types.VoteFor, 10)
	s.Require().NoError(err)

	s.f.AdvanceTime(4 * types.Day)
	s.f.ResetEvents()
	s.Require().NoError(k.EndBlocker(s.f.Ctx))
	s.Require().Empty(s.hookErrors())

	history, err := k.SlashHistory(s.f.Ctx, validator)
	s.Require().NoError(err)
	s.Require().Len(history, 1)
	s.Require().Equal(keeper.DowntimeReason, history[0].Reason)

	proposal, err := k.GetProposal(s.f.Ctx, id)
	s.Require().NoError(err)
	s.Require().Equal(types.ProposalStatusPassed, proposal.Status)

	// a second block inside the same day does not slash again
	s.f.AdvanceTime(time.Hour)
	s.Require().NoError(k.EndBlocker(s.f.Ctx))
	history, err = k.SlashHistory(s.f.Ctx, validator)
	s.Require().NoError(err)
	s.Require().Len(history, 1)
}

func (s *EndBlockerTestSuite) TestHookFailuresAreReportedNotReturned() {
	validator := keepertest.Addr(2)
	store := s.f.Ctx.KVStore(s.f.StoreKey)
	store.Set(keeper.ValidatorKey(validator), []byte("{not json"))
	store.Set(keeper.ProposalKey(99), []byte("{not json"))

	s.f.ResetEvents()
	s.Require().NoError(s.f.Keeper.EndBlocker(s.f.Ctx))
	s.Require().Equal(map[string]string{
		"slash_downtime":     abci.SeverityHigh.String(),
		"finalize_proposals": abci.SeverityLow.String(),
	}, s.hookErrors())

	pool, err := s.f.Keeper.InsurancePool(s.f.Ctx)
	s.Require().NoError(err)
	s.Require().True(pool.Equal(math.ZeroInt()))
}
