package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/gin-gonic/gin"

	"github.com/paw-chain/merit/x/merit/types"
)

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, StatusResponse{
		ChainID:       s.ledger.ChainID(),
		Height:        s.ledger.LastHeight(),
		LastBlockTime: s.ledger.LastBlockTime(),
	})
}

func (s *Server) handleParams(c *gin.Context) {
	s.query(c, func(ctx sdk.Context) (any, error) {
		params, err := s.ledger.MeritKeeper.GetParams(ctx)
		return params, err
	})
}

func (s *Server) handleStats(c *gin.Context) {
	s.query(c, func(ctx sdk.Context) (any, error) {
		k := s.ledger.MeritKeeper
		params, err := k.GetParams(ctx)
		if err != nil {
			return nil, err
		}
		total, err := k.TotalStaked(ctx)
		if err != nil {
			return nil, err
		}
		insurance, err := k.InsurancePool(ctx)
		if err != nil {
			return nil, err
		}
		return StatsResponse{
			TotalStaked:   total,
			EscrowBalance: s.ledger.BankKeeper.GetBalance(ctx, types.EscrowAddress(), params.BondDenom).Amount,
			RewardPool:    s.ledger.BankKeeper.GetBalance(ctx, types.RewardPoolAddress(), params.BondDenom).Amount,
			InsurancePool: insurance,
		}, nil
	})
}

// handlePosition returns the position of an address. The optional "at"
// query parameter (RFC3339) evaluates pending rewards at a later time.
func (s *Server) handlePosition(c *gin.Context) {
	addr, ok := addressParam(c)
	if !ok {
		return
	}
	s.queryAt(c, func(ctx sdk.Context) (any, error) {
		position, err := s.ledger.MeritKeeper.GetPosition(ctx, addr)
		if err != nil {
			return nil, err
		}
		pending := math.ZeroInt()
		if position.Active {
			if pending, err = s.ledger.MeritKeeper.PendingRewards(ctx, addr); err != nil {
				return nil, err
			}
		}
		return PositionResponse{
			Position:       position,
			PendingRewards: pending,
			UnlockTime:     position.UnlockTime(),
		}, nil
	})
}

func (s *Server) handlePositionHistory(c *gin.Context) {
	addr, ok := addressParam(c)
	if !ok {
		return
	}
	s.query(c, func(ctx sdk.Context) (any, error) {
		history, err := s.ledger.MeritKeeper.PositionHistory(ctx, addr)
		return history, err
	})
}

func (s *Server) handleValidator(c *gin.Context) {
	addr, ok := addressParam(c)
	if !ok {
		return
	}
	s.query(c, func(ctx sdk.Context) (any, error) {
		record, err := s.ledger.MeritKeeper.GetValidatorRecord(ctx, addr)
		if err != nil {
			return nil, err
		}
		slashes, err := s.ledger.MeritKeeper.SlashHistory(ctx, addr)
		if err != nil {
			return nil, err
		}
		return ValidatorResponse{Record: record, Slashes: slashes}, nil
	})
}

func (s *Server) handleContribution(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	s.query(c, func(ctx sdk.Context) (any, error) {
		contribution, err := s.ledger.MeritKeeper.GetContribution(ctx, id)
		if err != nil {
			return nil, err
		}
		reviews, err := s.ledger.MeritKeeper.GetReviews(ctx, id)
		if err != nil {
			return nil, err
		}
		return ContributionResponse{Contribution: contribution, Reviews: reviews}, nil
	})
}

func (s *Server) handleContributor(c *gin.Context) {
	addr, ok := addressParam(c)
	if !ok {
		return
	}
	s.queryAt(c, func(ctx sdk.Context) (any, error) {
		k := s.ledger.MeritKeeper
		profile, err := k.GetProfile(ctx, addr)
		if err != nil {
			return nil, err
		}
		reputation, err := k.EffectiveReputation(ctx, addr)
		if err != nil {
			return nil, err
		}
		contributions, err := k.ContributionsByOwner(ctx, addr)
		if err != nil {
			return nil, err
		}
		return ContributorResponse{
			Profile:             profile,
			EffectiveReputation: reputation,
			Contributions:       contributions,
			Submissions:         k.SubmissionCount(ctx, addr),
		}, nil
	})
}

// handleProposals lists proposals, optionally filtered by ?status=voting|passed|rejected.
func (s *Server) handleProposals(c *gin.Context) {
	status := c.Query("status")
	s.query(c, func(ctx sdk.Context) (any, error) {
		proposals := []types.Proposal{}
		err := s.ledger.MeritKeeper.IterateProposals(ctx, func(p types.Proposal) (bool, error) {
			if status == "" || p.Status.String() == status {
				proposals = append(proposals, p)
			}
			return false, nil
		})
		return proposals, err
	})
}

func (s *Server) handleProposal(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	s.query(c, func(ctx sdk.Context) (any, error) {
		proposal, err := s.ledger.MeritKeeper.GetProposal(ctx, id)
		return proposal, err
	})
}

func (s *Server) handleProposalVotes(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	s.query(c, func(ctx sdk.Context) (any, error) {
		if _, err := s.ledger.MeritKeeper.GetProposal(ctx, id); err != nil {
			return nil, err
		}
		votes := []types.VoteRecord{}
		err := s.ledger.MeritKeeper.IterateVotes(ctx, func(v types.VoteRecord) (bool, error) {
			if v.ProposalID == id {
				votes = append(votes, v)
			}
			return false, nil
		})
		return votes, err
	})
}

func (s *Server) handleAllowance(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	addr, ok := addressParam(c)
	if !ok {
		return
	}
	s.query(c, func(ctx sdk.Context) (any, error) {
		remaining, maxVotes, err := s.ledger.MeritKeeper.VotingAllowance(ctx, id, addr)
		if err != nil {
			return nil, err
		}
		return AllowanceResponse{
			ProposalID: id,
			Voter:      addr.String(),
			Remaining:  remaining,
			MaxVotes:   maxVotes,
		}, nil
	})
}

func (s *Server) query(c *gin.Context, fn func(sdk.Context) (any, error)) {
	s.run(c, time.Time{}, fn)
}

func (s *Server) queryAt(c *gin.Context, fn func(sdk.Context) (any, error)) {
	var at time.Time
	if raw := c.Query("at"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid at parameter", Code: "INVALID_TIME", Details: err.Error()})
			return
		}
		if parsed.Before(s.ledger.LastBlockTime()) {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "at precedes the last committed block", Code: "INVALID_TIME"})
			return
		}
		at = parsed
	}
	s.run(c, at, fn)
}

func (s *Server) run(c *gin.Context, at time.Time, fn func(sdk.Context) (any, error)) {
	var body any
	err := s.ledger.Query(c.Request.Context(), at, func(ctx sdk.Context) error {
		var err error
		body, err = fn(ctx)
		return err
	})
	if err != nil {
		status, code := classify(err)
		if status == http.StatusInternalServerError {
			s.logger.Error("query failed", "path", c.Request.URL.Path, "error", err)
		}
		c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
		return
	}
	c.JSON(http.StatusOK, body)
}

var notFoundErrors = []error{
	types.ErrPositionNotFound,
	types.ErrValidatorNotFound,
	types.ErrContributionNotFound,
	types.ErrProfileNotFound,
	types.ErrProposalNotFound,
	types.ErrReviewNotFound,
}

func classify(err error) (int, string) {
	for _, target := range notFoundErrors {
		if errors.Is(err, target) {
			return http.StatusNotFound, "NOT_FOUND"
		}
	}
	return http.StatusInternalServerError, "INTERNAL_ERROR"
}

func addressParam(c *gin.Context) (sdk.AccAddress, bool) {
	addr, err := sdk.AccAddressFromBech32(c.Param("address"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid address", Code: "INVALID_ADDRESS", Details: err.Error()})
		return nil, false
	}
	return addr, true
}

func idParam(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id", Code: "INVALID_ID", Details: err.Error()})
		return 0, false
	}
	return id, true
}
