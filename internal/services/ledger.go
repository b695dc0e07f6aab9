package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/revenac/apiserver/internal/logging"
	"github.com/revenac/apiserver/internal/metrics"
	"github.com/revenac/apiserver/internal/mq"
	"github.com/revenac/apiserver/internal/store"
	"github.com/revenac/apiserver/types"
	"github.com/rs/zerolog"
)

// LedgerRepository runs the atomic earn and redeem procedures.
type LedgerRepository interface {
	ClaimCode(ctx context.Context, userID int, code string, carbonPerItem float64) (types.ClaimResult, error)
	RedeemReward(ctx context.Context, userID, rewardID int) (types.RedemptionResult, error)
}

// LeaderboardInvalidator drops cached rankings after a balance change.
type LeaderboardInvalidator interface {
	Invalidate(ctx context.Context) error
}

// CodeClaimedEvent is published on mq.ChannelCodeClaimed.
type CodeClaimedEvent struct {
	UserID       int    `json:"user_id"`
	Code         string `json:"code"`
	TokensEarned int    `json:"tokens_earned"`
	NewBalance   int    `json:"new_balance"`
}

// RewardRedeemedEvent is published on mq.ChannelRewardRedeemed.
type RewardRedeemedEvent struct {
	RedemptionID int64 `json:"redemption_id"`
	UserID       int   `json:"user_id"`
	RewardID     int   `json:"reward_id"`
	TokenCost    int   `json:"token_cost"`
	NewBalance   int   `json:"new_balance"`
}

// LedgerService encapsulates token earning and spending.
type LedgerService struct {
	repo          LedgerRepository
	events        EventPublisher
	leaderboard   LeaderboardInvalidator
	carbonPerItem float64
	logger        zerolog.Logger
}

// NewLedgerService constructs a LedgerService. events and leaderboard may be
// nil.
func NewLedgerService(
	repo LedgerRepository,
	events EventPublisher,
	leaderboard LeaderboardInvalidator,
	carbonPerItem float64,
	logger zerolog.Logger,
) *LedgerService {
	return &LedgerService{
		repo:          repo,
		events:        events,
		leaderboard:   leaderboard,
		carbonPerItem: carbonPerItem,
		logger:        logger.With().Str("component", "ledger").Logger(),
	}
}

// ClaimCode consumes a machine code for userID and credits its tokens.
func (s *LedgerService) ClaimCode(ctx context.Context, userID int, code string) (types.ClaimResult, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return types.ClaimResult{}, invalidInput("code is required")
	}

	start := time.Now()
	result, err := s.repo.ClaimCode(ctx, userID, code, s.carbonPerItem)
	if err != nil {
		svcErr := claimError(err)
		metrics.ObserveClaim(string(svcErr.Kind), 0, time.Since(start))
		s.logFailure(userID, "claim", svcErr).Str("code", logging.Redact(code)).Msg("claim rejected")
		return types.ClaimResult{}, svcErr
	}
	metrics.ObserveClaim("ok", result.TokensEarned, time.Since(start))

	s.logger.Info().
		Int("user_id", userID).
		Str("code", logging.Redact(code)).
		Int("tokens", result.TokensEarned).
		Int("balance", result.NewBalance).
		Msg("code claimed")

	s.invalidateLeaderboard(ctx)
	publishEvent(ctx, s.events, s.logger, mq.ChannelCodeClaimed, CodeClaimedEvent{
		UserID:       userID,
		Code:         code,
		TokensEarned: result.TokensEarned,
		NewBalance:   result.NewBalance,
	})
	return result, nil
}

// RedeemReward spends userID's tokens on one unit of rewardID.
func (s *LedgerService) RedeemReward(ctx context.Context, userID, rewardID int) (types.RedemptionResult, error) {
	if rewardID < 1 {
		return types.RedemptionResult{}, invalidInput("invalid reward id")
	}

	start := time.Now()
	result, err := s.repo.RedeemReward(ctx, userID, rewardID)
	if err != nil {
		svcErr := redeemError(err)
		metrics.ObserveRedemption(string(svcErr.Kind), 0, time.Since(start))
		s.logFailure(userID, "redeem", svcErr).Int("reward_id", rewardID).Msg("redemption rejected")
		return types.RedemptionResult{}, svcErr
	}
	metrics.ObserveRedemption("ok", result.Redemption.TokenCost, time.Since(start))

	s.logger.Info().
		Int("user_id", userID).
		Int("reward_id", rewardID).
		Int64("redemption_id", result.Redemption.ID).
		Int("cost", result.Redemption.TokenCost).
		Int("balance", result.NewBalance).
		Msg("reward redeemed")

	s.invalidateLeaderboard(ctx)
	publishEvent(ctx, s.events, s.logger, mq.ChannelRewardRedeemed, RewardRedeemedEvent{
		RedemptionID: result.Redemption.ID,
		UserID:       userID,
		RewardID:     rewardID,
		TokenCost:    result.Redemption.TokenCost,
		NewBalance:   result.NewBalance,
	})
	return result, nil
}

func (s *LedgerService) invalidateLeaderboard(ctx context.Context) {
	if s.leaderboard == nil {
		return
	}
	if err := s.leaderboard.Invalidate(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("invalidate leaderboard cache")
	}
}

func (s *LedgerService) logFailure(userID int, op string, err *Error) *zerolog.Event {
	event := s.logger.Info()
	if err.Kind == KindStoreFailure {
		event = s.logger.Error().Err(err.Err)
	}
	return event.Int("user_id", userID).Str("op", op).Str("kind", string(err.Kind))
}

func claimError(err error) *Error {
	switch {
	case errors.Is(err, store.ErrUserNotFound):
		return newError(KindNotFound, "User not found", err)
	case errors.Is(err, store.ErrNotFound):
		return newError(KindNotFound, "Invalid code", err)
	case errors.Is(err, store.ErrAlreadyConsumed):
		return newError(KindAlreadyConsumed, "Code already used", err)
	default:
		return storeFailure(err)
	}
}

func redeemError(err error) *Error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return newError(KindNotFound, "User or reward not found", err)
	case errors.Is(err, store.ErrInsufficientBalance):
		return newError(KindInsufficientBalance, "Insufficient tokens", err)
	case errors.Is(err, store.ErrRewardUnavailable):
		return newError(KindRewardUnavailable, "Reward is not available", err)
	default:
		return storeFailure(err)
	}
}
