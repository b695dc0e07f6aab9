package services

import (
	"context"

	"github.com/revenac/apiserver/internal/metrics"
	"github.com/revenac/apiserver/types"
	"github.com/rs/zerolog"
)

// LeaderboardSize is the number of ranked users kept and the maximum limit.
const LeaderboardSize = 100

// RankingRepository returns users ordered by token balance.
type RankingRepository interface {
	Top(ctx context.Context, limit int) ([]types.LeaderboardEntry, error)
}

// LeaderboardStore caches the full ranking. Get reports the cache epoch a
// miss was observed in and Set only fills that epoch, so a ranking read
// before an invalidation never outlives it. *cache.LeaderboardCache
// satisfies it.
type LeaderboardStore interface {
	Get(ctx context.Context) ([]types.LeaderboardEntry, int64, bool, error)
	Set(ctx context.Context, epoch int64, entries []types.LeaderboardEntry) error
}

// LeaderboardService serves the public ranking.
type LeaderboardService struct {
	repo   RankingRepository
	cache  LeaderboardStore
	logger zerolog.Logger
}

// NewLeaderboardService constructs a LeaderboardService. cache may be nil.
func NewLeaderboardService(repo RankingRepository, cache LeaderboardStore, logger zerolog.Logger) *LeaderboardService {
	return &LeaderboardService{
		repo:   repo,
		cache:  cache,
		logger: logger.With().Str("component", "leaderboard").Logger(),
	}
}

// Top returns the first limit users by token balance. Out of range limits
// are clamped to LeaderboardSize.
func (s *LeaderboardService) Top(ctx context.Context, limit int) ([]types.LeaderboardEntry, error) {
	if limit < 1 || limit > LeaderboardSize {
		limit = LeaderboardSize
	}

	entries, err := s.ranking(ctx)
	if err != nil {
		return nil, err
	}
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (s *LeaderboardService) ranking(ctx context.Context) ([]types.LeaderboardEntry, error) {
	var (
		epoch int64
		fill  bool
	)
	if s.cache != nil {
		entries, e, ok, err := s.cache.Get(ctx)
		switch {
		case err != nil:
			metrics.IncCacheRequest("leaderboard", "error")
			s.logger.Warn().Err(err).Msg("read leaderboard cache")
		case ok:
			metrics.IncCacheRequest("leaderboard", "hit")
			return entries, nil
		default:
			metrics.IncCacheRequest("leaderboard", "miss")
			epoch, fill = e, true
		}
	}

	entries, err := s.repo.Top(ctx, LeaderboardSize)
	if err != nil {
		return nil, storeFailure(err)
	}

	if fill {
		if err := s.cache.Set(ctx, epoch, entries); err != nil {
			s.logger.Warn().Err(err).Msg("write leaderboard cache")
		}
	}
	return entries, nil
}
