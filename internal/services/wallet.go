package services

import (
	"context"

	"github.com/revenac/apiserver/types"
)

const (
	walletHistoryLimit = 20
	recentClaimsLimit  = 10
)

// ClaimHistoryRepository lists the codes a user claimed.
type ClaimHistoryRepository interface {
	ListClaimedByUser(ctx context.Context, userID, limit int) ([]types.EarnCode, error)
}

// RedemptionRepository lists a user's redemptions.
type RedemptionRepository interface {
	ListByUser(ctx context.Context, userID, limit int) ([]types.Redemption, error)
}

// AnalyticsRepository computes admin aggregates.
type AnalyticsRepository interface {
	Summary(ctx context.Context, recent int) (types.Analytics, error)
}

// WalletService assembles a user's balance and ledger history.
type WalletService struct {
	users       UserRepository
	claims      ClaimHistoryRepository
	redemptions RedemptionRepository
}

func NewWalletService(users UserRepository, claims ClaimHistoryRepository, redemptions RedemptionRepository) *WalletService {
	return &WalletService{users: users, claims: claims, redemptions: redemptions}
}

func (s *WalletService) Get(ctx context.Context, userID int) (types.Wallet, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return types.Wallet{}, mapStoreError(err, "User not found")
	}

	claims, err := s.claims.ListClaimedByUser(ctx, userID, walletHistoryLimit)
	if err != nil {
		return types.Wallet{}, storeFailure(err)
	}
	redemptions, err := s.redemptions.ListByUser(ctx, userID, walletHistoryLimit)
	if err != nil {
		return types.Wallet{}, storeFailure(err)
	}

	return types.Wallet{
		TokenBalance: user.TokenBalance,
		BottleCount:  user.BottleCount,
		CarbonSaved:  user.CarbonSaved,
		Claims:       claims,
		Redemptions:  redemptions,
	}, nil
}

// AnalyticsService serves the admin dashboard.
type AnalyticsService struct {
	repo AnalyticsRepository
}

func NewAnalyticsService(repo AnalyticsRepository) *AnalyticsService {
	return &AnalyticsService{repo: repo}
}

func (s *AnalyticsService) Summary(ctx context.Context) (types.Analytics, error) {
	analytics, err := s.repo.Summary(ctx, recentClaimsLimit)
	if err != nil {
		return types.Analytics{}, storeFailure(err)
	}
	return analytics, nil
}
