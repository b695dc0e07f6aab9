package handlers

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/revenac/apiserver/internal/services"
	"github.com/revenac/apiserver/types"
)

// RewardHandler provides the public catalog and redemption endpoints.
type RewardHandler struct {
	rewardService *services.RewardService
	ledgerService *services.LedgerService
}

func NewRewardHandler(rewardService *services.RewardService, ledgerService *services.LedgerService) *RewardHandler {
	return &RewardHandler{
		rewardService: rewardService,
		ledgerService: ledgerService,
	}
}

// RewardRouter registers catalog routes on the given router.
func RewardRouter(
	r chi.Router,
	rewardService *services.RewardService,
	ledgerService *services.LedgerService,
	authMiddleware func(http.Handler) http.Handler,
) {
	handler := NewRewardHandler(rewardService, ledgerService)

	r.Get("/", handler.ListRewards)
	r.Route("/{rewardID}", func(r chi.Router) {
		r.Get("/", handler.GetReward)
		r.Get("/image", handler.GetRewardImage)
		r.With(authMiddleware).Post("/redeem", handler.Redeem)
	})
}

// RewardListResponse wraps catalog listings.
type RewardListResponse struct {
	Items []types.Reward `json:"items"`
}

func (h *RewardHandler) ListRewards(w http.ResponseWriter, r *http.Request) {
	rewards, err := h.rewardService.List(r.Context(), true)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, RewardListResponse{Items: rewards})
}

func (h *RewardHandler) GetReward(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "rewardID", "reward")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	reward, err := h.rewardService.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reward)
}

func (h *RewardHandler) GetRewardImage(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "rewardID", "reward")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rc, contentType, err := h.rewardService.Image(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, rc)
}

// Redeem spends the caller's tokens on one unit of the reward.
func (h *RewardHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	rewardID, err := parseIDParam(r, "rewardID", "reward")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.ledgerService.RedeemReward(r.Context(), userID, rewardID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}
