package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/revenac/apiserver/internal/services"
)

// LedgerHandler serves the token earning and wallet endpoints.
type LedgerHandler struct {
	ledgerService      *services.LedgerService
	walletService      *services.WalletService
	leaderboardService *services.LeaderboardService
}

func NewLedgerHandler(
	ledgerService *services.LedgerService,
	walletService *services.WalletService,
	leaderboardService *services.LeaderboardService,
) *LedgerHandler {
	return &LedgerHandler{
		ledgerService:      ledgerService,
		walletService:      walletService,
		leaderboardService: leaderboardService,
	}
}

// CodeRouter registers the claim route. claimLimit runs after authentication.
func CodeRouter(r chi.Router, handler *LedgerHandler, authMiddleware, claimLimit func(http.Handler) http.Handler) {
	r.With(authMiddleware, claimLimit).Post("/claim", handler.ClaimCode)
}

// ClaimRequest is the payload of POST /codes/claim.
type ClaimRequest struct {
	Code string `json:"code"`
}

// ClaimCode redeems a machine code for the caller.
func (h *LedgerHandler) ClaimCode(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req ClaimRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.ledgerService.ClaimCode(r.Context(), userID, req.Code)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Wallet returns the caller's balance and history.
func (h *LedgerHandler) Wallet(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	wallet, err := h.walletService.Get(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wallet)
}

// Leaderboard returns users ranked by token balance.
func (h *LedgerHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	entries, err := h.leaderboardService.Top(r.Context(), limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
