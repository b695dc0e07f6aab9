package handlers

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/revenac/apiserver/internal/services"
	"github.com/revenac/apiserver/types"
)

const (
	maxMultipartMemory = 8 << 20
	formFieldImage     = "image"
)

// AdminHandler provides catalog management and analytics for admins.
type AdminHandler struct {
	rewardService    *services.RewardService
	analyticsService *services.AnalyticsService
	userService      *services.UserService
}

func NewAdminHandler(
	rewardService *services.RewardService,
	analyticsService *services.AnalyticsService,
	userService *services.UserService,
) *AdminHandler {
	return &AdminHandler{
		rewardService:    rewardService,
		analyticsService: analyticsService,
		userService:      userService,
	}
}

// AdminRouter registers admin routes. Every route requires an authenticated
// ADMIN user.
func AdminRouter(
	r chi.Router,
	rewardService *services.RewardService,
	analyticsService *services.AnalyticsService,
	userService *services.UserService,
	authMiddleware func(http.Handler) http.Handler,
) {
	handler := NewAdminHandler(rewardService, analyticsService, userService)

	r.Use(authMiddleware, handler.requireAdmin)
	r.Get("/analytics", handler.Analytics)
	r.Route("/rewards", func(r chi.Router) {
		r.Get("/", handler.ListRewards)
		r.Post("/", handler.CreateReward)
		r.Route("/{rewardID}", func(r chi.Router) {
			r.Put("/", handler.UpdateReward)
			r.Delete("/", handler.DeleteReward)
			r.Put("/image", handler.UploadRewardImage)
		})
	})
}

// RewardUpsertRequest is the JSON payload of reward create and update.
type RewardUpsertRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	TokenCost   int    `json:"token_cost"`
	Category    string `json:"category"`
	Stock       int    `json:"stock"`
	Active      *bool  `json:"active"`
}

func (req RewardUpsertRequest) reward(id int) types.Reward {
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	return types.Reward{
		ID:          id,
		Title:       req.Title,
		Description: req.Description,
		TokenCost:   req.TokenCost,
		Category:    req.Category,
		Stock:       req.Stock,
		Active:      active,
	}
}

func (h *AdminHandler) ListRewards(w http.ResponseWriter, r *http.Request) {
	rewards, err := h.rewardService.List(r.Context(), false)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, RewardListResponse{Items: rewards})
}

func (h *AdminHandler) CreateReward(w http.ResponseWriter, r *http.Request) {
	var req RewardUpsertRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := h.rewardService.Create(r.Context(), req.reward(0))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *AdminHandler) UpdateReward(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "rewardID", "reward")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req RewardUpsertRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := h.rewardService.Update(r.Context(), req.reward(id))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *AdminHandler) DeleteReward(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "rewardID", "reward")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.rewardService.Delete(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) UploadRewardImage(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "rewardID", "reward")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, services.MaxRewardImageBytes+maxMultipartMemory)
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	data, err := parseImageFile(r.MultipartForm)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	reward, err := h.rewardService.UploadImage(r.Context(), id, data)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reward)
}

func (h *AdminHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	analytics, err := h.analyticsService.Summary(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, analytics)
}

func parseImageFile(form *multipart.Form) ([]byte, error) {
	if form == nil {
		return nil, errors.New("missing form data")
	}

	files := form.File[formFieldImage]
	if len(files) == 0 {
		return nil, errors.New("image file is required")
	}
	if len(files) > 1 {
		return nil, errors.New("only one image file is allowed")
	}

	file, err := files[0].Open()
	if err != nil {
		return nil, fmt.Errorf("failed to read image file: %w", err)
	}
	defer file.Close()

	return readFileLimited(file, services.MaxRewardImageBytes)
}

func (h *AdminHandler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := userIDFromContext(r.Context())
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		user, err := h.userService.GetByID(r.Context(), userID)
		if err != nil {
			if services.KindOf(err) == services.KindNotFound {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			writeError(w, http.StatusInternalServerError, "failed to load user")
			return
		}

		if !strings.EqualFold(user.Role, types.RoleAdmin) {
			writeError(w, http.StatusForbidden, "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
