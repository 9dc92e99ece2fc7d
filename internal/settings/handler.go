package settings

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/frahmantamala/hoa-reimbursement/internal/auth"
	"github.com/frahmantamala/hoa-reimbursement/internal/transport"
	"github.com/frahmantamala/hoa-reimbursement/pkg/logger"
)

type ServiceAPI interface {
	Current(ctx context.Context) (Settings, error)
	Update(ctx context.Context, actorID string, isTreasurer bool, dto UpdateSettingsDTO) (Settings, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(svc ServiceAPI) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     svc,
	}
}

// GetSettings handles GET /settings
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	s, err := h.Service.Current(r.Context())
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, s)
}

// UpdateSettings handles PUT /settings
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok || user == nil {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var dto UpdateSettingsDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.Logger.Error("UpdateSettings: invalid request body", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s, err := h.Service.Update(r.Context(), user.ID, user.IsTreasurer(), dto)
	if err != nil {
		h.Logger.Error("UpdateSettings: service error", "error", err, "user_id", user.ID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, s)
}
