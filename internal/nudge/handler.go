package nudge

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/frahmantamala/hoa-reimbursement/internal/auth"
	"github.com/frahmantamala/hoa-reimbursement/internal/transport"
	"github.com/frahmantamala/hoa-reimbursement/pkg/logger"
	"github.com/go-chi/chi"
)

type ServiceAPI interface {
	Send(ctx context.Context, senderID string, isTreasurer bool, dto SendNudgeDTO) (*Nudge, error)
	ListForRecipient(ctx context.Context, recipientID string) ([]*Nudge, error)
	Mark(ctx context.Context, recipientID, id string, mark Mark) (*Nudge, error)
	Banners(ctx context.Context, userID string, dismissed map[string]bool) ([]Banner, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(service ServiceAPI) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     service,
	}
}

// SendNudge handles POST /nudges
func (h *Handler) SendNudge(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok || user == nil {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var dto SendNudgeDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.Logger.Error("SendNudge: invalid request body", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	n, err := h.Service.Send(r.Context(), user.ID, user.IsTreasurer(), dto)
	if err != nil {
		h.Logger.Error("SendNudge: service error", "error", err, "user_id", user.ID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, n)
}

// ListNudges handles GET /nudges
func (h *Handler) ListNudges(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok || user == nil {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	nudges, err := h.Service.ListForRecipient(r.Context(), user.ID)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"nudges": nudges})
}

// MarkNudge handles PATCH /nudges/{id}/{mark}
func (h *Handler) MarkNudge(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok || user == nil {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := chi.URLParam(r, "id")
	mark := Mark(chi.URLParam(r, "mark"))
	n, err := h.Service.Mark(r.Context(), user.ID, id, mark)
	if err != nil {
		h.Logger.Error("MarkNudge: service error", "error", err, "nudge_id", id, "mark", mark)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, n)
}

// GetBanners handles GET /banners?dismissed=key1,key2
func (h *Handler) GetBanners(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok || user == nil {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	dismissed := map[string]bool{}
	for _, key := range strings.Split(r.URL.Query().Get("dismissed"), ",") {
		if key = strings.TrimSpace(key); key != "" {
			dismissed[key] = true
		}
	}

	banners, err := h.Service.Banners(r.Context(), user.ID, dismissed)
	if err != nil {
		h.Logger.Error("GetBanners: service error", "error", err, "user_id", user.ID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"banners": banners})
}
