package metrics

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/frahmantamala/hoa-reimbursement/internal/auth"
	"github.com/frahmantamala/hoa-reimbursement/internal/transport"
	"github.com/frahmantamala/hoa-reimbursement/pkg/logger"
)

type ServiceAPI interface {
	Snapshot(ctx context.Context, isTreasurer bool) (*Snapshot, error)
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

// GetOperationalMetrics handles GET /metrics/operational
func (h *Handler) GetOperationalMetrics(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok || user == nil {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	snap, err := h.Service.Snapshot(r.Context(), user.IsTreasurer())
	if err != nil {
		h.Logger.Error("GetOperationalMetrics: service error", "error", err, "user_id", user.ID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, snap)
}
