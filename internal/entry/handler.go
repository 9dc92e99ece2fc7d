package entry

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/frahmantamala/hoa-reimbursement/internal/auth"
	"github.com/frahmantamala/hoa-reimbursement/internal/transport"
	"github.com/frahmantamala/hoa-reimbursement/pkg/logger"
	"github.com/go-chi/chi"
)

type ServiceAPI interface {
	Create(ctx context.Context, actor Actor, dto CreateEntryDTO) (*EntryView, error)
	Update(ctx context.Context, actor Actor, id string, dto UpdateEntryDTO) (*EntryView, error)
	Get(ctx context.Context, actor Actor, id string) (*EntryView, error)
	List(ctx context.Context, actor Actor, filter ListFilter) ([]*EntryView, error)
	Timeline(ctx context.Context, actor Actor, id string) ([]TimelineEvent, error)
	Transition(ctx context.Context, actor Actor, id string, dto TransitionDTO) (*EntryView, error)
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

func actorFrom(u *auth.User) Actor {
	return Actor{ID: u.ID, Name: u.Name, Role: u.Role}
}

func (h *Handler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok || user == nil {
		h.Logger.Error("CreateEntry: user not found in context")
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var dto CreateEntryDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.Logger.Error("CreateEntry: invalid request body", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	entry, err := h.Service.Create(r.Context(), actorFrom(user), dto)
	if err != nil {
		h.Logger.Error("CreateEntry: service error", "error", err, "user_id", user.ID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, entry)
}

func (h *Handler) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok || user == nil {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var dto UpdateEntryDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.Logger.Error("UpdateEntry: invalid request body", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id := chi.URLParam(r, "id")
	entry, err := h.Service.Update(r.Context(), actorFrom(user), id, dto)
	if err != nil {
		h.Logger.Error("UpdateEntry: service error", "error", err, "entry_id", id, "user_id", user.ID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, entry)
}

func (h *Handler) GetEntry(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok || user == nil {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := chi.URLParam(r, "id")
	entry, err := h.Service.Get(r.Context(), actorFrom(user), id)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, entry)
}

// ListEntries handles GET /entries?status=&type=&limit=&offset=
func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok || user == nil {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	q := r.URL.Query()
	filter := ListFilter{Limit: 20}

	if v := q.Get("status"); v != "" {
		status, ok := ParseStatus(v)
		if !ok {
			h.WriteError(w, http.StatusBadRequest, "invalid status filter")
			return
		}
		filter.Status = status
	}
	if v := q.Get("type"); v != "" {
		t := Type(v)
		if !t.Valid() {
			h.WriteError(w, http.StatusBadRequest, "invalid type filter")
			return
		}
		filter.Type = t
	}
	if limitStr := q.Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
			filter.Limit = l
		}
	}
	if offsetStr := q.Get("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			filter.Offset = o
		}
	}

	entries, err := h.Service.List(r.Context(), actorFrom(user), filter)
	if err != nil {
		h.Logger.Error("ListEntries: service error", "error", err, "user_id", user.ID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"limit":   filter.Limit,
		"offset":  filter.Offset,
	})
}

func (h *Handler) GetTimeline(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok || user == nil {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := chi.URLParam(r, "id")
	timeline, err := h.Service.Timeline(r.Context(), actorFrom(user), id)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"entry_id": id,
		"events":   timeline,
	})
}

// TransitionEntry handles POST /entries/{id}/transitions
func (h *Handler) TransitionEntry(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok || user == nil {
		h.Logger.Error("TransitionEntry: user not found in context")
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var dto TransitionDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.Logger.Error("TransitionEntry: invalid request body", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id := chi.URLParam(r, "id")
	entry, err := h.Service.Transition(r.Context(), actorFrom(user), id, dto)
	if err != nil {
		h.Logger.Warn("TransitionEntry: service error",
			"error", err,
			"entry_id", id,
			"action", dto.Action,
			"actor_id", user.ID)
		h.HandleServiceError(w, err)
		return
	}

	h.Logger.Info("TransitionEntry: entry transitioned",
		"entry_id", id,
		"action", dto.Action,
		"status", entry.Status,
		"actor_id", user.ID)

	h.WriteJSON(w, http.StatusOK, entry)
}
