package auth

import (
	"encoding/json"
	"log/slog"
	"net/http"

	appErrors "github.com/frahmantamala/hoa-reimbursement/internal"
	"github.com/frahmantamala/hoa-reimbursement/internal/transport"
	"github.com/frahmantamala/hoa-reimbursement/pkg/logger"
)

type Handler struct {
	*transport.BaseHandler
	Service  ServiceAPI
	Activity ActivityTracker
}

func NewHandler(svc ServiceAPI, activity ActivityTracker) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     svc,
		Activity:    activity,
	}
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var dto LoginDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	tokens, err := h.Service.Authenticate(r.Context(), dto)
	if err != nil {
		h.Logger.Error("authentication failed", "error", err)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, tokens)
}

func (h *Handler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var dto RefreshTokenDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := dto.Validate(); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	tokens, err := h.Service.RefreshTokens(r.Context(), dto.RefreshToken)
	if err != nil {
		h.Logger.Error("token refresh failed", "error", err)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, tokens)
}

// Logout only checks the token. Tokens are stateless and expire on their own.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	token := h.ExtractTokenFromHeader(r)
	if token == "" {
		h.WriteError(w, http.StatusUnauthorized, "missing authorization token")
		return
	}

	if _, err := h.Service.ValidateAccessToken(token); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := h.ExtractTokenFromHeader(r)
		if token == "" {
			h.WriteError(w, http.StatusUnauthorized, "missing authorization token")
			return
		}

		claims, err := h.Service.ValidateAccessToken(token)
		if err != nil {
			h.Logger.Warn("token validation failed", "error", err)
			h.HandleServiceError(w, err)
			return
		}

		principal, err := h.Service.Principal(r.Context(), claims.UserID)
		if err != nil {
			h.Logger.Error("auth middleware: failed to load principal", "user_id", claims.UserID, "error", err)
			if _, ok := appErrors.IsAppError(err); ok {
				h.HandleServiceError(w, err)
				return
			}
			h.WriteError(w, http.StatusUnauthorized, "user not found")
			return
		}

		ctx := WithUser(r.Context(), principal)
		ctx = logger.WithPrincipal(ctx, principal.ID, string(principal.Role))

		if h.Activity != nil {
			h.Activity.Touch(ctx, principal.ID)
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
