package auth

import (
	"log/slog"
	"net/http"

	coreUser "github.com/frahmantamala/hoa-reimbursement/internal/core/user"
)

type RoleAuthorization struct {
	logger *slog.Logger
}

func NewRoleAuthorization(logger *slog.Logger) *RoleAuthorization {
	if logger == nil {
		logger = slog.Default()
	}
	return &RoleAuthorization{logger: logger}
}

// Require admits requests whose principal holds one of the given roles.
func (ra *RoleAuthorization) Require(roles ...coreUser.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := UserFromContext(r.Context())
			if !ok || user == nil {
				ra.logger.Warn("authorization check failed: user not found in context")
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			for _, role := range roles {
				if user.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}

			ra.logger.WarnContext(r.Context(), "access denied: role not permitted",
				"user_id", user.ID,
				"role", user.Role,
				"required_roles", roles)
			http.Error(w, "Forbidden: insufficient permissions", http.StatusForbidden)
		})
	}
}

func (ra *RoleAuthorization) RequireTreasurer() func(http.Handler) http.Handler {
	return ra.Require(coreUser.RoleTreasurer)
}
