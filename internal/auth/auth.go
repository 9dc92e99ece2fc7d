package auth

import (
	"context"
	"time"

	coreUser "github.com/frahmantamala/hoa-reimbursement/internal/core/user"
	"github.com/golang-jwt/jwt/v5"
)

type ctxKey string

const ContextUserKey ctxKey = "user"

// User is the authenticated principal attached to each request.
type User struct {
	ID    string        `json:"id"`
	Email string        `json:"email"`
	Name  string        `json:"name"`
	Role  coreUser.Role `json:"role"`
}

func (u *User) IsTreasurer() bool {
	return u != nil && u.Role.IsTreasurer()
}

func UserFromContext(ctx context.Context) (*User, bool) {
	u, ok := ctx.Value(ContextUserKey).(*User)
	return u, ok
}

func WithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, ContextUserKey, u)
}

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// TokenGenerator creates and validates signed tokens.
type TokenGenerator interface {
	GenerateAccessToken(userID, role string) (token string, err error)
	GenerateRefreshToken(userID, role string) (token string, err error)
	ValidateAccessToken(tokenString string) (*Claims, error)
	ValidateRefreshToken(tokenString string) (*Claims, error)
}

type AuthTokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Claims represents JWT token claims
type Claims struct {
	UserID    string `json:"user_id"`
	Role      string `json:"role"`
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

type JWTTokenGenerator struct {
	AccessTokenSecret  []byte
	RefreshTokenSecret []byte
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
	now                func() time.Time
}
