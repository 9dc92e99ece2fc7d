package auth

import (
	"context"
	"log/slog"

	appErrors "github.com/frahmantamala/hoa-reimbursement/internal"
	userDatamodel "github.com/frahmantamala/hoa-reimbursement/internal/core/datamodel/user"
	coreUser "github.com/frahmantamala/hoa-reimbursement/internal/core/user"
	"golang.org/x/crypto/bcrypt"
)

type RepositoryAPI interface {
	GetByEmail(ctx context.Context, email string) (*userDatamodel.User, error)
	GetByID(ctx context.Context, id string) (*userDatamodel.User, error)
}

type ServiceAPI interface {
	Authenticate(ctx context.Context, dto LoginDTO) (AuthTokens, error)
	RefreshTokens(ctx context.Context, refreshToken string) (AuthTokens, error)
	ValidateAccessToken(tokenString string) (*Claims, error)
	Principal(ctx context.Context, userID string) (*User, error)
}

// ActivityTracker records that an authenticated user made a request.
type ActivityTracker interface {
	Touch(ctx context.Context, userID string)
}

// Service is the main auth service with dependencies
type Service struct {
	repo           RepositoryAPI
	tokenGenerator *JWTTokenGenerator
	bcryptCost     int
	logger         *slog.Logger
}

func NewService(repo RepositoryAPI, tokenGen *JWTTokenGenerator, bcryptCost int, logger *slog.Logger) *Service {
	if bcryptCost < bcrypt.MinCost {
		bcryptCost = bcrypt.DefaultCost
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:           repo,
		tokenGenerator: tokenGen,
		bcryptCost:     bcryptCost,
		logger:         logger,
	}
}

// Authenticate validates credentials and returns tokens
func (s *Service) Authenticate(ctx context.Context, dto LoginDTO) (AuthTokens, error) {
	if err := dto.Validate(); err != nil {
		return AuthTokens{}, err
	}

	u, err := s.repo.GetByEmail(ctx, dto.Email)
	if err != nil {
		s.logger.Error("failed to load user for login", "error", err)
		return AuthTokens{}, appErrors.NewInternalError("failed to authenticate", err)
	}
	if u == nil {
		return AuthTokens{}, appErrors.ErrInvalidCredentials
	}

	if err := VerifyPassword(u.PasswordHash, dto.Password); err != nil {
		s.logger.Warn("login rejected: password mismatch", "user_id", u.ID)
		return AuthTokens{}, appErrors.ErrInvalidCredentials
	}

	if !u.IsActive {
		return AuthTokens{}, appErrors.ErrUserInactive
	}

	return s.issue(u.ID, u.Role)
}

// RefreshTokens validates a refresh token and rotates both tokens. The role
// is reloaded so a demoted treasurer loses access on the next refresh.
func (s *Service) RefreshTokens(ctx context.Context, refreshToken string) (AuthTokens, error) {
	claims, err := s.tokenGenerator.ValidateRefreshToken(refreshToken)
	if err != nil {
		return AuthTokens{}, err
	}

	u, err := s.repo.GetByID(ctx, claims.UserID)
	if err != nil {
		return AuthTokens{}, appErrors.NewInternalError("failed to refresh tokens", err)
	}
	if u == nil {
		return AuthTokens{}, appErrors.ErrInvalidToken
	}
	if !u.IsActive {
		return AuthTokens{}, appErrors.ErrUserInactive
	}

	return s.issue(u.ID, u.Role)
}

func (s *Service) ValidateAccessToken(tokenString string) (*Claims, error) {
	return s.tokenGenerator.ValidateAccessToken(tokenString)
}

// Principal loads the request principal for a validated token subject.
func (s *Service) Principal(ctx context.Context, userID string) (*User, error) {
	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, appErrors.ErrInvalidToken
	}
	if !u.IsActive {
		return nil, appErrors.ErrUserInactive
	}

	role, ok := coreUser.ParseRole(u.Role)
	if !ok {
		role = coreUser.RoleMember
	}
	return &User{ID: u.ID, Email: u.Email, Name: u.Name, Role: role}, nil
}

// HashPassword creates a bcrypt hash of the password
func (s *Service) HashPassword(password string) (string, error) {
	return HashPassword(password, s.bcryptCost)
}

func (s *Service) issue(userID, role string) (AuthTokens, error) {
	accessToken, err := s.tokenGenerator.GenerateAccessToken(userID, role)
	if err != nil {
		return AuthTokens{}, err
	}

	refreshToken, err := s.tokenGenerator.GenerateRefreshToken(userID, role)
	if err != nil {
		return AuthTokens{}, err
	}

	return AuthTokens{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.tokenGenerator.AccessTokenTTL.Seconds()),
	}, nil
}

func VerifyPassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

func HashPassword(password string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
