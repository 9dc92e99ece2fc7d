package user

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	errors "github.com/frahmantamala/hoa-reimbursement/internal"
	userDatamodel "github.com/frahmantamala/hoa-reimbursement/internal/core/datamodel/user"
)

type RepositoryAPI interface {
	GetByID(ctx context.Context, id string) (*userDatamodel.User, error)
	List(ctx context.Context) ([]*userDatamodel.User, error)
	Create(ctx context.Context, u *userDatamodel.User) error
	TouchLastActive(ctx context.Context, id string, at time.Time) error
}

var ErrUserNotFound = errors.NewNotFoundError("user not found", errors.ErrCodeUserNotFound)

type Service struct {
	repo   RepositoryAPI
	logger *slog.Logger
	now    func() time.Time
}

func NewService(repo RepositoryAPI, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

func (s *Service) GetByID(ctx context.Context, id string) (*User, error) {
	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}
	if m == nil {
		return nil, ErrUserNotFound
	}
	return FromDataModel(m), nil
}

// ListUsers returns every user. Only the treasurer may see the roster.
func (s *Service) ListUsers(ctx context.Context, isTreasurer bool) ([]*User, error) {
	if !isTreasurer {
		s.logger.Warn("list users denied: caller is not treasurer")
		return nil, errors.ErrUnauthorizedAccess
	}
	return s.All(ctx)
}

// All loads the full roster without an access check, for internal callers
// such as the metrics report.
func (s *Service) All(ctx context.Context) ([]*User, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		s.logger.Error("failed to list users", "error", err)
		return nil, err
	}
	users := make([]*User, 0, len(rows))
	for _, row := range rows {
		users = append(users, FromDataModel(row))
	}
	return users, nil
}

// Touch records activity for engagement tracking. Failures are logged and
// swallowed so they never block the request that triggered them.
func (s *Service) Touch(ctx context.Context, id string) {
	if err := s.repo.TouchLastActive(ctx, id, s.now().UTC()); err != nil {
		s.logger.Warn("failed to record user activity", "user_id", id, "error", err)
	}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}
