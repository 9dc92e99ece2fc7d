package settings

import (
	"context"
	"log/slog"
	"time"

	errors "github.com/frahmantamala/hoa-reimbursement/internal"
	settingsDatamodel "github.com/frahmantamala/hoa-reimbursement/internal/core/datamodel/settings"
)

type RepositoryAPI interface {
	// Get returns nil, nil before the row has been written.
	Get(ctx context.Context) (*settingsDatamodel.Settings, error)
	Save(ctx context.Context, s *settingsDatamodel.Settings) error
}

type Service struct {
	repo     RepositoryAPI
	defaults Settings
	logger   *slog.Logger
	now      func() time.Time
}

// NewService falls back to defaults until a treasurer saves settings.
func NewService(repo RepositoryAPI, defaults Settings, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		defaults: defaults,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *Service) Current(ctx context.Context) (Settings, error) {
	row, err := s.repo.Get(ctx)
	if err != nil {
		s.logger.Error("failed to load settings", "error", err)
		return Settings{}, errors.NewInternalError("failed to load settings", err)
	}
	if row == nil {
		return s.defaults, nil
	}
	return FromDataModel(row), nil
}

func (s *Service) Update(ctx context.Context, actorID string, isTreasurer bool, dto UpdateSettingsDTO) (Settings, error) {
	if !isTreasurer {
		s.logger.Warn("settings update denied: caller is not treasurer", "user_id", actorID)
		return Settings{}, errors.ErrUnauthorizedAccess
	}

	current, err := s.Current(ctx)
	if err != nil {
		return Settings{}, err
	}

	next := dto.ApplyTo(current)
	if err := next.Validate(); err != nil {
		return Settings{}, err
	}
	next.UpdatedBy = actorID
	next.UpdatedAt = s.now().UTC()

	if err := s.repo.Save(ctx, ToDataModel(next)); err != nil {
		s.logger.Error("failed to save settings", "error", err, "user_id", actorID)
		return Settings{}, errors.NewInternalError("failed to save settings", err)
	}

	s.logger.Info("settings updated",
		"user_id", actorID,
		"dual_approval_threshold", next.DualApprovalThreshold.String(),
		"stale_draft_days", next.StaleDraftDays)

	return next, nil
}

// EnsureSeeded writes the defaults when no settings row exists yet.
func (s *Service) EnsureSeeded(ctx context.Context) (Settings, error) {
	row, err := s.repo.Get(ctx)
	if err != nil {
		return Settings{}, err
	}
	if row != nil {
		return FromDataModel(row), nil
	}
	seeded := s.defaults
	seeded.UpdatedAt = s.now().UTC()
	if err := s.repo.Save(ctx, ToDataModel(seeded)); err != nil {
		return Settings{}, err
	}
	return seeded, nil
}
