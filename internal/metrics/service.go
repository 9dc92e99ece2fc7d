package metrics

import (
	"context"
	"log/slog"
	"time"

	errors "github.com/frahmantamala/hoa-reimbursement/internal"
	"github.com/frahmantamala/hoa-reimbursement/internal/entry"
	"github.com/frahmantamala/hoa-reimbursement/internal/settings"
	"github.com/frahmantamala/hoa-reimbursement/internal/user"
	"github.com/frahmantamala/hoa-reimbursement/pkg/telemetry"
)

type EntrySource interface {
	All(ctx context.Context) ([]*entry.Entry, error)
}

type UserSource interface {
	All(ctx context.Context) ([]*user.User, error)
}

type SettingsProvider interface {
	Current(ctx context.Context) (settings.Settings, error)
}

// GaugeSink receives the headline numbers after each computation.
type GaugeSink interface {
	ObserveGauges(g telemetry.Gauges)
}

type Service struct {
	entries  EntrySource
	users    UserSource
	settings SettingsProvider
	gauges   GaugeSink
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(entries EntrySource, users UserSource, settingsProvider SettingsProvider, gauges GaugeSink, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		entries:  entries,
		users:    users,
		settings: settingsProvider,
		gauges:   gauges,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Snapshot computes the operational snapshot for the treasurer.
func (s *Service) Snapshot(ctx context.Context, isTreasurer bool) (*Snapshot, error) {
	if !isTreasurer {
		return nil, errors.ErrUnauthorizedAccess
	}
	return s.Report(ctx)
}

// Report computes the snapshot without an access check, for the CLI.
func (s *Service) Report(ctx context.Context) (*Snapshot, error) {
	all, err := s.entries.All(ctx)
	if err != nil {
		s.logger.Error("failed to load entries for metrics", "error", err)
		return nil, err
	}
	users, err := s.users.All(ctx)
	if err != nil {
		s.logger.Error("failed to load users for metrics", "error", err)
		return nil, errors.NewInternalError("failed to load users", err)
	}
	cfg, err := s.settings.Current(ctx)
	if err != nil {
		return nil, err
	}

	var work, purchases []*entry.Entry
	for _, e := range all {
		if e == nil {
			continue
		}
		if e.Type == entry.TypePurchase {
			purchases = append(purchases, e)
		} else {
			work = append(work, e)
		}
	}

	snap := Compute(work, purchases, users, cfg, s.now())

	if s.gauges != nil {
		pipeline, _ := snap.PipelineValue.Float64()
		s.gauges.ObserveGauges(telemetry.Gauges{
			PendingReviews: len(snap.PendingQueue),
			SLABreaches:    snap.SLABreaches,
			StaleDrafts:    len(snap.StaleDrafts),
			PipelineValue:  pipeline,
			AdoptionRate:   snap.AdoptionRate,
		})
	}

	s.logger.Debug("operational metrics computed",
		"entries", len(all),
		"pending", len(snap.PendingQueue),
		"sla_breaches", snap.SLABreaches)

	return &snap, nil
}
