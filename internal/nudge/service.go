package nudge

import (
	"context"
	"log/slog"
	"strings"
	"time"

	errors "github.com/frahmantamala/hoa-reimbursement/internal"
	nudgeDatamodel "github.com/frahmantamala/hoa-reimbursement/internal/core/datamodel/nudge"
	"github.com/frahmantamala/hoa-reimbursement/internal/core/events"
	"github.com/frahmantamala/hoa-reimbursement/internal/entry"
	"github.com/frahmantamala/hoa-reimbursement/internal/settings"
	"github.com/frahmantamala/hoa-reimbursement/internal/user"
	"github.com/frahmantamala/hoa-reimbursement/pkg/ids"
)

type RepositoryAPI interface {
	Create(ctx context.Context, n *nudgeDatamodel.Nudge) error
	// GetByID returns nil, nil when the nudge does not exist.
	GetByID(ctx context.Context, id string) (*nudgeDatamodel.Nudge, error)
	ListByRecipient(ctx context.Context, recipientID string) ([]*nudgeDatamodel.Nudge, error)
	Update(ctx context.Context, n *nudgeDatamodel.Nudge) error
}

type UserDirectory interface {
	GetByID(ctx context.Context, id string) (*user.User, error)
}

type EntrySource interface {
	ForUser(ctx context.Context, userID string) ([]*entry.Entry, error)
}

type SettingsProvider interface {
	Current(ctx context.Context) (settings.Settings, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// Mark is a recipient-side state change on a nudge.
type Mark string

const (
	MarkRead      Mark = "read"
	MarkDismissed Mark = "dismiss"
	MarkActedOn   Mark = "acted"
)

type Service struct {
	repo      RepositoryAPI
	users     UserDirectory
	entries   EntrySource
	settings  SettingsProvider
	publisher EventPublisher
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(repo RepositoryAPI, users UserDirectory, entries EntrySource, settingsProvider SettingsProvider, publisher EventPublisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		users:     users,
		entries:   entries,
		settings:  settingsProvider,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Send records a nudge from the treasurer to a member.
func (s *Service) Send(ctx context.Context, senderID string, isTreasurer bool, dto SendNudgeDTO) (*Nudge, error) {
	if !isTreasurer {
		s.logger.Warn("nudge denied: sender is not treasurer", "sender_id", senderID)
		return nil, errors.ErrUnauthorizedAccess
	}
	if err := dto.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.users.GetByID(ctx, dto.RecipientID); err != nil {
		return nil, err
	}

	n := &Nudge{
		ID:          ids.New(),
		RecipientID: dto.RecipientID,
		SenderID:    senderID,
		Template:    dto.Template,
		Message:     dto.Template.Render(dto.Message),
		CreatedAt:   s.now().UTC(),
	}
	if dto.EntryID != nil && strings.TrimSpace(*dto.EntryID) != "" {
		id := strings.TrimSpace(*dto.EntryID)
		n.EntryID = &id
	}

	if err := s.repo.Create(ctx, ToDataModel(n)); err != nil {
		s.logger.Error("failed to create nudge", "error", err, "recipient_id", dto.RecipientID)
		return nil, errors.NewInternalError("failed to create nudge", err)
	}

	if s.publisher != nil {
		evt := events.NewNudgeSentEvent(n.ID, n.RecipientID, n.SenderID, string(n.Template), n.Message, n.EntryID, n.CreatedAt)
		if err := s.publisher.Publish(ctx, evt); err != nil {
			s.logger.Error("failed to publish nudge event", "nudge_id", n.ID, "error", err)
		}
	}

	s.logger.Info("nudge sent",
		"nudge_id", n.ID,
		"recipient_id", n.RecipientID,
		"template", n.Template)

	return n, nil
}

func (s *Service) ListForRecipient(ctx context.Context, recipientID string) ([]*Nudge, error) {
	rows, err := s.repo.ListByRecipient(ctx, recipientID)
	if err != nil {
		s.logger.Error("failed to list nudges", "error", err, "recipient_id", recipientID)
		return nil, errors.NewInternalError("failed to list nudges", err)
	}
	out := make([]*Nudge, 0, len(rows))
	for _, row := range rows {
		out = append(out, FromDataModel(row))
	}
	return out, nil
}

// Mark stamps read, dismissed or acted-on. Only the recipient may do so, and
// repeating a mark keeps the first timestamp.
func (s *Service) Mark(ctx context.Context, recipientID, id string, mark Mark) (*Nudge, error) {
	row, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, errors.NewInternalError("failed to load nudge", err)
	}
	if row == nil {
		return nil, ErrNudgeNotFound
	}
	n := FromDataModel(row)
	if n.RecipientID != recipientID {
		s.logger.Warn("nudge mark denied", "nudge_id", id, "user_id", recipientID)
		return nil, errors.ErrUnauthorizedAccess
	}

	at := s.now().UTC()
	switch mark {
	case MarkRead:
		if n.ReadAt == nil {
			n.ReadAt = &at
		}
	case MarkDismissed:
		if n.DismissedAt == nil {
			n.DismissedAt = &at
		}
	case MarkActedOn:
		if n.ActedOnAt == nil {
			n.ActedOnAt = &at
		}
		if n.ReadAt == nil {
			n.ReadAt = &at
		}
	default:
		return nil, errors.NewValidationFieldError("mark", "unknown nudge mark "+string(mark), errors.ErrCodeValidationFailed)
	}

	if err := s.repo.Update(ctx, ToDataModel(n)); err != nil {
		s.logger.Error("failed to update nudge", "error", err, "nudge_id", id)
		return nil, errors.NewInternalError("failed to update nudge", err)
	}
	return n, nil
}

// Banners computes the member's banners, less any dismissed this session.
func (s *Service) Banners(ctx context.Context, userID string, dismissed map[string]bool) ([]Banner, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	own, err := s.entries.ForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	nudges, err := s.ListForRecipient(ctx, userID)
	if err != nil {
		return nil, err
	}
	cfg, err := s.settings.Current(ctx)
	if err != nil {
		return nil, err
	}

	var work, purchases []*entry.Entry
	for _, e := range own {
		if e.Type == entry.TypePurchase {
			purchases = append(purchases, e)
		} else {
			work = append(work, e)
		}
	}

	return FilterDismissed(ComputeBanners(work, purchases, nudges, u, cfg, s.now()), dismissed), nil
}
