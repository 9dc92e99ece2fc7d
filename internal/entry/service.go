package entry

import (
	"context"
	stderrors "errors"
	"log/slog"
	"time"

	errors "github.com/frahmantamala/hoa-reimbursement/internal"
	entryDatamodel "github.com/frahmantamala/hoa-reimbursement/internal/core/datamodel/entry"
	"github.com/frahmantamala/hoa-reimbursement/internal/core/events"
	"github.com/frahmantamala/hoa-reimbursement/internal/settings"
	"github.com/frahmantamala/hoa-reimbursement/internal/user"
	"github.com/frahmantamala/hoa-reimbursement/pkg/ids"
)

type RepositoryAPI interface {
	Create(ctx context.Context, e *entryDatamodel.Entry) error
	// GetByID returns nil, nil when the entry does not exist.
	GetByID(ctx context.Context, id string) (*entryDatamodel.Entry, error)
	List(ctx context.Context, filter ListFilter) ([]*entryDatamodel.Entry, error)
	ListAll(ctx context.Context) ([]*entryDatamodel.Entry, error)
	// UpdateIfStatus writes e only if the stored row still has the expected
	// status and version, returning ErrConcurrentUpdate otherwise.
	UpdateIfStatus(ctx context.Context, e *entryDatamodel.Entry, expectedStatus string, expectedVersion int64) error
}

type SettingsProvider interface {
	Current(ctx context.Context) (settings.Settings, error)
}

type UserDirectory interface {
	GetByID(ctx context.Context, id string) (*user.User, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// Recorder receives transition outcomes for metrics.
type Recorder interface {
	TransitionApplied(action, from, to string)
	TransitionRejected(action, reason string)
}

type Service struct {
	repo      RepositoryAPI
	settings  SettingsProvider
	users     UserDirectory
	publisher EventPublisher
	recorder  Recorder
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(repo RepositoryAPI, settingsProvider SettingsProvider, users UserDirectory, publisher EventPublisher, recorder Recorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		settings:  settingsProvider,
		users:     users,
		publisher: publisher,
		recorder:  recorder,
		logger:    logger,
		now:       time.Now,
	}
}

// WithClock replaces the time source, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Create starts a draft owned by the actor. The hourly rate is snapshotted
// from the owner's override or the current default so later settings
// changes do not reprice old work.
func (s *Service) Create(ctx context.Context, actor Actor, dto CreateEntryDTO) (*EntryView, error) {
	if err := dto.Validate(); err != nil {
		s.logger.Warn("entry validation failed", "error", err, "user_id", actor.ID)
		return nil, err
	}

	cfg, err := s.settings.Current(ctx)
	if err != nil {
		return nil, err
	}

	owner, err := s.users.GetByID(ctx, actor.ID)
	if err != nil {
		s.logger.Error("failed to load entry owner", "error", err, "user_id", actor.ID)
		return nil, err
	}

	date, _ := ParseDate(dto.Date)
	now := s.now().UTC()
	e := &Entry{
		ID:            ids.New(),
		UserID:        actor.ID,
		Type:          dto.Type,
		Category:      dto.Category,
		Description:   dto.Description,
		Notes:         dto.Notes,
		Location:      dto.Location,
		Date:          date,
		StartTime:     dto.StartTime,
		EndTime:       dto.EndTime,
		Materials:     dto.Materials,
		Items:         dto.Items,
		Mileage:       dto.Mileage,
		Tax:           dto.Tax,
		BeforePhotos:  dto.BeforePhotos,
		AfterPhotos:   dto.AfterPhotos,
		ReceiptImages: dto.ReceiptImages,
		Status:        StatusDraft,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if e.Type == TypeWork {
		e.HourlyRate = owner.RateOr(cfg.DefaultHourlyRate)
	} else {
		e.MileageRate = cfg.MileageRate
	}

	m, err := ToDataModel(e)
	if err != nil {
		return nil, errors.NewInternalError("failed to encode entry", err)
	}
	if err := s.repo.Create(ctx, m); err != nil {
		s.logger.Error("failed to create entry", "error", err, "user_id", actor.ID)
		return nil, errors.NewInternalError("failed to create entry", err)
	}

	s.publish(ctx, events.NewEntryCreatedEvent(e.ID, e.UserID, string(e.Type), now))

	s.logger.Info("entry created",
		"entry_id", e.ID,
		"user_id", actor.ID,
		"type", e.Type)

	return s.view(e, cfg), nil
}

// Update edits an entry's content. Only the owner may edit, and only while
// the entry is a draft or sent back for changes.
func (s *Service) Update(ctx context.Context, actor Actor, id string, dto UpdateEntryDTO) (*EntryView, error) {
	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if !current.IsOwnedBy(actor.ID) {
		s.logger.Warn("unauthorized entry edit", "entry_id", id, "user_id", actor.ID, "owner_id", current.UserID)
		return nil, errors.ErrUnauthorizedAccess
	}
	if !current.IsEditable() {
		return nil, ErrCannotModify
	}
	if err := dto.Validate(current.Type); err != nil {
		return nil, err
	}

	next := current.Clone()
	dto.ApplyTo(next)
	next.UpdatedAt = s.now().UTC()
	next.Version = current.Version + 1

	if err := s.save(ctx, next, current); err != nil {
		return nil, err
	}

	cfg, err := s.settings.Current(ctx)
	if err != nil {
		return nil, err
	}
	return s.view(next, cfg), nil
}

func (s *Service) Get(ctx context.Context, actor Actor, id string) (*EntryView, error) {
	e, err := s.readable(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	cfg, err := s.settings.Current(ctx)
	if err != nil {
		return nil, err
	}
	return s.view(e, cfg), nil
}

// List returns the actor's own entries, or every entry for the treasurer.
func (s *Service) List(ctx context.Context, actor Actor, filter ListFilter) ([]*EntryView, error) {
	if !actor.IsTreasurer() {
		filter.UserID = actor.ID
	}

	rows, err := s.repo.List(ctx, filter)
	if err != nil {
		s.logger.Error("failed to list entries", "error", err, "user_id", actor.ID)
		return nil, errors.NewInternalError("failed to list entries", err)
	}

	cfg, err := s.settings.Current(ctx)
	if err != nil {
		return nil, err
	}

	views := make([]*EntryView, 0, len(rows))
	for _, row := range rows {
		views = append(views, s.view(FromDataModel(row), cfg))
	}
	return views, nil
}

// All loads every entry, trash included, for aggregate reports.
func (s *Service) All(ctx context.Context) ([]*Entry, error) {
	rows, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, errors.NewInternalError("failed to load entries", err)
	}
	out := make([]*Entry, 0, len(rows))
	for _, row := range rows {
		out = append(out, FromDataModel(row))
	}
	return out, nil
}

// ForUser loads every entry owned by userID, trash included.
func (s *Service) ForUser(ctx context.Context, userID string) ([]*Entry, error) {
	rows, err := s.repo.List(ctx, ListFilter{UserID: userID, IncludeTrash: true})
	if err != nil {
		return nil, errors.NewInternalError("failed to load entries", err)
	}
	out := make([]*Entry, 0, len(rows))
	for _, row := range rows {
		out = append(out, FromDataModel(row))
	}
	return out, nil
}

func (s *Service) Timeline(ctx context.Context, actor Actor, id string) ([]TimelineEvent, error) {
	e, err := s.readable(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	return ReconstructTimeline(e), nil
}

// Transition applies one lifecycle action. The write is a compare-and-set on
// the status and version that were read, so of two concurrent attempts on
// the same entry exactly one wins and the other gets ErrConcurrentUpdate.
func (s *Service) Transition(ctx context.Context, actor Actor, id string, dto TransitionDTO) (*EntryView, error) {
	action, ok := ParseAction(dto.Action)
	if !ok {
		return nil, errors.NewValidationFieldError("action", "unknown action "+dto.Action, errors.ErrCodeValidationFailed)
	}

	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	cfg, err := s.settings.Current(ctx)
	if err != nil {
		return nil, err
	}

	next, err := Apply(current, action, actor, dto.Payload(), cfg, s.now())
	if err != nil {
		s.reject(action, err)
		s.logger.Warn("transition refused",
			"entry_id", id,
			"actor_id", actor.ID,
			"action", action,
			"status", current.Status,
			"error", err)
		return nil, err
	}
	next.Version = current.Version + 1

	if err := s.save(ctx, next, current); err != nil {
		s.reject(action, err)
		return nil, err
	}

	if s.recorder != nil {
		s.recorder.TransitionApplied(string(action), string(current.Status), string(next.Status))
	}

	var notice events.Notice
	if n, ok := NotificationFor(next, action); ok {
		notice = events.Notice{Recipient: n.Recipient, Kind: n.Kind, Message: n.Message}
	}
	s.publish(ctx, events.NewEntryTransitionedEvent(
		next.ID, next.UserID, actor.ID, string(action),
		string(current.Status), string(next.Status), notice, next.UpdatedAt,
	))

	s.logger.Info("entry transitioned",
		"entry_id", next.ID,
		"actor_id", actor.ID,
		"action", action,
		"from", current.Status,
		"status", next.Status)

	return s.view(next, cfg), nil
}

func (s *Service) load(ctx context.Context, id string) (*Entry, error) {
	row, err := s.repo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error("failed to get entry", "error", err, "entry_id", id)
		return nil, errors.NewInternalError("failed to load entry", err)
	}
	if row == nil {
		return nil, ErrEntryNotFound
	}
	return FromDataModel(row), nil
}

func (s *Service) readable(ctx context.Context, actor Actor, id string) (*Entry, error) {
	e, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsTreasurer() && !e.IsOwnedBy(actor.ID) {
		s.logger.Warn("unauthorized access to entry", "entry_id", id, "user_id", actor.ID, "owner_id", e.UserID)
		return nil, errors.ErrUnauthorizedAccess
	}
	return e, nil
}

func (s *Service) save(ctx context.Context, next, current *Entry) error {
	if damaged := current.Damaged(); len(damaged) > 0 {
		s.logger.Error("refusing to overwrite damaged entry", "entry_id", current.ID, "columns", damaged)
		return corruptEntry(current.ID, damaged)
	}
	m, err := ToDataModel(next)
	if err != nil {
		return errors.NewInternalError("failed to encode entry", err)
	}
	err = s.repo.UpdateIfStatus(ctx, m, string(current.Status), current.Version)
	if err == nil {
		return nil
	}
	if stderrors.Is(err, ErrConcurrentUpdate) {
		s.logger.Warn("concurrent entry update lost", "entry_id", current.ID, "expected_status", current.Status, "expected_version", current.Version)
		return err
	}
	s.logger.Error("failed to save entry", "error", err, "entry_id", current.ID)
	return errors.NewInternalError("failed to save entry", err)
}

func (s *Service) view(e *Entry, cfg settings.Settings) *EntryView {
	return &EntryView{Entry: e, Total: e.Total(cfg), Hours: e.Hours()}
}

func (s *Service) publish(ctx context.Context, evt events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, evt); err != nil {
		s.logger.Error("failed to publish event", "event_type", evt.EventType(), "error", err)
	}
}

func (s *Service) reject(action Action, err error) {
	if s.recorder == nil {
		return
	}
	reason := "error"
	if appErr, ok := errors.IsAppError(err); ok {
		reason = string(appErr.Code)
	}
	s.recorder.TransitionRejected(string(action), reason)
}
