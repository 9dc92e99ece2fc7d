package entry_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"time"

	"github.com/frahmantamala/hoa-reimbursement/internal/auth"
	entryDatamodel "github.com/frahmantamala/hoa-reimbursement/internal/core/datamodel/entry"
	"github.com/frahmantamala/hoa-reimbursement/internal/core/events"
	coreUser "github.com/frahmantamala/hoa-reimbursement/internal/core/user"
	"github.com/frahmantamala/hoa-reimbursement/internal/entry"
	entryPostgres "github.com/frahmantamala/hoa-reimbursement/internal/entry/postgres"
	"github.com/frahmantamala/hoa-reimbursement/internal/settings"
	"github.com/frahmantamala/hoa-reimbursement/internal/user"
	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type staticSettings struct {
	cfg settings.Settings
}

func (s *staticSettings) Current(ctx context.Context) (settings.Settings, error) {
	return s.cfg, nil
}

type mockUsers struct {
	users map[string]*user.User
}

func (m *mockUsers) GetByID(ctx context.Context, id string) (*user.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, user.ErrUserNotFound
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, evt events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return nil
}

func (p *recordingPublisher) last() events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.events[len(p.events)-1]
}

type countingRecorder struct {
	mu       sync.Mutex
	applied  map[string]int
	rejected map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{applied: map[string]int{}, rejected: map[string]int{}}
}

func (r *countingRecorder) TransitionApplied(action, from, to string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.applied[action]++
}

func (r *countingRecorder) TransitionRejected(action, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rejected[reason]++
}

func newTestDB() *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	Expect(err).NotTo(HaveOccurred())
	sqlDB, err := db.DB()
	Expect(err).NotTo(HaveOccurred())
	sqlDB.SetMaxOpenConns(1)
	Expect(db.AutoMigrate(&entryDatamodel.Entry{})).To(Succeed())
	return db
}

var _ = Describe("Entry Service", func() {
	var (
		ctx       context.Context
		db        *gorm.DB
		service   *entry.Service
		publisher *recordingPublisher
		recorder  *countingRecorder
		cfg       *staticSettings
		now       time.Time
	)

	draft := func(actor entry.Actor) *entry.EntryView {
		view, err := service.Create(ctx, actor, entry.CreateEntryDTO{
			Type:        entry.TypeWork,
			Category:    "repairs",
			Description: "Fixed the pool gate latch",
			Date:        "2024-05-01",
			StartTime:   "10:00",
			EndTime:     "12:00",
		})
		Expect(err).NotTo(HaveOccurred())
		return view
	}

	BeforeEach(func() {
		ctx = context.Background()
		db = newTestDB()
		now = time.Date(2024, 5, 2, 15, 0, 0, 0, time.UTC)

		override := decimal.NewFromInt(40)
		users := &mockUsers{users: map[string]*user.User{
			owner.ID: {ID: owner.ID, Role: coreUser.RoleMember, HourlyRate: &override},
			other.ID: {ID: other.ID, Role: coreUser.RoleMember},
		}}
		cfg = &staticSettings{cfg: withThreshold(100)}
		publisher = &recordingPublisher{}
		recorder = newCountingRecorder()

		slogger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		service = entry.NewService(entryPostgres.NewEntryRepository(db), cfg, users, publisher, recorder, slogger).
			WithClock(func() time.Time { return now })
	})

	Describe("Create", func() {
		It("snapshots the owner's hourly rate into a new draft", func() {
			view := draft(owner)
			Expect(view.Status).To(Equal(entry.StatusDraft))
			Expect(view.Version).To(Equal(int64(1)))
			Expect(view.HourlyRate.Equal(decimal.NewFromInt(40))).To(BeTrue())
			Expect(view.Total.Equal(decimal.NewFromInt(80))).To(BeTrue())
			Expect(publisher.last().EventType()).To(Equal(events.EventTypeEntryCreated))
		})

		It("falls back to the default rate", func() {
			view := draft(other)
			Expect(view.HourlyRate.Equal(decimal.NewFromInt(25))).To(BeTrue())
		})

		It("rejects an unknown type", func() {
			_, err := service.Create(ctx, owner, entry.CreateEntryDTO{Type: "gift"})
			Expect(errors.Is(err, entry.ErrValidation)).To(BeTrue())
		})
	})

	Describe("Update", func() {
		It("lets the owner edit a draft and bumps the version", func() {
			view := draft(owner)
			desc := "Fixed the pool gate latch and hinge"
			updated, err := service.Update(ctx, owner, view.ID, entry.UpdateEntryDTO{Description: &desc})
			Expect(err).NotTo(HaveOccurred())
			Expect(updated.Description).To(Equal(desc))
			Expect(updated.Version).To(Equal(int64(2)))
		})

		It("refuses edits by anyone else", func() {
			view := draft(owner)
			desc := "mine now"
			_, err := service.Update(ctx, other, view.ID, entry.UpdateEntryDTO{Description: &desc})
			Expect(err).To(HaveOccurred())
		})

		It("refuses edits once submitted", func() {
			view := draft(owner)
			_, err := service.Transition(ctx, owner, view.ID, entry.TransitionDTO{Action: "submit"})
			Expect(err).NotTo(HaveOccurred())

			desc := "late change"
			_, err = service.Update(ctx, owner, view.ID, entry.UpdateEntryDTO{Description: &desc})
			Expect(errors.Is(err, entry.ErrCannotModify)).To(BeTrue())
		})
	})

	Describe("Transition", func() {
		It("persists each step and publishes the notice", func() {
			view := draft(owner)

			submitted, err := service.Transition(ctx, owner, view.ID, entry.TransitionDTO{Action: "submit"})
			Expect(err).NotTo(HaveOccurred())
			Expect(submitted.Status).To(Equal(entry.StatusSubmitted))

			evt, ok := publisher.last().(*events.EntryTransitionedEvent)
			Expect(ok).To(BeTrue())
			Expect(evt.Notice.Recipient).To(Equal(events.RecipientTreasurer))

			approved, err := service.Transition(ctx, t1, view.ID, entry.TransitionDTO{Action: "approve"})
			Expect(err).NotTo(HaveOccurred())
			Expect(approved.Status).To(Equal(entry.StatusApproved))
			Expect(approved.Version).To(Equal(int64(3)))

			stored, err := service.Get(ctx, owner, view.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.Status).To(Equal(entry.StatusApproved))
			Expect(stored.AuditLog).To(HaveLen(2))
			Expect(recorder.applied["approve"]).To(Equal(1))
		})

		It("reports an unknown action as a validation error", func() {
			view := draft(owner)
			_, err := service.Transition(ctx, owner, view.ID, entry.TransitionDTO{Action: "archive"})
			Expect(errors.Is(err, entry.ErrValidation)).To(BeTrue())
		})

		It("reports a missing entry", func() {
			_, err := service.Transition(ctx, t1, "missing", entry.TransitionDTO{Action: "approve"})
			Expect(errors.Is(err, entry.ErrEntryNotFound)).To(BeTrue())
		})

		It("lets exactly one of two concurrent approvals win", func() {
			view := draft(owner)
			_, err := service.Transition(ctx, owner, view.ID, entry.TransitionDTO{Action: "submit"})
			Expect(err).NotTo(HaveOccurred())

			var wg sync.WaitGroup
			results := make([]error, 2)
			for i, actor := range []entry.Actor{t1, t2} {
				wg.Add(1)
				go func(i int, actor entry.Actor) {
					defer GinkgoRecover()
					defer wg.Done()
					_, results[i] = service.Transition(ctx, actor, view.ID, entry.TransitionDTO{Action: "approve"})
				}(i, actor)
			}
			wg.Wait()

			successes := 0
			for _, err := range results {
				if err == nil {
					successes++
					continue
				}
				Expect(errors.Is(err, entry.ErrConcurrentUpdate) || errors.Is(err, entry.ErrInvalidTransition)).To(BeTrue())
			}
			Expect(successes).To(Equal(1))

			stored, err := service.Get(ctx, t1, view.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.AuditLog).To(HaveLen(2))
		})
	})

	Describe("List", func() {
		It("shows members only their own entries and hides trash", func() {
			mine := draft(owner)
			draft(other)
			_, err := service.Transition(ctx, owner, mine.ID, entry.TransitionDTO{Action: "trash"})
			Expect(err).NotTo(HaveOccurred())
			draft(owner)

			views, err := service.List(ctx, owner, entry.ListFilter{})
			Expect(err).NotTo(HaveOccurred())
			Expect(views).To(HaveLen(1))

			all, err := service.List(ctx, t1, entry.ListFilter{})
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(HaveLen(2))

			trashed, err := service.List(ctx, owner, entry.ListFilter{Status: entry.StatusTrash})
			Expect(err).NotTo(HaveOccurred())
			Expect(trashed).To(HaveLen(1))
		})

		It("keeps other members out of an entry", func() {
			view := draft(owner)
			_, err := service.Get(ctx, other, view.ID)
			Expect(err).To(HaveOccurred())
			_, err = service.Timeline(ctx, other, view.ID)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Repository compare-and-set", func() {
		It("refuses a write against a stale version", func() {
			view := draft(owner)
			repo := entryPostgres.NewEntryRepository(db)

			row, err := repo.GetByID(ctx, view.ID)
			Expect(err).NotTo(HaveOccurred())
			row.Description = "first"
			row.Version = 2
			Expect(repo.UpdateIfStatus(ctx, row, "draft", 1)).To(Succeed())

			row.Description = "second"
			row.Version = 2
			err = repo.UpdateIfStatus(ctx, row, "draft", 1)
			Expect(errors.Is(err, entry.ErrConcurrentUpdate)).To(BeTrue())

			stored, err := repo.GetByID(ctx, view.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.Description).To(Equal("first"))
		})
	})

	Describe("Damaged history", func() {
		const brokenLog = `[{"action":"submitted","timestamp":"2024-05-01T10:00:00Z","actor_id":"m1"},{"action":"x","timestamp":12}]`

		var view *entry.EntryView

		BeforeEach(func() {
			view = draft(owner)
			Expect(db.Model(&entryDatamodel.Entry{}).
				Where("id = ?", view.ID).
				Update("audit_log", datatypes.JSON(brokenLog)).Error).To(Succeed())
		})

		storedLog := func() string {
			row, err := entryPostgres.NewEntryRepository(db).GetByID(ctx, view.ID)
			Expect(err).NotTo(HaveOccurred())
			return string(row.AuditLog)
		}

		It("still reads the entry with an empty history", func() {
			stored, err := service.Get(ctx, owner, view.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.AuditLog).To(BeEmpty())
			Expect(stored.Damaged()).To(ConsistOf("audit_log"))
		})

		It("refuses a transition instead of overwriting the log", func() {
			_, err := service.Transition(ctx, owner, view.ID, entry.TransitionDTO{Action: "submit"})
			Expect(errors.Is(err, entry.ErrCorruptEntry)).To(BeTrue())
			Expect(storedLog()).To(MatchJSON(brokenLog))
			Expect(recorder.rejected["CORRUPT_ENTRY"]).To(Equal(1))
		})

		It("refuses an edit instead of overwriting the log", func() {
			desc := "Fixed the pool gate latch again"
			_, err := service.Update(ctx, owner, view.ID, entry.UpdateEntryDTO{Description: &desc})
			Expect(errors.Is(err, entry.ErrCorruptEntry)).To(BeTrue())
			Expect(storedLog()).To(MatchJSON(brokenLog))
		})

		It("will not encode a damaged entry for storage", func() {
			row, err := entryPostgres.NewEntryRepository(db).GetByID(ctx, view.ID)
			Expect(err).NotTo(HaveOccurred())

			loaded := entry.FromDataModel(row)
			_, err = entry.ToDataModel(loaded.Clone())
			Expect(errors.Is(err, entry.ErrCorruptEntry)).To(BeTrue())
		})
	})

	Describe("Handler", func() {
		var router chi.Router

		BeforeEach(func() {
			handler := entry.NewHandler(service)
			router = chi.NewRouter()
			router.Post("/entries", handler.CreateEntry)
			router.Post("/entries/{id}/transitions", handler.TransitionEntry)
			router.Get("/entries/{id}/timeline", handler.GetTimeline)
		})

		do := func(method, path string, body interface{}, u *auth.User) *httptest.ResponseRecorder {
			var buf bytes.Buffer
			if body != nil {
				Expect(json.NewEncoder(&buf).Encode(body)).To(Succeed())
			}
			req := httptest.NewRequest(method, path, &buf)
			req = req.WithContext(auth.WithUser(req.Context(), u))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			return rec
		}

		member := &auth.User{ID: owner.ID, Name: owner.Name, Role: coreUser.RoleMember}
		treasurer := &auth.User{ID: t1.ID, Name: t1.Name, Role: coreUser.RoleTreasurer}

		It("maps transition errors to HTTP statuses", func() {
			view := draft(owner)

			rec := do(http.MethodPost, "/entries/"+view.ID+"/transitions", map[string]string{"action": "approve"}, member)
			Expect(rec.Code).To(Equal(http.StatusConflict))
			Expect(rec.Body.String()).To(ContainSubstring("INVALID_TRANSITION"))

			rec = do(http.MethodPost, "/entries/"+view.ID+"/transitions", map[string]string{"action": "submit"}, member)
			Expect(rec.Code).To(Equal(http.StatusOK))

			rec = do(http.MethodPost, "/entries/"+view.ID+"/transitions", map[string]string{"action": "approve"}, member)
			Expect(rec.Code).To(Equal(http.StatusForbidden))

			rec = do(http.MethodPost, "/entries/"+view.ID+"/transitions", map[string]string{"action": "decline"}, treasurer)
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})

		It("creates an entry and serves its timeline", func() {
			rec := do(http.MethodPost, "/entries", map[string]string{
				"type": "purchase", "category": "supplies", "description": "Mulch", "date": "2024-05-01",
			}, member)
			Expect(rec.Code).To(Equal(http.StatusCreated))

			var created map[string]interface{}
			Expect(json.Unmarshal(rec.Body.Bytes(), &created)).To(Succeed())
			id := created["id"].(string)

			rec = do(http.MethodGet, "/entries/"+id+"/timeline", nil, member)
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(ContainSubstring(`"type":"created"`))
		})
	})
})
