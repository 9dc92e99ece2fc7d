package metrics_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"time"

	appErrors "github.com/frahmantamala/hoa-reimbursement/internal"
	"github.com/frahmantamala/hoa-reimbursement/internal/auth"
	coreUser "github.com/frahmantamala/hoa-reimbursement/internal/core/user"
	"github.com/frahmantamala/hoa-reimbursement/internal/entry"
	"github.com/frahmantamala/hoa-reimbursement/internal/metrics"
	"github.com/frahmantamala/hoa-reimbursement/internal/money"
	"github.com/frahmantamala/hoa-reimbursement/internal/settings"
	"github.com/frahmantamala/hoa-reimbursement/internal/user"
	"github.com/frahmantamala/hoa-reimbursement/pkg/telemetry"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
)

var now = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func daysAgo(n int) time.Time {
	return now.Add(-time.Duration(n) * 24 * time.Hour)
}

func ptr(t time.Time) *time.Time { return &t }

func work(id, owner string, status entry.Status, created time.Time) *entry.Entry {
	return &entry.Entry{
		ID: id, UserID: owner, Type: entry.TypeWork, Status: status,
		Category: "repairs", Description: "Replaced the clubhouse light fixtures",
		Date: created, CreatedAt: created,
		StartTime: "09:00", EndTime: "10:00", HourlyRate: decimal.NewFromInt(20),
	}
}

func purchase(id, owner string, status entry.Status, created time.Time) *entry.Entry {
	return &entry.Entry{
		ID: id, UserID: owner, Type: entry.TypePurchase, Status: status,
		Category: "supplies", Date: created, CreatedAt: created,
		Items: []money.LineItem{{Name: "mulch", Quantity: decimal.NewFromInt(1), UnitCost: decimal.NewFromInt(30)}},
	}
}

var _ = Describe("Compute", func() {
	var cfg settings.Settings

	BeforeEach(func() {
		cfg = settings.Defaults()
	})

	Describe("pending queue", func() {
		It("includes needs-info work but only submitted purchases", func() {
			w := work("w1", "m1", entry.StatusNeedsInfo, daysAgo(3))
			p := purchase("p1", "m1", entry.StatusNeedsInfo, daysAgo(3))
			q := purchase("p2", "m1", entry.StatusSubmitted, daysAgo(3))

			snap := metrics.Compute([]*entry.Entry{w}, []*entry.Entry{p, q}, nil, cfg, now)
			ids := []string{}
			for _, item := range snap.PendingQueue {
				ids = append(ids, item.EntryID)
			}
			Expect(ids).To(ConsistOf("w1", "p2"))
		})

		It("colors the review age", func() {
			fresh := work("a", "m1", entry.StatusSubmitted, daysAgo(10))
			fresh.SubmittedAt = ptr(daysAgo(2))
			warn := work("b", "m1", entry.StatusSubmitted, daysAgo(10))
			warn.SubmittedAt = ptr(daysAgo(5))
			late := work("c", "m1", entry.StatusAwaitingSecondApproval, daysAgo(10))
			late.SubmittedAt = ptr(daysAgo(6))
			never := work("d", "m1", entry.StatusSubmitted, daysAgo(10))

			snap := metrics.Compute([]*entry.Entry{fresh, warn, late, never}, nil, nil, cfg, now)

			Expect(snap.PendingQueue).To(HaveLen(4))
			Expect(snap.PendingQueue[0].EntryID).To(Equal("c"))
			Expect(snap.PendingQueue[0].SLA).To(Equal(metrics.SLABreach))
			Expect(snap.PendingQueue[1].SLA).To(Equal(metrics.SLAWarning))
			Expect(snap.PendingQueue[2].SLA).To(Equal(metrics.SLAOnTrack))
			Expect(snap.PendingQueue[3].AgeDays).To(Equal(0))
			Expect(snap.SLABreaches).To(Equal(1))
		})
	})

	Describe("stale drafts", func() {
		It("lists a draft created ten days ago with staleDays 10", func() {
			d := work("w1", "m1", entry.StatusDraft, daysAgo(10))
			fresh := work("w2", "m1", entry.StatusDraft, daysAgo(3))
			cfg.StaleDraftDays = 7

			snap := metrics.Compute([]*entry.Entry{d, fresh}, nil, nil, cfg, now)
			Expect(snap.StaleDrafts).To(HaveLen(1))
			Expect(snap.StaleDrafts[0].EntryID).To(Equal("w1"))
			Expect(snap.StaleDrafts[0].StaleDays).To(Equal(10))
		})

		It("uses the latest audit timestamp and sorts most stale first", func() {
			touched := work("w1", "m1", entry.StatusDraft, daysAgo(20))
			touched.AuditLog = []entry.AuditRecord{{Action: "restored", Timestamp: daysAgo(8)}}
			older := purchase("p1", "m1", entry.StatusDraft, daysAgo(12))

			snap := metrics.Compute([]*entry.Entry{touched}, []*entry.Entry{older}, nil, cfg, now)
			Expect(snap.StaleDrafts).To(HaveLen(2))
			Expect(snap.StaleDrafts[0].EntryID).To(Equal("p1"))
			Expect(snap.StaleDrafts[1].StaleDays).To(Equal(8))
		})
	})

	Describe("engagement and adoption", func() {
		It("classifies members by their latest non-trash entry", func() {
			users := []*user.User{
				{ID: "active", Role: coreUser.RoleMember},
				{ID: "idle", Role: coreUser.RoleMember},
				{ID: "gone", Role: coreUser.RoleMember},
				{ID: "new", Role: coreUser.RoleMember},
				{ID: "t1", Role: coreUser.RoleTreasurer},
			}
			trashed := work("x", "gone", entry.StatusTrash, daysAgo(1))
			entries := []*entry.Entry{
				work("a", "active", entry.StatusDraft, daysAgo(14)),
				work("b", "idle", entry.StatusPaid, daysAgo(20)),
				work("c", "gone", entry.StatusPaid, daysAgo(45)),
				trashed,
			}

			snap := metrics.Compute(entries, nil, users, cfg, now)
			status := map[string]metrics.Engagement{}
			for _, m := range snap.Engagement {
				status[m.UserID] = m.Status
			}
			Expect(status["active"]).To(Equal(metrics.EngagementActive))
			Expect(status["idle"]).To(Equal(metrics.EngagementIdle))
			Expect(status["gone"]).To(Equal(metrics.EngagementInactive))
			Expect(status["new"]).To(Equal(metrics.EngagementNew))
			Expect(snap.AdoptionRate).To(Equal(0.25))
		})

		It("returns zero adoption without members", func() {
			Expect(metrics.Compute(nil, nil, nil, cfg, now).AdoptionRate).To(BeZero())
		})
	})

	Describe("funnel", func() {
		It("counts this year's entries and the drop-off between stages", func() {
			entries := []*entry.Entry{
				work("a", "m1", entry.StatusDraft, daysAgo(1)),
				work("b", "m1", entry.StatusSubmitted, daysAgo(1)),
				work("c", "m1", entry.StatusApproved, daysAgo(1)),
				work("d", "m1", entry.StatusPaid, daysAgo(1)),
				work("e", "m1", entry.StatusTrash, daysAgo(1)),
				work("f", "m1", entry.StatusPaid, time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC)),
			}
			funnel := metrics.Compute(entries, nil, nil, cfg, now).Funnel

			Expect(funnel.Year).To(Equal(2024))
			Expect(funnel.Stages).To(Equal([]metrics.FunnelStage{
				{Name: "created", Count: 4},
				{Name: "submitted", Count: 3, DropOff: 1},
				{Name: "approved", Count: 2, DropOff: 1},
				{Name: "paid", Count: 1, DropOff: 1},
			}))
		})
	})

	Describe("pipeline and rates", func() {
		It("sums drafts and pending entries by kind", func() {
			entries := []*entry.Entry{
				work("a", "m1", entry.StatusDraft, daysAgo(1)),     // 20
				work("b", "m1", entry.StatusNeedsInfo, daysAgo(1)), // 20
				work("c", "m1", entry.StatusApproved, daysAgo(1)),
			}
			purchases := []*entry.Entry{
				purchase("p", "m1", entry.StatusSubmitted, daysAgo(1)), // 30
				purchase("q", "m1", entry.StatusNeedsInfo, daysAgo(1)),
			}
			snap := metrics.Compute(entries, purchases, nil, cfg, now)
			Expect(snap.PipelineValue.Equal(decimal.NewFromInt(70))).To(BeTrue())
		})

		It("computes this month's rejection rate", func() {
			entries := []*entry.Entry{
				work("a", "m1", entry.StatusRejected, daysAgo(1)),
				work("b", "m1", entry.StatusApproved, daysAgo(1)),
				work("c", "m1", entry.StatusPaid, daysAgo(2)),
				work("d", "m1", entry.StatusRejected, daysAgo(40)),
			}
			Expect(metrics.Compute(entries, nil, nil, cfg, now).RejectionRate).To(BeNumerically("~", 1.0/3.0, 1e-9))
		})

		It("returns zero rates on empty input", func() {
			snap := metrics.Compute(nil, nil, nil, cfg, now)
			Expect(snap.RejectionRate).To(BeZero())
			Expect(snap.BudgetUtilization).To(BeZero())
			Expect(snap.AverageQuality).To(BeZero())
		})

		It("relates approved spend to the annual budget", func() {
			cfg.AnnualBudget = decimal.NewFromInt(200)
			entries := []*entry.Entry{
				work("a", "m1", entry.StatusApproved, daysAgo(1)),
				work("b", "m1", entry.StatusPaid, daysAgo(1)),
			}
			snap := metrics.Compute(entries, nil, nil, cfg, now)
			Expect(snap.BudgetSpent.Equal(decimal.NewFromInt(40))).To(BeTrue())
			Expect(snap.BudgetUtilization).To(BeNumerically("~", 0.2, 1e-9))
		})
	})

	It("tolerates nil and corrupt entries", func() {
		broken := &entry.Entry{ID: "x", Type: "unknown", Status: "archived"}
		good := work("a", "m1", entry.StatusSubmitted, daysAgo(1))
		snap := metrics.Compute([]*entry.Entry{nil, broken, good}, []*entry.Entry{nil}, []*user.User{nil}, cfg, now)
		Expect(snap.PendingQueue).To(HaveLen(1))
	})
})

var _ = Describe("QualityScore", func() {
	It("stays within 0 and 100", func() {
		Expect(metrics.QualityScore(&entry.Entry{Type: entry.TypeWork})).To(Equal(0))
		full := &entry.Entry{
			Type:         entry.TypeWork,
			Description:  "Trimmed every hedge along the north fence line",
			Materials:    []money.LineItem{{Name: "bags"}},
			BeforePhotos: []string{"before.jpg"},
			Location:     "North fence",
			Notes:        "Took longer due to rain",
		}
		Expect(metrics.QualityScore(full)).To(Equal(100))
	})

	It("gives half credit for a short description", func() {
		e := &entry.Entry{Type: entry.TypePurchase, Description: "Paint for gate"}
		Expect(metrics.QualityScore(e)).To(Equal(13))
	})

	It("never drops when a factor is added", func() {
		e := &entry.Entry{Type: entry.TypeWork, Description: "short"}
		before := metrics.QualityScore(e)
		e.AfterPhotos = []string{"after.jpg"}
		Expect(metrics.QualityScore(e)).To(BeNumerically(">=", before))

		p := &entry.Entry{Type: entry.TypePurchase}
		base := metrics.QualityScore(p)
		for _, add := range []func(){
			func() { p.ReceiptImages = []string{"r.jpg"} },
			func() { p.Items = []money.LineItem{{Name: "x"}} },
			func() { p.PaymentMethod = "card" },
			func() { p.Notes = "bought at the hardware store" },
			func() { p.Description = "Supplies for the spring cleanup day" },
		} {
			add()
			next := metrics.QualityScore(p)
			Expect(next).To(BeNumerically(">=", base))
			base = next
		}
		Expect(base).To(Equal(100))
	})
})

type fakeEntries struct{ entries []*entry.Entry }

func (f *fakeEntries) All(ctx context.Context) ([]*entry.Entry, error) { return f.entries, nil }

type fakeUsers struct{ users []*user.User }

func (f *fakeUsers) All(ctx context.Context) ([]*user.User, error) { return f.users, nil }

type fakeSettings struct{}

func (fakeSettings) Current(ctx context.Context) (settings.Settings, error) {
	return settings.Defaults(), nil
}

type captureGauges struct{ last telemetry.Gauges }

func (c *captureGauges) ObserveGauges(g telemetry.Gauges) { c.last = g }

var _ = Describe("Service", func() {
	var (
		service *metrics.Service
		gauges  *captureGauges
	)

	BeforeEach(func() {
		late := work("w1", "m1", entry.StatusSubmitted, daysAgo(10))
		late.SubmittedAt = ptr(daysAgo(9))
		gauges = &captureGauges{}
		service = metrics.NewService(
			&fakeEntries{entries: []*entry.Entry{late, purchase("p1", "m1", entry.StatusDraft, daysAgo(9))}},
			&fakeUsers{users: []*user.User{{ID: "m1", Role: coreUser.RoleMember}}},
			fakeSettings{}, gauges, nil,
		).WithClock(func() time.Time { return now })
	})

	It("splits entries by kind and refreshes the gauges", func() {
		snap, err := service.Snapshot(context.Background(), true)
		Expect(err).NotTo(HaveOccurred())
		Expect(snap.PendingQueue).To(HaveLen(1))
		Expect(snap.StaleDrafts).To(HaveLen(1))
		Expect(gauges.last.PendingReviews).To(Equal(1))
		Expect(gauges.last.SLABreaches).To(Equal(1))
		Expect(gauges.last.PipelineValue).To(Equal(50.0))
	})

	It("is treasurer only", func() {
		_, err := service.Snapshot(context.Background(), false)
		Expect(errors.Is(err, appErrors.ErrUnauthorizedAccess)).To(BeTrue())
	})

	It("serves the snapshot over HTTP", func() {
		handler := metrics.NewHandler(service)
		req := httptest.NewRequest(http.MethodGet, "/metrics/operational", nil)
		req = req.WithContext(auth.WithUser(req.Context(), &auth.User{ID: "t1", Role: coreUser.RoleTreasurer}))
		rec := httptest.NewRecorder()

		handler.GetOperationalMetrics(rec, req)

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring(`"sla_breaches":1`))
	})
})
