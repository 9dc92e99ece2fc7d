package nudge_test

import (
	"time"

	coreUser "github.com/frahmantamala/hoa-reimbursement/internal/core/user"
	"github.com/frahmantamala/hoa-reimbursement/internal/entry"
	"github.com/frahmantamala/hoa-reimbursement/internal/nudge"
	"github.com/frahmantamala/hoa-reimbursement/internal/settings"
	"github.com/frahmantamala/hoa-reimbursement/internal/user"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var now = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func daysAgo(n int) *time.Time {
	t := now.Add(-time.Duration(n) * 24 * time.Hour)
	return &t
}

func owned(id string, status entry.Status) *entry.Entry {
	return &entry.Entry{ID: id, UserID: "m1", Type: entry.TypeWork, Status: status, CreatedAt: *daysAgo(1)}
}

func keys(banners []nudge.Banner) []string {
	out := make([]string, 0, len(banners))
	for _, b := range banners {
		out = append(out, b.Key)
	}
	return out
}

var _ = Describe("ComputeBanners", func() {
	var (
		member *user.User
		cfg    settings.Settings
	)

	BeforeEach(func() {
		member = &user.User{ID: "m1", Role: coreUser.RoleMember}
		cfg = settings.Defaults()
	})

	It("orders every kind of banner by priority", func() {
		rejected := owned("r1", entry.StatusRejected)
		rejected.ReviewedAt = daysAgo(2)
		rejected.ReviewerNotes = "fix receipt"
		needsInfo := owned("n1", entry.StatusNeedsInfo)
		needsInfo.ReviewedAt = daysAgo(1)
		stale := owned("d1", entry.StatusDraft)
		stale.CreatedAt = *daysAgo(10)
		approved := owned("a1", entry.StatusApproved)
		approved.ReviewedAt = daysAgo(3)

		nudges := []*nudge.Nudge{{ID: "z1", RecipientID: "m1", Template: nudge.TemplateMissingReceipt}}

		banners := nudge.ComputeBanners(
			[]*entry.Entry{approved, stale, needsInfo},
			[]*entry.Entry{rejected},
			nudges, member, cfg, now,
		)

		Expect(keys(banners)).To(Equal([]string{
			"rejected:r1", "needs_info:n1", "nudge:z1", nudge.BannerKeyStaleDrafts, nudge.BannerKeyRecentApprovals,
		}))
		Expect(banners[0].Message).To(ContainSubstring("fix receipt"))
		Expect(banners[0].Action.Target).To(Equal("r1"))
		Expect(banners[2].Persistent).To(BeTrue())
		Expect(banners[2].Message).To(Equal(nudge.TemplateMissingReceipt.Render("")))
	})

	It("surfaces the most recently reviewed rejection", func() {
		older := owned("r1", entry.StatusRejected)
		older.ReviewedAt = daysAgo(5)
		newer := owned("r2", entry.StatusRejected)
		newer.ReviewedAt = daysAgo(1)

		banners := nudge.ComputeBanners([]*entry.Entry{older, newer}, nil, nil, member, cfg, now)
		Expect(keys(banners)).To(Equal([]string{"rejected:r2"}))
	})

	It("shows one banner per open nudge in insertion order and caps the list", func() {
		read := now
		nudges := []*nudge.Nudge{
			{ID: "a", RecipientID: "m1", Template: nudge.TemplateGeneral},
			{ID: "b", RecipientID: "m1", Template: nudge.TemplateGeneral, ReadAt: &read},
			{ID: "c", RecipientID: "m1", Template: nudge.TemplateGeneral, DismissedAt: &read},
			{ID: "d", RecipientID: "other", Template: nudge.TemplateGeneral},
			{ID: "e", RecipientID: "m1", Template: nudge.TemplateGeneral},
			{ID: "f", RecipientID: "m1", Template: nudge.TemplateGeneral},
			{ID: "g", RecipientID: "m1", Template: nudge.TemplateGeneral},
			{ID: "h", RecipientID: "m1", Template: nudge.TemplateGeneral},
			{ID: "i", RecipientID: "m1", Template: nudge.TemplateGeneral},
		}
		banners := nudge.ComputeBanners(nil, nil, nudges, member, cfg, now)
		Expect(keys(banners)).To(Equal([]string{"nudge:a", "nudge:e", "nudge:f", "nudge:g", "nudge:h"}))
	})

	It("ignores other members' entries and the trash", func() {
		foreign := owned("x", entry.StatusRejected)
		foreign.UserID = "m2"
		trashed := owned("t", entry.StatusTrash)
		trashed.StatusBeforeTrash = entry.StatusRejected

		Expect(nudge.ComputeBanners([]*entry.Entry{foreign, trashed}, nil, nil, member, cfg, now)).To(BeEmpty())
	})

	It("skips approvals older than a week", func() {
		old := owned("a1", entry.StatusPaid)
		old.ReviewedAt = daysAgo(8)
		Expect(nudge.ComputeBanners([]*entry.Entry{old}, nil, nil, member, cfg, now)).To(BeEmpty())

		old.SecondApprovedAt = daysAgo(6)
		Expect(keys(nudge.ComputeBanners([]*entry.Entry{old}, nil, nil, member, cfg, now))).
			To(Equal([]string{nudge.BannerKeyRecentApprovals}))
	})

	It("counts a draft as stale from the day the window is reached", func() {
		atWindow := owned("d1", entry.StatusDraft)
		atWindow.CreatedAt = *daysAgo(cfg.StaleDraftDays)
		justShort := owned("d2", entry.StatusDraft)
		justShort.CreatedAt = daysAgo(cfg.StaleDraftDays).Add(time.Minute)

		banners := nudge.ComputeBanners([]*entry.Entry{justShort}, nil, nil, member, cfg, now)
		Expect(keys(banners)).NotTo(ContainElement(nudge.BannerKeyStaleDrafts))

		banners = nudge.ComputeBanners([]*entry.Entry{atWindow, justShort}, nil, nil, member, cfg, now)
		Expect(keys(banners)).To(ContainElement(nudge.BannerKeyStaleDrafts))
		Expect(banners[0].Message).To(HavePrefix("You have 1 draft(s)"))
	})

	It("is pure", func() {
		stale := owned("d1", entry.StatusDraft)
		stale.CreatedAt = *daysAgo(30)
		in := []*entry.Entry{stale}
		Expect(nudge.ComputeBanners(in, nil, nil, member, cfg, now)).
			To(Equal(nudge.ComputeBanners(in, nil, nil, member, cfg, now)))
	})

	It("returns nothing without a user", func() {
		Expect(nudge.ComputeBanners([]*entry.Entry{owned("r", entry.StatusRejected)}, nil, nil, nil, cfg, now)).To(BeNil())
	})
})

var _ = Describe("FilterDismissed", func() {
	It("drops session dismissals but keeps nudges", func() {
		banners := []nudge.Banner{
			{Key: "rejected:r1"},
			{Key: "nudge:z1", Persistent: true},
			{Key: nudge.BannerKeyStaleDrafts},
		}
		out := nudge.FilterDismissed(banners, map[string]bool{"rejected:r1": true, "nudge:z1": true})
		Expect(keys(out)).To(Equal([]string{"nudge:z1", nudge.BannerKeyStaleDrafts}))
	})
})
