// Package metrics aggregates entries and users into the treasurer's
// operational snapshot. Compute is pure; the service only gathers inputs.
package metrics

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/frahmantamala/hoa-reimbursement/internal/entry"
	"github.com/frahmantamala/hoa-reimbursement/internal/settings"
	"github.com/frahmantamala/hoa-reimbursement/internal/user"
	"github.com/shopspring/decimal"
)

const day = 24 * time.Hour

type SLAColor string

const (
	SLAOnTrack SLAColor = "on_track"
	SLAWarning SLAColor = "warning"
	SLABreach  SLAColor = "breach"
)

type Engagement string

const (
	EngagementActive   Engagement = "active"
	EngagementIdle     Engagement = "idle"
	EngagementInactive Engagement = "inactive"
	EngagementNew      Engagement = "new"
)

const (
	activeWithinDays = 14
	idleWithinDays   = 30
)

type PendingItem struct {
	EntryID     string          `json:"entry_id"`
	UserID      string          `json:"user_id"`
	Type        entry.Type      `json:"type"`
	Status      entry.Status    `json:"status"`
	SubmittedAt *time.Time      `json:"submitted_at,omitempty"`
	AgeDays     int             `json:"age_days"`
	SLA         SLAColor        `json:"sla"`
	Total       decimal.Decimal `json:"total"`
}

type StaleDraft struct {
	EntryID      string     `json:"entry_id"`
	UserID       string     `json:"user_id"`
	Type         entry.Type `json:"type"`
	LastActivity time.Time  `json:"last_activity"`
	StaleDays    int        `json:"stale_days"`
}

type MemberEngagement struct {
	UserID      string     `json:"user_id"`
	Name        string     `json:"name"`
	Role        user.Role  `json:"role"`
	Status      Engagement `json:"status"`
	LastEntryAt *time.Time `json:"last_entry_at,omitempty"`
	DaysIdle    int        `json:"days_idle"`
}

type FunnelStage struct {
	Name    string `json:"name"`
	Count   int    `json:"count"`
	DropOff int    `json:"drop_off"`
}

type Funnel struct {
	Year   int           `json:"year"`
	Stages []FunnelStage `json:"stages"`
}

type Snapshot struct {
	GeneratedAt       time.Time          `json:"generated_at"`
	PendingQueue      []PendingItem      `json:"pending_queue"`
	SLABreaches       int                `json:"sla_breaches"`
	StaleDrafts       []StaleDraft       `json:"stale_drafts"`
	Engagement        []MemberEngagement `json:"engagement"`
	Funnel            Funnel             `json:"funnel"`
	PipelineValue     decimal.Decimal    `json:"pipeline_value"`
	RejectionRate     float64            `json:"rejection_rate"`
	AdoptionRate      float64            `json:"adoption_rate"`
	AverageQuality    int                `json:"average_quality"`
	BudgetSpent       decimal.Decimal    `json:"budget_spent"`
	BudgetUtilization float64            `json:"budget_utilization"`
}

// Compute builds the full snapshot. Work and purchase entries are passed
// separately because several rules differ by kind; nil entries and users are
// ignored, and missing timestamps count as absent.
func Compute(entries, purchases []*entry.Entry, users []*user.User, cfg settings.Settings, now time.Time) Snapshot {
	now = now.UTC()
	all := make([]*entry.Entry, 0, len(entries)+len(purchases))
	for _, e := range entries {
		if e != nil {
			all = append(all, e)
		}
	}
	for _, p := range purchases {
		if p != nil {
			all = append(all, p)
		}
	}

	snap := Snapshot{
		GeneratedAt:   now,
		PendingQueue:  PendingQueue(all, cfg, now),
		StaleDrafts:   StaleDrafts(all, cfg, now),
		Engagement:    MemberEngagementFor(users, all, now),
		Funnel:        SubmissionFunnel(all, now),
		PipelineValue: PipelineValue(all, cfg),
		RejectionRate: RejectionRate(all, now),
	}
	for _, item := range snap.PendingQueue {
		if item.SLA == SLABreach {
			snap.SLABreaches++
		}
	}
	snap.AdoptionRate = AdoptionRate(snap.Engagement)
	snap.AverageQuality = AverageQuality(all)
	snap.BudgetSpent, snap.BudgetUtilization = BudgetUse(all, cfg, now)
	return snap
}

// IsPending reports whether the entry is waiting on the treasurer. Work
// entries asking for more information still count; purchases only count
// while submitted.
func IsPending(e *entry.Entry) bool {
	switch e.Type {
	case entry.TypeWork:
		return e.Status == entry.StatusSubmitted ||
			e.Status == entry.StatusAwaitingSecondApproval ||
			e.Status == entry.StatusNeedsInfo
	case entry.TypePurchase:
		return e.Status == entry.StatusSubmitted
	}
	return false
}

func inPipeline(e *entry.Entry) bool {
	return e.Status == entry.StatusDraft || IsPending(e)
}

// ReviewAge is whole days since submission, or 0 when never submitted.
func ReviewAge(e *entry.Entry, now time.Time) int {
	if e.SubmittedAt == nil || e.SubmittedAt.IsZero() {
		return 0
	}
	return wholeDays(now.Sub(*e.SubmittedAt))
}

func SLAFor(ageDays int) SLAColor {
	switch {
	case ageDays <= 2:
		return SLAOnTrack
	case ageDays <= 5:
		return SLAWarning
	default:
		return SLABreach
	}
}

// PendingQueue lists pending entries oldest first.
func PendingQueue(all []*entry.Entry, cfg settings.Settings, now time.Time) []PendingItem {
	queue := make([]PendingItem, 0)
	for _, e := range all {
		if !IsPending(e) {
			continue
		}
		age := ReviewAge(e, now)
		queue = append(queue, PendingItem{
			EntryID:     e.ID,
			UserID:      e.UserID,
			Type:        e.Type,
			Status:      e.Status,
			SubmittedAt: e.SubmittedAt,
			AgeDays:     age,
			SLA:         SLAFor(age),
			Total:       e.Total(cfg),
		})
	}
	sort.SliceStable(queue, func(i, j int) bool {
		return queue[i].AgeDays > queue[j].AgeDays
	})
	return queue
}

// StaleDrafts lists drafts idle for at least the configured window, most
// stale first.
func StaleDrafts(all []*entry.Entry, cfg settings.Settings, now time.Time) []StaleDraft {
	threshold := cfg.StaleAfter()
	out := make([]StaleDraft, 0)
	for _, e := range all {
		if e.Status != entry.StatusDraft {
			continue
		}
		last := e.LastActivity()
		if last.IsZero() {
			continue
		}
		days := wholeDays(now.Sub(last))
		if days < threshold {
			continue
		}
		out = append(out, StaleDraft{
			EntryID:      e.ID,
			UserID:       e.UserID,
			Type:         e.Type,
			LastActivity: last,
			StaleDays:    days,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StaleDays > out[j].StaleDays
	})
	return out
}

func Classify(daysIdle int) Engagement {
	switch {
	case daysIdle <= activeWithinDays:
		return EngagementActive
	case daysIdle <= idleWithinDays:
		return EngagementIdle
	default:
		return EngagementInactive
	}
}

// MemberEngagementFor classifies every user by their most recent entry,
// ignoring trashed ones. Users without entries are New.
func MemberEngagementFor(users []*user.User, all []*entry.Entry, now time.Time) []MemberEngagement {
	latest := make(map[string]time.Time)
	for _, e := range all {
		if e.Status == entry.StatusTrash {
			continue
		}
		at := e.ActivityDate()
		if at.IsZero() {
			continue
		}
		if at.After(latest[e.UserID]) {
			latest[e.UserID] = at
		}
	}

	out := make([]MemberEngagement, 0, len(users))
	for _, u := range users {
		if u == nil {
			continue
		}
		m := MemberEngagement{UserID: u.ID, Name: u.Name, Role: u.Role, Status: EngagementNew}
		if at, ok := latest[u.ID]; ok {
			m.LastEntryAt = &at
			m.DaysIdle = wholeDays(now.Sub(at))
			m.Status = Classify(m.DaysIdle)
		}
		out = append(out, m)
	}
	return out
}

// AdoptionRate is the share of members classified active. Treasurers are
// not counted.
func AdoptionRate(engagement []MemberEngagement) float64 {
	var members, active int
	for _, m := range engagement {
		if m.Role.IsTreasurer() {
			continue
		}
		members++
		if m.Status == EngagementActive {
			active++
		}
	}
	return ratio(active, members)
}

// SubmissionFunnel counts this calendar year's entries through the review
// stages. Trash is excluded.
func SubmissionFunnel(all []*entry.Entry, now time.Time) Funnel {
	year := now.Year()
	var created, drafts, approved, paid int
	for _, e := range all {
		if e.Status == entry.StatusTrash {
			continue
		}
		at := e.ReportingDate()
		if at.IsZero() || at.UTC().Year() != year {
			continue
		}
		created++
		switch e.Status {
		case entry.StatusDraft:
			drafts++
		case entry.StatusApproved:
			approved++
		case entry.StatusPaid:
			approved++
			paid++
		}
	}
	submitted := created - drafts

	return Funnel{
		Year: year,
		Stages: []FunnelStage{
			{Name: "created", Count: created},
			{Name: "submitted", Count: submitted, DropOff: created - submitted},
			{Name: "approved", Count: approved, DropOff: submitted - approved},
			{Name: "paid", Count: paid, DropOff: approved - paid},
		},
	}
}

// PipelineValue sums entries that are drafted or waiting on review.
func PipelineValue(all []*entry.Entry, cfg settings.Settings) decimal.Decimal {
	total := decimal.Zero
	for _, e := range all {
		if inPipeline(e) {
			total = total.Add(e.Total(cfg))
		}
	}
	return total
}

// RejectionRate is rejected over reviewed for entries dated this month.
func RejectionRate(all []*entry.Entry, now time.Time) float64 {
	var reviewed, rejected int
	for _, e := range all {
		at := e.ReportingDate().UTC()
		if at.IsZero() || at.Year() != now.Year() || at.Month() != now.Month() {
			continue
		}
		switch e.Status {
		case entry.StatusApproved, entry.StatusPaid:
			reviewed++
		case entry.StatusRejected:
			reviewed++
			rejected++
		}
	}
	return ratio(rejected, reviewed)
}

// BudgetUse sums approved and paid entries dated this year and relates them
// to the annual budget. Utilization is 0 when no budget is set.
func BudgetUse(all []*entry.Entry, cfg settings.Settings, now time.Time) (decimal.Decimal, float64) {
	spent := decimal.Zero
	for _, e := range all {
		if e.Status != entry.StatusApproved && e.Status != entry.StatusPaid {
			continue
		}
		if e.ReportingDate().UTC().Year() != now.Year() {
			continue
		}
		spent = spent.Add(e.Total(cfg))
	}
	if !cfg.AnnualBudget.IsPositive() {
		return spent, 0
	}
	utilization, _ := spent.Div(cfg.AnnualBudget).Float64()
	return spent, utilization
}

const (
	workDescriptionWeight = 30
	workMaterialsWeight   = 20
	workPhotosWeight      = 20
	workLocationWeight    = 15
	workNotesWeight       = 15

	purchaseDescriptionWeight = 25
	purchaseReceiptsWeight    = 25
	purchaseItemsWeight       = 20
	purchasePaymentWeight     = 15
	purchaseNotesWeight       = 15
)

// QualityScore rates how complete an entry is, from 0 to 100.
func QualityScore(e *entry.Entry) int {
	if e == nil {
		return 0
	}
	var earned, possible float64
	award := func(weight float64, credit float64) {
		possible += weight
		earned += weight * credit
	}

	switch e.Type {
	case entry.TypeWork:
		award(workDescriptionWeight, descriptionCredit(e.Description))
		award(workMaterialsWeight, boolCredit(len(e.Materials) > 0))
		award(workPhotosWeight, boolCredit(len(e.BeforePhotos) > 0 || len(e.AfterPhotos) > 0))
		award(workLocationWeight, boolCredit(strings.TrimSpace(e.Location) != ""))
		award(workNotesWeight, boolCredit(textLen(e.Notes) > 5))
	case entry.TypePurchase:
		award(purchaseDescriptionWeight, descriptionCredit(e.Description))
		award(purchaseReceiptsWeight, boolCredit(len(e.ReceiptImages) > 0))
		award(purchaseItemsWeight, boolCredit(len(e.Items) > 0))
		award(purchasePaymentWeight, boolCredit(strings.TrimSpace(e.PaymentMethod) != ""))
		award(purchaseNotesWeight, boolCredit(textLen(e.Notes) > 5))
	default:
		return 0
	}

	if possible == 0 {
		return 0
	}
	return int(math.Round(earned / possible * 100))
}

// AverageQuality is the mean score over entries not in the trash.
func AverageQuality(all []*entry.Entry) int {
	var sum, n int
	for _, e := range all {
		if e.Status == entry.StatusTrash {
			continue
		}
		sum += QualityScore(e)
		n++
	}
	if n == 0 {
		return 0
	}
	return int(math.Round(float64(sum) / float64(n)))
}

func descriptionCredit(desc string) float64 {
	switch n := textLen(desc); {
	case n > 30:
		return 1
	case n > 10:
		return 0.5
	}
	return 0
}

func boolCredit(ok bool) float64 {
	if ok {
		return 1
	}
	return 0
}

func textLen(s string) int {
	return len([]rune(strings.TrimSpace(s)))
}

func wholeDays(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(d / day)
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}
