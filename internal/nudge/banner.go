package nudge

import (
	"fmt"
	"sort"
	"time"

	"github.com/frahmantamala/hoa-reimbursement/internal/entry"
	"github.com/frahmantamala/hoa-reimbursement/internal/settings"
	"github.com/frahmantamala/hoa-reimbursement/internal/user"
)

// MaxBanners caps how many banners a member sees at once.
const MaxBanners = 5

const recentApprovalWindow = 7 * 24 * time.Hour

// Lower runs first.
const (
	PriorityRejected        = 10
	PriorityNeedsInfo       = 20
	PriorityNudge           = 25
	PriorityStaleDrafts     = 30
	PriorityRecentApprovals = 50
)

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
	SeveritySuccess  Severity = "success"
)

const (
	BannerKeyStaleDrafts     = "stale_drafts"
	BannerKeyRecentApprovals = "recent_approvals"
)

type BannerAction struct {
	Label  string `json:"label"`
	Kind   string `json:"kind"`
	Target string `json:"target,omitempty"`
}

type Banner struct {
	Key      string        `json:"key"`
	Priority int           `json:"priority"`
	Severity Severity      `json:"severity"`
	Title    string        `json:"title"`
	Message  string        `json:"message"`
	Action   *BannerAction `json:"action,omitempty"`
	// Persistent banners are dismissed by updating the nudge itself rather
	// than for the session only.
	Persistent bool `json:"persistent"`
}

// ComputeBanners builds the member's banners from their own entries and
// nudges. The same inputs always give the same banners in the same order.
func ComputeBanners(entries, purchases []*entry.Entry, nudges []*Nudge, u *user.User, cfg settings.Settings, now time.Time) []Banner {
	if u == nil {
		return nil
	}
	now = now.UTC()

	var own []*entry.Entry
	for _, group := range [][]*entry.Entry{entries, purchases} {
		for _, e := range group {
			if e != nil && e.IsOwnedBy(u.ID) && e.Status != entry.StatusTrash {
				own = append(own, e)
			}
		}
	}

	banners := make([]Banner, 0, MaxBanners)

	if e, count := latestReviewed(own, entry.StatusRejected); e != nil {
		msg := "Your entry was declined."
		if e.ReviewerNotes != "" {
			msg = fmt.Sprintf("Your entry was declined: %s", e.ReviewerNotes)
		}
		if count > 1 {
			msg = fmt.Sprintf("%s (%d declined entries in total)", msg, count)
		}
		banners = append(banners, Banner{
			Key:      "rejected:" + e.ID,
			Priority: PriorityRejected,
			Severity: SeverityCritical,
			Title:    "Entry declined",
			Message:  msg,
			Action:   &BannerAction{Label: "Fix and resubmit", Kind: "open_entry", Target: e.ID},
		})
	}

	if e, _ := latestReviewed(own, entry.StatusNeedsInfo); e != nil {
		msg := "The treasurer needs more information."
		if e.ReviewerNotes != "" {
			msg = fmt.Sprintf("The treasurer asked: %s", e.ReviewerNotes)
		}
		banners = append(banners, Banner{
			Key:      "needs_info:" + e.ID,
			Priority: PriorityNeedsInfo,
			Severity: SeverityWarning,
			Title:    "More information needed",
			Message:  msg,
			Action:   &BannerAction{Label: "Reply", Kind: "open_entry", Target: e.ID},
		})
	}

	for _, n := range nudges {
		if n == nil || n.RecipientID != u.ID || !n.IsOpen() {
			continue
		}
		b := Banner{
			Key:        "nudge:" + n.ID,
			Priority:   PriorityNudge,
			Severity:   SeverityInfo,
			Title:      "Message from the treasurer",
			Message:    n.Template.Render(n.Message),
			Persistent: true,
		}
		if n.EntryID != nil && *n.EntryID != "" {
			b.Action = &BannerAction{Label: "Open entry", Kind: "open_entry", Target: *n.EntryID}
		}
		banners = append(banners, b)
	}

	if stale := countStaleDrafts(own, cfg, now); stale > 0 {
		banners = append(banners, Banner{
			Key:      BannerKeyStaleDrafts,
			Priority: PriorityStaleDrafts,
			Severity: SeverityWarning,
			Title:    "Drafts waiting",
			Message:  fmt.Sprintf("You have %d draft(s) idle for %d days or more.", stale, cfg.StaleAfter()),
			Action:   &BannerAction{Label: "Review drafts", Kind: "list_drafts"},
		})
	}

	if approved := countRecentApprovals(own, now); approved > 0 {
		banners = append(banners, Banner{
			Key:      BannerKeyRecentApprovals,
			Priority: PriorityRecentApprovals,
			Severity: SeveritySuccess,
			Title:    "Approved",
			Message:  fmt.Sprintf("%d of your entries were approved this week.", approved),
		})
	}

	sort.SliceStable(banners, func(i, j int) bool {
		return banners[i].Priority < banners[j].Priority
	})
	if len(banners) > MaxBanners {
		banners = banners[:MaxBanners]
	}
	return banners
}

// FilterDismissed drops banners whose keys were dismissed this session.
// Nudge banners are kept; they are dismissed on the nudge itself.
func FilterDismissed(banners []Banner, dismissed map[string]bool) []Banner {
	if len(dismissed) == 0 {
		return banners
	}
	out := make([]Banner, 0, len(banners))
	for _, b := range banners {
		if !b.Persistent && dismissed[b.Key] {
			continue
		}
		out = append(out, b)
	}
	return out
}

// latestReviewed returns the entry in status with the most recent review,
// first one winning ties, and how many entries are in that status.
func latestReviewed(own []*entry.Entry, status entry.Status) (*entry.Entry, int) {
	var best *entry.Entry
	var bestAt time.Time
	count := 0
	for _, e := range own {
		if e.Status != status {
			continue
		}
		count++
		var at time.Time
		if e.ReviewedAt != nil {
			at = *e.ReviewedAt
		}
		if best == nil || at.After(bestAt) {
			best, bestAt = e, at
		}
	}
	return best, count
}

// countStaleDrafts uses the operational report's threshold: a draft idle for
// exactly staleDraftDays already counts, so the banner and the report agree.
func countStaleDrafts(own []*entry.Entry, cfg settings.Settings, now time.Time) int {
	window := time.Duration(cfg.StaleAfter()) * 24 * time.Hour
	count := 0
	for _, e := range own {
		if e.Status != entry.StatusDraft {
			continue
		}
		last := e.LastActivity()
		if !last.IsZero() && now.Sub(last) >= window {
			count++
		}
	}
	return count
}

func countRecentApprovals(own []*entry.Entry, now time.Time) int {
	count := 0
	for _, e := range own {
		if e.Status != entry.StatusApproved && e.Status != entry.StatusPaid {
			continue
		}
		approvedAt := e.ReviewedAt
		if e.SecondApprovedAt != nil {
			approvedAt = e.SecondApprovedAt
		}
		if approvedAt == nil {
			continue
		}
		if age := now.Sub(*approvedAt); age >= 0 && age <= recentApprovalWindow {
			count++
		}
	}
	return count
}
