package entry

import (
	"sort"
	"strings"
	"time"
)

type EventType string

const (
	EventCreated        EventType = "created"
	EventSubmitted      EventType = "submitted"
	EventApproved       EventType = "approved"
	EventFirstApproval  EventType = "firstApproval"
	EventSecondApproval EventType = "secondApproval"
	EventDeclined       EventType = "declined"
	EventNeedsInfo      EventType = "needsInfo"
	EventResubmitted    EventType = "resubmitted"
	EventPaid           EventType = "paid"
	EventTrashed        EventType = "trashed"
	EventRestored       EventType = "restored"
)

type TimelineEvent struct {
	Type EventType `json:"type"`
	At   time.Time `json:"at"`
	By   string    `json:"by,omitempty"`
	Note string    `json:"note,omitempty"`
}

// auditVocabulary maps stored action strings, including older spellings, to
// timeline events. "approve" is resolved separately using the recorded status.
var auditVocabulary = map[string]EventType{
	"submit":          EventSubmitted,
	"submitted":       EventSubmitted,
	"resubmit":        EventResubmitted,
	"resubmitted":     EventResubmitted,
	"approved":        EventApproved,
	"second_approve":  EventSecondApproval,
	"second_approved": EventSecondApproval,
	"second-approve":  EventSecondApproval,
	"decline":         EventDeclined,
	"declined":        EventDeclined,
	"reject":          EventDeclined,
	"rejected":        EventDeclined,
	"needs_info":      EventNeedsInfo,
	"request_info":    EventNeedsInfo,
	"request-info":    EventNeedsInfo,
	"paid":            EventPaid,
	"mark_paid":       EventPaid,
	"mark-paid":       EventPaid,
	"trash":           EventTrashed,
	"trashed":         EventTrashed,
	"restore":         EventRestored,
	"restored":        EventRestored,
}

// ReconstructTimeline returns the entry's lifecycle in chronological order.
// Entries with an audit log are read from it; older entries are rebuilt from
// their timestamp fields. Unknown actions and missing timestamps are skipped.
func ReconstructTimeline(e *Entry) []TimelineEvent {
	if e == nil {
		return nil
	}

	var events []TimelineEvent
	if !e.CreatedAt.IsZero() {
		events = append(events, TimelineEvent{Type: EventCreated, At: e.CreatedAt})
	}

	if len(e.AuditLog) > 0 {
		events = append(events, fromAuditLog(e.AuditLog)...)
	} else {
		events = append(events, fromLegacyFields(e)...)
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].At.Before(events[j].At)
	})
	return events
}

func fromAuditLog(log []AuditRecord) []TimelineEvent {
	events := make([]TimelineEvent, 0, len(log))
	for _, rec := range log {
		if rec.Timestamp.IsZero() {
			continue
		}
		t, ok := eventTypeFor(rec)
		if !ok {
			continue
		}
		by := rec.ActorName
		if by == "" {
			by = rec.ActorID
		}
		events = append(events, TimelineEvent{Type: t, At: rec.Timestamp, By: by, Note: rec.Note})
	}
	return events
}

func eventTypeFor(rec AuditRecord) (EventType, bool) {
	action := strings.ToLower(strings.TrimSpace(rec.Action))
	if action == "approve" {
		if rec.NewStatus == StatusAwaitingSecondApproval {
			return EventFirstApproval, true
		}
		return EventApproved, true
	}
	t, ok := auditVocabulary[action]
	return t, ok
}

func fromLegacyFields(e *Entry) []TimelineEvent {
	var events []TimelineEvent
	add := func(t EventType, at *time.Time, note string) {
		if at == nil || at.IsZero() {
			return
		}
		events = append(events, TimelineEvent{Type: t, At: *at, Note: note})
	}

	// A resubmission overwrote submittedAt, so the original submission time
	// is only known when the two differ.
	if e.ResubmittedAt == nil || e.SubmittedAt == nil || !e.SubmittedAt.Equal(*e.ResubmittedAt) {
		add(EventSubmitted, e.SubmittedAt, "")
	}

	if review, ok := legacyReviewEvent(e); ok {
		add(review, e.ReviewedAt, e.ReviewerNotes)
	}

	add(EventResubmitted, e.ResubmittedAt, "")
	add(EventSecondApproval, e.SecondApprovedAt, "")
	add(EventPaid, e.PaidAt, e.PaymentRef)
	add(EventTrashed, e.TrashedAt, "")
	add(EventRestored, e.RestoredAt, "")
	return events
}

// legacyReviewEvent infers what reviewedAt recorded from the status the entry
// is in now, or was in before being trashed. A resubmitted entry back in
// Submitted may have been declined or asked for info; the fields cannot tell
// which, so no review event is produced.
func legacyReviewEvent(e *Entry) (EventType, bool) {
	if e.ReviewedAt == nil {
		return "", false
	}
	switch e.EffectiveStatus() {
	case StatusAwaitingSecondApproval:
		return EventFirstApproval, true
	case StatusApproved, StatusPaid:
		if e.SecondApprovedAt != nil {
			return EventFirstApproval, true
		}
		return EventApproved, true
	case StatusRejected:
		return EventDeclined, true
	case StatusNeedsInfo:
		return EventNeedsInfo, true
	}
	return "", false
}
