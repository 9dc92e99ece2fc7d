package entry

import (
	"strings"
	"time"

	errors "github.com/frahmantamala/hoa-reimbursement/internal"
	coreUser "github.com/frahmantamala/hoa-reimbursement/internal/core/user"
	"github.com/frahmantamala/hoa-reimbursement/internal/settings"
)

type Action string

const (
	ActionSubmit        Action = "submit"
	ActionResubmit      Action = "resubmit"
	ActionApprove       Action = "approve"
	ActionSecondApprove Action = "second_approve"
	ActionDecline       Action = "decline"
	ActionRequestInfo   Action = "request_info"
	ActionMarkPaid      Action = "mark_paid"
	ActionTrash         Action = "trash"
	ActionRestore       Action = "restore"
)

// Audit action strings written to the log. The timeline maps these back to
// its own vocabulary.
const (
	AuditSubmitted     = "submitted"
	AuditResubmitted   = "resubmitted"
	AuditApprove       = "approve"
	AuditSecondApprove = "second_approve"
	AuditDecline       = "decline"
	AuditNeedsInfo     = "needs_info"
	AuditPaid          = "paid"
	AuditTrashed       = "trashed"
	AuditRestored      = "restored"
)

// Actor is whoever triggers a transition.
type Actor struct {
	ID   string        `json:"id"`
	Name string        `json:"name"`
	Role coreUser.Role `json:"role"`
}

func (a Actor) IsTreasurer() bool {
	return a.Role.IsTreasurer()
}

// Payload carries the optional inputs some transitions require.
type Payload struct {
	Note          string `json:"note,omitempty"`
	PaymentMethod string `json:"payment_method,omitempty"`
	PaymentRef    string `json:"payment_ref,omitempty"`
}

type permission int

const (
	ownerOnly permission = iota
	treasurerOnly
	ownerOrTreasurer
)

type rule struct {
	from []Status
	who  permission
}

// transitions lists every legal edge once. Apply consults it before any
// action-specific guard runs.
var transitions = map[Action]rule{
	ActionSubmit:        {from: []Status{StatusDraft}, who: ownerOnly},
	ActionResubmit:      {from: []Status{StatusRejected, StatusNeedsInfo}, who: ownerOnly},
	ActionApprove:       {from: []Status{StatusSubmitted}, who: treasurerOnly},
	ActionSecondApprove: {from: []Status{StatusAwaitingSecondApproval}, who: treasurerOnly},
	ActionDecline:       {from: []Status{StatusSubmitted, StatusAwaitingSecondApproval}, who: treasurerOnly},
	ActionRequestInfo:   {from: []Status{StatusSubmitted, StatusAwaitingSecondApproval}, who: treasurerOnly},
	ActionMarkPaid:      {from: []Status{StatusApproved}, who: treasurerOnly},
	ActionTrash: {
		from: []Status{
			StatusDraft, StatusSubmitted, StatusAwaitingSecondApproval,
			StatusApproved, StatusRejected, StatusNeedsInfo,
		},
		who: ownerOrTreasurer,
	},
	ActionRestore: {from: []Status{StatusTrash}, who: ownerOrTreasurer},
}

func ParseAction(v string) (Action, bool) {
	a := Action(strings.ToLower(strings.TrimSpace(strings.ReplaceAll(v, "-", "_"))))
	_, ok := transitions[a]
	return a, ok
}

// Allowed reports whether action has an edge out of status, ignoring who
// performs it.
func Allowed(status Status, action Action) bool {
	r, ok := transitions[action]
	if !ok {
		return false
	}
	return r.allows(status)
}

func (r rule) allows(status Status) bool {
	for _, s := range r.from {
		if s == status {
			return true
		}
	}
	return false
}

// Apply performs one transition and returns the updated copy. The input is
// never modified; on error nothing changes. Checks run in a fixed order:
// edge exists, role, identity, then payload.
func Apply(e *Entry, action Action, actor Actor, payload Payload, cfg settings.Settings, now time.Time) (*Entry, error) {
	if e == nil {
		return nil, ErrEntryNotFound
	}

	r, ok := transitions[action]
	if !ok || !r.allows(e.Status) {
		return nil, invalidTransition(e.Status, action)
	}

	if err := authorize(e, r.who, action, actor); err != nil {
		return nil, err
	}

	next := e.Clone()
	at := now.UTC()
	var note string

	switch action {
	case ActionSubmit:
		if err := ValidateForSubmit(e, at); err != nil {
			return nil, err
		}
		next.Status = StatusSubmitted
		next.SubmittedAt = &at

	case ActionResubmit:
		next.Status = StatusSubmitted
		next.SubmittedAt = &at
		next.ResubmittedAt = &at

	case ActionApprove:
		note = strings.TrimSpace(payload.Note)
		next.Status = StatusApproved
		if cfg.RequiresSecondApproval(e.Total(cfg)) {
			next.Status = StatusAwaitingSecondApproval
		}
		next.ReviewedAt = &at
		next.ReviewerNotes = note
		next.FirstApprovedBy = actor.ID

	case ActionSecondApprove:
		if first := firstApprover(e); first != "" && first == actor.ID {
			return nil, unauthorized(action, "the second approval must come from a different treasurer")
		}
		note = strings.TrimSpace(payload.Note)
		next.Status = StatusApproved
		next.SecondApprovedAt = &at
		next.SecondApprovedBy = actor.ID

	case ActionDecline:
		note = strings.TrimSpace(payload.Note)
		if note == "" {
			return nil, missingField("note", "a reviewer note is required to decline", errors.ErrCodeMissingNote)
		}
		next.Status = StatusRejected
		next.ReviewedAt = &at
		next.ReviewerNotes = note

	case ActionRequestInfo:
		note = strings.TrimSpace(payload.Note)
		next.Status = StatusNeedsInfo
		next.ReviewedAt = &at
		next.ReviewerNotes = note

	case ActionMarkPaid:
		method := strings.TrimSpace(payload.PaymentMethod)
		if method == "" {
			return nil, missingField("payment_method", "a payment method is required", errors.ErrCodeMissingPayment)
		}
		next.Status = StatusPaid
		next.PaidAt = &at
		next.PaymentMethod = method
		next.PaymentRef = strings.TrimSpace(payload.PaymentRef)

	case ActionTrash:
		next.StatusBeforeTrash = e.Status
		next.Status = StatusTrash
		next.TrashedAt = &at

	case ActionRestore:
		restored := e.StatusBeforeTrash
		if !restored.Valid() || restored == StatusTrash {
			restored = StatusDraft
		}
		next.Status = restored
		next.StatusBeforeTrash = ""
		next.RestoredAt = &at

	default:
		return nil, invalidTransition(e.Status, action)
	}

	next.UpdatedAt = at
	next.AuditLog = append(next.AuditLog, AuditRecord{
		Action:    auditActionFor(action),
		Timestamp: at,
		ActorID:   actor.ID,
		ActorName: actor.Name,
		NewStatus: next.Status,
		Note:      note,
	})

	return next, nil
}

func authorize(e *Entry, who permission, action Action, actor Actor) error {
	if actor.ID == "" {
		return unauthorized(action, "no actor")
	}
	switch who {
	case ownerOnly:
		if !e.IsOwnedBy(actor.ID) {
			return unauthorized(action, "only the entry owner may do this")
		}
	case treasurerOnly:
		if !actor.IsTreasurer() {
			return unauthorized(action, "treasurer role required")
		}
	case ownerOrTreasurer:
		if !e.IsOwnedBy(actor.ID) && !actor.IsTreasurer() {
			return unauthorized(action, "only the owner or the treasurer may do this")
		}
	}
	return nil
}

// firstApprover prefers the recorded approver and falls back to the most
// recent approve record for entries written before that field existed.
func firstApprover(e *Entry) string {
	if e.FirstApprovedBy != "" {
		return e.FirstApprovedBy
	}
	for i := len(e.AuditLog) - 1; i >= 0; i-- {
		if e.AuditLog[i].Action == AuditApprove {
			return e.AuditLog[i].ActorID
		}
	}
	return ""
}

func auditActionFor(action Action) string {
	switch action {
	case ActionSubmit:
		return AuditSubmitted
	case ActionResubmit:
		return AuditResubmitted
	case ActionApprove:
		return AuditApprove
	case ActionSecondApprove:
		return AuditSecondApprove
	case ActionDecline:
		return AuditDecline
	case ActionRequestInfo:
		return AuditNeedsInfo
	case ActionMarkPaid:
		return AuditPaid
	case ActionTrash:
		return AuditTrashed
	case ActionRestore:
		return AuditRestored
	}
	return string(action)
}
