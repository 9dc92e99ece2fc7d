package nudge

import (
	"strings"
	"time"

	errors "github.com/frahmantamala/hoa-reimbursement/internal"
	nudgeDatamodel "github.com/frahmantamala/hoa-reimbursement/internal/core/datamodel/nudge"
)

type Template string

const (
	TemplateStaleDraft        Template = "stale_draft"
	TemplateMissingReceipt    Template = "missing_receipt"
	TemplateNeedsInfoReminder Template = "needs_info_reminder"
	TemplateGeneral           Template = "general"
)

var templateMessages = map[Template]string{
	TemplateStaleDraft:        "You have a draft that has not been touched in a while. Submit it or move it to the trash.",
	TemplateMissingReceipt:    "Please attach a receipt so your purchase can be reimbursed.",
	TemplateNeedsInfoReminder: "The treasurer is still waiting on more information about one of your entries.",
	TemplateGeneral:           "The treasurer sent you a note.",
}

func Templates() []string {
	return []string{
		string(TemplateStaleDraft),
		string(TemplateMissingReceipt),
		string(TemplateNeedsInfoReminder),
		string(TemplateGeneral),
	}
}

func (t Template) Valid() bool {
	_, ok := templateMessages[t]
	return ok
}

// Render returns the custom message, or the template's default when it is blank.
func (t Template) Render(custom string) string {
	if msg := strings.TrimSpace(custom); msg != "" {
		return msg
	}
	return templateMessages[t]
}

// Nudge is a one-way advisory note from the treasurer to a member. It has no
// effect on any entry's status.
type Nudge struct {
	ID          string     `json:"id"`
	RecipientID string     `json:"recipient_id"`
	SenderID    string     `json:"sender_id"`
	Template    Template   `json:"template"`
	Message     string     `json:"message"`
	EntryID     *string    `json:"entry_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	ReadAt      *time.Time `json:"read_at,omitempty"`
	DismissedAt *time.Time `json:"dismissed_at,omitempty"`
	ActedOnAt   *time.Time `json:"acted_on_at,omitempty"`
}

// IsOpen reports whether the nudge is neither read nor dismissed.
func (n *Nudge) IsOpen() bool {
	return n.ReadAt == nil && n.DismissedAt == nil
}

var ErrNudgeNotFound = errors.NewNotFoundError("nudge not found", errors.ErrCodeNudgeNotFound)

func ToDataModel(n *Nudge) *nudgeDatamodel.Nudge {
	return &nudgeDatamodel.Nudge{
		ID:          n.ID,
		RecipientID: n.RecipientID,
		SenderID:    n.SenderID,
		Template:    string(n.Template),
		Message:     n.Message,
		EntryID:     n.EntryID,
		CreatedAt:   n.CreatedAt,
		ReadAt:      n.ReadAt,
		DismissedAt: n.DismissedAt,
		ActedOnAt:   n.ActedOnAt,
	}
}

func FromDataModel(m *nudgeDatamodel.Nudge) *Nudge {
	return &Nudge{
		ID:          m.ID,
		RecipientID: m.RecipientID,
		SenderID:    m.SenderID,
		Template:    Template(m.Template),
		Message:     m.Message,
		EntryID:     m.EntryID,
		CreatedAt:   m.CreatedAt,
		ReadAt:      m.ReadAt,
		DismissedAt: m.DismissedAt,
		ActedOnAt:   m.ActedOnAt,
	}
}
