package entry

import (
	"strings"
	"time"

	"github.com/frahmantamala/hoa-reimbursement/internal/money"
	"github.com/frahmantamala/hoa-reimbursement/internal/settings"
	"github.com/shopspring/decimal"
)

type Type string

const (
	TypeWork     Type = "work"
	TypePurchase Type = "purchase"
)

func (t Type) Valid() bool {
	return t == TypeWork || t == TypePurchase
}

type Status string

const (
	StatusDraft                  Status = "draft"
	StatusSubmitted              Status = "submitted"
	StatusAwaitingSecondApproval Status = "awaiting_second_approval"
	StatusApproved               Status = "approved"
	StatusRejected               Status = "rejected"
	StatusNeedsInfo              Status = "needs_info"
	StatusPaid                   Status = "paid"
	StatusTrash                  Status = "trash"
)

var allStatuses = []Status{
	StatusDraft,
	StatusSubmitted,
	StatusAwaitingSecondApproval,
	StatusApproved,
	StatusRejected,
	StatusNeedsInfo,
	StatusPaid,
	StatusTrash,
}

func (s Status) Valid() bool {
	for _, known := range allStatuses {
		if s == known {
			return true
		}
	}
	return false
}

func ParseStatus(v string) (Status, bool) {
	s := Status(strings.ToLower(strings.TrimSpace(v)))
	return s, s.Valid()
}

var (
	WorkCategories     = []string{"landscaping", "maintenance", "repairs", "cleaning", "snow_removal", "general"}
	PurchaseCategories = []string{"supplies", "tools", "equipment", "utilities", "services", "general"}
)

func CategoriesFor(t Type) []string {
	if t == TypePurchase {
		return PurchaseCategories
	}
	return WorkCategories
}

// AuditRecord is one append-only history item.
type AuditRecord struct {
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
	ActorID   string    `json:"actor_id"`
	ActorName string    `json:"actor_name,omitempty"`
	NewStatus Status    `json:"new_status,omitempty"`
	Note      string    `json:"note,omitempty"`
}

// Entry is a work log or purchase submitted for reimbursement. Work entries
// use the clock and materials fields, purchases use items, mileage and tax.
type Entry struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Type        Type      `json:"type"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	Notes       string    `json:"notes,omitempty"`
	Location    string    `json:"location,omitempty"`
	Date        time.Time `json:"date"`

	StartTime  string           `json:"start_time,omitempty"`
	EndTime    string           `json:"end_time,omitempty"`
	HourlyRate decimal.Decimal  `json:"hourly_rate"`
	Materials  []money.LineItem `json:"materials,omitempty"`

	Items       []money.LineItem `json:"items,omitempty"`
	Mileage     decimal.Decimal  `json:"mileage"`
	MileageRate decimal.Decimal  `json:"mileage_rate"`
	Tax         decimal.Decimal  `json:"tax"`

	BeforePhotos  []string `json:"before_photos,omitempty"`
	AfterPhotos   []string `json:"after_photos,omitempty"`
	ReceiptImages []string `json:"receipt_images,omitempty"`

	Status            Status `json:"status"`
	StatusBeforeTrash Status `json:"status_before_trash,omitempty"`
	ReviewerNotes     string `json:"reviewer_notes,omitempty"`
	PaymentMethod     string `json:"payment_method,omitempty"`
	PaymentRef        string `json:"payment_ref,omitempty"`
	FirstApprovedBy   string `json:"first_approved_by,omitempty"`
	SecondApprovedBy  string `json:"second_approved_by,omitempty"`

	AuditLog []AuditRecord `json:"audit_log"`
	Version  int64         `json:"version"`

	// JSON columns that failed to decode when the row was loaded.
	damaged []string

	CreatedAt        time.Time  `json:"created_at"`
	SubmittedAt      *time.Time `json:"submitted_at,omitempty"`
	ResubmittedAt    *time.Time `json:"resubmitted_at,omitempty"`
	ReviewedAt       *time.Time `json:"reviewed_at,omitempty"`
	SecondApprovedAt *time.Time `json:"second_approved_at,omitempty"`
	PaidAt           *time.Time `json:"paid_at,omitempty"`
	TrashedAt        *time.Time `json:"trashed_at,omitempty"`
	RestoredAt       *time.Time `json:"restored_at,omitempty"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// Damaged lists the stored columns that could not be decoded. Such an entry
// is readable but must not be written back.
func (e *Entry) Damaged() []string {
	return e.damaged
}

func (e *Entry) IsOwnedBy(userID string) bool {
	return e.UserID != "" && e.UserID == userID
}

// IsEditable reports whether the owner may still change the entry's content.
func (e *Entry) IsEditable() bool {
	switch e.Status {
	case StatusDraft, StatusRejected, StatusNeedsInfo:
		return true
	}
	return false
}

// EffectiveStatus is the status an entry had before it was trashed, or its
// current status otherwise.
func (e *Entry) EffectiveStatus() Status {
	if e.Status == StatusTrash && e.StatusBeforeTrash.Valid() {
		return e.StatusBeforeTrash
	}
	return e.Status
}

// Hours is the raw worked duration for work entries.
func (e *Entry) Hours() decimal.Decimal {
	if e.Type != TypeWork {
		return decimal.Zero
	}
	return money.Hours(e.StartTime, e.EndTime)
}

// Rate is the entry's snapshotted hourly rate, or the settings default.
func (e *Entry) Rate(cfg settings.Settings) decimal.Decimal {
	if e.HourlyRate.IsPositive() {
		return e.HourlyRate
	}
	return cfg.DefaultHourlyRate
}

func (e *Entry) mileageRate(cfg settings.Settings) decimal.Decimal {
	if e.MileageRate.IsPositive() {
		return e.MileageRate
	}
	return cfg.MileageRate
}

// Total is labor plus materials for work, or items plus mileage plus tax for
// purchases. It is never negative.
func (e *Entry) Total(cfg settings.Settings) decimal.Decimal {
	switch e.Type {
	case TypeWork:
		return money.WorkTotal(e.StartTime, e.EndTime, e.Rate(cfg), e.Materials)
	case TypePurchase:
		return money.PurchaseTotal(e.Items, e.Mileage, e.mileageRate(cfg), e.Tax)
	}
	return decimal.Zero
}

// LastActivity is the most recent audit timestamp, or CreatedAt when the
// entry has no history.
func (e *Entry) LastActivity() time.Time {
	last := e.CreatedAt
	for _, rec := range e.AuditLog {
		if rec.Timestamp.After(last) {
			last = rec.Timestamp
		}
	}
	return last
}

// ActivityDate is the later of the entry's calendar date and creation time.
func (e *Entry) ActivityDate() time.Time {
	if e.Date.After(e.CreatedAt) {
		return e.Date
	}
	return e.CreatedAt
}

// ReportingDate is the entry's calendar date, falling back to CreatedAt.
func (e *Entry) ReportingDate() time.Time {
	if e.Date.IsZero() {
		return e.CreatedAt
	}
	return e.Date
}

// Clone returns a deep copy so transitions never alias the caller's slices.
func (e *Entry) Clone() *Entry {
	if e == nil {
		return nil
	}
	c := *e
	c.Materials = append([]money.LineItem(nil), e.Materials...)
	c.Items = append([]money.LineItem(nil), e.Items...)
	c.BeforePhotos = append([]string(nil), e.BeforePhotos...)
	c.AfterPhotos = append([]string(nil), e.AfterPhotos...)
	c.ReceiptImages = append([]string(nil), e.ReceiptImages...)
	c.AuditLog = append([]AuditRecord(nil), e.AuditLog...)
	c.damaged = append([]string(nil), e.damaged...)
	c.SubmittedAt = cloneTime(e.SubmittedAt)
	c.ResubmittedAt = cloneTime(e.ResubmittedAt)
	c.ReviewedAt = cloneTime(e.ReviewedAt)
	c.SecondApprovedAt = cloneTime(e.SecondApprovedAt)
	c.PaidAt = cloneTime(e.PaidAt)
	c.TrashedAt = cloneTime(e.TrashedAt)
	c.RestoredAt = cloneTime(e.RestoredAt)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
