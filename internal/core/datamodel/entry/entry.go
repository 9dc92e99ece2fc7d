package entry

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Entry is the row shape shared by work and purchase entries. Line items,
// photo references and the audit log are stored as JSON documents.
type Entry struct {
	ID                string          `gorm:"primaryKey;type:varchar(26)"`
	UserID            string          `gorm:"column:user_id;not null;index"`
	Type              string          `gorm:"column:type;not null;index"`
	Category          string          `gorm:"column:category"`
	Description       string          `gorm:"column:description"`
	Notes             string          `gorm:"column:notes"`
	Location          string          `gorm:"column:location"`
	Date              time.Time       `gorm:"column:date;type:date"`
	StartTime         string          `gorm:"column:start_time"`
	EndTime           string          `gorm:"column:end_time"`
	HourlyRate        decimal.Decimal `gorm:"column:hourly_rate;type:numeric(10,2)"`
	Materials         datatypes.JSON  `gorm:"column:materials"`
	Items             datatypes.JSON  `gorm:"column:items"`
	Mileage           decimal.Decimal `gorm:"column:mileage;type:numeric(10,2)"`
	MileageRate       decimal.Decimal `gorm:"column:mileage_rate;type:numeric(10,3)"`
	Tax               decimal.Decimal `gorm:"column:tax;type:numeric(10,2)"`
	BeforePhotos      datatypes.JSON  `gorm:"column:before_photos"`
	AfterPhotos       datatypes.JSON  `gorm:"column:after_photos"`
	ReceiptImages     datatypes.JSON  `gorm:"column:receipt_images"`
	Status            string          `gorm:"column:status;not null;default:draft;index"`
	StatusBeforeTrash string          `gorm:"column:status_before_trash"`
	ReviewerNotes     string          `gorm:"column:reviewer_notes"`
	PaymentMethod     string          `gorm:"column:payment_method"`
	PaymentRef        string          `gorm:"column:payment_ref"`
	FirstApprovedBy   string          `gorm:"column:first_approved_by"`
	SecondApprovedBy  string          `gorm:"column:second_approved_by"`
	AuditLog          datatypes.JSON  `gorm:"column:audit_log"`
	Version           int64           `gorm:"column:version;not null;default:1"`
	CreatedAt         time.Time       `gorm:"column:created_at"`
	SubmittedAt       *time.Time      `gorm:"column:submitted_at"`
	ResubmittedAt     *time.Time      `gorm:"column:resubmitted_at"`
	ReviewedAt        *time.Time      `gorm:"column:reviewed_at"`
	SecondApprovedAt  *time.Time      `gorm:"column:second_approved_at"`
	PaidAt            *time.Time      `gorm:"column:paid_at"`
	TrashedAt         *time.Time      `gorm:"column:trashed_at"`
	RestoredAt        *time.Time      `gorm:"column:restored_at"`
	UpdatedAt         time.Time       `gorm:"column:updated_at"`
}

func (Entry) TableName() string {
	return "entries"
}
