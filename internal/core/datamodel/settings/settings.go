package settings

import (
	"time"

	"github.com/shopspring/decimal"
)

// SingletonID is the primary key of the only settings row.
const SingletonID = 1

type Settings struct {
	ID                    int64           `gorm:"primaryKey"`
	DefaultHourlyRate     decimal.Decimal `gorm:"column:default_hourly_rate;type:numeric(10,2);not null"`
	MileageRate           decimal.Decimal `gorm:"column:mileage_rate;type:numeric(10,3);not null"`
	DualApprovalThreshold decimal.Decimal `gorm:"column:dual_approval_threshold;type:numeric(12,2);not null"`
	StaleDraftDays        int             `gorm:"column:stale_draft_days;not null;default:7"`
	AnnualBudget          decimal.Decimal `gorm:"column:annual_budget;type:numeric(12,2);not null"`
	UpdatedBy             string          `gorm:"column:updated_by"`
	UpdatedAt             time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (Settings) TableName() string {
	return "settings"
}
