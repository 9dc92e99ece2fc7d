package settings

import (
	"time"

	errors "github.com/frahmantamala/hoa-reimbursement/internal"
	"github.com/frahmantamala/hoa-reimbursement/internal/core/common/validation"
	settingsDatamodel "github.com/frahmantamala/hoa-reimbursement/internal/core/datamodel/settings"
	"github.com/shopspring/decimal"
)

const DefaultStaleDraftDays = 7

// Settings are the association-wide review rules. Pure functions receive
// them explicitly rather than reading a global.
type Settings struct {
	DefaultHourlyRate     decimal.Decimal `json:"default_hourly_rate"`
	MileageRate           decimal.Decimal `json:"mileage_rate"`
	DualApprovalThreshold decimal.Decimal `json:"dual_approval_threshold"`
	StaleDraftDays        int             `json:"stale_draft_days"`
	AnnualBudget          decimal.Decimal `json:"annual_budget"`
	UpdatedBy             string          `json:"updated_by,omitempty"`
	UpdatedAt             time.Time       `json:"updated_at,omitempty"`
}

func Defaults() Settings {
	return Settings{
		DefaultHourlyRate:     decimal.NewFromInt(25),
		MileageRate:           decimal.RequireFromString("0.67"),
		DualApprovalThreshold: decimal.Zero,
		StaleDraftDays:        DefaultStaleDraftDays,
		AnnualBudget:          decimal.Zero,
	}
}

func FromWorkflowConfig(cfg errors.WorkflowConfig) Settings {
	s := Settings{
		DefaultHourlyRate:     decimal.NewFromFloat(cfg.DefaultHourlyRate),
		MileageRate:           decimal.NewFromFloat(cfg.MileageRate),
		DualApprovalThreshold: decimal.NewFromFloat(cfg.DualApprovalThreshold),
		StaleDraftDays:        cfg.StaleDraftDays,
		AnnualBudget:          decimal.NewFromFloat(cfg.AnnualBudget),
	}
	if s.StaleDraftDays <= 0 {
		s.StaleDraftDays = DefaultStaleDraftDays
	}
	return s
}

// DualApprovalEnabled reports whether a threshold is configured. Zero disables it.
func (s Settings) DualApprovalEnabled() bool {
	return s.DualApprovalThreshold.IsPositive()
}

// RequiresSecondApproval reports whether an entry total must be approved twice.
func (s Settings) RequiresSecondApproval(total decimal.Decimal) bool {
	return s.DualApprovalEnabled() && total.GreaterThanOrEqual(s.DualApprovalThreshold)
}

// StaleAfter returns the stale-draft window in days, falling back to the default.
func (s Settings) StaleAfter() int {
	if s.StaleDraftDays <= 0 {
		return DefaultStaleDraftDays
	}
	return s.StaleDraftDays
}

func (s Settings) Validate() error {
	validator := validation.NewValidator()

	validator.Field("default_hourly_rate", s.DefaultHourlyRate).NonNegative(errors.ErrCodeInvalidSettings)
	validator.Field("mileage_rate", s.MileageRate).NonNegative(errors.ErrCodeInvalidSettings)
	validator.Field("dual_approval_threshold", s.DualApprovalThreshold).NonNegative(errors.ErrCodeInvalidSettings)
	validator.Field("stale_draft_days", s.StaleDraftDays).MinInt(1, errors.ErrCodeInvalidSettings)
	validator.Field("annual_budget", s.AnnualBudget).NonNegative(errors.ErrCodeInvalidSettings)

	if appErr := validator.Validate(); appErr != nil {
		return appErr
	}
	return nil
}

func ToDataModel(s Settings) *settingsDatamodel.Settings {
	return &settingsDatamodel.Settings{
		ID:                    settingsDatamodel.SingletonID,
		DefaultHourlyRate:     s.DefaultHourlyRate,
		MileageRate:           s.MileageRate,
		DualApprovalThreshold: s.DualApprovalThreshold,
		StaleDraftDays:        s.StaleDraftDays,
		AnnualBudget:          s.AnnualBudget,
		UpdatedBy:             s.UpdatedBy,
		UpdatedAt:             s.UpdatedAt,
	}
}

func FromDataModel(m *settingsDatamodel.Settings) Settings {
	return Settings{
		DefaultHourlyRate:     m.DefaultHourlyRate,
		MileageRate:           m.MileageRate,
		DualApprovalThreshold: m.DualApprovalThreshold,
		StaleDraftDays:        m.StaleDraftDays,
		AnnualBudget:          m.AnnualBudget,
		UpdatedBy:             m.UpdatedBy,
		UpdatedAt:             m.UpdatedAt,
	}
}
