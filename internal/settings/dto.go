package settings

import "github.com/shopspring/decimal"

// UpdateSettingsDTO is a partial update. Omitted fields keep their value.
type UpdateSettingsDTO struct {
	DefaultHourlyRate     *decimal.Decimal `json:"default_hourly_rate,omitempty"`
	MileageRate           *decimal.Decimal `json:"mileage_rate,omitempty"`
	DualApprovalThreshold *decimal.Decimal `json:"dual_approval_threshold,omitempty"`
	StaleDraftDays        *int             `json:"stale_draft_days,omitempty"`
	AnnualBudget          *decimal.Decimal `json:"annual_budget,omitempty"`
}

func (dto UpdateSettingsDTO) ApplyTo(s Settings) Settings {
	if dto.DefaultHourlyRate != nil {
		s.DefaultHourlyRate = *dto.DefaultHourlyRate
	}
	if dto.MileageRate != nil {
		s.MileageRate = *dto.MileageRate
	}
	if dto.DualApprovalThreshold != nil {
		s.DualApprovalThreshold = *dto.DualApprovalThreshold
	}
	if dto.StaleDraftDays != nil {
		s.StaleDraftDays = *dto.StaleDraftDays
	}
	if dto.AnnualBudget != nil {
		s.AnnualBudget = *dto.AnnualBudget
	}
	return s
}
