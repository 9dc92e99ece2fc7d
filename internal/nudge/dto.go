package nudge

import (
	"strings"

	errors "github.com/frahmantamala/hoa-reimbursement/internal"
	"github.com/frahmantamala/hoa-reimbursement/internal/core/common/validation"
)

type SendNudgeDTO struct {
	RecipientID string   `json:"recipient_id"`
	Template    Template `json:"template"`
	Message     string   `json:"message,omitempty"`
	EntryID     *string  `json:"entry_id,omitempty"`
}

func (dto SendNudgeDTO) Validate() error {
	validator := validation.NewValidator()

	validator.Field("recipient_id", dto.RecipientID).Required()
	validator.Field("template", string(dto.Template)).Required().Custom(knownTemplate)
	validator.Field("message", dto.Message).MaxLength(500)

	if appErr := validator.Validate(); appErr != nil {
		return appErr
	}
	return nil
}

func knownTemplate(value interface{}) *errors.AppError {
	v, _ := value.(string)
	if v == "" || Template(v).Valid() {
		return nil
	}
	return errors.NewValidationFieldError("template", "template must be one of: "+strings.Join(Templates(), ", "), errors.ErrCodeInvalidTemplate)
}
