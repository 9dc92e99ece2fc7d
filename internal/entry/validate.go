package entry

import (
	"time"

	errors "github.com/frahmantamala/hoa-reimbursement/internal"
	"github.com/frahmantamala/hoa-reimbursement/internal/core/common/validation"
	"github.com/frahmantamala/hoa-reimbursement/internal/money"
)

// dateSlack tolerates entries dated "today" in a timezone ahead of UTC.
const dateSlack = 24 * time.Hour

// ValidateForSubmit checks the minimum an entry needs before review.
func ValidateForSubmit(e *Entry, now time.Time) error {
	validator := validation.NewValidator()

	validator.Field("date", e.Date).Required().NotFuture(now.Add(dateSlack))
	validator.Field("category", e.Category).Required().OneOf(CategoriesFor(e.Type)...)
	validator.Field("description", e.Description).Required().MaxLength(2000)

	switch e.Type {
	case TypeWork:
		validator.Field("start_time", e.StartTime).Required().TimeOfDay()
		validator.Field("end_time", e.EndTime).Required().TimeOfDay().Custom(func(interface{}) *errors.AppError {
			start, okStart := money.ParseClock(e.StartTime)
			end, okEnd := money.ParseClock(e.EndTime)
			if okStart && okEnd && end <= start {
				return errors.NewValidationFieldError("end_time", "end_time must be after start_time", errors.ErrCodeInvalidTime)
			}
			return nil
		})
	case TypePurchase:
		validator.Field("items", e.Items).Custom(func(interface{}) *errors.AppError {
			if len(e.Items) == 0 && !e.Mileage.IsPositive() {
				return errors.NewValidationFieldError("items", "a purchase needs at least one item or mileage", errors.ErrCodeInvalidAmount)
			}
			return nil
		})
	}

	if appErr := validator.Validate(); appErr != nil {
		return appErr
	}
	return nil
}
