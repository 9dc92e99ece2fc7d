package entry

import (
	"fmt"
	"net/http"
	"strings"

	errors "github.com/frahmantamala/hoa-reimbursement/internal"
)

// Sentinels for errors.Is. AppError.Is compares type and code, so the
// detailed errors built below match them.
var (
	ErrInvalidTransition = errors.NewConflictError("invalid transition", errors.ErrCodeInvalidTransition)
	ErrUnauthorized      = errors.NewForbiddenError("actor may not perform this transition", errors.ErrCodeTransitionForbidden)
	ErrValidation        = errors.NewValidationError("validation failed", errors.ErrCodeValidationFailed)
	ErrEntryNotFound     = errors.NewNotFoundError("entry not found", errors.ErrCodeEntryNotFound)
	ErrConcurrentUpdate  = errors.NewConflictError("entry was changed by another request, reload and retry", errors.ErrCodeConcurrentUpdate)
	ErrCannotModify      = errors.NewConflictError("entry can no longer be edited", errors.ErrCodeCannotModifyEntry)
	ErrCorruptEntry      = &errors.AppError{
		Type:       errors.ErrorTypeInternal,
		Code:       errors.ErrCodeCorruptEntry,
		Message:    "stored entry is damaged and cannot be changed",
		StatusCode: http.StatusInternalServerError,
	}
)

type TransitionDetails struct {
	Status Status `json:"status"`
	Action Action `json:"action"`
}

func invalidTransition(status Status, action Action) error {
	return errors.NewConflictError(
		fmt.Sprintf("cannot %s an entry in status %s", action, status),
		errors.ErrCodeInvalidTransition,
	).WithDetails(TransitionDetails{Status: status, Action: action})
}

func unauthorized(action Action, reason string) error {
	return errors.NewForbiddenError(
		fmt.Sprintf("not allowed to %s: %s", action, reason),
		errors.ErrCodeTransitionForbidden,
	)
}

func missingField(field, message string, code errors.ErrorCode) error {
	return errors.NewValidationFieldError(field, message, code)
}

func corruptEntry(id string, columns []string) error {
	return &errors.AppError{
		Type:       errors.ErrorTypeInternal,
		Code:       errors.ErrCodeCorruptEntry,
		Message:    fmt.Sprintf("entry %s has unreadable %s and cannot be changed", id, strings.Join(columns, ", ")),
		StatusCode: http.StatusInternalServerError,
	}
}
