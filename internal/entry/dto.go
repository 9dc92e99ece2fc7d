package entry

import (
	"fmt"
	"time"

	errors "github.com/frahmantamala/hoa-reimbursement/internal"
	"github.com/frahmantamala/hoa-reimbursement/internal/core/common/validation"
	"github.com/frahmantamala/hoa-reimbursement/internal/money"
	"github.com/shopspring/decimal"
)

const DateLayout = "2006-01-02"

// CreateEntryDTO starts a draft. Drafts may be incomplete; required fields
// are enforced on submit.
type CreateEntryDTO struct {
	Type          Type             `json:"type"`
	Category      string           `json:"category"`
	Description   string           `json:"description"`
	Notes         string           `json:"notes,omitempty"`
	Location      string           `json:"location,omitempty"`
	Date          string           `json:"date"`
	StartTime     string           `json:"start_time,omitempty"`
	EndTime       string           `json:"end_time,omitempty"`
	Materials     []money.LineItem `json:"materials,omitempty"`
	Items         []money.LineItem `json:"items,omitempty"`
	Mileage       decimal.Decimal  `json:"mileage"`
	Tax           decimal.Decimal  `json:"tax"`
	BeforePhotos  []string         `json:"before_photos,omitempty"`
	AfterPhotos   []string         `json:"after_photos,omitempty"`
	ReceiptImages []string         `json:"receipt_images,omitempty"`
}

func (dto CreateEntryDTO) Validate() error {
	validator := validation.NewValidator()

	validator.Field("type", string(dto.Type)).Required().OneOf(string(TypeWork), string(TypePurchase))
	validator.Field("category", dto.Category).OneOf(CategoriesFor(dto.Type)...)
	validator.Field("description", dto.Description).MaxLength(2000)
	validator.Field("notes", dto.Notes).MaxLength(2000)
	validator.Field("date", dto.Date).Custom(dateFormat("date"))
	validator.Field("start_time", dto.StartTime).TimeOfDay()
	validator.Field("end_time", dto.EndTime).TimeOfDay()
	validator.Field("mileage", dto.Mileage).NonNegative(errors.ErrCodeInvalidAmount)
	validator.Field("tax", dto.Tax).NonNegative(errors.ErrCodeInvalidAmount)
	lineItems(validator, "materials", dto.Materials)
	lineItems(validator, "items", dto.Items)

	if appErr := validator.Validate(); appErr != nil {
		return appErr
	}
	return nil
}

// UpdateEntryDTO patches an editable entry. Nil fields are left alone.
type UpdateEntryDTO struct {
	Category      *string           `json:"category,omitempty"`
	Description   *string           `json:"description,omitempty"`
	Notes         *string           `json:"notes,omitempty"`
	Location      *string           `json:"location,omitempty"`
	Date          *string           `json:"date,omitempty"`
	StartTime     *string           `json:"start_time,omitempty"`
	EndTime       *string           `json:"end_time,omitempty"`
	Materials     *[]money.LineItem `json:"materials,omitempty"`
	Items         *[]money.LineItem `json:"items,omitempty"`
	Mileage       *decimal.Decimal  `json:"mileage,omitempty"`
	Tax           *decimal.Decimal  `json:"tax,omitempty"`
	BeforePhotos  *[]string         `json:"before_photos,omitempty"`
	AfterPhotos   *[]string         `json:"after_photos,omitempty"`
	ReceiptImages *[]string         `json:"receipt_images,omitempty"`
}

func (dto UpdateEntryDTO) Validate(t Type) error {
	validator := validation.NewValidator()

	if dto.Category != nil {
		validator.Field("category", *dto.Category).OneOf(CategoriesFor(t)...)
	}
	if dto.Description != nil {
		validator.Field("description", *dto.Description).MaxLength(2000)
	}
	if dto.Date != nil {
		validator.Field("date", *dto.Date).Custom(dateFormat("date"))
	}
	if dto.StartTime != nil {
		validator.Field("start_time", *dto.StartTime).TimeOfDay()
	}
	if dto.EndTime != nil {
		validator.Field("end_time", *dto.EndTime).TimeOfDay()
	}
	if dto.Mileage != nil {
		validator.Field("mileage", *dto.Mileage).NonNegative(errors.ErrCodeInvalidAmount)
	}
	if dto.Tax != nil {
		validator.Field("tax", *dto.Tax).NonNegative(errors.ErrCodeInvalidAmount)
	}
	if dto.Materials != nil {
		lineItems(validator, "materials", *dto.Materials)
	}
	if dto.Items != nil {
		lineItems(validator, "items", *dto.Items)
	}

	if appErr := validator.Validate(); appErr != nil {
		return appErr
	}
	return nil
}

// ApplyTo copies the set fields onto e. Validate must have passed.
func (dto UpdateEntryDTO) ApplyTo(e *Entry) {
	if dto.Category != nil {
		e.Category = *dto.Category
	}
	if dto.Description != nil {
		e.Description = *dto.Description
	}
	if dto.Notes != nil {
		e.Notes = *dto.Notes
	}
	if dto.Location != nil {
		e.Location = *dto.Location
	}
	if dto.Date != nil {
		e.Date, _ = ParseDate(*dto.Date)
	}
	if dto.StartTime != nil {
		e.StartTime = *dto.StartTime
	}
	if dto.EndTime != nil {
		e.EndTime = *dto.EndTime
	}
	if dto.Materials != nil {
		e.Materials = *dto.Materials
	}
	if dto.Items != nil {
		e.Items = *dto.Items
	}
	if dto.Mileage != nil {
		e.Mileage = *dto.Mileage
	}
	if dto.Tax != nil {
		e.Tax = *dto.Tax
	}
	if dto.BeforePhotos != nil {
		e.BeforePhotos = *dto.BeforePhotos
	}
	if dto.AfterPhotos != nil {
		e.AfterPhotos = *dto.AfterPhotos
	}
	if dto.ReceiptImages != nil {
		e.ReceiptImages = *dto.ReceiptImages
	}
}

type TransitionDTO struct {
	Action        string `json:"action"`
	Note          string `json:"note,omitempty"`
	PaymentMethod string `json:"payment_method,omitempty"`
	PaymentRef    string `json:"payment_ref,omitempty"`
}

func (dto TransitionDTO) Payload() Payload {
	return Payload{Note: dto.Note, PaymentMethod: dto.PaymentMethod, PaymentRef: dto.PaymentRef}
}

// ListFilter narrows entry listings. Empty fields match everything, except
// that trashed entries are left out unless asked for by status or
// IncludeTrash.
type ListFilter struct {
	UserID       string
	Status       Status
	Type         Type
	IncludeTrash bool
	Limit        int
	Offset       int
}

// EntryView is an entry with its derived total, as returned over HTTP.
type EntryView struct {
	*Entry
	Total decimal.Decimal `json:"total"`
	Hours decimal.Decimal `json:"hours"`
}

// ParseDate reads a calendar date. Empty input yields the zero time.
func ParseDate(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	return time.Parse(DateLayout, v)
}

func dateFormat(field string) func(interface{}) *errors.AppError {
	return func(value interface{}) *errors.AppError {
		v, _ := value.(string)
		if _, err := ParseDate(v); err != nil {
			return errors.NewValidationFieldError(field, fmt.Sprintf("%s must use the YYYY-MM-DD format", field), errors.ErrCodeInvalidDate)
		}
		return nil
	}
}

func lineItems(validator *validation.ValidationBuilder, field string, items []money.LineItem) {
	for i, it := range items {
		name := fmt.Sprintf("%s[%d]", field, i)
		validator.Field(name+".name", it.Name).Required().MaxLength(200)
		validator.Field(name+".quantity", it.Quantity).NonNegative(errors.ErrCodeInvalidAmount)
		validator.Field(name+".unit_cost", it.UnitCost).NonNegative(errors.ErrCodeInvalidAmount)
	}
}
