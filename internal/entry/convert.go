package entry

import (
	"encoding/json"
	"fmt"

	entryDatamodel "github.com/frahmantamala/hoa-reimbursement/internal/core/datamodel/entry"
	"github.com/frahmantamala/hoa-reimbursement/internal/money"
	"gorm.io/datatypes"
)

// ToDataModel refuses entries loaded from a damaged row, since re-encoding
// them would overwrite the stored history with what little was decoded.
func ToDataModel(e *Entry) (*entryDatamodel.Entry, error) {
	if len(e.damaged) > 0 {
		return nil, corruptEntry(e.ID, e.damaged)
	}
	m := &entryDatamodel.Entry{
		ID:                e.ID,
		UserID:            e.UserID,
		Type:              string(e.Type),
		Category:          e.Category,
		Description:       e.Description,
		Notes:             e.Notes,
		Location:          e.Location,
		Date:              e.Date,
		StartTime:         e.StartTime,
		EndTime:           e.EndTime,
		HourlyRate:        e.HourlyRate,
		Mileage:           e.Mileage,
		MileageRate:       e.MileageRate,
		Tax:               e.Tax,
		Status:            string(e.Status),
		StatusBeforeTrash: string(e.StatusBeforeTrash),
		ReviewerNotes:     e.ReviewerNotes,
		PaymentMethod:     e.PaymentMethod,
		PaymentRef:        e.PaymentRef,
		FirstApprovedBy:   e.FirstApprovedBy,
		SecondApprovedBy:  e.SecondApprovedBy,
		Version:           e.Version,
		CreatedAt:         e.CreatedAt,
		SubmittedAt:       e.SubmittedAt,
		ResubmittedAt:     e.ResubmittedAt,
		ReviewedAt:        e.ReviewedAt,
		SecondApprovedAt:  e.SecondApprovedAt,
		PaidAt:            e.PaidAt,
		TrashedAt:         e.TrashedAt,
		RestoredAt:        e.RestoredAt,
		UpdatedAt:         e.UpdatedAt,
	}

	var err error
	if m.Materials, err = toJSON(e.Materials); err != nil {
		return nil, fmt.Errorf("encode materials: %w", err)
	}
	if m.Items, err = toJSON(e.Items); err != nil {
		return nil, fmt.Errorf("encode items: %w", err)
	}
	if m.BeforePhotos, err = toJSON(e.BeforePhotos); err != nil {
		return nil, fmt.Errorf("encode before photos: %w", err)
	}
	if m.AfterPhotos, err = toJSON(e.AfterPhotos); err != nil {
		return nil, fmt.Errorf("encode after photos: %w", err)
	}
	if m.ReceiptImages, err = toJSON(e.ReceiptImages); err != nil {
		return nil, fmt.Errorf("encode receipt images: %w", err)
	}
	if m.AuditLog, err = toJSON(e.AuditLog); err != nil {
		return nil, fmt.Errorf("encode audit log: %w", err)
	}
	return m, nil
}

// FromDataModel never fails. A malformed JSON column decodes as empty so one
// damaged row cannot break listings or metrics; the column is remembered in
// Damaged so the entry is never saved back.
func FromDataModel(m *entryDatamodel.Entry) *Entry {
	e := &Entry{
		ID:                m.ID,
		UserID:            m.UserID,
		Type:              Type(m.Type),
		Category:          m.Category,
		Description:       m.Description,
		Notes:             m.Notes,
		Location:          m.Location,
		Date:              m.Date,
		StartTime:         m.StartTime,
		EndTime:           m.EndTime,
		HourlyRate:        m.HourlyRate,
		Mileage:           m.Mileage,
		MileageRate:       m.MileageRate,
		Tax:               m.Tax,
		Status:            Status(m.Status),
		StatusBeforeTrash: Status(m.StatusBeforeTrash),
		ReviewerNotes:     m.ReviewerNotes,
		PaymentMethod:     m.PaymentMethod,
		PaymentRef:        m.PaymentRef,
		FirstApprovedBy:   m.FirstApprovedBy,
		SecondApprovedBy:  m.SecondApprovedBy,
		Version:           m.Version,
		CreatedAt:         m.CreatedAt,
		SubmittedAt:       m.SubmittedAt,
		ResubmittedAt:     m.ResubmittedAt,
		ReviewedAt:        m.ReviewedAt,
		SecondApprovedAt:  m.SecondApprovedAt,
		PaidAt:            m.PaidAt,
		TrashedAt:         m.TrashedAt,
		RestoredAt:        m.RestoredAt,
		UpdatedAt:         m.UpdatedAt,
	}

	e.Materials = decodeColumn[money.LineItem](e, "materials", m.Materials)
	e.Items = decodeColumn[money.LineItem](e, "items", m.Items)
	e.BeforePhotos = decodeColumn[string](e, "before_photos", m.BeforePhotos)
	e.AfterPhotos = decodeColumn[string](e, "after_photos", m.AfterPhotos)
	e.ReceiptImages = decodeColumn[string](e, "receipt_images", m.ReceiptImages)
	e.AuditLog = decodeColumn[AuditRecord](e, "audit_log", m.AuditLog)
	return e
}

func decodeColumn[T any](e *Entry, column string, raw datatypes.JSON) []T {
	out, err := fromJSON[T](raw)
	if err != nil {
		e.damaged = append(e.damaged, column)
		return nil
	}
	return out
}

func toJSON[T any](v []T) (datatypes.JSON, error) {
	if v == nil {
		v = []T{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

func fromJSON[T any](raw datatypes.JSON) ([]T, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var out []T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
