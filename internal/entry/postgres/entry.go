package postgres

import (
	"context"
	"errors"

	entryDatamodel "github.com/frahmantamala/hoa-reimbursement/internal/core/datamodel/entry"
	"github.com/frahmantamala/hoa-reimbursement/internal/entry"
	"gorm.io/gorm"
)

type EntryRepository struct {
	db *gorm.DB
}

func NewEntryRepository(db *gorm.DB) entry.RepositoryAPI {
	return &EntryRepository{db: db}
}

func (r *EntryRepository) Create(ctx context.Context, e *entryDatamodel.Entry) error {
	return r.db.WithContext(ctx).Create(e).Error
}

func (r *EntryRepository) GetByID(ctx context.Context, id string) (*entryDatamodel.Entry, error) {
	var e entryDatamodel.Entry
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&e).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &e, nil
}

func (r *EntryRepository) List(ctx context.Context, filter entry.ListFilter) ([]*entryDatamodel.Entry, error) {
	query := r.db.WithContext(ctx).Model(&entryDatamodel.Entry{})

	if filter.UserID != "" {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.Type != "" {
		query = query.Where("type = ?", string(filter.Type))
	}
	switch {
	case filter.Status != "":
		query = query.Where("status = ?", string(filter.Status))
	case !filter.IncludeTrash:
		query = query.Where("status <> ?", string(entry.StatusTrash))
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit).Offset(filter.Offset)
	}

	var entries []*entryDatamodel.Entry
	err := query.Order("created_at DESC").Find(&entries).Error
	return entries, err
}

func (r *EntryRepository) ListAll(ctx context.Context) ([]*entryDatamodel.Entry, error) {
	var entries []*entryDatamodel.Entry
	err := r.db.WithContext(ctx).Order("created_at ASC").Find(&entries).Error
	return entries, err
}

// UpdateIfStatus rewrites every column of e, guarded by the status and
// version the caller read. Zero rows affected means another writer got there
// first.
func (r *EntryRepository) UpdateIfStatus(ctx context.Context, e *entryDatamodel.Entry, expectedStatus string, expectedVersion int64) error {
	result := r.db.WithContext(ctx).
		Model(&entryDatamodel.Entry{}).
		Where("id = ? AND status = ? AND version = ?", e.ID, expectedStatus, expectedVersion).
		Select("*").
		Omit("id", "created_at").
		Updates(e)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return entry.ErrConcurrentUpdate
	}
	return nil
}
