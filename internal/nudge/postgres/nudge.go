package postgres

import (
	"context"
	"errors"

	nudgeDatamodel "github.com/frahmantamala/hoa-reimbursement/internal/core/datamodel/nudge"
	"github.com/frahmantamala/hoa-reimbursement/internal/nudge"
	"gorm.io/gorm"
)

type NudgeRepository struct {
	db *gorm.DB
}

func NewNudgeRepository(db *gorm.DB) nudge.RepositoryAPI {
	return &NudgeRepository{db: db}
}

func (r *NudgeRepository) Create(ctx context.Context, n *nudgeDatamodel.Nudge) error {
	return r.db.WithContext(ctx).Create(n).Error
}

func (r *NudgeRepository) GetByID(ctx context.Context, id string) (*nudgeDatamodel.Nudge, error) {
	var n nudgeDatamodel.Nudge
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&n).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &n, nil
}

func (r *NudgeRepository) ListByRecipient(ctx context.Context, recipientID string) ([]*nudgeDatamodel.Nudge, error) {
	var nudges []*nudgeDatamodel.Nudge
	err := r.db.WithContext(ctx).
		Where("recipient_id = ?", recipientID).
		Order("created_at ASC").
		Find(&nudges).Error
	return nudges, err
}

// Update writes the recipient-side timestamps.
func (r *NudgeRepository) Update(ctx context.Context, n *nudgeDatamodel.Nudge) error {
	return r.db.WithContext(ctx).Model(&nudgeDatamodel.Nudge{}).
		Where("id = ?", n.ID).
		Updates(map[string]interface{}{
			"read_at":      n.ReadAt,
			"dismissed_at": n.DismissedAt,
			"acted_on_at":  n.ActedOnAt,
		}).Error
}
