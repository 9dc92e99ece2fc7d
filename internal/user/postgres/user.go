package postgres

import (
	"context"
	"errors"
	"time"

	userDatamodel "github.com/frahmantamala/hoa-reimbursement/internal/core/datamodel/user"
	"github.com/frahmantamala/hoa-reimbursement/internal/user"
	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) user.RepositoryAPI {
	return &UserRepository{db: db}
}

// GetByID returns nil, nil when no row matches.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*userDatamodel.User, error) {
	var u userDatamodel.User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) List(ctx context.Context) ([]*userDatamodel.User, error) {
	var users []*userDatamodel.User
	err := r.db.WithContext(ctx).Order("name ASC").Find(&users).Error
	return users, err
}

func (r *UserRepository) Create(ctx context.Context, u *userDatamodel.User) error {
	return r.db.WithContext(ctx).Create(u).Error
}

func (r *UserRepository) TouchLastActive(ctx context.Context, id string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&userDatamodel.User{}).
		Where("id = ?", id).
		Update("last_active_at", at).Error
}
