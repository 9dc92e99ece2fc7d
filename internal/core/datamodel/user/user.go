package user

import (
	"time"

	"github.com/shopspring/decimal"
)

type User struct {
	ID           string              `gorm:"primaryKey;type:varchar(26)"`
	Email        string              `gorm:"column:email;uniqueIndex;not null"`
	Name         string              `gorm:"column:name;not null"`
	PasswordHash string              `gorm:"column:password_hash;not null"`
	Role         string              `gorm:"column:role;not null;default:member"`
	HourlyRate   decimal.NullDecimal `gorm:"column:hourly_rate;type:numeric(10,2)"`
	IsActive     bool                `gorm:"column:is_active;default:true"`
	LastActiveAt *time.Time          `gorm:"column:last_active_at"`
	CreatedAt    time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (User) TableName() string {
	return "users"
}
