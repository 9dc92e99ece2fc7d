package user

import (
	"time"

	coreUser "github.com/frahmantamala/hoa-reimbursement/internal/core/user"
	userDatamodel "github.com/frahmantamala/hoa-reimbursement/internal/core/datamodel/user"
	"github.com/shopspring/decimal"
)

type Role = coreUser.Role

const (
	RoleTreasurer = coreUser.RoleTreasurer
	RoleMember    = coreUser.RoleMember
)

type User struct {
	ID           string           `json:"id"`
	Email        string           `json:"email"`
	Name         string           `json:"name"`
	PasswordHash string           `json:"-"`
	Role         Role             `json:"role"`
	HourlyRate   *decimal.Decimal `json:"hourly_rate,omitempty"`
	IsActive     bool             `json:"is_active"`
	LastActiveAt *time.Time       `json:"last_active_at,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

func (u *User) IsTreasurer() bool {
	return u.Role.IsTreasurer()
}

// RateOr returns the user's hourly rate override, or fallback when none is set.
func (u *User) RateOr(fallback decimal.Decimal) decimal.Decimal {
	if u != nil && u.HourlyRate != nil && u.HourlyRate.IsPositive() {
		return *u.HourlyRate
	}
	return fallback
}

func ToDataModel(u *User) *userDatamodel.User {
	m := &userDatamodel.User{
		ID:           u.ID,
		Email:        u.Email,
		Name:         u.Name,
		PasswordHash: u.PasswordHash,
		Role:         string(u.Role),
		IsActive:     u.IsActive,
		LastActiveAt: u.LastActiveAt,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
	if u.HourlyRate != nil {
		m.HourlyRate = decimal.NewNullDecimal(*u.HourlyRate)
	}
	return m
}

func FromDataModel(m *userDatamodel.User) *User {
	u := &User{
		ID:           m.ID,
		Email:        m.Email,
		Name:         m.Name,
		PasswordHash: m.PasswordHash,
		Role:         Role(m.Role),
		IsActive:     m.IsActive,
		LastActiveAt: m.LastActiveAt,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
	if !u.Role.Valid() {
		u.Role = RoleMember
	}
	if m.HourlyRate.Valid {
		rate := m.HourlyRate.Decimal
		u.HourlyRate = &rate
	}
	return u
}
