package nudge

import "time"

type Nudge struct {
	ID          string     `gorm:"primaryKey;type:varchar(26)"`
	RecipientID string     `gorm:"column:recipient_id;not null;index"`
	SenderID    string     `gorm:"column:sender_id;not null"`
	Template    string     `gorm:"column:template;not null"`
	Message     string     `gorm:"column:message;not null"`
	EntryID     *string    `gorm:"column:entry_id"`
	CreatedAt   time.Time  `gorm:"column:created_at"`
	ReadAt      *time.Time `gorm:"column:read_at"`
	DismissedAt *time.Time `gorm:"column:dismissed_at"`
	ActedOnAt   *time.Time `gorm:"column:acted_on_at"`
}

func (Nudge) TableName() string {
	return "nudges"
}
