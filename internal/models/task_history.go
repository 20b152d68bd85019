package models

import "time"

// TaskHistory is an append-only audit log entry. Rows are only ever
// inserted, never updated or reordered.
type TaskHistory struct {
	ID        uint64    `gorm:"primarykey" json:"id"`
	TaskID    uint64    `gorm:"not null;index" json:"task_id"`
	UserID    *uint64   `json:"user_id"`
	Action    string    `gorm:"type:varchar(255);not null" json:"action"`
	CreatedAt time.Time `json:"created_at"`

	// Relations
	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}
