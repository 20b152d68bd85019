package models

import "time"

type NotificationType string

const (
	NotificationTaskAssigned      NotificationType = "task_assigned"
	NotificationMention           NotificationType = "mention"
	NotificationNudge             NotificationType = "nudge"
	NotificationProjectInvitation NotificationType = "project_invitation"
)

type Notification struct {
	ID          uint64           `gorm:"primarykey" json:"id"`
	RecipientID uint64           `gorm:"not null;index" json:"recipient_id"`
	SenderID    *uint64          `json:"sender_id"`
	Type        NotificationType `gorm:"type:varchar(30);not null" json:"type"`
	Message     string           `gorm:"type:varchar(512);not null" json:"message"`
	ProjectID   *uint64          `json:"project_id"`
	Read        bool             `gorm:"not null;default:false" json:"read"`
	CreatedAt   time.Time        `json:"created_at"`

	// Relations
	Sender *User `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
}
