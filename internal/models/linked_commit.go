package models

import "time"

// LinkedCommit records a commit attached to a task by automation. The
// unique index on (task_id, commit_url) makes linking idempotent: replaying
// the same push cannot attach the same commit twice.
type LinkedCommit struct {
	ID          uint64    `gorm:"primarykey" json:"id"`
	TaskID      uint64    `gorm:"not null;uniqueIndex:idx_linked_commits_task_url" json:"task_id"`
	CommitURL   string    `gorm:"type:varchar(512);not null;uniqueIndex:idx_linked_commits_task_url" json:"url"`
	Message     string    `gorm:"type:text" json:"message"`
	Committer   string    `gorm:"type:varchar(255)" json:"committer"`
	CommittedAt time.Time `json:"timestamp"`
	CreatedAt   time.Time `json:"-"`
}
