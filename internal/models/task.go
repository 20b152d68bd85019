package models

import (
	"time"

	"gorm.io/gorm"
)

type TaskStatus string

const (
	TaskStatusTodo  TaskStatus = "todo"
	TaskStatusDoing TaskStatus = "doing"
	TaskStatusDone  TaskStatus = "done"
)

// ValidTaskStatus reports whether s is one of the persisted task statuses.
// "at risk" is a read-time overlay computed in the DTO layer and is never
// stored or accepted as a transition target.
func ValidTaskStatus(s TaskStatus) bool {
	switch s {
	case TaskStatusTodo, TaskStatusDoing, TaskStatusDone:
		return true
	}
	return false
}

type Task struct {
	ID        uint64     `gorm:"primarykey" json:"id"`
	Number    int        `gorm:"not null;uniqueIndex:idx_tasks_project_number" json:"number"`
	ProjectID uint64     `gorm:"not null;uniqueIndex:idx_tasks_project_number" json:"project_id"`
	Title     string     `gorm:"not null" json:"title"`
	Status    TaskStatus `gorm:"type:varchar(20);not null;default:'todo'" json:"status"`
	Deadline  *time.Time `json:"deadline"`

	// LockVersion guards concurrent status updates: writers compare-and-swap
	// against it and retry on conflict.
	LockVersion uint32 `gorm:"not null;default:0" json:"-"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// Relations
	Project       Project        `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
	Assignees     []User         `gorm:"many2many:task_assignees" json:"assignees,omitempty"`
	History       []TaskHistory  `gorm:"foreignKey:TaskID" json:"history,omitempty"`
	Comments      []TaskComment  `gorm:"foreignKey:TaskID" json:"comments,omitempty"`
	LinkedCommits []LinkedCommit `gorm:"foreignKey:TaskID" json:"linked_commits,omitempty"`
}
