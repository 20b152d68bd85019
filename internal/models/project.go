package models

import (
	"time"

	"gorm.io/gorm"
)

type Project struct {
	ID           uint64         `gorm:"primarykey" json:"id"`
	Name         string         `gorm:"type:varchar(255);not null" json:"name"`
	RepoURL      string         `gorm:"type:varchar(255)" json:"repo_url"`
	GithubRepoID string         `gorm:"type:varchar(50);index" json:"github_repo_id"`
	Deadline     *time.Time     `json:"deadline"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`

	// Relations
	Members []ProjectMember `gorm:"foreignKey:ProjectID" json:"members,omitempty"`
	Tasks   []Task          `gorm:"foreignKey:ProjectID" json:"tasks,omitempty"`
}
