package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// FileList is a string slice stored as a JSON column.
type FileList []string

func (f FileList) Value() (driver.Value, error) {
	if f == nil {
		return "[]", nil
	}
	b, err := json.Marshal(f)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (f *FileList) Scan(value any) error {
	if value == nil {
		*f = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, f)
	case string:
		return json.Unmarshal([]byte(v), f)
	default:
		return fmt.Errorf("unsupported type for FileList: %T", value)
	}
}

// Commit is an immutable fact ingested from version-control history. The
// unique index on (project_id, url) deduplicates replayed pushes at the
// storage layer.
type Commit struct {
	ID                uint64    `gorm:"primarykey" json:"id"`
	ProjectID         uint64    `gorm:"not null;uniqueIndex:idx_commits_project_url" json:"project_id"`
	URL               string    `gorm:"type:varchar(512);not null;uniqueIndex:idx_commits_project_url" json:"url"`
	CommitterName     string    `gorm:"type:varchar(255)" json:"committer_name"`
	CommitterUsername string    `gorm:"type:varchar(255)" json:"committer_username"`
	Message           string    `gorm:"type:text" json:"message"`
	CommittedAt       time.Time `json:"timestamp"`
	Added             FileList  `gorm:"type:text" json:"added"`
	Removed           FileList  `gorm:"type:text" json:"removed"`
	Modified          FileList  `gorm:"type:text" json:"modified"`
	CreatedAt         time.Time `json:"-"`
}
