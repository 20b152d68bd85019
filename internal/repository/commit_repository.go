package repository

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/devtrackhq/devtrack/internal/models"
)

// GormCommitRepository is a GORM implementation of CommitRepository
type GormCommitRepository struct {
	db *gorm.DB
}

// NewCommitRepository creates a new CommitRepository
func NewCommitRepository(db *gorm.DB) CommitRepository {
	return &GormCommitRepository{db: db}
}

// InsertIgnoreDuplicates stores commits one by one so that a duplicate URL
// skips only that commit, and returns the commits actually stored in their
// original delivery order.
func (r *GormCommitRepository) InsertIgnoreDuplicates(commits []models.Commit) ([]models.Commit, error) {
	stored := make([]models.Commit, 0, len(commits))

	for i := range commits {
		res := r.db.
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "project_id"}, {Name: "url"}},
				DoNothing: true,
			}).
			Create(&commits[i])
		if res.Error != nil {
			return stored, res.Error
		}
		if res.RowsAffected > 0 {
			stored = append(stored, commits[i])
		}
	}

	return stored, nil
}

// ListByProject lists a project's commits, newest first
func (r *GormCommitRepository) ListByProject(projectID uint64) ([]models.Commit, error) {
	var commits []models.Commit
	err := r.db.
		Where("project_id = ?", projectID).
		Order("committed_at DESC").
		Find(&commits).Error
	if err != nil {
		return nil, err
	}
	return commits, nil
}

// ListByProjectPaged lists a page of a project's commits, newest first
func (r *GormCommitRepository) ListByProjectPaged(projectID uint64, offset, limit int) ([]models.Commit, error) {
	var commits []models.Commit
	err := r.db.
		Where("project_id = ?", projectID).
		Order("committed_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&commits).Error
	if err != nil {
		return nil, err
	}
	return commits, nil
}

// CountByProject counts a project's commits
func (r *GormCommitRepository) CountByProject(projectID uint64) (int64, error) {
	var count int64
	err := r.db.Model(&models.Commit{}).
		Where("project_id = ?", projectID).
		Count(&count).Error
	return count, err
}

// DeleteByProject removes all commits of a project
func (r *GormCommitRepository) DeleteByProject(projectID uint64) error {
	return r.db.Where("project_id = ?", projectID).Delete(&models.Commit{}).Error
}
