package repository

import (
	"gorm.io/gorm"

	"github.com/devtrackhq/devtrack/internal/models"
)

// GormProjectRepository is a GORM implementation of ProjectRepository
type GormProjectRepository struct {
	db *gorm.DB
}

// NewProjectRepository creates a new ProjectRepository
func NewProjectRepository(db *gorm.DB) ProjectRepository {
	return &GormProjectRepository{db: db}
}

// Create creates a new project
func (r *GormProjectRepository) Create(project *models.Project) error {
	return r.db.Create(project).Error
}

// FindByID finds a project by ID with optional preloading
func (r *GormProjectRepository) FindByID(id uint64, preload ...string) (*models.Project, error) {
	var project models.Project
	query := r.db

	for _, p := range preload {
		query = query.Preload(p)
	}

	if err := query.First(&project, id).Error; err != nil {
		return nil, err
	}

	return &project, nil
}

// FindByGithubRepoID finds the project linked to a GitHub repository
func (r *GormProjectRepository) FindByGithubRepoID(repoID string) (*models.Project, error) {
	var project models.Project
	if err := r.db.Where("github_repo_id = ?", repoID).First(&project).Error; err != nil {
		return nil, err
	}
	return &project, nil
}

// Save persists all fields of a project
func (r *GormProjectRepository) Save(project *models.Project) error {
	return r.db.Save(project).Error
}

// Delete removes a project and cascades to members and commits. Task
// cleanup is the task repository's concern and runs before this.
func (r *GormProjectRepository) Delete(id uint64) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("project_id = ?", id).Delete(&models.ProjectMember{}).Error; err != nil {
			return err
		}
		if err := tx.Where("project_id = ?", id).Delete(&models.Commit{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Project{}, id).Error
	})
}

// ListForUser lists projects where the user is an accepted member
func (r *GormProjectRepository) ListForUser(userID uint64) ([]models.Project, error) {
	return r.listByMembership(userID, models.MemberStatusAccepted)
}

// ListInvitationsForUser lists projects with a pending invitation for the user
func (r *GormProjectRepository) ListInvitationsForUser(userID uint64) ([]models.Project, error) {
	return r.listByMembership(userID, models.MemberStatusPending)
}

func (r *GormProjectRepository) listByMembership(userID uint64, status models.MemberStatus) ([]models.Project, error) {
	var projects []models.Project
	err := r.db.
		Joins("JOIN project_members ON project_members.project_id = projects.id").
		Where("project_members.user_id = ? AND project_members.status = ?", userID, status).
		Preload("Members").
		Preload("Members.User").
		Order("projects.created_at DESC").
		Find(&projects).Error
	if err != nil {
		return nil, err
	}
	return projects, nil
}

// AddMember adds a member row
func (r *GormProjectRepository) AddMember(member *models.ProjectMember) error {
	return r.db.Create(member).Error
}

// FindMember finds a specific membership row
func (r *GormProjectRepository) FindMember(projectID, userID uint64) (*models.ProjectMember, error) {
	var member models.ProjectMember
	err := r.db.
		Where("project_id = ? AND user_id = ?", projectID, userID).
		First(&member).Error
	if err != nil {
		return nil, err
	}
	return &member, nil
}

// SaveMember persists a membership row
func (r *GormProjectRepository) SaveMember(member *models.ProjectMember) error {
	return r.db.Save(member).Error
}

// RemoveMember deletes a membership row
func (r *GormProjectRepository) RemoveMember(projectID, userID uint64) error {
	return r.db.
		Where("project_id = ? AND user_id = ?", projectID, userID).
		Delete(&models.ProjectMember{}).Error
}

// ListMembers lists all members of a project with users preloaded
func (r *GormProjectRepository) ListMembers(projectID uint64) ([]models.ProjectMember, error) {
	var members []models.ProjectMember
	err := r.db.
		Where("project_id = ?", projectID).
		Preload("User").
		Find(&members).Error
	if err != nil {
		return nil, err
	}
	return members, nil
}
