package repository

import (
	"github.com/devtrackhq/devtrack/internal/models"
)

// TaskRepository defines the interface for task data access
type TaskRepository interface {
	// Create creates a new task
	Create(task *models.Task) error

	// FindByID finds a task by ID with optional preloading
	FindByID(id uint64, preload ...string) (*models.Task, error)

	// FindByProjectAndNumbers finds tasks in a project by their
	// human-readable numbers
	FindByProjectAndNumbers(projectID uint64, numbers []int) ([]models.Task, error)

	// FindOpenAssigned finds a user's assigned, not-yet-done tasks in a project
	FindOpenAssigned(projectID, userID uint64) ([]models.Task, error)

	// ListByProject lists all tasks of a project
	ListByProject(projectID uint64, preload ...string) ([]models.Task, error)

	// ListAssignedToUser lists tasks assigned to a user across projects,
	// earliest deadline first
	ListAssignedToUser(userID uint64) ([]models.Task, error)

	// CountByProject counts tasks in a project, including soft-deleted ones,
	// so task numbers are never reused
	CountByProject(projectID uint64) (int64, error)

	// Save persists all fields of a task
	Save(task *models.Task) error

	// UpdateStatusVersioned applies a status change only if the stored
	// lock_version still matches. Returns false when another writer won.
	UpdateStatusVersioned(taskID uint64, lockVersion uint32, status models.TaskStatus) (bool, error)

	// LinkCommit inserts a linked commit unless the task already has one
	// with the same URL. Returns true when a row was inserted.
	LinkCommit(lc *models.LinkedCommit) (bool, error)

	// AppendHistory appends one audit entry
	AppendHistory(entry *models.TaskHistory) error

	// AddComment appends one comment
	AddComment(comment *models.TaskComment) error

	// AssignUser adds a user to the task's assignee set (idempotent)
	AssignUser(taskID, userID uint64) error

	// UnassignUser removes a user from the task's assignee set
	UnassignUser(taskID, userID uint64) error

	// IsAssigned reports whether the user is in the task's assignee set
	IsAssigned(taskID, userID uint64) (bool, error)

	// UnassignUserFromProject removes a user from every task of a project
	UnassignUserFromProject(projectID, userID uint64) error

	// DeleteByProject removes all tasks of a project with their child rows
	DeleteByProject(projectID uint64) error
}

// ProjectRepository defines the interface for project data access
type ProjectRepository interface {
	// Create creates a new project
	Create(project *models.Project) error

	// FindByID finds a project by ID with optional preloading
	FindByID(id uint64, preload ...string) (*models.Project, error)

	// FindByGithubRepoID finds the project linked to a GitHub repository
	FindByGithubRepoID(repoID string) (*models.Project, error)

	// Save persists all fields of a project
	Save(project *models.Project) error

	// Delete removes a project and cascades to members, tasks and commits
	Delete(id uint64) error

	// ListForUser lists projects where the user is an accepted member
	ListForUser(userID uint64) ([]models.Project, error)

	// ListInvitationsForUser lists projects with a pending invitation for the user
	ListInvitationsForUser(userID uint64) ([]models.Project, error)

	// AddMember adds a member row
	AddMember(member *models.ProjectMember) error

	// FindMember finds a specific membership row
	FindMember(projectID, userID uint64) (*models.ProjectMember, error)

	// SaveMember persists a membership row
	SaveMember(member *models.ProjectMember) error

	// RemoveMember deletes a membership row
	RemoveMember(projectID, userID uint64) error

	// ListMembers lists all members of a project with users preloaded
	ListMembers(projectID uint64) ([]models.ProjectMember, error)
}

// UserRepository defines the interface for user data access
type UserRepository interface {
	// Create creates a new user
	Create(user *models.User) error

	// FindByID finds a user by ID
	FindByID(id uint64) (*models.User, error)

	// FindByUsername finds a user by exact username
	FindByUsername(username string) (*models.User, error)

	// FindByUsernameFold finds a user by username, ignoring case
	FindByUsernameFold(username string) (*models.User, error)

	// FindByUsernames finds users matching any of the given usernames
	FindByUsernames(usernames []string) ([]models.User, error)
}

// CommitRepository defines the interface for commit data access
type CommitRepository interface {
	// InsertIgnoreDuplicates stores commits, skipping any whose URL is
	// already recorded for the project. Returns the commits actually stored.
	InsertIgnoreDuplicates(commits []models.Commit) ([]models.Commit, error)

	// ListByProject lists a project's commits, newest first
	ListByProject(projectID uint64) ([]models.Commit, error)

	// ListByProjectPaged lists a page of a project's commits, newest first
	ListByProjectPaged(projectID uint64, offset, limit int) ([]models.Commit, error)

	// CountByProject counts a project's commits
	CountByProject(projectID uint64) (int64, error)

	// DeleteByProject removes all commits of a project
	DeleteByProject(projectID uint64) error
}

// NotificationRepository defines the interface for notification data access
type NotificationRepository interface {
	// Create creates a new notification
	Create(n *models.Notification) error

	// ListForUser lists a user's notifications, newest first
	ListForUser(recipientID uint64, limit int) ([]models.Notification, error)

	// MarkRead marks one of the user's notifications as read
	MarkRead(id, recipientID uint64) error

	// MarkAllRead marks all of the user's notifications as read
	MarkAllRead(recipientID uint64) error
}
