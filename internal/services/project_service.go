package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/devtrackhq/devtrack/internal/dto"
	"github.com/devtrackhq/devtrack/internal/metrics"
	"github.com/devtrackhq/devtrack/internal/models"
	"github.com/devtrackhq/devtrack/internal/realtime"
	"github.com/devtrackhq/devtrack/internal/repository"
)

var (
	ErrProjectNotFound  = errors.New("project not found")
	ErrNameRequired     = errors.New("project name is required")
	ErrNotMember        = errors.New("user is not a member of this project")
	ErrAlreadyMember    = errors.New("user is already a member of this project")
	ErrOwnerCannotLeave = errors.New("the owner cannot leave the project")
	ErrNoInvitation     = errors.New("no pending invitation for this project")
	ErrInvalidRole      = errors.New("invalid member role")
)

// ProjectService handles project lifecycle and membership.
type ProjectService struct {
	projects      repository.ProjectRepository
	tasks         repository.TaskRepository
	users         repository.UserRepository
	notifications *NotificationService
	ingest        *IngestService
	publisher     realtime.Publisher
	log           *zap.Logger
}

// NewProjectService creates a new ProjectService.
func NewProjectService(projects repository.ProjectRepository, tasks repository.TaskRepository, users repository.UserRepository, notifications *NotificationService, ingest *IngestService, publisher realtime.Publisher, log *zap.Logger) *ProjectService {
	return &ProjectService{
		projects:      projects,
		tasks:         tasks,
		users:         users,
		notifications: notifications,
		ingest:        ingest,
		publisher:     publisher,
		log:           log,
	}
}

// CreateProjectInput represents input for creating a project.
type CreateProjectInput struct {
	OwnerID      uint64
	Name         string
	RepoURL      string
	GithubRepoID string
	Deadline     *time.Time
}

// CreateProject creates a project and enrolls the creator as its owner.
func (s *ProjectService) CreateProject(input CreateProjectInput) (*models.Project, error) {
	if input.Name == "" {
		return nil, ErrNameRequired
	}

	project := &models.Project{
		Name:         input.Name,
		RepoURL:      input.RepoURL,
		GithubRepoID: input.GithubRepoID,
		Deadline:     input.Deadline,
	}
	if err := s.projects.Create(project); err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	err := s.projects.AddMember(&models.ProjectMember{
		ProjectID: project.ID,
		UserID:    input.OwnerID,
		Role:      models.RoleOwner,
		Status:    models.MemberStatusAccepted,
		JoinedAt:  time.Now(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add project owner: %w", err)
	}

	return s.projects.FindByID(project.ID, "Members", "Members.User")
}

// ListProjects returns every project the user is an accepted member of.
func (s *ProjectService) ListProjects(userID uint64) ([]models.Project, error) {
	projects, err := s.projects.ListForUser(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	return projects, nil
}

// GetProject returns a project with members, tasks and commit history. When
// the project is linked to a repository but has no commits yet, it syncs
// commit history from the hosting provider first.
func (s *ProjectService) GetProject(ctx context.Context, projectID uint64) (*models.Project, error) {
	project, err := s.findProject(projectID, "Members", "Members.User")
	if err != nil {
		return nil, err
	}

	if project.RepoURL != "" {
		count, err := s.ingest.CountCommits(projectID)
		if err == nil && count == 0 {
			if _, err := s.ingest.SyncFromGithub(ctx, project); err != nil {
				s.log.Warn("initial commit sync failed",
					zap.Uint64("project_id", projectID), zap.Error(err))
			}
		}
	}

	tasks, err := s.tasks.ListByProject(projectID, "Assignees")
	if err != nil {
		return nil, fmt.Errorf("failed to list project tasks: %w", err)
	}
	project.Tasks = tasks

	return project, nil
}

// UpdateProjectInput represents input for updating a project. Nil fields
// are left unchanged.
type UpdateProjectInput struct {
	Name         *string
	RepoURL      *string
	GithubRepoID *string
	Deadline     *time.Time
}

// UpdateProject applies the given changes to the project.
func (s *ProjectService) UpdateProject(projectID uint64, input UpdateProjectInput) (*models.Project, error) {
	project, err := s.findProject(projectID)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		if *input.Name == "" {
			return nil, ErrNameRequired
		}
		project.Name = *input.Name
	}
	if input.RepoURL != nil {
		project.RepoURL = *input.RepoURL
	}
	if input.GithubRepoID != nil {
		project.GithubRepoID = *input.GithubRepoID
	}
	if input.Deadline != nil {
		project.Deadline = input.Deadline
	}

	if err := s.projects.Save(project); err != nil {
		return nil, fmt.Errorf("failed to update project: %w", err)
	}
	return project, nil
}

// DeleteProject removes the project and everything under it: tasks and
// their relations, memberships and stored commits.
func (s *ProjectService) DeleteProject(projectID uint64) error {
	if _, err := s.findProject(projectID); err != nil {
		return err
	}
	if err := s.tasks.DeleteByProject(projectID); err != nil {
		return fmt.Errorf("failed to delete project tasks: %w", err)
	}
	if err := s.projects.Delete(projectID); err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	return nil
}

// Leave removes the user's own membership. The owner cannot leave.
func (s *ProjectService) Leave(projectID, userID uint64) error {
	member, err := s.findMember(projectID, userID)
	if err != nil {
		return err
	}
	if member.Role == models.RoleOwner {
		return ErrOwnerCannotLeave
	}
	return s.removeMembership(projectID, userID)
}

// RemoveMember removes a member from the project and unassigns them from
// every task in it.
func (s *ProjectService) RemoveMember(projectID, userID uint64) error {
	if _, err := s.findMember(projectID, userID); err != nil {
		return err
	}
	return s.removeMembership(projectID, userID)
}

// UpdateMemberRole changes a member's role, promoting or demoting between
// owner, member and viewer.
func (s *ProjectService) UpdateMemberRole(projectID, userID uint64, role models.ProjectRole) (*models.ProjectMember, error) {
	if !models.ValidProjectRole(role) {
		return nil, ErrInvalidRole
	}

	member, err := s.findMember(projectID, userID)
	if err != nil {
		return nil, err
	}

	member.Role = role
	if err := s.projects.SaveMember(member); err != nil {
		return nil, fmt.Errorf("failed to update member role: %w", err)
	}

	if user, err := s.users.FindByID(userID); err == nil {
		member.User = *user
	}

	return member, nil
}

// Invite creates a pending membership for the named user and notifies them.
func (s *ProjectService) Invite(projectID, actorID uint64, username string) (*models.ProjectMember, error) {
	project, err := s.findProject(projectID)
	if err != nil {
		return nil, err
	}

	user, err := s.users.FindByUsername(username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if _, err := s.projects.FindMember(projectID, user.ID); err == nil {
		return nil, ErrAlreadyMember
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check membership: %w", err)
	}

	member := &models.ProjectMember{
		ProjectID: projectID,
		UserID:    user.ID,
		Role:      models.RoleMember,
		Status:    models.MemberStatusPending,
		JoinedAt:  time.Now(),
	}
	if err := s.projects.AddMember(member); err != nil {
		return nil, fmt.Errorf("failed to add member: %w", err)
	}
	member.User = *user

	if actor, err := s.users.FindByID(actorID); err == nil {
		s.notifyMembership(&models.Notification{
			RecipientID: user.ID,
			SenderID:    &actorID,
			Type:        models.NotificationProjectInvitation,
			Message:     fmt.Sprintf("%s invited you to join project: %s", actor.Username, project.Name),
			ProjectID:   &projectID,
		})
	}

	s.publishMemberEvent(projectID, realtime.EventMemberInvited, member)

	return member, nil
}

// AcceptInvitation turns the user's pending membership into an accepted one.
func (s *ProjectService) AcceptInvitation(projectID, userID uint64) (*models.ProjectMember, error) {
	member, err := s.findPendingMember(projectID, userID)
	if err != nil {
		return nil, err
	}

	member.Status = models.MemberStatusAccepted
	member.JoinedAt = time.Now()
	if err := s.projects.SaveMember(member); err != nil {
		return nil, fmt.Errorf("failed to accept invitation: %w", err)
	}

	if user, err := s.users.FindByID(userID); err == nil {
		member.User = *user
	}

	s.publishMemberEvent(projectID, realtime.EventMemberAdded, member)

	return member, nil
}

// RejectInvitation discards the user's pending membership.
func (s *ProjectService) RejectInvitation(projectID, userID uint64) error {
	if _, err := s.findPendingMember(projectID, userID); err != nil {
		return err
	}
	if err := s.projects.RemoveMember(projectID, userID); err != nil {
		return fmt.Errorf("failed to reject invitation: %w", err)
	}
	return nil
}

// ListInvitations returns projects the user has a pending invitation to.
func (s *ProjectService) ListInvitations(userID uint64) ([]models.Project, error) {
	projects, err := s.projects.ListInvitationsForUser(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}
	return projects, nil
}

// Nudge sends a prodding notification to a fellow project member.
func (s *ProjectService) Nudge(projectID, actorID, targetID uint64) error {
	project, err := s.findProject(projectID)
	if err != nil {
		return err
	}
	if _, err := s.findMember(projectID, targetID); err != nil {
		return err
	}
	actor, err := s.users.FindByID(actorID)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}

	s.notifyMembership(&models.Notification{
		RecipientID: targetID,
		SenderID:    &actorID,
		Type:        models.NotificationNudge,
		Message:     fmt.Sprintf("%s nudged you to contribute more in %s!", actor.Username, project.Name),
		ProjectID:   &projectID,
	})
	return nil
}

// SyncCommits pulls the project's commit history from its linked repository.
func (s *ProjectService) SyncCommits(ctx context.Context, projectID uint64) ([]models.Commit, error) {
	project, err := s.findProject(projectID)
	if err != nil {
		return nil, err
	}
	return s.ingest.SyncFromGithub(ctx, project)
}

// ListMembers returns the project's memberships with users loaded.
func (s *ProjectService) ListMembers(projectID uint64) ([]models.ProjectMember, error) {
	members, err := s.projects.ListMembers(projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	return members, nil
}

func (s *ProjectService) removeMembership(projectID, userID uint64) error {
	if err := s.projects.RemoveMember(projectID, userID); err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}
	if err := s.tasks.UnassignUserFromProject(projectID, userID); err != nil {
		s.log.Warn("failed to unassign removed member",
			zap.Uint64("project_id", projectID), zap.Uint64("user_id", userID), zap.Error(err))
	}
	return nil
}

func (s *ProjectService) publishMemberEvent(projectID uint64, event string, member *models.ProjectMember) {
	err := s.publisher.Publish(realtime.ProjectChannel(projectID), event, dto.ToMemberDTO(*member))
	if err != nil {
		metrics.PublishFailures.Inc()
		s.log.Warn("failed to publish member event",
			zap.Uint64("project_id", projectID), zap.String("event", event), zap.Error(err))
	}
}

func (s *ProjectService) notifyMembership(n *models.Notification) {
	if err := s.notifications.Notify(n); err != nil {
		s.log.Warn("failed to create notification",
			zap.Uint64("recipient_id", n.RecipientID), zap.Error(err))
	}
}

func (s *ProjectService) findProject(projectID uint64, preload ...string) (*models.Project, error) {
	project, err := s.projects.FindByID(projectID, preload...)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to find project: %w", err)
	}
	return project, nil
}

func (s *ProjectService) findMember(projectID, userID uint64) (*models.ProjectMember, error) {
	member, err := s.projects.FindMember(projectID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotMember
		}
		return nil, fmt.Errorf("failed to find member: %w", err)
	}
	return member, nil
}

func (s *ProjectService) findPendingMember(projectID, userID uint64) (*models.ProjectMember, error) {
	member, err := s.findMember(projectID, userID)
	if err != nil {
		if errors.Is(err, ErrNotMember) {
			return nil, ErrNoInvitation
		}
		return nil, err
	}
	if member.Status != models.MemberStatusPending {
		return nil, ErrNoInvitation
	}
	return member, nil
}
