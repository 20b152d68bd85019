package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/devtrackhq/devtrack/internal/automation"
	"github.com/devtrackhq/devtrack/internal/github"
	"github.com/devtrackhq/devtrack/internal/models"
	"github.com/devtrackhq/devtrack/internal/realtime"
	"github.com/devtrackhq/devtrack/internal/repository"
)

type projectServiceTestEnv struct {
	db             *gorm.DB
	publisher      *recordingPublisher
	projectService *ProjectService
	taskService    *TaskService
	ingestService  *IngestService
}

func setupProjectServiceTestEnv(t *testing.T) *projectServiceTestEnv {
	t.Helper()

	db := newTestDB(t)
	publisher := &recordingPublisher{}
	logger := zap.NewNop()

	userRepo := repository.NewUserRepository(db)
	projectRepo := repository.NewProjectRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	commitRepo := repository.NewCommitRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	notifications := NewNotificationService(notificationRepo, userRepo, publisher, logger)
	reconciler := automation.NewReconciler(taskRepo, userRepo, publisher, logger)
	ingest := NewIngestService(commitRepo, projectRepo, reconciler, publisher, github.NewClient("http://localhost:0"), logger)
	taskService := NewTaskService(taskRepo, userRepo, notifications, publisher, logger)
	projectService := NewProjectService(projectRepo, taskRepo, userRepo, notifications, ingest, publisher, logger)

	return &projectServiceTestEnv{
		db:             db,
		publisher:      publisher,
		projectService: projectService,
		taskService:    taskService,
		ingestService:  ingest,
	}
}

func (env *projectServiceTestEnv) createUser(t *testing.T, username string) models.User {
	t.Helper()
	user := models.User{Username: username, PasswordHash: "x"}
	require.NoError(t, env.db.Create(&user).Error)
	return user
}

func TestProjectService_CreateEnrollsOwner(t *testing.T) {
	env := setupProjectServiceTestEnv(t)
	owner := env.createUser(t, "dana")

	project, err := env.projectService.CreateProject(CreateProjectInput{
		OwnerID: owner.ID,
		Name:    "devtrack",
	})
	require.NoError(t, err)
	require.Len(t, project.Members, 1)
	require.Equal(t, models.RoleOwner, project.Members[0].Role)
	require.Equal(t, models.MemberStatusAccepted, project.Members[0].Status)

	projects, err := env.projectService.ListProjects(owner.ID)
	require.NoError(t, err)
	require.Len(t, projects, 1)
}

func TestProjectService_InvitationLifecycle(t *testing.T) {
	env := setupProjectServiceTestEnv(t)
	owner := env.createUser(t, "dana")
	invitee := env.createUser(t, "rob")

	project, err := env.projectService.CreateProject(CreateProjectInput{
		OwnerID: owner.ID,
		Name:    "devtrack",
	})
	require.NoError(t, err)

	member, err := env.projectService.Invite(project.ID, owner.ID, "rob")
	require.NoError(t, err)
	require.Equal(t, models.MemberStatusPending, member.Status)

	// Inviting twice is a conflict.
	_, err = env.projectService.Invite(project.ID, owner.ID, "rob")
	require.ErrorIs(t, err, ErrAlreadyMember)

	// The invitee sees it, but the project list stays empty until accepting.
	invitations, err := env.projectService.ListInvitations(invitee.ID)
	require.NoError(t, err)
	require.Len(t, invitations, 1)

	projects, err := env.projectService.ListProjects(invitee.ID)
	require.NoError(t, err)
	require.Empty(t, projects)

	var stored []models.Notification
	require.NoError(t, env.db.Where("recipient_id = ?", invitee.ID).Find(&stored).Error)
	require.Len(t, stored, 1)
	require.Equal(t, models.NotificationProjectInvitation, stored[0].Type)

	accepted, err := env.projectService.AcceptInvitation(project.ID, invitee.ID)
	require.NoError(t, err)
	require.Equal(t, models.MemberStatusAccepted, accepted.Status)

	projects, err = env.projectService.ListProjects(invitee.ID)
	require.NoError(t, err)
	require.Len(t, projects, 1)

	// Accepting again is not possible; the invitation is gone.
	_, err = env.projectService.AcceptInvitation(project.ID, invitee.ID)
	require.ErrorIs(t, err, ErrNoInvitation)

	invited := env.publisher.byEvent(realtime.EventMemberInvited)
	require.Len(t, invited, 1)
	added := env.publisher.byEvent(realtime.EventMemberAdded)
	require.Len(t, added, 1)
	require.Equal(t, realtime.ProjectChannel(project.ID), added[0].Channel)
}

func TestProjectService_RejectInvitation(t *testing.T) {
	env := setupProjectServiceTestEnv(t)
	owner := env.createUser(t, "dana")
	invitee := env.createUser(t, "rob")

	project, err := env.projectService.CreateProject(CreateProjectInput{
		OwnerID: owner.ID,
		Name:    "devtrack",
	})
	require.NoError(t, err)

	_, err = env.projectService.Invite(project.ID, owner.ID, "rob")
	require.NoError(t, err)

	require.NoError(t, env.projectService.RejectInvitation(project.ID, invitee.ID))

	invitations, err := env.projectService.ListInvitations(invitee.ID)
	require.NoError(t, err)
	require.Empty(t, invitations)
}

func TestProjectService_InviteUnknownUser(t *testing.T) {
	env := setupProjectServiceTestEnv(t)
	owner := env.createUser(t, "dana")

	project, err := env.projectService.CreateProject(CreateProjectInput{
		OwnerID: owner.ID,
		Name:    "devtrack",
	})
	require.NoError(t, err)

	_, err = env.projectService.Invite(project.ID, owner.ID, "ghost")
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestProjectService_OwnerCannotLeave(t *testing.T) {
	env := setupProjectServiceTestEnv(t)
	owner := env.createUser(t, "dana")

	project, err := env.projectService.CreateProject(CreateProjectInput{
		OwnerID: owner.ID,
		Name:    "devtrack",
	})
	require.NoError(t, err)

	require.ErrorIs(t, env.projectService.Leave(project.ID, owner.ID), ErrOwnerCannotLeave)
}

func TestProjectService_RemoveMemberUnassignsTasks(t *testing.T) {
	env := setupProjectServiceTestEnv(t)
	owner := env.createUser(t, "dana")
	member := env.createUser(t, "rob")

	project, err := env.projectService.CreateProject(CreateProjectInput{
		OwnerID: owner.ID,
		Name:    "devtrack",
	})
	require.NoError(t, err)

	_, err = env.projectService.Invite(project.ID, owner.ID, "rob")
	require.NoError(t, err)
	_, err = env.projectService.AcceptInvitation(project.ID, member.ID)
	require.NoError(t, err)

	task, err := env.taskService.CreateTask(CreateTaskInput{
		ProjectID:  project.ID,
		ActorID:    owner.ID,
		AssigneeID: &member.ID,
		Title:      "Fix login",
	})
	require.NoError(t, err)

	require.NoError(t, env.projectService.RemoveMember(project.ID, member.ID))

	got, err := env.taskService.GetTask(task.ID)
	require.NoError(t, err)
	require.Empty(t, got.Assignees)

	projects, err := env.projectService.ListProjects(member.ID)
	require.NoError(t, err)
	require.Empty(t, projects)
}

func TestProjectService_UpdateMemberRole(t *testing.T) {
	env := setupProjectServiceTestEnv(t)
	owner := env.createUser(t, "dana")
	member := env.createUser(t, "rob")

	project, err := env.projectService.CreateProject(CreateProjectInput{
		OwnerID: owner.ID,
		Name:    "devtrack",
	})
	require.NoError(t, err)

	_, err = env.projectService.Invite(project.ID, owner.ID, "rob")
	require.NoError(t, err)
	_, err = env.projectService.AcceptInvitation(project.ID, member.ID)
	require.NoError(t, err)

	promoted, err := env.projectService.UpdateMemberRole(project.ID, member.ID, models.RoleOwner)
	require.NoError(t, err)
	require.Equal(t, models.RoleOwner, promoted.Role)
	require.Equal(t, "rob", promoted.User.Username)

	demoted, err := env.projectService.UpdateMemberRole(project.ID, member.ID, models.RoleViewer)
	require.NoError(t, err)
	require.Equal(t, models.RoleViewer, demoted.Role)

	members, err := env.projectService.ListMembers(project.ID)
	require.NoError(t, err)
	roles := map[uint64]models.ProjectRole{}
	for _, m := range members {
		roles[m.UserID] = m.Role
	}
	require.Equal(t, models.RoleOwner, roles[owner.ID])
	require.Equal(t, models.RoleViewer, roles[member.ID])

	_, err = env.projectService.UpdateMemberRole(project.ID, member.ID, "admin")
	require.ErrorIs(t, err, ErrInvalidRole)

	_, err = env.projectService.UpdateMemberRole(project.ID, 9999, models.RoleMember)
	require.ErrorIs(t, err, ErrNotMember)
}

func TestProjectService_NudgeNotifiesTarget(t *testing.T) {
	env := setupProjectServiceTestEnv(t)
	owner := env.createUser(t, "dana")
	member := env.createUser(t, "rob")

	project, err := env.projectService.CreateProject(CreateProjectInput{
		OwnerID: owner.ID,
		Name:    "devtrack",
	})
	require.NoError(t, err)

	_, err = env.projectService.Invite(project.ID, owner.ID, "rob")
	require.NoError(t, err)
	_, err = env.projectService.AcceptInvitation(project.ID, member.ID)
	require.NoError(t, err)

	require.NoError(t, env.projectService.Nudge(project.ID, owner.ID, member.ID))

	var stored []models.Notification
	require.NoError(t, env.db.
		Where("recipient_id = ? AND type = ?", member.ID, models.NotificationNudge).
		Find(&stored).Error)
	require.Len(t, stored, 1)
	require.Contains(t, stored[0].Message, "dana nudged you to contribute more in devtrack!")

	events := env.publisher.byEvent(realtime.EventNotification)
	require.NotEmpty(t, events)
}

func TestProjectService_DeleteCascades(t *testing.T) {
	env := setupProjectServiceTestEnv(t)
	owner := env.createUser(t, "dana")

	project, err := env.projectService.CreateProject(CreateProjectInput{
		OwnerID: owner.ID,
		Name:    "devtrack",
	})
	require.NoError(t, err)

	_, err = env.taskService.CreateTask(CreateTaskInput{
		ProjectID: project.ID,
		ActorID:   owner.ID,
		Title:     "Fix login",
	})
	require.NoError(t, err)

	require.NoError(t, env.projectService.DeleteProject(project.ID))

	_, err = env.projectService.GetProject(context.Background(), project.ID)
	require.ErrorIs(t, err, ErrProjectNotFound)

	var taskCount int64
	require.NoError(t, env.db.Model(&models.Task{}).Where("project_id = ?", project.ID).Count(&taskCount).Error)
	require.Zero(t, taskCount)
}
