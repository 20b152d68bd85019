package services

import (
	"errors"
	"fmt"
	"regexp"
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
	ErrTaskNotFound    = errors.New("task not found")
	ErrTitleRequired   = errors.New("title is required")
	ErrInvalidStatus   = errors.New("status must be one of: todo, doing, done")
	ErrCommentRequired = errors.New("comment text is required")
	ErrStatusConflict  = errors.New("task was modified concurrently, please retry")
)

// mentionPattern recognizes @username tokens in comment text.
var mentionPattern = regexp.MustCompile(`@(\w+)`)

// taskSnapshotPreloads loads everything a published task snapshot carries.
var taskSnapshotPreloads = []string{
	"Assignees", "History", "History.User", "Comments", "Comments.User", "LinkedCommits",
}

// TaskService handles user-driven task operations: creation, board moves,
// assignment and comments. Every successful mutation publishes the full
// task snapshot to the project channel.
type TaskService struct {
	tasks         repository.TaskRepository
	users         repository.UserRepository
	notifications *NotificationService
	publisher     realtime.Publisher
	log           *zap.Logger
}

// NewTaskService creates a new TaskService.
func NewTaskService(tasks repository.TaskRepository, users repository.UserRepository, notifications *NotificationService, publisher realtime.Publisher, log *zap.Logger) *TaskService {
	return &TaskService{
		tasks:         tasks,
		users:         users,
		notifications: notifications,
		publisher:     publisher,
		log:           log,
	}
}

// CreateTaskInput represents input for creating a task.
type CreateTaskInput struct {
	ProjectID  uint64
	ActorID    uint64
	Title      string
	Deadline   *time.Time
	AssigneeID *uint64
}

// CreateTask creates a task with the next sequential number in its project.
// The assignee defaults to the creator.
func (s *TaskService) CreateTask(input CreateTaskInput) (*models.Task, error) {
	if input.Title == "" {
		return nil, ErrTitleRequired
	}

	// Two concurrent creates can compute the same number; the loser hits
	// the (project_id, number) unique index and recounts.
	var task *models.Task
	for attempt := 0; ; attempt++ {
		count, err := s.tasks.CountByProject(input.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("failed to count project tasks: %w", err)
		}

		task = &models.Task{
			Number:    int(count) + 1,
			ProjectID: input.ProjectID,
			Title:     input.Title,
			Status:    models.TaskStatusTodo,
			Deadline:  input.Deadline,
		}
		err = s.tasks.Create(task)
		if err == nil {
			break
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) && attempt < 2 {
			continue
		}
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	assigneeID := input.ActorID
	if input.AssigneeID != nil {
		assigneeID = *input.AssigneeID
	}
	if err := s.tasks.AssignUser(task.ID, assigneeID); err != nil {
		return nil, fmt.Errorf("failed to assign task: %w", err)
	}

	s.appendHistory(task.ID, &input.ActorID, "Task created")

	return s.publishAndReturn(task.ID, task.ProjectID)
}

// ChangeStatus moves a task on the board. Unlike automation, a user may
// move a task anywhere, including done back to doing. The update is
// serialized against concurrent writers through the task's lock version.
func (s *TaskService) ChangeStatus(taskID, actorID uint64, status models.TaskStatus) (*models.Task, error) {
	if !models.ValidTaskStatus(status) {
		return nil, ErrInvalidStatus
	}

	task, err := s.findTask(taskID)
	if err != nil {
		return nil, err
	}

	for attempt := 0; ; attempt++ {
		if task.Status == status {
			return s.publishAndReturn(task.ID, task.ProjectID)
		}

		ok, err := s.tasks.UpdateStatusVersioned(task.ID, task.LockVersion, status)
		if err != nil {
			return nil, fmt.Errorf("failed to update status: %w", err)
		}
		if ok {
			break
		}
		if attempt >= 2 {
			return nil, ErrStatusConflict
		}

		task, err = s.findTask(taskID)
		if err != nil {
			return nil, err
		}
	}

	action := fmt.Sprintf("Moved to %s", status)
	if status == models.TaskStatusDone {
		action = "Marked done"
	}
	s.appendHistory(taskID, &actorID, action)

	return s.publishAndReturn(taskID, task.ProjectID)
}

// ToggleAssignment assigns the user to the task, or unassigns them if they
// already are. A new assignment notifies the assigned user.
func (s *TaskService) ToggleAssignment(taskID, actorID, userID uint64) (*models.Task, error) {
	task, err := s.findTask(taskID)
	if err != nil {
		return nil, err
	}

	user, err := s.users.FindByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	assigned, err := s.tasks.IsAssigned(taskID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to check assignment: %w", err)
	}

	if assigned {
		if err := s.tasks.UnassignUser(taskID, userID); err != nil {
			return nil, fmt.Errorf("failed to unassign user: %w", err)
		}
		s.appendHistory(taskID, &actorID, fmt.Sprintf("Unassigned %s", user.Username))
	} else {
		if err := s.tasks.AssignUser(taskID, userID); err != nil {
			return nil, fmt.Errorf("failed to assign user: %w", err)
		}
		s.appendHistory(taskID, &actorID, fmt.Sprintf("Assigned to %s", user.Username))

		if actor, err := s.users.FindByID(actorID); err == nil {
			s.notify(&models.Notification{
				RecipientID: userID,
				SenderID:    &actorID,
				Type:        models.NotificationTaskAssigned,
				Message:     fmt.Sprintf("%s assigned you to task: %s", actor.Username, task.Title),
				ProjectID:   &task.ProjectID,
			})
		}
	}

	return s.publishAndReturn(taskID, task.ProjectID)
}

// AddComment appends a comment and notifies every distinct @mentioned user
// that resolves to a real account, except the comment's author.
func (s *TaskService) AddComment(taskID, actorID uint64, text string) (*models.Task, error) {
	if text == "" {
		return nil, ErrCommentRequired
	}

	task, err := s.findTask(taskID)
	if err != nil {
		return nil, err
	}

	err = s.tasks.AddComment(&models.TaskComment{
		TaskID: taskID,
		UserID: actorID,
		Text:   text,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add comment: %w", err)
	}

	s.notifyMentions(task, actorID, text)

	return s.publishAndReturn(taskID, task.ProjectID)
}

// ListByProject returns every task in the project, with assignees loaded.
func (s *TaskService) ListByProject(projectID uint64) ([]models.Task, error) {
	tasks, err := s.tasks.ListByProject(projectID, "Assignees")
	if err != nil {
		return nil, fmt.Errorf("failed to list project tasks: %w", err)
	}
	return tasks, nil
}

// MyTasks lists every task assigned to the user across projects, earliest
// deadline first.
func (s *TaskService) MyTasks(userID uint64) ([]models.Task, error) {
	tasks, err := s.tasks.ListAssignedToUser(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assigned tasks: %w", err)
	}
	return tasks, nil
}

// GetTask returns a task with all relations loaded.
func (s *TaskService) GetTask(taskID uint64) (*models.Task, error) {
	return s.findTaskWithPreloads(taskID, taskSnapshotPreloads...)
}

func (s *TaskService) notifyMentions(task *models.Task, authorID uint64, text string) {
	matches := mentionPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return
	}

	seen := make(map[string]struct{}, len(matches))
	usernames := make([]string, 0, len(matches))
	for _, m := range matches {
		if _, ok := seen[m[1]]; ok {
			continue
		}
		seen[m[1]] = struct{}{}
		usernames = append(usernames, m[1])
	}

	users, err := s.users.FindByUsernames(usernames)
	if err != nil {
		s.log.Warn("failed to resolve mentions", zap.Error(err))
		return
	}

	author, err := s.users.FindByID(authorID)
	if err != nil {
		s.log.Warn("failed to load comment author", zap.Error(err))
		return
	}

	for _, mentioned := range users {
		if mentioned.ID == authorID {
			continue
		}
		s.notify(&models.Notification{
			RecipientID: mentioned.ID,
			SenderID:    &authorID,
			Type:        models.NotificationMention,
			Message:     fmt.Sprintf("%s mentioned you in task: %s", author.Username, task.Title),
			ProjectID:   &task.ProjectID,
		})
	}
}

func (s *TaskService) notify(n *models.Notification) {
	if err := s.notifications.Notify(n); err != nil {
		s.log.Warn("failed to create notification",
			zap.Uint64("recipient_id", n.RecipientID), zap.Error(err))
	}
}

func (s *TaskService) appendHistory(taskID uint64, userID *uint64, action string) {
	err := s.tasks.AppendHistory(&models.TaskHistory{
		TaskID: taskID,
		UserID: userID,
		Action: action,
	})
	if err != nil {
		s.log.Error("failed to append task history",
			zap.Uint64("task_id", taskID), zap.Error(err))
	}
}

func (s *TaskService) findTask(taskID uint64) (*models.Task, error) {
	return s.findTaskWithPreloads(taskID)
}

func (s *TaskService) findTaskWithPreloads(taskID uint64, preload ...string) (*models.Task, error) {
	task, err := s.tasks.FindByID(taskID, preload...)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to find task: %w", err)
	}
	return task, nil
}

// publishAndReturn reloads the full task snapshot, publishes it to the
// project channel and returns it.
func (s *TaskService) publishAndReturn(taskID, projectID uint64) (*models.Task, error) {
	task, err := s.findTaskWithPreloads(taskID, taskSnapshotPreloads...)
	if err != nil {
		return nil, err
	}

	err = s.publisher.Publish(realtime.ProjectChannel(projectID), realtime.EventTaskUpdated, dto.ToTaskDTO(*task))
	if err != nil {
		metrics.PublishFailures.Inc()
		s.log.Warn("failed to publish task update",
			zap.Uint64("task_id", taskID), zap.Error(err))
	}

	return task, nil
}
