package automation

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/devtrackhq/devtrack/internal/dto"
	"github.com/devtrackhq/devtrack/internal/metrics"
	"github.com/devtrackhq/devtrack/internal/models"
	"github.com/devtrackhq/devtrack/internal/realtime"
	"github.com/devtrackhq/devtrack/internal/repository"
)

// Commit is the ingress view of one commit in a push batch.
type Commit struct {
	CommitterName     string
	CommitterUsername string
	Message           string
	URL               string
	Timestamp         time.Time
}

// mutationCause distinguishes how automation found the task, for the audit trail.
type mutationCause int

const (
	causeCommitMessage mutationCause = iota
	causeAssignedMember
)

// statusRetries bounds the reload-and-retry loop for contended status updates.
const statusRetries = 3

// taskSnapshotPreloads loads everything a published task snapshot carries.
var taskSnapshotPreloads = []string{
	"Assignees", "History", "History.User", "Comments", "Comments.User", "LinkedCommits",
}

// Reconciler applies commit automation to tasks: it links commits to the
// tasks they reference (or can be inferred to belong to) and moves task
// status according to commit-message keywords, then publishes every changed
// task to the project channel.
type Reconciler struct {
	tasks     repository.TaskRepository
	users     repository.UserRepository
	publisher realtime.Publisher
	log       *zap.Logger
}

// NewReconciler creates a Reconciler.
func NewReconciler(tasks repository.TaskRepository, users repository.UserRepository, publisher realtime.Publisher, log *zap.Logger) *Reconciler {
	return &Reconciler{
		tasks:     tasks,
		users:     users,
		publisher: publisher,
		log:       log,
	}
}

// ReconcileBatch processes a push's commits in delivery order. A commit that
// matches no task is skipped silently; a persistence failure on one task is
// logged and abandons only that task's mutation. The batch as a whole never
// fails.
func (r *Reconciler) ReconcileBatch(ctx context.Context, projectID uint64, commits []Commit) {
	for _, commit := range commits {
		if ctx.Err() != nil {
			return
		}
		r.reconcileCommit(projectID, commit)
	}
}

func (r *Reconciler) reconcileCommit(projectID uint64, commit Commit) {
	numbers := ExtractTaskNumbers(commit.Message)

	if len(numbers) == 0 {
		task, ok := r.inferSoleOpenTask(projectID, commit)
		if !ok {
			metrics.AutomationSkips.WithLabelValues("no_candidate").Inc()
			return
		}
		target, ok := ResolveStatus(commit.Message)
		if !ok {
			// A commit from the sole assignee of an open task implies progress.
			target = models.TaskStatusDoing
		}
		r.reconcileTask(task, commit, target, causeAssignedMember)
		return
	}

	tasks, err := r.tasks.FindByProjectAndNumbers(projectID, numbers)
	if err != nil {
		r.log.Error("failed to load referenced tasks",
			zapProject(projectID), zapCommit(commit), zapErr(err))
		return
	}
	if len(tasks) == 0 {
		metrics.AutomationSkips.WithLabelValues("unknown_reference").Inc()
		return
	}

	target, ok := ResolveStatus(commit.Message)
	if !ok {
		// An explicit reference with no keyword still implies active work.
		target = models.TaskStatusDoing
	}

	for i := range tasks {
		r.reconcileTask(&tasks[i], commit, target, causeCommitMessage)
	}
}

// reconcileTask applies the two independent, idempotent mutations to one
// task: commit linking and the status transition. Each applied mutation
// appends exactly one history entry naming its cause.
func (r *Reconciler) reconcileTask(task *models.Task, commit Commit, target models.TaskStatus, cause mutationCause) {
	changed := false

	if commit.URL != "" {
		linked, err := r.tasks.LinkCommit(&models.LinkedCommit{
			TaskID:      task.ID,
			CommitURL:   commit.URL,
			Message:     commit.Message,
			Committer:   committerLabel(commit),
			CommittedAt: commit.Timestamp,
		})
		if err != nil {
			r.log.Error("failed to link commit",
				zapTask(task.ID), zapCommit(commit), zapErr(err))
		} else if linked {
			r.appendHistory(task.ID, "Commit linked from push: "+truncate(commit.Message, 60))
			changed = true
		}
	}

	if r.applyStatus(task, target) {
		action := fmt.Sprintf("Auto-moved to %s from commit message", target)
		if cause == causeAssignedMember {
			action = fmt.Sprintf("Auto-moved to %s from assigned member commit", target)
		}
		r.appendHistory(task.ID, action)
		changed = true
	}

	if !changed {
		return
	}

	metrics.TasksReconciled.Inc()
	r.publishTask(task.ID, task.ProjectID)
}

// applyStatus moves the task to target under the lock_version guard,
// reloading and retrying when a concurrent writer wins the race. A task
// already done is never moved back to doing by automation, and the
// suppressed attempt leaves no trace in history.
func (r *Reconciler) applyStatus(task *models.Task, target models.TaskStatus) bool {
	for attempt := 0; attempt < statusRetries; attempt++ {
		if task.Status == target {
			return false
		}
		if task.Status == models.TaskStatusDone && target == models.TaskStatusDoing {
			return false
		}

		ok, err := r.tasks.UpdateStatusVersioned(task.ID, task.LockVersion, target)
		if err != nil {
			r.log.Error("failed to update task status", zapTask(task.ID), zapErr(err))
			return false
		}
		if ok {
			task.Status = target
			task.LockVersion++
			return true
		}

		fresh, err := r.tasks.FindByID(task.ID)
		if err != nil {
			r.log.Error("failed to reload contended task", zapTask(task.ID), zapErr(err))
			return false
		}
		*task = *fresh
	}

	r.log.Warn("gave up on contended status update", zapTask(task.ID))
	return false
}

func (r *Reconciler) appendHistory(taskID uint64, action string) {
	err := r.tasks.AppendHistory(&models.TaskHistory{
		TaskID: taskID,
		Action: action,
	})
	if err != nil {
		r.log.Error("failed to append task history", zapTask(taskID), zapErr(err))
	}
}

// publishTask emits the full current task snapshot to the project channel.
// A publish failure never rolls back the persisted mutation.
func (r *Reconciler) publishTask(taskID, projectID uint64) {
	task, err := r.tasks.FindByID(taskID, taskSnapshotPreloads...)
	if err != nil {
		r.log.Error("failed to load task snapshot", zapTask(taskID), zapErr(err))
		return
	}

	err = r.publisher.Publish(realtime.ProjectChannel(projectID), realtime.EventTaskUpdated, dto.ToTaskDTO(*task))
	if err != nil {
		metrics.PublishFailures.Inc()
		r.log.Warn("failed to publish task update", zapTask(taskID), zapErr(err))
	}
}

func committerLabel(commit Commit) string {
	if commit.CommitterName != "" {
		return commit.CommitterName
	}
	if commit.CommitterUsername != "" {
		return commit.CommitterUsername
	}
	return "Unknown"
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func zapProject(id uint64) zap.Field { return zap.Uint64("project_id", id) }
func zapTask(id uint64) zap.Field    { return zap.Uint64("task_id", id) }
func zapCommit(c Commit) zap.Field   { return zap.String("commit_url", c.URL) }
func zapErr(err error) zap.Field     { return zap.Error(err) }
