package automation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/devtrackhq/devtrack/internal/models"
	"github.com/devtrackhq/devtrack/internal/realtime"
	"github.com/devtrackhq/devtrack/internal/repository"
)

var testDBCounter atomic.Uint64

// newTestDB opens a shared-cache in-memory database restricted to a single
// connection, so concurrent goroutines in a test see the same data.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:reconciler_test_%d?mode=memory&cache=shared", testDBCounter.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() {
		sqlDB.Close()
	})

	err = db.AutoMigrate(
		&models.User{},
		&models.Project{},
		&models.ProjectMember{},
		&models.Task{},
		&models.TaskHistory{},
		&models.TaskComment{},
		&models.LinkedCommit{},
		&models.Commit{},
		&models.Notification{},
	)
	require.NoError(t, err)

	return db
}

type publishedEvent struct {
	Channel string
	Event   string
	Payload any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	fail   bool
}

func (p *recordingPublisher) Publish(channel, event string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("publish failed")
	}
	p.events = append(p.events, publishedEvent{Channel: channel, Event: event, Payload: payload})
	return nil
}

func (p *recordingPublisher) recorded() []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]publishedEvent(nil), p.events...)
}

type reconcilerTestEnv struct {
	db         *gorm.DB
	tasks      repository.TaskRepository
	users      repository.UserRepository
	publisher  *recordingPublisher
	reconciler *Reconciler
	project    models.Project
}

func setupReconcilerTestEnv(t *testing.T) *reconcilerTestEnv {
	t.Helper()

	db := newTestDB(t)
	taskRepo := repository.NewTaskRepository(db)
	userRepo := repository.NewUserRepository(db)
	publisher := &recordingPublisher{}

	project := models.Project{Name: "devtrack"}
	require.NoError(t, db.Create(&project).Error)

	return &reconcilerTestEnv{
		db:         db,
		tasks:      taskRepo,
		users:      userRepo,
		publisher:  publisher,
		reconciler: NewReconciler(taskRepo, userRepo, publisher, zap.NewNop()),
		project:    project,
	}
}

func (env *reconcilerTestEnv) createUser(t *testing.T, username string) models.User {
	t.Helper()
	user := models.User{Username: username, PasswordHash: "x"}
	require.NoError(t, env.db.Create(&user).Error)
	return user
}

func (env *reconcilerTestEnv) createTask(t *testing.T, number int, status models.TaskStatus) models.Task {
	t.Helper()
	task := models.Task{
		Number:    number,
		ProjectID: env.project.ID,
		Title:     fmt.Sprintf("Task %d", number),
		Status:    status,
	}
	require.NoError(t, env.db.Create(&task).Error)
	return task
}

func (env *reconcilerTestEnv) reloadTask(t *testing.T, id uint64) models.Task {
	t.Helper()
	task, err := env.tasks.FindByID(id, "History", "LinkedCommits")
	require.NoError(t, err)
	return *task
}

func historyActions(task models.Task) []string {
	actions := make([]string, len(task.History))
	for i, h := range task.History {
		actions[i] = h.Action
	}
	return actions
}

func commitAt(n int) Commit {
	return Commit{
		CommitterName: "Dana",
		URL:           fmt.Sprintf("https://github.com/devtrackhq/devtrack/commit/%d", n),
		Timestamp:     time.Now(),
	}
}

func TestReconciler_ReferencedTaskLinkAndMove(t *testing.T) {
	env := setupReconcilerTestEnv(t)
	task := env.createTask(t, 12, models.TaskStatusTodo)

	commit := commitAt(1)
	commit.Message = "Fixes task-12: handle empty payload"
	env.reconciler.ReconcileBatch(context.Background(), env.project.ID, []Commit{commit})

	got := env.reloadTask(t, task.ID)
	require.Equal(t, models.TaskStatusDone, got.Status)
	require.Len(t, got.LinkedCommits, 1)
	require.Equal(t, commit.URL, got.LinkedCommits[0].CommitURL)
	require.Equal(t, "Dana", got.LinkedCommits[0].Committer)

	actions := historyActions(got)
	require.Contains(t, actions, "Commit linked from push: Fixes task-12: handle empty payload")
	require.Contains(t, actions, "Auto-moved to done from commit message")

	events := env.publisher.recorded()
	require.Len(t, events, 1)
	require.Equal(t, realtime.ProjectChannel(env.project.ID), events[0].Channel)
	require.Equal(t, realtime.EventTaskUpdated, events[0].Event)
}

func TestReconciler_ReferenceWithoutKeywordMovesToDoing(t *testing.T) {
	env := setupReconcilerTestEnv(t)
	task := env.createTask(t, 7, models.TaskStatusTodo)

	commit := commitAt(1)
	commit.Message = "refactor parser, see #7"
	env.reconciler.ReconcileBatch(context.Background(), env.project.ID, []Commit{commit})

	got := env.reloadTask(t, task.ID)
	require.Equal(t, models.TaskStatusDoing, got.Status)
	require.Contains(t, historyActions(got), "Auto-moved to doing from commit message")
}

func TestReconciler_MultipleReferencesAffectAllTasks(t *testing.T) {
	env := setupReconcilerTestEnv(t)
	first := env.createTask(t, 12, models.TaskStatusDoing)
	second := env.createTask(t, 30, models.TaskStatusTodo)

	commit := commitAt(1)
	commit.Message = "Fixes task-12 and closes #30"
	env.reconciler.ReconcileBatch(context.Background(), env.project.ID, []Commit{commit})

	require.Equal(t, models.TaskStatusDone, env.reloadTask(t, first.ID).Status)
	require.Equal(t, models.TaskStatusDone, env.reloadTask(t, second.ID).Status)
	require.Len(t, env.publisher.recorded(), 2)
}

func TestReconciler_ReplayIsIdempotent(t *testing.T) {
	env := setupReconcilerTestEnv(t)
	task := env.createTask(t, 3, models.TaskStatusTodo)

	commit := commitAt(1)
	commit.Message = "closes #3"
	batch := []Commit{commit}

	env.reconciler.ReconcileBatch(context.Background(), env.project.ID, batch)
	env.reconciler.ReconcileBatch(context.Background(), env.project.ID, batch)

	got := env.reloadTask(t, task.ID)
	require.Equal(t, models.TaskStatusDone, got.Status)
	require.Len(t, got.LinkedCommits, 1)
	require.Len(t, got.History, 2)
	require.Len(t, env.publisher.recorded(), 1)
}

func TestReconciler_DoneIsNeverMovedBackToDoing(t *testing.T) {
	env := setupReconcilerTestEnv(t)
	task := env.createTask(t, 5, models.TaskStatusDone)

	commit := commitAt(1)
	commit.Message = "wip #5"
	env.reconciler.ReconcileBatch(context.Background(), env.project.ID, []Commit{commit})

	got := env.reloadTask(t, task.ID)
	require.Equal(t, models.TaskStatusDone, got.Status)
	// The commit still links; only the regression is suppressed, silently.
	require.Len(t, got.LinkedCommits, 1)
	for _, action := range historyActions(got) {
		require.NotContains(t, action, "Auto-moved")
	}
}

func TestReconciler_DoneCanBeReopenedToTodo(t *testing.T) {
	env := setupReconcilerTestEnv(t)
	task := env.createTask(t, 5, models.TaskStatusDone)

	commit := commitAt(1)
	commit.Message = "reopened #5, crash is back"
	env.reconciler.ReconcileBatch(context.Background(), env.project.ID, []Commit{commit})

	got := env.reloadTask(t, task.ID)
	require.Equal(t, models.TaskStatusTodo, got.Status)
	require.Contains(t, historyActions(got), "Auto-moved to todo from commit message")
}

func TestReconciler_UnknownReferenceIsSkipped(t *testing.T) {
	env := setupReconcilerTestEnv(t)
	task := env.createTask(t, 1, models.TaskStatusTodo)

	commit := commitAt(1)
	commit.Message = "fixes #999"
	env.reconciler.ReconcileBatch(context.Background(), env.project.ID, []Commit{commit})

	got := env.reloadTask(t, task.ID)
	require.Equal(t, models.TaskStatusTodo, got.Status)
	require.Empty(t, got.LinkedCommits)
	require.Empty(t, env.publisher.recorded())
}

func TestReconciler_InfersSoleOpenAssignedTask(t *testing.T) {
	env := setupReconcilerTestEnv(t)
	user := env.createUser(t, "dana")
	task := env.createTask(t, 4, models.TaskStatusTodo)
	require.NoError(t, env.tasks.AssignUser(task.ID, user.ID))

	// A done task assigned to the same user must not count as a candidate.
	closed := env.createTask(t, 9, models.TaskStatusDone)
	require.NoError(t, env.tasks.AssignUser(closed.ID, user.ID))

	commit := commitAt(1)
	commit.CommitterUsername = "dana"
	commit.Message = "tighten retry backoff"
	env.reconciler.ReconcileBatch(context.Background(), env.project.ID, []Commit{commit})

	got := env.reloadTask(t, task.ID)
	require.Equal(t, models.TaskStatusDoing, got.Status)
	require.Len(t, got.LinkedCommits, 1)
	require.Contains(t, historyActions(got), "Auto-moved to doing from assigned member commit")
}

func TestReconciler_InferenceResolvesCommitterCaseInsensitively(t *testing.T) {
	env := setupReconcilerTestEnv(t)
	user := env.createUser(t, "dana")
	task := env.createTask(t, 4, models.TaskStatusTodo)
	require.NoError(t, env.tasks.AssignUser(task.ID, user.ID))

	commit := commitAt(1)
	commit.CommitterName = "Dana"
	commit.Message = "polish the board layout"
	env.reconciler.ReconcileBatch(context.Background(), env.project.ID, []Commit{commit})

	require.Equal(t, models.TaskStatusDoing, env.reloadTask(t, task.ID).Status)
}

func TestReconciler_InferenceSkipsAmbiguousCandidates(t *testing.T) {
	env := setupReconcilerTestEnv(t)
	user := env.createUser(t, "dana")
	first := env.createTask(t, 1, models.TaskStatusTodo)
	second := env.createTask(t, 2, models.TaskStatusDoing)
	require.NoError(t, env.tasks.AssignUser(first.ID, user.ID))
	require.NoError(t, env.tasks.AssignUser(second.ID, user.ID))

	commit := commitAt(1)
	commit.CommitterUsername = "dana"
	commit.Message = "misc cleanup"
	env.reconciler.ReconcileBatch(context.Background(), env.project.ID, []Commit{commit})

	require.Equal(t, models.TaskStatusTodo, env.reloadTask(t, first.ID).Status)
	require.Equal(t, models.TaskStatusDoing, env.reloadTask(t, second.ID).Status)
	require.Empty(t, env.publisher.recorded())
}

func TestReconciler_InferenceSkipsUnknownCommitter(t *testing.T) {
	env := setupReconcilerTestEnv(t)
	task := env.createTask(t, 1, models.TaskStatusTodo)

	commit := commitAt(1)
	commit.CommitterUsername = "drive-by"
	commit.Message = "typo"
	env.reconciler.ReconcileBatch(context.Background(), env.project.ID, []Commit{commit})

	require.Equal(t, models.TaskStatusTodo, env.reloadTask(t, task.ID).Status)
	require.Empty(t, env.publisher.recorded())
}

func TestReconciler_InferenceHonorsKeyword(t *testing.T) {
	env := setupReconcilerTestEnv(t)
	user := env.createUser(t, "dana")
	task := env.createTask(t, 4, models.TaskStatusDoing)
	require.NoError(t, env.tasks.AssignUser(task.ID, user.ID))

	commit := commitAt(1)
	commit.CommitterUsername = "dana"
	commit.Message = "done, all tests pass"
	env.reconciler.ReconcileBatch(context.Background(), env.project.ID, []Commit{commit})

	got := env.reloadTask(t, task.ID)
	require.Equal(t, models.TaskStatusDone, got.Status)
	require.Contains(t, historyActions(got), "Auto-moved to done from assigned member commit")
}

func TestReconciler_LongMessageTruncatedInHistory(t *testing.T) {
	env := setupReconcilerTestEnv(t)
	task := env.createTask(t, 1, models.TaskStatusTodo)

	long := "wip #1 "
	for len(long) < 200 {
		long += "abcdefghij"
	}
	commit := commitAt(1)
	commit.Message = long
	env.reconciler.ReconcileBatch(context.Background(), env.project.ID, []Commit{commit})

	got := env.reloadTask(t, task.ID)
	want := "Commit linked from push: " + long[:60]
	require.Contains(t, historyActions(got), want)
}

func TestReconciler_PublishFailureDoesNotRollBack(t *testing.T) {
	env := setupReconcilerTestEnv(t)
	env.publisher.fail = true
	task := env.createTask(t, 2, models.TaskStatusTodo)

	commit := commitAt(1)
	commit.Message = "fixes #2"
	env.reconciler.ReconcileBatch(context.Background(), env.project.ID, []Commit{commit})

	got := env.reloadTask(t, task.ID)
	require.Equal(t, models.TaskStatusDone, got.Status)
	require.Len(t, got.LinkedCommits, 1)
}

func TestReconciler_CancelledContextStopsBatch(t *testing.T) {
	env := setupReconcilerTestEnv(t)
	task := env.createTask(t, 1, models.TaskStatusTodo)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	commit := commitAt(1)
	commit.Message = "fixes #1"
	env.reconciler.ReconcileBatch(ctx, env.project.ID, []Commit{commit})

	require.Equal(t, models.TaskStatusTodo, env.reloadTask(t, task.ID).Status)
}

func TestReconciler_ConcurrentBatchesLinkEveryCommit(t *testing.T) {
	env := setupReconcilerTestEnv(t)
	task := env.createTask(t, 1, models.TaskStatusTodo)

	const workers = 8
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			commit := commitAt(n)
			commit.Message = fmt.Sprintf("wip #1 step %d", n)
			env.reconciler.ReconcileBatch(context.Background(), env.project.ID, []Commit{commit})
		}(i)
	}
	wg.Wait()

	got := env.reloadTask(t, task.ID)
	require.Equal(t, models.TaskStatusDoing, got.Status)
	require.Len(t, got.LinkedCommits, workers)
}
