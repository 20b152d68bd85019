package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/devtrackhq/devtrack/internal/automation"
	"github.com/devtrackhq/devtrack/internal/github"
	"github.com/devtrackhq/devtrack/internal/models"
	"github.com/devtrackhq/devtrack/internal/realtime"
	"github.com/devtrackhq/devtrack/internal/repository"
	"github.com/devtrackhq/devtrack/internal/services"
)

var testDBCounter atomic.Uint64

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:handlers_test_%d?mode=memory&cache=shared", testDBCounter.Add(1))
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

func (p *recordingPublisher) byEvent(event string) []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []publishedEvent
	for _, e := range p.events {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

type webhookTestEnv struct {
	db        *gorm.DB
	publisher *recordingPublisher
	router    *gin.Engine
	project   models.Project
	tasks     repository.TaskRepository
}

func setupWebhookTestEnv(t *testing.T) *webhookTestEnv {
	t.Helper()

	db := newTestDB(t)
	publisher := &recordingPublisher{}
	logger := zap.NewNop()

	userRepo := repository.NewUserRepository(db)
	projectRepo := repository.NewProjectRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	commitRepo := repository.NewCommitRepository(db)

	reconciler := automation.NewReconciler(taskRepo, userRepo, publisher, logger)
	ingest := services.NewIngestService(commitRepo, projectRepo, reconciler, publisher, github.NewClient("http://localhost:0"), logger)
	handler := NewWebhookHandler(ingest, logger)

	project := models.Project{Name: "devtrack", GithubRepoID: "424242"}
	require.NoError(t, db.Create(&project).Error)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/api/webhooks/github-push", handler.GithubPush)

	return &webhookTestEnv{
		db:        db,
		publisher: publisher,
		router:    r,
		project:   project,
		tasks:     taskRepo,
	}
}

func (env *webhookTestEnv) deliver(t *testing.T, event string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/github-push", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-GitHub-Event", event)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

func pushFor(repoID uint64, commits ...map[string]any) map[string]any {
	return map[string]any{
		"repository": map[string]any{"id": repoID},
		"commits":    commits,
	}
}

func (env *webhookTestEnv) waitForStatus(t *testing.T, taskID uint64, want models.TaskStatus) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		task, err := env.tasks.FindByID(taskID)
		require.NoError(t, err)
		if task.Status == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("task %d never reached status %s", taskID, want)
}

func TestWebhookHandler_PushStoresCommitsAndReconciles(t *testing.T) {
	env := setupWebhookTestEnv(t)

	task := models.Task{Number: 12, ProjectID: env.project.ID, Title: "Fix login", Status: models.TaskStatusTodo}
	require.NoError(t, env.db.Create(&task).Error)

	w := env.deliver(t, "push", pushFor(424242, map[string]any{
		"url":       "https://github.com/devtrackhq/devtrack/commit/abc",
		"message":   "fixes #12",
		"timestamp": time.Now().Format(time.RFC3339),
		"author":    map[string]any{"name": "Dana", "username": "dana"},
		"added":     []string{"auth.go"},
	}))
	require.Equal(t, http.StatusOK, w.Code)

	var response map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	require.EqualValues(t, 1, response["recorded"])

	// Commits are durable before the response; automation catches up after.
	var count int64
	require.NoError(t, env.db.Model(&models.Commit{}).Where("project_id = ?", env.project.ID).Count(&count).Error)
	require.EqualValues(t, 1, count)

	env.waitForStatus(t, task.ID, models.TaskStatusDone)

	require.Len(t, env.publisher.byEvent(realtime.EventNewCommit), 1)
}

func TestWebhookHandler_DuplicateDeliveryRecordsNothing(t *testing.T) {
	env := setupWebhookTestEnv(t)

	payload := pushFor(424242, map[string]any{
		"url":       "https://github.com/devtrackhq/devtrack/commit/abc",
		"message":   "chore: bump deps",
		"timestamp": time.Now().Format(time.RFC3339),
		"author":    map[string]any{"name": "Dana"},
	})

	w := env.deliver(t, "push", payload)
	require.Equal(t, http.StatusOK, w.Code)
	w = env.deliver(t, "push", payload)
	require.Equal(t, http.StatusOK, w.Code)

	var response map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	require.EqualValues(t, 0, response["recorded"])

	var count int64
	require.NoError(t, env.db.Model(&models.Commit{}).Count(&count).Error)
	require.EqualValues(t, 1, count)

	require.Len(t, env.publisher.byEvent(realtime.EventNewCommit), 1)
}

func TestWebhookHandler_UnlinkedRepositoryIs404(t *testing.T) {
	env := setupWebhookTestEnv(t)

	w := env.deliver(t, "push", pushFor(999, map[string]any{
		"url":     "https://github.com/elsewhere/repo/commit/abc",
		"message": "unrelated",
	}))
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestWebhookHandler_NonPushEventIsIgnored(t *testing.T) {
	env := setupWebhookTestEnv(t)

	w := env.deliver(t, "ping", pushFor(424242))
	require.Equal(t, http.StatusOK, w.Code)

	var count int64
	require.NoError(t, env.db.Model(&models.Commit{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestWebhookHandler_MalformedPayloadIs400(t *testing.T) {
	env := setupWebhookTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/github-push", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-GitHub-Event", "push")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
}
