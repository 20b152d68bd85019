package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/devtrackhq/devtrack/internal/dto"
	apierrors "github.com/devtrackhq/devtrack/internal/errors"
	"github.com/devtrackhq/devtrack/internal/middleware"
	"github.com/devtrackhq/devtrack/internal/models"
	"github.com/devtrackhq/devtrack/internal/services"
)

// TaskHandler coordinates task-related HTTP handlers.
type TaskHandler struct {
	taskService *services.TaskService
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(taskService *services.TaskService) *TaskHandler {
	return &TaskHandler{
		taskService: taskService,
	}
}

// Create creates a task in the project.
func (h *TaskHandler) Create(c *gin.Context) {
	type CreateRequest struct {
		Title      string     `json:"title" binding:"required,min=1,max=200"`
		Deadline   *time.Time `json:"deadline"`
		AssigneeID *uint64    `json:"assignee_id"`
	}

	projectID, ok := projectIDParam(c)
	if !ok {
		return
	}

	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	userID, _ := middleware.GetUserID(c)
	task, err := h.taskService.CreateTask(services.CreateTaskInput{
		ProjectID:  projectID,
		ActorID:    userID,
		Title:      req.Title,
		Deadline:   req.Deadline,
		AssigneeID: req.AssigneeID,
	})
	if err != nil {
		respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToTaskDTO(*task))
}

// List returns every task in the project.
func (h *TaskHandler) List(c *gin.Context) {
	projectID, ok := projectIDParam(c)
	if !ok {
		return
	}

	tasks, err := h.taskService.ListByProject(projectID)
	if err != nil {
		respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskDTOs(tasks))
}

// Get returns a task with its history, comments and linked commits.
func (h *TaskHandler) Get(c *gin.Context) {
	task, ok := h.projectTask(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskDTO(*task))
}

// ChangeStatus moves a task between board columns.
func (h *TaskHandler) ChangeStatus(c *gin.Context) {
	type StatusRequest struct {
		Status models.TaskStatus `json:"status" binding:"required"`
	}

	task, ok := h.projectTask(c)
	if !ok {
		return
	}

	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	userID, _ := middleware.GetUserID(c)
	updated, err := h.taskService.ChangeStatus(task.ID, userID, req.Status)
	if err != nil {
		respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskDTO(*updated))
}

// ToggleAssignment assigns or unassigns a user on the task.
func (h *TaskHandler) ToggleAssignment(c *gin.Context) {
	type AssignRequest struct {
		UserID uint64 `json:"user_id" binding:"required"`
	}

	task, ok := h.projectTask(c)
	if !ok {
		return
	}

	var req AssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	userID, _ := middleware.GetUserID(c)
	updated, err := h.taskService.ToggleAssignment(task.ID, userID, req.UserID)
	if err != nil {
		respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskDTO(*updated))
}

// AddComment appends a comment to the task.
func (h *TaskHandler) AddComment(c *gin.Context) {
	type CommentRequest struct {
		Text string `json:"text" binding:"required,min=1,max=2000"`
	}

	task, ok := h.projectTask(c)
	if !ok {
		return
	}

	var req CommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	userID, _ := middleware.GetUserID(c)
	updated, err := h.taskService.AddComment(task.ID, userID, req.Text)
	if err != nil {
		respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskDTO(*updated))
}

// MyTasks returns the current user's assigned tasks across projects.
func (h *TaskHandler) MyTasks(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	tasks, err := h.taskService.MyTasks(userID)
	if err != nil {
		respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskDTOs(tasks))
}

// projectTask loads the task from the URL and checks it belongs to the
// project the request is scoped to.
func (h *TaskHandler) projectTask(c *gin.Context) (*models.Task, bool) {
	projectID, ok := projectIDParam(c)
	if !ok {
		return nil, false
	}

	taskID, err := strconv.ParseUint(c.Param("taskId"), 10, 64)
	if err != nil {
		apierrors.BadRequest(c, "Invalid task ID")
		return nil, false
	}

	task, err := h.taskService.GetTask(taskID)
	if err != nil {
		respondTaskError(c, err)
		return nil, false
	}
	if task.ProjectID != projectID {
		apierrors.NotFound(c, "Task not found")
		return nil, false
	}
	return task, true
}

func respondTaskError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrTitleRequired),
		errors.Is(err, services.ErrInvalidStatus),
		errors.Is(err, services.ErrCommentRequired):
		apierrors.BadRequest(c, err.Error())
	case errors.Is(err, services.ErrTaskNotFound),
		errors.Is(err, services.ErrUserNotFound):
		apierrors.NotFound(c, err.Error())
	case errors.Is(err, services.ErrStatusConflict):
		apierrors.Conflict(c, err.Error())
	default:
		apierrors.InternalError(c, "Internal server error")
	}
}
