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
	"github.com/devtrackhq/devtrack/internal/utils"
)

// ProjectHandler coordinates project-related HTTP handlers.
type ProjectHandler struct {
	projectService *services.ProjectService
	ingestService  *services.IngestService
}

// NewProjectHandler creates a new ProjectHandler.
func NewProjectHandler(projectService *services.ProjectService, ingestService *services.IngestService) *ProjectHandler {
	return &ProjectHandler{
		projectService: projectService,
		ingestService:  ingestService,
	}
}

// Create creates a new project owned by the current user.
func (h *ProjectHandler) Create(c *gin.Context) {
	type CreateRequest struct {
		Name         string     `json:"name" binding:"required,min=1,max=100"`
		RepoURL      string     `json:"repo_url"`
		GithubRepoID string     `json:"github_repo_id"`
		Deadline     *time.Time `json:"deadline"`
	}

	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	userID, _ := middleware.GetUserID(c)
	project, err := h.projectService.CreateProject(services.CreateProjectInput{
		OwnerID:      userID,
		Name:         req.Name,
		RepoURL:      req.RepoURL,
		GithubRepoID: req.GithubRepoID,
		Deadline:     req.Deadline,
	})
	if err != nil {
		respondProjectError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToProjectDTO(*project))
}

// List returns every project the current user belongs to.
func (h *ProjectHandler) List(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	projects, err := h.projectService.ListProjects(userID)
	if err != nil {
		respondProjectError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToProjectDTOs(projects))
}

// Get returns a project with its members, tasks and commit history.
func (h *ProjectHandler) Get(c *gin.Context) {
	projectID, ok := projectIDParam(c)
	if !ok {
		return
	}

	project, err := h.projectService.GetProject(c.Request.Context(), projectID)
	if err != nil {
		respondProjectError(c, err)
		return
	}

	commits, err := h.ingestService.ListCommits(projectID)
	if err != nil {
		respondProjectError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"project": dto.ToProjectDTO(*project),
		"commits": dto.ToCommitDTOs(commits),
	})
}

// Update applies changes to the project. Owner only.
func (h *ProjectHandler) Update(c *gin.Context) {
	type UpdateRequest struct {
		Name         *string    `json:"name"`
		RepoURL      *string    `json:"repo_url"`
		GithubRepoID *string    `json:"github_repo_id"`
		Deadline     *time.Time `json:"deadline"`
	}

	projectID, ok := projectIDParam(c)
	if !ok {
		return
	}

	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	project, err := h.projectService.UpdateProject(projectID, services.UpdateProjectInput{
		Name:         req.Name,
		RepoURL:      req.RepoURL,
		GithubRepoID: req.GithubRepoID,
		Deadline:     req.Deadline,
	})
	if err != nil {
		respondProjectError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToProjectDTO(*project))
}

// Delete removes the project and everything under it. Owner only.
func (h *ProjectHandler) Delete(c *gin.Context) {
	projectID, ok := projectIDParam(c)
	if !ok {
		return
	}

	if err := h.projectService.DeleteProject(projectID); err != nil {
		respondProjectError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Project deleted"})
}

// Leave removes the current user's own membership.
func (h *ProjectHandler) Leave(c *gin.Context) {
	projectID, ok := projectIDParam(c)
	if !ok {
		return
	}
	userID, _ := middleware.GetUserID(c)

	if err := h.projectService.Leave(projectID, userID); err != nil {
		respondProjectError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Left project"})
}

// RemoveMember removes a member from the project. Owner only.
func (h *ProjectHandler) RemoveMember(c *gin.Context) {
	projectID, ok := projectIDParam(c)
	if !ok {
		return
	}
	memberID, err := strconv.ParseUint(c.Param("userId"), 10, 64)
	if err != nil {
		apierrors.BadRequest(c, "Invalid user ID")
		return
	}

	if err := h.projectService.RemoveMember(projectID, memberID); err != nil {
		respondProjectError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Member removed"})
}

// UpdateMemberRole changes a member's role. Owner only.
func (h *ProjectHandler) UpdateMemberRole(c *gin.Context) {
	type UpdateRoleRequest struct {
		Role models.ProjectRole `json:"role" binding:"required"`
	}

	projectID, ok := projectIDParam(c)
	if !ok {
		return
	}
	memberID, err := strconv.ParseUint(c.Param("userId"), 10, 64)
	if err != nil {
		apierrors.BadRequest(c, "Invalid user ID")
		return
	}

	var req UpdateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	member, err := h.projectService.UpdateMemberRole(projectID, memberID, req.Role)
	if err != nil {
		respondProjectError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToMemberDTO(*member))
}

// Invite invites a user to the project by username.
func (h *ProjectHandler) Invite(c *gin.Context) {
	type InviteRequest struct {
		Username string `json:"username" binding:"required"`
	}

	projectID, ok := projectIDParam(c)
	if !ok {
		return
	}

	var req InviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	userID, _ := middleware.GetUserID(c)
	member, err := h.projectService.Invite(projectID, userID, req.Username)
	if err != nil {
		respondProjectError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToMemberDTO(*member))
}

// ListInvitations returns projects the current user is invited to.
func (h *ProjectHandler) ListInvitations(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	projects, err := h.projectService.ListInvitations(userID)
	if err != nil {
		respondProjectError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToProjectDTOs(projects))
}

// AcceptInvitation accepts the current user's pending invitation.
func (h *ProjectHandler) AcceptInvitation(c *gin.Context) {
	projectID, ok := projectIDParam(c)
	if !ok {
		return
	}
	userID, _ := middleware.GetUserID(c)

	member, err := h.projectService.AcceptInvitation(projectID, userID)
	if err != nil {
		respondProjectError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToMemberDTO(*member))
}

// RejectInvitation discards the current user's pending invitation.
func (h *ProjectHandler) RejectInvitation(c *gin.Context) {
	projectID, ok := projectIDParam(c)
	if !ok {
		return
	}
	userID, _ := middleware.GetUserID(c)

	if err := h.projectService.RejectInvitation(projectID, userID); err != nil {
		respondProjectError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Invitation rejected"})
}

// Nudge sends a prodding notification to a fellow member.
func (h *ProjectHandler) Nudge(c *gin.Context) {
	projectID, ok := projectIDParam(c)
	if !ok {
		return
	}
	targetID, err := strconv.ParseUint(c.Param("userId"), 10, 64)
	if err != nil {
		apierrors.BadRequest(c, "Invalid user ID")
		return
	}

	userID, _ := middleware.GetUserID(c)
	if err := h.projectService.Nudge(projectID, userID, targetID); err != nil {
		respondProjectError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Nudge sent"})
}

// ListCommits returns a page of the project's commit history, newest first.
func (h *ProjectHandler) ListCommits(c *gin.Context) {
	projectID, ok := projectIDParam(c)
	if !ok {
		return
	}

	params := utils.GetPaginationParams(c)
	commits, total, err := h.ingestService.ListCommitsPage(projectID, params.Offset, params.Limit)
	if err != nil {
		respondProjectError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"commits": dto.ToCommitDTOs(commits),
		"pagination": utils.PaginationResponse{
			Page:  params.Page,
			Limit: params.Limit,
			Total: total,
		},
	})
}

// SyncCommits pulls commit history from the project's linked repository.
func (h *ProjectHandler) SyncCommits(c *gin.Context) {
	projectID, ok := projectIDParam(c)
	if !ok {
		return
	}

	commits, err := h.projectService.SyncCommits(c.Request.Context(), projectID)
	if err != nil {
		respondProjectError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToCommitDTOs(commits))
}

func projectIDParam(c *gin.Context) (uint64, bool) {
	projectID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		apierrors.BadRequest(c, "Invalid project ID")
		return 0, false
	}
	return projectID, true
}

func respondProjectError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrNameRequired),
		errors.Is(err, services.ErrInvalidRole):
		apierrors.BadRequest(c, err.Error())
	case errors.Is(err, services.ErrProjectNotFound),
		errors.Is(err, services.ErrNotMember),
		errors.Is(err, services.ErrNoInvitation),
		errors.Is(err, services.ErrUserNotFound):
		apierrors.NotFound(c, err.Error())
	case errors.Is(err, services.ErrAlreadyMember):
		apierrors.Conflict(c, err.Error())
	case errors.Is(err, services.ErrOwnerCannotLeave):
		apierrors.Forbidden(c, err.Error())
	case errors.Is(err, services.ErrNoRepoConfigured):
		apierrors.BadRequest(c, err.Error())
	case errors.Is(err, services.ErrRepoFetchFailed):
		apierrors.RespondWithError(c, http.StatusBadGateway, apierrors.NewAPIError(apierrors.ErrCodeInternalError, err.Error()))
	default:
		apierrors.InternalError(c, "Internal server error")
	}
}
