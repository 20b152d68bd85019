package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/devtrackhq/devtrack/internal/database"
	apierrors "github.com/devtrackhq/devtrack/internal/errors"
	"github.com/devtrackhq/devtrack/internal/models"
)

// RequireProjectAccess checks if the user is an accepted member of the project
func RequireProjectAccess() gin.HandlerFunc {
	return func(c *gin.Context) {
		projectIDStr := c.Param("id")
		projectID, err := strconv.ParseUint(projectIDStr, 10, 64)
		if err != nil {
			apierrors.BadRequest(c, "Invalid project ID")
			c.Abort()
			return
		}

		userID, exists := GetUserID(c)
		if !exists {
			apierrors.Unauthorized(c, "")
			c.Abort()
			return
		}

		var project models.Project
		if err := database.GetDB().First(&project, projectID).Error; err != nil {
			apierrors.NotFound(c, "Project not found")
			c.Abort()
			return
		}

		// Return 404 instead of 403 to avoid leaking project existence
		var member models.ProjectMember
		err = database.GetDB().
			Where("project_id = ? AND user_id = ? AND status = ?", projectID, userID, models.MemberStatusAccepted).
			First(&member).Error
		if err != nil {
			apierrors.NotFound(c, "Project not found")
			c.Abort()
			return
		}

		c.Set("project", project)
		c.Set("project_member", member)
		c.Next()
	}
}

// RequireProjectOwner checks if the user is the owner of the project
func RequireProjectOwner() gin.HandlerFunc {
	return func(c *gin.Context) {
		memberInterface, exists := c.Get("project_member")
		if !exists {
			apierrors.Forbidden(c, "Project access required")
			c.Abort()
			return
		}

		member, ok := memberInterface.(models.ProjectMember)
		if !ok {
			apierrors.InternalError(c, "Invalid project member data")
			c.Abort()
			return
		}

		if member.Role != models.RoleOwner {
			apierrors.Forbidden(c, "Only the project owner can perform this action")
			c.Abort()
			return
		}

		c.Next()
	}
}
