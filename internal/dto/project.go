package dto

import (
	"time"

	"github.com/devtrackhq/devtrack/internal/models"
)

// MemberDTO represents a project member in API responses
type MemberDTO struct {
	User     *UserDTO            `json:"user,omitempty"`
	UserID   uint64              `json:"user_id"`
	Role     models.ProjectRole  `json:"role"`
	Status   models.MemberStatus `json:"status"`
	JoinedAt time.Time           `json:"joined_at"`
}

// ProjectDTO represents a project in API responses
type ProjectDTO struct {
	ID           uint64      `json:"id"`
	Name         string      `json:"name"`
	RepoURL      string      `json:"repo_url,omitempty"`
	GithubRepoID string      `json:"github_repo_id,omitempty"`
	Deadline     *time.Time  `json:"deadline"`
	Members      []MemberDTO `json:"members,omitempty"`
	Tasks        []TaskDTO   `json:"tasks,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
}

// CommitDTO represents an ingested commit in API responses and channel events
type CommitDTO struct {
	ProjectID         uint64    `json:"project_id"`
	CommitterName     string    `json:"committer_name"`
	CommitterUsername string    `json:"committer_username,omitempty"`
	Message           string    `json:"message"`
	URL               string    `json:"url"`
	Timestamp         time.Time `json:"timestamp"`
}

// NotificationDTO represents a notification in API responses and channel events
type NotificationDTO struct {
	ID        uint64                  `json:"id"`
	Type      models.NotificationType `json:"type"`
	Message   string                  `json:"message"`
	Sender    *UserDTO                `json:"sender,omitempty"`
	ProjectID *uint64                 `json:"project_id,omitempty"`
	Read      bool                    `json:"read"`
	Timestamp time.Time               `json:"timestamp"`
}

// ToMemberDTO converts a ProjectMember model to MemberDTO
func ToMemberDTO(member models.ProjectMember) MemberDTO {
	dto := MemberDTO{
		UserID:   member.UserID,
		Role:     member.Role,
		Status:   member.Status,
		JoinedAt: member.JoinedAt,
	}
	if member.User.ID != 0 {
		user := ToUserDTO(member.User)
		dto.User = &user
	}
	return dto
}

// ToProjectDTO converts a Project model to ProjectDTO
func ToProjectDTO(project models.Project) ProjectDTO {
	dto := ProjectDTO{
		ID:           project.ID,
		Name:         project.Name,
		RepoURL:      project.RepoURL,
		GithubRepoID: project.GithubRepoID,
		Deadline:     project.Deadline,
		CreatedAt:    project.CreatedAt,
	}
	for _, member := range project.Members {
		dto.Members = append(dto.Members, ToMemberDTO(member))
	}
	for _, task := range project.Tasks {
		dto.Tasks = append(dto.Tasks, ToTaskDTO(task))
	}
	return dto
}

// ToProjectDTOs converts a slice of projects.
func ToProjectDTOs(projects []models.Project) []ProjectDTO {
	dtos := make([]ProjectDTO, len(projects))
	for i, project := range projects {
		dtos[i] = ToProjectDTO(project)
	}
	return dtos
}

// ToCommitDTO converts a Commit model to CommitDTO
func ToCommitDTO(commit models.Commit) CommitDTO {
	return CommitDTO{
		ProjectID:         commit.ProjectID,
		CommitterName:     commit.CommitterName,
		CommitterUsername: commit.CommitterUsername,
		Message:           commit.Message,
		URL:               commit.URL,
		Timestamp:         commit.CommittedAt,
	}
}

// ToCommitDTOs converts a slice of commits.
func ToCommitDTOs(commits []models.Commit) []CommitDTO {
	dtos := make([]CommitDTO, len(commits))
	for i, commit := range commits {
		dtos[i] = ToCommitDTO(commit)
	}
	return dtos
}

// ToNotificationDTO converts a Notification model to NotificationDTO
func ToNotificationDTO(n models.Notification) NotificationDTO {
	dto := NotificationDTO{
		ID:        n.ID,
		Type:      n.Type,
		Message:   n.Message,
		ProjectID: n.ProjectID,
		Read:      n.Read,
		Timestamp: n.CreatedAt,
	}
	if n.Sender != nil {
		sender := ToUserDTO(*n.Sender)
		dto.Sender = &sender
	}
	return dto
}

// ToNotificationDTOs converts a slice of notifications.
func ToNotificationDTOs(notifications []models.Notification) []NotificationDTO {
	dtos := make([]NotificationDTO, len(notifications))
	for i, n := range notifications {
		dtos[i] = ToNotificationDTO(n)
	}
	return dtos
}
