package dto

import (
	"time"

	"github.com/devtrackhq/devtrack/internal/models"
)

// UserDTO represents a user in API responses
type UserDTO struct {
	ID        uint64 `json:"id"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// HistoryEntryDTO represents one audit log entry
type HistoryEntryDTO struct {
	User      *UserDTO  `json:"user,omitempty"`
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
}

// CommentDTO represents one task comment
type CommentDTO struct {
	User      *UserDTO  `json:"user,omitempty"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// LinkedCommitDTO represents one commit attached to a task
type LinkedCommitDTO struct {
	Message   string    `json:"message"`
	URL       string    `json:"url"`
	Committer string    `json:"committer"`
	Timestamp time.Time `json:"timestamp"`
}

// TaskDTO is the full task snapshot published to channels and returned by
// the API. AtRisk is derived at read time (deadline passed and not done);
// it is never a stored status.
type TaskDTO struct {
	ID            uint64            `json:"id"`
	Number        int               `json:"number"`
	ProjectID     uint64            `json:"project_id"`
	Title         string            `json:"title"`
	Status        models.TaskStatus `json:"status"`
	AtRisk        bool              `json:"at_risk"`
	Deadline      *time.Time        `json:"deadline"`
	Assignees     []UserDTO         `json:"assignees"`
	History       []HistoryEntryDTO `json:"history"`
	Comments      []CommentDTO      `json:"comments"`
	LinkedCommits []LinkedCommitDTO `json:"linked_commits"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// ToUserDTO converts a User model to UserDTO
func ToUserDTO(user models.User) UserDTO {
	return UserDTO{
		ID:        user.ID,
		Username:  user.Username,
		AvatarURL: user.AvatarURL,
	}
}

// ToTaskDTO converts a Task model (with whatever relations are preloaded)
// to a TaskDTO.
func ToTaskDTO(task models.Task) TaskDTO {
	dto := TaskDTO{
		ID:            task.ID,
		Number:        task.Number,
		ProjectID:     task.ProjectID,
		Title:         task.Title,
		Status:        task.Status,
		AtRisk:        atRisk(task),
		Deadline:      task.Deadline,
		Assignees:     make([]UserDTO, 0, len(task.Assignees)),
		History:       make([]HistoryEntryDTO, 0, len(task.History)),
		Comments:      make([]CommentDTO, 0, len(task.Comments)),
		LinkedCommits: make([]LinkedCommitDTO, 0, len(task.LinkedCommits)),
		CreatedAt:     task.CreatedAt,
		UpdatedAt:     task.UpdatedAt,
	}

	for _, user := range task.Assignees {
		dto.Assignees = append(dto.Assignees, ToUserDTO(user))
	}
	for _, entry := range task.History {
		item := HistoryEntryDTO{
			Action:    entry.Action,
			Timestamp: entry.CreatedAt,
		}
		if entry.User != nil {
			user := ToUserDTO(*entry.User)
			item.User = &user
		}
		dto.History = append(dto.History, item)
	}
	for _, comment := range task.Comments {
		item := CommentDTO{
			Text:      comment.Text,
			Timestamp: comment.CreatedAt,
		}
		if comment.User.ID != 0 {
			user := ToUserDTO(comment.User)
			item.User = &user
		}
		dto.Comments = append(dto.Comments, item)
	}
	for _, lc := range task.LinkedCommits {
		dto.LinkedCommits = append(dto.LinkedCommits, LinkedCommitDTO{
			Message:   lc.Message,
			URL:       lc.CommitURL,
			Committer: lc.Committer,
			Timestamp: lc.CommittedAt,
		})
	}

	return dto
}

// ToTaskDTOs converts a slice of tasks.
func ToTaskDTOs(tasks []models.Task) []TaskDTO {
	dtos := make([]TaskDTO, len(tasks))
	for i, task := range tasks {
		dtos[i] = ToTaskDTO(task)
	}
	return dtos
}

func atRisk(task models.Task) bool {
	return task.Deadline != nil &&
		task.Deadline.Before(time.Now()) &&
		task.Status != models.TaskStatusDone
}
