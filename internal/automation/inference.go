package automation

import (
	"errors"

	"gorm.io/gorm"

	"github.com/devtrackhq/devtrack/internal/models"
)

// resolveCommitter maps a commit's author to a known account. The account
// username, when the ingress could resolve one, is tried before the free-form
// display name; each is matched exactly first, then case-insensitively.
func (r *Reconciler) resolveCommitter(commit Commit) (*models.User, bool) {
	for _, name := range []string{commit.CommitterUsername, commit.CommitterName} {
		if name == "" {
			continue
		}

		user, err := r.users.FindByUsername(name)
		if err == nil {
			return user, true
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false
		}

		user, err = r.users.FindByUsernameFold(name)
		if err == nil {
			return user, true
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false
		}
	}

	return nil, false
}

// inferSoleOpenTask implements the fallback for commits with no task
// reference: if the committer resolves to a known user who has exactly one
// assigned, not-yet-done task in the project, that task is the candidate.
// Zero or multiple candidates is ambiguous and yields nothing rather than a
// guess among concurrent work items.
func (r *Reconciler) inferSoleOpenTask(projectID uint64, commit Commit) (*models.Task, bool) {
	user, ok := r.resolveCommitter(commit)
	if !ok {
		return nil, false
	}

	tasks, err := r.tasks.FindOpenAssigned(projectID, user.ID)
	if err != nil {
		r.log.Error("failed to query open assigned tasks",
			zapProject(projectID), zapCommit(commit), zapErr(err))
		return nil, false
	}
	if len(tasks) != 1 {
		return nil, false
	}

	return &tasks[0], true
}
