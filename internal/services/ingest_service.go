package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/devtrackhq/devtrack/internal/automation"
	"github.com/devtrackhq/devtrack/internal/dto"
	"github.com/devtrackhq/devtrack/internal/github"
	"github.com/devtrackhq/devtrack/internal/metrics"
	"github.com/devtrackhq/devtrack/internal/models"
	"github.com/devtrackhq/devtrack/internal/realtime"
	"github.com/devtrackhq/devtrack/internal/repository"
)

var (
	ErrProjectNotLinked = errors.New("no project is linked to this repository")
	ErrNoRepoConfigured = errors.New("project has no repository URL configured")
	ErrRepoFetchFailed  = errors.New("failed to fetch commits from the repository host")
)

// PushCommit is one commit from a validated push payload or a repository sync.
type PushCommit struct {
	CommitterName     string
	CommitterUsername string
	Message           string
	URL               string
	Timestamp         time.Time
	Added             []string
	Removed           []string
	Modified          []string
}

// IngestService records incoming commit batches and hands them to commit
// automation. Recording is synchronous so the ingress can acknowledge once
// commits are durable; reconciliation runs separately (the webhook handler
// dispatches it in the background).
type IngestService struct {
	commits    repository.CommitRepository
	projects   repository.ProjectRepository
	reconciler *automation.Reconciler
	publisher  realtime.Publisher
	gh         *github.Client
	log        *zap.Logger
}

// NewIngestService creates a new IngestService.
func NewIngestService(commits repository.CommitRepository, projects repository.ProjectRepository, reconciler *automation.Reconciler, publisher realtime.Publisher, gh *github.Client, log *zap.Logger) *IngestService {
	return &IngestService{
		commits:    commits,
		projects:   projects,
		reconciler: reconciler,
		publisher:  publisher,
		gh:         gh,
		log:        log,
	}
}

// ProjectForRepo finds the project a webhook delivery belongs to.
func (s *IngestService) ProjectForRepo(repoID string) (*models.Project, error) {
	project, err := s.projects.FindByGithubRepoID(repoID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotLinked
		}
		return nil, fmt.Errorf("failed to look up project: %w", err)
	}
	return project, nil
}

// RecordPush stores a push's commits in delivery order, skipping URLs the
// project has already recorded, and publishes the new commits to the
// project channel. Returns the commits actually stored.
func (s *IngestService) RecordPush(projectID uint64, push []PushCommit) ([]models.Commit, error) {
	commits := make([]models.Commit, len(push))
	for i, pc := range push {
		commits[i] = models.Commit{
			ProjectID:         projectID,
			URL:               pc.URL,
			CommitterName:     pc.CommitterName,
			CommitterUsername: pc.CommitterUsername,
			Message:           pc.Message,
			CommittedAt:       pc.Timestamp,
			Added:             pc.Added,
			Removed:           pc.Removed,
			Modified:          pc.Modified,
		}
	}

	stored, err := s.commits.InsertIgnoreDuplicates(commits)
	if err != nil {
		return stored, fmt.Errorf("failed to record commits: %w", err)
	}
	metrics.CommitsIngested.Add(float64(len(stored)))

	if len(stored) > 0 {
		err := s.publisher.Publish(realtime.ProjectChannel(projectID), realtime.EventNewCommit, dto.ToCommitDTOs(stored))
		if err != nil {
			metrics.PublishFailures.Inc()
			s.log.Warn("failed to publish new commits",
				zap.Uint64("project_id", projectID), zap.Error(err))
		}
	}

	return stored, nil
}

// Reconcile runs commit automation over already-recorded commits.
func (s *IngestService) Reconcile(ctx context.Context, projectID uint64, stored []models.Commit) {
	batch := make([]automation.Commit, len(stored))
	for i, c := range stored {
		batch[i] = automation.Commit{
			CommitterName:     c.CommitterName,
			CommitterUsername: c.CommitterUsername,
			Message:           c.Message,
			URL:               c.URL,
			Timestamp:         c.CommittedAt,
		}
	}
	s.reconciler.ReconcileBatch(ctx, projectID, batch)
}

// SyncFromGithub pulls the project's commit history from the GitHub API,
// records anything new and runs automation over it, then returns the
// project's full commit list.
func (s *IngestService) SyncFromGithub(ctx context.Context, project *models.Project) ([]models.Commit, error) {
	if project.RepoURL == "" {
		return nil, ErrNoRepoConfigured
	}

	fetched, err := s.gh.ListCommits(ctx, project.RepoURL)
	if err != nil {
		s.log.Warn("github sync failed",
			zap.Uint64("project_id", project.ID), zap.Error(err))
		return nil, ErrRepoFetchFailed
	}

	push := make([]PushCommit, len(fetched))
	for i, rc := range fetched {
		push[i] = PushCommit{
			CommitterName:     rc.AuthorName,
			CommitterUsername: rc.AuthorLogin,
			Message:           rc.Message,
			URL:               rc.URL,
			Timestamp:         rc.Timestamp,
		}
	}

	stored, err := s.RecordPush(project.ID, push)
	if err != nil {
		return nil, err
	}
	if len(stored) > 0 {
		s.Reconcile(ctx, project.ID, stored)
	}

	return s.commits.ListByProject(project.ID)
}

// ListCommits returns a project's recorded commits, newest first.
func (s *IngestService) ListCommits(projectID uint64) ([]models.Commit, error) {
	return s.commits.ListByProject(projectID)
}

// ListCommitsPage returns one page of a project's commits plus the total count.
func (s *IngestService) ListCommitsPage(projectID uint64, offset, limit int) ([]models.Commit, int64, error) {
	total, err := s.commits.CountByProject(projectID)
	if err != nil {
		return nil, 0, err
	}
	commits, err := s.commits.ListByProjectPaged(projectID, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	return commits, total, nil
}

// CountCommits returns how many commits a project has recorded.
func (s *IngestService) CountCommits(projectID uint64) (int64, error) {
	return s.commits.CountByProject(projectID)
}
