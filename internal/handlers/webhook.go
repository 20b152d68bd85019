package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apierrors "github.com/devtrackhq/devtrack/internal/errors"
	"github.com/devtrackhq/devtrack/internal/services"
)

// reconcileTimeout bounds background automation kicked off by a delivery.
const reconcileTimeout = 30 * time.Second

// WebhookHandler receives push deliveries from the repository host.
type WebhookHandler struct {
	ingestService *services.IngestService
	log           *zap.Logger
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(ingestService *services.IngestService, log *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		ingestService: ingestService,
		log:           log,
	}
}

type pushAuthor struct {
	Name     string `json:"name"`
	Username string `json:"username"`
}

type pushCommit struct {
	URL       string     `json:"url"`
	Message   string     `json:"message"`
	Timestamp time.Time  `json:"timestamp"`
	Author    pushAuthor `json:"author"`
	Added     []string   `json:"added"`
	Removed   []string   `json:"removed"`
	Modified  []string   `json:"modified"`
}

type pushPayload struct {
	Repository struct {
		ID uint64 `json:"id"`
	} `json:"repository"`
	Commits []pushCommit `json:"commits"`
}

// GithubPush handles a GitHub push event. Commits are stored before the
// delivery is acknowledged; task automation runs in the background so slow
// reconciliation never stalls the sender.
func (h *WebhookHandler) GithubPush(c *gin.Context) {
	if event := c.GetHeader("X-GitHub-Event"); event != "push" {
		c.JSON(http.StatusOK, gin.H{"message": "Event ignored"})
		return
	}

	var payload pushPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		apierrors.BadRequest(c, "Invalid push payload")
		return
	}

	project, err := h.ingestService.ProjectForRepo(strconv.FormatUint(payload.Repository.ID, 10))
	if err != nil {
		if errors.Is(err, services.ErrProjectNotLinked) {
			apierrors.NotFound(c, err.Error())
			return
		}
		apierrors.InternalError(c, "Failed to resolve project")
		return
	}

	push := make([]services.PushCommit, len(payload.Commits))
	for i, pc := range payload.Commits {
		push[i] = services.PushCommit{
			CommitterName:     pc.Author.Name,
			CommitterUsername: pc.Author.Username,
			Message:           pc.Message,
			URL:               pc.URL,
			Timestamp:         pc.Timestamp,
			Added:             pc.Added,
			Removed:           pc.Removed,
			Modified:          pc.Modified,
		}
	}

	stored, err := h.ingestService.RecordPush(project.ID, push)
	if err != nil {
		apierrors.InternalError(c, "Failed to record commits")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  "Push received",
		"recorded": len(stored),
	})

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), reconcileTimeout)
		defer cancel()
		h.ingestService.Reconcile(ctx, project.ID, stored)
	}()
}
