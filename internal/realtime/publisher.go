package realtime

import (
	"strconv"
	"strings"
)

// Event names carried on the fan-out channels.
const (
	EventTaskUpdated   = "task-updated"
	EventNewCommit     = "new-commit"
	EventNotification  = "notification"
	EventMemberAdded   = "member-added"
	EventMemberInvited = "member-invited"
)

// Publisher emits an event to a channel. Payloads are always full entity
// snapshots, never diffs, so subscribers can reconcile after missing
// intermediate events. Publishing is fire-and-forget: delivery guarantees
// to individual clients belong to the session layer.
type Publisher interface {
	Publish(channel, event string, payload any) error
}

// ProjectChannel returns the fan-out channel key for a project.
func ProjectChannel(projectID uint64) string {
	return "project:" + strconv.FormatUint(projectID, 10)
}

// UserChannel returns the personal channel key for a user.
func UserChannel(userID uint64) string {
	return "user:" + strconv.FormatUint(userID, 10)
}

// ParseProjectChannel extracts the project ID from a project channel key.
func ParseProjectChannel(channel string) (uint64, bool) {
	idStr, ok := strings.CutPrefix(channel, "project:")
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// Envelope is the wire form of a published event.
type Envelope struct {
	Channel string `json:"channel"`
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}
