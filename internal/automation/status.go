package automation

import (
	"regexp"

	"github.com/devtrackhq/devtrack/internal/models"
)

// statusRule maps a keyword group to its target status. The rules are
// checked in slice order and the first match wins, so a message containing
// both "reopened" and "fixes" resolves to todo, and one containing both
// "fixes" and "wip" resolves to done. Precedence: todo > done > doing.
type statusRule struct {
	status  models.TaskStatus
	pattern *regexp.Regexp
}

var statusRules = []statusRule{
	{
		status:  models.TaskStatusTodo,
		pattern: regexp.MustCompile(`(?i)\b(todo|to-do|backlog|queued|pending|reopened)\b`),
	},
	{
		status:  models.TaskStatusDone,
		pattern: regexp.MustCompile(`(?i)\b(fix(?:e[sd])?|close[sd]?|resolve[sd]?|complete[sd]?|done|finish(?:e[sd]|ing)?|ship(?:ped|ping)?)\b`),
	},
	{
		status:  models.TaskStatusDoing,
		pattern: regexp.MustCompile(`(?i)\b(wip|work(?:ing)?|progress(?:ing)?|start(?:ed|ing)?|in\s+progress|doing|implement(?:ed|ing)?)\b`),
	},
}

// ResolveStatus inspects a commit message for status keywords and returns
// the inferred target status. The second return is false when no keyword
// group matches; callers decide what an absent opinion means for their path.
func ResolveStatus(message string) (models.TaskStatus, bool) {
	for _, rule := range statusRules {
		if rule.pattern.MatchString(message) {
			return rule.status, true
		}
	}
	return "", false
}
