// internal/app/features/auditlog/types.go
package auditlog

import (
	"time"

	"github.com/dalemusser/birdbook/internal/app/store/audit"
	"github.com/dalemusser/birdbook/internal/app/system/paging"
)

// listItem is one audit event with user ids resolved to usernames.
type listItem struct {
	ID         string            `json:"id"`
	Timestamp  time.Time         `json:"timestamp"`
	Category   string            `json:"category"`
	EventType  string            `json:"event_type"`
	ActorID    string            `json:"actor_id,omitempty"`
	ActorName  string            `json:"actor_name,omitempty"`
	TargetID   string            `json:"target_id,omitempty"`
	TargetName string            `json:"target_name,omitempty"`
	IP         string            `json:"ip"`
	Success    bool              `json:"success"`
	Reason     string            `json:"failure_reason,omitempty"`
	Details    map[string]string `json:"details,omitempty"`
}

type listResponse struct {
	Items      []listItem `json:"items"`
	EventTypes []string   `json:"event_types"`
	paging.Page
}

// eventTypesForCategory returns the event types for a category, or all of
// them when category is empty.
func eventTypesForCategory(category string) []string {
	authEvents := []string{
		audit.EventLoginSuccess,
		audit.EventLoginFailed,
		audit.EventLoginFailedRateLimit,
		audit.EventSignup,
		audit.EventLogout,
	}
	adminEvents := []string{
		audit.EventRoleChanged,
		audit.EventUserDeleted,
		audit.EventBirdCreated,
		audit.EventBirdUpdated,
		audit.EventBirdDeleted,
	}

	switch category {
	case audit.CategoryAuth:
		return authEvents
	case audit.CategoryAdmin:
		return adminEvents
	case "":
		return append(append([]string{}, authEvents...), adminEvents...)
	default:
		return nil
	}
}
