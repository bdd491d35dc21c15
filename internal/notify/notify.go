// internal/notify/notify.go
package notify

import "context"

// Event identifies which notification template is rendered.
type Event string

const (
	EventAssignmentInvite Event = "assignment_invite"
	EventManualInvite     Event = "manual_invite"
	EventAssignmentWon    Event = "assignment_won"
	EventAssignmentClosed Event = "assignment_closed"
)

// Notifier delivers a notification to a set of developers. Failures are
// non-fatal to every caller; a committed state transition is never
// rolled back because a send failed.
type Notifier interface {
	Notify(ctx context.Context, event Event, recipientIDs []string, payload map[string]interface{}) (string, error)
}
