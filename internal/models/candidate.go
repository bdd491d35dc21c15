// internal/models/candidate.go
package models

import "time"

// ResponseStatus is a candidate's response state. Any non-pending status
// is terminal; a candidate transitions out of pending exactly once.
type ResponseStatus string

const (
	ResponsePending  ResponseStatus = "pending"
	ResponseAccepted ResponseStatus = "accepted"
	ResponseRejected ResponseStatus = "rejected"
	ResponseExpired  ResponseStatus = "expired"
)

// AssignmentCandidate is one developer's slot within a batch. Rows are
// never deleted, only terminalized, preserving the audit trail.
type AssignmentCandidate struct {
	ID                  string         `json:"id"`
	BatchID             string         `json:"batchId"`
	ProjectID           string         `json:"projectId"`
	DeveloperID         string         `json:"developerId"`
	Tier                TierLevel      `json:"tier"`
	AssignedAt          time.Time      `json:"assignedAt"`
	AcceptanceDeadline  *time.Time     `json:"acceptanceDeadline,omitempty"`
	ResponseStatus      ResponseStatus `json:"responseStatus"`
	RespondedAt         *time.Time     `json:"respondedAt,omitempty"`
	UsualResponseTimeMs int64          `json:"usualResponseTimeMs"`
	ClientMessage       string         `json:"clientMessage,omitempty"`
	IsFirstAccepted     bool           `json:"isFirstAccepted"`
	InvalidatedAt       *time.Time     `json:"invalidatedAt,omitempty"`
}

// Actionable reports whether the candidate can still respond: pending,
// not invalidated by a sibling's win, and not past its deadline.
func (c *AssignmentCandidate) Actionable(now time.Time) bool {
	if c.ResponseStatus != ResponsePending || c.InvalidatedAt != nil {
		return false
	}
	if c.AcceptanceDeadline != nil && now.After(*c.AcceptanceDeadline) {
		return false
	}
	return true
}

// RawCandidate is a selector result before persistence: one developer
// surfaced by a tier query, carrying the matched skills and the
// response-time snapshot taken at selection time.
type RawCandidate struct {
	DeveloperID         string    `json:"developerId"`
	Tier                TierLevel `json:"tier"`
	MatchedSkillIDs     []string  `json:"matchedSkillIds"`
	UsualResponseTimeMs int64     `json:"usualResponseTimeMs"`
}
