// internal/models/project.go
package models

import "time"

// ProjectStatus is the lifecycle state of a project.
type ProjectStatus string

const (
	ProjectSubmitted  ProjectStatus = "submitted"
	ProjectAssigning  ProjectStatus = "assigning"
	ProjectAccepted   ProjectStatus = "accepted"
	ProjectInProgress ProjectStatus = "in_progress"
	ProjectCompleted  ProjectStatus = "completed"
	ProjectCanceled   ProjectStatus = "canceled"
)

// Project is one unit of client work to be assigned to a developer.
type Project struct {
	ID               string        `json:"id"`
	ClientID         string        `json:"clientId"`
	Title            string        `json:"title"`
	RequiredSkillIDs []string      `json:"requiredSkillIds"`
	Status           ProjectStatus `json:"status"`
	CreatedAt        time.Time     `json:"createdAt"`
	UpdatedAt        time.Time     `json:"updatedAt"`
}
