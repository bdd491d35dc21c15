// internal/models/developer.go
package models

// Developer is the read-side view of a worker in the pool.
type Developer struct {
	ID          string    `json:"id"`
	OwnerUserID string    `json:"ownerUserId"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone"`
	Tier        TierLevel `json:"tier"`
	SkillIDs    []string  `json:"skillIds"`
	Available   bool      `json:"available"`
}
