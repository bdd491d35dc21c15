// internal/models/batch.go
package models

import "time"

// BatchType distinguishes rotation batches from out-of-band invites.
type BatchType string

const (
	BatchSystemRotation BatchType = "SYSTEM_ROTATION"
	BatchManualInvite   BatchType = "MANUAL_INVITE"
)

// BatchStatus is the lifecycle state of an assignment batch.
type BatchStatus string

const (
	BatchActive BatchStatus = "active"
	BatchClosed BatchStatus = "closed"
)

// AssignmentBatch is one generation round of candidate assignments for a
// project. Immutable once created, except for status closure.
type AssignmentBatch struct {
	ID          string      `json:"id"`
	ProjectID   string      `json:"projectId"`
	BatchNumber int         `json:"batchNumber"`
	Status      BatchStatus `json:"status"`
	Type        BatchType   `json:"type"`
	Quota       TierQuota   `json:"quota"`
	NoExpiry    bool        `json:"noExpiry"`
	CreatedAt   time.Time   `json:"createdAt"`
}
