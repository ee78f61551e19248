package model

import "time"

// SubscriptionHistoryEntry is one append-only audit record. Entries are
// written on every create, cancel, reactivate and expire transition and are
// never mutated or deleted. IDs are ULIDs so the trail sorts by creation.
type SubscriptionHistoryEntry struct {
	ID             string // ULID
	TenantID       string
	SubscriptionID string
	OldPlan        *PlanCode
	NewPlan        *PlanCode
	OldStatus      *SubscriptionStatus
	NewStatus      *SubscriptionStatus
	Reason         string
	EventID        string
	EventType      string
	Metadata       map[string]interface{}
	CreatedAt      time.Time
}
