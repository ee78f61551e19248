package model

import "time"

// Tenant is the billing and data-isolation unit: one customer business.
// Rows live in the shared store; this service reads them to resolve webhook
// buyer emails and to scope usage counts.
type Tenant struct {
	ID         string
	Name       string
	OwnerEmail string
	CreatedAt  time.Time
}

func (t *Tenant) IsZero() bool { return t == nil || t.ID == "" }
