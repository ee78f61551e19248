package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound             = errors.New("entity not found")
	ErrNoActiveSubscription = errors.New("no active subscription")
	ErrTenantNotFound       = errors.New("tenant not found")
	ErrPlanUnresolved       = errors.New("plan could not be resolved")
	ErrInvalidArgument      = errors.New("invalid argument")
	ErrInvalidSignature     = errors.New("invalid webhook signature")
	ErrInvalidExecContext   = errors.New("invalid execution context")
	ErrOperationFailed      = errors.New("operation failed")
	ErrAlreadyExists        = errors.New("entity already exists")
)
