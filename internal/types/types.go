// Package types provides common type definitions for the case scanner system.
package types

import "fmt"

// FetchOutcome classifies the result of one probe against the case registry.
type FetchOutcome string

const (
	// OutcomeFound means the registry returned a case record
	OutcomeFound FetchOutcome = "found"
	// OutcomeNotFound means the registry confirmed no case exists at the identifier
	OutcomeNotFound FetchOutcome = "not_found"
	// OutcomeError means the probe failed before an answer was obtained
	OutcomeError FetchOutcome = "error"
)

// CrawlMode distinguishes the two scheduled operating modes.
type CrawlMode string

const (
	// ModeMonthly is the bulk crawl that walks the whole identifier space
	ModeMonthly CrawlMode = "monthly"
	// ModeWeekly is the targeted re-check of subscribed cases
	ModeWeekly CrawlMode = "weekly"
)

// SubscriptionStatus represents the lifecycle of a case subscription.
type SubscriptionStatus string

const (
	// SubscriptionActive means the weekly loop re-checks this case
	SubscriptionActive SubscriptionStatus = "active"
	// SubscriptionInactive means the subscription has been disabled
	SubscriptionInactive SubscriptionStatus = "inactive"
)

// ServiceError is a structured error with a stable machine-readable code.
type ServiceError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface
func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}
