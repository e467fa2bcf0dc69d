// Package models defines the data structures persisted and exchanged by the
// case scanner.
package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/case-scanner/internal/types"
)

// MajorEvent is one dated milestone in a case's procedural history, as it
// appears on the registry page. Date carries the raw source text.
type MajorEvent struct {
	Description string `json:"description"`
	Date        string `json:"date"`
}

// CaseRecord is one fetched snapshot of a case's public metadata and event
// history. It is transient: records live in the batch buffer until flushed.
type CaseRecord struct {
	// ApplicationNumber has the form "<number>/<2-digit-year>", e.g. "814/21".
	ApplicationNumber  string       `json:"applicationNumber"`
	Title              string       `json:"title"`
	IntroductionDate   string       `json:"introductionDate"` // raw source text
	RepresentativeName string       `json:"representativeName,omitempty"`
	Events             []MajorEvent `json:"events"`
}

// LastEvent returns the chronologically final element of the event sequence.
func (r *CaseRecord) LastEvent() (MajorEvent, bool) {
	if len(r.Events) == 0 {
		return MajorEvent{}, false
	}
	return r.Events[len(r.Events)-1], true
}

// Valid reports whether the record carries the fields required for
// persistence. Malformed records are skipped with a warning, never fatal.
func (r *CaseRecord) Valid() bool {
	return r != nil && r.ApplicationNumber != "" && r.Title != ""
}

// ApplicationID builds the registry identifier for a (number, year) pair.
func ApplicationID(number, year int) string {
	return fmt.Sprintf("%d/%02d", number, year)
}

// ParseApplicationID splits an application number back into its (number,
// year) pair.
func ParseApplicationID(id string) (number, year int, err error) {
	if _, scanErr := fmt.Sscanf(id, "%d/%d", &number, &year); scanErr != nil {
		return 0, 0, fmt.Errorf("malformed application number %q: %w", id, scanErr)
	}
	if number < 1 || year < 0 || year > 99 {
		return 0, 0, fmt.Errorf("malformed application number %q", id)
	}
	return number, year, nil
}

// Application is the durable case entity, keyed by application number.
type Application struct {
	ID                 int64      `json:"id"`
	ApplicationNumber  string     `json:"applicationNumber"`
	Title              string     `json:"title"`
	Country            *string    `json:"country,omitempty"`
	DateIntroduction   *time.Time `json:"dateIntroduction,omitempty"`
	RepresentativeID   *int64     `json:"representativeId,omitempty"`
	RepresentativeName *string    `json:"representativeName,omitempty"`
	LastMajorEvent     *string    `json:"lastMajorEvent,omitempty"`
	LastMajorEventDate *time.Time `json:"lastMajorEventDate,omitempty"`
	IsClosed           bool       `json:"isClosed"`
	NotFoundCount      int        `json:"notFoundCount"`
	SkipScraping       bool       `json:"skipScraping"`
	LastCheckedDate    time.Time  `json:"lastCheckedDate"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

// Event is one persisted milestone, owned by exactly one application. The
// full set for a case is replaced wholesale on every refetch.
type Event struct {
	ID            int64      `json:"id"`
	ApplicationID int64      `json:"applicationId"`
	EventDate     *time.Time `json:"eventDate,omitempty"`
	Description   string     `json:"description"`
	IsLastEvent   bool       `json:"isLastEvent"`
	SortOrder     int        `json:"sortOrder"`
}

// Representative is a deduplicated-by-name durable entity, created lazily on
// first encounter.
type Representative struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Subscription marks a case for the weekly re-check loop.
type Subscription struct {
	ID                int64                    `json:"id"`
	CaseID            int64                    `json:"caseId"`
	ApplicationNumber string                   `json:"applicationNumber"`
	Status            types.SubscriptionStatus `json:"status"`
	CreatedAt         time.Time                `json:"createdAt"`
}

// Observation is one append-only history row describing the outcome of a
// single probe, used to track per-case change over time.
type Observation struct {
	RunID             uuid.UUID          `json:"runId"`
	Mode              types.CrawlMode    `json:"mode"`
	ApplicationNumber string             `json:"applicationNumber"`
	Outcome           types.FetchOutcome `json:"outcome"`
	Title             string             `json:"title,omitempty"`
	LastMajorEvent    string             `json:"lastMajorEvent,omitempty"`
	IsClosed          bool               `json:"isClosed"`
	EventCount        int                `json:"eventCount"`
	Changed           bool               `json:"changed"`
	ObservedAt        time.Time          `json:"observedAt"`
}
