// Package models contains the canonical records of the publish-governance
// subsystem: events, workspace publish configuration, checklist values,
// publish requests and the status history log.
package models

import (
	"time"

	"github.com/google/uuid"
)

// EventStatus enumerates the lifecycle states of an event record.
type EventStatus string

const (
	EventStatusDraft     EventStatus = "draft"
	EventStatusPublished EventStatus = "published"
	EventStatusCancelled EventStatus = "cancelled"
	EventStatusCompleted EventStatus = "completed"
	EventStatusArchived  EventStatus = "archived"
)

// ValidEventStatus reports whether s is one of the known statuses.
func ValidEventStatus(s EventStatus) bool {
	switch s {
	case EventStatusDraft, EventStatusPublished, EventStatusCancelled, EventStatusCompleted, EventStatusArchived:
		return true
	}
	return false
}

// TicketingConfig is the closed ticketing sub-configuration consumed by the
// readiness engine. Mode "external" delegates registration to an outside URL;
// "internal" expects at least one ticket tier to exist.
type TicketingConfig struct {
	Mode        string `json:"mode,omitempty"` // "internal" | "external" | ""
	ExternalURL string `json:"externalUrl,omitempty"`
}

// SEOConfig holds the search/social metadata for an event's public page.
type SEOConfig struct {
	MetaTitle       string `json:"metaTitle,omitempty"`
	MetaDescription string `json:"metaDescription,omitempty"`
	SocialImageURL  string `json:"socialImageUrl,omitempty"`
}

// AccessibilityConfig holds the accessibility information shown to attendees.
type AccessibilityConfig struct {
	Statement    string `json:"statement,omitempty"`
	ContactEmail string `json:"contactEmail,omitempty"`
}

// BrandingConfig is the event's configuration blob, decomposed into typed
// sub-configurations instead of a loose key-value map so the readiness checks
// are compile-time safe.
type BrandingConfig struct {
	Ticketing     TicketingConfig     `json:"ticketing"`
	SEO           SEOConfig           `json:"seo"`
	Accessibility AccessibilityConfig `json:"accessibility"`
}

// LandingBlock is one block of a landing-page document.
type LandingBlock struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
}

// LandingPageDoc is the optional landing-page document attached to an event.
type LandingPageDoc struct {
	Blocks []LandingBlock `json:"blocks"`
}

// Event is the event record as this subsystem consumes and mutates it.
type Event struct {
	ID          uuid.UUID       `json:"id"`
	WorkspaceID uuid.UUID       `json:"workspaceId"` // root workspace
	Name        string          `json:"name"`
	Description string          `json:"description"`
	StartDate   *time.Time      `json:"startDate,omitempty"`
	EndDate     *time.Time      `json:"endDate,omitempty"`
	Visibility  string          `json:"visibility,omitempty"` // "public" | "private" | "unlisted"
	Slug        string          `json:"slug,omitempty"`
	Branding    BrandingConfig  `json:"branding"`
	LandingPage *LandingPageDoc `json:"landingPage,omitempty"`
	Status      EventStatus     `json:"status"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// PromoCode is the subset of a promo-code row the readiness engine reads.
type PromoCode struct {
	ID     uuid.UUID `json:"id"`
	Code   string    `json:"code"`
	Active bool      `json:"active"`
}

// PublishRequirements are the per-workspace toggles that decide which
// event-space checks are required rather than advisory.
type PublishRequirements struct {
	LandingPage   bool `json:"landingPage"`
	Ticketing     bool `json:"ticketing"`
	SEO           bool `json:"seo"`
	Accessibility bool `json:"accessibility"`
}

// WorkspacePublishConfig is the per-root-workspace publish policy.
type WorkspacePublishConfig struct {
	WorkspaceID      uuid.UUID           `json:"workspaceId"`
	RequiresApproval bool                `json:"requiresApproval"`
	Requirements     PublishRequirements `json:"requirements"`
	UpdatedAt        time.Time           `json:"updatedAt"`
}

// DefaultPublishConfig returns the configuration a workspace starts with.
func DefaultPublishConfig(workspaceID uuid.UUID) WorkspacePublishConfig {
	return WorkspacePublishConfig{
		WorkspaceID:      workspaceID,
		RequiresApproval: false,
		Requirements: PublishRequirements{
			LandingPage: true,
			Ticketing:   true,
		},
	}
}

// ChecklistStatus is the verdict of one readiness check.
type ChecklistStatus string

const (
	CheckPass    ChecklistStatus = "pass"
	CheckWarning ChecklistStatus = "warning"
	CheckFail    ChecklistStatus = "fail"
)

// ChecklistCategory groups checks for display.
type ChecklistCategory string

const (
	CategoryBasic      ChecklistCategory = "basic"
	CategoryEventSpace ChecklistCategory = "event-space"
)

// ChecklistItem is one named readiness condition with its computed verdict.
type ChecklistItem struct {
	ID       string            `json:"id"`
	Label    string            `json:"label"`
	Category ChecklistCategory `json:"category"`
	Required bool              `json:"required"`
	Status   ChecklistStatus   `json:"status"`
}

// ChecklistResult is the full output of a readiness evaluation.
type ChecklistResult struct {
	Items                []ChecklistItem `json:"items"`
	CanPublish           bool            `json:"canPublish"`
	CompletionPercentage int             `json:"completionPercentage"`
}

// ChecklistSnapshot is the checklist result frozen into a publish request at
// submission time. It is never recomputed or mutated afterwards.
type ChecklistSnapshot struct {
	Items      []ChecklistItem `json:"items"`
	CanPublish bool            `json:"canPublish"`
	Notes      string          `json:"notes,omitempty"`
	TakenAt    time.Time       `json:"takenAt"`
}

// RequestStatus enumerates the lifecycle states of a publish request.
// Cancellation deletes the row, so it has no status of its own.
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
)

// Priority is the reviewer-facing urgency of a publish request.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// ValidPriority reports whether p is one of the known priorities.
func ValidPriority(p Priority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// PriorityRank orders priorities for the reviewer queue; higher sorts first.
func PriorityRank(p Priority) int {
	switch p {
	case PriorityUrgent:
		return 3
	case PriorityHigh:
		return 2
	case PriorityMedium:
		return 1
	default:
		return 0
	}
}

// PublishRequest tracks one approval request from submission to resolution.
type PublishRequest struct {
	ID          uuid.UUID         `json:"id"`
	EventID     uuid.UUID         `json:"eventId"`
	WorkspaceID uuid.UUID         `json:"workspaceId"`
	RequestedBy string            `json:"requestedBy"`
	Status      RequestStatus     `json:"status"`
	Priority    Priority          `json:"priority"`
	Snapshot    ChecklistSnapshot `json:"checklistSnapshot"`
	ReviewerID  *string           `json:"reviewerId,omitempty"`
	ReviewNotes *string           `json:"reviewNotes,omitempty"`
	RequestedAt time.Time         `json:"requestedAt"`
	ReviewedAt  *time.Time        `json:"reviewedAt,omitempty"`
}

// StatusHistoryEntry is one append-only record of an event status transition.
// StreamStatus/Attempts/ArchivedKey track the export pipeline and are not part
// of the caller-facing audit view.
type StatusHistoryEntry struct {
	ID             uuid.UUID   `json:"id"`
	EventID        uuid.UUID   `json:"eventId"`
	PreviousStatus EventStatus `json:"previousStatus"`
	NewStatus      EventStatus `json:"newStatus"`
	ChangedBy      string      `json:"changedBy"`
	Reason         *string     `json:"reason,omitempty"`
	ChangedAt      time.Time   `json:"changedAt"`

	StreamStatus string  `json:"-"`
	Attempts     int     `json:"-"`
	ArchivedKey  *string `json:"-"`
}
