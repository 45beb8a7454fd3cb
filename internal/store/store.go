// Package store persists the publish-governance records. PGStore is the
// production implementation; MemoryStore backs tests.
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/eventloom/publish-governance/internal/models"
)

// ErrNotFound is returned when a referenced record does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicatePending is returned when an event already has a pending publish
// request. PGStore derives it from the partial unique index on
// publish_requests(event_id) WHERE status = 'pending'.
var ErrDuplicatePending = errors.New("pending publish request already exists")

// ErrNotPending is returned when a resolution or cancellation targets a
// request that exists but is no longer pending.
var ErrNotPending = errors.New("publish request is not pending")

// PublishRequestInput carries the fields for a new publish request row.
type PublishRequestInput struct {
	ID          uuid.UUID
	EventID     uuid.UUID
	WorkspaceID uuid.UUID
	RequestedBy string
	Priority    models.Priority
	Snapshot    models.ChecklistSnapshot
}

// ResolutionInput identifies the pending request a reviewer is resolving.
type ResolutionInput struct {
	RequestID  uuid.UUID
	ReviewerID string
	Notes      string
}

// TransitionInput describes one event status change. When Reason is non-nil an
// extra history entry carrying the reason is appended alongside the automatic
// transition record.
type TransitionInput struct {
	EventID   uuid.UUID
	NewStatus models.EventStatus
	ChangedBy string
	Reason    *string
}

// RequestFilter narrows ListPublishRequests. Zero values mean "any".
type RequestFilter struct {
	Status      models.RequestStatus
	WorkspaceID uuid.UUID
	Limit       int
}

// Store is the persistence boundary of the publish-governance service.
type Store interface {
	GetEvent(ctx context.Context, id uuid.UUID) (models.Event, error)
	CountTicketTiers(ctx context.Context, eventID uuid.UUID) (int, error)
	ListPromoCodes(ctx context.Context, eventID uuid.UUID) ([]models.PromoCode, error)

	GetPublishConfig(ctx context.Context, workspaceID uuid.UUID) (models.WorkspacePublishConfig, error)
	UpdatePublishConfig(ctx context.Context, cfg models.WorkspacePublishConfig) (models.WorkspacePublishConfig, error)

	CreatePublishRequest(ctx context.Context, in PublishRequestInput) (models.PublishRequest, error)
	GetPublishRequest(ctx context.Context, id uuid.UUID) (models.PublishRequest, error)
	LatestPublishRequestForEvent(ctx context.Context, eventID uuid.UUID) (models.PublishRequest, error)
	ListPublishRequests(ctx context.Context, f RequestFilter) ([]models.PublishRequest, error)

	// ApprovePublishRequest resolves a pending request and publishes its event
	// in one transaction; a partially applied approval must be impossible.
	ApprovePublishRequest(ctx context.Context, in ResolutionInput) (models.PublishRequest, error)
	RejectPublishRequest(ctx context.Context, in ResolutionInput) (models.PublishRequest, error)
	DeletePendingRequest(ctx context.Context, id uuid.UUID) error

	// TransitionEventStatus updates the event row and appends the status
	// history record(s) atomically.
	TransitionEventStatus(ctx context.Context, in TransitionInput) (models.Event, error)
	ListStatusHistory(ctx context.Context, eventID uuid.UUID) ([]models.StatusHistoryEntry, error)

	Ping(ctx context.Context) error
}
