// Package publish owns the approval-request state machine and the direct
// status operations on events. All operations are short-lived synchronous
// calls against the store; concurrency guards live in the store layer.
package publish

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/eventloom/publish-governance/internal/apperr"
	"github.com/eventloom/publish-governance/internal/models"
	"github.com/eventloom/publish-governance/internal/readiness"
	"github.com/eventloom/publish-governance/internal/store"
)

type Service struct {
	store store.Store
}

func New(st store.Store) *Service {
	return &Service{store: st}
}

// EvaluateReadiness runs the rule engine against the event's live state. It is
// side-effect-free and safe to call speculatively.
func (s *Service) EvaluateReadiness(ctx context.Context, eventID uuid.UUID) (models.ChecklistResult, error) {
	in, _, err := s.readinessInput(ctx, eventID)
	if err != nil {
		return models.ChecklistResult{}, err
	}
	return readiness.Evaluate(in), nil
}

func (s *Service) readinessInput(ctx context.Context, eventID uuid.UUID) (readiness.Input, models.Event, error) {
	ev, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return readiness.Input{}, models.Event{}, apperr.NotFound("event %s not found", eventID)
		}
		return readiness.Input{}, models.Event{}, apperr.Internal("load event", err)
	}
	cfg, err := s.store.GetPublishConfig(ctx, ev.WorkspaceID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return readiness.Input{}, models.Event{}, apperr.NotFound("root workspace %s not found", ev.WorkspaceID)
		}
		return readiness.Input{}, models.Event{}, apperr.Internal("load workspace config", err)
	}
	tiers, err := s.store.CountTicketTiers(ctx, eventID)
	if err != nil {
		return readiness.Input{}, models.Event{}, apperr.Internal("count ticket tiers", err)
	}
	promos, err := s.store.ListPromoCodes(ctx, eventID)
	if err != nil {
		return readiness.Input{}, models.Event{}, apperr.Internal("list promo codes", err)
	}
	return readiness.Input{
		Event:           ev,
		Config:          cfg,
		TicketTierCount: tiers,
		PromoCodes:      promos,
	}, ev, nil
}

// SubmitInput describes one approval-request submission.
type SubmitInput struct {
	EventID  uuid.UUID
	Actor    string
	Priority models.Priority
	Notes    string
}

// SubmitRequest evaluates readiness, freezes the result into a snapshot and
// creates a pending publish request. The snapshot records canPublish as
// computed now; later edits to the event do not change it.
func (s *Service) SubmitRequest(ctx context.Context, in SubmitInput) (models.PublishRequest, error) {
	if in.Actor == "" {
		return models.PublishRequest{}, apperr.Auth("submitting a publish request requires an authenticated caller")
	}
	if in.Priority == "" {
		in.Priority = models.PriorityMedium
	}
	if !models.ValidPriority(in.Priority) {
		return models.PublishRequest{}, apperr.Validation("unknown priority %q", in.Priority)
	}

	rin, ev, err := s.readinessInput(ctx, in.EventID)
	if err != nil {
		return models.PublishRequest{}, err
	}
	result := readiness.Evaluate(rin)

	req, err := s.store.CreatePublishRequest(ctx, store.PublishRequestInput{
		EventID:     ev.ID,
		WorkspaceID: ev.WorkspaceID,
		RequestedBy: in.Actor,
		Priority:    in.Priority,
		Snapshot: models.ChecklistSnapshot{
			Items:      result.Items,
			CanPublish: result.CanPublish,
			Notes:      in.Notes,
			TakenAt:    time.Now().UTC(),
		},
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicatePending) {
			return models.PublishRequest{}, apperr.Conflict("event %s already has a pending publish request", ev.ID)
		}
		return models.PublishRequest{}, apperr.Internal("create publish request", err)
	}
	return req, nil
}

// ResolveInput identifies the request a reviewer is approving or rejecting.
type ResolveInput struct {
	RequestID uuid.UUID
	Reviewer  string
	Notes     string
}

// ApproveRequest resolves a pending request and publishes its event. The
// frozen snapshot is trusted; readiness is not re-evaluated here.
func (s *Service) ApproveRequest(ctx context.Context, in ResolveInput) (models.PublishRequest, error) {
	if in.Reviewer == "" {
		return models.PublishRequest{}, apperr.Auth("approving a publish request requires an authenticated reviewer")
	}
	req, err := s.store.ApprovePublishRequest(ctx, store.ResolutionInput{
		RequestID:  in.RequestID,
		ReviewerID: in.Reviewer,
		Notes:      in.Notes,
	})
	if err != nil {
		return models.PublishRequest{}, mapResolutionErr(err, in.RequestID)
	}
	return req, nil
}

// RejectRequest resolves a pending request without touching the event.
// Rejection without a reason is disallowed.
func (s *Service) RejectRequest(ctx context.Context, in ResolveInput) (models.PublishRequest, error) {
	if in.Reviewer == "" {
		return models.PublishRequest{}, apperr.Auth("rejecting a publish request requires an authenticated reviewer")
	}
	if in.Notes == "" {
		return models.PublishRequest{}, apperr.Validation("rejection requires review notes")
	}
	req, err := s.store.RejectPublishRequest(ctx, store.ResolutionInput{
		RequestID:  in.RequestID,
		ReviewerID: in.Reviewer,
		Notes:      in.Notes,
	})
	if err != nil {
		return models.PublishRequest{}, mapResolutionErr(err, in.RequestID)
	}
	return req, nil
}

// CancelRequest deletes a still-pending request so a new one may be submitted
// immediately.
func (s *Service) CancelRequest(ctx context.Context, requestID uuid.UUID, actor string) error {
	if actor == "" {
		return apperr.Auth("cancelling a publish request requires an authenticated caller")
	}
	if err := s.store.DeletePendingRequest(ctx, requestID); err != nil {
		return mapResolutionErr(err, requestID)
	}
	return nil
}

func mapResolutionErr(err error, id uuid.UUID) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return apperr.NotFound("publish request %s not found", id)
	case errors.Is(err, store.ErrNotPending):
		return apperr.Conflict("publish request %s is already resolved", id)
	default:
		return apperr.Internal("resolve publish request", err)
	}
}

// PublishEvent sets the event status to published unconditionally; the caller
// is responsible for having checked readiness beforehand.
func (s *Service) PublishEvent(ctx context.Context, eventID uuid.UUID, actor string) (models.Event, error) {
	return s.transition(ctx, store.TransitionInput{
		EventID:   eventID,
		NewStatus: models.EventStatusPublished,
		ChangedBy: actor,
	})
}

// UnpublishEvent returns the event to draft.
func (s *Service) UnpublishEvent(ctx context.Context, eventID uuid.UUID, actor string) (models.Event, error) {
	return s.transition(ctx, store.TransitionInput{
		EventID:   eventID,
		NewStatus: models.EventStatusDraft,
		ChangedBy: actor,
	})
}

// ChangeStatusInput describes a generic status transition.
type ChangeStatusInput struct {
	EventID   uuid.UUID
	NewStatus models.EventStatus
	Actor     string
	Reason    *string
}

// ChangeEventStatus performs a generic transition; when a reason is supplied
// an explicit reasoned history entry is appended alongside the automatic one.
func (s *Service) ChangeEventStatus(ctx context.Context, in ChangeStatusInput) (models.Event, error) {
	if !models.ValidEventStatus(in.NewStatus) {
		return models.Event{}, apperr.Validation("unknown event status %q", in.NewStatus)
	}
	return s.transition(ctx, store.TransitionInput{
		EventID:   in.EventID,
		NewStatus: in.NewStatus,
		ChangedBy: in.Actor,
		Reason:    in.Reason,
	})
}

func (s *Service) transition(ctx context.Context, in store.TransitionInput) (models.Event, error) {
	if in.ChangedBy == "" {
		return models.Event{}, apperr.Auth("changing event status requires an authenticated caller")
	}
	ev, err := s.store.TransitionEventStatus(ctx, in)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.Event{}, apperr.NotFound("event %s not found", in.EventID)
		}
		return models.Event{}, apperr.Internal("transition event status", err)
	}
	return ev, nil
}

// StatusHistory returns the append-only transition log for an event.
func (s *Service) StatusHistory(ctx context.Context, eventID uuid.UUID) ([]models.StatusHistoryEntry, error) {
	entries, err := s.store.ListStatusHistory(ctx, eventID)
	if err != nil {
		return nil, apperr.Internal("list status history", err)
	}
	return entries, nil
}

// PublishConfig returns the workspace publish configuration, materializing
// defaults for workspaces that never edited theirs.
func (s *Service) PublishConfig(ctx context.Context, workspaceID uuid.UUID) (models.WorkspacePublishConfig, error) {
	cfg, err := s.store.GetPublishConfig(ctx, workspaceID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.WorkspacePublishConfig{}, apperr.NotFound("workspace %s not found", workspaceID)
		}
		return models.WorkspacePublishConfig{}, apperr.Internal("load workspace config", err)
	}
	return cfg, nil
}

// UpdatePublishConfig replaces the workspace publish configuration.
func (s *Service) UpdatePublishConfig(ctx context.Context, cfg models.WorkspacePublishConfig, actor string) (models.WorkspacePublishConfig, error) {
	if actor == "" {
		return models.WorkspacePublishConfig{}, apperr.Auth("updating publish configuration requires an authenticated caller")
	}
	updated, err := s.store.UpdatePublishConfig(ctx, cfg)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.WorkspacePublishConfig{}, apperr.NotFound("workspace %s not found", cfg.WorkspaceID)
		}
		return models.WorkspacePublishConfig{}, apperr.Internal("update workspace config", err)
	}
	return updated, nil
}

// LatestRequest returns the most recent publish request for an event.
func (s *Service) LatestRequest(ctx context.Context, eventID uuid.UUID) (models.PublishRequest, error) {
	req, err := s.store.LatestPublishRequestForEvent(ctx, eventID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.PublishRequest{}, apperr.NotFound("no publish request for event %s", eventID)
		}
		return models.PublishRequest{}, apperr.Internal("load latest publish request", err)
	}
	return req, nil
}

// ListRequests returns requests for the reviewer queue, ordered by priority
// (urgent first) then submission time.
func (s *Service) ListRequests(ctx context.Context, f store.RequestFilter) ([]models.PublishRequest, error) {
	reqs, err := s.store.ListPublishRequests(ctx, f)
	if err != nil {
		return nil, apperr.Internal("list publish requests", err)
	}
	return reqs, nil
}
