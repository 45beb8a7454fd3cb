package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/eventloom/publish-governance/internal/models"
)

// MemoryStore provides an in-memory implementation useful for tests. Its state
// guards mirror the Postgres guards (partial unique index, pending-only
// updates) so service tests exercise the same semantics.
type MemoryStore struct {
	mu         sync.RWMutex
	events     map[uuid.UUID]models.Event
	workspaces map[uuid.UUID]models.WorkspacePublishConfig
	tierCounts map[uuid.UUID]int
	promoCodes map[uuid.UUID][]models.PromoCode
	requests   map[uuid.UUID]models.PublishRequest
	history    []models.StatusHistoryEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		events:     map[uuid.UUID]models.Event{},
		workspaces: map[uuid.UUID]models.WorkspacePublishConfig{},
		tierCounts: map[uuid.UUID]int{},
		promoCodes: map[uuid.UUID][]models.PromoCode{},
		requests:   map[uuid.UUID]models.PublishRequest{},
	}
}

// Seed helpers.

func (m *MemoryStore) PutEvent(ev models.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[ev.ID] = ev
}

func (m *MemoryStore) PutWorkspace(cfg models.WorkspacePublishConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.workspaces[cfg.WorkspaceID] = cfg
}

func (m *MemoryStore) SetTicketTierCount(eventID uuid.UUID, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tierCounts[eventID] = n
}

func (m *MemoryStore) SetPromoCodes(eventID uuid.UUID, codes []models.PromoCode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.promoCodes[eventID] = append([]models.PromoCode(nil), codes...)
}

func copySnapshot(s models.ChecklistSnapshot) models.ChecklistSnapshot {
	s.Items = append([]models.ChecklistItem(nil), s.Items...)
	return s
}

func (m *MemoryStore) GetEvent(ctx context.Context, id uuid.UUID) (models.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ev, ok := m.events[id]
	if !ok {
		return models.Event{}, ErrNotFound
	}
	return ev, nil
}

func (m *MemoryStore) CountTicketTiers(ctx context.Context, eventID uuid.UUID) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tierCounts[eventID], nil
}

func (m *MemoryStore) ListPromoCodes(ctx context.Context, eventID uuid.UUID) ([]models.PromoCode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.PromoCode(nil), m.promoCodes[eventID]...), nil
}

func (m *MemoryStore) GetPublishConfig(ctx context.Context, workspaceID uuid.UUID) (models.WorkspacePublishConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cfg, ok := m.workspaces[workspaceID]
	if !ok {
		return models.WorkspacePublishConfig{}, ErrNotFound
	}
	return cfg, nil
}

func (m *MemoryStore) UpdatePublishConfig(ctx context.Context, cfg models.WorkspacePublishConfig) (models.WorkspacePublishConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.workspaces[cfg.WorkspaceID]; !ok {
		return models.WorkspacePublishConfig{}, ErrNotFound
	}
	cfg.UpdatedAt = time.Now().UTC()
	m.workspaces[cfg.WorkspaceID] = cfg
	return cfg, nil
}

func (m *MemoryStore) CreatePublishRequest(ctx context.Context, in PublishRequestInput) (models.PublishRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.requests {
		if r.EventID == in.EventID && r.Status == models.RequestPending {
			return models.PublishRequest{}, ErrDuplicatePending
		}
	}
	if in.ID == uuid.Nil {
		in.ID = uuid.New()
	}
	req := models.PublishRequest{
		ID:          in.ID,
		EventID:     in.EventID,
		WorkspaceID: in.WorkspaceID,
		RequestedBy: in.RequestedBy,
		Status:      models.RequestPending,
		Priority:    in.Priority,
		Snapshot:    copySnapshot(in.Snapshot),
		RequestedAt: time.Now().UTC(),
	}
	m.requests[req.ID] = req
	return req, nil
}

func (m *MemoryStore) GetPublishRequest(ctx context.Context, id uuid.UUID) (models.PublishRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.requests[id]
	if !ok {
		return models.PublishRequest{}, ErrNotFound
	}
	r.Snapshot = copySnapshot(r.Snapshot)
	return r, nil
}

func (m *MemoryStore) LatestPublishRequestForEvent(ctx context.Context, eventID uuid.UUID) (models.PublishRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var (
		latest models.PublishRequest
		found  bool
	)
	for _, r := range m.requests {
		if r.EventID != eventID {
			continue
		}
		if !found || r.RequestedAt.After(latest.RequestedAt) {
			latest = r
			found = true
		}
	}
	if !found {
		return models.PublishRequest{}, ErrNotFound
	}
	latest.Snapshot = copySnapshot(latest.Snapshot)
	return latest, nil
}

func (m *MemoryStore) ListPublishRequests(ctx context.Context, f RequestFilter) ([]models.PublishRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.PublishRequest
	for _, r := range m.requests {
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		if f.WorkspaceID != uuid.Nil && r.WorkspaceID != f.WorkspaceID {
			continue
		}
		r.Snapshot = copySnapshot(r.Snapshot)
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		ri, rj := models.PriorityRank(out[i].Priority), models.PriorityRank(out[j].Priority)
		if ri != rj {
			return ri > rj
		}
		return out[i].RequestedAt.Before(out[j].RequestedAt)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *MemoryStore) ApprovePublishRequest(ctx context.Context, in ResolutionInput) (models.PublishRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[in.RequestID]
	if !ok {
		return models.PublishRequest{}, ErrNotFound
	}
	if r.Status != models.RequestPending {
		return models.PublishRequest{}, ErrNotPending
	}
	ev, ok := m.events[r.EventID]
	if !ok {
		return models.PublishRequest{}, ErrNotFound
	}

	now := time.Now().UTC()
	r.Status = models.RequestApproved
	r.ReviewerID = &in.ReviewerID
	if in.Notes != "" {
		notes := in.Notes
		r.ReviewNotes = &notes
	}
	r.ReviewedAt = &now
	m.requests[r.ID] = r

	prev := ev.Status
	ev.Status = models.EventStatusPublished
	ev.UpdatedAt = now
	m.events[ev.ID] = ev
	m.appendHistoryLocked(ev.ID, prev, models.EventStatusPublished, in.ReviewerID, nil)

	r.Snapshot = copySnapshot(r.Snapshot)
	return r, nil
}

func (m *MemoryStore) RejectPublishRequest(ctx context.Context, in ResolutionInput) (models.PublishRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[in.RequestID]
	if !ok {
		return models.PublishRequest{}, ErrNotFound
	}
	if r.Status != models.RequestPending {
		return models.PublishRequest{}, ErrNotPending
	}
	now := time.Now().UTC()
	notes := in.Notes
	r.Status = models.RequestRejected
	r.ReviewerID = &in.ReviewerID
	r.ReviewNotes = &notes
	r.ReviewedAt = &now
	m.requests[r.ID] = r
	r.Snapshot = copySnapshot(r.Snapshot)
	return r, nil
}

func (m *MemoryStore) DeletePendingRequest(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok {
		return ErrNotFound
	}
	if r.Status != models.RequestPending {
		return ErrNotPending
	}
	delete(m.requests, id)
	return nil
}

func (m *MemoryStore) TransitionEventStatus(ctx context.Context, in TransitionInput) (models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev, ok := m.events[in.EventID]
	if !ok {
		return models.Event{}, ErrNotFound
	}
	prev := ev.Status
	ev.Status = in.NewStatus
	ev.UpdatedAt = time.Now().UTC()
	m.events[ev.ID] = ev
	m.appendHistoryLocked(ev.ID, prev, in.NewStatus, in.ChangedBy, nil)
	if in.Reason != nil {
		m.appendHistoryLocked(ev.ID, prev, in.NewStatus, in.ChangedBy, in.Reason)
	}
	return ev, nil
}

func (m *MemoryStore) appendHistoryLocked(eventID uuid.UUID, prev, next models.EventStatus, changedBy string, reason *string) {
	m.history = append(m.history, models.StatusHistoryEntry{
		ID:             uuid.New(),
		EventID:        eventID,
		PreviousStatus: prev,
		NewStatus:      next,
		ChangedBy:      changedBy,
		Reason:         reason,
		ChangedAt:      time.Now().UTC(),
		StreamStatus:   StreamPending,
	})
}

func (m *MemoryStore) ListStatusHistory(ctx context.Context, eventID uuid.UUID) ([]models.StatusHistoryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.StatusHistoryEntry
	for _, e := range m.history {
		if e.EventID == eventID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *MemoryStore) Ping(ctx context.Context) error { return nil }
