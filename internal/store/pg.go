package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/eventloom/publish-governance/internal/models"
)

// Name of the partial unique index enforcing at most one pending request per
// event. Violations surface as ErrDuplicatePending.
const pendingRequestIndex = "uq_publish_requests_pending"

// PGStore is the Postgres-backed Store.
type PGStore struct {
	db *sql.DB
}

// NewPGStore constructs a Postgres-backed store.
func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("db ping: %w", err)
	}
	return nil
}

func (s *PGStore) GetEvent(ctx context.Context, id uuid.UUID) (models.Event, error) {
	const query = `
		SELECT id, workspace_id, name, description, start_date, end_date,
		       visibility, slug, branding, landing_page, status, created_at, updated_at
		FROM events
		WHERE id = $1
	`
	var (
		ev          models.Event
		start, end  sql.NullTime
		visibility  sql.NullString
		slug        sql.NullString
		branding    []byte
		landingPage []byte
	)
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&ev.ID, &ev.WorkspaceID, &ev.Name, &ev.Description, &start, &end,
		&visibility, &slug, &branding, &landingPage, &ev.Status, &ev.CreatedAt, &ev.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Event{}, ErrNotFound
		}
		return models.Event{}, fmt.Errorf("get event: %w", err)
	}
	if start.Valid {
		t := start.Time
		ev.StartDate = &t
	}
	if end.Valid {
		t := end.Time
		ev.EndDate = &t
	}
	ev.Visibility = visibility.String
	ev.Slug = slug.String
	if len(branding) > 0 {
		if err := json.Unmarshal(branding, &ev.Branding); err != nil {
			return models.Event{}, fmt.Errorf("decode branding: %w", err)
		}
	}
	if len(landingPage) > 0 && string(landingPage) != "null" {
		var doc models.LandingPageDoc
		if err := json.Unmarshal(landingPage, &doc); err != nil {
			return models.Event{}, fmt.Errorf("decode landing page: %w", err)
		}
		ev.LandingPage = &doc
	}
	return ev, nil
}

func (s *PGStore) CountTicketTiers(ctx context.Context, eventID uuid.UUID) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ticket_tiers WHERE event_id = $1`, eventID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count ticket tiers: %w", err)
	}
	return n, nil
}

func (s *PGStore) ListPromoCodes(ctx context.Context, eventID uuid.UUID) ([]models.PromoCode, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, code, active FROM promo_codes WHERE event_id = $1 ORDER BY code`, eventID)
	if err != nil {
		return nil, fmt.Errorf("list promo codes: %w", err)
	}
	defer rows.Close()

	var codes []models.PromoCode
	for rows.Next() {
		var c models.PromoCode
		if err := rows.Scan(&c.ID, &c.Code, &c.Active); err != nil {
			return nil, fmt.Errorf("scan promo code: %w", err)
		}
		codes = append(codes, c)
	}
	return codes, rows.Err()
}

// workspaceSettings is the shape of the settings JSONB column on workspaces.
type workspaceSettings struct {
	RequireEventPublishApproval bool                        `json:"requireEventPublishApproval"`
	PublishRequirements         *models.PublishRequirements `json:"publishRequirements,omitempty"`
}

func (s *PGStore) GetPublishConfig(ctx context.Context, workspaceID uuid.UUID) (models.WorkspacePublishConfig, error) {
	var (
		raw       []byte
		updatedAt time.Time
	)
	err := s.db.QueryRowContext(ctx, `SELECT settings, updated_at FROM workspaces WHERE id = $1`, workspaceID).
		Scan(&raw, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.WorkspacePublishConfig{}, ErrNotFound
		}
		return models.WorkspacePublishConfig{}, fmt.Errorf("get workspace settings: %w", err)
	}

	var settings workspaceSettings
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, &settings); err != nil {
			return models.WorkspacePublishConfig{}, fmt.Errorf("decode workspace settings: %w", err)
		}
	}

	cfg := models.DefaultPublishConfig(workspaceID)
	cfg.RequiresApproval = settings.RequireEventPublishApproval
	if settings.PublishRequirements != nil {
		cfg.Requirements = *settings.PublishRequirements
	}
	cfg.UpdatedAt = updatedAt
	return cfg, nil
}

func (s *PGStore) UpdatePublishConfig(ctx context.Context, cfg models.WorkspacePublishConfig) (models.WorkspacePublishConfig, error) {
	req := cfg.Requirements
	patch, err := json.Marshal(workspaceSettings{
		RequireEventPublishApproval: cfg.RequiresApproval,
		PublishRequirements:         &req,
	})
	if err != nil {
		return models.WorkspacePublishConfig{}, fmt.Errorf("encode workspace settings: %w", err)
	}

	const query = `
		UPDATE workspaces
		SET settings = COALESCE(settings, '{}'::jsonb) || $2::jsonb,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	if err := s.db.QueryRowContext(ctx, query, cfg.WorkspaceID, patch).Scan(&cfg.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.WorkspacePublishConfig{}, ErrNotFound
		}
		return models.WorkspacePublishConfig{}, fmt.Errorf("update workspace settings: %w", err)
	}
	return cfg, nil
}

func (s *PGStore) CreatePublishRequest(ctx context.Context, in PublishRequestInput) (models.PublishRequest, error) {
	if in.ID == uuid.Nil {
		in.ID = uuid.New()
	}
	snapshot, err := json.Marshal(in.Snapshot)
	if err != nil {
		return models.PublishRequest{}, fmt.Errorf("encode snapshot: %w", err)
	}

	const query = `
		INSERT INTO publish_requests (id, event_id, workspace_id, requested_by, status, priority, snapshot)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING requested_at
	`
	var requestedAt time.Time
	err = s.db.QueryRowContext(ctx, query,
		in.ID, in.EventID, in.WorkspaceID, in.RequestedBy, models.RequestPending, in.Priority, snapshot,
	).Scan(&requestedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" && pqErr.Constraint == pendingRequestIndex {
			return models.PublishRequest{}, ErrDuplicatePending
		}
		return models.PublishRequest{}, fmt.Errorf("insert publish request: %w", err)
	}

	return models.PublishRequest{
		ID:          in.ID,
		EventID:     in.EventID,
		WorkspaceID: in.WorkspaceID,
		RequestedBy: in.RequestedBy,
		Status:      models.RequestPending,
		Priority:    in.Priority,
		Snapshot:    in.Snapshot,
		RequestedAt: requestedAt,
	}, nil
}

const requestColumns = `id, event_id, workspace_id, requested_by, status, priority, snapshot,
       reviewer_id, review_notes, requested_at, reviewed_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRequest(row rowScanner) (models.PublishRequest, error) {
	var (
		r           models.PublishRequest
		snapshot    []byte
		reviewerID  sql.NullString
		reviewNotes sql.NullString
		reviewedAt  sql.NullTime
	)
	err := row.Scan(&r.ID, &r.EventID, &r.WorkspaceID, &r.RequestedBy, &r.Status, &r.Priority,
		&snapshot, &reviewerID, &reviewNotes, &r.RequestedAt, &reviewedAt)
	if err != nil {
		return models.PublishRequest{}, err
	}
	if len(snapshot) > 0 {
		if err := json.Unmarshal(snapshot, &r.Snapshot); err != nil {
			return models.PublishRequest{}, fmt.Errorf("decode snapshot: %w", err)
		}
	}
	if reviewerID.Valid {
		r.ReviewerID = &reviewerID.String
	}
	if reviewNotes.Valid {
		r.ReviewNotes = &reviewNotes.String
	}
	if reviewedAt.Valid {
		t := reviewedAt.Time
		r.ReviewedAt = &t
	}
	return r, nil
}

func (s *PGStore) GetPublishRequest(ctx context.Context, id uuid.UUID) (models.PublishRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM publish_requests WHERE id = $1`
	r, err := scanRequest(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.PublishRequest{}, ErrNotFound
		}
		return models.PublishRequest{}, fmt.Errorf("get publish request: %w", err)
	}
	return r, nil
}

func (s *PGStore) LatestPublishRequestForEvent(ctx context.Context, eventID uuid.UUID) (models.PublishRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM publish_requests WHERE event_id = $1 ORDER BY requested_at DESC LIMIT 1`
	r, err := scanRequest(s.db.QueryRowContext(ctx, query, eventID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.PublishRequest{}, ErrNotFound
		}
		return models.PublishRequest{}, fmt.Errorf("latest publish request: %w", err)
	}
	return r, nil
}

func (s *PGStore) ListPublishRequests(ctx context.Context, f RequestFilter) ([]models.PublishRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM publish_requests WHERE 1=1`
	args := []interface{}{}
	if f.Status != "" {
		args = append(args, f.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if f.WorkspaceID != uuid.Nil {
		args = append(args, f.WorkspaceID)
		query += fmt.Sprintf(" AND workspace_id = $%d", len(args))
	}
	query += `
		ORDER BY CASE priority
			WHEN 'urgent' THEN 3
			WHEN 'high' THEN 2
			WHEN 'medium' THEN 1
			ELSE 0
		END DESC, requested_at ASC`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list publish requests: %w", err)
	}
	defer rows.Close()

	var out []models.PublishRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan publish request: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ApprovePublishRequest marks the request approved and publishes its event in
// one transaction. The status='pending' guard in the UPDATE makes concurrent
// resolutions race safely at the row level.
func (s *PGStore) ApprovePublishRequest(ctx context.Context, in ResolutionInput) (models.PublishRequest, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.PublishRequest{}, fmt.Errorf("begin approve tx: %w", err)
	}
	defer tx.Rollback()

	query := `
		UPDATE publish_requests
		SET status = 'approved', reviewer_id = $2, review_notes = $3, reviewed_at = NOW()
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + requestColumns
	r, err := scanRequest(tx.QueryRowContext(ctx, query, in.RequestID, in.ReviewerID, nullable(in.Notes)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.PublishRequest{}, s.classifyMissingPending(ctx, in.RequestID)
		}
		return models.PublishRequest{}, fmt.Errorf("approve publish request: %w", err)
	}

	var prev models.EventStatus
	if err := tx.QueryRowContext(ctx, `SELECT status FROM events WHERE id = $1 FOR UPDATE`, r.EventID).Scan(&prev); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.PublishRequest{}, ErrNotFound
		}
		return models.PublishRequest{}, fmt.Errorf("lock event: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE events SET status = $2, updated_at = NOW() WHERE id = $1`,
		r.EventID, models.EventStatusPublished); err != nil {
		return models.PublishRequest{}, fmt.Errorf("publish event: %w", err)
	}
	if err := insertHistoryTx(ctx, tx, r.EventID, prev, models.EventStatusPublished, in.ReviewerID, nil); err != nil {
		return models.PublishRequest{}, err
	}

	if err := tx.Commit(); err != nil {
		return models.PublishRequest{}, fmt.Errorf("commit approve tx: %w", err)
	}
	return r, nil
}

func (s *PGStore) RejectPublishRequest(ctx context.Context, in ResolutionInput) (models.PublishRequest, error) {
	query := `
		UPDATE publish_requests
		SET status = 'rejected', reviewer_id = $2, review_notes = $3, reviewed_at = NOW()
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + requestColumns
	r, err := scanRequest(s.db.QueryRowContext(ctx, query, in.RequestID, in.ReviewerID, in.Notes))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.PublishRequest{}, s.classifyMissingPending(ctx, in.RequestID)
		}
		return models.PublishRequest{}, fmt.Errorf("reject publish request: %w", err)
	}
	return r, nil
}

func (s *PGStore) DeletePendingRequest(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM publish_requests WHERE id = $1 AND status = 'pending'`, id)
	if err != nil {
		return fmt.Errorf("delete publish request: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return s.classifyMissingPending(ctx, id)
	}
	return nil
}

// classifyMissingPending distinguishes "no such request" from "request exists
// but was already resolved" after a guarded write matched zero rows.
func (s *PGStore) classifyMissingPending(ctx context.Context, id uuid.UUID) error {
	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM publish_requests WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check publish request: %w", err)
	}
	if exists {
		return ErrNotPending
	}
	return ErrNotFound
}

func (s *PGStore) TransitionEventStatus(ctx context.Context, in TransitionInput) (models.Event, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Event{}, fmt.Errorf("begin transition tx: %w", err)
	}
	defer tx.Rollback()

	var prev models.EventStatus
	if err := tx.QueryRowContext(ctx, `SELECT status FROM events WHERE id = $1 FOR UPDATE`, in.EventID).Scan(&prev); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Event{}, ErrNotFound
		}
		return models.Event{}, fmt.Errorf("lock event: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE events SET status = $2, updated_at = NOW() WHERE id = $1`,
		in.EventID, in.NewStatus); err != nil {
		return models.Event{}, fmt.Errorf("update event status: %w", err)
	}
	if err := insertHistoryTx(ctx, tx, in.EventID, prev, in.NewStatus, in.ChangedBy, nil); err != nil {
		return models.Event{}, err
	}
	if in.Reason != nil {
		if err := insertHistoryTx(ctx, tx, in.EventID, prev, in.NewStatus, in.ChangedBy, in.Reason); err != nil {
			return models.Event{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return models.Event{}, fmt.Errorf("commit transition tx: %w", err)
	}

	return s.GetEvent(ctx, in.EventID)
}

func insertHistoryTx(ctx context.Context, tx *sql.Tx, eventID uuid.UUID, prev, next models.EventStatus, changedBy string, reason *string) error {
	const query = `
		INSERT INTO status_history (id, event_id, previous_status, new_status, changed_by, reason)
		VALUES ($1,$2,$3,$4,$5,$6)
	`
	if _, err := tx.ExecContext(ctx, query, uuid.New(), eventID, prev, next, changedBy, reason); err != nil {
		return fmt.Errorf("insert status history: %w", err)
	}
	return nil
}

func (s *PGStore) ListStatusHistory(ctx context.Context, eventID uuid.UUID) ([]models.StatusHistoryEntry, error) {
	const query = `
		SELECT id, event_id, previous_status, new_status, changed_by, reason, changed_at
		FROM status_history
		WHERE event_id = $1
		ORDER BY changed_at ASC, id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("list status history: %w", err)
	}
	defer rows.Close()

	var out []models.StatusHistoryEntry
	for rows.Next() {
		var (
			e      models.StatusHistoryEntry
			reason sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.EventID, &e.PreviousStatus, &e.NewStatus, &e.ChangedBy, &reason, &e.ChangedAt); err != nil {
			return nil, fmt.Errorf("scan status history: %w", err)
		}
		if reason.Valid {
			e.Reason = &reason.String
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
