package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/eventloom/publish-governance/internal/models"
)

// Stream states of a status_history row. The DB is the source of truth for
// export retries: rows stay pending/failed until the streamer marks them.
const (
	StreamPending    = "pending"
	StreamInProgress = "in_progress"
	StreamDone       = "streamed"
	StreamFailed     = "failed"
)

// FetchPendingHistoryForStreaming claims up to limit un-exported history rows
// using SELECT ... FOR UPDATE SKIP LOCKED so concurrent streamer instances
// never claim the same row twice.
func (s *PGStore) FetchPendingHistoryForStreaming(ctx context.Context, limit int) ([]*models.StatusHistoryEntry, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin claim tx: %w", err)
	}
	defer tx.Rollback()

	const query = `
		SELECT id, event_id, previous_status, new_status, changed_by, reason, changed_at, attempts
		FROM status_history
		WHERE stream_status IN ('pending', 'failed')
		ORDER BY changed_at ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`
	rows, err := tx.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("select pending history: %w", err)
	}

	var (
		entries []*models.StatusHistoryEntry
		ids     []uuid.UUID
	)
	for rows.Next() {
		var (
			e      models.StatusHistoryEntry
			reason sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.EventID, &e.PreviousStatus, &e.NewStatus, &e.ChangedBy, &reason, &e.ChangedAt, &e.Attempts); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan pending history: %w", err)
		}
		if reason.Valid {
			e.Reason = &reason.String
		}
		e.StreamStatus = StreamInProgress
		entries = append(entries, &e)
		ids = append(ids, e.ID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending history: %w", err)
	}

	if len(ids) > 0 {
		const claim = `
			UPDATE status_history
			SET stream_status = 'in_progress', attempts = attempts + 1
			WHERE id = ANY($1)
		`
		if _, err := tx.ExecContext(ctx, claim, pq.Array(ids)); err != nil {
			return nil, fmt.Errorf("claim pending history: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit claim tx: %w", err)
	}
	return entries, nil
}

// MarkHistoryStreamResult records the outcome of exporting one history row.
// On success the archived object key is persisted; on failure the row returns
// to the retryable failed state with the error message stored for operators.
func (s *PGStore) MarkHistoryStreamResult(ctx context.Context, id uuid.UUID, archivedKey sql.NullString, ok bool, errMsg sql.NullString) error {
	status := StreamDone
	if !ok {
		status = StreamFailed
	}
	const query = `
		UPDATE status_history
		SET stream_status = $2, archived_key = $3, last_error = $4
		WHERE id = $1
	`
	res, err := s.db.ExecContext(ctx, query, id, status, archivedKey, errMsg)
	if err != nil {
		return fmt.Errorf("mark stream result: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
