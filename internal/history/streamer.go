package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/eventloom/publish-governance/internal/models"
	"github.com/eventloom/publish-governance/internal/store"
)

// Producer is the small subset of Kafka producer behavior the streamer needs.
type Producer interface {
	Produce(ctx context.Context, key []byte, value []byte) (producedAt time.Time, err error)
	Close() error
}

// Envelope is the wire form of one exported history entry.
type Envelope struct {
	ID             string  `json:"id"`
	EventID        string  `json:"eventId"`
	PreviousStatus string  `json:"previousStatus"`
	NewStatus      string  `json:"newStatus"`
	ChangedBy      string  `json:"changedBy"`
	Reason         *string `json:"reason,omitempty"`
	ChangedAt      string  `json:"changedAt"`
	Attempt        int     `json:"attempt"`
}

// NewEnvelope builds the export envelope for a history entry.
func NewEnvelope(e *models.StatusHistoryEntry) Envelope {
	return Envelope{
		ID:             e.ID.String(),
		EventID:        e.EventID.String(),
		PreviousStatus: string(e.PreviousStatus),
		NewStatus:      string(e.NewStatus),
		ChangedBy:      e.ChangedBy,
		Reason:         e.Reason,
		ChangedAt:      e.ChangedAt.UTC().Format(time.RFC3339Nano),
		Attempt:        e.Attempts,
	}
}

// StreamerConfig configures the durable DB-first streamer.
type StreamerConfig struct {
	// How many entries to claim per batch.
	BatchSize int

	// PollInterval when there is no work (or after a batch).
	PollInterval time.Duration

	// MaxConcurrency bounds concurrent processing of claimed entries.
	MaxConcurrency int
}

// Streamer claims un-exported status_history rows (FOR UPDATE SKIP LOCKED),
// produces an envelope per row to Kafka, archives it to S3, and marks the row
// streamed or failed. Failed rows are reclaimed on a later pass.
type Streamer struct {
	store    *store.PGStore
	producer Producer
	archiver Archiver
	cfg      StreamerConfig

	wg sync.WaitGroup
}

// NewStreamer constructs a streamer. Zero cfg fields get defaults.
func NewStreamer(st *store.PGStore, producer Producer, archiver Archiver, cfg StreamerConfig) *Streamer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 3 * time.Second
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 5
	}
	return &Streamer{
		store:    st,
		producer: producer,
		archiver: archiver,
		cfg:      cfg,
	}
}

// Run starts the streamer loop and blocks until ctx is cancelled.
func (s *Streamer) Run(ctx context.Context) error {
	log.Printf("[history.streamer] starting (batch=%d, concurrency=%d)", s.cfg.BatchSize, s.cfg.MaxConcurrency)
	defer log.Printf("[history.streamer] stopped")

	sem := make(chan struct{}, s.cfg.MaxConcurrency)

	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			if s.producer != nil {
				_ = s.producer.Close()
			}
			return ctx.Err()
		default:
		}

		entries, err := s.store.FetchPendingHistoryForStreaming(ctx, s.cfg.BatchSize)
		if err != nil {
			log.Printf("[history.streamer] fetch pending: %v", err)
			time.Sleep(s.cfg.PollInterval)
			continue
		}

		if len(entries) == 0 {
			time.Sleep(s.cfg.PollInterval)
			continue
		}

		for _, entry := range entries {
			sem <- struct{}{}
			s.wg.Add(1)
			go func(entry *models.StatusHistoryEntry) {
				defer func() {
					<-sem
					s.wg.Done()
				}()
				if err := s.processEntry(ctx, entry); err != nil {
					// processEntry already recorded the failure; just log.
					log.Printf("[history.streamer] process entry %s: %v", entry.ID, err)
				}
			}(entry)
		}

		// Drain the batch before claiming more, keeping per-event ordering
		// within a batch window.
		for i := 0; i < s.cfg.MaxConcurrency; i++ {
			sem <- struct{}{}
		}
		for i := 0; i < s.cfg.MaxConcurrency; i++ {
			<-sem
		}
	}
}

// processEntry performs the produce -> archive sequence for one entry and
// records the outcome via MarkHistoryStreamResult.
func (s *Streamer) processEntry(parentCtx context.Context, entry *models.StatusHistoryEntry) error {
	ctx, cancel := context.WithTimeout(parentCtx, 30*time.Second)
	defer cancel()

	value, err := json.Marshal(NewEnvelope(entry))
	if err != nil {
		return s.fail(parentCtx, entry, fmt.Errorf("marshal envelope: %w", err))
	}

	// Key by event so each event's transitions stay ordered per partition.
	producedAt, err := s.producer.Produce(ctx, []byte(entry.EventID.String()), value)
	if err != nil {
		return s.fail(parentCtx, entry, fmt.Errorf("kafka produce: %w", err))
	}

	key, err := s.archiver.ArchiveEntry(ctx, entry)
	if err != nil {
		return s.fail(parentCtx, entry, fmt.Errorf("s3 archive: %w", err))
	}

	archivedKey := sql.NullString{String: key, Valid: true}
	if err := s.store.MarkHistoryStreamResult(parentCtx, entry.ID, archivedKey, true, sql.NullString{}); err != nil {
		return fmt.Errorf("mark stream success: %w", err)
	}

	log.Printf("[history.streamer] entry %s exported: produced_at=%s key=%s",
		entry.ID, producedAt.Format(time.RFC3339Nano), key)
	return nil
}

func (s *Streamer) fail(ctx context.Context, entry *models.StatusHistoryEntry, cause error) error {
	errMsg := sql.NullString{String: cause.Error(), Valid: true}
	_ = s.store.MarkHistoryStreamResult(ctx, entry.ID, sql.NullString{}, false, errMsg)
	return cause
}
