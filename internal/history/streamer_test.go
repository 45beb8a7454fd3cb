package history

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"

	"github.com/eventloom/publish-governance/internal/models"
	"github.com/eventloom/publish-governance/internal/store"
)

// fakeProducer implements the minimal Producer interface for tests.
type fakeProducer struct {
	produceFunc func(ctx context.Context, key []byte, value []byte) (time.Time, error)
}

func (f *fakeProducer) Produce(ctx context.Context, key []byte, value []byte) (time.Time, error) {
	if f.produceFunc != nil {
		return f.produceFunc(ctx, key, value)
	}
	return time.Now().UTC(), nil
}

func (f *fakeProducer) Close() error { return nil }

// fakeArchiver implements Archiver for tests.
type fakeArchiver struct {
	archiveFunc func(ctx context.Context, entry *models.StatusHistoryEntry) (string, error)
}

func (f *fakeArchiver) ArchiveEntry(ctx context.Context, entry *models.StatusHistoryEntry) (string, error) {
	if f.archiveFunc != nil {
		return f.archiveFunc(ctx, entry)
	}
	return "status-history/" + entry.ID.String() + ".json", nil
}

func sampleEntry() *models.StatusHistoryEntry {
	return &models.StatusHistoryEntry{
		ID:             uuid.New(),
		EventID:        uuid.New(),
		PreviousStatus: models.EventStatusDraft,
		NewStatus:      models.EventStatusPublished,
		ChangedBy:      "reviewer-1",
		ChangedAt:      time.Now().UTC(),
		Attempts:       1,
	}
}

func TestProcessEntrySuccess(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	pstore := store.NewPGStore(db)
	entry := sampleEntry()

	var producedKey []byte
	prod := &fakeProducer{
		produceFunc: func(ctx context.Context, key []byte, value []byte) (time.Time, error) {
			producedKey = key
			return time.Now().UTC(), nil
		},
	}

	// Expect the success-path UPDATE executed by MarkHistoryStreamResult.
	mock.ExpectExec("UPDATE status_history").
		WillReturnResult(sqlmock.NewResult(0, 1))

	streamer := NewStreamer(pstore, prod, &fakeArchiver{}, StreamerConfig{
		BatchSize:      1,
		MaxConcurrency: 1,
		PollInterval:   time.Second,
	})

	if err := streamer.processEntry(context.Background(), entry); err != nil {
		t.Fatalf("processEntry: %v", err)
	}

	// Messages are keyed by event so per-event ordering survives partitioning.
	if string(producedKey) != entry.EventID.String() {
		t.Fatalf("expected key %s, got %s", entry.EventID, producedKey)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %s", err)
	}
}

func TestProcessEntryProduceFailureMarksFailed(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	pstore := store.NewPGStore(db)
	entry := sampleEntry()

	prod := &fakeProducer{
		produceFunc: func(ctx context.Context, key []byte, value []byte) (time.Time, error) {
			return time.Time{}, errors.New("broker unavailable")
		},
	}

	// Expect the failure-path UPDATE executed by MarkHistoryStreamResult.
	mock.ExpectExec("UPDATE status_history").
		WillReturnResult(sqlmock.NewResult(0, 1))

	streamer := NewStreamer(pstore, prod, &fakeArchiver{}, StreamerConfig{})

	if err := streamer.processEntry(context.Background(), entry); err == nil {
		t.Fatalf("expected produce error")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %s", err)
	}
}

func TestProcessEntryArchiveFailureMarksFailed(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	pstore := store.NewPGStore(db)
	entry := sampleEntry()

	arch := &fakeArchiver{
		archiveFunc: func(ctx context.Context, entry *models.StatusHistoryEntry) (string, error) {
			return "", errors.New("bucket unreachable")
		},
	}

	mock.ExpectExec("UPDATE status_history").
		WillReturnResult(sqlmock.NewResult(0, 1))

	streamer := NewStreamer(pstore, &fakeProducer{}, arch, StreamerConfig{})

	if err := streamer.processEntry(context.Background(), entry); err == nil {
		t.Fatalf("expected archive error")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %s", err)
	}
}

func TestEnvelopeFields(t *testing.T) {
	entry := sampleEntry()
	reason := "venue change"
	entry.Reason = &reason

	env := NewEnvelope(entry)
	if env.ID != entry.ID.String() || env.EventID != entry.EventID.String() {
		t.Fatalf("envelope ids mismatch: %+v", env)
	}
	if env.PreviousStatus != "draft" || env.NewStatus != "published" {
		t.Fatalf("envelope statuses mismatch: %+v", env)
	}
	if env.Reason == nil || *env.Reason != reason {
		t.Fatalf("envelope reason mismatch: %+v", env)
	}
}
