package history

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/eventloom/publish-governance/internal/models"
)

// Archiver uploads history envelopes to object storage.
type Archiver interface {
	// ArchiveEntry uploads the envelope for the given entry and returns the
	// object key it was stored under.
	ArchiveEntry(ctx context.Context, entry *models.StatusHistoryEntry) (string, error)
}

// S3Archiver writes history envelopes to S3 paths like:
//
//	s3://<bucket>/<prefix>/status-history/YYYY/MM/DD/<entryID>.json
type S3Archiver struct {
	bucket   string
	prefix   string
	client   *s3.Client
	uploader *manager.Uploader
}

// NewS3Archiver creates an S3Archiver. Region and credentials come from the
// environment (AWS_REGION, AWS_PROFILE, AWS_ACCESS_KEY_ID/SECRET etc.).
func NewS3Archiver(ctx context.Context, bucket string, prefix string) (*S3Archiver, error) {
	if bucket == "" {
		return nil, fmt.Errorf("bucket required")
	}
	cfg, err := awsConfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg)

	return &S3Archiver{
		bucket:   bucket,
		prefix:   prefix,
		client:   client,
		uploader: manager.NewUploader(client),
	}, nil
}

func (a *S3Archiver) ArchiveEntry(ctx context.Context, entry *models.StatusHistoryEntry) (string, error) {
	if entry == nil {
		return "", fmt.Errorf("nil entry")
	}

	body, err := json.Marshal(NewEnvelope(entry))
	if err != nil {
		return "", fmt.Errorf("marshal envelope: %w", err)
	}

	key := path.Join(a.prefix, "status-history",
		entry.ChangedAt.UTC().Format("2006/01/02"),
		entry.ID.String()+".json")

	_, err = a.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("upload history envelope: %w", err)
	}
	return key, nil
}
