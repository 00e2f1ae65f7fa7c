// Package archive ships relationship event history to S3 for offline
// analytics. Archival is strictly best-effort: callers log failures and
// move on, and an unset bucket disables the whole package.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/rapportlabs/rapport/internal/relationship"
	"github.com/rapportlabs/rapport/pkg/logging"
)

// S3API is the subset of the S3 client used by Store.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Record is one archived batch of events for a subject.
type Record struct {
	BatchID    string               `json:"batchId"`
	SubjectKey string               `json:"subjectKey"` // hashed, never the raw id
	Events     []relationship.Event `json:"events"`
	ArchivedAt time.Time            `json:"archivedAt"`
}

// ManifestEntry is one JSONL line in the monthly manifest.
type ManifestEntry struct {
	BatchID    string `json:"batchId"`
	S3Key      string `json:"s3Key"`
	SubjectKey string `json:"subjectKey"`
	EventCount int    `json:"eventCount"`
	ArchivedAt string `json:"archivedAt"`
}

// Store archives event batches to S3.
type Store struct {
	bucket   string
	s3Client S3API
	logger   *logging.Logger
}

// NewStore creates an archive Store. If bucket is empty, all operations are no-ops.
func NewStore(s3Client S3API, bucket string, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{bucket: bucket, s3Client: s3Client, logger: logger}
}

// Enabled returns true if archival is configured (bucket is set).
func (s *Store) Enabled() bool {
	return s != nil && s.bucket != "" && s.s3Client != nil
}

// ArchiveEvents writes the subject's events as one JSON batch and appends to
// the monthly manifest. Messages are PII-scrubbed and the subject id hashed
// before anything leaves the process.
func (s *Store) ArchiveEvents(ctx context.Context, subjectID string, events []relationship.Event) error {
	if !s.Enabled() || len(events) == 0 {
		return nil
	}

	scrubbed := make([]relationship.Event, len(events))
	copy(scrubbed, events)
	ScrubEvents(scrubbed)
	for i := range scrubbed {
		scrubbed[i].SubjectID = HashSubject(scrubbed[i].SubjectID)
	}

	now := time.Now().UTC()
	record := Record{
		BatchID:    uuid.NewString(),
		SubjectKey: HashSubject(subjectID),
		Events:     scrubbed,
		ArchivedAt: now,
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("archive: marshal record: %w", err)
	}

	s3Key := fmt.Sprintf("events/v1/by-date/%d/%02d/%02d/%s.json",
		now.Year(), now.Month(), now.Day(), record.BatchID)

	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s3Key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("archive: s3 put %s: %w", s3Key, err)
	}

	s.logger.Info("archived event batch to S3",
		"batch_id", record.BatchID,
		"s3_key", s3Key,
		"event_count", len(scrubbed),
	)

	entry := ManifestEntry{
		BatchID:    record.BatchID,
		S3Key:      s3Key,
		SubjectKey: record.SubjectKey,
		EventCount: len(scrubbed),
		ArchivedAt: now.Format(time.RFC3339),
	}
	if err := s.AppendManifest(ctx, entry); err != nil {
		// The batch is already archived; losing a manifest line is tolerable.
		s.logger.Warn("failed to append manifest", "error", err, "batch_id", record.BatchID)
	}

	return nil
}

// AppendManifest appends a JSONL line to the monthly manifest file.
// Uses read-modify-write since S3 doesn't support append.
func (s *Store) AppendManifest(ctx context.Context, entry ManifestEntry) error {
	if !s.Enabled() {
		return nil
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("archive: marshal manifest entry: %w", err)
	}

	now := time.Now().UTC()
	manifestKey := fmt.Sprintf("events/v1/manifests/%d-%02d.jsonl", now.Year(), now.Month())

	var existing []byte
	getResp, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(manifestKey),
	})
	if err != nil {
		s.logger.Debug("manifest not found, creating new", "key", manifestKey)
	} else {
		existing, _ = io.ReadAll(getResp.Body)
		getResp.Body.Close()
	}

	var buf bytes.Buffer
	if len(existing) > 0 {
		buf.Write(existing)
		if existing[len(existing)-1] != '\n' {
			buf.WriteByte('\n')
		}
	}
	buf.Write(line)
	buf.WriteByte('\n')

	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(manifestKey),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return fmt.Errorf("archive: s3 put manifest: %w", err)
	}

	return nil
}
