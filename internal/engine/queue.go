package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

type queueClient interface {
	Send(ctx context.Context, body string) error
	Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]queueMessage, error)
	Delete(ctx context.Context, receiptHandle string) error
}

type queueMessage struct {
	ID            string
	Body          string
	ReceiptHandle string
}

type jobKind string

const (
	jobPatternScan   jobKind = "pattern_scan.v1"
	jobArchiveEvents jobKind = "archive_events.v1"
)

// sideJob is one fire-and-forget unit of background work spun off a turn.
type sideJob struct {
	ID        string  `json:"id"`
	Kind      jobKind `json:"kind"`
	SubjectID string  `json:"subjectId"`
}

func encodeJob(job sideJob) (string, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	body, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("engine: encode job: %w", err)
	}
	return string(body), nil
}
