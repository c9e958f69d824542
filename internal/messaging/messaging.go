package messaging

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	ExtractJobQueue = "extract_job_queue"
	RetryDelay      = 5 * time.Second
	MaxConnectRetry = 5
)

type Task interface {
	Type() string

	Payload() []byte

	Ack() error

	Nack() error

	Reject() error
}

type ExtractJobPayload struct {
	JobId uuid.UUID
}

type Publisher interface {
	PublishExtractJob(ctx context.Context, payload ExtractJobPayload) error

	Close()
}

type Reciever interface {
	Tasks() <-chan Task

	Close()
}
