package callbacks

import (
	"context"
	"time"
)

// Submitter starts an external job for a document.
type Submitter interface {
	Submit(ctx context.Context, documentRef string) (string, error)
}

// Resumer continues a suspended orchestration once its job token has been consumed.
type Resumer interface {
	Resume(ctx context.Context, token Token, outcome Outcome) error
}

// Bridge is the correlation point between external jobs and suspended steps.
type Bridge interface {
	// Submit starts an external job, retrying transient failures with backoff.
	// An accepted submission without a job id is a ProcessingError.
	Submit(ctx context.Context, documentRef string) (string, error)
	// PersistToken stores the suspended step context under externalJobID.
	// Tokens are write-once.
	PersistToken(ctx context.Context, externalJobID, resumeToken string, backref Backref, ttl time.Duration) error
	// Resume consumes the token for externalJobID and resumes its orchestration.
	// Unknown or already consumed ids are a logged no-op.
	Resume(ctx context.Context, externalJobID string, outcome Outcome) error
	// Reap deletes tokens that expired before now.
	Reap(ctx context.Context, now time.Time) (int, error)
	// Bind sets the resumer invoked by Resume.
	Bind(r Resumer)
	// HandleSignal consumes an artifact-arrival envelope from the event bus.
	HandleSignal(ctx context.Context, payload []byte)
	// Handler returns the HTTP handler for completion callbacks.
	Handler(validator Validator) *Handler
}

// Validator checks an inbound envelope for a topic.
type Validator interface {
	Validate(topic string, payload []byte) error
}
