package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"github.com/JaimeStill/lectern/internal/callbacks"
	"github.com/JaimeStill/lectern/internal/executions"
	"github.com/JaimeStill/lectern/internal/records"
	"github.com/JaimeStill/lectern/internal/services"
	"github.com/JaimeStill/lectern/pkg/storage"
)

// Extractor is the text extraction engine.
type Extractor interface {
	ExtractSync(ctx context.Context, documentRef string) (string, error)
}

// Transformer is a text-to-text engine used for formatting and translation.
type Transformer interface {
	Transform(ctx context.Context, text string, params services.TransformParams) (string, error)
}

// Synthesizer is the speech engine.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, voice services.VoiceParams) (string, error)
}

// Suspender submits long-running jobs and persists the step context they resume.
type Suspender interface {
	Submit(ctx context.Context, documentRef string) (string, error)
	PersistToken(ctx context.Context, externalJobID, resumeToken string, backref callbacks.Backref, ttl time.Duration) error
}

// Runtime bundles the collaborators step handlers and the orchestrator require.
// It is constructed by higher-level composition code from Infrastructure and domain systems.
type Runtime struct {
	Extractor  Extractor
	Formatter  Transformer
	Translator Transformer
	Speech     Synthesizer
	Storage    storage.System
	Suspender  Suspender
	Records    records.Store
	Executions executions.System
	Logger     *slog.Logger
}

// Settings tune run behavior.
type Settings struct {
	ExecutionTimeout time.Duration
	TokenTTL         time.Duration
	MaxConcurrent    int64
	SyncPageLimit    int
	SyncSizeLimit    int64
	Voice            string
}
