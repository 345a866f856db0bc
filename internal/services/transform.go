package services

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/JaimeStill/lectern/pkg/formatting"
)

// TransformParams carries per-call options for a text transformation.
type TransformParams struct {
	TargetLanguage string `json:"targetLanguage,omitempty"`
}

// Transformer is a text-to-text engine client used for formatting and translation.
// Input above the configured size is truncated before sending.
type Transformer struct {
	*client
	maxInput int64
}

// NewFormatter creates the formatting engine client.
func NewFormatter(cfg *ServiceConfig, hc *http.Client, logger *slog.Logger) *Transformer {
	return &Transformer{
		client:   newClient(ServiceFormatter, cfg, hc, logger),
		maxInput: cfg.MaxInputSizeBytes(),
	}
}

// NewTranslator creates the translation engine client.
func NewTranslator(cfg *ServiceConfig, hc *http.Client, logger *slog.Logger) *Transformer {
	return &Transformer{
		client:   newClient(ServiceTranslator, cfg, hc, logger),
		maxInput: cfg.MaxInputSizeBytes(),
	}
}

type transformRequest struct {
	Text string `json:"text"`
	TransformParams
}

type transformResponse struct {
	Text string `json:"text"`
}

// Transform sends text to the engine and returns the transformed text.
func (t *Transformer) Transform(ctx context.Context, text string, params TransformParams) (string, error) {
	if t.maxInput > 0 {
		if cut, truncated := formatting.Truncate(text, t.maxInput); truncated {
			t.logger.Warn(
				"input truncated",
				"size", formatting.FormatBytes(int64(len(text)), 1),
				"limit", formatting.FormatBytes(t.maxInput, 1),
			)
			text = cut
		}
	}

	var resp transformResponse
	if err := t.post(ctx, "/transform", transformRequest{Text: text, TransformParams: params}, &resp); err != nil {
		return "", err
	}
	return resp.Text, nil
}
