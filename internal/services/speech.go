package services

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/JaimeStill/lectern/pkg/formatting"
)

// VoiceParams selects the synthesized voice.
type VoiceParams struct {
	Voice        string `json:"voice,omitempty"`
	LanguageCode string `json:"languageCode,omitempty"`
}

// Speech is the speech synthesis engine client.
type Speech struct {
	*client
	maxInput int64
}

// NewSpeech creates the speech engine client.
func NewSpeech(cfg *ServiceConfig, hc *http.Client, logger *slog.Logger) *Speech {
	return &Speech{
		client:   newClient(ServiceSpeech, cfg, hc, logger),
		maxInput: cfg.MaxInputSizeBytes(),
	}
}

type synthesizeRequest struct {
	Text string `json:"text"`
	VoiceParams
}

type synthesizeResponse struct {
	AudioRef string `json:"audioRef"`
}

// Synthesize converts text to audio and returns the blob reference of the result.
func (s *Speech) Synthesize(ctx context.Context, text string, voice VoiceParams) (string, error) {
	if s.maxInput > 0 {
		if cut, truncated := formatting.Truncate(text, s.maxInput); truncated {
			s.logger.Warn(
				"input truncated",
				"size", formatting.FormatBytes(int64(len(text)), 1),
				"limit", formatting.FormatBytes(s.maxInput, 1),
			)
			text = cut
		}
	}

	var resp synthesizeResponse
	if err := s.post(ctx, "/synthesize", synthesizeRequest{Text: text, VoiceParams: voice}, &resp); err != nil {
		return "", err
	}
	return resp.AudioRef, nil
}
