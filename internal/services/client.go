// Package services provides HTTP/JSON clients for the extraction, formatting,
// translation, and speech engines.
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/JaimeStill/lectern/internal/faults"
)

// Collaborator names used in error reports.
const (
	ServiceExtraction = "extraction"
	ServiceFormatter  = "formatter"
	ServiceTranslator = "translator"
	ServiceSpeech     = "speech"
)

const maxErrorBody = 4096

// StatusError is a non-2xx response from a collaborator.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

type client struct {
	name    string
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

func newClient(name string, cfg *ServiceConfig, hc *http.Client, logger *slog.Logger) *client {
	if hc == nil {
		hc = &http.Client{Timeout: cfg.TimeoutDuration()}
	}
	return &client{
		name:    name,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    hc,
		logger:  logger.With("service", name),
	}
}

// post sends req as JSON to path and decodes the JSON response into resp.
// Failures are wrapped as ExternalServiceError for the client's collaborator.
func (c *client) post(ctx context.Context, path string, req, resp any) error {
	body, err := json.Marshal(req)
	if err != nil {
		return faults.External(c.name, fmt.Errorf("encode request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return faults.External(c.name, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	res, err := c.http.Do(httpReq)
	if err != nil {
		return faults.External(c.name, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
		return faults.External(c.name, &StatusError{StatusCode: res.StatusCode, Body: string(data)})
	}

	if err := json.NewDecoder(res.Body).Decode(resp); err != nil {
		return faults.External(c.name, fmt.Errorf("decode response: %w", err))
	}
	return nil
}
