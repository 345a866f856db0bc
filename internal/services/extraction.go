package services

import (
	"context"
	"log/slog"
	"net/http"
)

// Extraction is the text extraction engine client.
type Extraction struct {
	*client
}

// NewExtraction creates an extraction client. A nil hc uses a client with the configured timeout.
func NewExtraction(cfg *ServiceConfig, hc *http.Client, logger *slog.Logger) *Extraction {
	return &Extraction{client: newClient(ServiceExtraction, cfg, hc, logger)}
}

type documentRequest struct {
	DocumentRef string `json:"documentRef"`
}

type submitResponse struct {
	JobID string `json:"jobId"`
}

type extractResponse struct {
	Text string `json:"text"`
}

// Submit starts an asynchronous extraction job and returns its id.
// An accepted request may still return an empty id; callers decide how to treat it.
func (e *Extraction) Submit(ctx context.Context, documentRef string) (string, error) {
	var resp submitResponse
	if err := e.post(ctx, "/jobs", documentRequest{DocumentRef: documentRef}, &resp); err != nil {
		return "", err
	}
	e.logger.Info("extraction job submitted", "document_ref", documentRef, "job_id", resp.JobID)
	return resp.JobID, nil
}

// ExtractSync extracts text from a small document in a single call.
func (e *Extraction) ExtractSync(ctx context.Context, documentRef string) (string, error) {
	var resp extractResponse
	if err := e.post(ctx, "/extract", documentRequest{DocumentRef: documentRef}, &resp); err != nil {
		return "", err
	}
	return resp.Text, nil
}
