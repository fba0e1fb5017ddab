package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"invoice-collector-be/pkg/resilience"
)

// DocServiceClient talks to the document service that does PDF text
// extraction and OCR. Failures come back as structured dependency
// errors so the retry engine can classify them.
type DocServiceClient struct {
	BaseURL string
	Client  *http.Client
}

func NewDocServiceClient(baseURL string) *DocServiceClient {
	return &DocServiceClient{
		BaseURL: baseURL,
		Client: &http.Client{
			// Kept under Telegram's ~60s webhook delivery window.
			Timeout: 45 * time.Second,
		},
	}
}

type textResponse struct {
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
}

// PdfText extracts the embedded text layer of a PDF.
func (c *DocServiceClient) PdfText(ctx context.Context, data []byte) (string, error) {
	return c.post(ctx, "pdf-text-service", "/v1/pdf/text", data)
}

// Ocr runs optical character recognition over an image or scanned PDF.
func (c *DocServiceClient) Ocr(ctx context.Context, data []byte) (string, error) {
	return c.post(ctx, "ocr-service", "/v1/ocr", data)
}

func (c *DocServiceClient) post(ctx context.Context, dependency, path string, data []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(data))
	if err != nil {
		return "", resilience.NewDependencyError(dependency, resilience.KindBadRequest, 0, err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.Client.Do(req)
	if err != nil {
		kind := resilience.KindNetwork
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			kind = resilience.KindTimeout
		}
		return "", resilience.NewDependencyError(dependency, kind, 0, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", resilience.NewDependencyError(dependency, resilience.KindNetwork, 0, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", resilience.NewDependencyError(dependency, resilience.KindUnknown, resp.StatusCode,
			fmt.Errorf("document service returned %s", resp.Status))
	}

	var parsed textResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", resilience.NewDependencyError(dependency, resilience.KindUnknown, 0,
			fmt.Errorf("malformed document service response: %w", err))
	}
	if parsed.Error != "" {
		return "", resilience.NewDependencyError(dependency, resilience.KindUnknown, 0,
			errors.New(parsed.Error))
	}
	return parsed.Text, nil
}
