package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

const defaultBaseURL = "http://localhost:8000"

// Client calls the embedding sidecar over HTTP.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient returns a client for the sidecar at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

type embedResponse struct {
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding"`
	Error     string    `json:"error"`
}

// Extract posts the image as a multipart form and returns the embedding.
// Detector failures are mapped to the sentinel errors so callers can
// surface them verbatim.
func (c *Client) Extract(ctx context.Context, image []byte) ([]float32, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", "image.jpg")
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return nil, fmt.Errorf("write image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embed", &buf)
	if err != nil {
		return nil, fmt.Errorf("build embed request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call embedding sidecar: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read embed response: %w", err)
	}

	var decoded embedResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("decode embed response (status %d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode != http.StatusOK {
		switch decoded.Error {
		case "no_face":
			return nil, ErrNoFaceDetected
		case "multiple_faces":
			return nil, ErrAmbiguousFace
		default:
			return nil, fmt.Errorf("embedding sidecar returned status %d: %s", resp.StatusCode, decoded.Error)
		}
	}

	if len(decoded.Embedding) == 0 || (decoded.Dim > 0 && len(decoded.Embedding) != decoded.Dim) {
		return nil, fmt.Errorf("embedding sidecar returned inconsistent vector: dim=%d len=%d", decoded.Dim, len(decoded.Embedding))
	}
	return decoded.Embedding, nil
}
