package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// maxErrorBody bounds how much of a rejection response is kept for logging.
const maxErrorBody = 64 << 10

// Config contains HTTP client configuration
type Config struct {
	Endpoint string
	Token    string
	Timeout  time.Duration
}

// HTTPClient implements Client against the TrainingPeaks file upload API.
// It is safe for concurrent use.
type HTTPClient struct {
	endpoint string
	token    string
	client   *http.Client
}

// NewHTTPClient creates a new upload client
func NewHTTPClient(cfg Config) (*HTTPClient, error) {
	endpoint, err := cleanEndpoint(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint: %w", err)
	}

	return &HTTPClient{
		endpoint: endpoint,
		token:    cfg.Token,
		client:   &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// cleanEndpoint validates the base URL and strips any trailing slash
func cleanEndpoint(endpoint string) (string, error) {
	if endpoint == "" {
		return "", fmt.Errorf("endpoint cannot be empty")
	}

	parsedURL, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("failed to parse endpoint URL: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return "", fmt.Errorf("endpoint must use http or https (got %q)", parsedURL.Scheme)
	}

	return strings.TrimRight(endpoint, "/"), nil
}

// URL returns the upload URL for an athlete
func (c *HTTPClient) URL(athleteID uint64) string {
	return fmt.Sprintf("%s/fitness/v6/athletes/%d/workouts/filedata", c.endpoint, athleteID)
}

type requestBody struct {
	WorkoutDay   *string `json:"workoutDay"`
	Data         string  `json:"data"`
	FileName     string  `json:"fileName"`
	UploadClient string  `json:"uploadClient"`
}

// Upload sends one payload. Transport errors and non-2xx responses are
// reported through the returned Outcome.
func (c *HTTPClient) Upload(ctx context.Context, payload Payload) Outcome {
	uploadClient := payload.UploadClient
	if uploadClient == "" {
		uploadClient = UploadClientTag
	}

	body, err := json.Marshal(requestBody{
		Data:         payload.EncodedContent,
		FileName:     payload.FileName,
		UploadClient: uploadClient,
	})
	if err != nil {
		return Failed(fmt.Errorf("failed to encode request body: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL(payload.AthleteID), bytes.NewReader(body))
	if err != nil {
		return Failed(fmt.Errorf("failed to build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return Failed(fmt.Errorf("%w: %w", ErrTransport, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return Uploaded(resp.StatusCode)
	}

	text, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return Failed(fmt.Errorf("%w: reading response body: %w", ErrTransport, err))
	}

	return Rejected(resp.StatusCode, string(text))
}
