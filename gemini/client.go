package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"estate-agent/config"
	apperrors "estate-agent/errors"
	"estate-agent/web/types"

	"go.uber.org/zap"
)

// Client talks to the generateContent REST endpoint with the maps
// grounding tool enabled on every request.
type Client struct {
	cfg        *config.Config
	httpClient *http.Client
	logger     *zap.Logger
}

func New(cfg *config.Config, logger *zap.Logger) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.GeminiRequestTimeout},
		logger:     logger,
	}
}

// GenerateContent sends the conversation plus the fixed system prompt and
// returns the decoded response. The location hint, when present, is passed
// through as the retrieval config; it is never validated or transformed.
func (c *Client) GenerateContent(ctx context.Context, system string, contents []Content, location *types.LatLng) (*GenerateResponse, error) {
	reqBody := GenerateRequest{
		Contents: contents,
		SystemInstruction: &Content{
			Parts: []Part{{Text: system}},
		},
		Tools: []Tool{{GoogleMaps: &GoogleMaps{}}},
	}
	if location != nil {
		reqBody.ToolConfig = &ToolConfig{
			RetrievalConfig: &RetrievalConfig{
				LatLng: &LatLng{Latitude: location.Latitude, Longitude: location.Longitude},
			},
		}
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal generate request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		strings.TrimRight(c.cfg.GeminiBaseURL, "/"), c.cfg.GeminiModel, c.cfg.GeminiAPIKey)

	var resp *http.Response
	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
		if err != nil {
			return nil, fmt.Errorf("create generate request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		r, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			// Do not retry on context cancellation/deadline
			if ctx.Err() != nil {
				break
			}
			c.backoffSleep(attempt)
			continue
		}

		if r.StatusCode == http.StatusTooManyRequests || r.StatusCode == http.StatusServiceUnavailable {
			io.Copy(io.Discard, r.Body)
			r.Body.Close()
			lastErr = fmt.Errorf("provider status %s", r.Status)
			c.logger.Warn("Provider busy, retrying",
				zap.Int("status", r.StatusCode),
				zap.Int("attempt", attempt+1))
			c.backoffSleep(attempt)
			continue
		}

		resp = r
		break
	}
	if resp == nil {
		return nil, apperrors.WrapError(lastErr, "no response from provider")
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read generate response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.WrapErrorf(apperrors.ErrProviderCommunication,
			"provider status %s: %s", resp.Status, string(bodyBytes))
	}

	var gr GenerateResponse
	if err := json.Unmarshal(bodyBytes, &gr); err != nil {
		return nil, fmt.Errorf("decode generate response: %w", err)
	}
	if gr.Error != nil {
		return nil, apperrors.WrapErrorf(apperrors.ErrProviderCommunication,
			"provider error %s (%d): %s", gr.Error.Status, gr.Error.Code, gr.Error.Message)
	}
	if len(gr.Candidates) == 0 || len(gr.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("no candidates in provider response")
	}

	return &gr, nil
}

func (c *Client) backoffSleep(attempt int) {
	// Exponential backoff with configurable jitter and cap
	base := c.cfg.RetryDelaySeconds
	if base <= 0 {
		base = time.Second // config normalization should prevent this
	}
	d := base * time.Duration(1<<attempt)
	maxWait := c.cfg.BackoffMaxSeconds
	if maxWait > 0 && d > maxWait {
		d = maxWait
	}
	jitterRatio := c.cfg.BackoffJitterRatio
	if jitterRatio < 0 || jitterRatio > 1 {
		jitterRatio = 0.1
	}
	jitter := time.Duration(float64(d) * jitterRatio)
	time.Sleep(d - jitter + time.Duration(time.Now().UnixNano()%int64(2*jitter+1)))
}

// JoinParts concatenates the text parts of the first candidate.
func JoinParts(resp *GenerateResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	return strings.TrimSpace(sb.String())
}

// Chunks returns the grounding chunks of the first candidate, or nil when
// the response carries no grounding metadata.
func Chunks(resp *GenerateResponse) []GroundingChunk {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil
	}
	gm := resp.Candidates[0].GroundingMetadata
	if gm == nil {
		return nil
	}
	return gm.GroundingChunks
}
