package moderation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPClassifier calls an external toxicity-scoring endpoint. The
// endpoint accepts {"text": ...} and answers {"score": 0..1,
// "category": ...}.
type HTTPClassifier struct {
	URL    string
	APIKey string
	Client *http.Client
}

func NewHTTPClassifier(url, apiKey string) *HTTPClassifier {
	return &HTTPClassifier{
		URL:    url,
		APIKey: apiKey,
		Client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *HTTPClassifier) Classify(ctx context.Context, text string) (Score, error) {
	payload, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return Score{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(payload))
	if err != nil {
		return Score{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return Score{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Score{}, fmt.Errorf("classifier returned status %d", resp.StatusCode)
	}

	var score Score
	if err := json.NewDecoder(resp.Body).Decode(&score); err != nil {
		return Score{}, fmt.Errorf("failed to decode classifier response: %w", err)
	}

	return score, nil
}
