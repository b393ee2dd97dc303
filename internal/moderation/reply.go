package moderation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// FallbackReply is returned in place of an error when the reply
// generator is unreachable. Reply generation never surfaces a failure
// to the user.
const FallbackReply = "I'm having trouble connecting right now."

// ReplyGenerator produces the built-in assistant's answer to a user
// message.
type ReplyGenerator interface {
	Reply(ctx context.Context, userText, persona string) (string, error)
}

// HTTPReplyGenerator calls an external chat-completion endpoint.
type HTTPReplyGenerator struct {
	URL    string
	APIKey string
	Client *http.Client
}

func NewHTTPReplyGenerator(url, apiKey string) *HTTPReplyGenerator {
	return &HTTPReplyGenerator{
		URL:    url,
		APIKey: apiKey,
		Client: &http.Client{Timeout: 15 * time.Second},
	}
}

func (g *HTTPReplyGenerator) Reply(ctx context.Context, userText, persona string) (string, error) {
	payload, err := json.Marshal(map[string]string{
		"message": userText,
		"persona": persona,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.URL, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if g.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.APIKey)
	}

	resp, err := g.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("reply generator returned status %d", resp.StatusCode)
	}

	var body struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("failed to decode reply: %w", err)
	}
	if body.Text == "" {
		return "", fmt.Errorf("reply generator returned empty text")
	}

	return body.Text, nil
}
