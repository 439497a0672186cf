package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPSender posts to a transactional email REST API
// (POST {api}/emails, bearer auth, {"id": ...} back).
type HTTPSender struct {
	APIURL string
	APIKey string
	client *http.Client
}

func NewHTTPSender(apiURL, apiKey string) *HTTPSender {
	return &HTTPSender{
		APIURL: strings.TrimRight(apiURL, "/"),
		APIKey: apiKey,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

type sendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Text    string   `json:"text"`
}

type sendResponse struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

func (s *HTTPSender) Send(ctx context.Context, m Message) (string, error) {
	payload, err := json.Marshal(sendRequest{From: m.from(), To: []string{m.To}, Subject: m.Subject, Text: m.Text})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.APIURL+"/emails", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	var out sendResponse
	_ = json.Unmarshal(body, &out)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := out.Message
		if msg == "" {
			msg = strings.TrimSpace(string(body))
		}
		return "", fmt.Errorf("delivery api status=%s: %s", resp.Status, msg)
	}
	if out.ID == "" {
		return "", fmt.Errorf("delivery api returned no id: %s", string(body))
	}
	return out.ID, nil
}
