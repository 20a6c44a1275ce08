package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrMissingMessageID means the provider accepted the request but returned
// no delivery identifier; the send is treated as not-yet-confirmed.
var ErrMissingMessageID = errors.New("webhook response missing messageId")

// StatusError is returned for responses outside [200, 300) so callers can
// attach the code to their own failure reporting.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("webhook non-2xx status: %d body=%q", e.Code, e.Body)
}

type WebhookClient struct {
	url     string
	authKey string
	client  *http.Client
}

func NewWebhookClient(url, authKey string) *WebhookClient {
	return &WebhookClient{
		url:     url,
		authKey: authKey,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type sendRequest struct {
	Content string `json:"content"`
	To      string `json:"to"`
}

type sendResponse struct {
	MessageID string `json:"messageId"`
}

// Send posts the message body to the webhook and returns the provider's
// delivery identifier. Success is any 2xx status with a non-empty messageId.
func (c *WebhookClient) Send(ctx context.Context, to, content string) (string, error) {
	reqBody, err := json.Marshal(sendRequest{
		Content: content,
		To:      to,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(reqBody))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.authKey != "" {
		req.Header.Set("x-auth-key", c.authKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &StatusError{Code: resp.StatusCode, Body: string(body)}
	}

	var sr sendResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return "", fmt.Errorf("%w: undecodable body=%q", ErrMissingMessageID, string(body))
	}
	if sr.MessageID == "" {
		return "", fmt.Errorf("%w: body=%q", ErrMissingMessageID, string(body))
	}

	return sr.MessageID, nil
}
