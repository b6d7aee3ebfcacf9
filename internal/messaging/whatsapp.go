package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	appconfig "github.com/luminix/crm/internal/config"
)

// WhatsAppSender sends messages through an external WhatsApp gateway's
// HTTP API.
type WhatsAppSender struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewWhatsAppSender(cfg appconfig.WhatsAppConfig) *WhatsAppSender {
	return &WhatsAppSender{
		baseURL: cfg.BaseURL,
		token:   cfg.Token,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type whatsappRequest struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

type whatsappResponse struct {
	ID string `json:"id"`
}

// Send delivers a single message through the gateway and returns the
// gateway's message id.
func (s *WhatsAppSender) Send(ctx context.Context, destination, text string) (string, error) {
	if s.token == "" {
		return "", fmt.Errorf("WhatsApp gateway token not configured")
	}

	payload, _ := json.Marshal(whatsappRequest{Phone: destination, Message: text})
	req, err := http.NewRequestWithContext(ctx, "POST", s.baseURL+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.token)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("gateway error %d: %s", resp.StatusCode, string(body))
	}

	var out whatsappResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return out.ID, nil
}
