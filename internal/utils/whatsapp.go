package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

const whatsappDefaultURL = "https://graph.facebook.com/v19.0"

// WhatsAppClient sends text messages through the WhatsApp Cloud API.
type WhatsAppClient struct {
	Token         string
	PhoneNumberID string
	DryRun        bool
	BaseURL       string
	HTTP          *http.Client
	Log           *zap.Logger
}

func NewWhatsAppClient(token, phoneNumberID string, dryRun bool, log *zap.Logger) *WhatsAppClient {
	return &WhatsAppClient{
		Token:         token,
		PhoneNumberID: phoneNumberID,
		DryRun:        dryRun,
		BaseURL:       whatsappDefaultURL,
		HTTP:          http.DefaultClient,
		Log:           log,
	}
}

type waTextMessage struct {
	MessagingProduct string `json:"messaging_product"`
	To               string `json:"to"`
	Type             string `json:"type"`
	Text             struct {
		Body string `json:"body"`
	} `json:"text"`
}

type waError struct {
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

func (c *WhatsAppClient) SendText(ctx context.Context, to, text string) error {
	if c.DryRun || c.Token == "" {
		c.Log.Info("whatsapp dry-run", zap.String("to", to))
		return nil
	}

	msg := waTextMessage{
		MessagingProduct: "whatsapp",
		To:               strings.TrimPrefix(to, "+"),
		Type:             "text",
	}
	msg.Text.Body = text
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal whatsapp message: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s/messages", strings.TrimRight(c.BaseURL, "/"), c.PhoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build whatsapp request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.Token)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("send whatsapp request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		var we waError
		_ = json.Unmarshal(body, &we)
		if we.Error != nil {
			return fmt.Errorf("whatsapp status %d: %s", resp.StatusCode, we.Error.Message)
		}
		return fmt.Errorf("whatsapp status %d", resp.StatusCode)
	}
	return nil
}
