package utils

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

const mobizonDefaultURL = "https://api.mobizon.kz/service/message/sendsmsmessage"

type MobizonClient struct {
	APIKey  string
	Sender  string // опционально
	DryRun  bool
	BaseURL string
	HTTP    *http.Client
	Log     *zap.Logger
}

type SendSMSResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		MessageID string `json:"messageId"`
	} `json:"data"`
}

func NewMobizonClient(apiKey, sender string, dryRun bool, log *zap.Logger) *MobizonClient {
	return &MobizonClient{
		APIKey:  apiKey,
		Sender:  sender,
		DryRun:  dryRun,
		BaseURL: mobizonDefaultURL,
		HTTP:    http.DefaultClient,
		Log:     log,
	}
}

// SendSMS отправляет текст через Mobizon (или только логирует в dry-run).
func (c *MobizonClient) SendSMS(ctx context.Context, to, text string) (*SendSMSResponse, error) {
	if c.DryRun || c.APIKey == "" || c.APIKey == "dry-run" {
		c.Log.Info("mobizon dry-run", zap.String("to", to), zap.String("sender", c.Sender))
		return &SendSMSResponse{Code: 0}, nil
	}

	form := url.Values{
		"apiKey":    {c.APIKey},
		"recipient": {to},
		"text":      {text},
	}
	if c.Sender != "" {
		form.Set("from", c.Sender)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build SMS request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send SMS request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read SMS response: %w", err)
	}

	var result SendSMSResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("parse SMS response (status %d): %w", resp.StatusCode, err)
	}
	if result.Code != 0 {
		return nil, fmt.Errorf("mobizon returned error code %d: %s", result.Code, result.Message)
	}
	c.Log.Debug("mobizon sent", zap.String("to", to), zap.String("message_id", result.Data.MessageID))
	return &result, nil
}
