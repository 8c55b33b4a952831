package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// SMSSender delivers a text message to a phone number.
type SMSSender interface {
	SendSMS(ctx context.Context, phone, message string) error
}

const fast2SMSURL = "https://www.fast2sms.com/dev/bulkV2"

// Fast2SMS sends through the Fast2SMS bulk API.
type Fast2SMS struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewFast2SMS(apiKey string) *Fast2SMS {
	return &Fast2SMS{
		apiKey:     apiKey,
		baseURL:    fast2SMSURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// WithBaseURL points the client at another endpoint, for tests.
func (f *Fast2SMS) WithBaseURL(u string) *Fast2SMS {
	f.baseURL = u
	return f
}

type fast2SMSRequest struct {
	Route    string `json:"route"`
	SenderID string `json:"sender_id"`
	Message  string `json:"message"`
	Language string `json:"language"`
	Flash    int    `json:"flash"`
	Numbers  string `json:"numbers"`
}

type fast2SMSResponse struct {
	Return  bool `json:"return"`
	Message any  `json:"message"`
}

func (f *Fast2SMS) SendSMS(ctx context.Context, phone, message string) error {
	body, err := json.Marshal(fast2SMSRequest{
		Route:    "v3",
		SenderID: "TXTIND",
		Message:  message,
		Language: "english",
		Numbers:  phone,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal SMS request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.baseURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create SMS request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", f.apiKey)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send SMS request: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("SMS API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	var out fast2SMSResponse
	if err := json.Unmarshal(raw, &out); err == nil && !out.Return {
		return fmt.Errorf("SMS API rejected message: %v", out.Message)
	}
	return nil
}

// LogSMS writes messages to the log instead of sending them.
type LogSMS struct {
	Log *zap.Logger
}

func (l LogSMS) SendSMS(_ context.Context, phone, message string) error {
	l.Log.Info("sms not sent (no provider configured)", zap.String("phone", phone), zap.Int("length", len(message)))
	return nil
}
