package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// EmailSender delivers an HTML email.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, html string) error
}

const brevoAPIURL = "https://api.brevo.com/v3/smtp/email"

// Brevo sends transactional mail through the Brevo API.
type Brevo struct {
	apiKey     string
	fromEmail  string
	fromName   string
	baseURL    string
	httpClient *http.Client
}

func NewBrevo(apiKey, fromEmail, fromName string) *Brevo {
	return &Brevo{
		apiKey:     apiKey,
		fromEmail:  fromEmail,
		fromName:   fromName,
		baseURL:    brevoAPIURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (b *Brevo) WithBaseURL(u string) *Brevo {
	b.baseURL = u
	return b
}

type brevoRequest struct {
	Sender      map[string]string   `json:"sender"`
	To          []map[string]string `json:"to"`
	Subject     string              `json:"subject"`
	HTMLContent string              `json:"htmlContent"`
}

func (b *Brevo) SendEmail(ctx context.Context, to, subject, html string) error {
	if to == "" || subject == "" || html == "" {
		return errors.New("to, subject and html content cannot be empty")
	}
	body, err := json.Marshal(brevoRequest{
		Sender:      map[string]string{"email": b.fromEmail, "name": b.fromName},
		To:          []map[string]string{{"email": to}},
		Subject:     subject,
		HTMLContent: html,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal email request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create email request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("api-key", b.apiKey)

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send email request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return fmt.Errorf("email API returned status %d: %s", resp.StatusCode, string(raw))
	}
	return nil
}

// LogEmail writes emails to the log instead of sending them.
type LogEmail struct {
	Log *zap.Logger
}

func (l LogEmail) SendEmail(_ context.Context, to, subject, _ string) error {
	l.Log.Info("email not sent (no provider configured)", zap.String("to", to), zap.String("subject", subject))
	return nil
}
