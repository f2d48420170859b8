package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/meujardineiro/backend/internal/config"
)

type plunkSendBody struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	From    string `json:"from,omitempty"`
	Reply   string `json:"reply,omitempty"`
}

// PlunkMailer sends through the Plunk HTTP API.
type PlunkMailer struct {
	apiKey  string
	apiURL  string
	from    string
	replyTo string
	client  *http.Client
}

func NewPlunkMailer(cfg config.MailConfig) (*PlunkMailer, error) {
	if cfg.PlunkAPIKey == "" {
		return nil, fmt.Errorf("plunk not configured: set MAIL_PLUNK_API_KEY")
	}
	url := cfg.PlunkAPIURL
	if url == "" {
		url = "https://api.useplunk.com/v1/send"
	}
	return &PlunkMailer{
		apiKey:  cfg.PlunkAPIKey,
		apiURL:  url,
		from:    cfg.From,
		replyTo: cfg.ReplyTo,
		client:  &http.Client{Timeout: 10 * time.Second},
	}, nil
}

func (m *PlunkMailer) Send(ctx context.Context, env EmailEnvelope) error {
	b, err := json.Marshal(plunkSendBody{
		To:      env.To,
		Subject: env.Subject,
		Body:    env.Body,
		From:    m.from,
		Reply:   m.replyTo,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.apiURL, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.apiKey)

	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if len(msg) > 0 {
			return fmt.Errorf("plunk send failed: status=%d body=%s", resp.StatusCode, msg)
		}
		return fmt.Errorf("plunk send failed: status=%d", resp.StatusCode)
	}
	return nil
}
