// Package discord delivers digest messages to Discord channels through
// the REST API. The surface is one endpoint (create message), so this is
// a hand-rolled client rather than a full SDK.
package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"issuecast/internal/channel"
	"issuecast/internal/digest"
)

const defaultBaseURL = "https://discord.com/api/v10"

type Sender struct {
	http    *http.Client
	baseURL string
	token   string
}

type Option func(*Sender)

// WithBaseURL overrides the API endpoint (tests).
func WithBaseURL(u string) Option {
	return func(s *Sender) { s.baseURL = strings.TrimRight(u, "/") }
}

func NewSender(botToken string, opts ...Option) *Sender {
	s := &Sender{
		http:    &http.Client{Timeout: 15 * time.Second},
		baseURL: defaultBaseURL,
		token:   strings.TrimSpace(botToken),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Sender) Kind() channel.Kind { return channel.KindDiscord }

// Format renders the combined digest as Discord markdown: the general track
// first, then the spotlight section. URLs are wrapped in <> to suppress
// link embeds.
func (s *Sender) Format(batch digest.Batch) string {
	var b strings.Builder
	b.WriteString("📌 Fresh open-source issues:\n\n")
	for _, is := range batch.ByCategory(digest.CategoryGeneral) {
		fmt.Fprintf(&b, "🔹 [%s](<%s>)\n", is.Title, is.URL)
	}
	if spot := batch.ByCategory(digest.CategorySpotlight); len(spot) > 0 {
		b.WriteString("\n📌 Spotlight picks:\n\n")
		for _, is := range spot {
			fmt.Fprintf(&b, "🔹 [%s](<%s>)\n", is.Title, is.URL)
		}
	}
	return b.String()
}

// Send posts the message to one channel. The destination ID is the Discord
// channel snowflake as stored in the registry.
func (s *Sender) Send(ctx context.Context, destinationID string, message string) error {
	payload, err := json.Marshal(struct {
		Content string `json:"content"`
	}{Content: message})
	if err != nil {
		return err
	}

	u := s.baseURL + "/channels/" + destinationID + "/messages"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bot "+s.token)

	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 == 2 {
		return nil
	}

	var apiErr struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&apiErr)

	// 403/404 mean the channel is gone or the bot lacks access; everything
	// else is a transport-level failure.
	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s (http=%d)", channel.ErrUnreachable, apiErr.Message, resp.StatusCode)
	}
	if apiErr.Message != "" {
		return fmt.Errorf("discord: %s (code=%d http=%d)", apiErr.Message, apiErr.Code, resp.StatusCode)
	}
	return fmt.Errorf("discord: http=%d", resp.StatusCode)
}
