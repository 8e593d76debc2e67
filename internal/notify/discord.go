// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// =============================================================================
// PAYLOAD
// =============================================================================

// EmbedColor is the blue used for conversation embeds.
const EmbedColor = 3447003

// Payload is the JSON body of a Discord webhook execution.
type Payload struct {
	Content  string  `json:"content,omitempty"`
	Username string  `json:"username,omitempty"`
	Embeds   []Embed `json:"embeds,omitempty"`
}

// Embed is a Discord rich embed.
type Embed struct {
	Title     string       `json:"title"`
	Color     int          `json:"color"`
	Fields    []EmbedField `json:"fields"`
	Timestamp string       `json:"timestamp"`
}

// EmbedField is a named value inside an embed.
type EmbedField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// =============================================================================
// DISCORD SINK
// =============================================================================

// DiscordConfig configures a DiscordSink.
type DiscordConfig struct {
	// URL is the full webhook URL. The URL is the only credential.
	URL string

	// ContentLimit bounds question and answer in the plain text content
	// (default 500).
	ContentLimit int

	// FieldLimit bounds question and answer in the embed fields (default 1000).
	FieldLimit int

	// Username overrides the webhook's display name when set.
	Username string

	// PerMinute paces requests (default 30, Discord's webhook limit).
	// Negative disables pacing.
	PerMinute int

	HTTPClient *http.Client
}

// DiscordSink posts exchanges to a Discord webhook.
type DiscordSink struct {
	config     DiscordConfig
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewDiscordSink validates cfg and creates a sink.
func NewDiscordSink(cfg DiscordConfig) (*DiscordSink, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid webhook url %q", cfg.URL)
	}
	if cfg.ContentLimit == 0 {
		cfg.ContentLimit = DefaultContentLimit
	}
	if cfg.FieldLimit == 0 {
		cfg.FieldLimit = DefaultFieldLimit
	}
	if cfg.PerMinute == 0 {
		cfg.PerMinute = 30
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.PerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.PerMinute)), 5)
	}

	return &DiscordSink{config: cfg, httpClient: client, limiter: limiter}, nil
}

// Payload builds the webhook body for ex.
func (s *DiscordSink) Payload(ex Exchange) Payload {
	content := fmt.Sprintf("**New Conversation**\n\n**Question:**\n%s\n\n**Answer:**\n%s",
		Truncate(ex.Question, s.config.ContentLimit),
		Truncate(ex.Answer, s.config.ContentLimit))

	ts := ex.CompletedAt
	if ts.IsZero() {
		ts = time.Now()
	}

	return Payload{
		Content:  content,
		Username: s.config.Username,
		Embeds: []Embed{{
			Title: "New Conversation",
			Color: EmbedColor,
			Fields: []EmbedField{
				{Name: "Question", Value: fieldValue(ex.Question, s.config.FieldLimit)},
				{Name: "Answer", Value: fieldValue(ex.Answer, s.config.FieldLimit)},
			},
			Timestamp: ts.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		}},
	}
}

// Discord rejects embed fields with an empty value.
func fieldValue(text string, limit int) string {
	if strings.TrimSpace(text) == "" {
		return "(empty)"
	}
	return Truncate(text, limit)
}

// Deliver posts ex as a conversation embed.
func (s *DiscordSink) Deliver(ctx context.Context, ex Exchange) error {
	return s.post(ctx, s.Payload(ex))
}

// SendText posts a plain text message, used to test the webhook.
func (s *DiscordSink) SendText(ctx context.Context, text string) error {
	return s.post(ctx, Payload{
		Content:  Truncate(text, 2000-len(TruncationMarker)),
		Username: s.config.Username,
	})
}

func (s *DiscordSink) post(ctx context.Context, payload Payload) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return &SinkDeliveryError{Cause: err}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return &SinkDeliveryError{Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.URL, bytes.NewReader(body))
	if err != nil {
		return &SinkDeliveryError{Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return &SinkDeliveryError{Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &SinkDeliveryError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
