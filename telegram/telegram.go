// Package telegram sends operator alerts through the Telegram Bot API.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const DefaultAPIBase = "https://api.telegram.org"

var ErrNotConfigured = errors.New("telegram bot token or chat id not configured")

// Config identifies the bot and the chat alerts go to.
type Config struct {
	BotToken string
	ChatID   string
	APIBase  string
}

// Enabled reports whether both token and chat are set.
func (c Config) Enabled() bool {
	return c.BotToken != "" && c.ChatID != ""
}

// Notifier posts messages to one chat.
type Notifier struct {
	cfg    Config
	client *http.Client
}

func NewNotifier(cfg Config, client *http.Client) *Notifier {
	if cfg.APIBase == "" {
		cfg.APIBase = DefaultAPIBase
	}
	cfg.APIBase = strings.TrimRight(cfg.APIBase, "/")
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Notifier{cfg: cfg, client: client}
}

type sendMessageRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode,omitempty"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description,omitempty"`
}

// Notify sends a titled MarkdownV2 message.
func (n *Notifier) Notify(ctx context.Context, title, body string) error {
	if !n.cfg.Enabled() {
		return ErrNotConfigured
	}

	payload := sendMessageRequest{
		ChatID:    n.cfg.ChatID,
		Text:      fmt.Sprintf("*%s*\n\n%s", escapeMarkdown(title), escapeMarkdown(body)),
		ParseMode: "MarkdownV2",
	}
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal telegram message: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.cfg.APIBase, n.cfg.BotToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		// the token is part of the URL and must not end up in logs
		return fmt.Errorf("failed to call telegram: %s", strings.ReplaceAll(err.Error(), n.cfg.BotToken, "***"))
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	var out apiResponse
	_ = json.Unmarshal(respBody, &out)
	if resp.StatusCode != http.StatusOK || !out.OK {
		return fmt.Errorf("telegram returned status %d: %s", resp.StatusCode, out.Description)
	}
	return nil
}

// markdownEscaper covers every character MarkdownV2 reserves outside entities.
var markdownEscaper = func() *strings.Replacer {
	const reserved = "\\_*[]()~`>#+-=|{}.!"
	pairs := make([]string, 0, 2*len(reserved))
	for _, r := range reserved {
		pairs = append(pairs, string(r), "\\"+string(r))
	}
	return strings.NewReplacer(pairs...)
}()

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}
