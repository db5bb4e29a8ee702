package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"
)

// DefaultAPIBase is the Telegram Bot API endpoint.
const DefaultAPIBase = "https://api.telegram.org"

// MaxMessageLen is the Bot API limit for one message text.
const MaxMessageLen = 4096

// Message is one outgoing chat message. Text is HTML unless Plain is set.
type Message struct {
	Text  string
	Plain bool
}

// HTML wraps formatted report text.
func HTML(text string) Message { return Message{Text: text} }

// Notifier delivers report messages to the configured chat.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// NoopNotifier drops every message. Used when no chat is configured.
type NoopNotifier struct{}

func (NoopNotifier) Notify(context.Context, Message) error { return nil }

// TelegramNotifier sends messages via the Telegram Bot API.
type TelegramNotifier struct {
	BotToken   string
	ChatID     string
	APIBase    string
	MaxRetries int
	Client     *http.Client
}

// NewTelegramNotifier creates a notifier with optional proxy support.
func NewTelegramNotifier(botToken, chatID, proxyURL string) *TelegramNotifier {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &TelegramNotifier{
		BotToken:   botToken,
		ChatID:     chatID,
		APIBase:    DefaultAPIBase,
		MaxRetries: 3,
		Client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
	}
}

type sendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode,omitempty"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
	Parameters  *struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
}

// APIError is a failed Bot API call. RetryAfter is set when the API asks
// the client to slow down.
type APIError struct {
	Method      string
	Status      int
	Description string
	RetryAfter  time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram %s: status %d: %s", e.Method, e.Status, e.Description)
}

// Temporary reports whether the call may succeed when repeated.
func (e *APIError) Temporary() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

// call posts payload to a Bot API method and decodes the result into out.
func (t *TelegramNotifier) call(ctx context.Context, client *http.Client, method string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", method, err)
	}
	apiURL := fmt.Sprintf("%s/bot%s/%s", t.base(), t.BotToken, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", method, err)
	}

	var ar apiResponse
	if err := json.Unmarshal(raw, &ar); err != nil {
		if resp.StatusCode != http.StatusOK {
			return &APIError{Method: method, Status: resp.StatusCode, Description: strings.TrimSpace(string(raw))}
		}
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	if !ar.OK || resp.StatusCode != http.StatusOK {
		apiErr := &APIError{Method: method, Status: resp.StatusCode, Description: ar.Description}
		if ar.Parameters != nil && ar.Parameters.RetryAfter > 0 {
			apiErr.RetryAfter = time.Duration(ar.Parameters.RetryAfter) * time.Second
		}
		return apiErr
	}
	if out != nil && len(ar.Result) > 0 {
		if err := json.Unmarshal(ar.Result, out); err != nil {
			return fmt.Errorf("decode %s result: %w", method, err)
		}
	}
	return nil
}

// sendTo delivers msg to chatID, split into as many messages as the length
// limit requires.
func (t *TelegramNotifier) sendTo(ctx context.Context, chatID string, msg Message) error {
	parseMode := "HTML"
	if msg.Plain {
		parseMode = ""
	}
	for _, chunk := range SplitMessage(msg.Text, MaxMessageLen) {
		req := sendMessageRequest{ChatID: chatID, Text: chunk, ParseMode: parseMode, DisableWebPagePreview: true}
		if err := t.call(ctx, t.Client, "sendMessage", req, nil); err != nil {
			return err
		}
	}
	return nil
}

// Send sends msg to the configured chat once.
func (t *TelegramNotifier) Send(ctx context.Context, msg Message) error {
	return t.sendTo(ctx, t.ChatID, msg)
}

func (t *TelegramNotifier) base() string {
	if t.APIBase == "" {
		return DefaultAPIBase
	}
	return t.APIBase
}

// Notify sends msg with exponential backoff. Rate limits wait as long as the
// API asks; client errors other than 429 are not retried.
func (t *TelegramNotifier) Notify(ctx context.Context, msg Message) error {
	var lastErr error
	for i := 0; i <= t.MaxRetries; i++ {
		err := t.Send(ctx, msg)
		if err == nil {
			return nil
		}
		lastErr = err
		backoff := time.Duration(1<<uint(i)) * time.Second
		if apiErr, ok := err.(*APIError); ok {
			if !apiErr.Temporary() {
				return err
			}
			if apiErr.RetryAfter > 0 {
				backoff = apiErr.RetryAfter
			}
		}
		if i == t.MaxRetries {
			break
		}
		log.Printf("[WARN] Telegram send failed (attempt %d/%d): %v, retrying in %v", i+1, t.MaxRetries+1, err, backoff)
		if !sleepCtx(ctx, backoff) {
			return ctx.Err()
		}
	}
	return fmt.Errorf("all %d attempts failed: %w", t.MaxRetries+1, lastErr)
}

// SplitMessage cuts text into pieces of at most limit runes, preferring line
// breaks. A single longer line is cut mid-line.
func SplitMessage(text string, limit int) []string {
	if utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}
	var (
		out []string
		cur strings.Builder
		n   int
	)
	flush := func() {
		if chunk := strings.TrimRight(cur.String(), "\n"); chunk != "" {
			out = append(out, chunk)
		}
		cur.Reset()
		n = 0
	}
	for _, line := range strings.SplitAfter(text, "\n") {
		ln := utf8.RuneCountInString(line)
		if n+ln > limit {
			flush()
		}
		for ln > limit {
			r := []rune(line)
			out = append(out, string(r[:limit]))
			line = string(r[limit:])
			ln -= limit
		}
		cur.WriteString(line)
		n += ln
	}
	flush()
	return out
}

// sleepCtx waits for d and reports false if ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
