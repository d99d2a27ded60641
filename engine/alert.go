package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ftahirops/pna/config"
	"github.com/ftahirops/pna/model"
)

// SessionEvent is the payload delivered to every alert channel for one
// session_action call (spec.md §6's collaborator contract).
type SessionEvent struct {
	Kind   string `json:"kind"`
	IP     string `json:"ip"`
	Reason string `json:"reason"`
	TS     string `json:"ts"`
}

// Notifier is the session_action sink: a fire-and-forget fan-out to
// whichever alert channels are configured, plus the durable record of
// every event (Store) and its tail-able mirror (Recorder), when set.
type Notifier struct {
	cfg    config.AlertConfig
	client *http.Client
	logger zerolog.Logger

	store    *Store
	recorder *Recorder
}

// NewNotifier creates a notifier. Diagnostics are discarded until
// SetLogger is called.
func NewNotifier(cfg config.AlertConfig) *Notifier {
	return &Notifier{
		cfg: cfg,
		client: &http.Client{
			Timeout: 5 * time.Second,
		},
		logger: zerolog.Nop(),
	}
}

// SetLogger attaches the process logger used for delivery failures.
func (n *Notifier) SetLogger(l zerolog.Logger) { n.logger = l }

// SetStore attaches a durable alert store. Every SessionAction call is
// persisted in addition to being fanned out to the configured channels.
func (n *Notifier) SetStore(s *Store) { n.store = s }

// SetRecorder attaches a JSON-lines mirror of every SessionAction call.
func (n *Notifier) SetRecorder(r *Recorder) { n.recorder = r }

// Enabled returns true if any alert destination is configured.
func (n *Notifier) Enabled() bool {
	return n.cfg.Webhook != "" || n.cfg.Command != "" ||
		n.cfg.Email != "" || n.cfg.SlackWebhook != "" ||
		(n.cfg.TelegramBotToken != "" && n.cfg.TelegramChatID != "")
}

// SessionAction is the session_action collaborator: fire-and-forget,
// never blocks the calling dispatcher goroutine. ip is rendered as a
// dotted-quad string for every channel.
func (n *Notifier) SessionAction(kind model.AlertKind, ip uint32, reason string) {
	event := SessionEvent{
		Kind:   kind.String(),
		IP:     ipString(ip),
		Reason: reason,
		TS:     time.Now().Format(time.RFC3339),
	}

	if n.store != nil {
		go func() {
			if _, err := n.store.Record(event); err != nil {
				n.logger.Error().Err(err).Msg("store alert")
			}
		}()
	}
	if n.recorder != nil {
		go func() {
			if err := n.recorder.Write(event); err != nil {
				n.logger.Error().Err(err).Msg("record alert")
			}
		}()
	}

	if !n.Enabled() {
		return
	}
	go n.notify(kind.String(), event)
}

func ipString(ip uint32) string {
	return model.IPString(ip)
}

// Notify sends an arbitrary alert event asynchronously to the configured
// channels. SessionAction does not go through it, and Store/Recorder
// write failures are logged rather than sent here.
func (n *Notifier) Notify(event string, payload interface{}) {
	if !n.Enabled() {
		return
	}
	go n.notify(event, payload)
}

// sendEmail sends an email using the system mail command.
func (n *Notifier) sendEmail(subject, body string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	cmd := exec.CommandContext(ctx, "mail", "-s", subject, n.cfg.Email)
	cmd.Stdin = strings.NewReader(body)
	if err := cmd.Run(); err != nil {
		n.logger.Error().Err(err).Msg("email send error")
	}
}

// sendSlack posts a message to a Slack incoming webhook.
func (n *Notifier) sendSlack(text string) {
	if err := validateWebhookURL(n.cfg.SlackWebhook); err != nil {
		n.logger.Error().Err(err).Msg("slack webhook blocked")
		return
	}
	payload := map[string]string{"text": text}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	req, err := http.NewRequest("POST", n.cfg.SlackWebhook, bytes.NewReader(data))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.client.Do(req)
	if err != nil {
		n.logger.Error().Err(err).Msg("slack send error")
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}

// sendTelegram posts a message via the Telegram Bot API.
func (n *Notifier) sendTelegram(text string) {
	apiURL := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", n.cfg.TelegramBotToken)
	payload := map[string]string{
		"chat_id": n.cfg.TelegramChatID,
		"text":    text,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	req, err := http.NewRequest("POST", apiURL, bytes.NewReader(data))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.client.Do(req)
	if err != nil {
		n.logger.Error().Err(err).Msg("telegram send error")
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}

// validateWebhookURL checks that the webhook URL uses http/https and does
// not target localhost, link-local, private, or cloud metadata endpoints
// (an SSRF guard: alert config is user-supplied and must not be usable to
// reach internal services).
func validateWebhookURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid webhook URL: %w", err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("webhook URL must use http or https scheme, got %q", scheme)
	}
	host := strings.ToLower(u.Hostname())
	blockedHosts := []string{"169.254.169.254", "metadata.google.internal", "localhost", "127.0.0.1", "::1", "[::1]"}
	for _, b := range blockedHosts {
		if host == b {
			return fmt.Errorf("webhook URL host %q is blocked", host)
		}
	}
	if ip := net.ParseIP(host); ip != nil && (ip.IsPrivate() || ip.IsLoopback() || ip.IsLinkLocalUnicast()) {
		return fmt.Errorf("webhook URL host %q is a private address", host)
	}
	return nil
}

// sendWebhook posts JSON to the configured webhook URL.
func (n *Notifier) sendWebhook(event string, payload interface{}) {
	body := map[string]interface{}{
		"event":   event,
		"payload": payload,
		"ts":      time.Now().Format(time.RFC3339),
	}
	data, err := json.Marshal(body)
	if err != nil {
		n.logger.Error().Err(err).Msg("alert marshal error")
		return
	}
	if err := validateWebhookURL(n.cfg.Webhook); err != nil {
		n.logger.Error().Err(err).Msg("webhook blocked")
		return
	}
	req, err := http.NewRequest("POST", n.cfg.Webhook, bytes.NewReader(data))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.client.Do(req)
	if err != nil {
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}

// sendCommand runs the configured shell command with alert data.
func (n *Notifier) sendCommand(event string, payload interface{}) {
	data, _ := json.Marshal(map[string]interface{}{
		"event":   event,
		"payload": payload,
		"ts":      time.Now().Format(time.RFC3339),
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	cmd := exec.CommandContext(ctx, "sh", "-c", n.cfg.Command)
	cmd.Env = append(os.Environ(), "PNA_EVENT="+event, "PNA_PAYLOAD="+string(data))
	_ = cmd.Run()
}

func (n *Notifier) notify(event string, payload interface{}) {
	body := map[string]interface{}{
		"event":   event,
		"payload": payload,
		"ts":      time.Now().Format(time.RFC3339),
	}
	data, err := json.Marshal(body)
	if err != nil {
		n.logger.Error().Err(err).Msg("alert marshal error")
		return
	}

	if n.cfg.Webhook != "" {
		n.sendWebhook(event, payload)
	}
	if n.cfg.Command != "" {
		n.sendCommand(event, payload)
	}
	if n.cfg.Email != "" {
		n.sendEmail("pna: "+event, string(data))
	}
	if n.cfg.SlackWebhook != "" {
		n.sendSlack(fmt.Sprintf("*pna: %s*\n```\n%s\n```", event, string(data)))
	}
	if n.cfg.TelegramBotToken != "" && n.cfg.TelegramChatID != "" {
		n.sendTelegram(fmt.Sprintf("pna: %s\n%s", event, string(data)))
	}
}
