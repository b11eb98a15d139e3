package bot

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"
)

const (
	pollTimeoutSeconds = 60
	webhookPathPrefix  = "/telegram/webhook/"
)

// TelegramOptions configures the Telegram transport.
type TelegramOptions struct {
	Token       string
	WebhookURL  string // Public base URL; empty selects long polling.
	Debug       bool
	APIEndpoint string // Defaults to tgbotapi.APIEndpoint.
	HTTPClient  tgbotapi.HTTPClient
}

// Telegram sends replies and receives updates through the Bot API.
type Telegram struct {
	api        *tgbotapi.BotAPI
	webhookURL string
	path       string
}

// NewTelegram connects to the Bot API and verifies the token.
func NewTelegram(opts TelegramOptions) (*Telegram, error) {
	token := strings.TrimSpace(opts.Token)
	if token == "" {
		return nil, fmt.Errorf("telegram: missing token")
	}
	endpoint := strings.TrimSpace(opts.APIEndpoint)
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	if errLogger := tgbotapi.SetLogger(log.StandardLogger()); errLogger != nil {
		log.WithError(errLogger).Debug("telegram: set logger failed")
	}
	api, err := tgbotapi.NewBotAPIWithClient(token, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("telegram: connect: %w", err)
	}
	api.Debug = opts.Debug

	sum := sha256.Sum256([]byte(token))
	return &Telegram{
		api:        api,
		webhookURL: strings.TrimRight(strings.TrimSpace(opts.WebhookURL), "/"),
		path:       webhookPathPrefix + hex.EncodeToString(sum[:8]),
	}, nil
}

// Username returns the bot's own username.
func (t *Telegram) Username() string {
	if t == nil || t.api == nil {
		return ""
	}
	return t.api.Self.UserName
}

// UseWebhook reports whether updates arrive through the HTTP webhook.
func (t *Telegram) UseWebhook() bool {
	return t != nil && t.webhookURL != ""
}

// WebhookPath is the HTTP path the webhook handler must be mounted on.
func (t *Telegram) WebhookPath() string {
	if t == nil {
		return ""
	}
	return t.path
}

// Send delivers a reply. Markdown that Telegram rejects is resent as plain text.
func (t *Telegram) Send(_ context.Context, reply Reply) error {
	if t == nil || t.api == nil {
		return fmt.Errorf("telegram: not initialized")
	}
	msg := tgbotapi.NewMessage(reply.ChatID, reply.Text)
	if reply.Markdown {
		msg.ParseMode = tgbotapi.ModeMarkdown
	}
	_, err := t.api.Send(msg)
	if err != nil && reply.Markdown && strings.Contains(err.Error(), "can't parse entities") {
		log.WithError(err).Debug("telegram: markdown rejected, resending as plain text")
		msg.ParseMode = ""
		_, err = t.api.Send(msg)
	}
	if err != nil {
		return fmt.Errorf("telegram: send: %w", err)
	}
	return nil
}

// Poll receives updates through long polling until ctx is done.
func (t *Telegram) Poll(ctx context.Context, dispatcher *Dispatcher) error {
	if t == nil || t.api == nil {
		return fmt.Errorf("telegram: not initialized")
	}
	if _, errDelete := t.api.Request(tgbotapi.DeleteWebhookConfig{}); errDelete != nil {
		log.WithError(errDelete).Warn("telegram: delete webhook failed")
	}
	u := tgbotapi.NewUpdate(0)
	u.Timeout = pollTimeoutSeconds
	updates := t.api.GetUpdatesChan(u)
	log.Infof("telegram: polling for updates as @%s", t.Username())

	for {
		select {
		case <-ctx.Done():
			t.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if msg, okMsg := messageFromUpdate(update); okMsg {
				dispatcher.Submit(msg)
			}
		}
	}
}

// RegisterWebhook points Telegram at the configured public URL.
func (t *Telegram) RegisterWebhook() error {
	if !t.UseWebhook() {
		return fmt.Errorf("telegram: webhook url not configured")
	}
	wh, err := tgbotapi.NewWebhook(t.webhookURL + t.path)
	if err != nil {
		return fmt.Errorf("telegram: build webhook: %w", err)
	}
	if _, errRequest := t.api.Request(wh); errRequest != nil {
		return fmt.Errorf("telegram: set webhook: %w", errRequest)
	}
	log.Infof("telegram: webhook registered for @%s", t.Username())
	return nil
}

// WebhookHandler accepts updates pushed by Telegram.
func (t *Telegram) WebhookHandler(dispatcher *Dispatcher) gin.HandlerFunc {
	return func(c *gin.Context) {
		update, err := t.api.HandleUpdate(c.Request)
		if err != nil {
			log.WithError(err).Warn("telegram: decode webhook update failed")
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid update"})
			return
		}
		if msg, ok := messageFromUpdate(*update); ok {
			dispatcher.Submit(msg)
		}
		c.Status(http.StatusOK)
	}
}

func messageFromUpdate(update tgbotapi.Update) (Message, bool) {
	if update.Message == nil || update.Message.From == nil || update.Message.Chat == nil {
		return Message{}, false
	}
	text := strings.TrimSpace(update.Message.Text)
	if text == "" {
		return Message{}, false
	}
	return Message{
		Identity: update.Message.From.ID,
		ChatID:   update.Message.Chat.ID,
		Text:     text,
	}, true
}
