// Package bot implements the Telegram conversation around the rename analyzer.
package bot

import (
	"context"
	"errors"
	"strings"

	"github.com/Xcertik-Realist/X-name-change-bot/internal/analysis"
	"github.com/Xcertik-Realist/X-name-change-bot/internal/metrics"
	"github.com/Xcertik-Realist/X-name-change-bot/internal/models"
	"github.com/Xcertik-Realist/X-name-change-bot/internal/ratelimit"
	"github.com/Xcertik-Realist/X-name-change-bot/internal/store"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const (
	commandStart  = "start"
	commandCancel = "cancel"
	commandStats  = "stats"
	commandHelp   = "help"
)

// Request outcomes reported to metrics.
const (
	outcomeEstimated     = "estimated"
	outcomeNotFound      = "not_found"
	outcomeQuotaExceeded = "quota_exceeded"
	outcomeUpstreamLimit = "upstream_rate_limited"
	outcomeInvalidHandle = "invalid_handle"
	outcomeError         = "error"
)

// Message is one inbound chat message.
type Message struct {
	Identity int64
	ChatID   int64
	Text     string
}

// Reply is one outbound chat message.
type Reply struct {
	ChatID   int64
	Text     string
	Markdown bool
}

// Sender delivers replies to the chat transport.
type Sender interface {
	Send(ctx context.Context, reply Reply) error
}

// Admitter gates how often an identity may run a lookup.
type Admitter interface {
	Allow(ctx context.Context, identity int64) (ratelimit.Result, error)
}

// Analyzer runs the rename pipeline for a normalized handle.
type Analyzer interface {
	Analyze(ctx context.Context, handle string) (analysis.Report, error)
}

// QueryLog persists completed lookups and aggregates them.
type QueryLog interface {
	Record(ctx context.Context, entry store.Entry) error
	Stats(ctx context.Context, identity int64) (store.Stats, error)
}

// Controller drives one conversation turn at a time per identity.
type Controller struct {
	sessions *Sessions
	admit    Admitter
	analyzer Analyzer
	queries  QueryLog
	sender   Sender
}

// NewController constructs a Controller.
func NewController(sessions *Sessions, admit Admitter, analyzer Analyzer, queries QueryLog, sender Sender) *Controller {
	if sessions == nil {
		sessions = NewSessions()
	}
	return &Controller{
		sessions: sessions,
		admit:    admit,
		analyzer: analyzer,
		queries:  queries,
		sender:   sender,
	}
}

// parseCommand returns the lower-cased command name for "/name[@bot] args".
func parseCommand(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", false
	}
	name := strings.TrimPrefix(strings.Fields(text)[0], "/")
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	return strings.ToLower(name), true
}

// IsCancel reports whether text is the /cancel command.
func IsCancel(text string) bool {
	name, ok := parseCommand(text)
	return ok && name == commandCancel
}

// Handle processes one message. Calls for the same identity must not overlap.
func (c *Controller) Handle(ctx context.Context, msg Message) {
	if c == nil {
		return
	}
	if name, ok := parseCommand(msg.Text); ok {
		switch name {
		case commandStart:
			c.sessions.Start(msg.Identity)
			c.reply(ctx, msg.ChatID, msgGreeting, false)
		case commandCancel:
			c.Cancel(ctx, msg)
		case commandStats:
			c.handleStats(ctx, msg)
		default:
			c.reply(ctx, msg.ChatID, msgHelp, false)
		}
		return
	}

	state, generation := c.sessions.State(msg.Identity)
	if state != StateAwaitingHandle {
		c.reply(ctx, msg.ChatID, msgRestart, false)
		return
	}
	c.handleLookup(ctx, msg, generation)
}

// Cancel terminates the identity's conversation. Lookups already running
// finish, but their results are not sent.
func (c *Controller) Cancel(ctx context.Context, msg Message) {
	if c == nil {
		return
	}
	c.sessions.Cancel(msg.Identity)
	c.reply(ctx, msg.ChatID, msgGoodbye, false)
}

func (c *Controller) handleStats(ctx context.Context, msg Message) {
	if c.queries == nil {
		c.reply(ctx, msg.ChatID, msgGenericError, false)
		return
	}
	stats, err := c.queries.Stats(ctx, msg.Identity)
	if err != nil {
		log.WithError(err).WithField("identity", msg.Identity).Error("bot: load stats failed")
		c.reply(ctx, msg.ChatID, msgGenericError, false)
		return
	}
	c.reply(ctx, msg.ChatID, renderStats(stats), true)
}

func (c *Controller) handleLookup(ctx context.Context, msg Message, generation uint64) {
	requestID := uuid.NewString()
	entry := log.WithFields(log.Fields{
		"request_id": requestID,
		"identity":   msg.Identity,
	})

	if c.admit != nil {
		result, errAllow := c.admit.Allow(ctx, msg.Identity)
		if errAllow != nil {
			entry.WithError(errAllow).Error("bot: admission check failed")
			metrics.ObserveRequest(outcomeError)
			c.reply(ctx, msg.ChatID, msgGenericError, false)
			return
		}
		if !result.Allowed {
			entry.WithField("count", result.Count).Info("bot: quota exceeded")
			metrics.ObserveRequest(outcomeQuotaExceeded)
			c.reply(ctx, msg.ChatID, msgQuotaExceeded, false)
			return
		}
	}

	handle, errHandle := analysis.NormalizeHandle(msg.Text)
	if errHandle != nil {
		entry.WithError(errHandle).Info("bot: rejected input")
		metrics.ObserveRequest(outcomeInvalidHandle)
		c.reply(ctx, msg.ChatID, msgGenericError, false)
		return
	}
	entry = entry.WithField("handle", handle)
	c.reply(ctx, msg.ChatID, progressMessage(handle), false)

	if c.analyzer == nil {
		metrics.ObserveRequest(outcomeError)
		c.reply(ctx, msg.ChatID, msgGenericError, false)
		return
	}
	report, errAnalyze := c.analyzer.Analyze(ctx, handle)
	switch {
	case errAnalyze == nil:
	case errors.Is(errAnalyze, analysis.ErrAccountNotFound):
		entry.Info("bot: user not found")
		metrics.ObserveRequest(outcomeNotFound)
		c.record(ctx, entry, store.Entry{
			RequestID:    requestID,
			Identity:     msg.Identity,
			TargetHandle: handle,
			Outcome:      models.QueryOutcomeNotFound,
			Summary:      summaryNotFound,
		})
		c.replyIfCurrent(ctx, msg, generation, notFoundMessage(handle), false)
		return
	case errors.Is(errAnalyze, analysis.ErrUpstreamRateLimited):
		entry.WithError(errAnalyze).Warn("bot: upstream rate limited")
		metrics.ObserveRequest(outcomeUpstreamLimit)
		c.replyIfCurrent(ctx, msg, generation, msgUpstreamRateLimited, false)
		return
	default:
		entry.WithError(errAnalyze).Error("bot: analysis failed")
		metrics.ObserveRequest(outcomeError)
		c.replyIfCurrent(ctx, msg, generation, msgGenericError, false)
		return
	}

	est := report.Estimate
	metrics.ObserveRequest(outcomeEstimated)
	entry.WithFields(log.Fields{
		"count": est.Count,
		"basis": est.Basis,
	}).Info("bot: estimate ready")
	c.record(ctx, entry, store.Entry{
		RequestID:      requestID,
		Identity:       msg.Identity,
		TargetHandle:   handle,
		Outcome:        models.QueryOutcomeEstimated,
		Summary:        estimateSummary(est.Count),
		Basis:          string(est.Basis),
		EstimatedCount: est.Count,
		Handles:        est.Handles,
	})
	if c.replyIfCurrent(ctx, msg, generation, renderReport(report), true) {
		c.reply(ctx, msg.ChatID, msgFollowUp, false)
	}
}

func (c *Controller) record(ctx context.Context, entry *log.Entry, row store.Entry) {
	if c.queries == nil {
		return
	}
	if errRecord := c.queries.Record(ctx, row); errRecord != nil {
		entry.WithError(errRecord).Warn("bot: record query failed")
	}
}

// replyIfCurrent sends text unless the conversation was cancelled since the
// lookup started.
func (c *Controller) replyIfCurrent(ctx context.Context, msg Message, generation uint64, text string, markdown bool) bool {
	if !c.sessions.Current(msg.Identity, generation) {
		log.WithField("identity", msg.Identity).Debug("bot: conversation cancelled, discarding result")
		return false
	}
	c.reply(ctx, msg.ChatID, text, markdown)
	return true
}

func (c *Controller) reply(ctx context.Context, chatID int64, text string, markdown bool) {
	if c.sender == nil {
		return
	}
	if errSend := c.sender.Send(ctx, Reply{ChatID: chatID, Text: text, Markdown: markdown}); errSend != nil {
		log.WithError(errSend).WithField("chat_id", chatID).Warn("bot: send reply failed")
	}
}
