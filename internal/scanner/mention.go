package scanner

import (
	"context"
	"strings"
	"time"

	"github.com/Xcertik-Realist/X-name-change-bot/internal/evidence"
	"github.com/Xcertik-Realist/X-name-change-bot/internal/lookup"
	log "github.com/sirupsen/logrus"
)

// MentionScanner searches posts addressed to a handle for "formerly @x" style references.
type MentionScanner struct {
	source  lookup.Source
	limit   int
	timeout time.Duration
}

// NewMentionScanner constructs a MentionScanner; non-positive values use defaults.
func NewMentionScanner(source lookup.Source, limit int, timeout time.Duration) *MentionScanner {
	if limit <= 0 {
		limit = DefaultMentionLimit
	}
	return &MentionScanner{source: source, limit: limit, timeout: timeout}
}

// Scan returns the former handles referenced in posts directed at handle.
func (s *MentionScanner) Scan(ctx context.Context, handle string) evidence.Set {
	var out evidence.Set
	if s == nil || s.source == nil {
		return out
	}
	handle = strings.TrimSpace(handle)
	if handle == "" {
		return out
	}

	callCtx, cancel := withCallTimeout(ctx, s.timeout)
	defer cancel()
	posts, err := s.source.Search(callCtx, "to:"+handle, s.limit)
	if err != nil {
		logFailure("mentions", err, log.Fields{"handle": handle})
		return out
	}
	for _, post := range posts {
		for _, candidate := range evidence.ExtractMentionHandles(post.Text) {
			out.Add(evidence.Item{Handle: candidate, Source: evidence.SourceMention})
		}
	}
	return out
}
