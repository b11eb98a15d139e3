package scanner

import (
	"context"
	"strings"
	"time"

	"github.com/Xcertik-Realist/X-name-change-bot/internal/evidence"
	"github.com/Xcertik-Realist/X-name-change-bot/internal/lookup"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ReplyScanner walks an account's recent posts and searches each reply thread
// for "when you were @x" references. External calls are bounded by
// 1 + timelineLimit and run at most concurrency thread searches at once.
type ReplyScanner struct {
	source           lookup.Source
	timelineLimit    int
	repliesPerThread int
	concurrency      int
	timeout          time.Duration
}

// ReplyScannerOptions configures a ReplyScanner; zero values use defaults.
type ReplyScannerOptions struct {
	TimelineLimit    int
	RepliesPerThread int
	Concurrency      int
	CallTimeout      time.Duration
}

// NewReplyScanner constructs a ReplyScanner.
func NewReplyScanner(source lookup.Source, opts ReplyScannerOptions) *ReplyScanner {
	s := &ReplyScanner{
		source:           source,
		timelineLimit:    opts.TimelineLimit,
		repliesPerThread: opts.RepliesPerThread,
		concurrency:      opts.Concurrency,
		timeout:          opts.CallTimeout,
	}
	if s.timelineLimit <= 0 {
		s.timelineLimit = DefaultTimelineLimit
	}
	if s.repliesPerThread <= 0 {
		s.repliesPerThread = DefaultRepliesPerThread
	}
	if s.concurrency <= 0 {
		s.concurrency = DefaultReplyConcurrency
	}
	return s
}

// Scan returns the former handles referenced in replies to the account's posts.
func (s *ReplyScanner) Scan(ctx context.Context, accountID string) evidence.Set {
	var out evidence.Set
	if s == nil || s.source == nil {
		return out
	}
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return out
	}
	if ctx == nil {
		ctx = context.Background()
	}

	timelineCtx, cancel := withCallTimeout(ctx, s.timeout)
	posts, err := s.source.RecentPosts(timelineCtx, accountID, s.timelineLimit)
	cancel()
	if err != nil {
		logFailure("replies", err, log.Fields{"account_id": accountID})
		return out
	}
	if len(posts) > s.timelineLimit {
		posts = posts[:s.timelineLimit]
	}

	// Threads are collected by index so the result order follows the timeline.
	perThread := make([][]string, len(posts))
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, post := range posts {
		g.Go(func() error {
			perThread[i] = s.scanThread(ctx, post)
			return nil
		})
	}
	_ = g.Wait()

	for _, handles := range perThread {
		for _, candidate := range handles {
			out.Add(evidence.Item{Handle: candidate, Source: evidence.SourceReply})
		}
	}
	return out
}

func (s *ReplyScanner) scanThread(ctx context.Context, post lookup.Post) []string {
	conversationID := strings.TrimSpace(post.ConversationID)
	if conversationID == "" {
		conversationID = strings.TrimSpace(post.ID)
	}
	if conversationID == "" {
		return nil
	}

	callCtx, cancel := withCallTimeout(ctx, s.timeout)
	defer cancel()
	replies, err := s.source.Search(callCtx, "conversation_id:"+conversationID, s.repliesPerThread)
	if err != nil {
		logFailure("replies", err, log.Fields{"conversation_id": conversationID})
		return nil
	}
	var handles []string
	for _, reply := range replies {
		handles = append(handles, evidence.ExtractReplyHandles(reply.Text)...)
	}
	return handles
}
