// Package analysis runs the rename inference pipeline for one handle.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/Xcertik-Realist/X-name-change-bot/internal/estimator"
	"github.com/Xcertik-Realist/X-name-change-bot/internal/evidence"
	"github.com/Xcertik-Realist/X-name-change-bot/internal/lookup"
	"github.com/Xcertik-Realist/X-name-change-bot/internal/metrics"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrInvalidHandle is returned when the input cannot be a valid handle.
	ErrInvalidHandle = errors.New("analysis: invalid handle")
	// ErrAccountNotFound is returned when the handle does not resolve to an account.
	ErrAccountNotFound = errors.New("analysis: account not found")
	// ErrUpstreamRateLimited is returned when the account lookup hit the upstream quota.
	ErrUpstreamRateLimited = errors.New("analysis: upstream rate limited")
)

var handlePattern = regexp.MustCompile(`^[A-Za-z0-9_]{1,15}$`)

// NormalizeHandle trims input and strips every "@".
func NormalizeHandle(input string) (string, error) {
	handle := strings.TrimSpace(strings.ReplaceAll(input, "@", ""))
	if !handlePattern.MatchString(handle) {
		return "", fmt.Errorf("%w: %q", ErrInvalidHandle, input)
	}
	return handle, nil
}

// MentionScanner is the mention evidence collaborator.
type MentionScanner interface {
	Scan(ctx context.Context, handle string) evidence.Set
}

// ReplyScanner is the reply evidence collaborator.
type ReplyScanner interface {
	Scan(ctx context.Context, accountID string) evidence.Set
}

// Report is the outcome of one analysis.
type Report struct {
	Handle   string
	Profile  lookup.AccountProfile
	Estimate estimator.Estimate
}

// Analyzer resolves an account, runs both scanners and estimates its renames.
type Analyzer struct {
	source    lookup.Source
	mentions  MentionScanner
	replies   ReplyScanner
	estimator *estimator.Estimator
}

// NewAnalyzer constructs an Analyzer.
func NewAnalyzer(source lookup.Source, mentions MentionScanner, replies ReplyScanner, est *estimator.Estimator) *Analyzer {
	if est == nil {
		est = estimator.New(nil)
	}
	return &Analyzer{source: source, mentions: mentions, replies: replies, estimator: est}
}

// Analyze runs the pipeline for handle, which must already be normalized.
// Only account resolution can fail; scanner problems degrade the evidence.
func (a *Analyzer) Analyze(ctx context.Context, handle string) (Report, error) {
	if a == nil || a.source == nil {
		return Report{}, fmt.Errorf("analysis: analyzer not initialized")
	}
	profile, err := a.source.Resolve(ctx, handle)
	if err != nil {
		switch {
		case lookup.IsNotFound(err):
			return Report{}, fmt.Errorf("%w: %s", ErrAccountNotFound, handle)
		case lookup.IsRateLimited(err):
			return Report{}, fmt.Errorf("%w: %v", ErrUpstreamRateLimited, err)
		default:
			return Report{}, fmt.Errorf("analysis: resolve %s: %w", handle, err)
		}
	}

	var mentions, replies evidence.Set
	var g errgroup.Group
	if a.mentions != nil {
		g.Go(func() error {
			mentions = a.mentions.Scan(ctx, handle)
			return nil
		})
	}
	if a.replies != nil {
		g.Go(func() error {
			replies = a.replies.Scan(ctx, profile.ID)
			return nil
		})
	}
	_ = g.Wait()

	for _, item := range append(mentions.Items(), replies.Items()...) {
		log.WithFields(log.Fields{
			"handle":   handle,
			"previous": item.Handle,
			"source":   item.Source.String(),
		}).Debug("analysis: evidence found")
	}
	estimate := a.estimator.Estimate(profile, mentions, replies)
	metrics.ObserveEvidence(len(estimate.Handles))
	return Report{Handle: handle, Profile: profile, Estimate: estimate}, nil
}
