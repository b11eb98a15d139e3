// Package estimator turns rename evidence and account age into a bounded estimate.
package estimator

import (
	"time"

	"github.com/Xcertik-Realist/X-name-change-bot/internal/evidence"
	"github.com/Xcertik-Realist/X-name-change-bot/internal/lookup"
)

// Basis tells whether an estimate came from evidence or from the age prior.
type Basis string

const (
	BasisEvidence Basis = "evidence_based"
	BasisAge      Basis = "age_based"
)

const (
	daysPerRename = 180
	minBaseline   = 1
	maxBaseline   = 5
	hoursPerDay   = 24
)

// Estimate is the computed rename estimate for one account.
type Estimate struct {
	Count    int
	Handles  []string
	Basis    Basis
	Baseline int
	AgeDays  int
}

// Estimator computes estimates relative to a clock.
type Estimator struct {
	now func() time.Time
}

// New constructs an Estimator; a nil clock uses time.Now.
func New(now func() time.Time) *Estimator {
	if now == nil {
		now = time.Now
	}
	return &Estimator{now: now}
}

// AgeDays returns whole calendar days between createdAt and now, never negative.
func AgeDays(createdAt, now time.Time) int {
	if createdAt.IsZero() || !now.After(createdAt) {
		return 0
	}
	return int(now.Sub(createdAt) / (hoursPerDay * time.Hour))
}

// Baseline returns the age prior: one rename per six months, between 1 and 5.
func Baseline(ageDays int) int {
	baseline := ageDays / daysPerRename
	if baseline < minBaseline {
		return minBaseline
	}
	if baseline > maxBaseline {
		return maxBaseline
	}
	return baseline
}

// Estimate merges mention and reply evidence and falls back to the age prior.
func (e *Estimator) Estimate(profile lookup.AccountProfile, mentions, replies evidence.Set) Estimate {
	ageDays := AgeDays(profile.CreatedAt, e.now())
	baseline := Baseline(ageDays)
	merged := evidence.Merge(mentions, replies)

	if merged.Len() > 0 {
		return Estimate{
			Count:    merged.Len(),
			Handles:  merged.Handles(),
			Basis:    BasisEvidence,
			Baseline: baseline,
			AgeDays:  ageDays,
		}
	}
	return Estimate{
		Count:    baseline,
		Handles:  []string{},
		Basis:    BasisAge,
		Baseline: baseline,
		AgeDays:  ageDays,
	}
}
