package bot

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Xcertik-Realist/X-name-change-bot/internal/analysis"
	"github.com/Xcertik-Realist/X-name-change-bot/internal/estimator"
	"github.com/Xcertik-Realist/X-name-change-bot/internal/lookup"
	"github.com/Xcertik-Realist/X-name-change-bot/internal/models"
	"github.com/Xcertik-Realist/X-name-change-bot/internal/ratelimit"
	"github.com/Xcertik-Realist/X-name-change-bot/internal/store"
)

type fakeSender struct {
	mu      sync.Mutex
	replies []Reply
}

func (f *fakeSender) Send(_ context.Context, reply Reply) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, reply)
	return nil
}

func (f *fakeSender) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.replies))
	for _, reply := range f.replies {
		out = append(out, reply.Text)
	}
	return out
}

type fakeAdmitter struct {
	limiter *ratelimit.MemoryLimiter
	policy  ratelimit.Policy
	err     error
}

func (f *fakeAdmitter) Allow(ctx context.Context, identity int64) (ratelimit.Result, error) {
	if f.err != nil {
		return ratelimit.Result{}, f.err
	}
	return f.limiter.Allow(ctx, identity, f.policy, time.Now())
}

type fakeAnalyzer struct {
	analyze func(ctx context.Context, handle string) (analysis.Report, error)
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, handle string) (analysis.Report, error) {
	return f.analyze(ctx, handle)
}

type fakeQueryLog struct {
	mu      sync.Mutex
	entries []store.Entry
	stats   store.Stats
}

func (f *fakeQueryLog) Record(_ context.Context, entry store.Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeQueryLog) Stats(context.Context, int64) (store.Stats, error) {
	return f.stats, nil
}

func (f *fakeQueryLog) recorded() []store.Entry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]store.Entry(nil), f.entries...)
}

func evidenceReport(handle string, handles ...string) analysis.Report {
	return analysis.Report{
		Handle: handle,
		Profile: lookup.AccountProfile{
			ID:          "42",
			Handle:      handle,
			DisplayName: "Alice",
			CreatedAt:   time.Date(2020, time.March, 5, 0, 0, 0, 0, time.UTC),
		},
		Estimate: estimator.Estimate{
			Count:   len(handles),
			Handles: handles,
			Basis:   estimator.BasisEvidence,
			AgeDays: 900,
		},
	}
}

func newTestController(analyze func(context.Context, string) (analysis.Report, error)) (*Controller, *fakeSender, *fakeQueryLog) {
	sender := &fakeSender{}
	queries := &fakeQueryLog{}
	admit := &fakeAdmitter{limiter: ratelimit.NewMemoryLimiter(), policy: ratelimit.Policy{MaxPerWindow: 10, Window: time.Hour}}
	return NewController(NewSessions(), admit, &fakeAnalyzer{analyze: analyze}, queries, sender), sender, queries
}

func TestController_StartSendsGreeting(t *testing.T) {
	ctrl, sender, _ := newTestController(nil)
	ctrl.Handle(context.Background(), Message{Identity: 1, ChatID: 1, Text: "/start"})

	texts := sender.texts()
	if len(texts) != 1 || texts[0] != msgGreeting {
		t.Fatalf("expected greeting, got %q", texts)
	}
}

func TestController_LookupRecordsAndReplies(t *testing.T) {
	ctrl, sender, queries := newTestController(func(_ context.Context, handle string) (analysis.Report, error) {
		if handle != "alice" {
			t.Fatalf("expected normalized handle alice, got %q", handle)
		}
		return evidenceReport(handle, "bob"), nil
	})
	ctrl.Handle(context.Background(), Message{Identity: 7, ChatID: 70, Text: " @alice "})

	texts := sender.texts()
	if len(texts) != 3 {
		t.Fatalf("expected progress, result and follow-up, got %q", texts)
	}
	if texts[0] != "🔍 Checking username history for @alice..." {
		t.Fatalf("unexpected progress message %q", texts[0])
	}
	if !strings.Contains(texts[1], "*Detected Previous Usernames*") || !strings.Contains(texts[1], "• @bob") {
		t.Fatalf("expected evidence in result, got %q", texts[1])
	}
	if !strings.Contains(texts[1], "*1 times*") {
		t.Fatalf("expected count in result, got %q", texts[1])
	}
	if texts[2] != msgFollowUp {
		t.Fatalf("expected follow-up, got %q", texts[2])
	}

	entries := queries.recorded()
	if len(entries) != 1 {
		t.Fatalf("expected one query record, got %d", len(entries))
	}
	if entries[0].Summary != "Estimated 1 changes" || entries[0].Outcome != models.QueryOutcomeEstimated {
		t.Fatalf("unexpected entry %+v", entries[0])
	}
	if entries[0].RequestID == "" {
		t.Fatalf("expected request id")
	}
}

func TestController_NotFoundKeepsConversationOpen(t *testing.T) {
	ctrl, sender, queries := newTestController(func(_ context.Context, handle string) (analysis.Report, error) {
		if handle == "ghost" {
			return analysis.Report{}, analysis.ErrAccountNotFound
		}
		return evidenceReport(handle), nil
	})
	ctx := context.Background()
	ctrl.Handle(ctx, Message{Identity: 3, ChatID: 3, Text: "ghost"})

	entries := queries.recorded()
	if len(entries) != 1 || entries[0].Summary != "User not found" || entries[0].Outcome != models.QueryOutcomeNotFound {
		t.Fatalf("expected one not-found record, got %+v", entries)
	}
	texts := sender.texts()
	if texts[len(texts)-1] != "❌ User @ghost not found." {
		t.Fatalf("unexpected reply %q", texts[len(texts)-1])
	}
	if state, _ := ctrl.sessions.State(3); state != StateAwaitingHandle {
		t.Fatalf("expected awaiting handle, got %s", state)
	}

	ctrl.Handle(ctx, Message{Identity: 3, ChatID: 3, Text: "alice"})
	if got := len(queries.recorded()); got != 2 {
		t.Fatalf("expected second lookup to run, got %d records", got)
	}
}

func TestController_QuotaExceededAfterTenLookups(t *testing.T) {
	calls := 0
	ctrl, sender, _ := newTestController(func(_ context.Context, handle string) (analysis.Report, error) {
		calls++
		return evidenceReport(handle), nil
	})
	ctx := context.Background()
	for i := 0; i < 11; i++ {
		ctrl.Handle(ctx, Message{Identity: 9, ChatID: 9, Text: "alice"})
	}
	if calls != 10 {
		t.Fatalf("expected 10 analyses, got %d", calls)
	}
	texts := sender.texts()
	if texts[len(texts)-1] != msgQuotaExceeded {
		t.Fatalf("expected quota message, got %q", texts[len(texts)-1])
	}
}

func TestController_UpstreamRateLimitAndErrors(t *testing.T) {
	ctrl, sender, queries := newTestController(func(_ context.Context, handle string) (analysis.Report, error) {
		if handle == "busy" {
			return analysis.Report{}, analysis.ErrUpstreamRateLimited
		}
		return analysis.Report{}, errors.New("boom")
	})
	ctx := context.Background()
	ctrl.Handle(ctx, Message{Identity: 4, ChatID: 4, Text: "busy"})
	ctrl.Handle(ctx, Message{Identity: 4, ChatID: 4, Text: "other"})
	ctrl.Handle(ctx, Message{Identity: 4, ChatID: 4, Text: "not a handle!"})

	texts := sender.texts()
	want := []string{
		progressMessage("busy"), msgUpstreamRateLimited,
		progressMessage("other"), msgGenericError,
		msgGenericError,
	}
	if len(texts) != len(want) {
		t.Fatalf("expected %d replies, got %q", len(want), texts)
	}
	for i := range want {
		if texts[i] != want[i] {
			t.Fatalf("reply %d: expected %q, got %q", i, want[i], texts[i])
		}
	}
	if got := len(queries.recorded()); got != 0 {
		t.Fatalf("expected nothing recorded, got %d", got)
	}
	if state, _ := ctrl.sessions.State(4); state != StateAwaitingHandle {
		t.Fatalf("expected awaiting handle, got %s", state)
	}
}

func TestController_AdmissionFailureIsGenericError(t *testing.T) {
	sender := &fakeSender{}
	ctrl := NewController(nil, &fakeAdmitter{err: errors.New("db down")}, &fakeAnalyzer{analyze: func(context.Context, string) (analysis.Report, error) {
		t.Fatalf("analyzer must not run")
		return analysis.Report{}, nil
	}}, &fakeQueryLog{}, sender)
	ctrl.Handle(context.Background(), Message{Identity: 1, ChatID: 1, Text: "alice"})

	texts := sender.texts()
	if len(texts) != 1 || texts[0] != msgGenericError {
		t.Fatalf("expected generic error, got %q", texts)
	}
}

func TestController_CancelTerminatesUntilStart(t *testing.T) {
	ctrl, sender, _ := newTestController(func(_ context.Context, handle string) (analysis.Report, error) {
		return evidenceReport(handle), nil
	})
	ctx := context.Background()
	ctrl.Handle(ctx, Message{Identity: 5, ChatID: 5, Text: "/cancel"})
	ctrl.Handle(ctx, Message{Identity: 5, ChatID: 5, Text: "alice"})
	ctrl.Handle(ctx, Message{Identity: 5, ChatID: 5, Text: "/start@NameBot"})

	texts := sender.texts()
	want := []string{msgGoodbye, msgRestart, msgGreeting}
	if len(texts) != len(want) {
		t.Fatalf("expected %d replies, got %q", len(want), texts)
	}
	for i := range want {
		if texts[i] != want[i] {
			t.Fatalf("reply %d: expected %q, got %q", i, want[i], texts[i])
		}
	}
}

func TestController_CancelledResultIsRecordedButNotSent(t *testing.T) {
	var ctrl *Controller
	ctrl, sender, queries := newTestController(func(_ context.Context, handle string) (analysis.Report, error) {
		ctrl.Cancel(context.Background(), Message{Identity: 6, ChatID: 6, Text: "/cancel"})
		return evidenceReport(handle, "bob"), nil
	})
	ctrl.Handle(context.Background(), Message{Identity: 6, ChatID: 6, Text: "alice"})

	if got := len(queries.recorded()); got != 1 {
		t.Fatalf("expected the completed lookup to be recorded, got %d", got)
	}
	for _, text := range sender.texts() {
		if strings.Contains(text, "Username Analysis") {
			t.Fatalf("result must not be sent after cancel, got %q", text)
		}
	}
}

func TestController_Stats(t *testing.T) {
	ctrl, sender, queries := newTestController(nil)
	queries.stats = store.Stats{Total: 4, TopHandle: "some_user", TopHandleCount: 3}
	ctrl.Handle(context.Background(), Message{Identity: 2, ChatID: 2, Text: "/stats"})

	texts := sender.texts()
	if len(texts) != 1 {
		t.Fatalf("expected one reply, got %q", texts)
	}
	want := "📈 *Your Stats*\n\n• Total queries: 4\n• Most checked account: @some\\_user (3 times)"
	if texts[0] != want {
		t.Fatalf("expected %q, got %q", want, texts[0])
	}
}

func TestRenderReport_AgeBased(t *testing.T) {
	report := analysis.Report{
		Handle:  "new_acct",
		Profile: lookup.AccountProfile{DisplayName: "New", CreatedAt: time.Date(2024, time.January, 2, 0, 0, 0, 0, time.UTC)},
		Estimate: estimator.Estimate{
			Count:   1,
			Basis:   estimator.BasisAge,
			AgeDays: 40,
		},
	}
	text := renderReport(report)
	if !strings.Contains(text, "• Account created: January 02, 2024") {
		t.Fatalf("expected creation date, got %q", text)
	}
	if !strings.Contains(text, "I estimate @new\\_acct may have changed usernames approximately *1 times*") {
		t.Fatalf("expected age-based sentence, got %q", text)
	}
	if !strings.HasSuffix(text, msgNote) {
		t.Fatalf("expected note at the end, got %q", text)
	}
}

func TestRenderReport_HeaderKeepsHandleUnescaped(t *testing.T) {
	report := analysis.Report{
		Handle:  "new_acct",
		Profile: lookup.AccountProfile{DisplayName: "*star_name*"},
		Estimate: estimator.Estimate{
			Count:   2,
			Basis:   estimator.BasisEvidence,
			Handles: []string{"old_one", "older"},
		},
	}
	text := renderReport(report)
	header, _, _ := strings.Cut(text, "\n")
	if header != "📊 *Username Analysis for @new_acct*" {
		t.Fatalf("unexpected header %q", header)
	}
	if !strings.Contains(text, "• Current display name: \\*star\\_name\\*\n") {
		t.Fatalf("expected escaped display name, got %q", text)
	}
	if !strings.Contains(text, "• @old\\_one\n• @older\n") {
		t.Fatalf("expected escaped previous handles, got %q", text)
	}
}

func TestRenderStats_NoQueries(t *testing.T) {
	if got := renderStats(store.Stats{}); got != "📈 *Your Stats*\n\n• Total queries: 0" {
		t.Fatalf("unexpected stats text %q", got)
	}
}

func TestParseCommand(t *testing.T) {
	cases := map[string]string{
		"/start":           "start",
		" /Cancel ":        "cancel",
		"/stats@NameBot":   "stats",
		"/start deep-link": "start",
	}
	for input, want := range cases {
		got, ok := parseCommand(input)
		if !ok || got != want {
			t.Fatalf("parseCommand(%q) = %q, %v; want %q", input, got, ok, want)
		}
	}
	if _, ok := parseCommand("alice"); ok {
		t.Fatalf("expected free text not to be a command")
	}
}
