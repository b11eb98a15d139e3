package bot

import (
	"fmt"
	"strings"

	"github.com/Xcertik-Realist/X-name-change-bot/internal/analysis"
	"github.com/Xcertik-Realist/X-name-change-bot/internal/estimator"
	"github.com/Xcertik-Realist/X-name-change-bot/internal/store"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	msgGreeting = "👋 Hello! I can check how many times a Twitter/X account has been renamed.\n\n" +
		"Send me a Twitter username (without the @ symbol)."
	msgQuotaExceeded       = "⚠️ You've reached the maximum number of queries allowed per hour. Please try again later."
	msgUpstreamRateLimited = "⚠️ Twitter API rate limit reached. Please try again later."
	msgGenericError        = "❌ Sorry, I encountered an error while checking that username. " +
		"Please make sure it's a valid Twitter/X username and try again."
	msgFollowUp = "Would you like to check another account? Just send me another username, or use /cancel to stop."
	msgGoodbye  = "Goodbye! Feel free to use me again when you want to check Twitter username changes."
	msgRestart  = "Send /start to check another account."
	msgHelp     = "Send me a Twitter username to check, /stats for your history, or /cancel to stop."
	msgNote     = "Note: Twitter/X API doesn't provide official name change history. " +
		"This analysis combines multiple detection methods including mentions, replies, and account age analysis."

	summaryNotFound = "User not found"
	createdLayout   = "January 02, 2006"
)

// escapeMarkdown escapes text placed outside Markdown entities.
// Escapes are not allowed inside an entity.
func escapeMarkdown(text string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, text)
}

func progressMessage(handle string) string {
	return fmt.Sprintf("🔍 Checking username history for @%s...", handle)
}

func notFoundMessage(handle string) string {
	return fmt.Sprintf("❌ User @%s not found.", handle)
}

func estimateSummary(count int) string {
	return fmt.Sprintf("Estimated %d changes", count)
}

// renderReport formats an analysis report as Telegram Markdown.
func renderReport(report analysis.Report) string {
	handle := escapeMarkdown(report.Handle)
	est := report.Estimate

	var b strings.Builder
	// Handles are [A-Za-z0-9_] and cannot close the bold entity.
	fmt.Fprintf(&b, "📊 *Username Analysis for @%s*\n\n", report.Handle)
	if !report.Profile.CreatedAt.IsZero() {
		fmt.Fprintf(&b, "• Account created: %s\n", report.Profile.CreatedAt.Format(createdLayout))
	}
	fmt.Fprintf(&b, "• Account age: %d days\n", est.AgeDays)
	fmt.Fprintf(&b, "• Current display name: %s\n\n", escapeMarkdown(report.Profile.DisplayName))

	if est.Basis == estimator.BasisEvidence && len(est.Handles) > 0 {
		b.WriteString("*Detected Previous Usernames*:\n")
		for _, previous := range est.Handles {
			fmt.Fprintf(&b, "• @%s\n", escapeMarkdown(previous))
		}
		fmt.Fprintf(&b, "\nBased on the detected username references, this account appears to have changed usernames *%d times*.\n\n", est.Count)
	} else {
		fmt.Fprintf(&b, "Based on the account age and activity, I estimate @%s may have changed usernames approximately *%d times*.\n\n", handle, est.Count)
	}
	b.WriteString(msgNote)
	return b.String()
}

// renderStats formats the per-identity aggregate shown by /stats.
func renderStats(stats store.Stats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📈 *Your Stats*\n\n• Total queries: %d\n", stats.Total)
	if stats.HasTopHandle() {
		fmt.Fprintf(&b, "• Most checked account: @%s (%d times)", escapeMarkdown(stats.TopHandle), stats.TopHandleCount)
	}
	return strings.TrimRight(b.String(), "\n")
}
