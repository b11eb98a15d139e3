// Package lookup defines the account and post lookup boundary used by the
// rename analysis pipeline.
package lookup

import (
	"context"
	"time"
)

// AccountProfile is the public profile of a resolved account.
type AccountProfile struct {
	ID          string
	Handle      string
	DisplayName string
	CreatedAt   time.Time
}

// Post is a public post returned by timeline or search queries.
type Post struct {
	ID             string
	Text           string
	ConversationID string
	CreatedAt      time.Time
}

// Source resolves accounts and fetches posts from the upstream network.
// All errors returned by implementations are *Error values.
type Source interface {
	Resolve(ctx context.Context, handle string) (AccountProfile, error)
	RecentPosts(ctx context.Context, accountID string, limit int) ([]Post, error)
	Search(ctx context.Context, query string, limit int) ([]Post, error)
}
