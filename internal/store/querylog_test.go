package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	internaldb "github.com/Xcertik-Realist/X-name-change-bot/internal/db"
	"github.com/Xcertik-Realist/X-name-change-bot/internal/models"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func openQueryLog(t *testing.T, name string) (*QueryLog, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if errMigrate := internaldb.Migrate(db); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	log := NewQueryLog(db)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	log.now = func() time.Time {
		now = now.Add(time.Second)
		return now
	}
	return log, db
}

func TestRecord_NotFoundRow(t *testing.T) {
	log, db := openQueryLog(t, "ql_not_found")
	if err := log.Record(context.Background(), Entry{
		Identity:     1,
		TargetHandle: "Ghost",
		Outcome:      models.QueryOutcomeNotFound,
		Summary:      "User not found",
	}); err != nil {
		t.Fatalf("record: %v", err)
	}

	var rows []models.QueryRecord
	if errFind := db.Find(&rows).Error; errFind != nil {
		t.Fatalf("find: %v", errFind)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0].Summary != "User not found" || rows[0].TargetHandle != "ghost" {
		t.Fatalf("unexpected row %+v", rows[0])
	}
	if rows[0].RequestID == "" {
		t.Fatalf("expected generated request id")
	}
	var handles []string
	if errUnmarshal := json.Unmarshal(rows[0].Handles, &handles); errUnmarshal != nil || len(handles) != 0 {
		t.Fatalf("expected empty handles array, got %s", string(rows[0].Handles))
	}
}

func TestStats_TotalAndMostChecked(t *testing.T) {
	log, _ := openQueryLog(t, "ql_stats")
	ctx := context.Background()
	for _, handle := range []string{"alice", "bob", "Alice", "carol", "alice"} {
		if err := log.Record(ctx, Entry{Identity: 7, TargetHandle: handle, Outcome: models.QueryOutcomeEstimated, Summary: "Estimated 1 changes"}); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	if err := log.Record(ctx, Entry{Identity: 8, TargetHandle: "bob", Outcome: models.QueryOutcomeEstimated}); err != nil {
		t.Fatalf("record: %v", err)
	}

	stats, err := log.Stats(ctx, 7)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 5 || stats.TopHandle != "alice" || stats.TopHandleCount != 3 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	empty, err := log.Stats(ctx, 99)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if empty.Total != 0 || empty.HasTopHandle() {
		t.Fatalf("expected empty stats, got %+v", empty)
	}
}

func TestSummaryAndList(t *testing.T) {
	log, _ := openQueryLog(t, "ql_summary")
	ctx := context.Background()
	entries := []Entry{
		{Identity: 1, TargetHandle: "alice", Outcome: models.QueryOutcomeEstimated},
		{Identity: 2, TargetHandle: "alice", Outcome: models.QueryOutcomeEstimated},
		{Identity: 2, TargetHandle: "ghost", Outcome: models.QueryOutcomeNotFound},
	}
	for _, entry := range entries {
		if err := log.Record(ctx, entry); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	summary, err := log.Summary(ctx, 5)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.TotalQueries != 3 || summary.DistinctUsers != 2 || summary.NotFoundQueries != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if len(summary.TopHandles) != 2 || summary.TopHandles[0].Handle != "alice" || summary.TopHandles[0].Count != 2 {
		t.Fatalf("unexpected top handles %+v", summary.TopHandles)
	}

	identity := int64(2)
	rows, err := log.List(ctx, ListFilter{Identity: &identity})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 2 || rows[0].TargetHandle != "ghost" {
		t.Fatalf("expected newest first, got %+v", rows)
	}
}
