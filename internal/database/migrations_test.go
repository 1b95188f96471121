package database

import (
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/zawar-mughal/echo-groove-sub000/internal/submissions"
)

func TestApplyMigrationsBackfillsDisplayBoosts(testContext *testing.T) {
	tempDir := testContext.TempDir()
	databasePath := filepath.Join(tempDir, "migration.db")

	database, err := gorm.Open(sqlite.Open(databasePath), &gorm.Config{})
	if err != nil {
		testContext.Fatalf("failed to open sqlite: %v", err)
	}

	if err := database.AutoMigrate(&submissions.Submission{}, &submissions.UserBoost{}, &migrationRecord{}); err != nil {
		testContext.Fatalf("failed to migrate schema: %v", err)
	}

	entry := submissions.Submission{
		ID:            "sub-1",
		RoomID:        "room-1",
		SeasonID:      "season-1",
		SubmitterID:   "user-1",
		Title:         "Track",
		VelocityTrend: "steady",
		IsVisible:     true,
		SubmittedAt:   time.Unix(1700000000, 0).UTC(),
	}
	if err := database.Create(&entry).Error; err != nil {
		testContext.Fatalf("failed to insert submission: %v", err)
	}
	aggregates := []submissions.UserBoost{
		{SubmissionID: "sub-1", UserID: "user-2", BoostCount: 4, LastBoostAt: entry.SubmittedAt},
		{SubmissionID: "sub-1", UserID: "user-3", BoostCount: 2, LastBoostAt: entry.SubmittedAt},
	}
	for index := range aggregates {
		if err := database.Create(&aggregates[index]).Error; err != nil {
			testContext.Fatalf("failed to insert aggregate: %v", err)
		}
	}

	if err := applyMigrations(database, zap.NewNop()); err != nil {
		testContext.Fatalf("failed to apply migrations: %v", err)
	}

	var stored submissions.Submission
	if err := database.Where("id = ?", "sub-1").Take(&stored).Error; err != nil {
		testContext.Fatalf("failed to reload submission: %v", err)
	}
	if stored.DisplayBoosts != 6 {
		testContext.Fatalf("expected display boosts to be backfilled to 6, got %d", stored.DisplayBoosts)
	}

	var record migrationRecord
	if err := database.Where("name = ?", migrationBackfillDisplayBoosts).Take(&record).Error; err != nil {
		testContext.Fatalf("expected migration record to be created: %v", err)
	}
	if record.AppliedAtSeconds == 0 {
		testContext.Fatalf("expected migration timestamp to be set")
	}
}

func TestApplyMigrationsIsIdempotent(testContext *testing.T) {
	tempDir := testContext.TempDir()
	databasePath := filepath.Join(tempDir, "repeat.db")

	database, err := gorm.Open(sqlite.Open(databasePath), &gorm.Config{})
	if err != nil {
		testContext.Fatalf("failed to open sqlite: %v", err)
	}
	if err := database.AutoMigrate(&submissions.Submission{}, &submissions.UserBoost{}, &migrationRecord{}); err != nil {
		testContext.Fatalf("failed to migrate schema: %v", err)
	}

	if err := applyMigrations(database, zap.NewNop()); err != nil {
		testContext.Fatalf("first apply failed: %v", err)
	}
	if err := applyMigrations(database, zap.NewNop()); err != nil {
		testContext.Fatalf("second apply failed: %v", err)
	}

	var count int64
	if err := database.Model(&migrationRecord{}).Count(&count).Error; err != nil {
		testContext.Fatalf("failed to count migration records: %v", err)
	}
	if count != 1 {
		testContext.Fatalf("expected a single migration record, got %d", count)
	}
}
