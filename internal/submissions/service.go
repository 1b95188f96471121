package submissions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/zawar-mughal/echo-groove-sub000/internal/scoring"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	errMissingDatabase     = errors.New("database handle is required")
	errMissingIDProvider   = errors.New("id provider is required")
	errMissingSubmissionID = errors.New("submission identifier is required")
	errMissingUserID       = errors.New("user identifier is required")
	errMissingSeasonID     = errors.New("season identifier is required")
	errMissingTitle        = errors.New("submission title is required")
	errMissingMediaSource  = errors.New("a provider track or media url is required")
	noOpLogger             = zap.NewNop()
)

// ServiceError carries a stable machine-readable code alongside the cause.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

const (
	opServiceNew    = "submissions.service.new"
	opCreate        = "submissions.create"
	opBoost         = "submissions.boost"
	opSeasonRanking = "submissions.season_ranking"
	opSeasonStats   = "submissions.season_stats"
	opSetVisibility = "submissions.set_visibility"
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// eventRetention bounds the boost-event log: velocity never reads past the
// trailing hour, so older rows are dropped on every boost write.
const eventRetention = time.Hour

// IDProvider issues identifiers for new submissions and boost events.
type IDProvider interface {
	NewID() (string, error)
}

// RankedEntry is the cache-facing projection of one ranked submission.
type RankedEntry struct {
	SubmissionID string
	Score        float64
}

// RankingCache receives the denormalized season leaderboard after each
// ranking pass. Implementations must tolerate repeated writes.
type RankingCache interface {
	StoreSeasonRanking(ctx context.Context, seasonID string, entries []RankedEntry) error
}

// ServiceConfig describes the dependencies of the submissions service.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
	Cache      RankingCache
	Logger     *zap.Logger
}

// Service applies boosts and runs the trending and ranking passes over a
// season's submissions.
type Service struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider IDProvider
	cache      RankingCache
	logger     *zap.Logger
}

// NewService validates the configuration and constructs the service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opServiceNew, "missing_id_provider", errMissingIDProvider)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Service{
		db:         cfg.Database,
		clock:      clock,
		idProvider: cfg.IDProvider,
		cache:      cfg.Cache,
		logger:     logger,
	}, nil
}

// CreateRequest carries the fields supplied when a user submits a track.
type CreateRequest struct {
	RoomID          string
	SeasonID        string
	Title           string
	CreatorName     string
	SubmitterID     string
	SubmitterName   string
	Provider        string
	ProviderTrackID string
	MediaURL        string
}

// Create inserts a new submission with a fresh identifier and an immutable
// submission timestamp.
func (s *Service) Create(ctx context.Context, request CreateRequest) (Submission, error) {
	if s.db == nil || s.idProvider == nil {
		s.logError(opCreate, "missing_database", errMissingDatabase)
		return Submission{}, newServiceError(opCreate, "missing_database", errMissingDatabase)
	}
	if strings.TrimSpace(request.SeasonID) == "" {
		return Submission{}, newServiceError(opCreate, "missing_season_id", errMissingSeasonID)
	}
	if strings.TrimSpace(request.SubmitterID) == "" {
		return Submission{}, newServiceError(opCreate, "missing_submitter_id", errMissingUserID)
	}
	if strings.TrimSpace(request.Title) == "" {
		return Submission{}, newServiceError(opCreate, "missing_title", errMissingTitle)
	}
	if strings.TrimSpace(request.ProviderTrackID) == "" && strings.TrimSpace(request.MediaURL) == "" {
		return Submission{}, newServiceError(opCreate, "missing_media_source", errMissingMediaSource)
	}

	id, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opCreate, "id_generation_failed", err)
		return Submission{}, newServiceError(opCreate, "id_generation_failed", err)
	}

	submission := Submission{
		ID:              id,
		RoomID:          strings.TrimSpace(request.RoomID),
		SeasonID:        strings.TrimSpace(request.SeasonID),
		Title:           strings.TrimSpace(request.Title),
		CreatorName:     strings.TrimSpace(request.CreatorName),
		SubmitterID:     strings.TrimSpace(request.SubmitterID),
		SubmitterName:   strings.TrimSpace(request.SubmitterName),
		Provider:        strings.TrimSpace(request.Provider),
		ProviderTrackID: strings.TrimSpace(request.ProviderTrackID),
		MediaURL:        strings.TrimSpace(request.MediaURL),
		VelocityTrend:   string(scoring.TrendSteady),
		IsVisible:       true,
		SubmittedAt:     s.clock().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&submission).Error; err != nil {
		s.logError(opCreate, "insert_failed", err, zap.String("season_id", submission.SeasonID))
		return Submission{}, newServiceError(opCreate, "insert_failed", err)
	}
	return submission, nil
}

// BoostResult reports the effect of a single boost action.
type BoostResult struct {
	Submission    Submission
	WeightedDelta float64
	Velocity      scoring.VelocityReport
	Rising        scoring.RisingStatus
}

// Boost applies one boost by userID to the submission: the display count
// always grows by exactly one, the weighted score by the diminishing-returns
// delta. The per-user aggregate is upserted, the event log appended and
// pruned, and the velocity and rising fields recomputed and persisted, all
// within one transaction.
func (s *Service) Boost(ctx context.Context, submissionID, userID string) (BoostResult, error) {
	if s.db == nil || s.idProvider == nil {
		s.logError(opBoost, "missing_database", errMissingDatabase)
		return BoostResult{}, newServiceError(opBoost, "missing_database", errMissingDatabase)
	}
	if strings.TrimSpace(submissionID) == "" {
		return BoostResult{}, newServiceError(opBoost, "missing_submission_id", errMissingSubmissionID)
	}
	if strings.TrimSpace(userID) == "" {
		return BoostResult{}, newServiceError(opBoost, "missing_user_id", errMissingUserID)
	}

	var result BoostResult
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var submission Submission
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", submissionID).
			Take(&submission).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return newServiceError(opBoost, "submission_not_found", err)
		}
		if err != nil {
			s.logError(opBoost, "submission_select_failed", err, zap.String("submission_id", submissionID))
			return newServiceError(opBoost, "submission_select_failed", err)
		}

		var stored []UserBoost
		if err := tx.Where("submission_id = ?", submissionID).Find(&stored).Error; err != nil {
			s.logError(opBoost, "aggregate_select_failed", err, zap.String("submission_id", submissionID))
			return newServiceError(opBoost, "aggregate_select_failed", err)
		}

		now := s.clock().UTC()
		aggregates := make([]scoring.UserBoost, 0, len(stored))
		for _, row := range stored {
			aggregates = append(aggregates, scoring.UserBoost{
				UserID:      row.UserID,
				BoostCount:  row.BoostCount,
				LastBoostAt: row.LastBoostAt,
			})
		}

		outcome := scoring.ApplyBoost(aggregates, userID, now)
		for _, aggregate := range outcome.Aggregates {
			if aggregate.UserID != userID {
				continue
			}
			row := UserBoost{
				SubmissionID: submissionID,
				UserID:       aggregate.UserID,
				BoostCount:   aggregate.BoostCount,
				LastBoostAt:  aggregate.LastBoostAt,
			}
			if err := tx.Save(&row).Error; err != nil {
				s.logError(opBoost, "aggregate_save_failed", err,
					zap.String("submission_id", submissionID),
					zap.String("user_id", userID))
				return newServiceError(opBoost, "aggregate_save_failed", err)
			}
		}

		eventID, err := s.idProvider.NewID()
		if err != nil {
			s.logError(opBoost, "id_generation_failed", err, zap.String("submission_id", submissionID))
			return newServiceError(opBoost, "id_generation_failed", err)
		}
		event := BoostEvent{
			EventID:      eventID,
			SubmissionID: submissionID,
			UserID:       userID,
			CreatedAt:    now,
		}
		if err := tx.Create(&event).Error; err != nil {
			s.logError(opBoost, "event_insert_failed", err, zap.String("submission_id", submissionID))
			return newServiceError(opBoost, "event_insert_failed", err)
		}

		cutoff := now.Add(-eventRetention)
		if err := tx.Where("submission_id = ? AND created_at < ?", submissionID, cutoff).
			Delete(&BoostEvent{}).Error; err != nil {
			s.logError(opBoost, "event_prune_failed", err, zap.String("submission_id", submissionID))
			return newServiceError(opBoost, "event_prune_failed", err)
		}

		var events []BoostEvent
		if err := tx.Where("submission_id = ?", submissionID).
			Order("created_at ASC").
			Find(&events).Error; err != nil {
			s.logError(opBoost, "event_select_failed", err, zap.String("submission_id", submissionID))
			return newServiceError(opBoost, "event_select_failed", err)
		}
		timestamps := make([]time.Time, 0, len(events))
		for _, row := range events {
			timestamps = append(timestamps, row.CreatedAt)
		}

		report := scoring.MeasureVelocity(timestamps, now)
		rising := scoring.ClassifyRising(report, now.Sub(submission.SubmittedAt))

		submission.DisplayBoosts += outcome.DisplayDelta
		submission.ActualBoosts += outcome.WeightedDelta
		submission.BoostVelocity = report.Rate5Min
		submission.VelocityTrend = string(report.Trend)
		submission.IsRising = rising.IsRising
		submission.RisingType = string(rising.Type)
		if err := tx.Save(&submission).Error; err != nil {
			s.logError(opBoost, "submission_save_failed", err, zap.String("submission_id", submissionID))
			return newServiceError(opBoost, "submission_save_failed", err)
		}

		result = BoostResult{
			Submission:    submission,
			WeightedDelta: outcome.WeightedDelta,
			Velocity:      report,
			Rising:        rising,
		}
		return nil
	})
	if txErr != nil {
		return BoostResult{}, txErr
	}
	return result, nil
}

// SeasonView is the ranking output handed to the presentation layer: at most
// one spotlight submission plus the ordered remainder. TrendingChanged is set
// when this pass moved the spotlight to a different submission (or cleared
// it), so callers can notify listeners.
type SeasonView struct {
	Trending        *Submission
	Ranked          []Submission
	CompetingCount  int
	TrendingChanged bool
}

// SeasonRanking loads the season's submissions, runs the trending selector
// and ranking sorter, denormalizes the spotlight flag back to storage and
// write-throughs the leaderboard cache when one is configured.
func (s *Service) SeasonRanking(ctx context.Context, seasonID string) (SeasonView, error) {
	if s.db == nil {
		s.logError(opSeasonRanking, "missing_database", errMissingDatabase)
		return SeasonView{}, newServiceError(opSeasonRanking, "missing_database", errMissingDatabase)
	}
	if strings.TrimSpace(seasonID) == "" {
		return SeasonView{}, newServiceError(opSeasonRanking, "missing_season_id", errMissingSeasonID)
	}

	rows, boosters, err := s.loadSeason(ctx, opSeasonRanking, seasonID)
	if err != nil {
		return SeasonView{}, err
	}

	now := s.clock().UTC()
	ranking := scoring.RankSeason(buildCandidates(rows, boosters), now)

	byID := make(map[string]Submission, len(rows))
	for _, row := range rows {
		byID[row.ID] = row
	}

	view := SeasonView{CompetingCount: ranking.CompetingCount}
	if ranking.Trending != nil {
		chosen := byID[ranking.Trending.ID]
		chosen.IsTrending = true
		view.Trending = &chosen
	}
	view.Ranked = make([]Submission, 0, len(ranking.Ranked))
	for _, candidate := range ranking.Ranked {
		row := byID[candidate.ID]
		row.IsTrending = false
		view.Ranked = append(view.Ranked, row)
	}

	changed, err := s.persistTrendingFlag(ctx, seasonID, view.Trending)
	if err != nil {
		s.logError(opSeasonRanking, "trending_flag_update_failed", err, zap.String("season_id", seasonID))
		return SeasonView{}, newServiceError(opSeasonRanking, "trending_flag_update_failed", err)
	}
	view.TrendingChanged = changed

	if s.cache != nil {
		entries := make([]RankedEntry, 0, len(ranking.Ranked))
		for _, candidate := range ranking.Ranked {
			entries = append(entries, RankedEntry{SubmissionID: candidate.ID, Score: candidate.CompositeScore()})
		}
		if err := s.cache.StoreSeasonRanking(ctx, seasonID, entries); err != nil {
			// the cache is a denormalized copy; storage already holds the truth
			s.logger.Warn("season leaderboard cache write failed",
				zap.String("season_id", seasonID), zap.Error(err))
		}
	}

	return view, nil
}

// SeasonStats summarizes a season for stats displays.
type SeasonStats struct {
	SubmissionCount int
	DisplayBoosts   int
	WeightedBoosts  float64
	CompetingCount  int
}

// SeasonStats aggregates visible submissions plus the competing count.
func (s *Service) SeasonStats(ctx context.Context, seasonID string) (SeasonStats, error) {
	if s.db == nil {
		s.logError(opSeasonStats, "missing_database", errMissingDatabase)
		return SeasonStats{}, newServiceError(opSeasonStats, "missing_database", errMissingDatabase)
	}
	if strings.TrimSpace(seasonID) == "" {
		return SeasonStats{}, newServiceError(opSeasonStats, "missing_season_id", errMissingSeasonID)
	}

	rows, boosters, err := s.loadSeason(ctx, opSeasonStats, seasonID)
	if err != nil {
		return SeasonStats{}, err
	}

	now := s.clock().UTC()
	ranking := scoring.RankSeason(buildCandidates(rows, boosters), now)

	stats := SeasonStats{CompetingCount: ranking.CompetingCount}
	for _, row := range rows {
		if !row.IsVisible {
			continue
		}
		stats.SubmissionCount++
		stats.DisplayBoosts += row.DisplayBoosts
		stats.WeightedBoosts += row.ActualBoosts
	}
	return stats, nil
}

// SetVisibility hides or shows a submission. Hidden submissions keep their
// scoring data but leave every ranking surface.
func (s *Service) SetVisibility(ctx context.Context, submissionID string, visible bool) error {
	if s.db == nil {
		s.logError(opSetVisibility, "missing_database", errMissingDatabase)
		return newServiceError(opSetVisibility, "missing_database", errMissingDatabase)
	}
	if strings.TrimSpace(submissionID) == "" {
		return newServiceError(opSetVisibility, "missing_submission_id", errMissingSubmissionID)
	}

	update := s.db.WithContext(ctx).Model(&Submission{}).
		Where("id = ?", submissionID).
		Update("is_visible", visible)
	if update.Error != nil {
		s.logError(opSetVisibility, "update_failed", update.Error, zap.String("submission_id", submissionID))
		return newServiceError(opSetVisibility, "update_failed", update.Error)
	}
	if update.RowsAffected == 0 {
		return newServiceError(opSetVisibility, "submission_not_found", gorm.ErrRecordNotFound)
	}
	return nil
}

func (s *Service) loadSeason(ctx context.Context, operation, seasonID string) ([]Submission, map[string][]time.Time, error) {
	var rows []Submission
	if err := s.db.WithContext(ctx).
		Where("season_id = ?", seasonID).
		Order("submitted_at ASC").
		Find(&rows).Error; err != nil {
		s.logError(operation, "submission_select_failed", err, zap.String("season_id", seasonID))
		return nil, nil, newServiceError(operation, "submission_select_failed", err)
	}
	if len(rows) == 0 {
		return nil, nil, nil
	}

	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}

	var aggregates []UserBoost
	if err := s.db.WithContext(ctx).
		Where("submission_id IN ?", ids).
		Find(&aggregates).Error; err != nil {
		s.logError(operation, "aggregate_select_failed", err, zap.String("season_id", seasonID))
		return nil, nil, newServiceError(operation, "aggregate_select_failed", err)
	}

	boosters := make(map[string][]time.Time, len(rows))
	for _, aggregate := range aggregates {
		boosters[aggregate.SubmissionID] = append(boosters[aggregate.SubmissionID], aggregate.LastBoostAt)
	}
	return rows, boosters, nil
}

func buildCandidates(rows []Submission, boosters map[string][]time.Time) []scoring.Candidate {
	candidates := make([]scoring.Candidate, 0, len(rows))
	for _, row := range rows {
		candidates = append(candidates, scoring.Candidate{
			ID:              row.ID,
			ActualBoosts:    row.ActualBoosts,
			Velocity:        row.BoostVelocity,
			IsRising:        row.IsRising,
			Visible:         row.IsVisible,
			SubmittedAt:     row.SubmittedAt,
			BoosterLastSeen: boosters[row.ID],
		})
	}
	return candidates
}

// persistTrendingFlag denormalizes the spotlight onto storage and reports
// whether it moved since the previous pass.
func (s *Service) persistTrendingFlag(ctx context.Context, seasonID string, trending *Submission) (bool, error) {
	newID := ""
	if trending != nil {
		newID = trending.ID
	}

	changed := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current []string
		if err := tx.Model(&Submission{}).
			Where("season_id = ? AND is_trending = ?", seasonID, true).
			Pluck("id", &current).Error; err != nil {
			return err
		}
		if len(current) == 0 {
			changed = newID != ""
		} else {
			changed = len(current) != 1 || current[0] != newID
		}

		if err := tx.Model(&Submission{}).
			Where("season_id = ? AND is_trending = ?", seasonID, true).
			Update("is_trending", false).Error; err != nil {
			return err
		}
		if newID == "" {
			return nil
		}
		return tx.Model(&Submission{}).
			Where("id = ?", newID).
			Update("is_trending", true).Error
	})
	return changed, err
}

func (s *Service) loggerOrDefault() *zap.Logger {
	if s == nil || s.logger == nil {
		return noOpLogger
	}
	return s.logger
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.loggerOrDefault().Error("submissions service error", attrs...)
}
