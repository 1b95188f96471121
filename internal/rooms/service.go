package rooms

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/zawar-mughal/echo-groove-sub000/internal/scoring"
	"github.com/zawar-mughal/echo-groove-sub000/internal/submissions"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	errMissingRoomID     = errors.New("room identifier is required")
	errMissingName       = errors.New("name is required")
	errMissingOwnerID    = errors.New("owner identifier is required")
	errSeasonWindow      = errors.New("season timestamps must be strictly ordered")
	errNoActiveSeason    = errors.New("room has no active season")
	noOpLogger           = zap.NewNop()
)

const (
	opServiceNew   = "rooms.service.new"
	opCreateRoom   = "rooms.create_room"
	opCreateSeason = "rooms.create_season"
	opListSeasons  = "rooms.list_seasons"
	opActiveSeason = "rooms.active_season"
	opRoomHeat     = "rooms.room_heat"
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

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// IDProvider issues identifiers for new rooms and seasons.
type IDProvider interface {
	NewID() (string, error)
}

// ServiceConfig describes the dependencies of the rooms service.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger
}

// Service manages rooms and seasons and computes the cross-room heat board.
type Service struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider IDProvider
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
	return &Service{db: cfg.Database, clock: clock, idProvider: cfg.IDProvider, logger: logger}, nil
}

// CreateRoom inserts a new room owned by ownerID.
func (s *Service) CreateRoom(ctx context.Context, name, description, ownerID string) (Room, error) {
	if strings.TrimSpace(name) == "" {
		return Room{}, newServiceError(opCreateRoom, "missing_name", errMissingName)
	}
	if strings.TrimSpace(ownerID) == "" {
		return Room{}, newServiceError(opCreateRoom, "missing_owner_id", errMissingOwnerID)
	}

	id, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opCreateRoom, "id_generation_failed", err)
		return Room{}, newServiceError(opCreateRoom, "id_generation_failed", err)
	}
	room := Room{
		ID:          id,
		Name:        strings.TrimSpace(name),
		Description: strings.TrimSpace(description),
		OwnerID:     strings.TrimSpace(ownerID),
		CreatedAt:   s.clock().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&room).Error; err != nil {
		s.logError(opCreateRoom, "insert_failed", err)
		return Room{}, newServiceError(opCreateRoom, "insert_failed", err)
	}
	return room, nil
}

// CreateSeasonRequest carries the fields for a new season.
type CreateSeasonRequest struct {
	RoomID       string
	Name         string
	StartsAt     time.Time
	EndsAt       time.Time
	VotingEndsAt time.Time
}

// CreateSeason inserts a season after checking the room exists and the
// submission, voting and completion boundaries are strictly ordered.
func (s *Service) CreateSeason(ctx context.Context, request CreateSeasonRequest) (Season, error) {
	if strings.TrimSpace(request.RoomID) == "" {
		return Season{}, newServiceError(opCreateSeason, "missing_room_id", errMissingRoomID)
	}
	if strings.TrimSpace(request.Name) == "" {
		return Season{}, newServiceError(opCreateSeason, "missing_name", errMissingName)
	}
	if !request.StartsAt.Before(request.EndsAt) || !request.EndsAt.Before(request.VotingEndsAt) {
		return Season{}, newServiceError(opCreateSeason, "invalid_window", errSeasonWindow)
	}

	var room Room
	err := s.db.WithContext(ctx).Where("id = ?", request.RoomID).Take(&room).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Season{}, newServiceError(opCreateSeason, "room_not_found", err)
	}
	if err != nil {
		s.logError(opCreateSeason, "room_select_failed", err, zap.String("room_id", request.RoomID))
		return Season{}, newServiceError(opCreateSeason, "room_select_failed", err)
	}

	id, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opCreateSeason, "id_generation_failed", err)
		return Season{}, newServiceError(opCreateSeason, "id_generation_failed", err)
	}
	season := Season{
		ID:           id,
		RoomID:       room.ID,
		Name:         strings.TrimSpace(request.Name),
		StartsAt:     request.StartsAt.UTC(),
		EndsAt:       request.EndsAt.UTC(),
		VotingEndsAt: request.VotingEndsAt.UTC(),
		CreatedAt:    s.clock().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&season).Error; err != nil {
		s.logError(opCreateSeason, "insert_failed", err, zap.String("room_id", room.ID))
		return Season{}, newServiceError(opCreateSeason, "insert_failed", err)
	}
	return season, nil
}

// ListSeasons returns a room's seasons, newest first.
func (s *Service) ListSeasons(ctx context.Context, roomID string) ([]Season, error) {
	if strings.TrimSpace(roomID) == "" {
		return nil, newServiceError(opListSeasons, "missing_room_id", errMissingRoomID)
	}
	var seasons []Season
	if err := s.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("starts_at DESC").
		Find(&seasons).Error; err != nil {
		s.logError(opListSeasons, "query_failed", err, zap.String("room_id", roomID))
		return nil, newServiceError(opListSeasons, "query_failed", err)
	}
	return seasons, nil
}

// ActiveSeason returns the room's season currently accepting submissions.
func (s *Service) ActiveSeason(ctx context.Context, roomID string) (Season, error) {
	seasons, err := s.ListSeasons(ctx, roomID)
	if err != nil {
		return Season{}, err
	}
	now := s.clock().UTC()
	for _, season := range seasons {
		if season.PhaseAt(now) == PhaseActive {
			return season, nil
		}
	}
	return Season{}, newServiceError(opActiveSeason, "no_active_season", errNoActiveSeason)
}

// RoomHeat is one row of the home-page heat board.
type RoomHeat struct {
	RoomID         string
	Name           string
	Heat           float64
	ActiveBoosters int
}

// RoomHeatBoard ranks rooms by recent boost acceleration across all of their
// submissions, scaled by booster diversity within the trailing hour.
func (s *Service) RoomHeatBoard(ctx context.Context) ([]RoomHeat, error) {
	var all []Room
	if err := s.db.WithContext(ctx).Order("created_at ASC").Find(&all).Error; err != nil {
		s.logError(opRoomHeat, "room_select_failed", err)
		return nil, newServiceError(opRoomHeat, "room_select_failed", err)
	}

	now := s.clock().UTC()
	cutoff := now.Add(-time.Hour)
	board := make([]RoomHeat, 0, len(all))
	for _, room := range all {
		var events []submissions.BoostEvent
		if err := s.db.WithContext(ctx).
			Where("created_at >= ? AND submission_id IN (?)", cutoff,
				s.db.Model(&submissions.Submission{}).Select("id").Where("room_id = ? AND is_visible = ?", room.ID, true)).
			Find(&events).Error; err != nil {
			s.logError(opRoomHeat, "event_select_failed", err, zap.String("room_id", room.ID))
			return nil, newServiceError(opRoomHeat, "event_select_failed", err)
		}

		timestamps := make([]time.Time, 0, len(events))
		boosters := make(map[string]struct{}, len(events))
		for _, event := range events {
			timestamps = append(timestamps, event.CreatedAt)
			boosters[event.UserID] = struct{}{}
		}

		report := scoring.MeasureVelocity(timestamps, now)
		heat := scoring.AccelerationScore(report.Rate5Min, report.Rate15Min, report.Rate1Hour) *
			scoring.DiversityMultiplier(len(boosters))

		board = append(board, RoomHeat{
			RoomID:         room.ID,
			Name:           room.Name,
			Heat:           heat,
			ActiveBoosters: len(boosters),
		})
	}

	sort.SliceStable(board, func(i, j int) bool {
		return board[i].Heat > board[j].Heat
	})
	return board, nil
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
	logger := s.logger
	if logger == nil {
		logger = noOpLogger
	}
	logger.Error("rooms service error", attrs...)
}
