package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/zawar-mughal/echo-groove-sub000/internal/auth"
	"github.com/zawar-mughal/echo-groove-sub000/internal/rooms"
	"github.com/zawar-mughal/echo-groove-sub000/internal/submissions"
)

const userIDContextKey = "groove_user_id"

const heartbeatInterval = 25 * time.Second

var (
	errMissingSessionVerifier   = errors.New("session verifier dependency required")
	errMissingTokenManager      = errors.New("token manager dependency required")
	errMissingIdentityResolver  = errors.New("identity resolver dependency required")
	errMissingRoomsService      = errors.New("rooms service dependency required")
	errMissingSubmissionService = errors.New("submissions service dependency required")
	errInvalidAuthorization     = errors.New("authorization header missing or invalid")
)

// SessionVerifier validates the hosted-auth session cookie on a request.
type SessionVerifier interface {
	ValidateRequest(r *http.Request) (auth.SessionClaims, error)
}

// APITokenManager issues and validates the backend bearer tokens handed out
// after session exchange.
type APITokenManager interface {
	IssueAPIToken(ctx context.Context, userID string) (string, int64, error)
	ValidateToken(token string) (string, error)
}

// IdentityResolver maps session claims to a canonical user id.
type IdentityResolver interface {
	ResolveCanonicalUserID(claims auth.SessionClaims) (string, error)
}

// LeaderboardReader serves the cached season leaderboard. Optional; when nil
// the leaderboard route answers 404.
type LeaderboardReader interface {
	TopSubmissions(ctx context.Context, seasonID string, limit int64) ([]string, error)
}

type serviceCoder interface {
	Code() string
}

type Dependencies struct {
	Sessions    SessionVerifier
	Tokens      APITokenManager
	Identities  IdentityResolver
	Rooms       *rooms.Service
	Submissions *submissions.Service
	Leaderboard LeaderboardReader
	Dispatcher  *RealtimeDispatcher
	Logger      *zap.Logger
}

func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Sessions == nil {
		return nil, errMissingSessionVerifier
	}
	if deps.Tokens == nil {
		return nil, errMissingTokenManager
	}
	if deps.Identities == nil {
		return nil, errMissingIdentityResolver
	}
	if deps.Rooms == nil {
		return nil, errMissingRoomsService
	}
	if deps.Submissions == nil {
		return nil, errMissingSubmissionService
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	dispatcher := deps.Dispatcher
	if dispatcher == nil {
		dispatcher = NewRealtimeDispatcher()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	handler := &httpHandler{
		sessions:    deps.Sessions,
		tokens:      deps.Tokens,
		identities:  deps.Identities,
		rooms:       deps.Rooms,
		submissions: deps.Submissions,
		leaderboard: deps.Leaderboard,
		dispatcher:  dispatcher,
		logger:      logger,
	}

	router.POST("/auth/session", handler.handleSessionExchange)

	protected := router.Group("/")
	protected.Use(handler.authorizeRequest)
	protected.POST("/rooms", handler.handleCreateRoom)
	protected.GET("/rooms/heat", handler.handleRoomHeat)
	protected.POST("/rooms/:roomID/seasons", handler.handleCreateSeason)
	protected.GET("/rooms/:roomID/seasons", handler.handleListSeasons)
	protected.GET("/rooms/:roomID/seasons/active", handler.handleActiveSeason)
	protected.POST("/seasons/:seasonID/submissions", handler.handleCreateSubmission)
	protected.GET("/seasons/:seasonID/ranking", handler.handleSeasonRanking)
	protected.GET("/seasons/:seasonID/leaderboard", handler.handleSeasonLeaderboard)
	protected.GET("/seasons/:seasonID/stats", handler.handleSeasonStats)
	protected.GET("/seasons/:seasonID/events", handler.handleSeasonEvents)
	protected.POST("/submissions/:submissionID/boost", handler.handleBoost)
	protected.POST("/submissions/:submissionID/visibility", handler.handleSetVisibility)

	return router, nil
}

type httpHandler struct {
	sessions    SessionVerifier
	tokens      APITokenManager
	identities  IdentityResolver
	rooms       *rooms.Service
	submissions *submissions.Service
	leaderboard LeaderboardReader
	dispatcher  *RealtimeDispatcher
	logger      *zap.Logger
}

type authResponsePayload struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

func (h *httpHandler) handleSessionExchange(c *gin.Context) {
	claims, err := h.sessions.ValidateRequest(c.Request)
	if err != nil {
		h.logger.Info("session validation failed", zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	userID, err := h.identities.ResolveCanonicalUserID(claims)
	if err != nil {
		h.logger.Warn("identity resolution failed", zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	token, expiresIn, err := h.tokens.IssueAPIToken(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("failed to issue api token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token_issue_failed"})
		return
	}

	c.JSON(http.StatusOK, authResponsePayload{
		AccessToken: token,
		ExpiresIn:   expiresIn,
		TokenType:   "Bearer",
	})
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
			return
		}
		subject, err := h.tokens.ValidateToken(token)
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				h.logger.Info("token validation failed", zap.Error(err))
			} else {
				h.logger.Warn("token validation failed", zap.Error(err))
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Set(userIDContextKey, subject)
		c.Next()
		return
	}

	// browser clients can fall back to the hosted-auth session cookie
	claims, err := h.sessions.ValidateRequest(c.Request)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	userID, err := h.identities.ResolveCanonicalUserID(claims)
	if err != nil {
		h.logger.Warn("identity resolution failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(userIDContextKey, userID)
	c.Next()
}

type createRoomPayload struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type roomPayload struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	OwnerID     string    `json:"owner_id"`
	CreatedAt   time.Time `json:"created_at"`
}

func (h *httpHandler) handleCreateRoom(c *gin.Context) {
	userID := c.GetString(userIDContextKey)

	var request createRoomPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	room, err := h.rooms.CreateRoom(c.Request.Context(), request.Name, request.Description, userID)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, roomPayload{
		ID:          room.ID,
		Name:        room.Name,
		Description: room.Description,
		OwnerID:     room.OwnerID,
		CreatedAt:   room.CreatedAt,
	})
}

type createSeasonPayload struct {
	Name         string    `json:"name"`
	StartsAt     time.Time `json:"starts_at"`
	EndsAt       time.Time `json:"ends_at"`
	VotingEndsAt time.Time `json:"voting_ends_at"`
}

type seasonPayload struct {
	ID           string    `json:"id"`
	RoomID       string    `json:"room_id"`
	Name         string    `json:"name"`
	Phase        string    `json:"phase"`
	StartsAt     time.Time `json:"starts_at"`
	EndsAt       time.Time `json:"ends_at"`
	VotingEndsAt time.Time `json:"voting_ends_at"`
}

func (h *httpHandler) seasonPayload(season rooms.Season, now time.Time) seasonPayload {
	return seasonPayload{
		ID:           season.ID,
		RoomID:       season.RoomID,
		Name:         season.Name,
		Phase:        string(season.PhaseAt(now)),
		StartsAt:     season.StartsAt,
		EndsAt:       season.EndsAt,
		VotingEndsAt: season.VotingEndsAt,
	}
}

func (h *httpHandler) handleCreateSeason(c *gin.Context) {
	var request createSeasonPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	season, err := h.rooms.CreateSeason(c.Request.Context(), rooms.CreateSeasonRequest{
		RoomID:       c.Param("roomID"),
		Name:         request.Name,
		StartsAt:     request.StartsAt,
		EndsAt:       request.EndsAt,
		VotingEndsAt: request.VotingEndsAt,
	})
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, h.seasonPayload(season, time.Now().UTC()))
}

func (h *httpHandler) handleListSeasons(c *gin.Context) {
	seasons, err := h.rooms.ListSeasons(c.Request.Context(), c.Param("roomID"))
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	now := time.Now().UTC()
	payload := make([]seasonPayload, 0, len(seasons))
	for _, season := range seasons {
		payload = append(payload, h.seasonPayload(season, now))
	}
	c.JSON(http.StatusOK, gin.H{"seasons": payload})
}

func (h *httpHandler) handleActiveSeason(c *gin.Context) {
	season, err := h.rooms.ActiveSeason(c.Request.Context(), c.Param("roomID"))
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.seasonPayload(season, time.Now().UTC()))
}

type roomHeatPayload struct {
	RoomID         string  `json:"room_id"`
	Name           string  `json:"name"`
	Heat           float64 `json:"heat"`
	ActiveBoosters int     `json:"active_boosters"`
}

func (h *httpHandler) handleRoomHeat(c *gin.Context) {
	board, err := h.rooms.RoomHeatBoard(c.Request.Context())
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	payload := make([]roomHeatPayload, 0, len(board))
	for _, row := range board {
		payload = append(payload, roomHeatPayload{
			RoomID:         row.RoomID,
			Name:           row.Name,
			Heat:           row.Heat,
			ActiveBoosters: row.ActiveBoosters,
		})
	}
	c.JSON(http.StatusOK, gin.H{"rooms": payload})
}

type createSubmissionPayload struct {
	RoomID          string `json:"room_id"`
	Title           string `json:"title"`
	CreatorName     string `json:"creator_name"`
	SubmitterName   string `json:"submitter_name"`
	Provider        string `json:"provider"`
	ProviderTrackID string `json:"provider_track_id"`
	MediaURL        string `json:"media_url"`
}

type submissionPayload struct {
	ID              string    `json:"id"`
	RoomID          string    `json:"room_id"`
	SeasonID        string    `json:"season_id"`
	Title           string    `json:"title"`
	CreatorName     string    `json:"creator_name"`
	SubmitterID     string    `json:"submitter_id"`
	SubmitterName   string    `json:"submitter_name"`
	Provider        string    `json:"provider"`
	ProviderTrackID string    `json:"provider_track_id"`
	MediaURL        string    `json:"media_url"`
	DisplayBoosts   int       `json:"display_boosts"`
	BoostVelocity   float64   `json:"boost_velocity"`
	VelocityTrend   string    `json:"velocity_trend"`
	IsRising        bool      `json:"is_rising"`
	RisingType      string    `json:"rising_type,omitempty"`
	IsTrending      bool      `json:"is_trending"`
	IsVisible       bool      `json:"is_visible"`
	SubmittedAt     time.Time `json:"submitted_at"`
}

// toSubmissionPayload deliberately omits the weighted score; clients only
// ever see the raw display count.
func toSubmissionPayload(submission submissions.Submission) submissionPayload {
	return submissionPayload{
		ID:              submission.ID,
		RoomID:          submission.RoomID,
		SeasonID:        submission.SeasonID,
		Title:           submission.Title,
		CreatorName:     submission.CreatorName,
		SubmitterID:     submission.SubmitterID,
		SubmitterName:   submission.SubmitterName,
		Provider:        submission.Provider,
		ProviderTrackID: submission.ProviderTrackID,
		MediaURL:        submission.MediaURL,
		DisplayBoosts:   submission.DisplayBoosts,
		BoostVelocity:   submission.BoostVelocity,
		VelocityTrend:   submission.VelocityTrend,
		IsRising:        submission.IsRising,
		RisingType:      submission.RisingType,
		IsTrending:      submission.IsTrending,
		IsVisible:       submission.IsVisible,
		SubmittedAt:     submission.SubmittedAt,
	}
}

func (h *httpHandler) handleCreateSubmission(c *gin.Context) {
	userID := c.GetString(userIDContextKey)

	var request createSubmissionPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	submission, err := h.submissions.Create(c.Request.Context(), submissions.CreateRequest{
		RoomID:          request.RoomID,
		SeasonID:        c.Param("seasonID"),
		Title:           request.Title,
		CreatorName:     request.CreatorName,
		SubmitterID:     userID,
		SubmitterName:   request.SubmitterName,
		Provider:        request.Provider,
		ProviderTrackID: request.ProviderTrackID,
		MediaURL:        request.MediaURL,
	})
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toSubmissionPayload(submission))
}

type boostResponsePayload struct {
	Submission submissionPayload `json:"submission"`
	Rate5Min   float64           `json:"rate_5min"`
	Rate15Min  float64           `json:"rate_15min"`
	Rate1Hour  float64           `json:"rate_1hour"`
	Momentum   float64           `json:"momentum"`
}

func (h *httpHandler) handleBoost(c *gin.Context) {
	userID := c.GetString(userIDContextKey)

	result, err := h.submissions.Boost(c.Request.Context(), c.Param("submissionID"), userID)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}

	h.dispatcher.Publish(RealtimeMessage{
		SeasonID:      result.Submission.SeasonID,
		EventType:     RealtimeEventBoostChanged,
		SubmissionID:  result.Submission.ID,
		DisplayBoosts: result.Submission.DisplayBoosts,
		IsTrending:    result.Submission.IsTrending,
		Timestamp:     time.Now().UTC(),
	})

	c.JSON(http.StatusOK, boostResponsePayload{
		Submission: toSubmissionPayload(result.Submission),
		Rate5Min:   result.Velocity.Rate5Min,
		Rate15Min:  result.Velocity.Rate15Min,
		Rate1Hour:  result.Velocity.Rate1Hour,
		Momentum:   result.Velocity.Momentum,
	})
}

type rankingResponsePayload struct {
	Trending       *submissionPayload  `json:"trending"`
	Ranked         []submissionPayload `json:"ranked"`
	CompetingCount int                 `json:"competing_count"`
}

func (h *httpHandler) handleSeasonRanking(c *gin.Context) {
	view, err := h.submissions.SeasonRanking(c.Request.Context(), c.Param("seasonID"))
	if err != nil {
		h.respondServiceError(c, err)
		return
	}

	response := rankingResponsePayload{
		Ranked:         make([]submissionPayload, 0, len(view.Ranked)),
		CompetingCount: view.CompetingCount,
	}
	if view.Trending != nil {
		payload := toSubmissionPayload(*view.Trending)
		response.Trending = &payload
	}
	for _, submission := range view.Ranked {
		response.Ranked = append(response.Ranked, toSubmissionPayload(submission))
	}

	if view.TrendingChanged {
		message := RealtimeMessage{
			SeasonID:  c.Param("seasonID"),
			EventType: RealtimeEventTrendingChanged,
			Timestamp: time.Now().UTC(),
		}
		if view.Trending != nil {
			message.SubmissionID = view.Trending.ID
			message.DisplayBoosts = view.Trending.DisplayBoosts
			message.IsTrending = true
		}
		h.dispatcher.Publish(message)
	}

	c.JSON(http.StatusOK, response)
}

func (h *httpHandler) handleSeasonLeaderboard(c *gin.Context) {
	if h.leaderboard == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "leaderboard_unavailable"})
		return
	}

	limit := int64(20)
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
			return
		}
		limit = parsed
	}

	ids, err := h.leaderboard.TopSubmissions(c.Request.Context(), c.Param("seasonID"), limit)
	if err != nil {
		h.logger.Error("leaderboard read failed", zap.String("season_id", c.Param("seasonID")), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "leaderboard_read_failed"})
		return
	}
	if ids == nil {
		ids = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"submission_ids": ids})
}

type statsResponsePayload struct {
	SubmissionCount int `json:"submission_count"`
	DisplayBoosts   int `json:"display_boosts"`
	CompetingCount  int `json:"competing_count"`
}

func (h *httpHandler) handleSeasonStats(c *gin.Context) {
	stats, err := h.submissions.SeasonStats(c.Request.Context(), c.Param("seasonID"))
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, statsResponsePayload{
		SubmissionCount: stats.SubmissionCount,
		DisplayBoosts:   stats.DisplayBoosts,
		CompetingCount:  stats.CompetingCount,
	})
}

type visibilityPayload struct {
	Visible *bool `json:"visible"`
}

func (h *httpHandler) handleSetVisibility(c *gin.Context) {
	var request visibilityPayload
	if err := c.ShouldBindJSON(&request); err != nil || request.Visible == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	if err := h.submissions.SetVisibility(c.Request.Context(), c.Param("submissionID"), *request.Visible); err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"visible": *request.Visible})
}

func (h *httpHandler) handleSeasonEvents(c *gin.Context) {
	seasonID := c.Param("seasonID")
	stream, cleanup := h.dispatcher.Subscribe(c.Request.Context(), seasonID)
	defer cleanup()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	c.Stream(func(w io.Writer) bool {
		select {
		case message, ok := <-stream:
			if !ok {
				return false
			}
			c.SSEvent(message.EventType, message)
			return true
		case <-heartbeat.C:
			c.SSEvent(realtimeEventHeartbeat, gin.H{"timestamp": time.Now().UTC().Unix()})
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

func (h *httpHandler) respondServiceError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	code := "internal_error"

	var coded serviceCoder
	if errors.As(err, &coded) {
		code = coded.Code()
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound),
			strings.HasSuffix(code, "_not_found"),
			strings.HasSuffix(code, "no_active_season"):
			status = http.StatusNotFound
		case strings.HasSuffix(code, "missing_database"):
			// dependency failure, not client input
		case strings.Contains(code, ".missing_"),
			strings.Contains(code, ".invalid_"):
			status = http.StatusBadRequest
		}
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", zap.String("code", code), zap.Error(err))
	}
	c.JSON(status, gin.H{"error": code})
}
