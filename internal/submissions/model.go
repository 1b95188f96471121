package submissions

import "time"

// Submission is a single competition entry within a season. The scoring
// fields are denormalized output of the scoring engine. DisplayBoosts is the
// user-facing count and ActualBoosts the ranking-only weighted sum; the two
// are updated independently and must never be collapsed.
type Submission struct {
	ID              string    `gorm:"column:id;primaryKey;size:190;not null"`
	RoomID          string    `gorm:"column:room_id;size:190;not null;index"`
	SeasonID        string    `gorm:"column:season_id;size:190;not null;index"`
	Title           string    `gorm:"column:title;size:320;not null"`
	CreatorName     string    `gorm:"column:creator_name;size:320"`
	SubmitterID     string    `gorm:"column:submitter_id;size:190;not null"`
	SubmitterName   string    `gorm:"column:submitter_name;size:320"`
	Provider        string    `gorm:"column:provider;size:64"`
	ProviderTrackID string    `gorm:"column:provider_track_id;size:190"`
	MediaURL        string    `gorm:"column:media_url;size:512"`
	DisplayBoosts   int       `gorm:"column:display_boosts;not null;default:0"`
	ActualBoosts    float64   `gorm:"column:actual_boosts;not null;default:0"`
	BoostVelocity   float64   `gorm:"column:boost_velocity;not null;default:0"`
	VelocityTrend   string    `gorm:"column:velocity_trend;size:16;not null;default:steady"`
	IsRising        bool      `gorm:"column:is_rising;not null;default:false"`
	RisingType      string    `gorm:"column:rising_type;size:16;not null;default:''"`
	IsTrending      bool      `gorm:"column:is_trending;not null;default:false"`
	IsVisible       bool      `gorm:"column:is_visible;not null"`
	SubmittedAt     time.Time `gorm:"column:submitted_at;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Submission) TableName() string {
	return "submissions"
}

// UserBoost is the authoritative per-user boost aggregate: one row per
// (submission, user) pair. BoostCount only increases and LastBoostAt only
// moves forward.
type UserBoost struct {
	SubmissionID string    `gorm:"column:submission_id;primaryKey;size:190;not null"`
	UserID       string    `gorm:"column:user_id;primaryKey;size:190;not null"`
	BoostCount   int       `gorm:"column:boost_count;not null;default:0"`
	LastBoostAt  time.Time `gorm:"column:last_boost_at;not null"`
}

// TableName provides the explicit table binding for GORM.
func (UserBoost) TableName() string {
	return "user_boosts"
}

// BoostEvent is the sliding-window event log backing velocity calculation.
// Rows older than one hour are pruned on every boost write; the cumulative
// history lives in UserBoost, not here.
type BoostEvent struct {
	EventID      string    `gorm:"column:event_id;primaryKey;size:190;not null"`
	SubmissionID string    `gorm:"column:submission_id;size:190;not null;index:idx_boost_events_submission_time,priority:1"`
	UserID       string    `gorm:"column:user_id;size:190;not null"`
	CreatedAt    time.Time `gorm:"column:created_at;not null;index:idx_boost_events_submission_time,priority:2"`
}

// TableName provides the explicit table binding for GORM.
func (BoostEvent) TableName() string {
	return "boost_events"
}
