package rooms

import "time"

// Room is a persistent community hosting a sequence of seasons.
type Room struct {
	ID          string    `gorm:"column:id;primaryKey;size:190;not null"`
	Name        string    `gorm:"column:name;size:320;not null"`
	Description string    `gorm:"column:description;size:1024"`
	OwnerID     string    `gorm:"column:owner_id;size:190;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Room) TableName() string {
	return "rooms"
}

// Phase is the derived lifecycle state of a season.
type Phase string

const (
	PhaseUpcoming  Phase = "upcoming"
	PhaseActive    Phase = "active"
	PhaseVoting    Phase = "voting"
	PhaseCompleted Phase = "completed"
)

// Season is a time-boxed competition period within a room. The phase is
// derived from the timestamps at read time rather than stored.
type Season struct {
	ID           string    `gorm:"column:id;primaryKey;size:190;not null"`
	RoomID       string    `gorm:"column:room_id;size:190;not null;index"`
	Name         string    `gorm:"column:name;size:320;not null"`
	StartsAt     time.Time `gorm:"column:starts_at;not null"`
	EndsAt       time.Time `gorm:"column:ends_at;not null"`
	VotingEndsAt time.Time `gorm:"column:voting_ends_at;not null"`
	CreatedAt    time.Time `gorm:"column:created_at;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Season) TableName() string {
	return "seasons"
}

// PhaseAt reports the season's lifecycle state at the given instant.
func (s Season) PhaseAt(now time.Time) Phase {
	switch {
	case now.Before(s.StartsAt):
		return PhaseUpcoming
	case now.Before(s.EndsAt):
		return PhaseActive
	case now.Before(s.VotingEndsAt):
		return PhaseVoting
	default:
		return PhaseCompleted
	}
}
