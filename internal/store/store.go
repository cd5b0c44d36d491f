package store

import (
	"context"

	"github.com/plantpal/plantpal/internal/model"
)

// Default page sizes used when a caller passes limit <= 0.
const (
	DefaultMoodLimit    = 100
	DefaultMessageLimit = 50
)

// Store exposes persistence operations required by services.
// Implementations live under internal/store/<driver>/ (memory, sqlite, postgres).
type Store interface {
	Stats() Stats
	Moods() Moods
	Achievements() Achievements
	Messages() Messages
}

// Stats holds exactly one PlantStats row per user.
type Stats interface {
	// Get returns model.ErrNotFound when the user has no row.
	Get(ctx context.Context, userID string) (*model.PlantStats, error)
	// Init inserts s unless a row exists and returns the stored row.
	Init(ctx context.Context, s *model.PlantStats) (*model.PlantStats, error)
	// Put upserts by user; last writer wins.
	Put(ctx context.Context, s *model.PlantStats) (*model.PlantStats, error)
	Delete(ctx context.Context, userID string) error
}

type Moods interface {
	Append(ctx context.Context, e *model.MoodEntry) (*model.MoodEntry, error)
	// List returns entries most recent first.
	List(ctx context.Context, userID string, limit int) ([]*model.MoodEntry, error)
	Count(ctx context.Context, userID string) (int, error)
	DeleteAll(ctx context.Context, userID string) error
}

type Achievements interface {
	// List returns unlock records most recent first.
	List(ctx context.Context, userID string) ([]*model.Achievement, error)
	// Record inserts a unlock keyed by (UserID, AchievementID). When the key
	// already exists the stored record is returned with inserted=false.
	Record(ctx context.Context, a *model.Achievement) (rec *model.Achievement, inserted bool, err error)
	DeleteAll(ctx context.Context, userID string) error
}

type Messages interface {
	Append(ctx context.Context, m *model.ChatMessage) (*model.ChatMessage, error)
	// List returns the newest limit messages, oldest first.
	List(ctx context.Context, userID string, limit int) ([]*model.ChatMessage, error)
	Count(ctx context.Context, userID string) (int, error)
	DeleteAll(ctx context.Context, userID string) error
}

// UserData is every record one user owns.
type UserData struct {
	Stats        *model.PlantStats
	Moods        []*model.MoodEntry
	Achievements []*model.Achievement
	Messages     []*model.ChatMessage
}

// Replacer is implemented by backends that swap all of a user's records in
// one atomic step. On error the previous records are left in place.
type Replacer interface {
	Replace(ctx context.Context, userID string, data *UserData) error
}
