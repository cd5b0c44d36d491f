package model

import "time"

// PlantType is the cosmetic growth tier derived from a plant's level.
type PlantType string

const (
	PlantSeedling    PlantType = "seedling"
	PlantSprout      PlantType = "sprout"
	PlantSapling     PlantType = "sapling"
	PlantTree        PlantType = "tree"
	PlantAncientTree PlantType = "ancient_tree"
)

// DefaultAverageMood is reported before any mood entry exists.
const DefaultAverageMood = 2.5

// PlantStats is the per-user progression aggregate.
type PlantStats struct {
	UserID             string     `json:"userId"`
	Level              int        `json:"level"`
	Experience         int        `json:"experience"`
	TotalConversations int        `json:"totalConversations"`
	TotalMoodEntries   int        `json:"totalMoodEntries"`
	AverageMood        float64    `json:"averageMood"`
	StreakDays         int        `json:"streakDays"`
	LongestStreak      int        `json:"longestStreak"`
	PlantType          PlantType  `json:"plantType"`
	LastInteractionAt  *time.Time `json:"lastInteractionAt,omitempty"`
	BirthDate          time.Time  `json:"birthDate"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

// NewPlantStats returns the defaults every user starts with.
func NewPlantStats(userID string, now time.Time) *PlantStats {
	return &PlantStats{
		UserID:      userID,
		Level:       1,
		AverageMood: DefaultAverageMood,
		PlantType:   PlantSeedling,
		BirthDate:   now,
		UpdatedAt:   now,
	}
}

// Clone returns a deep copy so callers can mutate freely.
func (s PlantStats) Clone() PlantStats {
	out := s
	if s.LastInteractionAt != nil {
		t := *s.LastInteractionAt
		out.LastInteractionAt = &t
	}
	return out
}

// MoodEntry is an immutable mood log record.
type MoodEntry struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Mood      Mood      `json:"mood"`
	Intensity int       `json:"intensity"`
	Notes     *string   `json:"notes,omitempty"`
	Triggers  []string  `json:"triggers,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Achievement is a permanent unlock record keyed by (UserID, AchievementID).
type Achievement struct {
	UserID        string    `json:"userId"`
	AchievementID string    `json:"achievementId"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Icon          string    `json:"icon"`
	Category      string    `json:"category"`
	Rarity        string    `json:"rarity"`
	UnlockedAt    time.Time `json:"unlockedAt"`
}

// Role identifies the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Sentiment is the coarse label attached to chat messages.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
	SentimentCrisis   Sentiment = "crisis"
)

// ChatMessage is one turn of a conversation transcript.
type ChatMessage struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Sentiment Sentiment `json:"sentiment,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Export bundles every record owned by a user.
type Export struct {
	PlantStats   *PlantStats    `json:"plantStats"`
	MoodEntries  []*MoodEntry   `json:"moodEntries"`
	Achievements []*Achievement `json:"achievements"`
	Messages     []*ChatMessage `json:"messages"`
	ExportDate   time.Time      `json:"exportDate"`
}
