// Package achievement holds the static achievement catalog and the rules
// deciding when an entry qualifies for unlock.
package achievement

import (
	"fmt"

	"github.com/plantpal/plantpal/internal/model"
)

// Category selects which progress metric a definition is measured against.
type Category string

const (
	CategoryConversation Category = "conversation"
	CategoryGrowth       Category = "growth"
	CategoryStreak       Category = "streak"
	CategoryMood         Category = "mood"
)

// Rarity is display metadata only.
type Rarity string

const (
	RarityCommon    Rarity = "common"
	RarityRare      Rarity = "rare"
	RarityEpic      Rarity = "epic"
	RarityLegendary Rarity = "legendary"
)

// PositiveStreakID is the compound mood achievement.
const PositiveStreakID = "positive_streak"

const (
	positiveWindow = 5
	positiveNeeded = 4
)

// Definition is one catalog entry. Measure overrides the category metric
// when set; qualification is always Measure(m) >= Target.
type Definition struct {
	ID          string
	Title       string
	Description string
	Icon        string
	Category    Category
	Rarity      Rarity
	Target      int
	Measure     func(Metrics) int
}

// Metrics are the progress values an evaluation runs against.
type Metrics struct {
	Conversations int
	Level         int
	StreakDays    int
	MoodEntries   int
	// RecentMoods is the mood history, oldest first. Only the tail is read.
	RecentMoods []model.Mood
}

// Value returns the progress metric for def.
func (d Definition) Value(m Metrics) int {
	if d.Measure != nil {
		return d.Measure(m)
	}
	switch d.Category {
	case CategoryConversation:
		return m.Conversations
	case CategoryGrowth:
		return m.Level
	case CategoryStreak:
		return m.StreakDays
	case CategoryMood:
		return m.moodCount()
	}
	return 0
}

// Record converts the definition into an unlock record for userID.
func (d Definition) Record(userID string) *model.Achievement {
	return &model.Achievement{
		UserID:        userID,
		AchievementID: d.ID,
		Title:         d.Title,
		Description:   d.Description,
		Icon:          d.Icon,
		Category:      string(d.Category),
		Rarity:        string(d.Rarity),
	}
}

func (m Metrics) moodCount() int {
	if len(m.RecentMoods) > m.MoodEntries {
		return len(m.RecentMoods)
	}
	return m.MoodEntries
}

// positiveRecent counts happy/excited moods among the last five entries.
// It reports zero until at least five entries exist.
func positiveRecent(m Metrics) int {
	if m.moodCount() < positiveWindow {
		return 0
	}
	tail := m.RecentMoods
	if len(tail) > positiveWindow {
		tail = tail[len(tail)-positiveWindow:]
	}
	n := 0
	for _, mood := range tail {
		if mood.Positive() {
			n++
		}
	}
	return n
}

// Catalog is an ordered, id-unique set of definitions.
type Catalog struct {
	defs  []Definition
	index map[string]int
}

// NewCatalog builds a catalog preserving declaration order.
func NewCatalog(defs ...Definition) (*Catalog, error) {
	c := &Catalog{index: make(map[string]int, len(defs))}
	for _, d := range defs {
		if d.ID == "" {
			return nil, fmt.Errorf("achievement definition without id")
		}
		if d.Target <= 0 {
			return nil, fmt.Errorf("achievement %s: target must be positive", d.ID)
		}
		if _, dup := c.index[d.ID]; dup {
			return nil, fmt.Errorf("duplicate achievement id %s", d.ID)
		}
		c.index[d.ID] = len(c.defs)
		c.defs = append(c.defs, d)
	}
	return c, nil
}

// All returns the definitions in declaration order.
func (c *Catalog) All() []Definition {
	out := make([]Definition, len(c.defs))
	copy(out, c.defs)
	return out
}

// Lookup finds a definition by id.
func (c *Catalog) Lookup(id string) (Definition, bool) {
	i, ok := c.index[id]
	if !ok {
		return Definition{}, false
	}
	return c.defs[i], true
}

// Len returns the number of definitions.
func (c *Catalog) Len() int { return len(c.defs) }

var defaultCatalog = mustCatalog(defaultDefinitions()...)

// Default returns the built-in catalog.
func Default() *Catalog { return defaultCatalog }

func mustCatalog(defs ...Definition) *Catalog {
	c, err := NewCatalog(defs...)
	if err != nil {
		panic(err)
	}
	return c
}

func defaultDefinitions() []Definition {
	return []Definition{
		{ID: "first_chat", Title: "First Words", Description: "Had 1 conversation with PlantPal", Icon: "🌱", Category: CategoryConversation, Rarity: RarityCommon, Target: 1},
		{ID: "chatter_5", Title: "Getting Chatty", Description: "Had 5 conversations with PlantPal", Icon: "💬", Category: CategoryConversation, Rarity: RarityCommon, Target: 5},
		{ID: "chatter_10", Title: "Chatterbox", Description: "Had 10 conversations with PlantPal", Icon: "💬", Category: CategoryConversation, Rarity: RarityCommon, Target: 10},
		{ID: "chatter_25", Title: "Social Butterfly", Description: "Had 25 conversations with PlantPal", Icon: "🦋", Category: CategoryConversation, Rarity: RarityRare, Target: 25},
		{ID: "chatter_50", Title: "Communication Master", Description: "Had 50 conversations with PlantPal", Icon: "🗣️", Category: CategoryConversation, Rarity: RarityEpic, Target: 50},
		{ID: "chatter_100", Title: "Chat Champion", Description: "Had 100 conversations with PlantPal", Icon: "🗣️", Category: CategoryConversation, Rarity: RarityEpic, Target: 100},

		{ID: "level_3", Title: "Growing Up", Description: "Reached level 3", Icon: "🌿", Category: CategoryGrowth, Rarity: RarityCommon, Target: 3},
		{ID: "level_5", Title: "Growing Strong", Description: "Reached level 5", Icon: "🌿", Category: CategoryGrowth, Rarity: RarityCommon, Target: 5},
		{ID: "level_10", Title: "Flourishing", Description: "Reached level 10", Icon: "🌳", Category: CategoryGrowth, Rarity: RarityRare, Target: 10},
		{ID: "level_15", Title: "Mighty Oak", Description: "Reached level 15", Icon: "🌲", Category: CategoryGrowth, Rarity: RarityEpic, Target: 15},
		{ID: "level_20", Title: "Ancient Wisdom", Description: "Reached level 20", Icon: "🌲", Category: CategoryGrowth, Rarity: RarityLegendary, Target: 20},

		{ID: "streak_3", Title: "Consistency Seedling", Description: "3-day check-in streak", Icon: "📅", Category: CategoryStreak, Rarity: RarityCommon, Target: 3},
		{ID: "streak_7", Title: "Weekly Warrior", Description: "7-day check-in streak", Icon: "⭐", Category: CategoryStreak, Rarity: RarityRare, Target: 7},
		{ID: "streak_14", Title: "Two Week Champion", Description: "14-day check-in streak", Icon: "🔥", Category: CategoryStreak, Rarity: RarityEpic, Target: 14},
		{ID: "streak_30", Title: "Monthly Master", Description: "30-day check-in streak", Icon: "🏆", Category: CategoryStreak, Rarity: RarityLegendary, Target: 30},

		{ID: "mood_tracker", Title: "Self-Aware Sprout", Description: "Logged your first mood", Icon: "😊", Category: CategoryMood, Rarity: RarityCommon, Target: 1},
		{ID: "mood_7", Title: "Mindful Week", Description: "Logged 7 mood entries", Icon: "🧘", Category: CategoryMood, Rarity: RarityCommon, Target: 7},
		{ID: "mood_15", Title: "Emotional Explorer", Description: "Logged 15 mood entries", Icon: "🧠", Category: CategoryMood, Rarity: RarityRare, Target: 15},
		{ID: "mood_30", Title: "Emotional Intelligence", Description: "Logged 30 mood entries", Icon: "💭", Category: CategoryMood, Rarity: RarityEpic, Target: 30},
		{ID: "mood_50", Title: "Mood Master", Description: "Logged 50 mood entries", Icon: "💭", Category: CategoryMood, Rarity: RarityEpic, Target: 50},

		{ID: PositiveStreakID, Title: "Sunshine Streak", Description: "4 out of 5 recent moods were positive", Icon: "☀️", Category: CategoryMood, Rarity: RarityRare, Target: positiveNeeded, Measure: positiveRecent},
	}
}
