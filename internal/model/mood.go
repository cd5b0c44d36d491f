package model

// Mood is one of the fixed mood labels a user can log.
type Mood string

const (
	MoodSad     Mood = "sad"
	MoodNeutral Mood = "neutral"
	MoodContent Mood = "content"
	MoodHappy   Mood = "happy"
	MoodExcited Mood = "excited"
)

// Moods lists every mood in ascending valence order.
var Moods = []Mood{MoodSad, MoodNeutral, MoodContent, MoodHappy, MoodExcited}

// Valid reports whether m is one of the known labels.
func (m Mood) Valid() bool {
	switch m {
	case MoodSad, MoodNeutral, MoodContent, MoodHappy, MoodExcited:
		return true
	}
	return false
}

// Valence maps a mood onto 1..5. Unknown labels count as neutral.
func (m Mood) Valence() int {
	switch m {
	case MoodSad:
		return 1
	case MoodNeutral:
		return 2
	case MoodContent:
		return 3
	case MoodHappy:
		return 4
	case MoodExcited:
		return 5
	default:
		return 2
	}
}

// Positive reports whether the mood counts toward the positive streak.
func (m Mood) Positive() bool {
	return m == MoodHappy || m == MoodExcited
}
