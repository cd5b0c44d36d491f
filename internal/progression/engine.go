// Package progression turns activity events into plant stat transitions.
//
// The engine performs no I/O. Each Apply method is a pure function of the
// current stats, a Snapshot of achievement-relevant history, and the
// injected clock. Persisting the Result is the caller's job.
package progression

import (
	"time"

	"github.com/plantpal/plantpal/internal/achievement"
	"github.com/plantpal/plantpal/internal/model"
)

// Snapshot carries the history needed for achievement evaluation.
type Snapshot struct {
	Unlocked achievement.Set
	// MoodCount is the user's total number of mood entries.
	MoodCount int
	// RecentMoods is mood history oldest first; the last five matter.
	RecentMoods []model.Mood
}

// Result is the outcome of applying one event.
type Result struct {
	Stats     model.PlantStats
	Unlocked  []achievement.Definition
	LeveledUp bool
	Awarded   int
	// Applied is false when the event was rejected as a no-op.
	Applied bool
}

// Engine applies activity events to PlantStats.
type Engine struct {
	clock   Clock
	loc     *time.Location
	catalog *achievement.Catalog
	policy  LevelPolicy
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock injects the time source.
func WithClock(c Clock) Option { return func(e *Engine) { e.clock = c } }

// WithLocation sets where calendar days begin and end.
func WithLocation(loc *time.Location) Option { return func(e *Engine) { e.loc = loc } }

// WithCatalog replaces the default achievement catalog.
func WithCatalog(c *achievement.Catalog) Option { return func(e *Engine) { e.catalog = c } }

// WithLevelPolicy selects how surplus experience is handled.
func WithLevelPolicy(p LevelPolicy) Option { return func(e *Engine) { e.policy = p } }

// NewEngine builds an engine with UTC days, the wall clock and the default catalog.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		clock:   SystemClock,
		loc:     time.UTC,
		catalog: achievement.Default(),
		policy:  LevelReset,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.loc == nil {
		e.loc = time.UTC
	}
	return e
}

// Catalog returns the catalog the engine evaluates against.
func (e *Engine) Catalog() *achievement.Catalog { return e.catalog }

// Now returns the engine's current time.
func (e *Engine) Now() time.Time { return e.clock.Now() }

// Location returns where calendar days are evaluated.
func (e *Engine) Location() *time.Location { return e.loc }

// ApplyConversationCompleted awards a conversation turn.
func (e *Engine) ApplyConversationCompleted(stats model.PlantStats, snap Snapshot) Result {
	now := e.clock.Now()
	next := stats.Clone()
	next.TotalConversations++
	return e.award(next, stats.LastInteractionAt, now, ConversationAward, snap)
}

// ApplyDailyCheckIn awards the daily check-in at most once per calendar day.
func (e *Engine) ApplyDailyCheckIn(stats model.PlantStats, snap Snapshot) Result {
	now := e.clock.Now()
	if e.CheckedInToday(stats) {
		return Result{Stats: stats.Clone()}
	}
	return e.award(stats.Clone(), stats.LastInteractionAt, now, CheckInAward, snap)
}

// CheckedInToday reports whether stats already carry activity for today.
func (e *Engine) CheckedInToday(stats model.PlantStats) bool {
	if stats.LastInteractionAt == nil {
		return false
	}
	return dayOf(*stats.LastInteractionAt, e.loc) == dayOf(e.clock.Now(), e.loc)
}

// ApplyMoodLogged records a new mood entry. moodEntryCount includes it.
// Mood logging awards no experience and leaves the streak alone.
func (e *Engine) ApplyMoodLogged(stats model.PlantStats, mood model.Mood, moodEntryCount int, snap Snapshot) Result {
	next := stats.Clone()
	if moodEntryCount < 1 {
		moodEntryCount = 1
	}
	prev := moodEntryCount - 1
	if stats.TotalMoodEntries < prev {
		prev = stats.TotalMoodEntries
	}
	if prev <= 0 {
		next.AverageMood = float64(mood.Valence())
	} else {
		next.AverageMood = (stats.AverageMood*float64(prev) + float64(mood.Valence())) / float64(prev+1)
	}
	if moodEntryCount > next.TotalMoodEntries {
		next.TotalMoodEntries = moodEntryCount
	}
	levelUp(&next, e.policy)

	if snap.MoodCount < next.TotalMoodEntries {
		snap.MoodCount = next.TotalMoodEntries
	}
	return Result{
		Stats:    next,
		Unlocked: e.evaluate(next, snap),
		Applied:  true,
	}
}

// Normalize enforces the level and plant-type invariants on stats that did
// not come from the engine, such as imports.
func (e *Engine) Normalize(stats model.PlantStats) model.PlantStats {
	next := stats.Clone()
	if next.TotalConversations < 0 {
		next.TotalConversations = 0
	}
	if next.TotalMoodEntries < 0 {
		next.TotalMoodEntries = 0
	}
	if next.StreakDays < 0 {
		next.StreakDays = 0
	}
	if next.LongestStreak < next.StreakDays {
		next.LongestStreak = next.StreakDays
	}
	levelUp(&next, e.policy)
	return next
}

// Evaluate returns achievements newly qualifying for stats without applying
// any event.
func (e *Engine) Evaluate(stats model.PlantStats, snap Snapshot) []achievement.Definition {
	if snap.MoodCount < stats.TotalMoodEntries {
		snap.MoodCount = stats.TotalMoodEntries
	}
	return e.evaluate(stats, snap)
}

// Metrics builds evaluation metrics from stats and a snapshot.
func Metrics(stats model.PlantStats, snap Snapshot) achievement.Metrics {
	count := snap.MoodCount
	if stats.TotalMoodEntries > count {
		count = stats.TotalMoodEntries
	}
	return achievement.Metrics{
		Conversations: stats.TotalConversations,
		Level:         stats.Level,
		StreakDays:    stats.StreakDays,
		MoodEntries:   count,
		RecentMoods:   snap.RecentMoods,
	}
}

func (e *Engine) award(next model.PlantStats, last *time.Time, now time.Time, points int, snap Snapshot) Result {
	next.Experience += points
	next.StreakDays = e.nextStreak(next.StreakDays, last, now)
	if next.StreakDays > next.LongestStreak {
		next.LongestStreak = next.StreakDays
	}
	at := now
	next.LastInteractionAt = &at
	leveled := levelUp(&next, e.policy)

	return Result{
		Stats:     next,
		Unlocked:  e.evaluate(next, snap),
		LeveledUp: leveled,
		Awarded:   points,
		Applied:   true,
	}
}

// nextStreak applies the calendar continuity rule.
func (e *Engine) nextStreak(current int, last *time.Time, now time.Time) int {
	if last == nil {
		return 1
	}
	switch daysBetween(dayOf(*last, e.loc), dayOf(now, e.loc)) {
	case 0:
		if current < 1 {
			return 1
		}
		return current
	case 1:
		return current + 1
	default:
		return 1
	}
}

func (e *Engine) evaluate(stats model.PlantStats, snap Snapshot) []achievement.Definition {
	return e.catalog.Evaluate(Metrics(stats, snap), snap.Unlocked)
}
