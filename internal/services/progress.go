package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/plantpal/plantpal/internal/achievement"
	"github.com/plantpal/plantpal/internal/events"
	"github.com/plantpal/plantpal/internal/metrics"
	"github.com/plantpal/plantpal/internal/model"
	"github.com/plantpal/plantpal/internal/progression"
	"github.com/plantpal/plantpal/internal/store"
)

// Event labels used in metrics.
const (
	eventConversation = "conversation"
	eventCheckIn      = "checkin"
	eventMood         = "mood"
)

const (
	recentMoodWindow = 5
	// maxExportRecords caps moods and messages in one export.
	maxExportRecords = 50000
	maxNotesLen      = 1000
	maxTriggers      = 20
	maxTriggerLen    = 50
)

// ProgressService orchestrates the read-modify-write cycle around the
// progression engine for one user per call.
type ProgressService struct {
	store   store.Store
	engine  *progression.Engine
	bus     *events.Bus
	metrics *metrics.Metrics
	log     zerolog.Logger
	retry   retrier

	exportLimit int
}

// Option configures a ProgressService.
type Option func(*ProgressService)

// WithBus publishes refresh events on b.
func WithBus(b *events.Bus) Option { return func(s *ProgressService) { s.bus = b } }

// WithMetrics records counters on m.
func WithMetrics(m *metrics.Metrics) Option { return func(s *ProgressService) { s.metrics = m } }

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option { return func(s *ProgressService) { s.log = l } }

// WithRetryPolicy overrides DefaultRetryPolicy.
func WithRetryPolicy(p RetryPolicy) Option { return func(s *ProgressService) { s.retry.policy = p } }

func NewProgressService(st store.Store, engine *progression.Engine, opts ...Option) *ProgressService {
	s := &ProgressService{
		store:  st,
		engine: engine,
		log:    zerolog.Nop(),
		retry:  retrier{policy: DefaultRetryPolicy},

		exportLimit: maxExportRecords,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.retry.metrics = s.metrics
	s.retry.log = s.log
	return s
}

// Engine returns the progression engine in use.
func (s *ProgressService) Engine() *progression.Engine { return s.engine }

// Outcome is the result of one activity event.
type Outcome struct {
	Stats     *model.PlantStats    `json:"stats"`
	Unlocked  []*model.Achievement `json:"unlocked"`
	LeveledUp bool                 `json:"leveledUp"`
	Awarded   int                  `json:"experienceAwarded"`
	Applied   bool                 `json:"applied"`
}

// StatsView adds derived fields to the stored stats.
type StatsView struct {
	*model.PlantStats
	RequiredExperience int  `json:"requiredExperience"`
	CheckedInToday     bool `json:"checkedInToday"`
}

// MoodInput is a mood log request.
type MoodInput struct {
	Mood      model.Mood `json:"mood"`
	Intensity int        `json:"intensity"`
	Notes     *string    `json:"notes,omitempty"`
	Triggers  []string   `json:"triggers,omitempty"`
}

// MoodOutcome pairs the stored entry with the progression outcome.
type MoodOutcome struct {
	Entry *model.MoodEntry `json:"entry"`
	*Outcome
}

// AchievementStatus is a catalog entry joined with the user's unlock record.
type AchievementStatus struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Icon        string     `json:"icon"`
	Category    string     `json:"category"`
	Rarity      string     `json:"rarity"`
	Target      int        `json:"target"`
	Current     int        `json:"current"`
	Progress    float64    `json:"progress"`
	Unlocked    bool       `json:"unlocked"`
	UnlockedAt  *time.Time `json:"unlockedAt,omitempty"`
}

func (s *ProgressService) gateway(userID string) (*store.Gateway, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, NewValidationError("userId", "is required")
	}
	return store.NewGateway(s.store, userID, s.engine.Now)
}

// RecordConversation applies a completed conversation turn.
func (s *ProgressService) RecordConversation(ctx context.Context, userID string) (*Outcome, error) {
	return s.applyActivity(ctx, userID, eventConversation, s.engine.ApplyConversationCompleted)
}

// CheckIn applies the daily check-in. A repeat on the same day returns an
// outcome with Applied=false and changes nothing.
func (s *ProgressService) CheckIn(ctx context.Context, userID string) (*Outcome, error) {
	return s.applyActivity(ctx, userID, eventCheckIn, s.engine.ApplyDailyCheckIn)
}

func (s *ProgressService) applyActivity(ctx context.Context, userID, event string,
	apply func(model.PlantStats, progression.Snapshot) progression.Result) (*Outcome, error) {
	g, err := s.gateway(userID)
	if err != nil {
		return nil, err
	}
	stats, err := retryValue(ctx, s.retry, "get_stats", func() (*model.PlantStats, error) { return g.GetStats(ctx) })
	if err != nil {
		return nil, fmt.Errorf("load stats: %w", err)
	}
	snap, err := s.snapshot(ctx, g)
	if err != nil {
		return nil, err
	}
	return s.commit(ctx, g, event, stats, apply(*stats, snap))
}

// LogMood stores a mood entry and updates the running average. Mood
// logging awards no experience.
func (s *ProgressService) LogMood(ctx context.Context, userID string, in MoodInput) (*MoodOutcome, error) {
	if err := validateMood(in); err != nil {
		return nil, err
	}
	g, err := s.gateway(userID)
	if err != nil {
		return nil, err
	}

	// A fixed id makes a retried append after an ambiguous failure conflict
	// instead of duplicating.
	entry := model.MoodEntry{
		ID:        uuid.New().String(),
		Mood:      in.Mood,
		Intensity: in.Intensity,
		Notes:     in.Notes,
		Triggers:  cleanTriggers(in.Triggers),
	}
	saved, err := retryValue(ctx, s.retry, "append_mood", func() (*model.MoodEntry, error) { return g.AppendMoodEntry(ctx, entry) })
	if err != nil {
		return nil, fmt.Errorf("append mood: %w", err)
	}

	stats, err := retryValue(ctx, s.retry, "get_stats", func() (*model.PlantStats, error) { return g.GetStats(ctx) })
	if err != nil {
		return nil, fmt.Errorf("load stats: %w", err)
	}
	count, err := retryValue(ctx, s.retry, "count_moods", func() (int, error) { return g.CountMoodEntries(ctx) })
	if err != nil {
		return nil, fmt.Errorf("count moods: %w", err)
	}
	snap, err := s.snapshot(ctx, g)
	if err != nil {
		return nil, err
	}
	snap.MoodCount = count

	out, err := s.commit(ctx, g, eventMood, stats, s.engine.ApplyMoodLogged(*stats, saved.Mood, count, snap))
	if err != nil {
		return nil, err
	}
	s.publish(events.Event{Kind: events.KindMoodLogged, UserID: userID})
	return &MoodOutcome{Entry: saved, Outcome: out}, nil
}

// snapshot loads unlocks and the recent mood tail, oldest first.
func (s *ProgressService) snapshot(ctx context.Context, g *store.Gateway) (progression.Snapshot, error) {
	unlocked, err := retryValue(ctx, s.retry, "list_unlocks", func() (achievement.Set, error) { return g.ListUnlockedAchievementIDs(ctx) })
	if err != nil {
		return progression.Snapshot{}, fmt.Errorf("load unlocks: %w", err)
	}
	recent, err := retryValue(ctx, s.retry, "list_moods", func() ([]*model.MoodEntry, error) { return g.ListMoodEntries(ctx, recentMoodWindow) })
	if err != nil {
		return progression.Snapshot{}, fmt.Errorf("load moods: %w", err)
	}
	moods := make([]model.Mood, len(recent))
	for i, e := range recent {
		moods[len(recent)-1-i] = e.Mood
	}
	return progression.Snapshot{Unlocked: unlocked, RecentMoods: moods}, nil
}

// commit persists an applied result, records unlocks and publishes events.
func (s *ProgressService) commit(ctx context.Context, g *store.Gateway, event string, before *model.PlantStats, res progression.Result) (*Outcome, error) {
	if !res.Applied {
		if s.metrics != nil {
			s.metrics.EventsSkipped.WithLabelValues(event).Inc()
		}
		s.log.Debug().Str("user_id", g.UserID()).Str("event", event).Msg("event skipped")
		return &Outcome{Stats: before, Unlocked: []*model.Achievement{}}, nil
	}

	saved, err := retryValue(ctx, s.retry, "put_stats", func() (*model.PlantStats, error) { return g.PutStats(ctx, res.Stats) })
	if err != nil {
		return nil, fmt.Errorf("save stats: %w", err)
	}

	unlocked := make([]*model.Achievement, 0, len(res.Unlocked))
	for _, def := range res.Unlocked {
		var inserted bool
		rec, err := retryValue(ctx, s.retry, "record_unlock", func() (*model.Achievement, error) {
			r, ins, err := g.RecordUnlock(ctx, def)
			inserted = ins
			return r, err
		})
		if err != nil {
			return nil, fmt.Errorf("record unlock %s: %w", def.ID, err)
		}
		if !inserted {
			continue
		}
		unlocked = append(unlocked, rec)
		if s.metrics != nil {
			s.metrics.AchievementsUnlocked.WithLabelValues(def.ID).Inc()
		}
		s.log.Info().Str("user_id", g.UserID()).Str("achievement_id", def.ID).Msg("achievement unlocked")
		s.publish(events.Event{Kind: events.KindAchievementUnlocked, UserID: g.UserID(), AchievementID: def.ID})
	}

	if s.metrics != nil {
		s.metrics.EventsApplied.WithLabelValues(event).Inc()
	}
	if res.LeveledUp {
		if s.metrics != nil {
			s.metrics.LevelUps.Inc()
		}
		s.log.Info().Str("user_id", g.UserID()).Int("level", saved.Level).Msg("level up")
		s.publish(events.Event{Kind: events.KindLevelUp, UserID: g.UserID(), Level: saved.Level})
	}
	s.publish(events.Event{Kind: events.KindStatsUpdated, UserID: g.UserID(), Level: saved.Level})

	return &Outcome{
		Stats:     saved,
		Unlocked:  unlocked,
		LeveledUp: res.LeveledUp,
		Awarded:   res.Awarded,
		Applied:   true,
	}, nil
}

func (s *ProgressService) publish(evt events.Event) {
	if s.bus == nil {
		return
	}
	if evt.At.IsZero() {
		evt.At = s.engine.Now().UTC()
	}
	if !s.bus.Publish(evt) && s.metrics != nil {
		s.metrics.EventsDropped.Inc()
	}
}

// GetStats returns the user's stats, creating defaults on first access.
func (s *ProgressService) GetStats(ctx context.Context, userID string) (*StatsView, error) {
	g, err := s.gateway(userID)
	if err != nil {
		return nil, err
	}
	stats, err := retryValue(ctx, s.retry, "get_stats", func() (*model.PlantStats, error) { return g.GetStats(ctx) })
	if err != nil {
		return nil, err
	}
	return &StatsView{
		PlantStats:         stats,
		RequiredExperience: progression.RequiredExperience(stats.Level),
		CheckedInToday:     s.engine.CheckedInToday(*stats),
	}, nil
}

// ListMoods returns up to limit entries, most recent first.
func (s *ProgressService) ListMoods(ctx context.Context, userID string, limit int) ([]*model.MoodEntry, error) {
	g, err := s.gateway(userID)
	if err != nil {
		return nil, err
	}
	if limit < 0 {
		return nil, NewValidationError("limit", "must not be negative")
	}
	return retryValue(ctx, s.retry, "list_moods", func() ([]*model.MoodEntry, error) { return g.ListMoodEntries(ctx, limit) })
}

// ListAchievements joins the catalog with the user's unlocks, in catalog order.
func (s *ProgressService) ListAchievements(ctx context.Context, userID string) ([]AchievementStatus, error) {
	g, err := s.gateway(userID)
	if err != nil {
		return nil, err
	}
	stats, err := retryValue(ctx, s.retry, "get_stats", func() (*model.PlantStats, error) { return g.GetStats(ctx) })
	if err != nil {
		return nil, err
	}
	recs, err := retryValue(ctx, s.retry, "list_unlocks", func() ([]*model.Achievement, error) { return g.ListAchievements(ctx) })
	if err != nil {
		return nil, err
	}
	snap, err := s.snapshot(ctx, g)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*model.Achievement, len(recs))
	for _, r := range recs {
		byID[r.AchievementID] = r
	}

	m := progression.Metrics(*stats, snap)
	defs := s.engine.Catalog().All()
	out := make([]AchievementStatus, 0, len(defs))
	for _, d := range defs {
		st := AchievementStatus{
			ID:          d.ID,
			Title:       d.Title,
			Description: d.Description,
			Icon:        d.Icon,
			Category:    string(d.Category),
			Rarity:      string(d.Rarity),
			Target:      d.Target,
			Current:     d.Value(m),
			Progress:    achievement.Progress(d, m),
		}
		if r, ok := byID[d.ID]; ok {
			at := r.UnlockedAt
			st.Unlocked = true
			st.UnlockedAt = &at
			st.Progress = 1
		}
		out = append(out, st)
	}
	return out, nil
}

// Export bundles every record the user owns. It fails with
// model.ErrTooLarge rather than truncate when moods or messages exceed the
// export limit.
func (s *ProgressService) Export(ctx context.Context, userID string) (*model.Export, error) {
	g, err := s.gateway(userID)
	if err != nil {
		return nil, err
	}
	stats, err := retryValue(ctx, s.retry, "get_stats", func() (*model.PlantStats, error) { return g.GetStats(ctx) })
	if err != nil {
		return nil, err
	}
	// One past the limit tells a full export from a truncated one.
	moods, err := retryValue(ctx, s.retry, "list_moods", func() ([]*model.MoodEntry, error) { return g.ListMoodEntries(ctx, s.exportLimit+1) })
	if err != nil {
		return nil, err
	}
	if len(moods) > s.exportLimit {
		return nil, fmt.Errorf("%w: more than %d mood entries", model.ErrTooLarge, s.exportLimit)
	}
	recs, err := retryValue(ctx, s.retry, "list_unlocks", func() ([]*model.Achievement, error) { return g.ListAchievements(ctx) })
	if err != nil {
		return nil, err
	}
	msgs, err := retryValue(ctx, s.retry, "list_messages", func() ([]*model.ChatMessage, error) { return g.ListMessages(ctx, s.exportLimit+1) })
	if err != nil {
		return nil, err
	}
	if len(msgs) > s.exportLimit {
		return nil, fmt.Errorf("%w: more than %d chat messages", model.ErrTooLarge, s.exportLimit)
	}
	return &model.Export{
		PlantStats:   stats,
		MoodEntries:  nonNil(moods),
		Achievements: nonNil(recs),
		Messages:     nonNil(msgs),
		ExportDate:   s.engine.Now().UTC(),
	}, nil
}

// Import replaces the user's data with exp. Everything is validated before
// any stored record changes, and the swap itself is all or nothing: on error
// the user's previous data is still in place. Stats are normalized so the
// level and plant type invariants hold; unknown achievements are skipped.
func (s *ProgressService) Import(ctx context.Context, userID string, exp *model.Export) (*model.PlantStats, error) {
	if exp == nil {
		return nil, NewValidationError("body", "export is required")
	}
	if exp.PlantStats != nil {
		if err := validateImportedStats(exp.PlantStats); err != nil {
			return nil, err
		}
	}
	if len(exp.MoodEntries) > s.exportLimit {
		return nil, fmt.Errorf("%w: more than %d mood entries", model.ErrTooLarge, s.exportLimit)
	}
	if len(exp.Messages) > s.exportLimit {
		return nil, fmt.Errorf("%w: more than %d chat messages", model.ErrTooLarge, s.exportLimit)
	}
	for i, e := range exp.MoodEntries {
		if e == nil {
			return nil, NewValidationError(fmt.Sprintf("moodEntries[%d]", i), "is null")
		}
		if err := validateMood(MoodInput{Mood: e.Mood, Intensity: e.Intensity, Notes: e.Notes, Triggers: e.Triggers}); err != nil {
			return nil, err
		}
	}
	g, err := s.gateway(userID)
	if err != nil {
		return nil, err
	}

	now := s.engine.Now().UTC()
	stats := model.NewPlantStats(userID, now)
	if exp.PlantStats != nil {
		cp := exp.PlantStats.Clone()
		cp.UserID = userID
		if cp.BirthDate.IsZero() {
			cp.BirthDate = now
		}
		stats = &cp
	}
	if stats.TotalMoodEntries < len(exp.MoodEntries) {
		stats.TotalMoodEntries = len(exp.MoodEntries)
	}
	normalized := s.engine.Normalize(*stats)

	data := store.UserData{Stats: &normalized}
	for _, e := range exp.MoodEntries {
		entry := *e
		entry.ID = uuid.New().String()
		entry.Triggers = cleanTriggers(e.Triggers)
		data.Moods = append(data.Moods, &entry)
	}
	for _, a := range exp.Achievements {
		if a == nil {
			continue
		}
		if _, ok := s.engine.Catalog().Lookup(a.AchievementID); !ok {
			s.log.Warn().Str("user_id", userID).Str("achievement_id", a.AchievementID).Msg("skipping unknown achievement on import")
			continue
		}
		rec := *a
		data.Achievements = append(data.Achievements, &rec)
	}
	for _, m := range exp.Messages {
		if m == nil {
			continue
		}
		msg := *m
		msg.ID = uuid.New().String()
		data.Messages = append(data.Messages, &msg)
	}

	if err := s.retry.do(ctx, "replace_user", func() error { return g.Replace(ctx, data) }); err != nil {
		return nil, fmt.Errorf("import: %w", err)
	}
	saved, err := retryValue(ctx, s.retry, "get_stats", func() (*model.PlantStats, error) { return g.GetStats(ctx) })
	if err != nil {
		return nil, fmt.Errorf("load stats: %w", err)
	}

	s.log.Info().Str("user_id", userID).Int("moods", len(data.Moods)).Msg("data imported")
	s.publish(events.Event{Kind: events.KindDataReset, UserID: userID})
	s.publish(events.Event{Kind: events.KindStatsUpdated, UserID: userID, Level: saved.Level})
	return saved, nil
}

// validateImportedStats rejects stats no sequence of events could produce.
func validateImportedStats(st *model.PlantStats) error {
	switch {
	case st.Level < 1 || st.Level > progression.MaxLevel:
		return NewValidationError("plantStats.level", fmt.Sprintf("must be between 1 and %d", progression.MaxLevel))
	case st.Experience < 0:
		return NewValidationError("plantStats.experience", "must not be negative")
	case st.TotalConversations < 0:
		return NewValidationError("plantStats.totalConversations", "must not be negative")
	case st.TotalMoodEntries < 0:
		return NewValidationError("plantStats.totalMoodEntries", "must not be negative")
	case st.StreakDays < 0:
		return NewValidationError("plantStats.streakDays", "must not be negative")
	case st.LongestStreak < 0:
		return NewValidationError("plantStats.longestStreak", "must not be negative")
	case st.AverageMood < 0 || st.AverageMood > 5:
		return NewValidationError("plantStats.averageMood", "must be between 0 and 5")
	}
	return nil
}

// Reset deletes every record the user owns.
func (s *ProgressService) Reset(ctx context.Context, userID string) error {
	g, err := s.gateway(userID)
	if err != nil {
		return err
	}
	if err := s.retry.do(ctx, "delete_all", func() error { return g.DeleteAll(ctx) }); err != nil {
		return err
	}
	s.log.Info().Str("user_id", userID).Msg("data cleared")
	s.publish(events.Event{Kind: events.KindDataReset, UserID: userID})
	return nil
}

func validateMood(in MoodInput) error {
	if !in.Mood.Valid() {
		return NewValidationError("mood", fmt.Sprintf("unknown mood %q", in.Mood))
	}
	if in.Intensity < 1 || in.Intensity > 10 {
		return NewValidationError("intensity", "must be between 1 and 10")
	}
	if in.Notes != nil && len(*in.Notes) > maxNotesLen {
		return NewValidationError("notes", fmt.Sprintf("exceeds %d characters", maxNotesLen))
	}
	if len(in.Triggers) > maxTriggers {
		return NewValidationError("triggers", fmt.Sprintf("at most %d allowed", maxTriggers))
	}
	for _, t := range in.Triggers {
		if len(t) > maxTriggerLen {
			return NewValidationError("triggers", fmt.Sprintf("trigger exceeds %d characters", maxTriggerLen))
		}
	}
	return nil
}

// cleanTriggers trims, drops blanks and de-duplicates while keeping order.
func cleanTriggers(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, t := range in {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func nonNil[T any](in []*T) []*T {
	if in == nil {
		return []*T{}
	}
	return in
}
