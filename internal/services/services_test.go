package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plantpal/plantpal/internal/events"
	"github.com/plantpal/plantpal/internal/metrics"
	"github.com/plantpal/plantpal/internal/model"
	"github.com/plantpal/plantpal/internal/progression"
	"github.com/plantpal/plantpal/internal/store"
	"github.com/plantpal/plantpal/internal/store/memory"
)

// --- Fakes ---

type testClock struct{ t time.Time }

func (c *testClock) Now() time.Time          { return c.t }
func (c *testClock) advance(d time.Duration) { c.t = c.t.Add(d) }

// flakyStore fails Stats().Put with putErr while putFailures > 0.
type flakyStore struct {
	store.Store
	putFailures int
	putErr      error
	puts        int
}

func (f *flakyStore) Stats() store.Stats { return &flakyStats{Stats: f.Store.Stats(), f: f} }

type flakyStats struct {
	store.Stats
	f *flakyStore
}

func (s *flakyStats) Put(ctx context.Context, st *model.PlantStats) (*model.PlantStats, error) {
	s.f.puts++
	if s.f.putFailures > 0 {
		s.f.putFailures--
		return nil, s.f.putErr
	}
	return s.Stats.Put(ctx, st)
}

type fixture struct {
	store    store.Store
	clock    *testClock
	bus      *events.Bus
	events   <-chan events.Event
	metrics  *metrics.Metrics
	progress *ProgressService
}

func newFixture(t *testing.T, st store.Store) *fixture {
	t.Helper()
	if st == nil {
		st = memory.New()
	}
	clk := &testClock{t: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}
	bus := events.NewBus()
	ch, cancel := bus.Subscribe(256)
	t.Cleanup(cancel)
	m := metrics.New(prometheus.NewRegistry())
	p := NewProgressService(st, progression.NewEngine(progression.WithClock(clk)),
		WithBus(bus),
		WithMetrics(m),
		WithRetryPolicy(RetryPolicy{MaxAttempts: 3}),
	)
	return &fixture{store: st, clock: clk, bus: bus, events: ch, metrics: m, progress: p}
}

// drain collects every buffered event.
func (f *fixture) drain() []events.Event {
	var out []events.Event
	for {
		select {
		case e := <-f.events:
			out = append(out, e)
		default:
			return out
		}
	}
}

func kinds(evts []events.Event, k events.Kind) []events.Event {
	var out []events.Event
	for _, e := range evts {
		if e.Kind == k {
			out = append(out, e)
		}
	}
	return out
}

// --- ProgressService ---

func TestRecordConversation_TenTurns(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	var last *Outcome
	var unlocked []string
	for i := 0; i < 10; i++ {
		out, err := f.progress.RecordConversation(ctx, "u1")
		require.NoError(t, err)
		require.True(t, out.Applied)
		assert.Equal(t, progression.ConversationAward, out.Awarded)
		for _, a := range out.Unlocked {
			unlocked = append(unlocked, a.AchievementID)
		}
		last = out
	}

	assert.Equal(t, 2, last.Stats.Level)
	assert.Equal(t, 0, last.Stats.Experience)
	assert.Equal(t, 10, last.Stats.TotalConversations)
	assert.True(t, last.LeveledUp)
	assert.Equal(t, []string{"first_chat", "chatter_5", "chatter_10"}, unlocked)

	recs, err := f.store.Achievements().List(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, recs, 3)

	evts := f.drain()
	assert.Len(t, kinds(evts, events.KindStatsUpdated), 10)
	assert.Len(t, kinds(evts, events.KindAchievementUnlocked), 3)
	levelUps := kinds(evts, events.KindLevelUp)
	require.Len(t, levelUps, 1)
	assert.Equal(t, 2, levelUps[0].Level)

	assert.Equal(t, 10.0, testutil.ToFloat64(f.metrics.EventsApplied.WithLabelValues("conversation")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.LevelUps))
}

func TestCheckIn_OncePerDay(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	first, err := f.progress.CheckIn(ctx, "u1")
	require.NoError(t, err)
	require.True(t, first.Applied)
	assert.Equal(t, 20, first.Stats.Experience)
	f.drain()

	f.clock.advance(3 * time.Hour)
	second, err := f.progress.CheckIn(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, second.Applied)
	assert.Equal(t, 20, second.Stats.Experience)
	assert.Empty(t, second.Unlocked)
	assert.Empty(t, f.drain(), "a no-op check-in publishes nothing")
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.EventsSkipped.WithLabelValues("checkin")))

	view, err := f.progress.GetStats(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, view.CheckedInToday)
	assert.Equal(t, 100, view.RequiredExperience)

	f.clock.advance(24 * time.Hour)
	third, err := f.progress.CheckIn(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, third.Applied)
	assert.Equal(t, 2, third.Stats.StreakDays)
}

func TestLogMood_Validation(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	long := string(make([]byte, maxNotesLen+1))

	for name, in := range map[string]MoodInput{
		"unknown mood":   {Mood: "grumpy", Intensity: 5},
		"zero intensity": {Mood: model.MoodHappy, Intensity: 0},
		"intensity 11":   {Mood: model.MoodHappy, Intensity: 11},
		"long notes":     {Mood: model.MoodHappy, Intensity: 5, Notes: &long},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := f.progress.LogMood(ctx, "u1", in)
			require.Error(t, err)
			assert.True(t, IsValidationError(err))
			assert.ErrorIs(t, err, model.ErrValidation)
		})
	}
	n, err := f.store.Moods().Count(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestLogMood_UpdatesAverageWithoutExperience(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	notes := "exam went fine"

	out, err := f.progress.LogMood(ctx, "u1", MoodInput{Mood: model.MoodHappy, Intensity: 7, Notes: &notes, Triggers: []string{" school ", "school", ""}})
	require.NoError(t, err)
	assert.Equal(t, model.MoodHappy, out.Entry.Mood)
	assert.Equal(t, []string{"school"}, out.Entry.Triggers)
	assert.Equal(t, 1, out.Stats.TotalMoodEntries)
	assert.InDelta(t, 4.0, out.Stats.AverageMood, 1e-9)
	assert.Zero(t, out.Stats.Experience)
	assert.Zero(t, out.Awarded)
	require.Len(t, out.Unlocked, 1)
	assert.Equal(t, "mood_tracker", out.Unlocked[0].AchievementID)

	out, err = f.progress.LogMood(ctx, "u1", MoodInput{Mood: model.MoodSad, Intensity: 3})
	require.NoError(t, err)
	assert.InDelta(t, 2.5, out.Stats.AverageMood, 1e-9)
	assert.Empty(t, out.Unlocked)

	assert.Len(t, kinds(f.drain(), events.KindMoodLogged), 2)
}

func TestLogMood_PositiveStreak(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	seq := []model.Mood{model.MoodHappy, model.MoodHappy, model.MoodExcited, model.MoodHappy, model.MoodSad}
	var got []string
	for _, m := range seq {
		f.clock.advance(time.Minute)
		out, err := f.progress.LogMood(ctx, "u1", MoodInput{Mood: m, Intensity: 5})
		require.NoError(t, err)
		for _, a := range out.Unlocked {
			got = append(got, a.AchievementID)
		}
	}
	assert.Equal(t, []string{"mood_tracker", "positive_streak"}, got)
}

func TestListAchievements(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	_, err := f.progress.RecordConversation(ctx, "u1")
	require.NoError(t, err)

	list, err := f.progress.ListAchievements(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, f.progress.Engine().Catalog().Len())

	assert.Equal(t, "first_chat", list[0].ID)
	assert.True(t, list[0].Unlocked)
	assert.NotNil(t, list[0].UnlockedAt)
	assert.InDelta(t, 1.0, list[0].Progress, 1e-9)

	assert.Equal(t, "chatter_5", list[1].ID)
	assert.False(t, list[1].Unlocked)
	assert.Equal(t, 1, list[1].Current)
	assert.InDelta(t, 0.2, list[1].Progress, 1e-9)
}

func TestExportImportRoundTrip(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.progress.RecordConversation(ctx, "src")
		require.NoError(t, err)
	}
	_, err := f.progress.LogMood(ctx, "src", MoodInput{Mood: model.MoodContent, Intensity: 6})
	require.NoError(t, err)
	_, err = f.store.Messages().Append(ctx, &model.ChatMessage{ID: "m1", UserID: "src", Role: model.RoleUser, Content: "hi", CreatedAt: f.clock.Now()})
	require.NoError(t, err)

	exp, err := f.progress.Export(ctx, "src")
	require.NoError(t, err)
	assert.Equal(t, 3, exp.PlantStats.TotalConversations)
	assert.Len(t, exp.MoodEntries, 1)
	assert.Len(t, exp.Achievements, 2)
	assert.Len(t, exp.Messages, 1)

	stats, err := f.progress.Import(ctx, "dst", exp)
	require.NoError(t, err)
	assert.Equal(t, "dst", stats.UserID)
	assert.Equal(t, exp.PlantStats.Experience, stats.Experience)
	assert.True(t, stats.BirthDate.Equal(exp.PlantStats.BirthDate))

	again, err := f.progress.Export(ctx, "dst")
	require.NoError(t, err)
	assert.Len(t, again.MoodEntries, 1)
	assert.Len(t, again.Achievements, 2)
	assert.Len(t, again.Messages, 1)
	assert.NotEqual(t, exp.MoodEntries[0].ID, again.MoodEntries[0].ID)

	// Source is untouched.
	src, err := f.progress.Export(ctx, "src")
	require.NoError(t, err)
	assert.Len(t, src.MoodEntries, 1)
}

func TestImport_NormalizesAndFilters(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	odd := &model.PlantStats{Level: 1, Experience: 250, PlantType: model.PlantTree, StreakDays: 3}
	stats, err := f.progress.Import(ctx, "u1", &model.Export{
		PlantStats:   odd,
		Achievements: []*model.Achievement{{AchievementID: "not_a_thing"}, {AchievementID: "first_chat", Title: "First Words"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Level)
	assert.Equal(t, 0, stats.Experience)
	assert.Equal(t, model.PlantSeedling, stats.PlantType)
	assert.Equal(t, 3, stats.LongestStreak)

	recs, err := f.store.Achievements().List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "first_chat", recs[0].AchievementID)

	_, err = f.progress.Import(ctx, "u1", &model.Export{MoodEntries: []*model.MoodEntry{{Mood: "nope", Intensity: 5}}})
	assert.True(t, IsValidationError(err))
	_, err = f.progress.Import(ctx, "u1", nil)
	assert.True(t, IsValidationError(err))
}

// seedUser gives userID two conversations and one mood entry.
func seedUser(t *testing.T, f *fixture, userID string) *model.Export {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, err := f.progress.RecordConversation(ctx, userID)
		require.NoError(t, err)
	}
	_, err := f.progress.LogMood(ctx, userID, MoodInput{Mood: model.MoodHappy, Intensity: 7})
	require.NoError(t, err)
	before, err := f.progress.Export(ctx, userID)
	require.NoError(t, err)
	return before
}

func requireUnchanged(t *testing.T, f *fixture, userID string, before *model.Export) {
	t.Helper()
	after, err := f.progress.Export(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, before.PlantStats.Level, after.PlantStats.Level)
	assert.Equal(t, before.PlantStats.TotalConversations, after.PlantStats.TotalConversations)
	assert.Equal(t, before.PlantStats.Experience, after.PlantStats.Experience)
	require.Len(t, after.MoodEntries, len(before.MoodEntries))
	assert.Equal(t, before.MoodEntries[0].ID, after.MoodEntries[0].ID)
	assert.Len(t, after.Achievements, len(before.Achievements))
}

func TestImport_RejectsOutOfRangeStatsBeforeTouchingData(t *testing.T) {
	cases := []struct {
		name  string
		stats model.PlantStats
	}{
		{"max int level", model.PlantStats{Level: math.MaxInt}},
		{"level whose threshold overflows", model.PlantStats{Level: math.MaxInt/100 + 1}},
		{"level above cap", model.PlantStats{Level: progression.MaxLevel + 1}},
		{"zero level", model.PlantStats{Level: 0}},
		{"negative experience", model.PlantStats{Level: 2, Experience: -1}},
		{"negative conversations", model.PlantStats{Level: 2, TotalConversations: -4}},
		{"negative streak", model.PlantStats{Level: 2, StreakDays: -1}},
		{"average mood out of range", model.PlantStats{Level: 2, AverageMood: 9}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, nil)
			before := seedUser(t, f, "u1")

			st := tc.stats
			_, err := f.progress.Import(context.Background(), "u1", &model.Export{PlantStats: &st})
			require.Error(t, err)
			assert.True(t, IsValidationError(err), "got %v", err)
			requireUnchanged(t, f, "u1", before)
		})
	}
}

// moodFailStore fails any mood append whose notes read "explode". Embedding
// the interface hides the memory store's Replacer.
type moodFailStore struct{ store.Store }

func (s moodFailStore) Moods() store.Moods { return moodFailRepo{s.Store.Moods()} }

type moodFailRepo struct{ store.Moods }

func (r moodFailRepo) Append(ctx context.Context, e *model.MoodEntry) (*model.MoodEntry, error) {
	if e.Notes != nil && *e.Notes == "explode" {
		return nil, errors.New("disk full")
	}
	return r.Moods.Append(ctx, e)
}

func TestImport_MidwayStoreFailureKeepsExistingData(t *testing.T) {
	f := newFixture(t, moodFailStore{memory.New()})
	before := seedUser(t, f, "u1")
	f.drain()

	note := "explode"
	_, err := f.progress.Import(context.Background(), "u1", &model.Export{
		PlantStats: &model.PlantStats{Level: 4, TotalConversations: 40},
		MoodEntries: []*model.MoodEntry{
			{Mood: model.MoodSad, Intensity: 2},
			{Mood: model.MoodSad, Intensity: 2, Notes: &note},
		},
	})
	require.Error(t, err)
	requireUnchanged(t, f, "u1", before)
	assert.Empty(t, kinds(f.drain(), events.KindDataReset))
}

func TestRecordConversation_ConcurrentFirstChatRecordedOnce(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	const tabs = 8
	var wg sync.WaitGroup
	errs := make(chan error, tabs)
	start := make(chan struct{})
	for i := 0; i < tabs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if _, err := f.progress.RecordConversation(ctx, "fresh"); err != nil {
				errs <- err
			}
		}()
	}
	close(start)
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	recs, err := f.store.Achievements().List(ctx, "fresh")
	require.NoError(t, err)
	n := 0
	for _, r := range recs {
		if r.AchievementID == "first_chat" {
			n++
		}
	}
	assert.Equal(t, 1, n)

	unlocks := 0
	for _, e := range kinds(f.drain(), events.KindAchievementUnlocked) {
		if e.AchievementID == "first_chat" {
			unlocks++
		}
	}
	assert.Equal(t, 1, unlocks)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.AchievementsUnlocked.WithLabelValues("first_chat")))
}

func TestExport_FailsInsteadOfTruncating(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.progress.exportLimit = 2

	for i := 0; i < 2; i++ {
		_, err := f.progress.LogMood(ctx, "u1", MoodInput{Mood: model.MoodContent, Intensity: 4})
		require.NoError(t, err)
	}
	exp, err := f.progress.Export(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, exp.MoodEntries, 2)

	_, err = f.progress.LogMood(ctx, "u1", MoodInput{Mood: model.MoodContent, Intensity: 4})
	require.NoError(t, err)
	_, err = f.progress.Export(ctx, "u1")
	assert.ErrorIs(t, err, model.ErrTooLarge)

	for i := 0; i < 3; i++ {
		_, err := f.store.Messages().Append(ctx, &model.ChatMessage{ID: fmt.Sprintf("m%d", i), UserID: "u2", Role: model.RoleUser, Content: "hi", CreatedAt: f.clock.Now()})
		require.NoError(t, err)
	}
	_, err = f.progress.Export(ctx, "u2")
	assert.ErrorIs(t, err, model.ErrTooLarge)

	_, err = f.progress.Import(ctx, "u3", &model.Export{MoodEntries: []*model.MoodEntry{
		{Mood: model.MoodSad, Intensity: 1}, {Mood: model.MoodSad, Intensity: 1}, {Mood: model.MoodSad, Intensity: 1},
	}})
	assert.ErrorIs(t, err, model.ErrTooLarge)
}

func TestReset(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	_, err := f.progress.RecordConversation(ctx, "u1")
	require.NoError(t, err)
	_, err = f.progress.LogMood(ctx, "u1", MoodInput{Mood: model.MoodHappy, Intensity: 5})
	require.NoError(t, err)
	f.drain()

	require.NoError(t, f.progress.Reset(ctx, "u1"))
	assert.Len(t, kinds(f.drain(), events.KindDataReset), 1)

	view, err := f.progress.GetStats(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, view.TotalConversations)
	assert.Nil(t, view.LastInteractionAt)
	moods, err := f.progress.ListMoods(ctx, "u1", 0)
	require.NoError(t, err)
	assert.Empty(t, moods)
}

func TestEmptyUserIDRejected(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.progress.RecordConversation(context.Background(), " ")
	assert.True(t, IsValidationError(err))
	_, err = f.progress.ListMoods(context.Background(), "u1", -1)
	assert.True(t, IsValidationError(err))
}

// --- retries ---

func TestRetry_TransientPutSucceeds(t *testing.T) {
	fs := &flakyStore{Store: memory.New(), putFailures: 2, putErr: fmt.Errorf("%w: busy", model.ErrTransient)}
	f := newFixture(t, fs)

	out, err := f.progress.RecordConversation(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, out.Stats.TotalConversations)
	assert.Equal(t, 3, fs.puts)
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.StoreRetries.WithLabelValues("put_stats")))
}

func TestRetry_GivesUpAfterMaxAttempts(t *testing.T) {
	fs := &flakyStore{Store: memory.New(), putFailures: 10, putErr: fmt.Errorf("%w: busy", model.ErrTransient)}
	f := newFixture(t, fs)

	_, err := f.progress.RecordConversation(context.Background(), "u1")
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrTransient)
	assert.Equal(t, 3, fs.puts)
	assert.Empty(t, kinds(f.drain(), events.KindStatsUpdated))
}

func TestRetry_PermanentErrorNotRetried(t *testing.T) {
	boom := errors.New("disk full")
	fs := &flakyStore{Store: memory.New(), putFailures: 1, putErr: boom}
	f := newFixture(t, fs)

	_, err := f.progress.RecordConversation(context.Background(), "u1")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, fs.puts)
}

func TestRetry_StopsOnContextCancel(t *testing.T) {
	r := retrier{policy: RetryPolicy{MaxAttempts: 5, BaseBackoff: time.Hour, MaxInterval: time.Hour}, log: zerolog.Nop()}
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	err := r.do(ctx, "op", func() error {
		calls++
		return model.ErrTransient
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestRetry_ReturnsUnderlyingError(t *testing.T) {
	boom := errors.New("constraint violated")
	r := retrier{policy: RetryPolicy{MaxAttempts: 1}, log: zerolog.Nop()}

	calls := 0
	err := r.do(context.Background(), "op", func() error {
		calls++
		return boom
	})
	assert.Same(t, boom, err)
	var perm *backoff.PermanentError
	assert.False(t, errors.As(err, &perm))

	err = r.do(context.Background(), "op", func() error {
		calls++
		return model.ErrTransient
	})
	assert.ErrorIs(t, err, model.ErrTransient)
	assert.Equal(t, 2, calls)
}

// --- AnalyticsService ---

func TestMoodAnalytics(t *testing.T) {
	f := newFixture(t, nil)
	svc := NewAnalyticsService(f.progress)
	ctx := context.Background()

	sum, err := svc.MoodAnalytics(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, sum)

	for _, m := range []model.Mood{model.MoodHappy, model.MoodHappy, model.MoodSad} {
		_, err := f.progress.LogMood(ctx, "u1", MoodInput{Mood: m, Intensity: 6})
		require.NoError(t, err)
	}
	sum, err = svc.MoodAnalytics(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, sum)
	assert.Equal(t, 3, sum.TotalEntries)
	assert.Equal(t, model.MoodHappy, sum.MostCommonMood)
	assert.Equal(t, 3, sum.WeeklyTrend[6].EntryCount)
}
