// Package storetest is a compliance suite every store.Store backend runs.
package storetest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/plantpal/plantpal/internal/achievement"
	"github.com/plantpal/plantpal/internal/model"
	"github.com/plantpal/plantpal/internal/store"
)

// Run exercises the store contract. makeStore must return a clean, isolated store.
func Run(t *testing.T, makeStore func(t *testing.T) store.Store) {
	t.Helper()

	t.Run("Stats", func(t *testing.T) { testStats(t, makeStore(t)) })
	t.Run("Moods", func(t *testing.T) { testMoods(t, makeStore(t)) })
	t.Run("Achievements", func(t *testing.T) { testAchievements(t, makeStore(t)) })
	t.Run("Messages", func(t *testing.T) { testMessages(t, makeStore(t)) })
	t.Run("Gateway", func(t *testing.T) { testGateway(t, makeStore(t)) })
	t.Run("ConcurrentUnlock", func(t *testing.T) { testConcurrentUnlock(t, makeStore(t)) })
	t.Run("Replace", func(t *testing.T) { testReplace(t, makeStore(t)) })
}

var base = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func newUser() string { return "u-" + uuid.New().String() }

func testStats(t *testing.T, s store.Store) {
	ctx := context.Background()
	userID := newUser()

	if _, err := s.Stats().Get(ctx, userID); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("Get missing: want ErrNotFound, got %v", err)
	}

	seed := model.NewPlantStats(userID, base)
	got, err := s.Stats().Init(ctx, seed)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if got.Level != 1 || got.AverageMood != model.DefaultAverageMood || got.LastInteractionAt != nil {
		t.Fatalf("Init: unexpected defaults %+v", got)
	}

	// A second Init keeps the stored row.
	other := model.NewPlantStats(userID, base.Add(time.Hour))
	other.Level = 7
	got, err = s.Stats().Init(ctx, other)
	if err != nil {
		t.Fatalf("Init again: %v", err)
	}
	if got.Level != 1 || !got.BirthDate.Equal(base) {
		t.Fatalf("Init again overwrote row: %+v", got)
	}

	last := base.Add(2 * time.Hour)
	upd := got.Clone()
	upd.Level = 3
	upd.Experience = 120
	upd.TotalConversations = 21
	upd.TotalMoodEntries = 4
	upd.AverageMood = 3.25
	upd.StreakDays = 2
	upd.LongestStreak = 5
	upd.PlantType = model.PlantSeedling
	upd.LastInteractionAt = &last
	upd.UpdatedAt = last
	if _, err := s.Stats().Put(ctx, &upd); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err = s.Stats().Get(ctx, userID)
	if err != nil {
		t.Fatalf("Get after Put: %v", err)
	}
	if got.Level != 3 || got.Experience != 120 || got.TotalConversations != 21 || got.TotalMoodEntries != 4 ||
		got.AverageMood != 3.25 || got.StreakDays != 2 || got.LongestStreak != 5 {
		t.Fatalf("Get after Put: %+v", got)
	}
	if got.LastInteractionAt == nil || !got.LastInteractionAt.Equal(last) {
		t.Fatalf("LastInteractionAt: got %v want %v", got.LastInteractionAt, last)
	}
	if !got.BirthDate.Equal(base) {
		t.Fatalf("BirthDate changed: %v", got.BirthDate)
	}

	// Put on a missing row inserts.
	fresh := model.NewPlantStats(newUser(), base)
	if _, err := s.Stats().Put(ctx, fresh); err != nil {
		t.Fatalf("Put insert: %v", err)
	}
	if _, err := s.Stats().Get(ctx, fresh.UserID); err != nil {
		t.Fatalf("Get inserted: %v", err)
	}

	if err := s.Stats().Delete(ctx, userID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Stats().Get(ctx, userID); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("Get after Delete: want ErrNotFound, got %v", err)
	}
}

func testMoods(t *testing.T, s store.Store) {
	ctx := context.Background()
	userID := newUser()
	otherUser := newUser()

	notes := "long day"
	moods := []model.Mood{model.MoodSad, model.MoodHappy, model.MoodExcited}
	for i, m := range moods {
		e := &model.MoodEntry{
			ID:        uuid.New().String(),
			UserID:    userID,
			Mood:      m,
			Intensity: 5 + i,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if i == 0 {
			e.Notes = &notes
			e.Triggers = []string{"work", "sleep"}
		}
		if _, err := s.Moods().Append(ctx, e); err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}
	if _, err := s.Moods().Append(ctx, &model.MoodEntry{ID: uuid.New().String(), UserID: otherUser, Mood: model.MoodContent, Intensity: 3, CreatedAt: base}); err != nil {
		t.Fatalf("Append other user: %v", err)
	}

	lst, err := s.Moods().List(ctx, userID, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(lst) != 3 {
		t.Fatalf("List: want 3 entries, got %d", len(lst))
	}
	if lst[0].Mood != model.MoodExcited || lst[2].Mood != model.MoodSad {
		t.Fatalf("List order: got %s..%s", lst[0].Mood, lst[2].Mood)
	}
	oldest := lst[2]
	if oldest.Notes == nil || *oldest.Notes != notes || len(oldest.Triggers) != 2 || oldest.Triggers[0] != "work" {
		t.Fatalf("notes/triggers round trip: %+v", oldest)
	}
	if lst[0].Notes != nil || len(lst[0].Triggers) != 0 {
		t.Fatalf("optional fields should be empty: %+v", lst[0])
	}
	if !lst[1].CreatedAt.Equal(base.Add(time.Minute)) || lst[1].Intensity != 6 {
		t.Fatalf("entry fields: %+v", lst[1])
	}

	if lst, err := s.Moods().List(ctx, userID, 2); err != nil || len(lst) != 2 || lst[0].Mood != model.MoodExcited {
		t.Fatalf("List limit: n=%d err=%v", len(lst), err)
	}

	if n, err := s.Moods().Count(ctx, userID); err != nil || n != 3 {
		t.Fatalf("Count: n=%d err=%v", n, err)
	}

	dup := *lst[0]
	if _, err := s.Moods().Append(ctx, &dup); !errors.Is(err, model.ErrConflict) {
		t.Fatalf("Append duplicate id: want ErrConflict, got %v", err)
	}

	if err := s.Moods().DeleteAll(ctx, userID); err != nil {
		t.Fatalf("DeleteAll: %v", err)
	}
	if n, err := s.Moods().Count(ctx, userID); err != nil || n != 0 {
		t.Fatalf("Count after DeleteAll: n=%d err=%v", n, err)
	}
	if n, err := s.Moods().Count(ctx, otherUser); err != nil || n != 1 {
		t.Fatalf("DeleteAll touched other user: n=%d err=%v", n, err)
	}
}

func testAchievements(t *testing.T, s store.Store) {
	ctx := context.Background()
	userID := newUser()
	cat := achievement.Default()

	first, _ := cat.Lookup("first_chat")
	rec := first.Record(userID)
	rec.UnlockedAt = base
	got, inserted, err := s.Achievements().Record(ctx, rec)
	if err != nil || !inserted {
		t.Fatalf("Record: inserted=%v err=%v", inserted, err)
	}
	if got.Title != first.Title || got.Category != string(first.Category) {
		t.Fatalf("Record returned %+v", got)
	}

	again := first.Record(userID)
	again.UnlockedAt = base.Add(time.Hour)
	got, inserted, err = s.Achievements().Record(ctx, again)
	if err != nil {
		t.Fatalf("Record duplicate: %v", err)
	}
	if inserted {
		t.Fatalf("Record duplicate reported inserted")
	}
	if !got.UnlockedAt.Equal(base) {
		t.Fatalf("Record duplicate changed unlock time: %v", got.UnlockedAt)
	}

	streak, _ := cat.Lookup("streak_3")
	rec = streak.Record(userID)
	rec.UnlockedAt = base.Add(time.Minute)
	if _, _, err := s.Achievements().Record(ctx, rec); err != nil {
		t.Fatalf("Record streak_3: %v", err)
	}

	lst, err := s.Achievements().List(ctx, userID)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(lst) != 2 || lst[0].AchievementID != "streak_3" || lst[1].AchievementID != "first_chat" {
		t.Fatalf("List: %+v", lst)
	}

	if err := s.Achievements().DeleteAll(ctx, userID); err != nil {
		t.Fatalf("DeleteAll: %v", err)
	}
	if lst, err := s.Achievements().List(ctx, userID); err != nil || len(lst) != 0 {
		t.Fatalf("List after DeleteAll: n=%d err=%v", len(lst), err)
	}
}

func testMessages(t *testing.T, s store.Store) {
	ctx := context.Background()
	userID := newUser()

	contents := []string{"hi", "hello there", "how are you", "good"}
	for i, c := range contents {
		role := model.RoleUser
		if i%2 == 1 {
			role = model.RoleAssistant
		}
		m := &model.ChatMessage{
			ID:        uuid.New().String(),
			UserID:    userID,
			Role:      role,
			Content:   c,
			Sentiment: model.SentimentNeutral,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		if _, err := s.Messages().Append(ctx, m); err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}

	lst, err := s.Messages().List(ctx, userID, 2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(lst) != 2 || lst[0].Content != "how are you" || lst[1].Content != "good" {
		t.Fatalf("List newest two oldest first: %+v", lst)
	}
	if lst[0].Role != model.RoleUser || lst[1].Role != model.RoleAssistant {
		t.Fatalf("roles: %s %s", lst[0].Role, lst[1].Role)
	}

	if lst, err := s.Messages().List(ctx, userID, 0); err != nil || len(lst) != 4 || lst[0].Content != "hi" {
		t.Fatalf("List default limit: n=%d err=%v", len(lst), err)
	}
	if n, err := s.Messages().Count(ctx, userID); err != nil || n != 4 {
		t.Fatalf("Count: n=%d err=%v", n, err)
	}

	if err := s.Messages().DeleteAll(ctx, userID); err != nil {
		t.Fatalf("DeleteAll: %v", err)
	}
	if lst, err := s.Messages().List(ctx, userID, 0); err != nil || len(lst) != 0 {
		t.Fatalf("List after DeleteAll: n=%d err=%v", len(lst), err)
	}
}

func testGateway(t *testing.T, s store.Store) {
	ctx := context.Background()
	now := base
	g, err := store.NewGateway(s, newUser(), func() time.Time { return now })
	if err != nil {
		t.Fatalf("NewGateway: %v", err)
	}

	st, err := g.GetStats(ctx)
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if st.Level != 1 || st.PlantType != model.PlantSeedling || !st.BirthDate.Equal(base) {
		t.Fatalf("GetStats defaults: %+v", st)
	}

	now = base.Add(time.Hour)
	upd := st.Clone()
	upd.TotalConversations = 1
	if _, err := g.PutStats(ctx, upd); err != nil {
		t.Fatalf("PutStats: %v", err)
	}
	st, err = g.GetStats(ctx)
	if err != nil || st.TotalConversations != 1 || !st.UpdatedAt.Equal(now) {
		t.Fatalf("GetStats after PutStats: %+v err=%v", st, err)
	}

	e, err := g.AppendMoodEntry(ctx, model.MoodEntry{Mood: model.MoodHappy, Intensity: 7})
	if err != nil {
		t.Fatalf("AppendMoodEntry: %v", err)
	}
	if e.ID == "" || !e.CreatedAt.Equal(now) || e.UserID != g.UserID() {
		t.Fatalf("AppendMoodEntry filled fields: %+v", e)
	}
	if n, err := g.CountMoodEntries(ctx); err != nil || n != 1 {
		t.Fatalf("CountMoodEntries: n=%d err=%v", n, err)
	}

	def, _ := achievement.Default().Lookup("mood_tracker")
	if _, inserted, err := g.RecordUnlock(ctx, def); err != nil || !inserted {
		t.Fatalf("RecordUnlock: inserted=%v err=%v", inserted, err)
	}
	if _, inserted, err := g.RecordUnlock(ctx, def); err != nil || inserted {
		t.Fatalf("RecordUnlock duplicate: inserted=%v err=%v", inserted, err)
	}
	set, err := g.ListUnlockedAchievementIDs(ctx)
	if err != nil || len(set) != 1 || !set.Has("mood_tracker") {
		t.Fatalf("ListUnlockedAchievementIDs: %v err=%v", set, err)
	}

	if _, err := g.AppendMessage(ctx, model.ChatMessage{Role: model.RoleUser, Content: "hey"}); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}

	if err := g.DeleteAll(ctx); err != nil {
		t.Fatalf("DeleteAll: %v", err)
	}
	if _, err := s.Stats().Get(ctx, g.UserID()); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("stats survived DeleteAll: %v", err)
	}
	if lst, _ := g.ListMessages(ctx, 0); len(lst) != 0 {
		t.Fatalf("messages survived DeleteAll: %d", len(lst))
	}
	if set, _ := g.ListUnlockedAchievementIDs(ctx); len(set) != 0 {
		t.Fatalf("achievements survived DeleteAll: %v", set)
	}
}

// testConcurrentUnlock races several writers recording the same unlock, as
// two open tabs evaluating the same event would.
func testConcurrentUnlock(t *testing.T, s store.Store) {
	ctx := context.Background()
	userID := newUser()
	def, _ := achievement.Default().Lookup("first_chat")

	const writers = 16
	var (
		wg       sync.WaitGroup
		inserted atomic.Int32
		errs     = make(chan error, writers)
	)
	start := make(chan struct{})
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			rec := def.Record(userID)
			rec.UnlockedAt = base.Add(time.Duration(i) * time.Millisecond)
			_, ins, err := s.Achievements().Record(ctx, rec)
			if err != nil {
				errs <- err
				return
			}
			if ins {
				inserted.Add(1)
			}
		}(i)
	}
	close(start)
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("Record: %v", err)
	}
	if n := inserted.Load(); n != 1 {
		t.Fatalf("inserted=true reported %d times, want 1", n)
	}
	lst, err := s.Achievements().List(ctx, userID)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(lst) != 1 {
		t.Fatalf("stored %d unlock records, want 1", len(lst))
	}
}

func testReplace(t *testing.T, s store.Store) {
	r, ok := s.(store.Replacer)
	if !ok {
		t.Skip("backend does not implement store.Replacer")
	}
	ctx := context.Background()
	userID := newUser()
	otherUser := newUser()

	seed := model.NewPlantStats(userID, base)
	seed.TotalConversations = 4
	first, _ := achievement.Default().Lookup("first_chat")
	firstRec := first.Record(userID)
	firstRec.UnlockedAt = base
	data := &store.UserData{
		Stats: seed,
		Moods: []*model.MoodEntry{
			{ID: uuid.New().String(), UserID: userID, Mood: model.MoodSad, Intensity: 2, CreatedAt: base},
			{ID: uuid.New().String(), UserID: userID, Mood: model.MoodHappy, Intensity: 8, CreatedAt: base.Add(time.Minute)},
		},
		Achievements: []*model.Achievement{firstRec},
		Messages: []*model.ChatMessage{
			{ID: uuid.New().String(), UserID: userID, Role: model.RoleUser, Content: "hi", CreatedAt: base},
		},
	}
	if _, err := s.Moods().Append(ctx, &model.MoodEntry{ID: uuid.New().String(), UserID: otherUser, Mood: model.MoodContent, Intensity: 3, CreatedAt: base}); err != nil {
		t.Fatalf("seed other user: %v", err)
	}
	if err := r.Replace(ctx, userID, data); err != nil {
		t.Fatalf("Replace: %v", err)
	}

	got, err := store.Snapshot(ctx, s, userID)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if got.Stats == nil || got.Stats.TotalConversations != 4 {
		t.Fatalf("stats after Replace: %+v", got.Stats)
	}
	if len(got.Moods) != 2 || got.Moods[0].Mood != model.MoodSad || got.Moods[1].Mood != model.MoodHappy {
		t.Fatalf("moods after Replace: %+v", got.Moods)
	}
	if len(got.Achievements) != 1 || len(got.Messages) != 1 {
		t.Fatalf("achievements=%d messages=%d after Replace", len(got.Achievements), len(got.Messages))
	}

	// A payload that fails halfway must leave the previous records intact.
	dupID := uuid.New().String()
	broken := &store.UserData{
		Stats: model.NewPlantStats(userID, base),
		Moods: []*model.MoodEntry{
			{ID: dupID, UserID: userID, Mood: model.MoodExcited, Intensity: 9, CreatedAt: base},
			{ID: dupID, UserID: userID, Mood: model.MoodExcited, Intensity: 9, CreatedAt: base},
		},
	}
	if err := r.Replace(ctx, userID, broken); !errors.Is(err, model.ErrConflict) {
		t.Fatalf("Replace with duplicate ids: want ErrConflict, got %v", err)
	}
	after, err := store.Snapshot(ctx, s, userID)
	if err != nil {
		t.Fatalf("Snapshot after failed Replace: %v", err)
	}
	if after.Stats == nil || after.Stats.TotalConversations != 4 || len(after.Moods) != 2 ||
		len(after.Achievements) != 1 || len(after.Messages) != 1 {
		t.Fatalf("failed Replace changed data: stats=%+v moods=%d achievements=%d messages=%d",
			after.Stats, len(after.Moods), len(after.Achievements), len(after.Messages))
	}
	if n, err := s.Moods().Count(ctx, otherUser); err != nil || n != 1 {
		t.Fatalf("Replace touched other user: n=%d err=%v", n, err)
	}
}
