// Package memory is an in-process store.Store used by tests and the
// memory driver.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/plantpal/plantpal/internal/model"
	"github.com/plantpal/plantpal/internal/store"
)

// Store keeps every record in mutex-guarded maps.
type Store struct {
	mu           sync.RWMutex
	stats        map[string]model.PlantStats
	moods        map[string][]model.MoodEntry
	achievements map[string][]model.Achievement
	messages     map[string][]model.ChatMessage
}

// New returns an empty store.
func New() *Store {
	return &Store{
		stats:        make(map[string]model.PlantStats),
		moods:        make(map[string][]model.MoodEntry),
		achievements: make(map[string][]model.Achievement),
		messages:     make(map[string][]model.ChatMessage),
	}
}

func (s *Store) Stats() store.Stats               { return statsRepo{s} }
func (s *Store) Moods() store.Moods               { return moodsRepo{s} }
func (s *Store) Achievements() store.Achievements { return achievementsRepo{s} }
func (s *Store) Messages() store.Messages         { return messagesRepo{s} }

// HealthPing implements health.HealthPinger.
func (s *Store) HealthPing(ctx context.Context) error { return ctx.Err() }

// Replace implements store.Replacer. The new records are staged and checked
// before any existing record is touched.
func (s *Store) Replace(ctx context.Context, userID string, data *store.UserData) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if data == nil {
		data = &store.UserData{}
	}

	seen := make(map[string]struct{}, len(data.Moods))
	moods := make([]model.MoodEntry, 0, len(data.Moods))
	for _, e := range data.Moods {
		if _, dup := seen[e.ID]; dup {
			return model.ErrConflict
		}
		seen[e.ID] = struct{}{}
		moods = append(moods, cloneMood(*e))
	}
	unlocked := make(map[string]struct{}, len(data.Achievements))
	achievements := make([]model.Achievement, 0, len(data.Achievements))
	for _, a := range data.Achievements {
		if _, dup := unlocked[a.AchievementID]; dup {
			continue
		}
		unlocked[a.AchievementID] = struct{}{}
		achievements = append(achievements, *a)
	}
	messages := make([]model.ChatMessage, 0, len(data.Messages))
	for _, m := range data.Messages {
		messages = append(messages, *m)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.stats, userID)
	delete(s.moods, userID)
	delete(s.achievements, userID)
	delete(s.messages, userID)
	if data.Stats != nil {
		s.stats[userID] = data.Stats.Clone()
	}
	if len(moods) > 0 {
		s.moods[userID] = moods
	}
	if len(achievements) > 0 {
		s.achievements[userID] = achievements
	}
	if len(messages) > 0 {
		s.messages[userID] = messages
	}
	return nil
}

// --- Stats ---
type statsRepo struct{ s *Store }

func (r statsRepo) Get(ctx context.Context, userID string) (*model.PlantStats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	st, ok := r.s.stats[userID]
	if !ok {
		return nil, model.ErrNotFound
	}
	out := st.Clone()
	return &out, nil
}

func (r statsRepo) Init(ctx context.Context, st *model.PlantStats) (*model.PlantStats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.stats[st.UserID]
	if !ok {
		cur = st.Clone()
		r.s.stats[st.UserID] = cur
	}
	out := cur.Clone()
	return &out, nil
}

func (r statsRepo) Put(ctx context.Context, st *model.PlantStats) (*model.PlantStats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.stats[st.UserID] = st.Clone()
	out := st.Clone()
	return &out, nil
}

func (r statsRepo) Delete(ctx context.Context, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.stats, userID)
	return nil
}

// --- Moods ---
type moodsRepo struct{ s *Store }

func (r moodsRepo) Append(ctx context.Context, e *model.MoodEntry) (*model.MoodEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, cur := range r.s.moods[e.UserID] {
		if cur.ID == e.ID {
			return nil, model.ErrConflict
		}
	}
	c := cloneMood(*e)
	r.s.moods[e.UserID] = append(r.s.moods[e.UserID], c)
	out := cloneMood(c)
	return &out, nil
}

func (r moodsRepo) List(ctx context.Context, userID string, limit int) ([]*model.MoodEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = store.DefaultMoodLimit
	}
	r.s.mu.RLock()
	src := r.s.moods[userID]
	all := make([]model.MoodEntry, 0, len(src))
	for i := len(src) - 1; i >= 0; i-- {
		all = append(all, cloneMood(src[i]))
	}
	r.s.mu.RUnlock()

	sort.SliceStable(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	if len(all) > limit {
		all = all[:limit]
	}
	out := make([]*model.MoodEntry, len(all))
	for i := range all {
		out[i] = &all[i]
	}
	return out, nil
}

func (r moodsRepo) Count(ctx context.Context, userID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return len(r.s.moods[userID]), nil
}

func (r moodsRepo) DeleteAll(ctx context.Context, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.moods, userID)
	return nil
}

func cloneMood(e model.MoodEntry) model.MoodEntry {
	if e.Notes != nil {
		n := *e.Notes
		e.Notes = &n
	}
	if e.Triggers != nil {
		e.Triggers = append([]string(nil), e.Triggers...)
	}
	return e
}

// --- Achievements ---
type achievementsRepo struct{ s *Store }

func (r achievementsRepo) List(ctx context.Context, userID string) ([]*model.Achievement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	src := r.s.achievements[userID]
	all := make([]model.Achievement, 0, len(src))
	for i := len(src) - 1; i >= 0; i-- {
		all = append(all, src[i])
	}
	r.s.mu.RUnlock()

	sort.SliceStable(all, func(i, j int) bool { return all[i].UnlockedAt.After(all[j].UnlockedAt) })
	out := make([]*model.Achievement, len(all))
	for i := range all {
		out[i] = &all[i]
	}
	return out, nil
}

func (r achievementsRepo) Record(ctx context.Context, a *model.Achievement) (*model.Achievement, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, cur := range r.s.achievements[a.UserID] {
		if cur.AchievementID == a.AchievementID {
			out := cur
			return &out, false, nil
		}
	}
	r.s.achievements[a.UserID] = append(r.s.achievements[a.UserID], *a)
	out := *a
	return &out, true, nil
}

func (r achievementsRepo) DeleteAll(ctx context.Context, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.achievements, userID)
	return nil
}

// --- Messages ---
type messagesRepo struct{ s *Store }

func (r messagesRepo) Append(ctx context.Context, m *model.ChatMessage) (*model.ChatMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.messages[m.UserID] = append(r.s.messages[m.UserID], *m)
	out := *m
	return &out, nil
}

func (r messagesRepo) List(ctx context.Context, userID string, limit int) ([]*model.ChatMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = store.DefaultMessageLimit
	}
	r.s.mu.RLock()
	all := append([]model.ChatMessage(nil), r.s.messages[userID]...)
	r.s.mu.RUnlock()

	sort.SliceStable(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	out := make([]*model.ChatMessage, len(all))
	for i := range all {
		out[i] = &all[i]
	}
	return out, nil
}

func (r messagesRepo) Count(ctx context.Context, userID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return len(r.s.messages[userID]), nil
}

func (r messagesRepo) DeleteAll(ctx context.Context, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.messages, userID)
	return nil
}
