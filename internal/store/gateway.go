package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/plantpal/plantpal/internal/achievement"
	"github.com/plantpal/plantpal/internal/model"
)

// Gateway is the per-user view of a Store used by the service layer.
type Gateway struct {
	s      Store
	userID string
	now    func() time.Time
}

// NewGateway binds s to userID. now defaults to time.Now.
func NewGateway(s Store, userID string, now func() time.Time) (*Gateway, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: user id is required", model.ErrValidation)
	}
	if now == nil {
		now = time.Now
	}
	return &Gateway{s: s, userID: userID, now: now}, nil
}

// UserID returns the bound user.
func (g *Gateway) UserID() string { return g.userID }

// GetStats returns the user's stats, creating defaults on first access.
func (g *Gateway) GetStats(ctx context.Context) (*model.PlantStats, error) {
	st, err := g.s.Stats().Get(ctx, g.userID)
	if err == nil {
		return st, nil
	}
	if !errors.Is(err, model.ErrNotFound) {
		return nil, err
	}
	return g.s.Stats().Init(ctx, model.NewPlantStats(g.userID, g.now().UTC()))
}

// PutStats overwrites the user's stats.
func (g *Gateway) PutStats(ctx context.Context, st model.PlantStats) (*model.PlantStats, error) {
	st.UserID = g.userID
	st.UpdatedAt = g.now().UTC()
	return g.s.Stats().Put(ctx, &st)
}

// AppendMoodEntry stores e, filling in id and timestamp when absent.
func (g *Gateway) AppendMoodEntry(ctx context.Context, e model.MoodEntry) (*model.MoodEntry, error) {
	e.UserID = g.userID
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = g.now().UTC()
	}
	return g.s.Moods().Append(ctx, &e)
}

// ListMoodEntries returns up to limit entries, most recent first.
func (g *Gateway) ListMoodEntries(ctx context.Context, limit int) ([]*model.MoodEntry, error) {
	return g.s.Moods().List(ctx, g.userID, limit)
}

// CountMoodEntries returns the number of stored mood entries.
func (g *Gateway) CountMoodEntries(ctx context.Context) (int, error) {
	return g.s.Moods().Count(ctx, g.userID)
}

// ListAchievements returns unlock records, most recent first.
func (g *Gateway) ListAchievements(ctx context.Context) ([]*model.Achievement, error) {
	return g.s.Achievements().List(ctx, g.userID)
}

// ListUnlockedAchievementIDs returns the set of unlocked ids.
func (g *Gateway) ListUnlockedAchievementIDs(ctx context.Context) (achievement.Set, error) {
	recs, err := g.ListAchievements(ctx)
	if err != nil {
		return nil, err
	}
	set := achievement.NewSet()
	for _, r := range recs {
		set.Add(r.AchievementID)
	}
	return set, nil
}

// RecordUnlock persists def for the user. A duplicate unlock is a success
// reported with inserted=false.
func (g *Gateway) RecordUnlock(ctx context.Context, def achievement.Definition) (*model.Achievement, bool, error) {
	rec := def.Record(g.userID)
	rec.UnlockedAt = g.now().UTC()
	return g.s.Achievements().Record(ctx, rec)
}

// AppendMessage stores a chat message.
func (g *Gateway) AppendMessage(ctx context.Context, m model.ChatMessage) (*model.ChatMessage, error) {
	m.UserID = g.userID
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = g.now().UTC()
	}
	return g.s.Messages().Append(ctx, &m)
}

// ListMessages returns the newest limit messages, oldest first.
func (g *Gateway) ListMessages(ctx context.Context, limit int) ([]*model.ChatMessage, error) {
	return g.s.Messages().List(ctx, g.userID, limit)
}

// DeleteAll removes every record owned by the user.
func (g *Gateway) DeleteAll(ctx context.Context) error {
	return deleteUser(ctx, g.s, g.userID)
}

// Replace swaps every record the user owns for data, filling in owner, ids
// and timestamps. Backends implementing Replacer do this atomically. Others
// are rewritten in place and, when a write fails, restored from a snapshot
// taken beforehand.
func (g *Gateway) Replace(ctx context.Context, data UserData) error {
	now := g.now().UTC()
	if data.Stats != nil {
		st := data.Stats.Clone()
		st.UserID = g.userID
		st.UpdatedAt = now
		data.Stats = &st
	}
	for i, e := range data.Moods {
		c := *e
		c.UserID = g.userID
		if c.ID == "" {
			c.ID = uuid.New().String()
		}
		if c.CreatedAt.IsZero() {
			c.CreatedAt = now
		}
		data.Moods[i] = &c
	}
	for i, a := range data.Achievements {
		c := *a
		c.UserID = g.userID
		if c.UnlockedAt.IsZero() {
			c.UnlockedAt = now
		}
		data.Achievements[i] = &c
	}
	for i, m := range data.Messages {
		c := *m
		c.UserID = g.userID
		if c.ID == "" {
			c.ID = uuid.New().String()
		}
		if c.CreatedAt.IsZero() {
			c.CreatedAt = now
		}
		data.Messages[i] = &c
	}

	if r, ok := g.s.(Replacer); ok {
		return r.Replace(ctx, g.userID, &data)
	}

	prev, err := Snapshot(ctx, g.s, g.userID)
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	if err := Rewrite(ctx, g.s, g.userID, &data); err != nil {
		if rerr := Rewrite(ctx, g.s, g.userID, prev); rerr != nil {
			return fmt.Errorf("%w (restore failed: %v)", err, rerr)
		}
		return err
	}
	return nil
}
