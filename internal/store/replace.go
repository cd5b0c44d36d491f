package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/plantpal/plantpal/internal/model"
)

// Rewrite clears userID and writes data through the repositories of s, one
// record at a time. It is not atomic on its own; Replacer implementations
// call it inside a transaction.
func Rewrite(ctx context.Context, s Store, userID string, data *UserData) error {
	if err := deleteUser(ctx, s, userID); err != nil {
		return err
	}
	if data == nil {
		return nil
	}
	if data.Stats != nil {
		if _, err := s.Stats().Put(ctx, data.Stats); err != nil {
			return fmt.Errorf("put stats: %w", err)
		}
	}
	for _, e := range data.Moods {
		if _, err := s.Moods().Append(ctx, e); err != nil {
			return fmt.Errorf("append mood %s: %w", e.ID, err)
		}
	}
	for _, a := range data.Achievements {
		if _, _, err := s.Achievements().Record(ctx, a); err != nil {
			return fmt.Errorf("record achievement %s: %w", a.AchievementID, err)
		}
	}
	for _, m := range data.Messages {
		if _, err := s.Messages().Append(ctx, m); err != nil {
			return fmt.Errorf("append message %s: %w", m.ID, err)
		}
	}
	return nil
}

func deleteUser(ctx context.Context, s Store, userID string) error {
	if err := s.Messages().DeleteAll(ctx, userID); err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}
	if err := s.Moods().DeleteAll(ctx, userID); err != nil {
		return fmt.Errorf("delete moods: %w", err)
	}
	if err := s.Achievements().DeleteAll(ctx, userID); err != nil {
		return fmt.Errorf("delete achievements: %w", err)
	}
	if err := s.Stats().Delete(ctx, userID); err != nil {
		return fmt.Errorf("delete stats: %w", err)
	}
	return nil
}

// Snapshot reads every record userID owns. Stats is nil when the user has
// no row.
func Snapshot(ctx context.Context, s Store, userID string) (*UserData, error) {
	out := &UserData{}
	st, err := s.Stats().Get(ctx, userID)
	switch {
	case err == nil:
		out.Stats = st
	case !errors.Is(err, model.ErrNotFound):
		return nil, fmt.Errorf("get stats: %w", err)
	}

	moodCount, err := s.Moods().Count(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("count moods: %w", err)
	}
	if moodCount > 0 {
		if out.Moods, err = s.Moods().List(ctx, userID, moodCount); err != nil {
			return nil, fmt.Errorf("list moods: %w", err)
		}
		// oldest first so a rewrite keeps insertion order
		for i, j := 0, len(out.Moods)-1; i < j; i, j = i+1, j-1 {
			out.Moods[i], out.Moods[j] = out.Moods[j], out.Moods[i]
		}
	}
	if out.Achievements, err = s.Achievements().List(ctx, userID); err != nil {
		return nil, fmt.Errorf("list achievements: %w", err)
	}
	msgCount, err := s.Messages().Count(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("count messages: %w", err)
	}
	if msgCount > 0 {
		if out.Messages, err = s.Messages().List(ctx, userID, msgCount); err != nil {
			return nil, fmt.Errorf("list messages: %w", err)
		}
	}
	return out, nil
}
