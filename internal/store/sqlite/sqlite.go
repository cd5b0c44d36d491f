// Package sqlite is the local-file store.Store backed by modernc.org/sqlite.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/plantpal/plantpal/internal/model"
	"github.com/plantpal/plantpal/internal/store"
)

// NewWithDB wires a store around an open connection. Call EnsureSchema first.
func NewWithDB(db *sql.DB) *Store { return &Store{db: db} }

// Store implements store.Store on SQLite.
type Store struct{ db *sql.DB }

func (s *Store) Stats() store.Stats               { return &stats{db: s.db} }
func (s *Store) Moods() store.Moods               { return &moods{db: s.db} }
func (s *Store) Achievements() store.Achievements { return &achievements{db: s.db} }
func (s *Store) Messages() store.Messages         { return &messages{db: s.db} }

// DB exposes the underlying connection (local-only use case).
func (s *Store) DB() *sql.DB { return s.db }

// Close releases the connection pool.
func (s *Store) Close() error { return s.db.Close() }

// HealthPing implements health.HealthPinger.
func (s *Store) HealthPing(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// txStore runs the repositories inside one transaction.
type txStore struct{ tx *sql.Tx }

func (t txStore) Stats() store.Stats               { return &stats{db: t.tx} }
func (t txStore) Moods() store.Moods               { return &moods{db: t.tx} }
func (t txStore) Achievements() store.Achievements { return &achievements{db: t.tx} }
func (t txStore) Messages() store.Messages         { return &messages{db: t.tx} }

// Replace implements store.Replacer in a single transaction.
func (s *Store) Replace(ctx context.Context, userID string, data *store.UserData) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify(err)
	}
	if err := store.Rewrite(ctx, txStore{tx}, userID, data); err != nil {
		_ = tx.Rollback()
		return err
	}
	return classify(tx.Commit())
}

// --- Stats ---
type stats struct{ db querier }

const statsColumns = `UserId, Level, Experience, TotalConversations, TotalMoodEntries, AverageMood,
            StreakDays, LongestStreak, PlantType, LastInteractionTime, BirthDate, UpdateTime`

func (r *stats) Get(ctx context.Context, userID string) (*model.PlantStats, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+statsColumns+` FROM PlantStats WHERE UserId = ?`, userID)
	return scanStats(row)
}

func (r *stats) Init(ctx context.Context, st *model.PlantStats) (*model.PlantStats, error) {
	_, err := r.db.ExecContext(ctx, `INSERT INTO PlantStats (`+statsColumns+`)
        VALUES (?,?,?,?,?,?,?,?,?,?,?,?)
        ON CONFLICT(UserId) DO NOTHING`, statsArgs(st)...)
	if err != nil {
		return nil, classify(err)
	}
	return r.Get(ctx, st.UserID)
}

func (r *stats) Put(ctx context.Context, st *model.PlantStats) (*model.PlantStats, error) {
	_, err := r.db.ExecContext(ctx, `INSERT INTO PlantStats (`+statsColumns+`)
        VALUES (?,?,?,?,?,?,?,?,?,?,?,?)
        ON CONFLICT(UserId) DO UPDATE SET
            Level = excluded.Level,
            Experience = excluded.Experience,
            TotalConversations = excluded.TotalConversations,
            TotalMoodEntries = excluded.TotalMoodEntries,
            AverageMood = excluded.AverageMood,
            StreakDays = excluded.StreakDays,
            LongestStreak = excluded.LongestStreak,
            PlantType = excluded.PlantType,
            LastInteractionTime = excluded.LastInteractionTime,
            UpdateTime = excluded.UpdateTime`, statsArgs(st)...)
	if err != nil {
		return nil, classify(err)
	}
	return r.Get(ctx, st.UserID)
}

func (r *stats) Delete(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM PlantStats WHERE UserId = ?`, userID)
	return classify(err)
}

func statsArgs(st *model.PlantStats) []any {
	var last any
	if st.LastInteractionAt != nil {
		last = st.LastInteractionAt.UTC()
	}
	return []any{
		st.UserID, st.Level, st.Experience, st.TotalConversations, st.TotalMoodEntries, st.AverageMood,
		st.StreakDays, st.LongestStreak, string(st.PlantType), last, st.BirthDate.UTC(), st.UpdatedAt.UTC(),
	}
}

func scanStats(row *sql.Row) (*model.PlantStats, error) {
	var out model.PlantStats
	var plantType string
	var last sql.NullTime
	if err := row.Scan(&out.UserID, &out.Level, &out.Experience, &out.TotalConversations, &out.TotalMoodEntries,
		&out.AverageMood, &out.StreakDays, &out.LongestStreak, &plantType, &last, &out.BirthDate, &out.UpdatedAt); err != nil {
		return nil, classify(err)
	}
	out.PlantType = model.PlantType(plantType)
	if last.Valid {
		t := last.Time
		out.LastInteractionAt = &t
	}
	return &out, nil
}

// --- Moods ---
type moods struct{ db querier }

func (r *moods) Append(ctx context.Context, e *model.MoodEntry) (*model.MoodEntry, error) {
	var triggers any
	if len(e.Triggers) > 0 {
		b, err := json.Marshal(e.Triggers)
		if err != nil {
			return nil, err
		}
		triggers = string(b)
	}
	var notes any
	if e.Notes != nil {
		notes = *e.Notes
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO MoodEntries (EntryId, UserId, Mood, Intensity, Notes, Triggers, CreationTime)
        VALUES (?,?,?,?,?,?,?)`, e.ID, e.UserID, string(e.Mood), e.Intensity, notes, triggers, e.CreatedAt.UTC())
	if err != nil {
		return nil, classify(err)
	}
	out := *e
	return &out, nil
}

func (r *moods) List(ctx context.Context, userID string, limit int) ([]*model.MoodEntry, error) {
	if limit <= 0 {
		limit = store.DefaultMoodLimit
	}
	rows, err := r.db.QueryContext(ctx, `SELECT EntryId, UserId, Mood, Intensity, Notes, Triggers, CreationTime
        FROM MoodEntries WHERE UserId = ? ORDER BY CreationTime DESC, Seq DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, classify(err)
	}
	defer func() { _ = rows.Close() }()

	var res []*model.MoodEntry
	for rows.Next() {
		var e model.MoodEntry
		var mood string
		var notes, triggers sql.NullString
		if err := rows.Scan(&e.ID, &e.UserID, &mood, &e.Intensity, &notes, &triggers, &e.CreatedAt); err != nil {
			return nil, classify(err)
		}
		e.Mood = model.Mood(mood)
		if notes.Valid {
			n := notes.String
			e.Notes = &n
		}
		if triggers.Valid && triggers.String != "" {
			if err := json.Unmarshal([]byte(triggers.String), &e.Triggers); err != nil {
				return nil, err
			}
		}
		res = append(res, &e)
	}
	return res, classify(rows.Err())
}

func (r *moods) Count(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM MoodEntries WHERE UserId = ?`, userID).Scan(&n)
	return n, classify(err)
}

func (r *moods) DeleteAll(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM MoodEntries WHERE UserId = ?`, userID)
	return classify(err)
}

// --- Achievements ---
type achievements struct{ db querier }

const achievementColumns = `UserId, AchievementId, Title, Description, Icon, Category, Rarity, UnlockTime`

func (r *achievements) List(ctx context.Context, userID string) ([]*model.Achievement, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+achievementColumns+`
        FROM Achievements WHERE UserId = ? ORDER BY UnlockTime DESC, Seq DESC`, userID)
	if err != nil {
		return nil, classify(err)
	}
	defer func() { _ = rows.Close() }()

	var res []*model.Achievement
	for rows.Next() {
		var a model.Achievement
		if err := rows.Scan(&a.UserID, &a.AchievementID, &a.Title, &a.Description, &a.Icon, &a.Category, &a.Rarity, &a.UnlockedAt); err != nil {
			return nil, classify(err)
		}
		res = append(res, &a)
	}
	return res, classify(rows.Err())
}

func (r *achievements) Record(ctx context.Context, a *model.Achievement) (*model.Achievement, bool, error) {
	res, err := r.db.ExecContext(ctx, `INSERT INTO Achievements (`+achievementColumns+`)
        VALUES (?,?,?,?,?,?,?,?)
        ON CONFLICT(UserId, AchievementId) DO NOTHING`,
		a.UserID, a.AchievementID, a.Title, a.Description, a.Icon, a.Category, a.Rarity, a.UnlockedAt.UTC())
	if err != nil {
		return nil, false, classify(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, err
	}

	var out model.Achievement
	row := r.db.QueryRowContext(ctx, `SELECT `+achievementColumns+`
        FROM Achievements WHERE UserId = ? AND AchievementId = ?`, a.UserID, a.AchievementID)
	if err := row.Scan(&out.UserID, &out.AchievementID, &out.Title, &out.Description, &out.Icon, &out.Category, &out.Rarity, &out.UnlockedAt); err != nil {
		return nil, false, classify(err)
	}
	return &out, n > 0, nil
}

func (r *achievements) DeleteAll(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM Achievements WHERE UserId = ?`, userID)
	return classify(err)
}

// --- Messages ---
type messages struct{ db querier }

func (r *messages) Append(ctx context.Context, m *model.ChatMessage) (*model.ChatMessage, error) {
	_, err := r.db.ExecContext(ctx, `INSERT INTO ChatMessages (MessageId, UserId, Role, Content, Sentiment, CreationTime)
        VALUES (?,?,?,?,?,?)`, m.ID, m.UserID, string(m.Role), m.Content, string(m.Sentiment), m.CreatedAt.UTC())
	if err != nil {
		return nil, classify(err)
	}
	out := *m
	return &out, nil
}

func (r *messages) List(ctx context.Context, userID string, limit int) ([]*model.ChatMessage, error) {
	if limit <= 0 {
		limit = store.DefaultMessageLimit
	}
	rows, err := r.db.QueryContext(ctx, `SELECT MessageId, UserId, Role, Content, Sentiment, CreationTime
        FROM ChatMessages WHERE UserId = ? ORDER BY CreationTime DESC, Seq DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, classify(err)
	}
	defer func() { _ = rows.Close() }()

	var res []*model.ChatMessage
	for rows.Next() {
		var m model.ChatMessage
		var role string
		var sentiment sql.NullString
		if err := rows.Scan(&m.ID, &m.UserID, &role, &m.Content, &sentiment, &m.CreatedAt); err != nil {
			return nil, classify(err)
		}
		m.Role = model.Role(role)
		m.Sentiment = model.Sentiment(sentiment.String)
		res = append(res, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	// newest first from the query; callers want chronological order
	for i, j := 0, len(res)-1; i < j; i, j = i+1, j-1 {
		res[i], res[j] = res[j], res[i]
	}
	return res, nil
}

func (r *messages) Count(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ChatMessages WHERE UserId = ?`, userID).Scan(&n)
	return n, classify(err)
}

func (r *messages) DeleteAll(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM ChatMessages WHERE UserId = ?`, userID)
	return classify(err)
}
