package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/plantpal/plantpal/internal/model"
	"github.com/plantpal/plantpal/internal/store"
)

// Open opens a PostgreSQL connection using the pgx stdlib driver and verifies connectivity.
func Open(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is empty")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// NewWithDB constructs a Postgres store backed directly by database/sql.
func NewWithDB(db *sql.DB) *Store { return &Store{db: db} }

// Store implements store.Store on PostgreSQL.
type Store struct{ db *sql.DB }

func (s *Store) Stats() store.Stats               { return &stats{db: s.db} }
func (s *Store) Moods() store.Moods               { return &moods{db: s.db} }
func (s *Store) Achievements() store.Achievements { return &achievements{db: s.db} }
func (s *Store) Messages() store.Messages         { return &messages{db: s.db} }

// Close releases the connection pool.
func (s *Store) Close() error { return s.db.Close() }

// HealthPing implements health.HealthPinger for Postgres-backed store.
func (s *Store) HealthPing(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

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

// Bootstrap verifies Postgres is reachable and the schema exists.
func Bootstrap(ctx context.Context, dsn string) error {
	if dsn == "" {
		return nil // No DSN configured, skip bootstrap
	}

	db, err := Open(dsn)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if err := db.PingContext(ctx); err != nil {
		return err
	}
	return EnsureSchema(ctx, db)
}

// EnsureSchema creates tables and indexes if they do not exist.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS plant_stats (
            user_id TEXT PRIMARY KEY,
            level INTEGER NOT NULL,
            experience INTEGER NOT NULL,
            total_conversations INTEGER NOT NULL,
            total_mood_entries INTEGER NOT NULL,
            average_mood DOUBLE PRECISION NOT NULL,
            streak_days INTEGER NOT NULL,
            longest_streak INTEGER NOT NULL,
            plant_type TEXT NOT NULL,
            last_interaction_time TIMESTAMPTZ,
            birth_date TIMESTAMPTZ NOT NULL,
            update_time TIMESTAMPTZ NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS mood_entries (
            seq BIGSERIAL PRIMARY KEY,
            entry_id TEXT NOT NULL UNIQUE,
            user_id TEXT NOT NULL,
            mood TEXT NOT NULL,
            intensity INTEGER NOT NULL,
            notes TEXT,
            triggers JSONB,
            creation_time TIMESTAMPTZ NOT NULL
        )`,
		`CREATE INDEX IF NOT EXISTS mood_entries_by_user ON mood_entries (user_id, creation_time DESC)`,
		`CREATE TABLE IF NOT EXISTS achievements (
            seq BIGSERIAL PRIMARY KEY,
            user_id TEXT NOT NULL,
            achievement_id TEXT NOT NULL,
            title TEXT NOT NULL,
            description TEXT NOT NULL,
            icon TEXT NOT NULL,
            category TEXT NOT NULL,
            rarity TEXT NOT NULL,
            unlock_time TIMESTAMPTZ NOT NULL,
            UNIQUE (user_id, achievement_id)
        )`,
		`CREATE TABLE IF NOT EXISTS chat_messages (
            seq BIGSERIAL PRIMARY KEY,
            message_id TEXT NOT NULL UNIQUE,
            user_id TEXT NOT NULL,
            role TEXT NOT NULL,
            content TEXT NOT NULL,
            sentiment TEXT,
            creation_time TIMESTAMPTZ NOT NULL
        )`,
		`CREATE INDEX IF NOT EXISTS chat_messages_by_user ON chat_messages (user_id, creation_time DESC)`,
	}
	for _, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return classify(err)
		}
	}
	return nil
}

// --- Stats ---
type stats struct{ db querier }

const statsColumns = `user_id, level, experience, total_conversations, total_mood_entries, average_mood,
            streak_days, longest_streak, plant_type, last_interaction_time, birth_date, update_time`

func (r *stats) Get(ctx context.Context, userID string) (*model.PlantStats, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+statsColumns+` FROM plant_stats WHERE user_id=$1`, userID)
	return scanStats(row)
}

func (r *stats) Init(ctx context.Context, st *model.PlantStats) (*model.PlantStats, error) {
	_, err := r.db.ExecContext(ctx, `
        INSERT INTO plant_stats (`+statsColumns+`)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
        ON CONFLICT (user_id) DO NOTHING
    `, statsArgs(st)...)
	if err != nil {
		return nil, classify(err)
	}
	return r.Get(ctx, st.UserID)
}

func (r *stats) Put(ctx context.Context, st *model.PlantStats) (*model.PlantStats, error) {
	row := r.db.QueryRowContext(ctx, `
        INSERT INTO plant_stats (`+statsColumns+`)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
        ON CONFLICT (user_id) DO UPDATE SET
            level = EXCLUDED.level,
            experience = EXCLUDED.experience,
            total_conversations = EXCLUDED.total_conversations,
            total_mood_entries = EXCLUDED.total_mood_entries,
            average_mood = EXCLUDED.average_mood,
            streak_days = EXCLUDED.streak_days,
            longest_streak = EXCLUDED.longest_streak,
            plant_type = EXCLUDED.plant_type,
            last_interaction_time = EXCLUDED.last_interaction_time,
            update_time = EXCLUDED.update_time
        RETURNING `+statsColumns, statsArgs(st)...)
	return scanStats(row)
}

func (r *stats) Delete(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM plant_stats WHERE user_id=$1`, userID)
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
	_, err := r.db.ExecContext(ctx, `
        INSERT INTO mood_entries (entry_id, user_id, mood, intensity, notes, triggers, creation_time)
        VALUES ($1,$2,$3,$4,$5,$6::jsonb,$7)
    `, e.ID, e.UserID, string(e.Mood), e.Intensity, e.Notes, triggers, e.CreatedAt.UTC())
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
	rows, err := r.db.QueryContext(ctx, `
        SELECT entry_id, user_id, mood, intensity, notes, triggers, creation_time
        FROM mood_entries WHERE user_id=$1
        ORDER BY creation_time DESC, seq DESC
        LIMIT $2
    `, userID, limit)
	if err != nil {
		return nil, classify(err)
	}
	defer func() { _ = rows.Close() }()

	var res []*model.MoodEntry
	for rows.Next() {
		var e model.MoodEntry
		var mood string
		var notes *string
		var triggers []byte
		if err := rows.Scan(&e.ID, &e.UserID, &mood, &e.Intensity, &notes, &triggers, &e.CreatedAt); err != nil {
			return nil, classify(err)
		}
		e.Mood = model.Mood(mood)
		e.Notes = notes
		if len(triggers) > 0 {
			if err := json.Unmarshal(triggers, &e.Triggers); err != nil {
				return nil, err
			}
		}
		res = append(res, &e)
	}
	return res, classify(rows.Err())
}

func (r *moods) Count(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM mood_entries WHERE user_id=$1`, userID).Scan(&n)
	return n, classify(err)
}

func (r *moods) DeleteAll(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM mood_entries WHERE user_id=$1`, userID)
	return classify(err)
}

// --- Achievements ---
type achievements struct{ db querier }

const achievementColumns = `user_id, achievement_id, title, description, icon, category, rarity, unlock_time`

func (r *achievements) List(ctx context.Context, userID string) ([]*model.Achievement, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT `+achievementColumns+`
        FROM achievements WHERE user_id=$1
        ORDER BY unlock_time DESC, seq DESC
    `, userID)
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
	res, err := r.db.ExecContext(ctx, `
        INSERT INTO achievements (`+achievementColumns+`)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        ON CONFLICT (user_id, achievement_id) DO NOTHING
    `, a.UserID, a.AchievementID, a.Title, a.Description, a.Icon, a.Category, a.Rarity, a.UnlockedAt.UTC())
	if err != nil {
		return nil, false, classify(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, err
	}

	var out model.Achievement
	row := r.db.QueryRowContext(ctx, `
        SELECT `+achievementColumns+`
        FROM achievements WHERE user_id=$1 AND achievement_id=$2
    `, a.UserID, a.AchievementID)
	if err := row.Scan(&out.UserID, &out.AchievementID, &out.Title, &out.Description, &out.Icon, &out.Category, &out.Rarity, &out.UnlockedAt); err != nil {
		return nil, false, classify(err)
	}
	return &out, n > 0, nil
}

func (r *achievements) DeleteAll(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM achievements WHERE user_id=$1`, userID)
	return classify(err)
}

// --- Messages ---
type messages struct{ db querier }

func (r *messages) Append(ctx context.Context, m *model.ChatMessage) (*model.ChatMessage, error) {
	_, err := r.db.ExecContext(ctx, `
        INSERT INTO chat_messages (message_id, user_id, role, content, sentiment, creation_time)
        VALUES ($1,$2,$3,$4,$5,$6)
    `, m.ID, m.UserID, string(m.Role), m.Content, string(m.Sentiment), m.CreatedAt.UTC())
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
	rows, err := r.db.QueryContext(ctx, `
        SELECT message_id, user_id, role, content, sentiment, creation_time FROM (
            SELECT seq, message_id, user_id, role, content, sentiment, creation_time
            FROM chat_messages WHERE user_id=$1
            ORDER BY creation_time DESC, seq DESC
            LIMIT $2
        ) recent
        ORDER BY creation_time ASC, seq ASC
    `, userID, limit)
	if err != nil {
		return nil, classify(err)
	}
	defer func() { _ = rows.Close() }()

	var res []*model.ChatMessage
	for rows.Next() {
		var m model.ChatMessage
		var role string
		var sentiment *string
		if err := rows.Scan(&m.ID, &m.UserID, &role, &m.Content, &sentiment, &m.CreatedAt); err != nil {
			return nil, classify(err)
		}
		m.Role = model.Role(role)
		if sentiment != nil {
			m.Sentiment = model.Sentiment(*sentiment)
		}
		res = append(res, &m)
	}
	return res, classify(rows.Err())
}

func (r *messages) Count(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chat_messages WHERE user_id=$1`, userID).Scan(&n)
	return n, classify(err)
}

func (r *messages) DeleteAll(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM chat_messages WHERE user_id=$1`, userID)
	return classify(err)
}
