package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Open opens (or creates) a SQLite database at the given path and enables WAL journal mode.
func Open(path string) (*sql.DB, error) {
	// ensure parent directory exists to avoid SQLITE_CANTOPEN errors
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// EnsureSchema creates the tables if they do not exist.
func EnsureSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS PlantStats (
            UserId TEXT PRIMARY KEY,
            Level INTEGER NOT NULL,
            Experience INTEGER NOT NULL,
            TotalConversations INTEGER NOT NULL,
            TotalMoodEntries INTEGER NOT NULL,
            AverageMood REAL NOT NULL,
            StreakDays INTEGER NOT NULL,
            LongestStreak INTEGER NOT NULL,
            PlantType TEXT NOT NULL,
            LastInteractionTime TIMESTAMP,
            BirthDate TIMESTAMP NOT NULL,
            UpdateTime TIMESTAMP NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS MoodEntries (
            Seq INTEGER PRIMARY KEY AUTOINCREMENT,
            EntryId TEXT NOT NULL UNIQUE,
            UserId TEXT NOT NULL,
            Mood TEXT NOT NULL,
            Intensity INTEGER NOT NULL,
            Notes TEXT,
            Triggers TEXT,
            CreationTime TIMESTAMP NOT NULL
        );`,
		`CREATE INDEX IF NOT EXISTS MoodEntriesByUser ON MoodEntries(UserId, CreationTime);`,
		`CREATE TABLE IF NOT EXISTS Achievements (
            Seq INTEGER PRIMARY KEY AUTOINCREMENT,
            UserId TEXT NOT NULL,
            AchievementId TEXT NOT NULL,
            Title TEXT NOT NULL,
            Description TEXT NOT NULL,
            Icon TEXT NOT NULL,
            Category TEXT NOT NULL,
            Rarity TEXT NOT NULL,
            UnlockTime TIMESTAMP NOT NULL,
            UNIQUE(UserId, AchievementId)
        );`,
		`CREATE TABLE IF NOT EXISTS ChatMessages (
            Seq INTEGER PRIMARY KEY AUTOINCREMENT,
            MessageId TEXT NOT NULL UNIQUE,
            UserId TEXT NOT NULL,
            Role TEXT NOT NULL,
            Content TEXT NOT NULL,
            Sentiment TEXT,
            CreationTime TIMESTAMP NOT NULL
        );`,
		`CREATE INDEX IF NOT EXISTS ChatMessagesByUser ON ChatMessages(UserId, CreationTime);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}
