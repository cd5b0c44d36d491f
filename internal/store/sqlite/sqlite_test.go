package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/plantpal/plantpal/internal/model"
	"github.com/plantpal/plantpal/internal/store"
	"github.com/plantpal/plantpal/internal/store/storetest"
)

func makeSQLiteStore(t *testing.T) store.Store {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "plantpal.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := EnsureSchema(db); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	return NewWithDB(db)
}

func TestSQLiteStore_Compliance(t *testing.T) {
	storetest.Run(t, makeSQLiteStore)
}

func TestEnsureSchema_Idempotent(t *testing.T) {
	s := makeSQLiteStore(t).(*Store)
	if err := EnsureSchema(s.DB()); err != nil {
		t.Fatalf("second EnsureSchema: %v", err)
	}
	if err := s.HealthPing(context.Background()); err != nil {
		t.Fatalf("HealthPing: %v", err)
	}
}

func TestOpen_CreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "plantpal.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	_ = db.Close()
}

func TestClassify(t *testing.T) {
	if classify(nil) != nil {
		t.Fatalf("classify(nil) should be nil")
	}
	s := makeSQLiteStore(t).(*Store)
	_, err := s.DB().Exec(`INSERT INTO PlantStats (UserId, Level, Experience, TotalConversations, TotalMoodEntries, AverageMood,
        StreakDays, LongestStreak, PlantType, BirthDate, UpdateTime) VALUES ('u', 1, 0, 0, 0, 2.5, 0, 0, 'seedling', '2025-01-01', '2025-01-01')`)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	_, err = s.DB().Exec(`INSERT INTO PlantStats (UserId, Level, Experience, TotalConversations, TotalMoodEntries, AverageMood,
        StreakDays, LongestStreak, PlantType, BirthDate, UpdateTime) VALUES ('u', 1, 0, 0, 0, 2.5, 0, 0, 'seedling', '2025-01-01', '2025-01-01')`)
	if !errors.Is(classify(err), model.ErrConflict) {
		t.Fatalf("duplicate key: want ErrConflict, got %v", classify(err))
	}
}
