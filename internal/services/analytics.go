package services

import (
	"context"

	"github.com/plantpal/plantpal/internal/analytics"
	"github.com/plantpal/plantpal/internal/model"
)

// AnalyticsService computes mood analytics on top of ProgressService.
type AnalyticsService struct {
	progress *ProgressService
}

func NewAnalyticsService(p *ProgressService) *AnalyticsService {
	return &AnalyticsService{progress: p}
}

// MoodAnalytics summarizes every stored mood entry. It returns nil when the
// user has none.
func (s *AnalyticsService) MoodAnalytics(ctx context.Context, userID string) (*analytics.Summary, error) {
	g, err := s.progress.gateway(userID)
	if err != nil {
		return nil, err
	}
	entries, err := retryValue(ctx, s.progress.retry, "list_moods", func() ([]*model.MoodEntry, error) {
		return g.ListMoodEntries(ctx, s.progress.exportLimit)
	})
	if err != nil {
		return nil, err
	}
	eng := s.progress.engine
	return analytics.Summarize(entries, eng.Now(), eng.Location()), nil
}
