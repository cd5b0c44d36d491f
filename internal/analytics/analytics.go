// Package analytics summarizes a user's mood history.
package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/plantpal/plantpal/internal/model"
)

const (
	trendDays          = 7
	intensityWindow    = 10
	consistencyRamp    = 7
	consistencyPerDay  = 14
	consistencyHorizon = 30
)

// Summary is the mood analytics payload.
type Summary struct {
	TotalEntries     int                `json:"totalEntries"`
	Distribution     map[model.Mood]int `json:"moodDistribution"`
	AverageIntensity float64            `json:"averageIntensity"`
	AverageMood      float64            `json:"averageMood"`
	MostCommonMood   model.Mood         `json:"mostCommonMood"`
	WeeklyTrend      []DayTrend         `json:"weeklyTrend"`
	IntensityTrend   []IntensityPoint   `json:"intensityTrend"`
	MoodScore        int                `json:"moodScore"`
	ConsistencyScore float64            `json:"consistencyScore"`
}

// DayTrend is one calendar day of the weekly trend.
type DayTrend struct {
	Date        string  `json:"date"`
	Weekday     string  `json:"weekday"`
	AverageMood float64 `json:"averageMood"`
	EntryCount  int     `json:"entryCount"`
}

// IntensityPoint is one of the most recent entries, oldest first.
type IntensityPoint struct {
	Session   int        `json:"session"`
	Intensity int        `json:"intensity"`
	Mood      model.Mood `json:"mood"`
}

// Summarize computes analytics over entries in any order. Days are
// calendar days in loc. It returns nil when entries is empty.
func Summarize(entries []*model.MoodEntry, now time.Time, loc *time.Location) *Summary {
	if len(entries) == 0 {
		return nil
	}
	if loc == nil {
		loc = time.UTC
	}

	sorted := make([]*model.MoodEntry, 0, len(entries))
	for _, e := range entries {
		if e != nil {
			sorted = append(sorted, e)
		}
	}
	if len(sorted) == 0 {
		return nil
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].CreatedAt.Before(sorted[j].CreatedAt) })

	s := &Summary{
		TotalEntries: len(sorted),
		Distribution: make(map[model.Mood]int),
	}
	var intensity, valence int
	for _, e := range sorted {
		s.Distribution[normalize(e.Mood)]++
		intensity += e.Intensity
		valence += e.Mood.Valence()
	}
	n := float64(len(sorted))
	s.AverageIntensity = round1(float64(intensity) / n)
	s.AverageMood = round1(float64(valence) / n)
	s.MoodScore = int(math.Round(float64(valence) / n * 20))
	s.MostCommonMood = mostCommon(s.Distribution)
	s.ConsistencyScore = consistency(len(sorted))
	s.WeeklyTrend = weeklyTrend(sorted, now, loc)
	s.IntensityTrend = intensityTrend(sorted)
	return s
}

func normalize(m model.Mood) model.Mood {
	if m.Valid() {
		return m
	}
	return model.MoodNeutral
}

// mostCommon picks the highest count; ties go to the earlier mood in
// valence order.
func mostCommon(dist map[model.Mood]int) model.Mood {
	best, bestN := model.MoodNeutral, 0
	for _, m := range model.Moods {
		if dist[m] > bestN {
			best, bestN = m, dist[m]
		}
	}
	return best
}

func consistency(n int) float64 {
	if n < consistencyRamp {
		return float64(n * consistencyPerDay)
	}
	return round1(math.Min(100, float64(n)/consistencyHorizon*100))
}

func weeklyTrend(sorted []*model.MoodEntry, now time.Time, loc *time.Location) []DayTrend {
	y, m, d := now.In(loc).Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, loc)

	type acc struct{ sum, count int }
	days := make([]acc, trendDays)
	first := today.AddDate(0, 0, -(trendDays - 1))
	for _, e := range sorted {
		ey, em, ed := e.CreatedAt.In(loc).Date()
		day := time.Date(ey, em, ed, 0, 0, 0, 0, loc)
		if day.Before(first) || day.After(today) {
			continue
		}
		idx := daysApart(first, day)
		if idx < 0 || idx >= trendDays {
			continue
		}
		days[idx].sum += e.Mood.Valence()
		days[idx].count++
	}

	out := make([]DayTrend, trendDays)
	for i := range days {
		day := first.AddDate(0, 0, i)
		t := DayTrend{
			Date:       day.Format("2006-01-02"),
			Weekday:    day.Format("Mon"),
			EntryCount: days[i].count,
		}
		if days[i].count > 0 {
			t.AverageMood = round1(float64(days[i].sum) / float64(days[i].count))
		}
		out[i] = t
	}
	return out
}

// daysApart counts calendar days between two local midnights, immune to
// DST shifts.
func daysApart(a, b time.Time) int {
	ua := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	ub := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(ub.Sub(ua).Hours() / 24)
}

func intensityTrend(sorted []*model.MoodEntry) []IntensityPoint {
	tail := sorted
	if len(tail) > intensityWindow {
		tail = tail[len(tail)-intensityWindow:]
	}
	out := make([]IntensityPoint, len(tail))
	for i, e := range tail {
		out[i] = IntensityPoint{Session: i + 1, Intensity: e.Intensity, Mood: normalize(e.Mood)}
	}
	return out
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
