package sentiment

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/plantpal/plantpal/internal/model"
)

func TestAnalyze(t *testing.T) {
	cases := []struct {
		name       string
		in         string
		sentiment  model.Sentiment
		confidence float64
	}{
		{"empty", "", model.SentimentNeutral, 0.6},
		{"neutral", "I went to the market", model.SentimentNeutral, 0.6},
		{"one positive", "Today was GOOD", model.SentimentPositive, 0.7},
		{"two positive", "happy and excited", model.SentimentPositive, 0.8},
		{"capped", "happy good great amazing wonderful joy", model.SentimentPositive, 0.9},
		{"repeats count once", "sad sad sad", model.SentimentNegative, 0.7},
		{"tie", "happy but sad", model.SentimentNeutral, 0.6},
		{"negative wins", "angry and upset but good", model.SentimentNegative, 0.8},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Analyze(tc.in)
			assert.Equal(t, tc.sentiment, got.Sentiment)
			assert.InDelta(t, tc.confidence, got.Confidence, 1e-9)
			assert.False(t, got.CrisisRisk)
		})
	}
}

func TestAnalyze_Crisis(t *testing.T) {
	for _, in := range []string{
		"I feel hopeless",
		"I just want to END IT ALL",
		"I can't go on like this",
		"I can’t go on like this",
		"I'm happy but I want to give up",
	} {
		got := Analyze(in)
		assert.Equal(t, model.SentimentCrisis, got.Sentiment, in)
		assert.True(t, got.CrisisRisk, in)
		assert.InDelta(t, 0.95, got.Confidence, 1e-9)
		assert.Equal(t, []string{"distress", "despair"}, got.Emotions)
		assert.Equal(t, CrisisResources, got.SupportSuggestions)
	}
}

func TestAnalyze_Suggestions(t *testing.T) {
	assert.Len(t, Analyze("I am so anxious").SupportSuggestions, 3)
	assert.Empty(t, Analyze("I am happy").SupportSuggestions)
	assert.Equal(t, []string{"happiness", "contentment"}, Analyze("love it").Emotions)
	assert.Equal(t, []string{"sadness", "concern"}, Analyze("awful").Emotions)
}

func TestAnalyze_ResultsAreIndependent(t *testing.T) {
	a := Analyze("hopeless")
	a.SupportSuggestions[0] = "mutated"
	assert.NotEqual(t, "mutated", CrisisResources[0])
}
