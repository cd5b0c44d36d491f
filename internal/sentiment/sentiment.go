// Package sentiment is a keyword classifier for chat messages. Matching is
// case-insensitive substring containment, and crisis phrases take priority
// over everything else.
package sentiment

import (
	"math"
	"strings"

	"github.com/plantpal/plantpal/internal/model"
)

// Analysis is the classifier output.
type Analysis struct {
	Sentiment          model.Sentiment `json:"sentiment"`
	Confidence         float64         `json:"confidence"`
	Emotions           []string        `json:"emotions"`
	CrisisRisk         bool            `json:"crisisRisk"`
	SupportSuggestions []string        `json:"supportSuggestions"`
}

var crisisKeywords = []string{
	"suicide", "kill myself", "end it all", "hurt myself", "die", "death",
	"worthless", "hopeless", "can't go on", "give up", "self harm",
}

var positiveWords = []string{"happy", "good", "better", "great", "excited", "joy", "love", "amazing", "wonderful"}

var negativeWords = []string{"sad", "angry", "upset", "bad", "terrible", "hate", "awful", "depressed", "anxious"}

// CrisisResources is returned for every crisis classification.
var CrisisResources = []string{
	"Please reach out to a mental health professional immediately",
	"Contact: AASRA - 91-9820466726 (24/7 suicide prevention)",
	"iCALL - 022-25521111 (Mon-Sat, 8am-10pm)",
	"You are not alone, and help is available",
}

var copingSuggestions = []string{
	"Try some deep breathing exercises",
	"Consider talking to a friend or family member",
	"Take a short walk in nature",
}

const (
	crisisConfidence = 0.95
	baseConfidence   = 0.6
	maxConfidence    = 0.9
)

// Analyze classifies message.
func Analyze(message string) Analysis {
	lc := strings.ToLower(message)
	// Typographic apostrophes from mobile keyboards.
	lc = strings.ReplaceAll(lc, "’", "'")

	if containsAny(lc, crisisKeywords) > 0 {
		return Analysis{
			Sentiment:          model.SentimentCrisis,
			Confidence:         crisisConfidence,
			Emotions:           []string{"distress", "despair"},
			CrisisRisk:         true,
			SupportSuggestions: append([]string(nil), CrisisResources...),
		}
	}

	pos := containsAny(lc, positiveWords)
	neg := containsAny(lc, negativeWords)

	out := Analysis{
		Sentiment:          model.SentimentNeutral,
		Confidence:         baseConfidence,
		Emotions:           []string{"calm", "neutral"},
		SupportSuggestions: []string{},
	}
	switch {
	case pos > neg:
		out.Sentiment = model.SentimentPositive
		out.Confidence = confidence(pos)
		out.Emotions = []string{"happiness", "contentment"}
	case neg > pos:
		out.Sentiment = model.SentimentNegative
		out.Confidence = confidence(neg)
		out.Emotions = []string{"sadness", "concern"}
		out.SupportSuggestions = append([]string(nil), copingSuggestions...)
	}
	return out
}

// containsAny counts the keywords present in s; repeats count once.
func containsAny(s string, keywords []string) int {
	n := 0
	for _, k := range keywords {
		if strings.Contains(s, k) {
			n++
		}
	}
	return n
}

func confidence(hits int) float64 {
	c := math.Min(maxConfidence, baseConfidence+0.1*float64(hits))
	return math.Round(c*100) / 100
}
