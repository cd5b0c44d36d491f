package services

import (
	"context"

	"github.com/plantpal/plantpal/internal/model"
	"github.com/plantpal/plantpal/internal/sentiment"
)

// Responder produces the companion's reply. history holds the most recent
// messages, oldest first, excluding message itself.
type Responder interface {
	Respond(ctx context.Context, history []*model.ChatMessage, message string) (string, error)
}

// ResponderFunc adapts a function to Responder.
type ResponderFunc func(ctx context.Context, history []*model.ChatMessage, message string) (string, error)

func (f ResponderFunc) Respond(ctx context.Context, history []*model.ChatMessage, message string) (string, error) {
	return f(ctx, history, message)
}

// NotConfiguredReply is sent when no responder backend is available.
const NotConfiguredReply = "I'm not fully configured yet! Please add your Google Gemini API key to start our conversation. 🌱"

// UnconfiguredResponder always answers with NotConfiguredReply.
var UnconfiguredResponder Responder = ResponderFunc(func(context.Context, []*model.ChatMessage, string) (string, error) {
	return NotConfiguredReply, nil
})

var cannedReplies = map[model.Sentiment][]string{
	model.SentimentPositive: {
		"That's wonderful! I can feel your positive energy helping me grow! 🌟 Tell me more about what's making you feel so good!",
		"Your happiness makes my leaves shine brighter! ✨ I'm so glad you're feeling great. What's been the highlight of your day?",
		"I love your enthusiasm! 🌸 It's contagious - I feel myself growing stronger just from your positive vibes!",
	},
	model.SentimentNegative: {
		"I hear you, and I want you to know that your feelings are valid. 🌿 Sometimes we all have tough days. What's been weighing on your mind?",
		"I'm here to listen and support you through this. 💚 Remember, just like how I need both sunshine and rain to grow, difficult times can help us grow stronger too.",
		"Thank you for trusting me with your feelings. 🌱 Let's work through this together. What's one small thing that might help you feel a little better right now?",
	},
	model.SentimentNeutral: {
		"I appreciate you sharing with me! 🌿 Sometimes it's okay to just be. Is there anything specific on your mind today?",
		"Thanks for checking in! 🌱 I'm here whenever you want to chat about anything - big or small. How can I support you today?",
		"I'm growing stronger just from our conversation! 💚 What's something you're curious about or thinking about lately?",
	},
}

// CannedResponder picks an offline reply matching the message sentiment.
// The choice rotates with the conversation length so it is deterministic.
type CannedResponder struct{}

func (CannedResponder) Respond(_ context.Context, history []*model.ChatMessage, message string) (string, error) {
	a := sentiment.Analyze(message)
	replies, ok := cannedReplies[a.Sentiment]
	if !ok {
		replies = cannedReplies[model.SentimentNeutral]
	}
	return replies[len(history)%len(replies)], nil
}
