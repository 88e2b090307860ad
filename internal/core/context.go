package core

import (
	"fmt"

	"github.com/AlvinLimo/GrowFrika/internal/ml"
	"github.com/AlvinLimo/GrowFrika/internal/store"
)

// The rolling context handed to the chat model is bounded: one system seed
// plus at most maxContextEntries-1 user/assistant turns. It is derived from
// the persisted message log on every turn rather than held in process memory,
// so it survives restarts and is safe across instances.
const maxContextEntries = 20

const defaultPersona = "You are an expert coffee plant agronomist assistant. " +
	"Help users with coffee plant diseases, care, and cultivation advice. " +
	"Be warm and friendly so the user feels they are talking to someone empathetic " +
	"and well educated in the field."

// seedFor builds the system context entry persisted when a conversation is
// bootstrapped from a classification.
func seedFor(result *ml.ClassificationResult) string {
	switch result.Status {
	case ml.StatusSuccess, ml.StatusLowQuality:
		return fmt.Sprintf("You are an expert coffee plant agronomist. "+
			"The user just received a diagnosis: %s with %.2f%% confidence. "+
			"Previous advice: %s. Continue helping the user with follow-up questions "+
			"about this diagnosis or coffee plant care in general.",
			result.PredictedClass, result.Confidence*100, result.Reply())
	default:
		return defaultPersona
	}
}

// titleFor derives the conversation title from the classification outcome.
func titleFor(result *ml.ClassificationResult) string {
	switch result.Status {
	case ml.StatusSuccess:
		return fmt.Sprintf("%s Diagnosis", result.PredictedClass)
	case ml.StatusLowQuality:
		return fmt.Sprintf("%s (Low Confidence)", result.PredictedClass)
	default:
		return "Invalid Image Upload"
	}
}

// buildRollingContext assembles the adapter input: the system seed first,
// then prior turns oldest-first, then the new user message. prior must be
// newest-first as returned by the store.
func buildRollingContext(seed string, prior []store.Message, newUserMessage string) []ml.Turn {
	turns := make([]ml.Turn, 0, maxContextEntries)
	turns = append(turns, ml.Turn{Role: store.RoleSystem, Content: seed})

	// Oldest turns evicted first; the seed and the new message always fit.
	budget := maxContextEntries - 2
	if len(prior) > budget {
		prior = prior[:budget]
	}
	for i := len(prior) - 1; i >= 0; i-- {
		turns = append(turns, ml.Turn{Role: prior[i].Role, Content: prior[i].Content})
	}

	return append(turns, ml.Turn{Role: store.RoleUser, Content: newUserMessage})
}
