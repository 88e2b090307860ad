package core

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/AlvinLimo/GrowFrika/internal/ml"
	"github.com/AlvinLimo/GrowFrika/internal/store"
)

func TestTitleFor(t *testing.T) {
	tests := []struct {
		name   string
		result ml.ClassificationResult
		want   string
	}{
		{"success", ml.ClassificationResult{Status: ml.StatusSuccess, PredictedClass: "rust"}, "rust Diagnosis"},
		{"low quality", ml.ClassificationResult{Status: ml.StatusLowQuality, PredictedClass: "phoma"}, "phoma (Low Confidence)"},
		{"invalid image", ml.ClassificationResult{Status: ml.StatusInvalid}, "Invalid Image Upload"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, titleFor(&tt.result))
		})
	}
}

func TestSeedFor(t *testing.T) {
	seed := seedFor(&ml.ClassificationResult{
		Status:         ml.StatusSuccess,
		PredictedClass: "miner",
		Confidence:     0.91,
		Advice:         "Prune affected leaves.",
	})
	require.Contains(t, seed, "miner")
	require.Contains(t, seed, "91.00%")
	require.Contains(t, seed, "Prune affected leaves.")

	require.Equal(t, defaultPersona, seedFor(&ml.ClassificationResult{Status: ml.StatusInvalid}))
}

func TestBuildRollingContext_SeedFirstNewMessageLast(t *testing.T) {
	prior := []store.Message{
		{Role: store.RoleAssistant, Content: "second"},
		{Role: store.RoleUser, Content: "first"},
	}
	turns := buildRollingContext("persona", prior, "third")

	require.Len(t, turns, 4)
	require.Equal(t, ml.Turn{Role: store.RoleSystem, Content: "persona"}, turns[0])
	require.Equal(t, "first", turns[1].Content)
	require.Equal(t, "second", turns[2].Content)
	require.Equal(t, ml.Turn{Role: store.RoleUser, Content: "third"}, turns[3])
}

func TestBuildRollingContext_CapAndEviction(t *testing.T) {
	// More prior turns than fit: oldest must be evicted, the seed never.
	var prior []store.Message
	for i := 0; i < 40; i++ {
		prior = append(prior, store.Message{
			Role:    store.RoleUser,
			Content: fmt.Sprintf("msg-%d", i), // index 0 is the newest
		})
	}

	turns := buildRollingContext("persona", prior, "newest question")

	require.Len(t, turns, maxContextEntries)
	require.Equal(t, store.RoleSystem, turns[0].Role)
	require.Equal(t, "newest question", turns[len(turns)-1].Content)
	// The surviving prior turns are the newest ones, oldest-first in between.
	require.Equal(t, "msg-17", turns[1].Content)
	require.Equal(t, "msg-0", turns[len(turns)-2].Content)
}
