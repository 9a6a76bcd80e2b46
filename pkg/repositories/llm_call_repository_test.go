//go:build integration

package repositories

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-sqlgen/pkg/models"
	"github.com/ekaya-inc/ekaya-sqlgen/pkg/testhelpers"
)

func TestLLMCallRepository_Save(t *testing.T) {
	engineDB := testhelpers.GetEngineDB(t)
	engineDB.Truncate(t, "engine_llm_calls")

	repo := NewLLMCallRepository(engineDB.DB)
	ctx := context.Background()
	conversationID := uuid.New()

	call := &models.LLMCall{
		ConversationID:   &conversationID,
		Model:            "gpt-4o-mini",
		Endpoint:         "https://api.openai.com/v1",
		PromptTokens:     120,
		CompletionTokens: 30,
		TotalTokens:      150,
		DurationMs:       800,
		Attempts:         1,
		UsedMetadata:     true,
		Status:           models.LLMCallStatusSuccess,
	}
	require.NoError(t, repo.Save(ctx, call))
	assert.NotEqual(t, uuid.Nil, call.ID)
	assert.False(t, call.CreatedAt.IsZero())

	var status string
	var attempts int
	var gotConversation uuid.UUID
	err := engineDB.DB.QueryRow(ctx,
		`SELECT status, attempts, conversation_id FROM engine_llm_calls WHERE id = $1`, call.ID,
	).Scan(&status, &attempts, &gotConversation)
	require.NoError(t, err)
	assert.Equal(t, models.LLMCallStatusSuccess, status)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, conversationID, gotConversation)
}

func TestLLMCallRepository_RejectsUnknownStatus(t *testing.T) {
	engineDB := testhelpers.GetEngineDB(t)
	repo := NewLLMCallRepository(engineDB.DB)

	err := repo.Save(context.Background(), &models.LLMCall{Model: "m", Status: "exploded"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to save llm call")
}
