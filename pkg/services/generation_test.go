package services

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/schemasketch/engine/pkg/apperrors"
	"github.com/schemasketch/engine/pkg/config"
	"github.com/schemasketch/engine/pkg/llm"
	"github.com/schemasketch/engine/pkg/models"
	"github.com/schemasketch/engine/pkg/repositories"
)

const fullGraphResponse = `{
	"nodes": [
		{"id": "users", "data": {"label": "users", "schema": [
			{"id": "id", "title": "id", "type": "BIGINT", "key": "PK", "nullable": false}
		]}}
	],
	"edges": [],
	"message": "Created a users table."
}`

func testCatalog(t *testing.T) *config.Catalog {
	t.Helper()
	c, err := config.LoadCatalog(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	return c
}

func generationFixture() *models.Diagram {
	userID := "user-1"
	return &models.Diagram{
		ID:      uuid.New(),
		Title:   "Blog",
		Type:    "erd",
		Model:   "gpt-4o-mini",
		Version: 3,
		Nodes: []models.Node{
			{
				ID:       "users",
				Type:     models.NodeTypeSchema,
				Position: models.Position{},
				Data: models.NodeData{
					Label: "users",
					Schema: []models.Field{
						{ID: "id", Title: "id", Type: "BIGINT", Key: models.FieldKeyPrimary, Nullable: false},
					},
				},
			},
		},
		Edges:  []models.Edge{},
		Chat:   []models.ChatMessage{},
		UserID: &userID,
	}
}

type generationHarness struct {
	svc      GenerationService
	repo     *repositories.MockDiagramRepository
	cache    *repositories.MockAICache
	provider *llm.MockProvider

	committed *models.DiagramPatch
}

func newGenerationHarness(t *testing.T) *generationHarness {
	t.Helper()
	h := &generationHarness{
		repo:     &repositories.MockDiagramRepository{},
		cache:    repositories.NewMockAICache(),
		provider: llm.NewMockProvider(),
	}
	h.repo.ConditionalUpdateFunc = func(ctx context.Context, id uuid.UUID, owner models.Owner, expectedVersion int64, patch *models.DiagramPatch) (*models.Diagram, error) {
		h.committed = patch
		d := generationFixture()
		d.ID = id
		d.Version = expectedVersion + 1
		if patch.Nodes != nil {
			d.Nodes = patch.Nodes
		}
		if patch.Edges != nil {
			d.Edges = patch.Edges
		}
		if patch.Chat != nil {
			d.Chat = patch.Chat
		}
		return d, nil
	}
	h.svc = NewGenerationService(h.repo, h.cache, h.provider, testCatalog(t),
		&config.AIConfig{DefaultModel: "gpt-4o-mini"}, 6, zap.NewNop())
	return h
}

func TestGenerate_FullGraphResponse(t *testing.T) {
	h := newGenerationHarness(t)
	h.provider.GenerateFunc = func(ctx context.Context, prompt, system, model string) (string, error) {
		return fullGraphResponse, nil
	}

	d := generationFixture()
	owner := models.Owner{UserID: "user-1"}
	updated, err := h.svc.Generate(context.Background(), d, owner, "build a users table")
	require.NoError(t, err)

	assert.Equal(t, 1, h.provider.GenerateCalls)
	assert.Equal(t, "gpt-4o-mini", h.provider.LastModel)
	assert.Contains(t, h.provider.LastPrompt, "build a users table")

	require.NotNil(t, h.committed)
	require.Len(t, h.committed.Nodes, 1)
	assert.Equal(t, "users", h.committed.Nodes[0].ID)
	require.NotNil(t, h.committed.Prompt)
	assert.Equal(t, "build a users table", *h.committed.Prompt)

	require.Len(t, h.committed.Chat, 2)
	assert.Equal(t, models.ChatRoleUser, h.committed.Chat[0].Role)
	assert.Equal(t, models.ChatRoleAssistant, h.committed.Chat[1].Role)
	assert.Equal(t, "Created a users table.", h.committed.Chat[1].Content)

	assert.Equal(t, int64(4), updated.Version)
	assert.Equal(t, 1, h.cache.SetCalls, "successful generation populates the cache")
}

func TestGenerate_OpsResponse(t *testing.T) {
	h := newGenerationHarness(t)
	h.provider.GenerateFunc = func(ctx context.Context, prompt, system, model string) (string, error) {
		return `{"ops": [{"op": "add_field", "tableId": "users", "id": "email", "title": "email", "type": "VARCHAR(255)"}], "message": "Added email."}`, nil
	}

	d := generationFixture()
	_, err := h.svc.Generate(context.Background(), d, models.Owner{UserID: "user-1"}, "add an email column")
	require.NoError(t, err)

	require.NotNil(t, h.committed)
	require.Len(t, h.committed.Nodes, 1)
	require.Len(t, h.committed.Nodes[0].Data.Schema, 2)
	assert.Equal(t, "email", h.committed.Nodes[0].Data.Schema[1].ID)

	// The in-memory input diagram stays untouched.
	assert.Len(t, d.Nodes[0].Data.Schema, 1)
}

func TestGenerate_SynthesizedMessage(t *testing.T) {
	h := newGenerationHarness(t)
	h.provider.GenerateFunc = func(ctx context.Context, prompt, system, model string) (string, error) {
		return `{"nodes": [{"id": "users", "data": {"label": "users", "schema": [{"id": "id", "title": "id", "type": "BIGINT", "key": "PK"}]}}], "edges": []}`, nil
	}

	_, err := h.svc.Generate(context.Background(), generationFixture(), models.Owner{UserID: "user-1"}, "go")
	require.NoError(t, err)

	require.Len(t, h.committed.Chat, 2)
	assert.Contains(t, h.committed.Chat[1].Content, "Generated 1 table")
}

func TestGenerate_UnknownModelRejected(t *testing.T) {
	h := newGenerationHarness(t)

	d := generationFixture()
	d.Model = "made-up-model"
	_, err := h.svc.Generate(context.Background(), d, models.Owner{UserID: "user-1"}, "go")

	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Equal(t, 0, h.provider.GenerateCalls)
	assert.Equal(t, 0, h.repo.ConditionalUpdateCalls)
}

func TestGenerate_ProviderFailureRecordedInChat(t *testing.T) {
	h := newGenerationHarness(t)
	h.provider.GenerateFunc = func(ctx context.Context, prompt, system, model string) (string, error) {
		return "", &llm.Error{Type: llm.ErrorTypeQuota, Message: "provider quota exceeded", Retryable: true}
	}

	_, err := h.svc.Generate(context.Background(), generationFixture(), models.Owner{UserID: "user-1"}, "go")
	require.ErrorIs(t, err, apperrors.ErrAIQuota)

	// The failure is reported through chat with the same conditional write.
	assert.Equal(t, 1, h.repo.ConditionalUpdateCalls)
	require.NotNil(t, h.committed)
	assert.Nil(t, h.committed.Nodes)
	require.Len(t, h.committed.Chat, 2)
	assert.Contains(t, h.committed.Chat[1].Content, "There was an error")
}

func TestGenerate_ErrorChatWriteConflictSwallowed(t *testing.T) {
	h := newGenerationHarness(t)
	h.provider.GenerateFunc = func(ctx context.Context, prompt, system, model string) (string, error) {
		return "", &llm.Error{Type: llm.ErrorTypeServer, Message: "boom"}
	}
	h.repo.ConditionalUpdateFunc = func(ctx context.Context, id uuid.UUID, owner models.Owner, expectedVersion int64, patch *models.DiagramPatch) (*models.Diagram, error) {
		return nil, fmt.Errorf("%w: stale", apperrors.ErrConflict)
	}

	_, err := h.svc.Generate(context.Background(), generationFixture(), models.Owner{UserID: "user-1"}, "go")

	// The original provider failure surfaces, not the conflict.
	assert.ErrorIs(t, err, apperrors.ErrAIFailed)
	assert.NotErrorIs(t, err, apperrors.ErrConflict)
}

func TestGenerate_CommitConflictSurfaces(t *testing.T) {
	h := newGenerationHarness(t)
	h.provider.GenerateFunc = func(ctx context.Context, prompt, system, model string) (string, error) {
		return fullGraphResponse, nil
	}
	h.repo.ConditionalUpdateFunc = func(ctx context.Context, id uuid.UUID, owner models.Owner, expectedVersion int64, patch *models.DiagramPatch) (*models.Diagram, error) {
		return nil, fmt.Errorf("%w: stale", apperrors.ErrConflict)
	}

	_, err := h.svc.Generate(context.Background(), generationFixture(), models.Owner{UserID: "user-1"}, "go")
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	assert.Equal(t, 0, h.cache.SetCalls, "conflicted generations are not cached")
}

func TestGenerate_UnparseableResponse(t *testing.T) {
	h := newGenerationHarness(t)
	h.provider.GenerateFunc = func(ctx context.Context, prompt, system, model string) (string, error) {
		return "I am sorry, I cannot help with that.", nil
	}

	_, err := h.svc.Generate(context.Background(), generationFixture(), models.Owner{UserID: "user-1"}, "go")
	assert.ErrorIs(t, err, apperrors.ErrAIFailed)
}

func TestGenerate_RejectedOpsSurfaceAsProviderFailure(t *testing.T) {
	h := newGenerationHarness(t)
	h.provider.GenerateFunc = func(ctx context.Context, prompt, system, model string) (string, error) {
		return `{"ops": [{"op": "delete_field", "tableId": "missing", "fieldId": "nope"}]}`, nil
	}

	_, err := h.svc.Generate(context.Background(), generationFixture(), models.Owner{UserID: "user-1"}, "go")
	assert.ErrorIs(t, err, apperrors.ErrAIFailed)
}

func TestGenerate_ServedFromCache(t *testing.T) {
	h := newGenerationHarness(t)

	// Prime the cache by running one generation.
	h.provider.GenerateFunc = func(ctx context.Context, prompt, system, model string) (string, error) {
		return fullGraphResponse, nil
	}
	d := generationFixture()
	_, err := h.svc.Generate(context.Background(), d, models.Owner{UserID: "user-1"}, "build a users table")
	require.NoError(t, err)
	require.Equal(t, 1, h.provider.GenerateCalls)

	// An identical (model, prompt) pair skips the provider and still goes
	// through parsing and normalization.
	d2 := generationFixture()
	d2.ID = d.ID
	updated, err := h.svc.Generate(context.Background(), d2, models.Owner{UserID: "user-1"}, "build a users table")
	require.NoError(t, err)

	assert.Equal(t, 1, h.provider.GenerateCalls, "cache hit skips the provider")
	require.Len(t, updated.Nodes, 1)

	var entry repositories.AICacheEntry
	for _, e := range h.cache.Entries {
		entry = *e
	}
	assert.NotEmpty(t, entry.Raw)
	assert.True(t, json.Valid(entry.Payload))
}
