package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/schemasketch/engine/pkg/apperrors"
	"github.com/schemasketch/engine/pkg/config"
	"github.com/schemasketch/engine/pkg/erd"
	"github.com/schemasketch/engine/pkg/llm"
	"github.com/schemasketch/engine/pkg/models"
	"github.com/schemasketch/engine/pkg/prompts"
	"github.com/schemasketch/engine/pkg/repositories"
)

// GenerationService runs one AI-assisted diagram update: prompt
// composition, provider call, response normalization, and the
// version-conditioned commit.
type GenerationService interface {
	// Generate updates the diagram from the user's request. The commit is
	// conditioned on d.Version; a concurrent write surfaces as
	// apperrors.ErrConflict and nothing is persisted.
	Generate(ctx context.Context, d *models.Diagram, owner models.Owner, request string) (*models.Diagram, error)
}

// generationService implements GenerationService.
type generationService struct {
	repo         repositories.DiagramRepository
	cache        repositories.AICacheRepository
	provider     llm.Provider
	catalog      *config.Catalog
	defaultModel string
	historyTurns int
	logger       *zap.Logger
}

// NewGenerationService creates a generation service with dependencies.
func NewGenerationService(
	repo repositories.DiagramRepository,
	cache repositories.AICacheRepository,
	provider llm.Provider,
	catalog *config.Catalog,
	cfg *config.AIConfig,
	historyTurns int,
	logger *zap.Logger,
) GenerationService {
	return &generationService{
		repo:         repo,
		cache:        cache,
		provider:     provider,
		catalog:      catalog,
		defaultModel: cfg.DefaultModel,
		historyTurns: historyTurns,
		logger:       logger.Named("generation"),
	}
}

var _ GenerationService = (*generationService)(nil)

func (s *generationService) Generate(ctx context.Context, d *models.Diagram, owner models.Owner, request string) (*models.Diagram, error) {
	model := d.Model
	if model == "" {
		model = s.defaultModel
	}
	if _, err := s.catalog.Resolve(model); err != nil {
		return nil, err
	}

	promptText := prompts.BuildDiagramPrompt(d.Graph(), d.Chat, request, s.historyTurns)
	systemMessage := prompts.BuildDiagramSystemMessage()

	raw, cached, err := s.completion(ctx, model, promptText, systemMessage)
	if err != nil {
		s.recordError(ctx, d, owner, request, err)
		return nil, err
	}

	graph, message, err := s.interpret(d, raw)
	if err != nil {
		s.recordError(ctx, d, owner, request, err)
		return nil, err
	}

	chat := append(append([]models.ChatMessage{}, d.Chat...),
		models.NewChatMessage(models.ChatRoleUser, request),
		models.NewChatMessage(models.ChatRoleAssistant, message),
	)

	updated, err := s.repo.ConditionalUpdate(ctx, d.ID, owner, d.Version, &models.DiagramPatch{
		Prompt: &request,
		Model:  &model,
		Nodes:  graph.Nodes,
		Edges:  graph.Edges,
		Chat:   models.TrimChat(chat),
	})
	if err != nil {
		return nil, err
	}

	if !cached {
		s.storeCacheEntry(ctx, model, promptText, raw, graph)
	}

	s.logger.Info("diagram generated",
		zap.String("diagram_id", d.ID.String()),
		zap.String("model", model),
		zap.Int("tables", len(graph.Nodes)),
		zap.Int("relationships", len(graph.Edges)),
		zap.Bool("cached", cached))

	return updated, nil
}

// completion returns the raw provider text, from cache when an identical
// (model, prompt) pair was answered before.
func (s *generationService) completion(ctx context.Context, model, promptText, systemMessage string) (string, bool, error) {
	entry, err := s.cache.Get(ctx, model, promptText)
	if err != nil {
		s.logger.Warn("AI cache read failed", zap.Error(err))
	}
	if entry != nil && entry.Raw != "" {
		return entry.Raw, true, nil
	}

	raw, err := s.provider.Generate(ctx, promptText, systemMessage, model)
	if err != nil {
		var llmErr *llm.Error
		if errors.As(err, &llmErr) {
			return "", false, llmErr.AppError()
		}
		return "", false, fmt.Errorf("%w: %v", apperrors.ErrAIFailed, err)
	}
	return raw, false, nil
}

// interpret turns the raw completion into a strict graph plus the chat
// message describing the change. Ops responses are applied to the current
// diagram; both response shapes pass through normalization.
func (s *generationService) interpret(d *models.Diagram, raw string) (*models.Graph, string, error) {
	resp, err := llm.ParseJSONResponse[models.AIResponse](raw)
	if err != nil {
		return nil, "", fmt.Errorf("%w: unparseable model response: %v", apperrors.ErrAIFailed, err)
	}

	var graph *models.Graph
	if resp.IsOps() {
		applied, err := erd.ApplyOps(d.Graph(), resp.Ops)
		if err != nil {
			return nil, "", fmt.Errorf("%w: model operations rejected: %v", apperrors.ErrAIFailed, err)
		}
		graph, err = erd.NormalizeGraph(applied)
		if err != nil {
			return nil, "", err
		}
	} else {
		payload, err := json.Marshal(struct {
			Nodes json.RawMessage `json:"nodes"`
			Edges json.RawMessage `json:"edges"`
		}{Nodes: resp.Nodes, Edges: resp.Edges})
		if err != nil {
			return nil, "", fmt.Errorf("failed to assemble response payload: %w", err)
		}
		graph, err = erd.NormalizeJSON(payload)
		if err != nil {
			return nil, "", err
		}
	}

	message := resp.Message
	if message == "" {
		message = erd.SynthesizeMessage(graph)
	}
	return graph, message, nil
}

// recordError appends the failure to the diagram's chat so the user sees
// what happened. The write uses the same conditional version check as a
// normal commit; a conflict means someone else wrote meanwhile and the
// error report is dropped, not retried.
func (s *generationService) recordError(ctx context.Context, d *models.Diagram, owner models.Owner, request string, genErr error) {
	chat := append(append([]models.ChatMessage{}, d.Chat...),
		models.NewChatMessage(models.ChatRoleUser, request),
		models.NewChatMessage(models.ChatRoleAssistant, fmt.Sprintf("There was an error generating the diagram: %v", genErr)),
	)

	_, err := s.repo.ConditionalUpdate(ctx, d.ID, owner, d.Version, &models.DiagramPatch{
		Chat: models.TrimChat(chat),
	})
	if err != nil && !errors.Is(err, apperrors.ErrConflict) {
		s.logger.Warn("failed to record generation error in chat", zap.Error(err))
	}
}

// storeCacheEntry saves the raw completion and normalized payload.
// Best effort: cache failures never fail the request.
func (s *generationService) storeCacheEntry(ctx context.Context, model, promptText, raw string, graph *models.Graph) {
	payload, err := json.Marshal(graph)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, model, promptText, &repositories.AICacheEntry{Raw: raw, Payload: payload}); err != nil {
		s.logger.Warn("AI cache write failed", zap.Error(err))
	}
}
