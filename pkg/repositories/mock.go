package repositories

import (
	"context"

	"github.com/google/uuid"

	"github.com/schemasketch/engine/pkg/models"
)

// MockDiagramRepository is a configurable mock for testing service flows.
// Set the function fields to control behavior in tests.
type MockDiagramRepository struct {
	CreateFunc            func(ctx context.Context, d *models.Diagram) error
	ListFunc              func(ctx context.Context, owner models.Owner, limit, offset int) ([]*models.Diagram, int, error)
	GetFunc               func(ctx context.Context, id uuid.UUID, owner models.Owner) (*models.Diagram, error)
	DeleteFunc            func(ctx context.Context, id uuid.UUID, owner models.Owner) error
	ConditionalUpdateFunc func(ctx context.Context, id uuid.UUID, owner models.Owner, expectedVersion int64, patch *models.DiagramPatch) (*models.Diagram, error)
	CountByOwnerFunc      func(ctx context.Context, owner models.Owner) (int, error)
	TransferOwnershipFunc func(ctx context.Context, anonID, userID string) (int64, error)

	// Call tracking for verification.
	ConditionalUpdateCalls int
}

func (m *MockDiagramRepository) Create(ctx context.Context, d *models.Diagram) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, d)
	}
	return nil
}

func (m *MockDiagramRepository) List(ctx context.Context, owner models.Owner, limit, offset int) ([]*models.Diagram, int, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, owner, limit, offset)
	}
	return nil, 0, nil
}

func (m *MockDiagramRepository) Get(ctx context.Context, id uuid.UUID, owner models.Owner) (*models.Diagram, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, id, owner)
	}
	return nil, nil
}

func (m *MockDiagramRepository) Delete(ctx context.Context, id uuid.UUID, owner models.Owner) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id, owner)
	}
	return nil
}

func (m *MockDiagramRepository) ConditionalUpdate(ctx context.Context, id uuid.UUID, owner models.Owner, expectedVersion int64, patch *models.DiagramPatch) (*models.Diagram, error) {
	m.ConditionalUpdateCalls++
	if m.ConditionalUpdateFunc != nil {
		return m.ConditionalUpdateFunc(ctx, id, owner, expectedVersion, patch)
	}
	return nil, nil
}

func (m *MockDiagramRepository) CountByOwner(ctx context.Context, owner models.Owner) (int, error) {
	if m.CountByOwnerFunc != nil {
		return m.CountByOwnerFunc(ctx, owner)
	}
	return 0, nil
}

func (m *MockDiagramRepository) TransferOwnership(ctx context.Context, anonID, userID string) (int64, error) {
	if m.TransferOwnershipFunc != nil {
		return m.TransferOwnershipFunc(ctx, anonID, userID)
	}
	return 0, nil
}

var _ DiagramRepository = (*MockDiagramRepository)(nil)

// MockAICache is an in-memory AICacheRepository for tests.
type MockAICache struct {
	Entries map[string]*AICacheEntry

	GetCalls int
	SetCalls int
}

// NewMockAICache creates an empty in-memory cache.
func NewMockAICache() *MockAICache {
	return &MockAICache{Entries: make(map[string]*AICacheEntry)}
}

func (m *MockAICache) Get(ctx context.Context, model, prompt string) (*AICacheEntry, error) {
	m.GetCalls++
	return m.Entries[model+"::"+prompt], nil
}

func (m *MockAICache) Set(ctx context.Context, model, prompt string, entry *AICacheEntry) error {
	m.SetCalls++
	m.Entries[model+"::"+prompt] = entry
	return nil
}

var _ AICacheRepository = (*MockAICache)(nil)
