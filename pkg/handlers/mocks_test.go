package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/schemasketch/engine/pkg/auth"
	"github.com/schemasketch/engine/pkg/models"
	"github.com/schemasketch/engine/pkg/services"
	"github.com/schemasketch/engine/pkg/sqlgen"
)

// mockDiagramService implements services.DiagramService with overridable
// function fields.
type mockDiagramService struct {
	CreateFunc       func(ctx context.Context, owner models.Owner, title, diagramType, model string) (*models.Diagram, error)
	ListFunc         func(ctx context.Context, owner models.Owner, limit, offset int) ([]*models.Diagram, int, error)
	GetFunc          func(ctx context.Context, id uuid.UUID, owner models.Owner) (*models.Diagram, error)
	DeleteFunc       func(ctx context.Context, id uuid.UUID, owner models.Owner) error
	UpdateFunc       func(ctx context.Context, id uuid.UUID, owner models.Owner, req *services.UpdateRequest) (*models.Diagram, error)
	AddFieldFunc     func(ctx context.Context, id uuid.UUID, owner models.Owner, version int64, nodeID string, field *services.FieldInput) (*models.Diagram, error)
	UpdateFieldFunc  func(ctx context.Context, id uuid.UUID, owner models.Owner, version int64, nodeID, fieldID string, field *services.FieldInput) (*models.Diagram, error)
	DeleteFieldFunc  func(ctx context.Context, id uuid.UUID, owner models.Owner, version int64, nodeID, fieldID string) (*models.Diagram, error)
	ReorderFieldFunc func(ctx context.Context, id uuid.UUID, owner models.Owner, version int64, nodeID, fieldID string, position int) (*models.Diagram, error)
	RenameNodeFunc   func(ctx context.Context, id uuid.UUID, owner models.Owner, version int64, nodeID, newLabel string) (*models.Diagram, error)
	MergeGuestFunc   func(ctx context.Context, anonID, userID string) (int64, error)
	ExportSQLFunc    func(ctx context.Context, id uuid.UUID, owner models.Owner, dialectName string, opts sqlgen.Options) (string, string, error)
}

var _ services.DiagramService = (*mockDiagramService)(nil)

func (m *mockDiagramService) Create(ctx context.Context, owner models.Owner, title, diagramType, model string) (*models.Diagram, error) {
	return m.CreateFunc(ctx, owner, title, diagramType, model)
}

func (m *mockDiagramService) List(ctx context.Context, owner models.Owner, limit, offset int) ([]*models.Diagram, int, error) {
	return m.ListFunc(ctx, owner, limit, offset)
}

func (m *mockDiagramService) Get(ctx context.Context, id uuid.UUID, owner models.Owner) (*models.Diagram, error) {
	return m.GetFunc(ctx, id, owner)
}

func (m *mockDiagramService) Delete(ctx context.Context, id uuid.UUID, owner models.Owner) error {
	return m.DeleteFunc(ctx, id, owner)
}

func (m *mockDiagramService) Update(ctx context.Context, id uuid.UUID, owner models.Owner, req *services.UpdateRequest) (*models.Diagram, error) {
	return m.UpdateFunc(ctx, id, owner, req)
}

func (m *mockDiagramService) AddField(ctx context.Context, id uuid.UUID, owner models.Owner, version int64, nodeID string, field *services.FieldInput) (*models.Diagram, error) {
	return m.AddFieldFunc(ctx, id, owner, version, nodeID, field)
}

func (m *mockDiagramService) UpdateField(ctx context.Context, id uuid.UUID, owner models.Owner, version int64, nodeID, fieldID string, field *services.FieldInput) (*models.Diagram, error) {
	return m.UpdateFieldFunc(ctx, id, owner, version, nodeID, fieldID, field)
}

func (m *mockDiagramService) DeleteField(ctx context.Context, id uuid.UUID, owner models.Owner, version int64, nodeID, fieldID string) (*models.Diagram, error) {
	return m.DeleteFieldFunc(ctx, id, owner, version, nodeID, fieldID)
}

func (m *mockDiagramService) ReorderField(ctx context.Context, id uuid.UUID, owner models.Owner, version int64, nodeID, fieldID string, position int) (*models.Diagram, error) {
	return m.ReorderFieldFunc(ctx, id, owner, version, nodeID, fieldID, position)
}

func (m *mockDiagramService) RenameNode(ctx context.Context, id uuid.UUID, owner models.Owner, version int64, nodeID, newLabel string) (*models.Diagram, error) {
	return m.RenameNodeFunc(ctx, id, owner, version, nodeID, newLabel)
}

func (m *mockDiagramService) MergeGuest(ctx context.Context, anonID, userID string) (int64, error) {
	return m.MergeGuestFunc(ctx, anonID, userID)
}

func (m *mockDiagramService) ExportSQL(ctx context.Context, id uuid.UUID, owner models.Owner, dialectName string, opts sqlgen.Options) (string, string, error) {
	return m.ExportSQLFunc(ctx, id, owner, dialectName, opts)
}

// stubAuthService implements auth.Service with a fixed identity.
type stubAuthService struct {
	owner   models.Owner
	err     error
	guestID string
}

var _ auth.Service = (*stubAuthService)(nil)

func (s *stubAuthService) ResolveOwner(r *http.Request) (models.Owner, error) {
	return s.owner, s.err
}

func (s *stubAuthService) IssueGuest(w http.ResponseWriter, r *http.Request) (string, error) {
	return s.guestID, nil
}

func (s *stubAuthService) GuestID(r *http.Request) (string, bool) {
	return s.guestID, s.guestID != ""
}

func (s *stubAuthService) VerifyToken(tokenString string) (*auth.Claims, error) {
	return nil, nil
}
