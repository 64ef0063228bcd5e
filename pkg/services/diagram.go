package services

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/schemasketch/engine/pkg/apperrors"
	"github.com/schemasketch/engine/pkg/config"
	"github.com/schemasketch/engine/pkg/erd"
	"github.com/schemasketch/engine/pkg/models"
	"github.com/schemasketch/engine/pkg/repositories"
	"github.com/schemasketch/engine/pkg/sqlgen"
)

// UpdateRequest is the body of a diagram update. Providing Nodes or Edges
// takes the manual path and skips AI even when Prompt is also set;
// providing only Prompt takes the AI path.
type UpdateRequest struct {
	Title   *string         `json:"title,omitempty"`
	Type    *string         `json:"type,omitempty"`
	Model   *string         `json:"model,omitempty"`
	Prompt  *string         `json:"prompt,omitempty"`
	Nodes   json.RawMessage `json:"nodes,omitempty"`
	Edges   json.RawMessage `json:"edges,omitempty"`
	Version int64           `json:"version"`
}

// FieldInput carries field attributes for field-level operations. Nil
// members of update requests leave the stored value untouched.
type FieldInput struct {
	ID       string  `json:"id"`
	Title    *string `json:"title,omitempty"`
	Type     *string `json:"type,omitempty"`
	Key      *string `json:"key,omitempty"`
	Nullable *bool   `json:"nullable,omitempty"`
	Default  *string `json:"default,omitempty"`
	Note     *string `json:"note,omitempty"`
}

// DiagramService owns the diagram lifecycle: CRUD, manual and AI-assisted
// updates, field-level edits, guest-to-user ownership merge, and SQL export.
type DiagramService interface {
	Create(ctx context.Context, owner models.Owner, title, diagramType, model string) (*models.Diagram, error)
	List(ctx context.Context, owner models.Owner, limit, offset int) ([]*models.Diagram, int, error)
	Get(ctx context.Context, id uuid.UUID, owner models.Owner) (*models.Diagram, error)
	Delete(ctx context.Context, id uuid.UUID, owner models.Owner) error
	Update(ctx context.Context, id uuid.UUID, owner models.Owner, req *UpdateRequest) (*models.Diagram, error)

	AddField(ctx context.Context, id uuid.UUID, owner models.Owner, version int64, nodeID string, field *FieldInput) (*models.Diagram, error)
	UpdateField(ctx context.Context, id uuid.UUID, owner models.Owner, version int64, nodeID, fieldID string, field *FieldInput) (*models.Diagram, error)
	DeleteField(ctx context.Context, id uuid.UUID, owner models.Owner, version int64, nodeID, fieldID string) (*models.Diagram, error)
	ReorderField(ctx context.Context, id uuid.UUID, owner models.Owner, version int64, nodeID, fieldID string, position int) (*models.Diagram, error)
	RenameNode(ctx context.Context, id uuid.UUID, owner models.Owner, version int64, nodeID, newLabel string) (*models.Diagram, error)

	// MergeGuest transfers the guest's diagrams to the user on login. If
	// the combined total would exceed the free-plan cap the merge is
	// skipped entirely; no partial merge happens.
	MergeGuest(ctx context.Context, anonID, userID string) (int64, error)

	// ExportSQL compiles the diagram to DDL for the named dialect and
	// returns the SQL plus a sanitized download filename.
	ExportSQL(ctx context.Context, id uuid.UUID, owner models.Owner, dialectName string, opts sqlgen.Options) (string, string, error)
}

// diagramService implements DiagramService.
type diagramService struct {
	repo       repositories.DiagramRepository
	generation GenerationService
	catalog    *config.Catalog
	diagramCap int
	logger     *zap.Logger
}

// NewDiagramService creates a diagram service with dependencies.
func NewDiagramService(
	repo repositories.DiagramRepository,
	generation GenerationService,
	catalog *config.Catalog,
	limits *config.LimitsConfig,
	logger *zap.Logger,
) DiagramService {
	return &diagramService{
		repo:       repo,
		generation: generation,
		catalog:    catalog,
		diagramCap: limits.FreePlanDiagramCap,
		logger:     logger.Named("diagrams"),
	}
}

var _ DiagramService = (*diagramService)(nil)

func (s *diagramService) Create(ctx context.Context, owner models.Owner, title, diagramType, model string) (*models.Diagram, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", apperrors.ErrValidation)
	}
	if !models.IsValidDiagramType(diagramType) {
		return nil, fmt.Errorf("%w: invalid diagram type %q", apperrors.ErrValidation, diagramType)
	}
	if model != "" {
		if _, err := s.catalog.Resolve(model); err != nil {
			return nil, err
		}
	}

	if !owner.IsUser() {
		count, err := s.repo.CountByOwner(ctx, owner)
		if err != nil {
			return nil, err
		}
		if count >= s.diagramCap {
			return nil, fmt.Errorf("%w: free plan allows up to %d diagrams", apperrors.ErrDiagramLimit, s.diagramCap)
		}
	}

	d := &models.Diagram{
		Title: title,
		Type:  diagramType,
		Model: model,
		Nodes: []models.Node{},
		Edges: []models.Edge{},
		Chat:  []models.ChatMessage{},
	}
	if owner.IsUser() {
		d.UserID = &owner.UserID
	} else {
		d.OwnerAnonID = &owner.AnonID
	}

	if err := s.repo.Create(ctx, d); err != nil {
		return nil, err
	}

	s.logger.Info("diagram created",
		zap.String("diagram_id", d.ID.String()),
		zap.String("type", d.Type),
		zap.Bool("guest", !owner.IsUser()))

	return d, nil
}

func (s *diagramService) List(ctx context.Context, owner models.Owner, limit, offset int) ([]*models.Diagram, int, error) {
	return s.repo.List(ctx, owner, limit, offset)
}

// Get loads a diagram and upgrades legacy documents: graphs persisted by
// older builds may violate current invariants, so anything that fails
// validation is re-normalized before it reaches a caller.
func (s *diagramService) Get(ctx context.Context, id uuid.UUID, owner models.Owner) (*models.Diagram, error) {
	d, err := s.repo.Get(ctx, id, owner)
	if err != nil {
		return nil, err
	}

	if err := d.Graph().Validate(); err != nil {
		graph, nerr := erd.NormalizeGraph(d.Graph())
		if nerr != nil {
			return nil, fmt.Errorf("failed to upgrade legacy diagram %s: %w", id, nerr)
		}
		s.logger.Info("upgraded legacy diagram on read",
			zap.String("diagram_id", id.String()),
			zap.NamedError("reason", err))
		d.Nodes = graph.Nodes
		d.Edges = graph.Edges
	}

	return d, nil
}

func (s *diagramService) Delete(ctx context.Context, id uuid.UUID, owner models.Owner) error {
	if err := s.repo.Delete(ctx, id, owner); err != nil {
		return err
	}
	s.logger.Info("diagram deleted", zap.String("diagram_id", id.String()))
	return nil
}

func (s *diagramService) Update(ctx context.Context, id uuid.UUID, owner models.Owner, req *UpdateRequest) (*models.Diagram, error) {
	patch := &models.DiagramPatch{}

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return nil, fmt.Errorf("%w: title cannot be empty", apperrors.ErrValidation)
		}
		patch.Title = &title
	}
	if req.Type != nil {
		if !models.IsValidDiagramType(*req.Type) {
			return nil, fmt.Errorf("%w: invalid diagram type %q", apperrors.ErrValidation, *req.Type)
		}
		patch.Type = req.Type
	}
	if req.Model != nil {
		if _, err := s.catalog.Resolve(*req.Model); err != nil {
			return nil, err
		}
		patch.Model = req.Model
	}

	// Manual nodes/edges replacement wins over an AI prompt.
	if len(req.Nodes) > 0 || len(req.Edges) > 0 {
		payload, err := json.Marshal(struct {
			Nodes json.RawMessage `json:"nodes"`
			Edges json.RawMessage `json:"edges"`
		}{Nodes: req.Nodes, Edges: req.Edges})
		if err != nil {
			return nil, fmt.Errorf("failed to assemble graph payload: %w", err)
		}
		graph, err := erd.NormalizeJSON(payload)
		if err != nil {
			return nil, err
		}
		patch.Nodes = graph.Nodes
		patch.Edges = graph.Edges
		return s.repo.ConditionalUpdate(ctx, id, owner, req.Version, patch)
	}

	if req.Prompt != nil && strings.TrimSpace(*req.Prompt) != "" {
		d, err := s.Get(ctx, id, owner)
		if err != nil {
			return nil, err
		}
		// Metadata changes ride along via the generation commit only when
		// none were requested separately; apply them first otherwise.
		if patch.Title != nil || patch.Type != nil || patch.Model != nil {
			d, err = s.repo.ConditionalUpdate(ctx, id, owner, req.Version, patch)
			if err != nil {
				return nil, err
			}
		} else {
			d.Version = req.Version
		}
		return s.generation.Generate(ctx, d, owner, strings.TrimSpace(*req.Prompt))
	}

	if patch.Title == nil && patch.Type == nil && patch.Model == nil {
		return nil, fmt.Errorf("%w: update request is empty", apperrors.ErrValidation)
	}
	return s.repo.ConditionalUpdate(ctx, id, owner, req.Version, patch)
}

// mutateGraph loads the diagram, applies fn to a deep copy of its graph,
// normalizes, and commits conditioned on version.
func (s *diagramService) mutateGraph(ctx context.Context, id uuid.UUID, owner models.Owner, version int64, fn func(g *models.Graph) error) (*models.Diagram, error) {
	d, err := s.Get(ctx, id, owner)
	if err != nil {
		return nil, err
	}

	g := d.Graph().Clone()
	if err := fn(g); err != nil {
		return nil, err
	}

	graph, err := erd.NormalizeGraph(g)
	if err != nil {
		return nil, err
	}

	return s.repo.ConditionalUpdate(ctx, id, owner, version, &models.DiagramPatch{
		Nodes: graph.Nodes,
		Edges: graph.Edges,
	})
}

func (s *diagramService) AddField(ctx context.Context, id uuid.UUID, owner models.Owner, version int64, nodeID string, field *FieldInput) (*models.Diagram, error) {
	if field == nil || field.ID == "" {
		return nil, fmt.Errorf("%w: field id is required", apperrors.ErrValidation)
	}

	op := models.Op{Op: models.OpAddField, TableID: nodeID, ID: field.ID}
	if field.Title != nil {
		op.Title = *field.Title
	}
	if field.Type != nil {
		op.Type = *field.Type
	}
	if field.Key != nil {
		op.Key = *field.Key
	}

	return s.mutateGraph(ctx, id, owner, version, func(g *models.Graph) error {
		applied, err := erd.ApplyOps(g, []models.Op{op})
		if err != nil {
			return err
		}
		*g = *applied
		return nil
	})
}

func (s *diagramService) UpdateField(ctx context.Context, id uuid.UUID, owner models.Owner, version int64, nodeID, fieldID string, field *FieldInput) (*models.Diagram, error) {
	return s.mutateGraph(ctx, id, owner, version, func(g *models.Graph) error {
		node := g.FindNode(nodeID)
		if node == nil {
			return fmt.Errorf("%w: table %q", apperrors.ErrNotFound, nodeID)
		}
		f := node.FindField(fieldID)
		if f == nil {
			return fmt.Errorf("%w: field %q in table %q", apperrors.ErrNotFound, fieldID, nodeID)
		}

		if field.Title != nil {
			f.Title = *field.Title
		}
		if field.Type != nil {
			f.Type = *field.Type
		}
		if field.Key != nil {
			f.Key = models.FieldKey(strings.ToUpper(*field.Key))
		}
		if field.Nullable != nil {
			f.Nullable = *field.Nullable
		}
		if field.Default != nil {
			f.Default = field.Default
		}
		if field.Note != nil {
			f.Note = *field.Note
		}
		return nil
	})
}

func (s *diagramService) DeleteField(ctx context.Context, id uuid.UUID, owner models.Owner, version int64, nodeID, fieldID string) (*models.Diagram, error) {
	op := models.Op{Op: models.OpDeleteField, TableID: nodeID, FieldID: fieldID}

	return s.mutateGraph(ctx, id, owner, version, func(g *models.Graph) error {
		applied, err := erd.ApplyOps(g, []models.Op{op})
		if err != nil {
			return err
		}
		*g = *applied
		return nil
	})
}

func (s *diagramService) ReorderField(ctx context.Context, id uuid.UUID, owner models.Owner, version int64, nodeID, fieldID string, position int) (*models.Diagram, error) {
	return s.mutateGraph(ctx, id, owner, version, func(g *models.Graph) error {
		node := g.FindNode(nodeID)
		if node == nil {
			return fmt.Errorf("%w: table %q", apperrors.ErrNotFound, nodeID)
		}

		from := -1
		for i := range node.Data.Schema {
			if node.Data.Schema[i].ID == fieldID {
				from = i
				break
			}
		}
		if from == -1 {
			return fmt.Errorf("%w: field %q in table %q", apperrors.ErrNotFound, fieldID, nodeID)
		}
		if position < 0 || position >= len(node.Data.Schema) {
			return fmt.Errorf("%w: position %d out of range", apperrors.ErrValidation, position)
		}

		f := node.Data.Schema[from]
		schema := append(node.Data.Schema[:from], node.Data.Schema[from+1:]...)
		schema = append(schema[:position], append([]models.Field{f}, schema[position:]...)...)
		node.Data.Schema = schema
		return nil
	})
}

func (s *diagramService) RenameNode(ctx context.Context, id uuid.UUID, owner models.Owner, version int64, nodeID, newLabel string) (*models.Diagram, error) {
	newLabel = strings.TrimSpace(newLabel)
	if newLabel == "" {
		return nil, fmt.Errorf("%w: label cannot be empty", apperrors.ErrValidation)
	}

	return s.mutateGraph(ctx, id, owner, version, func(g *models.Graph) error {
		node := g.FindNode(nodeID)
		if node == nil {
			return fmt.Errorf("%w: table %q", apperrors.ErrNotFound, nodeID)
		}
		node.Data.Label = newLabel
		return nil
	})
}

func (s *diagramService) MergeGuest(ctx context.Context, anonID, userID string) (int64, error) {
	guestCount, err := s.repo.CountByOwner(ctx, models.Owner{AnonID: anonID})
	if err != nil {
		return 0, err
	}
	if guestCount == 0 {
		return 0, nil
	}

	userCount, err := s.repo.CountByOwner(ctx, models.Owner{UserID: userID})
	if err != nil {
		return 0, err
	}

	if userCount+guestCount > s.diagramCap {
		s.logger.Info("guest merge skipped: would exceed diagram cap",
			zap.Int("guest_diagrams", guestCount),
			zap.Int("user_diagrams", userCount),
			zap.Int("cap", s.diagramCap))
		return 0, nil
	}

	moved, err := s.repo.TransferOwnership(ctx, anonID, userID)
	if err != nil {
		return 0, err
	}

	s.logger.Info("guest diagrams merged",
		zap.Int64("moved", moved))
	return moved, nil
}

// filenamePattern keeps only characters safe in a download filename.
var filenamePattern = regexp.MustCompile(`[^a-zA-Z0-9]+`)

func (s *diagramService) ExportSQL(ctx context.Context, id uuid.UUID, owner models.Owner, dialectName string, opts sqlgen.Options) (string, string, error) {
	d, err := s.Get(ctx, id, owner)
	if err != nil {
		return "", "", err
	}

	dialect, err := sqlgen.ParseDialect(dialectName)
	if err != nil {
		return "", "", err
	}

	ddl := sqlgen.Compile(d.Graph(), dialect, opts)

	base := strings.Trim(filenamePattern.ReplaceAllString(d.Title, "_"), "_")
	if base == "" {
		base = "diagram"
	}
	return ddl, base + ".sql", nil
}
