package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/schemasketch/engine/pkg/apperrors"
	"github.com/schemasketch/engine/pkg/database"
	"github.com/schemasketch/engine/pkg/models"
)

// publicIDLength sizes the URL-safe public identifier.
const publicIDLength = 12

// DiagramRepository provides data access for diagram documents. All reads
// and writes are owner-scoped; a diagram is never visible outside the
// identity that created it (or received it via ownership transfer).
type DiagramRepository interface {
	Create(ctx context.Context, d *models.Diagram) error
	// List returns the owner's diagrams sorted by last update, newest
	// first, plus the owner's total diagram count for pagination.
	List(ctx context.Context, owner models.Owner, limit, offset int) ([]*models.Diagram, int, error)
	Get(ctx context.Context, id uuid.UUID, owner models.Owner) (*models.Diagram, error)
	Delete(ctx context.Context, id uuid.UUID, owner models.Owner) error
	// ConditionalUpdate applies patch and increments version only if the
	// stored version equals expectedVersion. A version mismatch returns
	// apperrors.ErrConflict and writes nothing.
	ConditionalUpdate(ctx context.Context, id uuid.UUID, owner models.Owner, expectedVersion int64, patch *models.DiagramPatch) (*models.Diagram, error)
	CountByOwner(ctx context.Context, owner models.Owner) (int, error)
	// TransferOwnership moves every diagram owned by the guest identity to
	// the user, returning how many were moved.
	TransferOwnership(ctx context.Context, anonID, userID string) (int64, error)
}

// diagramRepository implements DiagramRepository using PostgreSQL.
type diagramRepository struct {
	db *database.DB
}

// NewDiagramRepository creates a new diagram repository.
func NewDiagramRepository(db *database.DB) DiagramRepository {
	return &diagramRepository{db: db}
}

var _ DiagramRepository = (*diagramRepository)(nil)

const diagramColumns = `id, public_id, title, type, prompt, model, nodes, edges, chat, version, user_id, owner_anon_id, created_at, updated_at`

// ownerPredicate returns the SQL predicate and argument for the owner,
// using the given positional placeholder index.
func ownerPredicate(owner models.Owner, arg int) (string, any) {
	if owner.IsUser() {
		return fmt.Sprintf("user_id = $%d", arg), owner.UserID
	}
	return fmt.Sprintf("owner_anon_id = $%d", arg), owner.AnonID
}

func (r *diagramRepository) Create(ctx context.Context, d *models.Diagram) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	if d.PublicID == "" {
		publicID, err := gonanoid.New(publicIDLength)
		if err != nil {
			return fmt.Errorf("failed to generate public id: %w", err)
		}
		d.PublicID = publicID
	}
	now := time.Now()
	d.CreatedAt = now
	d.UpdatedAt = now
	d.Version = 0

	nodesJSON, edgesJSON, chatJSON, err := marshalDocumentFields(d.Nodes, d.Edges, d.Chat)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO diagrams (` + diagramColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err = r.db.Exec(ctx, query,
		d.ID, d.PublicID, d.Title, d.Type, d.Prompt, d.Model,
		nodesJSON, edgesJSON, chatJSON, d.Version,
		d.UserID, d.OwnerAnonID, d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create diagram: %w", err)
	}

	return nil
}

func (r *diagramRepository) List(ctx context.Context, owner models.Owner, limit, offset int) ([]*models.Diagram, int, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	pred, arg := ownerPredicate(owner, 1)

	var total int
	countQuery := `SELECT COUNT(*) FROM diagrams WHERE ` + pred
	if err := r.db.QueryRow(ctx, countQuery, arg).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count diagrams: %w", err)
	}

	query := `
		SELECT ` + diagramColumns + `
		FROM diagrams
		WHERE ` + pred + `
		ORDER BY updated_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.Query(ctx, query, arg, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list diagrams: %w", err)
	}
	defer rows.Close()

	diagrams := make([]*models.Diagram, 0)
	for rows.Next() {
		d, err := scanDiagramRow(rows)
		if err != nil {
			return nil, 0, err
		}
		diagrams = append(diagrams, d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating diagrams: %w", err)
	}

	return diagrams, total, nil
}

func (r *diagramRepository) Get(ctx context.Context, id uuid.UUID, owner models.Owner) (*models.Diagram, error) {
	pred, arg := ownerPredicate(owner, 2)

	query := `
		SELECT ` + diagramColumns + `
		FROM diagrams
		WHERE id = $1 AND ` + pred

	rows, err := r.db.Query(ctx, query, id, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to get diagram: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to get diagram: %w", err)
		}
		return nil, fmt.Errorf("%w: diagram %s", apperrors.ErrNotFound, id)
	}

	return scanDiagramRow(rows)
}

func (r *diagramRepository) Delete(ctx context.Context, id uuid.UUID, owner models.Owner) error {
	pred, arg := ownerPredicate(owner, 2)

	tag, err := r.db.Exec(ctx, `DELETE FROM diagrams WHERE id = $1 AND `+pred, id, arg)
	if err != nil {
		return fmt.Errorf("failed to delete diagram: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: diagram %s", apperrors.ErrNotFound, id)
	}

	return nil
}

func (r *diagramRepository) ConditionalUpdate(ctx context.Context, id uuid.UUID, owner models.Owner, expectedVersion int64, patch *models.DiagramPatch) (*models.Diagram, error) {
	sets := []string{"version = version + 1", "updated_at = NOW()"}
	args := []any{id}
	next := 2

	addSet := func(column string, value any) {
		sets = append(sets, fmt.Sprintf("%s = $%d", column, next))
		args = append(args, value)
		next++
	}

	if patch.Title != nil {
		addSet("title", *patch.Title)
	}
	if patch.Type != nil {
		addSet("type", *patch.Type)
	}
	if patch.Prompt != nil {
		addSet("prompt", *patch.Prompt)
	}
	if patch.Model != nil {
		addSet("model", *patch.Model)
	}
	if patch.Nodes != nil {
		nodesJSON, err := json.Marshal(patch.Nodes)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal nodes: %w", err)
		}
		addSet("nodes", nodesJSON)
	}
	if patch.Edges != nil {
		edgesJSON, err := json.Marshal(patch.Edges)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal edges: %w", err)
		}
		addSet("edges", edgesJSON)
	}
	if patch.Chat != nil {
		chatJSON, err := json.Marshal(models.TrimChat(patch.Chat))
		if err != nil {
			return nil, fmt.Errorf("failed to marshal chat: %w", err)
		}
		addSet("chat", chatJSON)
	}

	pred, ownerArg := ownerPredicate(owner, next)
	args = append(args, ownerArg)
	next++

	query := fmt.Sprintf(`
		UPDATE diagrams
		SET %s
		WHERE id = $1 AND %s AND version = $%d
		RETURNING `+diagramColumns,
		strings.Join(sets, ", "), pred, next)
	args = append(args, expectedVersion)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update diagram: %w", err)
	}
	defer rows.Close()

	if rows.Next() {
		return scanDiagramRow(rows)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to update diagram: %w", err)
	}
	rows.Close()

	// No row matched (id, owner, version). Distinguish a stale version
	// from a missing diagram.
	if _, err := r.Get(ctx, id, owner); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to resolve update conflict: %w", err)
	}
	return nil, fmt.Errorf("%w: diagram %s version %d is stale", apperrors.ErrConflict, id, expectedVersion)
}

func (r *diagramRepository) CountByOwner(ctx context.Context, owner models.Owner) (int, error) {
	pred, arg := ownerPredicate(owner, 1)

	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM diagrams WHERE `+pred, arg).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count diagrams: %w", err)
	}

	return count, nil
}

func (r *diagramRepository) TransferOwnership(ctx context.Context, anonID, userID string) (int64, error) {
	query := `
		UPDATE diagrams
		SET user_id = $1, owner_anon_id = NULL, updated_at = NOW()
		WHERE owner_anon_id = $2`

	tag, err := r.db.Exec(ctx, query, userID, anonID)
	if err != nil {
		return 0, fmt.Errorf("failed to transfer diagrams: %w", err)
	}

	return tag.RowsAffected(), nil
}

// ============================================================================
// Helper Functions - Scan
// ============================================================================

func marshalDocumentFields(nodes []models.Node, edges []models.Edge, chat []models.ChatMessage) ([]byte, []byte, []byte, error) {
	if nodes == nil {
		nodes = []models.Node{}
	}
	if edges == nil {
		edges = []models.Edge{}
	}
	if chat == nil {
		chat = []models.ChatMessage{}
	}

	nodesJSON, err := json.Marshal(nodes)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to marshal nodes: %w", err)
	}
	edgesJSON, err := json.Marshal(edges)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to marshal edges: %w", err)
	}
	chatJSON, err := json.Marshal(models.TrimChat(chat))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to marshal chat: %w", err)
	}

	return nodesJSON, edgesJSON, chatJSON, nil
}

func scanDiagramRow(rows pgx.Rows) (*models.Diagram, error) {
	var d models.Diagram
	var nodesJSON, edgesJSON, chatJSON []byte

	err := rows.Scan(
		&d.ID, &d.PublicID, &d.Title, &d.Type, &d.Prompt, &d.Model,
		&nodesJSON, &edgesJSON, &chatJSON, &d.Version,
		&d.UserID, &d.OwnerAnonID, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan diagram: %w", err)
	}

	if len(nodesJSON) > 0 {
		if err := json.Unmarshal(nodesJSON, &d.Nodes); err != nil {
			return nil, fmt.Errorf("failed to unmarshal nodes: %w", err)
		}
	}
	if len(edgesJSON) > 0 {
		if err := json.Unmarshal(edgesJSON, &d.Edges); err != nil {
			return nil, fmt.Errorf("failed to unmarshal edges: %w", err)
		}
	}
	if len(chatJSON) > 0 {
		if err := json.Unmarshal(chatJSON, &d.Chat); err != nil {
			return nil, fmt.Errorf("failed to unmarshal chat: %w", err)
		}
	}

	return &d, nil
}
