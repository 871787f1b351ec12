package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lostfound-board/apiserver/types"
)

const itemColumns = `id, kind, title, description, location, posted_by, status,
		claimed_by, claimed_at, images, version, created_at, updated_at`

// ItemRepository handles persistence for items.
type ItemRepository struct {
	db *sql.DB
}

func NewItemRepository(db *sql.DB) *ItemRepository {
	return &ItemRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (types.Item, error) {
	var item types.Item
	var claimedBy sql.NullString
	var claimedAt sql.NullTime
	var imagesJSON []byte
	if err := row.Scan(
		&item.ID,
		&item.Kind,
		&item.Title,
		&item.Description,
		&item.Location,
		&item.PostedBy,
		&item.Status,
		&claimedBy,
		&claimedAt,
		&imagesJSON,
		&item.Version,
		&item.CreatedAt,
		&item.UpdatedAt,
	); err != nil {
		return types.Item{}, err
	}

	if claimedBy.Valid {
		item.ClaimedBy = &claimedBy.String
	}
	if claimedAt.Valid {
		at := claimedAt.Time
		item.ClaimedAt = &at
	}
	if err := json.Unmarshal(imagesJSON, &item.Images); err != nil {
		return types.Item{}, fmt.Errorf("decode images of item %s: %w", item.ID, err)
	}
	if item.Images == nil {
		item.Images = []string{}
	}
	return item, nil
}

func (r *ItemRepository) Get(ctx context.Context, id string) (types.Item, error) {
	if _, err := uuid.Parse(id); err != nil {
		return types.Item{}, ErrNotFound
	}

	query := `SELECT ` + itemColumns + ` FROM items WHERE id = $1`
	item, err := scanItem(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Item{}, ErrNotFound
		}
		return types.Item{}, err
	}
	return item, nil
}

func (r *ItemRepository) Create(ctx context.Context, item types.Item) (types.Item, error) {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	item.UpdatedAt = item.CreatedAt
	if item.Status == "" {
		item.Status = types.ItemStatusActive
	}
	if item.Images == nil {
		item.Images = []string{}
	}
	item.Version = 1

	imagesJSON, err := json.Marshal(item.Images)
	if err != nil {
		return types.Item{}, err
	}

	const query = `
		INSERT INTO items (id, kind, title, description, location, posted_by, status,
			claimed_by, claimed_at, images, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		item.ID,
		item.Kind,
		item.Title,
		item.Description,
		item.Location,
		item.PostedBy,
		item.Status,
		item.ClaimedBy,
		item.ClaimedAt,
		imagesJSON,
		item.Version,
		item.CreatedAt,
		item.UpdatedAt,
	); err != nil {
		return types.Item{}, fmt.Errorf("insert item: %w", err)
	}

	return item, nil
}

// List returns one page of items matching filter and the total match count.
func (r *ItemRepository) List(ctx context.Context, filter types.ItemFilter) ([]types.Item, int, error) {
	where, args := itemFilterClause(filter)

	var total int
	countQuery := `SELECT COUNT(1) FROM items` + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit < 1 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	direction := "DESC"
	if filter.Order == types.ItemOrderOldest {
		direction = "ASC"
	}

	listQuery := fmt.Sprintf(`SELECT %s FROM items%s
		ORDER BY created_at %s, id %s
		OFFSET $%d LIMIT $%d`,
		itemColumns, where, direction, direction, len(args)+1, len(args)+2)
	rows, err := r.db.QueryContext(ctx, listQuery, append(args, offset, limit)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := make([]types.Item, 0, limit)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return items, total, nil
}

func itemFilterClause(filter types.ItemFilter) (string, []any) {
	var conditions []string
	var args []any

	if filter.Kind != "" {
		args = append(args, string(filter.Kind))
		conditions = append(conditions, fmt.Sprintf("kind = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.PostedBy != "" {
		args = append(args, filter.PostedBy)
		conditions = append(conditions, fmt.Sprintf("posted_by = $%d", len(args)))
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		args = append(args, "%"+escapeLike(q)+"%")
		n := len(args)
		conditions = append(conditions, fmt.Sprintf(
			"(title ILIKE $%d OR description ILIKE $%d OR location ILIKE $%d)", n, n, n))
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// UpdateStatus applies transition only if the item's status is still from.
// The check and the write are one statement, so concurrent callers cannot
// both observe from and both succeed.
func (r *ItemRepository) UpdateStatus(ctx context.Context, id string, from types.ItemStatus, to types.ItemTransition) (types.Item, error) {
	if _, err := uuid.Parse(id); err != nil {
		return types.Item{}, ErrNotFound
	}

	query := `
		UPDATE items
		SET status = $3,
			claimed_by = $4,
			claimed_at = $5,
			version = version + 1,
			updated_at = $6
		WHERE id = $1 AND status = $2
		RETURNING ` + itemColumns
	item, err := scanItem(r.db.QueryRowContext(
		ctx,
		query,
		id,
		from,
		to.Status,
		to.ClaimedBy,
		to.ClaimedAt,
		time.Now().UTC(),
	))
	if err == nil {
		return item, nil
	}
	if pqCode(err) == pqCheckViolation {
		return types.Item{}, fmt.Errorf("%w: %v", ErrConflict, err)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return types.Item{}, err
	}

	exists, err := r.exists(ctx, id)
	if err != nil {
		return types.Item{}, err
	}
	if !exists {
		return types.Item{}, ErrNotFound
	}
	return types.Item{}, ErrConflict
}

// AddImage appends an object key to the item's image list unless the list
// already holds limit keys. The length check is part of the UPDATE.
func (r *ItemRepository) AddImage(ctx context.Context, id, key string, limit int) (types.Item, error) {
	if _, err := uuid.Parse(id); err != nil {
		return types.Item{}, ErrNotFound
	}

	query := `
		UPDATE items
		SET images = images || to_jsonb($2::text),
			version = version + 1,
			updated_at = $3
		WHERE id = $1 AND jsonb_array_length(images) < $4
		RETURNING ` + itemColumns
	item, err := scanItem(r.db.QueryRowContext(ctx, query, id, key, time.Now().UTC(), limit))
	if err == nil {
		return item, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return types.Item{}, err
	}

	exists, err := r.exists(ctx, id)
	if err != nil {
		return types.Item{}, err
	}
	if !exists {
		return types.Item{}, ErrNotFound
	}
	return types.Item{}, ErrLimitReached
}

func (r *ItemRepository) exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM items WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}
