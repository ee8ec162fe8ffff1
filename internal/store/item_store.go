package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/gustaf30/nexus/internal/model"
)

// upsertItemSQL inserts an item or updates its mutable fields when the
// (source, source_id) pair already exists. id, is_read, and created_at
// are deliberately excluded from the update list: identity is stable,
// read state belongs to the user, and created_at records first sight.
const upsertItemSQL = `
	INSERT INTO items (
		id, source, source_id, kind, title, summary, url, author,
		timestamp, metadata, tags, is_read, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(source, source_id) DO UPDATE SET
		kind=excluded.kind, title=excluded.title, summary=excluded.summary,
		url=excluded.url, author=excluded.author, timestamp=excluded.timestamp,
		metadata=excluded.metadata, tags=excluded.tags,
		updated_at=excluded.updated_at`

// upsertItemArgs flattens an item into the argument list for upsertItemSQL.
func upsertItemArgs(item model.Item) ([]interface{}, error) {
	metadata, err := json.Marshal(item.Metadata)
	if err != nil {
		return nil, fmt.Errorf("marshaling metadata for item %s: %w", item.ID, err)
	}
	if item.Metadata == nil {
		metadata = []byte("{}")
	}

	tags, err := json.Marshal(item.Tags)
	if err != nil {
		return nil, fmt.Errorf("marshaling tags for item %s: %w", item.ID, err)
	}
	if item.Tags == nil {
		tags = []byte("[]")
	}

	return []interface{}{
		item.ID, string(item.Source), item.SourceID, item.Kind,
		item.Title, item.Summary, item.URL, item.Author,
		item.Timestamp, string(metadata), string(tags),
		boolToInt(item.IsRead), item.CreatedAt, item.UpdatedAt,
	}, nil
}

// GetItems retrieves items matching the provided filter, ordered by
// source timestamp descending.
func (s *SQLiteStore) GetItems(
	ctx context.Context,
	filter model.ItemFilter,
) ([]model.Item, error) {
	var conditions []string
	var args []interface{}

	if filter.Source != nil {
		conditions = append(conditions, "source = ?")
		args = append(args, string(*filter.Source))
	}
	if filter.UnreadOnly {
		conditions = append(conditions, "is_read = 0")
	}

	query := "SELECT * FROM items"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY timestamp DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying items: %w", err)
	}
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	return items, rows.Err()
}

// GetItemByID retrieves a single item by its stable identifier.
func (s *SQLiteStore) GetItemByID(
	ctx context.Context,
	id string,
) (*model.Item, error) {
	rows, err := s.db.QueryxContext(ctx, "SELECT * FROM items WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("querying item %s: %w", id, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("querying item %s: %w", id, err)
		}
		return nil, sql.ErrNoRows
	}

	item, err := scanItem(rows)
	if err != nil {
		return nil, fmt.Errorf("getting item %s: %w", id, err)
	}
	return &item, nil
}

// MarkItemRead sets the user-owned read flag on an item.
func (s *SQLiteStore) MarkItemRead(
	ctx context.Context,
	id string,
	read bool,
) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE items SET is_read = ? WHERE id = ?", boolToInt(read), id,
	)
	if err != nil {
		return fmt.Errorf("marking item %s read=%t: %w", id, read, err)
	}
	return nil
}

// scanItem scans an item row from a sqlx.Rows result set.
func scanItem(rows *sqlx.Rows) (model.Item, error) {
	var (
		item     model.Item
		source   string
		metadata string
		tags     string
		isRead   int
	)

	err := rows.Scan(
		&item.ID, &source, &item.SourceID, &item.Kind,
		&item.Title, &item.Summary, &item.URL, &item.Author,
		&item.Timestamp, &metadata, &tags, &isRead,
		&item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return model.Item{}, fmt.Errorf("scanning item row: %w", err)
	}

	item.Source = model.SourceType(source)
	item.IsRead = isRead != 0

	if metadata != "" && metadata != "{}" {
		if err := json.Unmarshal([]byte(metadata), &item.Metadata); err != nil {
			return model.Item{}, fmt.Errorf("unmarshaling item metadata: %w", err)
		}
	}
	if tags != "" && tags != "[]" {
		if err := json.Unmarshal([]byte(tags), &item.Tags); err != nil {
			return model.Item{}, fmt.Errorf("unmarshaling item tags: %w", err)
		}
	}

	return item, nil
}
