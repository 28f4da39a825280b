package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mkalas/centavo/internal/common"
	"github.com/mkalas/centavo/internal/model"
)

// GetAll returns every document in a collection, ordered by sort key
// descending (newest first for dated collections).
func (s *SQLiteStore) GetAll(ctx context.Context, c model.Collection) ([]model.Document, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateCollection(c); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, updated_at, sort_key, data FROM entities
		WHERE collection = ?
		ORDER BY sort_key DESC
	`, string(c))
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", c, err)
	}
	defer func() { _ = rows.Close() }()

	var docs []model.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s: %w", c, err)
	}
	return docs, nil
}

// SaveAll replaces the entire contents of a collection.
func (s *SQLiteStore) SaveAll(ctx context.Context, c model.Collection, docs []model.Document) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateCollection(c); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM entities WHERE collection = ?", string(c)); err != nil {
		return fmt.Errorf("failed to clear %s: %w", c, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO entities (collection, id, updated_at, sort_key, data)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, doc := range docs {
		if _, err := stmt.ExecContext(ctx,
			string(c), doc.ID, doc.UpdatedAt.UTC().Format(time.RFC3339Nano),
			doc.SortKey, string(doc.Data)); err != nil {
			return fmt.Errorf("failed to save %s/%s: %w", c, doc.ID, err)
		}
	}

	return tx.Commit()
}

// GetOne returns a single document, or common.ErrNotFound.
func (s *SQLiteStore) GetOne(ctx context.Context, c model.Collection, id string) (*model.Document, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateCollection(c); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, updated_at, sort_key, data FROM entities
		WHERE collection = ? AND id = ?
	`, string(c), id)

	doc, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%s/%s: %w", c, id, common.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// SaveOne inserts or replaces a single document.
func (s *SQLiteStore) SaveOne(ctx context.Context, c model.Collection, doc model.Document) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateCollection(c); err != nil {
		return err
	}
	if err := validateString(doc.ID, "doc.ID"); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO entities (collection, id, updated_at, sort_key, data)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(collection, id) DO UPDATE SET
			updated_at = excluded.updated_at,
			sort_key = excluded.sort_key,
			data = excluded.data
	`, string(c), doc.ID, doc.UpdatedAt.UTC().Format(time.RFC3339Nano),
		doc.SortKey, string(doc.Data))
	if err != nil {
		return fmt.Errorf("failed to save %s/%s: %w", c, doc.ID, err)
	}
	return nil
}

// DeleteOne removes a single document. Deleting an absent id is not an error.
func (s *SQLiteStore) DeleteOne(ctx context.Context, c model.Collection, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateCollection(c); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx,
		"DELETE FROM entities WHERE collection = ? AND id = ?", string(c), id)
	if err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", c, id, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (model.Document, error) {
	var (
		doc       model.Document
		updatedAt string
		data      string
	)
	if err := row.Scan(&doc.ID, &updatedAt, &doc.SortKey, &data); err != nil {
		if err == sql.ErrNoRows {
			return model.Document{}, err
		}
		return model.Document{}, fmt.Errorf("failed to scan document: %w", err)
	}

	t, err := time.Parse(time.RFC3339Nano, updatedAt)
	if err != nil {
		// SQLite DATETIME affinity may round-trip through its own format.
		t, err = time.Parse("2006-01-02 15:04:05.999999999-07:00", updatedAt)
		if err != nil {
			return model.Document{}, fmt.Errorf("failed to parse updated_at %q: %w", updatedAt, err)
		}
	}
	doc.UpdatedAt = t
	doc.Data = []byte(data)
	return doc, nil
}
