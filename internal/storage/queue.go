package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mkalas/centavo/internal/common"
	"github.com/mkalas/centavo/internal/model"
)

// Enqueue appends a mutation to the offline queue and returns the queue
// entry's id.
func (s *SQLiteStore) Enqueue(ctx context.Context, m model.Mutation) (string, error) {
	if err := validateContext(ctx); err != nil {
		return "", err
	}
	if err := validateMutation(m); err != nil {
		return "", err
	}

	var data any
	if m.Data != nil {
		data = string(m.Data)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO mutations (id, type, collection, entity_id, data, timestamp, synced)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, m.ID, string(m.Type), string(m.Collection), m.EntityID, data,
		m.Timestamp.UTC().Format(time.RFC3339Nano), boolToInt(m.Synced))
	if err != nil {
		return "", fmt.Errorf("failed to enqueue mutation: %w", err)
	}
	return m.ID, nil
}

// DequeuePending returns every unsynced mutation in insertion order.
func (s *SQLiteStore) DequeuePending(ctx context.Context) ([]model.Mutation, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, collection, entity_id, data, timestamp, synced
		FROM mutations
		WHERE synced = 0
		ORDER BY timestamp ASC, rowid ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending mutations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.Mutation
	for rows.Next() {
		m, err := scanMutation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate mutations: %w", err)
	}
	return out, nil
}

// MarkSynced flags a queue entry as confirmed by the remote store.
func (s *SQLiteStore) MarkSynced(ctx context.Context, mutationID string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(mutationID, "mutationID"); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		"UPDATE mutations SET synced = 1 WHERE id = ?", mutationID)
	if err != nil {
		return fmt.Errorf("failed to mark mutation synced: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("mutation %s: %w", mutationID, common.ErrNotFound)
	}
	return nil
}

// UpdateMutation rewrites a queue entry in place. Used by identifier
// reconciliation to retarget held-back mutations from temporary to permanent
// ids.
func (s *SQLiteStore) UpdateMutation(ctx context.Context, m model.Mutation) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateMutation(m); err != nil {
		return err
	}

	var data any
	if m.Data != nil {
		data = string(m.Data)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE mutations
		SET type = ?, collection = ?, entity_id = ?, data = ?, synced = ?
		WHERE id = ?
	`, string(m.Type), string(m.Collection), m.EntityID, data, boolToInt(m.Synced), m.ID)
	if err != nil {
		return fmt.Errorf("failed to update mutation: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("mutation %s: %w", m.ID, common.ErrNotFound)
	}
	return nil
}

// PruneSynced removes every queue entry already confirmed by the remote store.
func (s *SQLiteStore) PruneSynced(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, "DELETE FROM mutations WHERE synced = 1"); err != nil {
		return fmt.Errorf("failed to prune synced mutations: %w", err)
	}
	return nil
}

func scanMutation(rows *sql.Rows) (model.Mutation, error) {
	var (
		m         model.Mutation
		typ       string
		coll      string
		data      sql.NullString
		timestamp string
		synced    int
	)
	if err := rows.Scan(&m.ID, &typ, &coll, &m.EntityID, &data, &timestamp, &synced); err != nil {
		return model.Mutation{}, fmt.Errorf("failed to scan mutation: %w", err)
	}

	t, err := time.Parse(time.RFC3339Nano, timestamp)
	if err != nil {
		return model.Mutation{}, fmt.Errorf("failed to parse mutation timestamp %q: %w", timestamp, err)
	}

	m.Type = model.MutationType(typ)
	m.Collection = model.Collection(coll)
	m.Timestamp = t
	m.Synced = synced != 0
	if data.Valid {
		m.Data = []byte(data.String)
	}
	return m, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
