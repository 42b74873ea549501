package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nvandessel/corpus-graph/internal/models"
)

// SQLiteNodeStore implements NodeStore on a single SQLite database. Indexed
// columns mirror the fields the engine filters on; the full record is kept
// as JSON in the doc column.
type SQLiteNodeStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	dbPath string
}

// NewSQLiteNodeStore opens or creates the database at dbPath.
func NewSQLiteNodeStore(dbPath string) (*SQLiteNodeStore, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite works best with single writer

	if err := InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteNodeStore{db: db, dbPath: dbPath}, nil
}

// Put inserts or replaces a node.
func (s *SQLiteNodeStore) Put(ctx context.Context, node models.Node) error {
	normalizeNode(&node)
	if err := ValidateNode(&node); err != nil {
		return err
	}

	doc, err := json.Marshal(node)
	if err != nil {
		return fmt.Errorf("failed to marshal node %s: %w", node.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var existingType, existingCreated string
	err = tx.QueryRowContext(ctx, `SELECT type, created_at FROM nodes WHERE id = ?`, node.ID).
		Scan(&existingType, &existingCreated)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return fmt.Errorf("failed to look up node %s: %w", node.ID, err)
	default:
		created, perr := time.Parse(time.RFC3339Nano, existingCreated)
		if perr != nil {
			return fmt.Errorf("failed to parse stored created_at for %s: %w", node.ID, perr)
		}
		existing := models.Node{ID: node.ID, Type: models.NodeType(existingType), CreatedAt: created}
		if err := checkImmutable(&existing, &node); err != nil {
			return err
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO nodes (id, type, category, title, created_at, updated_at, doc)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			category = excluded.category,
			title = excluded.title,
			updated_at = excluded.updated_at,
			doc = excluded.doc`,
		node.ID, string(node.Type), node.Category, node.Title,
		node.CreatedAt.UTC().Format(time.RFC3339Nano),
		time.Now().UTC().Format(time.RFC3339Nano),
		string(doc))
	if err != nil {
		return fmt.Errorf("failed to write node %s: %w", node.ID, err)
	}
	return tx.Commit()
}

// Get retrieves a node by ID.
func (s *SQLiteNodeStore) Get(ctx context.Context, id string) (*models.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT doc FROM nodes WHERE id = ?`, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query node %s: %w", id, err)
	}
	return decodeNodeRow(id, doc)
}

// List yields nodes ordered by collection, then id, matching the file store.
// Rows are drained before the first yield because the pool has a single
// connection that the caller may need for writes while iterating.
func (s *SQLiteNodeStore) List(ctx context.Context, nodeType models.NodeType) iter.Seq2[models.Node, error] {
	return func(yield func(models.Node, error) bool) {
		type row struct{ id, doc string }

		s.mu.RLock()
		query := `SELECT id, doc FROM nodes`
		var args []any
		if nodeType != "" {
			query += ` WHERE type = ?`
			args = append(args, string(nodeType))
		}
		query += ` ORDER BY CASE type WHEN 'Decision' THEN 0 WHEN 'Learning' THEN 1 ELSE 2 END, id`

		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			s.mu.RUnlock()
			yield(models.Node{}, fmt.Errorf("failed to list nodes: %w", err))
			return
		}
		var buffered []row
		for rows.Next() {
			var r row
			if err := rows.Scan(&r.id, &r.doc); err != nil {
				rows.Close()
				s.mu.RUnlock()
				yield(models.Node{}, fmt.Errorf("failed to scan node: %w", err))
				return
			}
			buffered = append(buffered, r)
		}
		rerr := rows.Err()
		rows.Close()
		s.mu.RUnlock()
		if rerr != nil {
			yield(models.Node{}, fmt.Errorf("failed to list nodes: %w", rerr))
			return
		}

		for _, r := range buffered {
			if ctx.Err() != nil {
				yield(models.Node{}, ctx.Err())
				return
			}
			node, err := decodeNodeRow(r.id, r.doc)
			if err != nil {
				if !yield(models.Node{}, err) {
					return
				}
				continue
			}
			if !yield(*node, nil) {
				return
			}
		}
	}
}

// Delete removes a node.
func (s *SQLiteNodeStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM nodes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete node %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete node %s: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Close closes the database.
func (s *SQLiteNodeStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// DBPath returns the database file path.
func (s *SQLiteNodeStore) DBPath() string {
	return s.dbPath
}

func decodeNodeRow(id, doc string) (*models.Node, error) {
	var node models.Node
	if err := json.Unmarshal([]byte(doc), &node); err != nil {
		return nil, &ValidationError{NodeID: id, Field: "doc", Reason: "is not valid JSON: " + err.Error()}
	}
	if err := ValidateNode(&node); err != nil {
		return nil, err
	}
	return &node, nil
}
