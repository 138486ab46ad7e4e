package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/kubilitics/kubilitics-topology/internal/models"
)

// ErrSnapshotNotFound is returned when a snapshot id does not exist.
var ErrSnapshotNotFound = errors.New("snapshot not found")

const schema = `
CREATE TABLE IF NOT EXISTS topology_snapshots (
	id          TEXT PRIMARY KEY,
	layout      TEXT NOT NULL,
	scope_kind  TEXT NOT NULL,
	scope_id    TEXT NOT NULL DEFAULT '',
	scope_label TEXT NOT NULL DEFAULT '',
	fingerprint TEXT NOT NULL,
	node_count  INTEGER NOT NULL,
	edge_count  INTEGER NOT NULL,
	data        TEXT NOT NULL,
	created_at  TIMESTAMP NOT NULL
);
`

// SQLiteRepository stores topology snapshots in SQLite
type SQLiteRepository struct {
	db *sqlx.DB
}

// NewSQLiteRepository opens dbPath and applies the schema. Use ":memory:"
// for a throwaway database.
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	db, err := sqlx.Connect("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SQLite: %w", err)
	}
	// a single connection keeps :memory: databases shared and serializes writers
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	if err := addScopeLabel(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return &SQLiteRepository{db: db}, nil
}

// addScopeLabel upgrades databases created before snapshots were keyed by
// scope label.
func addScopeLabel(db *sqlx.DB) error {
	var n int
	err := db.Get(&n, `SELECT COUNT(*) FROM pragma_table_info('topology_snapshots') WHERE name = 'scope_label'`)
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := db.Exec(`ALTER TABLE topology_snapshots ADD COLUMN scope_label TEXT NOT NULL DEFAULT ''`); err != nil {
			return err
		}
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_topology_snapshots_scope_label
	ON topology_snapshots (layout, scope_kind, scope_id, scope_label, created_at DESC)`)
	return err
}

// Close closes the database connection
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

// Ping verifies the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// SaveSnapshot inserts snapshot, assigning an id and timestamp when unset.
// A snapshot whose fingerprint matches the latest one for the same scope is
// not stored again; snapshot then takes the existing id.
func (r *SQLiteRepository) SaveSnapshot(ctx context.Context, snapshot *models.TopologySnapshot) error {
	latest, err := r.GetLatestSnapshot(ctx, snapshot.Layout, models.Scope{
		Kind:  models.ScopeKind(snapshot.ScopeKind),
		ID:    snapshot.ScopeID,
		Label: snapshot.ScopeLabel,
	})
	if err != nil {
		return err
	}
	if latest != nil && latest.Fingerprint == snapshot.Fingerprint {
		snapshot.ID = latest.ID
		snapshot.CreatedAt = latest.CreatedAt
		return nil
	}

	if snapshot.ID == "" {
		snapshot.ID = uuid.New().String()
	}
	if snapshot.CreatedAt.IsZero() {
		snapshot.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO topology_snapshots (id, layout, scope_kind, scope_id, scope_label, fingerprint, node_count, edge_count, data, created_at)
		VALUES (:id, :layout, :scope_kind, :scope_id, :scope_label, :fingerprint, :node_count, :edge_count, :data, :created_at)
	`
	if _, err := r.db.NamedExecContext(ctx, query, snapshot); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetSnapshot(ctx context.Context, id string) (*models.TopologySnapshot, error) {
	var snapshot models.TopologySnapshot
	err := r.db.GetContext(ctx, &snapshot, `SELECT * FROM topology_snapshots WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// ListSnapshots returns snapshot headers for a scope, newest first. Data is
// left empty; fetch a single snapshot for the graph.
func (r *SQLiteRepository) ListSnapshots(ctx context.Context, layout string, scope models.Scope, limit int) ([]*models.TopologySnapshot, error) {
	if limit <= 0 {
		limit = 50
	}
	snapshots := []*models.TopologySnapshot{}
	query := `
		SELECT id, layout, scope_kind, scope_id, scope_label, fingerprint, node_count, edge_count, '' AS data, created_at
		FROM topology_snapshots
		WHERE layout = ? AND scope_kind = ? AND scope_id = ? AND scope_label = ?
		ORDER BY created_at DESC
		LIMIT ?
	`
	err := r.db.SelectContext(ctx, &snapshots, query, layout, string(scope.Kind), scope.ID, scope.Label, limit)
	return snapshots, err
}

// GetLatestSnapshot returns the newest snapshot for a scope, or nil when none exists.
func (r *SQLiteRepository) GetLatestSnapshot(ctx context.Context, layout string, scope models.Scope) (*models.TopologySnapshot, error) {
	var snapshot models.TopologySnapshot
	query := `
		SELECT * FROM topology_snapshots
		WHERE layout = ? AND scope_kind = ? AND scope_id = ? AND scope_label = ?
		ORDER BY created_at DESC
		LIMIT 1
	`
	err := r.db.GetContext(ctx, &snapshot, query, layout, string(scope.Kind), scope.ID, scope.Label)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// DeleteOldSnapshots removes snapshots created before olderThan.
func (r *SQLiteRepository) DeleteOldSnapshots(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM topology_snapshots WHERE created_at < ?`, olderThan.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
