package learnings

import (
	"context"
	stdsql "database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib" // register pgx driver for database/sql
	"github.com/reelforge/reelforge/pkg/faults"
)

//go:embed migrations
var migrationsFS embed.FS

// PostgresStore is the self-hosted back-end for teams that want learnings in
// their own database. Schema is applied on startup from embedded migrations;
// search uses Postgres full-text ranking instead of the local word-overlap
// scorer.
type PostgresStore struct {
	db *stdsql.DB
}

// NewPostgresStore connects, verifies the connection and applies pending
// migrations. The URL comes from LEARNINGS_DATABASE_URL.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	db, err := stdsql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open learnings database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping learnings database: %w", err)
	}
	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run learnings migrations: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func runMigrations(db *stdsql.DB) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create postgres driver: %w", err)
	}
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", sourceDriver, "learnings", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	// Close only the source driver. m.Close() would also close the database
	// driver, which closes the shared *sql.DB.
	if err := sourceDriver.Close(); err != nil {
		return fmt.Errorf("failed to close migration source: %w", err)
	}
	return nil
}

const recordColumns = `record_id, namespace, content, text_for_search, created_by,
	validations, confidence, tags, promoted_from, promotion_history, created_at, updated_at`

func scanRecord(scan func(dest ...any) error) (*Record, error) {
	var (
		rec          Record
		content      []byte
		tags         []byte
		history      []byte
		promotedFrom stdsql.NullString
	)
	err := scan(&rec.ID, &rec.Namespace, &content, &rec.TextForSearch, &rec.CreatedBy,
		&rec.Validations, &rec.Confidence, &tags, &promotedFrom, &history, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(content, &rec.Content); err != nil {
		return nil, fmt.Errorf("failed to decode record content: %w", err)
	}
	if err := json.Unmarshal(tags, &rec.Tags); err != nil {
		return nil, fmt.Errorf("failed to decode record tags: %w", err)
	}
	if err := json.Unmarshal(history, &rec.PromotionHistory); err != nil {
		return nil, fmt.Errorf("failed to decode promotion history: %w", err)
	}
	rec.PromotedFrom = promotedFrom.String
	return &rec, nil
}

func marshalFields(rec *Record) (content, tags, history []byte, err error) {
	if rec.Content == nil {
		rec.Content = map[string]any{}
	}
	if content, err = json.Marshal(rec.Content); err != nil {
		return nil, nil, nil, err
	}
	if rec.Tags == nil {
		rec.Tags = []string{}
	}
	if tags, err = json.Marshal(rec.Tags); err != nil {
		return nil, nil, nil, err
	}
	if rec.PromotionHistory == nil {
		rec.PromotionHistory = []PromotionEntry{}
	}
	if history, err = json.Marshal(rec.PromotionHistory); err != nil {
		return nil, nil, nil, err
	}
	return content, tags, history, nil
}

// Create inserts the record, assigning an id when empty.
func (s *PostgresStore) Create(ctx context.Context, rec *Record) (string, error) {
	if _, err := ParseNamespace(rec.Namespace); err != nil {
		return "", err
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	content, tags, history, err := marshalFields(rec)
	if err != nil {
		return "", fmt.Errorf("failed to encode record: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO learning_records (record_id, namespace, content, text_for_search, created_by,
			validations, confidence, tags, promoted_from, promotion_history, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), $10, $11, $12)`,
		rec.ID, rec.Namespace, content, rec.TextForSearch, rec.CreatedBy,
		rec.Validations, rec.Confidence, tags, rec.PromotedFrom, history, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return "", fmt.Errorf("failed to insert record: %w", err)
	}
	return rec.ID, nil
}

// Get fetches one record.
func (s *PostgresStore) Get(ctx context.Context, namespace, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM learning_records WHERE namespace = $1 AND record_id = $2`,
		namespace, id)
	rec, err := scanRecord(row.Scan)
	if err == stdsql.ErrNoRows {
		return nil, faults.Newf(faults.InputInvalid, "record %s not found in %s", id, namespace)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query record: %w", err)
	}
	return rec, nil
}

// Update replaces the record in place.
func (s *PostgresStore) Update(ctx context.Context, rec *Record) error {
	rec.UpdatedAt = time.Now().UTC()
	content, tags, history, err := marshalFields(rec)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE learning_records
		SET content = $3, text_for_search = $4, created_by = $5, validations = $6,
			confidence = $7, tags = $8, promoted_from = NULLIF($9, ''),
			promotion_history = $10, updated_at = $11
		WHERE namespace = $1 AND record_id = $2`,
		rec.Namespace, rec.ID, content, rec.TextForSearch, rec.CreatedBy,
		rec.Validations, rec.Confidence, tags, rec.PromotedFrom, history, rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update record: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return faults.Newf(faults.InputInvalid, "record %s not found in %s", rec.ID, rec.Namespace)
	}
	return nil
}

// Delete removes one record.
func (s *PostgresStore) Delete(ctx context.Context, namespace, id string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM learning_records WHERE namespace = $1 AND record_id = $2`, namespace, id)
	if err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return faults.Newf(faults.InputInvalid, "record %s not found in %s", id, namespace)
	}
	return nil
}

// List pages records newest-first, optionally requiring all given tags.
func (s *PostgresStore) List(ctx context.Context, namespace string, limit, offset int, tags []string) ([]Record, error) {
	if limit <= 0 {
		limit = 1000
	}
	tagFilter, err := json.Marshal(tags)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+recordColumns+` FROM learning_records
		WHERE namespace = $1 AND ($2 = 0 OR tags @> $3::jsonb)
		ORDER BY created_at DESC
		LIMIT $4 OFFSET $5`,
		namespace, len(tags), tagFilter, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// Search ranks by Postgres full-text relevance weighted by confidence.
func (s *PostgresStore) Search(ctx context.Context, namespaces []string, query string, topK int, tags []string) ([]SearchResult, error) {
	if topK <= 0 {
		topK = 20
	}
	tagFilter, err := json.Marshal(tags)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+recordColumns+`,
			ts_rank(to_tsvector('english', text_for_search), plainto_tsquery('english', $2))
				* (0.5 + 0.5 * confidence) AS score
		FROM learning_records
		WHERE namespace = ANY($1)
			AND to_tsvector('english', text_for_search) @@ plainto_tsquery('english', $2)
			AND ($3 = 0 OR tags @> $4::jsonb)
		ORDER BY score DESC, record_id
		LIMIT $5`,
		namespaces, query, len(tags), tagFilter, topK)
	if err != nil {
		return nil, fmt.Errorf("failed to search records: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var (
			rec          Record
			content      []byte
			tagsRaw      []byte
			history      []byte
			promotedFrom stdsql.NullString
			score        float64
		)
		err := rows.Scan(&rec.ID, &rec.Namespace, &content, &rec.TextForSearch, &rec.CreatedBy,
			&rec.Validations, &rec.Confidence, &tagsRaw, &promotedFrom, &history,
			&rec.CreatedAt, &rec.UpdatedAt, &score)
		if err != nil {
			return nil, fmt.Errorf("failed to scan search result: %w", err)
		}
		if err := json.Unmarshal(content, &rec.Content); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(tagsRaw, &rec.Tags); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(history, &rec.PromotionHistory); err != nil {
			return nil, err
		}
		rec.PromotedFrom = promotedFrom.String
		out = append(out, SearchResult{Record: rec, Score: score})
	}
	return out, rows.Err()
}

// NamespaceExists reports whether the namespace has any records.
func (s *PostgresStore) NamespaceExists(ctx context.Context, namespace string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM learning_records WHERE namespace = $1)`, namespace).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check namespace: %w", err)
	}
	return exists, nil
}

// DeleteNamespace removes all records in the namespace.
func (s *PostgresStore) DeleteNamespace(ctx context.Context, namespace string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM learning_records WHERE namespace = $1`, namespace); err != nil {
		return fmt.Errorf("failed to delete namespace: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *PostgresStore) Close() error { return s.db.Close() }

// DB exposes the underlying connection for health checks.
func (s *PostgresStore) DB() *stdsql.DB { return s.db }
