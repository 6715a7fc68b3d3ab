package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/snapfeed/backend/internal/db"
)

// NotifyChannel is the PostgreSQL channel the document store publishes
// change-feed payloads on.
const NotifyChannel = "snapfeed_changes"

// maxNotifyPayload keeps notify payloads under the PostgreSQL 8000-byte
// limit. Oversized documents are announced by id only.
const maxNotifyPayload = 7500

var collectionPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// PostgresDocumentStore persists schemaless collection documents as JSONB
// rows, one table per collection. Writes publish change-feed notifications
// best effort: a failed publish is logged and never fails the write.
type PostgresDocumentStore struct {
	pool    db.Pool
	logger  *slog.Logger
	NowFunc func() time.Time
}

// NewPostgresDocumentStore constructs a document store backed by PostgreSQL.
func NewPostgresDocumentStore(pool db.Pool, logger *slog.Logger) *PostgresDocumentStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresDocumentStore{pool: pool, logger: logger}
}

// Create inserts a document, filling in the id and timestamps when the
// caller left them zero.
func (s *PostgresDocumentStore) Create(ctx context.Context, collection string, doc Document) (Document, error) {
	table, err := tableName(collection)
	if err != nil {
		return Document{}, err
	}

	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	now := s.now()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = doc.CreatedAt
	}
	if len(doc.Data) == 0 {
		doc.Data = json.RawMessage(`{}`)
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return Document{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, fmt.Sprintf(`
        INSERT INTO %s (id, created_at, updated_at, data)
        VALUES ($1, $2, $3, $4)
    `, table), doc.ID, doc.CreatedAt.UTC(), doc.UpdatedAt.UTC(), doc.Data)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Document{}, fmt.Errorf("insert document into %s: %w: %w", collection, ErrPersistence, ErrConflict)
		}
		return Document{}, fmt.Errorf("insert document into %s: %w: %w", collection, ErrPersistence, err)
	}

	s.notify(ctx, conn, EventCreated, collection, doc)
	return doc, nil
}

// Get fetches one document by id.
func (s *PostgresDocumentStore) Get(ctx context.Context, collection, id string) (Document, error) {
	table, err := tableName(collection)
	if err != nil {
		return Document{}, err
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return Document{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, fmt.Sprintf(`
        SELECT id, created_at, updated_at, data
        FROM %s
        WHERE id = $1
    `, table), id)

	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Document{}, fmt.Errorf("document %s/%s: %w", collection, id, ErrNotFound)
		}
		return Document{}, fmt.Errorf("select document from %s: %w", collection, err)
	}
	return doc, nil
}

// Update merges the provided payload into the stored one attribute by
// attribute and stamps the update time.
func (s *PostgresDocumentStore) Update(ctx context.Context, collection, id string, data json.RawMessage) (Document, error) {
	table, err := tableName(collection)
	if err != nil {
		return Document{}, err
	}
	if len(data) == 0 {
		data = json.RawMessage(`{}`)
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return Document{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, fmt.Sprintf(`
        UPDATE %s
        SET data = data || $2, updated_at = $3
        WHERE id = $1
        RETURNING id, created_at, updated_at, data
    `, table), id, data, s.now())

	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Document{}, fmt.Errorf("document %s/%s: %w: %w", collection, id, ErrPersistence, ErrNotFound)
		}
		return Document{}, fmt.Errorf("update document in %s: %w: %w", collection, ErrPersistence, err)
	}
	return doc, nil
}

// Delete removes a document by id.
func (s *PostgresDocumentStore) Delete(ctx context.Context, collection, id string) error {
	table, err := tableName(collection)
	if err != nil {
		return err
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, fmt.Sprintf(`
        DELETE FROM %s
        WHERE id = $1
        RETURNING id, created_at, updated_at, data
    `, table), id)

	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("document %s/%s: %w: %w", collection, id, ErrPersistence, ErrNotFound)
		}
		return fmt.Errorf("delete document from %s: %w: %w", collection, ErrPersistence, err)
	}

	s.notify(ctx, conn, EventDeleted, collection, doc)
	return nil
}

// List returns a page of documents matching the provided options. The cursor
// is the id of the last document of the previous page; results resume
// strictly after it in the requested order.
func (s *PostgresDocumentStore) List(ctx context.Context, collection string, opts ListOptions) (Page, error) {
	table, err := tableName(collection)
	if err != nil {
		return Page{}, err
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return Page{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	orderColumn := "updated_at"
	if opts.Order == OrderCreatedDesc {
		orderColumn = "created_at"
	}

	var (
		clauses []string
		args    []any
	)
	for _, f := range opts.Filters {
		switch f.Op {
		case OpEqual:
			args = append(args, f.Field, f.Value)
			clauses = append(clauses, fmt.Sprintf("data->>$%d = $%d", len(args)-1, len(args)))
		case OpAfter:
			args = append(args, f.Field, f.Value)
			clauses = append(clauses, fmt.Sprintf("(data->>$%d)::timestamptz > $%d::timestamptz", len(args)-1, len(args)))
		case OpSearch:
			args = append(args, f.Field, f.Value)
			clauses = append(clauses, fmt.Sprintf("data->>$%d ILIKE '%%' || $%d || '%%'", len(args)-1, len(args)))
		case OpMissing:
			args = append(args, f.Field)
			clauses = append(clauses, fmt.Sprintf("NOT (data ? $%d)", len(args)))
		case OpContains:
			args = append(args, f.Field, f.Value)
			clauses = append(clauses, fmt.Sprintf("data->$%d ? $%d", len(args)-1, len(args)))
		default:
			return Page{}, fmt.Errorf("unsupported filter op %d", f.Op)
		}
	}

	if opts.Cursor != "" {
		args = append(args, opts.Cursor)
		clauses = append(clauses, fmt.Sprintf(
			"(%[1]s, id) < (SELECT %[1]s, id FROM %[2]s WHERE id = $%[3]d)",
			orderColumn, table, len(args)))
	}

	query := fmt.Sprintf("SELECT id, created_at, updated_at, data FROM %s", table)
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY %s DESC, id DESC", orderColumn)
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return Page{}, fmt.Errorf("query documents in %s: %w", collection, err)
	}
	defer rows.Close()

	var page Page
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return Page{}, fmt.Errorf("scan document from %s: %w", collection, err)
		}
		page.Documents = append(page.Documents, doc)
	}
	if err := rows.Err(); err != nil {
		return Page{}, fmt.Errorf("iterate documents in %s: %w", collection, err)
	}

	return page, nil
}

func (s *PostgresDocumentStore) notify(ctx context.Context, conn *pgxpool.Conn, kind EventKind, collection string, doc Document) {
	payload, err := json.Marshal(notifyPayload{
		Kind:       kind,
		Collection: collection,
		ID:         doc.ID,
		CreatedAt:  doc.CreatedAt.UTC(),
		UpdatedAt:  doc.UpdatedAt.UTC(),
		Data:       doc.Data,
	})
	if err != nil {
		s.logger.Error("encode change-feed payload", "collection", collection, "documentId", doc.ID, "error", err)
		return
	}
	if len(payload) > maxNotifyPayload {
		payload, err = json.Marshal(notifyPayload{
			Kind:       kind,
			Collection: collection,
			ID:         doc.ID,
			CreatedAt:  doc.CreatedAt.UTC(),
			UpdatedAt:  doc.UpdatedAt.UTC(),
		})
		if err != nil {
			s.logger.Error("encode change-feed payload", "collection", collection, "documentId", doc.ID, "error", err)
			return
		}
	}

	if _, err := conn.Exec(ctx, `SELECT pg_notify($1, $2)`, NotifyChannel, string(payload)); err != nil {
		s.logger.Warn("publish change-feed event", "collection", collection, "documentId", doc.ID, "error", err)
	}
}

type notifyPayload struct {
	Kind       EventKind       `json:"kind"`
	Collection string          `json:"collection"`
	ID         string          `json:"id"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
	Data       json.RawMessage `json:"data,omitempty"`
}

func (s *PostgresDocumentStore) now() time.Time {
	if s.NowFunc != nil {
		return s.NowFunc().UTC()
	}
	return time.Now().UTC()
}

func tableName(collection string) (string, error) {
	if !collectionPattern.MatchString(collection) {
		return "", fmt.Errorf("invalid collection name %q", collection)
	}
	return pgx.Identifier{collection}.Sanitize(), nil
}

func scanDocument(row pgx.Row) (Document, error) {
	var doc Document
	if err := row.Scan(&doc.ID, &doc.CreatedAt, &doc.UpdatedAt, &doc.Data); err != nil {
		return Document{}, err
	}
	doc.CreatedAt = doc.CreatedAt.UTC()
	doc.UpdatedAt = doc.UpdatedAt.UTC()
	return doc, nil
}

var _ DocumentStore = (*PostgresDocumentStore)(nil)
