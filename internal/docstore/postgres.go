package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	_ "github.com/jackc/pgx/v5/stdlib"
)

const changeChannel = "docstore_changes"

// Postgres is a Store backed by a single documents table. Atomicity comes
// from row locks inside the update transaction; change fanout rides
// LISTEN/NOTIFY with the collection name as payload.
type Postgres struct {
	db          *sql.DB
	databaseURL string
}

// OpenPostgres connects, verifies the connection, and ensures the schema.
func OpenPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetMaxIdleConns(10)
	db.SetMaxOpenConns(20)

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}

	store := &Postgres{db: db, databaseURL: databaseURL}
	if err := store.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func (p *Postgres) ensureSchema(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS documents (
			path TEXT PRIMARY KEY,
			collection TEXT NOT NULL,
			data JSONB NOT NULL,
			version BIGINT NOT NULL DEFAULT 1,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS documents_collection_idx ON documents(collection);
	`)
	if err != nil {
		return fmt.Errorf("ensure documents table: %w", err)
	}
	return nil
}

func (p *Postgres) Get(ctx context.Context, path string) (Doc, error) {
	doc := Doc{Path: path}
	var data []byte
	err := p.db.QueryRowContext(ctx,
		`SELECT data, version, updated_at FROM documents WHERE path=$1`, path,
	).Scan(&data, &doc.Version, &doc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Doc{}, ErrNotFound
	}
	if err != nil {
		return Doc{}, fmt.Errorf("get %s: %w", path, err)
	}
	doc.Data = json.RawMessage(data)
	return doc, nil
}

func (p *Postgres) Update(ctx context.Context, path string, fn UpdateFn) (Doc, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return Doc{}, fmt.Errorf("begin update %s: %w", path, err)
	}
	defer func() { _ = tx.Rollback() }()

	var current json.RawMessage
	var data []byte
	err = tx.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE path=$1 FOR UPDATE`, path,
	).Scan(&data)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// document does not exist yet
	case err != nil:
		return Doc{}, fmt.Errorf("lock %s: %w", path, err)
	default:
		current = json.RawMessage(data)
	}

	next, err := fn(current)
	if err != nil {
		return Doc{}, err
	}

	doc := Doc{Path: path, Data: next}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO documents(path, collection, data, version, updated_at)
		VALUES($1, $2, $3, 1, NOW())
		ON CONFLICT (path) DO UPDATE
			SET data=EXCLUDED.data, version=documents.version+1, updated_at=NOW()
		RETURNING version, updated_at
	`, path, Collection(path), []byte(next)).Scan(&doc.Version, &doc.UpdatedAt)
	if err != nil {
		return Doc{}, fmt.Errorf("write %s: %w", path, err)
	}

	if _, err := tx.ExecContext(ctx, `SELECT pg_notify($1, $2)`, changeChannel, Collection(path)); err != nil {
		return Doc{}, fmt.Errorf("notify %s: %w", path, err)
	}
	if err := tx.Commit(); err != nil {
		return Doc{}, fmt.Errorf("commit %s: %w", path, err)
	}
	return doc, nil
}

func (p *Postgres) Delete(ctx context.Context, path string) error {
	result, err := p.db.ExecContext(ctx, `DELETE FROM documents WHERE path=$1`, path)
	if err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	if _, err := p.db.ExecContext(ctx, `SELECT pg_notify($1, $2)`, changeChannel, Collection(path)); err != nil {
		return fmt.Errorf("notify delete %s: %w", path, err)
	}
	return nil
}

func (p *Postgres) Query(ctx context.Context, collection string, filter Filter) ([]Doc, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT path, data, version, updated_at FROM documents WHERE collection=$1 ORDER BY path`,
		collection,
	)
	if err != nil {
		return nil, fmt.Errorf("query collection %s: %w", collection, err)
	}
	defer rows.Close()

	docs := make([]Doc, 0)
	for rows.Next() {
		var doc Doc
		var data []byte
		if err := rows.Scan(&doc.Path, &data, &doc.Version, &doc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan collection %s: %w", collection, err)
		}
		doc.Data = json.RawMessage(data)
		if !filter.Matches(doc) {
			continue
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (p *Postgres) Subscribe(ctx context.Context, collection string, filter Filter) (*Subscription, error) {
	// Notifications need a dedicated session, which database/sql pooling
	// cannot guarantee; use a raw pgx connection for the listener.
	conn, err := pgx.Connect(ctx, p.databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open listener conn: %w", err)
	}
	if _, err := conn.Exec(ctx, `LISTEN `+changeChannel); err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("listen: %w", err)
	}

	streamCtx, cancelCtx := context.WithCancel(context.Background())
	ch := make(chan Event, 1)

	go func() {
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = conn.Close(closeCtx)
		}()

		if docs, err := p.Query(streamCtx, collection, filter); err == nil {
			send(ch, Event{Docs: docs})
		}
		for {
			notification, err := conn.WaitForNotification(streamCtx)
			if err != nil {
				return
			}
			if notification.Payload != collection {
				continue
			}
			docs, err := p.Query(streamCtx, collection, filter)
			if err != nil {
				log.Printf("docstore: postgres snapshot query %s: %v", collection, err)
				continue
			}
			send(ch, Event{Docs: docs})
		}
	}()

	return newSubscription(ch, cancelCtx), nil
}

func (p *Postgres) Now(ctx context.Context) time.Time {
	var now time.Time
	if err := p.db.QueryRowContext(ctx, `SELECT NOW()`).Scan(&now); err != nil {
		return time.Now().UTC()
	}
	return now.UTC()
}

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

func (p *Postgres) Close() error { return p.db.Close() }
