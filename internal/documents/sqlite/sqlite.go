// Package sqlite stores uploaded documents in a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/spigell/resume-screener/internal/documents"
	"github.com/spigell/resume-screener/internal/vectorstore"
)

type Repository struct {
	db   *sql.DB
	path string
}

// Verify Repository implements documents.Repository
var _ documents.Repository = (*Repository)(nil)

// Open opens or creates the database at path. ":memory:" keeps it in memory.
func Open(path string) (*Repository, error) {
	dsn := ":memory:"
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create data dir: %w", err)
			}
		}
		dsn = path + "?_journal=WAL&_timeout=5000"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A second connection to ":memory:" would see an empty database.
	db.SetMaxOpenConns(1)

	r := &Repository{db: db, path: path}
	if err := r.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return r, nil
}

func (r *Repository) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT NOT NULL,
		type TEXT NOT NULL,
		file_name TEXT NOT NULL,
		text TEXT NOT NULL,
		uploaded_at DATETIME NOT NULL,
		PRIMARY KEY (type, id)
	);

	CREATE INDEX IF NOT EXISTS idx_documents_uploaded ON documents(type, uploaded_at DESC);
	`
	_, err := r.db.Exec(schema)
	return err
}

func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) Save(ctx context.Context, doc *documents.Document) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO documents (id, type, file_name, text, uploaded_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(type, id) DO UPDATE SET file_name = excluded.file_name, text = excluded.text, uploaded_at = excluded.uploaded_at
	`, doc.ID, string(doc.Type), doc.FileName, doc.Text, doc.UploadedAt.UTC())
	return err
}

func (r *Repository) Get(ctx context.Context, docType vectorstore.DocType, id string) (*documents.Document, error) {
	var doc documents.Document
	var typ string

	err := r.db.QueryRowContext(ctx, `
		SELECT id, type, file_name, text, uploaded_at FROM documents WHERE type = ? AND id = ?
	`, string(docType), id).Scan(&doc.ID, &typ, &doc.FileName, &doc.Text, &doc.UploadedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, documents.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	doc.Type = vectorstore.DocType(typ)
	return &doc, nil
}

func (r *Repository) List(ctx context.Context, docType vectorstore.DocType) ([]*documents.Document, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, type, file_name, text, uploaded_at FROM documents WHERE type = ? ORDER BY uploaded_at DESC
	`, string(docType))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := make([]*documents.Document, 0)
	for rows.Next() {
		var doc documents.Document
		var typ string
		if err := rows.Scan(&doc.ID, &typ, &doc.FileName, &doc.Text, &doc.UploadedAt); err != nil {
			return nil, err
		}
		doc.Type = vectorstore.DocType(typ)
		docs = append(docs, &doc)
	}
	return docs, rows.Err()
}

func (r *Repository) Delete(ctx context.Context, docType vectorstore.DocType, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE type = ? AND id = ?`, string(docType), id)
	return err
}

func (r *Repository) DeleteByType(ctx context.Context, docType vectorstore.DocType) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE type = ?`, string(docType))
	return err
}

func (r *Repository) DeleteAll(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM documents`)
	return err
}
