package interfaces

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/backoffice/backoffice/internal/platform/db"
)

// Repository reads interface definitions from the relational store.
type Repository struct {
	db *sql.DB
}

// NewRepository constructs a repository.
func NewRepository(conn *sql.DB) *Repository {
	return &Repository{db: conn}
}

// Find loads the definition stored for typ in collection.
func (r *Repository) Find(ctx context.Context, collection string, typ Type) (Document, error) {
	var raw []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT data FROM interfaces WHERE collection = $1 AND type = $2`, collection, string(typ)).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, storeError("find interface", err)
	}
	doc := Document{}
	if len(raw) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("interfaces: decode %s: %w", typ, err)
	}
	return doc, nil
}

func storeError(op string, err error) error {
	err = db.Classify(err)
	if errors.Is(err, db.ErrUnreachable) {
		return fmt.Errorf("%w: %s: %v", ErrStoreUnreachable, op, err)
	}
	return fmt.Errorf("interfaces: %s: %w", op, err)
}
