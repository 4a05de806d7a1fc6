package postgres

import "context"

const schema = `
CREATE TABLE IF NOT EXISTS stores (
	id             TEXT PRIMARY KEY,
	name           TEXT NOT NULL,
	owner_name     TEXT NOT NULL DEFAULT '',
	admin_pin_hash TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS documents (
	id         TEXT PRIMARY KEY,
	store_id   TEXT NOT NULL REFERENCES stores (id),
	collection TEXT NOT NULL,
	body       JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_documents_scope ON documents (store_id, collection);
`

// EnsureSchema creates the tables if they do not exist. Deployments with
// managed migrations can skip this.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}
