package repo

import (
	"context"
	"database/sql"

	"github.com/go-faster/errors"

	"github.com/aq2208/gcart-api/internal/usecase"
)

const DefaultSnapshotName = "carts"

// Schema expected by MySQLSnapshotRepo.
const SnapshotSchema = `
CREATE TABLE IF NOT EXISTS cart_snapshots (
    name       VARCHAR(64) NOT NULL PRIMARY KEY,
    payload    LONGBLOB    NOT NULL,
    updated_at DATETIME    NOT NULL
)`

// MySQLSnapshotRepo stores the cart snapshot as one row. The upsert is a
// single statement, so a failed write leaves the previous payload in place.
type MySQLSnapshotRepo struct {
	db   *sql.DB
	name string
}

func NewMySQLSnapshotRepo(db *sql.DB, name string) *MySQLSnapshotRepo {
	if name == "" {
		name = DefaultSnapshotName
	}
	return &MySQLSnapshotRepo{db: db, name: name}
}

// EnsureSchema creates the snapshot table when missing.
func (r *MySQLSnapshotRepo) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, SnapshotSchema); err != nil {
		return errors.Wrap(err, "create cart_snapshots")
	}
	return nil
}

func (r *MySQLSnapshotRepo) Load(ctx context.Context) ([]byte, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT payload FROM cart_snapshots WHERE name=?`, r.name)
	var payload []byte
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, usecase.ErrNoSnapshot
		}
		return nil, errors.Wrap(err, "select cart snapshot")
	}
	return payload, nil
}

func (r *MySQLSnapshotRepo) Save(ctx context.Context, data []byte) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO cart_snapshots (name,payload,updated_at)
VALUES (?,?,NOW())
ON DUPLICATE KEY UPDATE payload=VALUES(payload), updated_at=NOW()
`, r.name, data)
	if err != nil {
		return errors.Wrap(err, "upsert cart snapshot")
	}
	return nil
}

var _ usecase.SnapshotStore = (*MySQLSnapshotRepo)(nil)
