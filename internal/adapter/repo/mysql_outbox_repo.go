package repo

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/go-faster/errors"

	"github.com/aq2208/gcart-api/internal/usecase"
)

const OutboxChannelCartChanged = "cart.changed.v1"

// Schema expected by MySQLOutboxRepo. A relay drains PENDING rows to the
// broker; that process is outside this service.
const OutboxSchema = `
CREATE TABLE IF NOT EXISTS cart_outbox (
    id              BIGINT       NOT NULL AUTO_INCREMENT PRIMARY KEY,
    channel         VARCHAR(64)  NOT NULL,
    msg_key         VARCHAR(128) NOT NULL,
    payload         JSON         NOT NULL,
    status          VARCHAR(16)  NOT NULL,
    retry_count     INT          NOT NULL,
    next_attempt_at DATETIME     NOT NULL,
    created_at      DATETIME     NOT NULL,
    KEY idx_outbox_pending (status, next_attempt_at)
)`

// MySQLOutboxRepo implements usecase.CartEvents by appending to an outbox
// table instead of talking to a broker.
type MySQLOutboxRepo struct{ db *sql.DB }

func NewMySQLOutboxRepo(db *sql.DB) *MySQLOutboxRepo { return &MySQLOutboxRepo{db: db} }

func (r *MySQLOutboxRepo) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, OutboxSchema); err != nil {
		return errors.Wrap(err, "create cart_outbox")
	}
	return nil
}

func (r *MySQLOutboxRepo) PublishChanged(ctx context.Context, msg usecase.CartChangedMsg) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "marshal message")
	}
	_, err = r.db.ExecContext(ctx, `
INSERT INTO cart_outbox (channel,msg_key,payload,status,retry_count,next_attempt_at,created_at)
VALUES (?, ?, ?, 'PENDING', 0, NOW(), NOW())
`, OutboxChannelCartChanged, msg.Username, payload)
	if err != nil {
		return errors.Wrap(err, "insert outbox")
	}
	return nil
}

var _ usecase.CartEvents = (*MySQLOutboxRepo)(nil)
