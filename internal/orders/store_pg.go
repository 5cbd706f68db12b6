package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore is the Postgres-backed Store. Conditional UPDATEs guarded by the
// expected previous value give the compare-and-set semantics; no transaction
// is needed for single-row finalization.
type PGStore struct{ DB *pgxpool.Pool }

var _ Store = (*PGStore)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS orders (
	id                 TEXT PRIMARY KEY,
	user_id            BIGINT NOT NULL,
	plan_id            TEXT NOT NULL,
	amount_cents       BIGINT NOT NULL,
	gateway_payment_id TEXT,
	status             TEXT NOT NULL,
	granted            BOOLEAN NOT NULL DEFAULT FALSE,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE UNIQUE INDEX IF NOT EXISTS orders_gateway_payment_id_key
	ON orders (gateway_payment_id) WHERE gateway_payment_id IS NOT NULL;
CREATE INDEX IF NOT EXISTS orders_ungranted_idx
	ON orders (created_at) WHERE status = 'approved' AND granted = FALSE;
`

func (s *PGStore) EnsureSchema(ctx context.Context) error {
	_, err := s.DB.Exec(ctx, schema)
	return err
}

func (s *PGStore) Create(ctx context.Context, o *Order) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO orders(id, user_id, plan_id, amount_cents, status)
		VALUES ($1, $2, $3, $4, $5)`,
		o.ID, o.UserID, o.PlanID, o.AmountCents, o.Status)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

const selectOrder = `
	SELECT id, user_id, plan_id, amount_cents,
	       COALESCE(gateway_payment_id, ''), status, granted, created_at, updated_at
	FROM orders`

func (s *PGStore) Get(ctx context.Context, orderID string) (*Order, error) {
	return s.scanOne(s.DB.QueryRow(ctx, selectOrder+` WHERE id=$1`, orderID))
}

func (s *PGStore) FindByGatewayPaymentID(ctx context.Context, gatewayPaymentID string) (*Order, error) {
	return s.scanOne(s.DB.QueryRow(ctx, selectOrder+` WHERE gateway_payment_id=$1`, gatewayPaymentID))
}

func (s *PGStore) scanOne(row pgx.Row) (*Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.UserID, &o.PlanID, &o.AmountCents,
		&o.GatewayPaymentID, &o.Status, &o.Granted, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *PGStore) AttachGatewayPayment(ctx context.Context, orderID, gatewayPaymentID string) error {
	ct, err := s.DB.Exec(ctx, `
		UPDATE orders
		SET gateway_payment_id=$2, status=$3, updated_at=now()
		WHERE id=$1 AND gateway_payment_id IS NULL AND status=$4`,
		orderID, gatewayPaymentID, StatusAwaitingPayment, StatusCreated)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		if _, err := s.Get(ctx, orderID); err != nil {
			return err
		}
		return ErrGatewayIDTaken
	}
	return nil
}

func (s *PGStore) CompareAndSetStatus(ctx context.Context, orderID string, expected, next Status) (bool, error) {
	if !CanTransition(expected, next) {
		return false, fmt.Errorf("invalid transition %s -> %s", expected, next)
	}
	ct, err := s.DB.Exec(ctx, `
		UPDATE orders SET status=$3, updated_at=now()
		WHERE id=$1 AND status=$2`,
		orderID, expected, next)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

func (s *PGStore) MarkGranted(ctx context.Context, orderID string) (bool, error) {
	ct, err := s.DB.Exec(ctx, `
		UPDATE orders SET granted=TRUE, updated_at=now()
		WHERE id=$1 AND status=$2 AND granted=FALSE`,
		orderID, StatusApproved)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

func (s *PGStore) SetStatus(ctx context.Context, orderID string, next Status) error {
	ct, err := s.DB.Exec(ctx, `
		UPDATE orders SET status=$2, updated_at=now() WHERE id=$1`,
		orderID, next)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) ListUngranted(ctx context.Context, limit int) ([]*Order, error) {
	rows, err := s.DB.Query(ctx, selectOrder+`
		WHERE status=$1 AND granted=FALSE
		ORDER BY created_at
		LIMIT $2`, StatusApproved, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.UserID, &o.PlanID, &o.AmountCents,
			&o.GatewayPaymentID, &o.Status, &o.Granted, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &o)
	}
	return out, rows.Err()
}
