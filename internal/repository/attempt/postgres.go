package attempt

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"marketplace-checkout/internal/domain"
)

type postgresRepo struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) Repository {
	return &postgresRepo{pool: pool}
}

func (r *postgresRepo) Record(ctx context.Context, e domain.PaymentEvent) error {
	const q = `
INSERT INTO payment_events (attempt_id, order_id, payment_method, from_state, to_state, gateway_order_id, gateway_payment_id, detail)
VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), NULLIF($8, ''))
`
	_, err := r.pool.Exec(ctx, q,
		e.AttemptID,
		e.OrderID,
		string(e.Method),
		e.FromState,
		e.ToState,
		e.GatewayOrderID,
		e.GatewayPaymentID,
		e.Detail,
	)
	return err
}

func (r *postgresRepo) ListByOrder(ctx context.Context, orderID string) ([]domain.PaymentEvent, error) {
	const q = `
SELECT id, attempt_id::text, order_id, payment_method, from_state, to_state,
       COALESCE(gateway_order_id, ''), COALESCE(gateway_payment_id, ''), COALESCE(detail, ''), created_at
FROM payment_events
WHERE order_id = $1
ORDER BY id
`
	rows, err := r.pool.Query(ctx, q, orderID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.PaymentEvent, error) {
		var e domain.PaymentEvent
		var method string
		err := row.Scan(
			&e.ID,
			&e.AttemptID,
			&e.OrderID,
			&method,
			&e.FromState,
			&e.ToState,
			&e.GatewayOrderID,
			&e.GatewayPaymentID,
			&e.Detail,
			&e.CreatedAt,
		)
		e.Method = domain.PaymentMethod(method)
		return e, err
	})
}

func (r *postgresRepo) ListUnverified(ctx context.Context, limit int) ([]Unverified, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `
SELECT attempt_id::text, order_id, COALESCE(gateway_order_id, ''), COALESCE(gateway_payment_id, ''), COALESCE(detail, '')
FROM unverified_payments
ORDER BY created_at DESC
LIMIT $1
`
	rows, err := r.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Unverified
	for rows.Next() {
		var u Unverified
		if err := rows.Scan(&u.AttemptID, &u.OrderID, &u.GatewayOrderID, &u.GatewayPaymentID, &u.Detail); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
