package attempt

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"marketplace-checkout/internal/domain"
	"marketplace-checkout/internal/migrate"
)

func TestPostgres_RecordAndList(t *testing.T) {
	ctx := context.Background()
	pool := testPool(ctx, t)
	defer pool.Close()

	if err := migrate.Apply(ctx, pool); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	resetTables(ctx, t, pool)

	repo := NewPostgres(pool)
	attemptID := uuid.NewString()
	events := []domain.PaymentEvent{
		{AttemptID: attemptID, OrderID: "42", Method: domain.PaymentMethodGateway, FromState: "init", ToState: "loading_sdk"},
		{AttemptID: attemptID, OrderID: "42", Method: domain.PaymentMethodGateway, FromState: "loading_sdk", ToState: "awaiting_user", GatewayOrderID: "order_gw_1"},
	}
	for _, e := range events {
		if err := repo.Record(ctx, e); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	got, err := repo.ListByOrder(ctx, "42")
	if err != nil {
		t.Fatalf("ListByOrder: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
	if got[0].ToState != "loading_sdk" || got[1].GatewayOrderID != "order_gw_1" {
		t.Fatalf("unexpected events %+v", got)
	}
	if got[0].AttemptID != attemptID || got[0].Method != domain.PaymentMethodGateway {
		t.Fatalf("unexpected first event %+v", got[0])
	}
	if got[0].CreatedAt.IsZero() {
		t.Fatalf("expected created_at to be set")
	}

	none, err := repo.ListByOrder(ctx, "missing")
	if err != nil {
		t.Fatalf("ListByOrder missing: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("expected no events, got %d", len(none))
	}
}

func TestPostgres_ListUnverified(t *testing.T) {
	ctx := context.Background()
	pool := testPool(ctx, t)
	defer pool.Close()

	if err := migrate.Apply(ctx, pool); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	resetTables(ctx, t, pool)

	repo := NewPostgres(pool)
	failed := uuid.NewString()
	completed := uuid.NewString()
	record := func(e domain.PaymentEvent) {
		t.Helper()
		e.Method = domain.PaymentMethodGateway
		if err := repo.Record(ctx, e); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	record(domain.PaymentEvent{AttemptID: failed, OrderID: "1", FromState: "awaiting_user", ToState: "verifying", GatewayOrderID: "gw_1", GatewayPaymentID: "pay_1"})
	record(domain.PaymentEvent{AttemptID: failed, OrderID: "1", FromState: "verifying", ToState: "failed", GatewayOrderID: "gw_1", GatewayPaymentID: "pay_1", Detail: "backend rejected payment"})
	record(domain.PaymentEvent{AttemptID: completed, OrderID: "2", FromState: "awaiting_user", ToState: "verifying", GatewayOrderID: "gw_2", GatewayPaymentID: "pay_2"})
	record(domain.PaymentEvent{AttemptID: completed, OrderID: "2", FromState: "verifying", ToState: "complete", GatewayOrderID: "gw_2", GatewayPaymentID: "pay_2"})

	got, err := repo.ListUnverified(ctx, 10)
	if err != nil {
		t.Fatalf("ListUnverified: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 unverified payment, got %+v", got)
	}
	if got[0].OrderID != "1" || got[0].GatewayPaymentID != "pay_1" || got[0].Detail != "backend rejected payment" {
		t.Fatalf("unexpected unverified payment %+v", got[0])
	}
}

func testPool(ctx context.Context, t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	return pool
}

func resetTables(ctx context.Context, t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	if _, err := pool.Exec(ctx, `TRUNCATE payment_events RESTART IDENTITY`); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
}
