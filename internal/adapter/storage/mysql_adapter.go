package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

	"flashline/internal/core/domain"
)

// MySQLAdapter implements port.DatabaseRepository. Campaign inventory is
// authoritative here; the conditional UPDATE with a rows-affected check is
// the gate that makes overselling impossible regardless of the fast counter.
type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

func (m *MySQLAdapter) GetSaleMeta(ctx context.Context, saleID string) (domain.SaleMeta, error) {
	meta, err := m.querySaleMeta(ctx, `id = ?`, saleID)
	if errors.Is(err, sql.ErrNoRows) {
		// The identifier may be a campaign slug rather than a primary id.
		meta, err = m.querySaleMeta(ctx, `slug = ?`, saleID)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return domain.SaleMeta{}, domain.ErrSaleNotFound
	}
	if err != nil {
		return domain.SaleMeta{}, fmt.Errorf("query campaign: %w", err)
	}
	meta.SaleID = saleID
	return meta, nil
}

func (m *MySQLAdapter) querySaleMeta(ctx context.Context, where, arg string) (domain.SaleMeta, error) {
	var meta domain.SaleMeta
	err := m.db.QueryRowContext(ctx, `
		SELECT status, starts_at, ends_at, starting_quantity
		FROM campaigns WHERE `+where, arg,
	).Scan(&meta.Status, &meta.StartsAt, &meta.EndsAt, &meta.StartingQuantity)
	return meta, err
}

func (m *MySQLAdapter) DecrementQuantity(ctx context.Context, saleID string, now time.Time) (bool, error) {
	result, err := m.db.ExecContext(ctx, `
		UPDATE campaigns
		SET current_quantity = current_quantity - 1, updated_at = NOW()
		WHERE (id = ? OR slug = ?)
		  AND status = 'active'
		  AND starts_at <= ? AND ends_at > ?
		  AND current_quantity > 0`,
		saleID, saleID, now, now,
	)
	if err != nil {
		return false, fmt.Errorf("decrement quantity: %w", err)
	}
	rows, _ := result.RowsAffected()
	return rows == 1, nil
}

func (m *MySQLAdapter) IncrementQuantity(ctx context.Context, saleID string) error {
	_, err := m.db.ExecContext(ctx, `
		UPDATE campaigns
		SET current_quantity = current_quantity + 1, updated_at = NOW()
		WHERE id = ? OR slug = ?`,
		saleID, saleID,
	)
	if err != nil {
		return fmt.Errorf("increment quantity: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) FindOrder(ctx context.Context, saleID, email string) (*domain.Order, error) {
	return m.queryOrder(ctx, `campaign_id = ? AND buyer_email = ?`, saleID, email)
}

func (m *MySQLAdapter) FindPaidOrder(ctx context.Context, saleID, email string) (*domain.Order, error) {
	return m.queryOrder(ctx, `campaign_id = ? AND buyer_email = ? AND payment_status = 'paid'`, saleID, email)
}

func (m *MySQLAdapter) queryOrder(ctx context.Context, where string, args ...any) (*domain.Order, error) {
	var order domain.Order
	err := m.db.QueryRowContext(ctx, `
		SELECT id, campaign_id, buyer_email, amount_cents, payment_status, created_at
		FROM orders WHERE `+where, args...,
	).Scan(&order.ID, &order.CampaignID, &order.BuyerEmail, &order.AmountCents,
		&order.PaymentStatus, &order.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}
	return &order, nil
}

func (m *MySQLAdapter) CreateOrder(ctx context.Context, order domain.Order) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO orders (id, campaign_id, buyer_email, amount_cents, payment_status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		order.ID, order.CampaignID, order.BuyerEmail, order.AmountCents,
		order.PaymentStatus, order.CreatedAt,
	)
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
		return domain.ErrOrderExists
	}
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}
